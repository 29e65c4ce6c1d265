package r2

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/keylinehq/keyline-backend/pkg/config"
	"github.com/keylinehq/keyline-backend/pkg/logger"
	"github.com/keylinehq/keyline-backend/pkg/storage"
)

// Cloudflare R2 speaks the S3 REST API with a fixed "auto" region.
const (
	signingRegion  = "auto"
	signingService = "s3"
	pingTimeout    = 5 * time.Second
	amzDateFormat  = "20060102T150405Z"
	dateStampLayout = "20060102"
	emptyPayloadHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

// Client talks to an R2 bucket over the S3-compatible REST API using SigV4
// request signing. No SDK is involved.
type Client struct {
	httpClient *http.Client
	endpoint   string
	bucket     string
	accessKey  string
	secretKey  string
	now        func() time.Time
}

// NewClient validates configuration and verifies the bucket is reachable.
func NewClient(ctx context.Context, cfg config.R2Config, logg *logger.Logger) (*Client, error) {
	if !cfg.Configured() {
		return nil, errors.New("r2 bucket credentials are not configured")
	}

	endpoint := strings.TrimSuffix(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		bucket:     cfg.BucketName,
		accessKey:  cfg.AccessKeyID,
		secretKey:  cfg.SecretAccessKey,
		now:        time.Now,
	}

	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("r2 health check failed: %w", err)
	}

	if logg != nil {
		logg.Info(ctx, "r2 client initialized")
	}

	return client, nil
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string {
	if c == nil {
		return ""
	}
	return c.bucket
}

// Ping issues a signed HEAD against the bucket root.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.httpClient == nil {
		return errors.New("r2 client not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodHead, "", nil, "")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("r2 bucket check failed: %s", resp.Status)
	}
	return nil
}

// Put uploads the body under the given key.
func (c *Client) Put(ctx context.Context, key string, body []byte, contentType string) error {
	resp, err := c.do(ctx, http.MethodPut, key, body, contentType)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return responseError("put", key, resp)
	}
	return nil
}

// Get downloads the object stored under the given key.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, key, nil, "")
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		return io.ReadAll(resp.Body)
	case http.StatusNotFound:
		return nil, storage.ErrNotFound
	default:
		return nil, responseError("get", key, resp)
	}
}

// GetText downloads the object and returns it as a string.
func (c *Client) GetText(ctx context.Context, key string) (string, error) {
	body, err := c.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Delete removes the object. Deleting a missing object is not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	resp, err := c.do(ctx, http.MethodDelete, key, nil, "")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return responseError("delete", key, resp)
	}
	return nil
}

// Head reports whether the object exists.
func (c *Client) Head(ctx context.Context, key string) (bool, error) {
	resp, err := c.do(ctx, http.MethodHead, key, nil, "")
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, responseError("head", key, resp)
	}
}

// PresignGet returns a time-limited GET URL for the object.
func (c *Client) PresignGet(key string, expiry time.Duration) (string, error) {
	if c == nil || c.secretKey == "" {
		return "", errors.New("r2 client not initialized")
	}
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}

	now := c.now().UTC()
	amzDate := now.Format(amzDateFormat)
	dateStamp := now.Format(dateStampLayout)
	scope := fmt.Sprintf("%s/%s/%s/aws4_request", dateStamp, signingRegion, signingService)

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("parsing endpoint: %w", err)
	}
	canonicalURI := "/" + escapePath(c.bucket+"/"+key)

	query := url.Values{}
	query.Set("X-Amz-Algorithm", "AWS4-HMAC-SHA256")
	query.Set("X-Amz-Credential", c.accessKey+"/"+scope)
	query.Set("X-Amz-Date", amzDate)
	query.Set("X-Amz-Expires", strconv.Itoa(int(expiry.Seconds())))
	query.Set("X-Amz-SignedHeaders", "host")

	canonicalRequest := strings.Join([]string{
		http.MethodGet,
		canonicalURI,
		canonicalQuery(query),
		"host:" + u.Host + "\n",
		"host",
		"UNSIGNED-PAYLOAD",
	}, "\n")

	signature := c.sign(canonicalRequest, amzDate, dateStamp, scope)
	query.Set("X-Amz-Signature", signature)

	return fmt.Sprintf("%s%s?%s", c.endpoint, canonicalURI, canonicalQuery(query)), nil
}

func (c *Client) do(ctx context.Context, method, key string, body []byte, contentType string) (*http.Response, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing endpoint: %w", err)
	}

	canonicalURI := "/" + escapePath(c.bucket)
	if key != "" {
		canonicalURI = "/" + escapePath(c.bucket+"/"+key)
	}

	payloadHash := emptyPayloadHash
	if len(body) > 0 {
		sum := sha256.Sum256(body)
		payloadHash = hex.EncodeToString(sum[:])
	}

	now := c.now().UTC()
	amzDate := now.Format(amzDateFormat)
	dateStamp := now.Format(dateStampLayout)
	scope := fmt.Sprintf("%s/%s/%s/aws4_request", dateStamp, signingRegion, signingService)

	headers := map[string]string{
		"host":                 u.Host,
		"x-amz-content-sha256": payloadHash,
		"x-amz-date":           amzDate,
	}
	if contentType != "" {
		headers["content-type"] = contentType
	}

	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	var canonicalHeaders strings.Builder
	for _, name := range names {
		canonicalHeaders.WriteString(name)
		canonicalHeaders.WriteString(":")
		canonicalHeaders.WriteString(strings.TrimSpace(headers[name]))
		canonicalHeaders.WriteString("\n")
	}
	signedHeaders := strings.Join(names, ";")

	canonicalRequest := strings.Join([]string{
		method,
		canonicalURI,
		"",
		canonicalHeaders.String(),
		signedHeaders,
		payloadHash,
	}, "\n")

	signature := c.sign(canonicalRequest, amzDate, dateStamp, scope)

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+canonicalURI, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for name, value := range headers {
		if name == "host" {
			continue
		}
		req.Header.Set(name, value)
	}
	req.Header.Set("Authorization", fmt.Sprintf(
		"AWS4-HMAC-SHA256 Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		c.accessKey, scope, signedHeaders, signature,
	))

	return c.httpClient.Do(req)
}

func (c *Client) sign(canonicalRequest, amzDate, dateStamp, scope string) string {
	requestHash := sha256.Sum256([]byte(canonicalRequest))
	stringToSign := strings.Join([]string{
		"AWS4-HMAC-SHA256",
		amzDate,
		scope,
		hex.EncodeToString(requestHash[:]),
	}, "\n")

	key := hmacSHA256([]byte("AWS4"+c.secretKey), dateStamp)
	key = hmacSHA256(key, signingRegion)
	key = hmacSHA256(key, signingService)
	key = hmacSHA256(key, "aws4_request")
	return hex.EncodeToString(hmacSHA256(key, stringToSign))
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}

// canonicalQuery renders query parameters sorted by name with strict RFC 3986 escaping.
func canonicalQuery(values url.Values) string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		for _, value := range values[name] {
			parts = append(parts, escape(name)+"="+escape(value))
		}
	}
	return strings.Join(parts, "&")
}

// escapePath escapes each path segment while preserving separators.
func escapePath(path string) string {
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		segments[i] = escape(segment)
	}
	return strings.Join(segments, "/")
}

func escape(value string) string {
	var b strings.Builder
	for _, r := range []byte(value) {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.', r == '~':
			b.WriteByte(r)
		default:
			fmt.Fprintf(&b, "%%%02X", r)
		}
	}
	return b.String()
}

func responseError(op, key string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if len(snippet) > 0 {
		return fmt.Errorf("r2 %s %q: %s: %s", op, key, resp.Status, strings.TrimSpace(string(snippet)))
	}
	return fmt.Errorf("r2 %s %q: %s", op, key, resp.Status)
}
