package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/keylinehq/keyline-backend/internal/inventory"
	"github.com/keylinehq/keyline-backend/internal/orders"
	"github.com/keylinehq/keyline-backend/internal/products"
	pkgauth "github.com/keylinehq/keyline-backend/pkg/auth"
	"github.com/keylinehq/keyline-backend/pkg/config"
	"github.com/keylinehq/keyline-backend/pkg/db/models"
	"github.com/keylinehq/keyline-backend/pkg/enums"
	"github.com/keylinehq/keyline-backend/pkg/logger"
	"github.com/keylinehq/keyline-backend/pkg/storage"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type productFinder struct {
	db *gorm.DB
}

func (f productFinder) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := f.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

type routerStack struct {
	router http.Handler
	db     *gorm.DB
	store  *storage.Memory
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60},
		Inventory: config.InventoryConfig{
			MaxUploadBytes:      inventory.DefaultMaxUploadBytes,
			MaxLinesPerBatch:    inventory.DefaultMaxLinesPerBatch,
			ReservationAttempts: inventory.DefaultReservationAttempts,
		},
	}
}

func newRouterStack(t *testing.T, cfg *config.Config) *routerStack {
	t.Helper()

	dsn := fmt.Sprintf("file:routes_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if sqlDB, dbErr := db.DB(); dbErr == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(
		&models.Shop{},
		&models.Product{},
		&models.InventoryBatch{},
		&models.InventoryEvent{},
		&models.Order{},
		&models.OrderItem{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	store := storage.NewMemory()
	logg := logger.New(logger.Options{ServiceName: "routes-test", Output: io.Discard})

	invRepo := inventory.NewRepository(db)
	events := inventory.NewEventRepository(db)
	aggregator := inventory.NewAggregator(db, logg)
	reservation := inventory.NewReservationEngine(invRepo, store, logg, nil, cfg.Inventory.ReservationAttempts)
	mutation := inventory.NewMutationEngine(invRepo, events, aggregator, store, logg, nil,
		cfg.Inventory.MaxUploadBytes, cfg.Inventory.MaxLinesPerBatch)
	streamer := inventory.NewStreamer(invRepo, events, store, logg)
	invService := inventory.NewService(invRepo, events, reservation, mutation, streamer, aggregator, productFinder{db: db}, logg)

	orderService := orders.NewService(orders.NewRepository(db), invService, store, store, logg, 0)
	productService := products.NewService(products.NewRepository(db))

	router := NewRouter(cfg, logg, stubPinger{}, store, nil, productService, invService, orderService)
	return &routerStack{router: router, db: db, store: store}
}

func buildToken(t *testing.T, cfg *config.Config, role enums.ActorRole, shopID *uuid.UUID) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID: uuid.New(),
		ShopID: shopID,
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func seedShopAndProduct(t *testing.T, db *gorm.DB) (*models.Shop, *models.Product) {
	t.Helper()
	shop := &models.Shop{ID: uuid.New(), Name: "Shop", OwnerID: uuid.New(), Status: enums.ShopStatusActive}
	if err := db.Create(shop).Error; err != nil {
		t.Fatalf("create shop: %v", err)
	}
	product := &models.Product{
		ID:       uuid.New(),
		ShopID:   shop.ID,
		Title:    "Listing",
		Price:    decimal.NewFromFloat(2.00),
		IsActive: true,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return shop, product
}

func multipartUpload(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func decodeData(t *testing.T, body *bytes.Buffer, dest any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func errorCode(t *testing.T, body *bytes.Buffer) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return envelope.Error.Code
}

func TestHealthEndpoints(t *testing.T) {
	stack := newRouterStack(t, testConfig())

	for _, path := range []string{"/health/live", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		stack.router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	stack := newRouterStack(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	stack.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestPublicProductEndpoints(t *testing.T) {
	stack := newRouterStack(t, testConfig())
	shop, product := seedShopAndProduct(t, stack.db)

	req := httptest.NewRequest(http.MethodGet, "/api/public/v1/products/"+product.ID.String(), nil)
	resp := httptest.NewRecorder()
	stack.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/public/v1/products/"+uuid.NewString(), nil)
	resp = httptest.NewRecorder()
	stack.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/public/v1/shops/"+shop.ID.String()+"/products", nil)
	resp = httptest.NewRecorder()
	stack.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestPrivateGroupRejectsMissingJWT(t *testing.T) {
	stack := newRouterStack(t, testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	resp := httptest.NewRecorder()
	stack.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestSellerGroupRequiresSellerRole(t *testing.T) {
	cfg := testConfig()
	stack := newRouterStack(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/seller/inventory/history", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleBuyer, nil))
	resp := httptest.NewRecorder()
	stack.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for buyer got %d", resp.Code)
	}

	// Seller role without a shop claim is still blocked.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/seller/inventory/history", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleSeller, nil))
	resp = httptest.NewRecorder()
	stack.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without shop claim got %d", resp.Code)
	}
}

func TestSellerInventoryLifecycleOverHTTP(t *testing.T) {
	cfg := testConfig()
	stack := newRouterStack(t, cfg)
	shop, product := seedShopAndProduct(t, stack.db)
	token := buildToken(t, cfg, enums.ActorRoleSeller, &shop.ID)
	base := "/api/v1/seller/products/" + product.ID.String() + "/inventory"

	body, contentType := multipartUpload(t, "keys.txt", "a|1\nb|2\nc|3\n")
	req := httptest.NewRequest(http.MethodPost, base+"/", body)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	stack.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("upload: expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	var uploaded struct {
		StockCount int `json:"stockCount"`
	}
	decodeData(t, resp.Body, &uploaded)
	if uploaded.StockCount != 3 {
		t.Fatalf("expected stock 3 got %d", uploaded.StockCount)
	}

	req = httptest.NewRequest(http.MethodGet, base+"/export?scope=all", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp = httptest.NewRecorder()
	stack.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("export: expected 200 got %d", resp.Code)
	}
	if got := resp.Body.String(); got != "a|1\nb|2\nc|3\n" {
		t.Fatalf("unexpected export body %q", got)
	}
	if disp := resp.Header().Get("Content-Disposition"); !strings.Contains(disp, "attachment") {
		t.Fatalf("expected attachment disposition, got %q", disp)
	}

	deleteBody := strings.NewReader(`{"lines":["b"]}`)
	req = httptest.NewRequest(http.MethodDelete, base+"/", deleteBody)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp = httptest.NewRecorder()
	stack.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("delete: expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	var deleted struct {
		Removed    int `json:"removed"`
		StockCount int `json:"stockCount"`
	}
	decodeData(t, resp.Body, &deleted)
	if deleted.Removed != 1 || deleted.StockCount != 2 {
		t.Fatalf("unexpected delete result %+v", deleted)
	}

	req = httptest.NewRequest(http.MethodGet, base+"/history", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp = httptest.NewRecorder()
	stack.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("history: expected 200 got %d", resp.Code)
	}
	var history struct {
		Events []struct {
			Action string `json:"action"`
		} `json:"events"`
	}
	decodeData(t, resp.Body, &history)
	if len(history.Events) < 3 {
		t.Fatalf("expected upload, download and delete events, got %d", len(history.Events))
	}
	actions := map[string]bool{}
	for _, event := range history.Events {
		actions[event.Action] = true
	}
	// A full-content stream is audited as a download, not an export.
	if !actions["upload"] || !actions["download"] || !actions["delete"] {
		t.Fatalf("missing expected audit actions, got %v", actions)
	}
}

func TestSellerCannotTouchForeignProduct(t *testing.T) {
	cfg := testConfig()
	stack := newRouterStack(t, cfg)
	_, product := seedShopAndProduct(t, stack.db)
	otherShop := uuid.New()
	token := buildToken(t, cfg, enums.ActorRoleSeller, &otherShop)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/seller/products/"+product.ID.String()+"/inventory/batches", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	stack.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestPurchaseFlowOverHTTP(t *testing.T) {
	cfg := testConfig()
	stack := newRouterStack(t, cfg)
	shop, product := seedShopAndProduct(t, stack.db)

	sellerToken := buildToken(t, cfg, enums.ActorRoleSeller, &shop.ID)
	body, contentType := multipartUpload(t, "keys.txt", "acct|pass\n")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/seller/products/"+product.ID.String()+"/inventory/", body)
	req.Header.Set("Authorization", "Bearer "+sellerToken)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	stack.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("upload: expected 201 got %d", resp.Code)
	}

	buyerToken := buildToken(t, cfg, enums.ActorRoleBuyer, nil)
	purchase := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/purchases",
			strings.NewReader(fmt.Sprintf(`{"productId":%q}`, product.ID)))
		req.Header.Set("Authorization", "Bearer "+buyerToken)
		req.Header.Set("Content-Type", "application/json")
		resp := httptest.NewRecorder()
		stack.router.ServeHTTP(resp, req)
		return resp
	}

	resp = purchase()
	if resp.Code != http.StatusCreated {
		t.Fatalf("purchase: expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	var result struct {
		OrderID     uuid.UUID `json:"orderId"`
		OrderItemID uuid.UUID `json:"orderItemId"`
		DownloadURL string    `json:"downloadUrl"`
		StockCount  int       `json:"stockCount"`
	}
	decodeData(t, resp.Body, &result)
	if result.DownloadURL == "" || result.StockCount != 0 {
		t.Fatalf("unexpected purchase result %+v", result)
	}

	req = httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/api/v1/orders/%s/items/%s/download", result.OrderID, result.OrderItemID), nil)
	req.Header.Set("Authorization", "Bearer "+buyerToken)
	resp = httptest.NewRecorder()
	stack.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("download: expected 200 got %d", resp.Code)
	}

	resp = purchase()
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 when drained got %d", resp.Code)
	}
	if code := errorCode(t, resp.Body); code != "OUT_OF_STOCK" {
		t.Fatalf("unexpected error code %s", code)
	}
}
