package inventory

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// KeyDelimiter separates a line's key prefix from the rest of its content.
const KeyDelimiter = "|"

// SplitLines converts a blob body into its ordered list of trimmed, non-empty
// lines. CRLF and lone CR terminators are normalized before splitting so a
// Windows-authored upload round-trips identically.
func SplitLines(raw string) []string {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	var lines []string
	for _, line := range strings.Split(normalized, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// JoinLines rejoins a line list into the canonical blob body.
func JoinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

// LineKey returns the substring before the first delimiter. A line without a
// delimiter is its own key.
func LineKey(line string) string {
	if idx := strings.Index(line, KeyDelimiter); idx >= 0 {
		return line[:idx]
	}
	return line
}

// LineAt returns the line at the given 0-indexed position, or false when the
// index falls outside the list.
func LineAt(lines []string, index int) (string, bool) {
	if index < 0 || index >= len(lines) {
		return "", false
	}
	return lines[index], true
}

// Checksum returns the hex-encoded SHA-256 digest of a blob body.
func Checksum(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
