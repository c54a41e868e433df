package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

func SHA256Hex(b []byte) string {
	x := sha256.Sum256(b)
	return hex.EncodeToString(x[:])
}

// SpanKey hashes text after case folding and whitespace collapsing, so two
// chunks carrying the same passage produce the same key.
func SpanKey(text string) string {
	norm := strings.ToLower(strings.Join(strings.Fields(text), " "))
	if norm == "" {
		return ""
	}
	return SHA256Hex([]byte(norm))
}
