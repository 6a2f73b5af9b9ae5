package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// scopedKeyLen keeps derived keys at a UUID-like length.
const scopedKeyLen = 36

// Fingerprint returns the SHA-256 hex digest of the canonical form of a JSON
// body. The body is decoded and re-encoded so that object keys come out
// sorted: two payloads that differ only in field order hash identically.
func Fingerprint(body []byte) (string, error) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return "", fmt.Errorf("fingerprint: invalid json body: %w", err)
	}

	canonical, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("fingerprint: failed to canonicalize body: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// DeriveScopedKey derives a stable downstream idempotency key from the
// client-supplied key and an operation scope ("payment", "delivery", ...).
// The same inputs always produce the same output, and different scopes for
// the same base key never collide with each other or with the base key.
func DeriveScopedKey(baseKey, scope string) string {
	sum := sha256.Sum256([]byte(baseKey + ":" + scope))
	return hex.EncodeToString(sum[:])[:scopedKeyLen]
}
