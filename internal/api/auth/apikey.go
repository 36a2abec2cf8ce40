// Package auth covers API key issuance and verification, PAT
// encryption at rest, and the request authentication middleware.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"
)

const apiKeyPrefix = "cm_"

// GenerateAPIKey mints a new tenant API key. The plaintext key is
// returned exactly once; only its hash and display prefix are stored.
func GenerateAPIKey() (key, hash, prefix string, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", "", fmt.Errorf("generate api key: %w", err)
	}

	encoded := strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw))
	key = apiKeyPrefix + encoded
	return key, HashAPIKey(key), key[:len(apiKeyPrefix)+8], nil
}

// HashAPIKey returns the stored form of an API key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
