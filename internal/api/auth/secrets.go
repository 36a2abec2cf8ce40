package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// SecretBox encrypts tenant GitHub tokens at rest with a symmetric key.
type SecretBox struct {
	key [32]byte
}

// NewSecretBox builds a box from a 64-character hex key.
func NewSecretBox(hexKey string) (*SecretBox, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(raw))
	}

	var box SecretBox
	copy(box.key[:], raw)
	return &box, nil
}

// Encrypt seals plaintext under a fresh random nonce. Output is
// base64(nonce || ciphertext), suitable for a text column.
func (b *SecretBox) Encrypt(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &b.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (b *SecretBox) Decrypt(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(sealed) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])

	plaintext, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &b.key)
	if !ok {
		return "", errors.New("decrypt failed")
	}
	return string(plaintext), nil
}
