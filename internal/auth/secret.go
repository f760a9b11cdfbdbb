package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const (
	refreshSecretBytes = 32
	tokenHashLength    = sha256.Size * 2
)

// HashSecret returns the lowercase hex SHA-256 digest of a refresh secret.
// Only this digest is ever stored.
func HashSecret(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// IsTokenHash reports whether s has the shape of a HashSecret result:
// 64 lowercase hex characters.
func IsTokenHash(s string) bool {
	if len(s) != tokenHashLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f') {
			return false
		}
	}
	return true
}

// NewRefreshSecret returns 256 random bits encoded as unpadded base64url.
// The encoding never satisfies IsTokenHash.
func NewRefreshSecret() (string, error) {
	buf := make([]byte, refreshSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("error generating refresh secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
