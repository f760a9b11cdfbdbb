package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is the server-side record of an issued refresh token.
// Only the SHA-256 hash of the secret is stored.
type RefreshToken struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	TokenHash string    `db:"token_hash"`
	ExpiresAt time.Time `db:"expires_at"`
	Revoked   bool      `db:"revoked"`
	CreatedAt time.Time `db:"created_at"`
}

// NewRefreshToken builds an unsaved, active refresh token record.
func NewRefreshToken(userID, tokenHash string, expiresAt, now time.Time) *RefreshToken {
	return &RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		Revoked:   false,
		CreatedAt: now,
	}
}

// IsExpired reports whether the token is expired at the given instant.
// A token expiring exactly at now counts as expired.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// IsActive reports whether the token can still be presented.
func (t *RefreshToken) IsActive(now time.Time) bool {
	return !t.Revoked && !t.IsExpired(now)
}
