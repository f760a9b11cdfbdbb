package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/bobbybaxter/poke-api-extension/internal/models"
)

var (
	// ErrDuplicate is returned when a unique constraint (username, email, token hash) is violated.
	ErrDuplicate = errors.New("duplicate record")
	// ErrTxConflict is returned when a transaction lost a race with a concurrent one
	// and was rolled back (serialization failure or deadlock).
	ErrTxConflict = errors.New("transaction conflict")
)

// UserRepository defines the interface for user data operations.
// Lookups return (nil, nil) when no user matches.
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByUsernameOrEmail(ctx context.Context, identifier string) (*models.User, error)
	UpdateUser(ctx context.Context, id string, update models.UserUpdate) (*models.User, error)
	DeleteUser(ctx context.Context, id string) (bool, error)
	CheckUsernameExists(ctx context.Context, username string, excludeUserID string) (bool, error)
	CheckEmailExists(ctx context.Context, email string, excludeUserID string) (bool, error)
}

// RefreshTokenRepository defines the interface for refresh token data operations.
// Lookups return (nil, nil) when no token matches.
type RefreshTokenRepository interface {
	CreateToken(ctx context.Context, token *models.RefreshToken) error
	// FindActiveByHash matches the hash of a non-revoked token. Expiry is not checked.
	FindActiveByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	// FindActiveByHashAndOwner is FindActiveByHash scoped to one user.
	FindActiveByHashAndOwner(ctx context.Context, tokenHash, userID string) (*models.RefreshToken, error)
	// FindByHash matches the hash regardless of revocation.
	FindByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	MarkRevoked(ctx context.Context, id string) error
	RevokeByHash(ctx context.Context, tokenHash string) (int64, error)
	RevokeAllUserTokens(ctx context.Context, userID string) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
	// WithinTx runs fn against a transactional view of the repository. Writes made
	// through that view are discarded if fn returns an error.
	WithinTx(ctx context.Context, fn func(RefreshTokenRepository) error) error
}
