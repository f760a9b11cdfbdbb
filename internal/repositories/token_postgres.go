package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bobbybaxter/poke-api-extension/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

const tokenColumns = `id, user_id, token_hash, expires_at, revoked, created_at`

// PostgresRefreshTokenRepository implements RefreshTokenRepository for PostgreSQL
type PostgresRefreshTokenRepository struct {
	db        *sqlx.DB
	ext       sqlx.ExtContext
	inTx      bool
	isolation sql.IsolationLevel
}

// NewPostgresRefreshTokenRepository creates a new instance of PostgresRefreshTokenRepository.
// isolation is used for transactions opened by WithinTx.
func NewPostgresRefreshTokenRepository(db *sqlx.DB, isolation sql.IsolationLevel) *PostgresRefreshTokenRepository {
	return &PostgresRefreshTokenRepository{db: db, ext: db, isolation: isolation}
}

// CreateToken inserts a new refresh token record
func (repo *PostgresRefreshTokenRepository) CreateToken(ctx context.Context, token *models.RefreshToken) error {
	_, err := repo.ext.ExecContext(ctx, `
        INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, revoked, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		token.ID, token.UserID, token.TokenHash, token.ExpiresAt, token.Revoked, token.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating refresh token: %w", classifyPQError(err))
	}
	return nil
}

// FindActiveByHash retrieves a non-revoked refresh token by hash
func (repo *PostgresRefreshTokenRepository) FindActiveByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	return repo.getOne(ctx, `SELECT `+tokenColumns+` FROM refresh_tokens
        WHERE token_hash = $1 AND revoked = FALSE`, tokenHash)
}

// FindActiveByHashAndOwner retrieves a non-revoked refresh token owned by userID.
// Inside a transaction the row stays locked until commit or rollback.
func (repo *PostgresRefreshTokenRepository) FindActiveByHashAndOwner(ctx context.Context, tokenHash, userID string) (*models.RefreshToken, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, nil
	}
	query := `SELECT ` + tokenColumns + ` FROM refresh_tokens
        WHERE token_hash = $1 AND user_id = $2 AND revoked = FALSE`
	if repo.inTx {
		query += ` FOR UPDATE`
	}
	return repo.getOne(ctx, query, tokenHash, userID)
}

// FindByHash retrieves a refresh token by hash whether or not it is revoked
func (repo *PostgresRefreshTokenRepository) FindByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	return repo.getOne(ctx, `SELECT `+tokenColumns+` FROM refresh_tokens WHERE token_hash = $1`, tokenHash)
}

func (repo *PostgresRefreshTokenRepository) getOne(ctx context.Context, query string, args ...interface{}) (*models.RefreshToken, error) {
	var rt models.RefreshToken
	err := sqlx.GetContext(ctx, repo.ext, &rt, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Token not found
	}
	if err != nil {
		return nil, fmt.Errorf("error querying refresh token: %w", err)
	}
	return &rt, nil
}

// MarkRevoked revokes a single token by id. Revoking twice is not an error.
func (repo *PostgresRefreshTokenRepository) MarkRevoked(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return nil
	}
	if _, err := repo.ext.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE id = $1`, id); err != nil {
		return fmt.Errorf("error revoking refresh token: %w", err)
	}
	return nil
}

// RevokeByHash revokes every token with the given hash and returns how many changed
func (repo *PostgresRefreshTokenRepository) RevokeByHash(ctx context.Context, tokenHash string) (int64, error) {
	return repo.execCount(ctx, "error revoking refresh token",
		`UPDATE refresh_tokens SET revoked = TRUE WHERE token_hash = $1 AND revoked = FALSE`, tokenHash)
}

// RevokeAllUserTokens revokes all tokens for a specific user
func (repo *PostgresRefreshTokenRepository) RevokeAllUserTokens(ctx context.Context, userID string) (int64, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return 0, nil
	}
	return repo.execCount(ctx, "error revoking all user refresh tokens",
		`UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1 AND revoked = FALSE`, userID)
}

// DeleteExpired removes tokens that expired before the cutoff
func (repo *PostgresRefreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	return repo.execCount(ctx, "error deleting expired refresh tokens",
		`DELETE FROM refresh_tokens WHERE expires_at < $1`, before)
}

func (repo *PostgresRefreshTokenRepository) execCount(ctx context.Context, op, query string, args ...interface{}) (int64, error) {
	result, err := repo.ext.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error checking rows affected: %w", err)
	}
	return rowsAffected, nil
}

// WithinTx runs fn inside a database transaction. Nested calls reuse the
// enclosing transaction.
func (repo *PostgresRefreshTokenRepository) WithinTx(ctx context.Context, fn func(RefreshTokenRepository) error) error {
	if repo.inTx {
		return fn(repo)
	}

	tx, err := repo.db.BeginTxx(ctx, &sql.TxOptions{Isolation: repo.isolation})
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	txRepo := &PostgresRefreshTokenRepository{db: repo.db, ext: tx, inTx: true, isolation: repo.isolation}
	if err := fn(txRepo); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logrus.Warnf("Failed to roll back refresh token transaction: %v", rbErr)
		}
		return classifyPQError(err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", classifyPQError(err))
	}
	return nil
}
