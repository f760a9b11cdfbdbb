package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bobbybaxter/poke-api-extension/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const userColumns = `id, username, email, password_hash, created_at, updated_at`

// PostgresUserRepository implements UserRepository for PostgreSQL
type PostgresUserRepository struct {
	db *sqlx.DB
}

// NewPostgresUserRepository creates a new instance of PostgresUserRepository
func NewPostgresUserRepository(db *sqlx.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

// CreateUser inserts a new user, assigning its ID and timestamps.
func (repo *PostgresUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	if user.Username == "" || user.Email == "" {
		return errors.New("username and email are required")
	}

	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt

	_, err := repo.db.ExecContext(ctx, `
        INSERT INTO users (id, username, email, password_hash, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Username, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating user: %w", classifyPQError(err))
	}
	return nil
}

// GetUserByID retrieves a user by their ID
func (repo *PostgresUserRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil // not a key that can exist
	}
	var u models.User
	err := repo.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying user by ID: %w", err)
	}
	return &u, nil
}

// GetUserByUsernameOrEmail retrieves a user whose username or email equals identifier,
// ignoring case (used for login)
func (repo *PostgresUserRepository) GetUserByUsernameOrEmail(ctx context.Context, identifier string) (*models.User, error) {
	var u models.User
	err := repo.db.GetContext(ctx, &u, `
        SELECT `+userColumns+` FROM users
        WHERE lower(username) = lower($1) OR lower(email) = lower($1)
        ORDER BY (lower(username) = lower($1)) DESC
        LIMIT 1`, identifier)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying user by identifier: %w", err)
	}
	return &u, nil
}

// UpdateUser applies the non-nil fields of update and returns the stored user.
func (repo *PostgresUserRepository) UpdateUser(ctx context.Context, id string, update models.UserUpdate) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	if update.IsEmpty() {
		return repo.GetUserByID(ctx, id)
	}

	updates := []string{}
	args := []interface{}{}
	argCounter := 1

	if update.Username != nil {
		updates = append(updates, fmt.Sprintf("username = $%d", argCounter))
		args = append(args, *update.Username)
		argCounter++
	}
	if update.Email != nil {
		updates = append(updates, fmt.Sprintf("email = $%d", argCounter))
		args = append(args, *update.Email)
		argCounter++
	}

	updates = append(updates, fmt.Sprintf("updated_at = $%d", argCounter))
	args = append(args, time.Now().UTC())
	argCounter++

	updateQuery := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d RETURNING %s",
		strings.Join(updates, ", "), argCounter, userColumns)
	args = append(args, id)

	var updated models.User
	err := repo.db.GetContext(ctx, &updated, updateQuery, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error updating user: %w", classifyPQError(err))
	}
	return &updated, nil
}

// DeleteUser removes a user; their refresh tokens go with them (ON DELETE CASCADE).
func (repo *PostgresUserRepository) DeleteUser(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}
	result, err := repo.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("error deleting user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error checking rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// CheckUsernameExists checks for a case-insensitive duplicate username, excluding a specific user
func (repo *PostgresUserRepository) CheckUsernameExists(ctx context.Context, username string, excludeUserID string) (bool, error) {
	return repo.exists(ctx, "username", username, excludeUserID)
}

// CheckEmailExists checks for a case-insensitive duplicate email, excluding a specific user
func (repo *PostgresUserRepository) CheckEmailExists(ctx context.Context, email string, excludeUserID string) (bool, error) {
	return repo.exists(ctx, "email", email, excludeUserID)
}

// column is always a package constant, never user input.
func (repo *PostgresUserRepository) exists(ctx context.Context, column, value, excludeUserID string) (bool, error) {
	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM users WHERE lower(%s) = lower($1)", column)
	args := []interface{}{value}

	if excludeUserID != "" {
		query += " AND id != $2"
		args = append(args, excludeUserID)
	}

	if err := repo.db.GetContext(ctx, &count, query, args...); err != nil {
		return false, fmt.Errorf("error checking %s existence: %w", column, err)
	}
	return count > 0, nil
}
