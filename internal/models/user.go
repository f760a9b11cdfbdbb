package models

import (
	"strings"
	"time"
)

// User represents an account that can authenticate against the API
type User struct {
	ID           string    `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// UserUpdate enumerates the fields a user may change about themselves.
// Nil fields are left untouched.
type UserUpdate struct {
	Username *string `json:"username,omitempty" binding:"omitempty,min=3,max=50,username"`
	Email    *string `json:"email,omitempty" binding:"omitempty,email,max=255"`
}

// IsEmpty reports whether the update carries no changes.
func (u UserUpdate) IsEmpty() bool {
	return u.Username == nil && u.Email == nil
}

// UserResponse is a simplified struct for API responses, omitting sensitive fields
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// ToResponse converts a User to UserResponse
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

// NormalizeEmail returns the stored form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
