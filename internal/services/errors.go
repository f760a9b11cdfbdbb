package services

import "errors"

var (
	// ErrUserNotFound is returned when the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrConflict is returned when a username or email is already taken.
	ErrConflict = errors.New("username or email already exists")
	// ErrInvalidCredentials covers unknown identifiers and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
