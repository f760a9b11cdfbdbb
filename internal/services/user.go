package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/bobbybaxter/poke-api-extension/internal/models"
	"github.com/bobbybaxter/poke-api-extension/internal/repositories"
	"github.com/sirupsen/logrus"
)

// UserService provides business logic for user management.
type UserService interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	UpdateUser(ctx context.Context, id string, update models.UserUpdate) (*models.User, error)
	DeleteUser(ctx context.Context, id string) error
}

type userService struct {
	userRepo repositories.UserRepository
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repositories.UserRepository) UserService {
	return &userService{
		userRepo: userRepo,
	}
}

// GetUser retrieves a user by ID.
func (s *userService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.userRepo.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UpdateUser updates an existing user.
func (s *userService) UpdateUser(ctx context.Context, id string, update models.UserUpdate) (*models.User, error) {
	// Check for duplicate username/email if they are being updated
	if update.Username != nil {
		exists, err := s.userRepo.CheckUsernameExists(ctx, *update.Username, id)
		if err != nil {
			return nil, fmt.Errorf("failed to check username existence during update: %w", err)
		}
		if exists {
			return nil, ErrConflict
		}
	}
	if update.Email != nil {
		email := models.NormalizeEmail(*update.Email)
		update.Email = &email
		exists, err := s.userRepo.CheckEmailExists(ctx, *update.Email, id)
		if err != nil {
			return nil, fmt.Errorf("failed to check email existence during update: %w", err)
		}
		if exists {
			return nil, ErrConflict
		}
	}

	user, err := s.userRepo.UpdateUser(ctx, id, update)
	if errors.Is(err, repositories.ErrDuplicate) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("service: failed to update user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// DeleteUser deletes a user by their ID. Their refresh tokens go with them.
func (s *userService) DeleteUser(ctx context.Context, id string) error {
	deleted, err := s.userRepo.DeleteUser(ctx, id)
	if err != nil {
		return fmt.Errorf("service: failed to delete user: %w", err)
	}
	if !deleted {
		return ErrUserNotFound
	}
	logrus.WithField("user_id", id).Info("Deleted user")
	return nil
}
