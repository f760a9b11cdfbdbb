package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bobbybaxter/poke-api-extension/internal/auth"
	"github.com/bobbybaxter/poke-api-extension/internal/models"
	"github.com/bobbybaxter/poke-api-extension/internal/repositories"
	"github.com/sirupsen/logrus"
)

// AuthResult is what a successful register, login or refresh hands back to the transport.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	User         *models.User
}

// AuthService provides authentication-related business logic.
type AuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*AuthResult, error)
	Login(ctx context.Context, identifier, password string) (*AuthResult, error)
	// Refresh exchanges a raw refresh secret for a new token pair. ok is false
	// when the secret is not an active token of an existing user.
	Refresh(ctx context.Context, raw string) (*AuthResult, bool, error)
	Logout(ctx context.Context, raw string) error
}

type authService struct {
	userRepo repositories.UserRepository
	tokens   *TokenService
	hasher   auth.PasswordHasher

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, tokens *TokenService, hasher auth.PasswordHasher) AuthService {
	return &authService{
		userRepo: userRepo,
		tokens:   tokens,
		hasher:   hasher,
	}
}

// Register creates the user and signs them in.
func (s *authService) Register(ctx context.Context, req auth.RegisterRequest) (*AuthResult, error) {
	req.Email = models.NormalizeEmail(req.Email)

	usernameExists, err := s.userRepo.CheckUsernameExists(ctx, req.Username, "")
	if err != nil {
		return nil, fmt.Errorf("failed to check username existence: %w", err)
	}
	emailExists, err := s.userRepo.CheckEmailExists(ctx, req.Email, "")
	if err != nil {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}
	if usernameExists || emailExists {
		return nil, ErrConflict
	}

	hashedPassword, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hashedPassword,
	}
	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to create user in repository: %w", err)
	}
	logrus.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Info("Registered user")

	return s.signIn(ctx, user)
}

// Login authenticates a user by username or email.
func (s *authService) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	user, err := s.userRepo.GetUserByUsernameOrEmail(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		// keep the timing of unknown identifiers close to a wrong password
		s.hasher.Verify(password, s.dummyPasswordHash())
		logrus.Debugf("AuthService.Login: no user matches the identifier")
		return nil, ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		logrus.Debugf("AuthService.Login: password mismatch for user '%s'", user.ID)
		return nil, ErrInvalidCredentials
	}

	return s.signIn(ctx, user)
}

// Refresh resolves the owner of the refresh secret, rotates it and signs a
// new access token.
func (s *authService) Refresh(ctx context.Context, raw string) (*AuthResult, bool, error) {
	userID, ok, err := s.tokens.UserIDFromRefresh(ctx, raw)
	if err != nil || !ok {
		return nil, false, err
	}

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		logrus.Warnf("AuthService.Refresh: refresh token owner %s no longer exists", userID)
		return nil, false, nil
	}

	newRaw, ok, err := s.tokens.RotateRefreshToken(ctx, raw, userID)
	if err != nil || !ok {
		return nil, false, err
	}

	accessToken, err := s.tokens.SignAccessToken(user)
	if err != nil {
		return nil, false, fmt.Errorf("failed to generate access token: %w", err)
	}
	return &AuthResult{AccessToken: accessToken, RefreshToken: newRaw, User: user}, true, nil
}

// Logout revokes the presented refresh secret. An empty secret is a no-op.
func (s *authService) Logout(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	return s.tokens.RevokeRefreshToken(ctx, raw)
}

func (s *authService) signIn(ctx context.Context, user *models.User) (*AuthResult, error) {
	accessToken, err := s.tokens.SignAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refreshToken, err := s.tokens.IssueRefreshToken(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return &AuthResult{AccessToken: accessToken, RefreshToken: refreshToken, User: user}, nil
}

func (s *authService) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		hashed, err := s.hasher.Hash("not-a-real-password")
		if err != nil {
			logrus.Warnf("AuthService: could not prepare dummy password hash: %v", err)
			return
		}
		s.dummyHash = hashed
	})
	return s.dummyHash
}
