package auth

import "github.com/bobbybaxter/poke-api-extension/internal/models"

// RegisterRequest represents the request body for user registration.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50,username"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

// LoginRequest struct for handling login requests. Identifier is a username or an email.
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required,min=1,max=255"`
	Password   string `json:"password" binding:"required,min=1,max=128"`
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        UserIdentity `json:"user"`
}

// UserIdentity is the public view of the authenticated user
type UserIdentity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// RefreshResponse is returned by refresh
type RefreshResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

const TokenTypeBearer = "Bearer"

// NewAuthResponse builds the register/login body for user.
func NewAuthResponse(accessToken string, user *models.User) AuthResponse {
	return AuthResponse{
		AccessToken: accessToken,
		TokenType:   TokenTypeBearer,
		User: UserIdentity{
			ID:       user.ID,
			Username: user.Username,
			Email:    user.Email,
		},
	}
}
