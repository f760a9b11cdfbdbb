package handlers

import (
	"errors"
	"net/http"

	"github.com/bobbybaxter/poke-api-extension/internal/auth"
	"github.com/bobbybaxter/poke-api-extension/internal/services"
	"github.com/bobbybaxter/poke-api-extension/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AuthHandler handles authentication-related HTTP requests.
type AuthHandler struct {
	authService services.AuthService
	cookies     auth.CookiePolicy
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService services.AuthService, cookies auth.CookiePolicy) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cookies:     cookies,
	}
}

// Register handles user registration.
func (h *AuthHandler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err)
		return
	}

	res, err := h.authService.Register(c.Request.Context(), req)
	if errors.Is(err, services.ErrConflict) {
		utils.SendMessageResponse(c, http.StatusConflict, "User already exists")
		return
	}
	if err != nil {
		logrus.Errorf("Error registering user: %v", err)
		utils.SendMessageResponse(c, http.StatusInternalServerError, "Registration failed")
		return
	}

	h.cookies.AttachRefreshCookie(c.Writer, res.RefreshToken)
	c.JSON(http.StatusCreated, auth.NewAuthResponse(res.AccessToken, res.User))
}

// Login handles user login by username or email.
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err)
		return
	}

	res, err := h.authService.Login(c.Request.Context(), req.Identifier, req.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		utils.SendMessageResponse(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		logrus.Errorf("Error logging in user: %v", err)
		utils.SendMessageResponse(c, http.StatusInternalServerError, "Login failed")
		return
	}

	h.cookies.AttachRefreshCookie(c.Writer, res.RefreshToken)
	c.JSON(http.StatusOK, auth.NewAuthResponse(res.AccessToken, res.User))
}

// Refresh exchanges the refresh cookie for a new access token and rotates the cookie.
func (h *AuthHandler) Refresh(c *gin.Context) {
	raw, ok := h.cookies.ReadRefreshCookie(c.Request)
	if !ok {
		utils.SendMessageResponse(c, http.StatusUnauthorized, "Missing refresh token")
		return
	}

	res, ok, err := h.authService.Refresh(c.Request.Context(), raw)
	if err != nil {
		logrus.Errorf("Error refreshing token: %v", err)
		utils.SendMessageResponse(c, http.StatusInternalServerError, "Refresh failed")
		return
	}
	if !ok {
		h.cookies.ClearRefreshCookie(c.Writer)
		utils.SendMessageResponse(c, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	h.cookies.AttachRefreshCookie(c.Writer, res.RefreshToken)
	c.JSON(http.StatusOK, auth.RefreshResponse{
		AccessToken: res.AccessToken,
		TokenType:   auth.TokenTypeBearer,
	})
}

// Logout revokes the refresh cookie, if any, and clears it.
func (h *AuthHandler) Logout(c *gin.Context) {
	raw, _ := h.cookies.ReadRefreshCookie(c.Request)

	if err := h.authService.Logout(c.Request.Context(), raw); err != nil {
		logrus.Errorf("Error logging out user: %v", err)
		utils.SendMessageResponse(c, http.StatusInternalServerError, "Logout failed")
		return
	}

	h.cookies.ClearRefreshCookie(c.Writer)
	utils.SendMessageResponse(c, http.StatusOK, "Logged out")
}
