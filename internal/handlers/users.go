package handlers

import (
	"errors"
	"net/http"

	"github.com/bobbybaxter/poke-api-extension/internal/auth"
	"github.com/bobbybaxter/poke-api-extension/internal/models"
	"github.com/bobbybaxter/poke-api-extension/internal/services"
	"github.com/bobbybaxter/poke-api-extension/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// UserHandler handles user-related HTTP requests. Users may only act on
// their own account.
type UserHandler struct {
	userService services.UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// GetUser handles fetching a user by their ID.
func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := h.ownID(c)
	if !ok {
		return
	}

	user, err := h.userService.GetUser(c.Request.Context(), id)
	if errors.Is(err, services.ErrUserNotFound) {
		utils.SendErrorResponse(c, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		utils.AbortWithError(c, http.StatusInternalServerError, "Failed to retrieve user", err)
		return
	}

	c.JSON(http.StatusOK, user.ToResponse())
}

// UpdateUser handles partial updates of a user's username or email.
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := h.ownID(c)
	if !ok {
		return
	}

	var update models.UserUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		utils.SendValidationError(c, err)
		return
	}
	if update.IsEmpty() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Validation failed",
			"details": []utils.FieldError{{Field: "body", Message: "at least one of username or email is required"}},
		})
		return
	}

	user, err := h.userService.UpdateUser(c.Request.Context(), id, update)
	switch {
	case errors.Is(err, services.ErrConflict):
		utils.SendErrorResponse(c, http.StatusConflict, "Username or email already taken")
		return
	case errors.Is(err, services.ErrUserNotFound):
		utils.SendErrorResponse(c, http.StatusNotFound, "User not found")
		return
	case err != nil:
		utils.AbortWithError(c, http.StatusInternalServerError, "Failed to update user", err)
		return
	}

	c.JSON(http.StatusOK, user.ToResponse())
}

// DeleteUser handles deleting a user. Their sessions end with them.
func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, ok := h.ownID(c)
	if !ok {
		return
	}

	err := h.userService.DeleteUser(c.Request.Context(), id)
	if errors.Is(err, services.ErrUserNotFound) {
		utils.SendErrorResponse(c, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		utils.AbortWithError(c, http.StatusInternalServerError, "Failed to delete user", err)
		return
	}

	utils.SendMessageResponse(c, http.StatusOK, "User deleted")
}

// ownID validates the :id path parameter and checks it names the caller.
func (h *UserHandler) ownID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if !utils.IsValidUUID(id) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Validation failed",
			"details": []utils.FieldError{{Field: "id", Message: "id must be a UUID", Value: id}},
		})
		return "", false
	}

	if requester := c.GetString(auth.ContextUserID); requester != id {
		logrus.Warnf("UserHandler: user %s attempted to access user %s", requester, id)
		utils.SendErrorResponse(c, http.StatusForbidden, "You can only access your own account")
		return "", false
	}
	return id, true
}
