package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/bobbybaxter/poke-api-extension/internal/models"
	"github.com/bobbybaxter/poke-api-extension/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Context keys set by Authenticate.
const (
	ContextUserID   = "userID"
	ContextUsername = "username"
)

// UserLookup resolves the subject of an access token. A nil user means the
// account no longer exists.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Authenticate validates the bearer access token and checks that its subject
// still exists before letting the request through.
func Authenticate(codec *TokenCodec, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			utils.SendErrorResponse(c, http.StatusUnauthorized, "Missing Bearer token")
			c.Abort()
			return
		}

		claims, err := codec.Verify(tokenString)
		if err != nil {
			logrus.Debugf("Authenticate: rejected access token: %v", err)
			utils.SendMessageResponse(c, http.StatusUnauthorized, "Unauthorized")
			c.Abort()
			return
		}

		user, err := users.GetUserByID(c.Request.Context(), claims.Subject)
		if err != nil {
			utils.AbortWithError(c, http.StatusInternalServerError, "Internal Server Error", err)
			return
		}
		if user == nil {
			logrus.Warnf("Authenticate: token subject %s no longer exists", claims.Subject)
			utils.SendErrorResponse(c, http.StatusUnauthorized, "User not found")
			c.Abort()
			return
		}

		c.Set(ContextUserID, user.ID)
		c.Set(ContextUsername, user.Username)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || scheme != "Bearer" {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
