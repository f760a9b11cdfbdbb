package utils

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SendMessageResponse writes {"message": message}.
func SendMessageResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{"message": message})
}

// SendErrorResponse writes {"error": message}.
func SendErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{"error": message})
}

// HTTPError is attached to a gin context with c.Error so that the error
// handler can render Message with Status while logging Err in full.
type HTTPError struct {
	Status  int
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%d %s", e.Status, e.Message)
	}
	return fmt.Sprintf("%d %s: %v", e.Status, e.Message, e.Err)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// AbortWithError records err for the error handler and stops the chain
// without writing a response.
func AbortWithError(c *gin.Context, statusCode int, message string, err error) {
	if statusCode == 0 {
		statusCode = http.StatusInternalServerError
	}
	_ = c.Error(&HTTPError{Status: statusCode, Message: message, Err: err})
	c.Abort()
}
