package handlers

import (
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/bobbybaxter/poke-api-extension/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RequestLogger logs every request once it has been served.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logrus.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"latency":   time.Since(start),
			"client_ip": c.ClientIP(),
		})
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("Request completed")
		case status >= http.StatusBadRequest:
			entry.Warn("Request completed")
		default:
			entry.Info("Request completed")
		}
	}
}

// ErrorHandler renders errors attached with c.Error and recovers panics.
// Details are logged; clients see only the public message, plus the stack
// when development is true.
func ErrorHandler(development bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logrus.WithField("path", c.Request.URL.Path).Errorf("Panic recovered: %v\n%s", r, stack)
				if c.Writer.Written() {
					c.Abort()
					return
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("Internal Server Error", stack, development))
			}
		}()

		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		logrus.WithField("path", c.Request.URL.Path).Errorf("Request failed: %s", c.Errors.String())
		if c.Writer.Written() {
			return
		}

		status, message := http.StatusInternalServerError, "Internal Server Error"
		var httpErr *utils.HTTPError
		if errors.As(c.Errors.Last().Err, &httpErr) {
			status, message = httpErr.Status, httpErr.Message
		}
		c.JSON(status, errorBody(message, c.Errors.String(), development))
	}
}

// NotFound answers unknown routes.
func NotFound(c *gin.Context) {
	utils.SendErrorResponse(c, http.StatusNotFound, "Not Found")
}

func errorBody(message, stack string, development bool) gin.H {
	body := gin.H{"error": message}
	if development {
		body["stack"] = stack
	}
	return body
}
