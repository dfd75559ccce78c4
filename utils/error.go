package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every non-2xx API answer. Clients decode it to decide
// whether a queued request is worth retrying.
type ErrorResponse struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// requestFields identifies the request in error logs.
func requestFields(c *gin.Context) []zap.Field {
	fields := []zap.Field{zap.String("path", c.FullPath()), zap.String("method", c.Request.Method)}
	if userID := c.GetString("userID"); userID != "" {
		fields = append(fields, zap.String("userID", userID))
	}
	return fields
}

// ErrorHandler recovers handler panics into a 500 ErrorResponse.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				HandlerPanics.Inc()
				GetLogger().Error("Unhandled panic", append(requestFields(c), zap.Any("error", err))...)

				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
					Message: "Internal Server Error",
					Details: "An unexpected error occurred. Please try again later.",
				})
			}
		}()
		c.Next()
	}
}

// JSONError writes an ErrorResponse. Server errors log at error level, client errors at warn.
func JSONError(c *gin.Context, status int, message string, details string) {
	fields := append(requestFields(c), zap.Int("status", status), zap.String("details", details))
	if status >= http.StatusInternalServerError {
		GetLogger().Error(message, fields...)
	} else {
		GetLogger().Warn(message, fields...)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Message: message, Details: details})
}
