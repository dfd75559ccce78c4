package middleware

import (
	"net/http"
	"strings"

	"beacon/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func unauthorized(c *gin.Context, details string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, utils.ErrorResponse{
		Message: "Insufficient authorization",
		Details: details,
	})
}

// JWTAuthUserMiddleware accepts a bearer token signed with JWT_SECRET and stores its subject
// on the context under "userID".
func JWTAuthUserMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			// Browsers cannot set headers on a websocket upgrade.
			if token := c.Query("access_token"); token != "" && c.IsWebsocket() {
				authHeader = "Bearer " + token
			}
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			unauthorized(c, "missing bearer token")
			return
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if tokenString == "" {
			unauthorized(c, "missing bearer token")
			return
		}

		userID, err := utils.ExtractIDFromToken(tokenString)
		if err != nil || userID == "" {
			utils.GetLogger().Debug("Rejected bearer token", zap.String("ip", clientIP(c)), zap.Error(err))
			unauthorized(c, "invalid or expired token")
			return
		}

		c.Set("userID", userID)
		c.Next()
	}
}
