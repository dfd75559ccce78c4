package middleware

import (
	"net"

	"github.com/gin-gonic/gin"
)

// clientIP is the caller's address as gin resolves it. X-Forwarded-For and X-Real-IP only
// count when the direct peer is one of the engine's trusted proxies.
func clientIP(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil {
		return host
	}
	return c.Request.RemoteAddr
}
