package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"beacon/config"
	"beacon/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("userID"))
	})
	return r
}

func TestJWTAuthSetsUserID(t *testing.T) {
	config.AppConfig.JWTSecret = "middleware-secret"
	token, err := utils.GenerateToken("u1", time.Hour)
	require.NoError(t, err)
	r := newEngine(JWTAuthUserMiddleware())

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", w.Body.String())
}

func TestJWTAuthRejects(t *testing.T) {
	config.AppConfig.JWTSecret = "middleware-secret"
	expired, err := utils.GenerateToken("u1", -time.Minute)
	require.NoError(t, err)
	r := newEngine(JWTAuthUserMiddleware())

	for name, header := range map[string]string{
		"missing": "",
		"scheme":  "Basic dTE6cHc=",
		"garbage": "Bearer abc.def.ghi",
		"expired": "Bearer " + expired,
	} {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, name)
	}
}

func TestQueryTokenOnlyForWebsocket(t *testing.T) {
	config.AppConfig.JWTSecret = "middleware-secret"
	token, err := utils.GenerateToken("u1", time.Hour)
	require.NoError(t, err)
	r := newEngine(JWTAuthUserMiddleware())

	req := httptest.NewRequest(http.MethodGet, "/whoami?access_token="+token, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/whoami?access_token="+token, nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

// httptest requests arrive from 192.0.2.1.
const peer = "192.0.2.1"

func TestRateLimitPerClientIP(t *testing.T) {
	r := newEngine(RateLimitMiddleware(2))
	require.NoError(t, r.SetTrustedProxies([]string{peer}))

	hit := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("X-Forwarded-For", ip)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, hit("203.0.113.7"))
	assert.Equal(t, http.StatusOK, hit("203.0.113.7"))
	assert.Equal(t, http.StatusTooManyRequests, hit("203.0.113.7"))
	assert.Equal(t, http.StatusOK, hit("198.51.100.2"))
}

func TestForwardedForIgnoredFromUntrustedPeer(t *testing.T) {
	r := newEngine(RateLimitMiddleware(2))
	require.NoError(t, r.SetTrustedProxies(nil))

	hit := func(spoofed string) int {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("X-Forwarded-For", spoofed)
		req.Header.Set("X-Real-IP", spoofed)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, hit("203.0.113.7"))
	assert.Equal(t, http.StatusOK, hit("198.51.100.2"))
	assert.Equal(t, http.StatusTooManyRequests, hit("198.51.100.3"), "rotating the header does not reset the limit")
}

func TestClientIPUsesTrustedProxyChain(t *testing.T) {
	r := gin.New()
	require.NoError(t, r.SetTrustedProxies([]string{peer, "10.0.0.0/8"}))
	r.GET("/ip", func(c *gin.Context) { c.String(http.StatusOK, clientIP(c)) })

	req := httptest.NewRequest(http.MethodGet, "/ip", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.9, 203.0.113.7, 10.1.2.3")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "203.0.113.7", w.Body.String(), "the first untrusted hop from the right is the client")
}
