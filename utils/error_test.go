package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	prev := Logger
	Logger = zap.NewNop()
	t.Cleanup(func() { Logger = prev })

	r := gin.New()
	r.Use(ErrorHandler())
	return r
}

func TestErrorHandlerRecoversPanic(t *testing.T) {
	r := newTestRouter(t)
	r.GET("/boom", func(c *gin.Context) { panic("sender exploded") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Internal Server Error", body.Message)
}

func TestJSONErrorStopsTheChain(t *testing.T) {
	r := newTestRouter(t)
	reached := false
	r.GET("/missing", func(c *gin.Context) {
		JSONError(c, http.StatusNotFound, "Notification not found", "n-1")
	}, func(c *gin.Context) { reached = true })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, reached)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, ErrorResponse{Message: "Notification not found", Details: "n-1"}, body)
}
