package utils

import (
	"testing"
	"time"

	"beacon/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withSecret(t *testing.T, secret string) {
	t.Helper()
	prev := config.AppConfig.JWTSecret
	config.AppConfig.JWTSecret = secret
	t.Cleanup(func() { config.AppConfig.JWTSecret = prev })
}

func TestGenerateAndExtract(t *testing.T) {
	withSecret(t, "test-secret")

	token, err := GenerateToken("user-1", time.Minute)
	require.NoError(t, err)

	id, err := ExtractIDFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id)
}

func TestExtractRejectsExpiredToken(t *testing.T) {
	withSecret(t, "test-secret")

	token, err := GenerateToken("user-1", -time.Minute)
	require.NoError(t, err)

	_, err = ExtractIDFromToken(token)
	assert.Error(t, err)
}

func TestExtractRejectsForeignSignature(t *testing.T) {
	withSecret(t, "one")
	token, err := GenerateToken("user-1", time.Minute)
	require.NoError(t, err)

	config.AppConfig.JWTSecret = "two"
	_, err = ExtractIDFromToken(token)
	assert.Error(t, err)
}
