package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChannels(t *testing.T) {
	c := Config{SupportedChannels: " in_app, push ,,email "}
	assert.Equal(t, []string{"in_app", "push", "email"}, c.Channels())

	assert.Empty(t, Config{}.Channels())
}

func TestOriginsAndProxies(t *testing.T) {
	assert.Equal(t, []string{"*"}, Config{}.Origins())
	c := Config{AllowedOrigins: "https://ward.example.com, https://admin.example.com", TrustedProxies: "10.0.0.0/8"}
	assert.Equal(t, []string{"https://ward.example.com", "https://admin.example.com"}, c.Origins())
	assert.Equal(t, []string{"10.0.0.0/8"}, c.Proxies())
	assert.Empty(t, Config{}.Proxies())
}

func TestLocation(t *testing.T) {
	assert.Equal(t, time.UTC, Config{}.Location())
	assert.Equal(t, time.UTC, Config{DefaultTimezone: "Mars/Olympus"}.Location())
	assert.Equal(t, "Africa/Nairobi", Config{DefaultTimezone: "Africa/Nairobi"}.Location().String())
}

func TestTransportToggles(t *testing.T) {
	prev := AppConfig
	t.Cleanup(func() { AppConfig = prev })

	AppConfig = Config{}
	assert.False(t, FCMEnabled())
	assert.False(t, WebPushEnabled())

	AppConfig = Config{FirebaseCredentialsFile: "sa.json", VAPIDPublicKey: "pub", VAPIDPrivateKey: "priv"}
	assert.True(t, FCMEnabled())
	assert.True(t, WebPushEnabled())
}
