package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, DefaultHTTPURL, cfg.HTTPURL)
	assert.Equal(t, DefaultWSSURL, cfg.WSSURL)
	assert.Equal(t, 99, cfg.DirectPort)
	assert.Equal(t, 10*time.Second, cfg.DirectTimeout)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("WAKELINK_HTTP_URL", "https://relay.example.org")
	t.Setenv("WAKELINK_WSS_URL", "wss://relay.example.org")
	t.Setenv("WAKELINK_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("WAKELINK_DEVICE_ID", "WL123ABC")
	t.Setenv("WAKELINK_TCP_PORT", "2099")
	t.Setenv("WAKELINK_TIMEOUT", "5")
	t.Setenv("WAKELINK_LOG_LEVEL", "debug")

	cfg := Load()
	assert.Equal(t, "https://relay.example.org", cfg.HTTPURL)
	assert.Equal(t, 2099, cfg.DirectPort)
	assert.Equal(t, 5*time.Second, cfg.DirectTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)

	d := cfg.Device()
	assert.Equal(t, "WL123ABC", d.DeviceID)
	assert.Equal(t, "wss://relay.example.org", d.WSSURL)
	assert.True(t, d.Cloud())
}

func TestLoadDurationSyntax(t *testing.T) {
	t.Setenv("WAKELINK_TIMEOUT", "1500ms")
	assert.Equal(t, 1500*time.Millisecond, Load().DirectTimeout)

	t.Setenv("WAKELINK_TIMEOUT", "not-a-duration")
	assert.Equal(t, 10*time.Second, Load().DirectTimeout)
}
