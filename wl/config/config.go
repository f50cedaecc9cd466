// Package config loads process-level WakeLink settings from the environment,
// with an optional .env file for development setups. Every value has a
// working default; the environment only overrides.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/deadboizxc/wakelink/wl/device"
	"github.com/deadboizxc/wakelink/wl/transport"
)

const (
	// DefaultHTTPURL and DefaultWSSURL point at the public relay.
	DefaultHTTPURL = "https://wakelink.deadboizxc.org"
	DefaultWSSURL  = "wss://wakelink.deadboizxc.org"
)

// Config carries the process defaults fed into transport selection plus the
// single-device identity used by the bundled tools.
type Config struct {
	HTTPURL string
	WSSURL  string

	Secret   string
	DeviceID string
	APIToken string

	IP            string
	DirectPort    int
	DirectTimeout time.Duration

	LogLevel slog.Level
}

// Load reads WAKELINK_* variables, first folding in a .env file when one
// exists in the working directory.
func Load() Config {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	return Config{
		HTTPURL:       getenv("WAKELINK_HTTP_URL", DefaultHTTPURL),
		WSSURL:        getenv("WAKELINK_WSS_URL", DefaultWSSURL),
		Secret:        os.Getenv("WAKELINK_SECRET"),
		DeviceID:      os.Getenv("WAKELINK_DEVICE_ID"),
		APIToken:      os.Getenv("WAKELINK_API_TOKEN"),
		IP:            os.Getenv("WAKELINK_DEVICE_IP"),
		DirectPort:    getenvInt("WAKELINK_TCP_PORT", transport.DefaultDirectPort),
		DirectTimeout: getenvDuration("WAKELINK_TIMEOUT", transport.DefaultDirectTimeout),
		LogLevel:      parseLevel(os.Getenv("WAKELINK_LOG_LEVEL")),
	}
}

// Device builds a descriptor for the configured single device.
func (c Config) Device() device.Descriptor {
	return device.Descriptor{
		Name:     c.DeviceID,
		IP:       c.IP,
		Port:     c.DirectPort,
		Secret:   c.Secret,
		DeviceID: c.DeviceID,
		APIToken: c.APIToken,
		HTTPURL:  c.HTTPURL,
		WSSURL:   c.WSSURL,
	}.Normalize()
}

// TransportOptions folds the config into selector options.
func (c Config) TransportOptions(logger *slog.Logger) transport.Options {
	return transport.Options{
		DefaultHTTPURL: c.HTTPURL,
		DefaultWSSURL:  c.WSSURL,
		DefaultPort:    c.DirectPort,
		DirectTimeout:  c.DirectTimeout,
		Logger:         logger,
	}
}

// Logger builds a text logger at the configured level.
func (c Config) Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: c.LogLevel}))
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	// Accept both bare seconds and Go duration syntax.
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func parseLevel(v string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return slog.LevelInfo
	}
	return level
}
