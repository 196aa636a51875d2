// Package config provides environment configuration for the chat
// client.
package config

import (
	"os"
	"strconv"
	"time"
)

// Store backend selectors.
const (
	StoreSync = "sync"
	StoreNATS = "nats"
	StoreNone = "none"
)

// Config holds all configuration for the engine.
type Config struct {
	// Chat endpoint
	ChatEndpoint string
	HTTPTimeout  time.Duration

	// Remote store
	StoreBackend string
	SyncURL      string
	NATSURL      string
	NATSToken    string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string

	// Credentials
	AccessToken string

	// Client identity
	Timezone     string
	DefaultModel string

	// Logging
	LogLevel string

	// Observability
	MetricsAddr     string
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Chat endpoint
		ChatEndpoint: getEnv("CHAT_ENDPOINT", "https://beta.t3.chat/api/chat"),
		HTTPTimeout:  getDurationEnv("CHAT_HTTP_TIMEOUT", 120*time.Second),

		// Remote store
		StoreBackend: getEnv("STORE_BACKEND", StoreSync),
		SyncURL:      getEnv("SYNC_URL", "wss://api.sync.t3.chat/api/sync"),
		NATSURL:      getEnv("NATS_URL", "nats://localhost:4222"),
		NATSToken:    getEnv("NATS_TOKEN", ""),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),

		// Credentials
		AccessToken: getEnv("ACCESS_TOKEN", ""),

		// Client identity
		Timezone:     getEnv("TIMEZONE", ""),
		DefaultModel: getEnv("MODEL", ""),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Observability
		MetricsAddr:     getEnv("METRICS_ADDR", ""),
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// Location resolves the configured timezone; empty means the system's
// local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
