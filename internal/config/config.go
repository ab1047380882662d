// Package config provides environment configuration for the relay and agent.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// Relay settings
	BroadcastSecret string
	ClientSendBuf   int

	// NATS bridge settings (optional, empty URL disables the bridge)
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string
	NATSSubject  string

	// Client settings
	RelayURL           string
	EventLogCap        int
	HeartbeatInterval  time.Duration
	PresenceStaleAfter time.Duration
	PresenceSweepEvery time.Duration
	CursorStaleAfter   time.Duration
	CursorThrottle     time.Duration

	// Reconnect backoff
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration

	// Identity persistence
	IdentityPath string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),

		// Relay
		BroadcastSecret: getEnv("BROADCAST_SECRET", ""),
		ClientSendBuf:   getIntEnv("CLIENT_SEND_BUF", 256),

		// NATS bridge
		NATSURL:      getEnv("NATS_URL", ""),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),
		NATSSubject:  getEnv("NATS_SUBJECT", "relay.broadcast"),

		// Client
		RelayURL:           getEnv("RELAY_URL", "ws://localhost:8080/ws"),
		EventLogCap:        getIntEnv("EVENT_LOG_CAP", 50),
		HeartbeatInterval:  getDurationEnv("HEARTBEAT_INTERVAL", 25*time.Second),
		PresenceStaleAfter: getDurationEnv("PRESENCE_STALE_AFTER", 10*time.Second),
		PresenceSweepEvery: getDurationEnv("PRESENCE_SWEEP_EVERY", 2*time.Second),
		CursorStaleAfter:   getDurationEnv("CURSOR_STALE_AFTER", 10*time.Second),
		CursorThrottle:     getDurationEnv("CURSOR_THROTTLE", 75*time.Millisecond),

		// Reconnect backoff
		ReconnectInitial: getDurationEnv("RECONNECT_INITIAL", 500*time.Millisecond),
		ReconnectMax:     getDurationEnv("RECONNECT_MAX", 15*time.Second),

		// Identity
		IdentityPath: getEnv("IDENTITY_PATH", ""),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
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
