package config

import "fmt"

// Defaults that mirror the behaviour of the first deployed bot.
const (
	DefaultPort                  = 3000
	DefaultGeminiModel           = "gemini-2.5-flash"
	DefaultGeminiEndpoint        = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiTimeoutSeconds  = 60
	DefaultBridgeURL             = "ws://127.0.0.1:8090/ws"
	DefaultMaxReconnectAttempts  = 3
	DefaultReconnectDelaySeconds = 5
	DefaultRestartDelaySeconds   = 2
	DefaultDedupeTTLMinutes      = 10
	DefaultDedupeMaxEntries      = 1000
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	var cfg Config
	applyDefaults(&cfg)
	return cfg
}
