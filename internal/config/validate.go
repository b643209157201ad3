package config

import (
	"fmt"
	"net/url"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	// Gateway
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		add("gateway.port", "port must be 0-65535, got %d", cfg.Gateway.Port)
	}
	validBinds := []string{"lan", "loopback", "custom"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		add("gateway.bind", "must be one of %v, got %q", validBinds, cfg.Gateway.Bind)
	}
	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		add("gateway.customBindHost", "required when bind is custom")
	}

	// Gemini
	if cfg.Gemini.APIKey == "" {
		add("gemini.apiKey", "required (set it here or via GEMINI_API_KEY)")
	}
	if cfg.Gemini.Model == "" {
		add("gemini.model", "model is required")
	}
	if u, err := url.Parse(cfg.Gemini.Endpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		add("gemini.endpoint", "must be an http(s) URL, got %q", cfg.Gemini.Endpoint)
	}
	if cfg.Gemini.TimeoutSeconds < 0 {
		add("gemini.timeoutSeconds", "must not be negative, got %d", cfg.Gemini.TimeoutSeconds)
	}
	if cfg.Gemini.RequestsPerMinute < 0 {
		add("gemini.requestsPerMinute", "must not be negative, got %d", cfg.Gemini.RequestsPerMinute)
	}

	// WhatsApp bridge
	if u, err := url.Parse(cfg.WhatsApp.BridgeURL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		add("whatsapp.bridgeUrl", "must be a ws:// or wss:// URL, got %q", cfg.WhatsApp.BridgeURL)
	}
	if cfg.WhatsApp.MaxReconnectAttempts < 1 {
		add("whatsapp.maxReconnectAttempts", "must be at least 1, got %d", cfg.WhatsApp.MaxReconnectAttempts)
	}
	if cfg.WhatsApp.ReconnectDelaySeconds < 1 {
		add("whatsapp.reconnectDelaySeconds", "must be at least 1, got %d", cfg.WhatsApp.ReconnectDelaySeconds)
	}
	if cfg.WhatsApp.RestartDelaySeconds < 0 {
		add("whatsapp.restartDelaySeconds", "must not be negative, got %d", cfg.WhatsApp.RestartDelaySeconds)
	}

	// Agents
	validStores := []string{"file", "sqlite"}
	if !slices.Contains(validStores, cfg.Agents.Store) {
		add("agents.store", "must be one of %v, got %q", validStores, cfg.Agents.Store)
	}

	// Dispatch
	if cfg.Dispatch.DedupeTTLMinutes < 0 {
		add("dispatch.dedupeTtlMinutes", "must not be negative, got %d", cfg.Dispatch.DedupeTTLMinutes)
	}
	if cfg.Dispatch.DedupeMaxEntries < 0 {
		add("dispatch.dedupeMaxEntries", "must not be negative, got %d", cfg.Dispatch.DedupeMaxEntries)
	}

	// Logging
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		add("logging.level", "must be one of %v, got %q", validLogLevels, cfg.Logging.Level)
	}
	validConsoleStyles := []string{"pretty", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		add("logging.consoleStyle", "must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle)
	}

	return issues
}
