package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Gemini.APIKey = "test-key"
	return cfg
}

func issuePaths(issues []ValidationIssue) []string {
	paths := make([]string, 0, len(issues))
	for _, i := range issues {
		paths = append(paths, i.Path)
	}
	return paths
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_MissingAPIKey(t *testing.T) {
	cfg := Defaults()
	issues := Validate(&cfg)
	require.Len(t, issues, 1)
	assert.Equal(t, "gemini.apiKey", issues[0].Path)
}

func TestValidate_Port(t *testing.T) {
	for _, port := range []int{-1, 70000} {
		cfg := validConfig()
		cfg.Gateway.Port = port
		assert.Equal(t, []string{"gateway.port"}, issuePaths(Validate(&cfg)))
	}
	for _, port := range []int{0, 3000, 65535} {
		cfg := validConfig()
		cfg.Gateway.Port = port
		assert.Empty(t, Validate(&cfg))
	}
}

func TestValidate_Bind(t *testing.T) {
	cfg := validConfig()
	cfg.Gateway.Bind = "tailnet"
	assert.Contains(t, issuePaths(Validate(&cfg)), "gateway.bind")

	cfg = validConfig()
	cfg.Gateway.Bind = "custom"
	assert.Contains(t, issuePaths(Validate(&cfg)), "gateway.customBindHost")

	cfg.Gateway.CustomBindHost = "10.0.0.5"
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_BridgeURL(t *testing.T) {
	tests := []struct {
		url   string
		valid bool
	}{
		{"ws://127.0.0.1:8090/ws", true},
		{"wss://bridge.example.com/ws", true},
		{"http://bridge.example.com", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			cfg := validConfig()
			cfg.WhatsApp.BridgeURL = tt.url
			issues := Validate(&cfg)
			if tt.valid {
				assert.Empty(t, issues)
			} else {
				assert.Contains(t, issuePaths(issues), "whatsapp.bridgeUrl")
			}
		})
	}
}

func TestValidate_ReconnectSettings(t *testing.T) {
	cfg := validConfig()
	cfg.WhatsApp.MaxReconnectAttempts = 0
	cfg.WhatsApp.ReconnectDelaySeconds = -3
	cfg.WhatsApp.RestartDelaySeconds = -1

	paths := issuePaths(Validate(&cfg))
	assert.Contains(t, paths, "whatsapp.maxReconnectAttempts")
	assert.Contains(t, paths, "whatsapp.reconnectDelaySeconds")
	assert.Contains(t, paths, "whatsapp.restartDelaySeconds")
}

func TestValidate_AgentsStore(t *testing.T) {
	cfg := validConfig()
	cfg.Agents.Store = "postgres"
	assert.Equal(t, []string{"agents.store"}, issuePaths(Validate(&cfg)))
}

func TestValidate_Gemini(t *testing.T) {
	cfg := validConfig()
	cfg.Gemini.Endpoint = "ftp://example.com"
	cfg.Gemini.TimeoutSeconds = -1
	cfg.Gemini.RequestsPerMinute = -5

	paths := issuePaths(Validate(&cfg))
	assert.Contains(t, paths, "gemini.endpoint")
	assert.Contains(t, paths, "gemini.timeoutSeconds")
	assert.Contains(t, paths, "gemini.requestsPerMinute")
}

func TestValidate_Logging(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "loud"
	cfg.Logging.ConsoleStyle = "fancy"

	paths := issuePaths(Validate(&cfg))
	assert.Contains(t, paths, "logging.level")
	assert.Contains(t, paths, "logging.consoleStyle")
}

func TestValidationIssue_String(t *testing.T) {
	issue := ValidationIssue{Path: "gateway.port", Message: "bad"}
	assert.Equal(t, "gateway.port: bad", issue.String())
}
