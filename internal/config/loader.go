package config

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields lets credentials be written as ${ENV_VAR} in the file.
func expandSensitiveFields(cfg *Config) {
	cfg.Gemini.APIKey = expandEnvVars(cfg.Gemini.APIKey)
	cfg.Gateway.Auth.Token = expandEnvVars(cfg.Gateway.Auth.Token)
	cfg.WhatsApp.BridgeURL = expandEnvVars(cfg.WhatsApp.BridgeURL)
}

// isTOML reports whether path should be decoded as TOML instead of YAML.
func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if isTOML(path) {
		err = toml.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	raw := map[string]any{}
	if isTOML(path) {
		err = toml.Unmarshal(data, &raw)
	} else {
		err = yaml.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to the config file in its own format.
func SaveRaw(path string, raw map[string]any) error {
	var data []byte
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(raw); err != nil {
			return err
		}
		data = buf.Bytes()
	} else {
		var err error
		data, err = yaml.Marshal(raw)
		if err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = DefaultPort
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = "lan"
	}
	if cfg.Gateway.StaticDir == "" {
		cfg.Gateway.StaticDir = "public"
	}
	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = DefaultGeminiModel
	}
	if cfg.Gemini.Endpoint == "" {
		cfg.Gemini.Endpoint = DefaultGeminiEndpoint
	}
	if cfg.Gemini.TimeoutSeconds == 0 {
		cfg.Gemini.TimeoutSeconds = DefaultGeminiTimeoutSeconds
	}
	if cfg.WhatsApp.BridgeURL == "" {
		cfg.WhatsApp.BridgeURL = DefaultBridgeURL
	}
	if cfg.WhatsApp.Browser.Name == "" {
		cfg.WhatsApp.Browser.Name = "FunnelBot AI"
	}
	if cfg.WhatsApp.Browser.Client == "" {
		cfg.WhatsApp.Browser.Client = "Chrome"
	}
	if cfg.WhatsApp.Browser.Version == "" {
		cfg.WhatsApp.Browser.Version = "1.0.0"
	}
	if cfg.WhatsApp.MaxReconnectAttempts == 0 {
		cfg.WhatsApp.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if cfg.WhatsApp.ReconnectDelaySeconds == 0 {
		cfg.WhatsApp.ReconnectDelaySeconds = DefaultReconnectDelaySeconds
	}
	if cfg.WhatsApp.RestartDelaySeconds == 0 {
		cfg.WhatsApp.RestartDelaySeconds = DefaultRestartDelaySeconds
	}
	if cfg.Agents.Store == "" {
		cfg.Agents.Store = "file"
	}
	if cfg.Dispatch.DedupeTTLMinutes == 0 {
		cfg.Dispatch.DedupeTTLMinutes = DefaultDedupeTTLMinutes
	}
	if cfg.Dispatch.DedupeMaxEntries == 0 {
		cfg.Dispatch.DedupeMaxEntries = DefaultDedupeMaxEntries
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = "pretty"
	}
}

// applyEnvOverrides reads FUNNELBOT_* (and a few conventional) environment
// variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("FUNNELBOT_GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("FUNNELBOT_GATEWAY_BIND"); v != "" {
		cfg.Gateway.Bind = v
	}
	if v := os.Getenv("FUNNELBOT_GATEWAY_TOKEN"); v != "" && cfg.Gateway.Auth.Token == "" {
		cfg.Gateway.Auth.Token = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && cfg.Gemini.APIKey == "" {
		cfg.Gemini.APIKey = v
	}
	if v := os.Getenv("FUNNELBOT_GEMINI_MODEL"); v != "" {
		cfg.Gemini.Model = v
	}
	if v := os.Getenv("FUNNELBOT_WHATSAPP_BRIDGE_URL"); v != "" {
		cfg.WhatsApp.BridgeURL = v
	}
	if v := os.Getenv("FUNNELBOT_AGENTS_STORE"); v != "" {
		cfg.Agents.Store = strings.ToLower(v)
	}
	if v := os.Getenv("FUNNELBOT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}
