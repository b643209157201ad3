package config

import (
	"os"
	"path/filepath"
	"strings"
)

const defaultBaseDir = ".funnelbot"

// Paths holds resolved filesystem paths for funnelbot data.
type Paths struct {
	Base     string // ~/.funnelbot
	Config   string // ~/.funnelbot/config.yaml
	Agents   string // ~/.funnelbot/agents.json
	Auth     string // ~/.funnelbot/auth
	Data     string // ~/.funnelbot/data
	Database string // ~/.funnelbot/data/funnelbot.db
	Logs     string // ~/.funnelbot/logs
}

// ResolvePaths computes all standard paths from the home directory.
// If FUNNELBOT_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("FUNNELBOT_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	data := filepath.Join(base, "data")
	return Paths{
		Base:     base,
		Config:   filepath.Join(base, "config.yaml"),
		Agents:   filepath.Join(base, "agents.json"),
		Auth:     filepath.Join(base, "auth"),
		Data:     data,
		Database: filepath.Join(data, "funnelbot.db"),
		Logs:     filepath.Join(base, "logs"),
	}, nil
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	dirs := []string{p.Base, p.Auth, p.Data, p.Logs}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// ApplyPaths fills path-valued settings left empty in cfg from p.
func ApplyPaths(cfg *Config, p Paths) {
	if cfg.Agents.File == "" {
		cfg.Agents.File = p.Agents
	}
	if cfg.WhatsApp.AuthDir == "" {
		cfg.WhatsApp.AuthDir = p.Auth
	}
}

// ParseConfigPath splits a dot-separated config path into segments.
func ParseConfigPath(raw string) ([]string, error) {
	if raw == "" {
		return nil, &ConfigError{Message: "empty config path"}
	}
	parts := strings.Split(raw, ".")
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return nil, &ConfigError{Message: "config path contains empty segment"}
		}
	}
	return parts, nil
}

// GetValueAtPath traverses a nested map using the given path segments.
func GetValueAtPath(root map[string]any, path []string) (any, bool) {
	current := any(root)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// SetValueAtPath sets a value in a nested map, creating intermediate maps as needed.
func SetValueAtPath(root map[string]any, path []string, value any) {
	current := root
	for _, key := range path[:len(path)-1] {
		next, ok := current[key]
		if !ok {
			next = map[string]any{}
			current[key] = next
		}
		m, ok := next.(map[string]any)
		if !ok {
			m = map[string]any{}
			current[key] = m
		}
		current = m
	}
	current[path[len(path)-1]] = value
}

// UnsetValueAtPath removes a value at the given path. Returns true if removed.
func UnsetValueAtPath(root map[string]any, path []string) bool {
	current := root
	for _, key := range path[:len(path)-1] {
		next, ok := current[key]
		if !ok {
			return false
		}
		m, ok := next.(map[string]any)
		if !ok {
			return false
		}
		current = m
	}
	last := path[len(path)-1]
	if _, ok := current[last]; !ok {
		return false
	}
	delete(current, last)
	return true
}
