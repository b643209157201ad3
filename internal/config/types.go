package config

// Config is the root configuration for funnelbot.
// YAML and TOML files share the same camelCase keys.
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway,omitempty" toml:"gateway"`
	Gemini   GeminiConfig   `yaml:"gemini,omitempty" toml:"gemini"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp,omitempty" toml:"whatsapp"`
	Agents   AgentsConfig   `yaml:"agents,omitempty" toml:"agents"`
	Dispatch DispatchConfig `yaml:"dispatch,omitempty" toml:"dispatch"`
	Replies  RepliesConfig  `yaml:"replies,omitempty" toml:"replies"`
	Hooks    HooksConfig    `yaml:"hooks,omitempty" toml:"hooks"`
	Logging  LoggingConfig  `yaml:"logging,omitempty" toml:"logging"`
}

// GatewayConfig controls the HTTP server.
type GatewayConfig struct {
	Port           int         `yaml:"port,omitempty" toml:"port"`
	Bind           string      `yaml:"bind,omitempty" toml:"bind"` // "lan" | "loopback" | "custom"
	CustomBindHost string      `yaml:"customBindHost,omitempty" toml:"customBindHost"`
	StaticDir      string      `yaml:"staticDir,omitempty" toml:"staticDir"`
	AllowedOrigins []string    `yaml:"allowedOrigins,omitempty" toml:"allowedOrigins"`
	Auth           GatewayAuth `yaml:"auth,omitempty" toml:"auth"`
}

// GatewayAuth protects the mutating routes. An empty token leaves them open.
type GatewayAuth struct {
	Token string `yaml:"token,omitempty" toml:"token"`
}

// GeminiConfig configures the generation endpoint.
type GeminiConfig struct {
	APIKey            string `yaml:"apiKey,omitempty" toml:"apiKey"`
	Model             string `yaml:"model,omitempty" toml:"model"`
	Endpoint          string `yaml:"endpoint,omitempty" toml:"endpoint"`
	TimeoutSeconds    int    `yaml:"timeoutSeconds,omitempty" toml:"timeoutSeconds"`
	RequestsPerMinute int    `yaml:"requestsPerMinute,omitempty" toml:"requestsPerMinute"` // 0 disables throttling
}

// WhatsAppConfig configures the bridge connection and its lifecycle.
type WhatsAppConfig struct {
	BridgeURL             string        `yaml:"bridgeUrl,omitempty" toml:"bridgeUrl"`
	AuthDir               string        `yaml:"authDir,omitempty" toml:"authDir"`
	Browser               BrowserConfig `yaml:"browser,omitempty" toml:"browser"`
	MaxReconnectAttempts  int           `yaml:"maxReconnectAttempts,omitempty" toml:"maxReconnectAttempts"`
	ReconnectDelaySeconds int           `yaml:"reconnectDelaySeconds,omitempty" toml:"reconnectDelaySeconds"`
	RestartDelaySeconds   int           `yaml:"restartDelaySeconds,omitempty" toml:"restartDelaySeconds"`
}

// BrowserConfig is the client identity announced to WhatsApp.
type BrowserConfig struct {
	Name    string `yaml:"name,omitempty" toml:"name"`
	Client  string `yaml:"client,omitempty" toml:"client"`
	Version string `yaml:"version,omitempty" toml:"version"`
}

// AgentsConfig selects the agent store backend.
type AgentsConfig struct {
	Store string `yaml:"store,omitempty" toml:"store"` // "file" | "sqlite"
	File  string `yaml:"file,omitempty" toml:"file"`
}

// DispatchConfig tunes inbound message handling.
type DispatchConfig struct {
	DedupeTTLMinutes int   `yaml:"dedupeTtlMinutes,omitempty" toml:"dedupeTtlMinutes"`
	DedupeMaxEntries int   `yaml:"dedupeMaxEntries,omitempty" toml:"dedupeMaxEntries"`
	Presence         *bool `yaml:"presence,omitempty" toml:"presence"` // send "composing"; defaults to true
	Journal          *bool `yaml:"journal,omitempty" toml:"journal"`   // record dispatches; defaults to true
}

// RepliesConfig overrides the user-facing fallback texts.
type RepliesConfig struct {
	APIErrorPrefix  string `yaml:"apiErrorPrefix,omitempty" toml:"apiErrorPrefix"`
	UnknownAPIError string `yaml:"unknownApiError,omitempty" toml:"unknownApiError"`
	NoCandidates    string `yaml:"noCandidates,omitempty" toml:"noCandidates"`
	Failure         string `yaml:"failure,omitempty" toml:"failure"`
}

// HooksConfig controls the built-in hook handlers.
type HooksConfig struct {
	LogEvents *bool `yaml:"logEvents,omitempty" toml:"logEvents"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty" toml:"level"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty" toml:"file"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty" toml:"consoleStyle"` // "pretty" | "json"
}

// Enabled reports whether an optional flag is on, treating nil as def.
func Enabled(flag *bool, def bool) bool {
	if flag == nil {
		return def
	}
	return *flag
}
