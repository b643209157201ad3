package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/soyeahso/funnelbot/internal/agent"
	"github.com/soyeahso/funnelbot/internal/config"
	"github.com/soyeahso/funnelbot/internal/llm"
	"github.com/soyeahso/funnelbot/internal/logging"
	"github.com/soyeahso/funnelbot/internal/store"
)

// loadConfig reads the config file and fills path settings from the
// resolved funnelbot home.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return cfg, err
	}
	config.ApplyPaths(&cfg, paths)
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// agentBackend is an opened agent store. DB is set only for the sqlite
// backend and doubles as the dispatch journal.
type agentBackend struct {
	Store agent.Store
	DB    *store.DB
}

func (b agentBackend) Close() error {
	if b.DB != nil {
		return b.DB.Close()
	}
	return nil
}

// openAgentStore opens the backend named by cfg.Agents.Store.
func openAgentStore(cfg config.Config, dbPath string, log *logging.Logger) (agentBackend, error) {
	switch cfg.Agents.Store {
	case "", "file":
		return agentBackend{Store: store.NewFileAgents(cfg.Agents.File, log)}, nil
	case "sqlite":
		db, err := store.Open(dbPath, log)
		if err != nil {
			return agentBackend{}, fmt.Errorf("opening database: %w", err)
		}
		return agentBackend{Store: store.NewSQLiteAgents(db), DB: db}, nil
	default:
		return agentBackend{}, fmt.Errorf("unknown agents store %q", cfg.Agents.Store)
	}
}

// newGenerator builds the Gemini-backed reply generator from config.
func newGenerator(cfg config.Config, log *logging.Logger) *llm.Generator {
	client := llm.NewGeminiClient(llm.GeminiConfig{
		APIKey:            cfg.Gemini.APIKey,
		Model:             cfg.Gemini.Model,
		Endpoint:          cfg.Gemini.Endpoint,
		RequestsPerMinute: cfg.Gemini.RequestsPerMinute,
	}, log)

	return llm.NewGenerator(client, log,
		llm.WithTimeout(time.Duration(cfg.Gemini.TimeoutSeconds)*time.Second),
		llm.WithFallbacks(llm.Fallbacks{
			APIErrorPrefix:  cfg.Replies.APIErrorPrefix,
			UnknownAPIError: cfg.Replies.UnknownAPIError,
			NoCandidates:    cfg.Replies.NoCandidates,
			Failure:         cfg.Replies.Failure,
		}),
	)
}

// openServeLogger builds the long-running logger from the logging section.
func openServeLogger(cfg config.Config) (*logging.Logger, io.Closer, error) {
	return logging.Open(logging.Options{
		Level:        cfg.Logging.Level,
		ConsoleStyle: cfg.Logging.ConsoleStyle,
		File:         cfg.Logging.File,
	})
}
