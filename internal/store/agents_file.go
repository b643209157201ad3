package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/soyeahso/funnelbot/internal/domain"
	"github.com/soyeahso/funnelbot/internal/logging"
)

// ErrCorrupt marks persisted agent data that cannot be decoded.
var ErrCorrupt = errors.New("agent store: corrupt data")

// FileAgents keeps the agent collection in a single JSON file that is read
// and rewritten whole. mu serializes every read-seed-write cycle inside the
// process; the seed itself is published with a hard link so two processes
// sharing the file cannot both seed it.
type FileAgents struct {
	mu   sync.Mutex
	path string
	log  *logging.Logger
}

// NewFileAgents returns a store backed by the file at path.
func NewFileAgents(path string, log *logging.Logger) *FileAgents {
	return &FileAgents{path: path, log: log.Sub("agents-file")}
}

// Path returns the backing file path.
func (s *FileAgents) Path() string { return s.path }

// List returns the stored agents, seeding the default agent when the file
// does not exist yet.
func (s *FileAgents) List(ctx context.Context) ([]domain.AgentConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agents, err := s.read()
	if !errors.Is(err, fs.ErrNotExist) {
		return agents, err
	}

	seed := []domain.AgentConfig{domain.DefaultAgent()}
	err = s.write(ctx, seed, false)
	if errors.Is(err, fs.ErrExist) {
		// Another writer created the file first.
		return s.read()
	}
	if err != nil {
		return nil, fmt.Errorf("seeding agents: %w", err)
	}
	s.log.Info().Str("path", s.path).Msg("seeded default agent")
	return seed, nil
}

// SaveAll replaces the file with agents. The new content is written to a
// sibling temp file and renamed into place.
func (s *FileAgents) SaveAll(ctx context.Context, agents []domain.AgentConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(ctx, agents, true)
}

func (s *FileAgents) read() ([]domain.AgentConfig, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("reading agents: %w", err)
	}

	var agents []domain.AgentConfig
	if err := json.Unmarshal(data, &agents); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	return normalize(agents), nil
}

// write stores agents through a temp file. With replace false the temp file
// is linked into place instead of renamed, and the call fails with an error
// matching fs.ErrExist when the file is already there.
func (s *FileAgents) write(ctx context.Context, agents []domain.AgentConfig, replace bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(normalize(agents), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding agents: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating agents directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".agents-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing agents: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing agents: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if !replace {
		if err := os.Link(tmp.Name(), s.path); err != nil {
			if errors.Is(err, fs.ErrExist) {
				return err
			}
			return fmt.Errorf("creating agents file: %w", err)
		}
		return nil
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing agents file: %w", err)
	}

	s.log.Debug().Int("count", len(agents)).Msg("agents saved")
	return nil
}

// normalize returns a non-nil slice whose agents all carry a non-nil
// keyword list, so the JSON never shows "keywords": null.
func normalize(agents []domain.AgentConfig) []domain.AgentConfig {
	out := make([]domain.AgentConfig, len(agents))
	for i, a := range agents {
		out[i] = a.Clone()
	}
	return out
}
