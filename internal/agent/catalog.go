// Package agent holds the agent catalog and the keyword selector that routes
// inbound messages to an agent.
package agent

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/soyeahso/funnelbot/internal/domain"
	"github.com/soyeahso/funnelbot/internal/logging"
)

var (
	// ErrAgentNotFound is returned when an id does not name a stored agent.
	ErrAgentNotFound = errors.New("agent not found")
	// ErrInvalidAgent is returned for input that fails validation.
	ErrInvalidAgent = errors.New("invalid agent")
)

// Store persists the whole agent collection. Implementations live in the
// store package.
type Store interface {
	List(ctx context.Context) ([]domain.AgentConfig, error)
	SaveAll(ctx context.Context, agents []domain.AgentConfig) error
}

// AgentInput is the payload for creating an agent.
type AgentInput struct {
	Name         string   `json:"name"`
	SystemPrompt string   `json:"systemPrompt"`
	Keywords     []string `json:"keywords"`
	IsDefault    bool     `json:"isDefault"`
}

// AgentPatch carries the fields of an update. Nil fields are left as they are.
type AgentPatch struct {
	Name         *string   `json:"name,omitempty"`
	SystemPrompt *string   `json:"systemPrompt,omitempty"`
	Keywords     *[]string `json:"keywords,omitempty"`
	IsDefault    *bool     `json:"isDefault,omitempty"`
}

// Catalog is the CRUD service over a Store. Each mutation reads the full
// collection, changes it and writes it back under a single lock.
type Catalog struct {
	mu    sync.Mutex
	store Store
	newID func() string
	log   *logging.Logger
}

// NewCatalog creates a catalog backed by store.
func NewCatalog(store Store, log *logging.Logger) *Catalog {
	return &Catalog{
		store: store,
		newID: uuid.NewString,
		log:   log.Sub("agents"),
	}
}

// List returns every agent in collection order.
func (c *Catalog) List(ctx context.Context) ([]domain.AgentConfig, error) {
	return c.store.List(ctx)
}

// Get returns the agent with the given id.
func (c *Catalog) Get(ctx context.Context, id string) (domain.AgentConfig, error) {
	agents, err := c.store.List(ctx)
	if err != nil {
		return domain.AgentConfig{}, err
	}
	i := indexOf(agents, id)
	if i < 0 {
		return domain.AgentConfig{}, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	return agents[i], nil
}

// Create appends a new agent with a fresh id.
func (c *Catalog) Create(ctx context.Context, in AgentInput) (domain.AgentConfig, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.AgentConfig{}, fmt.Errorf("%w: name is required", ErrInvalidAgent)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	agents, err := c.store.List(ctx)
	if err != nil {
		return domain.AgentConfig{}, err
	}

	created := domain.AgentConfig{
		ID:           c.newID(),
		Name:         name,
		SystemPrompt: in.SystemPrompt,
		Keywords:     in.Keywords,
		IsDefault:    in.IsDefault,
	}.Clone()

	if created.IsDefault {
		clearDefault(agents)
	}
	agents = append(agents, created)

	if err := c.store.SaveAll(ctx, agents); err != nil {
		return domain.AgentConfig{}, fmt.Errorf("saving agents: %w", err)
	}

	c.log.Info().Str("id", created.ID).Str("name", created.Name).Bool("default", created.IsDefault).Msg("agent created")
	return created, nil
}

// Update applies patch to the agent with the given id. The id itself never
// changes.
func (c *Catalog) Update(ctx context.Context, id string, patch AgentPatch) (domain.AgentConfig, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return domain.AgentConfig{}, fmt.Errorf("%w: name cannot be empty", ErrInvalidAgent)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	agents, err := c.store.List(ctx)
	if err != nil {
		return domain.AgentConfig{}, err
	}
	i := indexOf(agents, id)
	if i < 0 {
		return domain.AgentConfig{}, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}

	a := agents[i]
	if patch.Name != nil {
		a.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.SystemPrompt != nil {
		a.SystemPrompt = *patch.SystemPrompt
	}
	if patch.Keywords != nil {
		a.Keywords = slices.Clone(*patch.Keywords)
	}
	if patch.IsDefault != nil {
		if *patch.IsDefault {
			clearDefault(agents)
		}
		a.IsDefault = *patch.IsDefault
	}
	agents[i] = a.Clone()

	if err := c.store.SaveAll(ctx, agents); err != nil {
		return domain.AgentConfig{}, fmt.Errorf("saving agents: %w", err)
	}

	c.log.Info().Str("id", id).Msg("agent updated")
	return agents[i], nil
}

// SetDefault marks the agent with the given id as the only default.
func (c *Catalog) SetDefault(ctx context.Context, id string) (domain.AgentConfig, error) {
	yes := true
	return c.Update(ctx, id, AgentPatch{IsDefault: &yes})
}

// Delete removes the agent with the given id. Unknown ids are not an error.
// Removing the default agent leaves the collection without one.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	agents, err := c.store.List(ctx)
	if err != nil {
		return err
	}
	i := indexOf(agents, id)
	if i < 0 {
		c.log.Debug().Str("id", id).Msg("delete of unknown agent ignored")
		return nil
	}
	agents = slices.Delete(agents, i, i+1)

	if err := c.store.SaveAll(ctx, agents); err != nil {
		return fmt.Errorf("saving agents: %w", err)
	}

	c.log.Info().Str("id", id).Msg("agent deleted")
	return nil
}

func indexOf(agents []domain.AgentConfig, id string) int {
	return slices.IndexFunc(agents, func(a domain.AgentConfig) bool { return a.ID == id })
}

func clearDefault(agents []domain.AgentConfig) {
	for i := range agents {
		agents[i].IsDefault = false
	}
}
