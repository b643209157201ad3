package agent

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/soyeahso/funnelbot/internal/domain"
	"github.com/soyeahso/funnelbot/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func agentIDs(agents []domain.AgentConfig) []string {
	ids := make([]string, 0, len(agents))
	for _, a := range agents {
		ids = append(ids, a.ID)
	}
	return ids
}

// A List racing the first Create on an unseeded store must never write the
// seed over the created agent.
func TestCatalog_CreateWhileListingFreshStore(t *testing.T) {
	backends := []struct {
		name string
		open func(t *testing.T) Store
	}{
		{"file", func(t *testing.T) Store {
			return store.NewFileAgents(filepath.Join(t.TempDir(), "agents.json"), silentLog())
		}},
		{"sqlite", func(t *testing.T) Store {
			db, err := store.Open(":memory:", silentLog())
			require.NoError(t, err)
			t.Cleanup(func() { db.Close() })
			return store.NewSQLiteAgents(db)
		}},
	}

	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			for round := 0; round < 100; round++ {
				c := NewCatalog(b.open(t), silentLog())
				ctx := context.Background()

				var created domain.AgentConfig
				var g errgroup.Group
				g.Go(func() error {
					a, err := c.Create(ctx, AgentInput{Name: "Ventas", Keywords: []string{"precio"}})
					created = a
					return err
				})
				for i := 0; i < 3; i++ {
					g.Go(func() error {
						_, err := c.List(ctx)
						return err
					})
				}
				require.NoError(t, g.Wait())

				agents, err := c.List(ctx)
				require.NoError(t, err)
				assert.Equal(t, []string{domain.DefaultAgent().ID, created.ID}, agentIDs(agents), "round %d", round)
			}
		})
	}
}

func TestCatalog_SharedAgentsFileKeepsCreated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.json")
	first := NewCatalog(store.NewFileAgents(path, silentLog()), silentLog())
	second := store.NewFileAgents(path, silentLog())
	ctx := context.Background()

	created, err := first.Create(ctx, AgentInput{Name: "Soporte"})
	require.NoError(t, err)

	agents, err := second.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{domain.DefaultAgent().ID, created.ID}, agentIDs(agents))
}
