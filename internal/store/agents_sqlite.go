package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/soyeahso/funnelbot/internal/domain"
)

const metaAgentsSeeded = "agents_seeded"

// SQLiteAgents keeps the agent collection in the agents table. Order is
// preserved through the position column.
type SQLiteAgents struct {
	db *DB
}

// NewSQLiteAgents returns an agent store on db.
func NewSQLiteAgents(db *DB) *SQLiteAgents {
	return &SQLiteAgents{db: db}
}

// List returns the stored agents in collection order. The default agent is
// seeded the first time the table is read.
func (s *SQLiteAgents) List(ctx context.Context) ([]domain.AgentConfig, error) {
	if err := s.seed(ctx); err != nil {
		return nil, fmt.Errorf("seeding agents: %w", err)
	}

	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT id, name, system_prompt, keywords, is_default FROM agents ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("querying agents: %w", err)
	}
	defer rows.Close()

	agents := []domain.AgentConfig{}
	for rows.Next() {
		var (
			a        domain.AgentConfig
			keywords string
		)
		if err := rows.Scan(&a.ID, &a.Name, &a.SystemPrompt, &keywords, &a.IsDefault); err != nil {
			return nil, fmt.Errorf("scanning agent: %w", err)
		}
		if err := json.Unmarshal([]byte(keywords), &a.Keywords); err != nil {
			return nil, fmt.Errorf("%w: keywords of agent %s: %v", ErrCorrupt, a.ID, err)
		}
		agents = append(agents, a.Clone())
	}
	return agents, rows.Err()
}

// SaveAll replaces every stored agent with agents in one transaction.
func (s *SQLiteAgents) SaveAll(ctx context.Context, agents []domain.AgentConfig) error {
	return s.db.inTx(ctx, func(tx *sql.Tx) error {
		return replaceAgents(ctx, tx, agents)
	})
}

// seed stores the default agent unless the collection was ever written. The
// check and the insert share one transaction.
func (s *SQLiteAgents) seed(ctx context.Context) error {
	return s.db.inTx(ctx, func(tx *sql.Tx) error {
		var v string
		err := tx.QueryRowContext(ctx,
			`SELECT value FROM store_meta WHERE key = ?`, metaAgentsSeeded).Scan(&v)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("reading store meta: %w", err)
		}
		if err := replaceAgents(ctx, tx, []domain.AgentConfig{domain.DefaultAgent()}); err != nil {
			return err
		}
		s.db.log.Info().Msg("seeded default agent")
		return nil
	})
}

func replaceAgents(ctx context.Context, tx *sql.Tx, agents []domain.AgentConfig) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM agents`); err != nil {
		return fmt.Errorf("clearing agents: %w", err)
	}

	for i, a := range normalize(agents) {
		keywords, err := json.Marshal(a.Keywords)
		if err != nil {
			return fmt.Errorf("encoding keywords: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO agents (position, id, name, system_prompt, keywords, is_default)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			i, a.ID, a.Name, a.SystemPrompt, string(keywords), a.IsDefault,
		); err != nil {
			return fmt.Errorf("inserting agent %s: %w", a.ID, err)
		}
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO store_meta (key, value) VALUES (?, '1')
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, metaAgentsSeeded)
	if err != nil {
		return fmt.Errorf("marking agents seeded: %w", err)
	}
	return nil
}
