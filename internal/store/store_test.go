package store

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/soyeahso/funnelbot/internal/domain"
	"github.com/soyeahso/funnelbot/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logging.Logger {
	return logging.New(nil, "silent")
}

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleAgents() []domain.AgentConfig {
	return []domain.AgentConfig{
		{ID: "a1", Name: "Ventas", SystemPrompt: "Eres vendedor.", Keywords: []string{"precio", "comprar"}},
		{ID: "a2", Name: "Soporte", SystemPrompt: "Eres soporte.", Keywords: []string{"error"}, IsDefault: true},
	}
}

// --- DB/Migration tests ---

func TestOpen_InMemory(t *testing.T) {
	db := testDB(t)
	assert.NotNil(t, db.SQL())
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data", "funnelbot.db")
	db, err := Open(path, testLogger())
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestMigrations_Applied(t *testing.T) {
	db := testDB(t)

	var count int
	err := db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
}

func TestMigrations_Idempotent(t *testing.T) {
	db := testDB(t)

	require.NoError(t, db.migrate())

	var count int
	err := db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
}

func TestSchema_TablesExist(t *testing.T) {
	db := testDB(t)

	for _, table := range []string{"agents", "store_meta", "dispatches"} {
		var name string
		err := db.sql.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}
}

// --- File agent store ---

func TestFileAgents_SeedsWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.json")
	s := NewFileAgents(path, testLogger())

	agents, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, domain.DefaultAgent(), agents[0])

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk []domain.AgentConfig
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, agents, onDisk)
}

func TestFileAgents_EmptyArrayIsNotReseeded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.json")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o600))

	agents, err := NewFileAgents(path, testLogger()).List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, agents)
	assert.NotNil(t, agents)
}

func TestFileAgents_RoundTripPreservesOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.json")
	s := NewFileAgents(path, testLogger())
	ctx := context.Background()

	require.NoError(t, s.SaveAll(ctx, sampleAgents()))

	got, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleAgents(), got)
}

func TestFileAgents_IndentedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.json")
	s := NewFileAgents(path, testLogger())
	require.NoError(t, s.SaveAll(context.Background(), []domain.AgentConfig{{ID: "x", Name: "X"}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  {\n    \"id\": \"x\"")
	assert.Contains(t, string(data), `"keywords": []`)
}

func TestFileAgents_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileAgents(path, testLogger()).List(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestFileAgents_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	s := NewFileAgents(filepath.Join(dir, "agents.json"), testLogger())
	require.NoError(t, s.SaveAll(context.Background(), sampleAgents()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "agents.json", entries[0].Name())
}

func TestFileAgents_SeedNeverReplacesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.json")
	s := NewFileAgents(path, testLogger())
	ctx := context.Background()

	require.NoError(t, NewFileAgents(path, testLogger()).SaveAll(ctx, sampleAgents()))

	err := s.write(ctx, []domain.AgentConfig{domain.DefaultAgent()}, false)
	assert.ErrorIs(t, err, fs.ErrExist)

	got, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleAgents(), got)
}

// --- SQLite agent store ---

func TestSQLiteAgents_SeedsOnce(t *testing.T) {
	s := NewSQLiteAgents(testDB(t))
	ctx := context.Background()

	agents, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "default", agents[0].ID)

	// Removing every agent must not bring the seed back.
	require.NoError(t, s.SaveAll(ctx, nil))
	agents, err = s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, agents)
}

func TestSQLiteAgents_RoundTripPreservesOrder(t *testing.T) {
	s := NewSQLiteAgents(testDB(t))
	ctx := context.Background()

	require.NoError(t, s.SaveAll(ctx, sampleAgents()))
	got, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleAgents(), got)

	reversed := []domain.AgentConfig{sampleAgents()[1], sampleAgents()[0]}
	require.NoError(t, s.SaveAll(ctx, reversed))
	got, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, reversed, got)
}

func TestSQLiteAgents_DuplicateIDRollsBack(t *testing.T) {
	s := NewSQLiteAgents(testDB(t))
	ctx := context.Background()
	require.NoError(t, s.SaveAll(ctx, sampleAgents()))

	dup := []domain.AgentConfig{{ID: "same", Name: "A"}, {ID: "same", Name: "B"}}
	require.Error(t, s.SaveAll(ctx, dup))

	got, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleAgents(), got)
}

// --- Dispatch journal ---

func TestDispatches_RecordAndList(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	for i, id := range []string{"m1", "m2", "m3"} {
		err := db.RecordDispatch(ctx, Dispatch{
			MessageID:  id,
			ChatID:     "123@s.whatsapp.net",
			AgentID:    "a1",
			AgentName:  "Ventas",
			Outcome:    "replied",
			ReplyChars: 10 * (i + 1),
			DurationMs: 250,
		})
		require.NoError(t, err)
	}

	got, err := db.RecentDispatches(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "m3", got[0].MessageID)
	assert.Equal(t, "m2", got[1].MessageID)
	assert.Equal(t, 30, got[0].ReplyChars)
	assert.Equal(t, int64(250), got[0].DurationMs)
	assert.WithinDuration(t, time.Now(), got[0].CreatedAt, time.Minute)
}

func TestDispatches_DefaultLimit(t *testing.T) {
	db := testDB(t)
	got, err := db.RecentDispatches(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDispatches_BadTimestampIsAnError(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	_, err := db.SQL().ExecContext(ctx,
		`INSERT INTO dispatches (message_id, chat_id, agent_id, agent_name, outcome, reply_chars, duration_ms, created_at)
		 VALUES ('m1', 'c', 'a1', 'Ventas', 'replied', 1, 1, 'yesterday')`)
	require.NoError(t, err)

	_, err = db.RecentDispatches(ctx, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "created_at")
}
