package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create agents",
		SQL: `
			CREATE TABLE agents (
				position      INTEGER NOT NULL,
				id            TEXT PRIMARY KEY,
				name          TEXT NOT NULL,
				system_prompt TEXT NOT NULL DEFAULT '',
				keywords      TEXT NOT NULL DEFAULT '[]',
				is_default    INTEGER NOT NULL DEFAULT 0
			);

			CREATE INDEX idx_agents_position ON agents (position);

			CREATE TABLE store_meta (
				key   TEXT PRIMARY KEY,
				value TEXT NOT NULL
			);
		`,
	},
	{
		Version: 2,
		Name:    "create dispatch journal",
		SQL: `
			CREATE TABLE dispatches (
				id           INTEGER PRIMARY KEY AUTOINCREMENT,
				message_id   TEXT NOT NULL,
				chat_id      TEXT NOT NULL,
				agent_id     TEXT NOT NULL DEFAULT '',
				agent_name   TEXT NOT NULL DEFAULT '',
				outcome      TEXT NOT NULL,
				reply_chars  INTEGER NOT NULL DEFAULT 0,
				duration_ms  INTEGER NOT NULL DEFAULT 0,
				created_at   TEXT NOT NULL
			);

			CREATE INDEX idx_dispatches_chat ON dispatches (chat_id, id);
		`,
	},
}
