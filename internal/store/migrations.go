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
		Name:    "create threads and messages",
		SQL: `
			CREATE TABLE threads (
				id          TEXT PRIMARY KEY,
				created_at  TEXT NOT NULL,
				updated_at  TEXT NOT NULL
			);

			CREATE INDEX idx_threads_updated ON threads (updated_at);

			CREATE TABLE messages (
				id            INTEGER PRIMARY KEY AUTOINCREMENT,
				thread_id     TEXT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
				seq           INTEGER NOT NULL,
				role          TEXT NOT NULL,
				content       TEXT NOT NULL,
				tool_calls    TEXT,
				tool_call_id  TEXT NOT NULL DEFAULT '',
				metadata      TEXT,
				timestamp     TEXT NOT NULL
			);

			CREATE UNIQUE INDEX idx_messages_thread_seq ON messages (thread_id, seq);
		`,
	},
	{
		Version: 2,
		Name:    "create checkpoints",
		SQL: `
			CREATE TABLE checkpoints (
				id             TEXT PRIMARY KEY,
				thread_id      TEXT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
				step           INTEGER NOT NULL,
				message_count  INTEGER NOT NULL,
				created_at     TEXT NOT NULL
			);

			CREATE UNIQUE INDEX idx_checkpoints_thread_step ON checkpoints (thread_id, step);
		`,
	},
}
