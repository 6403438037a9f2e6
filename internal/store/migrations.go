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
		Name:    "create chat messages",
		SQL: `
			CREATE TABLE chat_messages (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				thread_id   TEXT NOT NULL,
				sender      TEXT NOT NULL,
				sender_role TEXT NOT NULL,
				content     TEXT NOT NULL,
				timestamp   TEXT NOT NULL,
				read        INTEGER NOT NULL DEFAULT 0,
				created_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_chat_messages_thread ON chat_messages (thread_id, id);
		`,
	},
	{
		Version: 2,
		Name:    "dedupe retried posts",
		SQL: `
			CREATE UNIQUE INDEX idx_chat_messages_identity
				ON chat_messages (thread_id, sender, timestamp, content);
		`,
	},
}
