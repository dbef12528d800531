package sqlite

import "database/sql"

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	username   TEXT NOT NULL UNIQUE,
	avatar     TEXT NOT NULL DEFAULT '',
	is_online  BOOLEAN NOT NULL DEFAULT 0,
	last_login DATETIME,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS chat_events (
	seq_id         INTEGER PRIMARY KEY,
	identity_id    INTEGER NOT NULL,
	body           TEXT NOT NULL,
	kind           TEXT NOT NULL DEFAULT 'text',
	command_result TEXT,
	client_ts      INTEGER NOT NULL DEFAULT 0,
	created_at     DATETIME NOT NULL,
	FOREIGN KEY (identity_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS user_activities (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	identity_id   INTEGER NOT NULL,
	activity_type TEXT NOT NULL,
	activity_data TEXT,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (identity_id) REFERENCES users(id)
);

CREATE INDEX IF NOT EXISTS idx_user_activities_identity ON user_activities(identity_id, id DESC);
`

// ApplySchema creates all tables if they do not exist yet.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
