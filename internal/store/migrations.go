package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "users: accounts keyed by identity-provider id",
		SQL: `
CREATE TABLE users (
    id            TEXT PRIMARY KEY,
    email         TEXT NOT NULL,
    display_name  TEXT,
    timezone      TEXT NOT NULL DEFAULT 'UTC',
    created_at    INTEGER NOT NULL
);
`,
	},
	{
		Version:     2,
		Description: "progression_records: experience, level and decay per user and habit",
		SQL: `
CREATE TABLE progression_records (
    id                  INTEGER PRIMARY KEY,
    user_id             TEXT NOT NULL,
    habit_type          TEXT NOT NULL CHECK (habit_type IN ('gym', 'study', 'sleep', 'meditation', 'diet')),
    experience          INTEGER NOT NULL DEFAULT 0 CHECK (experience >= 0),
    level               INTEGER NOT NULL DEFAULT 1 CHECK (level >= 1 AND level <= 5),
    decay_days          INTEGER NOT NULL DEFAULT 0 CHECK (decay_days >= 0 AND decay_days <= 5),
    last_completed_date TEXT,
    updated_at          INTEGER NOT NULL,

    UNIQUE (user_id, habit_type),
    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE INDEX idx_progression_user ON progression_records(user_id);
`,
	},
	{
		Version:     3,
		Description: "completion_logs: one row per user, habit and day",
		SQL: `
CREATE TABLE completion_logs (
    id          INTEGER PRIMARY KEY,
    user_id     TEXT NOT NULL,
    habit_type  TEXT NOT NULL,
    date        TEXT NOT NULL,
    completed   INTEGER NOT NULL DEFAULT 1,
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL,

    UNIQUE (user_id, habit_type, date),
    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE INDEX idx_logs_user_date ON completion_logs(user_id, date);
`,
	},
	{
		Version:     4,
		Description: "decision_log: audit trail of surfaced actions",
		SQL: `
CREATE TABLE decision_log (
    id              TEXT PRIMARY KEY,
    user_id         TEXT NOT NULL,
    proposed_action INTEGER,
    final_action    INTEGER NOT NULL CHECK (final_action BETWEEN 0 AND 3),
    reason          TEXT NOT NULL,
    confidence      REAL,
    created_at      INTEGER NOT NULL
);

CREATE INDEX idx_decisions_user ON decision_log(user_id, created_at DESC);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
