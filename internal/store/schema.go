package store

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaVersion is bumped whenever the DDL below gains a superset-compatible
// addition. Opening an older file is a no-op upgrade as long as this schema
// is a strict superset of what produced it; schemaVersion just records the
// high-water mark for diagnostics, it is never used to branch behavior.
const schemaVersion = 1

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS queues (
		name         TEXT PRIMARY KEY,
		description  TEXT,
		instructions TEXT,
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		queue_name     TEXT NOT NULL REFERENCES queues(name) ON DELETE CASCADE,
		title          TEXT NOT NULL,
		description    TEXT,
		priority       INTEGER NOT NULL DEFAULT 5 CHECK (priority BETWEEN 1 AND 10),
		parameters     TEXT,
		instructions   TEXT,
		status         TEXT NOT NULL DEFAULT 'pending'
		               CHECK (status IN ('pending','checked_out','completed','failed')),
		worker_id      TEXT,
		created_at     TEXT NOT NULL,
		updated_at     TEXT NOT NULL,
		checked_out_at TEXT,
		completed_at   TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS journal_entries (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id   INTEGER NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		status    TEXT NOT NULL CHECK (status IN ('pending','checked_out','completed','failed')),
		notes     TEXT,
		timestamp TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_queue_status ON tasks(queue_name, status)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_priority ON tasks(priority)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
	`CREATE INDEX IF NOT EXISTS idx_journal_task_id ON journal_entries(task_id)`,
	`CREATE INDEX IF NOT EXISTS idx_journal_timestamp ON journal_entries(timestamp)`,
	// Backstop triggers: operations set updated_at explicitly on every write
	// path, but any write that forgets to (a direct SQL patch, a future
	// migration) still gets a correct timestamp. The WHEN guard prevents a
	// trigger firing off of its own UPDATE (recursive triggers are off by
	// default, but the guard also keeps intent obvious to a reader).
	`CREATE TRIGGER IF NOT EXISTS trg_queues_updated_at
		AFTER UPDATE ON queues
		WHEN NEW.updated_at = OLD.updated_at
	BEGIN
		UPDATE queues SET updated_at = CURRENT_TIMESTAMP WHERE name = NEW.name;
	END`,
	`CREATE TRIGGER IF NOT EXISTS trg_tasks_updated_at
		AFTER UPDATE ON tasks
		WHEN NEW.updated_at = OLD.updated_at
	BEGIN
		UPDATE tasks SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
	END`,
}

// applySchema idempotently installs tables, indexes, and triggers, then
// records the schema's high-water version. Safe to call on every open.
func applySchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES ('schema_version', ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
		WHERE CAST(excluded.value AS INTEGER) > CAST(meta.value AS INTEGER)
	`, fmt.Sprintf("%d", schemaVersion))
	if err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return nil
}
