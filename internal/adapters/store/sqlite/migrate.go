package sqlite

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is the current schema version of the sqlite backend.
const SchemaVersion = 1

// Migrate ensures the schema exists and is at SchemaVersion.
func Migrate(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("migrate: db is nil")
	}

	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY);`)
	if err != nil {
		return fmt.Errorf("migrate: create schema_migrations: %w", err)
	}

	var current int
	err = db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations;`).Scan(&current)
	if err != nil {
		return fmt.Errorf("migrate: read current version: %w", err)
	}
	if current >= SchemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migrate: begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	steps := []struct {
		name string
		sql  string
	}{
		{"create events table", `
			CREATE TABLE IF NOT EXISTS events (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				title TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				emoji TEXT NOT NULL DEFAULT '',
				emotion TEXT NOT NULL,
				spheres TEXT NOT NULL DEFAULT '[]',
				date TEXT NOT NULL,
				time TEXT NOT NULL DEFAULT '',
				created_at INTEGER NOT NULL,
				updated_at INTEGER NOT NULL
			);`},
		{"create idx_events_user_order", `
			CREATE INDEX IF NOT EXISTS idx_events_user_order
			ON events(user_id, date DESC, created_at DESC, id DESC);`},
		{"create life_spheres table", `
			CREATE TABLE IF NOT EXISTS life_spheres (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				name TEXT NOT NULL,
				color TEXT NOT NULL,
				icon TEXT NOT NULL DEFAULT '',
				score INTEGER NOT NULL CHECK (score BETWEEN 1 AND 10),
				is_default INTEGER NOT NULL DEFAULT 0,
				created_at INTEGER NOT NULL,
				updated_at INTEGER NOT NULL
			);`},
		{"create idx_life_spheres_user", `
			CREATE INDEX IF NOT EXISTS idx_life_spheres_user ON life_spheres(user_id, created_at);`},
	}
	for _, step := range steps {
		if _, err := tx.Exec(step.sql); err != nil {
			return fmt.Errorf("migrate: %s: %w", step.name, err)
		}
	}

	_, err = tx.Exec(`INSERT INTO schema_migrations(version) VALUES (?);`, SchemaVersion)
	if err != nil {
		return fmt.Errorf("migrate: record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit transaction: %w", err)
	}
	return nil
}
