package database

import (
	"database/sql"
	"fmt"
)

const currentSchemaVersion = 2

var migrations = []migration{
	{
		version: 1,
		up: []string{
			`CREATE TABLE schema_version (
				version INTEGER PRIMARY KEY,
				applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)`,

			// One row per executed batch
			`CREATE TABLE batches (
				id INTEGER PRIMARY KEY,
				created_at DATETIME NOT NULL,
				mode TEXT NOT NULL DEFAULT 'episode',
				entry_count INTEGER NOT NULL DEFAULT 0,
				undone_at DATETIME
			)`,

			// Applied moves in application order
			`CREATE TABLE batch_moves (
				batch_id INTEGER NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
				seq INTEGER NOT NULL,
				entry_id INTEGER NOT NULL,
				source_path TEXT NOT NULL,
				target_path TEXT NOT NULL,
				PRIMARY KEY (batch_id, seq)
			)`,

			`CREATE INDEX idx_batches_created ON batches(created_at)`,
			`CREATE INDEX idx_batch_moves_target ON batch_moves(target_path)`,

			`INSERT INTO schema_version (version) VALUES (1)`,
		},
	},
	{
		version: 2,
		up: []string{
			// Directories a batch created, removed again on undo
			`CREATE TABLE batch_dirs (
				batch_id INTEGER NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
				seq INTEGER NOT NULL,
				path TEXT NOT NULL,
				PRIMARY KEY (batch_id, seq)
			)`,

			`INSERT INTO schema_version (version) VALUES (2)`,
		},
	},
}

type migration struct {
	version int
	up      []string
}

// schemaVersion returns 0 for a fresh database.
func schemaVersion(db *sql.DB) (int, error) {
	var exists int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_version'`).Scan(&exists)
	if err != nil || exists == 0 {
		return 0, err
	}

	var v sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&v); err != nil {
		return 0, err
	}
	return int(v.Int64), nil
}

// applyMigrations runs every migration newer than the stored version, each
// in its own transaction. Each migration inserts its own schema_version row.
func applyMigrations(db *sql.DB) error {
	current, err := schemaVersion(db)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if current > currentSchemaVersion {
		return fmt.Errorf("database schema %d is newer than this build (%d)", current, currentSchemaVersion)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
	}
	return nil
}

func applyMigration(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.up {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}
