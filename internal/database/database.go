// Package database stores the history of executed batches in SQLite so an
// undo can survive a restart.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

const memoryPath = ":memory:"

// File databases use WAL so a CLI run can read while a server writes.
const filePragmas = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

// HistoryDB is the handle for the batch history database.
type HistoryDB struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// OpenPath opens or creates the database at path, creating its directory
// and applying pending migrations.
func OpenPath(path string) (*HistoryDB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	return open(path, path+filePragmas)
}

// OpenInMemory opens an empty, private database for tests.
func OpenInMemory() (*HistoryDB, error) {
	return open(memoryPath, memoryPath+"?_pragma=foreign_keys(1)")
}

func open(path, dsn string) (*HistoryDB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	if path == memoryPath {
		// every connection to :memory: is its own database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", path, err)
	}

	h := &HistoryDB{db: db, path: path}
	if err := h.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database %s: %w", path, err)
	}
	return h, nil
}

func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// Path returns the database file, or ":memory:".
func (h *HistoryDB) Path() string {
	return h.path
}

func (h *HistoryDB) migrate() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return applyMigrations(h.db)
}

// SchemaVersion returns the applied schema version.
func (h *HistoryDB) SchemaVersion() (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return schemaVersion(h.db)
}
