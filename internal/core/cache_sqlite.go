package core

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS task_records (
	hash      TEXT PRIMARY KEY,
	task      TEXT NOT NULL,
	exit_code INTEGER NOT NULL,
	stdout    BLOB,
	stderr    BLOB,
	targets   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS task_records_task ON task_records(task);
`

// SQLiteCache implements Cache on a single SQLite database file, by default
// <output>/.bioweaver/tasks.db. Re-running a workflow against the same output
// folder skips every task whose record and targets are intact.
type SQLiteCache struct {
	db *sql.DB
}

// OpenSQLiteCache opens (creating if needed) the cache database at path.
func OpenSQLiteCache(path string) (*SQLiteCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache %q: %w", path, err)
	}
	// SQLite allows one writer; a single connection keeps parallel tasks
	// from ever seeing SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing cache schema: %w", err)
	}
	return &SQLiteCache{db: db}, nil
}

// Close releases the database handle.
func (c *SQLiteCache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Has checks if a record exists for the given hash.
func (c *SQLiteCache) Has(hash TaskHash) (bool, error) {
	var n int
	err := c.db.QueryRow(`SELECT COUNT(1) FROM task_records WHERE hash = ?`, string(hash)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking cache entry: %w", err)
	}
	return n > 0, nil
}

// Get retrieves a record by hash.
func (c *SQLiteCache) Get(hash TaskHash) (*CacheEntry, error) {
	var (
		entry   = CacheEntry{Hash: hash}
		targets string
	)
	err := c.db.QueryRow(
		`SELECT task, exit_code, stdout, stderr, targets FROM task_records WHERE hash = ?`,
		string(hash),
	).Scan(&entry.Task, &entry.ExitCode, &entry.Stdout, &entry.Stderr, &targets)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache entry: %w", err)
	}
	if err := json.Unmarshal([]byte(targets), &entry.Targets); err != nil {
		return nil, fmt.Errorf("parsing cached targets: %w", err)
	}
	return &entry, nil
}

// Put stores a record.
func (c *SQLiteCache) Put(entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry is nil")
	}
	targets, err := json.Marshal(entry.Targets)
	if err != nil {
		return fmt.Errorf("marshaling targets: %w", err)
	}

	_, err = c.db.Exec(
		`INSERT OR REPLACE INTO task_records (hash, task, exit_code, stdout, stderr, targets) VALUES (?, ?, ?, ?, ?, ?)`,
		string(entry.Hash), entry.Task, entry.ExitCode, entry.Stdout, entry.Stderr, string(targets),
	)
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}
