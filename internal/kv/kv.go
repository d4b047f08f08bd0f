// Package kv is the local persistent key-value namespace. Every value is a
// string document stored under a named slot, the same shape a browser's
// local storage offers.
package kv

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get when the slot does not exist.
var ErrNotFound = errors.New("kv: slot not found")

// KV handles all database operations
type KV struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates a new KV with SQLite backend
func Open(dbPath string) (*KV, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// Handlers run one at a time; a single connection keeps writes ordered.
	db.SetMaxOpenConns(1)

	s := &KV{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *KV) Close() error {
	return s.db.Close()
}

// migrate creates the database schema
func (s *KV) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS slots (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Get returns the raw document stored under key.
func (s *KV) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM slots WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, err
}

// Set inserts or overwrites the document under key in a single statement.
func (s *KV) Set(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO slots (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, s.now().UTC())

	return err
}

// Remove deletes the slot. Removing a missing slot is not an error.
func (s *KV) Remove(key string) error {
	_, err := s.db.Exec(`DELETE FROM slots WHERE key = ?`, key)
	return err
}

// Exists checks if a slot is present
func (s *KV) Exists(key string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM slots WHERE key = ?)`, key).Scan(&exists)
	return exists, err
}

// Keys lists every slot key in lexical order.
func (s *KV) Keys() ([]string, error) {
	rows, err := s.db.Query(`SELECT key FROM slots ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
