// Package provision is the persistent key-value store that seeds
// networking configuration at process start. It plays the role the
// radio firmware's NVS partition plays on-device: credentials written
// once survive restarts, and a corrupt store is erased and rebuilt.
package provision

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned by Get when the key has no stored value.
var ErrNotFound = errors.New("provision: key not found")

// Well-known keys.
const (
	KeySSID     = "wifi.ssid"
	KeyPassword = "wifi.password"
)

const initSchemaSQL = `
CREATE TABLE IF NOT EXISTS kv (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
)`

const (
	selectValueSQL = `SELECT value FROM kv WHERE key = ?`
	upsertValueSQL = `INSERT INTO kv (key, value) VALUES (?, ?)
ON CONFLICT (key) DO UPDATE SET value = excluded.value`
	deleteValueSQL = `DELETE FROM kv WHERE key = ?`
)

// Store is a sqlite-backed key-value store.
type Store struct {
	path string
	db   *sql.DB
}

// Open opens (creating if needed) the store at path and initializes its
// schema. A non-nil error means the store is unusable; see OpenWithRecovery
// for the erase-and-reinitialize bring-up path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL", path))
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	// sql.Open defers real work; force it so corruption surfaces here.
	if _, err = db.Exec(initSchemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &Store{path: path, db: db}, nil
}

// OpenWithRecovery opens the store, and on failure erases it and tries
// exactly once more. onErase, if non-nil, is called before the retry so
// the caller can log the recovery. A second failure is returned to the
// caller, which treats it as fatal to startup.
func OpenWithRecovery(path string, onErase func(err error)) (*Store, error) {
	store, err := Open(path)
	if err == nil {
		return store, nil
	}

	if onErase != nil {
		onErase(err)
	}
	if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
		return nil, fmt.Errorf("erasing store after open failure: %w (open failure: %s)", rmErr, err)
	}

	store, err = Open(path)
	if err != nil {
		return nil, fmt.Errorf("reopening erased store: %w", err)
	}
	return store, nil
}

// Get returns the value stored under key, or ErrNotFound.
func (s *Store) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(selectValueSQL, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", key, err)
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(key, value string) error {
	if _, err := s.db.Exec(upsertValueSQL, key, value); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	if _, err := s.db.Exec(deleteValueSQL, key); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// Erase drops all stored values, keeping the store usable.
func (s *Store) Erase() error {
	if _, err := s.db.Exec(`DELETE FROM kv`); err != nil {
		return fmt.Errorf("erasing store: %w", err)
	}
	return nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
