// Package store persists the data the assistant reads at request time: the
// collaborator records (alerts, reports, posts, news) queried by the context
// assembler, and per-user conversation history. SQLite backs both; Redis is
// an alternative history backend for multi-instance deployments.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// DefaultPath returns ~/.climatetrack/<name>, creating the directory if
// needed.
func DefaultPath(name string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".climatetrack")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, name), nil
}

// openSQLite opens the database at path and applies ddl. Use ":memory:" for
// an in-memory database in tests.
func openSQLite(path, ddl string) (*sql.DB, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// A single connection avoids SQLITE_BUSY under concurrent writes and keeps
	// ":memory:" databases alive across statements.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(ddl); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate %s: %w", path, err)
	}
	return db, nil
}
