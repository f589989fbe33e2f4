// Package db is the SQLite-backed message and commit store.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"lkml/mergetrace/internal/archive"
)

// ErrSchema marks a store whose required tables are missing
var ErrSchema = errors.New("store schema error")

// DB wraps a SQLite database connection
type DB struct {
	conn *sql.DB
	Path string
}

var _ archive.Store = (*DB)(nil)

// OpenDB opens a SQLite database with WAL mode enabled
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared across queries
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return &DB{conn: conn, Path: path}, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.conn.Close()
}

// Conn returns the underlying sql.DB for custom queries
func (d *DB) Conn() *sql.DB {
	return d.conn
}

func isMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

func schemaErr(what string, err error) error {
	if isMissingTable(err) {
		return fmt.Errorf("%w: %s: %v", ErrSchema, what, err)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func limitArg(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
