// Package db provides SQLite connection setup shared by every storage column
// opened by the vector storage core.
package db

import (
	"database/sql"
	"fmt"
	"regexp"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens a SQLite database connection at dbPath, enables WAL mode, and
// configures the connection pool for single-writer/many-reader access.
func Open(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// WAL mode allows concurrent readers with one writer, matching the
	// single-writer/many-reader discipline the storage core assumes.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(0)

	if err := configurePragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func configurePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=30000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("failed to execute %s: %w", p, err)
		}
	}
	return nil
}

// validColumnName matches the identifiers this package accepts for
// EnsureColumn. Column names come from trusted callers (segment/collection
// naming), but are validated anyway before being interpolated into DDL.
var validColumnName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// EnsureColumn creates the backing table for a single storage column
// (an ordered key→value blob store) if it does not already exist.
func EnsureColumn(db *sql.DB, name string) error {
	if !validColumnName.MatchString(name) {
		return fmt.Errorf("invalid column name %q", name)
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key   BLOB PRIMARY KEY,
		value BLOB NOT NULL
	)`, name)
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("failed to create column %s: %w", name, err)
	}
	return nil
}
