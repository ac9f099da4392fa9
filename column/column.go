// Package column implements StoreColumn (C3 in SPEC_FULL.md): a durable,
// ordered key→bytes store with put/iterate/flush, backed by a SQLite table
// via internal/db. One Column corresponds to one table; storages that share
// a database file each open their own Column under a distinct name.
package column

import (
	"database/sql"
	"fmt"

	"vecstore/internal/db"
)

// Flusher is a deferred, idempotent durability action (SPEC_FULL.md §4.3,
// §9 GLOSSARY).
type Flusher func() error

// Column is a durable ordered key→bytes column.
type Column struct {
	conn *sql.DB
	name string
}

// Open opens (creating if necessary) the named column in the SQLite
// database at dbPath.
func Open(dbPath, name string) (*Column, error) {
	conn, err := db.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureColumn(conn, name); err != nil {
		conn.Close()
		return nil, err
	}
	return &Column{conn: conn, name: name}, nil
}

// Put durably upserts key→value. Ordering is single-writer: callers must
// not invoke Put concurrently with itself or with Iter.
func (c *Column) Put(key, value []byte) error {
	q := fmt.Sprintf(`INSERT INTO %s (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, c.name)
	if _, err := c.conn.Exec(q, key, value); err != nil {
		return fmt.Errorf("column: put failed: %w", err)
	}
	return nil
}

// Iter performs a full scan of the column in key order, invoking fn for
// every (key, value) pair. Used only at open (SPEC_FULL.md §4.3). Iteration
// stops and returns fn's error if fn returns non-nil.
func (c *Column) Iter(fn func(key, value []byte) error) error {
	q := fmt.Sprintf(`SELECT key, value FROM %s ORDER BY key`, c.name)
	rows, err := c.conn.Query(q)
	if err != nil {
		return fmt.Errorf("column: iter query failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return fmt.Errorf("column: iter scan failed: %w", err)
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Flusher returns a deferred action that forces any buffered writes to
// durable media. SQLite in WAL mode buffers in the WAL file; a checkpoint
// folds it back into the main database file.
func (c *Column) Flusher() Flusher {
	return func() error {
		if _, err := c.conn.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
			return fmt.Errorf("column: flush failed: %w", err)
		}
		return nil
	}
}

// Close releases the underlying connection.
func (c *Column) Close() error {
	return c.conn.Close()
}
