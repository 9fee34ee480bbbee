// Package db provides the embedded SQLite store that backs the local
// persisted state.
//
// State is kept as a small set of named slots, one per collection, each
// holding a JSON document. This mirrors the key/value layout the web client
// used in browser storage, so a snapshot can be moved between the two
// without translation.
//
// Architecture:
//   - Database file: <data_dir>/opscentre.db
//   - WAL mode: readers never block the single writer
//   - Schema: one slots table keyed by slot name
//
// Writes that must move together (a collection and the last_updated
// marker, or every collection during a pull) go through Update, which runs
// them in one transaction.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Slot names. They match the browser storage keys of the web client.
const (
	SlotTasks        = "tasks"
	SlotNotes        = "notes"
	SlotDocs         = "docs"
	SlotSyncSettings = "sync_settings"
	SlotLastUpdated  = "last_updated"
)

// Slots lists every slot in display order.
var Slots = []string{SlotTasks, SlotNotes, SlotDocs, SlotSyncSettings, SlotLastUpdated}

// ErrClosed is returned by operations on a closed database.
var ErrClosed = errors.New("database is closed")

// DB wraps the SQLite connection pool.
type DB struct {
	conn *sql.DB
	path string
}

// SlotInfo describes a stored slot without its value.
type SlotInfo struct {
	Key       string
	Size      int64
	UpdatedAt time.Time
}

// Open creates a new database connection at the specified path.
//
// The caller MUST call Close() when done.
//
// Example:
//
//	store, err := db.Open(filepath.Join(dataDir, "opscentre.db"))
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Per-connection pragmas go in the DSN so every pooled connection gets
	// them. Immediate transactions take the write lock up front and let
	// busy_timeout do the waiting.
	connStr := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate", path)
	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(8)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{
		conn: conn,
		path: path,
	}

	if _, err := db.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close checkpoints the WAL and closes the connection pool.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the slots table if it doesn't exist. Idempotent.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	if db.conn == nil {
		return ErrClosed
	}

	schema := `
	CREATE TABLE IF NOT EXISTS slots (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// Get returns the value stored under key. The boolean is false when the
// slot has never been written.
func (db *DB) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	var found bool
	err := db.View(ctx, func(tx *Tx) error {
		var err error
		value, found, err = tx.Get(key)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return value, found, nil
}

// Put stores value under key in its own transaction.
func (db *DB) Put(ctx context.Context, key string, value []byte) error {
	return db.Update(ctx, func(tx *Tx) error {
		return tx.Put(key, value)
	})
}

// List returns metadata for every stored slot, ordered by key.
func (db *DB) List(ctx context.Context) ([]SlotInfo, error) {
	if db.conn == nil {
		return nil, ErrClosed
	}

	rows, err := db.conn.QueryContext(ctx, `SELECT key, length(CAST(value AS BLOB)), updated_at FROM slots ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	defer rows.Close()

	var infos []SlotInfo
	for rows.Next() {
		var info SlotInfo
		var updatedAt string
		if err := rows.Scan(&info.Key, &info.Size, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
			info.UpdatedAt = t
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating slots: %w", err)
	}
	return infos, nil
}

// Update runs fn in a read-write transaction. The transaction commits when
// fn returns nil and rolls back otherwise.
func (db *DB) Update(ctx context.Context, fn func(tx *Tx) error) error {
	return db.run(ctx, nil, fn)
}

// View runs fn in a read-only transaction.
func (db *DB) View(ctx context.Context, fn func(tx *Tx) error) error {
	return db.run(ctx, &sql.TxOptions{ReadOnly: true}, fn)
}

func (db *DB) run(ctx context.Context, opts *sql.TxOptions, fn func(tx *Tx) error) error {
	if db.conn == nil {
		return ErrClosed
	}

	sqlTx, err := db.conn.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&Tx{ctx: ctx, tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Tx is a slot-level view of an open transaction.
type Tx struct {
	ctx context.Context
	tx  *sql.Tx
}

// Get returns the value stored under key.
func (tx *Tx) Get(key string) ([]byte, bool, error) {
	var value string
	err := tx.tx.QueryRowContext(tx.ctx, `SELECT value FROM slots WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read slot %s: %w", key, err)
	}
	return []byte(value), true, nil
}

// Put inserts or replaces the value stored under key.
func (tx *Tx) Put(key string, value []byte) error {
	query := `
	INSERT INTO slots (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		updated_at = excluded.updated_at
	`
	_, err := tx.tx.ExecContext(tx.ctx, query, key, string(value), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to write slot %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing slot is not an error.
func (tx *Tx) Delete(key string) error {
	if _, err := tx.tx.ExecContext(tx.ctx, `DELETE FROM slots WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete slot %s: %w", key, err)
	}
	return nil
}
