// Package localstore persists client-side state across process restarts.
// Values are JSON documents under fixed string keys (see keys.go). Two
// implementations: SQLite for the running client, Memory for tests and
// ephemeral sessions.
package localstore

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"storefront/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// Store is a durable string-keyed JSON store.
// Writes are last-writer-wins; there is no cross-key transaction except
// Delete, which removes all named keys atomically.
type Store interface {
	// Get decodes the value under key into v. Returns false if the key is absent.
	Get(ctx context.Context, key string, v any) (bool, error)
	// Set encodes v as JSON and stores it under key.
	Set(ctx context.Context, key string, v any) error
	// Delete removes the given keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

var (
	_ Store = (*SQLite)(nil)
	_ Store = (*Memory)(nil)
)

// SQLite is a Store backed by a single SQLite database file.
type SQLite struct {
	db *sql.DB
}

// Open creates or opens the state database at path.
// The database is configured with:
//   - WAL mode so a second client process can read while we write
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//
// This function is idempotent.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get implements Store.
func (s *SQLite) Get(ctx context.Context, key string, v any) (bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, model.NewPersistenceError("read "+key, err)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, model.NewPersistenceError("decode "+key, err)
	}
	return true, nil
}

// Set implements Store.
func (s *SQLite) Set(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return model.NewPersistenceError("encode "+key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, string(raw), time.Now().UnixMilli())
	if err != nil {
		return model.NewPersistenceError("write "+key, err)
	}
	return nil
}

// Delete implements Store.
func (s *SQLite) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.NewPersistenceError("delete", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
			return model.NewPersistenceError("delete "+key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return model.NewPersistenceError("delete", err)
	}
	return nil
}
