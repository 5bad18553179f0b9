package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLStore keeps snapshots in a SQL table. It works with any database/sql
// driver; OpenSQLite opens one backed by modernc.org/sqlite.
//
// The table is created on first use:
//
//	CREATE TABLE IF NOT EXISTS reactive_snapshots (
//	    id         TEXT PRIMARY KEY,
//	    data       BLOB NOT NULL,
//	    updated_at TIMESTAMP NOT NULL
//	);
type SQLStore struct {
	db        *sql.DB
	tableName string
	dialect   SQLDialect
	ownsDB    bool

	mu     sync.RWMutex
	closed bool
}

// SQLDialect selects placeholder and upsert syntax.
type SQLDialect int

const (
	// DialectSQLite uses ? placeholders and INSERT OR REPLACE.
	DialectSQLite SQLDialect = iota
	// DialectPostgreSQL uses $n placeholders and ON CONFLICT.
	DialectPostgreSQL
)

// SQLStoreOption configures a SQLStore.
type SQLStoreOption func(*SQLStore)

// WithSQLTableName sets the snapshot table. Default: "reactive_snapshots".
func WithSQLTableName(name string) SQLStoreOption {
	return func(s *SQLStore) {
		s.tableName = name
	}
}

// WithSQLDialect sets the dialect. Default: DialectSQLite.
func WithSQLDialect(d SQLDialect) SQLStoreOption {
	return func(s *SQLStore) {
		s.dialect = d
	}
}

// NewSQLStore wraps db and creates the snapshot table if needed. The caller
// keeps ownership of db.
func NewSQLStore(ctx context.Context, db *sql.DB, opts ...SQLStoreOption) (*SQLStore, error) {
	s := &SQLStore{
		db:        db,
		tableName: "reactive_snapshots",
		dialect:   DialectSQLite,
	}
	for _, opt := range opts {
		opt(s)
	}

	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id         TEXT PRIMARY KEY,
		data       BLOB NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`, s.tableName)
	if s.dialect == DialectPostgreSQL {
		query = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id         TEXT PRIMARY KEY,
		data       BYTEA NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL
	)`, s.tableName)
	}
	if _, err := db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("store: create table %s: %w", s.tableName, err)
	}
	return s, nil
}

// OpenSQLite opens the SQLite database at path and returns a store that
// closes it on Close. Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string, opts ...SQLStoreOption) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// writers.
	db.SetMaxOpenConns(1)

	s, err := NewSQLStore(ctx, db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

func (s *SQLStore) placeholder(n int) string {
	if s.dialect == DialectPostgreSQL {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Save upserts data under key.
func (s *SQLStore) Save(ctx context.Context, key string, data []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	var query string
	switch s.dialect {
	case DialectPostgreSQL:
		query = fmt.Sprintf(`
			INSERT INTO %s (id, data, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (id) DO UPDATE SET
				data = EXCLUDED.data,
				updated_at = NOW()
		`, s.tableName)
	default:
		query = fmt.Sprintf(`
			INSERT OR REPLACE INTO %s (id, data, updated_at)
			VALUES (?, ?, datetime('now'))
		`, s.tableName)
	}

	if _, err := s.db.ExecContext(ctx, query, key, data); err != nil {
		return fmt.Errorf("store: save %s: %w", key, err)
	}
	return nil
}

// Load returns the data under key, or nil if there is none.
func (s *SQLStore) Load(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	query := fmt.Sprintf(`SELECT data FROM %s WHERE id = %s`, s.tableName, s.placeholder(1))
	var data []byte
	err := s.db.QueryRowContext(ctx, query, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load %s: %w", key, err)
	}
	return data, nil
}

// Delete removes key.
func (s *SQLStore) Delete(ctx context.Context, key string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = %s`, s.tableName, s.placeholder(1))
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("store: delete %s: %w", key, err)
	}
	return nil
}

// Close marks the store closed, and closes the database if OpenSQLite
// opened it.
func (s *SQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

var _ Store = (*SQLStore)(nil)
