// Package capture persists a summary of every intercepted transaction in sqlite.
package capture

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    request_id TEXT NOT NULL DEFAULT '',  -- X-Request-ID when the request_id handler runs first.
    method TEXT NOT NULL,
    host TEXT NOT NULL,
    url TEXT NOT NULL,
    status INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL,         -- Time from ingress to the capture handler.
    cache TEXT NOT NULL DEFAULT '',       -- X-Cache value of the response, if any.
    created_at INTEGER NOT NULL           -- Unix milliseconds.
);

CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at);
CREATE INDEX IF NOT EXISTS idx_transactions_host ON transactions(host);
`

// Record is one captured transaction.
type Record struct {
	ID        int64
	RequestID string
	Method    string
	Host      string
	URL       string
	Status    int
	Duration  time.Duration
	Cache     string
	CreatedAt time.Time
}

// Store is a sqlite backed transaction log. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open creates (or opens) the database at path and ensures the schema exists.
// Use ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	if !strings.HasPrefix(path, ":memory:") && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create capture directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite serializes writers; a single connection also keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create capture schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Insert stores r and returns its id.
func (s *Store) Insert(ctx context.Context, r Record) (int64, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
        INSERT INTO transactions (
            request_id, method, host, url, status, duration_ms, cache, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `, r.RequestID, r.Method, r.Host, r.URL, r.Status, r.Duration.Milliseconds(), r.Cache, r.CreatedAt.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Recent returns the newest records first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, request_id, method, host, url, status, duration_ms, cache, created_at
        FROM transactions ORDER BY id DESC LIMIT ?
    `, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r          Record
			durationMs int64
			createdAt  int64
		)
		if err := rows.Scan(&r.ID, &r.RequestID, &r.Method, &r.Host, &r.URL,
			&r.Status, &durationMs, &r.Cache, &createdAt); err != nil {
			return nil, err
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		r.CreatedAt = time.UnixMilli(createdAt)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Prune deletes records created before cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) Close() error {
	return s.db.Close()
}
