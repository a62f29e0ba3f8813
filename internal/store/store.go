// Package store keeps a SQLite log of answered questions. Each entry
// records the question, the retrieval parameters, how many chunks were
// retrieved, and the answer returned. The log is for operators; it is never
// fed back into a prompt.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Entry is one answered question.
type Entry struct {
	// ID is the row identifier, assigned on Append.
	ID int64 `json:"id"`
	// Question is the user question as received.
	Question string `json:"question"`
	// TopK is the top_k used for retrieval.
	TopK int `json:"top_k"`
	// Threshold is the similarity threshold used for retrieval.
	Threshold float64 `json:"similarity_threshold"`
	// Results is the number of chunks that passed the threshold.
	Results int `json:"results"`
	// Answer is the text shown to the user, fallback sentences included.
	Answer string `json:"answer"`
	// CreatedAt is when the entry was persisted.
	CreatedAt time.Time `json:"created_at"`
}

// QueryLog persists and lists answered questions. Implementations must be
// safe for concurrent use.
type QueryLog interface {
	// Append persists e. ID and CreatedAt are assigned by the store.
	Append(ctx context.Context, e Entry) error
	// Recent returns up to n entries, newest first.
	Recent(ctx context.Context, n int) ([]Entry, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a QueryLog backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
	// now is the clock used for CreatedAt; replaced in tests.
	now func() time.Time
}

// DefaultDBPath returns ~/.pressqa/history.db, creating the directory if
// needed. PRESSQA_HISTORY_DB overrides it.
func DefaultDBPath() (string, error) {
	if p := os.Getenv("PRESSQA_HISTORY_DB"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".pressqa")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteStore at path and runs the schema
// migration. Use ":memory:" in tests.
func Open(path string) (*SQLiteStore, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Single writer; also keeps one shared database for ":memory:".
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS queries (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    question    TEXT    NOT NULL,
    top_k       INTEGER NOT NULL,
    threshold   REAL    NOT NULL,
    results     INTEGER NOT NULL,
    answer      TEXT    NOT NULL,
    created_at  INTEGER NOT NULL  -- Unix milliseconds
);
CREATE INDEX IF NOT EXISTS idx_queries_created ON queries (created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Append persists a single entry.
func (s *SQLiteStore) Append(ctx context.Context, e Entry) error {
	const q = `INSERT INTO queries (question, top_k, threshold, results, answer, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, e.Question, e.TopK, e.Threshold, e.Results, e.Answer, s.now().UnixMilli()); err != nil {
		return fmt.Errorf("store: append: %w", err)
	}
	return nil
}

// Recent returns up to n entries, newest first. A non-positive n returns nil.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	const q = `
SELECT id, question, top_k, threshold, results, answer, created_at
FROM   queries
ORDER  BY created_at DESC, id DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var ms int64
		if err := rows.Scan(&e.ID, &e.Question, &e.TopK, &e.Threshold, &e.Results, &e.Answer, &ms); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		e.CreatedAt = time.UnixMilli(ms)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return out, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
