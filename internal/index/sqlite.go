package index

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/54b3r/pressqa-go/internal/rag"
)

// SQLite is an exact index persisted in a single SQLite file. Search loads
// every vector and scores it in Go, which is fine for corpora of a few
// thousand chunks.
type SQLite struct {
	// db is the underlying database connection pool.
	db *sql.DB
	// meta is the embedding identity the file is bound to.
	meta Meta
}

// OpenSQLite opens (or creates) the index at path and binds it to meta. An
// existing file built with another model or dimension is rejected. Use
// ":memory:" in tests.
func OpenSQLite(path string, meta Meta) (*SQLite, error) {
	if err := meta.validate(); err != nil {
		return nil, err
	}
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, unavailable("open", fmt.Errorf("sqlite %s: %w", path, err))
	}
	// A single connection keeps ":memory:" databases shared and avoids
	// SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, meta: meta}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.bindMeta(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS chunks (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    content      TEXT    NOT NULL,
    embedding    BLOB    NOT NULL,
    title        TEXT    NOT NULL,
    author       TEXT,
    publish_date TEXT    NOT NULL,  -- YYYY-MM-DD
    source_link  TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_source_link ON chunks (source_link);
CREATE TABLE IF NOT EXISTS index_meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return unavailable("migrate", err)
	}
	return nil
}

// bindMeta records the identity on first open and verifies it afterwards.
func (s *SQLite) bindMeta(ctx context.Context) error {
	const ins = `INSERT OR IGNORE INTO index_meta (key, value) VALUES (?, ?)`
	if _, err := s.db.ExecContext(ctx, ins, "model", s.meta.Model); err != nil {
		return unavailable("meta", err)
	}
	if _, err := s.db.ExecContext(ctx, ins, "dimensions", strconv.Itoa(s.meta.Dimensions)); err != nil {
		return unavailable("meta", err)
	}

	var stored Meta
	var dims string
	if err := s.db.QueryRowContext(ctx, `SELECT value FROM index_meta WHERE key = 'model'`).Scan(&stored.Model); err != nil {
		return unavailable("meta", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT value FROM index_meta WHERE key = 'dimensions'`).Scan(&dims); err != nil {
		return unavailable("meta", err)
	}
	n, err := strconv.Atoi(dims)
	if err != nil {
		return fmt.Errorf("index: stored dimensions %q: %w", dims, err)
	}
	stored.Dimensions = n
	return s.meta.check(stored)
}

// Insert appends chunks in a single transaction.
func (s *SQLite) Insert(ctx context.Context, chunks []rag.Chunk, embeddings [][]float32) error {
	if err := checkInsert(chunks, embeddings, s.meta.Dimensions); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("insert", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO chunks (content, embedding, title, author, publish_date, source_link)
VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return unavailable("insert", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		var author sql.NullString
		if c.Author != nil {
			author = sql.NullString{String: *c.Author, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, c.Text, packVector(embeddings[i]), c.Title, author,
			c.PublishDate.Format(rag.IsoDate), c.SourceLink); err != nil {
			return unavailable("insert", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return unavailable("insert", err)
	}
	return nil
}

// Search scores every stored chunk against query.
func (s *SQLite) Search(ctx context.Context, query []float32, topK int, minSimilarity float64) ([]rag.Hit, error) {
	if err := checkQuery(query, s.meta.Dimensions); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT content, embedding, title, author, publish_date, source_link
FROM   chunks
ORDER  BY id`)
	if err != nil {
		return nil, unavailable("search", err)
	}
	defer rows.Close()

	var hits []rag.Hit
	for rows.Next() {
		var (
			c      rag.Chunk
			blob   []byte
			author sql.NullString
			date   string
		)
		if err := rows.Scan(&c.Text, &blob, &c.Title, &author, &date, &c.SourceLink); err != nil {
			return nil, unavailable("search", err)
		}
		vec, err := unpackVector(blob)
		if err != nil {
			return nil, err
		}
		sim := cosine(query, vec)
		if sim < minSimilarity {
			continue
		}
		if author.Valid {
			a := author.String
			c.Author = &a
		}
		if c.PublishDate, err = time.Parse(rag.IsoDate, date); err != nil {
			return nil, fmt.Errorf("index: stored date %q: %w", date, err)
		}
		hits = append(hits, rag.Hit{Chunk: c, Similarity: sim})
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("search", err)
	}
	return rank(hits, topK, minSimilarity), nil
}

// DeleteSource removes every chunk from link.
func (s *SQLite) DeleteSource(ctx context.Context, link string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE source_link = ?`, link); err != nil {
		return unavailable("delete", err)
	}
	return nil
}

// Clear removes every chunk. The model binding is kept.
func (s *SQLite) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return unavailable("clear", err)
	}
	return nil
}

// Count returns the number of stored chunks.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, unavailable("count", err)
	}
	return n, nil
}

// Ping checks the database connection.
func (s *SQLite) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLite) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("index: close: %w", err)
	}
	return nil
}

func packVector(vec []float32) []byte {
	b := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(v))
	}
	return b
}

func unpackVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, errors.New("index: corrupt vector blob")
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return vec, nil
}
