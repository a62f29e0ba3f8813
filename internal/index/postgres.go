package index

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/54b3r/pressqa-go/internal/rag"
)

// Postgres is an index backed by PostgreSQL with the pgvector extension,
// using the documents table layout of the original deployment. Similarity is
// computed server-side as 1 - (embedding <=> query).
type Postgres struct {
	// pool is the pgx connection pool.
	pool *pgxpool.Pool
	// meta is the embedding identity the table is bound to.
	meta Meta
}

// OpenPostgres connects to databaseURL, creates the vector extension and
// tables when missing, and binds the database to meta.
func OpenPostgres(ctx context.Context, databaseURL string, meta Meta) (*Postgres, error) {
	if err := meta.validate(); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, unavailable("open", fmt.Errorf("postgres: %w", err))
	}
	p := &Postgres{pool: pool, meta: meta}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := p.bindMeta(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS documents (
    id           SERIAL PRIMARY KEY,
    content      TEXT,
    embedding    VECTOR(%d),
    title        TEXT,
    author       TEXT,
    publish_date DATE,
    source_link  TEXT
);
CREATE INDEX IF NOT EXISTS idx_documents_source_link ON documents (source_link);
CREATE TABLE IF NOT EXISTS index_meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);`, p.meta.Dimensions)
	if _, err := p.pool.Exec(ctx, ddl); err != nil {
		return unavailable("migrate", err)
	}
	return nil
}

func (p *Postgres) bindMeta(ctx context.Context) error {
	const ins = `INSERT INTO index_meta (key, value) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`
	if _, err := p.pool.Exec(ctx, ins, "model", p.meta.Model); err != nil {
		return unavailable("meta", err)
	}
	if _, err := p.pool.Exec(ctx, ins, "dimensions", strconv.Itoa(p.meta.Dimensions)); err != nil {
		return unavailable("meta", err)
	}

	rows, err := p.pool.Query(ctx, `SELECT key, value FROM index_meta`)
	if err != nil {
		return unavailable("meta", err)
	}
	kv, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) ([2]string, error) {
		var pair [2]string
		err := r.Scan(&pair[0], &pair[1])
		return pair, err
	})
	if err != nil {
		return unavailable("meta", err)
	}

	var stored Meta
	for _, pair := range kv {
		switch pair[0] {
		case "model":
			stored.Model = pair[1]
		case "dimensions":
			if stored.Dimensions, err = strconv.Atoi(pair[1]); err != nil {
				return fmt.Errorf("index: stored dimensions %q: %w", pair[1], err)
			}
		}
	}
	return p.meta.check(stored)
}

// vectorLiteral renders v in pgvector's text input format, "[x,y,...]".
func vectorLiteral(v []float32) string {
	var sb strings.Builder
	sb.Grow(len(v) * 10)
	sb.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(x), 'g', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}

// Insert appends chunks using a single pipelined batch.
func (p *Postgres) Insert(ctx context.Context, chunks []rag.Chunk, embeddings [][]float32) error {
	if err := checkInsert(chunks, embeddings, p.meta.Dimensions); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	const q = `
INSERT INTO documents (content, embedding, title, author, publish_date, source_link)
VALUES ($1, $2::vector, $3, $4, $5, $6)`
	batch := &pgx.Batch{}
	for i, c := range chunks {
		batch.Queue(q, c.Text, vectorLiteral(embeddings[i]), c.Title, c.Author, c.PublishDate, c.SourceLink)
	}
	if err := p.pool.SendBatch(ctx, batch).Close(); err != nil {
		return unavailable("insert", err)
	}
	return nil
}

// Search runs the thresholded nearest-neighbour query on the server.
func (p *Postgres) Search(ctx context.Context, query []float32, topK int, minSimilarity float64) ([]rag.Hit, error) {
	if err := checkQuery(query, p.meta.Dimensions); err != nil {
		return nil, err
	}

	const q = `
SELECT content, title, author, publish_date, source_link, 1 - (embedding <=> $1::vector) AS similarity
FROM   documents
WHERE  1 - (embedding <=> $1::vector) >= $2
ORDER  BY similarity DESC, id ASC
LIMIT  $3`
	rows, err := p.pool.Query(ctx, q, vectorLiteral(query), minSimilarity, topK)
	if err != nil {
		return nil, unavailable("search", err)
	}

	hits, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (rag.Hit, error) {
		var (
			h    rag.Hit
			date time.Time
		)
		err := r.Scan(&h.Chunk.Text, &h.Chunk.Title, &h.Chunk.Author, &date, &h.Chunk.SourceLink, &h.Similarity)
		h.Chunk.PublishDate = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
		return h, err
	})
	if err != nil {
		return nil, unavailable("search", err)
	}
	return hits, nil
}

// DeleteSource removes every chunk from link.
func (p *Postgres) DeleteSource(ctx context.Context, link string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM documents WHERE source_link = $1`, link); err != nil {
		return unavailable("delete", err)
	}
	return nil
}

// Clear truncates the documents table.
func (p *Postgres) Clear(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, `TRUNCATE TABLE documents RESTART IDENTITY`); err != nil {
		return unavailable("clear", err)
	}
	return nil
}

// Count returns the number of stored chunks.
func (p *Postgres) Count(ctx context.Context) (int, error) {
	var n int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, unavailable("count", err)
	}
	return n, nil
}

// Ping checks the connection pool.
func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
