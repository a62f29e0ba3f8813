package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// BackendFromEnv returns INDEX_BACKEND, defaulting to qdrant when
// QDRANT_HOST is set, postgres when DATABASE_URL is set, and sqlite otherwise.
func BackendFromEnv() string {
	if b := os.Getenv("INDEX_BACKEND"); b != "" {
		return b
	}
	switch {
	case os.Getenv("QDRANT_HOST") != "":
		return "qdrant"
	case os.Getenv("DATABASE_URL") != "":
		return "postgres"
	default:
		return "sqlite"
	}
}

// OpenFromEnv opens the backend selected by BackendFromEnv, bound to meta.
//
// Environment:
//
//	qdrant:   QDRANT_HOST, QDRANT_PORT, QDRANT_COLLECTION, QDRANT_API_KEY, QDRANT_USE_TLS
//	postgres: DATABASE_URL
//	sqlite:   INDEX_DB (default ~/.pressqa/index.db)
//	memory:   no settings; contents are lost on exit
func OpenFromEnv(ctx context.Context, meta Meta) (Index, error) {
	switch backend := BackendFromEnv(); backend {
	case "qdrant":
		port, _ := strconv.Atoi(os.Getenv("QDRANT_PORT"))
		useTLS, _ := strconv.ParseBool(os.Getenv("QDRANT_USE_TLS"))
		return OpenQdrant(ctx, &QdrantConfig{
			Host:       os.Getenv("QDRANT_HOST"),
			Port:       port,
			Collection: os.Getenv("QDRANT_COLLECTION"),
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     useTLS,
		}, meta)

	case "postgres":
		url := os.Getenv("DATABASE_URL")
		if url == "" {
			return nil, fmt.Errorf("index: postgres backend requires DATABASE_URL")
		}
		return OpenPostgres(ctx, url, meta)

	case "sqlite":
		path := os.Getenv("INDEX_DB")
		if path == "" {
			var err error
			if path, err = DefaultDBPath(); err != nil {
				return nil, err
			}
		}
		return OpenSQLite(path, meta)

	case "memory":
		return NewMemory(meta)

	default:
		return nil, fmt.Errorf("index: unknown backend %q (valid values: qdrant, postgres, sqlite, memory)", backend)
	}
}

// DefaultDBPath returns ~/.pressqa/index.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("index: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".pressqa")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("index: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "index.db"), nil
}
