package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/54b3r/pressqa-go/internal/embedder"
	"github.com/54b3r/pressqa-go/internal/generation"
	"github.com/54b3r/pressqa-go/internal/index"
	"github.com/54b3r/pressqa-go/internal/rag"
	"github.com/54b3r/pressqa-go/internal/store"
)

// historyDisabled turns the query log off when set as PRESSQA_HISTORY_DB.
const historyDisabled = "disabled"

// buildEmbedder validates the embedding configuration and returns the
// process-wide embedder.
func buildEmbedder(log *slog.Logger) (rag.Embedder, error) {
	if err := embedder.Validate(log); err != nil {
		return nil, err
	}
	emb, err := embedder.Shared()
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	log.Debug("embedder ready",
		slog.String("backend", embedder.Backend()),
		slog.String("model", emb.Model()),
		slog.Int("dimensions", emb.Dimensions()),
	)
	return emb, nil
}

// buildIndex opens the configured vector index bound to emb's model identity.
func buildIndex(ctx context.Context, emb rag.Embedder, log *slog.Logger) (index.Index, error) {
	idx, err := index.OpenFromEnv(ctx, index.Meta{Model: emb.Model(), Dimensions: emb.Dimensions()})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s index: %w", index.BackendFromEnv(), err)
	}
	log.Debug("index ready", slog.String("backend", index.BackendFromEnv()))
	return idx, nil
}

// buildRetriever wires the embedder and index into a Retriever. The
// returned index must be closed by the caller.
func buildRetriever(ctx context.Context, log *slog.Logger) (*rag.Retriever, index.Index, error) {
	emb, err := buildEmbedder(log)
	if err != nil {
		return nil, nil, err
	}
	idx, err := buildIndex(ctx, emb, log)
	if err != nil {
		return nil, nil, err
	}
	r, err := rag.NewRetriever(emb, idx)
	if err != nil {
		_ = idx.Close()
		return nil, nil, err
	}
	return r, idx, nil
}

// buildGenerator returns the configured generator. A generator that cannot
// be built is logged and replaced by one that always fails, so retrieval
// still works and answers degrade to the fixed fallback sentence.
func buildGenerator(ctx context.Context, log *slog.Logger) generation.Completer {
	gen, err := generation.NewFromEnv(ctx)
	if err != nil {
		log.Warn("generation unavailable, answers will use the fallback sentence", slog.Any("error", err))
		return generation.Unavailable{Err: err}
	}
	log.Debug("generator ready", slog.String("model", gen.Name()))
	return gen
}

// openHistory opens the query log unless PRESSQA_HISTORY_DB=disabled. A
// store that cannot be opened is logged and skipped; the returned QueryLog
// is then nil.
func openHistory(log *slog.Logger) store.QueryLog {
	path := os.Getenv("PRESSQA_HISTORY_DB")
	if path == historyDisabled {
		log.Info("history: disabled via PRESSQA_HISTORY_DB")
		return nil
	}
	if path == "" {
		var err error
		if path, err = store.DefaultDBPath(); err != nil {
			log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil
		}
	}
	hs, err := store.Open(path)
	if err != nil {
		log.Warn("history: failed to open store, disabling", slog.String("path", path), slog.Any("error", err))
		return nil
	}
	log.Debug("history: store opened", slog.String("path", path))
	return hs
}

// retrievalDefaults returns RETRIEVAL_TOP_K and RETRIEVAL_THRESHOLD, or the
// built-in defaults when unset. Invalid values are a *rag.ConfigurationError.
func retrievalDefaults() (int, float64, error) {
	topK, err := envTopK()
	if err != nil {
		return 0, 0, err
	}
	threshold, err := envThreshold()
	if err != nil {
		return 0, 0, err
	}
	return topK, threshold, nil
}

func envTopK() (int, error) {
	v := os.Getenv("RETRIEVAL_TOP_K")
	if v == "" {
		return rag.DefaultTopK, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &rag.ConfigurationError{Field: "top_k", Value: v, Reason: "RETRIEVAL_TOP_K must be an integer"}
	}
	if err := rag.ValidateParams(n, rag.DefaultThreshold); err != nil {
		return 0, err
	}
	return n, nil
}

func envThreshold() (float64, error) {
	v := os.Getenv("RETRIEVAL_THRESHOLD")
	if v == "" {
		return rag.DefaultThreshold, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, &rag.ConfigurationError{Field: "similarity_threshold", Value: v, Reason: "RETRIEVAL_THRESHOLD must be a number"}
	}
	if err := rag.ValidateParams(rag.DefaultTopK, f); err != nil {
		return 0, err
	}
	return f, nil
}

// printResults writes retrieval results in the order they were ranked.
func printResults(w io.Writer, results []rag.Result) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results above the similarity threshold.")
		return
	}
	for i, r := range results {
		fmt.Fprintf(w, "[%d] %.3f  %s (%s)\n", i+1, r.Similarity, r.Title, r.PublishDate)
		if r.Author != nil {
			fmt.Fprintf(w, "    by %s\n", *r.Author)
		}
		fmt.Fprintf(w, "    %s\n", r.SourceLink)
		fmt.Fprintf(w, "    %s\n\n", indent(r.Content, "    "))
	}
}

// printSources writes the distinct source links of results, in rank order.
func printSources(w io.Writer, results []rag.Result) {
	seen := make(map[string]bool, len(results))
	fmt.Fprintln(w, "\nSources:")
	for _, r := range results {
		if seen[r.SourceLink] {
			continue
		}
		seen[r.SourceLink] = true
		fmt.Fprintf(w, "  - %s (%s) %s\n", r.Title, r.PublishDate, r.SourceLink)
	}
}

func indent(s, prefix string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "\n", "\n"+prefix)
}

// progressLogger adapts a logger to the progress callbacks used by the
// scraper and ingestion pipeline.
func progressLogger(log *slog.Logger) func(string) {
	return func(msg string) { log.Info(msg) }
}
