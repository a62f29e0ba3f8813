// Package qa answers questions over the indexed press releases: retrieve,
// assemble the prompt, generate, and record the exchange.
package qa

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/54b3r/pressqa-go/internal/generation"
	"github.com/54b3r/pressqa-go/internal/logging"
	"github.com/54b3r/pressqa-go/internal/prompt"
	"github.com/54b3r/pressqa-go/internal/rag"
	"github.com/54b3r/pressqa-go/internal/store"
)

// NoResultsMessage is returned when no chunk passes the similarity
// threshold. The generator is not called in that case.
const NoResultsMessage = "No relevant information found in the press releases for your query."

// Retriever is the retrieval step. *rag.Retriever satisfies it.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int, threshold float64) ([]rag.Result, error)
}

// Answer is the outcome of one question.
type Answer struct {
	// Text is the generated answer, NoResultsMessage, or a fallback sentence.
	Text string `json:"answer"`
	// Results are the chunks the answer was grounded on, best first.
	Results []rag.Result `json:"results"`
	// Generated is false when the generator was skipped for lack of context.
	Generated bool `json:"generated"`
}

// Service wires retrieval to generation.
type Service struct {
	// retriever finds the context chunks.
	retriever Retriever
	// generator produces the answer text.
	generator generation.Completer
	// history records answered questions. May be nil.
	history store.QueryLog
}

// NewService constructs a Service. history may be nil to disable the query log.
func NewService(retriever Retriever, generator generation.Completer, history store.QueryLog) (*Service, error) {
	if retriever == nil {
		return nil, fmt.Errorf("qa: retriever must not be nil")
	}
	if generator == nil {
		return nil, fmt.Errorf("qa: generator must not be nil")
	}
	return &Service{retriever: retriever, generator: generator, history: history}, nil
}

// Search runs retrieval only. It backs the search command and endpoint.
func (s *Service) Search(ctx context.Context, question string, topK int, threshold float64) ([]rag.Result, error) {
	return s.retriever.Retrieve(ctx, question, topK, threshold)
}

// Answer retrieves context for question and generates an answer from it.
//
// Retrieval errors (*rag.ConfigurationError, *rag.EmbeddingError,
// *rag.IndexUnavailableError) are returned to the caller. Generation
// failures are not: they degrade to a fixed fallback sentence in Text.
func (s *Service) Answer(ctx context.Context, question string, topK int, threshold float64) (*Answer, error) {
	log := logging.FromContext(ctx)
	start := time.Now()

	results, err := s.retriever.Retrieve(ctx, question, topK, threshold)
	if err != nil {
		return nil, err
	}

	ans := &Answer{Results: results}
	if len(results) == 0 {
		ans.Text = NoResultsMessage
	} else {
		p, err := prompt.Build(question, results)
		if err != nil {
			return nil, fmt.Errorf("qa: build prompt: %w", err)
		}
		ans.Text = generation.AnswerOrFallback(ctx, s.generator, p)
		ans.Generated = true
	}

	log.Info("question answered",
		slog.Int("top_k", topK),
		slog.Float64("threshold", threshold),
		slog.Int("results", len(results)),
		slog.Bool("generated", ans.Generated),
		slog.Duration("duration", time.Since(start)),
	)

	s.record(ctx, question, topK, threshold, ans)
	return ans, nil
}

// record appends to the query log. Failures are logged and dropped so a
// broken history database never blocks answers.
func (s *Service) record(ctx context.Context, question string, topK int, threshold float64, ans *Answer) {
	if s.history == nil {
		return
	}
	err := s.history.Append(ctx, store.Entry{
		Question:  question,
		TopK:      topK,
		Threshold: threshold,
		Results:   len(ans.Results),
		Answer:    ans.Text,
	})
	if err != nil {
		logging.FromContext(ctx).Warn("query log append failed", slog.String("error", err.Error()))
	}
}
