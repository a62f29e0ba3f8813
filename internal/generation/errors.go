package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/54b3r/pressqa-go/internal/logging"
)

// Fixed user-facing answers used when generation fails.
const (
	// FallbackNotConfigured is returned for authentication and configuration failures.
	FallbackNotConfigured = "The language model is not configured. Check the API key for the selected provider."
	// FallbackError is returned for every other failure.
	FallbackError = "Sorry, I encountered an error while generating the answer."
)

// Kind classifies a generation failure.
type Kind string

const (
	// KindAuth covers missing or rejected credentials and other configuration problems.
	KindAuth Kind = "auth"
	// KindTransport covers network failures, timeouts, and provider-side errors.
	KindTransport Kind = "transport"
	// KindEmpty is a successful call that produced no text.
	KindEmpty Kind = "empty"
)

// GenerationServiceError reports that the generator could not produce an answer.
type GenerationServiceError struct {
	// Kind classifies the failure.
	Kind Kind
	// Err is the underlying cause.
	Err error
}

func (e *GenerationServiceError) Error() string {
	return fmt.Sprintf("generation: %s failure: %v", e.Kind, e.Err)
}

func (e *GenerationServiceError) Unwrap() error { return e.Err }

// authMarkers are fragments that providers put in credential-related errors.
var authMarkers = []string{
	"401", "403", "unauthorized", "forbidden", "invalid api key",
	"incorrect api key", "api key not valid", "authentication", "permission denied",
}

// classify wraps a backend error with the Kind implied by its message.
func classify(err error) *GenerationServiceError {
	var gse *GenerationServiceError
	if errors.As(err, &gse) {
		return gse
	}
	msg := strings.ToLower(err.Error())
	for _, m := range authMarkers {
		if strings.Contains(msg, m) {
			return &GenerationServiceError{Kind: KindAuth, Err: err}
		}
	}
	return &GenerationServiceError{Kind: KindTransport, Err: err}
}

// Completer produces an answer for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// AnswerOrFallback runs c and returns its answer, or the fixed fallback
// sentence if it fails. The failure is logged, never returned.
func AnswerOrFallback(ctx context.Context, c Completer, prompt string) string {
	answer, err := c.Complete(ctx, prompt)
	if err == nil {
		return answer
	}

	log := logging.FromContext(ctx)
	gse := classify(err)
	log.Error("generation failed",
		slog.String("kind", string(gse.Kind)),
		slog.String("error", gse.Err.Error()),
	)
	if gse.Kind == KindAuth {
		return FallbackNotConfigured
	}
	return FallbackError
}

// Unavailable is a Completer that always fails with err. It stands in for
// a generator that could not be constructed, so retrieval keeps working
// and the caller still gets the fixed fallback answer.
type Unavailable struct {
	// Err is returned from every Complete call.
	Err error
}

// Complete implements Completer.
func (u Unavailable) Complete(context.Context, string) (string, error) {
	return "", u.Err
}
