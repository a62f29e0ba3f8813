// Package budget estimates prompt size in tokens. Generation backends use
// different tokenizers, so the estimate is a character heuristic:
// 1 token ≈ 4 characters of English prose.
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// perMessageOverhead approximates the role and framing tokens most chat
	// APIs add around each message.
	perMessageOverhead = 4

	// DefaultMaxContextTokens is the default input budget in tokens. It fits
	// 8k-context models while leaving room for the answer.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated token count for msgs, summing
// role and content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += perMessageOverhead
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// Report is the outcome of checking a prompt against a budget.
type Report struct {
	// Estimated is the estimated input size in tokens.
	Estimated int
	// Max is the budget the prompt was checked against.
	Max int
	// Over is true when Estimated exceeds Max.
	Over bool
}

// Check estimates msgs against maxTokens. A non-positive maxTokens falls
// back to DefaultMaxContextTokens.
//
// Retrieved context is never trimmed here: a single-shot prompt has no
// history to drop, so callers only log the overrun.
func Check(msgs []*schema.Message, maxTokens int) Report {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxContextTokens
	}
	est := EstimateMessages(msgs)
	return Report{Estimated: est, Max: maxTokens, Over: est > maxTokens}
}
