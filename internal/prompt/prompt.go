// Package prompt turns retrieval results into the citation-constrained
// prompt sent to the generator. Results are grouped by source article and
// numbered in first-seen order so the model can cite them as [Source N].
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/54b3r/pressqa-go/internal/rag"
)

// ErrEmptyContext is returned by Build when there are no results. Callers
// must short-circuit before building a prompt with nothing to cite.
var ErrEmptyContext = errors.New("prompt: at least one context chunk is required")

// RefusalSentence is what the model is told to answer when the context is
// insufficient.
const RefusalSentence = "Based on the provided context, I cannot answer this question."

// SourceGroup is the set of results that share one source article.
type SourceGroup struct {
	// Index is the 1-based citation number.
	Index int
	// SourceLink is the article URL shared by every chunk in the group.
	SourceLink string
	// PublishDate is the date of the first chunk seen for this source.
	PublishDate string
	// Chunks holds the chunk texts in input order.
	Chunks []string
}

// GroupBySource partitions results by SourceLink. Groups are numbered in
// order of first appearance and chunks keep their input order within a
// group, so the same input always yields the same numbering.
func GroupBySource(results []rag.Result) []SourceGroup {
	pos := make(map[string]int, len(results))
	var groups []SourceGroup
	for _, r := range results {
		i, ok := pos[r.SourceLink]
		if !ok {
			i = len(groups)
			pos[r.SourceLink] = i
			groups = append(groups, SourceGroup{
				Index:       i + 1,
				SourceLink:  r.SourceLink,
				PublishDate: r.PublishDate,
			})
		}
		groups[i].Chunks = append(groups[i].Chunks, r.Content)
	}
	return groups
}

// Build renders the full prompt for question over results.
func Build(question string, results []rag.Result) (string, error) {
	if len(results) == 0 {
		return "", ErrEmptyContext
	}

	var ctx strings.Builder
	for _, g := range GroupBySource(results) {
		fmt.Fprintf(&ctx, "[Source %d]:\n", g.Index)
		fmt.Fprintf(&ctx, "URL: %s\n", g.SourceLink)
		fmt.Fprintf(&ctx, "Published Date: %s\n", g.PublishDate)
		ctx.WriteString("Relevant Content:\n")
		for _, c := range g.Chunks {
			fmt.Fprintf(&ctx, "- \"%s\"\n", c)
		}
		ctx.WriteString("\n")
	}

	return fmt.Sprintf(template, ctx.String(), question), nil
}

const template = `
You are a highly analytical assistant. Your task is to answer a user's question based *only* on the provided context.

Follow these instructions precisely:
1.  First, write a concise, synthesized answer to the user's question using information from the sources below.
2.  For each piece of information you use, you **must** include a citation marker in the format ` + "`[Source X]`" + ` where X is the number of the source you are referencing.
3.  After the answer, create a "Sources Used" section.
4.  In the "Sources Used" section, list *only* the sources you actually cited in your answer. For each source, provide its number and its full URL.
5.  If the provided context does not contain enough information to answer the question, you must state: "` + RefusalSentence + `"

---
CONTEXT:
%s
---

USER'S QUESTION:
"%s"

---

YOUR STRUCTURED RESPONSE:
`
