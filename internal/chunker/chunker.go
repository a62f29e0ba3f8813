// Package chunker splits an article's structural blocks into retrievable
// text chunks. Each chunk carries the most recent section heading as a
// prefix so it stays meaningful when retrieved on its own.
package chunker

import (
	"strings"

	"github.com/54b3r/pressqa-go/internal/article"
	"github.com/54b3r/pressqa-go/internal/rag"
)

// piece is one emitted chunk before article metadata is attached.
type piece struct {
	text   string
	header string
}

// Chunk returns the ordered chunk texts for blocks. Headings only update the
// running section context, boilerplate is skipped, and blocks that are empty
// after normalisation produce nothing. The result never contains an empty
// string.
func Chunk(blocks []article.Block) []string {
	pieces := split(blocks)
	out := make([]string, len(pieces))
	for i, p := range pieces {
		out[i] = p.text
	}
	return out
}

// ChunkRecord chunks rec and copies the article metadata onto every chunk.
func ChunkRecord(rec *article.Record) []rag.Chunk {
	pieces := split(rec.Blocks)
	chunks := make([]rag.Chunk, 0, len(pieces))
	for _, p := range pieces {
		chunks = append(chunks, rag.Chunk{
			Text:           p.text,
			SectionContext: p.header,
			Title:          rec.Title,
			Author:         rec.Author,
			PublishDate:    rec.PublishDate,
			SourceLink:     rec.Link,
		})
	}
	return chunks
}

func split(blocks []article.Block) []piece {
	var (
		out        []piece
		lastHeader string
	)
	for _, b := range blocks {
		var text string
		switch b.Kind {
		case article.KindHeading:
			lastHeader = strings.TrimSpace(b.Text)
			continue
		case article.KindBoilerplate:
			continue
		case article.KindTable:
			text = renderTable(b.Rows)
		case article.KindParagraph, article.KindList, "":
			text = strings.TrimSpace(b.Text)
		default:
			continue
		}
		if text == "" {
			continue
		}

		if lastHeader != "" {
			text = lastHeader + ": " + text
		}
		text = Normalize(text)
		if strings.TrimSpace(text) == "" {
			continue
		}
		out = append(out, piece{text: text, header: Normalize(lastHeader)})
	}
	return out
}
