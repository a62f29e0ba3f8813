// Package article defines the scraped press-release record and its
// on-disk JSON form. Records are produced once by the scraper and are
// immutable afterwards; the ingestion pipeline reads them back from disk.
package article

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DateLayout is the calendar-date layout used in the persisted JSON records
// ("MM-DD-YYYY").
const DateLayout = "01-02-2006"

// BlockKind classifies a structural block of article content.
type BlockKind string

const (
	// KindParagraph is a plain paragraph of prose.
	KindParagraph BlockKind = "paragraph"
	// KindList is a bulleted or numbered list; Text holds the joined items.
	KindList BlockKind = "list"
	// KindTable is a data table; Rows holds the cells, first row is the header.
	KindTable BlockKind = "table"
	// KindHeading is a section heading. It produces no chunk of its own.
	KindHeading BlockKind = "heading"
	// KindBoilerplate marks content shared across all articles (footnotes).
	KindBoilerplate BlockKind = "boilerplate"
)

// Block is one structural element of an article's content area, in
// document order.
type Block struct {
	// Kind classifies the block.
	Kind BlockKind `json:"kind"`
	// Text is the extracted text of paragraph, list, heading, and
	// boilerplate blocks.
	Text string `json:"text,omitempty"`
	// Rows holds table cells row by row. Only set for KindTable.
	Rows [][]string `json:"rows,omitempty"`
}

// Record is one scraped press release.
type Record struct {
	// Title is the article title.
	Title string
	// Author is the optional byline. Nil when the article has none.
	Author *string
	// PublishDate is the calendar date of publication (UTC midnight).
	PublishDate time.Time
	// Link is the canonical article URL. Unique per article.
	Link string
	// Blocks is the ordered structural content of the article.
	Blocks []Block
}

// fileRecord is the persisted JSON shape. Content accepts either plain
// strings (already-chunked text) or typed block objects.
type fileRecord struct {
	Title   string            `json:"title"`
	Date    string            `json:"date"`
	Author  *string           `json:"author"`
	Link    string            `json:"link"`
	Content []json.RawMessage `json:"content"`
}

// MarshalJSON encodes the record in its persisted form.
func (r Record) MarshalJSON() ([]byte, error) {
	out := struct {
		Title   string  `json:"title"`
		Date    string  `json:"date"`
		Author  *string `json:"author"`
		Link    string  `json:"link"`
		Content []Block `json:"content"`
	}{
		Title:   r.Title,
		Date:    r.PublishDate.Format(DateLayout),
		Author:  r.Author,
		Link:    r.Link,
		Content: r.Blocks,
	}
	if out.Content == nil {
		out.Content = []Block{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the persisted form. String content entries become
// paragraph blocks so pre-chunked corpora load unchanged.
func (r *Record) UnmarshalJSON(data []byte) error {
	var fr fileRecord
	if err := json.Unmarshal(data, &fr); err != nil {
		return err
	}
	date, err := ParseDate(fr.Date)
	if err != nil {
		return err
	}

	blocks := make([]Block, 0, len(fr.Content))
	for i, raw := range fr.Content {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			blocks = append(blocks, Block{Kind: KindParagraph, Text: s})
			continue
		}
		var b Block
		if err := json.Unmarshal(raw, &b); err != nil {
			return fmt.Errorf("article: content[%d]: %w", i, err)
		}
		blocks = append(blocks, b)
	}

	*r = Record{
		Title:       fr.Title,
		Author:      fr.Author,
		PublishDate: date,
		Link:        fr.Link,
		Blocks:      blocks,
	}
	return nil
}

// ParseDate parses a "MM-DD-YYYY" calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("article: invalid date %q (want MM-DD-YYYY): %w", s, err)
	}
	return t, nil
}

// Validate checks the fields every downstream consumer relies on.
func (r *Record) Validate() error {
	if strings.TrimSpace(r.Link) == "" {
		return fmt.Errorf("article: link is required")
	}
	if r.PublishDate.IsZero() {
		return fmt.Errorf("article: publish date is required (%s)", r.Link)
	}
	return nil
}

// ReadFile loads a single record from a JSON file.
func ReadFile(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("article: read %s: %w", path, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("article: parse %s: %w", path, err)
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("%w (file %s)", err, path)
	}
	return &rec, nil
}

// ReadDir loads every *.json record in dir, sorted by file name so repeated
// runs see the same order. A file that cannot be read, parsed, or validated
// is passed to onInvalid and skipped; with a nil onInvalid it fails the call.
func ReadDir(dir string, onInvalid func(path string, err error)) ([]*Record, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("article: glob %s: %w", dir, err)
	}
	sort.Strings(paths)

	records := make([]*Record, 0, len(paths))
	for _, p := range paths {
		rec, err := ReadFile(p)
		if err != nil {
			if onInvalid == nil {
				return nil, err
			}
			onInvalid(p, err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// WriteFile persists rec as indented JSON at path.
func WriteFile(path string, rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "    ")
	if err != nil {
		return fmt.Errorf("article: marshal %s: %w", rec.Link, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("article: write %s: %w", path, err)
	}
	return nil
}
