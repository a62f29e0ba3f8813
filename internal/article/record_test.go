package article

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestUnmarshal_StringContent(t *testing.T) {
	t.Parallel()

	raw := `{
		"title": "Telekom expands AI",
		"date": "03-14-2024",
		"author": null,
		"link": "https://www.telekom.com/en/media/media-information/archive/ai-1",
		"content": ["First chunk.", "Second chunk."]
	}`

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	want := time.Date(2024, time.March, 14, 0, 0, 0, 0, time.UTC)
	if !rec.PublishDate.Equal(want) {
		t.Errorf("PublishDate = %v, want %v", rec.PublishDate, want)
	}
	if rec.Author != nil {
		t.Errorf("Author = %q, want nil", *rec.Author)
	}
	if len(rec.Blocks) != 2 {
		t.Fatalf("want 2 blocks, got %d", len(rec.Blocks))
	}
	for i, b := range rec.Blocks {
		if b.Kind != KindParagraph {
			t.Errorf("block[%d].Kind = %q, want paragraph", i, b.Kind)
		}
	}
}

func TestUnmarshal_TypedBlocks(t *testing.T) {
	t.Parallel()

	raw := `{
		"title": "t", "date": "12-01-2023", "author": "Press Office", "link": "https://x/1",
		"content": [
			{"kind": "heading", "text": "Outlook"},
			{"kind": "table", "rows": [["Year", "Revenue"], ["2023", "112bn"]]},
			"plain"
		]
	}`

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec.Author == nil || *rec.Author != "Press Office" {
		t.Errorf("author = %v", rec.Author)
	}
	if rec.Blocks[0].Kind != KindHeading || rec.Blocks[1].Kind != KindTable || rec.Blocks[2].Kind != KindParagraph {
		t.Errorf("unexpected kinds: %+v", rec.Blocks)
	}
	if got := rec.Blocks[1].Rows[1][1]; got != "112bn" {
		t.Errorf("table cell = %q", got)
	}
}

func TestUnmarshal_BadDate(t *testing.T) {
	t.Parallel()

	raw := `{"title":"t","date":"2024-03-14","link":"https://x","content":[]}`
	var rec Record
	err := json.Unmarshal([]byte(raw), &rec)
	if err == nil || !strings.Contains(err.Error(), "MM-DD-YYYY") {
		t.Fatalf("want MM-DD-YYYY error, got %v", err)
	}
}

func TestWriteAndReadDir_RoundTripOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	author := "Jane Doe"
	recs := []*Record{
		{Title: "b", Link: "https://x/b", PublishDate: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Author: &author,
			Blocks: []Block{{Kind: KindParagraph, Text: "hello"}}},
		{Title: "a", Link: "https://x/a", PublishDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	if err := WriteFile(filepath.Join(dir, "press_release_1.json"), recs[0]); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WriteFile(filepath.Join(dir, "press_release_0.json"), recs[1]); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := ReadDir(dir, nil)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 records, got %d", len(got))
	}
	if got[0].Link != "https://x/a" || got[1].Link != "https://x/b" {
		t.Errorf("want file-name order, got %s, %s", got[0].Link, got[1].Link)
	}
	if got[1].Author == nil || *got[1].Author != author {
		t.Errorf("author lost: %v", got[1].Author)
	}
}

func TestReadDir_InvalidFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := &Record{Title: "ok", Link: "https://x/ok", PublishDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	if err := WriteFile(filepath.Join(dir, "press_release_0.json"), good); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "press_release_1.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "press_release_2.json"), []byte(`{"title":"no link","date":"03-01-2024"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := ReadDir(dir, nil); err == nil {
		t.Error("want error without an onInvalid callback")
	}

	var bad []string
	got, err := ReadDir(dir, func(path string, _ error) { bad = append(bad, filepath.Base(path)) })
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(got) != 1 || got[0].Link != "https://x/ok" {
		t.Errorf("want only the valid record, got %d", len(got))
	}
	if len(bad) != 2 || bad[0] != "press_release_1.json" || bad[1] != "press_release_2.json" {
		t.Errorf("skipped files = %v", bad)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	if err := (&Record{PublishDate: time.Now()}).Validate(); err == nil {
		t.Error("want error for missing link")
	}
	if err := (&Record{Link: "https://x"}).Validate(); err == nil {
		t.Error("want error for missing date")
	}
}
