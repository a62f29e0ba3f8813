package prompt

import (
	"errors"
	"strings"
	"testing"

	"github.com/54b3r/pressqa-go/internal/rag"
)

func res(link, content, date string, sim float64) rag.Result {
	return rag.Result{Content: content, SourceLink: link, PublishDate: date, Similarity: sim}
}

func TestGroupBySource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      []rag.Result
		want    []SourceGroup
		wantLen int
	}{
		{
			name: "empty input yields no groups",
			in:   nil,
		},
		{
			name: "single source yields one group",
			in: []rag.Result{
				res("https://x/1", "a", "2024-01-01", 0.9),
				res("https://x/1", "b", "2024-01-01", 0.8),
			},
			want: []SourceGroup{{Index: 1, SourceLink: "https://x/1", PublishDate: "2024-01-01", Chunks: []string{"a", "b"}}},
		},
		{
			name: "first-seen order and per-group input order",
			in: []rag.Result{
				res("https://x/A", "A1", "2024-03-01", 0.9),
				res("https://x/B", "B1", "2024-02-01", 0.8),
				res("https://x/A", "A2", "2024-03-01", 0.7),
			},
			want: []SourceGroup{
				{Index: 1, SourceLink: "https://x/A", PublishDate: "2024-03-01", Chunks: []string{"A1", "A2"}},
				{Index: 2, SourceLink: "https://x/B", PublishDate: "2024-02-01", Chunks: []string{"B1"}},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := GroupBySource(tc.in)
			if len(got) != len(tc.want) {
				t.Fatalf("got %d groups, want %d", len(got), len(tc.want))
			}
			for i := range got {
				g, w := got[i], tc.want[i]
				if g.Index != w.Index || g.SourceLink != w.SourceLink || g.PublishDate != w.PublishDate ||
					strings.Join(g.Chunks, "|") != strings.Join(w.Chunks, "|") {
					t.Errorf("group[%d] = %+v, want %+v", i, g, w)
				}
			}
		})
	}
}

func TestBuild_EmptyContext(t *testing.T) {
	t.Parallel()

	_, err := Build("anything", nil)
	if !errors.Is(err, ErrEmptyContext) {
		t.Fatalf("want ErrEmptyContext, got %v", err)
	}
}

func TestBuild_TwoSourceScenario(t *testing.T) {
	t.Parallel()

	p, err := Build("What did Telekom announce?", []rag.Result{
		res("https://x/A", "first from A", "2024-03-01", 0.9),
		res("https://x/B", "only from B", "2024-02-01", 0.8),
		res("https://x/A", "second from A", "2024-03-01", 0.7),
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	wantA := "[Source 1]:\nURL: https://x/A\nPublished Date: 2024-03-01\nRelevant Content:\n- \"first from A\"\n- \"second from A\"\n\n"
	wantB := "[Source 2]:\nURL: https://x/B\nPublished Date: 2024-02-01\nRelevant Content:\n- \"only from B\"\n\n"
	if !strings.Contains(p, wantA) {
		t.Errorf("source A block missing or malformed:\n%s", p)
	}
	if !strings.Contains(p, wantB) {
		t.Errorf("source B block missing or malformed:\n%s", p)
	}
	if strings.Index(p, wantA) > strings.Index(p, wantB) {
		t.Error("source 1 must precede source 2")
	}
	if strings.Contains(p, "[Source 3]") {
		t.Error("unexpected third source")
	}
}

func TestBuild_TemplateParts(t *testing.T) {
	t.Parallel()

	q := `Who is "the" CEO?`
	p, err := Build(q, []rag.Result{res("https://x/1", "c", "2024-01-01", 0.6)})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"based *only* on the provided context",
		"`[Source X]`",
		`"Sources Used"`,
		RefusalSentence,
		"USER'S QUESTION:\n\"" + q + "\"",
		"YOUR STRUCTURED RESPONSE:",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Index(p, "CONTEXT:") > strings.Index(p, "USER'S QUESTION:") {
		t.Error("context must come before the question")
	}
}

func TestBuild_Deterministic(t *testing.T) {
	t.Parallel()

	in := []rag.Result{res("b", "1", "d", 0.9), res("a", "2", "d", 0.8), res("b", "3", "d", 0.7)}
	p1, _ := Build("q", in)
	p2, _ := Build("q", in)
	if p1 != p2 {
		t.Error("Build is not deterministic")
	}
}
