package budget

import (
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
)

func Test_Estimate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 1},
		{"abcdefgh", 2},
		{strings.Repeat("x", 400), 100},
	}
	for _, tc := range cases {
		got := Estimate(tc.input)
		if got != tc.want {
			t.Errorf("Estimate(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func Test_EstimateMessages(t *testing.T) {
	t.Parallel()
	msgs := []*schema.Message{
		schema.UserMessage("hello world"),
		schema.UserMessage("hello world"),
	}
	// Each message: 4 overhead + Estimate("user")=1 + Estimate("hello world")=2 = 7
	if got := EstimateMessages(msgs); got != 14 {
		t.Errorf("EstimateMessages = %d, want 14", got)
	}
}

func Test_Check(t *testing.T) {
	t.Parallel()

	short := []*schema.Message{schema.UserMessage("short question")}
	long := []*schema.Message{schema.UserMessage(strings.Repeat("context ", 4000))}

	cases := []struct {
		name     string
		msgs     []*schema.Message
		max      int
		wantOver bool
		wantMax  int
	}{
		{"fits default", short, 0, false, DefaultMaxContextTokens},
		{"over default", long, 0, true, DefaultMaxContextTokens},
		{"fits explicit", long, 10000, false, 10000},
		{"over tiny", short, 3, true, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r := Check(tc.msgs, tc.max)
			if r.Over != tc.wantOver {
				t.Errorf("Over = %v, want %v (estimated %d)", r.Over, tc.wantOver, r.Estimated)
			}
			if r.Max != tc.wantMax {
				t.Errorf("Max = %d, want %d", r.Max, tc.wantMax)
			}
			if r.Estimated != EstimateMessages(tc.msgs) {
				t.Errorf("Estimated = %d, want %d", r.Estimated, EstimateMessages(tc.msgs))
			}
		})
	}
}
