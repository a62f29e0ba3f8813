package audit

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
)

func TestSanitiseKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key, value, want string
	}{
		{"OPENAI_API_KEY", "sk-abc123", "set"},
		{"OPENAI_API_KEY", "", "unset"},
		{"PRESSQA_API_KEY", "token", "set"},
		{"MODEL_PROVIDER", "azure", "azure"},
		{"MODEL_PROVIDER", "", "unset"},
		{"DATABASE_URL", "postgres://press:hunter2@db:5432/pressqa", "postgres://press:xxxxx@db:5432/pressqa"},
		{"DATABASE_URL", "postgres://db:5432/pressqa", "postgres://db:5432/pressqa"},
		{"EMBEDDING_CACHE", "localhost:6379", "localhost:6379"},
		{"EMBEDDING_CACHE", "redis://:pw@cache:6379/0", "redis://:xxxxx@cache:6379/0"},
		{"UNLISTED", "value", "value"},
	}
	for _, tc := range tests {
		if got := SanitiseKey(tc.key, tc.value); got != tc.want {
			t.Errorf("SanitiseKey(%q, %q) = %q, want %q", tc.key, tc.value, got, tc.want)
		}
	}
}

func TestSanitiseConfigPath(t *testing.T) {
	t.Parallel()
	if got := sanitiseConfigPath(""); got != "none" {
		t.Errorf("expected 'none', got %q", got)
	}
	if got := sanitiseConfigPath("/tmp/config.yaml"); got != "/tmp/config.yaml" {
		t.Errorf("expected '/tmp/config.yaml', got %q", got)
	}
	home, err := os.UserHomeDir()
	if err == nil && home != "/" {
		p := home + "/.pressqa/config.yaml"
		if got := sanitiseConfigPath(p); got != "~/.pressqa/config.yaml" {
			t.Errorf("expected '~/.pressqa/config.yaml', got %q", got)
		}
	}
}

func TestLogCommandStart_NeverLogsSecrets(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-very-secret")
	t.Setenv("DATABASE_URL", "postgres://u:pw-secret@db/pressqa")
	t.Setenv("INDEX_BACKEND", "postgres")

	var buf bytes.Buffer
	LogCommandStart(slog.New(slog.NewJSONHandler(&buf, nil)), "ingest", "")

	if bytes.Contains(buf.Bytes(), []byte("sk-very-secret")) || bytes.Contains(buf.Bytes(), []byte("pw-secret")) {
		t.Fatalf("secret leaked into audit log: %s", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["command"] != "ingest" || entry["INDEX_BACKEND"] != "postgres" || entry["OPENAI_API_KEY"] != "set" {
		t.Errorf("unexpected entry %v", entry)
	}
}
