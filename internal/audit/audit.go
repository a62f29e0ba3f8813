// Package audit writes one structured log entry per CLI invocation: the
// command, the config file it ran with, and the settings that decide where
// data is read from and sent to. Secrets are reduced to "set" or "unset"
// and credentials embedded in connection URLs are masked.
package audit

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"strings"
)

// kind says how an env var's value may appear in the log.
type kind int

const (
	plain kind = iota
	secret
	connURL
)

// auditEntry is one env var included in every audit entry.
type auditEntry struct {
	// key is the environment variable name.
	key string
	// kind selects the sanitisation applied to its value.
	kind kind
}

// auditKeys is the ordered list of env vars recorded at command start.
var auditKeys = []auditEntry{
	{"MODEL_PROVIDER", plain},
	{"OPENAI_MODEL", plain},
	{"OPENAI_API_KEY", secret},
	{"AZURE_OPENAI_ENDPOINT", plain},
	{"AZURE_OPENAI_DEPLOYMENT", plain},
	{"AZURE_OPENAI_API_KEY", secret},
	{"OLLAMA_HOST", plain},
	{"OLLAMA_MODEL", plain},
	{"GEMINI_MODEL", plain},
	{"GOOGLE_API_KEY", secret},
	{"ARK_MODEL", plain},
	{"ARK_API_KEY", secret},
	{"EMBEDDING_PROVIDER", plain},
	{"EMBEDDING_MODEL", plain},
	{"EMBEDDING_API_KEY", secret},
	{"EMBEDDING_CACHE", connURL},
	{"INDEX_BACKEND", plain},
	{"INDEX_DB", plain},
	{"DATABASE_URL", connURL},
	{"QDRANT_HOST", plain},
	{"QDRANT_COLLECTION", plain},
	{"QDRANT_API_KEY", secret},
	{"PRESS_RELEASES_DIR", plain},
	{"PRESSQA_API_KEY", secret},
	{"PRESSQA_HISTORY_DB", plain},
	{"LOG_LEVEL", plain},
	{"LANGFUSE_PUBLIC_KEY", secret},
	{"LANGFUSE_SECRET_KEY", secret},
}

// LogCommandStart emits the audit entry for command.
func LogCommandStart(log *slog.Logger, command string, configPath string) {
	attrs := make([]slog.Attr, 0, len(auditKeys)+2)
	attrs = append(attrs,
		slog.String("command", command),
		slog.String("config_file", sanitiseConfigPath(configPath)),
	)
	for _, e := range auditKeys {
		attrs = append(attrs, slog.String(e.key, sanitise(e.kind, os.Getenv(e.key))))
	}
	log.LogAttrs(context.Background(), slog.LevelInfo, "audit: command start", attrs...)
}

// SanitiseKey returns the loggable form of an env var value: presence only
// for secrets, a masked URL for connection strings, the value otherwise.
func SanitiseKey(key, value string) string {
	for _, e := range auditKeys {
		if e.key == key {
			return sanitise(e.kind, value)
		}
	}
	return valOrUnset(value)
}

func sanitise(k kind, v string) string {
	switch k {
	case secret:
		return presence(v)
	case connURL:
		return maskURL(v)
	default:
		return valOrUnset(v)
	}
}

// maskURL replaces the password of a URL's userinfo with "xxxxx". Values
// that do not parse as URLs with a scheme (e.g. "localhost:6379") are kept.
func maskURL(v string) string {
	if v == "" {
		return "unset"
	}
	u, err := url.Parse(v)
	if err != nil || u.Scheme == "" {
		if strings.Contains(v, "@") {
			return "set"
		}
		return v
	}
	return u.Redacted()
}

// presence returns "set" if the value is non-empty, "unset" otherwise.
func presence(v string) string {
	if v != "" {
		return "set"
	}
	return "unset"
}

func valOrUnset(v string) string {
	if v != "" {
		return v
	}
	return "unset"
}

// sanitiseConfigPath returns the config path with the home directory
// shortened to "~", or "none".
func sanitiseConfigPath(p string) string {
	if p == "" {
		return "none"
	}
	home, err := os.UserHomeDir()
	if err == nil && home != "" && strings.HasPrefix(p, home) {
		return "~" + p[len(home):]
	}
	return p
}
