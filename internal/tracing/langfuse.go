// Package tracing wires Langfuse into eino's global callback chain so every
// generation call made by the question-answering service is traced.
package tracing

import (
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"
)

// defaultHost is the self-hosted Langfuse address used when LANGFUSE_HOST
// is unset.
const defaultHost = "http://localhost:3000"

// Setup registers a Langfuse handler globally when LANGFUSE_PUBLIC_KEY and
// LANGFUSE_SECRET_KEY are both set. It returns a flush function to run
// before exit and whether tracing was enabled. When disabled the flush
// function is a no-op, so callers can always defer it.
func Setup() (flush func(), enabled bool) {
	publicKey := os.Getenv("LANGFUSE_PUBLIC_KEY")
	secretKey := os.Getenv("LANGFUSE_SECRET_KEY")
	if publicKey == "" || secretKey == "" {
		return func() {}, false
	}
	host := os.Getenv("LANGFUSE_HOST")
	if host == "" {
		host = defaultHost
	}

	handler, flusher := langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      host,
		PublicKey: publicKey,
		SecretKey: secretKey,
	})
	callbacks.AppendGlobalHandlers(handler)
	return flusher, true
}
