// Package embed defines the embedding provider contract and HTTP-backed
// implementations for converting text into dense vector embeddings.
// Each implementation talks to a different backend (OpenAI, Azure OpenAI,
// Ollama) via plain HTTP — no additional SDK dependencies are required.
//
// Embeddings must be deterministic: the same input text against the same
// model version always yields the same vector, which is what makes
// re-ingestion idempotent.
package embed

import (
	"context"

	"github.com/genskey/gskai-go/internal/fault"
)

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// HealthChecker is implemented by embedding backends that can report their
// own reachability without producing embeddings. Readiness probes prefer it
// over issuing a real (and billed) embedding request.
type HealthChecker interface {
	// HealthCheck returns nil when the backend is reachable and accepts the
	// configured credentials.
	HealthCheck(ctx context.Context) error
}

// wrapErr classifies an embedding backend failure.
func wrapErr(err error, format string, args ...any) error {
	return fault.Wrap(fault.Embedding, err, format, args...)
}

// newErr constructs an embedding backend failure with no underlying cause.
func newErr(format string, args ...any) error {
	return fault.New(fault.Embedding, format, args...)
}
