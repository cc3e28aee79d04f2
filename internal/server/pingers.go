package server

import (
	"context"
	"fmt"

	"github.com/genskey/gskai-go/internal/embed"
)

// EmbedderPinger probes an embedding backend for reachability. It satisfies
// the Pinger interface and is used by GET /api/ready. The probe goes through
// the backend's zero-cost health endpoint, never a real embedding call.
type EmbedderPinger struct {
	// checker is the embedding backend to probe.
	checker embed.HealthChecker
	// name identifies the backend in readiness responses (e.g. "embedder").
	name string
}

// NewEmbedderPinger constructs an EmbedderPinger for the given backend.
func NewEmbedderPinger(c embed.HealthChecker, name string) *EmbedderPinger {
	return &EmbedderPinger{checker: c, name: name}
}

// Name returns the dependency label used in readiness responses.
func (p *EmbedderPinger) Name() string { return p.name }

// Ping runs the backend's health check.
// Returns nil if the backend is reachable, or a descriptive error otherwise.
func (p *EmbedderPinger) Ping(ctx context.Context) error {
	if err := p.checker.HealthCheck(ctx); err != nil {
		return fmt.Errorf("%s health check failed: %w", p.name, err)
	}
	return nil
}
