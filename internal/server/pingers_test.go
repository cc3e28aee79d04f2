package server

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// fakeHealthChecker is a test double for the embed.HealthChecker interface.
type fakeHealthChecker struct {
	err error
}

func (f *fakeHealthChecker) HealthCheck(_ context.Context) error { return f.err }

func TestEmbedderPinger_Healthy(t *testing.T) {
	t.Parallel()

	p := NewEmbedderPinger(&fakeHealthChecker{}, "embedder")
	if got := p.Name(); got != "embedder" {
		t.Errorf("name: expected %q, got %q", "embedder", got)
	}
	if err := p.Ping(context.Background()); err != nil {
		t.Errorf("expected nil for healthy backend, got %v", err)
	}
}

func TestEmbedderPinger_FailureNamesBackend(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	p := NewEmbedderPinger(&fakeHealthChecker{err: cause}, "embedder")

	err := p.Ping(context.Background())
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	if !strings.Contains(err.Error(), "embedder") {
		t.Errorf("error should name the backend, got %q", err.Error())
	}
}
