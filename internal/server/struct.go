package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/genskey/gskai-go/internal/agent"
	"github.com/genskey/gskai-go/internal/ingest"
	"github.com/genskey/gskai-go/internal/registry"
	"github.com/genskey/gskai-go/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	// Must be long enough for an ingest run to complete.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives the server's Prometheus metrics. Defaults to
	// prometheus.DefaultRegisterer; tests inject a fresh registry.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// answerer is the interface handleQuery calls to answer a question.
// *agent.QueryAgent satisfies it; tests inject a fake.
type answerer interface {
	Answer(ctx context.Context, question string, topK int) (*agent.Answer, error)
}

// ingestor is the interface handleIngest calls to run the pipeline.
// *ingest.Pipeline satisfies it; tests inject a fake.
type ingestor interface {
	Run(ctx context.Context, query string, maxDocs int) (*ingest.Report, error)
}

// modelRegistry is the slice of *registry.Store the config handlers need.
type modelRegistry interface {
	Snapshot() registry.Document
	Model(id string) (registry.ModelDescriptor, error)
	UpdateRouting(task, modelID string) error
	ApplyProfile(name string) error
}

// Deps are the core collaborators the server exposes over HTTP.
type Deps struct {
	// Agent answers literature questions.
	Agent answerer
	// Pipeline runs literature ingestion.
	Pipeline ingestor
	// Registry is the model registry and routing table.
	Registry modelRegistry
	// Runs is the ingestion-run history store. May be nil (history disabled);
	// GET /api/literature/runs then returns an empty list.
	Runs store.RunStore
}

// Server is the HTTP boundary over the RAG core.
type Server struct {
	// deps holds the injected core collaborators.
	deps Deps
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// ingestRequest is the JSON body for POST /api/literature/ingest.
type ingestRequest struct {
	// Query is the PubMed search term.
	Query string `json:"query"`
	// MaxResults caps the number of documents fetched.
	MaxResults int `json:"max_results"`
}

// queryRequest is the JSON body for POST /api/literature/query.
type queryRequest struct {
	// Query is the user's question.
	Query string `json:"query"`
	// TopK is the number of documents to retrieve. Zero selects the default.
	TopK int `json:"top_k"`
}

// routingRequest is the JSON body for POST /api/llm-config/task-routing.
type routingRequest struct {
	// Task is the routing table key to update.
	Task string `json:"task"`
	// ModelID is the registered model to route the task to.
	ModelID string `json:"model_id"`
}

// profileRequest is the JSON body for POST /api/llm-config/apply.
type profileRequest struct {
	// Profile is the named preference profile to apply.
	Profile string `json:"profile"`
}

// errorResponse is the JSON body for all error responses.
type errorResponse struct {
	// Error is the human-readable failure description.
	Error string `json:"error"`
	// Retryable indicates whether the caller may usefully retry.
	Retryable bool `json:"retryable"`
}
