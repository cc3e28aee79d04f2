// Package server implements the HTTP boundary over the literature RAG core:
// ingestion, question answering, and routing-table administration.
// The server is started by the `gskai serve` CLI command.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/genskey/gskai-go/internal/logging"
)

// New constructs a Server from the provided core collaborators and config.
func New(deps Deps, cfg *Config) (*Server, error) {
	if deps.Agent == nil {
		return nil, fmt.Errorf("server: agent must not be nil")
	}
	if deps.Pipeline == nil {
		return nil, fmt.Errorf("server: pipeline must not be nil")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("server: registry must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must cover a full ingest run, which fetches and embeds
		// documents before responding.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		deps:    deps,
		cfg:     cfg,
		log:     cfg.Logger,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(cfg.MetricsRegistry),
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, cfg.Logger)
	s.stopRL = stopRL

	if cfg.APIKey == "" {
		cfg.Logger.Warn("server: GSKAI_API_KEY not set — API authentication disabled")
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/literature/ingest", s.instrument("ingest", http.HandlerFunc(s.handleIngest)))
	mux.Handle("POST /api/literature/query", s.instrument("query", http.HandlerFunc(s.handleQuery)))
	mux.Handle("GET /api/literature/runs", s.instrument("runs", http.HandlerFunc(s.handleRuns)))
	mux.Handle("GET /api/llm-config", s.instrument("llm_config", http.HandlerFunc(s.handleConfigSnapshot)))
	mux.Handle("POST /api/llm-config/apply", s.instrument("llm_config_apply", http.HandlerFunc(s.handleApplyProfile)))
	mux.Handle("POST /api/llm-config/task-routing", s.instrument("llm_config_routing", http.HandlerFunc(s.handleTaskRouting)))
	mux.Handle("GET /api/llm-config/models/{id}", s.instrument("llm_config_model", http.HandlerFunc(s.handleModel)))
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	// Auth and rate limiting wrap the API surface; /metrics and the health
	// endpoints stay open for probes and scrapers.
	handler := requestLogger(cfg.Logger, withOpenPaths(
		authMiddleware(cfg.APIKey, rl.middleware(mux)),
		mux,
		"/metrics", "/api/health", "/api/ready",
	))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// withOpenPaths routes the listed paths directly to open, bypassing the
// protected handler chain. Everything else goes through protected.
func withOpenPaths(protected, open http.Handler, paths ...string) http.Handler {
	openSet := make(map[string]bool, len(paths))
	for _, p := range paths {
		openSet[p] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if openSet[r.URL.Path] {
			open.ServeHTTP(w, r)
			return
		}
		protected.ServeHTTP(w, r)
	})
}

// instrument wraps a handler with per-endpoint Prometheus request counting
// and latency observation. The handler label partitions by logical endpoint
// name rather than raw URL path.
func (s *Server) instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rw, r)
		s.metrics.httpRequestsTotal.WithLabelValues(r.Method, name, fmt.Sprintf("%d", rw.status)).Inc()
		s.metrics.httpDurationSeconds.WithLabelValues(r.Method, name).Observe(time.Since(start).Seconds())
	})
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}
