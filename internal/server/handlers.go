package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/genskey/gskai-go/internal/fault"
	"github.com/genskey/gskai-go/internal/logging"
	"github.com/genskey/gskai-go/internal/store"
)

// defaultRunsLimit is the number of ingestion runs returned by
// GET /api/literature/runs.
const defaultRunsLimit = 50

// handleIngest handles POST /api/literature/ingest. It runs the full
// pipeline synchronously and returns the run report.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, r, fault.New(fault.Validation, "query is required"))
		return
	}

	start := time.Now()
	report, err := s.deps.Pipeline.Run(r.Context(), req.Query, req.MaxResults)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.ingestRunsTotal.WithLabelValues(outcome).Inc()

	if s.deps.Runs != nil {
		run := store.Run{
			Query:      req.Query,
			StartedAt:  start,
			DurationMS: time.Since(start).Milliseconds(),
		}
		if report != nil {
			run.Fetched = report.Fetched
			run.Skipped = report.Skipped
			run.Upserted = report.Upserted
			run.Batches = report.Batches
		}
		if err != nil {
			run.Error = err.Error()
		}
		if appendErr := s.deps.Runs.Append(r.Context(), run); appendErr != nil {
			logging.FromContext(r.Context()).Warn("failed to record ingestion run",
				slog.Any("error", appendErr),
			)
		}
	}

	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleQuery handles POST /api/literature/query.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, r, fault.New(fault.Validation, "query is required"))
		return
	}

	start := time.Now()
	answer, err := s.deps.Agent.Answer(r.Context(), req.Query, req.TopK)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.queryRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.queryDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

// handleRuns handles GET /api/literature/runs.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runs == nil {
		writeJSON(w, http.StatusOK, []store.Run{})
		return
	}
	runs, err := s.deps.Runs.Recent(r.Context(), defaultRunsLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// handleConfigSnapshot handles GET /api/llm-config. The snapshot preserves
// task names and model ids verbatim.
func (s *Server) handleConfigSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Registry.Snapshot())
}

// handleModel handles GET /api/llm-config/models/{id}.
func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	desc, err := s.deps.Registry.Model(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

// handleApplyProfile handles POST /api/llm-config/apply.
func (s *Server) handleApplyProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Profile == "" {
		writeError(w, r, fault.New(fault.Validation, "profile is required"))
		return
	}
	if err := s.deps.Registry.ApplyProfile(req.Profile); err != nil {
		writeError(w, r, err)
		return
	}
	logging.FromContext(r.Context()).Info("profile applied", slog.String("profile", req.Profile))
	writeJSON(w, http.StatusOK, s.deps.Registry.Snapshot())
}

// handleTaskRouting handles POST /api/llm-config/task-routing.
func (s *Server) handleTaskRouting(w http.ResponseWriter, r *http.Request) {
	var req routingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Task == "" || req.ModelID == "" {
		writeError(w, r, fault.New(fault.Validation, "task and model_id are required"))
		return
	}
	if err := s.deps.Registry.UpdateRouting(req.Task, req.ModelID); err != nil {
		writeError(w, r, err)
		return
	}
	logging.FromContext(r.Context()).Info("task routing updated",
		slog.String("task", req.Task),
		slog.String("model_id", req.ModelID),
	)
	writeJSON(w, http.StatusOK, s.deps.Registry.Snapshot())
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeJSON parses the request body into v, classifying malformed bodies
// as validation failures.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fault.Wrap(fault.Validation, err, "invalid request body")
	}
	return nil
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("response encode error", slog.Any("error", err))
	}
}

// writeError maps err to its HTTP status and emits the standard error body.
// Server-side failures (5xx) are logged; caller mistakes are not.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := fault.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("request failed",
			slog.String("kind", fault.KindOf(err).String()),
			slog.Any("error", err),
		)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Retryable: fault.Retryable(err)})
}
