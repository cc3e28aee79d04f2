package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/genskey/gskai-go/internal/ingest"
	"github.com/genskey/gskai-go/internal/logging"
	"github.com/genskey/gskai-go/internal/store"
)

// NewIngestCmd constructs the `gskai ingest` command, which searches PubMed
// for a topic and loads the matching articles into the vector store.
func NewIngestCmd() *cobra.Command {
	var query string
	var maxResults int

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest PubMed articles into the vector store",
		Long: `Search PubMed for a topic and index the matching articles.

Each article's title and abstract are embedded and stored under a stable
id derived from its PMID, so re-running the same query is idempotent.
Articles without an abstract are skipped and counted in the report.

Required environment variables:
  PUBMED_EMAIL         Contact email (NCBI usage policy)
  NCBI_API_KEY         Optional API key for a higher rate limit
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  EMBEDDING_*          Embedding backend overrides (see README)
  MOCK_VECTOR_DB       Set to true to index in-memory (testing only)

Examples:
  gskai ingest --query "CRISPR base editing" --max 50
  gskai ingest --query "glioblastoma immunotherapy"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if query == "" {
				return fmt.Errorf("ingest: --query is required")
			}

			flags := resolveMockFlags()
			pipeline, idx, err := buildPipeline(flags, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer idx.Close()

			start := time.Now()
			report, err := pipeline.Run(ctx, query, maxResults)
			recordRun(ctx, log, query, report, start, err)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			out, _ := json.MarshalIndent(report, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "PubMed search query")
	cmd.Flags().IntVarP(&maxResults, "max", "m", 20, "Maximum number of articles to fetch")

	return cmd
}

// recordRun appends the run to the history database. History failures are
// logged, never fatal: the index already holds any ingested vectors.
func recordRun(ctx context.Context, log *slog.Logger, query string, report *ingest.Report, start time.Time, runErr error) {
	hs := openHistory(log)
	if hs == nil {
		return
	}
	defer func() { _ = hs.Close() }()

	run := store.Run{
		Query:      query,
		StartedAt:  start,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if report != nil {
		run.Fetched = report.Fetched
		run.Skipped = report.Skipped
		run.Upserted = report.Upserted
		run.Batches = report.Batches
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := hs.Append(ctx, run); err != nil {
		log.Warn("history: failed to record run", slog.Any("error", err))
	}
}

// openHistory opens the run history store. GSKAI_HISTORY_DB overrides the
// default path (~/.gskai/history.db); "disabled" turns history off.
// Returns nil when history is unavailable.
func openHistory(log *slog.Logger) *store.SQLiteStore {
	dbPath := os.Getenv("GSKAI_HISTORY_DB")
	if dbPath == "disabled" {
		return nil
	}
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil
		}
	}
	hs, err := store.Open(dbPath)
	if err != nil {
		log.Warn("history: failed to open store, disabling", slog.Any("error", err))
		return nil
	}
	return hs
}
