package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/genskey/gskai-go/internal/agent"
	"github.com/genskey/gskai-go/internal/embed"
	"github.com/genskey/gskai-go/internal/ingest"
	"github.com/genskey/gskai-go/internal/logging"
	"github.com/genskey/gskai-go/internal/server"
	"github.com/genskey/gskai-go/internal/store"
	"github.com/genskey/gskai-go/internal/tracing"
	"github.com/genskey/gskai-go/internal/vector"
)

// NewServeCmd constructs the `gskai serve` command, which starts the HTTP
// API over the literature core.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gskai HTTP API server",
		Long: `Start the gskai HTTP server on localhost.

The server exposes literature ingestion and querying plus routing-table
administration under /api, with Prometheus metrics on /metrics.

Examples:
  gskai serve
  gskai serve --port 9090
  MOCK_LLM=true MOCK_VECTOR_DB=true gskai serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			// Mock flags are fixed for the lifetime of the process.
			flags := resolveMockFlags()

			// Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			emb, err := buildEmbedder(log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			idx, err := buildIndex(flags, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer idx.Close()

			reg, err := buildRegistry(log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			dispatcher, err := buildDispatcher(reg, flags, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			source, err := buildPubMed()
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			pipeline, err := ingest.NewPipeline(source, emb, idx, nil)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			qa := agent.New(emb, idx, reg, dispatcher)

			// Run history is optional; the server degrades to an empty runs
			// listing when the store cannot be opened.
			var runs store.RunStore
			if hs := openHistory(log); hs != nil {
				runs = hs
				defer func() { _ = hs.Close() }()
			}

			// Readiness probes cover every external dependency the core
			// touches: embedding backend, vector store, and PubMed.
			var pingers []server.Pinger
			if hc, ok := emb.(embed.HealthChecker); ok {
				pingers = append(pingers, server.NewEmbedderPinger(hc, "embedder"))
			}
			if q, isQdrant := idx.(*vector.QdrantIndex); isQdrant {
				pingers = append(pingers, server.NewPinger("qdrant", q.Ping))
			}
			pingers = append(pingers, server.NewPinger("pubmed", source.Ping))

			srv, err := server.New(server.Deps{
				Agent:    qa,
				Pipeline: pipeline,
				Registry: reg,
				Runs:     runs,
			}, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("GSKAI_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
