package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/genskey/gskai-go/internal/agent"
	"github.com/genskey/gskai-go/internal/dispatch"
	"github.com/genskey/gskai-go/internal/embed"
	"github.com/genskey/gskai-go/internal/ingest"
	"github.com/genskey/gskai-go/internal/pubmed"
	"github.com/genskey/gskai-go/internal/registry"
	"github.com/genskey/gskai-go/internal/vector"
)

// mockFlags holds the process-wide offline switches. They are resolved once
// per invocation, before any component is constructed; later changes to the
// environment have no effect.
type mockFlags struct {
	// llm replaces provider dispatch with a deterministic placeholder.
	llm bool
	// vectorDB replaces Qdrant with the exact in-memory index.
	vectorDB bool
}

// resolveMockFlags reads MOCK_LLM and MOCK_VECTOR_DB exactly once.
func resolveMockFlags() mockFlags {
	return mockFlags{
		llm:      envBool("MOCK_LLM"),
		vectorDB: envBool("MOCK_VECTOR_DB"),
	}
}

// envBool interprets an env var as a boolean flag.
func envBool(key string) bool {
	switch os.Getenv(key) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// buildIndex constructs the vector index selected by the mock flags: the
// exact in-memory index when MOCK_VECTOR_DB is set, Qdrant otherwise.
// Both share the same dimension, inherited from the embedding backend.
func buildIndex(flags mockFlags, log *slog.Logger) (vector.Index, error) {
	dim := embed.DefaultDimensions(embed.ResolveBackend())
	if v := os.Getenv("EMBEDDING_DIMENSIONS"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &dim); err != nil {
			return nil, fmt.Errorf("invalid EMBEDDING_DIMENSIONS %q: %w", v, err)
		}
	}

	if flags.vectorDB {
		log.Info("vector index: in-memory (MOCK_VECTOR_DB set)", slog.Int("dimension", dim))
		return vector.NewMemoryIndex(dim), nil
	}

	cfg := &vector.QdrantConfig{
		Host:             os.Getenv("QDRANT_HOST"),
		CollectionPrefix: os.Getenv("QDRANT_COLLECTION_PREFIX"),
		Dimension:        dim,
		APIKey:           os.Getenv("QDRANT_API_KEY"),
		UseTLS:           os.Getenv("QDRANT_TLS") == "true",
	}
	if v := os.Getenv("QDRANT_PORT"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &cfg.Port); err != nil {
			return nil, fmt.Errorf("invalid QDRANT_PORT %q: %w", v, err)
		}
	}

	idx, err := vector.NewQdrantIndex(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	log.Info("vector index: qdrant",
		slog.String("host", cfg.Host),
		slog.Int("port", cfg.Port),
		slog.Int("dimension", dim),
	)
	return idx, nil
}

// buildEmbedder validates the embedding configuration and constructs the
// embedder from the environment.
func buildEmbedder(log *slog.Logger) (embed.Embedder, error) {
	if err := embed.Validate(log); err != nil {
		return nil, err
	}
	emb, err := embed.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	log.Info("embedder initialised", slog.String("backend", embed.ResolveBackend()))
	return emb, nil
}

// routingPath resolves the model registry document location:
// GSKAI_LLM_CONFIG, falling back to ~/.gskai/llm_config.json.
func routingPath() (string, error) {
	if p := os.Getenv("GSKAI_LLM_CONFIG"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".gskai", "llm_config.json"), nil
}

// buildRegistry loads the routing document, seeding defaults on first run.
func buildRegistry(log *slog.Logger) (*registry.Store, error) {
	path, err := routingPath()
	if err != nil {
		return nil, err
	}
	reg, err := registry.LoadOrInit(path)
	if err != nil {
		return nil, err
	}
	log.Info("model registry loaded", slog.String("path", path))
	return reg, nil
}

// buildDispatcher constructs the task dispatcher over the registry,
// honouring the MOCK_LLM offline flag.
func buildDispatcher(reg *registry.Store, flags mockFlags, log *slog.Logger) (*dispatch.Dispatcher, error) {
	if flags.llm {
		log.Info("dispatch: offline placeholder mode (MOCK_LLM set)")
	}
	return dispatch.New(reg, dispatch.ConfigFromEnv(), flags.llm)
}

// buildPubMed constructs the PubMed document source from the environment.
func buildPubMed() (*pubmed.Client, error) {
	return pubmed.NewClient(&pubmed.Config{
		Email:  os.Getenv("PUBMED_EMAIL"),
		APIKey: os.Getenv("NCBI_API_KEY"),
	})
}

// buildPipeline assembles the full ingestion pipeline.
func buildPipeline(flags mockFlags, log *slog.Logger) (*ingest.Pipeline, vector.Index, error) {
	source, err := buildPubMed()
	if err != nil {
		return nil, nil, err
	}
	emb, err := buildEmbedder(log)
	if err != nil {
		return nil, nil, err
	}
	idx, err := buildIndex(flags, log)
	if err != nil {
		return nil, nil, err
	}
	pipeline, err := ingest.NewPipeline(source, emb, idx, nil)
	if err != nil {
		idx.Close()
		return nil, nil, err
	}
	return pipeline, idx, nil
}

// buildAgent assembles the question-answering agent over an existing index.
func buildAgent(idx vector.Index, reg *registry.Store, flags mockFlags, log *slog.Logger) (*agent.QueryAgent, error) {
	emb, err := buildEmbedder(log)
	if err != nil {
		return nil, err
	}
	dispatcher, err := buildDispatcher(reg, flags, log)
	if err != nil {
		return nil, err
	}
	return agent.New(emb, idx, reg, dispatcher), nil
}
