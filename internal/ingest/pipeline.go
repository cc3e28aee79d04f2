// Package ingest implements the literature ingestion pipeline.
// It searches the document source for articles matching a topic query,
// fetches their details, embeds title and abstract, and upserts the vectors
// into the literature namespace. The pipeline is invoked by the
// `gskai ingest` CLI command and the /api/literature/ingest endpoint.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/genskey/gskai-go/internal/embed"
	"github.com/genskey/gskai-go/internal/fault"
	"github.com/genskey/gskai-go/internal/logging"
	"github.com/genskey/gskai-go/internal/pubmed"
	"github.com/genskey/gskai-go/internal/vector"
)

// Namespace is the vector index namespace holding ingested literature.
const Namespace = "pubmed-articles"

// idPrefix makes vector ids stable across ingestion runs: the same article
// always maps to the same id, so re-ingestion overwrites instead of
// duplicating.
const idPrefix = "pmid-"

// maxAuthors bounds the author list stored in vector metadata.
const maxAuthors = 3

// DefaultMaxResults is the search bound used when the caller passes zero.
const DefaultMaxResults = 10

// MaxResultsLimit caps the number of documents a single run may request.
const MaxResultsLimit = 100

// DocumentSource fetches raw documents for ingestion. The production
// implementation is the PubMed client; tests supply a fake.
type DocumentSource interface {
	// Search returns document ids matching the query, at most maxResults.
	Search(ctx context.Context, query string, maxResults int) ([]string, error)
	// FetchDetails returns the documents for the given ids. May return
	// fewer than requested.
	FetchDetails(ctx context.Context, ids []string) ([]pubmed.Document, error)
}

// Config holds pipeline settings.
type Config struct {
	// BatchSize is the number of records per embed+upsert batch.
	// Defaults to 100 if zero. Batch boundaries affect throughput only,
	// never correctness.
	BatchSize int

	// Parallelism bounds the number of batches in flight at once.
	// Defaults to 4 if zero.
	Parallelism int
}

// Report summarises one pipeline run. Counts are sufficient to re-run
// safely: ids are deterministic and upserts are idempotent.
type Report struct {
	// Query is the topic query that drove the run.
	Query string `json:"query"`
	// Fetched is the number of documents returned by the source.
	Fetched int `json:"fetched"`
	// Skipped counts documents fetched but not embedded (no usable abstract).
	Skipped int `json:"skipped"`
	// Embedded is the number of documents converted to vectors.
	Embedded int `json:"embedded"`
	// Upserted is the number of vectors stored.
	Upserted int `json:"upserted"`
	// Batches is the number of upsert batches issued.
	Batches int `json:"batches"`
}

// Pipeline orchestrates source → embedder → index.
type Pipeline struct {
	// source provides the documents.
	source DocumentSource
	// embedder converts document text into vectors.
	embedder embed.Embedder
	// index stores the embedded documents.
	index vector.Index
	// cfg holds the resolved configuration.
	cfg *Config
}

// NewPipeline constructs a Pipeline from the provided dependencies.
func NewPipeline(source DocumentSource, embedder embed.Embedder, index vector.Index, cfg *Config) (*Pipeline, error) {
	if source == nil {
		return nil, fmt.Errorf("ingest: source must not be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("ingest: embedder must not be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("ingest: index must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	return &Pipeline{source: source, embedder: embedder, index: index, cfg: cfg}, nil
}

// EmbedInput is the text embedded for a document: title and abstract joined
// by a single separator. The concatenation is stable so identical inputs
// always produce identical embeddings across runs.
func EmbedInput(doc *pubmed.Document) string {
	return doc.Title + ". " + doc.Abstract
}

// VectorID derives the deterministic vector id for a document id.
func VectorID(pmid string) string {
	return idPrefix + pmid
}

// Run executes the full pipeline for one topic query and returns a Report.
// A zero maxDocs falls back to DefaultMaxResults; negative or over-limit
// values are rejected before any network call.
// Documents without an abstract are counted as skipped, not errors. A failed
// batch aborts the run with enough context (batch index, record count) for a
// safe re-run; in-flight sibling batches are cancelled through the group
// context.
func (p *Pipeline) Run(ctx context.Context, query string, maxDocs int) (*Report, error) {
	log := logging.FromContext(ctx)

	if maxDocs == 0 {
		maxDocs = DefaultMaxResults
	}
	if maxDocs < 0 || maxDocs > MaxResultsLimit {
		return nil, fault.New(fault.Validation, "max results must be between 1 and %d, got %d", MaxResultsLimit, maxDocs)
	}

	report := &Report{Query: query}

	ids, err := p.source.Search(ctx, query, maxDocs)
	if err != nil {
		return nil, fmt.Errorf("ingest: search failed for %q: %w", query, err)
	}
	if len(ids) == 0 {
		log.Info("ingest: no documents found", slog.String("query", query))
		return report, nil
	}

	docs, err := p.source.FetchDetails(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("ingest: fetch details failed for %q: %w", query, err)
	}
	report.Fetched = len(docs)

	// Documents without usable body text are fetched but never embedded.
	usable := make([]pubmed.Document, 0, len(docs))
	for _, doc := range docs {
		if doc.Abstract == "" {
			report.Skipped++
			continue
		}
		usable = append(usable, doc)
	}

	log.Info("ingest: documents fetched",
		slog.String("query", query),
		slog.Int("fetched", report.Fetched),
		slog.Int("skipped", report.Skipped),
	)

	if len(usable) == 0 {
		return report, nil
	}

	var upserted, batches atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Parallelism)

	for start := 0; start < len(usable); start += p.cfg.BatchSize {
		end := min(start+p.cfg.BatchSize, len(usable))
		batch := usable[start:end]
		batchIndex := start / p.cfg.BatchSize

		g.Go(func() error {
			if err := p.ingestBatch(gctx, batch); err != nil {
				return fmt.Errorf("ingest: batch %d (%d records): %w", batchIndex, len(batch), err)
			}
			upserted.Add(int64(len(batch)))
			batches.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.Embedded = int(upserted.Load())
	report.Upserted = int(upserted.Load())
	report.Batches = int(batches.Load())

	log.Info("ingest: run complete",
		slog.String("query", query),
		slog.Int("upserted", report.Upserted),
		slog.Int("batches", report.Batches),
	)
	return report, nil
}

// ingestBatch embeds one batch of documents and upserts the resulting
// records. The index guarantees per-batch atomicity.
func (p *Pipeline) ingestBatch(ctx context.Context, docs []pubmed.Document) error {
	texts := make([]string, len(docs))
	for i := range docs {
		texts[i] = EmbedInput(&docs[i])
	}

	embeddings, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}
	if len(embeddings) != len(docs) {
		return fmt.Errorf("embedder returned %d vectors for %d documents", len(embeddings), len(docs))
	}

	records := make([]vector.Record, len(docs))
	for i := range docs {
		records[i] = vector.Record{
			ID:       VectorID(docs[i].PMID),
			Vector:   embeddings[i],
			Metadata: documentMetadata(&docs[i]),
		}
	}

	if err := p.index.Upsert(ctx, Namespace, records); err != nil {
		return fmt.Errorf("upsert failed: %w", err)
	}
	return nil
}

// documentMetadata builds the per-vector payload. Optional fields (year,
// journal, authors) are stored only when present — their absence never
// fails ingestion.
func documentMetadata(doc *pubmed.Document) map[string]any {
	meta := map[string]any{
		"title":  doc.Title,
		"source": "PubMed",
	}
	if doc.Journal != "" {
		meta["journal"] = doc.Journal
	}
	if doc.Year != "" {
		meta["year"] = doc.Year
	}
	if len(doc.Authors) > 0 {
		authors := doc.Authors
		if len(authors) > maxAuthors {
			authors = authors[:maxAuthors]
		}
		meta["authors"] = strings.Join(authors, ", ")
	}
	return meta
}
