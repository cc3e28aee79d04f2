package ingest

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/genskey/gskai-go/internal/fault"
	"github.com/genskey/gskai-go/internal/pubmed"
	"github.com/genskey/gskai-go/internal/vector"
)

// fakeSource serves a fixed document set.
type fakeSource struct {
	docs      []pubmed.Document
	searchErr error
	fetchErr  error
}

func (f *fakeSource) Search(_ context.Context, _ string, maxResults int) ([]string, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	ids := make([]string, 0, len(f.docs))
	for _, d := range f.docs {
		ids = append(ids, d.PMID)
	}
	if len(ids) > maxResults {
		ids = ids[:maxResults]
	}
	return ids, nil
}

func (f *fakeSource) FetchDetails(_ context.Context, ids []string) ([]pubmed.Document, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	byID := make(map[string]pubmed.Document, len(f.docs))
	for _, d := range f.docs {
		byID[d.PMID] = d
	}
	out := make([]pubmed.Document, 0, len(ids))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// fakeEmbedder returns a constant vector per input.
type fakeEmbedder struct {
	calls atomic.Int64
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func testDocs() []pubmed.Document {
	return []pubmed.Document{
		{PMID: "100", Title: "CRISPR base editing", Abstract: "Base editors enable precise changes.", Journal: "Nature", Year: "2024", Authors: []string{"Lee A", "Park B", "Kim C", "Choi D"}},
		{PMID: "101", Title: "No abstract here"},
		{PMID: "102", Title: "Prime editing review", Abstract: "Prime editing extends the toolbox.", Year: "2023"},
	}
}

func newTestPipeline(t *testing.T, source DocumentSource, cfg *Config) (*Pipeline, *vector.MemoryIndex) {
	t.Helper()
	idx := vector.NewMemoryIndex(3)
	p, err := NewPipeline(source, &fakeEmbedder{}, idx, cfg)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p, idx
}

func Test_Pipeline_Run(t *testing.T) {
	t.Parallel()

	p, idx := newTestPipeline(t, &fakeSource{docs: testDocs()}, nil)

	report, err := p.Run(context.Background(), "gene editing", 10)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Fetched != 3 {
		t.Errorf("fetched: want 3, got %d", report.Fetched)
	}
	if report.Skipped != 1 {
		t.Errorf("skipped: want 1 (no abstract), got %d", report.Skipped)
	}
	if report.Embedded != 2 || report.Upserted != 2 {
		t.Errorf("embedded/upserted: want 2/2, got %d/%d", report.Embedded, report.Upserted)
	}
	if report.Batches != 1 {
		t.Errorf("batches: want 1, got %d", report.Batches)
	}

	matches, err := idx.Query(context.Background(), Namespace, []float32{1, 0, 0}, 10, nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("stored vectors: want 2, got %d", len(matches))
	}
}

func Test_Pipeline_DeterministicIDs(t *testing.T) {
	t.Parallel()

	p, idx := newTestPipeline(t, &fakeSource{docs: testDocs()}, nil)

	// Two runs over the same corpus must overwrite, not duplicate.
	for range 2 {
		if _, err := p.Run(context.Background(), "gene editing", 10); err != nil {
			t.Fatalf("run: %v", err)
		}
	}

	matches, err := idx.Query(context.Background(), Namespace, []float32{1, 0, 0}, 100, nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("re-ingestion duplicated records: want 2, got %d", len(matches))
	}
	for _, m := range matches {
		if !strings.HasPrefix(m.ID, "pmid-") {
			t.Errorf("vector id %q lacks the pmid prefix", m.ID)
		}
	}
}

func Test_Pipeline_MetadataStored(t *testing.T) {
	t.Parallel()

	p, idx := newTestPipeline(t, &fakeSource{docs: testDocs()}, nil)
	if _, err := p.Run(context.Background(), "gene editing", 10); err != nil {
		t.Fatalf("run: %v", err)
	}

	matches, err := idx.Query(context.Background(), Namespace, []float32{1, 0, 0}, 100, vector.Filter{"journal": "Nature"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("want 1 Nature match, got %d", len(matches))
	}
	meta := matches[0].Metadata
	if meta["title"] != "CRISPR base editing" {
		t.Errorf("title: got %v", meta["title"])
	}
	if meta["source"] != "PubMed" {
		t.Errorf("source: got %v", meta["source"])
	}
	// Author list is capped at three entries.
	if meta["authors"] != "Lee A, Park B, Kim C" {
		t.Errorf("authors: got %v", meta["authors"])
	}
}

func Test_Pipeline_EmptySearch(t *testing.T) {
	t.Parallel()

	p, _ := newTestPipeline(t, &fakeSource{}, nil)
	report, err := p.Run(context.Background(), "nothing matches", 10)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Fetched != 0 || report.Upserted != 0 || report.Batches != 0 {
		t.Errorf("empty search should report zeros, got %+v", report)
	}
}

func Test_Pipeline_AllSkipped(t *testing.T) {
	t.Parallel()

	docs := []pubmed.Document{
		{PMID: "1", Title: "a"},
		{PMID: "2", Title: "b"},
	}
	p, _ := newTestPipeline(t, &fakeSource{docs: docs}, nil)

	report, err := p.Run(context.Background(), "abstractless", 10)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Skipped != 2 || report.Upserted != 0 || report.Batches != 0 {
		t.Errorf("want all skipped and nothing upserted, got %+v", report)
	}
}

func Test_Pipeline_BatchSizeSplitsBatches(t *testing.T) {
	t.Parallel()

	docs := make([]pubmed.Document, 0, 5)
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		docs = append(docs, pubmed.Document{PMID: id, Title: "t" + id, Abstract: "body " + id})
	}
	p, _ := newTestPipeline(t, &fakeSource{docs: docs}, &Config{BatchSize: 2})

	report, err := p.Run(context.Background(), "batching", 10)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Batches != 3 {
		t.Errorf("batches: want 3 for 5 docs at size 2, got %d", report.Batches)
	}
	if report.Upserted != 5 {
		t.Errorf("upserted: want 5, got %d", report.Upserted)
	}
}

// recordingSource captures the search bound passed down to the source.
type recordingSource struct {
	fakeSource
	searched bool
	gotMax   int
}

func (r *recordingSource) Search(ctx context.Context, query string, maxResults int) ([]string, error) {
	r.searched = true
	r.gotMax = maxResults
	return r.fakeSource.Search(ctx, query, maxResults)
}

func Test_Pipeline_ZeroMaxResultsDefaults(t *testing.T) {
	t.Parallel()

	src := &recordingSource{fakeSource: fakeSource{docs: testDocs()}}
	p, _ := newTestPipeline(t, src, nil)

	if _, err := p.Run(context.Background(), "gene editing", 0); err != nil {
		t.Fatalf("run: %v", err)
	}
	if src.gotMax != DefaultMaxResults {
		t.Errorf("search bound: want default %d, got %d", DefaultMaxResults, src.gotMax)
	}
}

func Test_Pipeline_RejectsOutOfRangeMaxResults(t *testing.T) {
	t.Parallel()

	for _, maxDocs := range []int{-1, MaxResultsLimit + 1} {
		src := &recordingSource{fakeSource: fakeSource{docs: testDocs()}}
		p, _ := newTestPipeline(t, src, nil)

		_, err := p.Run(context.Background(), "gene editing", maxDocs)
		if err == nil {
			t.Fatalf("maxDocs=%d: want error, got nil", maxDocs)
		}
		if fault.KindOf(err) != fault.Validation {
			t.Errorf("maxDocs=%d: want validation kind, got %v", maxDocs, fault.KindOf(err))
		}
		if src.searched {
			t.Errorf("maxDocs=%d: source must not be called on invalid input", maxDocs)
		}
	}
}

func Test_Pipeline_SearchErrorAborts(t *testing.T) {
	t.Parallel()

	srcErr := errors.New("esearch timeout")
	p, _ := newTestPipeline(t, &fakeSource{searchErr: srcErr}, nil)

	_, err := p.Run(context.Background(), "q", 10)
	if !errors.Is(err, srcErr) {
		t.Errorf("want wrapped search error, got %v", err)
	}
}

func Test_Pipeline_EmbedErrorCarriesBatchContext(t *testing.T) {
	t.Parallel()

	idx := vector.NewMemoryIndex(3)
	embErr := errors.New("embedding backend down")
	p, err := NewPipeline(&fakeSource{docs: testDocs()}, &fakeEmbedder{err: embErr}, idx, nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	_, err = p.Run(context.Background(), "q", 10)
	if !errors.Is(err, embErr) {
		t.Fatalf("want wrapped embed error, got %v", err)
	}
	if !strings.Contains(err.Error(), "batch 0") {
		t.Errorf("error should name the failed batch, got %q", err.Error())
	}
}

func Test_NewPipeline_NilDependencies(t *testing.T) {
	t.Parallel()

	idx := vector.NewMemoryIndex(3)
	emb := &fakeEmbedder{}
	src := &fakeSource{}

	if _, err := NewPipeline(nil, emb, idx, nil); err == nil {
		t.Error("want error for nil source")
	}
	if _, err := NewPipeline(src, nil, idx, nil); err == nil {
		t.Error("want error for nil embedder")
	}
	if _, err := NewPipeline(src, emb, nil, nil); err == nil {
		t.Error("want error for nil index")
	}
}

func Test_EmbedInput_Stable(t *testing.T) {
	t.Parallel()

	doc := pubmed.Document{Title: "Title", Abstract: "Abstract text."}
	want := "Title. Abstract text."
	if got := EmbedInput(&doc); got != want {
		t.Errorf("EmbedInput = %q, want %q", got, want)
	}
}
