// Package vector defines the vector index contract used by the RAG core:
// namespaced storage of (id, vector, metadata) records with top-k cosine
// similarity queries. Two implementations share the contract — an exact
// in-memory index (MemoryIndex) for tests and small corpora, and a
// Qdrant-backed index (QdrantIndex) for production scale. Implementations
// must be safe to call from multiple goroutines.
package vector

import (
	"context"
	"fmt"
	"math"

	"github.com/genskey/gskai-go/internal/fault"
)

// MaxTopK is the hard cap on the number of results a query may request.
// Values above the cap are clamped, not rejected.
const MaxTopK = 100

// DefaultTopK is used when a caller passes topK <= 0.
const DefaultTopK = 10

// ErrDimensionMismatch is returned (wrapped with detail) when any record in
// an upsert batch has a vector length different from the index dimension.
// The whole batch is rejected — partial batch success is not permitted.
var ErrDimensionMismatch = fault.New(fault.Validation, "vector dimension mismatch")

// Record is one stored vector with its identity and metadata.
// Records are immutable once stored; re-upserting the same id replaces the
// record wholesale (last write wins).
type Record struct {
	// ID is unique within a namespace.
	ID string
	// Vector is the embedding; its length must equal the index dimension.
	Vector []float32
	// Metadata holds scalar payload fields (title, year, ...).
	Metadata map[string]any
}

// Match is one query result.
type Match struct {
	// ID is the matched record's id.
	ID string
	// Score is the cosine similarity to the query vector.
	Score float32
	// Metadata is the matched record's payload.
	Metadata map[string]any
}

// Filter restricts a query to records whose metadata fields equal the given
// scalar values. A nil or empty filter matches everything.
type Filter map[string]any

// Index is the vector index contract.
type Index interface {
	// Upsert stores records in the namespace, creating the namespace on
	// first use. Idempotent per id. Rejects the whole batch with a
	// dimension-mismatch error if any record's vector length differs from
	// the index dimension; either all records in the call are stored or
	// none are.
	Upsert(ctx context.Context, namespace string, records []Record) error

	// Query returns up to topK matches sorted descending by score, ties
	// broken by ascending id. A namespace that does not exist yields an
	// empty result, not an error. topK above MaxTopK is clamped.
	Query(ctx context.Context, namespace string, vector []float32, topK int, filter Filter) ([]Match, error)

	// Close releases any resources held by the index.
	Close() error
}

// clampTopK normalises a requested topK into [1, MaxTopK].
func clampTopK(topK int) int {
	if topK <= 0 {
		return DefaultTopK
	}
	if topK > MaxTopK {
		return MaxTopK
	}
	return topK
}

// validateDimensions checks every record in the batch against dim before any
// side effect. Both implementations call this client-side so the remote
// backend never sees a malformed batch.
func validateDimensions(dim int, records []Record) error {
	for _, r := range records {
		if len(r.Vector) != dim {
			return fmt.Errorf("%w: record %q has dimension %d, index expects %d",
				ErrDimensionMismatch, r.ID, len(r.Vector), dim)
		}
	}
	return nil
}

// cosine returns the cosine similarity of a and b. Degenerate zero-norm
// vectors score 0 rather than dividing by zero.
func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// matchesFilter reports whether metadata satisfies every equality constraint
// in filter. Numeric values compare by their float64 representation so that
// JSON-decoded filters match int-typed metadata.
func matchesFilter(metadata map[string]any, filter Filter) bool {
	for k, want := range filter {
		got, ok := metadata[k]
		if !ok {
			return false
		}
		if !scalarEqual(got, want) {
			return false
		}
	}
	return true
}

// scalarEqual compares two scalar values, coercing numeric types.
func scalarEqual(a, b any) bool {
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum && bNum {
		return af == bf
	}
	return a == b
}

// toFloat converts any numeric scalar to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
