package vector

import (
	"context"
	"sort"
	"sync"
)

// MemoryIndex is the exact in-memory Index implementation. Every query is a
// full scan over the namespace — correct but O(n). It exists for contract
// parity in tests and for small corpora, not production scale; select it via
// the MOCK_VECTOR_DB flag.
type MemoryIndex struct {
	// dim is the fixed vector dimension for this index instance.
	dim int

	// mu guards namespaces. Writers take the exclusive lock for the whole
	// batch so a reader never observes a half-applied upsert.
	mu sync.RWMutex

	// namespaces maps namespace name -> record id -> record.
	namespaces map[string]map[string]Record
}

// NewMemoryIndex constructs an empty MemoryIndex with the given dimension.
func NewMemoryIndex(dim int) *MemoryIndex {
	return &MemoryIndex{
		dim:        dim,
		namespaces: make(map[string]map[string]Record),
	}
}

// Upsert stores records in the namespace. The batch is validated in full
// before the lock is taken, so a dimension mismatch anywhere rejects the
// whole call with no side effect.
func (m *MemoryIndex) Upsert(_ context.Context, namespace string, records []Record) error {
	if err := validateDimensions(m.dim, records); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.namespaces[namespace]
	if !ok {
		ns = make(map[string]Record, len(records))
		m.namespaces[namespace] = ns
	}
	for _, r := range records {
		ns[r.ID] = r
	}
	return nil
}

// Query scans the namespace and returns the topK highest-scoring matches,
// descending by score with ties broken by ascending id.
func (m *MemoryIndex) Query(_ context.Context, namespace string, vector []float32, topK int, filter Filter) ([]Match, error) {
	if len(vector) != m.dim {
		return nil, validateDimensions(m.dim, []Record{{ID: "query", Vector: vector}})
	}
	topK = clampTopK(topK)

	m.mu.RLock()
	defer m.mu.RUnlock()

	ns, ok := m.namespaces[namespace]
	if !ok {
		return []Match{}, nil
	}

	matches := make([]Match, 0, len(ns))
	for _, r := range ns {
		if !matchesFilter(r.Metadata, filter) {
			continue
		}
		matches = append(matches, Match{
			ID:       r.ID,
			Score:    cosine(vector, r.Vector),
			Metadata: r.Metadata,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Close is a no-op for the in-memory index.
func (m *MemoryIndex) Close() error { return nil }
