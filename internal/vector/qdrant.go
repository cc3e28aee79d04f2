package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// docIDKey is the payload field holding the caller-visible record id.
// Qdrant point ids must be UUIDs or integers, so the external id (e.g.
// "pmid-12345") lives in the payload and the point id is a deterministic
// UUIDv5 derived from namespace and id.
const docIDKey = "doc_id"

// QdrantConfig holds connection parameters for a Qdrant-backed index.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// CollectionPrefix is prepended to every namespace to form the Qdrant
	// collection name, isolating this deployment's collections.
	CollectionPrefix string

	// Dimension is the fixed vector dimension for this index instance.
	Dimension int

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantIndex implements Index backed by a Qdrant instance. Each namespace
// maps to one Qdrant collection, created lazily on first upsert. Qdrant may
// search approximately, but the external contract (ordering, empty result on
// missing namespace, client-side dimension validation) matches MemoryIndex.
type QdrantIndex struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration.
	cfg *QdrantConfig

	// mu guards ensured.
	mu sync.Mutex

	// ensured caches collection names already verified to exist.
	ensured map[string]bool
}

// NewQdrantIndex creates a QdrantIndex. Collections are not created here;
// they appear implicitly on first upsert into a namespace.
func NewQdrantIndex(cfg *QdrantConfig) (*QdrantIndex, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("qdrant: dimension must be positive, got %d", cfg.Dimension)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	return &QdrantIndex{
		client:  client,
		cfg:     cfg,
		ensured: make(map[string]bool),
	}, nil
}

// Ping calls the Qdrant HealthCheck RPC. Returns nil when Qdrant is
// reachable, a descriptive error otherwise.
func (q *QdrantIndex) Ping(ctx context.Context) error {
	if _, err := q.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check failed: %w", err)
	}
	return nil
}

// collectionName returns the Qdrant collection backing a namespace.
func (q *QdrantIndex) collectionName(namespace string) string {
	return q.cfg.CollectionPrefix + namespace
}

// pointID derives the deterministic UUIDv5 point id for a record, stable
// across ingestion runs so re-upserts overwrite rather than duplicate.
func pointID(namespace, id string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(namespace+"/"+id)).String()
}

// ensureCollection creates the collection for a namespace if it does not
// already exist.
func (q *QdrantIndex) ensureCollection(ctx context.Context, name string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.ensured[name] {
		return nil
	}

	exists, err := q.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection %q: %w", name, err)
	}
	if !exists {
		err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(q.cfg.Dimension), //nolint:gosec // dimension is bounded config
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("qdrant: failed to create collection %q: %w", name, err)
		}
	}
	q.ensured[name] = true
	return nil
}

// Upsert validates dimensions client-side, then writes the whole batch in a
// single Qdrant call so the batch commits or fails as a unit.
func (q *QdrantIndex) Upsert(ctx context.Context, namespace string, records []Record) error {
	if err := validateDimensions(q.cfg.Dimension, records); err != nil {
		return err
	}

	name := q.collectionName(namespace)
	if err := q.ensureCollection(ctx, name); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, r := range records {
		payload := map[string]any{docIDKey: r.ID}
		for k, v := range r.Metadata {
			payload[k] = v
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(namespace, r.ID)),
			Vectors: qdrant.NewVectors(r.Vector...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	wait := true
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Points:         points,
		Wait:           &wait,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert of %d points into %q failed: %w", len(points), name, err)
	}
	return nil
}

// Query runs a similarity search. A namespace whose collection does not
// exist yields an empty result. Results are re-sorted client-side so the
// score-descending, id-ascending ordering contract holds regardless of how
// Qdrant breaks ties.
func (q *QdrantIndex) Query(ctx context.Context, namespace string, vector []float32, topK int, filter Filter) ([]Match, error) {
	if len(vector) != q.cfg.Dimension {
		return nil, validateDimensions(q.cfg.Dimension, []Record{{ID: "query", Vector: vector}})
	}
	topK = clampTopK(topK)

	name := q.collectionName(namespace)
	exists, err := q.client.CollectionExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to check collection %q: %w", name, err)
	}
	if !exists {
		return []Match{}, nil
	}

	limit := uint64(topK) //nolint:gosec // clamped to MaxTopK
	req := &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if cond := buildFilter(filter); cond != nil {
		req.Filter = cond
	}

	results, err := q.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("qdrant: query on %q failed: %w", name, err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		m := Match{Score: r.Score, Metadata: make(map[string]any)}
		for k, v := range r.Payload {
			if k == docIDKey {
				m.ID = v.GetStringValue()
				continue
			}
			m.Metadata[k] = payloadValue(v)
		}
		matches = append(matches, m)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	return matches, nil
}

// buildFilter converts an equality Filter into a Qdrant must-match filter.
func buildFilter(filter Filter) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}
	must := make([]*qdrant.Condition, 0, len(filter))
	for k, v := range filter {
		switch val := v.(type) {
		case string:
			must = append(must, qdrant.NewMatch(k, val))
		case bool:
			must = append(must, qdrant.NewMatchBool(k, val))
		case int:
			must = append(must, qdrant.NewMatchInt(k, int64(val)))
		case int64:
			must = append(must, qdrant.NewMatchInt(k, val))
		case float64:
			// Qdrant payload integers come back as int64; coerce whole floats.
			must = append(must, qdrant.NewMatchInt(k, int64(val)))
		}
	}
	return &qdrant.Filter{Must: must}
}

// payloadValue converts a Qdrant payload value into a plain Go scalar.
func payloadValue(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	default:
		return nil
	}
}

// Close closes the underlying Qdrant gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}
