package vectorindex

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// payloadIDField stores the original stable string doc ID in the point
// payload, since Qdrant point IDs must be UUIDs or positive integers.
const payloadIDField = "_original_id"

// Qdrant is an optional alternative Index backend, grounded on the
// teacher's internal/persistence/databases/qdrant_vector.go: gRPC client,
// deterministic UUID mapping (uuid.NewSHA1) for non-UUID string IDs, with
// the original ID recovered from the payload on search.
type Qdrant struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

// NewQdrant connects to a Qdrant instance described by dsn (e.g.
// "http://localhost:6334", optionally with an "?api_key=" query
// parameter), ensuring collection exists with the given vector dimension.
func NewQdrant(ctx context.Context, dsn, collection string, dimension int) (*Qdrant, error) {
	if collection == "" {
		return nil, fmt.Errorf("vectorindex: qdrant collection name is required")
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: parse qdrant dsn: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	portStr := parsed.Port()
	if portStr == "" {
		portStr = "6334"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: invalid qdrant port: %w", err)
	}
	cfg := &qdrant.Config{Host: host, Port: port}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if key := parsed.Query().Get("api_key"); key != "" {
		cfg.APIKey = key
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: create qdrant client: %w", err)
	}
	q := &Qdrant{client: client, collection: collection, dimension: dimension}
	if err := q.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return q, nil
}

func (q *Qdrant) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("vectorindex: check qdrant collection: %w", err)
	}
	if exists {
		return nil
	}
	if q.dimension <= 0 {
		return fmt.Errorf("vectorindex: qdrant requires dimension > 0")
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("vectorindex: create qdrant collection: %w", err)
	}
	return nil
}

func pointUUID(docID string) string {
	if _, err := uuid.Parse(docID); err == nil {
		return docID
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(docID)).String()
}

func (q *Qdrant) Upsert(docID string, vector []float32, meta Document) error {
	ctx := context.Background()
	uid := pointUUID(docID)
	payload := map[string]any{
		payloadIDField: docID,
		"article_id":   meta.ArticleID,
		"title":        meta.Title,
		"source":       meta.Source,
		"author":       meta.Author,
		"published":    meta.PublishedDate,
		"is_chunk":     meta.IsChunk,
		"chunk_index":  meta.ChunkIndex,
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(uid),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(payload),
		}},
	})
	return err
}

func (q *Qdrant) Delete(docID string) error {
	ctx := context.Background()
	uid := pointUUID(docID)
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(uid)),
	})
	return err
}

func (q *Qdrant) Search(vector []float32, k int) ([]Result, error) {
	ctx := context.Background()
	if k <= 0 {
		k = 10
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	limit := uint64(k)
	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(hits))
	for _, hit := range hits {
		meta := Document{}
		var originalID string
		if hit.Payload != nil {
			for k, v := range hit.Payload {
				switch k {
				case payloadIDField:
					originalID = v.GetStringValue()
				case "article_id":
					meta.ArticleID = v.GetIntegerValue()
				case "title":
					meta.Title = v.GetStringValue()
				case "source":
					meta.Source = v.GetStringValue()
				case "author":
					meta.Author = v.GetStringValue()
				case "published":
					meta.PublishedDate = v.GetIntegerValue()
				case "is_chunk":
					meta.IsChunk = v.GetBoolValue()
				case "chunk_index":
					meta.ChunkIndex = int(v.GetIntegerValue())
				}
			}
		}
		id := originalID
		if id == "" {
			id = hit.Id.GetUuid()
		}
		meta.DocID = id
		out = append(out, Result{DocID: id, Score: float64(hit.Score), Metadata: meta})
	}
	return out, nil
}

func (q *Qdrant) Count() int {
	ctx := context.Background()
	count, err := q.client.Count(ctx, &qdrant.CountPoints{CollectionName: q.collection})
	if err != nil {
		return 0
	}
	return int(count)
}

// Save and Load are no-ops for Qdrant: persistence is the responsibility
// of the Qdrant server's own storage, not this client.
func (q *Qdrant) Save(string) error { return nil }
func (q *Qdrant) Load(string) error { return nil }

// Close releases the underlying gRPC connection.
func (q *Qdrant) Close() error { return q.client.Close() }

var _ Index = (*Qdrant)(nil)
