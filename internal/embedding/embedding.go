// Package embedding converts text into embedding vectors for the Vector
// Index. The real implementation is an HTTP client grounded on the
// teacher's internal/embedding/client.go EmbedText (OpenAI-compatible
// /embeddings endpoint, bearer or custom header auth). A deterministic
// hash-based embedder, grounded on internal/rag/embedder.deterministicEmbedder,
// is provided for tests and offline development.
package embedding

import "context"

// Embedder converts text to embedding vectors.
type Embedder interface {
	// EmbedBatch returns one vector per input text, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Name returns a model identifier string, persisted as an article's
	// embedding_version.
	Name() string
	// Dimension returns the embedding dimensionality.
	Dimension() int
	// Ping checks whether the embedding backend is reachable.
	Ping(ctx context.Context) error
}

// DefaultModel and DefaultDimension resolve the Open Question left in the
// distilled specification about which embedding model to assume absent a
// configured one: bge-base-en-v1.5, a widely deployed open general-purpose
// sentence embedding model, at its native 768 dimensions.
const (
	DefaultModel     = "bge-base-en-v1.5"
	DefaultDimension = 768
)
