// Package vectorindex stores embeddings keyed by stable string ID and
// answers top-K cosine queries.
//
// The in-memory backend is grounded on the teacher's
// internal/persistence/databases/memory_vector.go (sync.RWMutex-guarded
// map, cosine via dot-product-over-norms). Content is never stored here,
// only embedding vectors and a small metadata dictionary, per spec: the
// full text lives in the Article Store and is fetched on demand.
package vectorindex

// Document is the metadata carried alongside a stored vector. DocID
// determines (via internal/docid) whether it names a whole article or a
// chunk; ChunkIndex is zero for whole articles.
type Document struct {
	DocID         string
	ArticleID     int64
	Title         string
	Source        string
	Author        string
	PublishedDate int64 // unix seconds; zero means unknown
	IsChunk       bool
	ChunkIndex    int
}

// Result is one hit from Search, in descending score order.
type Result struct {
	DocID    string
	Score    float64
	Metadata Document
}

// Index stores embeddings keyed by stable string ID and answers top-K
// cosine queries. Implementations must make Upsert/Delete idempotent.
type Index interface {
	// Upsert replaces any existing document with the same DocID.
	Upsert(docID string, vector []float32, meta Document) error
	// Delete is a no-op if docID does not exist.
	Delete(docID string) error
	// Search returns the k nearest documents to vector by cosine
	// similarity, in descending score order.
	Search(vector []float32, k int) ([]Result, error)
	// Count returns the number of stored documents.
	Count() int
	// Save persists the index to path.
	Save(path string) error
	// Load replaces the index's contents with what was persisted at path.
	Load(path string) error
}
