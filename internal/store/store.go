package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by single-article reads when the id does not exist.
var ErrNotFound = errors.New("store: article not found")

// ArticleStore is the durable storage interface the indexing and search
// collaborators depend on. The core never deletes articles; it only sets
// Indexed/IsChunked/EmbeddingVersion, per the documented lifecycle.
type ArticleStore interface {
	// GetArticle returns a single article by primary key.
	GetArticle(ctx context.Context, id int64) (Article, error)
	// GetArticles returns every article in ids that exists, in no
	// particular order; missing ids are silently omitted.
	GetArticles(ctx context.Context, ids []int64) ([]Article, error)
	// GetChunks returns the chunks of articleID whose index is in
	// chunkIndices; a nil/empty chunkIndices returns all chunks.
	GetChunks(ctx context.Context, articleID int64, chunkIndices []int) ([]Chunk, error)
	// AllArticleIDs returns every article id in ascending order, the
	// universe cmd/indexer's Build mode walks and Update narrows via
	// StaleArticleIDs.
	AllArticleIDs(ctx context.Context) ([]int64, error)

	// FilterCandidates narrows ids to those whose owning article satisfies
	// filter. Implementations may push the predicate into the store.
	FilterCandidates(ctx context.Context, ids []int64, filter CandidateFilter) ([]int64, error)

	// ListSources returns every distinct source with its article count.
	ListSources(ctx context.Context) ([]SourceCount, error)
	// TopAuthors returns authors with at least minCount articles.
	TopAuthors(ctx context.Context, minCount int) ([]AuthorStat, error)
	// Stats returns an aggregate snapshot of the store.
	Stats(ctx context.Context) (Stats, error)

	// UpsertArticles inserts new articles. Rows whose URL or StableID
	// already exists are silently dropped, never overwritten, per the
	// documented uniqueness invariant. Returns the IDs actually inserted,
	// in the same order as the surviving input rows.
	UpsertArticles(ctx context.Context, articles []Article) ([]int64, error)
	// ReplaceChunks atomically swaps the chunk set for articleID: the old
	// chunks and the new chunks are never both partially visible to a
	// concurrent reader.
	ReplaceChunks(ctx context.Context, articleID int64, chunks []Chunk) error
	// SetIndexState updates the indexed/is_chunked/embedding_version flags
	// for articleID.
	SetIndexState(ctx context.Context, articleID int64, indexed, isChunked bool, embeddingVersion string) error
}
