// Package store holds the Article Store: durable storage of articles,
// chunks, and feed/author metadata behind a predicate-query interface.
//
// The Postgres implementation follows the teacher's raw-SQL,
// CREATE-TABLE-IF-NOT-EXISTS bootstrap style from
// internal/persistence/databases/postgres_search.go and postgres_doc.go
// (no migration framework, JSONB metadata columns), with article inserts
// guarded by WHERE NOT EXISTS on url and stable_id.
// The in-memory implementation follows memory_vector.go's sync.RWMutex
// pattern, used by tests and by the indexing/search packages' own test
// suites without a live Postgres instance.
package store

import "time"

// Article is the unit of user interest: one ingested piece of content.
type Article struct {
	ID              int64
	URL             string
	StableID        string
	Title           string
	Content         string
	Summary         string
	Source          string
	Author          string
	PublishedAt     time.Time
	IngestedAt      time.Time
	WordCount       int
	IsChunked       bool
	Indexed         bool
	EmbeddingVersion string
	ExtractedTerms  map[string]any // JSON blob, producer out of scope
	Tags            map[string]any // JSON blob, producer out of scope
}

// Chunk is a contiguous sub-window of an article's content, produced by
// the chunker when the article exceeds the chunking threshold.
type Chunk struct {
	ArticleID     int64
	ChunkIndex    int
	Text          string
	WordCount     int
	StartPosition int
}

// AuthorStat backs top_authors(min_count).
type AuthorStat struct {
	Author            string
	ArticleCount      int
	EarliestPublished time.Time
	LatestPublished   time.Time
}

// FeedHealth is read-only from the core's perspective; written by the
// out-of-scope ingestion collaborator. Exposed via Stats().
type FeedHealth struct {
	Source         string
	ArticleCount   int
	LastIngestedAt time.Time
	LastError      string
}

// SourceCount backs list_sources().
type SourceCount struct {
	Source string
	Count  int
}

// Stats is the aggregate snapshot returned by Stats().
type Stats struct {
	TotalArticles int
	TotalChunks   int
	IndexedCount  int
	ChunkedCount  int
	Sources       []FeedHealth
}

// CandidateFilter narrows filter_candidates by metadata predicate; zero
// values mean "no constraint on this field".
type CandidateFilter struct {
	Source      string
	Author      string
	HasDateRange bool
	Start, End  time.Time
}
