// Package indexing brings the Vector Index into agreement with the
// Article Store: a full Build mode and an incremental Update mode.
//
// The request/response and per-stage statistics shape is grounded on the
// teacher's internal/rag/ingest package (IngestRequest/IngestResponse/
// IngestStats in api.go), adapted from per-document ingestion to the
// batch build/update modes this spec requires; the idempotency-by-hash
// policy selection (internal/rag/ingest/idempotency.go) is the model for
// "indexed == false or embedding_version != current" staleness detection.
package indexing

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/domwxyz/marxist-search/internal/chunker"
	"github.com/domwxyz/marxist-search/internal/docid"
	"github.com/domwxyz/marxist-search/internal/docprep"
	"github.com/domwxyz/marxist-search/internal/embedding"
	"github.com/domwxyz/marxist-search/internal/obs"
	"github.com/domwxyz/marxist-search/internal/store"
	"github.com/domwxyz/marxist-search/internal/vectorindex"
)

// Config controls chunking and title-weighting behavior during indexing.
type Config struct {
	Chunker               chunker.Config
	TitleWeightMultiplier int
	EmbeddingVersion      string
}

func (c Config) withDefaults() Config {
	if c.TitleWeightMultiplier <= 0 {
		c.TitleWeightMultiplier = docprep.DefaultTitleWeightMultiplier
	}
	if c.EmbeddingVersion == "" {
		c.EmbeddingVersion = embedding.DefaultModel
	}
	return c
}

// Service brings the vector index into agreement with the article store.
type Service struct {
	store    store.ArticleStore
	index    vectorindex.Index
	embedder embedding.Embedder
	cfg      Config
	logger   zerolog.Logger
	metrics  *obs.Metrics
}

// New constructs an indexing Service.
func New(st store.ArticleStore, idx vectorindex.Index, emb embedding.Embedder, cfg Config, logger zerolog.Logger, metrics *obs.Metrics) *Service {
	return &Service{
		store:    st,
		index:    idx,
		embedder: emb,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		metrics:  metrics,
	}
}

// Result summarizes one Build or Update pass.
type Result struct {
	ArticlesProcessed int
	ArticlesFailed    int
	Duration          time.Duration
}

// Build re-indexes each article in articleIDs, in the order given
// (cmd/indexer passes every id from AllArticleIDs). Each article's prior
// vectors (if any) are deleted before it is re-indexed, so re-running
// Build after a chunking change leaves no orphan c_<id>_* vectors from a
// previous chunk count. Build does not clear the index: vectors of
// articles not in articleIDs stay in place. It does not persist the index
// either.
func (s *Service) Build(ctx context.Context, articleIDs []int64) (Result, error) {
	started := time.Now()
	var res Result
	for _, id := range articleIDs {
		if err := s.reindexOne(ctx, id); err != nil {
			res.ArticlesFailed++
			s.logger.Error().Int64("article_id", id).Err(err).Msg("indexing: article failed")
			s.metrics.IncArticles("error")
			continue
		}
		res.ArticlesProcessed++
		s.metrics.IncArticles("ok")
	}
	res.Duration = time.Since(started)
	return res, nil
}

// Update brings each article in staleArticleIDs up to date; the caller
// supplies the ids needing re-indexing (indexed == false or
// embedding_version != current), e.g. from StaleArticleIDs. Per-article
// failures are logged and skipped; the batch continues.
func (s *Service) Update(ctx context.Context, staleArticleIDs []int64) (Result, error) {
	started := time.Now()
	var res Result
	for _, id := range staleArticleIDs {
		if err := s.reindexOne(ctx, id); err != nil {
			res.ArticlesFailed++
			s.logger.Error().Int64("article_id", id).Err(err).Msg("indexing: article failed")
			s.metrics.IncArticles("error")
			continue
		}
		res.ArticlesProcessed++
		s.metrics.IncArticles("ok")
	}
	res.Duration = time.Since(started)
	return res, nil
}

// reindexOne removes any existing vector documents for articleID before
// delegating to indexOne. The prior chunk set is read from the store
// (rather than guessed) so exactly the stale documents are removed,
// whether the article was previously chunked, previously whole, or not
// previously indexed at all.
func (s *Service) reindexOne(ctx context.Context, articleID int64) error {
	if err := s.deleteExistingVectors(ctx, articleID); err != nil {
		return fmt.Errorf("indexing: delete stale vectors for article %d: %w", articleID, err)
	}
	return s.indexOne(ctx, articleID)
}

func (s *Service) deleteExistingVectors(ctx context.Context, articleID int64) error {
	if err := s.index.Delete(docid.MakeArticleID(articleID)); err != nil {
		return err
	}
	priorChunks, err := s.store.GetChunks(ctx, articleID, nil)
	if err != nil {
		return err
	}
	for _, c := range priorChunks {
		if err := s.index.Delete(docid.MakeChunkID(articleID, c.ChunkIndex)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) indexOne(ctx context.Context, articleID int64) error {
	started := time.Now()
	article, err := s.store.GetArticle(ctx, articleID)
	if err != nil {
		return fmt.Errorf("indexing: load article %d: %w", articleID, err)
	}

	chunkStart := time.Now()
	chunks, didChunk, err := chunker.New().Chunk(article.Content, s.cfg.Chunker)
	if err != nil {
		return fmt.Errorf("indexing: chunk article %d: %w", articleID, err)
	}
	s.metrics.ObserveStageMS("chunk", time.Since(chunkStart))

	if !didChunk {
		return s.indexWholeArticle(ctx, article, started)
	}
	return s.indexChunkedArticle(ctx, article, chunks, started)
}

func (s *Service) indexWholeArticle(ctx context.Context, article store.Article, started time.Time) error {
	text := docprep.PrepareWholeArticle(article.Title, article.Content, s.cfg.TitleWeightMultiplier)

	embedStart := time.Now()
	vecs, err := s.embedder.EmbedBatch(ctx, []string{text})
	if err != nil {
		return fmt.Errorf("indexing: embed article %d: %w", article.ID, err)
	}
	s.metrics.ObserveStageMS("embed", time.Since(embedStart))

	if err := s.store.ReplaceChunks(ctx, article.ID, nil); err != nil {
		return fmt.Errorf("indexing: clear chunks for article %d: %w", article.ID, err)
	}

	upsertStart := time.Now()
	meta := vectorindex.Document{
		ArticleID:     article.ID,
		Title:         article.Title,
		Source:        article.Source,
		Author:        article.Author,
		PublishedDate: article.PublishedAt.Unix(),
	}
	if err := s.index.Upsert(docid.MakeArticleID(article.ID), vecs[0], meta); err != nil {
		return fmt.Errorf("indexing: upsert article %d: %w", article.ID, err)
	}
	s.metrics.ObserveStageMS("upsert", time.Since(upsertStart))

	if err := s.store.SetIndexState(ctx, article.ID, true, false, s.cfg.EmbeddingVersion); err != nil {
		return fmt.Errorf("indexing: mark article %d indexed: %w", article.ID, err)
	}
	s.logger.Info().Int64("article_id", article.ID).Int("chunk_count", 0).
		Dur("duration", time.Since(started)).Msg("indexing: article indexed")
	return nil
}

func (s *Service) indexChunkedArticle(ctx context.Context, article store.Article, chunks []chunker.Chunk, started time.Time) error {
	texts := make([]string, len(chunks))
	storeChunks := make([]store.Chunk, len(chunks))
	for i, c := range chunks {
		texts[i] = docprep.PrepareChunk(article.Title, c.Text, c.Index, s.cfg.TitleWeightMultiplier)
		storeChunks[i] = store.Chunk{
			ArticleID:     article.ID,
			ChunkIndex:    c.Index,
			Text:          c.Text,
			WordCount:     c.WordCount,
			StartPosition: c.StartPosition,
		}
	}

	embedStart := time.Now()
	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("indexing: embed chunks for article %d: %w", article.ID, err)
	}
	s.metrics.ObserveStageMS("embed", time.Since(embedStart))

	if err := s.store.ReplaceChunks(ctx, article.ID, storeChunks); err != nil {
		return fmt.Errorf("indexing: replace chunks for article %d: %w", article.ID, err)
	}

	upsertStart := time.Now()
	for i, c := range chunks {
		meta := vectorindex.Document{
			ArticleID:     article.ID,
			Title:         article.Title,
			Source:        article.Source,
			Author:        article.Author,
			PublishedDate: article.PublishedAt.Unix(),
			IsChunk:       true,
			ChunkIndex:    c.Index,
		}
		if err := s.index.Upsert(docid.MakeChunkID(article.ID, c.Index), vecs[i], meta); err != nil {
			return fmt.Errorf("indexing: upsert chunk %d of article %d: %w", c.Index, article.ID, err)
		}
	}
	s.metrics.ObserveStageMS("upsert", time.Since(upsertStart))

	if err := s.store.SetIndexState(ctx, article.ID, true, true, s.cfg.EmbeddingVersion); err != nil {
		return fmt.Errorf("indexing: mark article %d indexed: %w", article.ID, err)
	}
	s.logger.Info().Int64("article_id", article.ID).Int("chunk_count", len(chunks)).
		Dur("duration", time.Since(started)).Msg("indexing: article indexed")
	return nil
}

// StaleArticleIDs returns the ids of articles needing (re)indexing:
// indexed == false, or embedding_version != currentVersion.
func StaleArticleIDs(ctx context.Context, st store.ArticleStore, allIDs []int64, currentVersion string) ([]int64, error) {
	articles, err := st.GetArticles(ctx, allIDs)
	if err != nil {
		return nil, err
	}
	var stale []int64
	for _, a := range articles {
		if !a.Indexed || a.EmbeddingVersion != currentVersion {
			stale = append(stale, a.ID)
		}
	}
	return stale, nil
}
