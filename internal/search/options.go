package search

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/domwxyz/marxist-search/internal/embedding"
	"github.com/domwxyz/marxist-search/internal/obs"
	"github.com/domwxyz/marxist-search/internal/rerank"
)

// Clock abstracts time so recency boost and query_time_ms are
// deterministically testable, the way service.Clock/service.SystemClock
// keep time.Now() calls out of the retrieval hot path.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Reranker adjusts candidate scores. The default wraps rerank.Apply with a
// fixed SignalConfig; tests substitute a stub via WithReranker.
type Reranker interface {
	Rerank(candidates []rerank.Candidate, qctx rerank.QueryContext) []rerank.Candidate
}

type defaultReranker struct {
	cfg rerank.SignalConfig
}

func (d defaultReranker) Rerank(candidates []rerank.Candidate, qctx rerank.QueryContext) []rerank.Candidate {
	return rerank.Apply(candidates, d.cfg, qctx)
}

// Option configures an Engine during construction.
type Option func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(l zerolog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithMetrics sets a custom metrics collector. A nil *obs.Metrics is
// accepted and behaves as a no-op.
func WithMetrics(m *obs.Metrics) Option { return func(e *Engine) { e.metrics = m } }

// WithClock sets a custom clock implementation.
func WithClock(c Clock) Option { return func(e *Engine) { e.clock = c } }

// WithEmbedder overrides the embedder used to vectorize queries.
func WithEmbedder(emb embedding.Embedder) Option { return func(e *Engine) { e.embedder = emb } }

// WithReranker overrides the reranking strategy.
func WithReranker(r Reranker) Option { return func(e *Engine) { e.reranker = r } }
