// Package search implements the end-to-end query pipeline: parse, embed,
// retrieve, filter, rerank, deduplicate chunks to articles, apply
// phrase/author filters, paginate, and enrich the returned page.
//
// The Engine façade (functional options, injected Clock, stage-timed
// metrics) is grounded on internal/rag/service.Service/service.New: an
// options-configured struct over storage/embedding/reranking
// collaborators whose Retrieve method runs a fixed stage pipeline,
// recording per-stage histogram timings the same way.
package search

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/domwxyz/marxist-search/internal/docid"
	"github.com/domwxyz/marxist-search/internal/embedding"
	"github.com/domwxyz/marxist-search/internal/filter"
	"github.com/domwxyz/marxist-search/internal/obs"
	"github.com/domwxyz/marxist-search/internal/query"
	"github.com/domwxyz/marxist-search/internal/rerank"
	"github.com/domwxyz/marxist-search/internal/store"
	"github.com/domwxyz/marxist-search/internal/vectorindex"
)

// Config controls retrieval width, pagination bounds, worker-pool shape,
// and query time budgets.
type Config struct {
	RetrievalK   int // top-K requested from the vector index, pre-filter
	DefaultLimit int
	MaxLimit     int

	Workers    int // concurrent queries served at once
	QueueDepth int // additional requests admitted while all workers are busy

	SoftBudget  time.Duration // target only: neither enforced nor read by the engine
	HardTimeout time.Duration // exceeding this surfaces a Timeout error

	Rerank rerank.SignalConfig
}

func (c Config) withDefaults() Config {
	if c.RetrievalK <= 0 {
		c.RetrievalK = 400
	}
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = 10
	}
	if c.MaxLimit <= 0 {
		c.MaxLimit = 100
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = 24
	}
	if c.SoftBudget <= 0 {
		c.SoftBudget = 500 * time.Millisecond
	}
	if c.HardTimeout <= 0 {
		c.HardTimeout = 2 * time.Second
	}
	return c
}

// ParsedQueryEcho is the parsed-query shape returned alongside results.
type ParsedQueryEcho struct {
	SemanticTerms []string
	ExactPhrases  []string
	TitlePhrases  []string
	AuthorFilter  string
	HasAuthor     bool
}

// ResultItem is one enriched hit in a SearchResponse.
type ResultItem struct {
	ArticleID       int64
	Title           string
	URL             string
	Source          string
	Author          string
	PublishedDate   time.Time
	Excerpt         string
	MatchedPhrase   string
	MatchedSections int
	Score           float64
	Tags            map[string]any
}

// SearchResponse is the result of one Search call.
type SearchResponse struct {
	Results     []ResultItem
	Total       int
	QueryTimeMS int64
	ParsedQuery ParsedQueryEcho
}

// Engine drives the end-to-end query pipeline over an Article Store and
// Vector Index.
type Engine struct {
	store    store.ArticleStore
	index    vectorindex.Index
	embedder embedding.Embedder
	reranker Reranker
	logger   zerolog.Logger
	metrics  *obs.Metrics
	clock    Clock
	cfg      Config
	pool     *pool
}

// New constructs an Engine from its collaborators and configuration.
func New(st store.ArticleStore, idx vectorindex.Index, emb embedding.Embedder, cfg Config, opts ...Option) *Engine {
	cfg = cfg.withDefaults()
	e := &Engine{
		store:    st,
		index:    idx,
		embedder: emb,
		reranker: defaultReranker{cfg: cfg.Rerank},
		logger:   obs.Logger(),
		clock:    SystemClock{},
		cfg:      cfg,
	}
	for _, o := range opts {
		o(e)
	}
	e.pool = newPool(cfg.Workers, cfg.QueueDepth)
	return e
}

// Search runs the full 10-step query pipeline, dispatched onto the
// Engine's bounded worker pool. limit <= 0 uses Config.DefaultLimit;
// limit above Config.MaxLimit is clamped.
func (e *Engine) Search(ctx context.Context, rawQuery string, filterSpec filter.Spec, limit, offset int) (SearchResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.HardTimeout)
	defer cancel()
	resp, err := e.pool.admit(ctx, func(ctx context.Context) (SearchResponse, error) {
		return e.search(ctx, rawQuery, filterSpec, limit, offset)
	})
	// A query that ran past HardTimeout reports Timeout, even when the
	// stages it ran finished without observing the deadline themselves.
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		if kind, _ := KindOf(err); kind != Timeout {
			return SearchResponse{}, newError(Timeout, ctx.Err())
		}
	}
	return resp, err
}

// Sources returns every distinct source the Article Store knows about,
// with its article count. An auxiliary read alongside Search, per the
// query API's sources() operation.
func (e *Engine) Sources(ctx context.Context) ([]store.SourceCount, error) {
	return e.store.ListSources(ctx)
}

// TopAuthors returns authors with at least minCount articles, per the
// query API's top_authors(min_count) operation.
func (e *Engine) TopAuthors(ctx context.Context, minCount int) ([]store.AuthorStat, error) {
	return e.store.TopAuthors(ctx, minCount)
}

// Stats returns an aggregate snapshot of the Article Store, per the query
// API's stats() operation.
func (e *Engine) Stats(ctx context.Context) (store.Stats, error) {
	return e.store.Stats(ctx)
}

// Health reports whether the Article Store is reachable, plus the Vector
// Index's document count, per the query API's health() operation.
// vectorindex.Index.Count has no error path, so IndexOK is always true; an
// unreachable index shows only as an IndexedCount of 0. Neither
// collaborator failing is fatal to the Engine; Health exists so front ends
// can distinguish "no results" from "backend unreachable".
type Health struct {
	StoreOK      bool
	StoreError   string
	IndexOK      bool
	IndexedCount int
}

func (e *Engine) Health(ctx context.Context) Health {
	var h Health
	if _, err := e.store.Stats(ctx); err != nil {
		h.StoreError = err.Error()
	} else {
		h.StoreOK = true
	}
	h.IndexedCount = e.index.Count()
	h.IndexOK = true
	return h
}

func (e *Engine) search(ctx context.Context, rawQuery string, filterSpec filter.Spec, limit, offset int) (SearchResponse, error) {
	started := e.clock.Now()

	// 1. Parse the query.
	pq, err := query.Parse(rawQuery)
	if err != nil {
		e.metrics.IncQueries("error")
		return SearchResponse{}, newError(QueryTooLong, err)
	}
	echo := ParsedQueryEcho{
		SemanticTerms: pq.SemanticTerms,
		ExactPhrases:  pq.ExactPhrases,
		TitlePhrases:  pq.TitlePhrases,
		AuthorFilter:  pq.AuthorFilter,
		HasAuthor:     pq.HasAuthor,
	}

	// An empty or whitespace-only query (and no phrase/author filters to
	// anchor on) has nothing to search for; short-circuit before
	// embedding rather than let a zero vector match every document.
	if len(pq.SemanticTerms) == 0 && len(pq.ExactPhrases) == 0 && len(pq.TitlePhrases) == 0 &&
		!pq.HasAuthor && strings.TrimSpace(rawQuery) == "" {
		e.metrics.IncQueries("ok")
		return SearchResponse{Total: 0, QueryTimeMS: e.clock.Now().Sub(started).Milliseconds(), ParsedQuery: echo}, nil
	}

	// 2. Build the embedding input.
	embedInput := strings.Join(pq.SemanticTerms, " ")
	if embedInput == "" {
		embedInput = strings.TrimSpace(rawQuery)
	}

	vecs, err := e.embedder.EmbedBatch(ctx, []string{embedInput})
	if err != nil || len(vecs) == 0 {
		e.metrics.IncQueries("error")
		if err == nil {
			err = errors.New("search: embedder returned no vector")
		}
		return SearchResponse{}, newError(IndexUnavailable, err)
	}

	// 3. Ask the vector index for the top retrieval_k results.
	hits, err := e.index.Search(vecs[0], e.cfg.RetrievalK)
	if err != nil {
		e.metrics.IncQueries("error")
		return SearchResponse{}, newError(IndexUnavailable, err)
	}

	// 4. Apply metadata filters. The vector document payload already
	// carries the filterable fields, so this is a pure post-filter with
	// no store round trip.
	filtered := hits[:0:0]
	for _, h := range hits {
		c := filter.Candidate{
			PublishedDate: unixOrZero(h.Metadata.PublishedDate),
			Source:        h.Metadata.Source,
			Author:        h.Metadata.Author,
		}
		if filterSpec.Matches(c) {
			filtered = append(filtered, h)
		}
	}

	// Resolve article rows (and, for chunk documents, chunk text) for the
	// surviving candidates: the reranker's title/phrase/keyword signals and
	// the later phrase filters and enrichment step all need this data, so
	// it is fetched once and reused rather than hit the store repeatedly.
	articles, chunkText, err := e.resolveCandidates(ctx, filtered)
	if err != nil {
		e.metrics.IncQueries("error")
		return SearchResponse{}, newError(StoreUnavailable, err)
	}

	type enriched struct {
		hit       vectorindex.Result
		articleID int64
		isChunk   bool
	}
	candidates := make([]rerank.Candidate, 0, len(filtered))
	byDocID := make(map[string]enriched, len(filtered))
	for _, h := range filtered {
		parsed, perr := docid.Parse(h.DocID)
		if perr != nil {
			e.logger.Warn().Str("doc_id", h.DocID).Msg("search: malformed vector document id, dropped")
			continue
		}
		art, ok := articles[parsed.ArticleID]
		if !ok {
			e.logger.Warn().Int64("article_id", parsed.ArticleID).Str("doc_id", h.DocID).
				Msg("search: vector index candidate has no matching article row, dropped")
			continue
		}
		text := art.Content
		if parsed.Kind == docid.KindChunk {
			if t, ok := chunkText[h.DocID]; ok {
				text = t
			}
		}
		candidates = append(candidates, rerank.Candidate{
			DocID:            h.DocID,
			Title:            art.Title,
			Text:             text,
			PublishedDate:    art.PublishedAt,
			HasPublishedDate: !art.PublishedAt.IsZero(),
			Score:            h.Score,
		})
		byDocID[h.DocID] = enriched{hit: h, articleID: parsed.ArticleID, isChunk: parsed.Kind == docid.KindChunk}
	}

	// 5. Apply the reranker.
	qctx := rerank.QueryContext{SemanticTerms: pq.SemanticTerms, ExactPhrases: pq.ExactPhrases, Now: e.clock.Now()}
	candidates = e.reranker.Rerank(candidates, qctx)

	// 6. Deduplicate chunks to articles: keep the representative with the
	// highest reranked score, recording matched_sections = group size.
	type group struct {
		best        rerank.Candidate
		bestDocID   string
		sectionHits int
	}
	groups := make(map[int64]*group)
	order := make([]int64, 0, len(candidates))
	for _, c := range candidates {
		info := byDocID[c.DocID]
		g, ok := groups[info.articleID]
		if !ok {
			g = &group{best: c, bestDocID: c.DocID}
			groups[info.articleID] = g
			order = append(order, info.articleID)
		}
		g.sectionHits++
		if c.Score > g.best.Score {
			g.best = c
			g.bestDocID = c.DocID
		}
	}

	// 7. Apply exact-phrase, title-phrase, and author filters.
	survivors := make([]ResultItem, 0, len(order))
	for _, articleID := range order {
		g := groups[articleID]
		art := articles[articleID]

		if !matchesExactPhrases(g.best.Text, pq.ExactPhrases) {
			continue
		}
		if !matchesTitlePhrases(art.Title, pq.TitlePhrases) {
			continue
		}
		if pq.HasAuthor && art.Author != pq.AuthorFilter {
			continue
		}

		survivors = append(survivors, ResultItem{
			ArticleID:       articleID,
			Title:           art.Title,
			URL:             art.URL,
			Source:          art.Source,
			Author:          art.Author,
			PublishedDate:   art.PublishedAt,
			Score:           g.best.Score,
			MatchedSections: g.sectionHits,
			Tags:            art.Tags,
		})
	}

	// Total order: descending score, ties by descending published_date,
	// then ascending article_id.
	sort.SliceStable(survivors, func(i, j int) bool {
		a, b := survivors[i], survivors[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.PublishedDate.Equal(b.PublishedDate) {
			return a.PublishedDate.After(b.PublishedDate)
		}
		return a.ArticleID < b.ArticleID
	})

	total := len(survivors)

	// 8. Apply pagination.
	limit = clampLimit(limit, e.cfg.DefaultLimit, e.cfg.MaxLimit)
	if offset < 0 {
		offset = 0
	}
	page := paginate(survivors, offset, limit)

	// 9. Enrich the returned page: excerpt and matched_phrase.
	allPhrases := append(append([]string{}, pq.ExactPhrases...), pq.TitlePhrases...)
	for i := range page {
		g := groups[page[i].ArticleID]
		excerpt, matched := buildExcerpt(g.best.Text, allPhrases)
		page[i].Excerpt = excerpt
		page[i].MatchedPhrase = matched
	}

	e.metrics.IncQueries("ok")
	e.metrics.ObserveQueryMS(e.clock.Now().Sub(started))

	return SearchResponse{
		Results:     page,
		Total:       total,
		QueryTimeMS: e.clock.Now().Sub(started).Milliseconds(),
		ParsedQuery: echo,
	}, nil
}

// resolveCandidates fetches the article rows referenced by hits, and for
// chunk documents, the specific chunk text each one names. Malformed doc
// ids are skipped (caller logs them); a genuinely missing article row is
// signalled by its absence in the returned map, not an error.
func (e *Engine) resolveCandidates(ctx context.Context, hits []vectorindex.Result) (map[int64]store.Article, map[string]string, error) {
	articleIDSet := make(map[int64]struct{})
	chunksByArticle := make(map[int64]map[int]bool)
	for _, h := range hits {
		parsed, err := docid.Parse(h.DocID)
		if err != nil {
			continue
		}
		articleIDSet[parsed.ArticleID] = struct{}{}
		if parsed.Kind == docid.KindChunk {
			if chunksByArticle[parsed.ArticleID] == nil {
				chunksByArticle[parsed.ArticleID] = make(map[int]bool)
			}
			chunksByArticle[parsed.ArticleID][parsed.ChunkIndex] = true
		}
	}

	ids := make([]int64, 0, len(articleIDSet))
	for id := range articleIDSet {
		ids = append(ids, id)
	}
	rows, err := e.store.GetArticles(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	articles := make(map[int64]store.Article, len(rows))
	for _, a := range rows {
		articles[a.ID] = a
	}

	chunkText := make(map[string]string)
	for articleID, idxSet := range chunksByArticle {
		indices := make([]int, 0, len(idxSet))
		for i := range idxSet {
			indices = append(indices, i)
		}
		chunks, err := e.store.GetChunks(ctx, articleID, indices)
		if err != nil {
			return nil, nil, err
		}
		for _, c := range chunks {
			chunkText[docid.MakeChunkID(articleID, c.ChunkIndex)] = c.Text
		}
	}
	return articles, chunkText, nil
}

func matchesExactPhrases(text string, phrases []string) bool {
	for _, p := range phrases {
		if wholeWordSubstring(text, p) == -1 {
			return false
		}
	}
	return true
}

func matchesTitlePhrases(title string, phrases []string) bool {
	for _, p := range phrases {
		if wholeWordSubstring(title, p) == -1 {
			return false
		}
	}
	return true
}

// wholeWordSubstring returns the byte index of the first case-insensitive,
// whole-word occurrence of phrase in haystack, or -1 if absent.
func wholeWordSubstring(haystack, phrase string) int {
	lowerHay := strings.ToLower(haystack)
	lowerPhrase := strings.ToLower(strings.TrimSpace(phrase))
	if lowerPhrase == "" {
		return -1
	}
	start := 0
	for {
		idx := strings.Index(lowerHay[start:], lowerPhrase)
		if idx < 0 {
			return -1
		}
		abs := start + idx
		before := abs == 0 || !isWordByte(lowerHay[abs-1])
		afterIdx := abs + len(lowerPhrase)
		after := afterIdx >= len(lowerHay) || !isWordByte(lowerHay[afterIdx])
		if before && after {
			return abs
		}
		start = abs + len(lowerPhrase)
		if start >= len(lowerHay) {
			return -1
		}
	}
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

const excerptRadius = 100

// buildExcerpt returns a ~200-char window centered on the first phrase
// match in text (or the first 200 chars if no phrase is given/found), and
// the phrase that matched, if any.
func buildExcerpt(text string, phrases []string) (excerpt string, matched string) {
	for _, p := range phrases {
		if idx := wholeWordSubstring(text, p); idx >= 0 {
			start := idx - excerptRadius
			if start < 0 {
				start = 0
			}
			end := idx + len(p) + excerptRadius
			if end > len(text) {
				end = len(text)
			}
			start = backToRuneBoundary(text, start)
			end = forwardToRuneBoundary(text, end)
			return strings.TrimSpace(text[start:end]), p
		}
	}
	end := 2 * excerptRadius
	if end > len(text) {
		end = len(text)
	}
	end = forwardToRuneBoundary(text, end)
	return strings.TrimSpace(text[:end]), ""
}

// backToRuneBoundary walks pos backward, if needed, to the start of the
// UTF-8 rune it falls inside, so a byte-offset window never splits a
// multi-byte character.
func backToRuneBoundary(text string, pos int) int {
	for pos > 0 && pos < len(text) && !utf8.RuneStart(text[pos]) {
		pos--
	}
	return pos
}

// forwardToRuneBoundary walks pos forward, if needed, to the start of the
// next UTF-8 rune, for the same reason as backToRuneBoundary.
func forwardToRuneBoundary(text string, pos int) int {
	for pos < len(text) && !utf8.RuneStart(text[pos]) {
		pos++
	}
	return pos
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

func paginate(items []ResultItem, offset, limit int) []ResultItem {
	if offset >= len(items) {
		return []ResultItem{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	out := make([]ResultItem, end-offset)
	copy(out, items[offset:end])
	return out
}

func unixOrZero(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
