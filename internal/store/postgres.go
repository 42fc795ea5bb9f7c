package store

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the primary ArticleStore backend, grounded on the teacher's
// postgres_search.go / postgres_doc.go bootstrap style: raw SQL,
// CREATE TABLE IF NOT EXISTS, no migration framework.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres opens (best-effort bootstraps) the articles/chunks schema
// against an existing pool.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	p := &Postgres{pool: pool}
	if err := p.bootstrap(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Postgres) bootstrap(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS articles (
			id BIGSERIAL PRIMARY KEY,
			url TEXT NOT NULL UNIQUE,
			stable_id TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL,
			author TEXT NOT NULL DEFAULT '',
			published_at TIMESTAMPTZ NOT NULL,
			ingested_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			word_count INT NOT NULL DEFAULT 0,
			is_chunked BOOLEAN NOT NULL DEFAULT false,
			indexed BOOLEAN NOT NULL DEFAULT false,
			embedding_version TEXT NOT NULL DEFAULT '',
			extracted_terms JSONB NOT NULL DEFAULT '{}'::jsonb,
			tags JSONB NOT NULL DEFAULT '{}'::jsonb
		)`,
		`CREATE INDEX IF NOT EXISTS articles_source_idx ON articles (source)`,
		`CREATE INDEX IF NOT EXISTS articles_author_idx ON articles (author)`,
		`CREATE INDEX IF NOT EXISTS articles_published_at_idx ON articles (published_at)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			article_id BIGINT NOT NULL REFERENCES articles(id),
			chunk_index INT NOT NULL,
			text TEXT NOT NULL,
			word_count INT NOT NULL,
			start_position INT NOT NULL,
			PRIMARY KEY (article_id, chunk_index)
		)`,
		`CREATE TABLE IF NOT EXISTS feed_health (
			source TEXT PRIMARY KEY,
			article_count INT NOT NULL DEFAULT 0,
			last_ingested_at TIMESTAMPTZ,
			last_error TEXT NOT NULL DEFAULT ''
		)`,
	}
	for _, s := range stmts {
		if _, err := p.pool.Exec(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) GetArticle(ctx context.Context, id int64) (Article, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, url, stable_id, title, content, summary, source, author,
		       published_at, ingested_at, word_count, is_chunked, indexed,
		       embedding_version, extracted_terms, tags
		FROM articles WHERE id = $1`, id)
	a, err := scanArticle(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Article{}, ErrNotFound
		}
		return Article{}, err
	}
	return a, nil
}

func (p *Postgres) GetArticles(ctx context.Context, ids []int64) ([]Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := p.pool.Query(ctx, `
		SELECT id, url, stable_id, title, content, summary, source, author,
		       published_at, ingested_at, word_count, is_chunked, indexed,
		       embedding_version, extracted_terms, tags
		FROM articles WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (p *Postgres) GetChunks(ctx context.Context, articleID int64, chunkIndices []int) ([]Chunk, error) {
	var rows pgx.Rows
	var err error
	if len(chunkIndices) == 0 {
		rows, err = p.pool.Query(ctx, `
			SELECT article_id, chunk_index, text, word_count, start_position
			FROM chunks WHERE article_id = $1 ORDER BY chunk_index`, articleID)
	} else {
		rows, err = p.pool.Query(ctx, `
			SELECT article_id, chunk_index, text, word_count, start_position
			FROM chunks WHERE article_id = $1 AND chunk_index = ANY($2) ORDER BY chunk_index`,
			articleID, chunkIndices)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ArticleID, &c.ChunkIndex, &c.Text, &c.WordCount, &c.StartPosition); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) AllArticleIDs(ctx context.Context) ([]int64, error) {
	rows, err := p.pool.Query(ctx, `SELECT id FROM articles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (p *Postgres) FilterCandidates(ctx context.Context, ids []int64, filter CandidateFilter) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT id FROM articles WHERE id = ANY($1)`
	args := []any{ids}
	n := 2
	if filter.Source != "" {
		query += " AND source = $" + strconv.Itoa(n)
		args = append(args, filter.Source)
		n++
	}
	if filter.Author != "" {
		query += " AND author = $" + strconv.Itoa(n)
		args = append(args, filter.Author)
		n++
	}
	if filter.HasDateRange {
		if !filter.Start.IsZero() {
			query += " AND published_at >= $" + strconv.Itoa(n)
			args = append(args, filter.Start)
			n++
		}
		if !filter.End.IsZero() {
			query += " AND published_at <= $" + strconv.Itoa(n)
			args = append(args, filter.End)
			n++
		}
	}
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (p *Postgres) ListSources(ctx context.Context) ([]SourceCount, error) {
	rows, err := p.pool.Query(ctx, `SELECT source, count(*) FROM articles GROUP BY source ORDER BY source`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SourceCount
	for rows.Next() {
		var sc SourceCount
		if err := rows.Scan(&sc.Source, &sc.Count); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (p *Postgres) TopAuthors(ctx context.Context, minCount int) ([]AuthorStat, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT author, count(*), min(published_at), max(published_at)
		FROM articles
		WHERE author <> ''
		GROUP BY author
		HAVING count(*) >= $1
		ORDER BY count(*) DESC`, minCount)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AuthorStat
	for rows.Next() {
		var a AuthorStat
		if err := rows.Scan(&a.Author, &a.ArticleCount, &a.EarliestPublished, &a.LatestPublished); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (p *Postgres) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	row := p.pool.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE indexed),
		       count(*) FILTER (WHERE is_chunked)
		FROM articles`)
	if err := row.Scan(&s.TotalArticles, &s.IndexedCount, &s.ChunkedCount); err != nil {
		return Stats{}, err
	}
	if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM chunks`).Scan(&s.TotalChunks); err != nil {
		return Stats{}, err
	}
	rows, err := p.pool.Query(ctx, `SELECT source, article_count, last_ingested_at, last_error FROM feed_health ORDER BY source`)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var fh FeedHealth
		if err := rows.Scan(&fh.Source, &fh.ArticleCount, &fh.LastIngestedAt, &fh.LastError); err != nil {
			return Stats{}, err
		}
		s.Sources = append(s.Sources, fh)
	}
	return s, rows.Err()
}

func (p *Postgres) UpsertArticles(ctx context.Context, articles []Article) ([]int64, error) {
	var inserted []int64
	for _, a := range articles {
		terms, err := json.Marshal(nonNil(a.ExtractedTerms))
		if err != nil {
			return nil, err
		}
		tags, err := json.Marshal(nonNil(a.Tags))
		if err != nil {
			return nil, err
		}
		// Postgres allows only one ON CONFLICT target per statement, and
		// url/stable_id are two independent unique constraints, so the
		// duplicate check is expressed as a NOT EXISTS guard instead.
		var id int64
		err = p.pool.QueryRow(ctx, `
			INSERT INTO articles (url, stable_id, title, content, summary, source, author,
			                       published_at, word_count, extracted_terms, tags)
			SELECT $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
			WHERE NOT EXISTS (SELECT 1 FROM articles WHERE url = $1 OR stable_id = $2)
			RETURNING id`,
			a.URL, a.StableID, a.Title, a.Content, a.Summary, a.Source, a.Author,
			a.PublishedAt, a.WordCount, terms, tags).Scan(&id)
		if err == pgx.ErrNoRows {
			// Duplicate URL or stable id: silently dropped per invariant.
			continue
		}
		if err != nil {
			return nil, err
		}
		inserted = append(inserted, id)
	}
	return inserted, nil
}

func (p *Postgres) ReplaceChunks(ctx context.Context, articleID int64, chunks []Chunk) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE article_id = $1`, articleID); err != nil {
		return err
	}
	for _, c := range chunks {
		if _, err := tx.Exec(ctx, `
			INSERT INTO chunks (article_id, chunk_index, text, word_count, start_position)
			VALUES ($1,$2,$3,$4,$5)`,
			articleID, c.ChunkIndex, c.Text, c.WordCount, c.StartPosition); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(ctx, `UPDATE articles SET is_chunked = $2 WHERE id = $1`, articleID, len(chunks) > 0); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (p *Postgres) SetIndexState(ctx context.Context, articleID int64, indexed, isChunked bool, embeddingVersion string) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE articles SET indexed = $2, is_chunked = $3, embedding_version = $4 WHERE id = $1`,
		articleID, indexed, isChunked, embeddingVersion)
	return err
}

type scannable interface {
	Scan(dest ...any) error
}

func scanArticle(row scannable) (Article, error) {
	var a Article
	var terms, tags []byte
	err := row.Scan(&a.ID, &a.URL, &a.StableID, &a.Title, &a.Content, &a.Summary,
		&a.Source, &a.Author, &a.PublishedAt, &a.IngestedAt, &a.WordCount,
		&a.IsChunked, &a.Indexed, &a.EmbeddingVersion, &terms, &tags)
	if err != nil {
		return Article{}, err
	}
	if len(terms) > 0 {
		_ = json.Unmarshal(terms, &a.ExtractedTerms)
	}
	if len(tags) > 0 {
		_ = json.Unmarshal(tags, &a.Tags)
	}
	return a, nil
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

var _ ArticleStore = (*Postgres)(nil)
