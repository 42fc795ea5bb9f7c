// Command indexer drives the indexing.Service build and update modes
// against a configured Article Store and Vector Index.
//
// Grounded on cmd/embedctl/main.go's shape: flag.String for mode/config
// path, config.Load, then direct field-by-field use of the loaded config
// rather than a full CLI framework.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/domwxyz/marxist-search/internal/chunker"
	"github.com/domwxyz/marxist-search/internal/config"
	"github.com/domwxyz/marxist-search/internal/embedding"
	"github.com/domwxyz/marxist-search/internal/indexing"
	"github.com/domwxyz/marxist-search/internal/obs"
	"github.com/domwxyz/marxist-search/internal/store"
	"github.com/domwxyz/marxist-search/internal/vectorindex"
)

func main() {
	mode := flag.String("mode", "update", "build (reindex everything) or update (reindex stale articles only)")
	cfgPath := flag.String("config", "config.yaml", "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		obs.Logger().Fatal().Err(err).Msg("indexer: load config")
	}
	obs.InitLogger(cfg.Logging.LogPath, cfg.Logging.Level)
	log := obs.Logger()
	metrics := obs.NewMetrics("marxist-search/indexer")

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.Store.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("indexer: connect to article store")
	}
	defer pool.Close()

	st, err := store.NewPostgres(ctx, pool)
	if err != nil {
		log.Fatal().Err(err).Msg("indexer: bootstrap article store")
	}

	idx, err := buildVectorIndex(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("indexer: open vector index")
	}

	emb := embedding.NewClient(embedding.ClientConfig{
		Model:     cfg.Embedding.ModelIdentifier,
		BaseURL:   cfg.Embedding.BaseURL,
		Path:      cfg.Embedding.Path,
		APIKey:    cfg.Embedding.APIKey,
		APIHeader: cfg.Embedding.APIHeader,
	}, cfg.Embedding.Dimension)

	svc := indexing.New(st, idx, emb, indexing.Config{
		Chunker: chunker.Config{
			ThresholdWords: cfg.Chunking.ThresholdWords,
			ChunkSizeWords: cfg.Chunking.ChunkSizeWords,
			OverlapWords:   cfg.Chunking.OverlapWords,
			SectionMarkers: cfg.Chunking.SectionMarkers,
		},
		EmbeddingVersion: cfg.Embedding.ModelIdentifier,
	}, log, metrics)

	allIDs, err := st.AllArticleIDs(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("indexer: enumerate article ids")
	}

	var res indexing.Result
	switch *mode {
	case "build":
		res, err = svc.Build(ctx, allIDs)
	case "update":
		var stale []int64
		stale, err = indexing.StaleArticleIDs(ctx, st, allIDs, cfg.Embedding.ModelIdentifier)
		if err != nil {
			log.Fatal().Err(err).Msg("indexer: determine stale articles")
		}
		res, err = svc.Update(ctx, stale)
	default:
		log.Fatal().Str("mode", *mode).Msg("indexer: unknown mode, want build or update")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("indexer: run failed")
	}

	log.Info().
		Int("processed", res.ArticlesProcessed).
		Int("failed", res.ArticlesFailed).
		Dur("duration", res.Duration).
		Msg("indexer: done")

	if mem, ok := idx.(*vectorindex.Memory); ok && cfg.VectorIndex.SnapshotPath != "" {
		if err := mem.Save(cfg.VectorIndex.SnapshotPath); err != nil {
			log.Error().Err(err).Msg("indexer: save memory vector index snapshot")
		}
	}

	os.Exit(0)
}

func buildVectorIndex(ctx context.Context, cfg *config.Config) (vectorindex.Index, error) {
	switch cfg.VectorIndex.Backend {
	case "qdrant":
		return vectorindex.NewQdrant(ctx, cfg.VectorIndex.Qdrant.DSN, cfg.VectorIndex.Qdrant.Collection, cfg.Embedding.Dimension)
	default:
		mem := vectorindex.NewMemory()
		if cfg.VectorIndex.SnapshotPath != "" {
			if err := mem.Load(cfg.VectorIndex.SnapshotPath); err != nil && !os.IsNotExist(err) {
				return nil, err
			}
		}
		return mem, nil
	}
}
