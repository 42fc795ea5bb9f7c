// Package config loads the single YAML configuration record described in
// spec section 6: chunking, embedding, retrieval, reranking, and the
// semantic-filter threshold knobs, plus the storage/transport settings
// needed to wire cmd/indexer.
//
// Grounded on internal/config/config.go's LoadConfig: yaml-tagged nested
// structs, os.ReadFile + yaml.Unmarshal, and a defaulting pass for values
// the file may omit, logged the way the teacher logs its own fallbacks
// (there via pterm; here via the module's own zerolog-based ambient
// logger, since pterm is a pretty-printing CLI dependency the rest of
// this module has no other use for).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/domwxyz/marxist-search/internal/obs"
	"github.com/domwxyz/marxist-search/internal/rerank"
	"github.com/domwxyz/marxist-search/internal/search"
)

// ChunkingConfig controls how long articles are split before embedding.
type ChunkingConfig struct {
	ThresholdWords int      `yaml:"threshold_words"`
	ChunkSizeWords int      `yaml:"chunk_size_words"`
	OverlapWords   int      `yaml:"overlap_words"`
	SectionMarkers []string `yaml:"section_markers,omitempty"`
}

// EmbeddingConfig names the embedding model, its output dimension, and the
// HTTP endpoint backing it. Field names mirror embedding.ClientConfig
// (BaseURL + Path rather than a single URL) so Load's result wires
// directly into embedding.NewClient.
type EmbeddingConfig struct {
	ModelIdentifier string `yaml:"model_identifier"`
	Dimension       int    `yaml:"dimension"`
	BaseURL         string `yaml:"base_url,omitempty"`
	Path            string `yaml:"path,omitempty"`
	APIKey          string `yaml:"api_key,omitempty"`
	APIHeader       string `yaml:"api_header,omitempty"`
}

// RetrievalConfig controls how many candidates the vector index returns
// before filtering and reranking narrow the set.
type RetrievalConfig struct {
	RetrievalK int `yaml:"retrieval_k"`
}

// PhrasePresenceBoostConfig controls the reranker's phrase-presence signal.
type PhrasePresenceBoostConfig struct {
	Enabled         bool    `yaml:"enabled"`
	InTitle         float64 `yaml:"in_title"`
	InContent       float64 `yaml:"in_content"`
	AllTermsInTitle float64 `yaml:"all_terms_in_title"`
}

// SemanticDiscoveryBoostConfig controls the reranker's low-literal-overlap
// bonus signal.
type SemanticDiscoveryBoostConfig struct {
	Enabled        bool    `yaml:"enabled"`
	MinSemanticScore float64 `yaml:"min_semantic_score"`
	MaxKeywordHits int     `yaml:"max_keyword_hits"`
	Boost          float64 `yaml:"boost"`
}

// QueryLengthScalingConfig controls how boost magnitudes scale down as
// queries grow longer.
type QueryLengthScalingConfig struct {
	ShortTerms       int     `yaml:"short_terms"`
	MediumTerms      int     `yaml:"medium_terms"`
	MediumMultiplier float64 `yaml:"medium_multiplier"`
	LongMultiplier   float64 `yaml:"long_multiplier"`
}

// RecencyBoostTier is one (max_age_days, boost) entry in the recency
// boost's additive tier table.
type RecencyBoostTier struct {
	MaxAgeDays int     `yaml:"max_age_days"`
	Boost      float64 `yaml:"boost"`
}

// RecencyBoostConfig controls the reranker's publish-date recency signal.
type RecencyBoostConfig struct {
	Enabled bool               `yaml:"enabled"`
	Tiers   []RecencyBoostTier `yaml:"tiers,omitempty"`
}

// RerankingConfig holds the reranker's tunables in YAML form, so operators
// can disable any signal, and adjust the knobs ToSignalConfig carries,
// without a rebuild. Each signal carries its own enabled flag per spec
// section 6.
type RerankingConfig struct {
	EnableTitleBoost         bool                         `yaml:"enable_title_boost"`
	TitleBoostMax            float64                      `yaml:"title_boost_max"`
	EnableKeywordBoost       bool                         `yaml:"enable_keyword_boost"`
	KeywordBoostMax          float64                      `yaml:"keyword_boost_max"`
	KeywordBoostScale        float64                      `yaml:"keyword_boost_scale"`
	KeywordDensityScale      float64                      `yaml:"keyword_density_scale"`
	KeywordRerankTopN        int                          `yaml:"keyword_rerank_top_n"`
	KeywordMaxQueryTerms     int                          `yaml:"keyword_max_query_terms"`
	KeywordLengthNormalization string                     `yaml:"keyword_length_normalization"` // "linear" | "log"
	KeywordLogBaseOffset     float64                      `yaml:"keyword_log_base_offset"`
	PhrasePresenceBoost      PhrasePresenceBoostConfig    `yaml:"phrase_presence_boost"`
	SemanticDiscoveryBoost   SemanticDiscoveryBoostConfig `yaml:"semantic_discovery_boost"`
	QueryLengthScaling       QueryLengthScalingConfig     `yaml:"query_length_scaling"`
	RecencyBoost             RecencyBoostConfig           `yaml:"recency_boost"`
}

// ToSignalConfig converts the reranking knobs, plus the distribution-
// adaptive threshold knobs in hybrid, into the rerank.SignalConfig the
// Search Engine's reranker actually reads. This is the only place the
// YAML tunables reach the reranker. QueryLengthScaling,
// SemanticDiscoveryBoost.MaxKeywordHits and RecencyBoost.Tiers are not
// carried (rerank.SignalConfig has no fields for them): the reranker always
// uses query-length multipliers of 1.0/0.5/0.25, a keyword-hit limit of 1,
// and recency tiers of 0.07/0.05/0.03/0.02/0.01.
func (r RerankingConfig) ToSignalConfig(hybrid HybridFilterConfig) rerank.SignalConfig {
	return rerank.SignalConfig{
		EnableThreshold:       hybrid.DistributionAdaptive,
		TightClusterThreshold: hybrid.TightClusterStdThreshold,
		WideSpreadThreshold:   hybrid.WideSpreadStdThreshold,
		TightMultiplier:       hybrid.TightClusterMultiplier,
		BaseMultiplier:        hybrid.StdMultiplier,
		WideMultiplier:        hybrid.WideSpreadMultiplier,
		MinAbsoluteThreshold:  hybrid.MinAbsoluteThreshold,

		EnableTitleBoost: r.EnableTitleBoost,
		TitleBoostMax:    r.TitleBoostMax,

		EnablePhraseBoost:      r.PhrasePresenceBoost.Enabled,
		PhraseBoostTitleMax:    r.PhrasePresenceBoost.InTitle,
		PhraseBoostContentMax:  r.PhrasePresenceBoost.InContent,
		PhraseBoostAllTitleMax: r.PhrasePresenceBoost.AllTermsInTitle,

		EnableKeywordBoost:     r.EnableKeywordBoost,
		KeywordBoostMax:        r.KeywordRerankTopN,
		KeywordBoostMaxTerms:   r.KeywordMaxQueryTerms,
		KeywordBoostScale:      r.KeywordBoostScale,
		KeywordBoostClampMax:   r.KeywordBoostMax,
		KeywordDensityScale:    r.KeywordDensityScale,
		KeywordLogOffset:       r.KeywordLogBaseOffset,
		KeywordLinearNormalize: r.KeywordLengthNormalization == "linear",

		EnableSemanticDiscovery: r.SemanticDiscoveryBoost.Enabled,
		SemanticDiscoveryMin:    r.SemanticDiscoveryBoost.MinSemanticScore,
		SemanticDiscoveryBoost:  r.SemanticDiscoveryBoost.Boost,

		EnableRecencyBoost: r.RecencyBoost.Enabled,
	}
}

// HybridFilterConfig controls the reranker's distribution-adaptive
// semantic-score threshold (spec section 4.9, step 2).
type HybridFilterConfig struct {
	MinAbsoluteThreshold   float64 `yaml:"min_absolute_threshold"`
	StdMultiplier          float64 `yaml:"std_multiplier"`
	DistributionAdaptive   bool    `yaml:"distribution_adaptive"`
	TightClusterStdThreshold float64 `yaml:"tight_cluster_std_threshold"`
	TightClusterMultiplier float64 `yaml:"tight_cluster_multiplier"`
	WideSpreadStdThreshold float64 `yaml:"wide_spread_std_threshold"`
	WideSpreadMultiplier   float64 `yaml:"wide_spread_multiplier"`
}

// SemanticFilterConfig wraps the hybrid threshold settings.
type SemanticFilterConfig struct {
	Hybrid HybridFilterConfig `yaml:"hybrid"`
}

// StoreConfig names the Article Store backend connection.
type StoreConfig struct {
	DSN string `yaml:"dsn"`
}

// VectorIndexConfig selects and configures the Vector Index backend.
type VectorIndexConfig struct {
	Backend    string `yaml:"backend"` // "memory" | "qdrant"
	Qdrant     QdrantConfig `yaml:"qdrant,omitempty"`
	SnapshotPath string `yaml:"snapshot_path,omitempty"` // memory backend Save/Load target
}

// QdrantConfig configures the optional Qdrant-backed vector index.
type QdrantConfig struct {
	DSN        string `yaml:"dsn"`
	Collection string `yaml:"collection"`
}

// LoggingConfig controls the ambient zerolog logger.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogPath string `yaml:"log_path,omitempty"`
}

// Config is the single top-level configuration record.
type Config struct {
	Chunking       ChunkingConfig       `yaml:"chunking"`
	Embedding      EmbeddingConfig      `yaml:"embedding"`
	Retrieval      RetrievalConfig      `yaml:"retrieval"`
	Reranking      RerankingConfig      `yaml:"reranking"`
	SemanticFilter SemanticFilterConfig `yaml:"semantic_filter"`
	Store          StoreConfig          `yaml:"store"`
	VectorIndex    VectorIndexConfig    `yaml:"vector_index"`
	Logging        LoggingConfig        `yaml:"logging"`
}

// ToSearchConfig converts the loaded record into the search.Config the
// Search Engine is constructed with, so retrieval_k and every reranking
// and semantic-filter knob that ToSignalConfig carries is reachable at
// runtime.
func (c Config) ToSearchConfig() search.Config {
	return search.Config{
		RetrievalK: c.Retrieval.RetrievalK,
		Rerank:     c.Reranking.ToSignalConfig(c.SemanticFilter.Hybrid),
	}
}

// Load reads the configuration from a YAML file and unmarshals it onto a
// fully-populated set of defaults, so that any field the file omits keeps
// its default value. Unlike a post-unmarshal "if zero, default it" pass,
// this lets a signal's enabled flag be explicitly set to false in the
// file — the whole point of carrying one per spec section 6 — without an
// omitted field being indistinguishable from an explicit false.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", filename, err)
	}

	var raw Config
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", filename, err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", filename, err)
	}
	cfg.logFallbacks(raw)
	return &cfg, nil
}

// defaultConfig returns the tuned defaults described in spec section 6,
// matching rerank.DefaultSignalConfig() for every reranking/semantic-
// filter knob.
func defaultConfig() Config {
	return Config{
		Chunking: ChunkingConfig{
			ThresholdWords: 500,
			ChunkSizeWords: 300,
			OverlapWords:   50,
		},
		Embedding: EmbeddingConfig{
			ModelIdentifier: "bge-base-en-v1.5",
			Dimension:       768,
			Path:            "/embeddings",
			APIHeader:       "Authorization",
		},
		Retrieval: RetrievalConfig{
			RetrievalK: 400,
		},
		Reranking: RerankingConfig{
			EnableTitleBoost:           true,
			TitleBoostMax:              0.08,
			EnableKeywordBoost:         true,
			KeywordBoostMax:            0.06,
			KeywordBoostScale:          1.0,
			KeywordDensityScale:        1.0,
			KeywordRerankTopN:          150,
			KeywordMaxQueryTerms:       5,
			KeywordLengthNormalization: "log",
			KeywordLogBaseOffset:       2.0,
			PhrasePresenceBoost: PhrasePresenceBoostConfig{
				Enabled:         true,
				InTitle:         0.08,
				InContent:       0.06,
				AllTermsInTitle: 0.04,
			},
			SemanticDiscoveryBoost: SemanticDiscoveryBoostConfig{
				Enabled:          true,
				MinSemanticScore: 0.70,
				Boost:            0.025,
			},
			RecencyBoost: RecencyBoostConfig{Enabled: true},
		},
		SemanticFilter: SemanticFilterConfig{
			Hybrid: HybridFilterConfig{
				DistributionAdaptive:    true,
				TightClusterStdThreshold: 0.05,
				WideSpreadStdThreshold:  0.12,
				TightClusterMultiplier:  1.0,
				StdMultiplier:           2.0,
				WideSpreadMultiplier:    2.5,
			},
		},
		VectorIndex: VectorIndexConfig{Backend: "memory"},
		Logging:     LoggingConfig{Level: "info"},
	}
}

// logFallbacks logs the handful of defaults worth calling out, comparing
// against raw (a zero-defaulted unmarshal of the same file) to tell an
// omitted field from one the file genuinely set to the zero value.
func (c *Config) logFallbacks(raw Config) {
	log := obs.Logger()
	if raw.Chunking.ThresholdWords == 0 {
		log.Info().Msg("config: no chunking.threshold_words specified, using default (500)")
	}
	if raw.Embedding.ModelIdentifier == "" {
		log.Info().Msg("config: no embedding.model_identifier specified, using default (bge-base-en-v1.5)")
	}
	if raw.VectorIndex.Backend == "" {
		log.Info().Msg("config: no vector_index.backend specified, using default (memory)")
	}
}
