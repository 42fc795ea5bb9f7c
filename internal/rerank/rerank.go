// Package rerank adjusts base semantic scores with additive, clamped
// signals: distribution-adaptive thresholding, title-term overlap, phrase
// presence, keyword frequency, semantic discovery, and recency.
//
// The pipeline is structured as a sequence of pure functions over a
// []Candidate, composed in Apply, mirroring how the teacher's
// internal/rag/retrieve/fusion.go composes FuseRRF -> Diversify and
// package.go's AssembleResults composes graph-expand -> rerank -> prune.
// Each signal is independently testable in isolation, the way
// retrieve/fusion_test.go tests FuseRRF/Diversify separately.
package rerank

import (
	"math"
	"strings"
	"time"
)

// Candidate is the scoring unit the reranker operates on. Callers adapt
// their own retrieval result type into this shape and back.
type Candidate struct {
	DocID             string
	Title             string
	Text              string // body or chunk text used for keyword scanning
	PublishedDate     time.Time
	HasPublishedDate  bool
	Score             float64 // running score, mutated through the pipeline
	BaseSemanticScore float64 // snapshot of the pre-rerank score
	KeywordTermHits   int     // set by the keyword-frequency signal
}

// SignalConfig holds every tunable knob for every signal, each individually
// toggleable so a signal can be rolled back without code changes.
type SignalConfig struct {
	EnableThreshold       bool
	TightClusterThreshold float64 // default 0.05
	WideSpreadThreshold    float64 // default 0.12
	TightMultiplier        float64 // default 1.0
	BaseMultiplier         float64 // default 2.0
	WideMultiplier         float64 // default 2.5
	MinAbsoluteThreshold   float64 // floor regardless of distribution

	EnableTitleBoost bool
	TitleBoostMax    float64 // default 0.08

	EnablePhraseBoost       bool
	PhraseBoostTitleMax     float64 // default 0.08
	PhraseBoostContentMax   float64 // default 0.06
	PhraseBoostAllTitleMax  float64 // default 0.04

	EnableKeywordBoost    bool
	KeywordBoostMax       int     // consider only the top N candidates, default 150
	KeywordBoostMaxTerms  int     // default 5
	KeywordBoostScale     float64 // default tuned empirically
	KeywordBoostClampMax  float64 // default 0.06
	KeywordDensityScale   float64 // default 1.0
	KeywordLogOffset      float64 // default 2.0
	KeywordLinearNormalize bool   // config toggle for A/B testing

	EnableSemanticDiscovery bool
	SemanticDiscoveryMin    float64 // default 0.70
	SemanticDiscoveryBoost  float64 // default 0.025

	EnableRecencyBoost bool
}

// DefaultSignalConfig returns the tuned defaults described in the pipeline
// specification.
func DefaultSignalConfig() SignalConfig {
	return SignalConfig{
		EnableThreshold:        true,
		TightClusterThreshold:  0.05,
		WideSpreadThreshold:    0.12,
		TightMultiplier:        1.0,
		BaseMultiplier:         2.0,
		WideMultiplier:         2.5,
		MinAbsoluteThreshold:   0.0,
		EnableTitleBoost:       true,
		TitleBoostMax:          0.08,
		EnablePhraseBoost:      true,
		PhraseBoostTitleMax:    0.08,
		PhraseBoostContentMax:  0.06,
		PhraseBoostAllTitleMax: 0.04,
		EnableKeywordBoost:     true,
		KeywordBoostMax:        150,
		KeywordBoostMaxTerms:   5,
		KeywordBoostScale:      1.0,
		KeywordBoostClampMax:   0.06,
		KeywordDensityScale:    1.0,
		KeywordLogOffset:       2.0,
		KeywordLinearNormalize: false,
		EnableSemanticDiscovery: true,
		SemanticDiscoveryMin:    0.70,
		SemanticDiscoveryBoost:  0.025,
		EnableRecencyBoost:      true,
	}
}

// QueryContext carries the parsed query terms the signals need.
type QueryContext struct {
	SemanticTerms []string
	ExactPhrases  []string
	Now           time.Time
}

// QueryLengthMultiplier returns the scale applied to every boost magnitude:
// 100% for 1-3 semantic terms, 50% for 4, 25% for 5 or more.
func QueryLengthMultiplier(qctx QueryContext) float64 {
	n := len(qctx.SemanticTerms)
	switch {
	case n <= 3:
		return 1.0
	case n == 4:
		return 0.5
	default:
		return 0.25
	}
}

// Apply runs the full signal pipeline over candidates in the fixed spec
// order, mutating and returning the (possibly shortened, by the threshold
// signal) slice.
func Apply(candidates []Candidate, cfg SignalConfig, qctx QueryContext) []Candidate {
	for i := range candidates {
		// BaseSemanticScore is snapshotted once: a candidate re-entering
		// Apply (e.g. a second pass over an already-reranked list) must
		// resume from its original semantic score, not from the score an
		// earlier pass's signals already boosted it to, or the pipeline
		// would not be idempotent.
		if candidates[i].BaseSemanticScore == 0 {
			candidates[i].BaseSemanticScore = candidates[i].Score
		}
		candidates[i].Score = candidates[i].BaseSemanticScore
	}
	candidates = applyThreshold(candidates, cfg)
	mult := QueryLengthMultiplier(qctx)
	candidates = applyTitleBoost(candidates, cfg, qctx, mult)
	candidates = applyPhraseBoost(candidates, cfg, qctx, mult)
	candidates = applyKeywordBoost(candidates, cfg, qctx, mult)
	candidates = applySemanticDiscoveryBoost(candidates, cfg, mult)
	candidates = applyRecencyBoost(candidates, cfg, qctx, mult)
	return candidates
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64, m float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}

// applyThreshold computes a distribution-adaptive cutoff on base scores and
// discards candidates below it.
func applyThreshold(candidates []Candidate, cfg SignalConfig) []Candidate {
	if !cfg.EnableThreshold || len(candidates) == 0 {
		return candidates
	}
	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		scores[i] = c.BaseSemanticScore
	}
	m := mean(scores)
	sd := stddev(scores, m)

	var mult float64
	switch {
	case sd < cfg.TightClusterThreshold:
		mult = cfg.TightMultiplier
	case sd > cfg.WideSpreadThreshold:
		mult = cfg.WideMultiplier
	default:
		mult = cfg.BaseMultiplier
	}
	threshold := m - mult*sd
	if threshold < cfg.MinAbsoluteThreshold {
		threshold = cfg.MinAbsoluteThreshold
	}

	out := candidates[:0:0]
	for _, c := range candidates {
		if c.BaseSemanticScore >= threshold {
			out = append(out, c)
		}
	}
	return out
}

func clamp(v, max float64) float64 {
	if v > max {
		return max
	}
	if v < 0 {
		return 0
	}
	return v
}

func wholeWordCount(haystack, term string) int {
	if term == "" {
		return 0
	}
	lowerHay := strings.ToLower(haystack)
	lowerTerm := strings.ToLower(term)
	count := 0
	start := 0
	for {
		idx := strings.Index(lowerHay[start:], lowerTerm)
		if idx < 0 {
			break
		}
		abs := start + idx
		before := abs == 0 || !isWordByte(lowerHay[abs-1])
		afterIdx := abs + len(lowerTerm)
		after := afterIdx >= len(lowerHay) || !isWordByte(lowerHay[afterIdx])
		if before && after {
			count++
		}
		start = abs + len(lowerTerm)
		if start >= len(lowerHay) {
			break
		}
	}
	return count
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func applyTitleBoost(candidates []Candidate, cfg SignalConfig, qctx QueryContext, mult float64) []Candidate {
	if !cfg.EnableTitleBoost || len(qctx.SemanticTerms) == 0 {
		return candidates
	}
	for i := range candidates {
		c := &candidates[i]
		hits := 0
		for _, term := range qctx.SemanticTerms {
			if wholeWordCount(c.Title, term) > 0 {
				hits++
			}
		}
		frac := float64(hits) / float64(len(qctx.SemanticTerms))
		boost := clamp(frac*cfg.TitleBoostMax, cfg.TitleBoostMax) * mult
		c.Score += boost
	}
	return candidates
}

func applyPhraseBoost(candidates []Candidate, cfg SignalConfig, qctx QueryContext, mult float64) []Candidate {
	if !cfg.EnablePhraseBoost {
		return candidates
	}
	phrases := append([]string{}, qctx.ExactPhrases...)
	if len(qctx.SemanticTerms) >= 2 {
		phrases = append(phrases, strings.Join(qctx.SemanticTerms, " "))
	}
	if len(phrases) == 0 {
		return candidates
	}
	for i := range candidates {
		c := &candidates[i]
		var boost float64
		for _, p := range phrases {
			inTitle := wholeWordCount(c.Title, p) > 0
			inContent := wholeWordCount(c.Text, p) > 0
			allTermsInTitle := allWordsInTitle(c.Title, p)
			switch {
			case inTitle:
				boost = cfg.PhraseBoostTitleMax
			case inContent:
				if boost < cfg.PhraseBoostContentMax {
					boost = cfg.PhraseBoostContentMax
				}
			case allTermsInTitle:
				if boost < cfg.PhraseBoostAllTitleMax {
					boost = cfg.PhraseBoostAllTitleMax
				}
			}
			if boost == cfg.PhraseBoostTitleMax {
				break // first applicable (highest) tier wins
			}
		}
		c.Score += boost * mult
	}
	return candidates
}

func allWordsInTitle(title, phrase string) bool {
	for _, w := range strings.Fields(phrase) {
		if wholeWordCount(title, w) == 0 {
			return false
		}
	}
	return len(strings.Fields(phrase)) > 0
}

func applyKeywordBoost(candidates []Candidate, cfg SignalConfig, qctx QueryContext, mult float64) []Candidate {
	if !cfg.EnableKeywordBoost || len(qctx.SemanticTerms) == 0 {
		return candidates
	}
	terms := qctx.SemanticTerms
	if len(terms) > cfg.KeywordBoostMaxTerms {
		terms = terms[:cfg.KeywordBoostMaxTerms]
	}
	limit := len(candidates)
	if cfg.KeywordBoostMax > 0 && cfg.KeywordBoostMax < limit {
		limit = cfg.KeywordBoostMax
	}
	for i := 0; i < limit; i++ {
		c := &candidates[i]
		wordCount := len(strings.Fields(c.Text))
		var totalHits int
		for _, t := range terms {
			totalHits += wholeWordCount(c.Text, t)
		}
		c.KeywordTermHits = totalHits

		var normalizer float64
		if cfg.KeywordLinearNormalize {
			normalizer = float64(wordCount)
		} else {
			normalizer = math.Log(float64(wordCount) + cfg.KeywordLogOffset)
		}
		if normalizer <= 0 {
			normalizer = 1
		}
		density := float64(totalHits) / normalizer * cfg.KeywordDensityScale
		inc := cfg.KeywordBoostScale * math.Log(1+density)
		inc = clamp(inc, cfg.KeywordBoostClampMax)
		c.Score += inc * mult
	}
	return candidates
}

func applySemanticDiscoveryBoost(candidates []Candidate, cfg SignalConfig, mult float64) []Candidate {
	if !cfg.EnableSemanticDiscovery {
		return candidates
	}
	for i := range candidates {
		c := &candidates[i]
		if c.BaseSemanticScore >= cfg.SemanticDiscoveryMin && c.KeywordTermHits <= 1 {
			c.Score += cfg.SemanticDiscoveryBoost * mult
		}
	}
	return candidates
}

func applyRecencyBoost(candidates []Candidate, cfg SignalConfig, qctx QueryContext, mult float64) []Candidate {
	if !cfg.EnableRecencyBoost {
		return candidates
	}
	now := qctx.Now
	if now.IsZero() {
		now = time.Now()
	}
	for i := range candidates {
		c := &candidates[i]
		if !c.HasPublishedDate {
			continue
		}
		age := now.Sub(c.PublishedDate)
		switch {
		case age <= 7*24*time.Hour:
			c.Score += 0.07 * mult
		case age <= 30*24*time.Hour:
			c.Score += 0.05 * mult
		case age <= 90*24*time.Hour:
			c.Score += 0.03 * mult
		case age <= 365*24*time.Hour:
			c.Score += 0.02 * mult
		case age <= 3*365*24*time.Hour:
			c.Score += 0.01 * mult
		}
	}
	return candidates
}
