package rerank

import (
	"math"
	"testing"
	"time"
)

func TestQueryLengthMultiplier(t *testing.T) {
	cases := []struct {
		n    int
		want float64
	}{
		{1, 1.0}, {3, 1.0}, {4, 0.5}, {5, 0.25}, {8, 0.25},
	}
	for _, c := range cases {
		terms := make([]string, c.n)
		got := QueryLengthMultiplier(QueryContext{SemanticTerms: terms})
		if got != c.want {
			t.Fatalf("n=%d: got %v want %v", c.n, got, c.want)
		}
	}
}

func TestApplyThreshold_DiscardsLowScorers(t *testing.T) {
	// A lone outlier among n scores sits about sqrt(n-1) population standard
	// deviations below the mean, so it takes eight or more candidates before
	// the wide-spread multiplier (2.5) can cut it: here mean ~0.81, sd ~0.25,
	// threshold ~0.18.
	cands := []Candidate{
		{DocID: "a", Score: 0.9},
		{DocID: "b", Score: 0.89},
		{DocID: "d", Score: 0.91},
		{DocID: "e", Score: 0.9},
		{DocID: "f", Score: 0.88},
		{DocID: "g", Score: 0.9},
		{DocID: "h", Score: 0.89},
		{DocID: "i", Score: 0.9},
		{DocID: "c", Score: 0.1},
	}
	cfg := DefaultSignalConfig()
	cfg.EnableTitleBoost = false
	cfg.EnablePhraseBoost = false
	cfg.EnableKeywordBoost = false
	cfg.EnableSemanticDiscovery = false
	cfg.EnableRecencyBoost = false
	out := Apply(cands, cfg, QueryContext{})
	for _, c := range out {
		if c.DocID == "c" {
			t.Fatalf("expected low outlier score to be discarded by threshold")
		}
	}
}

func TestApplyTitleBoost_FullMatchGetsMaxBoost(t *testing.T) {
	cands := []Candidate{{DocID: "a", Title: "Permanent Revolution Explained", Score: 0.5}}
	cfg := DefaultSignalConfig()
	cfg.EnableThreshold = false
	cfg.EnablePhraseBoost = false
	cfg.EnableKeywordBoost = false
	cfg.EnableSemanticDiscovery = false
	cfg.EnableRecencyBoost = false
	qctx := QueryContext{SemanticTerms: []string{"permanent", "revolution"}}
	out := Apply(cands, cfg, qctx)
	if out[0].Score < 0.5+cfg.TitleBoostMax-0.001 {
		t.Fatalf("expected near-max title boost, got score %v", out[0].Score)
	}
}

func TestApplyPhraseBoost_TitleTierWinsOverContent(t *testing.T) {
	cands := []Candidate{{DocID: "a", Title: "On Permanent Revolution", Text: "some permanent revolution discussion", Score: 0.5}}
	cfg := DefaultSignalConfig()
	cfg.EnableThreshold = false
	cfg.EnableTitleBoost = false
	cfg.EnableKeywordBoost = false
	cfg.EnableSemanticDiscovery = false
	cfg.EnableRecencyBoost = false
	qctx := QueryContext{ExactPhrases: []string{"permanent revolution"}}
	out := Apply(cands, cfg, qctx)
	want := 0.5 + cfg.PhraseBoostTitleMax
	if diff := out[0].Score - want; diff > 0.001 || diff < -0.001 {
		t.Fatalf("got score %v want %v", out[0].Score, want)
	}
}

func TestApplyKeywordBoost_LogNormalizationDoesNotExceedClamp(t *testing.T) {
	text := ""
	for i := 0; i < 500; i++ {
		text += "dialectics "
	}
	cands := []Candidate{{DocID: "a", Text: text, Score: 0.5}}
	cfg := DefaultSignalConfig()
	cfg.EnableThreshold = false
	cfg.EnableTitleBoost = false
	cfg.EnablePhraseBoost = false
	cfg.EnableSemanticDiscovery = false
	cfg.EnableRecencyBoost = false
	qctx := QueryContext{SemanticTerms: []string{"dialectics"}}
	out := Apply(cands, cfg, qctx)
	if out[0].Score > 0.5+cfg.KeywordBoostClampMax+0.0001 {
		t.Fatalf("keyword boost exceeded clamp: %v", out[0].Score)
	}
}

func TestApplySemanticDiscoveryBoost_RequiresHighBaseAndLowHits(t *testing.T) {
	cands := []Candidate{{DocID: "a", Score: 0.75, Text: "unrelated words only"}}
	cfg := DefaultSignalConfig()
	cfg.EnableThreshold = false
	cfg.EnableTitleBoost = false
	cfg.EnablePhraseBoost = false
	cfg.EnableRecencyBoost = false
	qctx := QueryContext{SemanticTerms: []string{"dialectics"}}
	out := Apply(cands, cfg, qctx)
	if out[0].Score < 0.75+cfg.SemanticDiscoveryBoost-0.001 {
		t.Fatalf("expected semantic discovery boost applied, got %v", out[0].Score)
	}
}

func TestApplyRecencyBoost_Tiers(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	cands := []Candidate{
		{DocID: "week", Score: 0, HasPublishedDate: true, PublishedDate: now.AddDate(0, 0, -3)},
		{DocID: "year", Score: 0, HasPublishedDate: true, PublishedDate: now.AddDate(0, -6, 0)},
		{DocID: "old", Score: 0, HasPublishedDate: true, PublishedDate: now.AddDate(-10, 0, 0)},
	}
	cfg := DefaultSignalConfig()
	cfg.EnableThreshold = false
	cfg.EnableTitleBoost = false
	cfg.EnablePhraseBoost = false
	cfg.EnableKeywordBoost = false
	cfg.EnableSemanticDiscovery = false
	out := Apply(cands, cfg, QueryContext{Now: now})
	byID := map[string]Candidate{}
	for _, c := range out {
		byID[c.DocID] = c
	}
	if byID["week"].Score != 0.07 {
		t.Fatalf("expected +0.07 for within-week, got %v", byID["week"].Score)
	}
	if byID["year"].Score != 0.02 {
		t.Fatalf("expected +0.02 for within-year, got %v", byID["year"].Score)
	}
	if byID["old"].Score != 0 {
		t.Fatalf("expected no boost beyond 3 years, got %v", byID["old"].Score)
	}
}

func TestApply_SignalsCanBeFullyDisabled(t *testing.T) {
	cands := []Candidate{{DocID: "a", Score: 0.5, Title: "revolution", Text: "revolution revolution"}}
	cfg := SignalConfig{}
	out := Apply(cands, cfg, QueryContext{SemanticTerms: []string{"revolution"}})
	if out[0].Score != 0.5 {
		t.Fatalf("expected score unchanged with all signals disabled, got %v", out[0].Score)
	}
}

func TestApply_IsIdempotent(t *testing.T) {
	cfg := DefaultSignalConfig()
	qctx := QueryContext{SemanticTerms: []string{"revolution", "strike"}, Now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	mk := func() []Candidate {
		return []Candidate{
			{DocID: "a", Score: 0.81, Title: "revolution strike report", Text: "workers staged a revolution strike across the region",
				PublishedDate: qctx.Now.Add(-48 * time.Hour), HasPublishedDate: true},
			{DocID: "b", Score: 0.42, Title: "unrelated notice", Text: "a routine procedural announcement",
				PublishedDate: qctx.Now.Add(-400 * 24 * time.Hour), HasPublishedDate: true},
		}
	}

	once := Apply(mk(), cfg, qctx)

	twice := append([]Candidate(nil), once...)
	twice = Apply(twice, cfg, qctx)

	if len(once) != len(twice) {
		t.Fatalf("expected the same candidate count after a second pass, got %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].DocID != twice[i].DocID {
			t.Fatalf("expected the same candidate order, got %q vs %q at %d", once[i].DocID, twice[i].DocID, i)
		}
		if math.Abs(once[i].Score-twice[i].Score) > 1e-9 {
			t.Fatalf("expected a stable score for %q, got %v then %v", once[i].DocID, once[i].Score, twice[i].Score)
		}
	}
}
