package ranking

import (
	"fmt"
	"testing"
	"time"

	"contextkit/internal/config"
	"contextkit/internal/evidence"
)

var frozen = time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

func testRankingConfig() config.RankingConfig {
	cfg := config.Default().Ranking
	return cfg
}

func newTestRanker(t *testing.T) *Ranker {
	t.Helper()
	r, err := NewRanker(testRankingConfig(), evidence.FixedClock{T: frozen}, nil)
	if err != nil {
		t.Fatalf("NewRanker failed: %v", err)
	}
	return r
}

func makeCandidate(id string, ageHours float64, access int, importance, trust float64, sens evidence.Sensitivity) evidence.Candidate {
	return evidence.Candidate{
		ID:      id,
		Content: "content for " + id,
		Source:  "fulltext",
		Meta: evidence.Metadata{
			CreatedAt:   frozen.Add(-time.Duration(ageHours * float64(time.Hour))),
			AccessCount: access,
			Importance:  importance,
			Trust:       trust,
			Sensitivity: sens,
			Source:      "fulltext",
		},
	}
}

func TestNewRanker_WeightValidation(t *testing.T) {
	clock := evidence.FixedClock{T: frozen}

	// Within tolerance constructs.
	cfg := testRankingConfig()
	cfg.Weights.Recency += 0.009
	if _, err := NewRanker(cfg, clock, nil); err != nil {
		t.Errorf("weights within tolerance rejected: %v", err)
	}

	// Outside tolerance fails fast.
	cfg = testRankingConfig()
	cfg.Weights.Trust += 0.05
	if _, err := NewRanker(cfg, clock, nil); err == nil {
		t.Error("weights outside tolerance accepted")
	}

	cfg = testRankingConfig()
	cfg.Weights = config.WeightsConfig{}
	if _, err := NewRanker(cfg, clock, nil); err == nil {
		t.Error("zero weights accepted")
	}
}

func TestRankAll_SortedNonIncreasing(t *testing.T) {
	r := newTestRanker(t)

	var candidates []evidence.Candidate
	for i := 0; i < 20; i++ {
		candidates = append(candidates, makeCandidate(
			fmt.Sprintf("c-%02d", i),
			float64(i*7), i*3, float64(i%10)/10, 0.5+float64(i%5)/10,
			evidence.Sensitivity(i%4),
		))
	}

	results := r.RankAll(candidates)
	if len(results) != len(candidates) {
		t.Fatalf("RankAll returned %d results for %d candidates", len(results), len(candidates))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Fatalf("scores not non-increasing at %d: %v > %v", i, results[i].Score, results[i-1].Score)
		}
	}
	for _, res := range results {
		if res.Reason == ReasonKept && res.Score < r.MinScore() {
			t.Errorf("%s kept below threshold: %v", res.Candidate.ID, res.Score)
		}
		if res.Reason == ReasonDropped && res.Score >= r.MinScore() {
			t.Errorf("%s dropped above threshold: %v", res.Candidate.ID, res.Score)
		}
		if res.Explanation == "" {
			t.Errorf("%s has empty explanation", res.Candidate.ID)
		}
	}
}

func TestRankAndFilter_ThirtySeeds(t *testing.T) {
	r := newTestRanker(t)

	var candidates []evidence.Candidate
	for i := 0; i < 30; i++ {
		candidates = append(candidates, makeCandidate(
			fmt.Sprintf("seed-%02d", i),
			float64(i*24), i, float64(i%4)/4, float64(i%3)/3,
			evidence.Sensitivity(i%4),
		))
	}

	kept := r.RankAndFilter(candidates)
	if len(kept) > 30 {
		t.Fatalf("filter returned more than input: %d", len(kept))
	}
	for i, res := range kept {
		if res.Reason != ReasonKept {
			t.Errorf("filtered list contains dropped item %s", res.Candidate.ID)
		}
		if res.Score < 0.3 {
			t.Errorf("kept item %s below minScore: %v", res.Candidate.ID, res.Score)
		}
		if res.Explanation == "" {
			t.Errorf("empty explanation at %d", i)
		}
		if i > 0 && kept[i].Score > kept[i-1].Score {
			t.Error("kept list not sorted")
		}
	}
}

func TestSignals_RecencyDecay(t *testing.T) {
	r := newTestRanker(t)

	fresh := makeCandidate("fresh", 0, 5, 0.5, 0.5, evidence.SensitivityInternal)
	stale := makeCandidate("stale", 24*30, 5, 0.5, 0.5, evidence.SensitivityInternal)

	results := r.RankAll([]evidence.Candidate{stale, fresh})
	byID := map[string]RankedResult{}
	for _, res := range results {
		byID[res.Candidate.ID] = res
	}

	if byID["fresh"].Signals.Recency <= byID["stale"].Signals.Recency {
		t.Error("fresh candidate should have higher recency signal")
	}
	if byID["fresh"].Signals.Recency < 0.99 {
		t.Errorf("zero-age recency should be ~1.0, got %v", byID["fresh"].Signals.Recency)
	}
}

func TestSignals_CausalityNeutralDefault(t *testing.T) {
	r := newTestRanker(t)
	res := r.RankAll([]evidence.Candidate{makeCandidate("c", 1, 1, 0.5, 0.5, evidence.SensitivityPublic)})
	if res[0].Signals.Causality != 0.5 {
		t.Errorf("unwired causality must be neutral 0.5, got %v", res[0].Signals.Causality)
	}
}

type fixedCausality struct{ dist float64 }

func (f fixedCausality) Distance(evidence.Candidate) (float64, bool) { return f.dist, true }

func TestSignals_CausalitySourcePluggable(t *testing.T) {
	r, err := NewRanker(testRankingConfig(), evidence.FixedClock{T: frozen}, fixedCausality{dist: 0.2})
	if err != nil {
		t.Fatal(err)
	}
	res := r.RankAll([]evidence.Candidate{makeCandidate("c", 1, 1, 0.5, 0.5, evidence.SensitivityPublic)})
	if got := res[0].Signals.Causality; got < 0.79 || got > 0.81 {
		t.Errorf("causality = %v, want 0.8 for distance 0.2", got)
	}
}

func TestSignals_SensitivityInverse(t *testing.T) {
	r := newTestRanker(t)
	pub := makeCandidate("pub", 1, 1, 0.5, 0.5, evidence.SensitivityPublic)
	restricted := makeCandidate("sec", 1, 1, 0.5, 0.5, evidence.SensitivityRestricted)

	results := r.RankAll([]evidence.Candidate{pub, restricted})
	byID := map[string]RankedResult{}
	for _, res := range results {
		byID[res.Candidate.ID] = res
	}
	if byID["pub"].Signals.SensitivityInverse != 1 {
		t.Error("public sensitivityInverse should be 1")
	}
	if byID["sec"].Signals.SensitivityInverse != 0 {
		t.Error("restricted sensitivityInverse should be 0")
	}
}

func TestRankAll_DeterministicTieBreak(t *testing.T) {
	r := newTestRanker(t)
	a := makeCandidate("aaa", 1, 1, 0.5, 0.5, evidence.SensitivityInternal)
	b := makeCandidate("bbb", 1, 1, 0.5, 0.5, evidence.SensitivityInternal)

	first := r.RankAll([]evidence.Candidate{b, a})
	second := r.RankAll([]evidence.Candidate{a, b})
	for i := range first {
		if first[i].Candidate.ID != second[i].Candidate.ID {
			t.Fatal("equal-score ordering depends on input order")
		}
	}
	if first[0].Candidate.ID != "aaa" {
		t.Error("ties should break on candidate ID")
	}
}
