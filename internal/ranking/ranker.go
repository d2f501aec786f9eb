// Package ranking implements the multi-signal candidate ranker (H4R).
// Seven weighted signals are computed per candidate and combined into
// a final score; the weights must sum to 1.0 within ±0.01 or the
// ranker refuses to construct.
package ranking

import (
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"contextkit/internal/config"
	"contextkit/internal/evidence"
	"contextkit/internal/logging"
)

// WeightTolerance is how far the weight sum may drift from 1.0.
const WeightTolerance = 0.01

// Reason records whether a candidate survived the threshold.
type Reason string

const (
	ReasonKept    Reason = "kept"
	ReasonDropped Reason = "dropped"
)

// SignalScores holds the seven per-candidate signals, each in [0,1].
// Computed at rank time; never persisted.
type SignalScores struct {
	Recency            float64 `json:"recency"`
	Frequency          float64 `json:"frequency"`
	Importance         float64 `json:"importance"`
	Causality          float64 `json:"causality"`
	NoveltyInverse     float64 `json:"novelty_inverse"`
	Trust              float64 `json:"trust"`
	SensitivityInverse float64 `json:"sensitivity_inverse"`
}

// RankedResult pairs a candidate with its signal breakdown. Dropped
// items keep the full breakdown for audit.
type RankedResult struct {
	Candidate   evidence.Candidate `json:"candidate"`
	Signals     SignalScores       `json:"signals"`
	Score       float64            `json:"score"`
	Reason      Reason             `json:"reason"`
	Threshold   float64            `json:"threshold"`
	Explanation string             `json:"explanation"`
}

// CausalitySource supplies a normalized graph distance in [0,1] for a
// candidate (0 = causally adjacent to the query focus, 1 = unrelated).
// No real graph backend is wired yet; NeutralCausality stands in and
// scores every candidate at the neutral 0.5.
type CausalitySource interface {
	Distance(c evidence.Candidate) (float64, bool)
}

// NeutralCausality is the documented default causality stub.
type NeutralCausality struct{}

// Distance reports no causal information for any candidate.
func (NeutralCausality) Distance(evidence.Candidate) (float64, bool) { return 0, false }

// Ranker scores and orders candidates.
type Ranker struct {
	weights   config.WeightsConfig
	minScore  float64
	lambda    float64
	maxAccess int
	clock     evidence.Clock
	causality CausalitySource
	log       *zap.Logger
}

// NewRanker validates the weight set and builds a ranker. Construction
// fails when the weights do not sum to 1.0 within tolerance, so a bad
// weight set is rejected at startup rather than per request.
func NewRanker(cfg config.RankingConfig, clock evidence.Clock, causality CausalitySource) (*Ranker, error) {
	sum := cfg.Weights.Recency + cfg.Weights.Frequency + cfg.Weights.Importance +
		cfg.Weights.Causality + cfg.Weights.NoveltyInverse + cfg.Weights.Trust +
		cfg.Weights.SensitivityInverse
	if math.Abs(sum-1.0) > WeightTolerance {
		return nil, fmt.Errorf("ranking weights must sum to 1.0±%.2f, got %.4f", WeightTolerance, sum)
	}
	if cfg.MaxExpectedAccess <= 0 {
		return nil, fmt.Errorf("max_expected_access must be positive, got %d", cfg.MaxExpectedAccess)
	}
	if clock == nil {
		clock = evidence.SystemClock
	}
	if causality == nil {
		causality = NeutralCausality{}
	}
	return &Ranker{
		weights:   cfg.Weights,
		minScore:  cfg.MinScore,
		lambda:    cfg.RecencyLambda,
		maxAccess: cfg.MaxExpectedAccess,
		clock:     clock,
		causality: causality,
		log:       logging.Get(logging.CategoryRanking),
	}, nil
}

// MinScore returns the kept/dropped threshold.
func (r *Ranker) MinScore() float64 { return r.minScore }

// RankAll scores every candidate and returns the full list sorted by
// score, non-increasing. Ties break on candidate ID so identical
// inputs always produce identical orderings.
func (r *Ranker) RankAll(candidates []evidence.Candidate) []RankedResult {
	timer := logging.StartTimer(logging.CategoryRanking, "RankAll")
	defer timer.Stop()

	now := r.clock.Now()
	results := make([]RankedResult, 0, len(candidates))
	for _, c := range candidates {
		signals := r.computeSignals(c, now)
		score := r.combine(signals)
		reason := ReasonKept
		if score < r.minScore {
			reason = ReasonDropped
		}
		results = append(results, RankedResult{
			Candidate:   c,
			Signals:     signals,
			Score:       score,
			Reason:      reason,
			Threshold:   r.minScore,
			Explanation: explain(signals),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Candidate.ID < results[j].Candidate.ID
	})

	if len(results) > 0 {
		kept := 0
		for _, res := range results {
			if res.Reason == ReasonKept {
				kept++
			}
		}
		r.log.Debug("ranked candidates",
			zap.Int("total", len(results)),
			zap.Int("kept", kept),
			zap.Float64("top_score", results[0].Score))
	}
	return results
}

// RankAndFilter returns only the candidates at or above the threshold,
// sorted by score, non-increasing.
func (r *Ranker) RankAndFilter(candidates []evidence.Candidate) []RankedResult {
	all := r.RankAll(candidates)
	kept := make([]RankedResult, 0, len(all))
	for _, res := range all {
		if res.Reason == ReasonKept {
			kept = append(kept, res)
		}
	}
	return kept
}

func (r *Ranker) computeSignals(c evidence.Candidate, now time.Time) SignalScores {
	ageHours := now.Sub(c.Meta.CreatedAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}

	recency := math.Exp(-r.lambda * ageHours)
	frequency := clamp01(float64(c.Meta.AccessCount) / float64(r.maxAccess))

	causality := 0.5
	if dist, ok := r.causality.Distance(c); ok {
		causality = clamp01(1 - dist)
	}

	// Fresh-and-rare items score high; old-but-rarely-seen items sit
	// lower because staleness dominates rarity.
	rarity := 1 - frequency
	novelty := clamp01(0.6*recency + 0.4*rarity)

	return SignalScores{
		Recency:            clamp01(recency),
		Frequency:          frequency,
		Importance:         clamp01(c.Meta.Importance),
		Causality:          causality,
		NoveltyInverse:     novelty,
		Trust:              clamp01(c.Meta.Trust),
		SensitivityInverse: clamp01(1 - c.Meta.Sensitivity.Normalized()),
	}
}

func (r *Ranker) combine(s SignalScores) float64 {
	w := r.weights
	score := w.Recency*s.Recency +
		w.Frequency*s.Frequency +
		w.Importance*s.Importance +
		w.Causality*s.Causality +
		w.NoveltyInverse*s.NoveltyInverse +
		w.Trust*s.Trust +
		w.SensitivityInverse*s.SensitivityInverse
	return clamp01(score)
}

// explain names the top three signals by value.
func explain(s SignalScores) string {
	type named struct {
		name  string
		value float64
	}
	signals := []named{
		{"recency", s.Recency},
		{"frequency", s.Frequency},
		{"importance", s.Importance},
		{"causality", s.Causality},
		{"novelty_inverse", s.NoveltyInverse},
		{"trust", s.Trust},
		{"sensitivity_inverse", s.SensitivityInverse},
	}
	sort.SliceStable(signals, func(i, j int) bool { return signals[i].value > signals[j].value })
	return fmt.Sprintf("top signals: %s=%.2f, %s=%.2f, %s=%.2f",
		signals[0].name, signals[0].value,
		signals[1].name, signals[1].value,
		signals[2].name, signals[2].value)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
