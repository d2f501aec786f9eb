// Package decision implements the quality-control loop that judges a
// specialist's answer: score it, verify it, classify what went wrong,
// and decide whether to accept, retry, or escalate.
package decision

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// qscoreWeightTolerance bounds how far signal weights may drift from
// summing to 1.0 before construction fails.
const qscoreWeightTolerance = 0.01

// SpecialistResult is the answer under judgment.
type SpecialistResult struct {
	SpecialistID  string   `json:"specialist_id"`
	Summary       string   `json:"summary"`
	Payload       string   `json:"payload"`
	Confidence    float64  `json:"confidence"`
	CitedEvidence []string `json:"cited_evidence,omitempty"`
	ActionTaken   string   `json:"action_taken,omitempty"`
}

// ExecutionMetadata carries the context the scorer needs beyond the
// result itself. PreviousSummary is empty on a first attempt.
type ExecutionMetadata struct {
	Task               string        `json:"task"`
	Latency            time.Duration `json:"latency"`
	LatencyBudget      time.Duration `json:"latency_budget"`
	RetryDepth         int           `json:"retry_depth"`
	ProvidedEvidence   []string      `json:"provided_evidence,omitempty"`
	OfferedAffordances []string      `json:"offered_affordances,omitempty"`
	PolicyViolations   int           `json:"policy_violations"`
	PreviousSummary    string        `json:"previous_summary,omitempty"`
}

// QSignals are the eight quality signals, each in [0,1].
type QSignals struct {
	Confidence          float64 `json:"confidence"`
	PolicyCompliance    float64 `json:"policy_compliance"`
	SchemaValidity      float64 `json:"schema_validity"`
	EvidenceCoverage    float64 `json:"evidence_coverage"`
	AffordanceAlignment float64 `json:"affordance_alignment"`
	Latency             float64 `json:"latency"`
	RetryPenalty        float64 `json:"retry_penalty"`
	Consistency         float64 `json:"consistency"`
}

// QWeights weight the signals into the raw score. Must sum to 1.0
// within tolerance.
type QWeights struct {
	Confidence          float64 `yaml:"confidence"`
	PolicyCompliance    float64 `yaml:"policy_compliance"`
	SchemaValidity      float64 `yaml:"schema_validity"`
	EvidenceCoverage    float64 `yaml:"evidence_coverage"`
	AffordanceAlignment float64 `yaml:"affordance_alignment"`
	Latency             float64 `yaml:"latency"`
	RetryPenalty        float64 `yaml:"retry_penalty"`
	Consistency         float64 `yaml:"consistency"`
}

// DefaultQWeights is the shipped weighting.
func DefaultQWeights() QWeights {
	return QWeights{
		Confidence:          0.20,
		PolicyCompliance:    0.15,
		SchemaValidity:      0.15,
		EvidenceCoverage:    0.15,
		AffordanceAlignment: 0.10,
		Latency:             0.10,
		RetryPenalty:        0.10,
		Consistency:         0.05,
	}
}

func (w QWeights) sum() float64 {
	return w.Confidence + w.PolicyCompliance + w.SchemaValidity +
		w.EvidenceCoverage + w.AffordanceAlignment + w.Latency +
		w.RetryPenalty + w.Consistency
}

// QScore is the scored judgment of one result.
type QScore struct {
	Raw         float64  `json:"score"`
	Calibrated  float64  `json:"calibrated"`
	Signals     QSignals `json:"signals"`
	Explanation string   `json:"explanation"`
}

// QScoreCalculator computes a weighted quality score. Construction
// fails fast on a bad weight set so a misconfigured deployment never
// scores a single result.
type QScoreCalculator struct {
	weights QWeights
}

// NewQScoreCalculator validates weights at construction time.
func NewQScoreCalculator(weights QWeights) (*QScoreCalculator, error) {
	if math.Abs(weights.sum()-1.0) > qscoreWeightTolerance {
		return nil, fmt.Errorf("qscore weights must sum to 1.0±%.2f, got %.4f", qscoreWeightTolerance, weights.sum())
	}
	return &QScoreCalculator{weights: weights}, nil
}

// Compute scores one result against its task and execution metadata.
func (c *QScoreCalculator) Compute(result SpecialistResult, meta ExecutionMetadata) QScore {
	signals := QSignals{
		Confidence:          clamp01(result.Confidence),
		PolicyCompliance:    policyCompliance(meta.PolicyViolations),
		SchemaValidity:      schemaValidity(result.Payload),
		EvidenceCoverage:    evidenceCoverage(result.CitedEvidence, meta.ProvidedEvidence),
		AffordanceAlignment: affordanceAlignment(result.ActionTaken, meta.OfferedAffordances),
		Latency:             latencySignal(meta.Latency, meta.LatencyBudget),
		RetryPenalty:        retryPenalty(meta.RetryDepth),
		Consistency:         consistency(result.Summary, meta.PreviousSummary),
	}

	raw := c.weights.Confidence*signals.Confidence +
		c.weights.PolicyCompliance*signals.PolicyCompliance +
		c.weights.SchemaValidity*signals.SchemaValidity +
		c.weights.EvidenceCoverage*signals.EvidenceCoverage +
		c.weights.AffordanceAlignment*signals.AffordanceAlignment +
		c.weights.Latency*signals.Latency +
		c.weights.RetryPenalty*signals.RetryPenalty +
		c.weights.Consistency*signals.Consistency

	return QScore{
		Raw:         raw,
		Calibrated:  calibrate(raw),
		Signals:     signals,
		Explanation: explain(signals),
	}
}

// calibrate squashes the raw weighted sum through a logistic curve
// centered at 0.5, clamped to [0,1]. Monotonic non-decreasing in the
// raw score; steepness chosen so raw 0.7 lands near calibrated 0.7.
func calibrate(raw float64) float64 {
	return clamp01(1.0 / (1.0 + math.Exp(-6.0*(raw-0.5))))
}

func policyCompliance(violations int) float64 {
	if violations <= 0 {
		return 1.0
	}
	return clamp01(1.0 - 0.5*float64(violations))
}

// schemaValidity is a cheap structural check. The schema verifier does
// the real validation; this signal only flags payloads that are not
// even well-formed JSON objects.
func schemaValidity(payload string) float64 {
	if strings.TrimSpace(payload) == "" {
		return 0
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return 0
	}
	if len(doc) == 0 {
		return 0.5
	}
	return 1.0
}

func evidenceCoverage(cited, provided []string) float64 {
	if len(provided) == 0 {
		return 1.0
	}
	providedSet := make(map[string]bool, len(provided))
	for _, id := range provided {
		providedSet[id] = true
	}
	used := 0
	for _, id := range cited {
		if providedSet[id] {
			used++
		}
	}
	return clamp01(float64(used) / float64(len(provided)))
}

func affordanceAlignment(action string, offered []string) float64 {
	if len(offered) == 0 {
		return 0.5
	}
	if action == "" {
		return 0.3
	}
	for i, a := range offered {
		if a == action {
			if i == 0 {
				return 1.0
			}
			return 0.7
		}
	}
	return 0.2
}

func latencySignal(latency, budget time.Duration) float64 {
	if budget <= 0 {
		budget = 30 * time.Second
	}
	if latency <= 0 {
		return 1.0
	}
	return clamp01(1.0 - float64(latency)/float64(budget))
}

func retryPenalty(depth int) float64 {
	if depth <= 0 {
		return 1.0
	}
	return clamp01(1.0 - 0.25*float64(depth))
}

// consistency measures word overlap with the previous attempt's
// summary. Neutral 1.0 when there is no previous attempt to contradict.
func consistency(current, previous string) float64 {
	if previous == "" {
		return 1.0
	}
	currentSet := tokenSet(current)
	previousSet := tokenSet(previous)
	if len(currentSet) == 0 || len(previousSet) == 0 {
		return 0.5
	}
	intersection := 0
	for tok := range currentSet {
		if previousSet[tok] {
			intersection++
		}
	}
	union := len(currentSet) + len(previousSet) - intersection
	return clamp01(float64(intersection) / float64(union))
}

func tokenSet(s string) map[string]bool {
	out := map[string]bool{}
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		out[tok] = true
	}
	return out
}

func explain(s QSignals) string {
	type namedSignal struct {
		name  string
		value float64
	}
	all := []namedSignal{
		{"confidence", s.Confidence},
		{"policy_compliance", s.PolicyCompliance},
		{"schema_validity", s.SchemaValidity},
		{"evidence_coverage", s.EvidenceCoverage},
		{"affordance_alignment", s.AffordanceAlignment},
		{"latency", s.Latency},
		{"retry_penalty", s.RetryPenalty},
		{"consistency", s.Consistency},
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].value < all[j].value })
	weakest := all
	if len(weakest) > 3 {
		weakest = weakest[:3]
	}
	parts := make([]string, len(weakest))
	for i, sig := range weakest {
		parts[i] = fmt.Sprintf("%s=%.2f", sig.name, sig.value)
	}
	return "weakest signals: " + strings.Join(parts, ", ")
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
