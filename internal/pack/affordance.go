package pack

import (
	"fmt"
	"sort"
	"strings"

	"contextkit/internal/slicing"
)

// maxAffordances caps the suggestion list.
const maxAffordances = 5

// Affordance is one suggested next action inferred from the evidence.
type Affordance struct {
	Action     string            `json:"action"`
	Confidence float64           `json:"confidence"`
	Reason     string            `json:"reason"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

var (
	escalationKeywords = []string{"production", "critical", "security", "outage"}
	failureKeywords    = []string{"fail", "failed", "failure", "error", "exception", "crash"}
	selectorKeywords   = []string{"selector", "locator", "element not found", "xpath", "css selector"}
	flakyKeywords      = []string{"flaky", "intermittent", "sometimes passes", "timing-dependent"}
)

// AffordanceGenerator runs independent pattern matchers over slice
// content. Matchers never suppress one another; all hits are
// collected, sorted by confidence, and capped.
type AffordanceGenerator struct{}

// Generate inspects the slice and proposes actions.
func (g *AffordanceGenerator) Generate(items []slicing.SlicedItem) []Affordance {
	corpus := make([]string, len(items))
	for i, item := range items {
		corpus[i] = strings.ToLower(item.Content)
	}

	var out []Affordance

	if hits := countKeywordHits(corpus, escalationKeywords); hits > 0 {
		out = append(out, Affordance{
			Action:     "escalate_to_human",
			Confidence: 0.95,
			Reason:     fmt.Sprintf("escalation language found in %d item(s)", hits),
		})
	}

	if hits := countKeywordHits(corpus, failureKeywords); hits >= 2 {
		conf := 0.5 + 0.1*float64(hits)
		if conf > 0.9 {
			conf = 0.9
		}
		out = append(out, Affordance{
			Action:     "retry_with_healing",
			Confidence: conf,
			Reason:     fmt.Sprintf("%d failure mentions across the evidence", hits),
		})
	}

	if hits := countKeywordHits(corpus, selectorKeywords); hits > 0 {
		out = append(out, Affordance{
			Action:     "suggest_fix",
			Confidence: 0.85,
			Reason:     "selector or locator trouble in the evidence",
			Parameters: map[string]string{"strategy": "data-testid"},
		})
	}

	if hits := countKeywordHits(corpus, flakyKeywords); hits > 0 {
		out = append(out, Affordance{
			Action:     "rerun_tests",
			Confidence: 0.75,
			Reason:     "flaky or intermittent behavior reported",
		})
	}

	if len(items) > 0 && len(items) < 3 && averageScore(items) < 0.5 {
		out = append(out, Affordance{
			Action:     "request_more_context",
			Confidence: 0.6,
			Reason:     "few results with low average relevance",
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	if len(out) > maxAffordances {
		out = out[:maxAffordances]
	}
	return out
}

// countKeywordHits counts items containing at least one keyword.
func countKeywordHits(corpus []string, keywords []string) int {
	hits := 0
	for _, text := range corpus {
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				hits++
				break
			}
		}
	}
	return hits
}

func averageScore(items []slicing.SlicedItem) float64 {
	if len(items) == 0 {
		return 0
	}
	sum := 0.0
	for _, item := range items {
		sum += item.Result.Score
	}
	return sum / float64(len(items))
}
