package decision

import "strings"

// Category is the closed failure taxonomy.
type Category string

const (
	CategorySchemaViolation Category = "SCHEMA_VIOLATION"
	CategoryInconsistent    Category = "INCONSISTENT"
	CategoryMissingEvidence Category = "MISSING_EVIDENCE"
	CategoryPolicyDegraded  Category = "POLICY_DEGRADED"
	CategoryLowConfidence   Category = "LOW_CONFIDENCE"
	CategoryTimeout         Category = "TIMEOUT"
	CategoryFlakyPattern    Category = "FLAKY_PATTERN"
	CategorySelectorIssue   Category = "SELECTOR_ISSUE"
	CategoryUnknown         Category = "UNKNOWN"
)

// Classification names what went wrong and how sure the classifier is.
type Classification struct {
	Category    Category `json:"category"`
	Confidence  float64  `json:"confidence"`
	Explanation string   `json:"explanation"`
	Evidence    []string `json:"evidence,omitempty"`
}

// classifierInput bundles everything the cascade reads.
type classifierInput struct {
	score        QScore
	verification SuiteResult
	result       SpecialistResult
}

// classifierRule is one entry in the ordered cascade.
type classifierRule struct {
	name  string
	match func(in classifierInput) (Classification, bool)
}

// ErrorClassifier evaluates an explicit ordered rule table, first
// match wins. The order is deliberate: hard verification evidence
// outranks score thresholds, which outrank soft content heuristics.
type ErrorClassifier struct {
	rules []classifierRule
}

// NewErrorClassifier builds the standard cascade.
func NewErrorClassifier() *ErrorClassifier {
	return &ErrorClassifier{rules: []classifierRule{
		{name: "schema-verifier", match: func(in classifierInput) (Classification, bool) {
			if f, ok := in.verification.FailureOf(VerifierSchema); ok {
				return Classification{
					Category: CategorySchemaViolation, Confidence: 1.0,
					Explanation: f.Reason, Evidence: f.Evidence,
				}, true
			}
			return Classification{}, false
		}},
		{name: "replay-verifier", match: func(in classifierInput) (Classification, bool) {
			if f, ok := in.verification.FailureOf(VerifierReplay); ok {
				return Classification{
					Category: CategoryInconsistent, Confidence: 0.9,
					Explanation: f.Reason, Evidence: f.Evidence,
				}, true
			}
			return Classification{}, false
		}},
		{name: "smoke-verifier", match: func(in classifierInput) (Classification, bool) {
			f, ok := in.verification.FailureOf(VerifierSmoke)
			if !ok {
				return Classification{}, false
			}
			category := CategoryUnknown
			confidence := 0.5
			if strings.Contains(strings.ToLower(f.Reason), "evidence") {
				category = CategoryMissingEvidence
				confidence = 0.8
			}
			return Classification{
				Category: category, Confidence: confidence,
				Explanation: f.Reason, Evidence: f.Evidence,
			}, true
		}},
		{name: "policy-signal", match: func(in classifierInput) (Classification, bool) {
			if in.score.Signals.PolicyCompliance < 0.5 {
				return Classification{
					Category: CategoryPolicyDegraded, Confidence: 1.0,
					Explanation: "policy compliance signal below 0.5",
				}, true
			}
			return Classification{}, false
		}},
		{name: "confidence-signal", match: func(in classifierInput) (Classification, bool) {
			if in.score.Signals.Confidence < 0.3 {
				return Classification{
					Category: CategoryLowConfidence, Confidence: 0.9,
					Explanation: "result confidence signal below 0.3",
				}, true
			}
			return Classification{}, false
		}},
		{name: "latency-signal", match: func(in classifierInput) (Classification, bool) {
			if in.score.Signals.Latency < 0.2 {
				return Classification{
					Category: CategoryTimeout, Confidence: 0.8,
					Explanation: "latency signal below 0.2",
				}, true
			}
			return Classification{}, false
		}},
		{name: "coverage-signal", match: func(in classifierInput) (Classification, bool) {
			if in.score.Signals.EvidenceCoverage < 0.4 {
				return Classification{
					Category: CategoryMissingEvidence, Confidence: 0.8,
					Explanation: "evidence coverage signal below 0.4",
				}, true
			}
			return Classification{}, false
		}},
		{name: "flaky-content", match: func(in classifierInput) (Classification, bool) {
			if containsAny(in.result.Summary, "flaky", "intermittent") {
				return Classification{
					Category: CategoryFlakyPattern, Confidence: 0.7,
					Explanation: "summary reports flaky or intermittent behavior",
				}, true
			}
			return Classification{}, false
		}},
		{name: "selector-content", match: func(in classifierInput) (Classification, bool) {
			if containsAny(in.result.Summary, "selector", "locator", "not found") {
				return Classification{
					Category: CategorySelectorIssue, Confidence: 0.6,
					Explanation: "summary reports selector or lookup trouble",
				}, true
			}
			return Classification{}, false
		}},
		{name: "low-calibrated", match: func(in classifierInput) (Classification, bool) {
			if in.score.Calibrated < 0.5 {
				return Classification{
					Category: CategoryLowConfidence, Confidence: 0.7,
					Explanation: "calibrated score below 0.5",
				}, true
			}
			return Classification{}, false
		}},
	}}
}

// Classify walks the cascade top to bottom and returns the first
// match, or UNKNOWN at low confidence when nothing matches.
func (c *ErrorClassifier) Classify(score QScore, verification SuiteResult, result SpecialistResult) Classification {
	in := classifierInput{score: score, verification: verification, result: result}
	for _, rule := range c.rules {
		if cls, ok := rule.match(in); ok {
			return cls
		}
	}
	return Classification{
		Category:    CategoryUnknown,
		Confidence:  0.5,
		Explanation: "no classification rule matched",
	}
}

func containsAny(s string, subs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range subs {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}
