package decision

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"contextkit/internal/logging"
)

// SuiteResult aggregates all verifier verdicts for one result.
type SuiteResult struct {
	Passed        bool             `json:"passed"`
	AvgConfidence float64          `json:"avg_confidence"`
	Results       []VerifierResult `json:"results"`
}

// Failed returns the failing verdicts, in suite order.
func (r SuiteResult) Failed() []VerifierResult {
	var out []VerifierResult
	for _, v := range r.Results {
		if !v.Passed {
			out = append(out, v)
		}
	}
	return out
}

// FailureOf returns the failing verdict of the named verifier, if any.
func (r SuiteResult) FailureOf(name string) (VerifierResult, bool) {
	for _, v := range r.Results {
		if v.Verifier == name && !v.Passed {
			return v, true
		}
	}
	return VerifierResult{}, false
}

// VerificationSuite runs its verifiers concurrently. One verifier
// failing never blocks another; the suite passes only when every
// verifier passes.
type VerificationSuite struct {
	verifiers []Verifier
}

// NewVerificationSuite builds a suite over the given verifiers. An
// empty suite trivially passes.
func NewVerificationSuite(verifiers ...Verifier) *VerificationSuite {
	return &VerificationSuite{verifiers: verifiers}
}

// Run executes every verifier and aggregates. Result order matches
// registration order regardless of completion order.
func (s *VerificationSuite) Run(ctx context.Context, result SpecialistResult, meta ExecutionMetadata) SuiteResult {
	results := make([]VerifierResult, len(s.verifiers))
	var wg sync.WaitGroup
	for i, v := range s.verifiers {
		wg.Add(1)
		go func(i int, v Verifier) {
			defer wg.Done()
			results[i] = v.Verify(ctx, result, meta)
		}(i, v)
	}
	wg.Wait()

	out := SuiteResult{Passed: true, Results: results}
	sum := 0.0
	for _, r := range results {
		sum += r.Confidence
		if !r.Passed {
			out.Passed = false
			logging.Get(logging.CategoryDecision).Debug("verifier failed",
				zap.String("verifier", r.Verifier), zap.String("reason", r.Reason))
		}
	}
	if len(results) > 0 {
		out.AvgConfidence = sum / float64(len(results))
	} else {
		out.AvgConfidence = 1.0
	}
	return out
}
