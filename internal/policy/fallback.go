package policy

import (
	"context"

	"go.uber.org/zap"

	"contextkit/internal/evidence"
	"contextkit/internal/logging"
)

// FallbackEvaluator tries the primary (remote) evaluator and, when it
// fails, either degrades to the local rule table or denies outright,
// depending on configuration. A denial without fallback carries
// ErrDegraded so callers can surface the degraded-policy condition in
// warnings and the decision loop can classify it.
type FallbackEvaluator struct {
	primary  Evaluator
	fallback Evaluator
	enabled  bool
}

// NewFallbackEvaluator wires primary with an optional local fallback.
func NewFallbackEvaluator(primary Evaluator, fallback Evaluator, enabled bool) *FallbackEvaluator {
	return &FallbackEvaluator{primary: primary, fallback: fallback, enabled: enabled}
}

func (e *FallbackEvaluator) Evaluate(ctx context.Context, specialist SpecialistMetadata, candidate evidence.Candidate) (Decision, error) {
	decision, err := e.primary.Evaluate(ctx, specialist, candidate)
	if err == nil {
		return decision, nil
	}

	log := logging.Get(logging.CategoryPolicy)
	if e.enabled && e.fallback != nil {
		log.Warn("policy service failed, using local rules", zap.Error(err))
		return e.fallback.Evaluate(ctx, specialist, candidate)
	}

	log.Error("policy service failed, denying", zap.Error(err))
	return Decision{
		Allow:  false,
		Reason: "policy service unavailable",
	}, ErrDegraded
}
