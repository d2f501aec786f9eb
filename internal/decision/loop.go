package decision

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"contextkit/internal/evidence"
	"contextkit/internal/logging"
	"contextkit/internal/metrics"
)

// Outcome is the loop's terminal verdict for one cycle.
type Outcome string

const (
	OutcomeAccept   Outcome = "ACCEPT"
	OutcomeRetry    Outcome = "RETRY"
	OutcomeEscalate Outcome = "ESCALATE"
)

// Input is everything one Decide call needs. The loop itself is
// stateless; retry depth and prior-result context arrive here.
type Input struct {
	TraceID string
	Result  SpecialistResult
	Meta    ExecutionMetadata
}

// Result is the full judgment for one cycle. Built fresh per call and
// never mutated after return.
type Result struct {
	Outcome        Outcome         `json:"decision"`
	Score          QScore          `json:"qscore"`
	Verification   SuiteResult     `json:"verification_summary"`
	Classification *Classification `json:"classification,omitempty"`
	Retry          *RetryDecision  `json:"retry_decision,omitempty"`
	Deadline       *time.Time      `json:"deadline,omitempty"`
	Summary        string          `json:"summary"`
	Timestamp      time.Time       `json:"timestamp"`
	CorrelationID  string          `json:"correlation_id"`
	IdempotencyKey string          `json:"idempotency_key"`
}

// Loop wires scoring, verification, classification, and retry routing
// into the accept/retry/escalate state machine.
type Loop struct {
	calculator      *QScoreCalculator
	suite           *VerificationSuite
	classifier      *ErrorClassifier
	policy          *RetryPolicy
	acceptThreshold float64
	clock           evidence.Clock
	log             *zap.Logger
}

// NewLoop builds the loop. A non-positive threshold defaults to 0.7,
// a nil clock to the system clock.
func NewLoop(calculator *QScoreCalculator, suite *VerificationSuite, classifier *ErrorClassifier, policy *RetryPolicy, acceptThreshold float64, clock evidence.Clock) *Loop {
	if acceptThreshold <= 0 {
		acceptThreshold = 0.7
	}
	if clock == nil {
		clock = evidence.SystemClock
	}
	return &Loop{
		calculator:      calculator,
		suite:           suite,
		classifier:      classifier,
		policy:          policy,
		acceptThreshold: acceptThreshold,
		clock:           clock,
		log:             logging.Get(logging.CategoryDecision),
	}
}

// Decide judges one specialist result. ACCEPT requires both a passing
// verification suite and a calibrated score at or above the threshold;
// anything else is classified and routed through the retry policy.
func (l *Loop) Decide(ctx context.Context, in Input) (*Result, error) {
	now := l.clock.Now()
	score := l.calculator.Compute(in.Result, in.Meta)
	verification := l.suite.Run(ctx, in.Result, in.Meta)
	metrics.RecordQScore(score.Calibrated)

	out := &Result{
		Score:         score,
		Verification:  verification,
		Timestamp:     now,
		CorrelationID: uuid.NewString(),
	}

	if verification.Passed && score.Calibrated >= l.acceptThreshold {
		out.Outcome = OutcomeAccept
		out.Summary = fmt.Sprintf("accepted: calibrated %.2f >= %.2f, all verifiers passed", score.Calibrated, l.acceptThreshold)
	} else {
		classification := l.classifier.Classify(score, verification, in.Result)
		retry := l.policy.Decide(classification.Category, in.Meta.RetryDepth, in.Result.SpecialistID, classification.Confidence)
		out.Classification = &classification
		out.Retry = &retry

		if retry.Action == ActionRetry {
			out.Outcome = OutcomeRetry
			deadline := now.Add(l.policy.DeadlineWindow())
			out.Deadline = &deadline
		} else {
			out.Outcome = OutcomeEscalate
		}
		out.Summary = fmt.Sprintf("%s: %s (%s)", out.Outcome, classification.Category, retry.Reason)
	}

	reasons := []string{out.Summary}
	if out.Classification != nil {
		reasons = append(reasons, string(out.Classification.Category))
	}
	key, err := IdempotencyKey(in.TraceID, in.Meta.Task, in.Meta.RetryDepth, reasons)
	if err != nil {
		return nil, err
	}
	out.IdempotencyKey = key

	metrics.RecordDecisionOutcome(string(out.Outcome))
	l.log.Info("decision made",
		zap.String("outcome", string(out.Outcome)),
		zap.Float64("calibrated", score.Calibrated),
		zap.Bool("verified", verification.Passed),
		zap.String("correlation_id", out.CorrelationID))
	return out, nil
}
