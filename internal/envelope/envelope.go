// Package envelope defines the wire payloads crossing the system
// boundary and validates them against JSON schemas before anything is
// delivered. Malformed payloads are blocked, never passed downstream.
package envelope

import (
	"time"

	"contextkit/internal/decision"
	"contextkit/internal/evidence"
	"contextkit/internal/pack"
	"contextkit/internal/slicing"
)

// Kind names a payload type for validation and routing.
type Kind string

const (
	KindContextRequest Kind = "context_request"
	KindContextResult  Kind = "context_result"
	KindDecisionNotice Kind = "decision_notice"
	KindRetryDirective Kind = "retry_directive"
)

// ContextRequest is the inbound retrieval request.
type ContextRequest struct {
	Query         evidence.Query `json:"query"`
	Limit         int            `json:"limit,omitempty"`
	IncludeScores bool           `json:"include_scores,omitempty"`
}

// ResultItem is one evidence entry in a ContextResult.
type ResultItem struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Score    *float64          `json:"score,omitempty"`
	Metadata evidence.Metadata `json:"metadata"`
}

// Explainability carries everything a consumer needs to audit how the
// result was assembled.
type Explainability struct {
	TLDR        string            `json:"tldr"`
	Affordances []pack.Affordance `json:"affordances"`
	CausalGraph *pack.CausalGraph `json:"causal_graph,omitempty"`
	Counts      slicing.Counts    `json:"slicing_stats"`
	Timings     pack.Timings      `json:"timings"`
	Warnings    []string          `json:"warnings,omitempty"`
}

// ContextResult is the outbound response to a ContextRequest.
type ContextResult struct {
	Results         []ResultItem   `json:"results"`
	TotalCount      int            `json:"total_count"`
	QueryDurationMS int64          `json:"query_duration_ms"`
	Sources         []string       `json:"sources"`
	Explainability  Explainability `json:"explainability"`
}

// DecisionNotice is the outbound judgment for one specialist result.
type DecisionNotice struct {
	Decision       string                   `json:"decision"`
	QScore         decision.QScore          `json:"qscore"`
	Verification   decision.SuiteResult     `json:"verification_summary"`
	Classification *decision.Classification `json:"classification,omitempty"`
	Retry          *decision.RetryDecision  `json:"retry_decision,omitempty"`
	Summary        string                   `json:"summary"`
	Timestamp      time.Time                `json:"timestamp"`
	CorrelationID  string                   `json:"correlation_id"`
	IdempotencyKey string                   `json:"idempotency_key"`
}

// FailureReason explains a retry to the receiving specialist.
type FailureReason struct {
	Category    string   `json:"category"`
	Explanation string   `json:"explanation"`
	Evidence    []string `json:"evidence,omitempty"`
}

// RetryDirective is sent only when the decision outcome is RETRY.
type RetryDirective struct {
	RetryDepth          int                   `json:"retry_depth"`
	TargetSpecialist    string                `json:"target_specialist,omitempty"`
	OriginalTask        string                `json:"original_task"`
	PreviousResult      string                `json:"previous_result"`
	FailureReason       FailureReason         `json:"failure_reason"`
	ContextAdjustments  decision.ContextDelta `json:"context_adjustments"`
	MaxRetriesRemaining int                   `json:"max_retries_remaining"`
	Deadline            time.Time             `json:"deadline"`
	CorrelationID       string                `json:"correlation_id"`
	IdempotencyKey      string                `json:"idempotency_key"`
}

// NewContextResult flattens an assembled pack into the wire shape.
// Scores are omitted unless the request asked for them.
func NewContextResult(p *pack.ContextPack, includeScores bool) ContextResult {
	items := make([]ResultItem, 0, len(p.Evidence))
	for _, e := range p.Evidence {
		item := ResultItem{
			ID:       e.Result.Candidate.ID,
			Content:  e.Content,
			Metadata: e.Result.Candidate.Meta,
		}
		if includeScores {
			score := e.Result.Score
			item.Score = &score
		}
		items = append(items, item)
	}
	return ContextResult{
		Results:         items,
		TotalCount:      len(items),
		QueryDurationMS: p.Timings.Total.Milliseconds(),
		Sources:         p.Sources,
		Explainability: Explainability{
			TLDR:        p.Summary.Text,
			Affordances: p.Affordances,
			CausalGraph: p.CausalGraph,
			Counts:      p.Slice.Counts,
			Timings:     p.Timings,
			Warnings:    p.Warnings,
		},
	}
}

// NewDecisionNotice wraps a decision result for delivery.
func NewDecisionNotice(res *decision.Result) DecisionNotice {
	return DecisionNotice{
		Decision:       string(res.Outcome),
		QScore:         res.Score,
		Verification:   res.Verification,
		Classification: res.Classification,
		Retry:          res.Retry,
		Summary:        res.Summary,
		Timestamp:      res.Timestamp,
		CorrelationID:  res.CorrelationID,
		IdempotencyKey: res.IdempotencyKey,
	}
}

// NewRetryDirective builds the directive for a RETRY outcome. Returns
// false when the result is not a retry.
func NewRetryDirective(res *decision.Result, in decision.Input) (RetryDirective, bool) {
	if res.Outcome != decision.OutcomeRetry || res.Retry == nil || res.Classification == nil || res.Deadline == nil {
		return RetryDirective{}, false
	}
	remaining := res.Retry.MaxRetries - in.Meta.RetryDepth - 1
	if remaining < 0 {
		remaining = 0
	}
	return RetryDirective{
		RetryDepth:       in.Meta.RetryDepth + 1,
		TargetSpecialist: res.Retry.TargetSpecialist,
		OriginalTask:     in.Meta.Task,
		PreviousResult:   in.Result.Summary,
		FailureReason: FailureReason{
			Category:    string(res.Classification.Category),
			Explanation: res.Classification.Explanation,
			Evidence:    res.Classification.Evidence,
		},
		ContextAdjustments:  res.Retry.Delta,
		MaxRetriesRemaining: remaining,
		Deadline:            *res.Deadline,
		CorrelationID:       res.CorrelationID,
		IdempotencyKey:      res.IdempotencyKey,
	}, true
}
