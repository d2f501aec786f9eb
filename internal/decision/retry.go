package decision

import (
	"fmt"
	"time"
)

// Action is the retry policy's verdict.
type Action string

const (
	ActionRetry    Action = "RETRY"
	ActionEscalate Action = "ESCALATE"
)

// ContextDelta adjusts the next retrieval cycle for a retry attempt.
type ContextDelta struct {
	BudgetDelta     int      `json:"budget_delta,omitempty"`
	AdditionalHints []string `json:"additional_hints,omitempty"`
	IncludeSchema   bool     `json:"include_schema,omitempty"`
	FocusAreas      []string `json:"focus_areas,omitempty"`
}

// RetryDecision is the routing outcome for one failure.
type RetryDecision struct {
	Action           Action       `json:"action"`
	TargetSpecialist string       `json:"target_specialist,omitempty"`
	Delta            ContextDelta `json:"context_adjustments"`
	MaxRetries       int          `json:"max_retries"`
	Reason           string       `json:"reason"`
}

// categoryRoute describes how one failure category retries.
type categoryRoute struct {
	target string
	delta  ContextDelta
	reason string
}

// RetryPolicyConfig bounds the loop.
type RetryPolicyConfig struct {
	// MaxRetries is the global ceiling on retry depth.
	MaxRetries int

	// CategoryMaxRetries overrides the ceiling per category.
	CategoryMaxRetries map[string]int

	// DeadlineWindow is the wall-clock budget attached to each retry
	// directive.
	DeadlineWindow time.Duration
}

// RetryPolicy maps a failure classification to a retry or an
// escalation. Stateless; retry depth is the caller's to track.
type RetryPolicy struct {
	cfg    RetryPolicyConfig
	routes map[Category]categoryRoute
}

// NewRetryPolicy builds the standard routing table. Zero MaxRetries
// defaults to 3; POLICY_DEGRADED is pinned to zero retries regardless
// of configuration.
func NewRetryPolicy(cfg RetryPolicyConfig) *RetryPolicy {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.DeadlineWindow <= 0 {
		cfg.DeadlineWindow = 10 * time.Minute
	}
	return &RetryPolicy{
		cfg: cfg,
		routes: map[Category]categoryRoute{
			CategorySchemaViolation: {
				delta:  ContextDelta{IncludeSchema: true},
				reason: "retry with the expected schema included",
			},
			CategoryMissingEvidence: {
				delta:  ContextDelta{BudgetDelta: 16 * 1024, AdditionalHints: []string{"expand retrieval scope"}},
				reason: "retry with an expanded retrieval budget",
			},
			CategoryFlakyPattern: {
				target: "stability-specialist",
				delta:  ContextDelta{FocusAreas: []string{"timing", "retries"}},
				reason: "route to a stability-focused specialist",
			},
			CategorySelectorIssue: {
				target: "selector-healing-specialist",
				delta:  ContextDelta{AdditionalHints: []string{"prefer data-testid selectors"}},
				reason: "route to a selector-healing specialist",
			},
			CategoryLowConfidence: {
				target: "alternate-specialist",
				reason: "route to an alternate specialist",
			},
			CategoryInconsistent: {
				target: "consistency-specialist",
				delta:  ContextDelta{AdditionalHints: []string{"reconcile with previous result"}},
				reason: "route to a consistency-enforcing specialist",
			},
			CategoryTimeout: {
				delta:  ContextDelta{AdditionalHints: []string{"reduce scope to fit the latency budget"}},
				reason: "retry with a narrowed scope",
			},
		},
	}
}

// DeadlineWindow returns the configured wall-clock budget per retry.
func (p *RetryPolicy) DeadlineWindow() time.Duration { return p.cfg.DeadlineWindow }

// maxFor resolves the retry ceiling for a category. POLICY_DEGRADED is
// a hard zero that no configuration can raise.
func (p *RetryPolicy) maxFor(category Category) int {
	if category == CategoryPolicyDegraded {
		return 0
	}
	if override, ok := p.cfg.CategoryMaxRetries[string(category)]; ok {
		return override
	}
	return p.cfg.MaxRetries
}

// Decide routes one classified failure. POLICY_DEGRADED always
// escalates, regardless of depth; other categories retry until their
// ceiling, then escalate.
func (p *RetryPolicy) Decide(category Category, retryDepth int, currentSpecialist string, categoryConfidence float64) RetryDecision {
	maxRetries := p.maxFor(category)

	if category == CategoryPolicyDegraded {
		return RetryDecision{
			Action:     ActionEscalate,
			MaxRetries: 0,
			Reason:     "policy degradation is never retried",
		}
	}
	if retryDepth >= maxRetries {
		return RetryDecision{
			Action:     ActionEscalate,
			MaxRetries: maxRetries,
			Reason:     fmt.Sprintf("retry budget exhausted at depth %d for %s", retryDepth, category),
		}
	}

	route, ok := p.routes[category]
	if !ok {
		// Unclassifiable failures retry without special routing until
		// the budget runs out.
		return RetryDecision{
			Action:     ActionRetry,
			MaxRetries: maxRetries,
			Reason:     fmt.Sprintf("retrying %s failure (confidence %.2f)", category, categoryConfidence),
		}
	}

	target := route.target
	if target == currentSpecialist {
		target = "alternate-specialist"
	}
	return RetryDecision{
		Action:           ActionRetry,
		TargetSpecialist: target,
		Delta:            route.delta,
		MaxRetries:       maxRetries,
		Reason:           route.reason,
	}
}
