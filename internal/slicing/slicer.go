package slicing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"contextkit/internal/logging"
	"contextkit/internal/metrics"
	"contextkit/internal/policy"
	"contextkit/internal/ranking"
)

// redactedPlaceholder replaces the value of any field named for
// redaction.
const redactedPlaceholder = "[REDACTED]"

// SlicedItem is one ranked result that made it into the slice,
// possibly with redacted content.
type SlicedItem struct {
	Result   ranking.RankedResult `json:"result"`
	Content  string               `json:"content"`
	Redacted bool                 `json:"redacted"`
	Decision policy.Decision      `json:"decision"`
	ByteSize int                  `json:"byte_size"`
	Tokens   int                  `json:"tokens"`
}

// Counts summarizes what happened to the candidate pool.
type Counts struct {
	TotalAvailable        int `json:"total_available"`
	TotalIncluded         int `json:"total_included"`
	TotalRedacted         int `json:"total_redacted"`
	TotalDroppedForBudget int `json:"total_dropped_for_budget"`
}

// ContextSlice is the per-specialist view of the ranked pool. Built
// fresh per request; never mutated after return.
type ContextSlice struct {
	Items    []SlicedItem `json:"items"`
	Counts   Counts       `json:"counts"`
	Usage    Usage        `json:"usage"`
	Limits   Limits       `json:"limits"`
	Warnings []string     `json:"warnings,omitempty"`
}

// Slicer applies policy and budget to ranked results.
type Slicer struct {
	evaluator policy.Evaluator
	limits    Limits
}

// New builds a Slicer. Non-positive limits fall back to the defaults
// (120 KB, 30000 tokens, 100 items).
func New(evaluator policy.Evaluator, limits Limits) *Slicer {
	if limits.MaxBytes <= 0 && limits.MaxTokens <= 0 && limits.MaxItems <= 0 {
		limits = Limits{MaxBytes: 120 * 1024, MaxTokens: 30000, MaxItems: 100}
	}
	return &Slicer{evaluator: evaluator, limits: limits}
}

// Slice walks results in their ranked order, so when the budget runs
// out the highest-relevance items are the ones kept. Items a policy
// denies are counted but skipped; items requiring redaction get their
// flagged fields scrubbed before sizing. Budget overflow on one item
// skips that item only, the walk continues in case a smaller item
// still fits.
func (s *Slicer) Slice(ctx context.Context, specialist policy.SpecialistMetadata, results []ranking.RankedResult) (*ContextSlice, error) {
	log := logging.Get(logging.CategorySlice)
	tracker := NewTracker(s.limits)

	slice := &ContextSlice{
		Items:  make([]SlicedItem, 0, len(results)),
		Limits: s.limits,
	}
	slice.Counts.TotalAvailable = len(results)
	degraded := false

	for _, r := range results {
		decision, err := s.evaluator.Evaluate(ctx, specialist, r.Candidate)
		if err != nil {
			if errors.Is(err, policy.ErrDegraded) {
				degraded = true
			} else {
				log.Warn("policy evaluation failed, skipping item",
					zap.String("id", r.Candidate.ID), zap.Error(err))
			}
			slice.Counts.TotalRedacted++
			continue
		}
		if !decision.Allow {
			slice.Counts.TotalRedacted++
			metrics.RecordSliceDrop("policy")
			continue
		}

		content := r.Candidate.Content
		redacted := false
		if decision.Redact && len(decision.RedactedFields) > 0 {
			scrubbed, ok := redactFields(content, decision.RedactedFields)
			if !ok {
				// Opaque content that cannot be field-redacted is
				// dropped rather than shared unscrubbed.
				slice.Counts.TotalRedacted++
				metrics.RecordSliceDrop("unredactable")
				continue
			}
			content = scrubbed
			redacted = true
		}

		byteSize := len(content)
		tokens := EstimateTokens(content)
		if !tracker.CanAdd(byteSize, tokens) {
			slice.Counts.TotalDroppedForBudget++
			metrics.RecordSliceDrop("budget")
			continue
		}
		tracker.Add(byteSize, tokens)

		slice.Items = append(slice.Items, SlicedItem{
			Result:   r,
			Content:  content,
			Redacted: redacted,
			Decision: decision,
			ByteSize: byteSize,
			Tokens:   tokens,
		})
		slice.Counts.TotalIncluded++
	}

	slice.Usage = tracker.Usage()
	if slice.Counts.TotalDroppedForBudget > 0 {
		slice.Warnings = append(slice.Warnings,
			fmt.Sprintf("Budget exhausted: %d items dropped", slice.Counts.TotalDroppedForBudget))
	}
	if degraded {
		slice.Warnings = append(slice.Warnings,
			"Policy service degraded: undecidable items were withheld")
	}

	log.Debug("slice built",
		zap.Int("available", slice.Counts.TotalAvailable),
		zap.Int("included", slice.Counts.TotalIncluded),
		zap.Int("redacted", slice.Counts.TotalRedacted),
		zap.Int("dropped_for_budget", slice.Counts.TotalDroppedForBudget))
	return slice, nil
}

// redactFields replaces the value of each named top-level field in a
// JSON object with a placeholder. Returns false when the content is
// not a JSON object, leaving the drop decision to the caller.
func redactFields(content string, fields []string) (string, bool) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return "", false
	}
	for _, f := range fields {
		if _, ok := doc[f]; ok {
			doc[f] = redactedPlaceholder
		}
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return "", false
	}
	return string(out), true
}
