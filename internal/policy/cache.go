package policy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"contextkit/internal/evidence"
	"contextkit/internal/metrics"
)

type cacheEntry struct {
	decision Decision
	storedAt time.Time
}

// CachingEvaluator memoizes decisions from an inner evaluator. The key
// covers everything the decision depends on (specialist identity and
// clearance, candidate sensitivity and source) so two candidates with
// the same policy inputs share one entry. Entries expire after ttl;
// when the map is full the oldest entry is evicted.
type CachingEvaluator struct {
	inner   Evaluator
	ttl     time.Duration
	maxSize int
	clock   evidence.Clock

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewCachingEvaluator wraps inner. Zero ttl defaults to 5m, zero
// maxSize to 1000, nil clock to the system clock.
func NewCachingEvaluator(inner Evaluator, ttl time.Duration, maxSize int, clock evidence.Clock) *CachingEvaluator {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if maxSize <= 0 {
		maxSize = 1000
	}
	if clock == nil {
		clock = evidence.SystemClock
	}
	return &CachingEvaluator{
		inner:   inner,
		ttl:     ttl,
		maxSize: maxSize,
		clock:   clock,
		entries: make(map[string]cacheEntry),
	}
}

func cacheKey(specialist SpecialistMetadata, candidate evidence.Candidate) string {
	return fmt.Sprintf("%s|%s|%s|%s", specialist.ID, specialist.SecurityLevel, candidate.Meta.Sensitivity, candidate.Meta.Source)
}

func (c *CachingEvaluator) Evaluate(ctx context.Context, specialist SpecialistMetadata, candidate evidence.Candidate) (Decision, error) {
	key := cacheKey(specialist, candidate)
	now := c.clock.Now()

	c.mu.Lock()
	if entry, ok := c.entries[key]; ok && now.Sub(entry.storedAt) < c.ttl {
		c.mu.Unlock()
		metrics.RecordPolicyCacheLookup(true)
		return entry.decision, nil
	}
	c.mu.Unlock()
	metrics.RecordPolicyCacheLookup(false)

	decision, err := c.inner.Evaluate(ctx, specialist, candidate)
	if err != nil {
		// Errors are never cached. The inner decision passes through
		// unchanged so a degraded deny keeps its pairing with the error.
		return decision, err
	}

	c.mu.Lock()
	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	c.entries[key] = cacheEntry{decision: decision, storedAt: now}
	c.mu.Unlock()
	return decision, nil
}

// evictOldest removes the stalest entry. Caller holds mu.
func (c *CachingEvaluator) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	first := true
	for key, entry := range c.entries {
		if first || entry.storedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.storedAt
			first = false
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// Len reports the current entry count. Test helper.
func (c *CachingEvaluator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
