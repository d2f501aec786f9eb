// Package slicing turns ranked evidence into the slice a specific
// specialist is allowed to see: policy-filtered, field-redacted, and
// trimmed to a byte/token/item budget in rank order.
package slicing

// Limits are the per-slice budget ceilings.
type Limits struct {
	MaxBytes  int `json:"max_bytes"`
	MaxTokens int `json:"max_tokens"`
	MaxItems  int `json:"max_items"`
}

// Usage is the running consumption against Limits.
type Usage struct {
	Bytes  int `json:"bytes"`
	Tokens int `json:"tokens"`
	Items  int `json:"items"`
}

// EstimateTokens approximates the token count of content as one token
// per four bytes, rounded up.
func EstimateTokens(content string) int {
	if len(content) == 0 {
		return 0
	}
	return (len(content) + 3) / 4
}

// Tracker accumulates budget consumption for one slice. It is created
// fresh per request and never shared. Not safe for concurrent use;
// slicing is sequential by design.
type Tracker struct {
	limits Limits
	usage  Usage
}

// NewTracker starts a tracker at zero usage.
func NewTracker(limits Limits) *Tracker {
	return &Tracker{limits: limits}
}

// CanAdd reports whether an item of the given size fits without
// exceeding any ceiling. Pure check, no mutation.
func (t *Tracker) CanAdd(byteSize, tokenEstimate int) bool {
	if t.usage.Bytes+byteSize > t.limits.MaxBytes {
		return false
	}
	if t.usage.Tokens+tokenEstimate > t.limits.MaxTokens {
		return false
	}
	if t.usage.Items+1 > t.limits.MaxItems {
		return false
	}
	return true
}

// Add commits an item to the running totals. Callers must have
// checked CanAdd first.
func (t *Tracker) Add(byteSize, tokenEstimate int) {
	t.usage.Bytes += byteSize
	t.usage.Tokens += tokenEstimate
	t.usage.Items++
}

// Exhausted is true once any counter has reached its ceiling.
func (t *Tracker) Exhausted() bool {
	return t.usage.Bytes >= t.limits.MaxBytes ||
		t.usage.Tokens >= t.limits.MaxTokens ||
		t.usage.Items >= t.limits.MaxItems
}

// Usage returns a copy of the running totals.
func (t *Tracker) Usage() Usage { return t.usage }

// Limits returns the configured ceilings.
func (t *Tracker) Limits() Limits { return t.limits }
