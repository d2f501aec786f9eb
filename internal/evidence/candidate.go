// Package evidence defines the raw evidence model and the generator
// contract that evidence stores implement. Generators are selected at
// startup into an explicit Registry and shared across requests, so
// every implementation must be safe for concurrent Generate calls.
package evidence

import "time"

// Sensitivity classifies how widely a candidate may be shared.
type Sensitivity int

const (
	SensitivityPublic Sensitivity = iota
	SensitivityInternal
	SensitivityConfidential
	SensitivityRestricted
)

var sensitivityNames = map[Sensitivity]string{
	SensitivityPublic:       "public",
	SensitivityInternal:     "internal",
	SensitivityConfidential: "confidential",
	SensitivityRestricted:   "restricted",
}

func (s Sensitivity) String() string {
	if name, ok := sensitivityNames[s]; ok {
		return name
	}
	return "internal"
}

// ParseSensitivity maps a stored level name to its Sensitivity.
// Unknown names default to internal rather than public: mislabeled
// data should err toward less sharing.
func ParseSensitivity(name string) Sensitivity {
	for level, n := range sensitivityNames {
		if n == name {
			return level
		}
	}
	return SensitivityInternal
}

// Normalized returns the level on a [0,1] scale (restricted = 1).
func (s Sensitivity) Normalized() float64 {
	return float64(s) / float64(SensitivityRestricted)
}

// Metadata carries the per-candidate scoring inputs.
type Metadata struct {
	CreatedAt   time.Time   `json:"created_at"`
	AccessCount int         `json:"access_count"`
	Importance  float64     `json:"importance"` // [0,1]
	Trust       float64     `json:"trust"`      // [0,1]
	Sensitivity Sensitivity `json:"sensitivity"`
	Source      string      `json:"source"`
}

// Candidate is one raw evidence unit. Owned by the generator that
// produced it; immutable once returned.
type Candidate struct {
	ID      string   `json:"id"`
	Content string   `json:"content"`
	Source  string   `json:"source"`
	Meta    Metadata `json:"metadata"`
}

// QueryType selects the retrieval strategy.
type QueryType string

const (
	QuerySemantic       QueryType = "semantic"
	QueryKeyword        QueryType = "keyword"
	QueryHybrid         QueryType = "hybrid"
	QueryGraphTraversal QueryType = "graph_traversal"
)

// GraphParams parameterize graph-traversal queries.
type GraphParams struct {
	SeedIDs []string `json:"seed_ids"`
	Depth   int      `json:"depth"`
}

// Query is the inbound retrieval request. A positive Limit caps the
// ranked results for this request; non-positive falls back to the
// configured default.
type Query struct {
	Type        QueryType         `json:"type"`
	Text        string            `json:"text,omitempty"`
	Filters     map[string]string `json:"filters,omitempty"`
	GraphParams *GraphParams      `json:"graph_params,omitempty"`
	Limit       int               `json:"limit,omitempty"`
}

// Clock abstracts time so scoring and decay are deterministic in
// tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock reads the wall clock.
var SystemClock Clock = systemClock{}

// FixedClock always returns the same instant. Test helper.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }
