// Package policy decides, per (specialist, candidate) pair, whether a
// piece of evidence may be shared and which fields must be redacted
// first. Two evaluator strategies sit behind one interface: a remote
// policy-decision service and a local rule table. A TTL cache bounds
// remote call volume.
package policy

import (
	"context"
	"errors"

	"contextkit/internal/evidence"
)

// ErrDegraded reports that the remote policy service was unreachable
// and no fallback was permitted. Callers must treat the accompanying
// deny decision as degraded, not authoritative.
var ErrDegraded = errors.New("policy service unreachable, no fallback configured")

// SecurityLevel is a specialist's clearance.
type SecurityLevel string

const (
	LevelPublic       SecurityLevel = "public"
	LevelInternal     SecurityLevel = "internal"
	LevelConfidential SecurityLevel = "confidential"
	LevelRestricted   SecurityLevel = "restricted"
)

// Rank orders levels so clearance can be compared to candidate
// sensitivity. Unknown levels rank lowest.
func (l SecurityLevel) Rank() int {
	switch l {
	case LevelPublic:
		return 0
	case LevelInternal:
		return 1
	case LevelConfidential:
		return 2
	case LevelRestricted:
		return 3
	default:
		return 0
	}
}

// SpecialistMetadata identifies the requesting specialist. Supplied by
// the caller per request; never stored by this package.
type SpecialistMetadata struct {
	Type             string        `json:"type"`
	ID               string        `json:"id"`
	Capabilities     []string      `json:"capabilities,omitempty"`
	SecurityLevel    SecurityLevel `json:"security_level"`
	AuthorizedGroups []string      `json:"authorized_groups,omitempty"`
}

// Decision is the outcome for one (specialist, candidate) pair.
type Decision struct {
	Allow          bool     `json:"allow"`
	Redact         bool     `json:"redact"`
	RedactedFields []string `json:"redacted_fields,omitempty"`
	Reason         string   `json:"reason"`
}

// Evaluator is the policy strategy interface.
type Evaluator interface {
	Evaluate(ctx context.Context, specialist SpecialistMetadata, candidate evidence.Candidate) (Decision, error)
}
