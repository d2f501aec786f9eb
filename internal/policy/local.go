package policy

import (
	"context"
	"fmt"

	"contextkit/internal/evidence"
	"contextkit/internal/logging"
)

// redactableFields are payload fields scrubbed when a candidate is
// shareable only after redaction.
var redactableFields = []string{"author", "email", "ip_address", "credentials", "tokens"}

// LocalRuleEvaluator applies a fixed rule table without any network
// dependency. It is both the standalone evaluator for air-gapped
// deployments and the fallback when the remote service is down.
//
// Rules, in order:
//  1. Candidate sensitivity above the specialist's clearance is denied,
//     unless the specialist belongs to a group authorized for the
//     candidate's source.
//  2. Confidential content at exactly the clearance boundary is allowed
//     with redaction of identifying fields.
//  3. Everything else is allowed as-is.
type LocalRuleEvaluator struct {
	// SourceGroups maps an evidence source to the groups cleared to
	// read it regardless of sensitivity rank.
	SourceGroups map[string][]string
}

// NewLocalRuleEvaluator returns an evaluator with no group overrides.
func NewLocalRuleEvaluator() *LocalRuleEvaluator {
	return &LocalRuleEvaluator{SourceGroups: map[string][]string{}}
}

func (e *LocalRuleEvaluator) Evaluate(_ context.Context, specialist SpecialistMetadata, candidate evidence.Candidate) (Decision, error) {
	sens := candidate.Meta.Sensitivity
	clearance := specialist.SecurityLevel.Rank()

	if int(sens) > clearance {
		if e.groupAuthorized(specialist, candidate.Meta.Source) {
			logging.Get(logging.CategoryPolicy).Debug("group override allow")
			return Decision{
				Allow:  true,
				Redact: true, RedactedFields: redactableFields,
				Reason: fmt.Sprintf("group authorization for source %q", candidate.Meta.Source),
			}, nil
		}
		return Decision{
			Allow:  false,
			Reason: fmt.Sprintf("sensitivity %s exceeds clearance %s", sens, specialist.SecurityLevel),
		}, nil
	}

	if sens >= evidence.SensitivityConfidential && int(sens) == clearance {
		return Decision{
			Allow:  true,
			Redact: true, RedactedFields: redactableFields,
			Reason: "confidential content shared at clearance boundary, identifying fields removed",
		}, nil
	}

	return Decision{Allow: true, Reason: "within clearance"}, nil
}

func (e *LocalRuleEvaluator) groupAuthorized(specialist SpecialistMetadata, source string) bool {
	groups, ok := e.SourceGroups[source]
	if !ok {
		return false
	}
	for _, g := range groups {
		for _, sg := range specialist.AuthorizedGroups {
			if g == sg {
				return true
			}
		}
	}
	return false
}
