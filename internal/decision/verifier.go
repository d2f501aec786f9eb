package decision

import (
	"context"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonschema"
)

// Verifier names for classification. The classifier keys off these, so
// implementations must report the matching constant.
const (
	VerifierSchema = "schema"
	VerifierReplay = "replay"
	VerifierSmoke  = "smoke"
)

// VerifierResult is one verifier's verdict.
type VerifierResult struct {
	Verifier   string   `json:"verifier"`
	Passed     bool     `json:"passed"`
	Confidence float64  `json:"confidence"`
	Reason     string   `json:"reason,omitempty"`
	Evidence   []string `json:"evidence,omitempty"`
}

// Verifier checks one aspect of a specialist result.
type Verifier interface {
	Name() string
	Verify(ctx context.Context, result SpecialistResult, meta ExecutionMetadata) VerifierResult
}

// SchemaVerifier validates the result payload against an expected
// JSON schema.
type SchemaVerifier struct {
	schema *jsonschema.Schema
}

// NewSchemaVerifier compiles the expected schema once up front.
func NewSchemaVerifier(schemaJSON []byte) (*SchemaVerifier, error) {
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile(schemaJSON)
	if err != nil {
		return nil, fmt.Errorf("compiling result schema: %w", err)
	}
	return &SchemaVerifier{schema: schema}, nil
}

func (v *SchemaVerifier) Name() string { return VerifierSchema }

func (v *SchemaVerifier) Verify(_ context.Context, result SpecialistResult, _ ExecutionMetadata) VerifierResult {
	res := v.schema.ValidateJSON([]byte(result.Payload))
	if res.IsValid() {
		return VerifierResult{Verifier: VerifierSchema, Passed: true, Confidence: 1.0}
	}
	var evidence []string
	for field, evalErr := range res.Errors {
		evidence = append(evidence, fmt.Sprintf("%s: %v", field, evalErr))
	}
	return VerifierResult{
		Verifier:   VerifierSchema,
		Passed:     false,
		Confidence: 1.0,
		Reason:     "payload does not match the expected schema",
		Evidence:   evidence,
	}
}

// ReplayVerifier checks that the result does not contradict the
// previous attempt. With no previous attempt it trivially passes.
type ReplayVerifier struct {
	// MinOverlap is the word-overlap floor below which two summaries
	// count as contradictory. Zero means 0.3.
	MinOverlap float64
}

func (v *ReplayVerifier) Name() string { return VerifierReplay }

func (v *ReplayVerifier) Verify(_ context.Context, result SpecialistResult, meta ExecutionMetadata) VerifierResult {
	if meta.PreviousSummary == "" {
		return VerifierResult{Verifier: VerifierReplay, Passed: true, Confidence: 0.5, Reason: "no previous result to compare"}
	}
	floor := v.MinOverlap
	if floor <= 0 {
		floor = 0.3
	}
	overlap := consistency(result.Summary, meta.PreviousSummary)
	if overlap >= floor {
		return VerifierResult{Verifier: VerifierReplay, Passed: true, Confidence: overlap}
	}
	return VerifierResult{
		Verifier:   VerifierReplay,
		Passed:     false,
		Confidence: 0.9,
		Reason:     fmt.Sprintf("summary overlap %.2f below floor %.2f", overlap, floor),
		Evidence:   []string{meta.PreviousSummary},
	}
}

// SmokeVerifier applies cheap sanity checks: the result must cite a
// minimum amount of evidence and must not contain forbidden content.
type SmokeVerifier struct {
	// MinEvidence is the citation floor. Zero disables the check.
	MinEvidence int

	// ForbiddenPatterns are lowercase substrings that must not appear
	// in the summary or payload.
	ForbiddenPatterns []string
}

// DefaultSmokeVerifier uses the standard floor and pattern set.
func DefaultSmokeVerifier() *SmokeVerifier {
	return &SmokeVerifier{
		MinEvidence:       1,
		ForbiddenPatterns: []string{"lorem ipsum", "todo: fill in", "<placeholder>"},
	}
}

func (v *SmokeVerifier) Name() string { return VerifierSmoke }

func (v *SmokeVerifier) Verify(_ context.Context, result SpecialistResult, meta ExecutionMetadata) VerifierResult {
	if v.MinEvidence > 0 && len(meta.ProvidedEvidence) > 0 && len(result.CitedEvidence) < v.MinEvidence {
		return VerifierResult{
			Verifier:   VerifierSmoke,
			Passed:     false,
			Confidence: 0.8,
			Reason:     fmt.Sprintf("cited %d evidence items, floor is %d", len(result.CitedEvidence), v.MinEvidence),
		}
	}
	haystack := strings.ToLower(result.Summary + " " + result.Payload)
	for _, pattern := range v.ForbiddenPatterns {
		if strings.Contains(haystack, pattern) {
			return VerifierResult{
				Verifier:   VerifierSmoke,
				Passed:     false,
				Confidence: 0.9,
				Reason:     "forbidden content pattern present",
				Evidence:   []string{pattern},
			}
		}
	}
	return VerifierResult{Verifier: VerifierSmoke, Passed: true, Confidence: 0.8}
}
