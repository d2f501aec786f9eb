package decision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultSchema = `{
	"type": "object",
	"required": ["status"],
	"properties": {
		"status": {"type": "string", "enum": ["done", "partial", "blocked"]},
		"files_changed": {"type": "integer", "minimum": 0}
	}
}`

func TestSchemaVerifier(t *testing.T) {
	v, err := NewSchemaVerifier([]byte(resultSchema))
	require.NoError(t, err)

	t.Run("valid payload passes", func(t *testing.T) {
		res := v.Verify(context.Background(), validResult(), validMeta())
		assert.True(t, res.Passed)
		assert.Equal(t, VerifierSchema, res.Verifier)
	})

	t.Run("missing required field fails with evidence", func(t *testing.T) {
		r := validResult()
		r.Payload = `{"files_changed": 2}`
		res := v.Verify(context.Background(), r, validMeta())
		assert.False(t, res.Passed)
		assert.NotEmpty(t, res.Evidence)
	})

	t.Run("bad enum value fails", func(t *testing.T) {
		r := validResult()
		r.Payload = `{"status": "maybe"}`
		res := v.Verify(context.Background(), r, validMeta())
		assert.False(t, res.Passed)
	})

	t.Run("invalid schema rejected at construction", func(t *testing.T) {
		_, err := NewSchemaVerifier([]byte(`{"type": ["not, valid`))
		assert.Error(t, err)
	})
}

func TestReplayVerifier(t *testing.T) {
	v := &ReplayVerifier{}

	t.Run("no previous result passes", func(t *testing.T) {
		res := v.Verify(context.Background(), validResult(), ExecutionMetadata{})
		assert.True(t, res.Passed)
	})

	t.Run("consistent rerun passes", func(t *testing.T) {
		meta := validMeta()
		meta.PreviousSummary = "All checks passed after applying the fix"
		res := v.Verify(context.Background(), validResult(), meta)
		assert.True(t, res.Passed)
	})

	t.Run("contradictory rerun fails", func(t *testing.T) {
		meta := validMeta()
		meta.PreviousSummary = "nothing worked, completely different conclusion, giving up entirely"
		res := v.Verify(context.Background(), validResult(), meta)
		assert.False(t, res.Passed)
		assert.NotEmpty(t, res.Reason)
	})
}

func TestSmokeVerifier(t *testing.T) {
	v := DefaultSmokeVerifier()

	t.Run("healthy result passes", func(t *testing.T) {
		res := v.Verify(context.Background(), validResult(), validMeta())
		assert.True(t, res.Passed)
	})

	t.Run("no citations with evidence available fails", func(t *testing.T) {
		r := validResult()
		r.CitedEvidence = nil
		res := v.Verify(context.Background(), r, validMeta())
		assert.False(t, res.Passed)
		assert.Contains(t, res.Reason, "evidence")
	})

	t.Run("no citations with empty corpus passes", func(t *testing.T) {
		r := validResult()
		r.CitedEvidence = nil
		meta := validMeta()
		meta.ProvidedEvidence = nil
		res := v.Verify(context.Background(), r, meta)
		assert.True(t, res.Passed)
	})

	t.Run("forbidden pattern fails", func(t *testing.T) {
		r := validResult()
		r.Summary = "Lorem ipsum dolor sit amet"
		res := v.Verify(context.Background(), r, validMeta())
		assert.False(t, res.Passed)
	})
}

type stubVerifier struct {
	name   string
	passed bool
	conf   float64
	reason string
}

func (s *stubVerifier) Name() string { return s.name }
func (s *stubVerifier) Verify(context.Context, SpecialistResult, ExecutionMetadata) VerifierResult {
	return VerifierResult{Verifier: s.name, Passed: s.passed, Confidence: s.conf, Reason: s.reason}
}

func TestSuiteAllMustPass(t *testing.T) {
	suite := NewVerificationSuite(
		&stubVerifier{name: VerifierSchema, passed: true, conf: 1.0},
		&stubVerifier{name: VerifierReplay, passed: true, conf: 0.8},
		&stubVerifier{name: VerifierSmoke, passed: false, conf: 0.6, reason: "cited 0 evidence items"},
	)
	res := suite.Run(context.Background(), validResult(), validMeta())
	assert.False(t, res.Passed)
	assert.InDelta(t, 0.8, res.AvgConfidence, 0.001)
	assert.Len(t, res.Failed(), 1)

	f, ok := res.FailureOf(VerifierSmoke)
	require.True(t, ok)
	assert.Contains(t, f.Reason, "evidence")
}

func TestSuiteResultOrderIsStable(t *testing.T) {
	suite := NewVerificationSuite(
		&stubVerifier{name: "a", passed: true, conf: 1},
		&stubVerifier{name: "b", passed: true, conf: 1},
		&stubVerifier{name: "c", passed: true, conf: 1},
	)
	res := suite.Run(context.Background(), validResult(), validMeta())
	require.Len(t, res.Results, 3)
	assert.Equal(t, "a", res.Results[0].Verifier)
	assert.Equal(t, "b", res.Results[1].Verifier)
	assert.Equal(t, "c", res.Results[2].Verifier)
}

func TestSuiteEmptyPasses(t *testing.T) {
	res := NewVerificationSuite().Run(context.Background(), validResult(), validMeta())
	assert.True(t, res.Passed)
	assert.Equal(t, 1.0, res.AvgConfidence)
}
