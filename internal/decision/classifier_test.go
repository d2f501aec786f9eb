package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func healthySignals() QSignals {
	return QSignals{
		Confidence: 0.9, PolicyCompliance: 1.0, SchemaValidity: 1.0,
		EvidenceCoverage: 0.9, AffordanceAlignment: 0.8, Latency: 0.9,
		RetryPenalty: 1.0, Consistency: 0.9,
	}
}

func passingSuite() SuiteResult {
	return SuiteResult{Passed: true, AvgConfidence: 0.9}
}

func failingSuite(verifier, reason string) SuiteResult {
	return SuiteResult{
		Passed: false,
		Results: []VerifierResult{
			{Verifier: verifier, Passed: false, Confidence: 0.9, Reason: reason},
		},
	}
}

func TestClassifierVerifierFailuresWinFirst(t *testing.T) {
	c := NewErrorClassifier()
	// Signals that would also trip threshold rules; the schema
	// verifier failure must still win.
	score := QScore{Calibrated: 0.2, Signals: QSignals{Confidence: 0.1, PolicyCompliance: 0.3}}

	cls := c.Classify(score, failingSuite(VerifierSchema, "bad shape"), validResult())
	assert.Equal(t, CategorySchemaViolation, cls.Category)
	assert.Equal(t, 1.0, cls.Confidence)
}

func TestClassifierReplayFailure(t *testing.T) {
	c := NewErrorClassifier()
	cls := c.Classify(QScore{Calibrated: 0.9, Signals: healthySignals()}, failingSuite(VerifierReplay, "overlap too low"), validResult())
	assert.Equal(t, CategoryInconsistent, cls.Category)
	assert.InDelta(t, 0.9, cls.Confidence, 0.001)
}

func TestClassifierSmokeFailureSplitsOnReason(t *testing.T) {
	c := NewErrorClassifier()
	score := QScore{Calibrated: 0.9, Signals: healthySignals()}

	cls := c.Classify(score, failingSuite(VerifierSmoke, "cited 0 evidence items, floor is 1"), validResult())
	assert.Equal(t, CategoryMissingEvidence, cls.Category)

	cls = c.Classify(score, failingSuite(VerifierSmoke, "forbidden content pattern present"), validResult())
	assert.Equal(t, CategoryUnknown, cls.Category)
}

func TestClassifierSignalThresholdOrder(t *testing.T) {
	c := NewErrorClassifier()

	t.Run("policy beats confidence", func(t *testing.T) {
		sig := healthySignals()
		sig.PolicyCompliance = 0.4
		sig.Confidence = 0.1
		cls := c.Classify(QScore{Calibrated: 0.9, Signals: sig}, passingSuite(), validResult())
		assert.Equal(t, CategoryPolicyDegraded, cls.Category)
	})

	t.Run("confidence beats latency", func(t *testing.T) {
		sig := healthySignals()
		sig.Confidence = 0.2
		sig.Latency = 0.1
		cls := c.Classify(QScore{Calibrated: 0.9, Signals: sig}, passingSuite(), validResult())
		assert.Equal(t, CategoryLowConfidence, cls.Category)
	})

	t.Run("latency beats coverage", func(t *testing.T) {
		sig := healthySignals()
		sig.Latency = 0.1
		sig.EvidenceCoverage = 0.1
		cls := c.Classify(QScore{Calibrated: 0.9, Signals: sig}, passingSuite(), validResult())
		assert.Equal(t, CategoryTimeout, cls.Category)
	})

	t.Run("coverage alone", func(t *testing.T) {
		sig := healthySignals()
		sig.EvidenceCoverage = 0.3
		cls := c.Classify(QScore{Calibrated: 0.9, Signals: sig}, passingSuite(), validResult())
		assert.Equal(t, CategoryMissingEvidence, cls.Category)
	})
}

func TestClassifierContentScan(t *testing.T) {
	c := NewErrorClassifier()
	score := QScore{Calibrated: 0.9, Signals: healthySignals()}

	r := validResult()
	r.Summary = "the test is flaky and fails intermittently"
	cls := c.Classify(score, passingSuite(), r)
	assert.Equal(t, CategoryFlakyPattern, cls.Category)

	r.Summary = "the submit button locator was not found"
	cls = c.Classify(score, passingSuite(), r)
	assert.Equal(t, CategorySelectorIssue, cls.Category)
}

func TestClassifierLowCalibratedFallback(t *testing.T) {
	c := NewErrorClassifier()
	cls := c.Classify(QScore{Calibrated: 0.4, Signals: healthySignals()}, passingSuite(), validResult())
	assert.Equal(t, CategoryLowConfidence, cls.Category)
	assert.InDelta(t, 0.7, cls.Confidence, 0.001)
}

func TestClassifierDefaultUnknown(t *testing.T) {
	c := NewErrorClassifier()
	cls := c.Classify(QScore{Calibrated: 0.9, Signals: healthySignals()}, passingSuite(), validResult())
	assert.Equal(t, CategoryUnknown, cls.Category)
	assert.Equal(t, 0.5, cls.Confidence)
}
