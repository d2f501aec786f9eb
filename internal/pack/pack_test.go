package pack

import (
	"context"
	"strings"
	"testing"
	"time"

	"contextkit/internal/config"
	"contextkit/internal/evidence"
	"contextkit/internal/policy"
	"contextkit/internal/ranking"
	"contextkit/internal/retrieval"
	"contextkit/internal/slicing"
)

var frozen = time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

func slicedItem(id, source, content string, score float64, created time.Time) slicing.SlicedItem {
	return slicing.SlicedItem{
		Result: ranking.RankedResult{
			Candidate: evidence.Candidate{
				ID:      id,
				Content: content,
				Source:  source,
				Meta: evidence.Metadata{
					CreatedAt: created,
					Source:    source,
				},
			},
			Score: score,
		},
		Content:  content,
		ByteSize: len(content),
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := &Summarizer{MaxSentences: 5}
	got := s.Summarize(nil)
	if got.Text != EmptySummary {
		t.Errorf("text = %q, want %q", got.Text, EmptySummary)
	}
	if len(got.Citations) != 0 {
		t.Errorf("empty input must carry no citations, got %v", got.Citations)
	}
}

func TestSummarizeKeepsSourceOrder(t *testing.T) {
	s := &Summarizer{MaxSentences: 3}
	items := []slicing.SlicedItem{
		slicedItem("a", "wiki", "The deploy failed with a timeout error. Retries did not help at all.", 0.9, frozen),
		slicedItem("b", "wiki", "A fix was applied to the connection pool. The issue was resolved after restart.", 0.8, frozen),
	}
	got := s.Summarize(items)

	// Whatever sentences win, item a's contribution must come before
	// item b's in the joined text.
	aPos := strings.Index(got.Text, "deploy failed")
	bPos := strings.Index(got.Text, "fix was applied")
	if aPos >= 0 && bPos >= 0 && aPos > bPos {
		t.Errorf("sentences out of source order: %q", got.Text)
	}
	if !strings.HasSuffix(got.Text, ".") {
		t.Errorf("summary should end with a period: %q", got.Text)
	}
	if len(got.Citations) == 0 {
		t.Error("summary over real items must cite them")
	}
}

func TestSummarizeRespectsSentenceCap(t *testing.T) {
	s := &Summarizer{MaxSentences: 2}
	items := []slicing.SlicedItem{
		slicedItem("a", "wiki",
			"First sentence about the error. Second sentence with more detail. Third sentence trailing off. Fourth sentence goes nowhere.",
			0.9, frozen),
	}
	got := s.Summarize(items)
	sentences := strings.Count(got.Text, ".")
	if sentences > 2 {
		t.Errorf("kept %d sentences, cap is 2: %q", sentences, got.Text)
	}
}

func TestSummarizeKeywordBonus(t *testing.T) {
	// Two same-length, same-position sentences in separate equal-score
	// items; only one mentions a domain keyword.
	s := &Summarizer{MaxSentences: 1}
	items := []slicing.SlicedItem{
		slicedItem("a", "wiki", "The weather in the harbor was calm", 0.5, frozen),
		slicedItem("b", "wiki", "The database error appeared at noon", 0.5, frozen),
	}
	got := s.Summarize(items)
	if !strings.Contains(got.Text, "error") {
		t.Errorf("keyword sentence should win: %q", got.Text)
	}
}

func TestAffordanceEscalation(t *testing.T) {
	g := &AffordanceGenerator{}
	items := []slicing.SlicedItem{
		slicedItem("a", "alerts", "critical production outage in the payment path", 0.9, frozen),
	}
	got := g.Generate(items)
	if len(got) == 0 || got[0].Action != "escalate_to_human" {
		t.Fatalf("expected escalate_to_human first, got %+v", got)
	}
	if got[0].Confidence != 0.95 {
		t.Errorf("confidence = %v, want 0.95", got[0].Confidence)
	}
}

func TestAffordanceRetryWithHealing(t *testing.T) {
	g := &AffordanceGenerator{}
	items := []slicing.SlicedItem{
		slicedItem("a", "ci", "build failed with exit 1", 0.9, frozen),
		slicedItem("b", "ci", "tests failed again after the revert", 0.8, frozen),
		slicedItem("c", "ci", "deployment error in staging", 0.7, frozen),
	}
	got := g.Generate(items)
	var found *Affordance
	for i := range got {
		if got[i].Action == "retry_with_healing" {
			found = &got[i]
		}
	}
	if found == nil {
		t.Fatalf("expected retry_with_healing, got %+v", got)
	}
	if found.Confidence > 0.9 {
		t.Errorf("confidence %v exceeds cap 0.9", found.Confidence)
	}
}

func TestAffordanceSingleFailureNoRetry(t *testing.T) {
	g := &AffordanceGenerator{}
	items := []slicing.SlicedItem{
		slicedItem("a", "ci", "one test failed but everything else is green and the suite is healthy overall", 0.9, frozen),
		slicedItem("b", "ci", "all other runs are green", 0.8, frozen),
		slicedItem("c", "ci", "nothing notable in the third run", 0.7, frozen),
	}
	for _, a := range g.Generate(items) {
		if a.Action == "retry_with_healing" {
			t.Error("one failure mention must not trigger retry_with_healing")
		}
	}
}

func TestAffordanceRequestMoreContext(t *testing.T) {
	g := &AffordanceGenerator{}
	items := []slicing.SlicedItem{
		slicedItem("a", "wiki", "marginally related note", 0.3, frozen),
	}
	got := g.Generate(items)
	var found bool
	for _, a := range got {
		if a.Action == "request_more_context" {
			found = true
			if a.Confidence != 0.6 {
				t.Errorf("confidence = %v, want 0.6", a.Confidence)
			}
		}
	}
	if !found {
		t.Errorf("few low-score results should request more context, got %+v", got)
	}
}

func TestAffordanceSortedAndCapped(t *testing.T) {
	g := &AffordanceGenerator{}
	items := []slicing.SlicedItem{
		slicedItem("a", "ci", "critical production outage, selector not found, flaky test failed", 0.3, frozen),
		slicedItem("b", "ci", "another failure with an intermittent locator error", 0.3, frozen),
	}
	got := g.Generate(items)
	if len(got) > maxAffordances {
		t.Fatalf("%d affordances exceeds cap %d", len(got), maxAffordances)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Confidence > got[i-1].Confidence {
			t.Errorf("not sorted by confidence: %+v", got)
		}
	}
}

func TestCausalGraphNilCases(t *testing.T) {
	b := &CausalGraphBuilder{}
	if g := b.Build(nil); g != nil {
		t.Error("empty input should build no graph")
	}
	one := []slicing.SlicedItem{slicedItem("a", "wiki", "alone", 0.9, frozen)}
	if g := b.Build(one); g != nil {
		t.Error("single item should build no graph")
	}
	unrelated := []slicing.SlicedItem{
		slicedItem("a", "wiki", "standalone note about caching", 0.9, frozen),
		slicedItem("b", "tickets", "separate note about billing", 0.8, frozen.Add(48*time.Hour)),
	}
	if g := b.Build(unrelated); g != nil {
		t.Error("no inferable edges should build no graph")
	}
}

func TestCausalGraphReferenceEdge(t *testing.T) {
	b := &CausalGraphBuilder{}
	items := []slicing.SlicedItem{
		slicedItem("incident-7", "tickets", "root cause analysis", 0.9, frozen),
		slicedItem("pr-12", "code", "this change fixes incident-7", 0.8, frozen.Add(24*time.Hour)),
	}
	g := b.Build(items)
	if g == nil {
		t.Fatal("reference should produce a graph")
	}
	found := false
	for _, e := range g.Edges {
		if e.From == "pr-12" && e.To == "incident-7" && e.Relation == "references" {
			found = true
		}
	}
	if !found {
		t.Errorf("missing reference edge, got %+v", g.Edges)
	}
}

func TestCausalGraphTemporalEdge(t *testing.T) {
	b := &CausalGraphBuilder{}
	items := []slicing.SlicedItem{
		slicedItem("late", "logs", "second entry", 0.8, frozen.Add(10*time.Minute)),
		slicedItem("early", "logs", "first entry", 0.9, frozen),
	}
	g := b.Build(items)
	if g == nil {
		t.Fatal("same-source items within the window should link")
	}
	found := false
	for _, e := range g.Edges {
		if e.From == "early" && e.To == "late" && e.Relation == "preceded" {
			found = true
		}
	}
	if !found {
		t.Errorf("temporal edge should point earlier to later, got %+v", g.Edges)
	}
}

type fixedGenerator struct {
	name       string
	candidates []evidence.Candidate
}

func (g *fixedGenerator) Name() string    { return g.name }
func (g *fixedGenerator) Available() bool { return true }
func (g *fixedGenerator) Generate(_ context.Context, _ evidence.Query, limit int) ([]evidence.Candidate, error) {
	if len(g.candidates) > limit {
		return g.candidates[:limit], nil
	}
	return g.candidates, nil
}

type allowAllEvaluator struct{}

func (allowAllEvaluator) Evaluate(context.Context, policy.SpecialistMetadata, evidence.Candidate) (policy.Decision, error) {
	return policy.Decision{Allow: true}, nil
}

func testBuilder(t *testing.T, candidates []evidence.Candidate) *Builder {
	t.Helper()
	registry, err := evidence.NewRegistry(&fixedGenerator{name: "fixed", candidates: candidates})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	ranker, err := ranking.NewRanker(config.RankingConfig{
		Weights: config.WeightsConfig{
			Recency: 0.2, Frequency: 0.1, Importance: 0.2, Causality: 0.1,
			NoveltyInverse: 0.1, Trust: 0.2, SensitivityInverse: 0.1,
		},
		MinScore:          0.0,
		RecencyLambda:     0.05,
		MaxExpectedAccess: 50,
	}, evidence.FixedClock{T: frozen}, nil)
	if err != nil {
		t.Fatalf("ranker: %v", err)
	}
	retriever := retrieval.New(registry, ranker, retrieval.Config{})
	slicer := slicing.New(allowAllEvaluator{}, slicing.Limits{MaxBytes: 1 << 20, MaxTokens: 1 << 20, MaxItems: 100})
	return NewBuilder(retriever, slicer, 5, true)
}

func TestBuildEmptyCorpus(t *testing.T) {
	b := testBuilder(t, nil)
	p, err := b.Build(context.Background(), policy.SpecialistMetadata{ID: "s1"}, evidence.Query{Type: evidence.QueryKeyword, Text: "anything"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(p.Evidence) != 0 {
		t.Errorf("evidence = %d, want 0", len(p.Evidence))
	}
	if p.Summary.Text != EmptySummary {
		t.Errorf("summary = %q, want default", p.Summary.Text)
	}
	if len(p.Affordances) != 0 {
		t.Errorf("empty corpus should produce no affordances, got %+v", p.Affordances)
	}
	found := false
	for _, w := range p.Warnings {
		if strings.Contains(w, "no evidence found") {
			found = true
		}
	}
	if !found {
		t.Errorf("missing no-evidence warning, got %v", p.Warnings)
	}
}

func TestBuildFullPipeline(t *testing.T) {
	candidates := []evidence.Candidate{
		{
			ID: "a", Content: "The nightly deploy failed with a connection timeout error in staging.",
			Source: "ci",
			Meta: evidence.Metadata{
				CreatedAt: frozen.Add(-time.Hour), Importance: 0.9, Trust: 0.9,
				Sensitivity: evidence.SensitivityPublic, Source: "ci",
			},
		},
		{
			ID: "b", Content: "A fix restarting the pool resolved the issue, all checks green afterwards.",
			Source: "ci",
			Meta: evidence.Metadata{
				CreatedAt: frozen.Add(-30 * time.Minute), Importance: 0.8, Trust: 0.9,
				Sensitivity: evidence.SensitivityPublic, Source: "ci",
			},
		},
	}
	b := testBuilder(t, candidates)
	p, err := b.Build(context.Background(), policy.SpecialistMetadata{ID: "s1", SecurityLevel: policy.LevelInternal}, evidence.Query{Type: evidence.QueryKeyword, Text: "deploy"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(p.Evidence) != 2 {
		t.Fatalf("evidence = %d, want 2", len(p.Evidence))
	}
	if p.Summary.Text == EmptySummary {
		t.Error("real evidence should summarize")
	}
	if p.ByteSize <= 0 {
		t.Error("byte size should be computed")
	}
	if p.CausalGraph == nil {
		t.Error("same-source items 30m apart should yield a temporal edge")
	}
	if p.Timings.Total <= 0 {
		t.Error("total timing should be recorded")
	}
}

func TestBuildHonorsRequestLimit(t *testing.T) {
	candidates := []evidence.Candidate{
		{
			ID: "a", Content: "First entry about the deploy.", Source: "ci",
			Meta: evidence.Metadata{
				CreatedAt: frozen.Add(-time.Hour), Importance: 0.9, Trust: 0.9,
				Sensitivity: evidence.SensitivityPublic, Source: "ci",
			},
		},
		{
			ID: "b", Content: "Second entry about the deploy.", Source: "ci",
			Meta: evidence.Metadata{
				CreatedAt: frozen.Add(-30 * time.Minute), Importance: 0.8, Trust: 0.9,
				Sensitivity: evidence.SensitivityPublic, Source: "ci",
			},
		},
	}
	b := testBuilder(t, candidates)
	q := evidence.Query{Type: evidence.QueryKeyword, Text: "deploy", Limit: 1}
	p, err := b.Build(context.Background(), policy.SpecialistMetadata{ID: "s1", SecurityLevel: policy.LevelInternal}, q)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(p.Evidence) != 1 {
		t.Fatalf("evidence = %d, want 1", len(p.Evidence))
	}
}
