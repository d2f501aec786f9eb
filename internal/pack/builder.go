package pack

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"contextkit/internal/evidence"
	"contextkit/internal/logging"
	"contextkit/internal/metrics"
	"contextkit/internal/policy"
	"contextkit/internal/retrieval"
	"contextkit/internal/slicing"
)

// Timings records how long each assembly stage took.
type Timings struct {
	Retrieve    time.Duration `json:"retrieve"`
	Slice       time.Duration `json:"slice"`
	Summarize   time.Duration `json:"summarize"`
	Affordances time.Duration `json:"affordances"`
	CausalGraph time.Duration `json:"causal_graph"`
	Total       time.Duration `json:"total"`
}

// ContextPack is the unit delivered to a specialist. Built fresh per
// request and never mutated after return.
type ContextPack struct {
	Query       evidence.Query        `json:"query"`
	Summary     Summary               `json:"summary"`
	Evidence    []slicing.SlicedItem  `json:"evidence"`
	CausalGraph *CausalGraph          `json:"causal_graph,omitempty"`
	Affordances []Affordance          `json:"affordances"`
	Slice       *slicing.ContextSlice `json:"slice"`
	Sources     []string              `json:"sources"`
	Timings     Timings               `json:"timings"`
	ByteSize    int                   `json:"byte_size"`
	Warnings    []string              `json:"warnings,omitempty"`
}

// Builder wires the retrieval, slicing, and enrichment stages.
type Builder struct {
	retriever   *retrieval.Retriever
	slicer      *slicing.Slicer
	summarizer  *Summarizer
	affordances *AffordanceGenerator
	causal      *CausalGraphBuilder
	enableGraph bool
	log         *zap.Logger
}

// NewBuilder assembles a Builder. The causal graph stage only runs
// when enableGraph is set.
func NewBuilder(retriever *retrieval.Retriever, slicer *slicing.Slicer, summarySentences int, enableGraph bool) *Builder {
	return &Builder{
		retriever:   retriever,
		slicer:      slicer,
		summarizer:  &Summarizer{MaxSentences: summarySentences},
		affordances: &AffordanceGenerator{},
		causal:      &CausalGraphBuilder{},
		enableGraph: enableGraph,
		log:         logging.Get(logging.CategoryPack),
	}
}

// Build runs the full pipeline for one specialist request.
func (b *Builder) Build(ctx context.Context, specialist policy.SpecialistMetadata, q evidence.Query) (*ContextPack, error) {
	start := time.Now()
	var timings Timings

	retrieved, err := b.retriever.Retrieve(ctx, q)
	if err != nil {
		return nil, err
	}
	timings.Retrieve = time.Since(start)
	metrics.RecordRetrievalStage("retrieve", timings.Retrieve.Seconds())

	sliceStart := time.Now()
	slice, err := b.slicer.Slice(ctx, specialist, retrieved.Results)
	if err != nil {
		return nil, err
	}
	timings.Slice = time.Since(sliceStart)
	metrics.RecordRetrievalStage("slice", timings.Slice.Seconds())

	sumStart := time.Now()
	summary := b.summarizer.Summarize(slice.Items)
	timings.Summarize = time.Since(sumStart)

	affStart := time.Now()
	affordances := b.affordances.Generate(slice.Items)
	timings.Affordances = time.Since(affStart)

	var graph *CausalGraph
	if b.enableGraph {
		graphStart := time.Now()
		graph = b.causal.Build(slice.Items)
		timings.CausalGraph = time.Since(graphStart)
	}

	warnings := append([]string(nil), retrieved.Warnings...)
	warnings = append(warnings, slice.Warnings...)
	if len(retrieved.Results) == 0 {
		warnings = append(warnings, "no evidence found for query")
	}

	timings.Total = time.Since(start)
	p := &ContextPack{
		Query:       q,
		Summary:     summary,
		Evidence:    slice.Items,
		CausalGraph: graph,
		Affordances: affordances,
		Slice:       slice,
		Sources:     retrieved.Sources,
		Timings:     timings,
		Warnings:    warnings,
	}
	p.ByteSize = serializedSize(p)

	b.log.Info("pack built",
		zap.Int("evidence", len(p.Evidence)),
		zap.Int("affordances", len(p.Affordances)),
		zap.Int("bytes", p.ByteSize),
		zap.Duration("total", timings.Total))
	return p, nil
}

func serializedSize(p *ContextPack) int {
	raw, err := json.Marshal(p)
	if err != nil {
		return 0
	}
	return len(raw)
}
