// Package retrieval fans a query out to every available candidate
// generator, pools the raw candidates, and ranks them once. A slow or
// failing generator degrades to an empty contribution; it never aborts
// the request.
package retrieval

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"contextkit/internal/evidence"
	"contextkit/internal/logging"
	"contextkit/internal/metrics"
	"contextkit/internal/ranking"
)

// Config bounds the fan-out.
type Config struct {
	// CandidateLimit is passed to each generator.
	CandidateLimit int

	// ResultLimit truncates the ranked output.
	ResultLimit int

	// GeneratorTimeout bounds each generator call.
	GeneratorTimeout time.Duration

	// GatherTimeout bounds the whole gathering phase, capping the sum
	// of generator latencies rather than just the slowest one.
	GatherTimeout time.Duration
}

// Result is the outcome of one retrieval.
type Result struct {
	Results         []ranking.RankedResult `json:"results"`
	TotalCandidates int                    `json:"total_candidates"`
	TotalIncluded   int                    `json:"total_included"`
	Sources         []string               `json:"sources"`
	GatherDuration  time.Duration          `json:"gather_duration"`
	RankDuration    time.Duration          `json:"rank_duration"`
	Warnings        []string               `json:"warnings,omitempty"`
}

// Retriever coordinates the registered generators and the ranker.
type Retriever struct {
	registry *evidence.Registry
	ranker   *ranking.Ranker
	cfg      Config
	log      *zap.Logger
}

// New builds a retriever over the registry. The registry is shared,
// constructed once at startup; the retriever holds it by reference.
func New(registry *evidence.Registry, ranker *ranking.Ranker, cfg Config) *Retriever {
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = 200
	}
	if cfg.ResultLimit <= 0 {
		cfg.ResultLimit = 50
	}
	if cfg.GeneratorTimeout <= 0 {
		cfg.GeneratorTimeout = 5 * time.Second
	}
	if cfg.GatherTimeout <= 0 {
		cfg.GatherTimeout = 15 * time.Second
	}
	return &Retriever{
		registry: registry,
		ranker:   ranker,
		cfg:      cfg,
		log:      logging.Get(logging.CategoryRetrieval),
	}
}

// Retrieve gathers candidates from every available generator
// concurrently, ranks the pooled set once, and truncates to the
// requested result limit. A query without a limit uses the configured
// default.
func (r *Retriever) Retrieve(ctx context.Context, q evidence.Query) (*Result, error) {
	gatherStart := time.Now()
	gatherCtx, cancel := context.WithTimeout(ctx, r.cfg.GatherTimeout)
	defer cancel()

	var (
		mu       sync.Mutex
		pooled   []evidence.Candidate
		sources  []string
		warnings []string
	)

	eg, egCtx := errgroup.WithContext(gatherCtx)
	for _, gen := range r.registry.All() {
		gen := gen
		if !gen.Available() {
			r.log.Warn("generator unavailable, skipping",
				zap.String("generator", gen.Name()))
			metrics.RecordGeneratorFailure(gen.Name())
			mu.Lock()
			warnings = append(warnings, "generator unavailable: "+gen.Name())
			mu.Unlock()
			continue
		}

		eg.Go(func() error {
			genCtx, genCancel := context.WithTimeout(egCtx, r.cfg.GeneratorTimeout)
			defer genCancel()

			candidates, err := gen.Generate(genCtx, q, r.cfg.CandidateLimit)
			if err != nil {
				// Degrade to an empty contribution; the request goes on.
				r.log.Warn("generator failed, contributing nothing",
					zap.String("generator", gen.Name()), zap.Error(err))
				metrics.RecordGeneratorFailure(gen.Name())
				mu.Lock()
				warnings = append(warnings, "generator failed: "+gen.Name())
				mu.Unlock()
				return nil
			}

			mu.Lock()
			pooled = append(pooled, candidates...)
			if len(candidates) > 0 {
				sources = append(sources, gen.Name())
			}
			mu.Unlock()
			return nil
		})
	}
	// Generator errors are swallowed above, so Wait only observes
	// context cancellation.
	_ = eg.Wait()
	gatherDuration := time.Since(gatherStart)
	metrics.RecordRetrievalStage("gather", gatherDuration.Seconds())

	rankStart := time.Now()
	included := r.ranker.RankAndFilter(pooled)
	limit := r.cfg.ResultLimit
	if q.Limit > 0 {
		limit = q.Limit
	}
	if len(included) > limit {
		included = included[:limit]
	}
	rankDuration := time.Since(rankStart)
	metrics.RecordRetrievalStage("rank", rankDuration.Seconds())

	r.log.Debug("retrieval complete",
		zap.Int("candidates", len(pooled)),
		zap.Int("included", len(included)),
		zap.Strings("sources", sources),
		zap.Duration("gather", gatherDuration),
		zap.Duration("rank", rankDuration))

	return &Result{
		Results:         included,
		TotalCandidates: len(pooled),
		TotalIncluded:   len(included),
		Sources:         sources,
		GatherDuration:  gatherDuration,
		RankDuration:    rankDuration,
		Warnings:        warnings,
	}, nil
}
