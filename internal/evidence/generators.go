package evidence

import (
	"context"
	"fmt"

	"contextkit/internal/store"
)

// candidateFromRecord converts a store record to the retrieval model.
func candidateFromRecord(rec store.Record, source string) Candidate {
	return Candidate{
		ID:      rec.ID,
		Content: rec.Content,
		Source:  source,
		Meta: Metadata{
			CreatedAt:   rec.CreatedAt,
			AccessCount: rec.AccessCount,
			Importance:  rec.Importance,
			Trust:       rec.Trust,
			Sensitivity: ParseSensitivity(rec.Sensitivity),
			Source:      source,
		},
	}
}

// FullTextGenerator serves keyword and hybrid queries from the FTS5
// index. This is the mandatory generator.
type FullTextGenerator struct {
	store *store.Store
}

// NewFullTextGenerator wraps the store's FTS index.
func NewFullTextGenerator(s *store.Store) *FullTextGenerator {
	return &FullTextGenerator{store: s}
}

func (g *FullTextGenerator) Name() string { return "fulltext" }

func (g *FullTextGenerator) Available() bool { return g.store != nil }

func (g *FullTextGenerator) Generate(ctx context.Context, q Query, limit int) ([]Candidate, error) {
	if q.Text == "" {
		return nil, nil
	}
	recs, err := g.store.SearchText(ctx, q.Text, limit)
	if err != nil {
		return nil, fmt.Errorf("fulltext search: %w", err)
	}
	out := make([]Candidate, 0, len(recs))
	for _, rec := range recs {
		out = append(out, candidateFromRecord(rec, g.Name()))
	}
	return out, nil
}

// VectorGenerator serves semantic and hybrid queries by embedding the
// query text and ranking stored embeddings by cosine similarity.
type VectorGenerator struct {
	store    *store.Store
	embedder Embedder
}

// NewVectorGenerator wraps the store's embedding table.
func NewVectorGenerator(s *store.Store, e Embedder) *VectorGenerator {
	return &VectorGenerator{store: s, embedder: e}
}

func (g *VectorGenerator) Name() string { return "vector" }

func (g *VectorGenerator) Available() bool { return g.store != nil && g.embedder != nil }

func (g *VectorGenerator) Generate(ctx context.Context, q Query, limit int) ([]Candidate, error) {
	if q.Text == "" {
		return nil, nil
	}
	vec, err := g.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	recs, err := g.store.SearchVector(ctx, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	out := make([]Candidate, 0, len(recs))
	for _, rec := range recs {
		out = append(out, candidateFromRecord(rec, g.Name()))
	}
	return out, nil
}

// GraphGenerator serves graph-traversal queries by walking the edge
// table out from the requested seed IDs.
type GraphGenerator struct {
	store *store.Store

	// DefaultDepth applies when the query omits graph params depth.
	DefaultDepth int
}

// NewGraphGenerator wraps the store's edge table.
func NewGraphGenerator(s *store.Store) *GraphGenerator {
	return &GraphGenerator{store: s, DefaultDepth: 2}
}

func (g *GraphGenerator) Name() string { return "graph" }

func (g *GraphGenerator) Available() bool { return g.store != nil }

func (g *GraphGenerator) Generate(ctx context.Context, q Query, limit int) ([]Candidate, error) {
	if q.GraphParams == nil || len(q.GraphParams.SeedIDs) == 0 {
		return nil, nil
	}
	depth := q.GraphParams.Depth
	if depth <= 0 {
		depth = g.DefaultDepth
	}
	recs, err := g.store.Neighbors(ctx, q.GraphParams.SeedIDs, depth, limit)
	if err != nil {
		return nil, fmt.Errorf("graph traversal: %w", err)
	}
	out := make([]Candidate, 0, len(recs))
	for _, rec := range recs {
		out = append(out, candidateFromRecord(rec, g.Name()))
	}
	return out, nil
}
