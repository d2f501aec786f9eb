package pack

import (
	"sort"
	"strings"
	"time"

	"contextkit/internal/slicing"
)

// CausalEdge links two evidence items with a direction and a relation
// label.
type CausalEdge struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	Relation string  `json:"relation"`
	Weight   float64 `json:"weight"`
}

// CausalGraph is the inferred structure over the slice. Nodes are
// evidence IDs already present in the slice.
type CausalGraph struct {
	Nodes []string     `json:"nodes"`
	Edges []CausalEdge `json:"edges"`
}

// proximityWindow bounds how far apart two same-source items may be to
// still count as temporally related.
const proximityWindow = time.Hour

// CausalGraphBuilder infers edges from the gathered slice alone, with
// no store access. Two signals: an item's content explicitly
// mentioning another item's ID, and same-source items created within a
// short window of each other.
type CausalGraphBuilder struct{}

// Build returns nil when fewer than two items are present or no edge
// can be inferred.
func (b *CausalGraphBuilder) Build(items []slicing.SlicedItem) *CausalGraph {
	if len(items) < 2 {
		return nil
	}

	var edges []CausalEdge
	seen := map[[2]string]bool{}
	addEdge := func(e CausalEdge) {
		key := [2]string{e.From, e.To}
		if !seen[key] {
			seen[key] = true
			edges = append(edges, e)
		}
	}

	for i, a := range items {
		idA := a.Result.Candidate.ID
		for j, bItem := range items {
			if i == j {
				continue
			}
			idB := bItem.Result.Candidate.ID
			if strings.Contains(a.Content, idB) {
				addEdge(CausalEdge{From: idA, To: idB, Relation: "references", Weight: 1.0})
			}
		}
	}

	for i, a := range items {
		for j := i + 1; j < len(items); j++ {
			bItem := items[j]
			if a.Result.Candidate.Meta.Source != bItem.Result.Candidate.Meta.Source {
				continue
			}
			ta, tb := a.Result.Candidate.Meta.CreatedAt, bItem.Result.Candidate.Meta.CreatedAt
			gap := tb.Sub(ta)
			if gap < 0 {
				gap = -gap
			}
			if gap > 0 && gap <= proximityWindow {
				from, to := a, bItem
				if tb.Before(ta) {
					from, to = bItem, a
				}
				addEdge(CausalEdge{
					From:     from.Result.Candidate.ID,
					To:       to.Result.Candidate.ID,
					Relation: "preceded",
					Weight:   0.5,
				})
			}
		}
	}

	if len(edges) == 0 {
		return nil
	}

	nodeSet := map[string]bool{}
	for _, e := range edges {
		nodeSet[e.From] = true
		nodeSet[e.To] = true
	}
	nodes := make([]string, 0, len(nodeSet))
	for n := range nodeSet {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)

	return &CausalGraph{Nodes: nodes, Edges: edges}
}
