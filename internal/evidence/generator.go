package evidence

import (
	"context"
	"fmt"
)

// Generator fetches raw candidates from one evidence store.
// Implementations declare availability and must never block the
// pipeline: a slow or failing generator is skipped, not waited on.
type Generator interface {
	// Name identifies the generator in logs, metrics, and results.
	Name() string

	// Available reports whether the backing store can serve queries
	// right now.
	Available() bool

	// Generate returns up to limit candidates for the query.
	Generate(ctx context.Context, q Query, limit int) ([]Candidate, error)
}

// Registry holds the generators selected by configuration. It is
// built once at startup and passed by reference into the retriever;
// tests substitute fakes at this boundary.
type Registry struct {
	generators []Generator
	byName     map[string]Generator
}

// NewRegistry builds a registry. The first generator is conventionally
// the mandatory full-text one; optional generators follow.
func NewRegistry(gens ...Generator) (*Registry, error) {
	r := &Registry{byName: make(map[string]Generator, len(gens))}
	for _, g := range gens {
		if g == nil {
			return nil, fmt.Errorf("nil generator in registry")
		}
		if _, dup := r.byName[g.Name()]; dup {
			return nil, fmt.Errorf("duplicate generator %q", g.Name())
		}
		r.generators = append(r.generators, g)
		r.byName[g.Name()] = g
	}
	if len(r.generators) == 0 {
		return nil, fmt.Errorf("registry requires at least one generator")
	}
	return r, nil
}

// All returns the registered generators in registration order.
func (r *Registry) All() []Generator {
	return r.generators
}

// Lookup returns the named generator, or nil.
func (r *Registry) Lookup(name string) Generator {
	return r.byName[name]
}
