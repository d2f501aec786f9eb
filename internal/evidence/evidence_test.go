package evidence

import (
	"context"
	"testing"
	"time"

	"contextkit/internal/store"
)

func TestParseSensitivity(t *testing.T) {
	cases := map[string]Sensitivity{
		"public":       SensitivityPublic,
		"internal":     SensitivityInternal,
		"confidential": SensitivityConfidential,
		"restricted":   SensitivityRestricted,
		"bogus":        SensitivityInternal, // unknown defaults to internal
	}
	for name, want := range cases {
		if got := ParseSensitivity(name); got != want {
			t.Errorf("ParseSensitivity(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestSensitivityNormalized(t *testing.T) {
	if SensitivityPublic.Normalized() != 0 {
		t.Error("public should normalize to 0")
	}
	if SensitivityRestricted.Normalized() != 1 {
		t.Error("restricted should normalize to 1")
	}
}

func TestRegistry(t *testing.T) {
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	ft := NewFullTextGenerator(s)
	vec := NewVectorGenerator(s, NewHashingEmbedder(64))

	reg, err := NewRegistry(ft, vec)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	if len(reg.All()) != 2 {
		t.Errorf("expected 2 generators, got %d", len(reg.All()))
	}
	if reg.Lookup("fulltext") != ft {
		t.Error("Lookup(fulltext) returned wrong generator")
	}

	if _, err := NewRegistry(); err == nil {
		t.Error("empty registry should be rejected")
	}
	if _, err := NewRegistry(ft, ft); err == nil {
		t.Error("duplicate generator names should be rejected")
	}
}

func TestFullTextGenerator(t *testing.T) {
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	ctx := context.Background()

	err = s.Put(ctx, store.Record{
		ID: "ev-1", Content: "login page selector changed after redesign",
		Source: "fulltext", CreatedAt: time.Now(), Sensitivity: "public",
		Importance: 0.6, Trust: 0.9,
	})
	if err != nil {
		t.Fatal(err)
	}

	g := NewFullTextGenerator(s)
	if !g.Available() {
		t.Fatal("generator should be available")
	}

	cands, err := g.Generate(ctx, Query{Type: QueryKeyword, Text: "selector"}, 10)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(cands) != 1 || cands[0].ID != "ev-1" {
		t.Fatalf("expected ev-1, got %+v", cands)
	}
	if cands[0].Meta.Sensitivity != SensitivityPublic {
		t.Errorf("sensitivity not mapped: %v", cands[0].Meta.Sensitivity)
	}

	// Empty query text yields no candidates, no error.
	cands, err = g.Generate(ctx, Query{Type: QueryKeyword}, 10)
	if err != nil || cands != nil {
		t.Errorf("empty query: got %v, %v", cands, err)
	}
}

func TestVectorGenerator(t *testing.T) {
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	ctx := context.Background()
	emb := NewHashingEmbedder(64)

	for id, content := range map[string]string{
		"ev-1": "database connection pool exhausted",
		"ev-2": "css grid layout overflow on mobile",
	} {
		if err := s.Put(ctx, store.Record{ID: id, Content: content, Source: "vector", CreatedAt: time.Now(), Sensitivity: "internal"}); err != nil {
			t.Fatal(err)
		}
		vec, _ := emb.Embed(ctx, content)
		if err := s.PutEmbedding(ctx, id, vec); err != nil {
			t.Fatal(err)
		}
	}

	g := NewVectorGenerator(s, emb)
	cands, err := g.Generate(ctx, Query{Type: QuerySemantic, Text: "database connection pool"}, 1)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(cands) != 1 || cands[0].ID != "ev-1" {
		t.Fatalf("expected ev-1 nearest, got %+v", cands)
	}
}

func TestHashingEmbedder_Deterministic(t *testing.T) {
	e := NewHashingEmbedder(128)
	a, _ := e.Embed(context.Background(), "same input text")
	b, _ := e.Embed(context.Background(), "same input text")
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("embedding is not deterministic")
		}
	}
}
