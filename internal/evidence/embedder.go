package evidence

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Embedder turns text into a fixed-dimension vector. Real deployments
// plug in a model-backed implementation; the hashing embedder below is
// the deterministic local default.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// HashingEmbedder produces embeddings by feature-hashing tokens into a
// fixed number of buckets. It captures lexical overlap rather than
// semantics, but it is deterministic and exercises the vector path
// end to end without an external model.
type HashingEmbedder struct {
	Dim int
}

// NewHashingEmbedder returns an embedder with the given dimension
// (default 256 when non-positive).
func NewHashingEmbedder(dim int) *HashingEmbedder {
	if dim <= 0 {
		dim = 256
	}
	return &HashingEmbedder{Dim: dim}
}

func (e *HashingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.Dim)
	for _, tok := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		bucket := int(h.Sum32()) % e.Dim
		if bucket < 0 {
			bucket += e.Dim
		}
		vec[bucket]++
	}

	// L2 normalize so cosine similarity behaves.
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
