package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// hashEmbedder is a deterministic, dependency-free Embedder: each text is
// split into 3-grams, each gram is hashed into a bucket of a fixed-size
// vector, and the result is L2-normalized. Two calls on the same text
// always produce the same vector. Useful for local dev and tests; the
// factory selects it for EMBEDDING_KIND "hash", "local" or empty.
type hashEmbedder struct {
	dimension int
}

// NewHash constructs a deterministic FNV-hash embedder of the given
// dimension.
func NewHash(dimension int) Embedder {
	if dimension <= 0 {
		dimension = 256
	}
	return &hashEmbedder{dimension: dimension}
}

func (h *hashEmbedder) Dimension() int { return h.dimension }

func (h *hashEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.embedOne(t)
	}
	return out, nil
}

func (h *hashEmbedder) embedOne(text string) []float32 {
	v := make([]float32, h.dimension)
	grams := trigrams(strings.ToLower(text))
	if len(grams) == 0 {
		grams = []string{strings.ToLower(text)}
	}
	for _, g := range grams {
		sum := fnv.New32a()
		sum.Write([]byte(g))
		bucket := sum.Sum32() % uint32(h.dimension)
		v[bucket] += 1
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

func trigrams(s string) []string {
	runes := []rune(s)
	if len(runes) < 3 {
		if len(runes) == 0 {
			return nil
		}
		return []string{string(runes)}
	}
	out := make([]string, 0, len(runes)-2)
	for i := 0; i+3 <= len(runes); i++ {
		out = append(out, string(runes[i:i+3]))
	}
	return out
}
