package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// StaticEmbedder produces deterministic pseudo-vectors from the input text.
// It exists for tests and offline runs; similar texts do not get similar
// vectors, but identical texts always get identical ones.
type StaticEmbedder struct {
	dim int
}

var _ Embedder = (*StaticEmbedder)(nil)

func NewStaticEmbedder(dim int) *StaticEmbedder {
	return &StaticEmbedder{dim: dim}
}

// EmbedTexts implements Embedder.EmbedTexts
func (e *StaticEmbedder) EmbedTexts(ctx context.Context, taskType TaskType, texts ...string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vectorFor(text)
	}
	return out, nil
}

func (e *StaticEmbedder) vectorFor(text string) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, e.dim)
	var norm float64
	state := seed
	for i := range vec {
		// xorshift64
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		v := float32(int64(state%2000)-1000) / 1000
		vec[i] = v
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		n := float32(math.Sqrt(norm))
		for i := range vec {
			vec[i] /= n
		}
	}
	return vec
}

// Dimension implements Embedder.Dimension
func (e *StaticEmbedder) Dimension() int {
	return e.dim
}
