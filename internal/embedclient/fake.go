package embedclient

import (
	"context"
	"hash/fnv"
	"math"
)

// Fake is a deterministic, in-process Embedder for tests. It is never wired
// into the live dedup path — synthetic vectors there are disallowed by
// design (see SPEC_FULL.md §9) — and is referenced only from _test.go files.
type Fake struct {
	Dimensions int
}

// NewFake builds a deterministic fake embedder producing unit vectors
// derived from a hash of the input text, so equal texts always embed to
// the same vector and distinct texts embed to (very likely) distinct ones.
func NewFake(dimensions int) *Fake {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &Fake{Dimensions: dimensions}
}

func (f *Fake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = f.vectorFor(text)
	}
	return out, nil
}

func (f *Fake) vectorFor(text string) []float32 {
	vec := make([]float32, f.Dimensions)
	seed := fnv.New64a()
	_, _ = seed.Write([]byte(text))
	state := seed.Sum64()

	var norm float64
	for i := range vec {
		state = state*6364136223846793005 + 1442695040888963407
		v := float64(int64(state>>11)) / float64(int64(1)<<52)
		vec[i] = float32(v)
		norm += v * v
	}

	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
