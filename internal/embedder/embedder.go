// Package embedder provides embedding backends for the retrieval evaluator.
//
// A Backend performs a single embedding request. Backends compose: Cache and Breaker wrap
// another Backend, and Batcher turns any Backend into an evaluation.Embedder by splitting
// the input into batches and fanning them out concurrently.
package embedder

import (
	"context"
	"math"
)

// Backend embeds one batch of texts in a single request.
// The returned slice is parallel to texts.
type Backend interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// BackendFunc adapts a function to the Backend interface.
type BackendFunc func(ctx context.Context, texts []string) ([][]float32, error)

// EmbedBatch calls f.
func (f BackendFunc) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return f(ctx, texts)
}

// l2Normalize scales vec to unit length in place. Zero vectors are left unchanged.
func l2Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
