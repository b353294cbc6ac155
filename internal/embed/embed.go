// Package embed defines the embedding engine contract used by the chunking
// stage and an HTTP implementation backed by an Ollama-compatible server.
package embed

import (
	"context"
	"math"
)

// Engine generates fixed-dimension vector embeddings for batches of text.
type Engine interface {
	// EmbedBatch returns one vector per input, all of Dimensions() length.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of produced vectors.
	Dimensions() int

	// Model returns the model identifier in use.
	Model() string
}

// Normalize scales v to unit L2 norm in place. A zero vector is left as-is.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}
