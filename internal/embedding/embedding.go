// Package embedding implements the Embedder contract (spec section 4.1):
// embed_batch(texts[]) -> vectors[dim][], with a declared dimension.
package embedding

import "context"

// Embedder converts text into vectors. Implementations must accept batches
// of at least 64 texts, sub-batching internally if the upstream provider
// caps batch size lower than that.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}
