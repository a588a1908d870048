// Package kgextract turns chunk text into entity-relation triples, filling
// the extraction gap the teacher's rag/ingest scaffolding left as no-op
// EntityExtractor/LinkExtractor stubs.
package kgextract

import (
	"context"

	"ragcore/internal/model"
)

// Extractor pulls triples out of a single chunk's text, bounded by
// maxTriples.
type Extractor interface {
	Extract(ctx context.Context, chunk model.Chunk, maxTriples int) ([]model.Triple, error)
}
