// Package connectors fetches documents from external sources (local
// filesystem, object storage, web pages, and other content systems) into
// the uniform model.Document shape the parser consumes.
package connectors

import (
	"context"

	"ragcore/internal/model"
)

// Connector lists and fetches documents from one source family.
type Connector interface {
	// List enumerates documents available under the given source spec
	// params, without fetching their bodies.
	List(ctx context.Context, params map[string]string) ([]model.Document, error)
	// Fetch retrieves one document's bytes given its SourceID.
	Fetch(ctx context.Context, sourceID string) (model.Document, error)
}

// Registry resolves a source family name ("local_fs", "s3", ...) to its
// Connector.
type Registry map[string]Connector
