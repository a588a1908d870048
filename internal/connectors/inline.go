package connectors

import (
	"context"

	"ragcore/internal/model"
)

// inlineText is a single-document connector wrapping text handed directly
// to the ingest-text endpoint rather than fetched from an external source.
type inlineText struct {
	doc model.Document
}

// NewInlineText constructs a Connector that yields exactly one in-memory
// document, used by the ingest-text HTTP endpoint.
func NewInlineText(sourceID, displayName, text string) Connector {
	return &inlineText{doc: model.Document{
		SourceID:    sourceID,
		LogicalPath: sourceID,
		DisplayName: displayName,
		MimeType:    "text/plain",
		Bytes:       []byte(text),
	}}
}

func (c *inlineText) List(context.Context, map[string]string) ([]model.Document, error) {
	return []model.Document{c.doc}, nil
}

func (c *inlineText) Fetch(_ context.Context, sourceID string) (model.Document, error) {
	if sourceID != c.doc.SourceID {
		return model.Document{}, nil
	}
	return c.doc, nil
}
