package connectors

import (
	"context"
	"io"
	"path/filepath"

	"ragcore/internal/errs"
	"ragcore/internal/model"
	"ragcore/internal/objectstore"
)

// s3Connector lists and fetches documents out of an S3-compatible bucket
// via the shared objectstore.ObjectStore abstraction.
type s3Connector struct {
	store objectstore.ObjectStore
}

// NewS3 constructs a Connector backed by an already-opened ObjectStore.
func NewS3(store objectstore.ObjectStore) Connector {
	return &s3Connector{store: store}
}

func (c *s3Connector) List(ctx context.Context, params map[string]string) ([]model.Document, error) {
	result, err := c.store.List(ctx, objectstore.ListOptions{Prefix: params["prefix"]})
	if err != nil {
		return nil, &errs.SourceError{Kind: errs.SourceTransient, Path: params["prefix"], Err: err}
	}
	docs := make([]model.Document, 0, len(result.Objects))
	for _, obj := range result.Objects {
		if obj.IsPrefix {
			continue
		}
		docs = append(docs, model.Document{
			SourceID:    obj.Key,
			LogicalPath: obj.Key,
			DisplayName: filepath.Base(obj.Key),
			MimeType:    obj.ContentType,
		})
	}
	return docs, nil
}

func (c *s3Connector) Fetch(ctx context.Context, sourceID string) (model.Document, error) {
	r, attrs, err := c.store.Get(ctx, sourceID)
	if err != nil {
		kind := errs.SourceTransient
		if err == objectstore.ErrNotFound {
			kind = errs.SourceNotFound
		}
		return model.Document{}, &errs.SourceError{Kind: kind, Path: sourceID, Err: err}
	}
	defer r.Close()
	b, err := io.ReadAll(r)
	if err != nil {
		return model.Document{}, &errs.SourceError{Kind: errs.SourceTransient, Path: sourceID, Err: err}
	}
	return model.Document{
		SourceID:    sourceID,
		LogicalPath: sourceID,
		DisplayName: filepath.Base(sourceID),
		MimeType:    attrs.ContentType,
		Bytes:       b,
	}, nil
}
