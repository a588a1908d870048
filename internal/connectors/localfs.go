package connectors

import (
	"context"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"ragcore/internal/errs"
	"ragcore/internal/model"
)

// localFS walks a directory tree on the local filesystem, grounded on the
// teacher's now-removed directory-walking document reader.
type localFS struct{}

// NewLocalFS constructs the local-directory Connector.
func NewLocalFS() Connector { return &localFS{} }

func (c *localFS) List(ctx context.Context, params map[string]string) ([]model.Document, error) {
	root := params["path"]
	if root == "" {
		return nil, &errs.SourceError{Kind: errs.SourcePermanent, Path: root, Err: os.ErrInvalid}
	}
	var docs []model.Document
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		docs = append(docs, model.Document{
			SourceID:    path,
			LogicalPath: strings.TrimPrefix(path, root),
			DisplayName: d.Name(),
			MimeType:    mime.TypeByExtension(filepath.Ext(path)),
			LocalPath:   path,
		})
		return nil
	})
	if err != nil {
		return nil, &errs.SourceError{Kind: errs.SourceTransient, Path: root, Err: err}
	}
	return docs, nil
}

func (c *localFS) Fetch(_ context.Context, sourceID string) (model.Document, error) {
	b, err := os.ReadFile(sourceID)
	if err != nil {
		kind := errs.SourceTransient
		if os.IsNotExist(err) {
			kind = errs.SourceNotFound
		}
		return model.Document{}, &errs.SourceError{Kind: kind, Path: sourceID, Err: err}
	}
	return model.Document{
		SourceID:    sourceID,
		LogicalPath: sourceID,
		DisplayName: filepath.Base(sourceID),
		MimeType:    mime.TypeByExtension(filepath.Ext(sourceID)),
		Bytes:       b,
		LocalPath:   sourceID,
	}, nil
}
