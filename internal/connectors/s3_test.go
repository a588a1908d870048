package connectors

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragcore/internal/errs"
	"ragcore/internal/objectstore"
)

func TestS3ConnectorListReturnsDocumentsUnderPrefix(t *testing.T) {
	store := objectstore.NewMemoryStore()
	ctx := context.Background()
	_, err := store.Put(ctx, "reports/q1.md", strings.NewReader("q1 body"), objectstore.PutOptions{ContentType: "text/markdown"})
	require.NoError(t, err)
	_, err = store.Put(ctx, "other/ignored.md", strings.NewReader("ignored"), objectstore.PutOptions{})
	require.NoError(t, err)

	c := NewS3(store)
	docs, err := c.List(ctx, map[string]string{"prefix": "reports/"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "reports/q1.md", docs[0].SourceID)
	assert.Equal(t, "q1.md", docs[0].DisplayName)
	assert.Equal(t, "text/markdown", docs[0].MimeType)
}

func TestS3ConnectorFetchReadsObjectBytes(t *testing.T) {
	store := objectstore.NewMemoryStore()
	ctx := context.Background()
	_, err := store.Put(ctx, "notes/a.txt", strings.NewReader("hello from s3"), objectstore.PutOptions{ContentType: "text/plain"})
	require.NoError(t, err)

	c := NewS3(store)
	doc, err := c.Fetch(ctx, "notes/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello from s3", string(doc.Bytes))
	assert.Equal(t, "text/plain", doc.MimeType)
}

func TestS3ConnectorFetchMissingKeyIsNotFoundSourceError(t *testing.T) {
	store := objectstore.NewMemoryStore()
	c := NewS3(store)

	_, err := c.Fetch(context.Background(), "missing/key.txt")
	require.Error(t, err)
	var srcErr *errs.SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, errs.SourceNotFound, srcErr.Kind)
}
