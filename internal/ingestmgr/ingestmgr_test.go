package ingestmgr

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragcore/internal/connectors"
	"ragcore/internal/embedding"
	"ragcore/internal/index"
	"ragcore/internal/kgextract"
	"ragcore/internal/model"
	"ragcore/internal/status"
	"ragcore/internal/store"
)

type fakeConnector struct {
	docs  []model.Document
	bytes map[string][]byte
	delay time.Duration
}

func (f *fakeConnector) List(context.Context, map[string]string) ([]model.Document, error) {
	return f.docs, nil
}

func (f *fakeConnector) Fetch(_ context.Context, sourceID string) (model.Document, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	for _, d := range f.docs {
		if d.SourceID == sourceID {
			d.Bytes = f.bytes[sourceID]
			return d, nil
		}
	}
	return model.Document{}, nil
}

type fakeParser struct{}

func (fakeParser) Parse(_ context.Context, doc model.Document) (model.ParsedDocument, error) {
	return model.ParsedDocument{Plaintext: string(doc.Bytes)}, nil
}

func newTestBuilder() *index.Builder {
	return &index.Builder{
		Embedder:     embedding.NewHash(16),
		VectorStore:  store.NewMemoryVector(16),
		LexicalStore: store.NewBM25Lexical(),
		GraphStore:   store.NewMemoryGraph(),
		KGExtractor:  kgextract.NewSimple(),
	}
}

func TestManagerRunCompletesAllFiles(t *testing.T) {
	conn := &fakeConnector{
		docs: []model.Document{
			{SourceID: "a.txt", LogicalPath: "a.txt", DisplayName: "a"},
			{SourceID: "b.txt", LogicalPath: "b.txt", DisplayName: "b"},
		},
		bytes: map[string][]byte{
			"a.txt": []byte("Alpha Centauri is a star system. Beta Orionis is another."),
			"b.txt": []byte("Gamma Ray bursts are energetic. Delta Force is a unit."),
		},
	}

	m := &Manager{
		Connectors: connectors.Registry{"local": conn},
		Parser:     fakeParser{},
		Indexer:    newTestBuilder(),
		Status:     status.New(time.Hour, nil),
		Chunks:     NewChunkRegistry(),
	}

	req := RunRequest{
		RunID:        "run-1",
		SourceSpec:   model.SourceSpec{Family: "local"},
		ChunkSize:    64,
		ChunkOverlap: 0,
		ExtractGraph: true,
		MaxTriplets:  5,
	}

	m.Run(context.Background(), req)

	run, ok := m.Status.Get("run-1")
	require.True(t, ok)
	assert.Equal(t, model.PhaseDone, run.Phase)
	assert.Equal(t, 2, run.FilesDone)
	assert.Equal(t, 100, run.Percent)
	assert.Greater(t, run.Counters.Chunks, 0)
	assert.NotEmpty(t, m.Chunks.ChunkIDsForDoc("a.txt"))
}

func TestManagerRunUnknownFamilyFails(t *testing.T) {
	m := &Manager{
		Connectors: connectors.Registry{},
		Parser:     fakeParser{},
		Indexer:    newTestBuilder(),
		Status:     status.New(time.Hour, nil),
		Chunks:     NewChunkRegistry(),
	}

	req := RunRequest{RunID: "run-2", SourceSpec: model.SourceSpec{Family: "nope"}}
	m.Run(context.Background(), req)

	run, ok := m.Status.Get("run-2")
	require.True(t, ok)
	assert.Equal(t, model.PhaseFailed, run.Phase)
	assert.Equal(t, "unknown_error", run.ErrorKind)
}

func TestManagerRunRespectsCancellation(t *testing.T) {
	docs := make([]model.Document, 20)
	bytesByID := map[string][]byte{}
	for i := range docs {
		id := string(rune('a' + i))
		docs[i] = model.Document{SourceID: id, LogicalPath: id, DisplayName: id}
		bytesByID[id] = []byte("Some Text About Topic " + id + " repeated content for chunking purposes.")
	}
	conn := &fakeConnector{docs: docs, bytes: bytesByID, delay: 20 * time.Millisecond}

	reg := status.New(time.Hour, nil)
	m := &Manager{
		Connectors: connectors.Registry{"local": conn},
		Parser:     fakeParser{},
		Indexer:    newTestBuilder(),
		Status:     reg,
		Chunks:     NewChunkRegistry(),
	}

	req := RunRequest{RunID: "run-3", SourceSpec: model.SourceSpec{Family: "local"}, ChunkSize: 64}

	done := make(chan struct{})
	go func() {
		m.Run(context.Background(), req)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	require.True(t, reg.RequestCancel("run-3"))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("ingest run did not finish after cancellation")
	}

	run, ok := reg.Get("run-3")
	require.True(t, ok)
	assert.Equal(t, model.PhaseCancelled, run.Phase)
}
