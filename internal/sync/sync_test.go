package sync

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragcore/internal/connectors"
	"ragcore/internal/embedding"
	"ragcore/internal/index"
	"ragcore/internal/kgextract"
	"ragcore/internal/model"
	"ragcore/internal/parser"
	"ragcore/internal/store"
)

type memConfigStore struct {
	mu   sync.Mutex
	cfgs map[string]model.DatasourceConfig
}

func newMemConfigStore(cfgs ...model.DatasourceConfig) *memConfigStore {
	m := &memConfigStore{cfgs: map[string]model.DatasourceConfig{}}
	for _, c := range cfgs {
		m.cfgs[c.ConfigID] = c
	}
	return m
}

func (m *memConfigStore) List(context.Context) ([]model.DatasourceConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.DatasourceConfig, 0, len(m.cfgs))
	for _, c := range m.cfgs {
		out = append(out, c)
	}
	return out, nil
}

func (m *memConfigStore) Get(_ context.Context, configID string) (model.DatasourceConfig, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cfgs[configID]
	return c, ok, nil
}

func (m *memConfigStore) UpdateSyncProgress(_ context.Context, configID string, ordinal int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.cfgs[configID]
	c.LastSyncOrdinal = ordinal
	c.LastSyncStatus = status
	m.cfgs[configID] = c
	return nil
}

type memStateStore struct {
	mu     sync.Mutex
	states map[string]model.DocumentState
}

func newMemStateStore() *memStateStore {
	return &memStateStore{states: map[string]model.DocumentState{}}
}

func (m *memStateStore) Get(_ context.Context, docID string) (model.DocumentState, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[docID]
	return s, ok, nil
}

func (m *memStateStore) ListByConfig(_ context.Context, configID string) ([]model.DocumentState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.DocumentState
	for _, s := range m.states {
		if s.ConfigID == configID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStateStore) Upsert(_ context.Context, st model.DocumentState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[st.DocID] = st
	return nil
}

func (m *memStateStore) Delete(_ context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, docID)
	return nil
}

type memChunkIndex struct {
	mu     sync.Mutex
	byDoc  map[string][]string
}

func newMemChunkIndex() *memChunkIndex { return &memChunkIndex{byDoc: map[string][]string{}} }

func (c *memChunkIndex) ChunkIDsForDoc(_ context.Context, docID string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.byDoc[docID]...), nil
}

func (c *memChunkIndex) ReplaceChunkIDs(_ context.Context, docID string, chunkIDs []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byDoc[docID] = append([]string(nil), chunkIDs...)
	return nil
}

func (c *memChunkIndex) DeleteDoc(_ context.Context, docID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byDoc, docID)
	return nil
}

type fakeSyncConnector struct {
	docs  []model.Document
	bytes map[string][]byte
}

func (f *fakeSyncConnector) List(context.Context, map[string]string) ([]model.Document, error) {
	return f.docs, nil
}

func (f *fakeSyncConnector) Fetch(_ context.Context, sourceID string) (model.Document, error) {
	for _, d := range f.docs {
		if d.SourceID == sourceID {
			d.Bytes = f.bytes[sourceID]
			return d, nil
		}
	}
	return model.Document{}, nil
}

func newTestIndexer() *index.Builder {
	return &index.Builder{
		Embedder:     embedding.NewHash(16),
		VectorStore:  store.NewMemoryVector(16),
		LexicalStore: store.NewBM25Lexical(),
		GraphStore:   store.NewMemoryGraph(),
		KGExtractor:  kgextract.NewSimple(),
	}
}

func TestControllerRunOnceAddsAndModifiesAndDeletes(t *testing.T) {
	cfg := model.DatasourceConfig{ConfigID: "cfg1", SourceType: "local", Active: true}
	conn := &fakeSyncConnector{
		docs: []model.Document{{SourceID: "a.txt", LogicalPath: "a.txt", DisplayName: "a"}},
		bytes: map[string][]byte{"a.txt": []byte("Initial Content About Topic One for testing.")},
	}

	configs := newMemConfigStore(cfg)
	states := newMemStateStore()
	chunks := newMemChunkIndex()

	c := &Controller{
		Connectors: connectors.Registry{"local": conn},
		Configs:    configs,
		States:     states,
		ChunkIndex: chunks,
		Parser:     parser.NewLocal(),
		Indexer:    newTestIndexer(),
	}

	summary, err := c.RunOnce(context.Background(), "cfg1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 0, summary.Errors)

	docID := "cfg1:a.txt"
	st, ok, err := states.Get(context.Background(), docID)
	require.NoError(t, err)
	require.True(t, ok)
	firstHash := st.ContentHash
	firstOrdinal := st.Ordinal

	// No changes: a second run should process nothing.
	summary2, err := c.RunOnce(context.Background(), "cfg1")
	require.NoError(t, err)
	assert.Equal(t, 0, summary2.Processed)

	// Modify: content changes, should reindex with a new ordinal/hash.
	conn.bytes["a.txt"] = []byte("Updated Content About Topic Two for testing.")
	summary3, err := c.RunOnce(context.Background(), "cfg1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary3.Processed)
	st2, ok, err := states.Get(context.Background(), docID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEqual(t, firstHash, st2.ContentHash)
	assert.Greater(t, st2.Ordinal, firstOrdinal)

	// Delete: doc no longer listed, should remove state and chunk index.
	conn.docs = nil
	summary4, err := c.RunOnce(context.Background(), "cfg1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary4.Processed)
	_, ok, err = states.Get(context.Background(), docID)
	require.NoError(t, err)
	assert.False(t, ok)
	ids, err := chunks.ChunkIDsForDoc(context.Background(), docID)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestControllerRunOnceUnknownConfig(t *testing.T) {
	c := &Controller{
		Connectors: connectors.Registry{},
		Configs:    newMemConfigStore(),
		States:     newMemStateStore(),
		ChunkIndex: newMemChunkIndex(),
		Parser:     parser.NewLocal(),
		Indexer:    newTestIndexer(),
	}
	_, err := c.RunOnce(context.Background(), "missing")
	assert.Error(t, err)
}
