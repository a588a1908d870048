package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragcore/internal/completion"
	"ragcore/internal/config"
	"ragcore/internal/connectors"
	"ragcore/internal/embedding"
	"ragcore/internal/index"
	"ragcore/internal/ingestmgr"
	"ragcore/internal/kgextract"
	"ragcore/internal/model"
	"ragcore/internal/parser"
	"ragcore/internal/query"
	"ragcore/internal/retrieve"
	"ragcore/internal/status"
	"ragcore/internal/store"
)

type plaintextParser struct{}

func (plaintextParser) Parse(_ context.Context, doc model.Document) (model.ParsedDocument, error) {
	return model.ParsedDocument{Plaintext: string(doc.Bytes)}, nil
}

type echoCompletion struct{}

func (echoCompletion) Complete(context.Context, string, completion.Options) (string, error) {
	return "Alpha is a star system [1].", nil
}

func (echoCompletion) StreamComplete(context.Context, string, completion.Options, func(string)) error {
	return nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	builder := &index.Builder{
		Embedder:     embedding.NewHash(16),
		VectorStore:  store.NewMemoryVector(16),
		LexicalStore: store.NewBM25Lexical(),
		GraphStore:   store.NewMemoryGraph(),
		KGExtractor:  kgextract.NewSimple(),
	}
	chunks := ingestmgr.NewChunkRegistry()
	statusReg := status.New(time.Hour, nil)

	manager := &ingestmgr.Manager{
		Connectors: connectors.Registry{},
		Parser:     plaintextParser{},
		Indexer:    builder,
		Status:     statusReg,
		Chunks:     chunks,
	}

	retriever := &retrieve.Retriever{
		Embedder:     builder.Embedder,
		VectorStore:  builder.VectorStore,
		LexicalStore: builder.LexicalStore,
		GraphStore:   builder.GraphStore,
		Docs:         chunks,
	}
	queryEngine := &query.Engine{Retriever: retriever, Completion: echoCompletion{}}

	cfg := config.Config{ChunkSize: 512, ChunkOverlap: 50, MaxTripletsPerChunk: 10}

	return NewServer(cfg, manager, statusReg, retriever, queryEngine, builder.GraphStore, t.TempDir())
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleStatus(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	decodeJSON(t, rec, &body)
	assert.EqualValues(t, 512, body["chunk_size"])
}

func TestHandleIngestTextThenSearchAndQuery(t *testing.T) {
	s := newTestServer(t)

	ingestBody, err := json.Marshal(ingestTextRequest{
		SourceID:    "doc-1",
		DisplayName: "doc-1",
		Text:        "Alpha Centauri is a star system close to the Sun.",
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ingest-text", bytes.NewReader(ingestBody)))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var accepted map[string]string
	decodeJSON(t, rec, &accepted)
	runID := accepted["run_id"]
	require.NotEmpty(t, runID)

	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/processing-status/"+runID, nil))
		var run model.IngestRun
		decodeJSON(t, rec, &run)
		return run.Phase == model.PhaseDone
	}, 2*time.Second, 5*time.Millisecond)

	searchBody, err := json.Marshal(searchRequest{Query: "Alpha Centauri", TopK: 5})
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader(searchBody)))
	require.Equal(t, http.StatusOK, rec.Code)

	var searchResp map[string][]model.RankedNode
	decodeJSON(t, rec, &searchResp)
	assert.NotEmpty(t, searchResp["results"])

	queryBody, err := json.Marshal(queryRequest{Query: "What is Alpha Centauri?", TopK: 5})
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(queryBody)))
	require.Equal(t, http.StatusOK, rec.Code)

	var queryResp map[string]any
	decodeJSON(t, rec, &queryResp)
	assert.Contains(t, queryResp["answer"], "Alpha")
}

func TestHandleProcessingStatusUnknownRun(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/processing-status/does-not-exist", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCancelProcessingUnknownRun(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cancel-processing/does-not-exist", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGraphRequiresRootOrQuery(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/graph", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGraphWithRoot(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/graph?root=Alpha", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleUploadAndCleanup(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("files", "note.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var uploadResp map[string][]string
	decodeJSON(t, rec, &uploadResp)
	require.Len(t, uploadResp["paths"], 1)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cleanup-uploads", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var cleanupResp map[string]int
	decodeJSON(t, rec, &cleanupResp)
	assert.Equal(t, 1, cleanupResp["removed"])
}

var _ parser.Parser = plaintextParser{}
