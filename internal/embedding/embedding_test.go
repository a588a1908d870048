package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashEmbedderDeterministic(t *testing.T) {
	e := NewHash(64)
	v1, err := e.EmbedBatch(context.Background(), []string{"hello world"})
	require.NoError(t, err)
	v2, err := e.EmbedBatch(context.Background(), []string{"hello world"})
	require.NoError(t, err)
	require.Equal(t, v1, v2)
	require.Equal(t, 64, e.Dimension())
}

func TestHashEmbedderDistinguishesText(t *testing.T) {
	e := NewHash(64)
	vecs, err := e.EmbedBatch(context.Background(), []string{"alpha beta gamma", "completely different text"})
	require.NoError(t, err)
	require.NotEqual(t, vecs[0], vecs[1])
}

func TestHashEmbedderEmptyBatch(t *testing.T) {
	e := NewHash(8)
	vecs, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	require.Nil(t, vecs)
}

func TestHTTPEmbedderHappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := embedResp{}
		for range req.Input {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
			}{Embedding: []float32{0.1, 0.2, 0.3}})
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	e := NewHTTP(HTTPConfig{BaseURL: srv.URL, Path: "/v1/embeddings", Dimension: 3, BatchSize: 2})
	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	require.Equal(t, []float32{0.1, 0.2, 0.3}, vecs[0])
}

func TestHTTPEmbedderDimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := embedResp{}
		for range req.Input {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
			}{Embedding: []float32{0.1, 0.2}})
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	e := NewHTTP(HTTPConfig{BaseURL: srv.URL, Path: "/v1/embeddings", Dimension: 3})
	_, err := e.EmbedBatch(context.Background(), []string{"a"})
	require.Error(t, err)
}

func TestHTTPEmbedderAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	e := NewHTTP(HTTPConfig{BaseURL: srv.URL, Path: "/v1/embeddings"})
	_, err := e.EmbedBatch(context.Background(), []string{"a"})
	require.Error(t, err)
}
