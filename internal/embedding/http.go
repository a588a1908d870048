package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ragcore/internal/errs"
)

// HTTPConfig configures the generic HTTP embedding client, decoded from
// EMBEDDING_KIND="http"'s connection params.
type HTTPConfig struct {
	BaseURL   string
	Path      string
	Model     string
	APIKey    string
	APIHeader string
	Dimension int
	Timeout   time.Duration
	BatchSize int
}

// httpEmbedder calls a remote embeddings endpoint (OpenAI-compatible
// request/response shape), sub-batching internally. Grounded on the
// teacher's rate-limited HTTP embedding client idiom.
type httpEmbedder struct {
	cfg    HTTPConfig
	client *http.Client
}

// NewHTTP constructs an Embedder backed by an OpenAI-compatible HTTP
// embeddings endpoint.
func NewHTTP(cfg HTTPConfig) Embedder {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	return &httpEmbedder{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func (h *httpEmbedder) Dimension() int { return h.cfg.Dimension }

type embedReq struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResp struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (h *httpEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += h.cfg.BatchSize {
		end := start + h.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := h.embedOne(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	for _, v := range out {
		if h.cfg.Dimension != 0 && len(v) != h.cfg.Dimension {
			return nil, &errs.EmbeddingError{Err: fmt.Errorf("embedder returned dimension %d, declared %d", len(v), h.cfg.Dimension)}
		}
	}
	return out, nil
}

func (h *httpEmbedder) embedOne(ctx context.Context, batch []string) ([][]float32, error) {
	body, err := json.Marshal(embedReq{Model: h.cfg.Model, Input: batch})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.BaseURL+h.cfg.Path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	switch h.cfg.APIHeader {
	case "", "Authorization":
		if h.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+h.cfg.APIKey)
		}
	default:
		req.Header.Set(h.cfg.APIHeader, h.cfg.APIKey)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &errs.ProviderUnavailable{Provider: "embedding-http", Err: err}
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &errs.AuthError{Provider: "embedding-http", Err: fmt.Errorf("status %s", resp.Status)}
	}
	if resp.StatusCode/100 != 2 {
		return nil, &errs.EmbeddingError{Err: fmt.Errorf("embeddings endpoint returned %s: %s", resp.Status, string(b))}
	}
	var er embedResp
	if err := json.Unmarshal(b, &er); err != nil {
		return nil, &errs.EmbeddingError{Err: fmt.Errorf("decode embeddings response: %w", err)}
	}
	if len(er.Data) != len(batch) {
		return nil, &errs.EmbeddingError{Err: fmt.Errorf("got %d embeddings, want %d", len(er.Data), len(batch))}
	}
	out := make([][]float32, len(er.Data))
	for i := range er.Data {
		out[i] = er.Data[i].Embedding
	}
	return out, nil
}
