package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"ragcore/internal/errs"
	"ragcore/internal/model"
)

// CloudConfig points at an external document-parsing service (e.g. a
// hosted docling/unstructured-style endpoint).
type CloudConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

// cloudParser uploads a document to an external parsing service and
// returns its markdown rendition. Retries with exponential backoff on
// transient failures, the same backoff shape the teacher's OpenAI client
// uses for rate-limited requests.
type cloudParser struct {
	cfg    CloudConfig
	client *http.Client
}

// NewCloud constructs a Parser backed by an external parsing service.
func NewCloud(cfg CloudConfig) Parser {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &cloudParser{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

type cloudResponse struct {
	Markdown  string            `json:"markdown"`
	Plaintext string            `json:"plaintext"`
	Metadata  map[string]string `json:"metadata"`
	HasTables bool              `json:"has_tables"`
	Language  string            `json:"language"`
}

func (p *cloudParser) Parse(ctx context.Context, doc model.Document) (model.ParsedDocument, error) {
	var lastErr error
	backoff := 500 * time.Millisecond
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return model.ParsedDocument{}, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		parsed, retryable, err := p.parseOnce(ctx, doc)
		if err == nil {
			return parsed, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return model.ParsedDocument{}, &errs.ParseFailure{Path: doc.LogicalPath, Err: lastErr}
}

func (p *cloudParser) parseOnce(ctx context.Context, doc model.Document) (model.ParsedDocument, bool, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", doc.LogicalPath)
	if err != nil {
		return model.ParsedDocument{}, false, err
	}
	if _, err := fw.Write(doc.Bytes); err != nil {
		return model.ParsedDocument{}, false, err
	}
	if err := mw.Close(); err != nil {
		return model.ParsedDocument{}, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/parse", &body)
	if err != nil {
		return model.ParsedDocument{}, false, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return model.ParsedDocument{}, true, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.ParsedDocument{}, true, err
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return model.ParsedDocument{}, true, fmt.Errorf("cloud parser returned %s", resp.Status)
	}
	if resp.StatusCode/100 != 2 {
		return model.ParsedDocument{}, false, fmt.Errorf("cloud parser returned %s: %s", resp.Status, string(b))
	}

	var cr cloudResponse
	if err := json.Unmarshal(b, &cr); err != nil {
		return model.ParsedDocument{}, false, fmt.Errorf("decode cloud parser response: %w", err)
	}
	return model.ParsedDocument{
		Markdown:   cr.Markdown,
		Plaintext:  cr.Plaintext,
		Metadata:   cr.Metadata,
		ParserName: "cloud",
		ParseMode:  "cloud",
		Language:   cr.Language,
		HasTables:  cr.HasTables,
	}, false, nil
}
