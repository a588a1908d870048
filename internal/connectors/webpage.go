package connectors

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	readability "github.com/go-shiori/go-readability"

	"ragcore/internal/errs"
	"ragcore/internal/model"
)

// webPage fetches a single URL and renders it to markdown via readability
// extraction + html-to-markdown conversion, grounded on the teacher's
// web-fetch tool (now dropped alongside the rest of internal/tools).
type webPage struct {
	client *http.Client
}

// NewWebPage constructs a Connector over arbitrary HTTP(S) URLs.
func NewWebPage(timeout time.Duration) Connector {
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	return &webPage{client: &http.Client{Timeout: timeout}}
}

// List is a single-document listing: params["url"] is both the source spec
// and the one document this connector knows about.
func (c *webPage) List(_ context.Context, params map[string]string) ([]model.Document, error) {
	u := params["url"]
	if u == "" {
		return nil, &errs.SourceError{Kind: errs.SourcePermanent, Err: fmt.Errorf("url parameter required")}
	}
	return []model.Document{{SourceID: u, LogicalPath: u, DisplayName: u, MimeType: "text/html"}}, nil
}

func (c *webPage) Fetch(ctx context.Context, sourceID string) (model.Document, error) {
	u, err := url.Parse(sourceID)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return model.Document{}, &errs.SourceError{Kind: errs.SourcePermanent, Path: sourceID, Err: fmt.Errorf("invalid url")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceID, nil)
	if err != nil {
		return model.Document{}, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ragcore-ingest/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.client.Do(req)
	if err != nil {
		return model.Document{}, &errs.SourceError{Kind: errs.SourceTransient, Path: sourceID, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return model.Document{}, &errs.SourceError{Kind: errs.SourceTransient, Path: sourceID, Err: err}
	}
	if resp.StatusCode/100 != 2 {
		kind := errs.SourceTransient
		if resp.StatusCode == http.StatusNotFound {
			kind = errs.SourceNotFound
		} else if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			kind = errs.SourceAuth
		}
		return model.Document{}, &errs.SourceError{Kind: kind, Path: sourceID, Err: fmt.Errorf("status %s", resp.Status)}
	}

	html := string(body)
	finalURL := resp.Request.URL.String()
	articleHTML, title := html, ""
	if art, rerr := readability.FromReader(strings.NewReader(html), resp.Request.URL); rerr == nil && strings.TrimSpace(art.Content) != "" {
		articleHTML, title = art.Content, strings.TrimSpace(art.Title)
	}

	md, err := htmltomarkdown.ConvertString(articleHTML, converter.WithDomain(origin(finalURL)))
	if err != nil {
		return model.Document{}, &errs.ParseFailure{Path: sourceID, Err: err}
	}
	if title != "" && !strings.HasPrefix(strings.TrimSpace(md), "# ") {
		md = "# " + title + "\n\n" + md
	}

	return model.Document{
		SourceID:    sourceID,
		LogicalPath: sourceID,
		DisplayName: title,
		MimeType:    "text/markdown",
		Bytes:       []byte(strings.TrimSpace(md)),
	}, nil
}

func origin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
