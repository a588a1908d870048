// Package parser turns raw document bytes into the markdown/plaintext shape
// the indexer chunks, via either an in-process ("docling"-style) parser or
// a cloud parsing service.
package parser

import (
	"context"
	"strings"

	"ragcore/internal/documents"
	"ragcore/internal/model"
)

// Parser converts a document's raw bytes into a ParsedDocument.
type Parser interface {
	Parse(ctx context.Context, doc model.Document) (model.ParsedDocument, error)
}

// localParser handles plain-text and markdown documents directly, without a
// network round trip. It is the default ("docling") parser for the file
// types it recognizes, and falls back to treating unknown mime types as
// plain text — grounded on the teacher's own tolerant mime handling in its
// document reader.
type localParser struct{}

// NewLocal constructs the in-process parser.
func NewLocal() Parser { return &localParser{} }

func (p *localParser) Parse(_ context.Context, doc model.Document) (model.ParsedDocument, error) {
	lang := documents.DeduceLanguage(doc.LogicalPath)
	text := string(doc.Bytes)

	out := model.ParsedDocument{
		Metadata:   copyMeta(doc.Metadata),
		ParserName: "docling",
		ParseMode:  "local",
		Language:   languageTag(lang),
	}

	switch {
	case strings.HasSuffix(strings.ToLower(doc.LogicalPath), ".md"), doc.MimeType == "text/markdown":
		out.Markdown = text
		out.Plaintext = stripMarkdown(text)
		out.HasTables = strings.Contains(text, "|---")
	default:
		out.Plaintext = text
		out.Markdown = text
	}
	return out, nil
}

func languageTag(l documents.Language) string {
	switch l {
	case documents.Go:
		return "go"
	case documents.Markdown:
		return "markdown"
	default:
		return "text"
	}
}

// stripMarkdown removes the most common markdown syntax so a plaintext
// rendition is available for lexical search without formatting noise.
func stripMarkdown(md string) string {
	var b strings.Builder
	for _, line := range strings.Split(md, "\n") {
		line = strings.TrimLeft(line, "#>*- ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func copyMeta(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
