// Package index builds the hybrid search index for a parsed document:
// chunking, embedding, and writing to the vector, lexical, and (optionally)
// graph stores.
package index

import (
	"bytes"
	"context"
	"fmt"

	"ragcore/internal/documents"
	"ragcore/internal/embedding"
	"ragcore/internal/errs"
	"ragcore/internal/kgextract"
	"ragcore/internal/model"
	"ragcore/internal/store"
)

// Options controls a single document's indexing pass.
type Options struct {
	ChunkSize           int
	ChunkOverlap        int
	ExtractGraph        bool
	MaxTripletsPerChunk int
}

// Builder wires chunking, embedding, and the three store kinds together.
type Builder struct {
	Embedder     embedding.Embedder
	VectorStore  store.VectorStore
	LexicalStore store.LexicalStore
	GraphStore   store.GraphStore
	KGExtractor  kgextract.Extractor
}

// Result reports what got written for one document, including whether graph
// extraction partially failed (spec's graph_partial policy: vector/lexical
// writes are never rolled back because of a graph extraction error).
type Result struct {
	Chunks       []model.Chunk
	GraphPartial bool
}

// IndexDocument chunks a parsed document, embeds and writes every chunk to
// the vector and lexical stores, and — if requested — extracts and writes
// graph triples. Checkpoints ctx between stages for cooperative
// cancellation.
func (b *Builder) IndexDocument(ctx context.Context, docID string, parsed model.ParsedDocument, opts Options) (Result, error) {
	chunks, err := b.chunk(docID, parsed, opts)
	if err != nil {
		return Result{}, err
	}
	if len(chunks) == 0 {
		return Result{}, nil
	}

	if err := ctx.Err(); err != nil {
		return Result{}, &errs.Cancelled{}
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := b.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return Result{}, &errs.EmbeddingError{Err: err}
	}

	vectorItems := make([]store.VectorItem, len(chunks))
	lexicalItems := make([]store.LexicalItem, len(chunks))
	for i, c := range chunks {
		vectorItems[i] = store.VectorItem{ID: c.ChunkID, Vector: vectors[i], Metadata: c.Metadata}
		lexicalItems[i] = store.LexicalItem{ID: c.ChunkID, Text: c.Text, Metadata: c.Metadata}
	}

	if err := b.VectorStore.Upsert(ctx, vectorItems); err != nil {
		return Result{}, &errs.StoreError{Kind: errs.StoreTransient, Store: "vector", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return Result{}, &errs.Cancelled{}
	}
	if err := b.LexicalStore.Upsert(ctx, lexicalItems); err != nil {
		return Result{}, &errs.StoreError{Kind: errs.StoreTransient, Store: "lexical", Err: err}
	}

	result := Result{Chunks: chunks}
	if !opts.ExtractGraph {
		return result, nil
	}

	graphPartial := false
	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return result, &errs.Cancelled{}
		}
		triples, err := b.KGExtractor.Extract(ctx, c, opts.MaxTripletsPerChunk)
		if err != nil {
			graphPartial = true
			continue
		}
		if len(triples) == 0 {
			continue
		}
		gts := make([]store.Triple, len(triples))
		for i, t := range triples {
			gts[i] = store.Triple{
				SubjectLabel: t.SubjectLabel,
				SubjectType:  t.SubjectType,
				Predicate:    t.Predicate,
				ObjectLabel:  t.ObjectLabel,
				ObjectType:   t.ObjectType,
				ChunkID:      t.ChunkID,
				DocID:        t.DocID,
			}
		}
		if err := b.GraphStore.UpsertTriples(ctx, gts); err != nil {
			graphPartial = true
		}
	}
	result.GraphPartial = graphPartial
	return result, nil
}

// DeleteDocument removes the given chunk ids from all stores, used before
// re-indexing a changed document and on tombstone sync events.
func (b *Builder) DeleteDocument(ctx context.Context, chunkIDs []string) error {
	if err := b.VectorStore.Delete(ctx, chunkIDs); err != nil {
		return &errs.StoreError{Kind: errs.StoreTransient, Store: "vector", Err: err}
	}
	if err := b.LexicalStore.Delete(ctx, chunkIDs); err != nil {
		return &errs.StoreError{Kind: errs.StoreTransient, Store: "lexical", Err: err}
	}
	if b.GraphStore != nil {
		if err := b.GraphStore.DeleteByChunkIDs(ctx, chunkIDs); err != nil {
			return &errs.StoreError{Kind: errs.StoreTransient, Store: "graph", Err: err}
		}
	}
	return nil
}

func (b *Builder) chunk(docID string, parsed model.ParsedDocument, opts Options) ([]model.Chunk, error) {
	size, overlap := opts.ChunkSize, opts.ChunkOverlap
	if size <= 0 {
		size = 512
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("invalid chunk overlap %d for chunk size %d", overlap, size)
	}

	splitter := documents.Splitter{
		MaxTokens:     size,
		OverlapTokens: overlap,
		Lang:          documents.Plain,
	}
	if parsed.HasTables || parsed.Markdown != "" {
		splitter.Lang = documents.Markdown
	}

	text := parsed.Markdown
	if text == "" {
		text = parsed.Plaintext
	}

	var chunks []model.Chunk
	err := splitter.Stream(bytes.NewBufferString(text), func(c documents.Chunk) error {
		if len(c.Text) == 0 {
			return nil
		}
		chunks = append(chunks, model.Chunk{
			ChunkID:     chunkID(docID, c.StartToken, c.EndToken, c.Text),
			DocID:       docID,
			Text:        c.Text,
			StartOffset: c.StartToken,
			EndOffset:   c.EndToken,
			Metadata:    map[string]string{"doc_id": docID},
		})
		return nil
	})
	return chunks, err
}
