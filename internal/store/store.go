// Package store defines the abstract VectorStore, LexicalStore, and
// GraphStore contracts that C5 (the hybrid index builder) writes to and C6
// (the hybrid retriever) reads from, plus the concrete backends that
// implement them.
package store

import "context"

// VectorItem is one upsert record for a VectorStore.
type VectorItem struct {
	ID       string
	Vector   []float32
	Metadata map[string]string
}

// VectorHit is one VectorStore.Search result. Score is cosine similarity
// normalized to [0, 1].
type VectorHit struct {
	ID       string
	Score    float64
	Metadata map[string]string
}

// VectorStore is the abstract vector index contract (spec section 4.5).
// Upsert must be idempotent by ID.
type VectorStore interface {
	Upsert(ctx context.Context, items []VectorItem) error
	Search(ctx context.Context, queryVector []float32, topK int, filter map[string]string) ([]VectorHit, error)
	Delete(ctx context.Context, ids []string) error
	Dimension() int
}

// LexicalItem is one upsert record for a LexicalStore.
type LexicalItem struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// LexicalHit is one LexicalStore.Search result. Scores are normalized to
// [0, 1] via per-batch min-max by the concrete implementation; zero-score
// results must be dropped before returning.
type LexicalHit struct {
	ID       string
	Score    float64
	Text     string
	Metadata map[string]string
}

// LexicalStore is the abstract keyword/BM25 index contract.
type LexicalStore interface {
	Upsert(ctx context.Context, items []LexicalItem) error
	Search(ctx context.Context, query string, topK int) ([]LexicalHit, error)
	Delete(ctx context.Context, ids []string) error
}

// Triple is one upsert record for a GraphStore.
type Triple struct {
	SubjectLabel string
	SubjectType  string
	Predicate    string
	ObjectLabel  string
	ObjectType   string
	ChunkID      string
	DocID        string
}

// GraphNode is one node in a returned subgraph: either an entity or a
// chunk, distinguished by Kind.
type GraphNode struct {
	ID    string // normalized_label|type for entities, chunk_id for chunks
	Kind  string // "entity" | "chunk"
	Label string
	Type  string
	Text  string // populated for chunk nodes
}

// GraphEdge is one edge in a returned subgraph.
type GraphEdge struct {
	Source string
	Target string
	Rel    string
	// ChunkID is the provenance chunk for a MENTIONS edge.
	ChunkID string
}

// Subgraph is the result of a GraphStore.Query call.
type Subgraph struct {
	Nodes []GraphNode
	Edges []GraphEdge
}

// GraphStore is the abstract knowledge-graph contract. UpsertTriples is
// idempotent on (subject, predicate, object, chunk_id).
type GraphStore interface {
	UpsertTriples(ctx context.Context, triples []Triple) error
	Query(ctx context.Context, seedEntities []string, depth int) (Subgraph, error)
	DeleteByChunkIDs(ctx context.Context, chunkIDs []string) error
}

// NormalizeLabel case-folds and trims an entity label, the identity key the
// spec requires for entity deduplication: (normalized_label, type).
func NormalizeLabel(label string) string {
	return normalizeLabel(label)
}

func entityID(label, typ string) string {
	return normalizeLabel(label) + "|" + normalizeLabel(typ)
}
