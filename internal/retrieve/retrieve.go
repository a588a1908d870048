// Package retrieve fans a query out across the vector, lexical, and graph
// stores in parallel, fuses their per-modality scores, and returns a
// deterministically ordered, deduplicated ranking.
package retrieve

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"ragcore/internal/embedding"
	"ragcore/internal/model"
	"ragcore/internal/store"
)

// Weights controls how much each modality contributes to the fused score.
// Disabled modalities are dropped and the rest renormalized to sum to 1.
type Weights struct {
	Vector  float64
	Lexical float64
	Graph   float64
}

// DefaultWeights matches the configured default fusion weights.
var DefaultWeights = Weights{Vector: 0.5, Lexical: 0.3, Graph: 0.2}

// Modes selects which modalities participate in a given query.
type Modes struct {
	Vector  bool
	Lexical bool
	Graph   bool
}

// AllModes enables every modality.
var AllModes = Modes{Vector: true, Lexical: true, Graph: true}

// Retriever fans a query out across the configured stores.
type Retriever struct {
	Embedder     embedding.Embedder
	VectorStore  store.VectorStore
	LexicalStore store.LexicalStore
	GraphStore   store.GraphStore
	Docs         DocLookup
}

// DocLookup resolves a chunk_id to the document metadata RankedNode needs
// for display (doc_id, display_name, logical_path). Implemented by the
// ingestion manager's chunk registry.
type DocLookup interface {
	Lookup(chunkID string) (docID, displayName, logicalPath, text string, ok bool)
}

// Search runs the hybrid retrieval described in spec section 4.6 and
// returns the fused, deduplicated, deterministically ordered ranking.
func (r *Retriever) Search(ctx context.Context, query string, topK int, modes Modes, weights Weights) ([]model.RankedNode, error) {
	if topK <= 0 {
		topK = 10
	}

	var vectorHits []store.VectorHit
	var lexicalHits []store.LexicalHit
	var graphHits []store.GraphEdge

	g, ctx := errgroup.WithContext(ctx)

	if modes.Vector && r.VectorStore != nil {
		g.Go(func() error {
			vecs, err := r.Embedder.EmbedBatch(ctx, []string{query})
			if err != nil {
				return err
			}
			hits, err := r.VectorStore.Search(ctx, vecs[0], topK, nil)
			if err != nil {
				return err
			}
			vectorHits = hits
			return nil
		})
	}
	if modes.Lexical && r.LexicalStore != nil {
		g.Go(func() error {
			hits, err := r.LexicalStore.Search(ctx, query, topK)
			if err != nil {
				return err
			}
			lexicalHits = hits
			return nil
		})
	}
	if modes.Graph && r.GraphStore != nil {
		g.Go(func() error {
			seeds := SeedEntities(query)
			if len(seeds) == 0 {
				return nil
			}
			sub, err := r.GraphStore.Query(ctx, seeds, 2)
			if err != nil {
				return err
			}
			graphHits = sub.Edges
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return fuse(vectorHits, lexicalHits, graphHits, r.Docs, normalizeWeights(weights, modes), topK), nil
}

// SeedEntities is a placeholder entity-spotter over the raw query text: it
// treats capitalized words as candidate seed entities, same heuristic the
// no-LLM extraction path uses. Exported so /graph can resolve a free-text
// query to seeds the same way the graph sub-retriever does.
func SeedEntities(query string) []string {
	var seeds []string
	for _, w := range strings.Fields(query) {
		if len(w) > 0 && strings.ToUpper(w[:1]) == w[:1] {
			seeds = append(seeds, w)
		}
	}
	return seeds
}

func normalizeWeights(w Weights, modes Modes) Weights {
	if !modes.Vector {
		w.Vector = 0
	}
	if !modes.Lexical {
		w.Lexical = 0
	}
	if !modes.Graph {
		w.Graph = 0
	}
	total := w.Vector + w.Lexical + w.Graph
	if total <= 0 {
		return Weights{}
	}
	return Weights{Vector: w.Vector / total, Lexical: w.Lexical / total, Graph: w.Graph / total}
}

func fuse(vec []store.VectorHit, lex []store.LexicalHit, graph []store.GraphEdge, docs DocLookup, w Weights, topK int) []model.RankedNode {
	type acc struct {
		node   model.RankedNode
		scores map[string]float64
	}
	byChunk := make(map[string]*acc)

	get := func(chunkID string) *acc {
		if a, ok := byChunk[chunkID]; ok {
			return a
		}
		node := model.RankedNode{ChunkID: chunkID, PerModalityScores: map[string]float64{}}
		if docs != nil {
			if docID, display, path, text, ok := docs.Lookup(chunkID); ok {
				node.DocID, node.DisplayName, node.LogicalPath, node.Text = docID, display, path, text
			}
		}
		a := &acc{node: node, scores: map[string]float64{}}
		byChunk[chunkID] = a
		return a
	}

	for _, h := range vec {
		get(h.ID).scores["vector"] = h.Score
	}
	for _, h := range lex {
		get(h.ID).scores["lexical"] = h.Score
	}
	for _, e := range graph {
		if e.Rel != "MENTIONS" {
			continue
		}
		get(e.ChunkID).scores["graph"] = 1
	}

	out := make([]model.RankedNode, 0, len(byChunk))
	for chunkID, a := range byChunk {
		fused := a.scores["vector"]*w.Vector + a.scores["lexical"]*w.Lexical + a.scores["graph"]*w.Graph
		a.node.FusedScore = fused
		a.node.PerModalityScores = a.scores
		a.node.ChunkID = chunkID
		out = append(out, a.node)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].FusedScore != out[j].FusedScore {
			return out[i].FusedScore > out[j].FusedScore
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}
