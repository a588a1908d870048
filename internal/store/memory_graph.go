package store

import (
	"context"
	"sync"
)

// memoryGraph is an in-process GraphStore, grounded on the teacher's
// map-based graph store shape but extended with entity/chunk provenance
// and chunk-scoped deletion, which the teacher's minimal GraphDB lacked.
type memoryGraph struct {
	mu sync.RWMutex
	// entities: entityID -> (label, type)
	entities map[string]GraphNode
	// edges from entity to entity (relation) or entity to chunk (MENTIONS)
	edges []storedEdge
}

type storedEdge struct {
	src, dst, rel, chunkID string
}

// NewMemoryGraph returns an in-process GraphStore.
func NewMemoryGraph() GraphStore {
	return &memoryGraph{entities: make(map[string]GraphNode)}
}

func (g *memoryGraph) UpsertTriples(_ context.Context, triples []Triple) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, t := range triples {
		subID := entityID(t.SubjectLabel, t.SubjectType)
		objID := entityID(t.ObjectLabel, t.ObjectType)
		g.entities[subID] = GraphNode{ID: subID, Kind: "entity", Label: normalizeLabel(t.SubjectLabel), Type: normalizeLabel(t.SubjectType)}
		g.entities[objID] = GraphNode{ID: objID, Kind: "entity", Label: normalizeLabel(t.ObjectLabel), Type: normalizeLabel(t.ObjectType)}
		if !g.hasEdge(subID, objID, t.Predicate, t.ChunkID) {
			g.edges = append(g.edges, storedEdge{src: subID, dst: objID, rel: t.Predicate, chunkID: t.ChunkID})
		}
		if !g.hasEdge(t.ChunkID, subID, "MENTIONS", t.ChunkID) {
			g.edges = append(g.edges, storedEdge{src: t.ChunkID, dst: subID, rel: "MENTIONS", chunkID: t.ChunkID})
		}
		if !g.hasEdge(t.ChunkID, objID, "MENTIONS", t.ChunkID) {
			g.edges = append(g.edges, storedEdge{src: t.ChunkID, dst: objID, rel: "MENTIONS", chunkID: t.ChunkID})
		}
	}
	return nil
}

func (g *memoryGraph) hasEdge(src, dst, rel, chunkID string) bool {
	for _, e := range g.edges {
		if e.src == src && e.dst == dst && e.rel == rel && e.chunkID == chunkID {
			return true
		}
	}
	return false
}

func (g *memoryGraph) DeleteByChunkIDs(_ context.Context, chunkIDs []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	set := make(map[string]struct{}, len(chunkIDs))
	for _, id := range chunkIDs {
		set[id] = struct{}{}
	}
	kept := g.edges[:0]
	for _, e := range g.edges {
		if _, drop := set[e.chunkID]; drop {
			continue
		}
		kept = append(kept, e)
	}
	g.edges = kept
	return nil
}

func (g *memoryGraph) Query(_ context.Context, seedEntities []string, depth int) (Subgraph, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if depth <= 0 {
		depth = 2
	}
	if depth > 2 {
		depth = 2
	}
	frontier := make(map[string]struct{})
	for _, s := range seedEntities {
		frontier[entityID(s, "")] = struct{}{}
		// also match by label alone, since callers may not know the type
		for id, n := range g.entities {
			if n.Label == normalizeLabel(s) {
				frontier[id] = struct{}{}
			}
		}
	}
	visited := make(map[string]struct{})
	var nodes []GraphNode
	var outEdges []GraphEdge
	seenNode := func(id string) {
		if _, ok := visited[id]; ok {
			return
		}
		visited[id] = struct{}{}
		if n, ok := g.entities[id]; ok {
			nodes = append(nodes, n)
		} else {
			// chunk node; text is populated by the caller (lexical lookup),
			// this layer only knows the id.
			nodes = append(nodes, GraphNode{ID: id, Kind: "chunk"})
		}
	}
	for id := range frontier {
		seenNode(id)
	}
	for d := 0; d < depth; d++ {
		next := make(map[string]struct{})
		for _, e := range g.edges {
			_, fromFrontier := frontier[e.src]
			_, toFrontier := frontier[e.dst]
			if !fromFrontier && !toFrontier {
				continue
			}
			outEdges = append(outEdges, GraphEdge{Source: e.src, Target: e.dst, Rel: e.rel, ChunkID: e.chunkID})
			seenNode(e.src)
			seenNode(e.dst)
			next[e.src] = struct{}{}
			next[e.dst] = struct{}{}
		}
		frontier = next
	}
	return Subgraph{Nodes: nodes, Edges: dedupEdges(outEdges)}, nil
}

func dedupEdges(edges []GraphEdge) []GraphEdge {
	seen := make(map[GraphEdge]struct{}, len(edges))
	out := make([]GraphEdge, 0, len(edges))
	for _, e := range edges {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}
