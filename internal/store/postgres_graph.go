package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgGraph struct{ pool *pgxpool.Pool }

// NewPostgresGraph opens a Postgres-backed GraphStore over plain
// nodes/edges tables plus a recursive CTE for bounded-depth traversal,
// grounded on the teacher's postgres_graph.go node/edge schema, extended
// with per-triple chunk provenance so DeleteByChunkIDs and MENTIONS-edge
// lookups are possible.
func NewPostgresGraph(pool *pgxpool.Pool) (GraphStore, error) {
	ctx := context.Background()
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS graph_nodes (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL,
			type TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS graph_edges (
			id BIGSERIAL PRIMARY KEY,
			source TEXT NOT NULL,
			target TEXT NOT NULL,
			rel TEXT NOT NULL,
			chunk_id TEXT NOT NULL,
			UNIQUE(source, target, rel, chunk_id)
		)`,
		`CREATE INDEX IF NOT EXISTS graph_edges_src ON graph_edges(source)`,
		`CREATE INDEX IF NOT EXISTS graph_edges_chunk ON graph_edges(chunk_id)`,
	}
	for _, s := range stmts {
		if _, err := pool.Exec(ctx, s); err != nil {
			return nil, fmt.Errorf("init graph schema: %w", err)
		}
	}
	return &pgGraph{pool: pool}, nil
}

func (g *pgGraph) UpsertTriples(ctx context.Context, triples []Triple) error {
	var batch pgx.Batch
	for _, t := range triples {
		subID := entityID(t.SubjectLabel, t.SubjectType)
		objID := entityID(t.ObjectLabel, t.ObjectType)
		batch.Queue(`INSERT INTO graph_nodes(id, label, type) VALUES($1,$2,$3)
			ON CONFLICT (id) DO UPDATE SET label=EXCLUDED.label, type=EXCLUDED.type`,
			subID, normalizeLabel(t.SubjectLabel), normalizeLabel(t.SubjectType))
		batch.Queue(`INSERT INTO graph_nodes(id, label, type) VALUES($1,$2,$3)
			ON CONFLICT (id) DO UPDATE SET label=EXCLUDED.label, type=EXCLUDED.type`,
			objID, normalizeLabel(t.ObjectLabel), normalizeLabel(t.ObjectType))
		batch.Queue(`INSERT INTO graph_edges(source, target, rel, chunk_id) VALUES($1,$2,$3,$4)
			ON CONFLICT (source, target, rel, chunk_id) DO NOTHING`, subID, objID, t.Predicate, t.ChunkID)
		batch.Queue(`INSERT INTO graph_edges(source, target, rel, chunk_id) VALUES($1,$2,'MENTIONS',$3)
			ON CONFLICT (source, target, rel, chunk_id) DO NOTHING`, t.ChunkID, subID, t.ChunkID)
		batch.Queue(`INSERT INTO graph_edges(source, target, rel, chunk_id) VALUES($1,$2,'MENTIONS',$3)
			ON CONFLICT (source, target, rel, chunk_id) DO NOTHING`, t.ChunkID, objID, t.ChunkID)
	}
	return g.pool.SendBatch(ctx, &batch).Close()
}

func (g *pgGraph) DeleteByChunkIDs(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	_, err := g.pool.Exec(ctx, `DELETE FROM graph_edges WHERE chunk_id = ANY($1)`, chunkIDs)
	return err
}

func (g *pgGraph) Query(ctx context.Context, seedEntities []string, depth int) (Subgraph, error) {
	if depth <= 0 || depth > 2 {
		depth = 2
	}
	seedIDs := make([]string, 0, len(seedEntities))
	rows, err := g.pool.Query(ctx, `SELECT id FROM graph_nodes WHERE label = ANY($1)`, lowerAll(seedEntities))
	if err != nil {
		return Subgraph{}, err
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return Subgraph{}, err
		}
		seedIDs = append(seedIDs, id)
	}
	rows.Close()
	if len(seedIDs) == 0 {
		return Subgraph{}, nil
	}

	edgeRows, err := g.pool.Query(ctx, `
WITH RECURSIVE reach(id, depth) AS (
	SELECT unnest($1::text[]), 0
	UNION
	SELECT e.target, r.depth + 1
	FROM graph_edges e JOIN reach r ON e.source = r.id
	WHERE r.depth < $2
)
SELECT DISTINCT e.source, e.target, e.rel, e.chunk_id
FROM graph_edges e
WHERE e.source IN (SELECT id FROM reach) OR e.target IN (SELECT id FROM reach)`, seedIDs, depth)
	if err != nil {
		return Subgraph{}, err
	}
	defer edgeRows.Close()
	var edges []GraphEdge
	nodeIDs := make(map[string]struct{})
	for edgeRows.Next() {
		var e GraphEdge
		if err := edgeRows.Scan(&e.Source, &e.Target, &e.Rel, &e.ChunkID); err != nil {
			return Subgraph{}, err
		}
		edges = append(edges, e)
		nodeIDs[e.Source] = struct{}{}
		nodeIDs[e.Target] = struct{}{}
	}
	if err := edgeRows.Err(); err != nil {
		return Subgraph{}, err
	}

	ids := make([]string, 0, len(nodeIDs))
	for id := range nodeIDs {
		ids = append(ids, id)
	}
	nodeRows, err := g.pool.Query(ctx, `SELECT id, label, type FROM graph_nodes WHERE id = ANY($1)`, ids)
	if err != nil {
		return Subgraph{}, err
	}
	defer nodeRows.Close()
	entitySet := make(map[string]struct{})
	var nodes []GraphNode
	for nodeRows.Next() {
		var n GraphNode
		n.Kind = "entity"
		if err := nodeRows.Scan(&n.ID, &n.Label, &n.Type); err != nil {
			return Subgraph{}, err
		}
		nodes = append(nodes, n)
		entitySet[n.ID] = struct{}{}
	}
	for id := range nodeIDs {
		if _, ok := entitySet[id]; !ok {
			nodes = append(nodes, GraphNode{ID: id, Kind: "chunk"})
		}
	}
	return Subgraph{Nodes: nodes, Edges: edges}, nil
}

func lowerAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = normalizeLabel(s)
	}
	return out
}
