package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgVector struct {
	pool      *pgxpool.Pool
	dimension int
	metric    string
}

// NewPostgresVector opens a pgvector-backed VectorStore, grounded on the
// teacher's Postgres vector store (jackc/pgx/v5 + the `vector` extension).
func NewPostgresVector(pool *pgxpool.Pool, dimension int, metric string) (VectorStore, error) {
	ctx := context.Background()
	if _, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return nil, fmt.Errorf("create vector extension: %w", err)
	}
	vecType := "vector"
	if dimension > 0 {
		vecType = fmt.Sprintf("vector(%d)", dimension)
	}
	if _, err := pool.Exec(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS chunk_embeddings (
  id TEXT PRIMARY KEY,
  vec %s,
  metadata JSONB NOT NULL DEFAULT '{}'::jsonb
)`, vecType)); err != nil {
		return nil, fmt.Errorf("create chunk_embeddings table: %w", err)
	}
	return &pgVector{pool: pool, dimension: dimension, metric: strings.ToLower(strings.TrimSpace(metric))}, nil
}

func (p *pgVector) Dimension() int { return p.dimension }

func (p *pgVector) Upsert(ctx context.Context, items []VectorItem) error {
	var batch pgx.Batch
	for _, it := range items {
		batch.Queue(`
INSERT INTO chunk_embeddings(id, vec, metadata) VALUES($1, $2::vector, $3)
ON CONFLICT (id) DO UPDATE SET vec=EXCLUDED.vec, metadata=EXCLUDED.metadata`,
			it.ID, toVectorLiteral(it.Vector), it.Metadata)
	}
	return p.pool.SendBatch(ctx, &batch).Close()
}

func (p *pgVector) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := p.pool.Exec(ctx, `DELETE FROM chunk_embeddings WHERE id = ANY($1)`, ids)
	return err
}

func (p *pgVector) Search(ctx context.Context, query []float32, topK int, filter map[string]string) ([]VectorHit, error) {
	if topK <= 0 {
		topK = 10
	}
	vecLit := toVectorLiteral(query)
	scoreExpr := "1 - (vec <=> $1::vector)"
	op := "<=>"
	switch p.metric {
	case "l2", "euclidean":
		op, scoreExpr = "<->", "1 / (1 + (vec <-> $1::vector))"
	case "ip", "dot":
		op, scoreExpr = "<#>", "-(vec <#> $1::vector)"
	}
	args := []any{vecLit, topK}
	where := ""
	if len(filter) > 0 {
		where = "WHERE metadata @> $3"
		args = append(args, filter)
	}
	sql := fmt.Sprintf(`SELECT id, %s AS score, metadata FROM chunk_embeddings %s ORDER BY vec %s $1::vector LIMIT $2`, scoreExpr, where, op)
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var hits []VectorHit
	for rows.Next() {
		var h VectorHit
		var md map[string]string
		if err := rows.Scan(&h.ID, &h.Score, &md); err != nil {
			return nil, err
		}
		h.Metadata = md
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func toVectorLiteral(v []float32) string {
	if len(v) == 0 {
		return "[]"
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%g", x)
	}
	b.WriteByte(']')
	return b.String()
}
