package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgLexical struct{ pool *pgxpool.Pool }

// NewPostgresLexical opens a Postgres full-text-search backed LexicalStore,
// grounded on the teacher's postgres_search.go tsvector usage.
func NewPostgresLexical(pool *pgxpool.Pool) (LexicalStore, error) {
	ctx := context.Background()
	if _, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS chunk_documents (
  id TEXT PRIMARY KEY,
  text TEXT NOT NULL,
  tsv TSVECTOR NOT NULL,
  metadata JSONB NOT NULL DEFAULT '{}'::jsonb
)`); err != nil {
		return nil, fmt.Errorf("create chunk_documents table: %w", err)
	}
	if _, err := pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS chunk_documents_tsv ON chunk_documents USING GIN(tsv)`); err != nil {
		return nil, fmt.Errorf("create tsv index: %w", err)
	}
	return &pgLexical{pool: pool}, nil
}

func (p *pgLexical) Upsert(ctx context.Context, items []LexicalItem) error {
	var batch pgx.Batch
	for _, it := range items {
		batch.Queue(`
INSERT INTO chunk_documents(id, text, tsv, metadata)
VALUES($1, $2, to_tsvector('english', $2), $3)
ON CONFLICT (id) DO UPDATE SET text=EXCLUDED.text, tsv=EXCLUDED.tsv, metadata=EXCLUDED.metadata`,
			it.ID, it.Text, it.Metadata)
	}
	return p.pool.SendBatch(ctx, &batch).Close()
}

func (p *pgLexical) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := p.pool.Exec(ctx, `DELETE FROM chunk_documents WHERE id = ANY($1)`, ids)
	return err
}

func (p *pgLexical) Search(ctx context.Context, query string, topK int) ([]LexicalHit, error) {
	if topK <= 0 {
		topK = 10
	}
	rows, err := p.pool.Query(ctx, `
SELECT id, text, metadata, ts_rank(tsv, plainto_tsquery('english', $1)) AS score
FROM chunk_documents
WHERE tsv @@ plainto_tsquery('english', $1)
ORDER BY score DESC
LIMIT $2`, query, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var raw []LexicalHit
	for rows.Next() {
		var h LexicalHit
		var md map[string]string
		if err := rows.Scan(&h.ID, &h.Text, &md, &h.Score); err != nil {
			return nil, err
		}
		h.Metadata = md
		raw = append(raw, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	scores := make([]float64, len(raw))
	for i, h := range raw {
		scores[i] = h.Score
	}
	normalized := MinMaxNormalize(scores)
	out := make([]LexicalHit, 0, len(raw))
	for i, h := range raw {
		if normalized[i] <= 0 {
			continue
		}
		h.Score = normalized[i]
		out = append(out, h)
	}
	return out, nil
}
