package sync

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChunkIndex tracks which chunk_ids currently belong to a synced document,
// so a later modify/delete event can tell the indexer exactly what to erase
// before writing the new content (or erase outright, on delete). This is
// bookkeeping local to the sync controller, distinct from the DocumentState
// watermark row.
type ChunkIndex interface {
	ChunkIDsForDoc(ctx context.Context, docID string) ([]string, error)
	ReplaceChunkIDs(ctx context.Context, docID string, chunkIDs []string) error
	DeleteDoc(ctx context.Context, docID string) error
}

type pgChunkIndex struct{ pool *pgxpool.Pool }

// NewPostgresChunkIndex opens (creating if needed) the sync controller's
// doc-to-chunk-ids bookkeeping table.
func NewPostgresChunkIndex(ctx context.Context, pool *pgxpool.Pool) (ChunkIndex, error) {
	if _, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS document_chunk_index (
  doc_id   TEXT NOT NULL,
  chunk_id TEXT NOT NULL,
  PRIMARY KEY (doc_id, chunk_id)
)`); err != nil {
		return nil, err
	}
	return &pgChunkIndex{pool: pool}, nil
}

func (c *pgChunkIndex) ChunkIDsForDoc(ctx context.Context, docID string) ([]string, error) {
	rows, err := c.pool.Query(ctx, `SELECT chunk_id FROM document_chunk_index WHERE doc_id = $1`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (c *pgChunkIndex) ReplaceChunkIDs(ctx context.Context, docID string, chunkIDs []string) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if _, err := tx.Exec(ctx, `DELETE FROM document_chunk_index WHERE doc_id = $1`, docID); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for _, id := range chunkIDs {
		batch.Queue(`INSERT INTO document_chunk_index(doc_id, chunk_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, docID, id)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (c *pgChunkIndex) DeleteDoc(ctx context.Context, docID string) error {
	_, err := c.pool.Exec(ctx, `DELETE FROM document_chunk_index WHERE doc_id = $1`, docID)
	return err
}
