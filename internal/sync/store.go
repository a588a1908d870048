package sync

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ragcore/internal/model"
)

// ConfigStore persists DatasourceConfig rows, one per incrementally synced
// source.
type ConfigStore interface {
	List(ctx context.Context) ([]model.DatasourceConfig, error)
	Get(ctx context.Context, configID string) (model.DatasourceConfig, bool, error)
	UpdateSyncProgress(ctx context.Context, configID string, ordinal int64, status string) error
}

// StateStore persists DocumentState watermark rows within a config.
type StateStore interface {
	Get(ctx context.Context, docID string) (model.DocumentState, bool, error)
	ListByConfig(ctx context.Context, configID string) ([]model.DocumentState, error)
	Upsert(ctx context.Context, state model.DocumentState) error
	Delete(ctx context.Context, docID string) error
}

// pgConfigStore and pgStateStore are grounded on the Postgres store style in
// internal/store/postgres_vector.go: schema created lazily on first open,
// jackc/pgx/v5 for batched and single-row access.
type pgConfigStore struct{ pool *pgxpool.Pool }

// NewPostgresConfigStore opens (creating if needed) the datasource_config
// table described by the persisted state layout.
func NewPostgresConfigStore(ctx context.Context, pool *pgxpool.Pool) (ConfigStore, error) {
	if _, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS datasource_config (
  config_id             TEXT PRIMARY KEY,
  source_type           TEXT NOT NULL,
  params_json           TEXT NOT NULL DEFAULT '{}',
  refresh_interval_s    INTEGER NOT NULL DEFAULT 300,
  change_stream_enabled BOOLEAN NOT NULL DEFAULT false,
  skip_graph            BOOLEAN NOT NULL DEFAULT false,
  active                BOOLEAN NOT NULL DEFAULT true,
  last_sync_ordinal     BIGINT NOT NULL DEFAULT 0,
  last_sync_status      TEXT NOT NULL DEFAULT ''
)`); err != nil {
		return nil, fmt.Errorf("create datasource_config table: %w", err)
	}
	return &pgConfigStore{pool: pool}, nil
}

func (s *pgConfigStore) List(ctx context.Context) ([]model.DatasourceConfig, error) {
	rows, err := s.pool.Query(ctx, `
SELECT config_id, source_type, params_json, refresh_interval_s, change_stream_enabled,
       skip_graph, active, last_sync_ordinal, last_sync_status
FROM datasource_config WHERE active = true`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.DatasourceConfig
	for rows.Next() {
		var c model.DatasourceConfig
		if err := rows.Scan(&c.ConfigID, &c.SourceType, &c.ParamsJSON, &c.RefreshIntervalS,
			&c.ChangeStreamEnabled, &c.SkipGraph, &c.Active, &c.LastSyncOrdinal, &c.LastSyncStatus); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *pgConfigStore) Get(ctx context.Context, configID string) (model.DatasourceConfig, bool, error) {
	var c model.DatasourceConfig
	err := s.pool.QueryRow(ctx, `
SELECT config_id, source_type, params_json, refresh_interval_s, change_stream_enabled,
       skip_graph, active, last_sync_ordinal, last_sync_status
FROM datasource_config WHERE config_id = $1`, configID).Scan(
		&c.ConfigID, &c.SourceType, &c.ParamsJSON, &c.RefreshIntervalS,
		&c.ChangeStreamEnabled, &c.SkipGraph, &c.Active, &c.LastSyncOrdinal, &c.LastSyncStatus)
	if err == pgx.ErrNoRows {
		return model.DatasourceConfig{}, false, nil
	}
	if err != nil {
		return model.DatasourceConfig{}, false, err
	}
	return c, true, nil
}

func (s *pgConfigStore) UpdateSyncProgress(ctx context.Context, configID string, ordinal int64, status string) error {
	_, err := s.pool.Exec(ctx, `
UPDATE datasource_config SET last_sync_ordinal = $2, last_sync_status = $3 WHERE config_id = $1`,
		configID, ordinal, status)
	return err
}

type pgStateStore struct{ pool *pgxpool.Pool }

// NewPostgresStateStore opens (creating if needed) the document_state table.
func NewPostgresStateStore(ctx context.Context, pool *pgxpool.Pool) (StateStore, error) {
	if _, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS document_state (
  doc_id           TEXT PRIMARY KEY,
  config_id        TEXT NOT NULL,
  source_path      TEXT NOT NULL,
  source_id        TEXT NOT NULL,
  ordinal          BIGINT NOT NULL,
  content_hash     TEXT NOT NULL,
  vector_synced_at TIMESTAMPTZ,
  search_synced_at TIMESTAMPTZ,
  graph_synced_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS document_state_config_ordinal_idx ON document_state(config_id, ordinal)`); err != nil {
		return nil, fmt.Errorf("create document_state table: %w", err)
	}
	return &pgStateStore{pool: pool}, nil
}

func (s *pgStateStore) Get(ctx context.Context, docID string) (model.DocumentState, bool, error) {
	var d model.DocumentState
	err := s.pool.QueryRow(ctx, `
SELECT doc_id, config_id, source_path, source_id, ordinal, content_hash,
       vector_synced_at, search_synced_at, graph_synced_at
FROM document_state WHERE doc_id = $1`, docID).Scan(
		&d.DocID, &d.ConfigID, &d.SourcePath, &d.SourceID, &d.Ordinal, &d.ContentHash,
		&d.VectorSyncedAt, &d.SearchSyncedAt, &d.GraphSyncedAt)
	if err == pgx.ErrNoRows {
		return model.DocumentState{}, false, nil
	}
	if err != nil {
		return model.DocumentState{}, false, err
	}
	return d, true, nil
}

func (s *pgStateStore) ListByConfig(ctx context.Context, configID string) ([]model.DocumentState, error) {
	rows, err := s.pool.Query(ctx, `
SELECT doc_id, config_id, source_path, source_id, ordinal, content_hash,
       vector_synced_at, search_synced_at, graph_synced_at
FROM document_state WHERE config_id = $1 ORDER BY ordinal`, configID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.DocumentState
	for rows.Next() {
		var d model.DocumentState
		if err := rows.Scan(&d.DocID, &d.ConfigID, &d.SourcePath, &d.SourceID, &d.Ordinal, &d.ContentHash,
			&d.VectorSyncedAt, &d.SearchSyncedAt, &d.GraphSyncedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *pgStateStore) Upsert(ctx context.Context, st model.DocumentState) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO document_state(doc_id, config_id, source_path, source_id, ordinal, content_hash,
                            vector_synced_at, search_synced_at, graph_synced_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (doc_id) DO UPDATE SET
  ordinal = EXCLUDED.ordinal,
  content_hash = EXCLUDED.content_hash,
  vector_synced_at = EXCLUDED.vector_synced_at,
  search_synced_at = EXCLUDED.search_synced_at,
  graph_synced_at = EXCLUDED.graph_synced_at`,
		st.DocID, st.ConfigID, st.SourcePath, st.SourceID, st.Ordinal, st.ContentHash,
		st.VectorSyncedAt, st.SearchSyncedAt, st.GraphSyncedAt)
	return err
}

func (s *pgStateStore) Delete(ctx context.Context, docID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM document_state WHERE doc_id = $1`, docID)
	return err
}
