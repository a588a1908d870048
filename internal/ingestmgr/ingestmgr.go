// Package ingestmgr orchestrates one ingestion run end to end: fetching
// documents from a connector, parsing, indexing, and reporting progress
// through the status registry, with cooperative cancellation checkpoints.
package ingestmgr

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"ragcore/internal/connectors"
	"ragcore/internal/errs"
	"ragcore/internal/index"
	"ragcore/internal/model"
	"ragcore/internal/parser"
	"ragcore/internal/status"
)

// ChunkRegistry records which chunk_ids belong to which document, so a
// later re-ingest or tombstone can delete exactly that document's chunks.
// It also backs retrieve.DocLookup.
type ChunkRegistry struct {
	mu      sync.RWMutex
	byDoc   map[string][]string
	byChunk map[string]chunkInfo
}

type chunkInfo struct {
	DocID, DisplayName, LogicalPath, Text string
}

// NewChunkRegistry constructs an empty registry.
func NewChunkRegistry() *ChunkRegistry {
	return &ChunkRegistry{byDoc: make(map[string][]string), byChunk: make(map[string]chunkInfo)}
}

// Record associates chunks with a document for later lookup/deletion.
func (r *ChunkRegistry) Record(docID, displayName, logicalPath string, chunks []model.Chunk) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ChunkID
		r.byChunk[c.ChunkID] = chunkInfo{DocID: docID, DisplayName: displayName, LogicalPath: logicalPath, Text: c.Text}
	}
	r.byDoc[docID] = ids
}

// ChunkIDsForDoc returns the known chunk ids for docID, for deleting stale
// content before re-indexing.
func (r *ChunkRegistry) ChunkIDsForDoc(docID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.byDoc[docID]...)
}

// Lookup implements retrieve.DocLookup.
func (r *ChunkRegistry) Lookup(chunkID string) (docID, displayName, logicalPath, text string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, found := r.byChunk[chunkID]
	if !found {
		return "", "", "", "", false
	}
	return info.DocID, info.DisplayName, info.LogicalPath, info.Text, true
}

// RunRequest describes one ingestion run.
type RunRequest struct {
	RunID        string
	SourceSpec   model.SourceSpec
	ChunkSize    int
	ChunkOverlap int
	ExtractGraph bool
	MaxTriplets  int
}

// Manager drives runs through the queued -> parsing -> vectorizing ->
// indexing_lexical -> finalizing -> done|cancelled|failed phases. Chunking
// and graph extraction run inside each file's vectorizing step; the
// chunking and extracting_graph phases are never reported.
type Manager struct {
	Connectors connectors.Registry
	Parser     parser.Parser
	Indexer    *index.Builder
	Status     *status.Registry
	Chunks     *ChunkRegistry
}

// Run executes req synchronously, reporting phase/progress transitions to
// Status as it goes. Callers typically invoke this from a goroutine spawned
// by the HTTP handler that created the run.
func (m *Manager) Run(ctx context.Context, req RunRequest) {
	run := model.IngestRun{
		RunID:      req.RunID,
		SourceSpec: req.SourceSpec,
		Phase:      model.PhaseQueued,
		StartedAt:  time.Now(),
		PerFile:    map[string]*model.FileProgress{},
	}
	m.Status.Start(run)
	log.Info().Str("run_id", req.RunID).Str("family", req.SourceSpec.Family).Msg("ingest run started")

	conn, ok := m.Connectors[req.SourceSpec.Family]
	if !ok {
		m.fail(&run, fmt.Errorf("no connector registered for family %q", req.SourceSpec.Family))
		return
	}

	run.Phase = model.PhaseParsing
	m.Status.Update(run)
	docs, err := conn.List(ctx, req.SourceSpec.Params)
	if err != nil {
		m.fail(&run, err)
		return
	}
	run.FilesTotal = len(docs)
	m.Status.Update(run)

	for _, doc := range docs {
		if m.Status.IsCancelled(req.RunID) {
			run.Phase = model.PhaseCancelled
			run.CompletedAt = time.Now()
			m.Status.Update(run)
			return
		}
		if ctx.Err() != nil {
			m.fail(&run, &errs.Cancelled{RunID: req.RunID})
			return
		}

		fetched, err := conn.Fetch(ctx, doc.SourceID)
		if err != nil {
			log.Warn().Err(err).Str("run_id", req.RunID).Str("path", doc.LogicalPath).Msg("fetch failed")
			m.markFileError(&run, doc.LogicalPath, err)
			continue
		}

		parsed, err := m.Parser.Parse(ctx, fetched)
		if err != nil {
			m.markFileError(&run, doc.LogicalPath, err)
			continue
		}

		if stale := m.Chunks.ChunkIDsForDoc(doc.SourceID); len(stale) > 0 {
			_ = m.Indexer.DeleteDocument(ctx, stale)
		}

		run.Phase = model.PhaseVectorizing
		m.Status.Update(run)
		result, err := m.Indexer.IndexDocument(ctx, doc.SourceID, parsed, index.Options{
			ChunkSize:           req.ChunkSize,
			ChunkOverlap:        req.ChunkOverlap,
			ExtractGraph:        req.ExtractGraph,
			MaxTripletsPerChunk: req.MaxTriplets,
		})
		if err != nil {
			m.markFileError(&run, doc.LogicalPath, err)
			continue
		}
		m.Chunks.Record(doc.SourceID, doc.DisplayName, doc.LogicalPath, result.Chunks)

		run.Phase = model.PhaseIndexingLexical
		run.FilesDone++
		run.Counters.Chunks += len(result.Chunks)
		if result.GraphPartial {
			run.GraphPartial = true
		}
		if run.FilesTotal > 0 {
			run.Percent = run.FilesDone * 100 / run.FilesTotal
		}
		m.Status.Update(run)
	}

	run.Phase = model.PhaseFinalizing
	m.Status.Update(run)

	run.Phase = model.PhaseDone
	run.Percent = 100
	run.CompletedAt = time.Now()
	m.Status.Update(run)
	log.Info().Str("run_id", req.RunID).Int("files_done", run.FilesDone).Int("chunks", run.Counters.Chunks).Msg("ingest run done")
}

func (m *Manager) fail(run *model.IngestRun, err error) {
	run.Phase = model.PhaseFailed
	run.ErrorKind = errorKind(err)
	run.CompletedAt = time.Now()
	m.Status.Update(*run)
	log.Error().Err(err).Str("run_id", run.RunID).Str("error_kind", run.ErrorKind).Msg("ingest run failed")
}

func (m *Manager) markFileError(run *model.IngestRun, path string, err error) {
	run.PerFile[path] = &model.FileProgress{
		Phase: model.PhaseFailed,
		Error: &model.FileError{Kind: errorKind(err), Message: err.Error()},
	}
	m.Status.Update(*run)
}

func errorKind(err error) string {
	switch err.(type) {
	case *errs.SourceError:
		return "source_error"
	case *errs.ParseFailure, *errs.ParseTimeout:
		return "parse_error"
	case *errs.EmbeddingError:
		return "embedding_error"
	case *errs.StoreError:
		return "store_error"
	case *errs.KGExtractionError:
		return "kg_extraction_error"
	case *errs.Cancelled:
		return "cancelled"
	default:
		return "unknown_error"
	}
}
