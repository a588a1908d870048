package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"ragcore/internal/connectors"
	"ragcore/internal/errs"
	"ragcore/internal/ingestmgr"
	"ragcore/internal/model"
	"ragcore/internal/retrieve"
	"ragcore/internal/version"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]any{"error": err.Error()})
}

// statusFromError maps a typed engine error to an HTTP status code. Unknown
// error types default to 500.
func statusFromError(err error) int {
	var authErr *errs.AuthError
	var notFound *errs.ModelNotFound
	var srcErr *errs.SourceError
	var dimErr *errs.DimensionMismatch
	switch {
	case errors.As(err, &authErr):
		return http.StatusUnauthorized
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &srcErr) && srcErr.Kind == errs.SourceNotFound:
		return http.StatusNotFound
	case errors.As(err, &dimErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"version":               version.Version,
		"document_parser":       s.cfg.DocumentParser,
		"embedding_kind":        s.cfg.EmbeddingKind,
		"kg_extractor_type":     s.cfg.KGExtractorType,
		"enable_knowledge_graph": s.cfg.EnableKnowledgeGraph,
		"vector_db":             s.cfg.VectorDB.Kind,
		"graph_db":              s.cfg.GraphDB.Kind,
		"search_db":             s.cfg.SearchDB.Kind,
		"chunk_size":            s.cfg.ChunkSize,
		"chunk_overlap":         s.cfg.ChunkOverlap,
	})
}

const maxUploadBytes = 256 << 20 // 256 MiB per request

// handleUpload accepts a multipart form and stages each part's bytes into
// the scratch directory, returning the paths a subsequent local_fs /ingest
// call can reference, one at a time, via source_spec.params.path.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := os.MkdirAll(s.scratchDir, 0o755); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, fmt.Errorf("no files in form field %q", "files"))
		return
	}

	var staged []string
	for _, fh := range files {
		src, err := fh.Open()
		if err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}
		dstPath := filepath.Join(s.scratchDir, uuid.NewString()+"_"+filepath.Base(fh.Filename))
		dst, err := os.Create(dstPath)
		if err != nil {
			src.Close()
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		_, copyErr := io.Copy(dst, src)
		src.Close()
		dst.Close()
		if copyErr != nil {
			respondError(w, http.StatusInternalServerError, copyErr)
			return
		}
		staged = append(staged, dstPath)
	}

	respondJSON(w, http.StatusOK, map[string]any{"paths": staged})
}

type ingestRequest struct {
	SourceSpec   model.SourceSpec `json:"source_spec"`
	ChunkSize    int              `json:"chunk_size"`
	ChunkOverlap int              `json:"chunk_overlap"`
	ExtractGraph bool             `json:"extract_graph"`
	MaxTriplets  int              `json:"max_triplets"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.SourceSpec.Family == "" {
		respondError(w, http.StatusBadRequest, fmt.Errorf("source_spec.family is required"))
		return
	}
	runID := s.startRun(req)
	respondJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

type ingestTextRequest struct {
	SourceID     string `json:"source_id"`
	DisplayName  string `json:"display_name"`
	Text         string `json:"text"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
	ExtractGraph bool   `json:"extract_graph"`
	MaxTriplets  int    `json:"max_triplets"`
}

// handleIngestText starts an ingestion run over inline text, by building a
// throwaway connector registry scoped to one ephemeral document and running
// it through the same Manager.Run pipeline as every other source family.
func (s *Server) handleIngestText(w http.ResponseWriter, r *http.Request) {
	var req ingestTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.Text == "" {
		respondError(w, http.StatusBadRequest, fmt.Errorf("text is required"))
		return
	}
	if req.SourceID == "" {
		req.SourceID = uuid.NewString()
	}
	if req.DisplayName == "" {
		req.DisplayName = req.SourceID
	}

	const family = "inline_text"
	conn := connectors.NewInlineText(req.SourceID, req.DisplayName, req.Text)
	mgr := &ingestmgr.Manager{
		Connectors: inlineRegistry(s.manager.Connectors, family, conn),
		Parser:     s.manager.Parser,
		Indexer:    s.manager.Indexer,
		Status:     s.manager.Status,
		Chunks:     s.manager.Chunks,
	}

	runID := uuid.NewString()
	runReq := ingestmgr.RunRequest{
		RunID:        runID,
		SourceSpec:   model.SourceSpec{Family: family, Params: map[string]string{"source_id": req.SourceID}},
		ChunkSize:    orDefault(req.ChunkSize, s.cfg.ChunkSize),
		ChunkOverlap: orDefault(req.ChunkOverlap, s.cfg.ChunkOverlap),
		ExtractGraph: req.ExtractGraph,
		MaxTriplets:  orDefault(req.MaxTriplets, s.cfg.MaxTripletsPerChunk),
	}
	go mgr.Run(context.Background(), runReq)

	respondJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

// startRun launches a run detached from the triggering request's context:
// a client disconnect must never abort an in-flight ingest. Cancellation is
// explicit, via /cancel-processing.
func (s *Server) startRun(req ingestRequest) string {
	runID := uuid.NewString()
	runReq := ingestmgr.RunRequest{
		RunID:        runID,
		SourceSpec:   req.SourceSpec,
		ChunkSize:    orDefault(req.ChunkSize, s.cfg.ChunkSize),
		ChunkOverlap: orDefault(req.ChunkOverlap, s.cfg.ChunkOverlap),
		ExtractGraph: req.ExtractGraph,
		MaxTriplets:  orDefault(req.MaxTriplets, s.cfg.MaxTripletsPerChunk),
	}
	go s.manager.Run(context.Background(), runReq)
	return runID
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func (s *Server) handleProcessingStatus(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")
	run, ok := s.status.Get(runID)
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Errorf("unknown run_id %q", runID))
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// handleProcessingEvents streams IngestRun snapshots as Server-Sent Events
// until the run reaches a terminal phase or the client disconnects.
func (s *Server) handleProcessingEvents(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")
	run, ok := s.status.Get(runID)
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Errorf("unknown run_id %q", runID))
		return
	}

	flusher, canFlush := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeEvent := func(run model.IngestRun) bool {
		b, err := json.Marshal(run)
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", b); err != nil {
			return false
		}
		if canFlush {
			flusher.Flush()
		}
		return true
	}
	if !writeEvent(run) {
		return
	}
	if isTerminal(run.Phase) {
		return
	}

	ch, unsub, ok := s.status.Subscribe(runID)
	if !ok {
		return
	}
	defer unsub()

	for {
		select {
		case <-r.Context().Done():
			return
		case run, open := <-ch:
			if !open {
				return
			}
			if !writeEvent(run) {
				return
			}
			if isTerminal(run.Phase) {
				return
			}
		}
	}
}

func isTerminal(p model.Phase) bool {
	return p == model.PhaseDone || p == model.PhaseCancelled || p == model.PhaseFailed
}

func (s *Server) handleCancelProcessing(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")
	if !s.status.RequestCancel(runID) {
		respondError(w, http.StatusNotFound, fmt.Errorf("unknown run_id %q", runID))
		return
	}
	log.Info().Str("run_id", runID).Msg("cancellation requested")
	respondJSON(w, http.StatusAccepted, map[string]string{"run_id": runID, "status": "cancel_requested"})
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
	Modes *modesRequest `json:"modes,omitempty"`
}

type modesRequest struct {
	Vector  *bool `json:"vector,omitempty"`
	Lexical *bool `json:"lexical,omitempty"`
	Graph   *bool `json:"graph,omitempty"`
}

func (m *modesRequest) toModes() retrieve.Modes {
	modes := retrieve.AllModes
	if m == nil {
		return modes
	}
	if m.Vector != nil {
		modes.Vector = *m.Vector
	}
	if m.Lexical != nil {
		modes.Lexical = *m.Lexical
	}
	if m.Graph != nil {
		modes.Graph = *m.Graph
	}
	return modes
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.Query == "" {
		respondError(w, http.StatusBadRequest, fmt.Errorf("query is required"))
		return
	}
	nodes, err := s.retriever.Search(r.Context(), req.Query, req.TopK, req.Modes.toModes(), retrieve.DefaultWeights)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"results": nodes})
}

type queryRequest struct {
	Query string        `json:"query"`
	TopK  int           `json:"top_k"`
	Modes *modesRequest `json:"modes,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.Query == "" {
		respondError(w, http.StatusBadRequest, fmt.Errorf("query is required"))
		return
	}
	answer, err := s.query.Ask(r.Context(), req.Query, req.TopK, req.Modes.toModes())
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"answer": answer.Text, "citations": answer.Citations})
}

// handleGraph returns a query-scoped subgraph, never the full graph: a
// caller must supply either root (an exact seed entity) or query (free text
// resolved to seed entities the same way the hybrid retriever's graph leg
// does).
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	if s.graphStore == nil {
		respondError(w, http.StatusNotImplemented, fmt.Errorf("graph store is not configured"))
		return
	}

	var seeds []string
	if root := r.URL.Query().Get("root"); root != "" {
		seeds = []string{root}
	} else if q := r.URL.Query().Get("query"); q != "" {
		seeds = retrieve.SeedEntities(q)
	}
	if len(seeds) == 0 {
		respondError(w, http.StatusBadRequest, fmt.Errorf("one of root or query is required"))
		return
	}

	depth := 2
	if v := r.URL.Query().Get("depth"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			depth = n
		}
	}
	if depth > 2 {
		depth = 2
	}

	sub, err := s.graphStore.Query(r.Context(), seeds, depth)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, sub)
}

func (s *Server) handleCleanupUploads(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.scratchDir)
	if err != nil {
		if os.IsNotExist(err) {
			respondJSON(w, http.StatusOK, map[string]int{"removed": 0})
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	removed := 0
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(s.scratchDir, e.Name())); err == nil {
			removed++
		}
	}
	respondJSON(w, http.StatusOK, map[string]int{"removed": removed})
}
