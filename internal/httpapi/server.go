// Package httpapi exposes the engine's REST surface: health/status,
// upload staging, ingestion run control, hybrid search/query, and subgraph
// lookup. Routing follows the teacher's Go 1.22+ http.ServeMux pattern
// matching idiom — no external router library.
package httpapi

import (
	"net/http"

	"ragcore/internal/config"
	"ragcore/internal/connectors"
	"ragcore/internal/ingestmgr"
	"ragcore/internal/query"
	"ragcore/internal/retrieve"
	"ragcore/internal/status"
	"ragcore/internal/store"
)

// Server wires the engine's components to HTTP handlers.
type Server struct {
	cfg        config.Config
	manager    *ingestmgr.Manager
	status     *status.Registry
	retriever  *retrieve.Retriever
	query      *query.Engine
	graphStore store.GraphStore
	scratchDir string

	mux *http.ServeMux
}

// NewServer builds a Server over the already-constructed engine components.
func NewServer(
	cfg config.Config,
	manager *ingestmgr.Manager,
	statusReg *status.Registry,
	retriever *retrieve.Retriever,
	queryEngine *query.Engine,
	graphStore store.GraphStore,
	scratchDir string,
) *Server {
	s := &Server{
		cfg:        cfg,
		manager:    manager,
		status:     statusReg,
		retriever:  retriever,
		query:      queryEngine,
		graphStore: graphStore,
		scratchDir: scratchDir,
		mux:        http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.HandleFunc("POST /upload", s.handleUpload)
	s.mux.HandleFunc("POST /ingest", s.handleIngest)
	s.mux.HandleFunc("POST /ingest-text", s.handleIngestText)
	s.mux.HandleFunc("GET /processing-status/{run_id}", s.handleProcessingStatus)
	s.mux.HandleFunc("GET /processing-events/{run_id}", s.handleProcessingEvents)
	s.mux.HandleFunc("POST /cancel-processing/{run_id}", s.handleCancelProcessing)
	s.mux.HandleFunc("POST /search", s.handleSearch)
	s.mux.HandleFunc("POST /query", s.handleQuery)
	s.mux.HandleFunc("GET /graph", s.handleGraph)
	s.mux.HandleFunc("POST /cleanup-uploads", s.handleCleanupUploads)
}

// inlineRegistry builds a connector registry that is the manager's base
// registry plus one ephemeral connector, used by /ingest-text so an inline
// document can flow through the same Manager.Run pipeline without a
// dedicated code path.
func inlineRegistry(base connectors.Registry, family string, conn connectors.Connector) connectors.Registry {
	reg := make(connectors.Registry, len(base)+1)
	for k, v := range base {
		reg[k] = v
	}
	reg[family] = conn
	return reg
}
