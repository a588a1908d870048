// Command server runs the retrieval engine's HTTP API: ingestion, hybrid
// search/query, and subgraph lookup over whichever stores and providers the
// environment configures.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"ragcore/internal/config"
	"ragcore/internal/connectors"
	"ragcore/internal/factory"
	"ragcore/internal/httpapi"
	"ragcore/internal/index"
	"ragcore/internal/ingestmgr"
	"ragcore/internal/objectstore"
	"ragcore/internal/observability"
	"ragcore/internal/parser"
	"ragcore/internal/query"
	"ragcore/internal/retrieve"
	"ragcore/internal/status"
)

func main() {
	os.Exit(run())
}

func run() int {
	observability.InitLogger(os.Getenv("LOG_PATH"), os.Getenv("LOG_LEVEL"))

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("configuration error")
		return 2
	}

	shutdownOTel, err := observability.InitOTel(context.Background(), obsConfigFromEnv())
	if err != nil {
		log.Warn().Err(err).Msg("otel init failed, continuing without tracing")
		shutdownOTel = func(context.Context) error { return nil }
	}
	defer shutdownOTel(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	components, err := factory.Build(ctx, cfg)
	cancel()
	if err != nil {
		log.Error().Err(err).Msg("failed to build store/provider components")
		return 3
	}
	if components.PGPool != nil {
		defer components.PGPool.Close()
	}

	docParser := buildParser(cfg)
	connRegistry := buildConnectors()

	statusReg := status.New(cfg.StatusRetention, nil)
	chunks := ingestmgr.NewChunkRegistry()
	indexBuilder := &index.Builder{
		Embedder:     components.Embedder,
		VectorStore:  components.VectorStore,
		LexicalStore: components.LexicalStore,
		GraphStore:   components.GraphStore,
		KGExtractor:  components.KGExtractor,
	}
	manager := &ingestmgr.Manager{
		Connectors: connRegistry,
		Parser:     docParser,
		Indexer:    indexBuilder,
		Status:     statusReg,
		Chunks:     chunks,
	}
	retriever := &retrieve.Retriever{
		Embedder:     components.Embedder,
		VectorStore:  components.VectorStore,
		LexicalStore: components.LexicalStore,
		GraphStore:   components.GraphStore,
		Docs:         chunks,
	}
	queryEngine := &query.Engine{Retriever: retriever, Completion: components.Completion}

	scratchDir := os.Getenv("SCRATCH_DIR")
	if scratchDir == "" {
		scratchDir = os.TempDir() + "/ragcore-uploads"
	}

	server := httpapi.NewServer(cfg, manager, statusReg, retriever, queryEngine, components.GraphStore, scratchDir)

	go evictLoop(statusReg, cfg.StatusRetention)

	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: server}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Error().Err(err).Msg("server failed")
		return 1
	case <-stop:
		log.Info().Msg("shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown failed")
		return 130
	}
	return 0
}

func buildParser(cfg config.Config) parser.Parser {
	if cfg.DocumentParser == "cloud" {
		return parser.NewCloud(parser.CloudConfig{
			BaseURL: os.Getenv("CLOUD_PARSER_BASE_URL"),
			APIKey:  os.Getenv("CLOUD_PARSER_API_KEY"),
			Timeout: cfg.ParseTimeout,
		})
	}
	return parser.NewLocal()
}

// buildConnectors registers local_fs and web_page unconditionally and s3
// only once S3_BUCKET is set; the generic HTTP-backed families are not
// registered here. An unregistered family surfaces a "no connector
// registered" error from the ingestion manager instead of failing startup.
func buildConnectors() connectors.Registry {
	reg := connectors.Registry{
		"local_fs": connectors.NewLocalFS(),
		"web_page": connectors.NewWebPage(30 * time.Second),
	}
	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		if store, err := buildS3Store(); err == nil {
			reg["s3"] = connectors.NewS3(store)
		} else {
			log.Warn().Err(err).Msg("s3 connector not registered")
		}
	}
	return reg
}

func buildS3Store() (objectstore.ObjectStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return objectstore.NewS3Store(ctx, config.S3Config{
		Bucket:       os.Getenv("S3_BUCKET"),
		Region:       os.Getenv("S3_REGION"),
		Endpoint:     os.Getenv("S3_ENDPOINT"),
		AccessKey:    os.Getenv("S3_ACCESS_KEY"),
		SecretKey:    os.Getenv("S3_SECRET_KEY"),
		UsePathStyle: os.Getenv("S3_USE_PATH_STYLE") == "true",
		Prefix:       os.Getenv("S3_PREFIX"),
	})
}

func obsConfigFromEnv() config.ObsConfig {
	return config.ObsConfig{
		OTLP:           os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ServiceName:    envOr("OTEL_SERVICE_NAME", "ragcore"),
		ServiceVersion: os.Getenv("OTEL_SERVICE_VERSION"),
		Environment:    envOr("OTEL_ENVIRONMENT", "dev"),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func evictLoop(reg *status.Registry, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(ttl / 4)
	defer ticker.Stop()
	for range ticker.C {
		reg.Evict()
	}
}
