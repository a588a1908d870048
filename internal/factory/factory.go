// Package factory builds the pluggable components (embedders, stores, LLM
// providers, KG extractors) named by a loaded Config, enforcing the
// cross-component compatibility rules from section 4.1.
package factory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"ragcore/internal/completion"
	"ragcore/internal/config"
	"ragcore/internal/embedding"
	"ragcore/internal/errs"
	"ragcore/internal/kgextract"
	"ragcore/internal/llm"
	"ragcore/internal/llm/providers"
	"ragcore/internal/model"
	"ragcore/internal/store"
)

// Components bundles every pluggable dependency the ingestion and
// retrieval pipelines need, built once at startup from a Config.
type Components struct {
	Embedder     embedding.Embedder
	VectorStore  store.VectorStore
	LexicalStore store.LexicalStore
	GraphStore   store.GraphStore
	LLMProvider  llm.Provider
	Completion   completion.LLM
	KGExtractor  kgextract.Extractor
	PGPool       *pgxpool.Pool
}

// Build constructs every component named in cfg, enforcing the embedder/
// vector-store dimension check and the Google-embedder-requires-Google-LLM
// rule (config-level checks already ran in Config.Validate; this is where
// the dimension check runs, since it needs a live store).
func Build(ctx context.Context, cfg config.Config) (*Components, error) {
	c := &Components{}

	embedder, err := makeEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	c.Embedder = embedder

	vectorStore, pool, err := makeVectorStore(ctx, cfg, embedder.Dimension())
	if err != nil {
		return nil, err
	}
	c.VectorStore = vectorStore
	c.PGPool = pool

	if vectorStore.Dimension() != 0 && embedder.Dimension() != 0 && vectorStore.Dimension() != embedder.Dimension() {
		return nil, &errs.DimensionMismatch{EmbedderDim: embedder.Dimension(), StoreDim: vectorStore.Dimension()}
	}

	lexicalStore, err := makeLexicalStore(ctx, cfg, c.PGPool)
	if err != nil {
		return nil, err
	}
	c.LexicalStore = lexicalStore

	graphStore, err := makeGraphStore(ctx, cfg, c.PGPool)
	if err != nil {
		return nil, err
	}
	c.GraphStore = graphStore

	provider, err := providers.Build(cfg, http.DefaultClient)
	if err != nil {
		return nil, &errs.ProviderUnavailable{Provider: cfg.LLMProvider, Err: err}
	}
	c.LLMProvider = provider
	c.Completion = completion.New(provider)

	extractor, err := makeKGExtractor(cfg, c.Completion)
	if err != nil {
		return nil, err
	}
	c.KGExtractor = extractor

	return c, nil
}

func makeEmbedder(cfg config.Config) (embedding.Embedder, error) {
	switch strings.ToLower(cfg.EmbeddingKind) {
	case "", "hash", "local":
		return embedding.NewHash(cfg.EmbeddingDimension), nil
	case "http", "openai":
		var params struct {
			BaseURL   string `json:"base_url"`
			Path      string `json:"path"`
			APIKey    string `json:"api_key"`
			APIHeader string `json:"api_header"`
		}
		if len(cfg.Schemas) > 0 {
			_ = json.Unmarshal(cfg.Schemas, &params)
		}
		if params.BaseURL == "" {
			params.BaseURL = "https://api.openai.com"
		}
		if params.Path == "" {
			params.Path = "/v1/embeddings"
		}
		return embedding.NewHTTP(embedding.HTTPConfig{
			BaseURL:   params.BaseURL,
			Path:      params.Path,
			Model:     cfg.EmbeddingModel,
			APIKey:    params.APIKey,
			APIHeader: params.APIHeader,
			Dimension: cfg.EmbeddingDimension,
			Timeout:   cfg.EmbedTimeout,
		}), nil
	case "google":
		if !strings.EqualFold(cfg.LLMProvider, "google") {
			return nil, &config.ConfigError{
				Message:     "embedding kind \"google\" requires LLM_PROVIDER=google",
				Remediation: "set LLM_PROVIDER=google or choose a different embedder",
			}
		}
		return embedding.NewHTTP(embedding.HTTPConfig{
			BaseURL:   "https://generativelanguage.googleapis.com",
			Path:      "/v1beta/models/" + cfg.EmbeddingModel + ":embedContent",
			Model:     cfg.EmbeddingModel,
			Dimension: cfg.EmbeddingDimension,
			Timeout:   cfg.EmbedTimeout,
		}), nil
	default:
		return nil, &config.ConfigError{Message: fmt.Sprintf("unknown EMBEDDING_KIND %q", cfg.EmbeddingKind)}
	}
}

func makeVectorStore(ctx context.Context, cfg config.Config, dimension int) (store.VectorStore, *pgxpool.Pool, error) {
	switch strings.ToLower(cfg.VectorDB.Kind) {
	case "", "memory":
		return store.NewMemoryVector(dimension), nil, nil
	case "qdrant":
		var p struct {
			URL        string `json:"url"`
			Collection string `json:"collection"`
			Metric     string `json:"metric"`
		}
		if len(cfg.VectorDB.Params) > 0 {
			if err := json.Unmarshal(cfg.VectorDB.Params, &p); err != nil {
				return nil, nil, &config.ConfigError{Message: "invalid VECTOR_DB_CONFIG: " + err.Error()}
			}
		}
		if p.Collection == "" {
			p.Collection = "chunks"
		}
		vs, err := store.NewQdrantVector(p.URL, p.Collection, dimension, p.Metric)
		if err != nil {
			return nil, nil, &errs.StoreError{Kind: errs.StoreTransient, Store: "qdrant", Err: err}
		}
		return vs, nil, nil
	case "postgres", "pgvector":
		pool, err := openPostgresPool(ctx, cfg.VectorDB.Params)
		if err != nil {
			return nil, nil, &errs.StoreError{Kind: errs.StoreTransient, Store: "postgres", Err: err}
		}
		var p struct {
			Metric string `json:"metric"`
		}
		if len(cfg.VectorDB.Params) > 0 {
			_ = json.Unmarshal(cfg.VectorDB.Params, &p)
		}
		vs, err := store.NewPostgresVector(pool, dimension, p.Metric)
		if err != nil {
			return nil, nil, &errs.StoreError{Kind: errs.StorePermanent, Store: "postgres", Err: err}
		}
		return vs, pool, nil
	default:
		return nil, nil, &config.ConfigError{Message: fmt.Sprintf("unknown VECTOR_DB %q", cfg.VectorDB.Kind)}
	}
}

func makeLexicalStore(ctx context.Context, cfg config.Config, sharedPool *pgxpool.Pool) (store.LexicalStore, error) {
	switch strings.ToLower(cfg.SearchDB.Kind) {
	case "", "bm25", "memory":
		return store.NewBM25Lexical(), nil
	case "postgres":
		pool := sharedPool
		var err error
		if pool == nil {
			pool, err = openPostgresPool(ctx, cfg.SearchDB.Params)
			if err != nil {
				return nil, &errs.StoreError{Kind: errs.StoreTransient, Store: "postgres", Err: err}
			}
		}
		ls, err := store.NewPostgresLexical(pool)
		if err != nil {
			return nil, &errs.StoreError{Kind: errs.StorePermanent, Store: "postgres", Err: err}
		}
		return ls, nil
	default:
		return nil, &config.ConfigError{Message: fmt.Sprintf("unknown SEARCH_DB %q", cfg.SearchDB.Kind)}
	}
}

func makeGraphStore(ctx context.Context, cfg config.Config, sharedPool *pgxpool.Pool) (store.GraphStore, error) {
	if !cfg.EnableKnowledgeGraph {
		return store.NewMemoryGraph(), nil
	}
	switch strings.ToLower(cfg.GraphDB.Kind) {
	case "", "memory":
		return store.NewMemoryGraph(), nil
	case "postgres":
		pool := sharedPool
		var err error
		if pool == nil {
			pool, err = openPostgresPool(ctx, cfg.GraphDB.Params)
			if err != nil {
				return nil, &errs.StoreError{Kind: errs.StoreTransient, Store: "postgres", Err: err}
			}
		}
		gs, err := store.NewPostgresGraph(pool)
		if err != nil {
			return nil, &errs.StoreError{Kind: errs.StorePermanent, Store: "postgres", Err: err}
		}
		return gs, nil
	default:
		return nil, &config.ConfigError{Message: fmt.Sprintf("unknown GRAPH_DB %q", cfg.GraphDB.Kind)}
	}
}

func makeKGExtractor(cfg config.Config, comp completion.LLM) (kgextract.Extractor, error) {
	if !cfg.EnableKnowledgeGraph {
		return kgextract.NewSimple(), nil
	}
	switch strings.ToLower(cfg.KGExtractorType) {
	case "simple":
		return kgextract.NewSimple(), nil
	case "dynamic":
		return kgextract.NewDynamic(comp), nil
	case "schema", "":
		schema, ok, err := loadSchema(cfg)
		if err != nil {
			return nil, err
		}
		if !ok {
			log.Warn().Str("schema_name", cfg.SchemaName).Msg("schema not found, falling back to dynamic extraction")
			return kgextract.NewDynamic(comp), nil
		}
		return kgextract.NewSchema(comp, schema), nil
	default:
		return nil, &config.ConfigError{Message: fmt.Sprintf("unknown KG_EXTRACTOR_TYPE %q", cfg.KGExtractorType)}
	}
}

func loadSchema(cfg config.Config) (model.Schema, bool, error) {
	if len(cfg.Schemas) == 0 {
		return model.Schema{}, false, nil
	}
	var schemas []model.Schema
	if err := yaml.Unmarshal(cfg.Schemas, &schemas); err != nil {
		if err2 := json.Unmarshal(cfg.Schemas, &schemas); err2 != nil {
			return model.Schema{}, false, &config.ConfigError{Message: "invalid SCHEMAS: " + err.Error()}
		}
	}
	for _, s := range schemas {
		if s.Name == cfg.SchemaName {
			if s.MaxTriplesPerChunk == 0 {
				s.MaxTriplesPerChunk = cfg.MaxTripletsPerChunk
			}
			return s, true, nil
		}
	}
	return model.Schema{}, false, nil
}

func openPostgresPool(ctx context.Context, params json.RawMessage) (*pgxpool.Pool, error) {
	var p struct {
		DSN string `json:"dsn"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("invalid postgres config: %w", err)
		}
	}
	if p.DSN == "" {
		return nil, fmt.Errorf("postgres store configured without a dsn")
	}
	return pgxpool.New(ctx, p.DSN)
}
