// Package config loads the engine's configuration from a flat key-value
// environment, following the contract in section 6 of the design document.
package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// StoreConfig carries a store kind name plus its backend-specific JSON
// connection parameters, decoded lazily by the matching factory constructor.
type StoreConfig struct {
	Kind   string
	Params json.RawMessage
}

// Config is the single immutable value built at startup from the
// environment. Nothing in the process may mutate it after Load returns.
type Config struct {
	LLMProvider string
	LLMClient   LLMClientConfig

	VectorDB StoreConfig
	GraphDB  StoreConfig
	SearchDB StoreConfig

	DocumentParser string // "docling" | "cloud"

	EmbeddingKind      string
	EmbeddingModel     string
	EmbeddingDimension int

	KGExtractorType string // "simple" | "schema" | "dynamic"
	SchemaName      string // "default" | "sample" | <custom>
	Schemas         json.RawMessage

	EnableKnowledgeGraph bool
	MaxTripletsPerChunk  int

	ChunkSize    int
	ChunkOverlap int

	ParseTimeout      time.Duration
	EmbedTimeout      time.Duration
	StoreTimeout      time.Duration
	LLMTimeout        time.Duration
	ConnectorTimeout  time.Duration
	GraphExtractTimeout time.Duration

	StatusRetention time.Duration

	Parallelism int

	HTTPAddr string
}

// ConfigError is raised for any problem found while validating the loaded
// configuration. It carries remediation guidance, per section 7's
// propagation policy (configuration errors abort at startup, exit code 2).
type ConfigError struct {
	Message     string
	Remediation string
}

func (e *ConfigError) Error() string {
	if e.Remediation == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Remediation)
}

// Load reads the environment (overlaying any .env file) and returns a
// validated Config. godotenv.Overload lets a repo-local .env win over
// pre-existing OS environment variables, matching the teacher's own
// configuration-loading idiom.
func Load() (Config, error) {
	_ = godotenv.Overload()

	cfg := Config{
		DocumentParser:       "docling",
		EmbeddingKind:        "http",
		KGExtractorType:      "dynamic",
		SchemaName:           "default",
		MaxTripletsPerChunk:  10,
		ChunkSize:            512,
		ChunkOverlap:         50,
		ParseTimeout:         30 * time.Second,
		EmbedTimeout:         30 * time.Second,
		StoreTimeout:         10 * time.Second,
		LLMTimeout:           60 * time.Second,
		ConnectorTimeout:     30 * time.Second,
		GraphExtractTimeout:  30 * time.Second,
		StatusRetention:      3600 * time.Second,
		Parallelism:          8,
		HTTPAddr:             ":8080",
	}

	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(getenv("LLM_PROVIDER")))
	cfg.LLMClient = loadLLMClientConfig(cfg.LLMProvider)

	cfg.VectorDB = storeConfig("VECTOR_DB", "VECTOR_DB_CONFIG", "memory")
	cfg.GraphDB = storeConfig("GRAPH_DB", "GRAPH_DB_CONFIG", "memory")
	cfg.SearchDB = storeConfig("SEARCH_DB", "SEARCH_DB_CONFIG", "bm25")

	if v := strings.TrimSpace(getenv("DOCUMENT_PARSER")); v != "" {
		cfg.DocumentParser = v
	}
	if v := strings.TrimSpace(getenv("EMBEDDING_KIND")); v != "" {
		cfg.EmbeddingKind = v
	}
	cfg.EmbeddingModel = strings.TrimSpace(getenv("EMBEDDING_MODEL"))
	if v := strings.TrimSpace(getenv("EMBEDDING_DIMENSION")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, &ConfigError{Message: fmt.Sprintf("EMBEDDING_DIMENSION %q is not an integer", v)}
		}
		cfg.EmbeddingDimension = n
	}

	if v := strings.TrimSpace(getenv("KG_EXTRACTOR_TYPE")); v != "" {
		cfg.KGExtractorType = v
	}
	if v := strings.TrimSpace(getenv("SCHEMA_NAME")); v != "" {
		cfg.SchemaName = v
	}
	if v := strings.TrimSpace(getenv("SCHEMAS")); v != "" {
		cfg.Schemas = json.RawMessage(v)
	}
	if v := strings.TrimSpace(getenv("ENABLE_KNOWLEDGE_GRAPH")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, &ConfigError{Message: fmt.Sprintf("ENABLE_KNOWLEDGE_GRAPH %q is not a boolean", v)}
		}
		cfg.EnableKnowledgeGraph = b
	}
	if n, ok, err := parseIntEnv("MAX_TRIPLETS_PER_CHUNK"); err != nil {
		return Config{}, err
	} else if ok {
		cfg.MaxTripletsPerChunk = n
	}
	if n, ok, err := parseIntEnv("CHUNK_SIZE"); err != nil {
		return Config{}, err
	} else if ok {
		cfg.ChunkSize = n
	}
	if n, ok, err := parseIntEnv("CHUNK_OVERLAP"); err != nil {
		return Config{}, err
	} else if ok {
		cfg.ChunkOverlap = n
	}
	if n, ok, err := parseIntEnv("PARALLELISM"); err != nil {
		return Config{}, err
	} else if ok {
		cfg.Parallelism = n
	}
	if v := strings.TrimSpace(getenv("HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}

	if err := loadTimeoutS("PARSE_TIMEOUT_S", &cfg.ParseTimeout); err != nil {
		return Config{}, err
	}
	if err := loadTimeoutS("EMBED_TIMEOUT_S", &cfg.EmbedTimeout); err != nil {
		return Config{}, err
	}
	if err := loadTimeoutS("STORE_TIMEOUT_S", &cfg.StoreTimeout); err != nil {
		return Config{}, err
	}
	if err := loadTimeoutS("LLM_TIMEOUT_S", &cfg.LLMTimeout); err != nil {
		return Config{}, err
	}
	if err := loadTimeoutS("CONNECTOR_TIMEOUT_S", &cfg.ConnectorTimeout); err != nil {
		return Config{}, err
	}
	if err := loadTimeoutS("GRAPH_EXTRACT_TIMEOUT_S", &cfg.GraphExtractTimeout); err != nil {
		return Config{}, err
	}
	if err := loadTimeoutS("STATUS_RETENTION_S", &cfg.StatusRetention); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces the factory-layer compatibility rules from section 4.1
// that are knowable from configuration alone (store/provider wiring-level
// mismatches, e.g. dimension checks against a live store, are caught later
// by the factory once it has opened the store).
func (c Config) Validate() error {
	if c.ChunkOverlap >= c.ChunkSize && c.ChunkSize > 0 {
		return &ConfigError{
			Message:     fmt.Sprintf("chunk overlap %d >= chunk size %d", c.ChunkOverlap, c.ChunkSize),
			Remediation: "set CHUNK_OVERLAP smaller than CHUNK_SIZE",
		}
	}
	if strings.EqualFold(c.EmbeddingKind, "google") && c.LLMProvider != "" && !strings.EqualFold(c.LLMProvider, "google") {
		return &ConfigError{
			Message:     fmt.Sprintf("embedding kind %q requires LLM_PROVIDER=google (got %q)", c.EmbeddingKind, c.LLMProvider),
			Remediation: "set LLM_PROVIDER=google or choose a non-Google embedder",
		}
	}
	return nil
}

// loadLLMClientConfig reads the provider-specific OPENAI_*/ANTHROPIC_*/GOOGLE_*
// variables needed to construct whichever internal/llm client Provider
// selects. Unused providers' variables are simply left zero-valued.
func loadLLMClientConfig(provider string) LLMClientConfig {
	lc := LLMClientConfig{Provider: provider}

	lc.OpenAI = OpenAIConfig{
		APIKey:  strings.TrimSpace(getenv("OPENAI_API_KEY")),
		BaseURL: strings.TrimSpace(getenv("OPENAI_BASE_URL")),
		Model:   strings.TrimSpace(getenv("OPENAI_MODEL")),
		API:     strings.TrimSpace(getenv("OPENAI_API_MODE")),
	}
	if b, err := strconv.ParseBool(strings.TrimSpace(getenv("OPENAI_LOG_PAYLOADS"))); err == nil {
		lc.OpenAI.LogPayloads = b
	}

	lc.Anthropic = AnthropicConfig{
		APIKey:  strings.TrimSpace(getenv("ANTHROPIC_API_KEY")),
		BaseURL: strings.TrimSpace(getenv("ANTHROPIC_BASE_URL")),
		Model:   strings.TrimSpace(getenv("ANTHROPIC_MODEL")),
	}
	if b, err := strconv.ParseBool(strings.TrimSpace(getenv("ANTHROPIC_PROMPT_CACHE"))); err == nil {
		lc.Anthropic.PromptCache.Enabled = b
	}

	lc.Google = GoogleConfig{
		APIKey:  strings.TrimSpace(getenv("GOOGLE_API_KEY")),
		BaseURL: strings.TrimSpace(getenv("GOOGLE_BASE_URL")),
		Model:   strings.TrimSpace(getenv("GOOGLE_MODEL")),
	}
	if n, ok, _ := parseIntEnv("GOOGLE_TIMEOUT_S"); ok {
		lc.Google.Timeout = n
	}

	return lc
}

func storeConfig(kindVar, paramsVar, defaultKind string) StoreConfig {
	sc := StoreConfig{Kind: defaultKind}
	if v := strings.ToLower(strings.TrimSpace(getenv(kindVar))); v != "" {
		sc.Kind = v
	}
	if v := strings.TrimSpace(getenv(paramsVar)); v != "" {
		sc.Params = json.RawMessage(v)
	}
	return sc
}

func loadTimeoutS(key string, dst *time.Duration) error {
	n, ok, err := parseIntEnv(key)
	if err != nil {
		return err
	}
	if ok {
		*dst = time.Duration(n) * time.Second
	}
	return nil
}

func parseIntEnv(key string) (int, bool, error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, &ConfigError{Message: fmt.Sprintf("%s %q is not an integer", key, v)}
	}
	return n, true, nil
}
