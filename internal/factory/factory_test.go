package factory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragcore/internal/config"
	"ragcore/internal/kgextract"
	"ragcore/internal/store"
)

func baseConfig() config.Config {
	return config.Config{
		LLMProvider:        "openai",
		EmbeddingKind:      "hash",
		EmbeddingDimension: 32,
		VectorDB:           config.StoreConfig{Kind: "memory"},
		SearchDB:           config.StoreConfig{Kind: "bm25"},
		GraphDB:            config.StoreConfig{Kind: "memory"},
		KGExtractorType:    "simple",
	}
}

func TestBuildWithDefaultsWiresInMemoryComponents(t *testing.T) {
	c, err := Build(context.Background(), baseConfig())
	require.NoError(t, err)
	require.NotNil(t, c.Embedder)
	assert.Equal(t, 32, c.Embedder.Dimension())
	require.NotNil(t, c.VectorStore)
	require.NotNil(t, c.LexicalStore)
	require.NotNil(t, c.GraphStore)
	require.NotNil(t, c.Completion)
	require.NotNil(t, c.KGExtractor)
	assert.Nil(t, c.PGPool)
}

func TestBuildRejectsUnknownVectorDBKind(t *testing.T) {
	cfg := baseConfig()
	cfg.VectorDB = config.StoreConfig{Kind: "not-a-real-store"}

	_, err := Build(context.Background(), cfg)
	require.Error(t, err)
}

func TestBuildRejectsUnknownEmbeddingKind(t *testing.T) {
	cfg := baseConfig()
	cfg.EmbeddingKind = "not-a-real-kind"

	_, err := Build(context.Background(), cfg)
	require.Error(t, err)
}

func TestBuildGoogleEmbeddingRequiresGoogleLLMProvider(t *testing.T) {
	cfg := baseConfig()
	cfg.EmbeddingKind = "google"
	cfg.LLMProvider = "openai"

	_, err := Build(context.Background(), cfg)
	require.Error(t, err)

	var cfgErr *config.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestBuildDisabledKnowledgeGraphUsesSimpleExtractorAndMemoryGraph(t *testing.T) {
	cfg := baseConfig()
	cfg.EnableKnowledgeGraph = false
	cfg.KGExtractorType = "dynamic"

	c, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, c.GraphStore)
	require.NotNil(t, c.KGExtractor)
	assert.IsType(t, store.NewMemoryGraph(), c.GraphStore)
	assert.IsType(t, kgextract.NewSimple(), c.KGExtractor)
}

func TestLoadSchemaReturnsFalseWhenNoSchemasConfigured(t *testing.T) {
	schema, ok, err := loadSchema(baseConfig())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, schema.Name)
}

func TestLoadSchemaFindsNamedSchemaAndAppliesDefaultTripleCap(t *testing.T) {
	cfg := baseConfig()
	cfg.SchemaName = "sample"
	cfg.MaxTripletsPerChunk = 7
	cfg.Schemas = []byte(`
- name: sample
  entity_types: ["star", "planet"]
  relation_types: ["orbited_by"]
  strict: true
  validation_pairs:
    - subject_type: star
      predicate: orbited_by
      object_type: planet
`)

	schema, ok, err := loadSchema(cfg)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sample", schema.Name)
	assert.Equal(t, 7, schema.MaxTriplesPerChunk)
	assert.True(t, schema.Allows("star", "orbited_by", "planet"))
}
