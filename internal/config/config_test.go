package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func withEnv(t *testing.T, vals map[string]string) {
	t.Helper()
	old := getenv
	getenv = func(key string) string { return vals[key] }
	t.Cleanup(func() { getenv = old })
}

func TestLoadDefaults(t *testing.T) {
	withEnv(t, map[string]string{})
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "memory", cfg.VectorDB.Kind)
	require.Equal(t, "bm25", cfg.SearchDB.Kind)
	require.Equal(t, 512, cfg.ChunkSize)
	require.Equal(t, 50, cfg.ChunkOverlap)
	require.False(t, cfg.EnableKnowledgeGraph)
}

func TestLoadOverrides(t *testing.T) {
	withEnv(t, map[string]string{
		"LLM_PROVIDER":           "anthropic",
		"VECTOR_DB":              "qdrant",
		"VECTOR_DB_CONFIG":       `{"url":"http://localhost:6334"}`,
		"EMBEDDING_DIMENSION":    "768",
		"ENABLE_KNOWLEDGE_GRAPH": "true",
		"CHUNK_SIZE":             "1000",
		"CHUNK_OVERLAP":          "100",
		"PARSE_TIMEOUT_S":        "5",
	})
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "anthropic", cfg.LLMProvider)
	require.Equal(t, "qdrant", cfg.VectorDB.Kind)
	require.JSONEq(t, `{"url":"http://localhost:6334"}`, string(cfg.VectorDB.Params))
	require.Equal(t, 768, cfg.EmbeddingDimension)
	require.True(t, cfg.EnableKnowledgeGraph)
	require.Equal(t, 5, int(cfg.ParseTimeout.Seconds()))
}

func TestValidateRejectsBadChunking(t *testing.T) {
	withEnv(t, map[string]string{"CHUNK_SIZE": "100", "CHUNK_OVERLAP": "100"})
	_, err := Load()
	require.Error(t, err)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
}

func TestValidateRejectsGoogleEmbedderWithoutGoogleLLM(t *testing.T) {
	withEnv(t, map[string]string{"EMBEDDING_KIND": "google", "LLM_PROVIDER": "openai"})
	_, err := Load()
	require.Error(t, err)
}

func TestBadIntegerIsConfigError(t *testing.T) {
	withEnv(t, map[string]string{"CHUNK_SIZE": "not-a-number"})
	_, err := Load()
	require.Error(t, err)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
}
