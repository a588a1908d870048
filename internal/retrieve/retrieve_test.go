package retrieve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragcore/internal/embedding"
	"ragcore/internal/ingestmgr"
	"ragcore/internal/model"
	"ragcore/internal/store"
)

func newFixture(t *testing.T) (*Retriever, *ingestmgr.ChunkRegistry) {
	t.Helper()
	emb := embedding.NewHash(32)
	vec := store.NewMemoryVector(32)
	lex := store.NewBM25Lexical()
	graph := store.NewMemoryGraph()
	docs := ingestmgr.NewChunkRegistry()

	ctx := context.Background()

	starText := "Alpha Centauri is a star system close to the Sun"
	breadText := "Bread recipes for sourdough bakers"

	vecs, err := emb.EmbedBatch(ctx, []string{starText, breadText})
	require.NoError(t, err)
	require.NoError(t, vec.Upsert(ctx, []store.VectorItem{
		{ID: "star-chunk", Vector: vecs[0]},
		{ID: "bread-chunk", Vector: vecs[1]},
	}))
	require.NoError(t, lex.Upsert(ctx, []store.LexicalItem{
		{ID: "star-chunk", Text: starText},
		{ID: "bread-chunk", Text: breadText},
	}))
	require.NoError(t, graph.UpsertTriples(ctx, []store.Triple{
		{SubjectLabel: "Alpha", SubjectType: "star", Predicate: "ORBITED_BY", ObjectLabel: "Centauri", ObjectType: "planet", ChunkID: "star-chunk", DocID: "doc1"},
	}))

	docs.Record("doc1", "star.txt", "star.txt", []model.Chunk{{ChunkID: "star-chunk", Text: starText}})
	docs.Record("doc2", "bread.txt", "bread.txt", []model.Chunk{{ChunkID: "bread-chunk", Text: breadText}})

	r := &Retriever{Embedder: emb, VectorStore: vec, LexicalStore: lex, GraphStore: graph, Docs: docs}
	return r, docs
}

func TestSearchRanksMoreRelevantChunkFirstAcrossModalities(t *testing.T) {
	r, _ := newFixture(t)

	out, err := r.Search(context.Background(), "Alpha Centauri star system", 10, AllModes, DefaultWeights)
	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.Equal(t, "star-chunk", out[0].ChunkID)
	assert.Equal(t, "doc1", out[0].DocID)
	assert.Greater(t, out[0].FusedScore, 0.0)
}

func TestSearchDeduplicatesByChunkID(t *testing.T) {
	r, _ := newFixture(t)

	out, err := r.Search(context.Background(), "Alpha Centauri star system", 10, AllModes, DefaultWeights)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, n := range out {
		require.False(t, seen[n.ChunkID], "chunk_id %s appeared more than once", n.ChunkID)
		seen[n.ChunkID] = true
	}
}

func TestSearchLexicalOnlyModeIgnoresVectorAndGraph(t *testing.T) {
	r, _ := newFixture(t)

	modes := Modes{Lexical: true}
	out, err := r.Search(context.Background(), "sourdough bread recipes", 10, modes, DefaultWeights)
	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.Equal(t, "bread-chunk", out[0].ChunkID)

	for _, n := range out {
		_, hasVector := n.PerModalityScores["vector"]
		_, hasGraph := n.PerModalityScores["graph"]
		assert.False(t, hasVector)
		assert.False(t, hasGraph)
	}
}

func TestSearchGraphOnlyModeSurfacesMentionedChunk(t *testing.T) {
	r, _ := newFixture(t)

	modes := Modes{Graph: true}
	out, err := r.Search(context.Background(), "Tell me about Alpha", 10, modes, DefaultWeights)
	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.Equal(t, "star-chunk", out[0].ChunkID)
	assert.Equal(t, 1.0, out[0].PerModalityScores["graph"])
}

func TestSearchRespectsTopK(t *testing.T) {
	r, _ := newFixture(t)

	out, err := r.Search(context.Background(), "Alpha Centauri star bread sourdough", 1, AllModes, DefaultWeights)
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestNormalizeWeightsRenormalizesAfterDisablingAModality(t *testing.T) {
	w := normalizeWeights(DefaultWeights, Modes{Vector: true, Lexical: true, Graph: false})
	assert.Equal(t, 0.0, w.Graph)
	assert.InDelta(t, 1.0, w.Vector+w.Lexical, 1e-9)
	assert.InDelta(t, DefaultWeights.Vector/(DefaultWeights.Vector+DefaultWeights.Lexical), w.Vector, 1e-9)
}

func TestNormalizeWeightsAllDisabledYieldsZeroWeights(t *testing.T) {
	w := normalizeWeights(DefaultWeights, Modes{})
	assert.Equal(t, Weights{}, w)
}

func TestSeedEntitiesPicksCapitalizedWords(t *testing.T) {
	seeds := SeedEntities("tell me about Alpha Centauri and bread")
	assert.Contains(t, seeds, "Alpha")
	assert.Contains(t, seeds, "Centauri")
	assert.NotContains(t, seeds, "bread")
	assert.NotContains(t, seeds, "tell")
}

func TestSeedEntitiesEmptyQueryYieldsNoSeeds(t *testing.T) {
	assert.Empty(t, SeedEntities(""))
	assert.Empty(t, SeedEntities("all lowercase words here"))
}
