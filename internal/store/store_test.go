package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryVectorSearchRanksByCosineSimilarity(t *testing.T) {
	vs := NewMemoryVector(2)
	ctx := context.Background()

	require.NoError(t, vs.Upsert(ctx, []VectorItem{
		{ID: "close", Vector: []float32{1, 0}},
		{ID: "far", Vector: []float32{0, 1}},
	}))

	hits, err := vs.Search(ctx, []float32{1, 0.01}, 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "close", hits[0].ID)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestMemoryVectorSearchAppliesMetadataFilter(t *testing.T) {
	vs := NewMemoryVector(2)
	ctx := context.Background()

	require.NoError(t, vs.Upsert(ctx, []VectorItem{
		{ID: "a", Vector: []float32{1, 0}, Metadata: map[string]string{"doc_id": "doc1"}},
		{ID: "b", Vector: []float32{1, 0}, Metadata: map[string]string{"doc_id": "doc2"}},
	}))

	hits, err := vs.Search(ctx, []float32{1, 0}, 10, map[string]string{"doc_id": "doc2"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].ID)
}

func TestMemoryVectorDelete(t *testing.T) {
	vs := NewMemoryVector(2)
	ctx := context.Background()
	require.NoError(t, vs.Upsert(ctx, []VectorItem{{ID: "a", Vector: []float32{1, 0}}}))
	require.NoError(t, vs.Delete(ctx, []string{"a"}))

	hits, err := vs.Search(ctx, []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestBM25LexicalSearchRanksMoreRelevantDocHigher(t *testing.T) {
	lex := NewBM25Lexical()
	ctx := context.Background()

	require.NoError(t, lex.Upsert(ctx, []LexicalItem{
		{ID: "star", Text: "Alpha Centauri is a star system close to the Sun"},
		{ID: "unrelated", Text: "Bread recipes for sourdough bakers"},
	}))

	hits, err := lex.Search(ctx, "star system Alpha Centauri", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "star", hits[0].ID)
}

func TestBM25LexicalDeleteRemovesDocFromResults(t *testing.T) {
	lex := NewBM25Lexical()
	ctx := context.Background()
	require.NoError(t, lex.Upsert(ctx, []LexicalItem{{ID: "a", Text: "quantum entanglement"}}))
	require.NoError(t, lex.Delete(ctx, []string{"a"}))

	hits, err := lex.Search(ctx, "quantum entanglement", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemoryGraphUpsertAndQueryTraversesMentionsAndRelations(t *testing.T) {
	g := NewMemoryGraph()
	ctx := context.Background()

	require.NoError(t, g.UpsertTriples(ctx, []Triple{
		{SubjectLabel: "Alpha", SubjectType: "star", Predicate: "ORBITED_BY", ObjectLabel: "Beta", ObjectType: "planet", ChunkID: "c1", DocID: "doc1"},
	}))

	sub, err := g.Query(ctx, []string{"Alpha"}, 2)
	require.NoError(t, err)

	var sawRelation, sawMention bool
	for _, e := range sub.Edges {
		if e.Rel == "ORBITED_BY" {
			sawRelation = true
		}
		if e.Rel == "MENTIONS" && e.ChunkID == "c1" {
			sawMention = true
		}
	}
	assert.True(t, sawRelation, "expected the subject/object relation edge")
	assert.True(t, sawMention, "expected a MENTIONS edge back to the source chunk")
	assert.GreaterOrEqual(t, len(sub.Nodes), 2)
}

func TestMemoryGraphDeleteByChunkIDsRemovesOnlyThoseEdges(t *testing.T) {
	g := NewMemoryGraph()
	ctx := context.Background()
	require.NoError(t, g.UpsertTriples(ctx, []Triple{
		{SubjectLabel: "Alpha", SubjectType: "star", Predicate: "ORBITED_BY", ObjectLabel: "Beta", ObjectType: "planet", ChunkID: "c1"},
		{SubjectLabel: "Gamma", SubjectType: "star", Predicate: "ORBITED_BY", ObjectLabel: "Delta", ObjectType: "planet", ChunkID: "c2"},
	}))

	require.NoError(t, g.DeleteByChunkIDs(ctx, []string{"c1"}))

	sub, err := g.Query(ctx, []string{"Gamma"}, 2)
	require.NoError(t, err)
	assert.NotEmpty(t, sub.Edges)

	sub, err = g.Query(ctx, []string{"Alpha"}, 2)
	require.NoError(t, err)
	assert.Empty(t, sub.Edges)
}

func TestMinMaxNormalizeSingleValueYieldsOneWhenPositive(t *testing.T) {
	out := MinMaxNormalize([]float64{5})
	require.Len(t, out, 1)
	assert.Equal(t, 1.0, out[0])
}

func TestMinMaxNormalizeRescalesToUnitRange(t *testing.T) {
	out := MinMaxNormalize([]float64{1, 2, 3})
	require.Len(t, out, 3)
	assert.Equal(t, 0.0, out[0])
	assert.Equal(t, 1.0, out[2])
}
