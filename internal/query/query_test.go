package query

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragcore/internal/completion"
	"ragcore/internal/embedding"
	"ragcore/internal/ingestmgr"
	"ragcore/internal/model"
	"ragcore/internal/retrieve"
	"ragcore/internal/store"
)

type scriptedCompletion struct {
	text string
	err  error
}

func (c scriptedCompletion) Complete(_ context.Context, _ string, _ completion.Options) (string, error) {
	return c.text, c.err
}

func (c scriptedCompletion) StreamComplete(context.Context, string, completion.Options, func(string)) error {
	return errors.New("not implemented")
}

func newEngineFixture(t *testing.T, llm completion.LLM) *Engine {
	t.Helper()
	emb := embedding.NewHash(32)
	vec := store.NewMemoryVector(32)
	lex := store.NewBM25Lexical()
	docs := ingestmgr.NewChunkRegistry()
	ctx := context.Background()

	text := "Alpha Centauri is the closest star system to the Sun"
	vecs, err := emb.EmbedBatch(ctx, []string{text})
	require.NoError(t, err)
	require.NoError(t, vec.Upsert(ctx, []store.VectorItem{{ID: "c1", Vector: vecs[0]}}))
	require.NoError(t, lex.Upsert(ctx, []store.LexicalItem{{ID: "c1", Text: text}}))
	docs.Record("doc1", "star.txt", "star.txt", []model.Chunk{{ChunkID: "c1", Text: text}})

	retriever := &retrieve.Retriever{Embedder: emb, VectorStore: vec, LexicalStore: lex, Docs: docs}
	return &Engine{Retriever: retriever, Completion: llm}
}

func TestAskReturnsAnswerWithResolvedCitation(t *testing.T) {
	e := newEngineFixture(t, scriptedCompletion{text: "Alpha Centauri is closest to the Sun [1]."})

	ans, err := e.Ask(context.Background(), "What star system is closest to the Sun?", 5, retrieve.AllModes)
	require.NoError(t, err)
	assert.Equal(t, "Alpha Centauri is closest to the Sun [1].", ans.Text)
	require.Len(t, ans.Citations, 1)
	assert.Equal(t, "c1", ans.Citations[0].ChunkID)
	assert.Equal(t, "doc1", ans.Citations[0].DocID)
}

func TestAskWithNoRetrievedContextSkipsCallingTheLLM(t *testing.T) {
	emb := embedding.NewHash(32)
	retriever := &retrieve.Retriever{Embedder: emb, VectorStore: store.NewMemoryVector(32), LexicalStore: store.NewBM25Lexical()}
	e := &Engine{Retriever: retriever, Completion: scriptedCompletion{err: errors.New("should not be called")}}

	ans, err := e.Ask(context.Background(), "anything", 5, retrieve.AllModes)
	require.NoError(t, err)
	assert.Empty(t, ans.Citations)
	assert.Contains(t, ans.Text, "No relevant context")
}

func TestAskReturnsCompletionErrorsUnwrapped(t *testing.T) {
	e := newEngineFixture(t, scriptedCompletion{err: errors.New("upstream unavailable")})

	_, err := e.Ask(context.Background(), "What star system is closest to the Sun?", 5, retrieve.AllModes)
	require.Error(t, err)
	assert.EqualError(t, err, "upstream unavailable")
}

func TestAskIgnoresOutOfRangeAndDuplicateCitationMarkers(t *testing.T) {
	e := newEngineFixture(t, scriptedCompletion{text: "Mentions [1], again [1], and a bogus [9]."})

	ans, err := e.Ask(context.Background(), "What star system is closest to the Sun?", 5, retrieve.AllModes)
	require.NoError(t, err)
	require.Len(t, ans.Citations, 1)
	assert.Equal(t, "c1", ans.Citations[0].ChunkID)
}
