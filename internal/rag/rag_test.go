package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-rag/internal/config"
	"pdf-rag/internal/llmservice"
	"pdf-rag/internal/metrics"
	"pdf-rag/internal/models"
)

type fakeEmbedder struct{ err error }

func (f fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2}, nil
}

type fakeRetriever struct {
	hits  []models.RetrievalHit
	err   error
	gotK  int
	calls int
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ []float32, k int) ([]models.RetrievalHit, error) {
	f.calls++
	f.gotK = k
	return f.hits, f.err
}

type fakeCompleter struct {
	req llmservice.CompletionRequest
	err error
}

func (f *fakeCompleter) Complete(_ context.Context, req llmservice.CompletionRequest) (*llmservice.Completion, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &llmservice.Completion{Text: "Go is used.", Usage: &models.Usage{PromptTokens: 10, CompletionTokens: 3, TotalTokens: 13}}, nil
}

func ragConfig() config.RAGConfig {
	return config.Default().RAG
}

func sampleHits() []models.RetrievalHit {
	idx := 2
	return []models.RetrievalHit{
		{SourceID: "doc-1", DocumentID: "doc-1", Filename: "cv.pdf", Content: "Skills: Go, Postgres.", Similarity: 0.8771, Distance: 0.1229, Type: models.CorpusDocuments},
		{SourceID: "chunk-9", DocumentID: "doc-7", Filename: "big.pdf", Content: strings.Repeat("a", 1600), Similarity: 0.5, Distance: 0.5, Type: models.CorpusChunks, ChunkIndex: &idx},
	}
}

func TestBuildContext(t *testing.T) {
	a := NewAssembler(nil, ragConfig())
	ctxText := a.BuildContext(sampleHits())

	parts := strings.Split(ctxText, models.ContextSeparator)
	require.Len(t, parts, 2)
	assert.Equal(t, "Document 1 (ID: doc-1, Similarity: 87.7%):\nSkills: Go, Postgres.\n", parts[0])
	assert.True(t, strings.HasPrefix(parts[1], "Document 2 (ID: doc-7, Similarity: 50.0%):\n"), "chunks cite their parent document")
	assert.True(t, strings.HasSuffix(parts[1], strings.Repeat("a", 10)+"...\n"))
	assert.Equal(t, len("Document 2 (ID: doc-7, Similarity: 50.0%):\n")+1500+3+1, len(parts[1]))
}

func TestBuildHistory(t *testing.T) {
	assert.Equal(t, models.NoHistoryMessage, BuildHistory(nil))
	assert.Equal(t, "User: hi\nAssistant: hello", BuildHistory([]models.ChatTurn{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	}))
}

func TestFormatSources(t *testing.T) {
	a := NewAssembler(nil, ragConfig())
	sources := a.FormatSources(sampleHits())
	require.Len(t, sources, 2)
	assert.Equal(t, models.Source{ID: "doc-1", DocumentID: "doc-1", Filename: "cv.pdf", Score: 87.7, Excerpt: "Skills: Go, Postgres."}, sources[0])
	assert.Equal(t, "chunk-9", sources[1].ID)
	assert.Equal(t, "doc-7", sources[1].DocumentID)
	assert.Equal(t, 50.0, sources[1].Score)
	assert.Equal(t, strings.Repeat("a", 200)+"...", sources[1].Excerpt)
}

func TestAnswer_UsesFixedGenerationSettings(t *testing.T) {
	gen := &fakeCompleter{}
	a := NewAssembler(gen, ragConfig())

	ans, err := a.Answer(context.Background(), "Which languages?", sampleHits(), nil)
	require.NoError(t, err)
	assert.Equal(t, "Go is used.", ans.Answer)
	assert.Len(t, ans.Sources, 2)
	assert.Equal(t, 13, ans.Usage.TotalTokens)

	assert.Equal(t, models.SystemPrompt, gen.req.SystemPrompt)
	assert.Zero(t, gen.req.Temperature)
	assert.Equal(t, 1000, gen.req.MaxTokens)
	assert.Contains(t, gen.req.UserPrompt, "User Question: Which languages?")
	assert.Contains(t, gen.req.UserPrompt, models.NoHistoryMessage)
	assert.Contains(t, gen.req.UserPrompt, "Document 1 (ID: doc-1")
}

func TestQuery_AIAnswer(t *testing.T) {
	ret := &fakeRetriever{hits: sampleHits()}
	r := NewRAG(fakeEmbedder{}, ret, NewAssembler(&fakeCompleter{}, ragConfig()))
	before := testutil.ToFloat64(metrics.Queries.WithLabelValues("ai"))

	resp, err := r.Query(context.Background(), QueryRequest{Question: "  Which languages? ", UseAI: true, TopK: 3})
	require.NoError(t, err)
	assert.Equal(t, "Which languages?", resp.Query)
	assert.True(t, resp.UseAI)
	require.NotNil(t, resp.AI)
	assert.Empty(t, resp.Warning)
	assert.Equal(t, 3, ret.gotK)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.Queries.WithLabelValues("ai")))
}

func TestQuery_SimilarityOnly(t *testing.T) {
	gen := &fakeCompleter{}
	r := NewRAG(fakeEmbedder{}, &fakeRetriever{hits: sampleHits()}, NewAssembler(gen, ragConfig()))

	resp, err := r.Query(context.Background(), QueryRequest{Question: "q", UseAI: false})
	require.NoError(t, err)
	assert.False(t, resp.UseAI)
	assert.Nil(t, resp.AI)
	assert.Len(t, resp.Documents, 2)
	assert.Empty(t, gen.req.UserPrompt, "generation must not be called")
}

func TestQuery_NoHitsSkipsGeneration(t *testing.T) {
	gen := &fakeCompleter{}
	r := NewRAG(fakeEmbedder{}, &fakeRetriever{}, NewAssembler(gen, ragConfig()))

	resp, err := r.Query(context.Background(), QueryRequest{Question: "q", UseAI: true})
	require.NoError(t, err)
	assert.False(t, resp.UseAI)
	assert.Empty(t, gen.req.UserPrompt)
}

func TestQuery_GenerationFailureDegrades(t *testing.T) {
	gen := &fakeCompleter{err: models.ErrGateway}
	r := NewRAG(fakeEmbedder{}, &fakeRetriever{hits: sampleHits()}, NewAssembler(gen, ragConfig()))
	before := testutil.ToFloat64(metrics.Queries.WithLabelValues("degraded"))

	resp, err := r.Query(context.Background(), QueryRequest{Question: "q", UseAI: true})
	require.NoError(t, err)
	assert.False(t, resp.UseAI)
	assert.Nil(t, resp.AI)
	assert.Equal(t, models.DegradedAIWarning, resp.Warning)
	assert.Len(t, resp.Documents, 2)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.Queries.WithLabelValues("degraded")))
}

func TestQuery_Failures(t *testing.T) {
	t.Run("empty question", func(t *testing.T) {
		r := NewRAG(fakeEmbedder{}, &fakeRetriever{}, NewAssembler(&fakeCompleter{}, ragConfig()))
		_, err := r.Query(context.Background(), QueryRequest{Question: "   "})
		assert.Error(t, err)
	})
	t.Run("embedding fails", func(t *testing.T) {
		ret := &fakeRetriever{}
		r := NewRAG(fakeEmbedder{err: models.ErrGateway}, ret, NewAssembler(&fakeCompleter{}, ragConfig()))
		_, err := r.Query(context.Background(), QueryRequest{Question: "q"})
		assert.ErrorIs(t, err, models.ErrGateway)
		assert.Zero(t, ret.calls)
	})
	t.Run("store unavailable", func(t *testing.T) {
		ret := &fakeRetriever{err: errors.Join(models.ErrRetrievalUnavailable, errors.New("refused"))}
		r := NewRAG(fakeEmbedder{}, ret, NewAssembler(&fakeCompleter{}, ragConfig()))
		_, err := r.Query(context.Background(), QueryRequest{Question: "q", UseAI: true})
		assert.ErrorIs(t, err, models.ErrRetrievalUnavailable)
	})
}
