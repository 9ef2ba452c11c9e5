package rag

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapse-rag/synapse/internal/embed"
	synerrors "github.com/synapse-rag/synapse/internal/errors"
	"github.com/synapse-rag/synapse/internal/store"
)

type retrieverFixture struct {
	meta     *store.SQLiteStore
	keyword  store.KeywordIndex
	vectors  *store.HNSWIndex
	embedder embed.Embedder
}

func newRetrieverFixture(t *testing.T) *retrieverFixture {
	t.Helper()

	meta, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = meta.Close() })

	keyword, err := store.NewSQLiteKeywordIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = keyword.Close() })

	vectors, err := store.NewHNSWIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = vectors.Close() })

	return &retrieverFixture{
		meta:     meta,
		keyword:  keyword,
		vectors:  vectors,
		embedder: embed.NewStaticEmbedder(64),
	}
}

func (f *retrieverFixture) retriever(reranker Reranker, cfg RetrieverConfig) *Retriever {
	if reranker == nil {
		reranker = &NoopReranker{}
	}
	return NewRetriever(f.meta, f.keyword, f.vectors, f.embedder, reranker, cfg)
}

// ingest indexes content into all three stores the way the ingestion
// path does.
func (f *retrieverFixture) ingest(t *testing.T, ctx context.Context, sessionID string, contents ...string) {
	t.Helper()

	session := &store.Session{
		ID:        sessionID,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	// Session may already exist across multiple ingest calls
	_ = f.meta.CreateSession(ctx, session)

	chunks := make([]*store.Chunk, len(contents))
	ids := make([]string, len(contents))
	texts := make([]string, len(contents))
	for i, content := range contents {
		id := fmt.Sprintf("%s-chunk-%d", sessionID, i)
		chunks[i] = &store.Chunk{
			ID:        id,
			SessionID: sessionID,
			Source:    "doc.txt",
			Ordinal:   i,
			Content:   content,
			CreatedAt: time.Now(),
		}
		ids[i] = id
		texts[i] = content
	}

	require.NoError(t, f.meta.SaveChunks(ctx, chunks))
	require.NoError(t, f.keyword.Index(ctx, chunks))

	vectors, err := f.embedder.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.NoError(t, f.vectors.Add(ctx, sessionID, ids, vectors))
}

func TestRetrieveEmptyQueryRejected(t *testing.T) {
	f := newRetrieverFixture(t)
	r := f.retriever(nil, DefaultRetrieverConfig())

	_, err := r.Retrieve(context.Background(), "s1", "   ")
	require.Error(t, err)
	assert.Equal(t, synerrors.CategoryValidation, synerrors.CategoryOf(err))
}

func TestRetrieveFindsRelevantChunk(t *testing.T) {
	ctx := context.Background()
	f := newRetrieverFixture(t)
	f.ingest(t, ctx, "s1",
		"the contract payment schedule is net thirty days",
		"the office is closed on public holidays",
		"employees accrue vacation at two days per month")

	r := f.retriever(nil, DefaultRetrieverConfig())

	results, err := r.Retrieve(ctx, "s1", "payment schedule contract")
	require.NoError(t, err)

	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Chunk.Content, "payment schedule")
}

func TestRetrieveSessionIsolation(t *testing.T) {
	ctx := context.Background()
	f := newRetrieverFixture(t)
	f.ingest(t, ctx, "s1", "alpha document about contracts")
	f.ingest(t, ctx, "s2", "beta document about contracts")

	r := f.retriever(nil, DefaultRetrieverConfig())

	results, err := r.Retrieve(ctx, "s1", "contracts")
	require.NoError(t, err)

	require.NotEmpty(t, results)
	for _, res := range results {
		assert.Equal(t, "s1", res.Chunk.SessionID)
	}
}

func TestRetrieveEmptySessionReturnsEmpty(t *testing.T) {
	f := newRetrieverFixture(t)
	r := f.retriever(nil, DefaultRetrieverConfig())

	results, err := r.Retrieve(context.Background(), "empty-session", "anything at all")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetrieveKeywordFailureDegradesToVectorOnly(t *testing.T) {
	ctx := context.Background()
	f := newRetrieverFixture(t)
	f.ingest(t, ctx, "s1", "quarterly report with revenue figures")

	r := NewRetriever(f.meta, &failingKeywordIndex{}, f.vectors, f.embedder, &NoopReranker{}, DefaultRetrieverConfig())

	results, err := r.Retrieve(ctx, "s1", "quarterly revenue")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, 0.0, results[0].KeywordScore)
}

func TestRetrieveEmbedFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	f := newRetrieverFixture(t)
	f.ingest(t, ctx, "s1", "some content")

	r := NewRetriever(f.meta, f.keyword, f.vectors, &failingEmbedder{}, &NoopReranker{}, DefaultRetrieverConfig())

	_, err := r.Retrieve(ctx, "s1", "query")
	require.Error(t, err)
	assert.Equal(t, synerrors.CategoryStorage, synerrors.CategoryOf(err))
}

func TestRetrieveRerankerSkippedWithinBudget(t *testing.T) {
	ctx := context.Background()
	f := newRetrieverFixture(t)
	f.ingest(t, ctx, "s1", "only one chunk here")

	counting := &countingReranker{}
	cfg := DefaultRetrieverConfig()
	r := f.retriever(counting, cfg)

	results, err := r.Retrieve(ctx, "s1", "chunk")
	require.NoError(t, err)

	// One candidate <= rerank_top_k, no model call
	require.Len(t, results, 1)
	assert.Equal(t, 0, counting.calls)
}

func TestRetrieveRerankerFailureFallsBackToFusedOrder(t *testing.T) {
	ctx := context.Background()
	f := newRetrieverFixture(t)
	f.ingest(t, ctx, "s1",
		"contract law first chunk",
		"contract law second chunk",
		"contract law third chunk",
		"contract law fourth chunk",
		"contract law fifth chunk")

	cfg := DefaultRetrieverConfig()
	cfg.RerankTopK = 2
	r := f.retriever(&failingReranker{}, cfg)

	results, err := r.Retrieve(ctx, "s1", "contract law")
	require.NoError(t, err)

	assert.Len(t, results, 2)
}

func TestRetrieveRerankerOutputLimitedToTopK(t *testing.T) {
	ctx := context.Background()
	f := newRetrieverFixture(t)
	f.ingest(t, ctx, "s1",
		"payment terms chunk one",
		"payment terms chunk two",
		"payment terms chunk three",
		"payment terms chunk four")

	cfg := DefaultRetrieverConfig()
	cfg.RerankTopK = 2
	counting := &countingReranker{}
	r := f.retriever(counting, cfg)

	results, err := r.Retrieve(ctx, "s1", "payment terms")
	require.NoError(t, err)

	assert.Len(t, results, 2)
	assert.Equal(t, 1, counting.calls)
}

// failingKeywordIndex always errors on search.
type failingKeywordIndex struct{}

func (f *failingKeywordIndex) Index(context.Context, []*store.Chunk) error { return nil }
func (f *failingKeywordIndex) Search(context.Context, string, string, int) ([]*store.KeywordResult, error) {
	return nil, fmt.Errorf("index corrupted")
}
func (f *failingKeywordIndex) Delete(context.Context, []string) error       { return nil }
func (f *failingKeywordIndex) DeleteSession(context.Context, string) error  { return nil }
func (f *failingKeywordIndex) Close() error                                 { return nil }

// failingEmbedder always errors.
type failingEmbedder struct{}

func (f *failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("provider unreachable")
}
func (f *failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, fmt.Errorf("provider unreachable")
}
func (f *failingEmbedder) Dimensions() int                  { return 64 }
func (f *failingEmbedder) ModelName() string                { return "failing" }
func (f *failingEmbedder) Available(context.Context) bool   { return false }
func (f *failingEmbedder) Close() error                     { return nil }

// countingReranker delegates to NoopReranker and counts calls.
type countingReranker struct {
	noop  NoopReranker
	calls int
}

func (c *countingReranker) Rerank(ctx context.Context, query string, docs []string, topK int) ([]RerankResult, error) {
	c.calls++
	return c.noop.Rerank(ctx, query, docs, topK)
}
func (c *countingReranker) Available(context.Context) bool { return true }
func (c *countingReranker) Close() error                   { return nil }

// failingReranker always errors.
type failingReranker struct{}

func (f *failingReranker) Rerank(context.Context, string, []string, int) ([]RerankResult, error) {
	return nil, fmt.Errorf("rerank server down")
}
func (f *failingReranker) Available(context.Context) bool { return false }
func (f *failingReranker) Close() error                   { return nil }
