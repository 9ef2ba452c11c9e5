package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	synerrors "github.com/synapse-rag/synapse/internal/errors"
	"github.com/synapse-rag/synapse/internal/store"
)

type registryFixture struct {
	registry *Registry
	meta     *store.SQLiteStore
	keyword  store.KeywordIndex
	vectors  *store.HNSWIndex
	clock    *fakeClock
}

type fakeClock struct {
	current time.Time
}

func (c *fakeClock) now() time.Time          { return c.current }
func (c *fakeClock) advance(d time.Duration) { c.current = c.current.Add(d) }

func newFixture(t *testing.T) *registryFixture {
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

	clock := &fakeClock{current: time.Now()}
	registry := NewRegistry(meta, keyword, vectors, 24*time.Hour)
	registry.now = clock.now

	return &registryFixture{
		registry: registry,
		meta:     meta,
		keyword:  keyword,
		vectors:  vectors,
		clock:    clock,
	}
}

func (f *registryFixture) indexChunk(t *testing.T, ctx context.Context, sessionID, chunkID, content string) {
	t.Helper()
	chunk := &store.Chunk{
		ID:        chunkID,
		SessionID: sessionID,
		Source:    "doc.txt",
		Content:   content,
		CreatedAt: time.Now(),
	}
	require.NoError(t, f.meta.SaveChunks(ctx, []*store.Chunk{chunk}))
	require.NoError(t, f.keyword.Index(ctx, []*store.Chunk{chunk}))
	require.NoError(t, f.vectors.Add(ctx, sessionID, []string{chunkID}, [][]float32{{1, 0, 0}}))
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	sess, err := f.registry.Create(ctx, map[string]string{"client": "test"})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, 24*time.Hour, sess.ExpiresAt.Sub(sess.CreatedAt))

	got, err := f.registry.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
}

func TestGetUnknownSessionNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.registry.Get(context.Background(), "no-such-session")
	assert.True(t, synerrors.IsNotFound(err))
}

func TestExpiredSessionReportsNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	sess, err := f.registry.Create(ctx, nil)
	require.NoError(t, err)

	// When: time passes beyond the TTL
	f.clock.advance(25 * time.Hour)

	// Then: the session is indistinguishable from a deleted one
	_, err = f.registry.Get(ctx, sess.ID)
	assert.True(t, synerrors.IsNotFound(err))
}

func TestDeleteCascadesAcrossStores(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	sess, err := f.registry.Create(ctx, nil)
	require.NoError(t, err)
	f.indexChunk(t, ctx, sess.ID, "c1", "searchable content")

	require.NoError(t, f.registry.Delete(ctx, sess.ID))

	// Metadata gone
	_, err = f.registry.Get(ctx, sess.ID)
	assert.True(t, synerrors.IsNotFound(err))

	// Keyword hits gone
	hits, err := f.keyword.Search(ctx, sess.ID, "searchable", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	// Vectors gone
	assert.Equal(t, 0, f.vectors.Count(sess.ID))
}

func TestDeleteUnknownSessionNotFound(t *testing.T) {
	f := newFixture(t)
	err := f.registry.Delete(context.Background(), "no-such-session")
	assert.True(t, synerrors.IsNotFound(err))
}

func TestSweepExpiredRemovesOnlyExpired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	old, err := f.registry.Create(ctx, nil)
	require.NoError(t, err)
	f.indexChunk(t, ctx, old.ID, "c1", "old content")

	f.clock.advance(25 * time.Hour)

	fresh, err := f.registry.Create(ctx, nil)
	require.NoError(t, err)

	removed, err := f.registry.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = f.meta.GetSession(ctx, old.ID)
	assert.True(t, synerrors.IsNotFound(err))

	_, err = f.registry.Get(ctx, fresh.ID)
	assert.NoError(t, err)

	hits, err := f.keyword.Search(ctx, old.ID, "old", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSweeperStartStop(t *testing.T) {
	f := newFixture(t)

	f.registry.StartSweeper(context.Background(), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	f.registry.Stop()

	// Stop is safe to call twice
	f.registry.Stop()
}
