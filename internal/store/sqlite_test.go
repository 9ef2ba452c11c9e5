package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	synerrors "github.com/synapse-rag/synapse/internal/errors"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "metadata.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestSession(ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Metadata:  map[string]string{"client": "test"},
	}
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// Given: a created session
	sess := newTestSession(24 * time.Hour)
	require.NoError(t, s.CreateSession(ctx, sess))

	// When: fetching it back
	got, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)

	// Then: fields round-trip
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, 0, got.DocumentCount)
	assert.Equal(t, "test", got.Metadata["client"])
	assert.WithinDuration(t, sess.ExpiresAt, got.ExpiresAt, time.Second)

	// When: deleting it
	require.NoError(t, s.DeleteSession(ctx, sess.ID))

	// Then: subsequent reads report not found
	_, err = s.GetSession(ctx, sess.ID)
	assert.True(t, synerrors.IsNotFound(err))
}

func TestGetSessionNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetSession(context.Background(), uuid.NewString())
	assert.True(t, synerrors.IsNotFound(err))
}

func TestDeleteSessionNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.DeleteSession(context.Background(), uuid.NewString())
	assert.True(t, synerrors.IsNotFound(err))
}

func TestDeleteSessionCascadesToChunksAndMessages(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess := newTestSession(24 * time.Hour)
	require.NoError(t, s.CreateSession(ctx, sess))

	chunks := []*Chunk{
		{ID: "c1", SessionID: sess.ID, Source: "doc.pdf", Ordinal: 0, Content: "first", CreatedAt: time.Now()},
		{ID: "c2", SessionID: sess.ID, Source: "doc.pdf", Ordinal: 1, Content: "second", CreatedAt: time.Now()},
	}
	require.NoError(t, s.SaveChunks(ctx, chunks))
	require.NoError(t, s.AppendMessage(ctx, &ChatMessage{
		SessionID: sess.ID, Role: RoleHuman, Content: "hello", CreatedAt: time.Now(),
	}))

	// When: deleting the session
	require.NoError(t, s.DeleteSession(ctx, sess.ID))

	// Then: chunks and messages are gone
	ids, err := s.ListChunkIDsBySession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)

	msgs, err := s.RecentMessages(ctx, sess.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestAdjustDocumentCount(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess := newTestSession(24 * time.Hour)
	require.NoError(t, s.CreateSession(ctx, sess))

	require.NoError(t, s.AdjustDocumentCount(ctx, sess.ID, 5))
	require.NoError(t, s.AdjustDocumentCount(ctx, sess.ID, -2))

	got, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.DocumentCount)

	// Count never goes below zero
	require.NoError(t, s.AdjustDocumentCount(ctx, sess.ID, -100))
	got, err = s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.DocumentCount)

	// Unknown session reports not found
	err = s.AdjustDocumentCount(ctx, uuid.NewString(), 1)
	assert.True(t, synerrors.IsNotFound(err))
}

func TestListExpiredSessions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	expired := newTestSession(-time.Hour)
	live := newTestSession(24 * time.Hour)
	require.NoError(t, s.CreateSession(ctx, expired))
	require.NoError(t, s.CreateSession(ctx, live))

	ids, err := s.ListExpiredSessions(ctx, time.Now())
	require.NoError(t, err)

	assert.Equal(t, []string{expired.ID}, ids)
}

func TestGetChunksPreservesInputOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess := newTestSession(24 * time.Hour)
	require.NoError(t, s.CreateSession(ctx, sess))

	chunks := []*Chunk{
		{ID: "c1", SessionID: sess.ID, Source: "a.txt", Ordinal: 0, Content: "one", CreatedAt: time.Now()},
		{ID: "c2", SessionID: sess.ID, Source: "a.txt", Ordinal: 1, Content: "two", CreatedAt: time.Now()},
		{ID: "c3", SessionID: sess.ID, Source: "a.txt", Ordinal: 2, Content: "three", CreatedAt: time.Now()},
	}
	require.NoError(t, s.SaveChunks(ctx, chunks))

	// Request in a different order, with an unknown ID mixed in
	got, err := s.GetChunks(ctx, []string{"c3", "missing", "c1"})
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "c3", got[0].ID)
	assert.Equal(t, "c1", got[1].ID)
}

func TestListChunkIDsBySource(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess := newTestSession(24 * time.Hour)
	require.NoError(t, s.CreateSession(ctx, sess))

	require.NoError(t, s.SaveChunks(ctx, []*Chunk{
		{ID: "a0", SessionID: sess.ID, Source: "a.txt", Ordinal: 0, Content: "x", CreatedAt: time.Now()},
		{ID: "a1", SessionID: sess.ID, Source: "a.txt", Ordinal: 1, Content: "y", CreatedAt: time.Now()},
		{ID: "b0", SessionID: sess.ID, Source: "b.txt", Ordinal: 0, Content: "z", CreatedAt: time.Now()},
	}))

	ids, err := s.ListChunkIDsBySource(ctx, sess.ID, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"a0", "a1"}, ids)
}

func TestRecentMessagesChronologicalWindow(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess := newTestSession(24 * time.Hour)
	require.NoError(t, s.CreateSession(ctx, sess))

	contents := []string{"q1", "a1", "q2", "a2", "q3", "a3"}
	for i, c := range contents {
		role := RoleHuman
		if i%2 == 1 {
			role = RoleAssistant
		}
		require.NoError(t, s.AppendMessage(ctx, &ChatMessage{
			SessionID: sess.ID, Role: role, Content: c, CreatedAt: time.Now(),
		}))
	}

	// When: asking for the last 4 messages
	msgs, err := s.RecentMessages(ctx, sess.ID, 4)
	require.NoError(t, err)

	// Then: the newest 4, in chronological order
	require.Len(t, msgs, 4)
	assert.Equal(t, "q2", msgs[0].Content)
	assert.Equal(t, "a3", msgs[3].Content)
}

func TestCloseIsIdempotent(t *testing.T) {
	s, err := NewSQLiteStore("")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
