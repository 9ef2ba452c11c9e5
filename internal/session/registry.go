// Package session manages session lifecycle: creation, lookup,
// deletion with cascade, and expiry sweeping.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	synerrors "github.com/synapse-rag/synapse/internal/errors"
	"github.com/synapse-rag/synapse/internal/store"
)

// Registry owns session lifecycle. Deleting a session cascades through
// metadata, keyword index, and vector index so nothing retrievable
// survives the session.
type Registry struct {
	meta    store.MetadataStore
	keyword store.KeywordIndex
	vectors store.VectorIndex
	ttl     time.Duration

	// now is swappable for expiry tests
	now func() time.Time

	mu       sync.Mutex
	sweepCtx context.CancelFunc
	wg       sync.WaitGroup
}

// NewRegistry creates a session registry with the given TTL.
func NewRegistry(meta store.MetadataStore, keyword store.KeywordIndex, vectors store.VectorIndex, ttl time.Duration) *Registry {
	return &Registry{
		meta:    meta,
		keyword: keyword,
		vectors: vectors,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Create registers a new session with a fresh UUID and fixed expiry.
func (r *Registry) Create(ctx context.Context, metadata map[string]string) (*store.Session, error) {
	now := r.now()
	sess := &store.Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(r.ttl),
		Metadata:  metadata,
	}
	if err := r.meta.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	slog.Info("session_created",
		slog.String("session_id", sess.ID),
		slog.Time("expires_at", sess.ExpiresAt))
	return sess, nil
}

// Get returns a live session. Expired sessions are reported as not
// found, exactly like deleted ones, so callers cannot distinguish a
// swept session from one that never existed.
func (r *Registry) Get(ctx context.Context, id string) (*store.Session, error) {
	sess, err := r.meta.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Expired(r.now()) {
		return nil, fmt.Errorf("session %s: %w", id, synerrors.ErrNotFound)
	}
	return sess, nil
}

// Delete removes the session and every trace of its documents across
// all three stores. Returns ErrNotFound for unknown sessions.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := r.meta.DeleteSession(ctx, id); err != nil {
		return err
	}
	if err := r.keyword.DeleteSession(ctx, id); err != nil {
		return err
	}
	if err := r.vectors.DeleteSession(ctx, id); err != nil {
		return err
	}
	slog.Info("session_deleted", slog.String("session_id", id))
	return nil
}

// SweepExpired deletes every session past its expiry horizon and
// returns the number removed. Individual failures are logged and do
// not stop the sweep.
func (r *Registry) SweepExpired(ctx context.Context) (int, error) {
	ids, err := r.meta.ListExpiredSessions(ctx, r.now())
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, id := range ids {
		if err := r.Delete(ctx, id); err != nil {
			slog.Warn("session_sweep_failed",
				slog.String("session_id", id),
				slog.String("error", err.Error()))
			continue
		}
		removed++
	}

	if removed > 0 {
		slog.Info("session_sweep_completed", slog.Int("removed", removed))
	}
	return removed, nil
}

// StartSweeper runs SweepExpired on the given interval until Stop or
// context cancellation.
func (r *Registry) StartSweeper(ctx context.Context, interval time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sweepCtx != nil {
		return
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	r.sweepCtx = cancel

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				if _, err := r.SweepExpired(sweepCtx); err != nil {
					slog.Error("session_sweep_error", slog.String("error", err.Error()))
				}
			}
		}
	}()
}

// Stop halts the background sweeper and waits for it to exit.
func (r *Registry) Stop() {
	r.mu.Lock()
	cancel := r.sweepCtx
	r.sweepCtx = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}
