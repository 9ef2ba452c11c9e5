// Package store provides session-scoped persistence: metadata (SQLite),
// keyword search (FTS5 or Bleve), and vector search (HNSW).
package store

import (
	"context"
	"fmt"
	"time"
)

// Session represents an isolated document corpus with a fixed expiry horizon.
type Session struct {
	ID            string            // UUID v4
	CreatedAt     time.Time
	ExpiresAt     time.Time         // CreatedAt + TTL, fixed at creation
	DocumentCount int               // Denormalized chunk count
	Metadata      map[string]string // Free-form client metadata
}

// Expired reports whether the session is past its expiry horizon.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Chunk represents a retrievable unit of document content scoped to a session.
type Chunk struct {
	ID        string            // SHA256(session_id + source + ordinal)
	SessionID string            // Owning session
	Source    string            // Original filename
	Ordinal   int               // Position within the source document
	Content   string            // Chunk text
	Metadata  map[string]string // page, content type, etc.
	CreatedAt time.Time
}

// ChatMessage represents one turn of conversation within a session.
type ChatMessage struct {
	ID        int64 // Auto-increment, defines chronological order
	SessionID string
	Role      string // "human" or "assistant"
	Content   string
	CreatedAt time.Time
}

const (
	RoleHuman     = "human"
	RoleAssistant = "assistant"
)

// MetadataStore persists sessions, chunks, and chat history in SQLite.
type MetadataStore interface {
	// Session operations
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	DeleteSession(ctx context.Context, id string) error
	ListExpiredSessions(ctx context.Context, now time.Time) ([]string, error)
	AdjustDocumentCount(ctx context.Context, id string, delta int) error

	// Chunk operations
	SaveChunks(ctx context.Context, chunks []*Chunk) error
	GetChunk(ctx context.Context, id string) (*Chunk, error)
	GetChunks(ctx context.Context, ids []string) ([]*Chunk, error)
	ListChunkIDsBySource(ctx context.Context, sessionID, source string) ([]string, error)
	ListChunkIDsBySession(ctx context.Context, sessionID string) ([]string, error)
	DeleteChunks(ctx context.Context, ids []string) error

	// Chat history operations
	AppendMessage(ctx context.Context, msg *ChatMessage) error
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]*ChatMessage, error)

	// Lifecycle
	Close() error
}

// KeywordResult represents a single keyword search result.
type KeywordResult struct {
	ChunkID string
	Score   float64 // BM25 relevance, higher is better
}

// KeywordIndex provides session-scoped full-text search.
//
// Search uses AND semantics: every query term must match. Malformed
// queries and index errors surface as errors to the caller, which
// treats keyword search as best effort.
type KeywordIndex interface {
	Index(ctx context.Context, chunks []*Chunk) error
	Search(ctx context.Context, sessionID, query string, limit int) ([]*KeywordResult, error)
	Delete(ctx context.Context, chunkIDs []string) error
	DeleteSession(ctx context.Context, sessionID string) error
	Close() error
}

// VectorResult represents a single vector search result.
type VectorResult struct {
	ChunkID  string
	Distance float32 // Cosine distance, lower is more similar
	Score    float32 // Normalized similarity in [0, 1]
}

// VectorIndex provides session-scoped nearest-neighbor search.
type VectorIndex interface {
	Add(ctx context.Context, sessionID string, ids []string, vectors [][]float32) error
	Search(ctx context.Context, sessionID string, query []float32, k int) ([]*VectorResult, error)
	Delete(ctx context.Context, sessionID string, ids []string) error
	DeleteSession(ctx context.Context, sessionID string) error
	Count(sessionID string) int
	Save() error
	Close() error
}

// ErrDimensionMismatch indicates an embedding dimension mismatch against
// the vectors already indexed for a session.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
