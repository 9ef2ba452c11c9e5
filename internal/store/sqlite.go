package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	synerrors "github.com/synapse-rag/synapse/internal/errors"
)

// SQLiteStore implements MetadataStore backed by a single SQLite database.
// WAL mode with a single writer connection keeps concurrent readers safe.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// Verify interface implementation at compile time
var _ MetadataStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the metadata database at path.
// If path is empty, an in-memory database is used for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer to prevent lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// modernc.org/sqlite ignores some DSN params, set pragmas explicitly
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id             TEXT PRIMARY KEY,
		created_at     INTEGER NOT NULL,
		expires_at     INTEGER NOT NULL,
		document_count INTEGER NOT NULL DEFAULT 0,
		metadata       TEXT NOT NULL DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id         TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		source     TEXT NOT NULL,
		ordinal    INTEGER NOT NULL,
		content    TEXT NOT NULL,
		metadata   TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_session ON chunks(session_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(session_id, source);

	CREATE TABLE IF NOT EXISTS messages (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		role       TEXT NOT NULL,
		content    TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, id);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateSession inserts a new session row.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return synerrors.StorageError(synerrors.ErrCodeStoreQuery, "store is closed", nil)
	}

	meta, err := json.Marshal(session.Metadata)
	if err != nil {
		return synerrors.StorageError(synerrors.ErrCodeStoreQuery, "failed to encode session metadata", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, created_at, expires_at, document_count, metadata)
		 VALUES (?, ?, ?, ?, ?)`,
		session.ID,
		session.CreatedAt.UnixMilli(),
		session.ExpiresAt.UnixMilli(),
		session.DocumentCount,
		string(meta),
	)
	if err != nil {
		return synerrors.StorageError(synerrors.ErrCodeStoreQuery, "failed to create session", err)
	}
	return nil
}

// GetSession returns the session by ID, or ErrNotFound.
// Expiry is not evaluated here; callers decide what expired means.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, synerrors.StorageError(synerrors.ErrCodeStoreQuery, "store is closed", nil)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, expires_at, document_count, metadata
		 FROM sessions WHERE id = ?`, id)

	var (
		sess      Session
		createdMs int64
		expiresMs int64
		metaJSON  string
	)
	err := row.Scan(&sess.ID, &createdMs, &expiresMs, &sess.DocumentCount, &metaJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s: %w", id, synerrors.ErrNotFound)
	}
	if err != nil {
		return nil, synerrors.StorageError(synerrors.ErrCodeStoreQuery, "failed to get session", err)
	}

	sess.CreatedAt = time.UnixMilli(createdMs)
	sess.ExpiresAt = time.UnixMilli(expiresMs)
	if err := json.Unmarshal([]byte(metaJSON), &sess.Metadata); err != nil {
		return nil, synerrors.StorageError(synerrors.ErrCodeStoreQuery, "failed to decode session metadata", err)
	}
	return &sess, nil
}

// DeleteSession removes the session row. Chunks and messages cascade.
// Returns ErrNotFound if no such session exists.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return synerrors.StorageError(synerrors.ErrCodeStoreQuery, "store is closed", nil)
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return synerrors.StorageError(synerrors.ErrCodeStoreQuery, "failed to delete session", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return synerrors.StorageError(synerrors.ErrCodeStoreQuery, "failed to check delete result", err)
	}
	if affected == 0 {
		return fmt.Errorf("session %s: %w", id, synerrors.ErrNotFound)
	}
	return nil
}

// ListExpiredSessions returns IDs of sessions whose expiry is at or before now.
func (s *SQLiteStore) ListExpiredSessions(ctx context.Context, now time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, synerrors.StorageError(synerrors.ErrCodeStoreQuery, "store is closed", nil)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM sessions WHERE expires_at <= ?`, now.UnixMilli())
	if err != nil {
		return nil, synerrors.StorageError(synerrors.ErrCodeStoreQuery, "failed to list expired sessions", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, synerrors.StorageError(synerrors.ErrCodeStoreQuery, "failed to scan session ID", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AdjustDocumentCount adds delta to the session's document count.
func (s *SQLiteStore) AdjustDocumentCount(ctx context.Context, id string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return synerrors.StorageError(synerrors.ErrCodeStoreQuery, "store is closed", nil)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET document_count = MAX(0, document_count + ?) WHERE id = ?`,
		delta, id)
	if err != nil {
		return synerrors.StorageError(synerrors.ErrCodeStoreQuery, "failed to update document count", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return synerrors.StorageError(synerrors.ErrCodeStoreQuery, "failed to check update result", err)
	}
	if affected == 0 {
		return fmt.Errorf("session %s: %w", id, synerrors.ErrNotFound)
	}
	return nil
}

// SaveChunks inserts chunks in a single transaction.
// Existing IDs are replaced.
func (s *SQLiteStore) SaveChunks(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return synerrors.StorageError(synerrors.ErrCodeStoreQuery, "store is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return synerrors.StorageError(synerrors.ErrCodeStoreQuery, "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO chunks (id, session_id, source, ordinal, content, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return synerrors.StorageError(synerrors.ErrCodeStoreQuery, "failed to prepare chunk insert", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		meta, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return synerrors.StorageError(synerrors.ErrCodeStoreQuery, "failed to encode chunk metadata", err)
		}
		if _, err := stmt.ExecContext(ctx,
			chunk.ID, chunk.SessionID, chunk.Source, chunk.Ordinal,
			chunk.Content, string(meta), chunk.CreatedAt.UnixMilli()); err != nil {
			return synerrors.StorageError(synerrors.ErrCodeStoreQuery,
				fmt.Sprintf("failed to save chunk %s", chunk.ID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return synerrors.StorageError(synerrors.ErrCodeStoreQuery, "failed to commit chunks", err)
	}
	return nil
}

// GetChunk returns a single chunk by ID, or ErrNotFound.
func (s *SQLiteStore) GetChunk(ctx context.Context, id string) (*Chunk, error) {
	chunks, err := s.GetChunks(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("chunk %s: %w", id, synerrors.ErrNotFound)
	}
	return chunks[0], nil
}

// GetChunks batch-retrieves chunks by ID, preserving the input order.
// Missing IDs are silently skipped.
func (s *SQLiteStore) GetChunks(ctx context.Context, ids []string) ([]*Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, synerrors.StorageError(synerrors.ErrCodeStoreQuery, "store is closed", nil)
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(
		`SELECT id, session_id, source, ordinal, content, metadata, created_at
		 FROM chunks WHERE id IN (%s)`, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, synerrors.StorageError(synerrors.ErrCodeStoreQuery, "failed to query chunks", err)
	}
	defer rows.Close()

	byID := make(map[string]*Chunk, len(ids))
	for rows.Next() {
		var (
			chunk     Chunk
			metaJSON  string
			createdMs int64
		)
		if err := rows.Scan(&chunk.ID, &chunk.SessionID, &chunk.Source, &chunk.Ordinal,
			&chunk.Content, &metaJSON, &createdMs); err != nil {
			return nil, synerrors.StorageError(synerrors.ErrCodeStoreQuery, "failed to scan chunk", err)
		}
		chunk.CreatedAt = time.UnixMilli(createdMs)
		if err := json.Unmarshal([]byte(metaJSON), &chunk.Metadata); err != nil {
			return nil, synerrors.StorageError(synerrors.ErrCodeStoreQuery, "failed to decode chunk metadata", err)
		}
		byID[chunk.ID] = &chunk
	}
	if err := rows.Err(); err != nil {
		return nil, synerrors.StorageError(synerrors.ErrCodeStoreQuery, "failed to read chunks", err)
	}

	results := make([]*Chunk, 0, len(ids))
	for _, id := range ids {
		if chunk, ok := byID[id]; ok {
			results = append(results, chunk)
		}
	}
	return results, nil
}

// ListChunkIDsBySource returns the chunk IDs of one source document
// within a session, in chunk order.
func (s *SQLiteStore) ListChunkIDsBySource(ctx context.Context, sessionID, source string) ([]string, error) {
	return s.listChunkIDs(ctx,
		`SELECT id FROM chunks WHERE session_id = ? AND source = ? ORDER BY ordinal`,
		sessionID, source)
}

// ListChunkIDsBySession returns all chunk IDs in a session.
func (s *SQLiteStore) ListChunkIDsBySession(ctx context.Context, sessionID string) ([]string, error) {
	return s.listChunkIDs(ctx,
		`SELECT id FROM chunks WHERE session_id = ? ORDER BY source, ordinal`,
		sessionID)
}

func (s *SQLiteStore) listChunkIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, synerrors.StorageError(synerrors.ErrCodeStoreQuery, "store is closed", nil)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, synerrors.StorageError(synerrors.ErrCodeStoreQuery, "failed to list chunk IDs", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, synerrors.StorageError(synerrors.ErrCodeStoreQuery, "failed to scan chunk ID", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteChunks removes chunks by ID.
func (s *SQLiteStore) DeleteChunks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return synerrors.StorageError(synerrors.ErrCodeStoreQuery, "store is closed", nil)
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`DELETE FROM chunks WHERE id IN (%s)`, strings.Join(placeholders, ","))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return synerrors.StorageError(synerrors.ErrCodeStoreQuery, "failed to delete chunks", err)
	}
	return nil
}

// AppendMessage records one chat turn.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return synerrors.StorageError(synerrors.ErrCodeStoreQuery, "store is closed", nil)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		msg.SessionID, msg.Role, msg.Content, msg.CreatedAt.UnixMilli())
	if err != nil {
		return synerrors.StorageError(synerrors.ErrCodeStoreQuery, "failed to append message", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		msg.ID = id
	}
	return nil
}

// RecentMessages returns the last limit messages in chronological order.
func (s *SQLiteStore) RecentMessages(ctx context.Context, sessionID string, limit int) ([]*ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, synerrors.StorageError(synerrors.ErrCodeStoreQuery, "store is closed", nil)
	}

	// Fetch newest first, then reverse to chronological order.
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, created_at
		 FROM messages WHERE session_id = ?
		 ORDER BY id DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, synerrors.StorageError(synerrors.ErrCodeStoreQuery, "failed to query messages", err)
	}
	defer rows.Close()

	var msgs []*ChatMessage
	for rows.Next() {
		var (
			msg       ChatMessage
			createdMs int64
		)
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &createdMs); err != nil {
			return nil, synerrors.StorageError(synerrors.ErrCodeStoreQuery, "failed to scan message", err)
		}
		msg.CreatedAt = time.UnixMilli(createdMs)
		msgs = append(msgs, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, synerrors.StorageError(synerrors.ErrCodeStoreQuery, "failed to read messages", err)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Close checkpoints the WAL and closes the database. Idempotent.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.db != nil {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}
