package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	synerrors "github.com/synapse-rag/synapse/internal/errors"
)

// SQLiteKeywordIndex implements KeywordIndex using SQLite FTS5.
// WAL mode allows concurrent readers while a single connection writes.
type SQLiteKeywordIndex struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// Verify interface implementation at compile time
var _ KeywordIndex = (*SQLiteKeywordIndex)(nil)

// NewSQLiteKeywordIndex creates an FTS5-backed keyword index at path.
// If path is empty, an in-memory index is used for testing.
func NewSQLiteKeywordIndex(path string) (*SQLiteKeywordIndex, error) {
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

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	idx := &SQLiteKeywordIndex{db: db, path: path}
	if err := idx.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return idx, nil
}

func (s *SQLiteKeywordIndex) initSchema() error {
	// chunk_id and session_id are UNINDEXED: stored for filtering and
	// retrieval, excluded from the full-text index.
	schema := `
	CREATE VIRTUAL TABLE IF NOT EXISTS fts_chunks USING fts5(
		chunk_id UNINDEXED,
		session_id UNINDEXED,
		content,
		tokenize='unicode61'
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Index adds chunks to the index. Existing chunk IDs are replaced.
func (s *SQLiteKeywordIndex) Index(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return synerrors.StorageError(synerrors.ErrCodeKeywordIndex, "keyword index is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return synerrors.StorageError(synerrors.ErrCodeKeywordIndex, "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	// FTS5 virtual tables don't support REPLACE, delete first
	deleteStmt, err := tx.PrepareContext(ctx, `DELETE FROM fts_chunks WHERE chunk_id = ?`)
	if err != nil {
		return synerrors.StorageError(synerrors.ErrCodeKeywordIndex, "failed to prepare delete", err)
	}
	defer deleteStmt.Close()

	insertStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fts_chunks(chunk_id, session_id, content) VALUES (?, ?, ?)`)
	if err != nil {
		return synerrors.StorageError(synerrors.ErrCodeKeywordIndex, "failed to prepare insert", err)
	}
	defer insertStmt.Close()

	for _, chunk := range chunks {
		processed := strings.Join(Tokenize(chunk.Content), " ")
		if _, err := deleteStmt.ExecContext(ctx, chunk.ID); err != nil {
			return synerrors.StorageError(synerrors.ErrCodeKeywordIndex,
				fmt.Sprintf("failed to delete existing chunk %s", chunk.ID), err)
		}
		if _, err := insertStmt.ExecContext(ctx, chunk.ID, chunk.SessionID, processed); err != nil {
			return synerrors.StorageError(synerrors.ErrCodeKeywordIndex,
				fmt.Sprintf("failed to index chunk %s", chunk.ID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return synerrors.StorageError(synerrors.ErrCodeKeywordIndex, "failed to commit", err)
	}
	return nil
}

// Search returns session-scoped matches with AND semantics: every query
// term must appear in a chunk for it to match. FTS5 syntax errors are
// treated as no results, matching the best-effort contract.
func (s *SQLiteKeywordIndex) Search(ctx context.Context, sessionID, query string, limit int) ([]*KeywordResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, synerrors.StorageError(synerrors.ErrCodeKeywordIndex, "keyword index is closed", nil)
	}

	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return []*KeywordResult{}, nil
	}

	// Space-separated terms are implicit AND in FTS5.
	processedQuery := strings.Join(tokens, " ")

	// bm25() returns negative scores where lower is better.
	sqlQuery := `
		SELECT chunk_id, bm25(fts_chunks) AS score
		FROM fts_chunks
		WHERE content MATCH ? AND session_id = ?
		ORDER BY score
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, sqlQuery, processedQuery, sessionID, limit)
	if err != nil {
		if strings.Contains(err.Error(), "fts5:") || strings.Contains(err.Error(), "syntax error") {
			return []*KeywordResult{}, nil
		}
		return nil, synerrors.StorageError(synerrors.ErrCodeKeywordIndex, "keyword search failed", err)
	}
	defer rows.Close()

	var results []*KeywordResult
	for rows.Next() {
		var (
			chunkID string
			score   float64
		)
		if err := rows.Scan(&chunkID, &score); err != nil {
			return nil, synerrors.StorageError(synerrors.ErrCodeKeywordIndex, "failed to scan result", err)
		}
		results = append(results, &KeywordResult{
			ChunkID: chunkID,
			Score:   -score,
		})
	}
	return results, rows.Err()
}

// Delete removes chunks from the index by ID.
func (s *SQLiteKeywordIndex) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return synerrors.StorageError(synerrors.ErrCodeKeywordIndex, "keyword index is closed", nil)
	}

	placeholders := make([]string, len(chunkIDs))
	args := make([]any, len(chunkIDs))
	for i, id := range chunkIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`DELETE FROM fts_chunks WHERE chunk_id IN (%s)`,
		strings.Join(placeholders, ","))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return synerrors.StorageError(synerrors.ErrCodeKeywordIndex, "failed to delete chunks", err)
	}
	return nil
}

// DeleteSession removes every indexed chunk belonging to a session.
func (s *SQLiteKeywordIndex) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return synerrors.StorageError(synerrors.ErrCodeKeywordIndex, "keyword index is closed", nil)
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM fts_chunks WHERE session_id = ?`, sessionID); err != nil {
		return synerrors.StorageError(synerrors.ErrCodeKeywordIndex, "failed to delete session chunks", err)
	}
	return nil
}

// Close checkpoints the WAL and closes the index. Idempotent.
func (s *SQLiteKeywordIndex) Close() error {
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
