package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/synapse-rag/synapse/internal/config"
	"github.com/synapse-rag/synapse/internal/embed"
	synerrors "github.com/synapse-rag/synapse/internal/errors"
	"github.com/synapse-rag/synapse/internal/store"
)

// Service ingests uploaded documents into a session: load, chunk,
// embed, then write to the chunk store and both search indices.
type Service struct {
	meta     store.MetadataStore
	keyword  store.KeywordIndex
	vectors  store.VectorIndex
	embedder embed.Embedder
	splitter *Splitter
}

// NewService wires the ingestion pipeline.
func NewService(
	meta store.MetadataStore,
	keyword store.KeywordIndex,
	vectors store.VectorIndex,
	embedder embed.Embedder,
	cfg config.IngestConfig,
) *Service {
	return &Service{
		meta:     meta,
		keyword:  keyword,
		vectors:  vectors,
		embedder: embedder,
		splitter: NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
	}
}

// IngestFile processes one uploaded file into the session and returns
// the number of chunks stored. Uploading a source that already exists
// replaces its chunks. The session must exist and be unexpired.
func (s *Service) IngestFile(ctx context.Context, sessionID, filename string, data []byte) (int, error) {
	start := time.Now()

	session, err := s.meta.GetSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if session.Expired(time.Now()) {
		return 0, fmt.Errorf("session %s: %w", sessionID, synerrors.ErrNotFound)
	}

	documents, err := Load(filename, data)
	if err != nil {
		return 0, err
	}
	if len(documents) == 0 {
		return 0, synerrors.New(synerrors.ErrCodeDocumentParse,
			"document contains no extractable text", nil).
			WithDetail("filename", filename)
	}

	chunks := s.buildChunks(sessionID, filename, documents)
	if len(chunks) == 0 {
		return 0, synerrors.New(synerrors.ErrCodeDocumentParse,
			"document produced no chunks", nil).
			WithDetail("filename", filename)
	}

	// Embed before any store write so a capability failure leaves no
	// half-indexed document behind.
	texts := make([]string, len(chunks))
	ids := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
		ids[i] = chunk.ID
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, err
	}

	existing, err := s.meta.ListChunkIDsBySource(ctx, sessionID, filename)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		if err := s.removeChunks(ctx, sessionID, existing); err != nil {
			return 0, err
		}
	}

	if err := s.meta.SaveChunks(ctx, chunks); err != nil {
		return 0, err
	}
	if err := s.keyword.Index(ctx, chunks); err != nil {
		return 0, err
	}
	if err := s.vectors.Add(ctx, sessionID, ids, vectors); err != nil {
		return 0, err
	}

	if len(existing) == 0 {
		if err := s.meta.AdjustDocumentCount(ctx, sessionID, 1); err != nil {
			return 0, err
		}
	}

	slog.Info("document_ingested",
		slog.String("session_id", sessionID),
		slog.String("source", filename),
		slog.Int("chunks", len(chunks)),
		slog.Bool("replaced", len(existing) > 0),
		slog.Duration("elapsed", time.Since(start)))

	return len(chunks), nil
}

// DeleteSource removes every chunk of one document from the session and
// returns how many were removed. Removing an unknown source is a no-op.
func (s *Service) DeleteSource(ctx context.Context, sessionID, source string) (int, error) {
	if _, err := s.meta.GetSession(ctx, sessionID); err != nil {
		return 0, err
	}

	ids, err := s.meta.ListChunkIDsBySource(ctx, sessionID, source)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if err := s.removeChunks(ctx, sessionID, ids); err != nil {
		return 0, err
	}
	if err := s.meta.AdjustDocumentCount(ctx, sessionID, -1); err != nil {
		return 0, err
	}

	slog.Info("document_deleted",
		slog.String("session_id", sessionID),
		slog.String("source", source),
		slog.Int("chunks", len(ids)))

	return len(ids), nil
}

func (s *Service) removeChunks(ctx context.Context, sessionID string, ids []string) error {
	if err := s.meta.DeleteChunks(ctx, ids); err != nil {
		return err
	}
	if err := s.keyword.Delete(ctx, ids); err != nil {
		return err
	}
	return s.vectors.Delete(ctx, sessionID, ids)
}

// buildChunks splits the loaded documents and assigns ordinals across
// the whole file, so a multi-page PDF numbers its chunks continuously.
func (s *Service) buildChunks(sessionID, filename string, documents []*Document) []*store.Chunk {
	now := time.Now()

	var chunks []*store.Chunk
	ordinal := 0
	for _, doc := range documents {
		for _, content := range s.splitter.Split(doc.Content) {
			metadata := make(map[string]string, len(doc.Metadata))
			for k, v := range doc.Metadata {
				metadata[k] = v
			}
			chunks = append(chunks, &store.Chunk{
				ID:        chunkID(sessionID, filename, ordinal),
				SessionID: sessionID,
				Source:    filename,
				Ordinal:   ordinal,
				Content:   content,
				Metadata:  metadata,
				CreatedAt: now,
			})
			ordinal++
		}
	}
	return chunks
}

// chunkID derives a stable ID from the chunk's position. Re-uploading
// the same file yields the same IDs, which makes replacement idempotent.
func chunkID(sessionID, source string, ordinal int) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%d", sessionID, source, ordinal)))
	return hex.EncodeToString(hash[:])[:16]
}
