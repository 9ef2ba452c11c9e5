package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	synerrors "github.com/synapse-rag/synapse/internal/errors"
)

// BleveKeywordIndex implements KeywordIndex using Bleve v2.
// Alternative to the FTS5 backend for deployments that prefer a
// pure-Go index directory over a SQLite file.
type BleveKeywordIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// Verify interface implementation at compile time
var _ KeywordIndex = (*BleveKeywordIndex)(nil)

// bleveChunk is the document shape handed to Bleve.
type bleveChunk struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

// NewBleveKeywordIndex creates a Bleve keyword index at path.
// If path is empty, an in-memory index is used for testing.
func NewBleveKeywordIndex(path string) (*BleveKeywordIndex, error) {
	indexMapping := createKeywordMapping()

	var (
		idx bleve.Index
		err error
	)
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		dir := filepath.Dir(path)
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, mkErr)
		}
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open index: %w", err)
	}

	return &BleveKeywordIndex{index: idx, path: path}, nil
}

func createKeywordMapping() *mapping.IndexMappingImpl {
	// session_id is a keyword field so term queries match it exactly.
	sessionField := bleve.NewTextFieldMapping()
	sessionField.Analyzer = keyword.Name
	sessionField.Store = false

	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = standard.Name
	contentField.Store = false

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("session_id", sessionField)
	docMapping.AddFieldMappingsAt("content", contentField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// Index adds chunks to the index. Existing chunk IDs are replaced.
func (b *BleveKeywordIndex) Index(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return synerrors.StorageError(synerrors.ErrCodeKeywordIndex, "keyword index is closed", nil)
	}

	batch := b.index.NewBatch()
	for _, chunk := range chunks {
		doc := bleveChunk{SessionID: chunk.SessionID, Content: chunk.Content}
		if err := batch.Index(chunk.ID, doc); err != nil {
			return synerrors.StorageError(synerrors.ErrCodeKeywordIndex,
				fmt.Sprintf("failed to index chunk %s", chunk.ID), err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return synerrors.StorageError(synerrors.ErrCodeKeywordIndex, "failed to execute batch", err)
	}
	return nil
}

// Search returns session-scoped matches with AND semantics.
func (b *BleveKeywordIndex) Search(ctx context.Context, sessionID, queryStr string, limit int) ([]*KeywordResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, synerrors.StorageError(synerrors.ErrCodeKeywordIndex, "keyword index is closed", nil)
	}

	tokens := Tokenize(queryStr)
	if len(tokens) == 0 {
		return []*KeywordResult{}, nil
	}

	matchQuery := bleve.NewMatchQuery(queryStr)
	matchQuery.SetField("content")
	matchQuery.SetOperator(query.MatchQueryOperatorAnd)

	sessionQuery := bleve.NewTermQuery(sessionID)
	sessionQuery.SetField("session_id")

	conjunction := bleve.NewConjunctionQuery(matchQuery, sessionQuery)

	req := bleve.NewSearchRequest(conjunction)
	req.Size = limit

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, synerrors.StorageError(synerrors.ErrCodeKeywordIndex, "keyword search failed", err)
	}

	results := make([]*KeywordResult, 0, len(result.Hits))
	for _, hit := range result.Hits {
		results = append(results, &KeywordResult{
			ChunkID: hit.ID,
			Score:   hit.Score,
		})
	}
	return results, nil
}

// Delete removes chunks from the index by ID.
func (b *BleveKeywordIndex) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return synerrors.StorageError(synerrors.ErrCodeKeywordIndex, "keyword index is closed", nil)
	}

	batch := b.index.NewBatch()
	for _, id := range chunkIDs {
		batch.Delete(id)
	}
	if err := b.index.Batch(batch); err != nil {
		return synerrors.StorageError(synerrors.ErrCodeKeywordIndex, "failed to delete chunks", err)
	}
	return nil
}

// DeleteSession removes every indexed chunk belonging to a session.
func (b *BleveKeywordIndex) DeleteSession(ctx context.Context, sessionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return synerrors.StorageError(synerrors.ErrCodeKeywordIndex, "keyword index is closed", nil)
	}

	sessionQuery := bleve.NewTermQuery(sessionID)
	sessionQuery.SetField("session_id")

	docCount, _ := b.index.DocCount()
	req := bleve.NewSearchRequest(sessionQuery)
	req.Size = int(docCount)
	req.Fields = []string{}

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return synerrors.StorageError(synerrors.ErrCodeKeywordIndex, "failed to find session chunks", err)
	}

	batch := b.index.NewBatch()
	for _, hit := range result.Hits {
		batch.Delete(hit.ID)
	}
	if err := b.index.Batch(batch); err != nil {
		return synerrors.StorageError(synerrors.ErrCodeKeywordIndex, "failed to delete session chunks", err)
	}
	return nil
}

// Close closes the index. Idempotent.
func (b *BleveKeywordIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}
