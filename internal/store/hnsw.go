package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/coder/hnsw"

	synerrors "github.com/synapse-rag/synapse/internal/errors"
)

// HNSWIndex implements VectorIndex using coder/hnsw, a pure Go HNSW
// implementation. Each session owns its own graph, which makes session
// isolation structural: a query can only ever see its own vectors.
type HNSWIndex struct {
	mu       sync.RWMutex
	dataDir  string // empty means memory-only (no persistence)
	dims     int    // fixed by the first vector added
	sessions map[string]*sessionGraph
	closed   bool
}

// sessionGraph holds one session's graph plus ID mappings
// (chunk ID string <-> internal uint64 key).
type sessionGraph struct {
	graph   *hnsw.Graph[uint64]
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
}

// graphMetadata stores ID mappings for persistence.
type graphMetadata struct {
	IDMap   map[string]uint64
	NextKey uint64
	Dims    int
}

// Verify interface implementation at compile time
var _ VectorIndex = (*HNSWIndex)(nil)

// NewHNSWIndex creates a vector index rooted in dataDir. Existing
// session graphs under dataDir/vectors are loaded. An empty dataDir
// gives a memory-only index for testing.
func NewHNSWIndex(dataDir string) (*HNSWIndex, error) {
	idx := &HNSWIndex{
		dataDir:  dataDir,
		sessions: make(map[string]*sessionGraph),
	}
	if dataDir != "" {
		if err := os.MkdirAll(idx.vectorDir(), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create vector directory: %w", err)
		}
		if err := idx.loadAll(); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

func (h *HNSWIndex) vectorDir() string {
	return filepath.Join(h.dataDir, "vectors")
}

func (h *HNSWIndex) graphPath(sessionID string) string {
	return filepath.Join(h.vectorDir(), sessionID+".hnsw")
}

func newSessionGraph() *sessionGraph {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25
	return &sessionGraph{
		graph:  graph,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}
}

// Add inserts vectors into the session's graph. Existing IDs are
// replaced via lazy deletion.
func (h *HNSWIndex) Add(ctx context.Context, sessionID string, ids []string, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return synerrors.StorageError(synerrors.ErrCodeVectorStore, "vector index is closed", nil)
	}

	for _, v := range vectors {
		if h.dims == 0 {
			h.dims = len(v)
		}
		if len(v) != h.dims {
			return ErrDimensionMismatch{Expected: h.dims, Got: len(v)}
		}
	}

	sg, ok := h.sessions[sessionID]
	if !ok {
		sg = newSessionGraph()
		h.sessions[sessionID] = sg
	}

	for i, id := range ids {
		// Lazy deletion: orphan the old key instead of removing the
		// node, coder/hnsw misbehaves when the last node is deleted.
		if existingKey, exists := sg.idMap[id]; exists {
			delete(sg.keyMap, existingKey)
			delete(sg.idMap, id)
		}

		key := sg.nextKey
		sg.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeVectorInPlace(vec)

		sg.graph.Add(hnsw.MakeNode(key, vec))
		sg.idMap[id] = key
		sg.keyMap[key] = id
	}

	return nil
}

// Search finds the k nearest neighbors within the session's graph.
// Sessions with no vectors return an empty result.
func (h *HNSWIndex) Search(ctx context.Context, sessionID string, query []float32, k int) ([]*VectorResult, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return nil, synerrors.StorageError(synerrors.ErrCodeVectorStore, "vector index is closed", nil)
	}

	sg, ok := h.sessions[sessionID]
	if !ok || sg.graph.Len() == 0 {
		return []*VectorResult{}, nil
	}

	if h.dims != 0 && len(query) != h.dims {
		return nil, ErrDimensionMismatch{Expected: h.dims, Got: len(query)}
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeVectorInPlace(normalized)

	nodes := sg.graph.Search(normalized, k)

	results := make([]*VectorResult, 0, len(nodes))
	for _, node := range nodes {
		id, exists := sg.keyMap[node.Key]
		if !exists {
			// Lazy-deleted node, skip
			continue
		}
		distance := sg.graph.Distance(normalized, node.Value)
		results = append(results, &VectorResult{
			ChunkID:  id,
			Distance: distance,
			Score:    distanceToScore(distance),
		})
	}

	return results, nil
}

// Delete removes vectors by ID using lazy deletion.
func (h *HNSWIndex) Delete(ctx context.Context, sessionID string, ids []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return synerrors.StorageError(synerrors.ErrCodeVectorStore, "vector index is closed", nil)
	}

	sg, ok := h.sessions[sessionID]
	if !ok {
		return nil
	}

	for _, id := range ids {
		if key, exists := sg.idMap[id]; exists {
			delete(sg.keyMap, key)
			delete(sg.idMap, id)
		}
	}
	return nil
}

// DeleteSession drops the session's entire graph and its on-disk files.
func (h *HNSWIndex) DeleteSession(ctx context.Context, sessionID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return synerrors.StorageError(synerrors.ErrCodeVectorStore, "vector index is closed", nil)
	}

	delete(h.sessions, sessionID)

	if h.dataDir != "" {
		path := h.graphPath(sessionID)
		for _, p := range []string{path, path + ".meta"} {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				return synerrors.StorageError(synerrors.ErrCodeVectorStore,
					fmt.Sprintf("failed to remove graph file %s", p), err)
			}
		}
	}
	return nil
}

// Count returns the number of live vectors in a session.
func (h *HNSWIndex) Count(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return 0
	}
	sg, ok := h.sessions[sessionID]
	if !ok {
		return 0
	}
	return len(sg.idMap)
}

// Save persists every session graph to disk atomically
// (temp file + rename). Memory-only indexes are a no-op.
func (h *HNSWIndex) Save() error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return synerrors.StorageError(synerrors.ErrCodeVectorStore, "vector index is closed", nil)
	}
	if h.dataDir == "" {
		return nil
	}

	for sessionID, sg := range h.sessions {
		if err := h.saveSession(sessionID, sg); err != nil {
			return err
		}
	}
	return nil
}

func (h *HNSWIndex) saveSession(sessionID string, sg *sessionGraph) error {
	path := h.graphPath(sessionID)

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create graph file: %w", err)
	}
	if err := sg.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close graph file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename graph file: %w", err)
	}

	metaPath := path + ".meta"
	metaTmp := metaPath + ".tmp"
	metaFile, err := os.Create(metaTmp)
	if err != nil {
		return fmt.Errorf("failed to create metadata file: %w", err)
	}
	meta := graphMetadata{IDMap: sg.idMap, NextKey: sg.nextKey, Dims: h.dims}
	if err := gob.NewEncoder(metaFile).Encode(meta); err != nil {
		metaFile.Close()
		os.Remove(metaTmp)
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := metaFile.Close(); err != nil {
		os.Remove(metaTmp)
		return fmt.Errorf("failed to close metadata file: %w", err)
	}
	return os.Rename(metaTmp, metaPath)
}

// loadAll restores session graphs found under the vector directory.
func (h *HNSWIndex) loadAll() error {
	entries, err := os.ReadDir(h.vectorDir())
	if err != nil {
		return fmt.Errorf("failed to read vector directory: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".hnsw") {
			continue
		}
		sessionID := strings.TrimSuffix(name, ".hnsw")
		if err := h.loadSession(sessionID); err != nil {
			// A single unreadable graph should not prevent startup
			slog.Warn("vector_graph_load_failed",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

func (h *HNSWIndex) loadSession(sessionID string) error {
	path := h.graphPath(sessionID)

	metaFile, err := os.Open(path + ".meta")
	if err != nil {
		return fmt.Errorf("failed to open metadata: %w", err)
	}
	var meta graphMetadata
	decodeErr := gob.NewDecoder(metaFile).Decode(&meta)
	metaFile.Close()
	if decodeErr != nil {
		return fmt.Errorf("failed to decode metadata: %w", decodeErr)
	}

	sg := newSessionGraph()
	sg.idMap = meta.IDMap
	sg.nextKey = meta.NextKey
	for id, key := range sg.idMap {
		sg.keyMap[key] = id
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open graph file: %w", err)
	}
	defer file.Close()

	// coder/hnsw Import requires io.ByteReader
	if err := sg.graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("failed to import graph: %w", err)
	}

	if h.dims == 0 {
		h.dims = meta.Dims
	}
	h.sessions[sessionID] = sg
	return nil
}

// Close releases all graphs. Idempotent.
func (h *HNSWIndex) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	h.sessions = nil
	return nil
}

// normalizeVectorInPlace normalizes a vector to unit length in place.
func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}

// distanceToScore converts cosine distance (0..2) to similarity (0..1).
func distanceToScore(distance float32) float32 {
	return 1.0 - distance/2.0
}
