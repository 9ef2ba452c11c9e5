package rag

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/synapse-rag/synapse/internal/embed"
	synerrors "github.com/synapse-rag/synapse/internal/errors"
	"github.com/synapse-rag/synapse/internal/store"
)

// RetrieverConfig tunes the retrieval pipeline.
type RetrieverConfig struct {
	Weights       Weights
	RRFConstant   int
	RetrievalTopK int // fused candidates handed to the reranker
	RerankTopK    int // candidates kept after reranking
}

// DefaultRetrieverConfig returns the standard pipeline tuning.
func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{
		Weights:       DefaultWeights(),
		RRFConstant:   DefaultRRFConstant,
		RetrievalTopK: 10,
		RerankTopK:    3,
	}
}

// RetrievedChunk is one retrieval pipeline output: a chunk plus its
// provenance scores.
type RetrievedChunk struct {
	Chunk        *store.Chunk
	FusedScore   float64
	VectorScore  float64
	KeywordScore float64

	// RerankScore is only meaningful when Reranked is set; a
	// cross-encoder can legitimately emit 0.
	RerankScore float64
	Reranked    bool
}

// Retriever runs session-scoped hybrid retrieval: vector and keyword
// search in parallel, RRF fusion, then cross-encoder reranking.
type Retriever struct {
	meta     store.MetadataStore
	keyword  store.KeywordIndex
	vectors  store.VectorIndex
	embedder embed.Embedder
	reranker Reranker
	fusion   *RRFFusion
	config   RetrieverConfig
}

// NewRetriever wires the retrieval pipeline.
func NewRetriever(
	meta store.MetadataStore,
	keyword store.KeywordIndex,
	vectors store.VectorIndex,
	embedder embed.Embedder,
	reranker Reranker,
	cfg RetrieverConfig,
) *Retriever {
	if cfg.RetrievalTopK <= 0 {
		cfg.RetrievalTopK = 10
	}
	if cfg.RerankTopK <= 0 {
		cfg.RerankTopK = 3
	}
	return &Retriever{
		meta:     meta,
		keyword:  keyword,
		vectors:  vectors,
		embedder: embedder,
		reranker: reranker,
		fusion:   NewRRFFusion(cfg.RRFConstant),
		config:   cfg,
	}
}

// Retrieve runs the full pipeline for a session-scoped query. An empty
// result means the session's documents contain nothing relevant; the
// caller decides whether that is an error.
//
// Vector search failures (including query embedding) abort retrieval.
// Keyword search is best effort: on failure its list is empty and
// fusion proceeds on vector results alone.
func (r *Retriever) Retrieve(ctx context.Context, sessionID, query string) ([]*RetrievedChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, synerrors.New(synerrors.ErrCodeQueryEmpty, "query must not be empty", nil)
	}

	start := time.Now()
	k := r.config.RetrievalTopK

	vecResults, kwResults, err := r.parallelSearch(ctx, sessionID, query, k)
	if err != nil {
		return nil, err
	}

	fused := r.fusion.Fuse(vecResults, kwResults, r.config.Weights)
	if len(fused) > k {
		fused = fused[:k]
	}
	if len(fused) == 0 {
		return []*RetrievedChunk{}, nil
	}

	enriched, err := r.enrich(ctx, fused)
	if err != nil {
		return nil, err
	}

	results := r.rerank(ctx, query, enriched)

	slog.Debug("retrieval_completed",
		slog.String("session_id", sessionID),
		slog.Int("vector_hits", len(vecResults)),
		slog.Int("keyword_hits", len(kwResults)),
		slog.Int("fused", len(fused)),
		slog.Int("returned", len(results)),
		slog.Duration("elapsed", time.Since(start)))

	return results, nil
}

// parallelSearch runs both branches concurrently. Each branch
// overfetches to 2k so fusion has enough overlap to work with.
func (r *Retriever) parallelSearch(ctx context.Context, sessionID, query string, k int) ([]*store.VectorResult, []*store.KeywordResult, error) {
	overfetch := 2 * k

	var (
		vecResults []*store.VectorResult
		kwResults  []*store.KeywordResult
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		queryVec, err := r.embedder.Embed(gctx, query)
		if err != nil {
			// Without an embedding there is no vector branch, and
			// keyword-only answers would silently change quality.
			return synerrors.VectorStoreError("failed to embed query", err)
		}
		results, err := r.vectors.Search(gctx, sessionID, queryVec, overfetch)
		if err != nil {
			return synerrors.VectorStoreError("vector search failed", err)
		}
		vecResults = results
		return nil
	})

	g.Go(func() error {
		results, err := r.keyword.Search(gctx, sessionID, query, overfetch)
		if err != nil {
			// Best effort: degrade to vector-only
			slog.Warn("keyword_search_failed",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()))
			kwResults = nil
			return nil
		}
		kwResults = results
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return vecResults, kwResults, nil
}

// enrich batch-loads chunk content for the fused candidates. Chunks
// deleted between search and load are dropped.
func (r *Retriever) enrich(ctx context.Context, fused []*FusedResult) ([]*RetrievedChunk, error) {
	ids := make([]string, len(fused))
	byID := make(map[string]*FusedResult, len(fused))
	for i, f := range fused {
		ids[i] = f.ChunkID
		byID[f.ChunkID] = f
	}

	chunks, err := r.meta.GetChunks(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := make([]*RetrievedChunk, 0, len(chunks))
	for _, chunk := range chunks {
		f := byID[chunk.ID]
		results = append(results, &RetrievedChunk{
			Chunk:        chunk,
			FusedScore:   f.FusedScore,
			VectorScore:  f.VectorScore,
			KeywordScore: f.KeywordScore,
		})
	}
	return results, nil
}

// rerank runs the cross-encoder over the candidates. When the
// candidate count is within the rerank budget the order is already
// final and the model call is skipped. Rerank failures degrade to the
// fused order.
func (r *Retriever) rerank(ctx context.Context, query string, candidates []*RetrievedChunk) []*RetrievedChunk {
	topK := r.config.RerankTopK

	if len(candidates) <= topK {
		return candidates
	}

	documents := make([]string, len(candidates))
	for i, c := range candidates {
		documents[i] = c.Chunk.Content
	}

	ranked, err := r.reranker.Rerank(ctx, query, documents, topK)
	if err != nil {
		slog.Warn("rerank_failed_using_fused_order", slog.String("error", err.Error()))
		return candidates[:topK]
	}

	results := make([]*RetrievedChunk, 0, len(ranked))
	for _, item := range ranked {
		if item.Index < 0 || item.Index >= len(candidates) {
			continue
		}
		c := candidates[item.Index]
		c.RerankScore = item.Score
		c.Reranked = true
		results = append(results, c)
	}
	if len(results) == 0 {
		return candidates[:topK]
	}
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}
