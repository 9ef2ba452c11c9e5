package rag

import (
	"context"
)

// RerankResult represents a single reranked result.
type RerankResult struct {
	// Index is the original position in the input documents slice
	Index int
	// Score is the relevance score (higher is better)
	Score float64
	// Document is the original document content
	Document string
}

// Reranker reorders candidate documents by relevance to the query.
// Cross-encoders score query-document pairs jointly, which is more
// accurate than the bi-encoder retrieval but far more expensive, so it
// runs only on the small fused candidate set.
type Reranker interface {
	// Rerank returns results sorted by score descending, limited to
	// topK (0 = return all). Output indices always refer to positions
	// in the input slice.
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error)

	// Available checks if the reranker is ready
	Available(ctx context.Context) bool

	// Close releases resources
	Close() error
}

// NoopReranker preserves the original order. Used when reranking is
// disabled.
type NoopReranker struct{}

// Verify interface implementation at compile time
var _ Reranker = (*NoopReranker)(nil)

// Rerank returns documents in original order with decreasing scores.
func (n *NoopReranker) Rerank(_ context.Context, _ string, documents []string, topK int) ([]RerankResult, error) {
	results := make([]RerankResult, len(documents))
	for i, doc := range documents {
		results[i] = RerankResult{
			Index:    i,
			Score:    1.0 - float64(i)*0.01,
			Document: doc,
		}
	}
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// Available always returns true.
func (n *NoopReranker) Available(_ context.Context) bool { return true }

// Close is a no-op.
func (n *NoopReranker) Close() error { return nil }

// firstK returns the first topK documents in original order. Shared
// fallback for the pass-through case and hosted-reranker degradation.
func firstK(documents []string, topK int) []RerankResult {
	n := len(documents)
	if topK > 0 && topK < n {
		n = topK
	}
	results := make([]RerankResult, n)
	for i := 0; i < n; i++ {
		results[i] = RerankResult{
			Index:    i,
			Score:    1.0 - float64(i)*0.01,
			Document: documents[i],
		}
	}
	return results
}
