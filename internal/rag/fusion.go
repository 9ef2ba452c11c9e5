// Package rag implements the retrieval pipeline: hybrid search with
// Reciprocal Rank Fusion, reranking, query contextualization, and
// answer generation.
package rag

import (
	"sort"

	"github.com/synapse-rag/synapse/internal/store"
)

// DefaultRRFConstant is the standard RRF smoothing parameter.
// k=60 is empirically validated across domains.
const DefaultRRFConstant = 60

// Weights are the relative multipliers applied per search source.
// They need not sum to 1.
type Weights struct {
	Vector  float64
	Keyword float64
}

// DefaultWeights gives both sources equal influence.
func DefaultWeights() Weights {
	return Weights{Vector: 0.5, Keyword: 0.5}
}

// FusedResult represents a single result after RRF fusion.
type FusedResult struct {
	ChunkID      string
	FusedScore   float64 // Combined RRF score
	VectorScore  float64 // Original similarity (preserved)
	VectorRank   int     // 1-indexed, 0 if absent from vector list
	KeywordScore float64 // Original BM25 relevance (preserved)
	KeywordRank  int     // 1-indexed, 0 if absent from keyword list

	// discovered tracks first-seen order for deterministic tie-breaks
	discovered int
}

// RRFFusion combines vector and keyword results:
//
//	score(d) = Σ weight_i / (K + rank_i)
//
// with rank 1-indexed per list. A source a document is absent from
// contributes exactly zero, so single-source hits are not propped up
// by a phantom rank.
type RRFFusion struct {
	K int
}

// NewRRFFusion creates a fusion instance. Non-positive k uses the default.
func NewRRFFusion(k int) *RRFFusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &RRFFusion{K: k}
}

// Fuse merges the two ranked lists. The vector list is processed first,
// which fixes discovery order for tie-breaking.
//
// Ordering: fused score (desc), then combined rank sum (asc), then
// discovery order.
func (f *RRFFusion) Fuse(vec []*store.VectorResult, keyword []*store.KeywordResult, weights Weights) []*FusedResult {
	if len(vec) == 0 && len(keyword) == 0 {
		return []*FusedResult{}
	}

	scores := make(map[string]*FusedResult, len(vec)+len(keyword))
	discovered := 0

	getOrCreate := func(id string) *FusedResult {
		if r, ok := scores[id]; ok {
			return r
		}
		r := &FusedResult{ChunkID: id, discovered: discovered}
		discovered++
		scores[id] = r
		return r
	}

	for rank, r := range vec {
		result := getOrCreate(r.ChunkID)
		result.VectorScore = float64(r.Score)
		result.VectorRank = rank + 1
		result.FusedScore += weights.Vector / float64(f.K+rank+1)
	}

	for rank, r := range keyword {
		result := getOrCreate(r.ChunkID)
		result.KeywordScore = r.Score
		result.KeywordRank = rank + 1
		result.FusedScore += weights.Keyword / float64(f.K+rank+1)
	}

	results := make([]*FusedResult, 0, len(scores))
	for _, r := range scores {
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		return f.compare(results[i], results[j])
	})

	return results
}

// compare returns true if a ranks before b.
func (f *RRFFusion) compare(a, b *FusedResult) bool {
	if a.FusedScore != b.FusedScore {
		return a.FusedScore > b.FusedScore
	}
	// Lower combined rank sum means the document sat higher in the
	// lists it actually appeared in.
	if a.rankSum() != b.rankSum() {
		return a.rankSum() < b.rankSum()
	}
	return a.discovered < b.discovered
}

func (r *FusedResult) rankSum() int {
	return r.VectorRank + r.KeywordRank
}
