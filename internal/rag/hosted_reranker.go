package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	synerrors "github.com/synapse-rag/synapse/internal/errors"
)

// HostedRerankerConfig configures a hosted rerank API client
// (Cohere-compatible request shape).
type HostedRerankerConfig struct {
	Endpoint string // full rerank URL, e.g. https://api.cohere.com/v2/rerank
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// HostedReranker calls a hosted rerank API.
type HostedReranker struct {
	client *http.Client
	config HostedRerankerConfig

	mu     sync.RWMutex
	closed bool
}

// Verify interface implementation at compile time
var _ Reranker = (*HostedReranker)(nil)

// NewHostedReranker creates a hosted rerank API client.
func NewHostedReranker(cfg HostedRerankerConfig) (*HostedReranker, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("rerank endpoint is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultRerankerTimeout
	}
	return &HostedReranker{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
	}, nil
}

type hostedRerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

type hostedRerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank scores and reorders documents via the hosted API.
func (r *HostedReranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, fmt.Errorf("reranker is closed")
	}
	r.mu.RUnlock()

	if len(documents) == 0 {
		return []RerankResult{}, nil
	}

	body, err := json.Marshal(hostedRerankRequest{
		Model:     r.config.Model,
		Query:     query,
		Documents: documents,
		TopN:      topK,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.config.APIKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, synerrors.CapabilityError(synerrors.ErrCodeRerankFailed, "hosted rerank request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, synerrors.CapabilityError(synerrors.ErrCodeRerankFailed,
			fmt.Sprintf("hosted rerank returned status %d: %s", resp.StatusCode, string(respBody)), nil)
	}

	var parsed hostedRerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, synerrors.CapabilityError(synerrors.ErrCodeRerankFailed, "failed to decode rerank response", err)
	}

	results := make([]RerankResult, 0, len(parsed.Results))
	for _, item := range parsed.Results {
		if item.Index < 0 || item.Index >= len(documents) {
			return nil, synerrors.CapabilityError(synerrors.ErrCodeRerankFailed,
				fmt.Sprintf("rerank index %d out of range", item.Index), nil)
		}
		results = append(results, RerankResult{
			Index:    item.Index,
			Score:    item.RelevanceScore,
			Document: documents[item.Index],
		})
	}
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// Available reports whether the client is open.
func (r *HostedReranker) Available(ctx context.Context) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.closed
}

// Close releases resources. Idempotent.
func (r *HostedReranker) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.client.CloseIdleConnections()
	return nil
}

// NewReranker builds the configured reranker variant.
func NewReranker(ctx context.Context, variant, endpoint, apiKey, model string, timeout time.Duration) (Reranker, error) {
	switch variant {
	case "cross-encoder":
		return NewCrossEncoderReranker(ctx, CrossEncoderConfig{
			Endpoint: endpoint,
			Model:    model,
			Timeout:  timeout,
		})
	case "hosted":
		return NewHostedReranker(HostedRerankerConfig{
			Endpoint: endpoint,
			APIKey:   apiKey,
			Model:    model,
			Timeout:  timeout,
		})
	case "", "none":
		return &NoopReranker{}, nil
	default:
		return nil, fmt.Errorf("unknown reranker variant: %s", variant)
	}
}
