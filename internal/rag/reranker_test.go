package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopRerankerPreservesOrder(t *testing.T) {
	r := &NoopReranker{}

	results, err := r.Rerank(context.Background(), "query", []string{"a", "b", "c"}, 2)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, 0, results[0].Index)
	assert.Equal(t, 1, results[1].Index)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestNoopRerankerEmptyInput(t *testing.T) {
	r := &NoopReranker{}
	results, err := r.Rerank(context.Background(), "query", nil, 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCrossEncoderRerankerAgainstFakeServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/rerank":
			var req rerankRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "which document", req.Query)

			// Reverse the input order with descending scores
			fmt.Fprint(w, `{"results":[
				{"index":2,"score":0.95,"document":"c"},
				{"index":0,"score":0.40,"document":"a"},
				{"index":1,"score":0.10,"document":"b"}
			]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	r, err := NewCrossEncoderReranker(context.Background(), CrossEncoderConfig{Endpoint: server.URL})
	require.NoError(t, err)
	defer r.Close()

	results, err := r.Rerank(context.Background(), "which document", []string{"a", "b", "c"}, 2)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, 2, results[0].Index)
	assert.Equal(t, "c", results[0].Document)
	assert.Equal(t, 0, results[1].Index)
}

func TestCrossEncoderRerankerRejectsOutOfRangeIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		fmt.Fprint(w, `{"results":[{"index":99,"score":1.0,"document":"phantom"}]}`)
	}))
	defer server.Close()

	r, err := NewCrossEncoderReranker(context.Background(), CrossEncoderConfig{Endpoint: server.URL})
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Rerank(context.Background(), "q", []string{"a"}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestCrossEncoderRerankerServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	r, err := NewCrossEncoderReranker(context.Background(), CrossEncoderConfig{Endpoint: server.URL})
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Rerank(context.Background(), "q", []string{"a", "b"}, 1)
	require.Error(t, err)
}

func TestHostedRerankerAgainstFakeServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req hostedRerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 1, req.TopN)

		fmt.Fprint(w, `{"results":[{"index":1,"relevance_score":0.88}]}`)
	}))
	defer server.Close()

	r, err := NewHostedReranker(HostedRerankerConfig{Endpoint: server.URL, APIKey: "test-key"})
	require.NoError(t, err)
	defer r.Close()

	results, err := r.Rerank(context.Background(), "q", []string{"a", "b"}, 1)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Index)
	assert.Equal(t, "b", results[0].Document)
	assert.InDelta(t, 0.88, results[0].Score, 1e-9)
}

func TestNewRerankerVariants(t *testing.T) {
	r, err := NewReranker(context.Background(), "none", "", "", "", 0)
	require.NoError(t, err)
	assert.IsType(t, &NoopReranker{}, r)

	_, err = NewReranker(context.Background(), "flashrank", "", "", "", 0)
	require.Error(t, err)
}
