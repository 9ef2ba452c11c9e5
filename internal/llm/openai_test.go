package llm

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

func TestCompleteAgainstFakeServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "llama-3.3-70b-versatile", req.Model)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"hello back"}}]}`))
	}))
	defer server.Close()

	c, err := NewClient(Config{BaseURL: server.URL, APIKey: "test-key", Model: "llama-3.3-70b-versatile"})
	require.NoError(t, err)
	defer c.Close()

	got, err := c.Complete(context.Background(),
		[]Message{{Role: RoleUser, Content: "hello"}}, Options{Temperature: 0})
	require.NoError(t, err)
	assert.Equal(t, "hello back", got)
}

func TestCompleteServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	c, err := NewClient(Config{BaseURL: server.URL, Model: "m"})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestStreamAssemblesTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		for _, token := range []string{"The ", "answer ", "is 42."} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", token)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	c, err := NewClient(Config{BaseURL: server.URL, Model: "m"})
	require.NoError(t, err)
	defer c.Close()

	var tokens []string
	full, err := c.Stream(context.Background(),
		[]Message{{Role: RoleUser, Content: "question"}}, Options{},
		func(tok string) error {
			tokens = append(tokens, tok)
			return nil
		})
	require.NoError(t, err)

	assert.Equal(t, "The answer is 42.", full)
	assert.Equal(t, []string{"The ", "answer ", "is 42."}, tokens)
}

func TestStreamCallbackErrorStopsStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for i := 0; i < 10; i++ {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n")
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	c, err := NewClient(Config{BaseURL: server.URL, Model: "m"})
	require.NoError(t, err)
	defer c.Close()

	count := 0
	_, err = c.Stream(context.Background(),
		[]Message{{Role: RoleUser, Content: "q"}}, Options{},
		func(string) error {
			count++
			if count == 2 {
				return fmt.Errorf("client disconnected")
			}
			return nil
		})
	require.Error(t, err)
	assert.Equal(t, 2, count)
}
