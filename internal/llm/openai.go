package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	synerrors "github.com/synapse-rag/synapse/internal/errors"
)

// Config configures the OpenAI-compatible client.
type Config struct {
	BaseURL string // e.g. https://api.groq.com/openai/v1
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client talks to any OpenAI-compatible /chat/completions endpoint.
type Client struct {
	config     Config
	httpClient *http.Client
}

// Verify interface implementation at compile time
var _ Generator = (*Client)(nil)

// NewClient creates an OpenAI-compatible chat client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Complete returns the full completion text.
func (c *Client) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	resp, err := c.send(ctx, messages, opts, false)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", synerrors.CapabilityError(synerrors.ErrCodeLLMFailed, "failed to parse completion response", err)
	}
	if len(parsed.Choices) == 0 {
		return "", synerrors.CapabilityError(synerrors.ErrCodeLLMFailed, "no choices in completion response", nil)
	}
	return parsed.Choices[0].Message.Content, nil
}

// Stream reads server-sent events from the completion endpoint,
// forwarding each content delta to onToken. Returns the full text.
func (c *Client) Stream(ctx context.Context, messages []Message, opts Options, onToken func(string) error) (string, error) {
	resp, err := c.send(ctx, messages, opts, true)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Skip malformed keep-alive fragments
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		token := chunk.Choices[0].Delta.Content
		if token == "" {
			continue
		}
		full.WriteString(token)
		if onToken != nil {
			if err := onToken(token); err != nil {
				return full.String(), err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return full.String(), synerrors.CapabilityError(synerrors.ErrCodeLLMFailed, "stream interrupted", err)
	}

	return full.String(), nil
}

func (c *Client) send(ctx context.Context, messages []Message, opts Options, stream bool) (*http.Response, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.config.Model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Stream:      stream,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.config.BaseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, synerrors.CapabilityError(synerrors.ErrCodeLLMFailed, "completion request failed", err)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, synerrors.CapabilityError(synerrors.ErrCodeLLMFailed,
			fmt.Sprintf("completion API returned status %d: %s", resp.StatusCode, string(respBody)), nil)
	}
	return resp, nil
}

// ModelName returns the model identifier.
func (c *Client) ModelName() string { return c.config.Model }

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
