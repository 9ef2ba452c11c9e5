// Package llm provides text generation via OpenAI-compatible chat
// completion APIs (Groq, OpenAI, local servers).
package llm

import "context"

// Message represents one turn in a chat completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Options tune a single generation request.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Generator produces completions from chat messages.
type Generator interface {
	// Complete returns the full completion text.
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)

	// Stream sends completion text fragments to onToken as they
	// arrive and returns the assembled text.
	Stream(ctx context.Context, messages []Message, opts Options, onToken func(string) error) (string, error)

	// ModelName returns the model identifier.
	ModelName() string

	// Close releases resources.
	Close() error
}
