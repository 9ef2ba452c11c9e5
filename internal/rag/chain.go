package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	synerrors "github.com/synapse-rag/synapse/internal/errors"
	"github.com/synapse-rag/synapse/internal/llm"
	"github.com/synapse-rag/synapse/internal/store"
)

// ChainConfig tunes answer generation.
type ChainConfig struct {
	Temperature  float64
	MaxTokens    int
	Language     string // "id" or "en"
	HistoryTurns int    // messages fed to the contextualizer and prompt
}

// DefaultChainConfig returns standard generation settings.
func DefaultChainConfig() ChainConfig {
	return ChainConfig{
		Temperature:  0.3,
		MaxTokens:    2048,
		Language:     "id",
		HistoryTurns: 5,
	}
}

// Source identifies a chunk used to ground an answer.
type Source struct {
	ChunkID  string            `json:"chunk_id"`
	Document string            `json:"document"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Score    float64           `json:"score"`
}

// Answer is the result of one question.
type Answer struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
}

// Chain answers questions over a session's documents: contextualize
// the question, retrieve and rank chunks, then generate a grounded
// answer with the chat history in the prompt.
type Chain struct {
	retriever      *Retriever
	contextualizer *Contextualizer
	generator      llm.Generator
	meta           store.MetadataStore
	config         ChainConfig
}

// NewChain wires the answer pipeline.
func NewChain(retriever *Retriever, contextualizer *Contextualizer, generator llm.Generator, meta store.MetadataStore, cfg ChainConfig) *Chain {
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = 5
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	return &Chain{
		retriever:      retriever,
		contextualizer: contextualizer,
		generator:      generator,
		meta:           meta,
		config:         cfg,
	}
}

// Ask answers a question. onToken, when non-nil, receives answer
// fragments as they stream from the model. The question and final
// answer are appended to the session's chat history.
//
// Returns ErrNoInformation when retrieval finds nothing relevant.
func (c *Chain) Ask(ctx context.Context, sessionID, question string, onToken func(string) error) (*Answer, error) {
	start := time.Now()

	history, err := c.meta.RecentMessages(ctx, sessionID, c.config.HistoryTurns)
	if err != nil {
		return nil, err
	}

	standalone := c.contextualizer.Contextualize(ctx, question, history)

	retrieved, err := c.retriever.Retrieve(ctx, sessionID, standalone)
	if err != nil {
		return nil, err
	}
	if len(retrieved) == 0 {
		return nil, fmt.Errorf("no relevant documents for question: %w", synerrors.ErrNoInformation)
	}

	contextText := formatContext(retrieved)
	historyText := FormatChatHistory(history)
	prompt := fmt.Sprintf(answerPrompt(c.config.Language), historyText, contextText, standalone)

	text, err := c.generator.Stream(ctx,
		[]llm.Message{{Role: llm.RoleUser, Content: prompt}},
		llm.Options{Temperature: c.config.Temperature, MaxTokens: c.config.MaxTokens},
		onToken)
	if err != nil {
		return nil, err
	}

	answer := &Answer{
		Text:    text,
		Sources: buildSources(retrieved),
	}

	if err := c.recordTurn(ctx, sessionID, question, text); err != nil {
		// The answer already streamed; losing one history turn is
		// better than failing the request.
		slog.Warn("chat_history_save_failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
	}

	slog.Info("question_answered",
		slog.String("session_id", sessionID),
		slog.Int("sources", len(answer.Sources)),
		slog.Duration("elapsed", time.Since(start)))

	return answer, nil
}

func (c *Chain) recordTurn(ctx context.Context, sessionID, question, answer string) error {
	now := time.Now()
	if err := c.meta.AppendMessage(ctx, &store.ChatMessage{
		SessionID: sessionID,
		Role:      store.RoleHuman,
		Content:   question,
		CreatedAt: now,
	}); err != nil {
		return err
	}
	return c.meta.AppendMessage(ctx, &store.ChatMessage{
		SessionID: sessionID,
		Role:      store.RoleAssistant,
		Content:   answer,
		CreatedAt: now,
	})
}

func formatContext(retrieved []*RetrievedChunk) string {
	parts := make([]string, len(retrieved))
	for i, r := range retrieved {
		parts[i] = r.Chunk.Content
	}
	return strings.Join(parts, "\n\n")
}

func buildSources(retrieved []*RetrievedChunk) []Source {
	sources := make([]Source, len(retrieved))
	for i, r := range retrieved {
		score := r.FusedScore
		if r.Reranked {
			score = r.RerankScore
		}
		sources[i] = Source{
			ChunkID:  r.Chunk.ID,
			Document: r.Chunk.Source,
			Content:  r.Chunk.Content,
			Metadata: r.Chunk.Metadata,
			Score:    score,
		}
	}
	return sources
}
