package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/synapse-rag/synapse/internal/llm"
	"github.com/synapse-rag/synapse/internal/store"
)

const contextualizePrompt = `Given the conversation history and the user's latest question,
create a standalone question that can be understood without needing
to see the conversation history.

If the question is already clear, return it as is.
Do not answer the question, only reformulate if necessary.

Conversation History:
%s

Latest Question: %s

Reformulated Question:`

// Contextualizer rewrites follow-up questions ("explain that in more
// detail") into standalone queries using recent chat history.
type Contextualizer struct {
	generator llm.Generator
}

// NewContextualizer creates a query contextualizer.
func NewContextualizer(generator llm.Generator) *Contextualizer {
	return &Contextualizer{generator: generator}
}

// Contextualize returns a standalone form of question. With no history
// the question passes through untouched and no model call is made.
// Generation failures also fall back to the original question: a worse
// query beats no answer.
func (c *Contextualizer) Contextualize(ctx context.Context, question string, history []*store.ChatMessage) string {
	formatted := FormatChatHistory(history)
	if formatted == "" {
		return question
	}

	prompt := fmt.Sprintf(contextualizePrompt, formatted, question)
	rewritten, err := c.generator.Complete(ctx,
		[]llm.Message{{Role: llm.RoleUser, Content: prompt}},
		llm.Options{Temperature: 0})
	if err != nil {
		slog.Error("contextualize_failed", slog.String("error", err.Error()))
		return question
	}

	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		return question
	}

	slog.Info("query_contextualized",
		slog.String("original", truncate(question, 50)),
		slog.String("contextualized", truncate(rewritten, 50)))
	return rewritten
}

// FormatChatHistory renders messages as "Human:"/"Assistant:" lines
// for prompt embedding. Empty history renders as an empty string.
func FormatChatHistory(messages []*store.ChatMessage) string {
	if len(messages) == 0 {
		return ""
	}
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		role := "Human"
		if msg.Role == store.RoleAssistant {
			role = "Assistant"
		}
		lines = append(lines, role+": "+msg.Content)
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
