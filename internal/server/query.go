package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/synapse-rag/synapse/internal/rag"
)

type queryRequest struct {
	Question string `json:"question"`
}

type tokenEvent struct {
	Token string `json:"token"`
}

type sourcesEvent struct {
	Answer  string       `json:"answer"`
	Sources []rag.Source `json:"sources"`
}

// query answers a question over the session's documents, streaming the
// answer as server-sent events: token events while the model generates,
// one sources event with the full answer and citations, then done.
// Failures after the stream opens arrive as an error event.
func (s *Server) query(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("id")

	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.Question) == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "question must not be empty"})
	}

	if _, err := s.registry.Get(ctx, sessionID); err != nil {
		return httpError(c, err)
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	answer, err := s.chain.Ask(ctx, sessionID, req.Question, func(token string) error {
		return writeEvent(res, "token", tokenEvent{Token: token})
	})
	if err != nil {
		// The stream is already open, so the error travels in-band
		_ = writeEvent(res, "error", errorResponse{Error: err.Error()})
		return nil
	}

	if err := writeEvent(res, "sources", sourcesEvent{Answer: answer.Text, Sources: answer.Sources}); err != nil {
		return nil
	}
	_ = writeEvent(res, "done", map[string]bool{"ok": true})
	return nil
}

func writeEvent(res *echo.Response, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	res.Flush()
	return nil
}
