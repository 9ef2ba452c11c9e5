package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

type createSessionRequest struct {
	Metadata map[string]string `json:"metadata,omitempty"`
}

type sessionResponse struct {
	SessionID     string            `json:"session_id"`
	CreatedAt     time.Time         `json:"created_at"`
	ExpiresAt     time.Time         `json:"expires_at"`
	DocumentCount int               `json:"document_count"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type messageResponse struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) createSession(c echo.Context) error {
	var req createSessionRequest
	// An empty body is a valid request
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	sess, err := s.registry.Create(c.Request().Context(), req.Metadata)
	if err != nil {
		return httpError(c, err)
	}

	return c.JSON(http.StatusCreated, sessionResponse{
		SessionID:     sess.ID,
		CreatedAt:     sess.CreatedAt,
		ExpiresAt:     sess.ExpiresAt,
		DocumentCount: sess.DocumentCount,
		Metadata:      sess.Metadata,
	})
}

func (s *Server) getSession(c echo.Context) error {
	sess, err := s.registry.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(c, err)
	}

	return c.JSON(http.StatusOK, sessionResponse{
		SessionID:     sess.ID,
		CreatedAt:     sess.CreatedAt,
		ExpiresAt:     sess.ExpiresAt,
		DocumentCount: sess.DocumentCount,
		Metadata:      sess.Metadata,
	})
}

func (s *Server) deleteSession(c echo.Context) error {
	if err := s.registry.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listMessages(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	if _, err := s.registry.Get(ctx, id); err != nil {
		return httpError(c, err)
	}

	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	messages, err := s.meta.RecentMessages(ctx, id, limit)
	if err != nil {
		return httpError(c, err)
	}

	out := make([]messageResponse, len(messages))
	for i, m := range messages {
		out[i] = messageResponse{Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt}
	}
	return c.JSON(http.StatusOK, out)
}
