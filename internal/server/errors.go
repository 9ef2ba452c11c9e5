package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	synerrors "github.com/synapse-rag/synapse/internal/errors"
)

// errorResponse is the JSON body for every failed request.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// httpError maps the error taxonomy to HTTP statuses: missing sessions
// and exhausted retrieval are 404, validation is 400, capability
// failures are 502, everything else is 500.
func httpError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	code := ""

	var se *synerrors.SynapseError
	if errors.As(err, &se) {
		code = se.Code
	}

	switch {
	case synerrors.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, synerrors.ErrNoInformation):
		status = http.StatusNotFound
		code = synerrors.ErrCodeNoInformation
	default:
		switch synerrors.CategoryOf(err) {
		case synerrors.CategoryValidation:
			status = http.StatusBadRequest
		case synerrors.CategoryCapability:
			status = http.StatusBadGateway
		}
	}

	return c.JSON(status, errorResponse{Error: err.Error(), Code: code})
}
