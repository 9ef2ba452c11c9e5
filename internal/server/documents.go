package server

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"
)

type uploadResult struct {
	Source string `json:"source"`
	Chunks int    `json:"chunks,omitempty"`
	Error  string `json:"error,omitempty"`
}

type uploadResponse struct {
	SessionID string         `json:"session_id"`
	Results   []uploadResult `json:"results"`
}

type deleteDocumentResponse struct {
	Source  string `json:"source"`
	Removed int    `json:"removed"`
}

// uploadDocuments accepts multipart form uploads under the "files"
// field. Each file is ingested independently: one bad file reports its
// error without failing the batch.
func (s *Server) uploadDocuments(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("id")

	if _, err := s.registry.Get(ctx, sessionID); err != nil {
		return httpError(c, err)
	}

	form, err := c.MultipartForm()
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "multipart form required"})
	}
	files := form.File["files"]
	if len(files) == 0 {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "no files uploaded"})
	}

	results := make([]uploadResult, 0, len(files))
	succeeded := 0
	for _, fh := range files {
		result := uploadResult{Source: fh.Filename}

		data, err := readUpload(fh)
		if err != nil {
			result.Error = err.Error()
			results = append(results, result)
			continue
		}

		count, err := s.ingestor.IngestFile(ctx, sessionID, fh.Filename, data)
		if err != nil {
			result.Error = err.Error()
		} else {
			result.Chunks = count
			succeeded++
		}
		results = append(results, result)
	}

	status := http.StatusOK
	if succeeded == 0 {
		status = http.StatusBadRequest
	}
	return c.JSON(status, uploadResponse{SessionID: sessionID, Results: results})
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *Server) deleteDocument(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("id")

	source := c.QueryParam("source")
	if source == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "source query parameter required"})
	}

	removed, err := s.ingestor.DeleteSource(ctx, sessionID, source)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, deleteDocumentResponse{Source: source, Removed: removed})
}
