// Package ingest turns uploaded documents into indexed chunks: format
// loaders, a recursive character splitter, and the ingestion service
// that writes to the chunk, keyword, and vector stores.
package ingest

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	synerrors "github.com/synapse-rag/synapse/internal/errors"
)

// Document is one loaded unit of text before chunking. PDFs produce one
// document per page; plain text formats produce a single document.
type Document struct {
	Content  string
	Metadata map[string]string
}

// SupportedExtensions lists the file formats the loader accepts.
func SupportedExtensions() []string {
	return []string{".pdf", ".txt", ".md", ".markdown"}
}

// Load parses an uploaded file into documents. The filename determines
// the format; data is the raw upload.
func Load(filename string, data []byte) ([]*Document, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return loadPDF(filename, data)
	case ".txt", ".md", ".markdown":
		return loadText(filename, data)
	default:
		return nil, synerrors.New(synerrors.ErrCodeDocumentParse,
			fmt.Sprintf("unsupported file format %q", ext), nil).
			WithDetail("filename", filename).
			WithDetail("supported", strings.Join(SupportedExtensions(), ", "))
	}
}

// loadPDF extracts plain text per page. Pages are 1-indexed in the
// metadata so citations match what a PDF viewer shows.
func loadPDF(filename string, data []byte) ([]*Document, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, synerrors.New(synerrors.ErrCodeDocumentParse, "failed to parse PDF", err).
			WithDetail("filename", filename)
	}

	var documents []*Document
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single damaged page should not sink the whole upload
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		documents = append(documents, &Document{
			Content: text,
			Metadata: map[string]string{
				"source": filename,
				"page":   strconv.Itoa(i),
			},
		})
	}
	return documents, nil
}

func loadText(filename string, data []byte) ([]*Document, error) {
	content := string(data)
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	return []*Document{{
		Content:  content,
		Metadata: map[string]string{"source": filename},
	}}, nil
}
