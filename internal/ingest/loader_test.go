package ingest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	synerrors "github.com/synapse-rag/synapse/internal/errors"
)

func TestLoadTextFile(t *testing.T) {
	docs, err := Load("notes.txt", []byte("plain text body"))
	require.NoError(t, err)

	require.Len(t, docs, 1)
	assert.Equal(t, "plain text body", docs[0].Content)
	assert.Equal(t, "notes.txt", docs[0].Metadata["source"])
}

func TestLoadMarkdownFile(t *testing.T) {
	docs, err := Load("README.md", []byte("# Title\n\nBody text"))
	require.NoError(t, err)

	require.Len(t, docs, 1)
	assert.Equal(t, "README.md", docs[0].Metadata["source"])
}

func TestLoadEmptyTextFile(t *testing.T) {
	docs, err := Load("empty.txt", []byte("   \n"))
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestLoadUnsupportedFormat(t *testing.T) {
	_, err := Load("slides.pptx", []byte("anything"))
	require.Error(t, err)

	var se *synerrors.SynapseError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, synerrors.ErrCodeDocumentParse, se.Code)
}

func TestLoadCorruptPDF(t *testing.T) {
	_, err := Load("broken.pdf", []byte("not a pdf at all"))
	require.Error(t, err)

	var se *synerrors.SynapseError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, synerrors.ErrCodeDocumentParse, se.Code)
}
