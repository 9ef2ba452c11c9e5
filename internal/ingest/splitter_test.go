package ingest

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitShortTextSingleChunk(t *testing.T) {
	s := NewSplitter(500, 100)

	chunks := s.Split("a short paragraph that fits easily")

	require.Len(t, chunks, 1)
	assert.Equal(t, "a short paragraph that fits easily", chunks[0])
}

func TestSplitEmptyTextReturnsNothing(t *testing.T) {
	s := NewSplitter(500, 100)

	assert.Empty(t, s.Split(""))
	assert.Empty(t, s.Split("   \n\n  "))
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	s := NewSplitter(40, 0)

	text := "first paragraph stays whole here\n\nsecond paragraph stays whole too"
	chunks := s.Split(text)

	require.Len(t, chunks, 2)
	assert.Equal(t, "first paragraph stays whole here", chunks[0])
	assert.Equal(t, "second paragraph stays whole too", chunks[1])
}

func TestSplitRespectsChunkSize(t *testing.T) {
	s := NewSplitter(50, 10)

	text := strings.Repeat("some words that keep going and going ", 40)
	chunks := s.Split(text)

	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 50)
	}
}

func TestSplitCarriesOverlap(t *testing.T) {
	s := NewSplitter(30, 15)

	text := "alpha beta gamma delta epsilon zeta eta theta iota kappa"
	chunks := s.Split(text)

	require.Greater(t, len(chunks), 1)

	// Consecutive chunks share trailing words from the previous chunk
	firstWords := strings.Fields(chunks[0])
	lastWord := firstWords[len(firstWords)-1]
	assert.Contains(t, chunks[1], lastWord)
}

func TestSplitHandlesMultibyteRunes(t *testing.T) {
	s := NewSplitter(20, 5)

	text := strings.Repeat("日本語のテキストです ", 20)
	chunks := s.Split(text)

	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		assert.True(t, utf8.ValidString(chunk))
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 20)
	}
}

func TestSplitHardCutsUnbrokenText(t *testing.T) {
	s := NewSplitter(25, 5)

	text := strings.Repeat("x", 100)
	chunks := s.Split(text)

	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 25)
	}
	// Every input rune appears in some chunk
	total := 0
	for _, chunk := range chunks {
		total += utf8.RuneCountInString(chunk)
	}
	assert.GreaterOrEqual(t, total, 100)
}

func TestNewSplitterRejectsBadOverlap(t *testing.T) {
	s := NewSplitter(100, 200)

	assert.Equal(t, 100, s.chunkSize)
	assert.Equal(t, 20, s.chunkOverlap)
}
