package ingest

import (
	"strings"
	"unicode/utf8"
)

// Chunking defaults. Sizes are in runes, not bytes, so multibyte text
// splits at character boundaries.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 100
)

// defaultSeparators are tried in order: paragraph breaks first, then
// lines, then words, then a hard character cut.
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter implements recursive character splitting: text is divided on
// the coarsest separator that keeps pieces within the chunk size, and
// oversized pieces are re-split on finer separators. Adjacent pieces
// merge back together up to the chunk size, carrying overlap between
// consecutive chunks.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// NewSplitter creates a splitter. Non-positive size uses the default;
// overlap must be smaller than size, otherwise the default ratio applies.
func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 5
	}
	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   defaultSeparators,
	}
}

// Split divides text into chunks of at most chunkSize runes. Whitespace
// around each chunk is trimmed; empty chunks are dropped.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	sep := separators[len(separators)-1]
	var remaining []string
	for i, candidate := range separators {
		if candidate == "" || strings.Contains(text, candidate) {
			sep = candidate
			remaining = separators[i+1:]
			break
		}
	}

	if sep == "" {
		return s.hardSplit(text)
	}

	splits := strings.Split(text, sep)

	var chunks []string
	var fitting []string
	for _, part := range splits {
		if utf8.RuneCountInString(part) <= s.chunkSize {
			fitting = append(fitting, part)
			continue
		}
		if len(fitting) > 0 {
			chunks = append(chunks, s.merge(fitting, sep)...)
			fitting = nil
		}
		chunks = append(chunks, s.split(part, remaining)...)
	}
	if len(fitting) > 0 {
		chunks = append(chunks, s.merge(fitting, sep)...)
	}
	return chunks
}

// merge joins consecutive splits into chunks up to chunkSize runes,
// retaining chunkOverlap runes of trailing context in the next chunk.
func (s *Splitter) merge(splits []string, sep string) []string {
	sepLen := utf8.RuneCountInString(sep)

	var chunks []string
	var current []string
	total := 0

	appendChunk := func() {
		joined := strings.TrimSpace(strings.Join(current, sep))
		if joined != "" {
			chunks = append(chunks, joined)
		}
	}

	for _, part := range splits {
		partLen := utf8.RuneCountInString(part)

		if len(current) > 0 && total+sepLen+partLen > s.chunkSize {
			appendChunk()
			// Drop leading splits until what remains fits as overlap
			for total > s.chunkOverlap || (total+sepLen+partLen > s.chunkSize && total > 0) {
				total -= utf8.RuneCountInString(current[0])
				if len(current) > 1 {
					total -= sepLen
				}
				current = current[1:]
			}
		}

		if len(current) > 0 {
			total += sepLen
		}
		current = append(current, part)
		total += partLen
	}

	if len(current) > 0 {
		appendChunk()
	}
	return chunks
}

// hardSplit cuts text into fixed windows when no separator is left. The
// stride leaves chunkOverlap runes shared between neighbors.
func (s *Splitter) hardSplit(text string) []string {
	runes := []rune(text)
	stride := s.chunkSize - s.chunkOverlap
	if stride <= 0 {
		stride = s.chunkSize
	}

	var chunks []string
	for start := 0; start < len(runes); start += stride {
		end := start + s.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}
