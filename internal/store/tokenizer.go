package store

import (
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
)

// englishStopWords is the same snowball stop set the bleve standard
// analyzer filters with. Both keyword backends must drop the same
// terms: a lowercased operator fragment like "AND" would otherwise
// become a required conjunct under FTS5 implicit AND and silently
// lose matches bleve still returns.
var englishStopWords = func() analysis.TokenMap {
	m := analysis.NewTokenMap()
	_ = m.LoadBytes(en.EnglishStopWords)
	return m
}()

// Tokenize splits text into lowercase word tokens with stop words
// removed. Punctuation and symbols are separators. Used for both
// indexing and query parsing so the two sides agree on term
// boundaries.
func Tokenize(text string) []string {
	var tokens []string
	var sb strings.Builder

	flush := func() {
		if sb.Len() == 0 {
			return
		}
		token := sb.String()
		sb.Reset()
		if englishStopWords[token] {
			return
		}
		tokens = append(tokens, token)
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(unicode.ToLower(r))
		} else {
			flush()
		}
	}
	flush()

	return tokens
}
