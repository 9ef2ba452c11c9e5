package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// keywordBackends lets every test run against both implementations.
func keywordBackends(t *testing.T) map[string]KeywordIndex {
	t.Helper()

	sqlite, err := NewSQLiteKeywordIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	bleve, err := NewBleveKeywordIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bleve.Close() })

	return map[string]KeywordIndex{"sqlite": sqlite, "bleve": bleve}
}

func testChunk(id, sessionID, content string) *Chunk {
	return &Chunk{
		ID:        id,
		SessionID: sessionID,
		Source:    "doc.txt",
		Content:   content,
		CreatedAt: time.Now(),
	}
}

func TestKeywordSearchANDSemantics(t *testing.T) {
	ctx := context.Background()
	for name, idx := range keywordBackends(t) {
		t.Run(name, func(t *testing.T) {
			// Given: chunks where only one contains both query terms
			require.NoError(t, idx.Index(ctx, []*Chunk{
				testChunk("c1", "s1", "the quick brown fox jumps"),
				testChunk("c2", "s1", "the quick red panda sleeps"),
				testChunk("c3", "s1", "a slow brown bear walks"),
			}))

			// When: searching for two terms
			results, err := idx.Search(ctx, "s1", "quick brown", 10)
			require.NoError(t, err)

			// Then: only the chunk containing both matches
			require.Len(t, results, 1)
			assert.Equal(t, "c1", results[0].ChunkID)
		})
	}
}

func TestKeywordSearchSessionIsolation(t *testing.T) {
	ctx := context.Background()
	for name, idx := range keywordBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, idx.Index(ctx, []*Chunk{
				testChunk("c1", "s1", "contract renewal terms"),
				testChunk("c2", "s2", "contract renewal terms"),
			}))

			results, err := idx.Search(ctx, "s1", "contract", 10)
			require.NoError(t, err)

			require.Len(t, results, 1)
			assert.Equal(t, "c1", results[0].ChunkID)
		})
	}
}

func TestKeywordSearchEmptyQuery(t *testing.T) {
	ctx := context.Background()
	for name, idx := range keywordBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, idx.Index(ctx, []*Chunk{
				testChunk("c1", "s1", "some content"),
			}))

			results, err := idx.Search(ctx, "s1", "   ", 10)
			require.NoError(t, err)
			assert.Empty(t, results)
		})
	}
}

func TestKeywordSearchNoMatches(t *testing.T) {
	ctx := context.Background()
	for name, idx := range keywordBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, idx.Index(ctx, []*Chunk{
				testChunk("c1", "s1", "alpha beta gamma"),
			}))

			results, err := idx.Search(ctx, "s1", "zeppelin", 10)
			require.NoError(t, err)
			assert.Empty(t, results)
		})
	}
}

func TestKeywordSearchSpecialCharactersDoNotError(t *testing.T) {
	ctx := context.Background()
	for name, idx := range keywordBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, idx.Index(ctx, []*Chunk{
				testChunk("c1", "s1", "payment schedule details"),
			}))

			// Quotes and operators must not break the query
			results, err := idx.Search(ctx, "s1", `payment "AND* (schedule`, 10)
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, "c1", results[0].ChunkID)
		})
	}
}

func TestKeywordSearchStopWordsNotRequired(t *testing.T) {
	ctx := context.Background()
	for name, idx := range keywordBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, idx.Index(ctx, []*Chunk{
				testChunk("c1", "s1", "payment schedule details"),
			}))

			// Stop words in the query must not become mandatory
			// conjuncts; both backends agree on the surviving terms.
			results, err := idx.Search(ctx, "s1", "what is the payment schedule", 10)
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, "c1", results[0].ChunkID)
		})
	}
}

func TestKeywordReindexReplacesContent(t *testing.T) {
	ctx := context.Background()
	for name, idx := range keywordBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, idx.Index(ctx, []*Chunk{
				testChunk("c1", "s1", "original wording"),
			}))
			require.NoError(t, idx.Index(ctx, []*Chunk{
				testChunk("c1", "s1", "replacement text"),
			}))

			old, err := idx.Search(ctx, "s1", "original", 10)
			require.NoError(t, err)
			assert.Empty(t, old)

			updated, err := idx.Search(ctx, "s1", "replacement", 10)
			require.NoError(t, err)
			require.Len(t, updated, 1)
		})
	}
}

func TestKeywordDeleteSession(t *testing.T) {
	ctx := context.Background()
	for name, idx := range keywordBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, idx.Index(ctx, []*Chunk{
				testChunk("c1", "s1", "session one content"),
				testChunk("c2", "s2", "session two content"),
			}))

			require.NoError(t, idx.DeleteSession(ctx, "s1"))

			gone, err := idx.Search(ctx, "s1", "content", 10)
			require.NoError(t, err)
			assert.Empty(t, gone)

			kept, err := idx.Search(ctx, "s2", "content", 10)
			require.NoError(t, err)
			require.Len(t, kept, 1)
		})
	}
}

func TestKeywordDeleteByID(t *testing.T) {
	ctx := context.Background()
	for name, idx := range keywordBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, idx.Index(ctx, []*Chunk{
				testChunk("c1", "s1", "keep this one"),
				testChunk("c2", "s1", "remove this one"),
			}))

			require.NoError(t, idx.Delete(ctx, []string{"c2"}))

			results, err := idx.Search(ctx, "s1", "one", 10)
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, "c1", results[0].ChunkID)
		})
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"Hello, World!", []string{"hello", "world"}},
		{"  spaced   text  ", []string{"spaced", "text"}},
		{"", nil},
		{"!!!", nil},
		{"kontrak-2024 pasal 5", []string{"kontrak", "2024", "pasal", "5"}},
		// Stop words vanish whether typed or produced by stripping
		// operator syntax, so they never become required terms.
		{"the quick AND the dead", []string{"quick", "dead"}},
		{`payment "AND* (schedule`, []string{"payment", "schedule"}},
		{"the of and to", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Tokenize(tt.input), "input: %q", tt.input)
	}
}
