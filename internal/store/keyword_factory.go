package store

import (
	"fmt"
	"path/filepath"
	"strings"
)

// NewKeywordIndex creates the configured keyword backend rooted in dataDir.
// An empty dataDir yields an in-memory index.
func NewKeywordIndex(backend, dataDir string) (KeywordIndex, error) {
	switch strings.ToLower(backend) {
	case "", "sqlite":
		path := ""
		if dataDir != "" {
			path = filepath.Join(dataDir, "keyword.db")
		}
		return NewSQLiteKeywordIndex(path)
	case "bleve":
		path := ""
		if dataDir != "" {
			path = filepath.Join(dataDir, "keyword.bleve")
		}
		return NewBleveKeywordIndex(path)
	default:
		return nil, fmt.Errorf("unknown keyword backend: %s", backend)
	}
}
