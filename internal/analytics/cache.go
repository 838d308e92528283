package analytics

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/brand-seo/internal/brand"
)

// KeywordCache maps title-cased brand names to extracted keyword lists. It is
// read before a scoring run and rewritten after it. Safe for concurrent use.
type KeywordCache struct {
	path string

	mu      sync.RWMutex
	entries map[string][]string
}

// LoadKeywordCache reads the cache file at path. A missing or unreadable
// file yields an empty cache; keys are normalised on load.
func LoadKeywordCache(path string) *KeywordCache {
	c := &KeywordCache{path: path, entries: make(map[string][]string)}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			zap.L().Warn("analytics: read keyword cache", zap.String("path", path), zap.Error(err))
		}
		return c
	}

	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		zap.L().Warn("analytics: keyword cache is not valid json, starting empty",
			zap.String("path", path), zap.Error(err))
		return c
	}
	for k, v := range raw {
		c.entries[brand.NormalizeBrand(k)] = v
	}
	return c
}

// Get returns the cached keywords for brandName.
func (c *KeywordCache) Get(brandName string) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[brand.NormalizeBrand(brandName)]
	return v, ok
}

// Set stores keywords for brandName.
func (c *KeywordCache) Set(brandName string, keywords []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if keywords == nil {
		keywords = []string{}
	}
	c.entries[brand.NormalizeBrand(brandName)] = keywords
}

// Brands returns the cached brand names, sorted.
func (c *KeywordCache) Brands() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.entries))
	for k := range c.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Save writes the cache back to its file.
func (c *KeywordCache) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return writeJSON(c.path, c.entries)
}

// writeJSON writes v as indented JSON without HTML escaping, creating parent
// directories as needed.
func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrapf(err, "analytics: encode %s", path)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "analytics: create dir %s", dir)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return eris.Wrapf(err, "analytics: write %s", path)
	}
	return nil
}
