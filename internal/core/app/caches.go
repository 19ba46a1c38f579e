package app

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"wrapgen/internal/core/ports"
	"wrapgen/internal/engine/docs"
)

// docsCache loads each Doxygen directory once. Submodules generated in the
// same run usually share one XML tree.
type docsCache struct {
	mu      sync.Mutex
	entries map[string]*docs.Index
}

func newDocsCache() *docsCache {
	return &docsCache{entries: make(map[string]*docs.Index)}
}

func (c *docsCache) Docs(dir string) (ports.DocsSource, error) {
	dir = filepath.Clean(dir)
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx, ok := c.entries[dir]; ok {
		return idx, nil
	}
	idx, err := docs.Load(dir)
	if err != nil {
		return nil, err
	}
	c.entries[dir] = idx
	slog.Debug("loaded documentation", "source", idx.String(), "symbols", idx.Len())
	return idx, nil
}

// invalidate drops every index whose tree contains one of paths.
func (c *docsCache) invalidate(paths []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for dir := range c.entries {
		for _, p := range paths {
			if p == dir || strings.HasPrefix(p, dir+string(filepath.Separator)) {
				delete(c.entries, dir)
				break
			}
		}
	}
}

// invalidateCaches forgets cached state derived from paths.
func (a *App) invalidateCaches(paths []string) {
	for _, p := range paths {
		a.dropContent(p)
	}
	if c, ok := a.docs.(*docsCache); ok {
		c.invalidate(paths)
	}
}
