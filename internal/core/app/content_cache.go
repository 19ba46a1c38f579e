package app

import (
	"errors"
	"os"

	domainerrors "wrapgen/internal/core/errors"
	"wrapgen/internal/engine/parser"
)

func (a *App) contentForPath(path string) ([]byte, bool) {
	a.fileContentMu.RLock()
	defer a.fileContentMu.RUnlock()
	content, ok := a.fileContents[path]
	return content, ok
}

func (a *App) cacheContent(path string, content []byte) {
	a.fileContentMu.Lock()
	defer a.fileContentMu.Unlock()
	a.fileContents[path] = content
}

func (a *App) dropContent(path string) {
	a.fileContentMu.Lock()
	defer a.fileContentMu.Unlock()
	delete(a.fileContents, path)
}

// readSources loads interface files through the content cache. Cached
// slices are never mutated.
func (a *App) readSources(paths []string) ([]parser.Source, error) {
	sources := make([]parser.Source, 0, len(paths))
	for _, path := range paths {
		content, ok := a.contentForPath(path)
		if !ok {
			data, err := os.ReadFile(path)
			if err != nil {
				code := domainerrors.CodeInternal
				if errors.Is(err, os.ErrNotExist) {
					code = domainerrors.CodeNotFound
				}
				return nil, domainerrors.AddContext(
					domainerrors.Wrap(err, code, "read interface file"), domainerrors.CtxPath, path)
			}
			a.cacheContent(path, data)
			content = data
		}
		sources = append(sources, parser.Source{Path: path, Content: string(content)})
	}
	return sources, nil
}
