package output

import (
	"log/slog"
	"path/filepath"
	"strings"

	domainerrors "wrapgen/internal/core/errors"
	"wrapgen/internal/shared/util"
)

type WriteResult struct {
	Path    string
	Written bool
}

// ArtifactPath places submodule artifacts next to out, named after it:
// out/m.cpp with suffix "geometry" becomes out/m_geometry.cpp.
func ArtifactPath(out string, a Artifact) string {
	if a.Suffix == "" {
		return out
	}
	ext := filepath.Ext(out)
	return strings.TrimSuffix(out, ext) + "_" + a.Suffix + ext
}

// WriteArtifacts writes every artifact atomically. With onlyIfChanged, files
// that already hold the rendered bytes are left alone so their mtime and
// downstream build caches survive.
func WriteArtifacts(out string, artifacts []Artifact, onlyIfChanged bool) ([]WriteResult, error) {
	results := make([]WriteResult, 0, len(artifacts))
	for _, a := range artifacts {
		path := ArtifactPath(out, a)
		if onlyIfChanged && util.FileHasContent(path, a.Content) {
			slog.Debug("output unchanged", "path", path, "module", a.Module)
			results = append(results, WriteResult{Path: path})
			continue
		}
		if err := util.WriteFileAtomic(path, a.Content, 0o644); err != nil {
			return results, domainerrors.WithStage(domainerrors.AddContext(
				domainerrors.Wrap(err, domainerrors.CodeEmit, "write artifact"),
				domainerrors.CtxPath, path), domainerrors.StageEmit)
		}
		slog.Debug("wrote output", "path", path, "module", a.Module, "bytes", len(a.Content))
		results = append(results, WriteResult{Path: path, Written: true})
	}
	return results, nil
}
