package config

import (
	"path/filepath"
	"strings"
)

// ResolvePaths makes every path in cfg absolute against base, normally the
// directory holding the config file. Submodule outputs resolve against
// output.dir when it is set.
func ResolvePaths(cfg *Config, base string) {
	if abs, err := filepath.Abs(base); err == nil {
		base = abs
	}
	resolveOptional(&cfg.Module.Template, base)
	resolveOptional(&cfg.Docs.XMLSource, base)
	resolveOptional(&cfg.Output.Path, base)
	resolveOptional(&cfg.Output.Dir, base)
	resolveOptional(&cfg.Output.SARIF, base)
	resolveOptional(&cfg.Observability.MetricsFile, base)
	resolveOptional(&cfg.History.Path, base)
	resolveAll(cfg.Input.Sources, base)

	outBase := base
	if cfg.Output.Dir != "" {
		outBase = cfg.Output.Dir
	}
	for i := range cfg.Submodules {
		sub := &cfg.Submodules[i]
		resolveAll(sub.Sources, base)
		resolveOptional(&sub.Out, outBase)
	}
}

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}

func resolveOptional(target *string, base string) {
	if strings.TrimSpace(*target) != "" {
		*target = ResolveRelative(base, *target)
	}
}

func resolveAll(values []string, base string) {
	for i, v := range values {
		values[i] = ResolveRelative(base, v)
	}
}
