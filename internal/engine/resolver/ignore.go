package resolver

import (
	"fmt"
	"strings"

	"wrapgen/internal/engine/parser"

	"github.com/gobwas/glob"
)

// IgnoreMatcher decides whether a fully-qualified declaration name is on the
// ignore list. Entries are exact names (a::b::Foo) or glob patterns
// (a::b::*Factor).
type IgnoreMatcher struct {
	exact map[string]bool
	globs []glob.Glob
}

func NewIgnoreMatcher(patterns []string) (*IgnoreMatcher, error) {
	m := &IgnoreMatcher{exact: make(map[string]bool, len(patterns))}
	for _, raw := range patterns {
		name := normalizeName(raw)
		if name == "" {
			continue
		}
		if !strings.ContainsAny(name, "*?[{") {
			m.exact[name] = true
			continue
		}
		g, err := glob.Compile(name)
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", raw, err)
		}
		m.globs = append(m.globs, g)
	}
	return m, nil
}

func (m *IgnoreMatcher) Match(name string) bool {
	if m == nil {
		return false
	}
	name = normalizeName(name)
	if m.exact[name] {
		return true
	}
	for _, g := range m.globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

func (m *IgnoreMatcher) Empty() bool {
	return m == nil || (len(m.exact) == 0 && len(m.globs) == 0)
}

func normalizeName(name string) string {
	return strings.Join(parser.SplitQualified(name), parser.Separator)
}
