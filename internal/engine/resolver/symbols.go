package resolver

import (
	"strings"

	"wrapgen/internal/engine/parser"
)

type SymbolKind int

const (
	SymClass SymbolKind = iota
	SymClassTemplate
	SymForward
	SymEnum
	SymTypedef
	SymNamespace
)

type symbol struct {
	kind    SymbolKind
	ignored bool
	class   *parser.Class // set for SymClassTemplate
}

// symbolTable maps qualified names to declarations across the whole AST.
// Entries refer by name only, so forward-declared and mutually referring
// classes need no ordering.
type symbolTable struct {
	entries map[string]*symbol
}

func newSymbolTable() *symbolTable {
	return &symbolTable{entries: make(map[string]*symbol)}
}

func (s *symbolTable) add(name string, sym *symbol) {
	if existing, ok := s.entries[name]; ok {
		// Definitions win over forward declarations.
		if existing.kind != SymForward || sym.kind == SymForward {
			return
		}
	}
	s.entries[name] = sym
}

func (s *symbolTable) collect(ns *parser.Namespace, ignore *IgnoreMatcher) {
	if len(ns.Path) > 0 {
		s.add(ns.QualifiedName(), &symbol{kind: SymNamespace})
	}
	for _, c := range ns.Classes {
		qn := c.QualifiedName()
		sym := &symbol{kind: SymClass, ignored: ignore.Match(qn)}
		if c.Template != nil {
			sym.kind = SymClassTemplate
			sym.class = c
		}
		s.add(qn, sym)
		for _, e := range c.Enums {
			s.add(qn+parser.Separator+e.Name, &symbol{kind: SymEnum, ignored: sym.ignored})
		}
	}
	for _, e := range ns.Enums {
		qn := join(ns.Path, e.Name)
		s.add(qn, &symbol{kind: SymEnum, ignored: ignore.Match(qn)})
	}
	for _, td := range ns.Typedefs {
		qn := td.QualifiedName()
		s.add(qn, &symbol{kind: SymTypedef, ignored: ignore.Match(qn)})
	}
	for _, fd := range ns.ForwardDecls {
		qn := fd.QualifiedName()
		s.add(qn, &symbol{kind: SymForward, ignored: ignore.Match(qn)})
	}
	for _, child := range ns.Namespaces {
		s.collect(child, ignore)
	}
}

// lookup resolves name as written inside scope, trying the innermost
// enclosing scope first the way C++ unqualified lookup does.
func (s *symbolTable) lookup(scope []string, written []string) (string, *symbol) {
	for i := len(scope); i >= 0; i-- {
		candidate := strings.Join(append(append([]string{}, scope[:i]...), written...), parser.Separator)
		if sym, ok := s.entries[candidate]; ok {
			return candidate, sym
		}
	}
	return "", nil
}

func join(path []string, name string) string {
	return strings.Join(append(append([]string{}, path...), name), parser.Separator)
}
