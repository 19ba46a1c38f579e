package binding

import (
	"strings"

	"wrapgen/internal/engine/parser"
)

// ModuleTree is the binding-oriented view of one resolved namespace subtree.
// It is built once and not modified afterwards.
type ModuleTree struct {
	Name          string
	Namespace     []string
	Includes      []string
	Serialization bool
	Opaque        []string
	Root          *Module
}

// Module mirrors one namespace level; Submodules mirror child namespaces.
type Module struct {
	Name       string
	Path       []string
	Doc        string
	Classes    []*ClassBinding
	Functions  []*OverloadGroup
	Enums      []*EnumBinding
	Aliases    []*Alias
	Submodules []*Module
}

func (m *Module) QualifiedName() string { return strings.Join(m.Path, parser.Separator) }

// Find returns the module at the absolute namespace path, searching m and
// its descendants.
func (m *Module) Find(path []string) *Module {
	if equalPath(m.Path, path) {
		return m
	}
	for _, sub := range m.Submodules {
		if len(sub.Path) <= len(path) && equalPath(sub.Path, path[:len(sub.Path)]) {
			return sub.Find(path)
		}
	}
	return nil
}

// Walk visits m and every descendant depth-first in declaration order.
func (m *Module) Walk(fn func(*Module)) {
	fn(m)
	for _, sub := range m.Submodules {
		sub.Walk(fn)
	}
}

func equalPath(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type ClassBinding struct {
	Name          string
	QualifiedName string
	CppType       string
	// Bases are qualified C++ spellings, never pointers to other bindings.
	Bases        []string
	IsVirtual    bool
	Constructors []*MethodBinding
	// DefaultConstructor is 0 when the first bound constructor can be called
	// without arguments, -1 otherwise.
	DefaultConstructor int
	Methods            []*OverloadGroup
	StaticMethods      []*OverloadGroup
	Operators          []*MethodBinding
	Properties         []*PropertyBinding
	Enums              []*EnumBinding
	Serializable       bool
	Doc                string
	Location           parser.Location
}

// OverloadGroup holds every same-named method in source declaration order.
type OverloadGroup struct {
	Name      string
	Overloads []*MethodBinding
}

type MethodFlags uint8

const (
	FlagStatic MethodFlags = 1 << iota
	FlagConst
	FlagVirtual
	FlagOperator
)

func (f MethodFlags) Has(flag MethodFlags) bool { return f&flag != 0 }

type Param struct {
	Name    string
	Type    string
	Default string
	Opaque  bool
}

type MethodBinding struct {
	// Name is the host-visible name; CppName is what the glue code calls.
	Name          string
	CppName       string
	QualifiedName string
	Params        []Param
	Return        string
	ReturnsVoid   bool
	OverloadIndex int
	Flags         MethodFlags
	Operator      string
	HostOperator  string
	Doc           string
	Location      parser.Location
}

func (m *MethodBinding) IsStatic() bool { return m.Flags.Has(FlagStatic) }
func (m *MethodBinding) IsConst() bool  { return m.Flags.Has(FlagConst) }

// RequiredParams counts leading parameters without defaults.
func (m *MethodBinding) RequiredParams() int {
	n := 0
	for _, p := range m.Params {
		if p.Default != "" {
			break
		}
		n++
	}
	return n
}

type PropertyBinding struct {
	Name          string
	QualifiedName string
	Type          string
	Static        bool
	Doc           string
}

type EnumBinding struct {
	Name          string
	QualifiedName string
	CppType       string
	IsClass       bool
	Values        []EnumValueBinding
	Doc           string
}

type EnumValueBinding struct {
	Name    string
	CppName string
	Doc     string
}

// Alias exposes an extra host name for a class bound in the same module.
type Alias struct {
	Name          string
	QualifiedName string
	Target        string
}

type Stats struct {
	Modules   int
	Classes   int
	Methods   int
	Functions int
	Enums     int
}

func (t *ModuleTree) Stats() Stats {
	var s Stats
	t.Root.Walk(func(m *Module) {
		s.Modules++
		s.Classes += len(m.Classes)
		s.Enums += len(m.Enums)
		for _, g := range m.Functions {
			s.Functions += len(g.Overloads)
		}
		for _, c := range m.Classes {
			s.Enums += len(c.Enums)
			s.Methods += len(c.Constructors) + len(c.Operators)
			for _, g := range c.Methods {
				s.Methods += len(g.Overloads)
			}
			for _, g := range c.StaticMethods {
				s.Methods += len(g.Overloads)
			}
		}
	})
	return s
}
