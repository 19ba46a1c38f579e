package parser

import "strings"

// Separator joins namespace path segments in qualified names.
const Separator = "::"

type Location struct {
	File string
	Line int
}

type Visibility int

const (
	Public Visibility = iota
	Protected
	Private
)

func (v Visibility) String() string {
	switch v {
	case Protected:
		return "protected"
	case Private:
		return "private"
	}
	return "public"
}

// Source is one interface-description text and the name it is reported under.
type Source struct {
	Path    string
	Content string
}

// File is the merged AST of every parsed source. Namespaces reopened in
// several files share one node.
type File struct {
	Sources  []string
	Includes []Include
	Root     *Namespace
}

type Include struct {
	Path     string // spelled with its delimiters: <a/b.h> or "a/b.h"
	Location Location
}

type Namespace struct {
	Name         string
	Path         []string // full path including Name; empty for the global namespace
	Doc          string
	Namespaces   []*Namespace
	Classes      []*Class
	Functions    []*Function
	Enums        []*Enum
	Typedefs     []*Typedef
	ForwardDecls []*ForwardDecl
	Location     Location
}

func (n *Namespace) QualifiedName() string { return strings.Join(n.Path, Separator) }

// Child returns the direct sub-namespace called name, or nil.
func (n *Namespace) Child(name string) *Namespace {
	for _, c := range n.Namespaces {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Lookup walks path from n.
func (n *Namespace) Lookup(path []string) *Namespace {
	cur := n
	for _, seg := range path {
		cur = cur.Child(seg)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// TemplateParam is one parameter of a template<...> clause. Instantiations
// holds the explicit {A, B} list, which may be empty.
type TemplateParam struct {
	Name           string
	Instantiations []*Type
}

type Template struct {
	Params []TemplateParam
}

// Type is a spelled C++ type reference. Resolved is filled by the resolver
// with the qualified name of the declaration it names; Opaque marks names
// that resolve to nothing in the parsed sources.
type Type struct {
	Namespaces   []string
	Name         string
	TemplateArgs []*Type
	IsConst      bool
	IsRef        bool
	IsPtr        bool // '*': shared pointer
	IsRawPtr     bool // '@': raw pointer
	IsBasic      bool

	Resolved string
	Opaque   bool
}

// QualifiedName is the type name without cv/ref/pointer decoration.
func (t *Type) QualifiedName() string {
	var b strings.Builder
	for _, ns := range t.Namespaces {
		b.WriteString(ns)
		b.WriteString(Separator)
	}
	if t.IsBasic && t.Name == "string" {
		b.WriteString("std::string")
	} else {
		b.WriteString(t.Name)
	}
	if len(t.TemplateArgs) > 0 {
		b.WriteByte('<')
		for i, a := range t.TemplateArgs {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(a.String())
		}
		b.WriteByte('>')
	}
	return b.String()
}

// String renders the type in C++ syntax; '*' becomes std::shared_ptr.
func (t *Type) String() string {
	name := t.QualifiedName()
	switch {
	case t.IsPtr:
		name = "std::shared_ptr<" + name + ">"
	case t.IsRawPtr:
		name += "*"
	}
	if t.IsConst {
		name = "const " + name
	}
	if t.IsRef {
		name += "&"
	}
	return name
}

func (t *Type) IsVoid() bool {
	return t != nil && t.Name == "void" && len(t.Namespaces) == 0 && !t.IsPtr && !t.IsRawPtr
}

type Argument struct {
	Type    *Type
	Name    string
	Default string
}

type Method struct {
	Name       string
	Args       []Argument
	Return     *Type
	IsStatic   bool
	IsConst    bool
	IsVirtual  bool
	IsOperator bool
	Operator   string
	Template   *Template
	Visibility Visibility
	Doc        string
	Location   Location

	// Set on template instances: the member template name and its arguments.
	TemplateName string
	TemplateArgs []*Type
}

// CppName is the member name to call from C++, with template arguments.
func (m *Method) CppName() string {
	if m.TemplateName == "" {
		return m.Name
	}
	return instanceSpelling(m.TemplateName, m.TemplateArgs)
}

type Constructor struct {
	Args       []Argument
	Template   *Template
	Visibility Visibility
	Doc        string
	Location   Location
}

type Property struct {
	Type       *Type
	Name       string
	Default    string
	IsStatic   bool
	Visibility Visibility
	Doc        string
	Location   Location
}

type EnumValue struct {
	Name  string
	Value string
	Doc   string
}

type Enum struct {
	Name       string
	IsClass    bool
	Values     []EnumValue
	Visibility Visibility
	Doc        string
	Location   Location
}

// Class keeps members in declaration order per kind. Template instances
// produced by the resolver carry the qualified template name and arguments.
type Class struct {
	Name         string
	Namespace    []string
	Bases        []*Type
	IsVirtual    bool
	Template     *Template
	Constructors []*Constructor
	Methods      []*Method
	Properties   []*Property
	Enums        []*Enum
	Doc          string
	Location     Location

	TemplateName string
	TemplateArgs []*Type
}

func (c *Class) QualifiedName() string {
	return strings.Join(append(append([]string{}, c.Namespace...), c.Name), Separator)
}

// CppType is the C++ spelling of the class, including template arguments
// for instantiations.
func (c *Class) CppType() string {
	if c.TemplateName == "" {
		return c.QualifiedName()
	}
	return instanceSpelling(c.TemplateName, c.TemplateArgs)
}

func instanceSpelling(name string, args []*Type) string {
	segs := SplitQualified(name)
	t := &Type{Namespaces: segs[:len(segs)-1], Name: segs[len(segs)-1], TemplateArgs: args}
	return t.QualifiedName()
}

type Function struct {
	Name      string
	Namespace []string
	Args      []Argument
	Return    *Type
	Template  *Template
	Doc       string
	Location  Location

	TemplateName string
	TemplateArgs []*Type
}

func (f *Function) QualifiedName() string {
	return strings.Join(append(append([]string{}, f.Namespace...), f.Name), Separator)
}

// CppName is the qualified C++ callee, with template arguments for instances.
func (f *Function) CppName() string {
	if f.TemplateName == "" {
		return f.QualifiedName()
	}
	return instanceSpelling(f.TemplateName, f.TemplateArgs)
}

type Typedef struct {
	Name      string
	Namespace []string
	Type      *Type
	Doc       string
	Location  Location
}

func (t *Typedef) QualifiedName() string {
	return strings.Join(append(append([]string{}, t.Namespace...), t.Name), Separator)
}

type ForwardDecl struct {
	Name      string
	Namespace []string
	IsVirtual bool
	Location  Location
}

func (f *ForwardDecl) QualifiedName() string {
	return strings.Join(append(append([]string{}, f.Namespace...), f.Name), Separator)
}

// SplitQualified splits "a::b::C" into its segments, dropping a leading "::".
func SplitQualified(name string) []string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, Separator)
	if name == "" {
		return nil
	}
	parts := strings.Split(name, Separator)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
