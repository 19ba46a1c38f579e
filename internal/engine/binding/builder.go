package binding

import (
	"fmt"
	"log/slog"
	"strings"

	domainerrors "wrapgen/internal/core/errors"
	"wrapgen/internal/engine/parser"
	"wrapgen/internal/engine/resolver"
)

type Options struct {
	// ModuleName names the root module; child modules take their namespace
	// leaf.
	ModuleName string
	// Serialization keeps serialize/pickle support on classes that declare
	// a serialization marker.
	Serialization bool
}

// serializationMarkers are interface-only methods that request pickle
// support. They are never bound as ordinary methods.
var serializationMarkers = map[string]bool{
	"serialize":    true,
	"serializable": true,
	"pickle":       true,
}

// binaryOperators maps C++ operators to host protocol methods.
var binaryOperators = map[string]string{
	"+":  "__add__",
	"-":  "__sub__",
	"*":  "__mul__",
	"/":  "__truediv__",
	"%":  "__mod__",
	"+=": "__iadd__",
	"-=": "__isub__",
	"*=": "__imul__",
	"/=": "__itruediv__",
	"==": "__eq__",
	"!=": "__ne__",
	"<":  "__lt__",
	">":  "__gt__",
	"<=": "__le__",
	">=": "__ge__",
	"[]": "__getitem__",
	"()": "__call__",
}

var unaryOperators = map[string]string{
	"-": "__neg__",
	"+": "__pos__",
	"!": "__invert__",
	"~": "__invert__",
}

var hostKeywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true, "class": true,
	"continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true,
	"if": true, "import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true,
	"print": true,
}

// HostName returns name as it may be exposed to the host language.
func HostName(name string) string {
	if hostKeywords[name] {
		return name + "_"
	}
	return name
}

type builder struct {
	opts    Options
	classes map[string]parser.Location
}

// Build turns a resolved subtree into a ModuleTree. The tree is not touched
// again after Build returns.
func Build(res *resolver.Result, opts Options) (*ModuleTree, error) {
	if strings.TrimSpace(opts.ModuleName) == "" {
		return nil, domainerrors.WithStage(
			domainerrors.New(domainerrors.CodeValidationError, "module name is required"),
			domainerrors.StageBuild)
	}
	b := &builder{opts: opts, classes: make(map[string]parser.Location)}
	root, err := b.module(res.Root, opts.ModuleName)
	if err != nil {
		return nil, err
	}

	tree := &ModuleTree{
		Name:          opts.ModuleName,
		Namespace:     append([]string(nil), res.Root.Path...),
		Serialization: opts.Serialization,
		Opaque:        append([]string(nil), res.Opaque...),
		Root:          root,
	}
	seen := make(map[string]bool)
	for _, inc := range res.Includes {
		if !seen[inc.Path] {
			seen[inc.Path] = true
			tree.Includes = append(tree.Includes, inc.Path)
		}
	}
	stats := tree.Stats()
	slog.Debug("built binding model",
		"module", tree.Name,
		"modules", stats.Modules,
		"classes", stats.Classes,
		"methods", stats.Methods,
		"functions", stats.Functions)
	return tree, nil
}

func (b *builder) module(ns *parser.Namespace, name string) (*Module, error) {
	m := &Module{
		Name: name,
		Path: append([]string(nil), ns.Path...),
		Doc:  ns.Doc,
	}

	bound := make(map[string]string)
	for _, c := range ns.Classes {
		cb, err := b.class(c)
		if err != nil {
			return nil, err
		}
		m.Classes = append(m.Classes, cb)
		bound[c.QualifiedName()] = cb.Name
		bound[cb.CppType] = cb.Name
	}

	m.Functions = b.functions(ns.Functions)

	for _, e := range ns.Enums {
		m.Enums = append(m.Enums, enumBinding(e, ns.Path))
	}

	for _, td := range ns.Typedefs {
		target := td.Type.Resolved
		if target == "" {
			target = td.Type.QualifiedName()
		}
		hostName, ok := bound[target]
		if !ok {
			slog.Debug("typedef does not name a class bound in this module", "typedef", td.QualifiedName(), "target", target)
			continue
		}
		m.Aliases = append(m.Aliases, &Alias{
			Name:          td.Name,
			QualifiedName: td.QualifiedName(),
			Target:        hostName,
		})
	}

	for _, child := range ns.Namespaces {
		sub, err := b.module(child, child.Name)
		if err != nil {
			return nil, err
		}
		m.Submodules = append(m.Submodules, sub)
	}
	return m, nil
}

func (b *builder) class(c *parser.Class) (*ClassBinding, error) {
	qn := c.QualifiedName()
	if prev, dup := b.classes[qn]; dup {
		e := domainerrors.NewBuildError(qn, fmt.Sprintf("class %s is declared more than once", qn))
		e.WithContext(domainerrors.CtxFile, c.Location.File)
		e.WithContext(domainerrors.CtxLine, c.Location.Line)
		e.WithContext(domainerrors.CtxHint, fmt.Sprintf("first declared at %s:%d", prev.File, prev.Line))
		return nil, e
	}
	b.classes[qn] = c.Location

	cb := &ClassBinding{
		Name:               c.Name,
		QualifiedName:      qn,
		CppType:            c.CppType(),
		IsVirtual:          c.IsVirtual,
		DefaultConstructor: -1,
		Doc:                c.Doc,
		Location:           c.Location,
	}
	for _, base := range c.Bases {
		cb.Bases = append(cb.Bases, base.QualifiedName())
	}

	for _, ctor := range c.Constructors {
		if ctor.Visibility != parser.Public {
			continue
		}
		mb := &MethodBinding{
			Name:          "__init__",
			CppName:       cb.CppType,
			QualifiedName: qn + parser.Separator + c.Name,
			Params:        params(ctor.Args),
			OverloadIndex: len(cb.Constructors),
			Doc:           ctor.Doc,
			Location:      ctor.Location,
		}
		if len(cb.Constructors) == 0 && mb.RequiredParams() == 0 {
			cb.DefaultConstructor = 0
		}
		cb.Constructors = append(cb.Constructors, mb)
	}

	methods, statics := newGrouper(), newGrouper()
	hasMarker := false
	for _, m := range c.Methods {
		if m.Visibility != parser.Public {
			continue
		}
		if !m.IsOperator && !m.IsStatic && len(m.Args) == 0 && serializationMarkers[m.Name] {
			hasMarker = true
			continue
		}
		mb := methodBinding(m, qn)
		if m.IsOperator {
			host, err := hostOperator(m)
			if err != nil {
				e := domainerrors.NewBuildError(mb.QualifiedName, err.Error())
				e.WithContext(domainerrors.CtxFile, m.Location.File)
				e.WithContext(domainerrors.CtxLine, m.Location.Line)
				return nil, e
			}
			mb.HostOperator = host
			mb.Name = host
			mb.OverloadIndex = countOperator(cb.Operators, host)
			cb.Operators = append(cb.Operators, mb)
			continue
		}
		if m.IsStatic {
			statics.add(mb)
		} else {
			methods.add(mb)
		}
	}
	cb.Methods = methods.groups
	cb.StaticMethods = statics.groups
	cb.Serializable = hasMarker && b.opts.Serialization

	for _, p := range c.Properties {
		if p.Visibility != parser.Public {
			continue
		}
		cb.Properties = append(cb.Properties, &PropertyBinding{
			Name:          HostName(p.Name),
			QualifiedName: qn + parser.Separator + p.Name,
			Type:          p.Type.String(),
			Static:        p.IsStatic,
			Doc:           p.Doc,
		})
	}
	for _, e := range c.Enums {
		if e.Visibility != parser.Public {
			continue
		}
		cb.Enums = append(cb.Enums, enumBinding(e, parser.SplitQualified(cb.CppType)))
	}
	return cb, nil
}

func (b *builder) functions(fns []*parser.Function) []*OverloadGroup {
	g := newGrouper()
	for _, fn := range fns {
		mb := &MethodBinding{
			Name:          HostName(fn.Name),
			CppName:       fn.CppName(),
			QualifiedName: fn.QualifiedName(),
			Params:        params(fn.Args),
			Return:        fn.Return.String(),
			ReturnsVoid:   fn.Return.IsVoid(),
			Flags:         FlagStatic,
			Doc:           fn.Doc,
			Location:      fn.Location,
		}
		g.add(mb)
	}
	return g.groups
}

func methodBinding(m *parser.Method, owner string) *MethodBinding {
	mb := &MethodBinding{
		Name:          HostName(m.Name),
		CppName:       m.CppName(),
		QualifiedName: owner + parser.Separator + m.Name,
		Params:        params(m.Args),
		Return:        m.Return.String(),
		ReturnsVoid:   m.Return.IsVoid(),
		Operator:      m.Operator,
		Doc:           m.Doc,
		Location:      m.Location,
	}
	if m.IsStatic {
		mb.Flags |= FlagStatic
	}
	if m.IsConst {
		mb.Flags |= FlagConst
	}
	if m.IsVirtual {
		mb.Flags |= FlagVirtual
	}
	if m.IsOperator {
		mb.Flags |= FlagOperator
	}
	return mb
}

func hostOperator(m *parser.Method) (string, error) {
	if len(m.Args) == 0 {
		if host, ok := unaryOperators[m.Operator]; ok {
			return host, nil
		}
		if m.Operator == "()" {
			return binaryOperators["()"], nil
		}
		return "", fmt.Errorf("unsupported unary operator%s", m.Operator)
	}
	if host, ok := binaryOperators[m.Operator]; ok {
		return host, nil
	}
	return "", fmt.Errorf("unsupported operator%s", m.Operator)
}

func countOperator(ops []*MethodBinding, host string) int {
	n := 0
	for _, op := range ops {
		if op.HostOperator == host {
			n++
		}
	}
	return n
}

// params names unnamed arguments argN so keyword passing stays possible.
func params(args []parser.Argument) []Param {
	out := make([]Param, len(args))
	for i, a := range args {
		name := a.Name
		if name == "" {
			name = fmt.Sprintf("arg%d", i)
		}
		out[i] = Param{
			Name:    name,
			Type:    a.Type.String(),
			Default: a.Default,
			Opaque:  a.Type.Opaque,
		}
	}
	return out
}

func enumBinding(e *parser.Enum, owner []string) *EnumBinding {
	qn := strings.Join(append(append([]string{}, owner...), e.Name), parser.Separator)
	eb := &EnumBinding{
		Name:          e.Name,
		QualifiedName: qn,
		CppType:       qn,
		IsClass:       e.IsClass,
		Doc:           e.Doc,
	}
	for _, v := range e.Values {
		eb.Values = append(eb.Values, EnumValueBinding{
			Name:    HostName(v.Name),
			CppName: qn + parser.Separator + v.Name,
			Doc:     v.Doc,
		})
	}
	return eb
}

// grouper collects overload groups keyed by host name, ordered by the first
// declaration of each name.
type grouper struct {
	index  map[string]*OverloadGroup
	groups []*OverloadGroup
}

func newGrouper() *grouper {
	return &grouper{index: make(map[string]*OverloadGroup)}
}

func (g *grouper) add(mb *MethodBinding) {
	group, ok := g.index[mb.Name]
	if !ok {
		group = &OverloadGroup{Name: mb.Name}
		g.index[mb.Name] = group
		g.groups = append(g.groups, group)
	}
	mb.OverloadIndex = len(group.Overloads)
	group.Overloads = append(group.Overloads, mb)
}
