package output

import (
	"fmt"
	"log/slog"
	"strings"

	domainerrors "wrapgen/internal/core/errors"
	"wrapgen/internal/engine/binding"
	"wrapgen/internal/engine/docs"
)

// The view types below are what the fragments in templates/bindings.tmpl
// see. Everything a fragment prints is spelled out here so templates stay
// free of C++ logic.

type sectionView struct {
	IsRoot    bool
	Var       string
	ParentVar string
	Name      string
	Doc       string
	Enums     []enumView
	Classes   []classView
	Functions []methodView
	Aliases   []aliasView
}

type classView struct {
	Scope        string
	Name         string
	CppType      string
	ClassArgs    string
	Doc          string
	Constructors []methodView
	Methods      []methodView
	Operators    []methodView
	Properties   []propertyView
	Enums        []enumView
	Serializable bool
	Pickle       bool
}

type methodView struct {
	Indent        string
	Scope         string
	Def           string
	Name          string
	Signature     string
	Call          string
	Returns       bool
	ParamTypes    string
	Args          string
	Doc           string
	OverloadIndex int
}

type propertyView struct {
	Name   string
	Member string
	Static bool
}

type enumView struct {
	Indent  string
	Scope   string
	Name    string
	CppType string
	Doc     string
	Values  []enumValueView
	Export  bool
}

type enumValueView struct {
	Name    string
	CppName string
	Doc     string
}

type aliasView struct {
	Scope  string
	Name   string
	Target string
}

// renderer holds the per-Render state: documentation warnings are reported
// once per symbol.
type renderer struct {
	tree     *binding.ModuleTree
	docs     docs.Source
	warned   map[string]bool
	warnings []*domainerrors.DomainError
}

func newRenderer(tree *binding.ModuleTree, source docs.Source) *renderer {
	return &renderer{tree: tree, docs: source, warned: make(map[string]bool)}
}

// moduleVar names the C++ variable holding mod. The root is m_; every other
// module is m_ plus its path below the root joined by underscores.
func (r *renderer) moduleVar(mod *binding.Module) string {
	rel := r.relativePath(mod)
	if len(rel) == 0 {
		return "m_"
	}
	return "m_" + strings.Join(rel, "_")
}

func (r *renderer) parentVar(mod *binding.Module) string {
	rel := r.relativePath(mod)
	if len(rel) <= 1 {
		return "m_"
	}
	return "m_" + strings.Join(rel[:len(rel)-1], "_")
}

func (r *renderer) relativePath(mod *binding.Module) []string {
	return mod.Path[len(r.tree.Namespace):]
}

// lookupDoc reads documentation from the external source when one is
// configured; a symbol the source lacks gets an empty string and one warning.
// Inline comments are only used when no source is configured.
func (r *renderer) lookupDoc(symbol, inline string, params ...string) string {
	if r.docs == nil {
		return inline
	}
	if doc, ok := r.docs.Lookup(symbol, params...); ok {
		return doc
	}
	if !r.warned[symbol] {
		r.warned[symbol] = true
		w := domainerrors.NewMissingDocumentationWarning(symbol)
		r.warnings = append(r.warnings, w)
		slog.Warn("missing documentation", "symbol", symbol, "code", w.Code)
	}
	return ""
}

func (r *renderer) section(mod *binding.Module) sectionView {
	v := sectionView{
		IsRoot:    mod == r.tree.Root,
		Var:       r.moduleVar(mod),
		ParentVar: r.parentVar(mod),
		Name:      mod.Name,
	}
	if v.IsRoot {
		v.Doc = "pybind11 wrapper of " + r.tree.Name
	} else {
		v.Doc = r.lookupDoc(mod.QualifiedName(), mod.Doc)
	}
	for _, e := range mod.Enums {
		v.Enums = append(v.Enums, r.enum(e, v.Var, "    "))
	}
	for _, c := range mod.Classes {
		v.Classes = append(v.Classes, r.class(c, v.Var))
	}
	for _, g := range mod.Functions {
		for _, fn := range g.Overloads {
			v.Functions = append(v.Functions, r.function(fn, v.Var))
		}
	}
	for _, a := range mod.Aliases {
		v.Aliases = append(v.Aliases, aliasView{Scope: v.Var, Name: a.Name, Target: a.Target})
	}
	return v
}

func (r *renderer) class(c *binding.ClassBinding, scope string) classView {
	args := append([]string{c.CppType}, c.Bases...)
	args = append(args, "std::shared_ptr<"+c.CppType+">")
	v := classView{
		Scope:        scope,
		Name:         c.Name,
		CppType:      c.CppType,
		ClassArgs:    strings.Join(args, ", "),
		Doc:          r.lookupDoc(c.QualifiedName, c.Doc),
		Serializable: c.Serializable,
		Pickle:       c.Serializable && c.DefaultConstructor >= 0,
	}
	for _, ctor := range c.Constructors {
		types := paramTypes(ctor.Params)
		v.Constructors = append(v.Constructors, methodView{
			ParamTypes:    strings.Join(types, ", "),
			Args:          argList(ctor.Params),
			Doc:           r.lookupDoc(ctor.QualifiedName, ctor.Doc, types...),
			OverloadIndex: ctor.OverloadIndex,
		})
	}
	for _, g := range c.Methods {
		for _, m := range g.Overloads {
			v.Methods = append(v.Methods, r.method(c, m))
		}
	}
	for _, g := range c.StaticMethods {
		for _, m := range g.Overloads {
			v.Methods = append(v.Methods, r.method(c, m))
		}
	}
	for _, op := range c.Operators {
		v.Operators = append(v.Operators, r.method(c, op))
	}
	for _, p := range c.Properties {
		v.Properties = append(v.Properties, propertyView{
			Name:   p.Name,
			Member: c.CppType + "::" + lastSegment(p.QualifiedName),
			Static: p.Static,
		})
	}
	for _, e := range c.Enums {
		v.Enums = append(v.Enums, r.enum(e, "cls", "        "))
	}
	return v
}

func (r *renderer) method(c *binding.ClassBinding, m *binding.MethodBinding) methodView {
	types := paramTypes(m.Params)
	names := paramNames(m.Params)
	v := methodView{
		Indent:        "        ",
		Scope:         "cls",
		Def:           "def",
		Name:          m.Name,
		Returns:       !m.ReturnsVoid,
		Args:          argList(m.Params),
		Doc:           r.lookupDoc(m.QualifiedName, m.Doc, types...),
		OverloadIndex: m.OverloadIndex,
	}
	sig := typedParams(m.Params)
	switch {
	case m.IsStatic():
		v.Def = "def_static"
		v.Signature = strings.Join(sig, ", ")
		v.Call = fmt.Sprintf("%s::%s(%s)", c.CppType, m.CppName, strings.Join(names, ", "))
	case m.Flags.Has(binding.FlagOperator):
		v.Signature = strings.Join(append([]string{selfParam(c, m)}, sig...), ", ")
		v.Call = operatorCall(m, names)
		v.Args += ", py::is_operator()"
	default:
		v.Signature = strings.Join(append([]string{selfParam(c, m)}, sig...), ", ")
		v.Call = fmt.Sprintf("self->%s(%s)", m.CppName, strings.Join(names, ", "))
	}
	return v
}

func (r *renderer) function(fn *binding.MethodBinding, scope string) methodView {
	types := paramTypes(fn.Params)
	return methodView{
		Indent:        "    ",
		Scope:         scope,
		Def:           "def",
		Name:          fn.Name,
		Signature:     strings.Join(typedParams(fn.Params), ", "),
		Call:          fmt.Sprintf("%s(%s)", fn.CppName, strings.Join(paramNames(fn.Params), ", ")),
		Returns:       !fn.ReturnsVoid,
		Args:          argList(fn.Params),
		Doc:           r.lookupDoc(fn.QualifiedName, fn.Doc, types...),
		OverloadIndex: fn.OverloadIndex,
	}
}

func (r *renderer) enum(e *binding.EnumBinding, scope, indent string) enumView {
	v := enumView{
		Indent:  indent,
		Scope:   scope,
		Name:    e.Name,
		CppType: e.CppType,
		Doc:     r.lookupDoc(e.QualifiedName, e.Doc),
		Export:  !e.IsClass,
	}
	for _, val := range e.Values {
		v.Values = append(v.Values, enumValueView{
			Name:    val.Name,
			CppName: val.CppName,
			Doc:     r.lookupDoc(val.CppName, val.Doc),
		})
	}
	return v
}

func selfParam(c *binding.ClassBinding, m *binding.MethodBinding) string {
	if m.IsConst() {
		return "const " + c.CppType + "* self"
	}
	return c.CppType + "* self"
}

func operatorCall(m *binding.MethodBinding, names []string) string {
	switch m.Operator {
	case "[]":
		return fmt.Sprintf("(*self)[%s]", strings.Join(names, ", "))
	case "()":
		return fmt.Sprintf("(*self)(%s)", strings.Join(names, ", "))
	}
	if len(names) == 0 {
		return fmt.Sprintf("%s(*self)", m.Operator)
	}
	return fmt.Sprintf("*self %s %s", m.Operator, names[0])
}

func paramTypes(params []binding.Param) []string {
	out := make([]string, len(params))
	for i, p := range params {
		out[i] = p.Type
	}
	return out
}

func paramNames(params []binding.Param) []string {
	out := make([]string, len(params))
	for i, p := range params {
		out[i] = p.Name
	}
	return out
}

func typedParams(params []binding.Param) []string {
	out := make([]string, len(params))
	for i, p := range params {
		out[i] = p.Type + " " + p.Name
	}
	return out
}

// argList renders the keyword-argument annotations, each with a leading
// comma: `, py::arg("x"), py::arg("y") = 0.0`.
func argList(params []binding.Param) string {
	var b strings.Builder
	for _, p := range params {
		fmt.Fprintf(&b, ", py::arg(%q)", p.Name)
		if p.Default != "" {
			b.WriteString(" = ")
			b.WriteString(p.Default)
		}
	}
	return b.String()
}

func lastSegment(qualified string) string {
	if i := strings.LastIndex(qualified, "::"); i >= 0 {
		return qualified[i+2:]
	}
	return qualified
}

// cppString renders s as a C++ raw string literal, falling back to an
// escaped literal when s contains the raw-string terminator.
func cppString(s string) string {
	if !strings.Contains(s, `)doc"`) {
		return `R"doc(` + s + `)doc"`
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`)
	return `"` + r.Replace(s) + `"`
}
