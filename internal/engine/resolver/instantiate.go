package resolver

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	domainerrors "wrapgen/internal/core/errors"
	"wrapgen/internal/engine/parser"
)

// binding maps template parameter names to concrete argument types.
type binding map[string]*parser.Type

// combinations expands template<T = {A, B}, U = {C}> into every argument
// tuple, first parameter outermost. ok is false when a parameter has no
// explicit instantiation list.
func combinations(tmpl *parser.Template) (tuples [][]*parser.Type, ok bool) {
	tuples = [][]*parser.Type{{}}
	for _, p := range tmpl.Params {
		if len(p.Instantiations) == 0 {
			return nil, false
		}
		next := make([][]*parser.Type, 0, len(tuples)*len(p.Instantiations))
		for _, prefix := range tuples {
			for _, inst := range p.Instantiations {
				tuple := append(append([]*parser.Type{}, prefix...), inst)
				next = append(next, tuple)
			}
		}
		tuples = next
	}
	return tuples, true
}

func bind(tmpl *parser.Template, args []*parser.Type) binding {
	b := make(binding, len(tmpl.Params))
	for i, p := range tmpl.Params {
		b[p.Name] = args[i]
	}
	return b
}

// instanceSuffix builds the host-visible suffix for an argument tuple:
// {gtsam::Point2, double} -> "Point2Double".
func instanceSuffix(args []*parser.Type) string {
	var b strings.Builder
	for _, a := range args {
		b.WriteString(shortName(a))
	}
	return b.String()
}

func shortName(t *parser.Type) string {
	var b strings.Builder
	for _, word := range strings.Fields(t.Name) {
		r := []rune(word)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	for _, a := range t.TemplateArgs {
		b.WriteString(shortName(a))
	}
	return b.String()
}

// substitute returns t with template parameters replaced. Qualifiers written
// at the use site (const T&) are kept on the substituted type.
func substitute(t *parser.Type, b binding) *parser.Type {
	if t == nil {
		return nil
	}
	if len(t.Namespaces) == 0 && len(t.TemplateArgs) == 0 {
		if arg, ok := b[t.Name]; ok {
			out := arg.Clone()
			out.IsConst = out.IsConst || t.IsConst
			out.IsRef = out.IsRef || t.IsRef
			out.IsPtr = out.IsPtr || t.IsPtr
			out.IsRawPtr = out.IsRawPtr || t.IsRawPtr
			return out
		}
	}
	out := t.Clone()
	for i, a := range t.TemplateArgs {
		out.TemplateArgs[i] = substitute(a, b)
	}
	return out
}

func substituteArgs(args []parser.Argument, b binding) []parser.Argument {
	out := make([]parser.Argument, len(args))
	for i, a := range args {
		out[i] = parser.Argument{Type: substitute(a.Type, b), Name: a.Name, Default: a.Default}
	}
	return out
}

// instantiateClass produces one concrete class from template class tc.
// Member templates are expanded afterwards by expandMembers.
func instantiateClass(tc *parser.Class, name string, ns []string, args []*parser.Type) *parser.Class {
	b := bind(tc.Template, args)
	// Inside the template its bare name means the current instance.
	b[tc.Name] = &parser.Type{
		Namespaces:   append([]string(nil), tc.Namespace...),
		Name:         tc.Name,
		TemplateArgs: cloneAll(args),
	}
	out := tc.Clone()
	out.Name = name
	out.Namespace = append([]string(nil), ns...)
	out.Template = nil
	out.TemplateName = tc.QualifiedName()
	out.TemplateArgs = make([]*parser.Type, len(args))
	for i, a := range args {
		out.TemplateArgs[i] = a.Clone()
	}
	for i, base := range out.Bases {
		out.Bases[i] = substitute(base, b)
	}
	for _, ctor := range out.Constructors {
		ctor.Args = substituteArgs(ctor.Args, b)
	}
	for _, m := range out.Methods {
		m.Args = substituteArgs(m.Args, b)
		m.Return = substitute(m.Return, b)
	}
	for _, p := range out.Properties {
		p.Type = substitute(p.Type, b)
	}
	return out
}

// expandMembers instantiates template constructors and methods in place.
func expandMembers(c *parser.Class) {
	var ctors []*parser.Constructor
	for _, ctor := range c.Constructors {
		if ctor.Template == nil {
			ctors = append(ctors, ctor)
			continue
		}
		tuples, ok := combinations(ctor.Template)
		if !ok {
			slog.Debug("skipping constructor template without instantiations", "class", c.QualifiedName())
			continue
		}
		for _, args := range tuples {
			inst := *ctor
			inst.Template = nil
			inst.Args = substituteArgs(ctor.Args, bind(ctor.Template, args))
			ctors = append(ctors, &inst)
		}
	}
	c.Constructors = ctors

	var methods []*parser.Method
	for _, m := range c.Methods {
		if m.Template == nil {
			methods = append(methods, m)
			continue
		}
		tuples, ok := combinations(m.Template)
		if !ok {
			slog.Debug("skipping method template without instantiations", "class", c.QualifiedName(), "method", m.Name)
			continue
		}
		for _, args := range tuples {
			b := bind(m.Template, args)
			inst := m.Clone()
			inst.Template = nil
			inst.Name = m.Name + instanceSuffix(args)
			inst.TemplateName = m.Name
			inst.TemplateArgs = cloneAll(args)
			inst.Args = substituteArgs(m.Args, b)
			inst.Return = substitute(m.Return, b)
			methods = append(methods, inst)
		}
	}
	c.Methods = methods
}

func instantiateFunction(fn *parser.Function, args []*parser.Type) *parser.Function {
	b := bind(fn.Template, args)
	out := fn.Clone()
	out.Template = nil
	out.Name = fn.Name + instanceSuffix(args)
	out.TemplateName = fn.QualifiedName()
	out.TemplateArgs = cloneAll(args)
	out.Args = substituteArgs(fn.Args, b)
	out.Return = substitute(fn.Return, b)
	return out
}

func cloneAll(in []*parser.Type) []*parser.Type {
	out := make([]*parser.Type, len(in))
	for i, t := range in {
		out[i] = t.Clone()
	}
	return out
}

// expandNamespace replaces every template in ns (recursively) with its
// instances, in declaration order. Typedefs naming a class template
// instance become classes carrying the typedef's name.
func (r *resolution) expandNamespace(ns *parser.Namespace) error {
	var classes []*parser.Class
	for _, c := range ns.Classes {
		if c.Template == nil {
			expandMembers(c)
			classes = append(classes, c)
			continue
		}
		tuples, ok := combinations(c.Template)
		if !ok {
			// Only reachable through typedefs.
			continue
		}
		for _, args := range tuples {
			inst := instantiateClass(c, c.Name+instanceSuffix(args), c.Namespace, args)
			expandMembers(inst)
			classes = append(classes, inst)
		}
	}

	var typedefs []*parser.Typedef
	for _, td := range ns.Typedefs {
		if len(td.Type.TemplateArgs) == 0 {
			typedefs = append(typedefs, td)
			continue
		}
		written := append(append([]string{}, td.Type.Namespaces...), td.Type.Name)
		qn, sym := r.symbols.lookup(ns.Path, written)
		if sym == nil || sym.kind != SymClassTemplate {
			typedefs = append(typedefs, td)
			continue
		}
		tc := sym.class
		if len(tc.Template.Params) != len(td.Type.TemplateArgs) {
			e := domainerrors.New(domainerrors.CodeValidationError,
				fmt.Sprintf("typedef %s passes %d template arguments to %s, which takes %d",
					td.Name, len(td.Type.TemplateArgs), qn, len(tc.Template.Params)))
			e = domainerrors.AddContext(e, domainerrors.CtxSymbol, td.QualifiedName())
			e = domainerrors.AddContext(e, domainerrors.CtxFile, td.Location.File)
			e = domainerrors.AddContext(e, domainerrors.CtxLine, td.Location.Line)
			return domainerrors.WithStage(e, domainerrors.StageResolve)
		}
		inst := instantiateClass(tc, td.Name, ns.Path, td.Type.TemplateArgs)
		if td.Doc != "" {
			inst.Doc = td.Doc
		}
		inst.Location = td.Location
		expandMembers(inst)
		classes = append(classes, inst)
	}
	ns.Classes = classes
	ns.Typedefs = typedefs

	var funcs []*parser.Function
	for _, fn := range ns.Functions {
		if fn.Template == nil {
			funcs = append(funcs, fn)
			continue
		}
		tuples, ok := combinations(fn.Template)
		if !ok {
			slog.Debug("skipping function template without instantiations", "function", fn.QualifiedName())
			continue
		}
		for _, args := range tuples {
			funcs = append(funcs, instantiateFunction(fn, args))
		}
	}
	ns.Functions = funcs

	for _, child := range ns.Namespaces {
		if err := r.expandNamespace(child); err != nil {
			return err
		}
	}
	return nil
}
