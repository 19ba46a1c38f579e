package resolver

import (
	"log/slog"
	"sort"
	"strings"

	domainerrors "wrapgen/internal/core/errors"
	"wrapgen/internal/engine/parser"
	"wrapgen/internal/shared/util"
)

type Options struct {
	// Namespace is the target path; empty selects the global namespace.
	Namespace []string
	// Ignore lists fully-qualified names or glob patterns to drop.
	Ignore []string
}

// Result is the filtered, instantiated subtree handed to the binding
// builder. Root is a private copy; the parsed AST is never modified.
type Result struct {
	Root     *parser.Namespace
	Includes []parser.Include
	// Opaque lists referenced type names with no declaration in the sources,
	// sorted. They are bound as unexamined handles.
	Opaque []string
	// Ignored lists declarations removed by the ignore list, sorted.
	Ignored []string
}

type resolution struct {
	symbols *symbolTable
	ignore  *IgnoreMatcher
	opaque  map[string]bool
	ignored map[string]bool
	// instances maps a template application key (ns::Base<double>) to the
	// expanded classes that bind it.
	instances map[string][]string
}

// Resolve extracts the subtree at opts.Namespace, expands templates, drops
// ignored declarations and qualifies every type reference it can.
func Resolve(file *parser.File, opts Options) (*Result, error) {
	target := file.Root.Lookup(opts.Namespace)
	if target == nil {
		return nil, domainerrors.NewUnresolvedNamespaceError(
			strings.Join(opts.Namespace, parser.Separator), topLevelNamespaces(file.Root))
	}

	ignore, err := NewIgnoreMatcher(opts.Ignore)
	if err != nil {
		return nil, domainerrors.WithStage(
			domainerrors.Wrap(err, domainerrors.CodeValidationError, "bad ignore list"),
			domainerrors.StageResolve)
	}

	r := &resolution{
		symbols: newSymbolTable(),
		ignore:  ignore,
		opaque:    make(map[string]bool),
		ignored:   make(map[string]bool),
		instances: make(map[string][]string),
	}
	r.symbols.collect(file.Root, ignore)

	root := target.Clone()
	if err := r.expandNamespace(root); err != nil {
		return nil, err
	}
	r.registerInstances(root)
	r.indexInstances(root)
	r.filter(root)
	r.resolveNamespace(root)

	res := &Result{
		Root:     root,
		Includes: append([]parser.Include(nil), file.Includes...),
		Opaque:   util.SortedStringKeys(r.opaque),
		Ignored:  util.SortedStringKeys(r.ignored),
	}
	slog.Debug("resolved namespace",
		"namespace", strings.Join(opts.Namespace, parser.Separator),
		"opaque", len(res.Opaque),
		"ignored", len(res.Ignored))
	return res, nil
}

func topLevelNamespaces(root *parser.Namespace) []string {
	names := make([]string, 0, len(root.Namespaces))
	for _, ns := range root.Namespaces {
		names = append(names, ns.Name)
	}
	sort.Strings(names)
	return names
}

// registerInstances adds expanded template instances to the symbol table so
// references to them resolve.
func (r *resolution) registerInstances(ns *parser.Namespace) {
	for _, c := range ns.Classes {
		if c.TemplateName == "" {
			continue
		}
		qn := c.QualifiedName()
		ignored := r.ignore.Match(qn) || r.ignore.Match(c.TemplateName)
		if existing, ok := r.symbols.entries[qn]; ok {
			existing.ignored = existing.ignored || ignored
			continue
		}
		r.symbols.add(qn, &symbol{kind: SymClass, ignored: ignored})
	}
	for _, child := range ns.Namespaces {
		r.registerInstances(child)
	}
}

// indexInstances records which expanded class binds each template
// application, so a base written ns::Base<double> can be matched to the
// instance ns::BaseDouble or to a typedef instance.
func (r *resolution) indexInstances(ns *parser.Namespace) {
	for _, c := range ns.Classes {
		if c.TemplateName == "" {
			continue
		}
		key := c.TemplateName + r.argsKey(c.Namespace, c.TemplateArgs)
		r.instances[key] = append(r.instances[key], c.QualifiedName())
	}
	for _, child := range ns.Namespaces {
		r.indexInstances(child)
	}
}

func (r *resolution) argsKey(scope []string, args []*parser.Type) string {
	if len(args) == 0 {
		return ""
	}
	keys := make([]string, len(args))
	for i, a := range args {
		keys[i] = r.typeKey(scope, a)
	}
	return "<" + strings.Join(keys, ",") + ">"
}

// typeKey spells t with its name fully qualified, without modifying it.
func (r *resolution) typeKey(scope []string, t *parser.Type) string {
	var name string
	switch {
	case t.IsBasic:
		name = t.Name
	case t.Resolved != "":
		name = t.Resolved
	default:
		written := append(append([]string{}, t.Namespaces...), t.Name)
		name = strings.Join(written, parser.Separator)
		if qn, sym := r.symbols.lookup(scope, written); sym != nil && sym.kind != SymNamespace {
			name = qn
		}
	}
	key := name + r.argsKey(scope, t.TemplateArgs)
	if t.IsConst {
		key = "const " + key
	}
	switch {
	case t.IsPtr:
		key += "*"
	case t.IsRawPtr:
		key += "@"
	}
	if t.IsRef {
		key += "&"
	}
	return key
}

// ignoredBase reports whether a resolved base class is bound by nothing but
// ignored declarations.
func (r *resolution) ignoredBase(scope []string, base *parser.Type) bool {
	if sym := r.symbols.entries[base.Resolved]; sym != nil && sym.ignored {
		return true
	}
	if len(base.TemplateArgs) == 0 {
		return false
	}
	insts := r.instances[base.Resolved+r.argsKey(scope, base.TemplateArgs)]
	if len(insts) == 0 {
		return r.isIgnored(base.Resolved + instanceSuffix(base.TemplateArgs))
	}
	for _, qn := range insts {
		if sym := r.symbols.entries[qn]; sym == nil || !sym.ignored {
			return false
		}
	}
	return true
}

func (r *resolution) isIgnored(names ...string) bool {
	for _, n := range names {
		if n != "" && r.ignore.Match(n) {
			return true
		}
	}
	return false
}

// filter drops ignored declarations in place, before any grouping happens
// downstream, so an ignored class is never partially bound.
func (r *resolution) filter(ns *parser.Namespace) {
	classes := ns.Classes[:0]
	for _, c := range ns.Classes {
		if r.isIgnored(c.QualifiedName(), c.TemplateName) {
			r.ignored[c.QualifiedName()] = true
			continue
		}
		enums := c.Enums[:0]
		for _, e := range c.Enums {
			qn := c.QualifiedName() + parser.Separator + e.Name
			if r.isIgnored(qn) {
				r.ignored[qn] = true
				continue
			}
			enums = append(enums, e)
		}
		c.Enums = enums
		classes = append(classes, c)
	}
	ns.Classes = classes

	funcs := ns.Functions[:0]
	for _, fn := range ns.Functions {
		if r.isIgnored(fn.QualifiedName(), fn.TemplateName) {
			r.ignored[fn.QualifiedName()] = true
			continue
		}
		funcs = append(funcs, fn)
	}
	ns.Functions = funcs

	enums := ns.Enums[:0]
	for _, e := range ns.Enums {
		qn := join(ns.Path, e.Name)
		if r.isIgnored(qn) {
			r.ignored[qn] = true
			continue
		}
		enums = append(enums, e)
	}
	ns.Enums = enums

	typedefs := ns.Typedefs[:0]
	for _, td := range ns.Typedefs {
		if r.isIgnored(td.QualifiedName()) {
			r.ignored[td.QualifiedName()] = true
			continue
		}
		typedefs = append(typedefs, td)
	}
	ns.Typedefs = typedefs

	children := ns.Namespaces[:0]
	for _, child := range ns.Namespaces {
		if r.isIgnored(child.QualifiedName()) {
			r.ignored[child.QualifiedName()] = true
			continue
		}
		r.filter(child)
		children = append(children, child)
	}
	ns.Namespaces = children
}

func (r *resolution) resolveNamespace(ns *parser.Namespace) {
	for _, c := range ns.Classes {
		r.resolveClass(c)
	}
	for _, fn := range ns.Functions {
		r.resolveArgs(ns.Path, fn.Args)
		r.resolveType(ns.Path, fn.Return)
		for _, a := range fn.TemplateArgs {
			r.resolveType(ns.Path, a)
		}
	}
	for _, td := range ns.Typedefs {
		r.resolveType(ns.Path, td.Type)
	}
	for _, child := range ns.Namespaces {
		r.resolveNamespace(child)
	}
}

func (r *resolution) resolveClass(c *parser.Class) {
	// Members see names nested in the class first.
	scope := append(append([]string{}, c.Namespace...), c.Name)

	bases := c.Bases[:0]
	for _, base := range c.Bases {
		r.resolveType(c.Namespace, base)
		if base.Resolved != "" {
			if r.ignoredBase(c.Namespace, base) {
				slog.Debug("dropping ignored base class", "class", c.QualifiedName(), "base", base.String())
				continue
			}
		} else if r.isIgnored(base.QualifiedName()) {
			continue
		}
		bases = append(bases, base)
	}
	c.Bases = bases

	for _, a := range c.TemplateArgs {
		r.resolveType(c.Namespace, a)
	}
	for _, ctor := range c.Constructors {
		r.resolveArgs(scope, ctor.Args)
	}
	for _, m := range c.Methods {
		r.resolveArgs(scope, m.Args)
		r.resolveType(scope, m.Return)
		for _, a := range m.TemplateArgs {
			r.resolveType(scope, a)
		}
	}
	for _, p := range c.Properties {
		r.resolveType(scope, p.Type)
	}
}

func (r *resolution) resolveArgs(scope []string, args []parser.Argument) {
	for _, a := range args {
		r.resolveType(scope, a.Type)
	}
}

// resolveType qualifies t in place. Names that match no declaration are
// marked opaque and keep their written spelling.
func (r *resolution) resolveType(scope []string, t *parser.Type) {
	if t == nil {
		return
	}
	for _, a := range t.TemplateArgs {
		r.resolveType(scope, a)
	}
	if t.IsBasic {
		return
	}
	written := append(append([]string{}, t.Namespaces...), t.Name)
	qn, sym := r.symbols.lookup(scope, written)
	if sym == nil || sym.kind == SymNamespace {
		t.Opaque = true
		r.opaque[strings.Join(written, parser.Separator)] = true
		return
	}
	t.Resolved = qn
	segs := parser.SplitQualified(qn)
	t.Namespaces = segs[:len(segs)-1]
	t.Name = segs[len(segs)-1]
}
