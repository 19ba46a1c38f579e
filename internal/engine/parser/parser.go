package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	domainerrors "wrapgen/internal/core/errors"
)

var basicTypes = map[string]bool{
	"void": true, "bool": true, "char": true, "int": true, "float": true,
	"double": true, "size_t": true, "string": true, "short": true,
	"long": true, "unsigned": true, "signed": true, "uint8_t": true,
	"int8_t": true, "uint16_t": true, "int16_t": true, "uint32_t": true,
	"int32_t": true, "uint64_t": true, "int64_t": true,
}

// Integer words that combine, as in "unsigned long long".
var compoundBasic = map[string]bool{
	"unsigned": true, "signed": true, "long": true, "short": true,
	"int": true, "char": true, "double": true,
}

// Parse parses every source into one merged AST. The first malformed source
// aborts the whole parse with a SyntaxError carrying file and line.
func Parse(sources ...Source) (*File, error) {
	file := &File{Root: &Namespace{}}
	for _, src := range sources {
		if err := parseInto(file, src); err != nil {
			return nil, err
		}
		file.Sources = append(file.Sources, src.Path)
	}
	return file, nil
}

func parseInto(file *File, src Source) error {
	toks, err := lex(src.Content)
	if err != nil {
		var le *lexError
		if errors.As(err, &le) {
			return domainerrors.NewSyntaxError(src.Path, le.line, le.msg)
		}
		return domainerrors.NewSyntaxError(src.Path, 0, err.Error())
	}

	p := &parser{path: src.Path, src: src.Content, toks: toks, file: file}
	if err := p.parseItems(file.Root, true); err != nil {
		return err
	}
	slog.Debug("parsed interface file", "path", src.Path, "tokens", len(toks))
	return nil
}

type parser struct {
	path string
	src  string
	toks []token
	pos  int
	file *File
	doc  string
}

func (p *parser) fail(t token, format string, args ...any) error {
	return domainerrors.NewSyntaxError(p.path, t.line, fmt.Sprintf(format, args...))
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

// next consumes one token; EOF is never consumed.
func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) is(text string) bool {
	t := p.peek()
	return (t.kind == tokPunct || t.kind == tokIdent) && t.text == text
}

func (p *parser) accept(text string) bool {
	if p.is(text) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(text string) (token, error) {
	t := p.peek()
	if !p.is(text) {
		return t, p.fail(t, "expected %q, found %s", text, describe(t))
	}
	return p.next(), nil
}

func (p *parser) expectIdent() (token, error) {
	t := p.peek()
	if t.kind != tokIdent {
		return t, p.fail(t, "expected identifier, found %s", describe(t))
	}
	return p.next(), nil
}

func describe(t token) string {
	if t.kind == tokEOF {
		return "end of file"
	}
	return fmt.Sprintf("%q", t.text)
}

// skipDocs moves doc tokens at the cursor into the pending doc text.
func (p *parser) skipDocs() {
	for p.peek().kind == tokDoc {
		t := p.next()
		if p.doc != "" {
			p.doc += "\n"
		}
		p.doc += t.text
	}
}

func (p *parser) takeDoc() string {
	d := p.doc
	p.doc = ""
	return d
}

func (p *parser) loc(t token) Location { return Location{File: p.path, Line: t.line} }

func (p *parser) parseItems(ns *Namespace, topLevel bool) error {
	for {
		p.skipDocs()
		t := p.peek()
		switch {
		case t.kind == tokEOF:
			if !topLevel {
				return p.fail(t, "missing '}' to close namespace %s", ns.QualifiedName())
			}
			return nil
		case t.kind == tokPunct && t.text == "}":
			if topLevel {
				return p.fail(t, "unexpected '}'")
			}
			return nil
		}
		if err := p.parseItem(ns); err != nil {
			return err
		}
	}
}

func (p *parser) parseItem(ns *Namespace) error {
	t := p.peek()
	switch {
	case t.kind == tokInclude:
		p.next()
		p.takeDoc()
		p.file.Includes = append(p.file.Includes, Include{Path: t.text, Location: p.loc(t)})
		return nil
	case p.is(";"):
		p.next()
		return nil
	case p.is("namespace"):
		return p.parseNamespace(ns)
	case p.is("template"):
		tmpl, err := p.parseTemplateClause()
		if err != nil {
			return err
		}
		p.skipDocs()
		if p.is("class") || p.is("struct") || (p.is("virtual") && (p.peekAt(1).text == "class" || p.peekAt(1).text == "struct")) {
			return p.parseClass(ns, tmpl)
		}
		return p.parseFunction(ns, tmpl)
	case p.is("class") || p.is("struct"):
		return p.parseClass(ns, nil)
	case p.is("virtual") && (p.peekAt(1).text == "class" || p.peekAt(1).text == "struct"):
		return p.parseClass(ns, nil)
	case p.is("enum"):
		e, err := p.parseEnum(Public)
		if err != nil {
			return err
		}
		ns.Enums = append(ns.Enums, e)
		return nil
	case p.is("typedef") || p.is("using"):
		return p.parseTypedef(ns)
	case t.kind == tokIdent:
		return p.parseFunction(ns, nil)
	}
	return p.fail(t, "unexpected %s at namespace scope", describe(t))
}

func (p *parser) parseNamespace(parent *Namespace) error {
	kw := p.next()
	doc := p.takeDoc()
	name, err := p.expectIdent()
	if err != nil {
		return err
	}
	if _, err := p.expect("{"); err != nil {
		return err
	}

	ns := parent.Child(name.text)
	if ns == nil {
		ns = &Namespace{
			Name:     name.text,
			Path:     append(append([]string{}, parent.Path...), name.text),
			Location: p.loc(kw),
		}
		parent.Namespaces = append(parent.Namespaces, ns)
	}
	if ns.Doc == "" {
		ns.Doc = doc
	}

	if err := p.parseItems(ns, false); err != nil {
		return err
	}
	if _, err := p.expect("}"); err != nil {
		return err
	}
	p.accept(";")
	return nil
}

// parseTemplateClause parses template<T = {A, B}, typename U>.
func (p *parser) parseTemplateClause() (*Template, error) {
	p.next()
	if _, err := p.expect("<"); err != nil {
		return nil, err
	}
	tmpl := &Template{}
	for {
		p.accept("typename")
		p.accept("class")
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		param := TemplateParam{Name: name.text}
		if p.accept("=") {
			if _, err := p.expect("{"); err != nil {
				return nil, err
			}
			for !p.is("}") {
				ty, err := p.parseType()
				if err != nil {
					return nil, err
				}
				param.Instantiations = append(param.Instantiations, ty)
				if !p.accept(",") {
					break
				}
			}
			if _, err := p.expect("}"); err != nil {
				return nil, err
			}
		}
		tmpl.Params = append(tmpl.Params, param)
		if !p.accept(",") {
			break
		}
	}
	if _, err := p.expect(">"); err != nil {
		return nil, err
	}
	return tmpl, nil
}

func (p *parser) parseClass(ns *Namespace, tmpl *Template) error {
	start := p.peek()
	virtual := p.accept("virtual")
	p.next() // class or struct
	doc := p.takeDoc()

	name, err := p.expectIdent()
	if err != nil {
		return err
	}
	// Forward declarations may name a class in another namespace.
	qualifier := []string{}
	for p.is("::") {
		p.next()
		seg, err := p.expectIdent()
		if err != nil {
			return err
		}
		qualifier = append(qualifier, name.text)
		name = seg
	}

	if p.accept(";") {
		if tmpl != nil {
			return p.fail(name, "template forward declaration of %s is not supported", name.text)
		}
		ns.ForwardDecls = append(ns.ForwardDecls, &ForwardDecl{
			Name:      name.text,
			Namespace: append(append([]string{}, ns.Path...), qualifier...),
			IsVirtual: virtual,
			Location:  p.loc(start),
		})
		return nil
	}
	if len(qualifier) > 0 {
		return p.fail(name, "qualified class name %s is only allowed in forward declarations", name.text)
	}

	cls := &Class{
		Name:      name.text,
		Namespace: ns.Path,
		IsVirtual: virtual,
		Template:  tmpl,
		Doc:       doc,
		Location:  p.loc(start),
	}

	if p.accept(":") {
		for {
			p.accept("public")
			p.accept("virtual")
			base, err := p.parseType()
			if err != nil {
				return err
			}
			cls.Bases = append(cls.Bases, base)
			if !p.accept(",") {
				break
			}
		}
	}

	if _, err := p.expect("{"); err != nil {
		return err
	}
	vis := Public
	for {
		p.skipDocs()
		if p.is("}") {
			break
		}
		if p.peek().kind == tokEOF {
			return p.fail(p.peek(), "missing '}' to close class %s", cls.Name)
		}
		if v, ok := p.accessSpecifier(); ok {
			vis = v
			continue
		}
		if err := p.parseMember(cls, vis); err != nil {
			return err
		}
	}
	p.next()
	if _, err := p.expect(";"); err != nil {
		return err
	}

	ns.Classes = append(ns.Classes, cls)
	return nil
}

func (p *parser) accessSpecifier() (Visibility, bool) {
	if p.peekAt(1).text != ":" {
		return Public, false
	}
	var v Visibility
	switch p.peek().text {
	case "public":
		v = Public
	case "protected":
		v = Protected
	case "private":
		v = Private
	default:
		return Public, false
	}
	p.next()
	p.next()
	p.takeDoc()
	return v, true
}

func (p *parser) parseMember(cls *Class, vis Visibility) error {
	start := p.peek()

	if p.is("enum") {
		e, err := p.parseEnum(vis)
		if err != nil {
			return err
		}
		cls.Enums = append(cls.Enums, e)
		return nil
	}

	// Destructors are accepted and dropped.
	if p.is("~") {
		p.next()
		if _, err := p.expectIdent(); err != nil {
			return err
		}
		if _, err := p.expect("("); err != nil {
			return err
		}
		if _, err := p.expect(")"); err != nil {
			return err
		}
		p.accept("const")
		p.takeDoc()
		_, err := p.expect(";")
		return err
	}

	var tmpl *Template
	if p.is("template") {
		var err error
		if tmpl, err = p.parseTemplateClause(); err != nil {
			return err
		}
		p.skipDocs()
	}
	doc := p.takeDoc()

	if p.peek().kind == tokIdent && p.peek().text == cls.Name && p.peekAt(1).text == "(" {
		p.next()
		args, err := p.parseArgs()
		if err != nil {
			return err
		}
		if _, err := p.expect(";"); err != nil {
			return err
		}
		cls.Constructors = append(cls.Constructors, &Constructor{
			Args:       args,
			Template:   tmpl,
			Visibility: vis,
			Doc:        doc,
			Location:   p.loc(start),
		})
		return nil
	}

	var isStatic, isVirtual bool
	for {
		switch {
		case p.accept("static"):
			isStatic = true
			continue
		case p.accept("virtual"):
			isVirtual = true
			continue
		}
		break
	}

	ret, err := p.parseType()
	if err != nil {
		return err
	}

	if p.is("operator") {
		op, err := p.parseOperatorName()
		if err != nil {
			return err
		}
		m := &Method{
			Name:       "operator" + op,
			Return:     ret,
			IsOperator: true,
			Operator:   op,
			IsStatic:   isStatic,
			IsVirtual:  isVirtual,
			Template:   tmpl,
			Visibility: vis,
			Doc:        doc,
			Location:   p.loc(start),
		}
		if err := p.finishMethod(m); err != nil {
			return err
		}
		cls.Methods = append(cls.Methods, m)
		return nil
	}

	name, err := p.expectIdent()
	if err != nil {
		return err
	}

	if p.is("(") {
		m := &Method{
			Name:       name.text,
			Return:     ret,
			IsStatic:   isStatic,
			IsVirtual:  isVirtual,
			Template:   tmpl,
			Visibility: vis,
			Doc:        doc,
			Location:   p.loc(start),
		}
		if err := p.finishMethod(m); err != nil {
			return err
		}
		cls.Methods = append(cls.Methods, m)
		return nil
	}

	if tmpl != nil {
		return p.fail(name, "template property %s is not supported", name.text)
	}
	prop := &Property{
		Type:       ret,
		Name:       name.text,
		IsStatic:   isStatic,
		Visibility: vis,
		Doc:        doc,
		Location:   p.loc(start),
	}
	if p.accept("=") {
		prop.Default = p.sliceUntil(";")
	}
	if _, err := p.expect(";"); err != nil {
		return err
	}
	cls.Properties = append(cls.Properties, prop)
	return nil
}

func (p *parser) finishMethod(m *Method) error {
	args, err := p.parseArgs()
	if err != nil {
		return err
	}
	m.Args = args
	if p.accept("const") {
		m.IsConst = true
	}
	if p.accept("=") {
		// pure virtual
		if t := p.peek(); t.kind != tokNumber || t.text != "0" {
			return p.fail(t, "expected '0' after '=' in method %s", m.Name)
		}
		p.next()
	}
	_, err = p.expect(";")
	return err
}

func (p *parser) parseOperatorName() (string, error) {
	kw := p.next()
	switch {
	case p.is("(") && p.peekAt(1).text == ")" && p.peekAt(2).text == "(":
		p.next()
		p.next()
		return "()", nil
	case p.is("[") && p.peekAt(1).text == "]":
		p.next()
		p.next()
		return "[]", nil
	}
	var op strings.Builder
	for p.peek().kind == tokPunct && !p.is("(") {
		op.WriteString(p.next().text)
	}
	if op.Len() == 0 {
		return "", p.fail(kw, "missing operator symbol")
	}
	return op.String(), nil
}

func (p *parser) parseFunction(ns *Namespace, tmpl *Template) error {
	start := p.peek()
	doc := p.takeDoc()
	ret, err := p.parseType()
	if err != nil {
		return err
	}
	name, err := p.expectIdent()
	if err != nil {
		return err
	}
	if !p.is("(") {
		return p.fail(p.peek(), "expected '(' after %s; global variables are not supported", name.text)
	}
	args, err := p.parseArgs()
	if err != nil {
		return err
	}
	if _, err := p.expect(";"); err != nil {
		return err
	}
	ns.Functions = append(ns.Functions, &Function{
		Name:      name.text,
		Namespace: ns.Path,
		Args:      args,
		Return:    ret,
		Template:  tmpl,
		Doc:       doc,
		Location:  p.loc(start),
	})
	return nil
}

func (p *parser) parseEnum(vis Visibility) (*Enum, error) {
	start := p.next()
	doc := p.takeDoc()
	e := &Enum{Visibility: vis, Doc: doc, Location: p.loc(start)}
	if p.accept("class") || p.accept("struct") {
		e.IsClass = true
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	e.Name = name.text
	if _, err := p.expect("{"); err != nil {
		return nil, err
	}
	for {
		p.skipDocs()
		if p.is("}") {
			break
		}
		vdoc := p.takeDoc()
		vname, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		v := EnumValue{Name: vname.text, Doc: vdoc}
		if p.accept("=") {
			v.Value = p.sliceUntil(",", "}")
			if v.Value == "" {
				return nil, p.fail(p.peek(), "missing value for enumerator %s", vname.text)
			}
		}
		e.Values = append(e.Values, v)
		if !p.accept(",") {
			break
		}
	}
	p.skipDocs()
	p.takeDoc()
	if _, err := p.expect("}"); err != nil {
		return nil, err
	}
	if _, err := p.expect(";"); err != nil {
		return nil, err
	}
	return e, nil
}

func (p *parser) parseTypedef(ns *Namespace) error {
	start := p.next()
	doc := p.takeDoc()
	td := &Typedef{Namespace: ns.Path, Doc: doc, Location: p.loc(start)}
	if start.text == "using" {
		name, err := p.expectIdent()
		if err != nil {
			return err
		}
		if _, err := p.expect("="); err != nil {
			return err
		}
		ty, err := p.parseType()
		if err != nil {
			return err
		}
		td.Name, td.Type = name.text, ty
	} else {
		ty, err := p.parseType()
		if err != nil {
			return err
		}
		name, err := p.expectIdent()
		if err != nil {
			return err
		}
		td.Name, td.Type = name.text, ty
	}
	if _, err := p.expect(";"); err != nil {
		return err
	}
	ns.Typedefs = append(ns.Typedefs, td)
	return nil
}

func (p *parser) parseArgs() ([]Argument, error) {
	if _, err := p.expect("("); err != nil {
		return nil, err
	}
	var args []Argument
	if p.accept(")") {
		return args, nil
	}
	if p.is("void") && p.peekAt(1).text == ")" {
		p.next()
		p.next()
		return args, nil
	}
	for {
		ty, err := p.parseType()
		if err != nil {
			return nil, err
		}
		arg := Argument{Type: ty}
		if p.peek().kind == tokIdent {
			arg.Name = p.next().text
		}
		if p.accept("=") {
			arg.Default = p.sliceUntil(",", ")")
			if arg.Default == "" {
				return nil, p.fail(p.peek(), "missing default value")
			}
		}
		args = append(args, arg)
		if !p.accept(",") {
			break
		}
	}
	if _, err := p.expect(")"); err != nil {
		return nil, err
	}
	return args, nil
}

// parseType parses [const] [::]a::b::Name[<args>] [*|&|@] [const].
func (p *parser) parseType() (*Type, error) {
	ty := &Type{}
	if p.accept("const") {
		ty.IsConst = true
	}
	p.accept("::")

	first, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if first.text == "const" || first.text == "operator" {
		return nil, p.fail(first, "unexpected %q in type", first.text)
	}

	if compoundBasic[first.text] {
		words := []string{first.text}
		for p.peek().kind == tokIdent && compoundBasic[p.peek().text] {
			words = append(words, p.next().text)
		}
		ty.Name = strings.Join(words, " ")
		ty.IsBasic = true
	} else {
		segs := []string{first.text}
		for p.is("::") {
			p.next()
			seg, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			segs = append(segs, seg.text)
		}
		ty.Namespaces = segs[:len(segs)-1]
		ty.Name = segs[len(segs)-1]
		ty.IsBasic = len(ty.Namespaces) == 0 && basicTypes[ty.Name]
	}

	if p.accept("<") {
		for {
			arg, err := p.parseType()
			if err != nil {
				return nil, err
			}
			ty.TemplateArgs = append(ty.TemplateArgs, arg)
			if !p.accept(",") {
				break
			}
		}
		if _, err := p.expect(">"); err != nil {
			return nil, err
		}
	}

	switch {
	case p.accept("*"):
		ty.IsPtr = true
	case p.accept("@"):
		ty.IsRawPtr = true
	}
	if p.accept("const") {
		ty.IsConst = true
	}
	if p.accept("&") {
		ty.IsRef = true
	}
	return ty, nil
}

// sliceUntil returns the verbatim source text up to (not including) the
// first stop token found outside brackets.
func (p *parser) sliceUntil(stops ...string) string {
	depth := 0
	first := p.peek()
	last := first
	consumed := false
	for {
		t := p.peek()
		if t.kind == tokEOF {
			break
		}
		if depth == 0 && t.kind == tokPunct {
			stop := false
			for _, s := range stops {
				if t.text == s {
					stop = true
					break
				}
			}
			if stop {
				break
			}
		}
		if t.kind == tokPunct {
			switch t.text {
			case "(", "{", "[", "<":
				depth++
			case ")", "}", "]", ">":
				depth--
			}
		}
		last = p.next()
		consumed = true
	}
	if !consumed {
		return ""
	}
	return strings.TrimSpace(p.src[first.start:last.end])
}
