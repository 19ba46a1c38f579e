package parser

// Clone helpers give each pipeline stage its own copy of the tree, so the
// resolver can filter and substitute without touching the parsed AST.

func (t *Type) Clone() *Type {
	if t == nil {
		return nil
	}
	c := *t
	c.Namespaces = append([]string(nil), t.Namespaces...)
	c.TemplateArgs = cloneTypes(t.TemplateArgs)
	return &c
}

func cloneTypes(in []*Type) []*Type {
	if in == nil {
		return nil
	}
	out := make([]*Type, len(in))
	for i, t := range in {
		out[i] = t.Clone()
	}
	return out
}

func cloneArgs(in []Argument) []Argument {
	if in == nil {
		return nil
	}
	out := make([]Argument, len(in))
	for i, a := range in {
		out[i] = Argument{Type: a.Type.Clone(), Name: a.Name, Default: a.Default}
	}
	return out
}

func (t *Template) Clone() *Template {
	if t == nil {
		return nil
	}
	c := &Template{Params: make([]TemplateParam, len(t.Params))}
	for i, p := range t.Params {
		c.Params[i] = TemplateParam{Name: p.Name, Instantiations: cloneTypes(p.Instantiations)}
	}
	return c
}

func (m *Method) Clone() *Method {
	c := *m
	c.Args = cloneArgs(m.Args)
	c.Return = m.Return.Clone()
	c.Template = m.Template.Clone()
	c.TemplateArgs = cloneTypes(m.TemplateArgs)
	return &c
}

func (e *Enum) Clone() *Enum {
	c := *e
	c.Values = append([]EnumValue(nil), e.Values...)
	return &c
}

func (c *Class) Clone() *Class {
	out := *c
	out.Namespace = append([]string(nil), c.Namespace...)
	out.Bases = cloneTypes(c.Bases)
	out.Template = c.Template.Clone()
	out.TemplateArgs = cloneTypes(c.TemplateArgs)
	out.Constructors = make([]*Constructor, len(c.Constructors))
	for i, ctor := range c.Constructors {
		cc := *ctor
		cc.Args = cloneArgs(ctor.Args)
		cc.Template = ctor.Template.Clone()
		out.Constructors[i] = &cc
	}
	out.Methods = make([]*Method, len(c.Methods))
	for i, m := range c.Methods {
		out.Methods[i] = m.Clone()
	}
	out.Properties = make([]*Property, len(c.Properties))
	for i, p := range c.Properties {
		pc := *p
		pc.Type = p.Type.Clone()
		out.Properties[i] = &pc
	}
	out.Enums = make([]*Enum, len(c.Enums))
	for i, e := range c.Enums {
		out.Enums[i] = e.Clone()
	}
	return &out
}

func (f *Function) Clone() *Function {
	c := *f
	c.Namespace = append([]string(nil), f.Namespace...)
	c.Args = cloneArgs(f.Args)
	c.Return = f.Return.Clone()
	c.Template = f.Template.Clone()
	c.TemplateArgs = cloneTypes(f.TemplateArgs)
	return &c
}

// Clone deep-copies the namespace subtree rooted at n.
func (n *Namespace) Clone() *Namespace {
	c := &Namespace{
		Name:     n.Name,
		Path:     append([]string(nil), n.Path...),
		Doc:      n.Doc,
		Location: n.Location,
	}
	for _, child := range n.Namespaces {
		c.Namespaces = append(c.Namespaces, child.Clone())
	}
	for _, cls := range n.Classes {
		c.Classes = append(c.Classes, cls.Clone())
	}
	for _, fn := range n.Functions {
		c.Functions = append(c.Functions, fn.Clone())
	}
	for _, e := range n.Enums {
		c.Enums = append(c.Enums, e.Clone())
	}
	for _, td := range n.Typedefs {
		tc := *td
		tc.Namespace = append([]string(nil), td.Namespace...)
		tc.Type = td.Type.Clone()
		c.Typedefs = append(c.Typedefs, &tc)
	}
	for _, fd := range n.ForwardDecls {
		fc := *fd
		fc.Namespace = append([]string(nil), fd.Namespace...)
		c.ForwardDecls = append(c.ForwardDecls, &fc)
	}
	return c
}
