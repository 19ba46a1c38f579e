// # internal/output/emitter.go
package output

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"

	domainerrors "wrapgen/internal/core/errors"
	"wrapgen/internal/engine/binding"
	"wrapgen/internal/engine/docs"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const (
	defaultTemplate  = "module.tmpl"
	fragmentTemplate = "bindings.tmpl"
)

type Options struct {
	// TemplatePath selects the module template. Files ending in .tmpl are Go
	// templates and may redefine fragments; anything else uses the
	// {placeholder} format. Empty selects the built-in template.
	TemplatePath string
	// Docs is consulted for every bound symbol. Nil disables lookups and
	// missing-documentation warnings.
	Docs docs.Source
	// Submodule renders each direct submodule of the root into its own
	// artifact, called from the main artifact.
	Submodule bool
}

// Artifact is one rendered source file. Suffix is empty for the main module
// and names the submodule otherwise.
type Artifact struct {
	Module  string
	Suffix  string
	Content []byte
}

type Rendered struct {
	Artifacts []Artifact
	Warnings  []*domainerrors.DomainError
}

// Emitter renders binding models. It holds no per-render state and may be
// shared by concurrent pipelines.
type Emitter struct {
	opts     Options
	name     string
	tmpls    *template.Template
	isLegacy bool
	legacy   string
}

// moduleData is what a module template sees. Field names double as the
// {snake_case} placeholders of the legacy format.
type moduleData struct {
	ModuleName       string
	ModuleDef        string
	IncludeBoost     string
	Includes         string
	BoostClassExport string
	HolderType       string
	Submodules       string
	SubmodulesInit   string
	WrappedNamespace string
}

func (d moduleData) placeholders() map[string]string {
	return map[string]string{
		"module_name":        d.ModuleName,
		"module_def":         d.ModuleDef,
		"include_boost":      d.IncludeBoost,
		"includes":           d.Includes,
		"boost_class_export": d.BoostClassExport,
		"holder_type":        d.HolderType,
		"submodules":         d.Submodules,
		"submodules_init":    d.SubmodulesInit,
		"wrapped_namespace":  d.WrappedNamespace,
	}
}

var funcs = template.FuncMap{
	"doc": cppString,
}

func New(opts Options) (*Emitter, error) {
	base, err := template.New(fragmentTemplate).Funcs(funcs).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "parse built-in templates")
	}
	e := &Emitter{opts: opts, name: defaultTemplate, tmpls: base}
	if opts.TemplatePath == "" {
		return e, nil
	}

	content, err := os.ReadFile(opts.TemplatePath)
	if err != nil {
		code := domainerrors.CodeInternal
		if errors.Is(err, os.ErrNotExist) {
			code = domainerrors.CodeNotFound
		}
		return nil, domainerrors.WithStage(domainerrors.AddContext(
			domainerrors.Wrap(err, code, "read module template"),
			domainerrors.CtxPath, opts.TemplatePath), domainerrors.StageEmit)
	}

	e.name = filepath.Base(opts.TemplatePath)
	if filepath.Ext(opts.TemplatePath) != ".tmpl" {
		e.isLegacy = true
		e.legacy = string(content)
		return e, nil
	}
	if e.name == fragmentTemplate {
		return nil, domainerrors.NewTemplateError(opts.TemplatePath, e.name,
			fmt.Errorf("template name collides with the built-in fragments"))
	}
	if _, err := base.New(e.name).Parse(string(content)); err != nil {
		return nil, templateError(opts.TemplatePath, err)
	}
	return e, nil
}

// Render produces the main artifact and, in submodule mode, one artifact per
// direct submodule of the root.
func (e *Emitter) Render(tree *binding.ModuleTree) (*Rendered, error) {
	r := newRenderer(tree, e.opts.Docs)
	out := &Rendered{}

	common := moduleData{
		ModuleName:   tree.Name,
		IncludeBoost: includeBoost(tree),
		Includes:     includeLines(tree.Includes),
		HolderType:   "PYBIND11_DECLARE_HOLDER_TYPE(TYPE_PLACEHOLDER_DONOTUSE, std::shared_ptr<TYPE_PLACEHOLDER_DONOTUSE>);",
	}

	top := common
	top.ModuleDef = fmt.Sprintf("PYBIND11_MODULE(%s, m_)", tree.Name)
	if !e.opts.Submodule {
		body, err := e.subtree(r, tree.Root)
		if err != nil {
			return nil, err
		}
		top.WrappedNamespace = body
		top.BoostClassExport = boostExports(tree.Root, true)
	} else {
		body, err := e.renderSection(r, tree.Root)
		if err != nil {
			return nil, err
		}
		top.WrappedNamespace = body
		top.BoostClassExport = boostExports(tree.Root, false)

		var decls, inits []string
		for _, sub := range tree.Root.Submodules {
			fn := submoduleFunc(tree, sub)
			decls = append(decls, fmt.Sprintf("void %s(py::module_ &m_);", fn))
			inits = append(inits, fmt.Sprintf("    %s(m_);", fn))

			subBody, err := e.subtree(r, sub)
			if err != nil {
				return nil, err
			}
			data := common
			data.ModuleDef = fmt.Sprintf("void %s(py::module_ &m_)", fn)
			data.WrappedNamespace = subBody
			data.BoostClassExport = boostExports(sub, true)
			content, err := e.execute(data)
			if err != nil {
				return nil, err
			}
			out.Artifacts = append(out.Artifacts, Artifact{
				Module:  tree.Name + "." + strings.Join(r.relativePath(sub), "."),
				Suffix:  strings.Join(r.relativePath(sub), "_"),
				Content: content,
			})
		}
		top.Submodules = strings.Join(decls, "\n")
		top.SubmodulesInit = strings.Join(inits, "\n")
	}

	content, err := e.execute(top)
	if err != nil {
		return nil, err
	}
	out.Artifacts = append([]Artifact{{Module: tree.Name, Content: content}}, out.Artifacts...)
	out.Warnings = r.warnings
	return out, nil
}

// renderSection renders the bindings declared directly in mod. The text does
// not depend on how deep mod sits in the output, so a subtree renders the
// same in whole-module and submodule mode.
func (e *Emitter) renderSection(r *renderer, mod *binding.Module) (string, error) {
	var buf bytes.Buffer
	if err := e.tmpls.ExecuteTemplate(&buf, "section", r.section(mod)); err != nil {
		return "", templateError(e.templateLabel(), err)
	}
	return buf.String(), nil
}

func (e *Emitter) subtree(r *renderer, mod *binding.Module) (string, error) {
	var b strings.Builder
	var err error
	mod.Walk(func(m *binding.Module) {
		if err != nil {
			return
		}
		var s string
		if s, err = e.renderSection(r, m); err == nil {
			b.WriteString(s)
		}
	})
	return b.String(), err
}

func (e *Emitter) execute(data moduleData) ([]byte, error) {
	if e.isLegacy {
		s, err := renderPlaceholders(e.legacy, data.placeholders())
		if err != nil {
			return nil, domainerrors.AddContext(err, domainerrors.CtxFile, e.templateLabel())
		}
		return []byte(s), nil
	}
	var buf bytes.Buffer
	if err := e.tmpls.ExecuteTemplate(&buf, e.name, data); err != nil {
		return nil, templateError(e.templateLabel(), err)
	}
	return buf.Bytes(), nil
}

func (e *Emitter) templateLabel() string {
	if e.opts.TemplatePath != "" {
		return e.opts.TemplatePath
	}
	return e.name
}

func submoduleFunc(tree *binding.ModuleTree, sub *binding.Module) string {
	rel := sub.Path[len(tree.Namespace):]
	return tree.Name + "_" + strings.Join(rel, "_")
}

func includeBoost(tree *binding.ModuleTree) string {
	if !tree.Serialization {
		return ""
	}
	return "#include <boost/serialization/export.hpp>"
}

func includeLines(includes []string) string {
	lines := make([]string, len(includes))
	for i, inc := range includes {
		lines[i] = "#include " + inc
	}
	return strings.Join(lines, "\n")
}

func boostExports(mod *binding.Module, recurse bool) string {
	var lines []string
	add := func(m *binding.Module) {
		for _, c := range m.Classes {
			if c.Serializable {
				lines = append(lines, fmt.Sprintf("BOOST_CLASS_EXPORT(%s)", c.CppType))
			}
		}
	}
	if recurse {
		mod.Walk(add)
	} else {
		add(mod)
	}
	return strings.Join(lines, "\n")
}

var templateErrorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`can't evaluate field (\w+)`),
	regexp.MustCompile(`map has no entry for key "?([^"\s]+)"?`),
	regexp.MustCompile(`function "([^"]+)" not defined`),
	regexp.MustCompile(`template "([^"]+)" not defined`),
	regexp.MustCompile(`no such template "([^"]+)"`),
}

// templateError maps a text/template failure to a TemplateError naming the
// first placeholder it could not satisfy.
func templateError(name string, err error) error {
	msg := err.Error()
	for _, re := range templateErrorPatterns {
		if m := re.FindStringSubmatch(msg); m != nil {
			return domainerrors.NewTemplateError(name, m[1], err)
		}
	}
	e := &domainerrors.DomainError{
		Code:    domainerrors.CodeTemplate,
		Stage:   domainerrors.StageEmit,
		Message: "template failed",
		Err:     err,
	}
	return e.WithContext(domainerrors.CtxFile, name)
}
