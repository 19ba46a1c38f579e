// # internal/output/output_test.go
package output

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	domainerrors "wrapgen/internal/core/errors"
	"wrapgen/internal/engine/binding"
	"wrapgen/internal/engine/docs"
	"wrapgen/internal/engine/parser"
	"wrapgen/internal/engine/resolver"
)

const fooSource = `namespace a { namespace b { class Foo { Foo(); void bar(int x); void bar(double x); }; } }`

const nestedSource = `
namespace a {
class Top {};
namespace b {
class Foo { Foo(); void bar(int x); };
namespace c { class Deep {}; }
}
namespace d { enum E { X }; }
}`

func buildTree(t *testing.T, src string, ns []string, ignore []string, serialization bool) *binding.ModuleTree {
	t.Helper()
	f, err := parser.Parse(parser.Source{Path: "test.i", Content: src})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	res, err := resolver.Resolve(f, resolver.Options{Namespace: ns, Ignore: ignore})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	tree, err := binding.Build(res, binding.Options{ModuleName: "m", Serialization: serialization})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return tree
}

func render(t *testing.T, tree *binding.ModuleTree, opts Options) *Rendered {
	t.Helper()
	e, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := e.Render(tree)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	return out
}

func TestRender_FooScenario(t *testing.T) {
	tree := buildTree(t, fooSource, []string{"a", "b"}, nil, false)
	out := render(t, tree, Options{})
	if len(out.Artifacts) != 1 {
		t.Fatalf("expected one artifact, got %d", len(out.Artifacts))
	}
	code := string(out.Artifacts[0].Content)

	if n := strings.Count(code, "py::class_<a::b::Foo"); n != 1 {
		t.Fatalf("expected one Foo section, got %d:\n%s", n, code)
	}
	for _, want := range []string{
		"PYBIND11_MODULE(m, m_) {",
		`py::class_<a::b::Foo, std::shared_ptr<a::b::Foo>> cls(m_, "Foo", R"doc()doc");`,
		`cls.def(py::init<>(), R"doc()doc");`,
	} {
		if !strings.Contains(code, want) {
			t.Errorf("output missing %q:\n%s", want, code)
		}
	}

	intBar := strings.Index(code, `cls.def("bar", [](a::b::Foo* self, int x) { self->bar(x); }, py::arg("x"), R"doc()doc");`)
	doubleBar := strings.Index(code, `cls.def("bar", [](a::b::Foo* self, double x) { self->bar(x); }, py::arg("x"), R"doc()doc");`)
	if intBar < 0 || doubleBar < 0 || intBar > doubleBar {
		t.Errorf("bar overloads missing or out of order (int at %d, double at %d):\n%s", intBar, doubleBar, code)
	}
}

func TestRender_IgnoredClassIsAbsent(t *testing.T) {
	tree := buildTree(t, fooSource, []string{"a", "b"}, []string{"a::b::Foo"}, false)
	code := string(render(t, tree, Options{}).Artifacts[0].Content)
	if strings.Contains(code, "Foo") {
		t.Fatalf("ignored class leaked into output:\n%s", code)
	}
}

func TestRender_MissingDocumentation(t *testing.T) {
	tree := buildTree(t, fooSource, []string{"a", "b"}, nil, false)
	out := render(t, tree, Options{Docs: docs.Map{"a::b::Foo": "A foo."}})
	code := string(out.Artifacts[0].Content)

	if !strings.Contains(code, `cls(m_, "Foo", R"doc(A foo.)doc");`) {
		t.Errorf("class documentation not injected:\n%s", code)
	}
	if !strings.Contains(code, `py::arg("x"), R"doc()doc");`) {
		t.Errorf("undocumented method should get an empty string:\n%s", code)
	}

	var warned []string
	for _, w := range out.Warnings {
		if w.Code != domainerrors.CodeMissingDocumentation {
			t.Errorf("unexpected warning %v", w)
		}
		warned = append(warned, w.Context[domainerrors.CtxSymbol].(string))
	}
	want := []string{"a::b::Foo::Foo", "a::b::Foo::bar"}
	if diff := cmp.Diff(want, warned); diff != "" {
		t.Errorf("warnings mismatch (-want +got):\n%s", diff)
	}
}

func TestRender_NoDocsSourceNoWarnings(t *testing.T) {
	tree := buildTree(t, fooSource, []string{"a", "b"}, nil, false)
	if out := render(t, tree, Options{}); len(out.Warnings) != 0 {
		t.Errorf("expected no warnings without a documentation source, got %v", out.Warnings)
	}
}

func TestRender_InlineDocsOnlyWithoutSource(t *testing.T) {
	const src = `namespace a { namespace b {
/// Inline foo.
class Foo {
  /// Inline bar.
  void bar(int x);
}; } }`
	tree := buildTree(t, src, []string{"a", "b"}, nil, false)

	code := string(render(t, tree, Options{}).Artifacts[0].Content)
	if !strings.Contains(code, `R"doc(Inline foo.)doc"`) || !strings.Contains(code, `R"doc(Inline bar.)doc"`) {
		t.Errorf("inline comments should be used without a documentation source:\n%s", code)
	}

	out := render(t, tree, Options{Docs: docs.Map{"a::b::Foo": "A foo."}})
	code = string(out.Artifacts[0].Content)
	if strings.Contains(code, "Inline") {
		t.Errorf("inline comments should not replace a documentation source:\n%s", code)
	}
	if !strings.Contains(code, `py::arg("x"), R"doc()doc");`) {
		t.Errorf("symbol missing from the source should get an empty string:\n%s", code)
	}
	if len(out.Warnings) != 1 || out.Warnings[0].Context[domainerrors.CtxSymbol] != "a::b::Foo::bar" {
		t.Errorf("expected one warning for a::b::Foo::bar, got %v", out.Warnings)
	}
}

func TestRender_Deterministic(t *testing.T) {
	first := render(t, buildTree(t, nestedSource, []string{"a"}, nil, true), Options{})
	second := render(t, buildTree(t, nestedSource, []string{"a"}, nil, true), Options{})
	if diff := cmp.Diff(string(first.Artifacts[0].Content), string(second.Artifacts[0].Content)); diff != "" {
		t.Fatalf("output differs between runs (-first +second):\n%s", diff)
	}
}

func TestRender_SubmoduleIsSliceOfWholeModule(t *testing.T) {
	whole := string(render(t, buildTree(t, nestedSource, []string{"a"}, nil, false), Options{}).Artifacts[0].Content)
	split := render(t, buildTree(t, nestedSource, []string{"a"}, nil, false), Options{Submodule: true})

	if len(split.Artifacts) != 3 {
		t.Fatalf("expected main plus two submodule artifacts, got %d", len(split.Artifacts))
	}
	main := string(split.Artifacts[0].Content)
	for _, want := range []string{"void m_b(py::module_ &m_);", "    m_b(m_);", "void m_d(py::module_ &m_);"} {
		if !strings.Contains(main, want) {
			t.Errorf("main artifact missing %q:\n%s", want, main)
		}
	}
	if strings.Contains(main, "Deep") {
		t.Error("main artifact must not contain submodule bindings")
	}

	sub := split.Artifacts[1]
	if sub.Module != "m.b" || sub.Suffix != "b" {
		t.Fatalf("artifact = %s/%s", sub.Module, sub.Suffix)
	}
	content := string(sub.Content)
	marker := "void m_b(py::module_ &m_) {"
	start := strings.Index(content, marker)
	end := strings.LastIndex(content, "\n}")
	if start < 0 || end < start {
		t.Fatalf("unexpected submodule layout:\n%s", content)
	}
	body := content[start+len(marker) : end]
	if !strings.Contains(body, "Deep") || strings.Contains(body, "Top") || strings.Contains(body, "py::enum_") {
		t.Errorf("submodule body should hold exactly the b subtree:\n%s", body)
	}
	if !strings.Contains(whole, body) {
		t.Errorf("submodule body is not a slice of the whole-module output\nbody:\n%s\nwhole:\n%s", body, whole)
	}
}

func TestRender_Serialization(t *testing.T) {
	tree := buildTree(t, `namespace s { class Pose { Pose(); void serialize() const; }; }`, []string{"s"}, nil, true)
	code := string(render(t, tree, Options{}).Artifacts[0].Content)
	for _, want := range []string{
		"#include <boost/serialization/export.hpp>",
		"BOOST_CLASS_EXPORT(s::Pose)",
		`cls.def("serialize", [](s::Pose* self) { return gtsam::serialize(*self); });`,
		"cls.def(py::pickle(",
	} {
		if !strings.Contains(code, want) {
			t.Errorf("output missing %q:\n%s", want, code)
		}
	}
}

func TestRender_MembersAndEnums(t *testing.T) {
	tree := buildTree(t, `
namespace g {
enum class Mode { FAST, SLOW };
class Point {
  Point(double x = 0.0);
  static g::Point Origin();
  double norm() const;
  g::Point operator-() const;
  g::Point operator+(const g::Point& other) const;
  double x;
  enum Kind { A, B };
};
double dist(const g::Point& a, const g::Point& b);
}`, []string{"g"}, nil, false)
	code := string(render(t, tree, Options{}).Artifacts[0].Content)
	for _, want := range []string{
		`py::enum_<g::Mode>(m_, "Mode", py::arithmetic(), R"doc()doc")`,
		`.value("FAST", g::Mode::FAST, R"doc()doc")`,
		`cls.def(py::init<double>(), py::arg("x") = 0.0, R"doc()doc");`,
		`cls.def_static("Origin", []() { return g::Point::Origin(); }, R"doc()doc");`,
		`cls.def("norm", [](const g::Point* self) { return self->norm(); }, R"doc()doc");`,
		`cls.def("__neg__", [](const g::Point* self) { return -(*self); }, py::is_operator(), R"doc()doc");`,
		`cls.def("__add__", [](const g::Point* self, const g::Point& other) { return *self + other; }, py::arg("other"), py::is_operator(), R"doc()doc");`,
		`cls.def_readwrite("x", &g::Point::x);`,
		`py::enum_<g::Point::Kind>(cls, "Kind", py::arithmetic(), R"doc()doc")`,
		`m_.def("dist", [](const g::Point& a, const g::Point& b) { return g::dist(a, b); }, py::arg("a"), py::arg("b"), R"doc()doc");`,
	} {
		if !strings.Contains(code, want) {
			t.Errorf("output missing %q:\n%s", want, code)
		}
	}
	mode := code[strings.Index(code, "py::enum_<g::Mode>"):]
	if block := mode[:strings.Index(mode, ";")]; strings.Contains(block, "export_values") {
		t.Errorf("enum class values must not be exported:\n%s", block)
	}
	kind := code[strings.Index(code, "py::enum_<g::Point::Kind>"):]
	if block := kind[:strings.Index(kind, ";")]; !strings.Contains(block, "export_values") {
		t.Errorf("plain enum values should be exported:\n%s", block)
	}
}

func writeTemplate(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTemplateErrors(t *testing.T) {
	tree := buildTree(t, fooSource, []string{"a", "b"}, nil, false)
	tests := []struct {
		name        string
		file        string
		content     string
		placeholder string
		atNew       bool
	}{
		{"unknown field", "bad.tmpl", "{{.ModuleName}} {{.Hoisted}}", "Hoisted", false},
		{"unknown function", "bad.tmpl", "{{shout .ModuleName}}", "shout", true},
		{"unknown fragment", "bad.tmpl", `{{template "footer" .}}`, "footer", false},
		{"legacy unknown placeholder", "module.tpl", "{module_name}\n{hoisted}", "hoisted", false},
		{"legacy single brace", "module.tpl", "{module_name} }", "}", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New(Options{TemplatePath: writeTemplate(t, tt.file, tt.content)})
			if !tt.atNew {
				if err != nil {
					t.Fatalf("New: %v", err)
				}
				_, err = e.Render(tree)
			}
			if !domainerrors.IsCode(err, domainerrors.CodeTemplate) {
				t.Fatalf("expected TEMPLATE_ERROR, got %v", err)
			}
			if domainerrors.StageOf(err) != domainerrors.StageEmit {
				t.Errorf("stage = %q", domainerrors.StageOf(err))
			}
			if !strings.Contains(err.Error(), `"`+tt.placeholder+`"`) {
				t.Errorf("error should name %q: %v", tt.placeholder, err)
			}
		})
	}
}

func TestTemplate_MissingFile(t *testing.T) {
	_, err := New(Options{TemplatePath: filepath.Join(t.TempDir(), "absent.tpl")})
	if !domainerrors.IsCode(err, domainerrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestLegacyTemplate(t *testing.T) {
	tree := buildTree(t, fooSource, []string{"a", "b"}, nil, false)
	path := writeTemplate(t, "module.tpl", "{include_boost}{module_def} {{\n{submodules_init}{wrapped_namespace}\n}}\n")
	code := string(render(t, tree, Options{TemplatePath: path}).Artifacts[0].Content)
	if !strings.HasPrefix(code, "PYBIND11_MODULE(m, m_) {\n") || !strings.HasSuffix(code, "\n}\n") {
		t.Errorf("unexpected legacy rendering:\n%s", code)
	}
	if !strings.Contains(code, `cls(m_, "Foo"`) {
		t.Errorf("legacy rendering missing class:\n%s", code)
	}
}

func TestGoTemplate_OverridesFragment(t *testing.T) {
	tree := buildTree(t, fooSource, []string{"a", "b"}, nil, false)
	path := writeTemplate(t, "custom.tmpl", `{{define "constructor"}}
        // constructor({{.ParamTypes}})
{{- end}}{{.ModuleDef}} {
{{- .WrappedNamespace}}
}
`)
	code := string(render(t, tree, Options{TemplatePath: path}).Artifacts[0].Content)
	if !strings.Contains(code, "// constructor()") || strings.Contains(code, "py::init<>") {
		t.Errorf("fragment override not applied:\n%s", code)
	}
}

func TestRenderPlaceholders(t *testing.T) {
	got, err := renderPlaceholders("a{x}b{{c}}{ y }", map[string]string{"x": "1", "y": "2"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "a1b{c}2" {
		t.Errorf("got %q", got)
	}
	if _, err := renderPlaceholders("line\n{open", nil); err == nil {
		t.Error("expected unterminated placeholder error")
	}
}

func TestCppString(t *testing.T) {
	if got := cppString("plain"); got != `R"doc(plain)doc"` {
		t.Errorf("got %s", got)
	}
	if got := cppString(`tricky )doc" "q"`); got != `"tricky )doc\" \"q\""` {
		t.Errorf("got %s", got)
	}
}

func TestWriteArtifacts(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "gen", "m.cpp")
	artifacts := []Artifact{
		{Module: "m", Content: []byte("main")},
		{Module: "m.b", Suffix: "b", Content: []byte("sub")},
	}

	results, err := WriteArtifacts(out, artifacts, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || !results[0].Written || results[1].Path != filepath.Join(dir, "gen", "m_b.cpp") {
		t.Fatalf("results = %+v", results)
	}

	results, err = WriteArtifacts(out, artifacts, true)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.Written {
			t.Errorf("%s rewritten although unchanged", r.Path)
		}
	}

	results, err = WriteArtifacts(out, artifacts, false)
	if err != nil {
		t.Fatal(err)
	}
	if !results[0].Written {
		t.Error("forced write skipped")
	}
}
