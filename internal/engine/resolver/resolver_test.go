package resolver

import (
	"testing"

	domainerrors "wrapgen/internal/core/errors"
	"wrapgen/internal/engine/parser"
)

const geometry = `
namespace gtsam {
class Base {
  void baseMethod();
};
class Point2 : gtsam::Base {
  Point2();
  gtsam::Point2 compose(const Point2& other) const;
  gtsam::Values values() const;
};
template<T = {gtsam::Point2, double}>
class PriorFactor : gtsam::Base {
  PriorFactor(size_t key, const T& prior);
  T prior() const;
  template<U = {int}>
  void visit(U u);
};
typedef gtsam::PriorFactor<gtsam::Base> PriorFactorBase;
template<T = {int, double}>
T identity(T x);
namespace sub {
class Leaf : Base {
  Leaf(const gtsam::Point2& p);
};
}
}
namespace other { class Elsewhere {}; }
`

func parseGeometry(t *testing.T) *parser.File {
	t.Helper()
	f, err := parser.Parse(parser.Source{Path: "geometry.i", Content: geometry})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return f
}

func classNames(ns *parser.Namespace) []string {
	var names []string
	for _, c := range ns.Classes {
		names = append(names, c.Name)
	}
	return names
}

func equalStrings(a, b []string) bool {
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

func TestResolve_UnknownNamespace(t *testing.T) {
	_, err := Resolve(parseGeometry(t), Options{Namespace: []string{"nope"}})
	if !domainerrors.IsCode(err, domainerrors.CodeUnresolvedNamespace) {
		t.Fatalf("expected UNRESOLVED_NAMESPACE, got %v", err)
	}
	de := err.(*domainerrors.DomainError)
	if de.Context[domainerrors.CtxHint] != "available: gtsam, other" {
		t.Errorf("hint = %v", de.Context[domainerrors.CtxHint])
	}
}

func TestResolve_ExpandsTemplatesInDeclarationOrder(t *testing.T) {
	res, err := Resolve(parseGeometry(t), Options{Namespace: []string{"gtsam"}})
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"Base", "Point2", "PriorFactorPoint2", "PriorFactorDouble", "PriorFactorBase"}
	if got := classNames(res.Root); !equalStrings(got, want) {
		t.Fatalf("classes = %v, want %v", got, want)
	}

	pf := res.Root.Classes[2]
	if pf.CppType() != "gtsam::PriorFactor<gtsam::Point2>" {
		t.Errorf("CppType = %q", pf.CppType())
	}
	if got := pf.Constructors[0].Args[1].Type.String(); got != "const gtsam::Point2&" {
		t.Errorf("substituted ctor arg = %q", got)
	}
	if len(pf.Methods) != 2 || pf.Methods[1].Name != "visitInt" || pf.Methods[1].CppName() != "visit<int>" {
		t.Errorf("member template not expanded: %+v", pf.Methods)
	}

	td := res.Root.Classes[4]
	if td.CppType() != "gtsam::PriorFactor<gtsam::Base>" || td.Location.Line != 18 {
		t.Errorf("typedef instance = %q at line %d", td.CppType(), td.Location.Line)
	}
	if len(res.Root.Typedefs) != 0 {
		t.Errorf("instantiating typedef should not stay a typedef: %+v", res.Root.Typedefs)
	}

	var fnNames []string
	for _, fn := range res.Root.Functions {
		fnNames = append(fnNames, fn.Name)
	}
	if !equalStrings(fnNames, []string{"identityInt", "identityDouble"}) {
		t.Errorf("functions = %v", fnNames)
	}
	if res.Root.Functions[1].CppName() != "gtsam::identity<double>" {
		t.Errorf("function CppName = %q", res.Root.Functions[1].CppName())
	}
}

func TestResolve_QualifiesTypesAndMarksOpaque(t *testing.T) {
	res, err := Resolve(parseGeometry(t), Options{Namespace: []string{"gtsam"}})
	if err != nil {
		t.Fatal(err)
	}
	p := res.Root.Classes[1]
	arg := p.Methods[0].Args[0].Type
	if arg.Resolved != "gtsam::Point2" || arg.String() != "const gtsam::Point2&" {
		t.Errorf("Point2 arg resolved to %q (%s)", arg.Resolved, arg.String())
	}
	values := p.Methods[1].Return
	if !values.Opaque || values.Resolved != "" {
		t.Errorf("gtsam::Values should be opaque: %+v", values)
	}
	if !equalStrings(res.Opaque, []string{"gtsam::Values"}) {
		t.Errorf("Opaque = %v", res.Opaque)
	}

	leaf := res.Root.Namespaces[0].Classes[0]
	if len(leaf.Bases) != 1 || leaf.Bases[0].Resolved != "gtsam::Base" {
		t.Errorf("unqualified base should resolve through the enclosing scope: %+v", leaf.Bases)
	}
}

func TestResolve_DoesNotMutateAST(t *testing.T) {
	f := parseGeometry(t)
	if _, err := Resolve(f, Options{Namespace: []string{"gtsam"}, Ignore: []string{"gtsam::Point2"}}); err != nil {
		t.Fatal(err)
	}
	ns := f.Root.Child("gtsam")
	if len(ns.Classes) != 3 || ns.Classes[1].Methods[0].Args[0].Type.Resolved != "" {
		t.Fatal("resolver modified the parsed AST")
	}
}

func TestResolve_IgnoreRemovesClassAndBaseReferences(t *testing.T) {
	res, err := Resolve(parseGeometry(t), Options{
		Namespace: []string{"gtsam"},
		Ignore:    []string{"gtsam::Base"},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range classNames(res.Root) {
		if name == "Base" {
			t.Fatal("ignored class still present")
		}
	}
	var check func(ns *parser.Namespace)
	check = func(ns *parser.Namespace) {
		for _, c := range ns.Classes {
			for _, b := range c.Bases {
				if b.Resolved == "gtsam::Base" {
					t.Errorf("%s still lists ignored base", c.QualifiedName())
				}
			}
		}
		for _, child := range ns.Namespaces {
			check(child)
		}
	}
	check(res.Root)
	if !equalStrings(res.Ignored, []string{"gtsam::Base"}) {
		t.Errorf("Ignored = %v", res.Ignored)
	}
}

const instanceBases = `
namespace a {
class Point {};
template<T = {double, int}>
class Base {};
typedef a::Base<int> BaseI;
template<T = {a::Point}>
class Holder {};
template<T>
class Raw {};
class D : a::Base<double> {};
class E : a::Base<int> {};
class G : Holder<Point> {};
class R : a::Raw<int> {};
}`

func TestResolve_IgnoredInstanceDropsTemplateBase(t *testing.T) {
	tests := []struct {
		name   string
		ignore []string
		want   map[string][]string
	}{
		{"nothing ignored", nil, map[string][]string{
			"D": {"a::Base<double>"}, "E": {"a::Base<int>"}, "G": {"a::Holder<a::Point>"}, "R": {"a::Raw<int>"},
		}},
		{"expanded instance", []string{"a::BaseDouble"}, map[string][]string{
			"D": nil, "E": {"a::Base<int>"},
		}},
		{"instance with class argument", []string{"a::HolderPoint"}, map[string][]string{
			"G": nil,
		}},
		{"typedef instance still bound as BaseInt", []string{"a::BaseI"}, map[string][]string{
			"E": {"a::Base<int>"},
		}},
		{"every binding of the instance", []string{"a::BaseI", "a::BaseInt"}, map[string][]string{
			"D": {"a::Base<double>"}, "E": nil,
		}},
		{"unexpanded template by instance name", []string{"a::RawInt"}, map[string][]string{
			"R": nil,
		}},
		{"template name", []string{"a::Base"}, map[string][]string{
			"D": nil, "E": nil, "G": {"a::Holder<a::Point>"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := parser.Parse(parser.Source{Path: "t.i", Content: instanceBases})
			if err != nil {
				t.Fatal(err)
			}
			res, err := Resolve(f, Options{Namespace: []string{"a"}, Ignore: tt.ignore})
			if err != nil {
				t.Fatal(err)
			}
			for _, c := range res.Root.Classes {
				want, ok := tt.want[c.Name]
				if !ok {
					continue
				}
				var got []string
				for _, b := range c.Bases {
					got = append(got, b.QualifiedName())
				}
				if !equalStrings(got, want) {
					t.Errorf("%s bases = %v, want %v", c.Name, got, want)
				}
			}
		})
	}
}

func TestResolve_TemplateSelfReference(t *testing.T) {
	f, err := parser.Parse(parser.Source{Path: "t.i", Content: `
namespace a {
template<T = {double}>
class Box {
  Box(const Box& other);
  Box clone() const;
  a::Box<T> widen(T x) const;
};
typedef a::Box<int> IntBox;
}`})
	if err != nil {
		t.Fatal(err)
	}
	res, err := Resolve(f, Options{Namespace: []string{"a"}})
	if err != nil {
		t.Fatal(err)
	}
	if got := classNames(res.Root); !equalStrings(got, []string{"BoxDouble", "IntBox"}) {
		t.Fatalf("classes = %v", got)
	}

	for i, want := range []string{"a::Box<double>", "a::Box<int>"} {
		c := res.Root.Classes[i]
		if got := c.Constructors[0].Args[0].Type.String(); got != "const "+want+"&" {
			t.Errorf("%s copy constructor arg = %q", c.Name, got)
		}
		if got := c.Methods[0].Return.String(); got != want {
			t.Errorf("%s clone return = %q", c.Name, got)
		}
		if got := c.Methods[1].Return.String(); got != want {
			t.Errorf("%s explicit self reference = %q", c.Name, got)
		}
		if c.Methods[0].Return.Opaque {
			t.Errorf("%s self reference should resolve to the template", c.Name)
		}
	}
	if len(res.Opaque) != 0 {
		t.Errorf("Opaque = %v", res.Opaque)
	}
}

func TestResolve_IgnorePatterns(t *testing.T) {
	tests := []struct {
		name   string
		ignore []string
		want   []string
	}{
		{"exact instance", []string{"gtsam::PriorFactorDouble"}, []string{"Base", "Point2", "PriorFactorPoint2", "PriorFactorBase"}},
		{"template name drops all instances", []string{"gtsam::PriorFactor"}, []string{"Base", "Point2"}},
		{"glob", []string{"gtsam::Prior*"}, []string{"Base", "Point2"}},
		{"leading separator", []string{"::gtsam::Point2"}, []string{"Base", "PriorFactorPoint2", "PriorFactorDouble", "PriorFactorBase"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Resolve(parseGeometry(t), Options{Namespace: []string{"gtsam"}, Ignore: tt.ignore})
			if err != nil {
				t.Fatal(err)
			}
			if got := classNames(res.Root); !equalStrings(got, tt.want) {
				t.Errorf("classes = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolve_IgnoreNamespace(t *testing.T) {
	res, err := Resolve(parseGeometry(t), Options{Namespace: []string{"gtsam"}, Ignore: []string{"gtsam::sub"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Root.Namespaces) != 0 {
		t.Fatalf("ignored namespace still present: %+v", res.Root.Namespaces)
	}
}

func TestResolve_SubtreeOnly(t *testing.T) {
	res, err := Resolve(parseGeometry(t), Options{Namespace: []string{"gtsam", "sub"}})
	if err != nil {
		t.Fatal(err)
	}
	if got := classNames(res.Root); !equalStrings(got, []string{"Leaf"}) {
		t.Fatalf("classes = %v", got)
	}
	arg := res.Root.Classes[0].Constructors[0].Args[0].Type
	if arg.Resolved != "gtsam::Point2" {
		t.Errorf("types outside the subtree should still resolve, got %+v", arg)
	}
}

func TestResolve_TypedefArityMismatch(t *testing.T) {
	f, err := parser.Parse(parser.Source{Path: "t.i", Content: `
namespace a {
template<T = {int}> class Box {};
typedef a::Box<int, double> Bad;
}`})
	if err != nil {
		t.Fatal(err)
	}
	_, err = Resolve(f, Options{Namespace: []string{"a"}})
	if domainerrors.StageOf(err) != domainerrors.StageResolve {
		t.Fatalf("expected resolve-stage error, got %v", err)
	}
}

func TestIgnoreMatcher(t *testing.T) {
	m, err := NewIgnoreMatcher([]string{" a::b::Foo ", "x::*Factor", ""})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		want bool
	}{
		{"a::b::Foo", true},
		{"::a::b::Foo", true},
		{"a::b::Foo2", false},
		{"x::PriorFactor", true},
		{"x::Prior", false},
	}
	for _, tt := range tests {
		if got := m.Match(tt.name); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
	if _, err := NewIgnoreMatcher([]string{"a::[b"}); err == nil {
		t.Error("expected invalid pattern error")
	}
}
