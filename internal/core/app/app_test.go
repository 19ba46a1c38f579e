// # internal/core/app/app_test.go
package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wrapgen/internal/core/config"
	domainerrors "wrapgen/internal/core/errors"
	"wrapgen/internal/core/ports"
	"wrapgen/internal/engine/docs"
)

const fooInterface = `namespace a { namespace b { class Foo { Foo(); void bar(int x); void bar(double x); }; } }`

type stubDocs struct {
	source docs.Map
	calls  atomic.Int32
}

func (s *stubDocs) Docs(string) (ports.DocsSource, error) {
	s.calls.Add(1)
	return s.source, nil
}

func newTestApp(t *testing.T, deps Dependencies) *App {
	t.Helper()
	cfg, err := config.Parse("")
	require.NoError(t, err)
	a, err := NewWithDependencies(cfg, deps)
	require.NoError(t, err)
	return a
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func fooRequest(dir string, src string) ports.GenerateRequest {
	return ports.GenerateRequest{
		Sources:        []string{src},
		ModuleName:     "m",
		Namespace:      []string{"a", "b"},
		Out:            filepath.Join(dir, "m.cpp"),
		WriteIfChanged: true,
	}
}

func TestGenerate_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "foo.i", fooInterface)
	a := newTestApp(t, Dependencies{})
	req := fooRequest(dir, src)

	res, err := a.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 1, res.Stats.Classes)
	require.Len(t, res.Files, 1)
	assert.True(t, res.Files[0].Written)

	code, err := os.ReadFile(req.Out)
	require.NoError(t, err)
	assert.Contains(t, string(code), "PYBIND11_MODULE(m, m_) {")
	assert.Equal(t, 1, strings.Count(string(code), "py::class_<a::b::Foo"))

	// Identical output leaves the file alone.
	before, err := os.Stat(req.Out)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	res, err = a.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.Files[0].Written)
	after, err := os.Stat(req.Out)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
}

func TestGenerate_Failures(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "foo.i", fooInterface)
	bad := writeFile(t, dir, "bad.i", "class Broken {")

	tests := []struct {
		name  string
		edit  func(*ports.GenerateRequest)
		code  domainerrors.ErrorCode
		stage domainerrors.Stage
	}{
		{"missing source", func(r *ports.GenerateRequest) { r.Sources = []string{filepath.Join(dir, "nope.i")} },
			domainerrors.CodeNotFound, domainerrors.StageParse},
		{"syntax error", func(r *ports.GenerateRequest) { r.Sources = []string{bad} },
			domainerrors.CodeSyntax, domainerrors.StageParse},
		{"unknown namespace", func(r *ports.GenerateRequest) { r.Namespace = []string{"zz"} },
			domainerrors.CodeUnresolvedNamespace, domainerrors.StageResolve},
		{"no module name", func(r *ports.GenerateRequest) { r.ModuleName = "" },
			domainerrors.CodeValidationError, domainerrors.StageBuild},
		{"missing template", func(r *ports.GenerateRequest) { r.TemplatePath = filepath.Join(dir, "absent.tpl") },
			domainerrors.CodeNotFound, domainerrors.StageEmit},
		{"no sources", func(r *ports.GenerateRequest) { r.Sources = nil },
			domainerrors.CodeValidationError, domainerrors.StageConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := fooRequest(dir, src)
			req.Out = filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".cpp")
			tt.edit(&req)

			_, err := newTestApp(t, Dependencies{}).Generate(context.Background(), req)
			require.Error(t, err)
			assert.True(t, domainerrors.IsCode(err, tt.code), "got %v", err)
			assert.Equal(t, tt.stage, domainerrors.StageOf(err))
			assert.NoFileExists(t, req.Out)
		})
	}
}

func TestGenerate_DocsWarnings(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "foo.i", fooInterface)
	provider := &stubDocs{source: docs.Map{"a::b::Foo": "A foo."}}
	a := newTestApp(t, Dependencies{Docs: provider})

	req := fooRequest(dir, src)
	req.XMLSource = filepath.Join(dir, "xml")
	res, err := a.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(1), provider.calls.Load())

	var symbols []string
	for _, w := range res.Warnings {
		assert.Equal(t, domainerrors.CodeMissingDocumentation, w.Code)
		symbols = append(symbols, w.Context[domainerrors.CtxSymbol].(string))
	}
	assert.Equal(t, []string{"a::b::Foo::Foo", "a::b::Foo::bar"}, symbols)

	code, err := os.ReadFile(req.Out)
	require.NoError(t, err)
	assert.Contains(t, string(code), `R"doc(A foo.)doc"`)
}

func TestGenerateAll(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "foo.i", fooInterface)
	other := writeFile(t, dir, "other.i", "namespace g { class Bar { Bar(); }; }")
	a := newTestApp(t, Dependencies{Concurrency: 2})

	first := fooRequest(dir, src)
	second := ports.GenerateRequest{
		Sources:    []string{other},
		ModuleName: "g",
		Namespace:  []string{"g"},
		Out:        filepath.Join(dir, "g.cpp"),
	}
	results, err := a.GenerationService().GenerateAll(context.Background(), []ports.GenerateRequest{first, second})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "m", results[0].Module)
	assert.Equal(t, "g", results[1].Module)
	assert.FileExists(t, first.Out)
	assert.FileExists(t, second.Out)

	second.Out = first.Out
	_, err = a.GenerateAll(context.Background(), []ports.GenerateRequest{first, second})
	require.Error(t, err)
	assert.True(t, domainerrors.IsCode(err, domainerrors.CodeValidationError))
}

func TestGenerateAll_SubmoduleArtifactConflict(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "foo.i", fooInterface)
	a := newTestApp(t, Dependencies{Concurrency: 2})

	whole := fooRequest(dir, src)
	whole.Namespace = []string{"a"}
	whole.Submodule = true
	inner := fooRequest(dir, src)
	inner.ModuleName = "b"
	inner.Out = filepath.Join(dir, "m_b.cpp")

	results, err := a.GenerateAll(context.Background(), []ports.GenerateRequest{whole, inner})
	require.Error(t, err)
	assert.True(t, domainerrors.IsCode(err, domainerrors.CodeValidationError))
	assert.Equal(t, domainerrors.StageEmit, domainerrors.StageOf(err))
	assert.Contains(t, err.Error(), "m_b.cpp")
	require.Len(t, results, 2)
	assert.NoFileExists(t, whole.Out)
	assert.NoFileExists(t, inner.Out)

	inner.Out = filepath.Join(dir, "b.cpp")
	_, err = a.GenerateAll(context.Background(), []ports.GenerateRequest{whole, inner})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "m_b.cpp"))
	assert.FileExists(t, inner.Out)
}

func TestGenerateAll_FailureNamesModule(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "foo.i", fooInterface)
	a := newTestApp(t, Dependencies{})

	broken := fooRequest(dir, src)
	broken.ModuleName = "broken"
	broken.Namespace = []string{"missing"}
	broken.Out = filepath.Join(dir, "broken.cpp")

	_, err := a.GenerateAll(context.Background(), []ports.GenerateRequest{fooRequest(dir, src), broken})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "module=broken")
}

func TestRequests(t *testing.T) {
	cfg, err := config.Parse(`
[module]
name = "gtsam"
namespace = "gtsam"
serialization = true

[input]
sources = ["gtsam.i"]
ignore = ["gtsam::Internal"]

[output]
path = "gtsam.cpp"

[[submodules]]
name = "geometry"
namespace = "gtsam::geometry"
sources = ["geometry.i"]
out = "geometry.cpp"
`)
	require.NoError(t, err)

	want := []ports.GenerateRequest{
		{
			Sources: []string{"gtsam.i"}, ModuleName: "gtsam", Namespace: []string{"gtsam"},
			Ignore: []string{"gtsam::Internal"}, Serialization: true, Out: "gtsam.cpp", WriteIfChanged: true,
		},
		{
			Sources: []string{"geometry.i"}, ModuleName: "geometry", Namespace: []string{"gtsam", "geometry"},
			Ignore: []string{"gtsam::Internal"}, Serialization: true, Out: "geometry.cpp", WriteIfChanged: true,
		},
	}
	if diff := cmp.Diff(want, Requests(cfg)); diff != "" {
		t.Errorf("Requests mismatch (-want +got):\n%s", diff)
	}
}

func TestWatchInputs(t *testing.T) {
	reqs := []ports.GenerateRequest{
		{Sources: []string{"a.i", "b.i"}, TemplatePath: "t.tpl", XMLSource: "xml/"},
		{Sources: []string{"./b.i", "c.i"}, TemplatePath: "t.tpl"},
	}
	want := []string{"a.i", "b.i", "t.tpl", "xml", "c.i"}
	if diff := cmp.Diff(want, WatchInputs(reqs)); diff != "" {
		t.Errorf("WatchInputs mismatch (-want +got):\n%s", diff)
	}
}

func TestWatch_Regenerates(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "foo.i", fooInterface)
	a := newTestApp(t, Dependencies{})
	a.Config.Watch.Debounce = 20 * time.Millisecond
	a.Config.Watch.Rate = 10 * time.Millisecond

	updates := make(chan Update, 4)
	a.SetUpdateHandler(func(u Update) { updates <- u })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	req := fooRequest(dir, src)
	go func() {
		done <- a.Watch(ctx, func() ([]ports.GenerateRequest, error) {
			return []ports.GenerateRequest{req}, nil
		})
	}()

	// Give the watcher time to register before editing.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(src, []byte(strings.Replace(fooInterface, "Foo", "Qux", -1)), 0o644))

	select {
	case u := <-updates:
		require.NoError(t, u.Err)
		require.Len(t, u.Results, 1)
		assert.Contains(t, u.Changed, src)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for regeneration")
	}

	code, err := os.ReadFile(req.Out)
	require.NoError(t, err)
	assert.Contains(t, string(code), "py::class_<a::b::Qux")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
