package ports

import (
	"context"
	"time"

	domainerrors "wrapgen/internal/core/errors"
	"wrapgen/internal/engine/binding"
	"wrapgen/internal/output"
)

// GenerateRequest is one generation unit: the interface sources of a single
// extension module and where its artifacts go.
type GenerateRequest struct {
	Sources    []string
	ModuleName string
	// Namespace is the target path; its content becomes the module top level.
	Namespace      []string
	TemplatePath   string
	Ignore         []string
	Serialization  bool
	Submodule      bool
	XMLSource      string
	Out            string
	WriteIfChanged bool
}

// GenerateResult summarizes a completed generation.
type GenerateResult struct {
	RunID    string
	Module   string
	Stats    binding.Stats
	Opaque   []string
	Ignored  []string
	Files    []output.WriteResult
	Warnings []*domainerrors.DomainError
	Duration time.Duration
}

// GenerationService is the driving port used by the CLI and the watch loop.
type GenerationService interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)
	// GenerateAll runs independent requests concurrently. Results keep the
	// order of reqs; the first failure cancels the rest.
	GenerateAll(ctx context.Context, reqs []GenerateRequest) ([]GenerateResult, error)
}

// DocsProvider loads documentation sources by location.
type DocsProvider interface {
	Docs(dir string) (DocsSource, error)
}

// DocsSource mirrors docs.Source so adapters need not import the engine.
type DocsSource interface {
	Lookup(symbol string, params ...string) (string, bool)
}

// RunRecord is the persisted summary of one Generate call.
type RunRecord struct {
	RunID     string
	Module    string
	Timestamp time.Time
	// Status is "success" or "failure".
	Status    string
	Stage     string
	ErrorCode string
	Duration  time.Duration
	Stats     binding.Stats
	Warnings  int
	Opaque    int
	Written   int
	Unchanged int
}

// HistoryStore persists run records across invocations.
type HistoryStore interface {
	SaveRun(rec RunRecord) error
	// LoadRuns returns the newest runs first. An empty module matches all.
	LoadRuns(module string, limit int) ([]RunRecord, error)
}
