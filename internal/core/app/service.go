package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	domainerrors "wrapgen/internal/core/errors"
	"wrapgen/internal/core/ports"
	"wrapgen/internal/engine/binding"
	"wrapgen/internal/engine/docs"
	"wrapgen/internal/engine/parser"
	"wrapgen/internal/engine/resolver"
	"wrapgen/internal/output"
	"wrapgen/internal/shared/observability"
	"wrapgen/internal/shared/util"
)

type generationService struct {
	app *App
}

var _ ports.GenerationService = (*generationService)(nil)

func NewGenerationService(app *App) ports.GenerationService {
	return &generationService{app: app}
}

func (a *App) GenerationService() ports.GenerationService {
	return NewGenerationService(a)
}

func (s *generationService) Generate(ctx context.Context, req ports.GenerateRequest) (ports.GenerateResult, error) {
	if s.app == nil {
		return ports.GenerateResult{}, fmt.Errorf("app is required")
	}
	return s.app.Generate(ctx, req)
}

func (s *generationService) GenerateAll(ctx context.Context, reqs []ports.GenerateRequest) ([]ports.GenerateResult, error) {
	if s.app == nil {
		return nil, fmt.Errorf("app is required")
	}
	return s.app.GenerateAll(ctx, reqs)
}

// pipelineRun carries one request through the pipeline. The rendered
// artifacts are held until the write step.
type pipelineRun struct {
	req      ports.GenerateRequest
	res      ports.GenerateResult
	logger   *slog.Logger
	span     trace.Span
	start    time.Time
	rendered *output.Rendered
}

func (a *App) startRun(ctx context.Context, req ports.GenerateRequest) *pipelineRun {
	runID := uuid.NewString()
	_, span := observability.Tracer.Start(ctx, "app.Generate", trace.WithAttributes(
		attribute.String("wrapgen.run_id", runID),
		attribute.String("wrapgen.module", req.ModuleName),
		attribute.StringSlice("wrapgen.sources", req.Sources),
	))
	return &pipelineRun{
		req:    req,
		res:    ports.GenerateResult{RunID: runID, Module: req.ModuleName},
		logger: slog.With("run_id", runID, "module", req.ModuleName),
		span:   span,
		start:  time.Now(),
	}
}

// context parents stage spans on the run span while keeping ctx's
// cancellation.
func (r *pipelineRun) context(ctx context.Context) context.Context {
	return trace.ContextWithSpan(ctx, r.span)
}

func (a *App) finishRun(r *pipelineRun, err error) (ports.GenerateResult, error) {
	defer r.span.End()
	r.res.Duration = time.Since(r.start)
	observability.HeapAllocBytes.Set(float64(util.HeapAllocBytes()))
	a.recordRun(r.res, err, r.logger)
	if err != nil {
		r.span.RecordError(err)
		r.span.SetStatus(codes.Error, err.Error())
		observability.RunsTotal.WithLabelValues("failure").Inc()
		r.logger.Error("generation failed", "stage", domainerrors.StageOf(err), "error", err)
		return r.res, err
	}
	observability.RunsTotal.WithLabelValues("success").Inc()
	r.logger.Info("generation finished",
		"classes", r.res.Stats.Classes,
		"functions", r.res.Stats.Functions,
		"files", len(r.res.Files),
		"warnings", len(r.res.Warnings),
		"duration", r.res.Duration)
	return r.res, nil
}

// Generate runs parse, resolve, build and emit for one request and writes
// its artifacts. Nothing is written unless every stage succeeds.
func (a *App) Generate(ctx context.Context, req ports.GenerateRequest) (ports.GenerateResult, error) {
	r := a.startRun(ctx, req)
	ctx = r.context(ctx)
	err := a.render(ctx, r)
	if err == nil {
		err = a.write(ctx, r)
	}
	return a.finishRun(r, err)
}

// render runs every stage up to and including emission.
func (a *App) render(ctx context.Context, r *pipelineRun) error {
	req, res, logger := r.req, &r.res, r.logger
	if len(req.Sources) == 0 {
		return domainerrors.WithStage(
			domainerrors.New(domainerrors.CodeValidationError, "no interface sources given"),
			domainerrors.StageConfig)
	}
	if strings.TrimSpace(req.Out) == "" {
		return domainerrors.WithStage(
			domainerrors.New(domainerrors.CodeValidationError, "no output path given"),
			domainerrors.StageConfig)
	}

	file, err := runStage(ctx, "parse", domainerrors.StageParse, func(context.Context) (*parser.File, error) {
		sources, err := a.readSources(req.Sources)
		if err != nil {
			return nil, err
		}
		return parser.Parse(sources...)
	})
	if err != nil {
		return err
	}
	logger.Debug("parsed", "sources", len(file.Sources), "includes", len(file.Includes))

	resolved, err := runStage(ctx, "resolve", domainerrors.StageResolve, func(context.Context) (*resolver.Result, error) {
		return resolver.Resolve(file, resolver.Options{Namespace: req.Namespace, Ignore: req.Ignore})
	})
	if err != nil {
		return err
	}
	res.Opaque = resolved.Opaque
	res.Ignored = resolved.Ignored
	observability.OpaqueTypes.WithLabelValues(req.ModuleName).Set(float64(len(resolved.Opaque)))
	if len(resolved.Opaque) > 0 {
		logger.Debug("opaque types", "types", resolved.Opaque)
	}

	tree, err := runStage(ctx, "build", domainerrors.StageBuild, func(context.Context) (*binding.ModuleTree, error) {
		return binding.Build(resolved, binding.Options{ModuleName: req.ModuleName, Serialization: req.Serialization})
	})
	if err != nil {
		return err
	}
	res.Stats = tree.Stats()
	recordStats(req.ModuleName, res.Stats)

	rendered, err := runStage(ctx, "emit", domainerrors.StageEmit, func(context.Context) (*output.Rendered, error) {
		var source docs.Source
		if req.XMLSource != "" {
			loaded, err := a.docs.Docs(req.XMLSource)
			if err != nil {
				return nil, err
			}
			source = loaded
		}
		emitter, err := output.New(output.Options{
			TemplatePath: req.TemplatePath,
			Docs:         source,
			Submodule:    req.Submodule,
		})
		if err != nil {
			return nil, err
		}
		return emitter.Render(tree)
	})
	if err != nil {
		return err
	}
	res.Warnings = rendered.Warnings
	observability.MissingDocsTotal.Add(float64(len(rendered.Warnings)))
	r.rendered = rendered
	return nil
}

func (a *App) write(ctx context.Context, r *pipelineRun) error {
	files, err := runStage(ctx, "write", domainerrors.StageEmit, func(context.Context) ([]output.WriteResult, error) {
		return output.WriteArtifacts(r.req.Out, r.rendered.Artifacts, r.req.WriteIfChanged)
	})
	r.res.Files = files
	for _, f := range files {
		outcome := "unchanged"
		if f.Written {
			outcome = "written"
		}
		observability.ArtifactsTotal.WithLabelValues(outcome).Inc()
	}
	return err
}

// runStage wraps one pipeline step with a span, a duration sample and stage
// tagging of its error.
func runStage[T any](ctx context.Context, name string, stage domainerrors.Stage, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := observability.Tracer.Start(ctx, "stage."+name)
	defer span.End()
	defer observability.ObserveStage(name, time.Now())

	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}
	v, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return v, domainerrors.WithStage(err, stage)
	}
	return v, nil
}

func recordStats(module string, stats binding.Stats) {
	observability.BoundSymbols.WithLabelValues(module, "modules").Set(float64(stats.Modules))
	observability.BoundSymbols.WithLabelValues(module, "classes").Set(float64(stats.Classes))
	observability.BoundSymbols.WithLabelValues(module, "methods").Set(float64(stats.Methods))
	observability.BoundSymbols.WithLabelValues(module, "functions").Set(float64(stats.Functions))
	observability.BoundSymbols.WithLabelValues(module, "enums").Set(float64(stats.Enums))
}

// GenerateAll runs reqs concurrently, bounded by the configured concurrency.
// Every request is rendered before anything is written, so two requests
// that would write the same file, submodule artifacts included, fail
// without touching the disk.
func (a *App) GenerateAll(ctx context.Context, reqs []ports.GenerateRequest) ([]ports.GenerateResult, error) {
	if err := checkOutputConflicts(reqs); err != nil {
		return nil, err
	}
	runs := make([]*pipelineRun, len(reqs))
	for i, req := range reqs {
		runs[i] = a.startRun(ctx, req)
	}
	results := make([]ports.GenerateResult, len(reqs))
	finished := make([]bool, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, r := range runs {
		i, r := i, r
		g.Go(func() error {
			err := a.render(r.context(gctx), r)
			if err != nil {
				results[i], _ = a.finishRun(r, err)
				finished[i] = true
				return domainerrors.AddContext(err, "module", r.req.ModuleName)
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = checkArtifactConflicts(runs)
	}
	if err != nil {
		for i, r := range runs {
			if !finished[i] {
				results[i], _ = a.finishRun(r, err)
			}
		}
		return results, err
	}

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, r := range runs {
		i, r := i, r
		g.Go(func() error {
			var err error
			results[i], err = a.finishRun(r, a.write(r.context(gctx), r))
			if err != nil {
				return domainerrors.AddContext(err, "module", r.req.ModuleName)
			}
			return nil
		})
	}
	return results, g.Wait()
}

func checkOutputConflicts(reqs []ports.GenerateRequest) error {
	owners := make(map[string]string, len(reqs))
	for _, req := range reqs {
		out := filepath.Clean(req.Out)
		if prev, ok := owners[out]; ok {
			return domainerrors.WithStage(domainerrors.New(domainerrors.CodeValidationError,
				fmt.Sprintf("modules %q and %q write the same output %q", prev, req.ModuleName, req.Out)),
				domainerrors.StageConfig)
		}
		owners[out] = req.ModuleName
	}
	return nil
}

// checkArtifactConflicts compares the paths every rendered artifact will be
// written to. A submodule file of one request can land on another request's
// main output.
func checkArtifactConflicts(runs []*pipelineRun) error {
	owners := make(map[string]string)
	for _, r := range runs {
		for _, art := range r.rendered.Artifacts {
			path := filepath.Clean(output.ArtifactPath(r.req.Out, art))
			if prev, ok := owners[path]; ok {
				e := domainerrors.New(domainerrors.CodeValidationError,
					fmt.Sprintf("modules %q and %q write the same output %q", prev, r.req.ModuleName, path))
				e = domainerrors.AddContext(e, domainerrors.CtxFile, path)
				return domainerrors.WithStage(e, domainerrors.StageEmit)
			}
			owners[path] = r.req.ModuleName
		}
	}
	return nil
}
