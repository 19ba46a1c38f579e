package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	coreapp "wrapgen/internal/core/app"
	"wrapgen/internal/core/config"
	"wrapgen/internal/core/ports"
	"wrapgen/internal/data/history"
	"wrapgen/internal/shared/observability"
	"wrapgen/internal/shared/util"
	"wrapgen/internal/ui/report"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func Run(args []string) int {
	return run(args, os.Stdout, os.Stderr)
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseOptions(args, stderr)
	if err != nil {
		return exitUsage
	}

	if opts.version {
		fmt.Fprintf(stdout, "wrapgen v%s\n", versionString)
		return exitOK
	}

	configureLogging(stderr, opts.verbose)

	cfgPath, cfg, err := loadConfig(opts.configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return exitError
	}
	applyFlagOverrides(opts, cfg)

	if opts.showHistory {
		return printHistory(cfg, opts.historyLimit, stdout)
	}

	reqs := coreapp.Requests(cfg)
	if err := validateRequests(reqs); err != nil {
		fmt.Fprintln(stderr, err.Error())
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{
		Enabled:  cfg.Observability.EnableTracing,
		Endpoint: cfg.Observability.OTLPEndpoint,
		Insecure: cfg.Observability.OTLPInsecure,
	})
	if err != nil {
		slog.Error("failed to set up tracing", "error", err)
		return exitError
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("tracing shutdown failed", "error", err)
		}
	}()

	deps := coreapp.Dependencies{}
	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			slog.Error("failed to open history", "path", cfg.History.Path, "error", err)
			return exitError
		}
		defer store.Close()
		deps.History = history.NewAdapter(store)
	}

	app, err := coreapp.NewWithDependencies(cfg, deps)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		return exitError
	}

	start := time.Now()
	results, err := app.GenerationService().GenerateAll(ctx, reqs)
	fmt.Fprint(stdout, formatSummary(results, err, time.Since(start)))
	writeMetricsFile(cfg.Observability.MetricsFile)
	writeSARIFFile(cfg.Output.SARIF, results, err)

	if !opts.watch && !cfg.Watch.Enabled {
		if err != nil {
			return exitError
		}
		return exitOK
	}

	return runWatch(ctx, app, cfg, cfgPath, opts, stdout)
}

func runWatch(ctx context.Context, app *coreapp.App, cfg *config.Config, cfgPath string, opts cliOptions, stdout io.Writer) int {
	health := newHealthState()
	if addr := strings.TrimSpace(cfg.Observability.MetricsAddr); addr != "" {
		server := NewObservabilityServer(addr, health)
		if err := server.Start(ctx); err != nil {
			slog.Error("failed to start observability server", "error", err)
			return exitError
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Stop(stopCtx)
		}()
	}

	app.SetUpdateHandler(func(u coreapp.Update) {
		health.record(u)
		fmt.Fprint(stdout, formatSummary(u.Results, u.Err, 0))
		writeMetricsFile(app.Config.Observability.MetricsFile)
		writeSARIFFile(app.Config.Output.SARIF, u.Results, u.Err)
	})

	// The config file is re-read on every change so edits take effect
	// without a restart. The watched set stays the one from startup.
	plan := func() ([]ports.GenerateRequest, error) {
		if cfgPath == "" {
			return coreapp.Requests(cfg), nil
		}
		next, err := config.Load(cfgPath)
		if err != nil {
			return nil, err
		}
		applyFlagOverrides(opts, next)
		reqs := coreapp.Requests(next)
		return reqs, validateRequests(reqs)
	}

	var extra []string
	if cfgPath != "" {
		extra = append(extra, cfgPath)
	}
	if err := app.Watch(ctx, plan, extra...); err != nil {
		slog.Error("watch failed", "error", err)
		return exitError
	}
	return exitOK
}

// loadConfig reads the explicit config path, or wrapgen.toml in the working
// directory when it exists. Without either, defaults are used and the
// returned path is empty.
func loadConfig(path string) (string, *config.Config, error) {
	if strings.TrimSpace(path) == "" {
		if _, err := os.Stat(config.DefaultFile); err != nil {
			cfg, err := config.Parse("")
			return "", cfg, err
		}
		path = config.DefaultFile
	}
	cfg, err := config.Load(path)
	return path, cfg, err
}

// applyFlagOverrides lets explicitly given flags win over the config file.
func applyFlagOverrides(opts cliOptions, cfg *config.Config) {
	if opts.set["src"] {
		cfg.Input.Sources = util.SplitList(opts.src, ";")
	}
	if opts.set["module_name"] {
		cfg.Module.Name = opts.moduleName
		if !opts.set["out"] && cfg.Output.Path == "" {
			cfg.Output.Path = opts.moduleName + ".cpp"
		}
	}
	if opts.set["out"] {
		cfg.Output.Path = opts.out
	}
	if opts.set["use-boost-serialization"] {
		cfg.Module.Serialization = opts.serialization
	}
	if opts.set["top_module_namespaces"] {
		cfg.Module.Namespace = opts.topNamespaces
	}
	if opts.set["ignore"] {
		cfg.Input.Ignore = util.Dedupe(opts.ignore)
	}
	if opts.set["template"] {
		cfg.Module.Template = opts.templatePath
	}
	if opts.set["is_submodule"] {
		cfg.Module.Submodule = opts.isSubmodule
	}
	if opts.set["xml_source"] {
		cfg.Docs.XMLSource = opts.xmlSource
	}
	if opts.set["metrics-file"] {
		cfg.Observability.MetricsFile = opts.metricsFile
	}
	if opts.set["sarif"] {
		cfg.Output.SARIF = opts.sarifFile
	}
	if opts.set["record-history"] {
		cfg.History.Enabled = opts.recordHistory
	}
}

func validateRequests(reqs []ports.GenerateRequest) error {
	if len(reqs) == 0 {
		return errors.New("no interface files: pass --src or set input.sources in the config")
	}
	for _, req := range reqs {
		if req.ModuleName == "" {
			return errors.New("no module name: pass --module_name or set module.name in the config")
		}
		if req.Out == "" {
			return fmt.Errorf("module %q has no output path: pass --out or set output.path", req.ModuleName)
		}
	}
	return nil
}

func writeMetricsFile(path string) {
	if strings.TrimSpace(path) == "" {
		return
	}
	if err := observability.WriteMetrics(path); err != nil {
		slog.Warn("failed to write metrics file", "path", path, "error", err)
	}
}

func writeSARIFFile(path string, results []ports.GenerateResult, runErr error) {
	if strings.TrimSpace(path) == "" {
		return
	}
	if err := report.WriteSARIF(path, versionString, results, runErr); err != nil {
		slog.Warn("failed to write sarif report", "path", path, "error", err)
	}
}

func configureLogging(w io.Writer, verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
}
