package app

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"wrapgen/internal/core/config"
	"wrapgen/internal/core/ports"
	"wrapgen/internal/engine/parser"
)

// Update is delivered to the update handler after every watch-mode run.
type Update struct {
	Changed []string
	Results []ports.GenerateResult
	Err     error
}

type App struct {
	Config *config.Config

	docs        ports.DocsProvider
	history     ports.HistoryStore
	concurrency int

	fileContents  map[string][]byte
	fileContentMu sync.RWMutex

	updateMu sync.RWMutex
	onUpdate func(Update)
}

type Dependencies struct {
	// Docs overrides the Doxygen loader, mainly for tests.
	Docs ports.DocsProvider
	// History records every Generate call when set.
	History ports.HistoryStore
	// Concurrency bounds GenerateAll; zero uses GOMAXPROCS.
	Concurrency int
}

func New(cfg *config.Config) (*App, error) {
	return NewWithDependencies(cfg, Dependencies{})
}

func NewWithDependencies(cfg *config.Config, deps Dependencies) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	a := &App{
		Config:       cfg,
		docs:         deps.Docs,
		history:      deps.History,
		concurrency:  deps.Concurrency,
		fileContents: make(map[string][]byte),
	}
	if a.docs == nil {
		a.docs = newDocsCache()
	}
	if a.concurrency <= 0 {
		a.concurrency = runtime.GOMAXPROCS(0)
	}
	return a, nil
}

func (a *App) SetUpdateHandler(handler func(Update)) {
	a.updateMu.Lock()
	defer a.updateMu.Unlock()
	a.onUpdate = handler
}

func (a *App) emitUpdate(update Update) {
	a.updateMu.RLock()
	handler := a.onUpdate
	a.updateMu.RUnlock()
	if handler != nil {
		handler(update)
	}
}

// Requests expands the configuration into generation units: the main module
// followed by every [[submodules]] entry, which share the [module] settings.
func Requests(cfg *config.Config) []ports.GenerateRequest {
	base := ports.GenerateRequest{
		Sources:        cfg.Input.Sources,
		ModuleName:     cfg.Module.Name,
		Namespace:      SplitNamespace(cfg.Module.Namespace),
		TemplatePath:   cfg.Module.Template,
		Ignore:         cfg.Input.Ignore,
		Serialization:  cfg.Module.Serialization,
		Submodule:      cfg.Module.Submodule,
		XMLSource:      cfg.Docs.XMLSource,
		Out:            cfg.Output.Path,
		WriteIfChanged: cfg.Output.WriteIfChangedEnabled(),
	}
	var reqs []ports.GenerateRequest
	if len(base.Sources) > 0 {
		reqs = append(reqs, base)
	}
	for _, sub := range cfg.Submodules {
		req := base
		req.Sources = sub.Sources
		req.ModuleName = sub.Name
		req.Out = sub.Out
		if sub.Namespace != "" {
			req.Namespace = SplitNamespace(sub.Namespace)
		}
		reqs = append(reqs, req)
	}
	return reqs
}

// SplitNamespace turns "a::b" into its path. Empty input is the global
// namespace.
func SplitNamespace(ns string) []string {
	ns = strings.TrimSpace(ns)
	if ns == "" {
		return nil
	}
	return parser.SplitQualified(ns)
}

// WatchInputs lists every file or directory the requests read, without
// repeats.
func WatchInputs(reqs []ports.GenerateRequest) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if p == "" {
			return
		}
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, req := range reqs {
		for _, src := range req.Sources {
			add(src)
		}
		add(req.TemplatePath)
		add(req.XMLSource)
	}
	return out
}
