package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every wrapgen metric. It is separate from the default
// registry so textfile dumps contain only generator metrics.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

// Metrics definitions
var (
	StageDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wrapgen_stage_seconds",
		Help:    "Time spent in one pipeline stage.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	RunsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "wrapgen_runs_total",
		Help: "Pipeline runs by result.",
	}, []string{"result"})

	BoundSymbols = factory.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wrapgen_bound_symbols",
		Help: "Symbols in the last built binding model, by kind.",
	}, []string{"module", "kind"})

	OpaqueTypes = factory.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wrapgen_opaque_types",
		Help: "Referenced types with no declaration in the last run.",
	}, []string{"module"})

	MissingDocsTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "wrapgen_missing_documentation_total",
		Help: "Symbols rendered with an empty documentation string.",
	})

	ArtifactsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "wrapgen_artifacts_total",
		Help: "Output files handled, by outcome (written or unchanged).",
	}, []string{"outcome"})

	WatcherEventsTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "wrapgen_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	HeapAllocBytes = factory.NewGauge(prometheus.GaugeOpts{
		Name: "wrapgen_heap_alloc_bytes",
		Help: "Heap allocation sampled after the last run.",
	})
)

// ObserveStage records the time elapsed since start for stage.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// WriteMetrics dumps the registry in Prometheus text format, for the
// node_exporter textfile collector.
func WriteMetrics(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
