package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"wrapgen/internal/shared/util"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: WRAPGEN_[SECTION]_[KEY] (e.g., WRAPGEN_MODULE_NAME). List values
// are separated by ';' or ','.
func ApplyEnvOverrides(cfg *Config) {
	// Module
	setEnvString(&cfg.Module.Name, "WRAPGEN_MODULE_NAME")
	setEnvString(&cfg.Module.Namespace, "WRAPGEN_MODULE_NAMESPACE")
	setEnvString(&cfg.Module.Template, "WRAPGEN_MODULE_TEMPLATE")
	setEnvBool(&cfg.Module.Serialization, "WRAPGEN_MODULE_SERIALIZATION")
	setEnvBool(&cfg.Module.Submodule, "WRAPGEN_MODULE_SUBMODULE")

	// Input
	setEnvList(&cfg.Input.Sources, "WRAPGEN_INPUT_SOURCES")
	setEnvList(&cfg.Input.Ignore, "WRAPGEN_INPUT_IGNORE")

	// Output
	setEnvString(&cfg.Output.Path, "WRAPGEN_OUTPUT_PATH")
	setEnvString(&cfg.Output.Dir, "WRAPGEN_OUTPUT_DIR")
	setEnvString(&cfg.Output.SARIF, "WRAPGEN_OUTPUT_SARIF")
	if val, ok := os.LookupEnv("WRAPGEN_OUTPUT_WRITE_IF_CHANGED"); ok {
		if b, err := strconv.ParseBool(strings.ToLower(val)); err == nil {
			slog.Debug("applying env override", "key", "WRAPGEN_OUTPUT_WRITE_IF_CHANGED", "value", val)
			cfg.Output.WriteIfChanged = &b
		}
	}

	// Docs
	setEnvString(&cfg.Docs.XMLSource, "WRAPGEN_DOCS_XML_SOURCE")

	// Watch
	setEnvBool(&cfg.Watch.Enabled, "WRAPGEN_WATCH_ENABLED")
	setEnvDuration(&cfg.Watch.Debounce, "WRAPGEN_WATCH_DEBOUNCE")
	setEnvDuration(&cfg.Watch.Rate, "WRAPGEN_WATCH_RATE")

	// Observability
	setEnvString(&cfg.Observability.MetricsFile, "WRAPGEN_OBSERVABILITY_METRICS_FILE")
	setEnvString(&cfg.Observability.MetricsAddr, "WRAPGEN_OBSERVABILITY_METRICS_ADDR")
	setEnvBool(&cfg.Observability.EnableTracing, "WRAPGEN_OBSERVABILITY_ENABLE_TRACING")
	setEnvString(&cfg.Observability.OTLPEndpoint, "WRAPGEN_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvBool(&cfg.Observability.OTLPInsecure, "WRAPGEN_OBSERVABILITY_OTLP_INSECURE")

	// History
	setEnvBool(&cfg.History.Enabled, "WRAPGEN_HISTORY_ENABLED")
	setEnvString(&cfg.History.Path, "WRAPGEN_HISTORY_PATH")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvList(target *[]string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = util.SplitList(val, ";,")
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
