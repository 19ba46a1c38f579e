package config

import (
	"time"
)

// Config is the contents of a wrapgen.toml file. Every path is relative to
// the directory holding the file until Load resolves it.
type Config struct {
	Module        Module        `toml:"module"`
	Input         Input         `toml:"input"`
	Output        Output        `toml:"output"`
	Docs          Docs          `toml:"docs"`
	Submodules    []Submodule   `toml:"submodules"`
	Watch         Watch         `toml:"watch"`
	Observability Observability `toml:"observability"`
	History       History       `toml:"history"`
}

type Module struct {
	Name string `toml:"name"`
	// Namespace is the "::" separated path whose content becomes the top
	// level of the module. Empty selects the global namespace.
	Namespace     string `toml:"namespace"`
	Template      string `toml:"template"`
	Serialization bool   `toml:"serialization"`
	Submodule     bool   `toml:"submodule"`
}

type Input struct {
	Sources []string `toml:"sources"`
	Ignore  []string `toml:"ignore"`
}

type Output struct {
	Path string `toml:"path"`
	// Dir is where [[submodules]] entries with a relative out are written.
	Dir            string `toml:"dir"`
	WriteIfChanged *bool  `toml:"write_if_changed"`
	// SARIF, when set, receives a diagnostics report after every run.
	SARIF string `toml:"sarif"`
}

type Docs struct {
	XMLSource string `toml:"xml_source"`
}

// Submodule is an extra generation unit sharing the [module] settings.
type Submodule struct {
	Name      string   `toml:"name"`
	Namespace string   `toml:"namespace"`
	Sources   []string `toml:"sources"`
	Out       string   `toml:"out"`
}

type Watch struct {
	Enabled  bool          `toml:"enabled"`
	Debounce time.Duration `toml:"debounce"`
	// Rate is the minimum interval between two regenerations.
	Rate    time.Duration `toml:"rate"`
	Exclude []string      `toml:"exclude"`
}

type Observability struct {
	MetricsFile   string `toml:"metrics_file"`
	MetricsAddr   string `toml:"metrics_addr"`
	EnableTracing bool   `toml:"enable_tracing"`
	OTLPEndpoint  string `toml:"otlp_endpoint"`
	OTLPInsecure  bool   `toml:"otlp_insecure"`
}

// History records one row per generation run in a local SQLite file.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// WriteIfChangedEnabled reports whether unchanged outputs are left alone.
// Defaults to true.
func (o Output) WriteIfChangedEnabled() bool {
	return o.WriteIfChanged == nil || *o.WriteIfChanged
}
