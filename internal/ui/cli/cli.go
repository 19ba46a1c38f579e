package cli

import (
	"flag"
	"io"
	"strings"
)

const versionString = "1.0.0"

type cliOptions struct {
	configPath    string
	src           string
	moduleName    string
	out           string
	serialization bool
	topNamespaces string
	ignore        listFlag
	templatePath  string
	isSubmodule   bool
	xmlSource     string
	watch         bool
	metricsFile   string
	sarifFile     string
	recordHistory bool
	showHistory   bool
	historyLimit  int
	verbose       bool
	version       bool

	// set records the flags given explicitly, so only those override the
	// config file.
	set map[string]bool
}

// listFlag collects repeated occurrences; each value may itself hold
// several space-separated entries.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, " ") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, strings.Fields(v)...)
	return nil
}

// multiValueFlags accept several values after one flag, as in
// "--ignore a::B a::C --out x.cpp".
var multiValueFlags = map[string]bool{"ignore": true}

func parseOptions(args []string, stderr io.Writer) (cliOptions, error) {
	opts := cliOptions{set: make(map[string]bool)}
	fs := flag.NewFlagSet("wrapgen", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.configPath, "config", "", "Path to config file (default ./wrapgen.toml when present)")
	fs.StringVar(&opts.src, "src", "", "Interface files to parse, separated by ';'")
	fs.StringVar(&opts.moduleName, "module_name", "", "Name of the Python module to be generated")
	fs.StringVar(&opts.out, "out", "", "Output C++ file")
	fs.BoolVar(&opts.serialization, "use-boost-serialization", false, "Enable Boost serialization and pickling")
	fs.StringVar(&opts.topNamespaces, "top_module_namespaces", "", "C++ namespace for the top module, e.g. ns1::ns2::ns3")
	fs.Var(&opts.ignore, "ignore", "Classes or functions to ignore, fully qualified; accepts several values")
	fs.StringVar(&opts.templatePath, "template", "", "Module template: a .tmpl Go template or a {placeholder} file")
	fs.BoolVar(&opts.isSubmodule, "is_submodule", false, "Emit one artifact per submodule")
	fs.StringVar(&opts.xmlSource, "xml_source", "", "Doxygen XML directory used for docstrings")
	fs.BoolVar(&opts.watch, "watch", false, "Regenerate whenever an input changes")
	fs.StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus text metrics to this path after each run")
	fs.StringVar(&opts.sarifFile, "sarif", "", "Write a SARIF diagnostics report to this path after each run")
	fs.BoolVar(&opts.recordHistory, "record-history", false, "Record every run in the history database")
	fs.BoolVar(&opts.showHistory, "history", false, "Print recent runs from the history database and exit")
	fs.IntVar(&opts.historyLimit, "history-limit", 20, "Number of runs printed by --history")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")

	if err := fs.Parse(expandMultiValueFlags(args)); err != nil {
		return cliOptions{}, err
	}
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })
	return opts, nil
}

// expandMultiValueFlags rewrites "--ignore a b" as "--ignore a --ignore b"
// so the standard flag parser sees one value per occurrence. A multi-value
// flag followed by no values is dropped.
func expandMultiValueFlags(args []string) []string {
	out := make([]string, 0, len(args))
	current, values := "", 0
	closeCurrent := func() {
		if current != "" && values == 0 {
			out = out[:len(out)-1]
		}
		current, values = "", 0
	}
	for i, arg := range args {
		if arg == "--" {
			closeCurrent()
			return append(out, args[i:]...)
		}
		if strings.HasPrefix(arg, "-") {
			closeCurrent()
			name := strings.TrimLeft(arg, "-")
			if eq := strings.IndexByte(name, '='); eq >= 0 {
				if multiValueFlags[name[:eq]] {
					current, values = name[:eq], 1
				}
				out = append(out, arg)
				continue
			}
			if multiValueFlags[name] {
				current = name
			}
			out = append(out, arg)
			continue
		}
		if current != "" {
			if values > 0 {
				out = append(out, "--"+current)
			}
			values++
		}
		out = append(out, arg)
	}
	closeCurrent()
	return out
}
