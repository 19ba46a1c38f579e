package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	domainerrors "wrapgen/internal/core/errors"
)

const (
	DefaultFile        = "wrapgen.toml"
	DefaultHistoryPath = ".wrapgen/history.db"
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		code := domainerrors.CodeInternal
		if errors.Is(err, os.ErrNotExist) {
			code = domainerrors.CodeNotFound
		}
		return nil, configError(domainerrors.Wrap(err, code, "read config"), path)
	}

	cfg, err := Parse(string(data))
	if err != nil {
		return nil, configError(err, path)
	}
	ResolvePaths(cfg, filepath.Dir(path))
	return cfg, nil
}

// Parse decodes, defaults and validates TOML text. Relative paths are left
// as written.
func Parse(text string) (*Config, error) {
	var cfg Config
	md, err := toml.Decode(text, &cfg)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeValidationError, "decode config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, domainerrors.New(domainerrors.CodeValidationError,
			"unknown config keys: "+strings.Join(keys, ", "))
	}

	ApplyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	normalize(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 300 * time.Millisecond
	}
	if cfg.Watch.Rate == 0 {
		cfg.Watch.Rate = time.Second
	}
	if len(cfg.Watch.Exclude) == 0 {
		cfg.Watch.Exclude = []string{"**/.git/**", "**/*.swp", "**/*~"}
	}
	if strings.TrimSpace(cfg.History.Path) == "" {
		cfg.History.Path = DefaultHistoryPath
	}
	if strings.TrimSpace(cfg.Output.Path) == "" && strings.TrimSpace(cfg.Module.Name) != "" {
		cfg.Output.Path = cfg.Module.Name + ".cpp"
	}
}

func normalize(cfg *Config) {
	cfg.Module.Name = strings.TrimSpace(cfg.Module.Name)
	cfg.Module.Namespace = strings.TrimSpace(cfg.Module.Namespace)
	cfg.Module.Template = strings.TrimSpace(cfg.Module.Template)
	cfg.Input.Sources = trimAll(cfg.Input.Sources)
	cfg.Input.Ignore = trimAll(cfg.Input.Ignore)
	cfg.Docs.XMLSource = strings.TrimSpace(cfg.Docs.XMLSource)
	cfg.History.Path = strings.TrimSpace(cfg.History.Path)
	for i := range cfg.Submodules {
		sub := &cfg.Submodules[i]
		sub.Name = strings.TrimSpace(sub.Name)
		sub.Namespace = strings.TrimSpace(sub.Namespace)
		sub.Out = strings.TrimSpace(sub.Out)
		sub.Sources = trimAll(sub.Sources)
	}
}

func trimAll(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func configError(err error, path string) error {
	return domainerrors.WithStage(domainerrors.AddContext(err, domainerrors.CtxPath, path), domainerrors.StageConfig)
}
