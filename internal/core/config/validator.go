package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gobwas/glob"

	domainerrors "wrapgen/internal/core/errors"
	"wrapgen/internal/shared/util"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validate(cfg *Config) error {
	errs := Validate(cfg)
	if len(errs) == 0 {
		return nil
	}
	return domainerrors.WithStage(
		domainerrors.Wrap(errors.Join(errs...), domainerrors.CodeValidationError, "invalid config"),
		domainerrors.StageConfig)
}

// Validate reports every problem in cfg rather than stopping at the first.
func Validate(cfg *Config) []error {
	var errs []error
	if cfg.Module.Name != "" && !identifier.MatchString(cfg.Module.Name) {
		errs = append(errs, fmt.Errorf("module.name %q is not a valid identifier", cfg.Module.Name))
	}
	if err := validateNamespace("module.namespace", cfg.Module.Namespace); err != nil {
		errs = append(errs, err)
	}
	for i, pattern := range cfg.Input.Ignore {
		if _, err := glob.Compile(pattern, ':'); err != nil {
			errs = append(errs, fmt.Errorf("input.ignore[%d] %q: %v", i, pattern, err))
		}
	}
	for i, pattern := range cfg.Watch.Exclude {
		if _, err := glob.Compile(util.NormalizePatternPath(pattern), '/'); err != nil {
			errs = append(errs, fmt.Errorf("watch.exclude[%d] %q: %v", i, pattern, err))
		}
	}
	if cfg.Watch.Debounce < 0 {
		errs = append(errs, fmt.Errorf("watch.debounce must not be negative, got %v", cfg.Watch.Debounce))
	}
	if cfg.Watch.Rate < 0 {
		errs = append(errs, fmt.Errorf("watch.rate must not be negative, got %v", cfg.Watch.Rate))
	}
	errs = append(errs, validateSubmodules(cfg)...)
	return errs
}

func validateNamespace(field, ns string) error {
	if ns == "" {
		return nil
	}
	for _, seg := range strings.Split(ns, "::") {
		if !identifier.MatchString(seg) {
			return fmt.Errorf("%s %q has an invalid segment %q", field, ns, seg)
		}
	}
	return nil
}

func validateSubmodules(cfg *Config) []error {
	var errs []error
	names := make(map[string]bool, len(cfg.Submodules))
	outs := map[string]string{}
	if cfg.Output.Path != "" {
		outs[cfg.Output.Path] = "output.path"
	}
	for i, sub := range cfg.Submodules {
		ref := fmt.Sprintf("submodules[%d]", i)
		switch {
		case sub.Name == "":
			errs = append(errs, fmt.Errorf("%s.name must not be empty", ref))
		case !identifier.MatchString(sub.Name):
			errs = append(errs, fmt.Errorf("%s.name %q is not a valid identifier", ref, sub.Name))
		case names[sub.Name]:
			errs = append(errs, fmt.Errorf("duplicate submodule name %q", sub.Name))
		}
		names[sub.Name] = true
		if len(sub.Sources) == 0 {
			errs = append(errs, fmt.Errorf("%s.sources must not be empty", ref))
		}
		if err := validateNamespace(ref+".namespace", sub.Namespace); err != nil {
			errs = append(errs, err)
		}
		if sub.Out == "" {
			errs = append(errs, fmt.Errorf("%s.out must not be empty", ref))
			continue
		}
		if prev, ok := outs[sub.Out]; ok {
			errs = append(errs, fmt.Errorf("output conflict: %s and %s.out share the same path %q", prev, ref, sub.Out))
			continue
		}
		outs[sub.Out] = ref + ".out"
	}
	return errs
}
