// # internal/ui/report/sarif.go
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	domainerrors "wrapgen/internal/core/errors"
	"wrapgen/internal/core/ports"
)

// SARIF v2.1.0 schema – see https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json

const (
	sarifSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
	sarifVersion = "2.1.0"
)

type sarifReport struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	ShortDescription sarifMessage           `json:"shortDescription"`
	DefaultConfig    sarifRuleDefaultConfig `json:"defaultConfiguration"`
}

type sarifRuleDefaultConfig struct {
	Level string `json:"level"`
}

type sarifResult struct {
	RuleID     string          `json:"ruleId"`
	Level      string          `json:"level"`
	Message    sarifMessage    `json:"message"`
	Locations  []sarifLocation `json:"locations,omitempty"`
	Properties map[string]any  `json:"properties,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation *sarifPhysicalLocation `json:"physicalLocation,omitempty"`
	LogicalLocations []sarifLogicalLocation `json:"logicalLocations,omitempty"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI       string `json:"uri"`
	URIBaseID string `json:"uriBaseId"`
}

type sarifRegion struct {
	StartLine int `json:"startLine,omitempty"`
}

type sarifLogicalLocation struct {
	FullyQualifiedName string `json:"fullyQualifiedName"`
}

type rule struct {
	id, name, text, level string
}

var rulesByCode = map[domainerrors.ErrorCode]rule{
	domainerrors.CodeSyntax:               {"WRAP001", "SyntaxError", "Interface file is not valid.", "error"},
	domainerrors.CodeUnresolvedNamespace:  {"WRAP002", "UnresolvedNamespace", "Requested namespace is not declared by the sources.", "error"},
	domainerrors.CodeTemplate:             {"WRAP003", "TemplateError", "Module template uses an unknown placeholder.", "error"},
	domainerrors.CodeBuild:                {"WRAP004", "BuildError", "Binding model could not be built.", "error"},
	domainerrors.CodeMissingDocumentation: {"WRAP005", "MissingDocumentation", "Bound symbol has no documentation entry.", "note"},
}

var otherRule = rule{"WRAP999", "GenerationError", "Generation failed.", "error"}

func ruleFor(code domainerrors.ErrorCode) rule {
	if r, ok := rulesByCode[code]; ok {
		return r
	}
	return otherRule
}

// GenerateSARIF turns a generation outcome into a SARIF v2.1.0 document:
// runErr becomes one error result and every documentation warning a note.
// File URIs are made relative to projectRoot.
func GenerateSARIF(projectRoot, toolVersion string, results []ports.GenerateResult, runErr error) ([]byte, error) {
	out := make([]sarifResult, 0)
	used := make(map[string]rule)

	if runErr != nil {
		var de *domainerrors.DomainError
		code := domainerrors.CodeInternal
		if errors.As(runErr, &de) {
			code = de.Code
		}
		r := ruleFor(code)
		used[r.id] = r
		out = append(out, resultFor(projectRoot, r, runErr.Error(), de))
	}

	for _, res := range results {
		for _, w := range res.Warnings {
			r := ruleFor(w.Code)
			used[r.id] = r
			result := resultFor(projectRoot, r, w.Message, w)
			if res.Module != "" {
				result.Properties = map[string]any{"module": res.Module}
			}
			out = append(out, result)
		}
	}

	report := sarifReport{
		Schema:  sarifSchema,
		Version: sarifVersion,
		Runs: []sarifRun{{
			Tool: sarifTool{Driver: sarifDriver{
				Name:    "wrapgen",
				Version: toolVersion,
				Rules:   sortedRules(used),
			}},
			Results: out,
		}},
	}
	return json.MarshalIndent(report, "", "  ")
}

// WriteSARIF renders the report and writes it to path.
func WriteSARIF(path, toolVersion string, results []ports.GenerateResult, runErr error) error {
	root, err := os.Getwd()
	if err != nil {
		root = ""
	}
	data, err := GenerateSARIF(root, toolVersion, results, runErr)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create sarif directory %q: %w", dir, err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func resultFor(projectRoot string, r rule, text string, de *domainerrors.DomainError) sarifResult {
	result := sarifResult{RuleID: r.id, Level: r.level, Message: sarifMessage{Text: text}}
	if de == nil {
		return result
	}
	var loc sarifLocation
	file, _ := de.Context[domainerrors.CtxFile].(string)
	if file == "" {
		file, _ = de.Context[domainerrors.CtxPath].(string)
	}
	if file != "" {
		loc.PhysicalLocation = &sarifPhysicalLocation{
			ArtifactLocation: sarifArtifactLocation{URI: relativeURI(projectRoot, file), URIBaseID: "%SRCROOT%"},
		}
		if line, ok := de.Context[domainerrors.CtxLine].(int); ok && line > 0 {
			loc.PhysicalLocation.Region = &sarifRegion{StartLine: line}
		}
	}
	if symbol, _ := de.Context[domainerrors.CtxSymbol].(string); symbol != "" {
		loc.LogicalLocations = []sarifLogicalLocation{{FullyQualifiedName: symbol}}
	}
	if loc.PhysicalLocation != nil || len(loc.LogicalLocations) > 0 {
		result.Locations = []sarifLocation{loc}
	}
	return result
}

func sortedRules(used map[string]rule) []sarifRule {
	ids := make([]string, 0, len(used))
	for id := range used {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	rules := make([]sarifRule, 0, len(ids))
	for _, id := range ids {
		r := used[id]
		rules = append(rules, sarifRule{
			ID:               r.id,
			Name:             r.name,
			ShortDescription: sarifMessage{Text: r.text},
			DefaultConfig:    sarifRuleDefaultConfig{Level: r.level},
		})
	}
	return rules
}

// relativeURI converts an absolute file path to a forward-slash relative URI
// anchored at projectRoot. If the path is already relative or projectRoot is
// empty, the original path (with forward slashes) is returned.
func relativeURI(projectRoot, filePath string) string {
	if projectRoot != "" && filepath.IsAbs(filePath) {
		if rel, err := filepath.Rel(projectRoot, filePath); err == nil {
			filePath = rel
		}
	}
	return filepath.ToSlash(filePath)
}
