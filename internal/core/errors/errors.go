package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type ErrorCode string

const (
	CodeSyntax               ErrorCode = "SYNTAX_ERROR"
	CodeUnresolvedNamespace  ErrorCode = "UNRESOLVED_NAMESPACE"
	CodeTemplate             ErrorCode = "TEMPLATE_ERROR"
	CodeBuild                ErrorCode = "BUILD_ERROR"
	CodeEmit                 ErrorCode = "EMIT_ERROR"
	CodeMissingDocumentation ErrorCode = "MISSING_DOCUMENTATION"
	CodeNotFound             ErrorCode = "NOT_FOUND"
	CodeValidationError      ErrorCode = "VALIDATION_ERROR"
	CodeInternal             ErrorCode = "INTERNAL_ERROR"
)

// Stage names the pipeline step that produced an error.
type Stage string

const (
	StageConfig  Stage = "config"
	StageParse   Stage = "parse"
	StageResolve Stage = "resolve"
	StageBuild   Stage = "build"
	StageEmit    Stage = "emit"
)

type DomainError struct {
	Code    ErrorCode
	Stage   Stage
	Message string
	Err     error
	Context map[string]interface{}
}

const (
	CtxPath      = "path"
	CtxFile      = "file"
	CtxLine      = "line"
	CtxOperation = "operation"
	CtxSymbol    = "symbol"
	CtxHint      = "hint"
)

func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s]", e.Code)
	if e.Stage != "" {
		msg += fmt.Sprintf(" stage=%s", e.Stage)
	}
	msg += " " + e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) > 0 {
		// Sorted so diagnostics are stable across runs.
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		msg += " {" + strings.Join(parts, " ") + "}"
	}
	return msg
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func New(code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg}
}

func Wrap(err error, code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg, Err: err}
}

// NewSyntaxError reports malformed interface text at file:line.
func NewSyntaxError(file string, line int, msg string) *DomainError {
	e := &DomainError{Code: CodeSyntax, Stage: StageParse, Message: msg}
	e.WithContext(CtxFile, file)
	if line > 0 {
		e.WithContext(CtxLine, line)
	}
	return e
}

// NewUnresolvedNamespaceError reports a namespace path that the parsed
// sources never declare. available is shown as a hint.
func NewUnresolvedNamespaceError(path string, available []string) *DomainError {
	e := &DomainError{
		Code:    CodeUnresolvedNamespace,
		Stage:   StageResolve,
		Message: fmt.Sprintf("namespace %q not found", path),
	}
	e.WithContext(CtxSymbol, path)
	if len(available) > 0 {
		e.WithContext(CtxHint, "available: "+strings.Join(available, ", "))
	}
	return e
}

// NewTemplateError reports a placeholder the binding model does not populate.
func NewTemplateError(template, placeholder string, err error) *DomainError {
	e := &DomainError{
		Code:    CodeTemplate,
		Stage:   StageEmit,
		Message: fmt.Sprintf("unknown placeholder %q", placeholder),
		Err:     err,
	}
	e.WithContext(CtxFile, template)
	return e
}

func NewBuildError(symbol, msg string) *DomainError {
	e := &DomainError{Code: CodeBuild, Stage: StageBuild, Message: msg}
	e.WithContext(CtxSymbol, symbol)
	return e
}

// MissingDocumentationWarning is never returned as a failure; it is logged
// and emission continues with an empty string.
func NewMissingDocumentationWarning(symbol string) *DomainError {
	e := &DomainError{
		Code:    CodeMissingDocumentation,
		Stage:   StageEmit,
		Message: "no documentation entry",
	}
	e.WithContext(CtxSymbol, symbol)
	return e
}

// WithStage tags err with stage unless it already carries one.
func WithStage(err error, stage Stage) error {
	if err == nil {
		return nil
	}
	var de *DomainError
	if errors.As(err, &de) {
		if de.Stage == "" {
			de.Stage = stage
		}
		return err
	}
	return &DomainError{Code: CodeInternal, Stage: stage, Message: "stage failed", Err: err}
}

// AddContext attaches key/value to the DomainError in err's chain, wrapping
// plain errors as internal ones.
func AddContext(err error, key string, value interface{}) error {
	var de *DomainError
	if errors.As(err, &de) {
		de.WithContext(key, value)
		return err
	}
	return &DomainError{
		Code:    CodeInternal,
		Message: "wrapped error",
		Err:     err,
		Context: map[string]interface{}{key: value},
	}
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

func StageOf(err error) Stage {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Stage
	}
	return ""
}

// CodeOf returns the code of the first DomainError in err's chain.
func CodeOf(err error) ErrorCode {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
