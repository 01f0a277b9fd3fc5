package gen

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure cases.
var (
	// ErrInvalidSchema indicates a schema definition error.
	ErrInvalidSchema = errors.New("hubgen: invalid schema")
	// ErrMissingConfig indicates a configuration error.
	ErrMissingConfig = errors.New("hubgen: missing configuration")
	// ErrGenerationFailed indicates a code generation failure.
	ErrGenerationFailed = errors.New("hubgen: code generation failed")
	// ErrWriteConflict indicates a file that is not owned by the generator.
	ErrWriteConflict = errors.New("hubgen: write conflict")
	// ErrDrift indicates generated output that differs from the files on disk.
	ErrDrift = errors.New("hubgen: generated output drifted")
	// ErrUnsupportedFamily indicates a storage family a target cannot render.
	ErrUnsupportedFamily = errors.New("hubgen: unsupported storage family")
)

// SchemaError represents a schema definition error.
type SchemaError struct {
	Entity  string // Entity name
	Field   string // Attribute, index or operation name (if applicable)
	Pos     Pos
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString("hubgen: schema error")
	if p := e.Pos.String(); p != "" {
		b.WriteString(" at ")
		b.WriteString(p)
	}
	if e.Entity != "" {
		b.WriteString(" on entity ")
		b.WriteString(e.Entity)
	}
	if e.Field != "" {
		b.WriteString(" field ")
		b.WriteString(e.Field)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *SchemaError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches the sentinel error for SchemaError.
func (e *SchemaError) Is(target error) bool {
	return target == ErrInvalidSchema
}

// NewSchemaError creates a new SchemaError.
func NewSchemaError(entity, field string, pos Pos, message string, cause error) *SchemaError {
	return &SchemaError{
		Entity:  entity,
		Field:   field,
		Pos:     pos,
		Message: message,
		Cause:   cause,
	}
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Option  string
	Value   any
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("hubgen: config error for %q (value: %v): %s", e.Option, e.Value, e.Message)
	}
	return fmt.Sprintf("hubgen: config error for %q: %s", e.Option, e.Message)
}

// Is reports whether the target matches the sentinel error for ConfigError.
func (e *ConfigError) Is(target error) bool {
	return target == ErrMissingConfig
}

// NewConfigError creates a new ConfigError.
func NewConfigError(option string, value any, message string) *ConfigError {
	return &ConfigError{
		Option:  option,
		Value:   value,
		Message: message,
	}
}

// GenerationError represents a code generation error.
type GenerationError struct {
	Target  string // "model:go", "api", "mapping", etc.
	Entity  string
	File    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	var b strings.Builder
	b.WriteString("hubgen: generation error")
	if e.Target != "" {
		b.WriteString(" in target ")
		b.WriteString(e.Target)
	}
	if e.Entity != "" {
		b.WriteString(" for ")
		b.WriteString(e.Entity)
	}
	if e.File != "" {
		b.WriteString(" (file: ")
		b.WriteString(e.File)
		b.WriteString(")")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches the sentinel error for GenerationError.
func (e *GenerationError) Is(target error) bool {
	return target == ErrGenerationFailed
}

// NewGenerationError creates a new GenerationError.
func NewGenerationError(target, entity, file, message string, cause error) *GenerationError {
	return &GenerationError{
		Target:  target,
		Entity:  entity,
		File:    file,
		Message: message,
		Cause:   cause,
	}
}

// WriteError represents a failure to write, or a refusal to overwrite,
// a generated file.
type WriteError struct {
	Path     string
	Conflict bool // the file exists and is not generated
	Cause    error
}

// Error implements the error interface.
func (e *WriteError) Error() string {
	var b strings.Builder
	b.WriteString("hubgen: write error")
	if e.Path != "" {
		b.WriteString(" on ")
		b.WriteString(e.Path)
	}
	if e.Conflict {
		b.WriteString(": file exists without the generated marker")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *WriteError) Unwrap() error {
	return e.Cause
}

// Is reports whether the error is a write conflict.
func (e *WriteError) Is(target error) bool {
	return e.Conflict && target == ErrWriteConflict
}

// NewWriteError creates a new WriteError.
func NewWriteError(path string, conflict bool, cause error) *WriteError {
	return &WriteError{
		Path:     path,
		Conflict: conflict,
		Cause:    cause,
	}
}

// DriftError reports a file whose content would change on regeneration.
type DriftError struct {
	Path  string
	Diff  string // unified diff from the current to the generated content
	Stale bool   // the file would be removed
}

// Error implements the error interface.
func (e *DriftError) Error() string {
	if e.Stale {
		return "hubgen: stale generated file " + e.Path
	}
	return "hubgen: drift in " + e.Path
}

// Is reports whether the target matches ErrDrift.
func (e *DriftError) Is(target error) bool {
	return target == ErrDrift
}

// IsSchemaError reports whether the error is a SchemaError.
func IsSchemaError(err error) bool {
	var schemaErr *SchemaError
	return errors.As(err, &schemaErr)
}

// IsConfigError reports whether the error is a ConfigError.
func IsConfigError(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr)
}

// IsGenerationError reports whether the error is a GenerationError.
func IsGenerationError(err error) bool {
	var genErr *GenerationError
	return errors.As(err, &genErr)
}

// IsWriteError reports whether the error is a WriteError.
func IsWriteError(err error) bool {
	var writeErr *WriteError
	return errors.As(err, &writeErr)
}
