package gen

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"sync"
)

// Severity of a diagnostic.
type Severity int

// Severity values.
const (
	SeverityWarning Severity = iota
	SeverityFatal
)

// String implements fmt.Stringer.
func (s Severity) String() string {
	if s == SeverityFatal {
		return "fatal"
	}
	return "warning"
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Code classifies a diagnostic.
type Code string

// Diagnostic codes.
const (
	CodeStructuralSchema   Code = "StructuralSchemaError"
	CodeConvention         Code = "ConventionWarning"
	CodeDuplicateOperation Code = "DuplicateOperationWarning"
	CodeEmit               Code = "EmitError"
	CodeWriteConflict      Code = "WriteConflictError"
	CodeDrift              Code = "DriftError"
	CodeWrite              Code = "WriteError"
)

// Severity returns the severity diagnostics of this code carry.
func (c Code) Severity() Severity {
	switch c {
	case CodeConvention, CodeDuplicateOperation, CodeWriteConflict:
		return SeverityWarning
	default:
		return SeverityFatal
	}
}

// Pos is a location in a schema document.
type Pos struct {
	File string
	Line int
}

// String returns "file:line", "file" or "".
func (p Pos) String() string {
	switch {
	case p.File == "":
		return ""
	case p.Line <= 0:
		return p.File
	default:
		return p.File + ":" + strconv.Itoa(p.Line)
	}
}

// Diagnostic is one finding of a generation run.
type Diagnostic struct {
	Code     Code     `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Path     string   `json:"path,omitempty"`
	Entity   string   `json:"entity,omitempty"`
	Target   string   `json:"target,omitempty"`
	// Err is the structured error behind the diagnostic, if any.
	Err error `json:"-"`
}

// Fatal reports whether the diagnostic fails the run.
func (d Diagnostic) Fatal() bool { return d.Severity == SeverityFatal }

// String implements fmt.Stringer.
func (d Diagnostic) String() string {
	loc := d.Path
	if loc == "" {
		loc = d.Entity
	}
	if loc == "" {
		return fmt.Sprintf("%s %s: %s", d.Severity, d.Code, d.Message)
	}
	return fmt.Sprintf("%s: %s %s: %s", loc, d.Severity, d.Code, d.Message)
}

// newDiagnostic creates a diagnostic with the default severity of its code.
func newDiagnostic(code Code, entity string, pos Pos, format string, args ...any) Diagnostic {
	return Diagnostic{
		Code:     code,
		Severity: code.Severity(),
		Message:  fmt.Sprintf(format, args...),
		Path:     pos.String(),
		Entity:   entity,
	}
}

// schemaDiagnostic wraps a SchemaError into a StructuralSchemaError diagnostic.
func schemaDiagnostic(err *SchemaError) Diagnostic {
	return Diagnostic{
		Code:     CodeStructuralSchema,
		Severity: SeverityFatal,
		Message:  err.Message,
		Path:     err.Pos.String(),
		Entity:   err.Entity,
		Err:      err,
	}
}

// Diagnostics collects diagnostics from concurrent stages.
type Diagnostics struct {
	mu   sync.Mutex
	list []Diagnostic
}

// Add records diagnostics.
func (d *Diagnostics) Add(ds ...Diagnostic) {
	if len(ds) == 0 {
		return
	}
	d.mu.Lock()
	d.list = append(d.list, ds...)
	d.mu.Unlock()
}

// HasFatal reports whether a fatal diagnostic was recorded.
func (d *Diagnostics) HasFatal() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.ContainsFunc(d.list, Diagnostic.Fatal)
}

// Len returns the number of recorded diagnostics.
func (d *Diagnostics) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.list)
}

// List returns the diagnostics sorted by path, entity and code. The sort is
// stable, so diagnostics of one stage keep their relative order.
func (d *Diagnostics) List() []Diagnostic {
	d.mu.Lock()
	list := slices.Clone(d.list)
	d.mu.Unlock()
	slices.SortStableFunc(list, func(a, b Diagnostic) int {
		return cmp.Or(
			cmp.Compare(a.Entity, b.Entity),
			comparePath(a.Path, b.Path),
			cmp.Compare(a.Target, b.Target),
			cmp.Compare(a.Code, b.Code),
		)
	})
	return list
}

// comparePath orders "file:line" paths numerically by line.
func comparePath(a, b string) int {
	af, al := splitPath(a)
	bf, bl := splitPath(b)
	return cmp.Or(cmp.Compare(af, bf), cmp.Compare(al, bl))
}

func splitPath(p string) (string, int) {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == ':' {
			if n, err := strconv.Atoi(p[i+1:]); err == nil {
				return p[:i], n
			}
			break
		}
	}
	return p, 0
}
