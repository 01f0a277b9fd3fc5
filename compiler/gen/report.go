package gen

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// State is the processing state of an entity.
type State int

// Entity states, in pipeline order. Failed is reached from Validated
// (or directly when the document cannot be loaded); PartiallyEmitted is
// reached from Emitted when a target failed.
const (
	StateLoaded State = iota
	StateValidated
	StateOperationsBuilt
	StateEmitted
	StatePartiallyEmitted
	StateWritten
	StateFailed
)

var stateNames = [...]string{"Loaded", "Validated", "OperationsBuilt", "Emitted", "PartiallyEmitted", "Written", "Failed"}

// String implements fmt.Stringer.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// EntityResult is the outcome of one entity.
type EntityResult struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	State State  `json:"state"`
	// Partial is set when the entity was written after a target failed.
	Partial    bool     `json:"partial,omitempty"`
	Operations []string `json:"operations,omitempty"`
	// FailedTargets lists the targets that failed for the entity.
	FailedTargets []string `json:"failedTargets,omitempty"`
}

// FileStats counts writer outcomes.
type FileStats struct {
	Written   int `json:"written"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
	Drifted   int `json:"drifted"`
	Pruned    int `json:"pruned"`
	Failed    int `json:"failed"`
}

// Report is the result of a generation run.
type Report struct {
	RunID       uuid.UUID      `json:"runId"`
	Started     time.Time      `json:"started"`
	Duration    time.Duration  `json:"duration"`
	Check       bool           `json:"check,omitempty"`
	Entities    []EntityResult `json:"entities"`
	Diagnostics []Diagnostic   `json:"diagnostics"`
	Files       FileStats      `json:"files"`
}

// HasFatal reports whether a fatal diagnostic was recorded.
func (r *Report) HasFatal() bool {
	for _, d := range r.Diagnostics {
		if d.Fatal() {
			return true
		}
	}
	return false
}

// ExitCode returns the process exit status for the run: 0 unless a fatal
// diagnostic was recorded.
func (r *Report) ExitCode() int {
	if r.HasFatal() {
		return 1
	}
	return 0
}

// Entity returns the result of the named entity.
func (r *Report) Entity(name string) (EntityResult, bool) {
	for _, e := range r.Entities {
		if e.Name == name {
			return e, true
		}
	}
	return EntityResult{}, false
}

// Count returns the number of diagnostics with the given code.
func (r *Report) Count(code Code) int {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Code == code {
			n++
		}
	}
	return n
}

// JSON renders the report.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
