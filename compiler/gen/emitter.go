package gen

import (
	"errors"
	"fmt"
)

// Artifact is a rendered output file.
type Artifact struct {
	// Path relative to the output directory, slash separated.
	Path    string
	Content []byte
	// Entity that produced the artifact; empty for graph-level artifacts.
	Entity string
	// Target that produced the artifact.
	Target string
}

// Emitter renders the artifacts of one target for one entity.
// Emitters must not keep state between calls; Emit is called concurrently.
type Emitter interface {
	Target() Target
	Emit(set *OperationSet) ([]*Artifact, error)
}

// GraphEmitter is implemented by emitters that also render artifacts
// spanning all entities, such as combined schemas or index files. The sets
// are the entities whose Emit succeeded for this target, sorted by name.
// EmitGraph may return artifacts together with an error; the returned
// artifacts are written and the error is reported.
type GraphEmitter interface {
	Emitter
	EmitGraph(sets []*OperationSet) ([]*Artifact, error)
}

// emit calls em.Emit, recovering a panic into a GenerationError.
func emit(em Emitter, set *OperationSet) (arts []*Artifact, err error) {
	defer func() {
		if r := recover(); r != nil {
			arts = nil
			err = NewGenerationError(em.Target().Name, set.Entity.Name, "", fmt.Sprintf("emitter panic: %v", r), nil)
		}
	}()
	arts, err = em.Emit(set)
	if err != nil {
		return nil, err
	}
	for _, a := range arts {
		a.Entity, a.Target = set.Entity.Name, em.Target().Name
	}
	return arts, nil
}

// emitGraph calls ge.EmitGraph, recovering a panic into a GenerationError.
func emitGraph(ge GraphEmitter, sets []*OperationSet) (arts []*Artifact, err error) {
	defer func() {
		if r := recover(); r != nil {
			arts = nil
			err = NewGenerationError(ge.Target().Name, "", "", fmt.Sprintf("emitter panic: %v", r), nil)
		}
	}()
	arts, err = ge.EmitGraph(sets)
	for _, a := range arts {
		a.Entity, a.Target = "", ge.Target().Name
	}
	return arts, err
}

// splitErrors flattens joined errors.
func splitErrors(err error) []error {
	if err == nil {
		return nil
	}
	if u, ok := err.(interface{ Unwrap() []error }); ok {
		var out []error
		for _, e := range u.Unwrap() {
			out = append(out, splitErrors(e)...)
		}
		return out
	}
	return []error{err}
}

// emitDiagnostic converts an emitter error into an EmitError diagnostic.
func emitDiagnostic(target, entity string, err error) Diagnostic {
	d := Diagnostic{
		Code:     CodeEmit,
		Severity: SeverityFatal,
		Message:  err.Error(),
		Entity:   entity,
		Target:   target,
		Err:      err,
	}
	var ge *GenerationError
	if errors.As(err, &ge) {
		d.Path = ge.File
	}
	return d
}
