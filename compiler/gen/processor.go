package gen

import (
	"cmp"
	"context"
	"errors"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/syssam/hubgen/compiler/load"
)

// Processor runs the generation pipeline: load, validate, build, emit and
// write each entity, then render graph-level artifacts.
type Processor struct {
	cfg      *Config
	emitters []Emitter
	log      *zap.Logger
	metrics  *Metrics
}

// NewProcessor creates a processor running the given emitters.
func NewProcessor(cfg *Config, emitters ...Emitter) *Processor {
	return &Processor{
		cfg:      cfg,
		emitters: emitters,
		log:      cfg.Logger,
		metrics:  NewMetrics(cfg.Registerer),
	}
}

// Metrics returns the run metrics.
func (p *Processor) Metrics() *Metrics { return p.metrics }

// entityRun is the mutable state of one entity within a run.
type entityRun struct {
	schema *load.Schema
	result EntityResult
	set    *OperationSet
	// ok holds the targets whose artifacts were all emitted and written.
	ok map[string]bool
}

func (r *entityRun) name() string { return r.result.Name }

// run is the state of one Run call.
type run struct {
	*Processor
	diags  *Diagnostics
	writer *Writer
	// graphOK holds the graph-level targets that rendered without error.
	graphOK sync.Map
	// known holds the entity names of this run, for pruning. Files of
	// unknown entities are only pruned when every document loaded.
	known    map[string]bool
	unloaded bool
}

// Run processes every schema document under the configured schema
// directory. Per-entity failures are reported as diagnostics; the returned
// error is only set for failures of the run itself, such as an unreadable
// schema directory or a cancelled context.
func (p *Processor) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	r := &run{
		Processor: p,
		diags:     &Diagnostics{},
		writer:    NewWriter(p.cfg),
		known:     make(map[string]bool),
	}
	paths, err := load.Discover(p.cfg.SchemaDir)
	if err != nil {
		return nil, NewConfigError("SchemaDir", p.cfg.SchemaDir, err.Error())
	}
	p.log.Info("generation started",
		zap.String("schemaDir", p.cfg.SchemaDir),
		zap.String("output", p.cfg.Output),
		zap.Int("documents", len(paths)),
		zap.Bool("check", p.cfg.Check),
	)
	runs, reg := r.load(paths)

	eg := &errgroup.Group{}
	eg.SetLimit(p.cfg.Workers)
	var cancelled error
	for _, er := range runs {
		if err := ctx.Err(); err != nil {
			cancelled = err
			break
		}
		if er.schema == nil {
			continue
		}
		eg.Go(func() error {
			r.entity(er, reg)
			return nil
		})
	}
	_ = eg.Wait()

	if cancelled == nil {
		r.graph(runs)
		r.finish(runs)
	}
	report := r.report(runs, start)
	if cancelled != nil {
		p.log.Warn("generation cancelled", zap.Error(cancelled))
		return report, cancelled
	}
	p.log.Info("generation finished",
		zap.Stringer("runId", report.RunID),
		zap.Int("entities", len(report.Entities)),
		zap.Int("diagnostics", len(report.Diagnostics)),
		zap.Int("written", report.Files.Written),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

// load parses every document and registers the declared entity names.
func (r *run) load(paths []string) ([]*entityRun, *Registry) {
	reg := NewRegistry()
	runs := make([]*entityRun, 0, len(paths))
	for _, path := range paths {
		er := &entityRun{ok: make(map[string]bool)}
		er.result.Path = path
		s, err := load.ReadFile(path)
		if err != nil {
			name := stem(path)
			er.result.Name = name
			er.result.State = StateFailed
			r.unloaded = true
			r.diags.Add(schemaDiagnostic(NewSchemaError(name, "", Pos{File: path}, "unparsable document", err)))
			r.log.Debug("entity state", zap.String("entity", name), zap.Stringer("state", StateFailed))
			runs = append(runs, er)
			continue
		}
		er.schema = s
		er.result.Name = s.Name
		if er.result.Name == "" {
			er.result.Name = stem(path)
		}
		if s.Name != "" {
			reg.Register(s.Name, path)
		}
		r.known[er.result.Name] = true
		r.transition(er, StateLoaded)
		runs = append(runs, er)
	}
	return runs, reg
}

func stem(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

func (r *run) transition(er *entityRun, s State) {
	er.result.State = s
	r.log.Debug("entity state", zap.String("entity", er.name()), zap.Stringer("state", s))
}

// entity runs the per-entity pipeline.
func (r *run) entity(er *entityRun, reg *Registry) {
	e, diags := NewEntity(er.schema, reg)
	r.diags.Add(diags...)
	r.transition(er, StateValidated)
	if e == nil {
		r.transition(er, StateFailed)
		return
	}
	set, diags := Build(e, r.cfg.Collisions)
	r.diags.Add(diags...)
	if slices.ContainsFunc(diags, Diagnostic.Fatal) {
		r.transition(er, StateFailed)
		return
	}
	er.set = set
	er.result.Operations = set.Names()
	r.transition(er, StateOperationsBuilt)

	type output struct {
		target string
		arts   []*Artifact
		err    error
	}
	outs := make([]output, len(r.emitters))
	var wg sync.WaitGroup
	for i, em := range r.emitters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			arts, err := emit(em, set)
			outs[i] = output{target: em.Target().Name, arts: arts, err: err}
		}()
	}
	wg.Wait()

	r.transition(er, StateEmitted)
	for _, o := range outs {
		if o.err != nil {
			r.log.Warn("emitter failed", zap.String("entity", e.Name), zap.String("target", o.target), zap.Error(o.err))
			r.diags.Add(emitDiagnostic(o.target, e.Name, o.err))
			er.result.FailedTargets = append(er.result.FailedTargets, o.target)
		}
	}
	if len(er.result.FailedTargets) > 0 {
		er.result.Partial = true
		r.transition(er, StatePartiallyEmitted)
	}
	for _, o := range outs {
		if o.err != nil {
			continue
		}
		if r.writeAll(o.arts) {
			er.ok[o.target] = true
		}
	}
	r.transition(er, StateWritten)
}

// writeAll writes artifacts, reporting failures. It reports whether every
// artifact was handled without a fatal diagnostic.
func (r *run) writeAll(arts []*Artifact) bool {
	ok := true
	for _, a := range arts {
		res, err := r.writer.Write(a)
		r.metrics.artifact(res)
		if err == nil {
			continue
		}
		d := r.writeDiagnostic(a, err)
		r.diags.Add(d)
		if d.Fatal() && !errors.Is(err, ErrDrift) {
			ok = false
		}
	}
	return ok
}

func (r *run) writeDiagnostic(a *Artifact, err error) Diagnostic {
	d := Diagnostic{Path: a.Path, Entity: a.Entity, Target: a.Target, Message: err.Error(), Err: err}
	var drift *DriftError
	switch {
	case errors.As(err, &drift):
		d.Code = CodeDrift
		if drift.Diff != "" {
			d.Message += "\n" + drift.Diff
		}
	case errors.Is(err, ErrWriteConflict):
		d.Code = CodeWriteConflict
	case IsGenerationError(err):
		d.Code = CodeEmit
	default:
		d.Code = CodeWrite
	}
	d.Severity = d.Code.Severity()
	return d
}

// graph runs the graph-level emitters over the entities whose operations
// were built, in sorted entity order. An entity is left out of the targets
// it failed; one that failed any API target is left out of all of them, so
// no schema field lacks its resolver.
func (r *run) graph(runs []*entityRun) {
	var built []*entityRun
	for _, er := range runs {
		if er.set != nil {
			built = append(built, er)
		}
	}
	slices.SortFunc(built, func(a, b *entityRun) int {
		return cmp.Or(cmp.Compare(a.name(), b.name()), cmp.Compare(a.result.Path, b.result.Path))
	})
	eg := &errgroup.Group{}
	eg.SetLimit(r.cfg.Workers)
	for _, em := range r.emitters {
		ge, ok := em.(GraphEmitter)
		if !ok {
			continue
		}
		target := ge.Target().Name
		var sets []*OperationSet
		for _, er := range built {
			failed := er.result.FailedTargets
			switch {
			case slices.Contains(failed, target):
			case servesAPI(target) && slices.ContainsFunc(failed, servesAPI):
				r.log.Warn("entity left out of api target",
					zap.String("entity", er.name()),
					zap.String("target", target),
					zap.Strings("failed", failed),
				)
			default:
				sets = append(sets, er.set)
			}
		}
		eg.Go(func() error {
			arts, err := emitGraph(ge, sets)
			ok := r.writeAll(arts)
			for _, e := range splitErrors(err) {
				r.log.Warn("graph emitter failed", zap.String("target", target), zap.Error(e))
				r.diags.Add(emitDiagnostic(target, "", e))
				ok = false
			}
			if ok {
				r.graphOK.Store(target, true)
			}
			return nil
		})
	}
	_ = eg.Wait()
}

// finish prunes stale files and writes the manifest.
func (r *run) finish(runs []*entityRun) {
	settled := make(map[[2]string]bool)
	for _, er := range runs {
		for t := range er.ok {
			settled[[2]string{er.name(), t}] = true
		}
	}
	_, errs := r.writer.Finish(func(entity, target string) bool {
		if !r.cfg.Enabled(target) {
			return true
		}
		if entity == "" {
			_, ok := r.graphOK.Load(target)
			return ok
		}
		if !r.known[entity] {
			return !r.unloaded
		}
		return settled[[2]string{entity, target}]
	})
	for _, err := range errs {
		d := Diagnostic{Message: err.Error(), Err: err}
		var (
			drift *DriftError
			we    *WriteError
		)
		switch {
		case errors.As(err, &drift):
			d.Code, d.Path = CodeDrift, drift.Path
		case errors.As(err, &we):
			d.Code, d.Path = CodeWrite, we.Path
		default:
			d.Code = CodeWrite
		}
		d.Severity = d.Code.Severity()
		r.diags.Add(d)
	}
}

func (r *run) report(runs []*entityRun, start time.Time) *Report {
	rep := &Report{
		RunID:       uuid.New(),
		Started:     start,
		Duration:    time.Since(start),
		Check:       r.cfg.Check,
		Entities:    make([]EntityResult, 0, len(runs)),
		Diagnostics: r.diags.List(),
		Files:       r.writer.Stats(),
	}
	if rep.Diagnostics == nil {
		rep.Diagnostics = []Diagnostic{}
	}
	for _, er := range runs {
		rep.Entities = append(rep.Entities, er.result)
		r.metrics.entity(er.result.State)
	}
	slices.SortFunc(rep.Entities, func(a, b EntityResult) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.Path, b.Path))
	})
	for _, d := range rep.Diagnostics {
		r.metrics.diagnostic(d)
	}
	r.metrics.duration.Set(rep.Duration.Seconds())
	return rep
}
