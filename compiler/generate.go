// Package compiler runs code generation: it wires the enabled target
// emitters into the generation pipeline of package gen.
package compiler

import (
	"context"

	"github.com/syssam/hubgen/compiler/gen"
	"github.com/syssam/hubgen/compiler/gen/graphql"
	"github.com/syssam/hubgen/compiler/gen/infra"
	"github.com/syssam/hubgen/compiler/gen/mapping"
	"github.com/syssam/hubgen/compiler/gen/model"
)

// Option configures a Generate call.
type Option func(*options)

type options struct {
	emitters []gen.Emitter
}

// Emitters adds emitters that run after the built-in ones. Their artifacts
// go through the same writer, so they must carry the configured header.
func Emitters(ems ...gen.Emitter) Option {
	return func(o *options) {
		o.emitters = append(o.emitters, ems...)
	}
}

var builtin = map[string]func(*gen.Config) gen.Emitter{
	gen.TargetGoModels.Name:         func(c *gen.Config) gen.Emitter { return model.NewGo(c) },
	gen.TargetTypeScriptModels.Name: func(c *gen.Config) gen.Emitter { return model.NewTypeScript(c) },
	gen.TargetPythonModels.Name:     func(c *gen.Config) gen.Emitter { return model.NewPython(c) },
	gen.TargetAPI.Name:              func(c *gen.Config) gen.Emitter { return graphql.New(c) },
	gen.TargetMapping.Name:          func(c *gen.Config) gen.Emitter { return mapping.New(c) },
	gen.TargetInfra.Name:            func(c *gen.Config) gen.Emitter { return infra.New(c) },
}

// NewEmitters returns the emitters of the enabled targets, in target order.
func NewEmitters(cfg *gen.Config) []gen.Emitter {
	ems := make([]gen.Emitter, 0, len(cfg.Targets))
	for _, t := range cfg.Targets {
		if newEmitter, ok := builtin[t.Name]; ok {
			ems = append(ems, newEmitter(cfg))
		}
	}
	return ems
}

// Generate loads the schema documents under cfg.SchemaDir and renders the
// enabled targets into cfg.Output.
//
//	cfg, err := gen.NewConfig(gen.WithSchemaDir("./schema"), gen.WithOutput("./generated"))
//	if err != nil {
//		return err
//	}
//	report, err := compiler.Generate(ctx, cfg)
//
// Failures of single entities or targets are reported as diagnostics of
// the returned report; the error is only set when the run itself fails.
func Generate(ctx context.Context, cfg *gen.Config, opts ...Option) (*gen.Report, error) {
	if cfg == nil {
		return nil, gen.NewConfigError("Config", nil, "configuration is required")
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	ems := append(NewEmitters(cfg), o.emitters...)
	return gen.NewProcessor(cfg, ems...).Run(ctx)
}
