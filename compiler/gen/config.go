package gen

import (
	"runtime"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Marker identifies generated files. Files without it in their first
// MarkerWindow bytes are never overwritten.
const (
	Marker       = "Code generated by hubgen. DO NOT EDIT."
	MarkerWindow = 512
)

// Config holds the global codegen configuration. It is built once by
// NewConfig and must not be modified afterwards.
type Config struct {
	// SchemaDir is the directory searched recursively for schema documents.
	SchemaDir string

	// Output is the directory generated files are written to.
	Output string

	// Targets are the enabled targets, in AllTargets order.
	Targets []Target

	// Surfaces are the named API surfaces. The combined surface is always
	// rendered in addition.
	Surfaces []Surface

	// Collisions settles operations sharing a canonical signature.
	Collisions CollisionPolicies

	// Workers bounds the number of entities processed concurrently.
	Workers int

	// GoPackage is the package name of generated Go models.
	GoPackage string

	// Header is the generated-file marker written to and detected in
	// output files.
	Header string

	// Check reports drift instead of writing files.
	Check bool

	// Logger receives structured progress logs.
	Logger *zap.Logger

	// Registerer receives the run metrics. Nil uses a private registry.
	Registerer prometheus.Registerer
}

func defaultConfig() *Config {
	return &Config{
		SchemaDir: "schema",
		Output:    "generated",
		Targets:   slices.Clone(AllTargets),
		Workers:   runtime.GOMAXPROCS(0),
		GoPackage: "models",
		Header:    Marker,
		Logger:    zap.NewNop(),
	}
}

// Enabled reports whether the named target is enabled.
func (c *Config) Enabled(name string) bool {
	return slices.ContainsFunc(c.Targets, func(t Target) bool { return t.Name == name })
}

// AllSurfaces returns the combined surface followed by the configured ones.
func (c *Config) AllSurfaces() []Surface {
	return append([]Surface{Combined()}, c.Surfaces...)
}
