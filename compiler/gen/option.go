package gen

import (
	"errors"
	"go/token"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures code generation.
type Option func(*Config) error

// WithHeader sets the generated-file marker.
// The marker is written at the top of each generated file and identifies
// files the generator may overwrite.
func WithHeader(header string) Option {
	return func(c *Config) error {
		if header == "" {
			return NewConfigError("Header", nil, "header cannot be empty")
		}
		c.Header = header
		return nil
	}
}

// WithSchemaDir sets the directory searched for schema documents.
func WithSchemaDir(dir string) Option {
	return func(c *Config) error {
		if dir == "" {
			return NewConfigError("SchemaDir", nil, "schema directory cannot be empty")
		}
		c.SchemaDir = dir
		return nil
	}
}

// WithOutput sets the output directory.
func WithOutput(dir string) Option {
	return func(c *Config) error {
		if dir == "" {
			return NewConfigError("Output", nil, "output directory cannot be empty")
		}
		c.Output = dir
		return nil
	}
}

// WithTargets enables the named targets only.
// Supported targets: model:go, model:typescript, model:python, api, mapping, infra.
func WithTargets(names ...string) Option {
	return func(c *Config) error {
		if len(names) == 0 {
			return NewConfigError("Targets", nil, "at least one target is required")
		}
		var targets []Target
		for _, n := range names {
			if _, ok := TargetByName(n); !ok {
				return NewConfigError("Targets", n, "unknown target")
			}
		}
		for _, t := range AllTargets {
			if slices.Contains(names, t.Name) {
				targets = append(targets, t)
			}
		}
		c.Targets = targets
		return nil
	}
}

// WithSurfaces adds named API surfaces.
func WithSurfaces(surfaces ...Surface) Option {
	return func(c *Config) error {
		for _, s := range surfaces {
			if err := s.Validate(); err != nil {
				return err
			}
			if slices.ContainsFunc(c.Surfaces, func(o Surface) bool { return o.Name == s.Name }) || s.Name == CombinedSurface {
				return NewConfigError("Surfaces", s.Name, "duplicate surface name")
			}
			c.Surfaces = append(c.Surfaces, s)
		}
		return nil
	}
}

// WithCollisionPolicy sets the collision policy for operations of the given
// origin.
func WithCollisionPolicy(origin Origin, p CollisionPolicy) Option {
	return func(c *Config) error {
		switch p {
		case KeepFirst, KeepLast, Reject:
		default:
			return NewConfigError("Collisions", p, "unknown collision policy")
		}
		if origin == Declared {
			c.Collisions.Declared = p
		} else {
			c.Collisions.Derived = p
		}
		return nil
	}
}

// WithWorkers sets the number of entities processed in parallel.
func WithWorkers(n int) Option {
	return func(c *Config) error {
		if n <= 0 {
			return NewConfigError("Workers", n, "workers must be positive")
		}
		c.Workers = n
		return nil
	}
}

// WithGoPackage sets the package name of generated Go models.
func WithGoPackage(pkg string) Option {
	return func(c *Config) error {
		if !token.IsIdentifier(pkg) {
			return NewConfigError("GoPackage", pkg, "package must be a Go identifier")
		}
		c.GoPackage = pkg
		return nil
	}
}

// WithCheck enables check mode: nothing is written and changed files are
// reported as drift.
func WithCheck(check bool) Option {
	return func(c *Config) error {
		c.Check = check
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) error {
		if l == nil {
			return NewConfigError("Logger", nil, "logger cannot be nil")
		}
		c.Logger = l
		return nil
	}
}

// WithRegisterer registers the run metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Config) error {
		c.Registerer = reg
		return nil
	}
}

// Apply applies options to the config.
// It returns the first error encountered.
func (c *Config) Apply(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return err
		}
	}
	return nil
}

// ApplyAll applies options and collects all errors.
// Returns a joined error if any options failed.
func (c *Config) ApplyAll(opts ...Option) error {
	var errs []error
	for _, opt := range opts {
		if err := opt(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewConfig creates a new Config with defaults and the given options.
func NewConfig(opts ...Option) (*Config, error) {
	c := defaultConfig()
	if err := c.Apply(opts...); err != nil {
		return nil, err
	}
	return c, nil
}

// MustNewConfig creates a new Config with the given options.
// It panics if any option fails.
func MustNewConfig(opts ...Option) *Config {
	c, err := NewConfig(opts...)
	if err != nil {
		panic(err)
	}
	return c
}
