// Package config reads hubgen.yaml project files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/syssam/hubgen/compiler/gen"
)

// DefaultFile is the project file looked up when no path is given.
const DefaultFile = "hubgen.yaml"

// File is the decoded project file. Unset fields keep the engine defaults.
type File struct {
	SchemaDir  string     `yaml:"schemaDir"`
	Output     string     `yaml:"output"`
	Targets    []string   `yaml:"targets"`
	GoPackage  string     `yaml:"goPackage"`
	Workers    int        `yaml:"workers"`
	Header     string     `yaml:"header"`
	Collisions Collisions `yaml:"collisions"`
	Surfaces   []Surface  `yaml:"surfaces"`

	// dir is the directory relative paths are resolved against.
	dir string
}

// Collisions holds the collision policy per operation origin.
type Collisions struct {
	Derived  string `yaml:"derived"`
	Declared string `yaml:"declared"`
}

// Surface is a named API surface.
type Surface struct {
	Name       string   `yaml:"name"`
	AuthMode   string   `yaml:"authMode"`
	Operations []string `yaml:"operations"`
	Auth       []Auth   `yaml:"auth"`
}

// Auth is a surface authorization directive.
type Auth struct {
	Provider string   `yaml:"provider"`
	Groups   []string `yaml:"groups"`
}

// Load reads the project file at path. A missing DefaultFile is not an
// error: it yields an empty File resolved against the working directory.
func Load(path string) (*File, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	buf, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		return &File{dir: "."}, nil
	case err != nil:
		return nil, gen.NewConfigError("File", path, err.Error())
	}
	f, err := Parse(buf)
	if err != nil {
		return nil, gen.NewConfigError("File", path, err.Error())
	}
	f.dir = filepath.Dir(path)
	return f, nil
}

// Parse decodes a project file. Unknown keys are rejected.
func Parse(buf []byte) (*File, error) {
	f := &File{dir: "."}
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return f, nil
}

// Options converts the file into configuration options. Relative
// directories are resolved against the directory of the file.
func (f *File) Options() ([]gen.Option, error) {
	var opts []gen.Option
	if f.SchemaDir != "" {
		opts = append(opts, gen.WithSchemaDir(f.resolve(f.SchemaDir)))
	}
	if f.Output != "" {
		opts = append(opts, gen.WithOutput(f.resolve(f.Output)))
	}
	if len(f.Targets) > 0 {
		opts = append(opts, gen.WithTargets(f.Targets...))
	}
	if f.GoPackage != "" {
		opts = append(opts, gen.WithGoPackage(f.GoPackage))
	}
	if f.Workers != 0 {
		opts = append(opts, gen.WithWorkers(f.Workers))
	}
	if f.Header != "" {
		opts = append(opts, gen.WithHeader(f.Header))
	}
	var errs []error
	for _, c := range []struct {
		origin gen.Origin
		policy string
	}{{gen.Derived, f.Collisions.Derived}, {gen.Declared, f.Collisions.Declared}} {
		origin, s := c.origin, c.policy
		if s == "" {
			continue
		}
		p, err := gen.ParseCollisionPolicy(s)
		if err != nil {
			errs = append(errs, gen.NewConfigError("Collisions", s, fmt.Sprintf("%s operations: %v", origin, err)))
			continue
		}
		opts = append(opts, gen.WithCollisionPolicy(origin, p))
	}
	if len(f.Surfaces) > 0 {
		surfaces := make([]gen.Surface, len(f.Surfaces))
		for i, s := range f.Surfaces {
			surfaces[i] = s.surface()
		}
		opts = append(opts, gen.WithSurfaces(surfaces...))
	}
	return opts, errors.Join(errs...)
}

// Config builds the configuration of the file. Extra options are applied
// last, so they override the file.
func (f *File) Config(extra ...gen.Option) (*gen.Config, error) {
	opts, err := f.Options()
	if err != nil {
		return nil, err
	}
	return gen.NewConfig(append(opts, extra...)...)
}

func (f *File) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(f.dir, p)
}

func (s Surface) surface() gen.Surface {
	gs := gen.Surface{
		Name:       s.Name,
		AuthMode:   gen.AuthProvider(s.AuthMode),
		Operations: s.Operations,
	}
	if s.Auth != nil {
		gs.Auth = make([]gen.AuthDirective, len(s.Auth))
		for i, a := range s.Auth {
			gs.Auth[i] = gen.AuthDirective{Provider: gen.AuthProvider(a.Provider), Groups: a.Groups}
		}
	}
	return gs
}
