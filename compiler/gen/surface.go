package gen

import (
	"fmt"
	"path"
	"strings"
)

// CombinedSurface is the display name of the surface exposing every
// operation. It is used when no surfaces are configured.
const CombinedSurface = "hub"

// Surface is a named projection of the operation sets: an operation subset
// with its own authorization scheme.
type Surface struct {
	// Name of the surface. Empty for the combined surface.
	Name string
	// AuthMode is the default authorization provider of the API.
	AuthMode AuthProvider
	// Operations selects operations by pattern: "*", "Entity.*",
	// "Entity.OpName", "*.Kind" or an API field name.
	Operations []string
	// Auth replaces operation and type directives when not nil.
	Auth []AuthDirective
}

// Combined returns the surface exposing every operation.
func Combined() Surface {
	return Surface{Operations: []string{"*"}}
}

// IsCombined reports whether s is the combined surface.
func (s Surface) IsCombined() bool { return s.Name == "" }

// DisplayName returns the surface name used in diagnostics.
func (s Surface) DisplayName() string {
	if s.IsCombined() {
		return CombinedSurface
	}
	return s.Name
}

// SchemaPath returns the output path of the surface schema document.
func (s Surface) SchemaPath() string {
	if s.IsCombined() {
		return "graphql/schema.graphql"
	}
	return path.Join("graphql", s.Name, "schema.graphql")
}

// ConstructName returns the name of the API construct of the surface.
func (s Surface) ConstructName() string {
	return Pascal(s.DisplayName()) + "Api"
}

// Includes reports whether the surface exposes op.
func (s Surface) Includes(op *Operation) bool {
	for _, p := range s.Operations {
		if matchOperation(p, op) {
			return true
		}
	}
	return false
}

func matchOperation(pattern string, op *Operation) bool {
	if pattern == "*" {
		return true
	}
	entity, name, qualified := strings.Cut(pattern, ".")
	if !qualified {
		return pattern == op.Field
	}
	if entity != "*" && entity != op.Entity {
		return false
	}
	return name == "*" || name == op.Name || name == op.Field || name == op.Kind.String()
}

// Validate checks a configured surface.
func (s Surface) Validate() error {
	switch {
	case s.Name == "":
		return NewConfigError("Surfaces", nil, "surface name is required")
	case hasSeparator(s.Name):
		return NewConfigError("Surfaces", s.Name, "surface name must not contain separators")
	case !s.AuthMode.Valid():
		return NewConfigError("Surfaces", s.AuthMode, fmt.Sprintf("surface %s has an unknown auth mode", s.Name))
	case len(s.Operations) == 0:
		return NewConfigError("Surfaces", s.Name, "surface selects no operations")
	}
	for _, d := range s.Auth {
		if !d.Provider.Valid() {
			return NewConfigError("Surfaces", d.Provider, fmt.Sprintf("surface %s has an unknown auth provider", s.Name))
		}
	}
	return nil
}

// Providers returns the auth providers a surface directive list narrows
// field-level directives to. ok is false when the surface keeps directives.
func (s Surface) Providers() (map[AuthProvider]bool, bool) {
	if s.Auth == nil {
		return nil, false
	}
	m := make(map[AuthProvider]bool, len(s.Auth))
	for _, d := range s.Auth {
		m[d.Provider] = true
	}
	return m, true
}
