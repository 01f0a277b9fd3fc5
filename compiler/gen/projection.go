package gen

import (
	"errors"
	"fmt"
	"slices"
)

// providerOrder is the order additional auth modes are listed in.
var providerOrder = []AuthProvider{AuthAPIKey, AuthIAM, AuthUserPools, AuthOIDC, AuthLambda}

// Projection is the part of the operation sets one surface exposes, with
// its auth directives settled. Types are those reachable from the
// surface's operations only.
type Projection struct {
	Surface Surface
	// Mode is the default auth provider of the API.
	Mode AuthProvider
	// Modes are the other providers referenced by directives, in a fixed
	// order.
	Modes []AuthProvider
	// Operations in sorted entity order, then set order.
	Operations []*Operation
	Enums      []*EnumType
	Objects    []*ObjectType
	Inputs     []*InputType
	// Entities are the names of the entities with operations on the surface.
	Entities []string
}

// Queries returns the query operations.
func (p *Projection) Queries() []*Operation { return p.root(RootQuery) }

// Mutations returns the mutation operations.
func (p *Projection) Mutations() []*Operation { return p.root(RootMutation) }

func (p *Projection) root(r Root) []*Operation {
	var out []*Operation
	for _, op := range p.Operations {
		if op.Root == r {
			out = append(out, op)
		}
	}
	return out
}

// typeDef is a named type of the graph with the entity declaring it.
type typeDef struct {
	entity string
	object *ObjectType
	input  *InputType
	enum   *EnumType
}

// Project returns the projection of sets onto the surface. The sets must be
// sorted by entity name. The projection is always returned; the error
// reports what it leaves out. Type names declared by more than one entity
// with different shapes are reported and the first declaration is used.
// Operations reaching a type no entity declares, or a type their entity
// declares in conflict, are dropped and reported per entity.
func (s Surface) Project(sets []*OperationSet) (*Projection, error) {
	p := &Projection{Surface: s}
	var errs []error
	defs := make(map[string]*typeDef)
	// conflicts holds, per entity, the type names it declares differently
	// from an earlier entity.
	conflicts := make(map[string]map[string]bool)
	var order []string
	declare := func(name string, d *typeDef) {
		prev, ok := defs[name]
		if !ok {
			defs[name] = d
			order = append(order, name)
			return
		}
		if !sameShape(prev, d) {
			errs = append(errs, fmt.Errorf("type %s of %s conflicts with the type declared by %s", name, d.entity, prev.entity))
			if conflicts[d.entity] == nil {
				conflicts[d.entity] = make(map[string]bool)
			}
			conflicts[d.entity][name] = true
		}
	}
	for _, set := range sets {
		e := set.Entity.Name
		declare(set.Type.Name, &typeDef{entity: e, object: set.Type})
		for _, et := range set.Enums {
			declare(et.Name, &typeDef{entity: e, enum: et})
		}
		if set.Connection != nil {
			declare(set.Connection.Name, &typeDef{entity: e, object: set.Connection})
		}
		for _, env := range set.Envelopes {
			declare(env.Name, &typeDef{entity: e, object: env})
		}
		for _, in := range set.Inputs {
			declare(in.Name, &typeDef{entity: e, input: in})
		}
	}

	objects := make(map[string]*ObjectType)
	// closure returns the declared types reachable from the roots of an
	// entity's operation, and the reachable names that are not usable: not
	// declared by any entity, or declared by the entity in conflict.
	closure := func(entity string, roots []string) (names, missing []string) {
		seen := make(map[string]bool)
		var visit func(name string)
		visit = func(name string) {
			if seen[name] || IsScalar(name) {
				return
			}
			seen[name] = true
			d, ok := defs[name]
			if !ok || conflicts[entity][name] {
				missing = append(missing, name)
				return
			}
			names = append(names, name)
			switch {
			case d.object != nil:
				t, ok := objects[name]
				if !ok {
					t = s.projectObject(d.object)
					objects[name] = t
				}
				for _, f := range t.Fields {
					visit(f.Type.Name)
				}
			case d.input != nil:
				for _, f := range d.input.Fields {
					visit(f.Type.Name)
				}
			}
		}
		for _, r := range roots {
			visit(r)
		}
		return names, missing
	}

	reachable := make(map[string]bool)
	for _, set := range sets {
		var (
			included bool
			dropped  []string
			missing  []string
		)
		for _, op := range set.Operations() {
			if !s.Includes(op) {
				continue
			}
			roots := []string{op.Response}
			for _, a := range op.Args {
				roots = append(roots, a.Type.Name)
			}
			names, undeclared := closure(set.Entity.Name, roots)
			if len(undeclared) > 0 {
				dropped = append(dropped, op.Field)
				for _, m := range undeclared {
					if !slices.Contains(missing, m) {
						missing = append(missing, m)
					}
				}
				continue
			}
			included = true
			cp := *op
			cp.Auth = s.directives(op.Auth)
			p.Operations = append(p.Operations, &cp)
			for _, n := range names {
				reachable[n] = true
			}
		}
		if len(dropped) > 0 {
			slices.Sort(missing)
			errs = append(errs, fmt.Errorf("%s: operations %v dropped, unresolved types %v", set.Entity.Name, dropped, missing))
		}
		if included {
			p.Entities = append(p.Entities, set.Entity.Name)
		}
	}

	for _, name := range order {
		if !reachable[name] {
			continue
		}
		d := defs[name]
		switch {
		case d.object != nil:
			p.Objects = append(p.Objects, objects[name])
		case d.input != nil:
			p.Inputs = append(p.Inputs, d.input)
		case d.enum != nil:
			p.Enums = append(p.Enums, d.enum)
		}
	}
	p.modes()
	return p, errors.Join(errs...)
}

// directives returns the directives of an operation or type on the surface.
func (s Surface) directives(ds []AuthDirective) []AuthDirective {
	if s.Auth != nil {
		return cloneAuth(s.Auth)
	}
	return cloneAuth(ds)
}

// projectObject applies the surface auth to an object type. Under an auth
// override, field directives are narrowed to the surface providers and
// fields left without any provider are dropped.
func (s Surface) projectObject(t *ObjectType) *ObjectType {
	out := &ObjectType{Name: t.Name, Description: t.Description, Auth: s.directives(t.Auth)}
	allowed, override := s.Providers()
	for _, f := range t.Fields {
		if len(f.Auth) == 0 {
			f.Auth = nil
			out.Fields = append(out.Fields, f)
			continue
		}
		if !override {
			f.Auth = cloneAuth(f.Auth)
			out.Fields = append(out.Fields, f)
			continue
		}
		var kept []AuthDirective
		for _, d := range f.Auth {
			if allowed[d.Provider] {
				kept = append(kept, AuthDirective{Provider: d.Provider, Groups: slices.Clone(d.Groups)})
			}
		}
		if len(kept) == 0 {
			continue
		}
		f.Auth = kept
		out.Fields = append(out.Fields, f)
	}
	return out
}

// modes settles the default and additional auth providers. The combined
// surface defaults to the first provider referenced, or API keys.
func (p *Projection) modes() {
	used := make(map[AuthProvider]bool)
	var first AuthProvider
	note := func(ds []AuthDirective) {
		for _, d := range ds {
			if first == "" {
				first = d.Provider
			}
			used[d.Provider] = true
		}
	}
	for _, op := range p.Operations {
		note(op.Auth)
	}
	for _, t := range p.Objects {
		note(t.Auth)
		for _, f := range t.Fields {
			note(f.Auth)
		}
	}
	switch {
	case !p.Surface.IsCombined():
		p.Mode = p.Surface.AuthMode
	case first != "":
		p.Mode = first
	default:
		p.Mode = AuthAPIKey
	}
	for _, pr := range providerOrder {
		if used[pr] && pr != p.Mode {
			p.Modes = append(p.Modes, pr)
		}
	}
}

// sameShape reports whether two declarations of a type name agree on kind
// and fields. Auth and descriptions may differ.
func sameShape(a, b *typeDef) bool {
	switch {
	case a.object != nil && b.object != nil:
		return sameFields(a.object.Fields, b.object.Fields)
	case a.input != nil && b.input != nil:
		return sameFields(a.input.Fields, b.input.Fields)
	case a.enum != nil && b.enum != nil:
		return slices.Equal(a.enum.Values, b.enum.Values)
	default:
		return false
	}
}

func sameFields(a, b []FieldDef) bool {
	return slices.EqualFunc(a, b, func(x, y FieldDef) bool {
		return x.Name == y.Name && x.Type == y.Type && x.Required == y.Required
	})
}
