// Package graphql renders the API schema documents: one combined document
// spanning every operation and one document per configured surface. Each
// document is built as a gqlparser AST, formatted and validated against the
// scalars and directives the API service predefines.
package graphql

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"slices"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
	"github.com/vektah/gqlparser/v2/parser"
	"go.uber.org/zap"

	"github.com/syssam/hubgen/compiler/gen"
)

// prelude declares the service-defined scalars and auth directives. It is
// loaded next to rendered documents for validation only.
//
//go:embed aws.graphql
var prelude string

// Emitter renders API schema documents.
type Emitter struct {
	cfg *gen.Config
}

// New returns the API schema emitter.
func New(cfg *gen.Config) *Emitter {
	return &Emitter{cfg: cfg}
}

// Target implements gen.Emitter.
func (*Emitter) Target() gen.Target { return gen.TargetAPI }

// Emit checks that the schema fragment of one entity renders to a
// well-formed document. Documents are only written by EmitGraph, so an
// entity whose fragment is broken is left out of every document.
func (e *Emitter) Emit(set *gen.OperationSet) ([]*gen.Artifact, error) {
	objects := []*gen.ObjectType{set.Type}
	if set.Connection != nil {
		objects = append(objects, set.Connection)
	}
	objects = append(objects, set.Envelopes...)
	src := e.render(document(set.Enums, objects, set.Inputs, set.Operations()))
	if _, err := parser.ParseSchema(&ast.Source{Name: set.Entity.Pos.File, Input: string(src)}); err != nil {
		return nil, gen.NewGenerationError(gen.TargetAPI.Name, set.Entity.Name, "", "schema fragment is not well-formed", err)
	}
	return nil, nil
}

// EmitGraph renders the combined document and one document per surface.
// Surfaces without operations are not rendered.
func (e *Emitter) EmitGraph(sets []*gen.OperationSet) ([]*gen.Artifact, error) {
	var (
		arts []*gen.Artifact
		errs []error
	)
	for _, s := range e.cfg.AllSurfaces() {
		path := s.SchemaPath()
		p, err := s.Project(sets)
		if err != nil {
			errs = append(errs, gen.NewGenerationError(gen.TargetAPI.Name, "", path, "project surface "+s.DisplayName(), err))
		}
		if len(p.Operations) == 0 {
			e.cfg.Logger.Debug("skip empty surface", zap.String("surface", s.DisplayName()))
			continue
		}
		src := e.render(document(p.Enums, p.Objects, p.Inputs, p.Operations))
		if _, err := Validate(path, src); err != nil {
			errs = append(errs, gen.NewGenerationError(gen.TargetAPI.Name, "", path, "invalid schema for surface "+s.DisplayName(), err))
			continue
		}
		arts = append(arts, &gen.Artifact{Path: path, Content: src})
	}
	return arts, errors.Join(errs...)
}

// Validate loads a rendered document together with the service prelude.
func Validate(name string, src []byte) (*ast.Schema, error) {
	schema, err := gqlparser.LoadSchema(
		&ast.Source{Name: "aws.graphql", Input: prelude, BuiltIn: true},
		&ast.Source{Name: name, Input: string(src)},
	)
	if err != nil {
		return nil, err
	}
	return schema, nil
}

func (e *Emitter) render(doc *ast.SchemaDocument) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", e.cfg.Header)
	formatter.NewFormatter(&buf).FormatSchemaDocument(doc)
	return buf.Bytes()
}

// document assembles enums, object types, input types and the root
// operation types, omitting empty roots.
func document(enums []*gen.EnumType, objects []*gen.ObjectType, inputs []*gen.InputType, ops []*gen.Operation) *ast.SchemaDocument {
	doc := &ast.SchemaDocument{}
	for _, et := range enums {
		def := &ast.Definition{Kind: ast.Enum, Name: et.Name, Description: et.Description}
		for _, v := range et.Values {
			def.EnumValues = append(def.EnumValues, &ast.EnumValueDefinition{Name: v})
		}
		doc.Definitions = append(doc.Definitions, def)
	}
	for _, t := range objects {
		def := &ast.Definition{Kind: ast.Object, Name: t.Name, Description: t.Description, Directives: directives(t.Auth)}
		for _, f := range t.Fields {
			def.Fields = append(def.Fields, &ast.FieldDefinition{
				Name:        f.Name,
				Description: f.Description,
				Type:        fieldType(f.Type, f.Required),
				Directives:  directives(f.Auth),
			})
		}
		doc.Definitions = append(doc.Definitions, def)
	}
	for _, in := range inputs {
		def := &ast.Definition{Kind: ast.InputObject, Name: in.Name}
		for _, f := range in.Fields {
			def.Fields = append(def.Fields, &ast.FieldDefinition{
				Name:        f.Name,
				Description: f.Description,
				Type:        fieldType(f.Type, f.Required),
			})
		}
		doc.Definitions = append(doc.Definitions, def)
	}
	for _, root := range []struct {
		name string
		root gen.Root
	}{{"Query", gen.RootQuery}, {"Mutation", gen.RootMutation}} {
		def := &ast.Definition{Kind: ast.Object, Name: root.name}
		for _, op := range ops {
			if op.Root == root.root {
				def.Fields = append(def.Fields, rootField(op))
			}
		}
		if len(def.Fields) > 0 {
			doc.Definitions = append(doc.Definitions, def)
		}
	}
	return doc
}

func rootField(op *gen.Operation) *ast.FieldDefinition {
	f := &ast.FieldDefinition{
		Name:        op.Field,
		Description: op.Description,
		Type:        ast.NonNullNamedType(op.Response, nil),
		Directives:  directives(op.Auth),
	}
	for _, a := range op.Args {
		f.Arguments = append(f.Arguments, &ast.ArgumentDefinition{Name: a.Name, Type: fieldType(a.Type, a.Required)})
	}
	return f
}

// fieldType converts a type reference. List elements are nullable.
func fieldType(t gen.TypeRef, required bool) *ast.Type {
	typ := ast.NamedType(t.Name, nil)
	if t.List {
		typ = ast.ListType(typ, nil)
	}
	typ.NonNull = required
	return typ
}

// directives renders auth directives, merging repeated providers. A
// user pool directive without groups admits every group.
func directives(ds []gen.AuthDirective) ast.DirectiveList {
	var (
		order  []gen.AuthProvider
		groups = make(map[gen.AuthProvider][]string)
		open   = make(map[gen.AuthProvider]bool)
	)
	for _, d := range ds {
		if _, ok := groups[d.Provider]; !ok && !open[d.Provider] {
			order = append(order, d.Provider)
		}
		if len(d.Groups) == 0 {
			open[d.Provider] = true
			delete(groups, d.Provider)
			continue
		}
		if !open[d.Provider] {
			for _, g := range d.Groups {
				if !slices.Contains(groups[d.Provider], g) {
					groups[d.Provider] = append(groups[d.Provider], g)
				}
			}
		}
	}
	var out ast.DirectiveList
	for _, p := range order {
		dir := &ast.Directive{Name: p.Directive()}
		if gs := groups[p]; len(gs) > 0 {
			list := &ast.Value{Kind: ast.ListValue}
			for _, g := range gs {
				list.Children = append(list.Children, &ast.ChildValue{Value: &ast.Value{Kind: ast.StringValue, Raw: g}})
			}
			dir.Arguments = ast.ArgumentList{{Name: "cognito_groups", Value: list}}
		}
		out = append(out, dir)
	}
	return out
}
