package model

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/syssam/hubgen/compiler/gen"
)

// TypeScript renders TypeScript interfaces, string enums and an index
// barrel.
type TypeScript struct {
	cfg *gen.Config
}

// NewTypeScript returns the TypeScript model emitter.
func NewTypeScript(cfg *gen.Config) *TypeScript {
	return &TypeScript{cfg: cfg}
}

// Target implements gen.Emitter.
func (*TypeScript) Target() gen.Target { return gen.TargetTypeScriptModels }

type tsField struct {
	Name     string
	Type     string
	Optional bool
	Doc      string
}

type tsInterface struct {
	Header  string
	Name    string
	Doc     string
	Imports []string
	Fields  []tsField
}

type tsMember struct {
	Name  string
	Value string
}

type tsEnum struct {
	Header  string
	Name    string
	Doc     string
	Members []tsMember
}

type tsIndex struct {
	Header  string
	Modules []string
}

// Emit renders the entity interface and its enums.
func (e *TypeScript) Emit(set *gen.OperationSet) ([]*gen.Artifact, error) {
	entity := set.Entity.Name
	t := set.Type
	data := tsInterface{Header: e.cfg.Header, Name: t.Name, Doc: jsDoc(t.Description)}
	ents, enums := refs(t)
	data.Imports = append(ents, enums...)
	slices.Sort(data.Imports)
	for _, f := range t.Fields {
		data.Fields = append(data.Fields, tsField{
			Name:     tsProperty(f.Name),
			Type:     tsType(f.Type),
			Optional: !f.Required,
			Doc:      jsDoc(f.Description),
		})
	}
	a, err := artifact(e.Target(), entity, "models/"+t.Name+".ts", "ts_interface", data)
	if err != nil {
		return nil, err
	}
	arts := []*gen.Artifact{a}
	for _, et := range set.Enums {
		data := tsEnum{Header: e.cfg.Header, Name: et.Name, Doc: jsDoc(et.Description)}
		for _, v := range et.Values {
			data.Members = append(data.Members, tsMember{Name: tsProperty(v), Value: strconv.Quote(v)})
		}
		a, err := artifact(e.Target(), entity, "models/"+et.Name+".ts", "ts_enum", data)
		if err != nil {
			return nil, err
		}
		arts = append(arts, a)
	}
	return arts, nil
}

// EmitGraph renders the index barrel re-exporting every model module.
func (e *TypeScript) EmitGraph(sets []*gen.OperationSet) ([]*gen.Artifact, error) {
	data := tsIndex{Header: e.cfg.Header}
	for _, set := range sets {
		data.Modules = append(data.Modules, set.Type.Name)
		for _, et := range set.Enums {
			data.Modules = append(data.Modules, et.Name)
		}
	}
	slices.Sort(data.Modules)
	data.Modules = slices.Compact(data.Modules)
	a, err := artifact(e.Target(), "", "models/index.ts", "ts_index", data)
	if err != nil {
		return nil, err
	}
	return []*gen.Artifact{a}, nil
}

func tsType(t gen.TypeRef) string {
	var s string
	switch t.Kind {
	case gen.KindEnum, gen.KindEntity, gen.KindObject:
		s = t.Name
	default:
		switch t.Name {
		case gen.ScalarInt, gen.ScalarFloat, gen.ScalarAWSTimestamp:
			s = "number"
		case gen.ScalarBoolean:
			s = "boolean"
		default:
			s = "string"
		}
	}
	if t.List {
		s += "[]"
	}
	return s
}

var jsIdent = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// tsProperty returns a property or member name, quoted unless it is a
// plain identifier.
func tsProperty(name string) string {
	if jsIdent.MatchString(name) {
		return name
	}
	return strconv.Quote(name)
}

// jsDoc makes a description safe inside a block comment.
func jsDoc(s string) string {
	return strings.ReplaceAll(description(s), "*/", "*\\/")
}
