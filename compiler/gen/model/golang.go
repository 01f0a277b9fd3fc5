package model

import (
	"bytes"
	"unicode"

	"github.com/dave/jennifer/jen"

	"github.com/syssam/hubgen/compiler/gen"
)

// Go renders Go structs and string enums.
type Go struct {
	cfg *gen.Config
}

// NewGo returns the Go model emitter.
func NewGo(cfg *gen.Config) *Go {
	return &Go{cfg: cfg}
}

// Target implements gen.Emitter.
func (*Go) Target() gen.Target { return gen.TargetGoModels }

// Emit renders one file for the entity struct and one per enum.
func (g *Go) Emit(set *gen.OperationSet) ([]*gen.Artifact, error) {
	entity := set.Entity.Name
	f := g.newFile()
	genStruct(f, set.Type)
	a, err := g.render(f, entity, "models/"+gen.Snake(set.Type.Name)+".go")
	if err != nil {
		return nil, err
	}
	arts := []*gen.Artifact{a}
	for _, et := range set.Enums {
		f := g.newFile()
		genEnum(f, et, entity)
		a, err := g.render(f, entity, "models/"+gen.Snake(et.Name)+".go")
		if err != nil {
			return nil, err
		}
		arts = append(arts, a)
	}
	return arts, nil
}

func (g *Go) newFile() *jen.File {
	f := jen.NewFile(g.cfg.GoPackage)
	f.HeaderComment(g.cfg.Header)
	return f
}

func (g *Go) render(f *jen.File, entity, path string) (*gen.Artifact, error) {
	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, gen.NewGenerationError(gen.TargetGoModels.Name, entity, path, "render Go source", err)
	}
	return &gen.Artifact{Path: path, Content: buf.Bytes()}, nil
}

// genStruct generates the entity struct with one json-tagged field per
// entity field. Field names that fold onto the same Go identifier are
// numbered; the tag keeps the wire name.
func genStruct(f *jen.File, t *gen.ObjectType) {
	name := gen.GoName(t.Name)
	fields := make([]string, len(t.Fields))
	for i, fd := range t.Fields {
		fields[i] = gen.GoName(fd.Name)
	}
	fields = uniqueNames(fields)
	if d := description(t.Description); d != "" {
		f.Comment(name + ": " + d)
	} else {
		f.Commentf("%s is the %s entity.", name, t.Name)
	}
	f.Type().Id(name).StructFunc(func(grp *jen.Group) {
		for i, fd := range t.Fields {
			if d := description(fd.Description); d != "" {
				grp.Comment(d)
			}
			tag := fd.Name
			if !fd.Required {
				tag += ",omitempty"
			}
			grp.Id(fields[i]).Add(goType(fd.Type, fd.Required)).Tag(map[string]string{"json": tag})
		}
	})
}

// goType returns the Go type of a field. Nullable values are pointers,
// lists are slices and single entity references are always pointers.
func goType(t gen.TypeRef, required bool) *jen.Statement {
	var elem *jen.Statement
	switch t.Kind {
	case gen.KindEnum, gen.KindEntity, gen.KindObject:
		elem = jen.Id(gen.GoName(t.Name))
	default:
		elem = goScalar(t.Name)
	}
	switch {
	case t.List:
		return jen.Index().Add(elem)
	case !required, t.Kind == gen.KindEntity:
		return jen.Op("*").Add(elem)
	default:
		return elem
	}
}

func goScalar(name string) *jen.Statement {
	switch name {
	case gen.ScalarInt:
		return jen.Int()
	case gen.ScalarFloat:
		return jen.Float64()
	case gen.ScalarBoolean:
		return jen.Bool()
	case gen.ScalarAWSDateTime:
		return jen.Qual("time", "Time")
	case gen.ScalarAWSTimestamp:
		return jen.Int64()
	case gen.ScalarAWSJSON:
		return jen.Qual("encoding/json", "RawMessage")
	default:
		return jen.String()
	}
}

// genEnum generates a string type with one constant per value, a values
// accessor and a Valid method.
func genEnum(f *jen.File, et *gen.EnumType, entity string) {
	name := gen.GoName(et.Name)
	consts := enumConsts(name, et.Values)

	if d := description(et.Description); d != "" {
		f.Comment(name + ": " + d)
	} else {
		f.Commentf("%s enumerates the values of %s.%s.", name, entity, et.Attribute)
	}
	f.Type().Id(name).String()

	f.Commentf("%s values.", name)
	f.Const().DefsFunc(func(grp *jen.Group) {
		for i, v := range et.Values {
			grp.Id(consts[i]).Id(name).Op("=").Lit(v)
		}
	})

	f.Commentf("%sValues returns all %s values in declaration order.", name, name)
	f.Func().Id(name + "Values").Params().Index().Id(name).Block(
		jen.Return(jen.Index().Id(name).ValuesFunc(func(grp *jen.Group) {
			for _, c := range consts {
				grp.Id(c)
			}
		})),
	)

	f.Commentf("Valid reports whether v is a known %s value.", name)
	f.Func().Params(jen.Id("v").Id(name)).Id("Valid").Params().Bool().Block(
		jen.Switch(jen.Id("v")).Block(
			jen.Case(jen.ListFunc(func(grp *jen.Group) {
				for _, c := range consts {
					grp.Id(c)
				}
			})).Block(jen.Return(jen.True())),
		),
		jen.Return(jen.False()),
	)

	f.Comment("String implements fmt.Stringer.")
	f.Func().Params(jen.Id("v").Id(name)).Id("String").Params().String().Block(
		jen.Return(jen.String().Call(jen.Id("v"))),
	)
}

// enumConsts returns the constant names of enum values: the type name
// followed by the Go form of the value.
func enumConsts(typ string, values []string) []string {
	names := make([]string, len(values))
	for i, v := range values {
		n := gen.GoName(v)
		if v != "" && unicode.IsDigit(rune(v[0])) {
			n = n[1:]
		}
		names[i] = typ + n
	}
	return uniqueNames(names)
}
