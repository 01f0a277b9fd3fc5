package model

import (
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/syssam/hubgen/compiler/gen"
)

// Python renders Python dataclasses, str enums and a package init.
type Python struct {
	cfg *gen.Config
}

// NewPython returns the Python model emitter.
func NewPython(cfg *gen.Config) *Python {
	return &Python{cfg: cfg}
}

// Target implements gen.Emitter.
func (*Python) Target() gen.Target { return gen.TargetPythonModels }

// pyKeywords cannot be used as attribute names.
var pyKeywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true, "class": true,
	"continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true,
	"if": true, "import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true,
}

type pyField struct {
	// Name is the attribute name, suffixed for keywords.
	Name string
	Type string
	// Default is the rendered right-hand side, empty for required fields
	// without wire metadata.
	Default string
	Doc     string
}

type pyClass struct {
	Header   string
	Name     string
	Doc      string
	Typing   string
	Stdlib   []string
	Enums    []pyImport
	Entities []pyImport
	Fields   []pyField
}

type pyImport struct {
	Module string
	Name   string
}

type pyMember struct {
	Name  string
	Value string
}

type pyEnum struct {
	Header  string
	Name    string
	Doc     string
	Members []pyMember
}

type pyInit struct {
	Header  string
	Imports []pyImport
}

// Emit renders the entity dataclass and its enums.
func (e *Python) Emit(set *gen.OperationSet) ([]*gen.Artifact, error) {
	entity := set.Entity.Name
	t := set.Type
	data := pyClass{Header: e.cfg.Header, Name: t.Name, Doc: pyDoc(t.Description)}
	ents, enums := refs(t)
	for _, n := range enums {
		data.Enums = append(data.Enums, pyImport{Module: gen.Snake(n), Name: n})
	}
	for _, n := range ents {
		data.Entities = append(data.Entities, pyImport{Module: gen.Snake(n), Name: n})
	}
	sortImports(data.Enums)
	sortImports(data.Entities)

	typing := make(map[string]bool)
	var needField bool
	for _, f := range t.Fields {
		typ := pyType(f.Type)
		switch f.Type.Name {
		case gen.ScalarAWSDateTime:
			if !slices.Contains(data.Stdlib, "from datetime import datetime") {
				data.Stdlib = append(data.Stdlib, "from datetime import datetime")
			}
		case gen.ScalarAWSJSON:
			typing["Any"] = true
		}
		pf := pyField{Name: f.Name, Type: typ, Doc: pyDoc(f.Description)}
		if !f.Required {
			typing["Optional"] = true
			pf.Type = "Optional[" + typ + "]"
		}
		keyword := pyKeywords[f.Name]
		if keyword {
			pf.Name = f.Name + "_"
			needField = true
		}
		switch {
		case keyword && f.Required:
			pf.Default = "field(metadata={" + strconv.Quote("wire") + ": " + strconv.Quote(f.Name) + "})"
		case keyword:
			pf.Default = "field(default=None, metadata={" + strconv.Quote("wire") + ": " + strconv.Quote(f.Name) + "})"
		case !f.Required:
			pf.Default = "None"
		}
		data.Fields = append(data.Fields, pf)
	}
	if len(data.Entities) > 0 {
		typing["TYPE_CHECKING"] = true
	}
	var names []string
	for n := range typing {
		names = append(names, n)
	}
	slices.Sort(names)
	data.Typing = strings.Join(names, ", ")
	dc := "from dataclasses import dataclass"
	if needField {
		dc += ", field"
	}
	data.Stdlib = append([]string{dc}, data.Stdlib...)
	slices.Sort(data.Stdlib)

	a, err := artifact(e.Target(), entity, "models/"+gen.Snake(t.Name)+".py", "py_class", data)
	if err != nil {
		return nil, err
	}
	arts := []*gen.Artifact{a}
	for _, et := range set.Enums {
		data := pyEnum{Header: e.cfg.Header, Name: et.Name, Doc: pyDoc(et.Description)}
		if data.Doc == "" {
			data.Doc = "Values of " + entity + "." + et.Attribute + "."
		}
		names := make([]string, len(et.Values))
		for i, v := range et.Values {
			names[i] = pyMemberName(v)
		}
		for i, n := range uniqueNames(names) {
			data.Members = append(data.Members, pyMember{Name: n, Value: strconv.Quote(et.Values[i])})
		}
		a, err := artifact(e.Target(), entity, "models/"+gen.Snake(et.Name)+".py", "py_enum", data)
		if err != nil {
			return nil, err
		}
		arts = append(arts, a)
	}
	return arts, nil
}

// EmitGraph renders the package init exporting every model.
func (e *Python) EmitGraph(sets []*gen.OperationSet) ([]*gen.Artifact, error) {
	data := pyInit{Header: e.cfg.Header}
	seen := make(map[string]bool)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			data.Imports = append(data.Imports, pyImport{Module: gen.Snake(name), Name: name})
		}
	}
	for _, set := range sets {
		add(set.Type.Name)
		for _, et := range set.Enums {
			add(et.Name)
		}
	}
	sortImports(data.Imports)
	a, err := artifact(e.Target(), "", "models/__init__.py", "py_init", data)
	if err != nil {
		return nil, err
	}
	return []*gen.Artifact{a}, nil
}

func pyType(t gen.TypeRef) string {
	var s string
	switch t.Kind {
	case gen.KindEnum, gen.KindEntity, gen.KindObject:
		s = t.Name
	default:
		switch t.Name {
		case gen.ScalarInt, gen.ScalarAWSTimestamp:
			s = "int"
		case gen.ScalarFloat:
			s = "float"
		case gen.ScalarBoolean:
			s = "bool"
		case gen.ScalarAWSDateTime:
			s = "datetime"
		case gen.ScalarAWSJSON:
			s = "Any"
		default:
			s = "str"
		}
	}
	if t.List {
		s = "list[" + s + "]"
	}
	return s
}

// pyMemberName returns the upper snake case member name of an enum value.
func pyMemberName(v string) string {
	n := strings.ToUpper(gen.Snake(v))
	if n == "" || unicode.IsDigit(rune(n[0])) {
		n = "_" + n
	}
	return n
}

// pyDoc makes a description safe inside a docstring.
func pyDoc(s string) string {
	s = description(s)
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"""`, `\"\"\"`)
}

func sortImports(is []pyImport) {
	slices.SortFunc(is, func(a, b pyImport) int { return strings.Compare(a.Module, b.Module) })
}
