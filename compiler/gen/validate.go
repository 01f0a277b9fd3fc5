package gen

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/syssam/hubgen/compiler/load"
)

// Storage families known to the generator. Only FamilyDynamoDB has
// infrastructure support.
const (
	FamilyDynamoDB   = "dynamodb"
	FamilyRDS        = "rds"
	FamilyOpenSearch = "opensearch"
)

var knownFamilies = map[string]bool{
	FamilyDynamoDB:   true,
	FamilyRDS:        true,
	FamilyOpenSearch: true,
}

var enumValue = regexp.MustCompile(`^[_A-Za-z][_0-9A-Za-z]*$`)

// validator turns a load.Schema into an Entity, collecting diagnostics.
type validator struct {
	s     *load.Schema
	reg   *Registry
	name  string
	enums map[string]bool
	diags []Diagnostic
	fatal bool
}

// NewEntity validates a decoded schema document. The registry must contain
// every entity declared in the run. It returns a nil Entity when a
// structural error was found; the diagnostics describe all problems found.
func NewEntity(s *load.Schema, reg *Registry) (*Entity, []Diagnostic) {
	v := &validator{s: s, reg: reg, name: s.Name, enums: make(map[string]bool)}
	e := v.entity()
	if v.fatal {
		return nil, v.diags
	}
	return e, v.diags
}

func (v *validator) pos(line int) Pos { return Pos{File: v.s.Path, Line: line} }

func (v *validator) errorf(field string, line int, format string, args ...any) {
	v.fatal = true
	err := NewSchemaError(v.name, field, v.pos(line), fmt.Sprintf(format, args...), nil)
	v.diags = append(v.diags, schemaDiagnostic(err))
}

func (v *validator) warnf(line int, format string, args ...any) {
	v.diags = append(v.diags, newDiagnostic(CodeConvention, v.name, v.pos(line), format, args...))
}

func (v *validator) portable(kind, ident string, line int) {
	if hasSeparator(ident) {
		v.warnf(line, "%s %q contains separators not portable to all target languages", kind, ident)
	}
}

func (v *validator) entity() *Entity {
	s := v.s
	for _, n := range s.Notes {
		v.warnf(n.Line, "%s", n.Message)
	}
	if strings.TrimSpace(s.Name) == "" {
		v.errorf("", s.Line, "entity name is required")
		return nil
	}
	if owner := v.reg.Owner(s.Name); owner != "" && owner != s.Path {
		v.errorf("", s.Line, "entity %s is already declared in %s", s.Name, owner)
	}
	v.portable("entity name", s.Name, s.Line)
	v.family()

	e := &Entity{
		Name:        s.Name,
		Family:      s.StorageFamily,
		Description: s.Description,
		Pos:         v.pos(s.Line),
	}
	// Enum type names first, so attributes may reference each other's enums.
	for _, a := range s.Attributes {
		if a != nil && SemanticTag(a.SemanticTag) == TagEnumerated {
			v.enums[v.enumName(a)] = true
		}
	}
	seen := make(map[string]bool)
	for _, a := range s.Attributes {
		if a == nil {
			continue
		}
		if seen[a.Name] {
			v.errorf(a.Name, a.Line, "duplicate attribute %q", a.Name)
			continue
		}
		seen[a.Name] = true
		if attr, ok := v.attribute(a, true); ok {
			e.attrs = append(e.attrs, attr)
		}
	}
	if len(s.Attributes) == 0 {
		v.errorf("", s.Line, "entity declares no attributes")
	}
	e.key = v.primaryKey(e)
	e.indexes = v.indexes(e)
	e.auth = v.auth("authConfig", s.Line, defaultAuth(s.AuthConfig))
	if e.auth == nil {
		e.auth = []AuthDirective{}
	}
	e.custom = v.customOperations(e)
	return e
}

func defaultAuth(c *load.AuthConfig) []*load.Directive {
	if c == nil {
		return nil
	}
	return c.Default
}

func (v *validator) family() {
	s := v.s
	switch {
	case s.StorageFamily == "":
		v.warnf(s.Line, "storage family is not set")
		return
	case !knownFamilies[s.StorageFamily]:
		v.warnf(s.Line, "unknown storage family %q", s.StorageFamily)
	}
	if dir := filepath.Base(filepath.Dir(s.Path)); knownFamilies[dir] && dir != s.StorageFamily {
		v.warnf(s.Line, "storage family %q differs from the schema directory %q", s.StorageFamily, dir)
	}
}

func (v *validator) enumName(a *load.Attribute) string {
	if t, _ := parseType(a.Type); t != "" && !IsScalar(t) {
		return t
	}
	return v.name + Pascal(a.Name)
}

// parseType splits "[T]" notation into the element name and list flag.
func parseType(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		return strings.TrimSpace(s[1 : len(s)-1]), true
	}
	return s, false
}

func (v *validator) attribute(a *load.Attribute, entityField bool) (Attribute, bool) {
	if strings.TrimSpace(a.Name) == "" {
		v.errorf("", a.Line, "attribute name is required")
		return Attribute{}, false
	}
	v.portable("attribute", a.Name, a.Line)
	attr := Attribute{
		Name:        a.Name,
		Nullable:    a.Nullable,
		Tag:         TagPlain,
		Description: a.Description,
		Pos:         v.pos(a.Line),
	}
	if a.SemanticTag != "" {
		attr.Tag = SemanticTag(a.SemanticTag)
	}
	name, list := parseType(a.Type)
	switch attr.Tag {
	case TagTimestamp:
		attr.Type = TypeRef{Name: ScalarAWSDateTime, Kind: KindScalar, List: list}
	case TagEnumerated:
		if !entityField {
			v.errorf(a.Name, a.Line, "enumerated attributes are only allowed on the entity")
			return Attribute{}, false
		}
		if len(a.Values) == 0 {
			v.errorf(a.Name, a.Line, "enumerated attribute %q declares no values", a.Name)
			return Attribute{}, false
		}
		for _, val := range a.Values {
			if !enumValue.MatchString(val) {
				v.warnf(a.Line, "enum value %q of %q is not a portable identifier", val, a.Name)
			}
		}
		attr.Type = TypeRef{Name: v.enumName(a), Kind: KindEnum, List: list}
		attr.Values = append([]string(nil), a.Values...)
	case TagPlain:
		t, ok := v.resolve(name)
		if !ok {
			v.errorf(a.Name, a.Line, "type %q of attribute %q is neither a scalar, an enum nor an entity", a.Type, a.Name)
			return Attribute{}, false
		}
		t.List = list
		attr.Type = t
	default:
		v.errorf(a.Name, a.Line, "unknown semantic tag %q", a.SemanticTag)
		return Attribute{}, false
	}
	if attr.Tag != TagEnumerated && len(a.Values) > 0 {
		v.warnf(a.Line, "values of non-enumerated attribute %q are ignored", a.Name)
	}
	if a.Auth != nil {
		attr.Auth = v.auth(a.Name, a.Line, a.Auth)
		if attr.Auth == nil {
			attr.Auth = []AuthDirective{}
		}
	}
	return attr, true
}

func (v *validator) resolve(name string) (TypeRef, bool) {
	switch {
	case name == "":
		return TypeRef{}, false
	case IsScalar(name):
		return TypeRef{Name: name, Kind: KindScalar}, true
	case v.enums[name]:
		return TypeRef{Name: name, Kind: KindEnum}, true
	case v.reg.Has(name):
		return TypeRef{Name: name, Kind: KindEntity}, true
	default:
		return TypeRef{}, false
	}
}

func (v *validator) auth(field string, line int, ds []*load.Directive) []AuthDirective {
	if ds == nil {
		return nil
	}
	out := make([]AuthDirective, 0, len(ds))
	for _, d := range ds {
		if d == nil {
			continue
		}
		p := AuthProvider(d.Provider)
		if !p.Valid() {
			v.errorf(field, line, "unknown auth provider %q", d.Provider)
			continue
		}
		if len(d.Groups) > 0 && p != AuthUserPools {
			v.warnf(line, "groups are only supported by the userPools provider, ignored for %q", d.Provider)
		}
		ad := AuthDirective{Provider: p}
		if p == AuthUserPools {
			ad.Groups = append([]string(nil), d.Groups...)
		}
		out = append(out, ad)
	}
	return out
}

// keyAttr checks that a key attribute exists and is usable as a key.
func (v *validator) keyAttr(e *Entity, owner, name string, line int) bool {
	a, ok := e.Attribute(name)
	if !ok {
		v.errorf(owner, line, "%s references undefined attribute %q", owner, name)
		return false
	}
	if !a.Type.Keyable() {
		v.errorf(owner, line, "attribute %q of type %s cannot be used as a key", name, a.Type)
		return false
	}
	if a.Nullable {
		v.warnf(line, "key attribute %q of %s is nullable", name, owner)
	}
	return true
}

func (v *validator) primaryKey(e *Entity) Key {
	pk := v.s.PrimaryKey
	if pk == nil || pk.PartitionKey == "" {
		v.errorf("primaryKey", v.s.Line, "primary key is required")
		return Key{}
	}
	v.keyAttr(e, "primaryKey", pk.PartitionKey, pk.Line)
	if pk.SortKey != "" {
		v.keyAttr(e, "primaryKey", pk.SortKey, pk.Line)
	}
	return Key{Partition: pk.PartitionKey, Sort: pk.SortKey}
}

func (v *validator) indexes(e *Entity) []Index {
	var out []Index
	names := make(map[string]bool)
	for _, idx := range v.s.SecondaryIndexes {
		if idx == nil {
			continue
		}
		if idx.Name == "" {
			v.errorf("secondaryIndexes", idx.Line, "secondary index name is required")
			continue
		}
		if names[idx.Name] {
			v.errorf(idx.Name, idx.Line, "duplicate secondary index %q", idx.Name)
			continue
		}
		names[idx.Name] = true
		v.portable("index", idx.Name, idx.Line)
		if idx.PartitionKey == "" {
			v.errorf(idx.Name, idx.Line, "secondary index %q has no partition key", idx.Name)
			continue
		}
		ok := v.keyAttr(e, idx.Name, idx.PartitionKey, idx.Line)
		if idx.SortKey != "" {
			ok = v.keyAttr(e, idx.Name, idx.SortKey, idx.Line) && ok
		}
		if ok {
			out = append(out, Index{
				Name: idx.Name,
				Key:  Key{Partition: idx.PartitionKey, Sort: idx.SortKey},
				Pos:  v.pos(idx.Line),
			})
		}
	}
	return out
}

func (v *validator) customOperations(e *Entity) []CustomOperation {
	var out []CustomOperation
	for _, c := range v.s.CustomOperations {
		if c == nil {
			continue
		}
		if strings.TrimSpace(c.Name) == "" {
			v.errorf("customOperations", c.Line, "custom operation name is required")
			continue
		}
		v.portable("operation", c.Name, c.Line)
		op := CustomOperation{
			Name:        c.Name,
			Root:        RootMutation,
			Keys:        append([]string(nil), c.Keys...),
			Description: c.Description,
			Pos:         v.pos(c.Line),
			Resolver: Resolver{
				Kind:     ResolverFunction,
				Function: LowerCamel(e.Name) + "Resolver",
			},
		}
		ok := true
		if c.Root != "" {
			switch r := Root(c.Root); r {
			case RootQuery, RootMutation:
				op.Root = r
			default:
				v.errorf(c.Name, c.Line, "unknown root %q", c.Root)
				ok = false
			}
		}
		for _, k := range c.Keys {
			if _, found := e.Attribute(k); !found {
				v.errorf(c.Name, c.Line, "operation %q references undefined attribute %q", c.Name, k)
				ok = false
			}
		}
		seen := make(map[string]bool)
		for _, in := range c.Input {
			if in == nil {
				continue
			}
			if seen[in.Name] {
				v.errorf(c.Name, in.Line, "duplicate input field %q", in.Name)
				ok = false
				continue
			}
			seen[in.Name] = true
			attr, valid := v.attribute(in, false)
			if !valid {
				ok = false
				continue
			}
			op.Input = append(op.Input, attr)
		}
		resp := c.Response
		if resp == "" {
			resp = e.Name
		}
		name, list := parseType(resp)
		if t, found := v.resolve(name); found {
			t.List = list
			op.Response = t
		} else {
			v.errorf(c.Name, c.Line, "response type %q of operation %q is unknown", c.Response, c.Name)
			ok = false
		}
		if c.Resolver != nil {
			switch k := ResolverKind(c.Resolver.Kind); k {
			case ResolverStorage:
				op.Resolver = Resolver{Kind: k}
			case ResolverFunction:
				if c.Resolver.Function != "" {
					op.Resolver.Function = c.Resolver.Function
				}
			default:
				v.errorf(c.Name, c.Line, "unknown resolver kind %q", c.Resolver.Kind)
				ok = false
			}
		}
		if c.Auth != nil {
			op.Auth = v.auth(c.Name, c.Line, c.Auth)
			if op.Auth == nil {
				op.Auth = []AuthDirective{}
			}
		}
		if ok {
			out = append(out, op)
		}
	}
	return out
}
