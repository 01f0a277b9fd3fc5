package gen

import (
	"fmt"
	"slices"
)

// Names of the pagination arguments of query operations.
const (
	ArgLimit     = "limit"
	ArgNextToken = "nextToken"
	ArgInput     = "input"
)

// Envelope field names.
const (
	EnvelopeStatus  = "statusCode"
	EnvelopeMessage = "message"
	EnvelopeData    = "data"
)

// Derive returns the operations of e in builder order: Create, Read, Update
// and Delete against the primary key, one QueryByIndex per secondary index
// and then the declared custom operations. No collisions are settled.
func Derive(e *Entity) []*Operation {
	var (
		ops  []*Operation
		pk   = e.PrimaryKey()
		auth = e.DefaultAuth()
		item = TypeRef{Name: e.Name, Kind: KindEntity}
	)
	crud := func(kind OpKind, field string, root Root) *Operation {
		op := &Operation{
			Entity:   e.Name,
			Kind:     kind,
			Name:     kind.String(),
			Field:    field + e.Name,
			Root:     root,
			Keys:     pk.Attrs(),
			Response: e.Name + "Response",
			Payload:  item,
			Auth:     cloneAuth(auth),
			Resolver: Resolver{Kind: ResolverStorage},
			Origin:   Derived,
			Source:   e.Pos,
		}
		if kind == OpRead {
			op.Args = keyArgs(e, op.Keys, len(op.Keys))
		} else {
			op.Input = kind.String() + e.Name + "Input"
			op.Args = []Arg{{Name: ArgInput, Type: TypeRef{Name: op.Input, Kind: KindObject}, Required: true}}
		}
		return op
	}
	ops = append(ops,
		crud(OpCreate, "create", RootMutation),
		crud(OpRead, "get", RootQuery),
		crud(OpUpdate, "update", RootMutation),
		crud(OpDelete, "delete", RootMutation),
	)
	for _, idx := range e.Indexes() {
		suffix := Pascal(idx.Partition)
		if idx.Sort != "" {
			suffix += "And" + Pascal(idx.Sort)
		}
		keys := idx.Attrs()
		args := keyArgs(e, keys, 1)
		args = append(args,
			Arg{Name: ArgLimit, Type: TypeRef{Name: ScalarInt}},
			Arg{Name: ArgNextToken, Type: TypeRef{Name: ScalarString}},
		)
		ops = append(ops, &Operation{
			Entity:   e.Name,
			Kind:     OpQueryByIndex,
			Name:     "QueryBy" + suffix,
			Field:    "query" + Plural(e.Name) + "By" + suffix,
			Root:     RootQuery,
			Keys:     keys,
			Args:     args,
			Response: e.Name + "ConnectionResponse",
			Payload:  TypeRef{Name: e.Name + "Connection", Kind: KindObject},
			Auth:     cloneAuth(auth),
			Resolver: Resolver{Kind: ResolverStorage},
			Index:    idx.Name,
			Origin:   Derived,
			Source:   idx.Pos,
		})
	}
	for _, c := range e.CustomOperations() {
		op := &Operation{
			Entity:      e.Name,
			Kind:        OpCustom,
			Name:        c.Name,
			Field:       LowerCamel(c.Name),
			Root:        c.Root,
			Keys:        c.Keys,
			Response:    envelopeName(c.Response),
			Payload:     c.Response,
			Auth:        c.Auth,
			Resolver:    c.Resolver,
			Origin:      Declared,
			Source:      c.Pos,
			Description: c.Description,
			input:       c.Input,
		}
		if op.Auth == nil {
			op.Auth = cloneAuth(auth)
		}
		switch {
		case len(c.Input) > 0:
			op.Input = Pascal(c.Name) + "Input"
			op.Args = []Arg{{Name: ArgInput, Type: TypeRef{Name: op.Input, Kind: KindObject}, Required: true}}
		case len(c.Keys) > 0:
			op.Args = keyArgs(e, c.Keys, len(c.Keys))
		}
		ops = append(ops, op)
	}
	return ops
}

// keyArgs returns one argument per key attribute; the first required of
// them are non-null.
func keyArgs(e *Entity, keys []string, required int) []Arg {
	args := make([]Arg, 0, len(keys))
	for i, k := range keys {
		a, _ := e.Attribute(k)
		args = append(args, Arg{Name: k, Type: a.Type, Required: i < required})
	}
	return args
}

func envelopeName(payload TypeRef) string {
	if payload.List {
		return payload.Name + "ListResponse"
	}
	return payload.Name + "Response"
}

// Build derives the operations of e, settles collisions under the given
// policies and resolves the types the surviving operations reference.
// Any fatal diagnostic fails the entity.
func Build(e *Entity, policies CollisionPolicies) (*OperationSet, []Diagnostic) {
	set := newOperationSet(e)
	var diags []Diagnostic
	for _, op := range Derive(e) {
		diags = append(diags, set.insert(op, policies)...)
	}
	fields := make(map[string]*Operation)
	for _, op := range set.ops {
		if prev, ok := fields[op.Field]; ok {
			err := NewSchemaError(e.Name, op.Name, op.Source,
				fmt.Sprintf("field %s of %s is already used by %s", op.Field, op.Describe(), prev.Describe()), nil)
			diags = append(diags, schemaDiagnostic(err))
			continue
		}
		fields[op.Field] = op
	}
	b := &typeBuilder{set: set, names: make(map[string]string)}
	b.entityType()
	b.enums()
	for _, op := range set.ops {
		b.operation(op)
	}
	return set, append(diags, b.diags...)
}

// typeBuilder resolves the named types of an operation set. Names must be
// unique within the set.
type typeBuilder struct {
	set   *OperationSet
	names map[string]string // type name -> owner description
	diags []Diagnostic
}

func (b *typeBuilder) claim(name, owner string, pos Pos) bool {
	if prev, ok := b.names[name]; ok {
		err := NewSchemaError(b.set.Entity.Name, name, pos,
			fmt.Sprintf("type %s of %s conflicts with %s", name, owner, prev), nil)
		b.diags = append(b.diags, schemaDiagnostic(err))
		return false
	}
	b.names[name] = owner
	return true
}

func (b *typeBuilder) entityType() {
	e := b.set.Entity
	t := &ObjectType{Name: e.Name, Description: e.Description, Auth: e.DefaultAuth()}
	for _, a := range e.Attributes() {
		t.Fields = append(t.Fields, FieldDef{
			Name:        a.Name,
			Type:        a.Type,
			Required:    !a.Nullable,
			Auth:        a.Auth,
			Description: a.Description,
		})
	}
	b.claim(t.Name, "entity "+e.Name, e.Pos)
	b.set.Type = t
}

func (b *typeBuilder) enums() {
	byName := make(map[string]*EnumType)
	for _, a := range b.set.Entity.Enums() {
		if prev, ok := byName[a.Type.Name]; ok {
			if !slices.Equal(prev.Values, a.Values) {
				err := NewSchemaError(b.set.Entity.Name, a.Name, a.Pos,
					fmt.Sprintf("enum %s is declared by %q with different values", a.Type.Name, prev.Attribute), nil)
				b.diags = append(b.diags, schemaDiagnostic(err))
			}
			continue
		}
		if !b.claim(a.Type.Name, "enumerated attribute "+a.Name, a.Pos) {
			continue
		}
		et := &EnumType{Name: a.Type.Name, Attribute: a.Name, Values: a.Values, Description: a.Description}
		byName[et.Name] = et
		b.set.Enums = append(b.set.Enums, et)
	}
}

func (b *typeBuilder) operation(op *Operation) {
	e := b.set.Entity
	if op.Kind == OpQueryByIndex && b.set.Connection == nil {
		conn := &ObjectType{
			Name: e.Name + "Connection",
			Fields: []FieldDef{
				{Name: "items", Type: TypeRef{Name: e.Name, Kind: KindEntity, List: true}, Required: true},
				{Name: ArgNextToken, Type: TypeRef{Name: ScalarString}},
			},
			Auth: e.DefaultAuth(),
		}
		if b.claim(conn.Name, "connection of "+e.Name, e.Pos) {
			b.set.Connection = conn
		}
	}
	if _, ok := b.set.Envelope(op.Response); !ok {
		env := &ObjectType{
			Name: op.Response,
			Fields: []FieldDef{
				{Name: EnvelopeStatus, Type: TypeRef{Name: ScalarInt}, Required: true},
				{Name: EnvelopeMessage, Type: TypeRef{Name: ScalarString}},
				{Name: EnvelopeData, Type: op.Payload},
			},
			Auth: e.DefaultAuth(),
		}
		if b.claim(env.Name, "response of "+op.Name, op.Source) {
			b.set.Envelopes = append(b.set.Envelopes, env)
		}
	}
	if op.Input == "" {
		return
	}
	in := &InputType{Name: op.Input}
	switch op.Kind {
	case OpCreate:
		for _, a := range e.Attributes() {
			in.Fields = append(in.Fields, inputField(a, !a.Nullable))
		}
	case OpUpdate:
		for _, a := range e.Attributes() {
			in.Fields = append(in.Fields, inputField(a, slices.Contains(op.Keys, a.Name)))
		}
	case OpDelete:
		for _, k := range op.Keys {
			a, _ := e.Attribute(k)
			in.Fields = append(in.Fields, inputField(a, true))
		}
	case OpCustom:
		for _, a := range op.input {
			in.Fields = append(in.Fields, inputField(a, !a.Nullable))
		}
	}
	if b.claim(in.Name, "input of "+op.Name, op.Source) {
		b.set.Inputs = append(b.set.Inputs, in)
	}
}

// inputField converts an attribute into an input field. Entity references
// are carried as serialized JSON since input types cannot embed objects.
func inputField(a Attribute, required bool) FieldDef {
	t := a.Type
	if t.Kind == KindEntity {
		t = TypeRef{Name: ScalarAWSJSON, Kind: KindScalar, List: t.List}
	}
	return FieldDef{Name: a.Name, Type: t, Required: required, Description: a.Description}
}
