package gen

import (
	"slices"
	"strings"
)

// OpKind is the kind of an operation.
type OpKind int

// OpKind values.
const (
	OpCreate OpKind = iota
	OpRead
	OpUpdate
	OpDelete
	OpQueryByIndex
	OpCustom
)

var opKindNames = [...]string{"Create", "Read", "Update", "Delete", "QueryByIndex", "Custom"}

// String implements fmt.Stringer.
func (k OpKind) String() string {
	if int(k) < len(opKindNames) {
		return opKindNames[k]
	}
	return "Unknown"
}

// Origin tells whether an operation was derived or declared.
type Origin int

// Origin values.
const (
	Derived Origin = iota
	Declared
)

// String implements fmt.Stringer.
func (o Origin) String() string {
	if o == Declared {
		return "declared"
	}
	return "derived"
}

// Signature is the canonical identity of an operation:
// entity, kind and the sorted key attributes.
type Signature struct {
	Entity string
	Kind   string
	Keys   string
}

// String implements fmt.Stringer.
func (s Signature) String() string {
	return s.Entity + "." + s.Kind + "(" + s.Keys + ")"
}

// Arg is a top-level field argument.
type Arg struct {
	Name     string
	Type     TypeRef
	Required bool
}

// Operation is one API operation of an entity.
type Operation struct {
	Entity      string
	Kind        OpKind
	Name        string
	Field       string // API field name
	Root        Root
	Keys        []string
	Args        []Arg
	Input       string  // input type name; empty for argument-based operations
	Response    string  // envelope type name
	Payload     TypeRef // envelope data type
	Auth        []AuthDirective
	Resolver    Resolver
	Index       string // source index of QueryByIndex operations
	Origin      Origin
	Source      Pos
	Description string

	input []Attribute // declared input of custom operations
}

// Signature returns the canonical signature. The kind component of custom
// operations includes their name, so distinct custom operations over the
// same keys never collide.
func (o *Operation) Signature() Signature {
	keys := slices.Clone(o.Keys)
	slices.Sort(keys)
	kind := o.Kind.String()
	if o.Kind == OpCustom {
		kind += ":" + o.Name
	}
	return Signature{Entity: o.Entity, Kind: kind, Keys: strings.Join(keys, ",")}
}

// Storage reports whether the operation is serviced by the storage engine.
func (o *Operation) Storage() bool { return o.Resolver.Kind == ResolverStorage }

// Describe names the operation and its source for diagnostics.
func (o *Operation) Describe() string {
	var b strings.Builder
	b.WriteString(o.Entity)
	b.WriteByte('.')
	b.WriteString(o.Name)
	if o.Index != "" {
		b.WriteString(" (index ")
		b.WriteString(o.Index)
		b.WriteByte(')')
	}
	if p := o.Source.String(); p != "" {
		b.WriteString(" at ")
		b.WriteString(p)
	}
	return b.String()
}

// FieldDef is a field of an object or input type.
type FieldDef struct {
	Name        string
	Type        TypeRef
	Required    bool
	Auth        []AuthDirective // nil means no field-level directive
	Description string
}

// ObjectType is an output type.
type ObjectType struct {
	Name        string
	Description string
	Fields      []FieldDef
	Auth        []AuthDirective
}

// Field returns the field with the given name.
func (t *ObjectType) Field(name string) (FieldDef, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDef{}, false
}

// InputType is an operation input type.
type InputType struct {
	Name   string
	Fields []FieldDef
}

// EnumType is an enum type derived from an enumerated attribute.
type EnumType struct {
	Name        string
	Attribute   string
	Values      []string
	Description string
}

// OperationSet is the per-entity, insertion-ordered set of operations that
// emitters render. Members are unique by signature.
type OperationSet struct {
	Entity *Entity
	// Type is the entity object type.
	Type *ObjectType
	// Connection is the paginated list type of the entity.
	Connection *ObjectType
	// Envelopes are the response envelope types, in first-use order.
	Envelopes []*ObjectType
	Enums     []*EnumType
	Inputs    []*InputType

	ops   []*Operation
	index map[Signature]int
}

func newOperationSet(e *Entity) *OperationSet {
	return &OperationSet{Entity: e, index: make(map[Signature]int)}
}

// Operations returns the operations in insertion order.
func (s *OperationSet) Operations() []*Operation { return slices.Clone(s.ops) }

// Len returns the number of operations.
func (s *OperationSet) Len() int { return len(s.ops) }

// Lookup returns the operation with the given signature.
func (s *OperationSet) Lookup(sig Signature) (*Operation, bool) {
	i, ok := s.index[sig]
	if !ok {
		return nil, false
	}
	return s.ops[i], true
}

// Operation returns the operation with the given name.
func (s *OperationSet) Operation(name string) (*Operation, bool) {
	for _, op := range s.ops {
		if op.Name == name {
			return op, true
		}
	}
	return nil, false
}

// Names returns the operation names in order.
func (s *OperationSet) Names() []string {
	out := make([]string, len(s.ops))
	for i, op := range s.ops {
		out[i] = op.Name
	}
	return out
}

// Input returns the input type with the given name.
func (s *OperationSet) Input(name string) (*InputType, bool) {
	for _, in := range s.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return nil, false
}

// Envelope returns the envelope type with the given name.
func (s *OperationSet) Envelope(name string) (*ObjectType, bool) {
	for _, t := range s.Envelopes {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}
