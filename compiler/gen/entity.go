package gen

import (
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Known scalar type names. Timestamps are normalized to AWSDateTime.
const (
	ScalarID           = "ID"
	ScalarString       = "String"
	ScalarInt          = "Int"
	ScalarFloat        = "Float"
	ScalarBoolean      = "Boolean"
	ScalarAWSDate      = "AWSDate"
	ScalarAWSTime      = "AWSTime"
	ScalarAWSDateTime  = "AWSDateTime"
	ScalarAWSTimestamp = "AWSTimestamp"
	ScalarAWSJSON      = "AWSJSON"
	ScalarAWSEmail     = "AWSEmail"
	ScalarAWSURL       = "AWSURL"
	ScalarAWSPhone     = "AWSPhone"
	ScalarAWSIPAddress = "AWSIPAddress"
)

var scalars = map[string]bool{
	ScalarID: true, ScalarString: true, ScalarInt: true, ScalarFloat: true,
	ScalarBoolean: true, ScalarAWSDate: true, ScalarAWSTime: true,
	ScalarAWSDateTime: true, ScalarAWSTimestamp: true, ScalarAWSJSON: true,
	ScalarAWSEmail: true, ScalarAWSURL: true, ScalarAWSPhone: true,
	ScalarAWSIPAddress: true,
}

// IsScalar reports whether name is a known scalar type.
func IsScalar(name string) bool { return scalars[name] }

// TypeKind classifies a TypeRef.
type TypeKind int

// TypeKind values.
const (
	KindScalar TypeKind = iota
	KindEnum
	KindEntity
	KindObject // generated helper types: connections and envelopes
)

// TypeRef is a reference to a named type, optionally a list of it.
type TypeRef struct {
	Name string
	Kind TypeKind
	List bool
}

// Keyable reports whether a value of this type can be a storage key.
func (t TypeRef) Keyable() bool {
	if t.List {
		return false
	}
	switch t.Kind {
	case KindScalar:
		return t.Name != ScalarBoolean && t.Name != ScalarAWSJSON
	case KindEnum:
		return true
	default:
		return false
	}
}

// KeyType returns the storage attribute type for a key of this type.
func (t TypeRef) KeyType() types.ScalarAttributeType {
	switch t.Name {
	case ScalarInt, ScalarFloat, ScalarAWSTimestamp:
		return types.ScalarAttributeTypeN
	default:
		return types.ScalarAttributeTypeS
	}
}

// String renders the type in schema notation, e.g. "[String]".
func (t TypeRef) String() string {
	if t.List {
		return "[" + t.Name + "]"
	}
	return t.Name
}

// SemanticTag refines how an attribute is treated.
type SemanticTag string

// SemanticTag values.
const (
	TagPlain      SemanticTag = "plain"
	TagTimestamp  SemanticTag = "timestamp"
	TagEnumerated SemanticTag = "enumerated"
)

// AuthProvider names an authorization provider.
type AuthProvider string

// AuthProvider values.
const (
	AuthAPIKey    AuthProvider = "apiKey"
	AuthIAM       AuthProvider = "iam"
	AuthUserPools AuthProvider = "userPools"
	AuthOIDC      AuthProvider = "oidc"
	AuthLambda    AuthProvider = "lambda"
)

var providers = map[AuthProvider]struct{ directive, mode string }{
	AuthAPIKey:    {"aws_api_key", "API_KEY"},
	AuthIAM:       {"aws_iam", "AWS_IAM"},
	AuthUserPools: {"aws_cognito_user_pools", "AMAZON_COGNITO_USER_POOLS"},
	AuthOIDC:      {"aws_oidc", "OPENID_CONNECT"},
	AuthLambda:    {"aws_lambda", "AWS_LAMBDA"},
}

// Valid reports whether p is a known provider.
func (p AuthProvider) Valid() bool {
	_, ok := providers[p]
	return ok
}

// Directive returns the schema directive name of the provider.
func (p AuthProvider) Directive() string { return providers[p].directive }

// Mode returns the authorization mode identifier used by the API service.
func (p AuthProvider) Mode() string { return providers[p].mode }

// AuthDirective grants access to one provider, optionally narrowed to groups.
type AuthDirective struct {
	Provider AuthProvider
	Groups   []string
}

// Key of an entity or index: partition key and optional sort key.
type Key struct {
	Partition string
	Sort      string
}

// Attrs returns the key attribute names, partition key first.
func (k Key) Attrs() []string {
	if k.Sort == "" {
		return []string{k.Partition}
	}
	return []string{k.Partition, k.Sort}
}

// Index is a secondary index.
type Index struct {
	Name string
	Key
	Pos Pos
}

// Attribute is a validated entity attribute.
type Attribute struct {
	Name        string
	Type        TypeRef
	Nullable    bool
	Tag         SemanticTag
	Values      []string
	Auth        []AuthDirective // nil inherits the entity default
	Description string
	Pos         Pos
}

func (a Attribute) clone() Attribute {
	a.Values = slices.Clone(a.Values)
	a.Auth = cloneAuth(a.Auth)
	return a
}

// Root is the API root type of an operation.
type Root string

// Root values.
const (
	RootQuery    Root = "query"
	RootMutation Root = "mutation"
)

// ResolverKind selects how an operation is serviced.
type ResolverKind string

// ResolverKind values.
const (
	ResolverStorage  ResolverKind = "storage"
	ResolverFunction ResolverKind = "function"
)

// Resolver of an operation.
type Resolver struct {
	Kind     ResolverKind
	Function string
}

// CustomOperation is a declared operation.
type CustomOperation struct {
	Name        string
	Root        Root
	Keys        []string
	Input       []Attribute
	Response    TypeRef
	Resolver    Resolver
	Auth        []AuthDirective // nil inherits the entity default
	Description string
	Pos         Pos
}

func (c CustomOperation) clone() CustomOperation {
	c.Keys = slices.Clone(c.Keys)
	in := make([]Attribute, len(c.Input))
	for i, a := range c.Input {
		in[i] = a.clone()
	}
	c.Input = in
	c.Auth = cloneAuth(c.Auth)
	return c
}

// Entity is a validated schema document. It is immutable: accessors
// return copies.
type Entity struct {
	Name        string
	Family      string
	Description string
	Pos         Pos

	attrs   []Attribute
	key     Key
	indexes []Index
	custom  []CustomOperation
	auth    []AuthDirective
}

// Attributes returns the attributes in declaration order.
func (e *Entity) Attributes() []Attribute {
	out := make([]Attribute, len(e.attrs))
	for i, a := range e.attrs {
		out[i] = a.clone()
	}
	return out
}

// Attribute returns the attribute with the given name.
func (e *Entity) Attribute(name string) (Attribute, bool) {
	for _, a := range e.attrs {
		if a.Name == name {
			return a.clone(), true
		}
	}
	return Attribute{}, false
}

// PrimaryKey returns the primary key.
func (e *Entity) PrimaryKey() Key { return e.key }

// Indexes returns the secondary indexes in declaration order.
func (e *Entity) Indexes() []Index { return slices.Clone(e.indexes) }

// CustomOperations returns the declared operations in declaration order.
func (e *Entity) CustomOperations() []CustomOperation {
	out := make([]CustomOperation, len(e.custom))
	for i, c := range e.custom {
		out[i] = c.clone()
	}
	return out
}

// DefaultAuth returns the entity-level auth directives.
func (e *Entity) DefaultAuth() []AuthDirective { return cloneAuth(e.auth) }

// Enums returns the enumerated attributes.
func (e *Entity) Enums() []Attribute {
	var out []Attribute
	for _, a := range e.attrs {
		if a.Tag == TagEnumerated {
			out = append(out, a.clone())
		}
	}
	return out
}

func cloneAuth(ds []AuthDirective) []AuthDirective {
	if ds == nil {
		return nil
	}
	out := make([]AuthDirective, len(ds))
	for i, d := range ds {
		out[i] = AuthDirective{Provider: d.Provider, Groups: slices.Clone(d.Groups)}
	}
	return out
}

// Registry holds the entity names declared across all schema documents.
// It is filled before validation so references resolve independently of
// file order.
type Registry struct {
	names map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]string)}
}

// Register records name as declared in path. It returns the path of an
// earlier declaration when the name is taken.
func (r *Registry) Register(name, path string) (string, bool) {
	if prev, ok := r.names[name]; ok {
		return prev, false
	}
	r.names[name] = path
	return "", true
}

// Has reports whether an entity with the given name was declared.
func (r *Registry) Has(name string) bool {
	_, ok := r.names[name]
	return ok
}

// Owner returns the path that declared name.
func (r *Registry) Owner(name string) string { return r.names[name] }

// Names returns the registered entity names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.names))
	for n := range r.names {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// hasSeparator reports whether an identifier contains characters that are
// not portable to every target language.
func hasSeparator(s string) bool {
	return strings.ContainsAny(s, "-. /")
}
