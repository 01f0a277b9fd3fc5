// Package mapping renders the request and response mapping templates of
// every operation. Storage-backed operations map onto key-value resolver
// requests whose key and condition expressions are built with the
// expression builder; function-backed operations invoke their function.
// Every response template renders the same status envelope.
package mapping

import (
	"bytes"
	"embed"
	"fmt"
	"maps"
	"path"
	"slices"
	"strconv"
	"strings"
	"text/template"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/syssam/hubgen/compiler/gen"
)

// DefaultLimit is the page size of query operations called without a limit.
const DefaultLimit = 20

// Template expressions shared by the response templates.
const (
	errorMessage    = "$util.toJson($ctx.error.message)"
	resultData      = "$util.toJson($ctx.result)"
	itemsData       = "$util.toJson($ctx.result.items)"
	connectionData  = `$util.toJson({"items": $ctx.result.items, "nextToken": $ctx.result.nextToken})`
	functionData    = "$util.toJson($ctx.result.data)"
	functionMessage = `$util.toJson($util.defaultIfNull($ctx.result.message, "function call failed"))`
)

//go:embed template/mapping.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("mapping").
	Funcs(template.FuncMap{"quote": strconv.Quote}).
	ParseFS(templateFS, "template/mapping.tmpl"))

// Paths returns the request and response template paths of op.
func Paths(op *gen.Operation) (req, res string) {
	dir := path.Join("mapping", op.Entity)
	return path.Join(dir, op.Field+".req.vtl"), path.Join(dir, op.Field+".res.vtl")
}

// Emitter renders mapping templates.
type Emitter struct {
	cfg *gen.Config
}

// New returns the mapping template emitter.
func New(cfg *gen.Config) *Emitter {
	return &Emitter{cfg: cfg}
}

// Target implements gen.Emitter.
func (*Emitter) Target() gen.Target { return gen.TargetMapping }

// Emit renders a request and a response template per operation.
func (e *Emitter) Emit(set *gen.OperationSet) ([]*gen.Artifact, error) {
	ent := set.Entity
	var arts []*gen.Artifact
	for _, op := range set.Operations() {
		reqPath, resPath := Paths(op)
		if op.Storage() && ent.Family != gen.FamilyDynamoDB {
			return nil, gen.NewGenerationError(gen.TargetMapping.Name, ent.Name, reqPath,
				fmt.Sprintf("storage family %q of %s", ent.Family, op.Name), gen.ErrUnsupportedFamily)
		}
		req, err := e.request(ent, op)
		if err != nil {
			return nil, gen.NewGenerationError(gen.TargetMapping.Name, ent.Name, reqPath, "build request of "+op.Name, err)
		}
		for _, t := range []struct {
			path, name string
			data       any
		}{
			{reqPath, req.template, req},
			{resPath, req.response(), e.response(op, req)},
		} {
			var buf bytes.Buffer
			if err := templates.ExecuteTemplate(&buf, t.name, t.data); err != nil {
				return nil, gen.NewGenerationError(gen.TargetMapping.Name, ent.Name, t.path, "render "+t.name, err)
			}
			arts = append(arts, &gen.Artifact{Path: t.path, Content: buf.Bytes()})
		}
	}
	return arts, nil
}

type keyAttr struct {
	Name string
	Path string
}

type exprName struct {
	Alias string
	Name  string
}

type exprValue struct {
	Alias string
	Path  string
}

// expr is a built expression whose values are argument paths.
type expr struct {
	Expression string
	Names      []exprName
	Values     []exprValue
}

// request is the view of a request template.
type request struct {
	Header  string
	Name    string
	Source  string
	Key     []keyAttr
	KeyList string
	Limit   int

	Condition *expr

	Index     string
	Partition *expr
	Sorted    *expr
	SortPath  string

	template string
	list     bool // query payload is a bare item list
}

func (r *request) response() string {
	if r.template == "req_invoke" {
		return "res_function"
	}
	return "res_storage"
}

// response is the view of a response template.
type response struct {
	Header   string
	Success  Envelope
	Failure  Envelope
	Rejected Envelope
}

func (e *Emitter) response(op *gen.Operation, req *request) *response {
	r := &response{Header: e.cfg.Header, Failure: Failure(errorMessage)}
	switch {
	case !op.Storage():
		r.Success = Success(functionData)
		r.Rejected = Failure(functionMessage)
	case req.template == "req_query" && req.list:
		r.Success = Success(itemsData)
	case req.template == "req_query":
		r.Success = Success(connectionData)
	default:
		r.Success = Success(resultData)
	}
	return r
}

// request selects the resolver request of op and builds its expressions.
func (e *Emitter) request(ent *gen.Entity, op *gen.Operation) (*request, error) {
	r := &request{Header: e.cfg.Header, Name: op.Name, Source: "$ctx.args", Limit: DefaultLimit}
	if op.Input != "" {
		r.Source += "." + gen.ArgInput
	}
	if !op.Storage() {
		r.template = "req_invoke"
		return r, nil
	}
	pk := ent.PrimaryKey()
	switch op.Kind {
	case gen.OpCreate:
		r.item("req_put", pk)
		return r, r.condition(expression.AttributeNotExists(expression.Name(pk.Partition)))
	case gen.OpRead:
		r.item("req_get", pk)
		return r, nil
	case gen.OpUpdate:
		r.item("req_update", pk)
		return r, r.condition(expression.AttributeExists(expression.Name(pk.Partition)))
	case gen.OpDelete:
		r.item("req_delete", pk)
		return r, r.condition(expression.AttributeExists(expression.Name(pk.Partition)))
	case gen.OpQueryByIndex:
		for _, idx := range ent.Indexes() {
			if idx.Name == op.Index {
				return r, r.query(idx.Name, idx.Key)
			}
		}
		return nil, fmt.Errorf("index %q is not declared", op.Index)
	}

	// Storage-backed custom operations address items by their keys.
	if sameKeys(op.Keys, pk.Attrs()) {
		if op.Root == gen.RootMutation {
			r.item("req_update", pk)
			return r, r.condition(expression.AttributeExists(expression.Name(pk.Partition)))
		}
		r.item("req_get", pk)
		return r, nil
	}
	if op.Root == gen.RootQuery && len(op.Keys) > 0 && len(op.Keys) <= 2 {
		keys := append([]gen.Index{{Key: pk}}, ent.Indexes()...)
		for _, idx := range keys {
			if idx.Partition != op.Keys[0] || (len(op.Keys) == 2 && idx.Sort != op.Keys[1]) {
				continue
			}
			if !op.Payload.List {
				return nil, fmt.Errorf("operation %s queries %v but returns a single %s", op.Name, op.Keys, op.Payload.Name)
			}
			k := idx.Key
			if len(op.Keys) == 1 {
				k.Sort = ""
			}
			r.list = true
			return r, r.query(idx.Name, k)
		}
	}
	return nil, fmt.Errorf("no key or index of %s serves keys %v of %s", ent.Name, op.Keys, op.Name)
}

// item sets up a single-item request keyed by the primary key.
func (r *request) item(name string, pk gen.Key) {
	r.template = name
	var quoted []string
	for _, k := range pk.Attrs() {
		r.Key = append(r.Key, keyAttr{Name: k, Path: r.Source + "." + k})
		quoted = append(quoted, strconv.Quote(k))
	}
	r.KeyList = "[" + strings.Join(quoted, ", ") + "]"
}

func (r *request) condition(c expression.ConditionBuilder) error {
	x, err := expression.NewBuilder().WithCondition(c).Build()
	if err != nil {
		return err
	}
	r.Condition, err = newExpr(x.Condition(), x.Names(), x.Values())
	return err
}

// query sets up a key condition query. A sort key condition applies only
// when the sort key argument is set.
func (r *request) query(index string, k gen.Key) error {
	r.template = "req_query"
	r.Index = index
	part := expression.Key(k.Partition).Equal(expression.Value(r.Source + "." + k.Partition))
	var err error
	if r.Partition, err = keyExpr(part); err != nil {
		return err
	}
	if k.Sort == "" {
		return nil
	}
	r.SortPath = r.Source + "." + k.Sort
	r.Sorted, err = keyExpr(part.And(expression.Key(k.Sort).Equal(expression.Value(r.SortPath))))
	return err
}

func keyExpr(kc expression.KeyConditionBuilder) (*expr, error) {
	x, err := expression.NewBuilder().WithKeyCondition(kc).Build()
	if err != nil {
		return nil, err
	}
	return newExpr(x.KeyCondition(), x.Names(), x.Values())
}

// newExpr converts a built expression. Values were built from argument
// paths and are decoded back into them.
func newExpr(s *string, names map[string]string, values map[string]types.AttributeValue) (*expr, error) {
	x := &expr{Expression: aws.ToString(s)}
	for _, alias := range slices.Sorted(maps.Keys(names)) {
		x.Names = append(x.Names, exprName{Alias: alias, Name: names[alias]})
	}
	for _, alias := range slices.Sorted(maps.Keys(values)) {
		var p string
		if err := attributevalue.Unmarshal(values[alias], &p); err != nil {
			return nil, fmt.Errorf("decode value %s: %w", alias, err)
		}
		x.Values = append(x.Values, exprValue{Alias: alias, Path: p})
	}
	return x, nil
}

func sameKeys(a, b []string) bool {
	a, b = slices.Clone(a), slices.Clone(b)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}
