// Package infra renders infrastructure constructs: a table construct and a
// create-table descriptor per entity, and an API construct per surface
// wiring the surface schema, its data sources and one resolver per
// operation. Only the dynamodb storage family is supported.
package infra

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"path"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/syssam/hubgen/compiler/gen"
	"github.com/syssam/hubgen/compiler/gen/mapping"
)

//go:embed template/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("infra").
	Funcs(template.FuncMap{"squote": squote}).
	ParseFS(templateFS, "template/*.tmpl"))

var squoter = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// squote renders a single-quoted string literal.
func squote(s string) string {
	return "'" + squoter.Replace(s) + "'"
}

// TablePaths returns the construct and descriptor paths of an entity table.
func TablePaths(entity string) (construct, descriptor string) {
	dir := path.Join("infra", "tables")
	return path.Join(dir, entity+"Table.ts"), path.Join(dir, entity+".table.yaml")
}

// APIPath returns the construct path of a surface.
func APIPath(s gen.Surface) string {
	return path.Join("infra", "apis", s.ConstructName()+".ts")
}

// Emitter renders infrastructure constructs.
type Emitter struct {
	cfg *gen.Config
}

// New returns the infrastructure emitter.
func New(cfg *gen.Config) *Emitter {
	return &Emitter{cfg: cfg}
}

// Target implements gen.Emitter.
func (*Emitter) Target() gen.Target { return gen.TargetInfra }

// Emit renders the table construct and descriptor of one entity.
func (e *Emitter) Emit(set *gen.OperationSet) ([]*gen.Artifact, error) {
	ent := set.Entity
	constructPath, descriptorPath := TablePaths(ent.Name)
	if ent.Family != gen.FamilyDynamoDB {
		return nil, gen.NewGenerationError(gen.TargetInfra.Name, ent.Name, constructPath,
			fmt.Sprintf("storage family %q", ent.Family), gen.ErrUnsupportedFamily)
	}
	in := TableInput(ent)
	construct, err := execute("table", newTableView(e.cfg.Header, ent.Name+"Table", in))
	if err != nil {
		return nil, gen.NewGenerationError(gen.TargetInfra.Name, ent.Name, constructPath, "render table construct", err)
	}
	desc, err := marshalDescriptor(e.cfg.Header, in)
	if err != nil {
		return nil, gen.NewGenerationError(gen.TargetInfra.Name, ent.Name, descriptorPath, "encode table descriptor", err)
	}
	return []*gen.Artifact{
		{Path: constructPath, Content: construct},
		{Path: descriptorPath, Content: desc},
	}, nil
}

// EmitGraph renders one API construct per surface with operations.
func (e *Emitter) EmitGraph(sets []*gen.OperationSet) ([]*gen.Artifact, error) {
	var (
		arts []*gen.Artifact
		errs []error
	)
	for _, s := range e.cfg.AllSurfaces() {
		p := APIPath(s)
		proj, err := s.Project(sets)
		if err != nil {
			errs = append(errs, gen.NewGenerationError(gen.TargetInfra.Name, "", p, "project surface "+s.DisplayName(), err))
		}
		if len(proj.Operations) == 0 {
			e.cfg.Logger.Debug("skip empty surface", zap.String("surface", s.DisplayName()))
			continue
		}
		b, err := execute("api", e.apiView(proj))
		if err != nil {
			errs = append(errs, gen.NewGenerationError(gen.TargetInfra.Name, "", p, "render api construct", err))
			continue
		}
		arts = append(arts, &gen.Artifact{Path: p, Content: b})
	}
	return arts, errors.Join(errs...)
}

func execute(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type propView struct {
	Name string
	Type string
}

type authView struct {
	Type   string
	Config string
}

type sourceView struct {
	Var    string
	ID     string
	Method string
	Prop   string
}

type resolverView struct {
	Source   string
	ID       string
	TypeName string
	Field    string
	Request  string
	Response string
}

// apiView is the view of an API construct.
type apiView struct {
	Header     string
	Class      string
	Name       string
	Schema     string
	Imports    []string
	Props      []propView
	Default    authView
	Additional []authView
	Sources    []sourceView
	Resolvers  []resolverView
}

// authModes maps providers onto construct authorization modes. Providers
// needing a resource take it from a construct prop.
var authModes = map[gen.AuthProvider]struct {
	mode   string
	prop   *propView
	config string
}{
	gen.AuthAPIKey:    {mode: "API_KEY"},
	gen.AuthIAM:       {mode: "IAM"},
	gen.AuthUserPools: {mode: "USER_POOL", prop: &propView{"userPool", "cognito.IUserPool"}, config: "userPoolConfig: { userPool: props.userPool }"},
	gen.AuthOIDC:      {mode: "OIDC", prop: &propView{"oidcProvider", "string"}, config: "openIdConnectConfig: { oidcProvider: props.oidcProvider }"},
	gen.AuthLambda:    {mode: "LAMBDA", prop: &propView{"authorizer", "lambda.IFunction"}, config: "lambdaAuthorizerConfig: { handler: props.authorizer }"},
}

// relative returns the path of an output file as seen from the API
// construct directory.
func relative(p string) string {
	return path.Join("..", "..", p)
}

func (e *Emitter) apiView(p *gen.Projection) *apiView {
	v := &apiView{
		Header: e.cfg.Header,
		Class:  p.Surface.ConstructName(),
		Name:   p.Surface.DisplayName(),
		Schema: relative(p.Surface.SchemaPath()),
	}
	var (
		tables, functions, authProps []propView
		sources                      = make(map[string]string) // prop -> source variable
		uses                         = make(map[string]bool)
	)
	source := func(prop propView, method string) string {
		if s, ok := sources[prop.Name]; ok {
			return s
		}
		s := prop.Name + "Source"
		sources[prop.Name] = s
		v.Sources = append(v.Sources, sourceView{Var: s, ID: gen.Pascal(s), Method: method, Prop: prop.Name})
		if method == "addLambdaDataSource" {
			functions = append(functions, prop)
		} else {
			tables = append(tables, prop)
		}
		return s
	}
	for _, op := range p.Operations {
		var src string
		if op.Storage() {
			uses["dynamodb"] = true
			src = source(propView{gen.LowerCamel(op.Entity) + "Table", "dynamodb.ITable"}, "addDynamoDbDataSource")
		} else {
			uses["lambda"] = true
			src = source(propView{gen.LowerCamel(op.Resolver.Function) + "Function", "lambda.IFunction"}, "addLambdaDataSource")
		}
		typeName := "Query"
		if op.Root == gen.RootMutation {
			typeName = "Mutation"
		}
		req, res := mapping.Paths(op)
		v.Resolvers = append(v.Resolvers, resolverView{
			Source:   src,
			ID:       typeName + gen.Pascal(op.Field),
			TypeName: typeName,
			Field:    op.Field,
			Request:  relative(req),
			Response: relative(res),
		})
	}
	auth := func(pr gen.AuthProvider) authView {
		m := authModes[pr]
		if m.prop != nil {
			authProps = append(authProps, *m.prop)
			switch pr {
			case gen.AuthUserPools:
				uses["cognito"] = true
			case gen.AuthLambda:
				uses["lambda"] = true
			}
		}
		return authView{Type: m.mode, Config: m.config}
	}
	v.Default = auth(p.Mode)
	for _, pr := range p.Modes {
		v.Additional = append(v.Additional, auth(pr))
	}
	v.Props = append(append(tables, functions...), authProps...)

	v.Imports = []string{
		"import * as path from 'path';",
		"import { Construct } from 'constructs';",
		"import * as appsync from 'aws-cdk-lib/aws-appsync';",
	}
	for _, lib := range []string{"cognito", "dynamodb", "lambda"} {
		if uses[lib] {
			v.Imports = append(v.Imports, fmt.Sprintf("import * as %s from 'aws-cdk-lib/aws-%s';", lib, lib))
		}
	}
	return v
}
