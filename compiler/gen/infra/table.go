package infra

import (
	"bytes"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"gopkg.in/yaml.v3"

	"github.com/syssam/hubgen/compiler/gen"
)

// TableInput returns the create-table request of the table backing ent.
// Every key attribute of the table and its indexes is defined once, in
// first-use order.
func TableInput(ent *gen.Entity) *dynamodb.CreateTableInput {
	var (
		defs []types.AttributeDefinition
		seen = make(map[string]bool)
	)
	schema := func(k gen.Key) []types.KeySchemaElement {
		out := []types.KeySchemaElement{{AttributeName: aws.String(k.Partition), KeyType: types.KeyTypeHash}}
		if k.Sort != "" {
			out = append(out, types.KeySchemaElement{AttributeName: aws.String(k.Sort), KeyType: types.KeyTypeRange})
		}
		for _, name := range k.Attrs() {
			if seen[name] {
				continue
			}
			seen[name] = true
			a, _ := ent.Attribute(name)
			defs = append(defs, types.AttributeDefinition{AttributeName: aws.String(name), AttributeType: a.Type.KeyType()})
		}
		return out
	}
	in := &dynamodb.CreateTableInput{
		TableName:   aws.String(ent.Name),
		KeySchema:   schema(ent.PrimaryKey()),
		BillingMode: types.BillingModePayPerRequest,
	}
	for _, idx := range ent.Indexes() {
		in.GlobalSecondaryIndexes = append(in.GlobalSecondaryIndexes, types.GlobalSecondaryIndex{
			IndexName:  aws.String(idx.Name),
			KeySchema:  schema(idx.Key),
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		})
	}
	in.AttributeDefinitions = defs
	return in
}

// The descriptor types mirror the create-table input document accepted by
// the command line client.
type (
	tableDescriptor struct {
		TableName              string            `yaml:"TableName"`
		AttributeDefinitions   []attributeDef    `yaml:"AttributeDefinitions"`
		KeySchema              []keyElement      `yaml:"KeySchema"`
		BillingMode            string            `yaml:"BillingMode"`
		GlobalSecondaryIndexes []indexDescriptor `yaml:"GlobalSecondaryIndexes,omitempty"`
	}
	attributeDef struct {
		AttributeName string `yaml:"AttributeName"`
		AttributeType string `yaml:"AttributeType"`
	}
	keyElement struct {
		AttributeName string `yaml:"AttributeName"`
		KeyType       string `yaml:"KeyType"`
	}
	indexDescriptor struct {
		IndexName  string       `yaml:"IndexName"`
		KeySchema  []keyElement `yaml:"KeySchema"`
		Projection projection   `yaml:"Projection"`
	}
	projection struct {
		ProjectionType string `yaml:"ProjectionType"`
	}
)

func descriptor(in *dynamodb.CreateTableInput) *tableDescriptor {
	d := &tableDescriptor{
		TableName:   aws.ToString(in.TableName),
		KeySchema:   keyElements(in.KeySchema),
		BillingMode: string(in.BillingMode),
	}
	for _, a := range in.AttributeDefinitions {
		d.AttributeDefinitions = append(d.AttributeDefinitions, attributeDef{
			AttributeName: aws.ToString(a.AttributeName),
			AttributeType: string(a.AttributeType),
		})
	}
	for _, idx := range in.GlobalSecondaryIndexes {
		id := indexDescriptor{IndexName: aws.ToString(idx.IndexName), KeySchema: keyElements(idx.KeySchema)}
		if idx.Projection != nil {
			id.Projection.ProjectionType = string(idx.Projection.ProjectionType)
		}
		d.GlobalSecondaryIndexes = append(d.GlobalSecondaryIndexes, id)
	}
	return d
}

func keyElements(schema []types.KeySchemaElement) []keyElement {
	out := make([]keyElement, len(schema))
	for i, k := range schema {
		out[i] = keyElement{AttributeName: aws.ToString(k.AttributeName), KeyType: string(k.KeyType)}
	}
	return out
}

// marshalDescriptor renders the descriptor document below a comment header.
func marshalDescriptor(header string, in *dynamodb.CreateTableInput) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# " + header + "\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(descriptor(in)); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type keyView struct {
	Name string
	Type string
}

type indexView struct {
	Name      string
	Partition keyView
	Sort      *keyView
}

// tableView is the view of a table construct.
type tableView struct {
	Header    string
	Class     string
	Partition keyView
	Sort      *keyView
	Indexes   []indexView
}

var cdkAttributeTypes = map[types.ScalarAttributeType]string{
	types.ScalarAttributeTypeS: "STRING",
	types.ScalarAttributeTypeN: "NUMBER",
	types.ScalarAttributeTypeB: "BINARY",
}

func newTableView(header, class string, in *dynamodb.CreateTableInput) *tableView {
	attrTypes := make(map[string]string, len(in.AttributeDefinitions))
	for _, a := range in.AttributeDefinitions {
		attrTypes[aws.ToString(a.AttributeName)] = cdkAttributeTypes[a.AttributeType]
	}
	keys := func(schema []types.KeySchemaElement) (part keyView, sort *keyView) {
		for _, k := range schema {
			v := keyView{Name: aws.ToString(k.AttributeName), Type: attrTypes[aws.ToString(k.AttributeName)]}
			if k.KeyType == types.KeyTypeRange {
				sort = &v
				continue
			}
			part = v
		}
		return part, sort
	}
	v := &tableView{Header: header, Class: class}
	v.Partition, v.Sort = keys(in.KeySchema)
	for _, idx := range in.GlobalSecondaryIndexes {
		iv := indexView{Name: aws.ToString(idx.IndexName)}
		iv.Partition, iv.Sort = keys(idx.KeySchema)
		v.Indexes = append(v.Indexes, iv)
	}
	return v
}
