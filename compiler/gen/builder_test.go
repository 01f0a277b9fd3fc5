package gen

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerive(t *testing.T) {
	e := mustEntity(t, widgetDoc)
	ops := Derive(e)
	require.Len(t, ops, 4+len(e.Indexes()))

	type row struct {
		Kind  OpKind
		Name  string
		Field string
		Root  Root
		Keys  []string
		Input string
		Resp  string
	}
	var got []row
	for _, op := range ops {
		got = append(got, row{op.Kind, op.Name, op.Field, op.Root, op.Keys, op.Input, op.Response})
	}
	want := []row{
		{OpCreate, "Create", "createWidget", RootMutation, []string{"id"}, "CreateWidgetInput", "WidgetResponse"},
		{OpRead, "Read", "getWidget", RootQuery, []string{"id"}, "", "WidgetResponse"},
		{OpUpdate, "Update", "updateWidget", RootMutation, []string{"id"}, "UpdateWidgetInput", "WidgetResponse"},
		{OpDelete, "Delete", "deleteWidget", RootMutation, []string{"id"}, "DeleteWidgetInput", "WidgetResponse"},
		{OpQueryByIndex, "QueryByOwnerId", "queryWidgetsByOwnerId", RootQuery, []string{"ownerId"}, "", "WidgetConnectionResponse"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Derive() mismatch (-want +got):\n%s", diff)
	}

	read := ops[1]
	assert.Equal(t, []Arg{{Name: "id", Type: TypeRef{Name: ScalarID}, Required: true}}, read.Args)
	query := ops[4]
	assert.Equal(t, "byOwner", query.Index)
	assert.Equal(t, []Arg{
		{Name: "ownerId", Type: TypeRef{Name: ScalarString}, Required: true},
		{Name: ArgLimit, Type: TypeRef{Name: ScalarInt}},
		{Name: ArgNextToken, Type: TypeRef{Name: ScalarString}},
	}, query.Args)
	for _, op := range ops {
		assert.Equal(t, Derived, op.Origin)
		assert.True(t, op.Storage())
		assert.Equal(t, e.DefaultAuth(), op.Auth)
	}
}

func TestDeriveCompositeKeys(t *testing.T) {
	doc := `name: Order
storageFamily: dynamodb
attributes:
  - {name: customerId, type: ID}
  - {name: orderId, type: ID}
  - {name: placedAt, type: AWSDateTime}
  - {name: total, type: Float}
primaryKey: {partitionKey: customerId, sortKey: orderId}
secondaryIndexes:
  - {name: byPlaced, partitionKey: customerId, sortKey: placedAt}
  - {name: byTotal, partitionKey: total}
`
	e := mustEntity(t, doc)
	ops := Derive(e)
	require.Len(t, ops, 6)
	assert.Equal(t, []string{"customerId", "orderId"}, ops[1].Keys)
	assert.Len(t, ops[1].Args, 2)
	assert.True(t, ops[1].Args[1].Required)

	assert.Equal(t, "QueryByCustomerIdAndPlacedAt", ops[4].Name)
	assert.Equal(t, "queryOrdersByCustomerIdAndPlacedAt", ops[4].Field)
	require.Len(t, ops[4].Args, 4)
	assert.True(t, ops[4].Args[0].Required)
	assert.False(t, ops[4].Args[1].Required, "index sort key is optional")
	assert.Equal(t, "QueryByTotal", ops[5].Name)
}

func TestBuildWidget(t *testing.T) {
	set := mustBuild(t, widgetDoc+deactivateDoc)
	assert.Equal(t, []string{"Create", "Read", "Update", "Delete", "QueryByOwnerId", "Deactivate"}, set.Names())

	op, ok := set.Operation("Deactivate")
	require.True(t, ok)
	assert.Equal(t, OpCustom, op.Kind)
	assert.Equal(t, Declared, op.Origin)
	assert.Equal(t, "deactivate", op.Field)
	assert.Equal(t, Signature{Entity: "Widget", Kind: "Custom:Deactivate", Keys: "id"}, op.Signature())
	assert.Equal(t, "DeactivateInput", op.Input)
	assert.Equal(t, "WidgetResponse", op.Response)
	assert.False(t, op.Storage())

	in, ok := set.Input("DeactivateInput")
	require.True(t, ok)
	assert.Equal(t, []FieldDef{
		{Name: "id", Type: TypeRef{Name: ScalarID}, Required: true},
		{Name: "reason", Type: TypeRef{Name: ScalarString}},
	}, in.Fields)
}

func TestBuildTypes(t *testing.T) {
	set := mustBuild(t, widgetDoc)

	require.NotNil(t, set.Type)
	assert.Equal(t, "Widget", set.Type.Name)
	assert.Equal(t, "A widget owned by a user.", set.Type.Description)
	secret, ok := set.Type.Field("secret")
	require.True(t, ok)
	assert.Equal(t, []AuthDirective{{Provider: AuthIAM}}, secret.Auth)
	assert.False(t, secret.Required)

	require.Len(t, set.Enums, 1)
	assert.Equal(t, &EnumType{Name: "WidgetStatus", Attribute: "status", Values: []string{"ACTIVE", "INACTIVE"}}, set.Enums[0])

	require.NotNil(t, set.Connection)
	assert.Equal(t, "WidgetConnection", set.Connection.Name)

	var envelopes []string
	for _, env := range set.Envelopes {
		envelopes = append(envelopes, env.Name)
		require.Len(t, env.Fields, 3)
		assert.Equal(t, EnvelopeStatus, env.Fields[0].Name)
		assert.True(t, env.Fields[0].Required)
	}
	assert.Equal(t, []string{"WidgetResponse", "WidgetConnectionResponse"}, envelopes)

	create, _ := set.Input("CreateWidgetInput")
	update, _ := set.Input("UpdateWidgetInput")
	del, _ := set.Input("DeleteWidgetInput")
	require.Len(t, create.Fields, 5)
	require.Len(t, update.Fields, 5)
	assert.True(t, create.Fields[1].Required, "create requires non-null attributes")
	assert.False(t, create.Fields[2].Required)
	assert.True(t, update.Fields[0].Required, "update requires the key only")
	assert.False(t, update.Fields[1].Required)
	assert.Equal(t, []FieldDef{{Name: "id", Type: TypeRef{Name: ScalarID}, Required: true}}, del.Fields)
	for _, f := range create.Fields {
		assert.Nil(t, f.Auth, "input fields carry no directives")
	}
}

func TestBuildEntityReferenceInput(t *testing.T) {
	doc := `name: Order
storageFamily: dynamodb
attributes:
  - {name: id, type: ID}
  - {name: widgets, type: "[Widget]", nullable: true}
primaryKey: {partitionKey: id}
`
	e := mustEntity(t, doc, "Widget")
	set, diags := Build(e, CollisionPolicies{})
	require.Empty(t, diags)
	create, _ := set.Input("CreateOrderInput")
	assert.Equal(t, TypeRef{Name: ScalarAWSJSON, Kind: KindScalar, List: true}, create.Fields[1].Type)
	f, _ := set.Type.Field("widgets")
	assert.Equal(t, TypeRef{Name: "Widget", Kind: KindEntity, List: true}, f.Type)
}

func TestBuildSignaturesAreUnique(t *testing.T) {
	docs := []string{
		widgetDoc + deactivateDoc,
		widgetDoc + `customOperations:
  - {name: Touch, keys: [id]}
  - {name: Tag, keys: [id]}
`,
	}
	for _, doc := range docs {
		set := mustBuild(t, doc)
		seen := make(map[Signature]bool)
		for _, op := range set.Operations() {
			sig := op.Signature()
			assert.False(t, seen[sig], "duplicate signature %s", sig)
			seen[sig] = true
			got, ok := set.Lookup(sig)
			require.True(t, ok)
			assert.Same(t, op, got)
		}
	}
}

const duplicateIndexDoc = `name: Widget
storageFamily: dynamodb
attributes:
  - {name: id, type: ID}
  - {name: ownerId, type: String}
primaryKey: {partitionKey: id}
secondaryIndexes:
  - {name: byOwner, partitionKey: ownerId}
  - {name: byOwnerAgain, partitionKey: ownerId}
`

func TestBuildDuplicateIndex(t *testing.T) {
	e := mustEntity(t, duplicateIndexDoc)

	t.Run("keep first", func(t *testing.T) {
		set, diags := Build(e, CollisionPolicies{})
		require.Len(t, diags, 1)
		d := diags[0]
		assert.Equal(t, CodeDuplicateOperation, d.Code)
		assert.False(t, d.Fatal())
		assert.Contains(t, d.Message, "index byOwner)")
		assert.Contains(t, d.Message, "index byOwnerAgain)")
		assert.Contains(t, d.Message, "kept the first")

		assert.Equal(t, 5, set.Len())
		op, _ := set.Operation("QueryByOwnerId")
		assert.Equal(t, "byOwner", op.Index)
	})

	t.Run("keep last", func(t *testing.T) {
		set, diags := Build(e, CollisionPolicies{Derived: KeepLast})
		require.Len(t, diags, 1)
		assert.Contains(t, diags[0].Message, "kept the last")
		assert.Equal(t, []string{"Create", "Read", "Update", "Delete", "QueryByOwnerId"}, set.Names())
		op, _ := set.Operation("QueryByOwnerId")
		assert.Equal(t, "byOwnerAgain", op.Index, "the later operation replaces in place")
	})

	t.Run("reject", func(t *testing.T) {
		_, diags := Build(e, CollisionPolicies{Derived: Reject})
		require.Len(t, diags, 1)
		assert.Equal(t, CodeStructuralSchema, diags[0].Code)
		assert.True(t, diags[0].Fatal())
	})

	t.Run("declared policy does not apply", func(t *testing.T) {
		_, diags := Build(e, CollisionPolicies{Declared: Reject})
		require.Len(t, diags, 1)
		assert.Equal(t, CodeDuplicateOperation, diags[0].Code)
	})
}

func TestBuildDuplicateCustomOperation(t *testing.T) {
	doc := widgetDoc + `customOperations:
  - {name: Touch, keys: [id], description: first}
  - {name: Touch, keys: [id], description: second, input: [{name: id, type: ID}]}
`
	e := mustEntity(t, doc)

	set, diags := Build(e, CollisionPolicies{})
	assert.Equal(t, []Code{CodeDuplicateOperation}, codes(diags))
	op, _ := set.Operation("Touch")
	assert.Equal(t, "first", op.Description)
	_, ok := set.Input("TouchInput")
	assert.False(t, ok)

	set, diags = Build(e, CollisionPolicies{Declared: KeepLast})
	assert.Equal(t, []Code{CodeDuplicateOperation}, codes(diags))
	op, _ = set.Operation("Touch")
	assert.Equal(t, "second", op.Description)
	_, ok = set.Input("TouchInput")
	assert.True(t, ok, "inputs follow the surviving operation")

	_, diags = Build(e, CollisionPolicies{Declared: Reject})
	assert.Equal(t, []Code{CodeStructuralSchema}, codes(diags))
}

func TestBuildConflicts(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			"custom field shadows a derived field",
			widgetDoc + "customOperations:\n  - {name: GetWidget, root: query, keys: [ownerId]}\n",
			"field getWidget",
		},
		{
			"custom input shadows a derived input",
			widgetDoc + "customOperations:\n  - {name: Create_Widget, keys: [ownerId], input: [{name: id, type: ID}]}\n",
			"conflicts with",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, diags := Build(mustEntity(t, tt.doc), CollisionPolicies{})
			var msgs []string
			for _, d := range diags {
				if d.Code == CodeStructuralSchema {
					msgs = append(msgs, d.Message)
				}
			}
			require.NotEmpty(t, msgs)
			assert.Contains(t, strings.Join(msgs, "\n"), tt.want)
		})
	}
}

func TestParseCollisionPolicy(t *testing.T) {
	for in, want := range map[string]CollisionPolicy{
		"":          KeepFirst,
		"keepFirst": KeepFirst,
		"keepLast":  KeepLast,
		"reject":    Reject,
	} {
		got, err := ParseCollisionPolicy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		if in != "" {
			assert.Equal(t, in, got.String())
		}
	}
	_, err := ParseCollisionPolicy("merge")
	assert.Error(t, err)
}
