package gen

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/syssam/hubgen/compiler/load"
)

const widgetDoc = `name: Widget
storageFamily: dynamodb
description: A widget owned by a user.
attributes:
  - {name: id, type: ID}
  - {name: ownerId, type: String}
  - {name: status, type: WidgetStatus, semanticTag: enumerated, values: [ACTIVE, INACTIVE], nullable: true}
  - {name: createdAt, type: AWSTimestamp, semanticTag: timestamp}
  - {name: secret, type: String, nullable: true, auth: [{provider: iam}]}
primaryKey: {partitionKey: id}
secondaryIndexes:
  - {name: byOwner, partitionKey: ownerId}
authConfig:
  default: [{provider: userPools}, {provider: iam}]
`

const deactivateDoc = `customOperations:
  - name: Deactivate
    root: mutation
    keys: [id]
    input: [{name: id, type: ID}, {name: reason, type: String, nullable: true}]
    response: Widget
    resolver: {kind: function, function: widgetLifecycle}
    auth: [{provider: userPools, groups: [admin]}]
`

// parseSchema decodes doc as if read from path.
func parseSchema(t *testing.T, path, doc string) *load.Schema {
	t.Helper()
	s, err := load.Parse(path, []byte(doc))
	require.NoError(t, err)
	return s
}

// newEntity validates doc with a registry holding the entity itself and
// the extra names.
func newEntity(t *testing.T, doc string, names ...string) (*Entity, []Diagnostic) {
	t.Helper()
	s := parseSchema(t, "schema/dynamodb/entity.yaml", doc)
	reg := NewRegistry()
	reg.Register(s.Name, s.Path)
	for _, n := range names {
		reg.Register(n, "schema/dynamodb/"+n+".yaml")
	}
	return NewEntity(s, reg)
}

// mustEntity validates doc and fails the test on structural errors.
func mustEntity(t *testing.T, doc string, names ...string) *Entity {
	t.Helper()
	e, diags := newEntity(t, doc, names...)
	for _, d := range diags {
		require.False(t, d.Fatal(), "unexpected fatal diagnostic: %s", d)
	}
	require.NotNil(t, e)
	return e
}

// mustBuild validates and builds doc under the default policies.
func mustBuild(t *testing.T, doc string) *OperationSet {
	t.Helper()
	set, diags := Build(mustEntity(t, doc), CollisionPolicies{})
	for _, d := range diags {
		require.False(t, d.Fatal(), "unexpected fatal diagnostic: %s", d)
	}
	return set
}

// codes returns the diagnostic codes in order.
func codes(diags []Diagnostic) []Code {
	out := make([]Code, len(diags))
	for i, d := range diags {
		out[i] = d.Code
	}
	return out
}

// writeSchemas writes documents below a fresh schema directory.
func writeSchemas(t *testing.T, docs map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, doc := range docs {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(doc), 0o644))
	}
	return dir
}
