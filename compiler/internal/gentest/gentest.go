// Package gentest provides schema fixtures and helpers shared by the
// emitter tests.
package gentest

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/syssam/hubgen/compiler/gen"
	"github.com/syssam/hubgen/compiler/load"
)

// Widget is a storage-backed entity with an enum, a secondary index, a
// field-level directive and a function-resolved custom mutation.
const Widget = `name: Widget
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
customOperations:
  - name: Deactivate
    root: mutation
    keys: [id]
    input: [{name: id, type: ID}, {name: reason, type: String, nullable: true}]
    response: Widget
    resolver: {kind: function, function: widgetLifecycle}
    auth: [{provider: userPools, groups: [admin]}]
`

// Order has a composite key, a sorted index, a list of Widget references
// and storage-resolved custom operations.
const Order = `name: Order
storageFamily: dynamodb
attributes:
  - {name: customerId, type: ID}
  - {name: orderId, type: ID}
  - {name: placedAt, type: AWSDateTime}
  - {name: total, type: Float}
  - {name: paid, type: Boolean, nullable: true}
  - {name: class, type: String, nullable: true}
  - {name: widgets, type: "[Widget]", nullable: true}
  - {name: state, type: OrderState, semanticTag: enumerated, values: [OPEN, IN_TRANSIT, DELIVERED]}
primaryKey: {partitionKey: customerId, sortKey: orderId}
secondaryIndexes:
  - {name: byPlaced, partitionKey: customerId, sortKey: placedAt}
authConfig:
  default: [{provider: apiKey}]
customOperations:
  - name: Lookup
    root: query
    keys: [customerId, orderId]
    response: Order
    resolver: {kind: storage}
  - name: MarkPaid
    keys: [customerId, orderId]
    input: [{name: customerId, type: ID}, {name: orderId, type: ID}, {name: paid, type: Boolean}]
    resolver: {kind: storage}
`

// Parcel has enum values that are not portable identifiers.
const Parcel = `name: Parcel
storageFamily: dynamodb
attributes:
  - {name: id, type: ID}
  - {name: speed, type: ParcelSpeed, semanticTag: enumerated, values: [in-transit, 2day, in_transit]}
primaryKey: {partitionKey: id}
`

// Ledger lives in a relational family.
const Ledger = `name: Ledger
storageFamily: rds
attributes:
  - {name: id, type: ID}
primaryKey: {partitionKey: id}
`

// Path returns the schema path of a fixture document.
func Path(doc string) string {
	return "schema/dynamodb/" + gen.Snake(name(doc)) + ".yaml"
}

func name(doc string) string {
	line, _, _ := strings.Cut(doc, "\n")
	return strings.TrimSpace(strings.TrimPrefix(line, "name:"))
}

// Sets validates and builds the documents against a shared registry under
// the default collision policies, sorted by entity name as the processor
// hands them to graph emitters. Fatal diagnostics fail the test.
func Sets(t testing.TB, docs ...string) []*gen.OperationSet {
	t.Helper()
	reg := gen.NewRegistry()
	schemas := make([]*load.Schema, len(docs))
	for i, doc := range docs {
		s, err := load.Parse(Path(doc), []byte(doc))
		require.NoError(t, err)
		_, ok := reg.Register(s.Name, s.Path)
		require.True(t, ok, "entity %s declared twice", s.Name)
		schemas[i] = s
	}
	var sets []*gen.OperationSet
	for _, s := range schemas {
		e, diags := gen.NewEntity(s, reg)
		requireNoFatal(t, diags)
		set, diags := gen.Build(e, gen.CollisionPolicies{})
		requireNoFatal(t, diags)
		sets = append(sets, set)
	}
	sortSets(sets)
	return sets
}

// Set builds a single document.
func Set(t testing.TB, doc string, refs ...string) *gen.OperationSet {
	t.Helper()
	docs := []string{doc}
	for _, r := range refs {
		if name(r) != name(doc) {
			docs = append(docs, r)
		}
	}
	sets := Sets(t, docs...)
	for _, s := range sets {
		if s.Entity.Name == name(doc) {
			return s
		}
	}
	t.Fatalf("entity %s not built", name(doc))
	return nil
}

// SchemaDir writes the documents below a temporary schema directory, each
// at its Path, and returns the directory.
func SchemaDir(t testing.TB, docs ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, doc := range docs {
		p := filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(Path(doc), "schema/")))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(doc), 0o644))
	}
	return dir
}

// Config returns a configuration writing below a temporary directory.
func Config(t testing.TB, opts ...gen.Option) *gen.Config {
	t.Helper()
	cfg, err := gen.NewConfig(append([]gen.Option{gen.WithOutput(t.TempDir())}, opts...)...)
	require.NoError(t, err)
	return cfg
}

// Artifacts indexes artifacts by path.
func Artifacts(t testing.TB, arts []*gen.Artifact) map[string]string {
	t.Helper()
	out := make(map[string]string, len(arts))
	for _, a := range arts {
		_, dup := out[a.Path]
		require.False(t, dup, "path %s rendered twice", a.Path)
		out[a.Path] = string(a.Content)
	}
	return out
}

// Paths returns the artifact paths in order.
func Paths(arts []*gen.Artifact) []string {
	out := make([]string, len(arts))
	for i, a := range arts {
		out[i] = a.Path
	}
	return out
}

func requireNoFatal(t testing.TB, diags []gen.Diagnostic) {
	t.Helper()
	for _, d := range diags {
		require.False(t, d.Fatal(), "unexpected fatal diagnostic: %s", d)
	}
}

func sortSets(sets []*gen.OperationSet) {
	slices.SortFunc(sets, func(a, b *gen.OperationSet) int {
		return strings.Compare(a.Entity.Name, b.Entity.Name)
	})
}
