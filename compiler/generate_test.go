package compiler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/syssam/hubgen/compiler/gen"
	"github.com/syssam/hubgen/compiler/gen/graphql"
	"github.com/syssam/hubgen/compiler/internal/gentest"
)

func config(t *testing.T, schemaDir, out string, opts ...gen.Option) *gen.Config {
	t.Helper()
	cfg, err := gen.NewConfig(append([]gen.Option{
		gen.WithSchemaDir(schemaDir),
		gen.WithOutput(out),
		gen.WithWorkers(2),
		gen.WithLogger(zaptest.NewLogger(t)),
		gen.WithSurfaces(gen.Surface{
			Name:       "partner",
			AuthMode:   gen.AuthAPIKey,
			Operations: []string{"Widget.Read"},
		}),
	}, opts...)...)
	require.NoError(t, err)
	return cfg
}

func readFile(t *testing.T, dir, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
	require.NoError(t, err)
	return string(b)
}

func TestGenerate(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := gentest.SchemaDir(t, gentest.Widget, gentest.Order)
	out := t.TempDir()
	report, err := Generate(context.Background(), config(t, dir, out))
	require.NoError(t, err)
	assert.Zero(t, report.ExitCode())
	assert.Zero(t, report.Files.Failed)

	widget, ok := report.Entity("Widget")
	require.True(t, ok)
	assert.Equal(t, gen.StateWritten, widget.State)
	assert.False(t, widget.Partial)

	for _, name := range []string{
		"models/widget.go",
		"models/widget_status.go",
		"models/Widget.ts",
		"models/index.ts",
		"models/widget.py",
		"models/__init__.py",
		"graphql/schema.graphql",
		"graphql/partner/schema.graphql",
		"mapping/Widget/getWidget.req.vtl",
		"mapping/Widget/getWidget.res.vtl",
		"mapping/Widget/deactivate.req.vtl",
		"mapping/Order/lookup.req.vtl",
		"infra/tables/WidgetTable.ts",
		"infra/tables/Widget.table.yaml",
		"infra/tables/OrderTable.ts",
		"infra/apis/HubApi.ts",
		"infra/apis/PartnerApi.ts",
		gen.ManifestName,
	} {
		assert.FileExists(t, filepath.Join(out, filepath.FromSlash(name)))
	}

	_, err = graphql.Validate("schema.graphql", []byte(readFile(t, out, "graphql/schema.graphql")))
	require.NoError(t, err)
	api := readFile(t, out, "infra/apis/PartnerApi.ts")
	assert.Contains(t, api, "'../../graphql/partner/schema.graphql'")
	assert.Contains(t, api, "'../../mapping/Widget/getWidget.req.vtl'")
	assert.NotContains(t, api, "createWidget")
}

func TestGenerateIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := gentest.SchemaDir(t, gentest.Widget, gentest.Order)
	out := t.TempDir()
	first, err := Generate(context.Background(), config(t, dir, out))
	require.NoError(t, err)
	require.NotZero(t, first.Files.Written)
	schema := readFile(t, out, "graphql/schema.graphql")
	model := readFile(t, out, "models/widget.go")

	second, err := Generate(context.Background(), config(t, dir, out))
	require.NoError(t, err)
	assert.Zero(t, second.Files.Written)
	assert.Equal(t, first.Files.Written, second.Files.Unchanged)
	assert.Equal(t, schema, readFile(t, out, "graphql/schema.graphql"))
	assert.Equal(t, model, readFile(t, out, "models/widget.go"))

	check, err := Generate(context.Background(), config(t, dir, out, gen.WithCheck(true)))
	require.NoError(t, err)
	assert.Zero(t, check.Files.Drifted)
	assert.Zero(t, check.Count(gen.CodeDrift))
	assert.Zero(t, check.ExitCode())
}

func TestGenerateDetectsDrift(t *testing.T) {
	dir := gentest.SchemaDir(t, gentest.Widget)
	out := t.TempDir()
	_, err := Generate(context.Background(), config(t, dir, out))
	require.NoError(t, err)

	p := filepath.Join(out, "models", "Widget.ts")
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(p, append(b, "// edited\n"...), 0o644))

	report, err := Generate(context.Background(), config(t, dir, out, gen.WithCheck(true)))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Files.Drifted)
	assert.Equal(t, 1, report.Count(gen.CodeDrift))
	assert.Equal(t, 1, report.ExitCode())
	assert.Contains(t, readFile(t, out, "models/Widget.ts"), "// edited", "check mode never writes")
}

func TestGenerateKeepsHandWrittenFiles(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := gentest.SchemaDir(t, gentest.Widget)
	out := t.TempDir()
	const custom = "package models\n\n// Widget is maintained by hand.\ntype Widget struct{}\n"
	require.NoError(t, os.MkdirAll(filepath.Join(out, "models"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(out, "models", "widget.go"), []byte(custom), 0o644))

	report, err := Generate(context.Background(), config(t, dir, out))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(gen.CodeWriteConflict))
	assert.Equal(t, 1, report.Files.Skipped)
	assert.Zero(t, report.ExitCode(), "conflicts are warnings")
	assert.Equal(t, custom, readFile(t, out, "models/widget.go"))
	assert.FileExists(t, filepath.Join(out, "models", "widget_status.go"))
}

func TestGeneratePartialFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := gentest.SchemaDir(t, gentest.Widget, gentest.Ledger)
	out := t.TempDir()
	report, err := Generate(context.Background(), config(t, dir, out))
	require.NoError(t, err)

	ledger, ok := report.Entity("Ledger")
	require.True(t, ok)
	assert.True(t, ledger.Partial)
	assert.ElementsMatch(t, []string{"mapping", "infra"}, ledger.FailedTargets)
	assert.Equal(t, 2, report.Count(gen.CodeEmit))
	assert.Equal(t, 1, report.ExitCode())
	for _, d := range report.Diagnostics {
		if d.Code == gen.CodeEmit {
			assert.ErrorIs(t, d.Err, gen.ErrUnsupportedFamily)
		}
	}

	assert.FileExists(t, filepath.Join(out, "models", "ledger.go"), "model targets are written")
	assert.NotContains(t, readFile(t, out, "graphql/schema.graphql"), "getLedger", "api targets agree on entities")
	assert.NoFileExists(t, filepath.Join(out, "infra", "tables", "LedgerTable.ts"))
	assert.NotContains(t, readFile(t, out, "infra/apis/HubApi.ts"), "ledger")
	widget, _ := report.Entity("Widget")
	assert.False(t, widget.Partial)
}

func TestGenerateUnresolvedReference(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := gentest.SchemaDir(t, gentest.Widget, `name: Customer
storageFamily: dynamodb
attributes: [{name: id, type: ID}]
`, `name: Invoice
storageFamily: dynamodb
attributes:
  - {name: id, type: ID}
  - {name: customer, type: Customer, nullable: true}
primaryKey: {partitionKey: id}
`)
	out := t.TempDir()
	report, err := Generate(context.Background(), config(t, dir, out))
	require.NoError(t, err)
	assert.Equal(t, 1, report.ExitCode())

	customer, _ := report.Entity("Customer")
	assert.Equal(t, gen.StateFailed, customer.State)
	widget, _ := report.Entity("Widget")
	assert.False(t, widget.Partial)

	var unresolved int
	for _, d := range report.Diagnostics {
		if d.Code == gen.CodeEmit && strings.Contains(d.Message, "Invoice: operations") {
			assert.Contains(t, d.Message, "unresolved types [Customer]")
			unresolved++
		}
	}
	assert.Equal(t, 2, unresolved, "reported by the api and infra targets")

	schema := readFile(t, out, "graphql/schema.graphql")
	_, err = graphql.Validate("schema.graphql", []byte(schema))
	require.NoError(t, err)
	assert.Contains(t, schema, "getWidget", "siblings are unaffected")
	assert.NotContains(t, schema, "getInvoice")
	api := readFile(t, out, "infra/apis/HubApi.ts")
	assert.Contains(t, api, "getWidget")
	assert.NotContains(t, api, "getInvoice")
	assert.FileExists(t, filepath.Join(out, "graphql", "partner", "schema.graphql"))
}

func TestGenerateTargets(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := gentest.SchemaDir(t, gentest.Widget)
	out := t.TempDir()
	report, err := Generate(context.Background(), config(t, dir, out, gen.WithTargets("api")))
	require.NoError(t, err)
	assert.Zero(t, report.ExitCode())
	assert.Equal(t, 2, report.Files.Written)
	assert.FileExists(t, filepath.Join(out, "graphql", "schema.graphql"))
	assert.NoDirExists(t, filepath.Join(out, "models"))
	assert.NoDirExists(t, filepath.Join(out, "infra"))
}

func TestNewEmitters(t *testing.T) {
	cfg := gentest.Config(t, gen.WithTargets("infra", "model:go", "api"))
	var targets []string
	for _, em := range NewEmitters(cfg) {
		targets = append(targets, em.Target().Name)
	}
	assert.Equal(t, []string{"model:go", "api", "infra"}, targets)
}

func TestGenerateNilConfig(t *testing.T) {
	_, err := Generate(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, gen.ErrMissingConfig)
}

// notes renders one text file per entity.
type notes struct{ header string }

func (notes) Target() gen.Target { return gen.Target{Name: "notes"} }

func (n notes) Emit(set *gen.OperationSet) ([]*gen.Artifact, error) {
	body := "# " + n.header + "\n"
	for _, name := range set.Names() {
		body += name + "\n"
	}
	return []*gen.Artifact{{Path: "notes/" + set.Entity.Name + ".txt", Content: []byte(body)}}, nil
}

func TestGenerateExtraEmitters(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := gentest.SchemaDir(t, gentest.Widget)
	out := t.TempDir()
	cfg := config(t, dir, out, gen.WithTargets("model:go"))
	report, err := Generate(context.Background(), cfg, Emitters(notes{header: cfg.Header}))
	require.NoError(t, err)
	assert.Zero(t, report.ExitCode())
	assert.Contains(t, readFile(t, out, "notes/Widget.txt"), "Deactivate\n")
}
