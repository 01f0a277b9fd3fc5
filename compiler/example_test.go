package compiler_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/syssam/hubgen/compiler"
	"github.com/syssam/hubgen/compiler/gen"
	"github.com/syssam/hubgen/compiler/gen/graphql"
	"github.com/syssam/hubgen/config"
)

func TestShopExample(t *testing.T) {
	f, err := config.Load(filepath.Join("..", "examples", "shop", "hubgen.yaml"))
	require.NoError(t, err)
	out := t.TempDir()
	cfg, err := f.Config(gen.WithOutput(out), gen.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	report, err := compiler.Generate(context.Background(), cfg)
	require.NoError(t, err)
	for _, d := range report.Diagnostics {
		t.Errorf("unexpected diagnostic: %s", d)
	}
	require.Len(t, report.Entities, 3)
	for _, e := range report.Entities {
		assert.Equal(t, gen.StateWritten, e.State, e.Name)
	}

	for _, p := range []string{"graphql/schema.graphql", "graphql/storefront/schema.graphql", "graphql/backoffice/schema.graphql"} {
		b, err := os.ReadFile(filepath.Join(out, p))
		require.NoError(t, err)
		_, err = graphql.Validate(p, b)
		assert.NoError(t, err, p)
	}
	model, err := os.ReadFile(filepath.Join(out, "models", "order.go"))
	require.NoError(t, err)
	assert.Contains(t, string(model), "package shop")
	assert.FileExists(t, filepath.Join(out, "mapping", "Order", "history.req.vtl"))
	assert.FileExists(t, filepath.Join(out, "mapping", "Product", "restock.req.vtl"))
	assert.FileExists(t, filepath.Join(out, "infra", "apis", "StorefrontApi.ts"))
	assert.FileExists(t, filepath.Join(out, "infra", "tables", "Customer.table.yaml"))
}
