package gen

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c, err := NewConfig()

		require.NoError(t, err)
		assert.Equal(t, "schema", c.SchemaDir)
		assert.Equal(t, "generated", c.Output)
		assert.Equal(t, AllTargets, c.Targets)
		assert.Equal(t, runtime.GOMAXPROCS(0), c.Workers)
		assert.Equal(t, "models", c.GoPackage)
		assert.Equal(t, Marker, c.Header)
		assert.Equal(t, CollisionPolicies{}, c.Collisions)
		assert.NotNil(t, c.Logger)
		assert.False(t, c.Check)
	})

	t.Run("default targets are not shared", func(t *testing.T) {
		c, err := NewConfig()
		require.NoError(t, err)
		c.Targets[0] = Target{Name: "changed"}
		assert.Equal(t, "model:go", AllTargets[0].Name)
	})

	t.Run("applies options", func(t *testing.T) {
		c, err := NewConfig(WithOutput("out"), WithTargets("api"), WithCheck(true))

		require.NoError(t, err)
		assert.Equal(t, "out", c.Output)
		assert.Equal(t, []Target{TargetAPI}, c.Targets)
		assert.True(t, c.Check)
	})

	t.Run("returns option errors", func(t *testing.T) {
		c, err := NewConfig(WithWorkers(-1))

		require.Error(t, err)
		assert.Nil(t, c)
		assert.True(t, IsConfigError(err))
	})
}

func TestMustNewConfig(t *testing.T) {
	assert.NotPanics(t, func() { MustNewConfig() })
	assert.Panics(t, func() { MustNewConfig(WithHeader("")) })
}

func TestAllSurfaces(t *testing.T) {
	c := MustNewConfig()
	all := c.AllSurfaces()
	require.Len(t, all, 1)
	assert.Equal(t, Combined(), all[0])
	assert.Equal(t, "graphql/schema.graphql", all[0].SchemaPath())
	assert.Equal(t, "HubApi", all[0].ConstructName())
}

func TestTargetByName(t *testing.T) {
	for _, name := range TargetNames() {
		tg, ok := TargetByName(name)
		require.True(t, ok, name)
		assert.Equal(t, name, tg.Name)
		assert.NotEmpty(t, tg.Description)
	}
	_, ok := TargetByName("model:rust")
	assert.False(t, ok)
}
