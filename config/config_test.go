package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/hubgen/compiler/gen"
)

const project = `schemaDir: ./schema
output: ./generated
targets: [model:go, api]
goPackage: hub
workers: 4
collisions: {derived: keepLast, declared: reject}
surfaces:
  - name: partner
    authMode: apiKey
    operations: ["Widget.Read", "Widget.QueryByOwnerId"]
    auth: [{provider: apiKey}]
  - name: admin
    authMode: userPools
    operations: ["*"]
`

func write(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "hubgen.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoad(t *testing.T) {
	p := write(t, project)
	f, err := Load(p)
	require.NoError(t, err)
	cfg, err := f.Config()
	require.NoError(t, err)

	dir := filepath.Dir(p)
	assert.Equal(t, filepath.Join(dir, "schema"), cfg.SchemaDir)
	assert.Equal(t, filepath.Join(dir, "generated"), cfg.Output)
	assert.Equal(t, []gen.Target{gen.TargetGoModels, gen.TargetAPI}, cfg.Targets)
	assert.Equal(t, "hub", cfg.GoPackage)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, gen.Marker, cfg.Header)
	assert.Equal(t, gen.CollisionPolicies{Derived: gen.KeepLast, Declared: gen.Reject}, cfg.Collisions)

	want := []gen.Surface{
		{
			Name:       "partner",
			AuthMode:   gen.AuthAPIKey,
			Operations: []string{"Widget.Read", "Widget.QueryByOwnerId"},
			Auth:       []gen.AuthDirective{{Provider: gen.AuthAPIKey}},
		},
		{Name: "admin", AuthMode: gen.AuthUserPools, Operations: []string{"*"}},
	}
	if diff := cmp.Diff(want, cfg.Surfaces); diff != "" {
		t.Errorf("surfaces mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadOverrides(t *testing.T) {
	f, err := Load(write(t, project))
	require.NoError(t, err)
	out := t.TempDir()
	cfg, err := f.Config(gen.WithOutput(out), gen.WithCheck(true))
	require.NoError(t, err)
	assert.Equal(t, out, cfg.Output)
	assert.True(t, cfg.Check)
}

func TestLoadAbsolutePaths(t *testing.T) {
	abs := t.TempDir()
	f, err := Load(write(t, "output: "+abs+"\n"))
	require.NoError(t, err)
	cfg, err := f.Config()
	require.NoError(t, err)
	assert.Equal(t, abs, cfg.Output)
	assert.Equal(t, "schema", cfg.SchemaDir, "unset fields keep the defaults")
}

func TestLoadMissing(t *testing.T) {
	t.Run("explicit", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.ErrorIs(t, err, gen.ErrMissingConfig)
	})
	t.Run("default", func(t *testing.T) {
		t.Chdir(t.TempDir())
		f, err := Load("")
		require.NoError(t, err)
		cfg, err := f.Config()
		require.NoError(t, err)
		assert.Equal(t, "generated", cfg.Output)
	})
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		message string
	}{
		{"unknown key", "outputs: x\n", "field outputs not found"},
		{"unknown target", "targets: [model:rust]\n", "unknown target"},
		{"bad collision policy", "collisions: {declared: newest}\n", `unknown collision policy "newest"`},
		{"bad workers", "workers: -1\n", "workers must be positive"},
		{"bad package", "goPackage: my-models\n", "package must be a Go identifier"},
		{"bad surface", "surfaces: [{name: x, authMode: magic, operations: ['*']}]\n", "unknown auth mode"},
		{"combined surface name", "surfaces: [{name: hub, authMode: iam, operations: ['*']}]\n", "duplicate surface name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Load(write(t, tt.content))
			if err == nil {
				_, err = f.Config()
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, gen.ErrMissingConfig)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestParseEmpty(t *testing.T) {
	f, err := Parse(nil)
	require.NoError(t, err)
	opts, err := f.Options()
	require.NoError(t, err)
	assert.Empty(t, opts)
}
