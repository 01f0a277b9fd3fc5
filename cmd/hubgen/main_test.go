package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

const widget = `name: Widget
storageFamily: dynamodb
attributes:
  - {name: id, type: ID}
  - {name: ownerId, type: String}
primaryKey: {partitionKey: id}
secondaryIndexes:
  - {name: byOwner, partitionKey: ownerId}
`

// project writes a project file with one schema document and returns the
// path of the project file.
func project(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "schema", "dynamodb"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema", "dynamodb", "widget.yaml"), []byte(widget), 0o644))
	p := filepath.Join(dir, "hubgen.yaml")
	require.NoError(t, os.WriteFile(p, []byte("schemaDir: schema\noutput: generated\ntargets: [model:typescript, api]\n"), 0o644))
	return p
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestGenerateAndCheck(t *testing.T) {
	p := project(t)
	out := filepath.Join(filepath.Dir(p), "generated")

	code, stdout, _ := run(t, "--config", p)
	require.Equal(t, 0, code, stdout)
	assert.Contains(t, stdout, "ok 1 entities, 0 failed, 0 partial, 3 written")
	assert.FileExists(t, filepath.Join(out, "models", "Widget.ts"))

	code, stdout, _ = run(t, "check", "--config", p)
	assert.Equal(t, 0, code, stdout)
	assert.Contains(t, stdout, "0 drifted, 3 up to date")

	model := filepath.Join(out, "models", "Widget.ts")
	b, err := os.ReadFile(model)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(model, append(b, "// local change\n"...), 0o644))

	code, stdout, _ = run(t, "check", "--config", p)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "models/Widget.ts: fatal DriftError")
	assert.Contains(t, stdout, "-// local change")
	assert.Contains(t, stdout, "failed 1 entities")

	code, _, _ = run(t, "generate", "--config", p)
	assert.Equal(t, 0, code)
	b, err = os.ReadFile(model)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "local change")
}

func TestJSONReport(t *testing.T) {
	p := project(t)
	code, stdout, _ := run(t, "--config", p, "--json")
	require.Equal(t, 0, code)

	var report struct {
		RunID    string `json:"runId"`
		Entities []struct {
			Name  string `json:"name"`
			State string `json:"state"`
		} `json:"entities"`
		Files struct {
			Written int `json:"written"`
		} `json:"files"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Entities, 1)
	assert.Equal(t, "Widget", report.Entities[0].Name)
	assert.Equal(t, "Written", report.Entities[0].State)
	assert.Equal(t, 3, report.Files.Written)
}

func TestMetricsFile(t *testing.T) {
	p := project(t)
	metrics := filepath.Join(t.TempDir(), "hubgen.prom")
	code, _, _ := run(t, "--config", p, "--metrics-file", metrics)
	require.Equal(t, 0, code)

	b, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(b), "hubgen_entities_total")
	assert.Contains(t, string(b), "hubgen_run_duration_seconds")
}

func TestOverrides(t *testing.T) {
	p := project(t)
	out := t.TempDir()
	code, _, _ := run(t, "--config", p, "--output", out)
	require.Equal(t, 0, code)
	assert.FileExists(t, filepath.Join(out, "graphql", "schema.graphql"))
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown flag", []string{"--nope"}, "unknown flag: --nope"},
		{"missing project file", []string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}, "missing.yaml"},
		{"positional argument", []string{"generate", "extra"}, "unknown command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := run(t, tt.args...)
			assert.Equal(t, 2, code)
			assert.Contains(t, stderr, tt.want)
		})
	}
}

func TestVersion(t *testing.T) {
	code, stdout, _ := run(t, "version")
	assert.Equal(t, 0, code)
	assert.Equal(t, "hubgen dev (commit: none)\n", stdout)
}

func TestWatch(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	other := t.TempDir()
	projectFile := filepath.Join(other, "hubgen.yaml")
	require.NoError(t, os.WriteFile(projectFile, []byte("output: out\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan struct{}, 8)
	done := make(chan error, 1)
	go func() {
		done <- watch(ctx, zaptest.NewLogger(t), []string{dir}, []string{projectFile}, 50*time.Millisecond, func() {
			changes <- struct{}{}
		})
	}()
	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)

	expect := func(msg string) {
		t.Helper()
		select {
		case <-changes:
		case <-time.After(5 * time.Second):
			t.Fatal(msg)
		}
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "widget.yaml"), []byte(widget), 0o644))
	expect("schema change not observed")

	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "order.json"), []byte("{}"), 0o644))
	expect("change in a new directory not observed")

	require.NoError(t, os.WriteFile(projectFile, []byte("output: elsewhere\n"), 0o644))
	expect("project file change not observed")
	time.Sleep(150 * time.Millisecond)
	for len(changes) > 0 {
		<-changes
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(other, "unrelated.yaml"), []byte("x"), 0o644))
	select {
	case <-changes:
		t.Fatal("unrelated files trigger a run")
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	require.NoError(t, <-done)
}
