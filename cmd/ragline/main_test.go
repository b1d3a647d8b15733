package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/index/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

type testEnv struct {
	dir    string
	config string
	db     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:    dir,
		config: filepath.Join(dir, "ragline.toml"),
		db:     filepath.Join(dir, "index"),
	}
	data := fmt.Sprintf(`
[ai]
provider = "offline"
dimensions = 384

[index]
backend = "badger"
path = %q

[ingest]
max_wait = "0s"
`, env.db)
	require.NoError(t, os.WriteFile(env.config, []byte(data), 0o644))
	return env
}

// run executes the CLI and returns stdout and stderr.
func (e *testEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	err := app.Run(append([]string{"ragline", "--config", e.config, "--log-level", "error"}, args...))
	return stdout.String(), stderr.String(), err
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	env := newTestEnv(t)
	app := newApp()
	app.Writer = &bytes.Buffer{}
	app.ErrWriter = &bytes.Buffer{}

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		done <- app.RunContext(ctx, []string{"ragline", "--config", env.config, "--log-level", "error",
			"serve", "--addr", "127.0.0.1:0"})
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}

func (e *testEnv) writeEvents(t *testing.T, events ...core.IngestEvent) string {
	t.Helper()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, ev := range events {
		require.NoError(t, enc.Encode(ev))
	}
	path := filepath.Join(e.dir, "events.jsonl")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func findFlag(t *testing.T, cmd *cli.Command, name string) cli.Flag {
	t.Helper()
	for _, flag := range cmd.Flags {
		if slices.Contains(flag.Names(), name) {
			return flag
		}
	}
	t.Fatalf("flag %q not found on %s", name, cmd.Name)
	return nil
}

func TestSetupLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	for _, level := range []string{"debug", "info", "warn", "error", "DEBUG"} {
		assert.NoError(t, setupLogger(level), level)
	}

	err := setupLogger("verbose")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestCommands(t *testing.T) {
	app := newApp()
	var names []string
	for _, cmd := range app.Commands {
		names = append(names, cmd.Name)
	}
	assert.Equal(t, []string{"serve", "ingest", "query", "reembed"}, names)
}

func TestReembedCommandFlags(t *testing.T) {
	cmd := reembedCommand()

	model := findFlag(t, cmd, "new-embedding-model").(*cli.StringFlag)
	assert.True(t, model.Required)
	assert.Empty(t, model.Value)

	assert.Equal(t, 100, findFlag(t, cmd, "batch-size").(*cli.IntFlag).Value)
	assert.Equal(t, 100, findFlag(t, cmd, "report-interval").(*cli.IntFlag).Value)
	assert.Equal(t, 3, findFlag(t, cmd, "max-retries").(*cli.IntFlag).Value)
}

func TestInvalidLogLevel(t *testing.T) {
	env := newTestEnv(t)
	app := newApp()
	app.Writer = &bytes.Buffer{}
	app.ErrWriter = &bytes.Buffer{}
	err := app.Run([]string{"ragline", "--config", env.config, "--log-level", "loud", "query", "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestMissingConfigFile(t *testing.T) {
	app := newApp()
	app.ErrWriter = &bytes.Buffer{}
	err := app.Run([]string{"ragline", "--config", filepath.Join(t.TempDir(), "missing.toml"), "query", "hello"})
	assert.Error(t, err)
}

func TestIngestThenQuery(t *testing.T) {
	env := newTestEnv(t)
	events := env.writeEvents(t,
		core.IngestEvent{DocID: "a", Text: "cats purr"},
		core.IngestEvent{DocID: "b", Text: "dogs bark"},
	)

	_, stderr, err := env.run(t, "ingest", "--file", events)
	require.NoError(t, err)
	assert.Contains(t, stderr, "received 2, indexed 2, failed 0")

	stdout, _, err := env.run(t, "query", "--json", "--top-k", "1", "what sound do cats make")
	require.NoError(t, err)

	var resp core.QueryResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "cats purr", resp.Answer)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "a", resp.Sources[0].DocID)
}

func TestQuery_TextOutputAndExplain(t *testing.T) {
	env := newTestEnv(t)
	events := env.writeEvents(t, core.IngestEvent{DocID: "a", Text: "cats purr"})
	_, _, err := env.run(t, "ingest", "--file", events)
	require.NoError(t, err)

	stdout, stderr, err := env.run(t, "query", "--explain", "what", "sound", "do", "cats", "make")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "cats purr\n"))
	assert.Contains(t, stdout, "Sources:")
	assert.Contains(t, stdout, "1. a (score")
	assert.Contains(t, stderr, `query: "what sound do cats make"`)
}

func TestQuery_Errors(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.run(t, "query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "question is required")

	_, _, err = env.run(t, "query", "hi")
	assert.ErrorIs(t, err, core.ErrInvalidRequest)
}

func TestIngest_Errors(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.run(t, "ingest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of --file or --watch")

	_, _, err = env.run(t, "ingest", "--file", "x.jsonl", "--watch", env.dir)
	require.Error(t, err)

	_, _, err = env.run(t, "ingest", "--file", filepath.Join(env.dir, "missing.jsonl"))
	assert.Error(t, err)
}

func TestIngest_ReportsFailures(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(env.dir, "events.jsonl")
	data := `{"doc_id":"a","text":"cats purr"}
{"doc_id":"b"}
not json
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	_, stderr, err := env.run(t, "ingest", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, stderr, "failed: b:")
	assert.Contains(t, stderr, "received 2, indexed 1, failed 1")
	assert.Contains(t, stderr, "feed errors 1")
}

func TestReembed_ToNewIndex(t *testing.T) {
	env := newTestEnv(t)
	events := env.writeEvents(t,
		core.IngestEvent{DocID: "a", Text: "cats purr"},
		core.IngestEvent{DocID: "b", Text: "dogs bark"},
	)
	_, _, err := env.run(t, "ingest", "--file", events)
	require.NoError(t, err)

	target := filepath.Join(env.dir, "target")
	_, stderr, err := env.run(t, "reembed",
		"--new-embedding-model", "hashed-64",
		"--target-db", target,
		"--target-dimensions", "64",
		"--retry-delay", "1ms")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Reembedding complete")

	idx, err := badger.Open(target, badger.WithDimensions(64))
	require.NoError(t, err)
	defer idx.Close()

	count, err := idx.Count(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	rec, err := idx.Get(t.Context(), "a")
	require.NoError(t, err)
	assert.Len(t, rec.Embedding, 64)
	assert.Equal(t, "cats purr", rec.Text)
}

func TestReembed_Validation(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.run(t, "reembed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "new-embedding-model")

	_, _, err = env.run(t, "reembed", "--new-embedding-model", "m", "--batch-size", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch-size")

	_, _, err = env.run(t, "reembed", "--new-embedding-model", "m", "--target-dimensions", "64")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target-db")
}
