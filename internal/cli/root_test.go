package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testInfo = BuildInfo{Version: "1.2.3", Commit: "abc123", Date: "2026-01-02"}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	cmd := NewRootCommand(testInfo)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(t.Context())
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand(testInfo)
	require.NotNil(t, cmd)
	assert.Equal(t, "nodegraph", cmd.Use)
	assert.Contains(t, cmd.Long, "undo")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand(testInfo)

	for _, name := range []string{"console", "run", "version"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand(testInfo)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	levelFlag := cmd.PersistentFlags().Lookup("log-level")
	require.NotNil(t, levelFlag)
	assert.Equal(t, "", levelFlag.DefValue)
}

func TestInvalidLogLevel(t *testing.T) {
	_, _, err := execute(t, "", "--log-level", "loud", "version")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestVersion(t *testing.T) {
	stdout, _, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "nodegraph 1.2.3\ncommit: abc123\nbuilt: 2026-01-02\n", stdout)
}

func TestRunScript(t *testing.T) {
	doc := writeFile(t, "graph.json", `{"nodes":{}}`)
	script := writeFile(t, "edit.lua", `
		history.aggregate("add", function()
			doc.set("nodes.a", {op = "const"})
			doc.set("nodes.b", {op = "neg", input = "a"})
		end)
		print(history.can_undo())
	`)

	stdout, _, err := execute(t, "", "run", script, "--document", doc)
	require.NoError(t, err)

	printed, result, ok := strings.Cut(stdout, "\n")
	require.True(t, ok)
	assert.Equal(t, "true", printed)
	assert.JSONEq(t, `{"nodes":{"a":{"op":"const"},"b":{"op":"neg","input":"a"}}}`, result)
}

func TestRunScriptOutputFile(t *testing.T) {
	script := writeFile(t, "edit.lua", `doc.set("ok", true)`)
	out := filepath.Join(t.TempDir(), "out.json")

	stdout, _, err := execute(t, "", "run", script, "-o", out)
	require.NoError(t, err)
	assert.Empty(t, stdout)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))
}

func TestRunScriptFailure(t *testing.T) {
	script := writeFile(t, "bad.lua", `error("nope")`)

	_, _, err := execute(t, "", "run", script)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "nope")
}

func TestRunMissingDocument(t *testing.T) {
	script := writeFile(t, "edit.lua", `doc.set("a", 1)`)

	_, _, err := execute(t, "", "run", script, "--document", filepath.Join(t.TempDir(), "none.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunWithConfig(t *testing.T) {
	cfg := writeFile(t, "ng.toml", "[history]\ncapacity = 1\n[logging]\nformat = \"json\"\n")
	script := writeFile(t, "edit.lua", `
		doc.set("a", 1)
		doc.set("b", 2)
		print(history.undo(), history.undo())
	`)

	stdout, stderr, err := execute(t, "", "--config", cfg, "--log-level", "debug", "run", script)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "true\tfalse\n"), "capacity 1 keeps one entry")
	assert.Contains(t, stderr, `"level":"DEBUG"`)
}

func TestRunBadConfig(t *testing.T) {
	cfg := writeFile(t, "ng.toml", "[history]\ncapacity = -3\n")
	script := writeFile(t, "edit.lua", ``)

	_, _, err := execute(t, "", "--config", cfg, "run", script)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestConsole(t *testing.T) {
	doc := writeFile(t, "graph.json", `{"a":1}`)

	stdout, _, err := execute(t, "set b 2\nundo\nget a\nstatus\n", "console", "--prompt", "", doc)
	require.NoError(t, err)
	assert.Equal(t, "1\nlog=<root> depth=0 entries=1 undo=false redo=true dirty=false\n", stdout)
}

func TestConsoleNewDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.json")

	stdout, _, err := execute(t, "set x 1\nsave "+path+"\n", "console", "--prompt", "", path)
	require.NoError(t, err)
	assert.Equal(t, "saved "+path+"\n", stdout)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1}`, string(data))
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))

	wrapped := WrapExitError(ExitCommandError, "loading", errors.New("boom"))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.Equal(t, "loading: boom", wrapped.Error())
	assert.Equal(t, "usage", NewExitError(ExitFailure, "usage").Error())
}
