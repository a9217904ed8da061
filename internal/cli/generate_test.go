package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCLI runs the root command with args and captures its combined
// output.
func executeCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeInterface(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const sampleInterface = `(** Greets someone by name. *)
val greet : string -> string

val add : int -> int -> int
`

func TestGenerateFromPositionalArg(t *testing.T) {
	src := writeInterface(t, "example.mli", sampleInterface)
	outDir := t.TempDir()

	out, err := executeCLI(t, "generate", src, "-o", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Generated 7 file(s) for module 'example' (2 function(s), 0 type(s))")

	for _, name := range artifactNames("example", true) {
		_, statErr := os.Stat(filepath.Join(outDir, name))
		assert.NoError(t, statErr, "expected artifact %s", name)
	}
}

func TestGenerateDryRun(t *testing.T) {
	src := writeInterface(t, "example.mli", sampleInterface)
	outDir := t.TempDir()

	out, err := executeCLI(t, "generate", src, "-o", outDir, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Would generate 7 file(s)")

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGenerateModuleOverride(t *testing.T) {
	src := writeInterface(t, "example.mli", sampleInterface)
	outDir := t.TempDir()

	out, err := executeCLI(t, "generate", src, "-o", outDir, "--module", "Custom Name")
	require.NoError(t, err)
	assert.Contains(t, out, "module 'Custom_Name'")

	_, statErr := os.Stat(filepath.Join(outDir, "Custom_Name_stubs.h"))
	assert.NoError(t, statErr)
}

func TestGenerateUnmappedTypeFails(t *testing.T) {
	src := writeInterface(t, "example.mli", "val process : string -> blob\n")
	outDir := t.TempDir()

	out, err := executeCLI(t, "generate", src, "-o", outDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E004]:")
	assert.Contains(t, out, "mapping for type 'blob'")

	entries, readErr := os.ReadDir(outDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries, "a failed run must not leave partial output")
}

func TestGenerateParseErrorFails(t *testing.T) {
	src := writeInterface(t, "example.mli", "let x = 3\n")

	out, err := executeCLI(t, "generate", src, "-o", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E003]:")
}

func TestGenerateMissingSource(t *testing.T) {
	out, err := executeCLI(t, "generate", filepath.Join(t.TempDir(), "absent.mli"))
	require.Error(t, err)
	assert.Contains(t, out, "reading")
}

func TestGenerateJSONOutput(t *testing.T) {
	src := writeInterface(t, "example.mli", sampleInterface)
	outDir := t.TempDir()

	out, err := executeCLI(t, "--format", "json", "generate", src, "-o", outDir)
	require.NoError(t, err)

	var resp struct {
		Status  string          `json:"status"`
		Data    json.RawMessage `json:"data"`
		TraceID string          `json:"trace_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.TraceID)

	var report GenerateReport
	require.NoError(t, json.Unmarshal(resp.Data, &report))
	assert.Equal(t, outDir, report.OutputDir)
	require.Len(t, report.Modules, 1)
	assert.Equal(t, "example", report.Modules[0].Module)
	assert.Equal(t, 2, report.Modules[0].Functions)
	assert.Len(t, report.Modules[0].Files, 7)
}

func TestGenerateJSONError(t *testing.T) {
	src := writeInterface(t, "example.mli", "val process : string -> blob\n")

	out, err := executeCLI(t, "--format", "json", "generate", src, "-o", t.TempDir())
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTypeMapping, resp.Error.Code)
}

func TestGenerateTargetPythonOnly(t *testing.T) {
	src := writeInterface(t, "example.mli", sampleInterface)

	out, err := executeCLI(t, "generate", src, "--target", "rust")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, `unsupported target language "rust"`)
}
