package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeProject lays out a minimal project in a fresh working directory.
func writeProject(t *testing.T, toml string, sources map[string]string) {
	t.Helper()
	chdir(t, t.TempDir())
	require.NoError(t, os.WriteFile("polyglot.toml", []byte(toml), 0o644))
	require.NoError(t, os.MkdirAll("src", 0o755))
	for name, content := range sources {
		require.NoError(t, os.WriteFile(filepath.Join("src", name), []byte(content), 0o644))
	}
}

func TestCheckValidProject(t *testing.T) {
	writeProject(t, `
[project]
name = "example"

[source]
dir = "src"
files = ["example.mli"]

[[targets]]
language = "python"
`, map[string]string{"example.mli": sampleInterface})

	out, err := executeCLI(t, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ 1 module(s) check out")
	assert.Contains(t, out, "example: 2 function(s), 0 type(s)")
}

func TestCheckMissingConfig(t *testing.T) {
	chdir(t, t.TempDir())

	out, err := executeCLI(t, "check")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "polyglot init")
}

func TestCheckCollectsAllErrors(t *testing.T) {
	writeProject(t, `
[project]
name = "example"

[source]
dir = "src"
files = ["bad.mli", "worse.mli"]
`, map[string]string{
		"bad.mli":   "let x = 3\n",
		"worse.mli": "val process : string -> blob\n",
	})

	out, err := executeCLI(t, "check")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	// One bad interface does not hide problems in the other.
	assert.Contains(t, out, "✗ Check failed")
	assert.Contains(t, out, ErrCodeParse)
	assert.Contains(t, out, ErrCodeTypeMapping)
}

func TestCheckReportsWarnings(t *testing.T) {
	writeProject(t, `
[project]
name = "example"

[source]
dir = "src"
files = ["example.mli", "missing.mli"]
`, map[string]string{"example.mli": sampleInterface})

	out, err := executeCLI(t, "check")
	require.Error(t, err, "missing interface fails the check when parsed")
	assert.Contains(t, out, "⚠")
}

func TestCheckVersionConstraint(t *testing.T) {
	writeProject(t, `
[project]
name = "example"
requires = ">= 99.0.0"

[source]
files = ["example.mli"]
`, map[string]string{"example.mli": sampleInterface})

	out, err := executeCLI(t, "check")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "does not satisfy")
}

func TestCheckJSONReport(t *testing.T) {
	writeProject(t, `
[project]
name = "example"

[source]
dir = "src"
files = ["example.mli"]
`, map[string]string{"example.mli": sampleInterface})

	out, err := executeCLI(t, "--format", "json", "check")
	require.NoError(t, err)

	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	var report CheckReport
	require.NoError(t, json.Unmarshal(resp.Data, &report))
	assert.True(t, report.Valid)
	require.Len(t, report.Modules, 1)
	assert.Equal(t, "example", report.Modules[0].Module)
}
