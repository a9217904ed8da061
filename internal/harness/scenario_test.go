package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario(t *testing.T) {
	path := writeScenario(t, `
name: minimal
description: a minimal valid scenario
interface: |
  val add : int -> int -> int
expect:
  example_stubs.c:
    - "ml_add"
`)
	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "minimal", s.Name)
	assert.Equal(t, "example", s.moduleName())
	assert.Contains(t, s.Interface, "val add")
}

func TestLoadScenarioRejectsUnknownFields(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: has a misspelled key
interface: "val f : int -> int"
expects:
  example_stubs.c:
    - "ml_f"
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
}

func TestLoadScenarioValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			"missing name",
			"description: d\ninterface: \"val f : int -> int\"\ngolden: true\n",
			"name is required",
		},
		{
			"missing interface",
			"name: n\ndescription: d\ngolden: true\n",
			"interface is required",
		},
		{
			"no assertions",
			"name: n\ndescription: d\ninterface: \"val f : int -> int\"\n",
			"at least one of",
		},
		{
			"error excludes golden",
			"name: n\ndescription: d\ninterface: \"val f : int -> int\"\nexpect_error: boom\ngolden: true\n",
			"expect_error excludes",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSelectBackendsUnknown(t *testing.T) {
	_, err := selectBackends([]string{"fortran"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")
}

func TestSelectBackendsOrder(t *testing.T) {
	gens, err := selectBackends([]string{"dune", "ctypes"})
	require.NoError(t, err)
	require.Len(t, gens, 2)
	assert.Equal(t, "dune", gens[0].Name())
	assert.Equal(t, "ctypes", gens[1].Name())
}
