package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/polyglot/internal/config"
	"github.com/roach88/polyglot/internal/generator"
	"github.com/roach88/polyglot/internal/ir"
	"github.com/roach88/polyglot/internal/naming"
	"github.com/roach88/polyglot/internal/parser"
	"github.com/roach88/polyglot/internal/registry"
)

func TestMapErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"parse", &parser.ParseError{File: "x.mli", Line: 3, Message: "bad"}, ErrCodeParse},
		{"mapping", &registry.TypeMappingError{Type: ir.Named{Name: "blob"}, Target: registry.TargetC}, ErrCodeTypeMapping},
		{"config", &config.Error{Path: "polyglot.toml", Message: "missing"}, ErrCodeConfig},
		{"io", &generator.IOError{Path: "out/dune", Err: assert.AnError}, ErrCodeWriteFailed},
		{"naming", &naming.SanitizationError{Input: "---"}, ErrCodeName},
		{"generic", assert.AnError, ErrCodeGeneric},
		{
			"wrapped mapping",
			&generator.BackendError{
				Backend: "cstubs",
				Err:     &registry.TypeMappingError{Type: ir.Named{Name: "blob"}, Target: registry.TargetC},
			},
			ErrCodeTypeMapping,
		},
		{
			"doubly wrapped",
			fmt.Errorf("generating: %w", &parser.ParseError{Message: "bad"}),
			ErrCodeParse,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mapErrorCode(tt.err))
		})
	}
}

func TestArtifactNames(t *testing.T) {
	assert.Equal(t, []string{
		"type_description.ml",
		"function_description.ml",
		"crypto_stubs.h",
		"crypto_stubs.c",
		"crypto_py.py",
		"dune",
		"dune-project",
	}, artifactNames("crypto", true))

	assert.NotContains(t, artifactNames("crypto", false), "crypto_py.py")
}

func TestModuleBaseName(t *testing.T) {
	name, err := moduleBaseName("src/my-crypto-lib.mli")
	require.NoError(t, err)
	assert.Equal(t, "my_crypto_lib", name)
}

func TestBackendsDefaultPython(t *testing.T) {
	gens, err := backends(nil, nil)
	require.NoError(t, err)
	assert.Len(t, gens, 4)
}

func TestBackendsUnsupportedTarget(t *testing.T) {
	_, err := backends(nil, []string{"ruby"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported target language "ruby"`)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestBackendsDisabledConfigTarget(t *testing.T) {
	disabled := false
	enabled := true
	cfg := &config.Config{Targets: []config.Target{
		{Language: "python", Enabled: &disabled},
		{Language: "python", Enabled: &enabled},
	}}
	gens, err := backends(cfg, nil)
	require.NoError(t, err)
	assert.Len(t, gens, 4)
}

func TestLoadUnitsModuleOverride(t *testing.T) {
	_, err := loadUnits([]string{"a.mli", "b.mli"}, "custom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--module cannot be used with multiple source files")

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, ExitCommandError, exitErr.Code)
}
