package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitScaffold(t *testing.T) {
	chdir(t, t.TempDir())

	out, err := executeCLI(t, "init", "myproj")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Initialized polyglot project 'myproj'")

	for _, path := range []string{
		filepath.Join("myproj", "polyglot.toml"),
		filepath.Join("myproj", "src", "myproj.mli"),
		filepath.Join("myproj", ".gitignore"),
	} {
		_, statErr := os.Stat(path)
		assert.NoError(t, statErr, "expected scaffold file %s", path)
	}

	// The scaffolded project passes its own version constraint.
	toml, err := os.ReadFile(filepath.Join("myproj", "polyglot.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(toml), `requires = ">= `+Version+`"`)
}

func TestInitSanitizesProjectName(t *testing.T) {
	chdir(t, t.TempDir())

	out, err := executeCLI(t, "init", "my-crypto-lib")
	require.NoError(t, err)
	assert.Contains(t, out, "project 'my_crypto_lib'")

	_, statErr := os.Stat(filepath.Join("my-crypto-lib", "src", "my_crypto_lib.mli"))
	assert.NoError(t, statErr)
}

func TestInitRefusesOverwrite(t *testing.T) {
	chdir(t, t.TempDir())

	_, err := executeCLI(t, "init", "myproj")
	require.NoError(t, err)

	out, err := executeCLI(t, "init", "myproj")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "already exists (use --force to overwrite)")

	_, err = executeCLI(t, "init", "myproj", "--force")
	require.NoError(t, err)
}

func TestInitRejectsUnknownTarget(t *testing.T) {
	chdir(t, t.TempDir())

	out, err := executeCLI(t, "init", "myproj", "--target", "ruby")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, `unsupported target language "ruby"`)
}

func TestInitThenGenerate(t *testing.T) {
	chdir(t, t.TempDir())

	_, err := executeCLI(t, "init", "myproj")
	require.NoError(t, err)
	chdir(t, "myproj")

	out, err := executeCLI(t, "generate")
	require.NoError(t, err)
	assert.Contains(t, out, "module 'myproj'")

	_, statErr := os.Stat(filepath.Join("generated", "myproj_stubs.c"))
	assert.NoError(t, statErr)
}
