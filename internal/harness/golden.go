package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/polyglot/internal/generator"
)

// Verify executes a scenario and applies its assertions. Golden
// comparison uses testdata/golden/<name>.golden; regenerate fixtures
// with `go test -update`.
func Verify(t *testing.T, s *Scenario) {
	t.Helper()

	files, err := Execute(context.Background(), s)
	if s.ExpectError != "" {
		require.Error(t, err)
		assert.Contains(t, err.Error(), s.ExpectError)
		return
	}
	require.NoError(t, err)

	byPath := make(map[string]string, len(files))
	for _, f := range files {
		byPath[f.Path] = f.Content
	}

	for path, subs := range s.Expect {
		content, ok := byPath[path]
		require.True(t, ok, "no generated file %q (got %v)", path, paths(files))
		for _, sub := range subs {
			assert.Contains(t, content, sub, "%s missing %q", path, sub)
		}
	}

	if s.Golden {
		g := goldie.New(t,
			goldie.WithFixtureDir("testdata/golden"),
			goldie.WithNameSuffix(".golden"),
		)
		g.Assert(t, s.Name, renderFiles(files))
	}
}

func paths(files []generator.File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}
