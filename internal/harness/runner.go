package harness

import (
	"bytes"
	"context"
	"fmt"

	"github.com/roach88/polyglot/internal/generator"
	"github.com/roach88/polyglot/internal/parser"
	"github.com/roach88/polyglot/internal/registry"
)

// Execute runs a scenario's interface through the full pipeline with
// the selected backends in dry-run mode and returns the generated
// files in backend order.
func Execute(ctx context.Context, s *Scenario) ([]generator.File, error) {
	mod, err := parser.Parse(s.Interface, s.moduleName()+".mli")
	if err != nil {
		return nil, err
	}

	gens, err := selectBackends(s.Backends)
	if err != nil {
		return nil, err
	}

	reg := registry.NewWithBuiltins()
	result, err := generator.Run(ctx, mod, reg, mod.Name, "", gens, true)
	if err != nil {
		return nil, err
	}
	return result.Files, nil
}

// selectBackends resolves backend names to generators, preserving the
// requested order. Empty means the standard four.
func selectBackends(names []string) ([]generator.Generator, error) {
	if len(names) == 0 {
		return generator.Defaults(), nil
	}
	byName := map[string]generator.Generator{}
	for _, g := range generator.Defaults() {
		byName[g.Name()] = g
	}
	var gens []generator.Generator
	for _, n := range names {
		g, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("unknown backend %q", n)
		}
		gens = append(gens, g)
	}
	return gens, nil
}

// renderFiles flattens generated files into one deterministic byte
// stream for golden comparison.
func renderFiles(files []generator.File) []byte {
	var b bytes.Buffer
	for _, f := range files {
		fmt.Fprintf(&b, "=== %s ===\n", f.Path)
		b.WriteString(f.Content)
	}
	return b.Bytes()
}
