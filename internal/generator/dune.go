package generator

import (
	"fmt"
	"strings"

	"github.com/roach88/polyglot/internal/ir"
	"github.com/roach88/polyglot/internal/registry"
)

// DuneGenerator emits the build descriptors (dune, dune-project) for
// the native toolchain. The library name and stub file names derive
// from the already-sanitized module name, so they always agree with
// the symbols the other backends emit.
type DuneGenerator struct{}

func (g *DuneGenerator) Name() string { return "dune" }

func (g *DuneGenerator) Generate(mod *ir.Module, reg *registry.Registry, moduleName string) ([]File, error) {
	return []File{
		{Path: "dune", Content: g.dune(moduleName)},
		{Path: "dune-project", Content: g.duneProject(moduleName)},
	}, nil
}

func (g *DuneGenerator) dune(moduleName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "; Build rules for %s. Generated by polyglot; do not edit.\n", moduleName)
	fmt.Fprintf(&b, "; C shim: %s_stubs.c / %s_stubs.h\n", moduleName, moduleName)
	b.WriteString("(library\n")
	fmt.Fprintf(&b, " (name %s_bindings)\n", moduleName)
	b.WriteString(" (libraries ctypes ctypes.foreign)\n")
	b.WriteString(" (ctypes\n")
	fmt.Fprintf(&b, "  (external_library_name %s)\n", moduleName)
	b.WriteString("  (build_flags_resolver vendored)\n")
	fmt.Fprintf(&b, "  (headers (include \"%s_stubs.h\"))\n", moduleName)
	b.WriteString("  (type_description\n")
	b.WriteString("   (instance Types)\n")
	b.WriteString("   (functor Type_description))\n")
	b.WriteString("  (function_description\n")
	b.WriteString("   (instance Functions)\n")
	b.WriteString("   (functor Function_description))\n")
	b.WriteString("  (generated_types Types_generated)\n")
	b.WriteString("  (generated_entry_point C))\n")
	b.WriteString(" (foreign_stubs\n")
	b.WriteString("  (language c)\n")
	fmt.Fprintf(&b, "  (names %s_stubs)))\n", moduleName)
	return b.String()
}

func (g *DuneGenerator) duneProject(moduleName string) string {
	var b strings.Builder
	b.WriteString("(lang dune 3.16)\n")
	b.WriteString("(using ctypes 0.3)\n")
	fmt.Fprintf(&b, "(name %s_bindings)\n", moduleName)
	b.WriteString("(package\n")
	fmt.Fprintf(&b, " (name %s_bindings)\n", moduleName)
	b.WriteString(" (depends\n")
	b.WriteString("  (ocaml (>= 4.14))\n")
	b.WriteString("  ctypes))\n")
	return b.String()
}
