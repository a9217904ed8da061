package generator

import (
	"fmt"
	"strings"

	"github.com/roach88/polyglot/internal/ir"
	"github.com/roach88/polyglot/internal/registry"
)

// CtypesGenerator emits the OCaml ctypes binding descriptions
// (type_description.ml and function_description.ml) that describe the
// shim's C entry points to the OCaml toolchain.
type CtypesGenerator struct{}

func (g *CtypesGenerator) Name() string { return "ctypes" }

func (g *CtypesGenerator) Generate(mod *ir.Module, reg *registry.Registry, moduleName string) ([]File, error) {
	typeDesc, err := g.typeDescription(mod, reg, moduleName)
	if err != nil {
		return nil, err
	}
	funcDesc, err := g.functionDescription(mod, reg, moduleName)
	if err != nil {
		return nil, err
	}
	return []File{
		{Path: "type_description.ml", Content: typeDesc},
		{Path: "function_description.ml", Content: funcDesc},
	}, nil
}

func (g *CtypesGenerator) typeDescription(mod *ir.Module, reg *registry.Registry, moduleName string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "(* Type descriptions for %s. Generated by polyglot; do not edit. *)\n\n", moduleName)
	b.WriteString("open Ctypes\n\n")
	b.WriteString("module Types (F : Ctypes.TYPE) = struct\n")

	for _, def := range mod.TypeDefs {
		// Composite types cross the shim boundary in the boxed
		// representation; their OCaml-side spelling is recorded here
		// for readers of the generated bindings.
		spelling, err := reg.Mapping(def.Body, registry.TargetOCaml)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "  (* %s crosses the boundary boxed: %s *)\n", spelling, def.Render())
	}

	b.WriteString("end\n")
	return b.String(), nil
}

func (g *CtypesGenerator) functionDescription(mod *ir.Module, reg *registry.Registry, moduleName string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "(* Function descriptions for %s. Generated by polyglot; do not edit. *)\n\n", moduleName)
	b.WriteString("open Ctypes\n\n")
	b.WriteString("module Functions (F : Ctypes.FOREIGN) = struct\n")
	b.WriteString("  open F\n")

	for _, fn := range mod.Functions {
		// Validate the full signature through the registry so a
		// mapping failure aborts this backend before any text is
		// considered complete.
		for _, p := range fn.Params {
			if _, err := reg.Mapping(p.Type, registry.TargetOCaml); err != nil {
				return "", err
			}
		}
		if _, err := reg.Mapping(fn.Return, registry.TargetOCaml); err != nil {
			return "", err
		}

		b.WriteString("\n")
		if fn.Doc != "" {
			fmt.Fprintf(&b, "  (* %s *)\n", fn.Doc)
		}
		fmt.Fprintf(&b, "  let %s =\n", fn.Name)
		fmt.Fprintf(&b, "    F.foreign \"%s%s\" (%s)\n", SymbolPrefix, fn.Name, g.signature(fn))
	}

	b.WriteString("end\n")
	return b.String(), nil
}

// signature renders the ctypes combinator chain describing the shim
// entry point's C signature.
func (g *CtypesGenerator) signature(fn ir.Function) string {
	var parts []string
	for _, p := range fn.Params {
		if isUnit(p.Type) {
			continue
		}
		parts = append(parts, g.combinators(p.Type)...)
	}
	if len(parts) == 0 {
		parts = append(parts, "void")
	}
	ret := g.returnCombinator(fn.Return)
	return strings.Join(parts, " @-> ") + " @-> returning " + ret
}

// combinators maps one parameter to its C-signature combinators. A
// natural list parameter expands to (array, length) and so contributes
// two combinators.
func (g *CtypesGenerator) combinators(t ir.Type) []string {
	if elem, ok := naturalList(t); ok {
		return []string{"ptr " + primCombinator(elem), "int"}
	}
	return []string{valueCombinator(t)}
}

func (g *CtypesGenerator) returnCombinator(t ir.Type) string {
	if isUnit(t) {
		return "void"
	}
	if _, ok := naturalList(t); ok {
		return "(ptr (ptr void))"
	}
	c := valueCombinator(t)
	if strings.Contains(c, " ") {
		return "(" + c + ")"
	}
	return c
}

// valueCombinator maps a single value's boundary representation.
func valueCombinator(t ir.Type) string {
	if name := primName(t); name != "" {
		return primCombinator(t)
	}
	if inner, ok := naturalOption(t); ok {
		if isString(inner) {
			return "string_opt"
		}
		return "ptr " + primCombinator(inner)
	}
	// Boxed representation: an opaque pointer.
	return "ptr void"
}

func primCombinator(t ir.Type) string {
	switch primName(t) {
	case "string":
		return "string"
	case "int":
		return "int"
	case "float":
		return "double"
	case "bool":
		return "bool"
	case "unit":
		return "void"
	}
	return "ptr void"
}
