package config

import (
	"fmt"
	"strings"
)

// DefaultTOML renders the polyglot.toml scaffold written by `polyglot
// init`. targets defaults to python when empty.
func DefaultTOML(name, toolVersion string, targets []string) string {
	if len(targets) == 0 {
		targets = []string{"python"}
	}
	var b strings.Builder
	b.WriteString("[project]\n")
	fmt.Fprintf(&b, "name = %q\n", name)
	b.WriteString("version = \"0.1.0\"\n")
	fmt.Fprintf(&b, "description = \"FFI bindings for %s\"\n", name)
	fmt.Fprintf(&b, "requires = \">= %s\"\n\n", toolVersion)
	b.WriteString("[source]\n")
	b.WriteString("language = \"ocaml\"\n")
	b.WriteString("dir = \"src\"\n")
	fmt.Fprintf(&b, "files = [%q]\n", name+".mli")
	for _, t := range targets {
		b.WriteString("\n[[targets]]\n")
		fmt.Fprintf(&b, "language = %q\n", t)
		b.WriteString("output_dir = \"generated\"\n")
	}
	b.WriteString("\n# Per-target spellings for types the builtin tables do not cover:\n")
	b.WriteString("# [type_mappings.timestamp]\n")
	b.WriteString("# ocaml = \"float\"\n")
	b.WriteString("# c = \"double\"\n")
	b.WriteString("# python = \"float\"\n")
	b.WriteString("# rust = \"f64\"\n")
	return b.String()
}

// ExampleInterface renders the starter .mli written by `polyglot init`.
func ExampleInterface(name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "(** Interface for %s. Declarations here define the FFI surface. *)\n\n", name)
	b.WriteString("(** Greet someone by name. *)\n")
	b.WriteString("val greet : string -> string\n\n")
	b.WriteString("(** Add two integers. *)\n")
	b.WriteString("val add : int -> int -> int\n")
	return b.String()
}

// GitIgnore renders the scaffold .gitignore.
func GitIgnore() string {
	return "generated/\n_build/\n*.install\n"
}
