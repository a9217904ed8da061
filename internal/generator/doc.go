// Package generator turns a parsed ir.Module into target-language
// source text for the four backends:
//
//   - ctypes: OCaml ctypes binding descriptions (type_description.ml,
//     function_description.ml)
//   - cstubs: the C-ABI shim (<mod>_stubs.h, <mod>_stubs.c) with
//     GC-root bracketing and copy-across-the-boundary marshalling
//   - python: the high-level ctypes wrapper (<mod>_py.py)
//   - dune: build descriptors (dune, dune-project)
//
// Backends are siblings, not a pipeline: each consumes the same module
// and registry and produces its own ordered file set. Declaration
// order from the module is preserved into emitted declaration order,
// so regeneration is deterministic and diffable.
//
// Boundary conventions shared by the cstubs and python backends are
// defined once, in boxed.go. The absent encoding for option values is
// NULL on the C side and None on the Python side, with no second
// sentinel: a pointer-represented payload (strings) uses the same NULL
// and therefore cannot itself be NULL inside a present option.
package generator
