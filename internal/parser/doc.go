// Package parser converts ML-style interface source text (.mli) into
// the ir.Module representation consumed by the generators.
//
// Supported surface:
//   - val <name> : <type-expr> signatures, with an immediately
//     preceding (** ... *) documentation block attached to the
//     declaration
//   - type <name> = { field: T; ... } record definitions
//   - type <name> = Ctor | Ctor of T variant definitions
//   - type expressions: right-associative ->, left-flattened * products,
//     postfix option/list application, parentheses, 'a type variables,
//     and by-name references
//
// Named references to locally defined types are resolved into their
// Record/Variant bodies before the module is returned, so generators
// never perform symbol table lookups. Unknown names stay as opaque
// ir.Named references and map to each target's opaque spelling.
//
// Every identifier is passed through naming.Sanitize exactly once, here,
// at ingestion.
package parser
