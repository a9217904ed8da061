// Package ir provides the language-agnostic intermediate representation
// sitting between the interface parser and the code generators.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This ensures IR remains the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Type is a sealed, closed variant. Generators may never add a case;
//     new target-language types are new leaf mappings in the registry.
//   - Equality is structural over the variant shape, never by name.
//   - Ordered things (parameters, record fields, variant constructors)
//     are slices, never maps. Declaration order is load-bearing: it
//     drives emitted declaration order in every backend.
//   - A Module is created once per parse and is immutable afterwards.
package ir
