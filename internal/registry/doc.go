// Package registry maps IR types to target-language type spellings.
//
// A Registry holds the built-in primitive tables for every supported
// target, user-registered primitives and converter functions, and a
// memoization cache keyed by (structural type key, target). It is built
// once per run, mutated only during setup, and read-mostly afterwards:
// the generation fan-out may call Mapping concurrently.
//
// The single recursive visitor in Mapping is the only place container
// and composite spellings are produced. Generators never hardcode a
// type spelling; a registration change propagates to every backend.
package registry
