// Package harness runs conformance scenarios against the binding
// pipeline. A scenario is a YAML file holding an inline interface
// source, the backends to run, and assertions on the generated
// artifacts: required substrings per file, an expected error, or a
// byte-exact golden comparison.
//
// Scenarios live in testdata/scenarios and run through a single table
// test, so adding coverage for a new signature shape means adding a
// YAML file, not Go code.
package harness
