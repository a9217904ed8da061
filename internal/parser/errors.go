package parser

import (
	"fmt"
	"strings"
)

// ParseError reports malformed signature or type syntax. Line is
// 1-based and refers to the first line of the offending declaration.
// Suggestions are actionable corrections surfaced verbatim by the CLI.
type ParseError struct {
	File        string
	Line        int
	Message     string
	Suggestions []string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// typoCorrections maps common misspellings of builtin type names to the
// supported spelling.
var typoCorrections = map[string]string{
	"str":     "string",
	"String":  "string",
	"integer": "int",
	"Integer": "int",
	"Int":     "int",
	"boolean": "bool",
	"Boolean": "bool",
	"Bool":    "bool",
	"double":  "float",
	"Float":   "float",
	"void":    "unit",
	"None":    "unit",
	"null":    "unit",
}

// suggestTypeFix builds "did you mean" suggestions for an unsupported
// or misspelled type name.
func suggestTypeFix(name string) []string {
	var suggestions []string

	if correct, ok := typoCorrections[name]; ok {
		suggestions = append(suggestions, fmt.Sprintf("did you mean '%s'?", correct))
	}
	if strings.Contains(strings.ToLower(name), "optional") {
		suggestions = append(suggestions, "use 'option' instead of 'optional' (e.g. 'string option')")
	}
	if strings.Contains(strings.ToLower(name), "array") {
		suggestions = append(suggestions, "use 'list' instead of 'array' (e.g. 'int list')")
	}
	if len(suggestions) == 0 {
		suggestions = append(suggestions,
			"supported primitives: string, int, float, bool, unit",
			"containers: 'a option, 'a list, tuples (int * string)",
			"custom types: define with 'type name = ...'",
		)
	}
	return suggestions
}

// suggestSignatureFix builds suggestions for malformed declarations.
func suggestSignatureFix(kind string) []string {
	switch kind {
	case "val":
		return []string{
			"signature format: val name : type1 -> type2 -> return_type",
			"example: val encrypt : string -> string",
		}
	case "record":
		return []string{
			"record format: type name = { field1: type1; field2: type2 }",
			"fields are separated by semicolons",
		}
	case "variant":
		return []string{
			"variant format: type name = Constructor1 | Constructor2 of type",
			"example: type result = Ok of string | Error of string",
		}
	}
	return nil
}
