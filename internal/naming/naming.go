// Package naming provides the single centralized identifier sanitizer.
//
// Every identifier that enters the IR (module names, function names,
// field and constructor names) passes through Sanitize exactly once, at
// ingestion. Generators never re-derive names: divergent per-generator
// sanitization is the dominant historical class of cross-backend
// breakage, so the normalized form is computed here and nowhere else.
//
// The normalized form is simultaneously valid as a file name, a dune
// library name, a C identifier, an OCaml identifier, and a Python
// identifier.
package naming

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SanitizationError reports an identifier that cannot be made valid in
// every required context after normalization.
type SanitizationError struct {
	Input string
}

func (e *SanitizationError) Error() string {
	return fmt.Sprintf("identifier %q has no valid normalized form", e.Input)
}

// Sanitize normalizes name into the shared identifier form: every run
// of characters outside [A-Za-z0-9_] collapses to a single underscore,
// and a leading digit is prefixed with an underscore. Sanitize is
// idempotent. Inputs that differ only by separator characters collapse
// to the same output by policy: "my-crypto-lib" and "my_crypto_lib"
// both normalize to "my_crypto_lib".
func Sanitize(name string) (string, error) {
	var b strings.Builder
	pendingSep := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			if pendingSep {
				b.WriteByte('_')
				pendingSep = false
			}
			b.WriteRune(r)
		case r == '_':
			// Underscores are kept verbatim so sanitize(sanitize(x))
			// cannot differ from sanitize(x).
			if pendingSep {
				b.WriteByte('_')
				pendingSep = false
			}
			b.WriteByte('_')
		default:
			if b.Len() > 0 {
				pendingSep = true
			}
		}
	}

	out := b.String()
	if strings.Trim(out, "_") == "" {
		return "", &SanitizationError{Input: name}
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out, nil
}

// MustSanitize is Sanitize for identifiers already known to be valid,
// e.g. literals in generators and tests.
func MustSanitize(name string) string {
	out, err := Sanitize(name)
	if err != nil {
		panic(err)
	}
	return out
}

var titler = cases.Title(language.English, cases.NoLower)

// Pascal converts an already-sanitized identifier to PascalCase, used
// for class-style names in the wrapper backends ("my_result" ->
// "MyResult").
func Pascal(name string) string {
	parts := strings.Split(name, "_")
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(titler.String(p))
	}
	return b.String()
}
