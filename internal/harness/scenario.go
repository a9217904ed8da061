package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines one conformance scenario: an interface source plus
// assertions on what the pipeline produces for it.
type Scenario struct {
	// Name uniquely identifies this scenario; it is also the golden
	// fixture name when Golden is set.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Module is the source module name (sanitization applies, so a
	// hyphenated name exercises the naming policy). Defaults to
	// "example".
	Module string `yaml:"module,omitempty"`

	// Interface is the inline interface source text.
	Interface string `yaml:"interface"`

	// Backends selects the backends to run, by name. Empty means all
	// four in their standard order.
	Backends []string `yaml:"backends,omitempty"`

	// Expect maps a generated file path to substrings that must appear
	// in its content.
	Expect map[string][]string `yaml:"expect,omitempty"`

	// ExpectError, when set, asserts the run fails and the error
	// message contains this substring. Mutually exclusive with Expect
	// and Golden.
	ExpectError string `yaml:"expect_error,omitempty"`

	// Golden compares the full rendered output against
	// testdata/golden/<name>.golden.
	Golden bool `yaml:"golden,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields
// are rejected so a typo fails loudly instead of silently skipping an
// assertion.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}

	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}

	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Interface == "" {
		return fmt.Errorf("interface is required")
	}
	if s.ExpectError != "" && (len(s.Expect) > 0 || s.Golden) {
		return fmt.Errorf("expect_error excludes expect and golden")
	}
	if s.ExpectError == "" && len(s.Expect) == 0 && !s.Golden {
		return fmt.Errorf("at least one of expect, expect_error, or golden is required")
	}
	for file, subs := range s.Expect {
		if len(subs) == 0 {
			return fmt.Errorf("expect[%s]: substring list must be non-empty", file)
		}
	}
	return nil
}

func (s *Scenario) moduleName() string {
	if s.Module != "" {
		return s.Module
	}
	return "example"
}
