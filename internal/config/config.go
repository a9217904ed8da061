package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/pelletier/go-toml/v2"

	"github.com/roach88/polyglot/internal/registry"
)

// DefaultFileName is the config file the CLI looks for in the working
// directory.
const DefaultFileName = "polyglot.toml"

// Error reports a config problem that prevents a run. Field is the
// dotted TOML path of the offending entry when one applies.
type Error struct {
	Path    string
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Config mirrors polyglot.toml.
type Config struct {
	Project      Project                      `toml:"project"`
	Source       Source                       `toml:"source"`
	Targets      []Target                     `toml:"targets"`
	Build        Build                        `toml:"build"`
	TypeMappings map[string]map[string]string `toml:"type_mappings"`

	path string
}

// Project identifies the bound library.
type Project struct {
	Name        string `toml:"name"`
	Version     string `toml:"version"`
	Description string `toml:"description"`
	// Requires is a semver constraint on the polyglot tool version.
	Requires string `toml:"requires"`
}

// Source locates the interface files to bind.
type Source struct {
	Language string   `toml:"language"`
	Dir      string   `toml:"dir"`
	Files    []string `toml:"files"`
}

// Target enables one wrapper language. Enabled defaults to true when
// omitted.
type Target struct {
	Language  string `toml:"language"`
	OutputDir string `toml:"output_dir"`
	Enabled   *bool  `toml:"enabled"`
}

// IsEnabled reports whether the target participates in generation.
func (t Target) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

// Build holds toolchain knobs passed through to the emitted build
// descriptors.
type Build struct {
	DuneVersion string `toml:"dune_version"`
}

// Load reads and structurally validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Message: err.Error()}
	}
	cfg := &Config{path: path}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, &Error{Path: path, Message: err.Error()}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the file the config was loaded from.
func (c *Config) Path() string {
	if c.path == "" {
		return DefaultFileName
	}
	return c.path
}

func (c *Config) validate() error {
	if c.Project.Name == "" {
		return &Error{Path: c.Path(), Field: "project.name", Message: "required"}
	}
	if c.Source.Language != "" && c.Source.Language != "ocaml" {
		return &Error{
			Path:    c.Path(),
			Field:   "source.language",
			Message: fmt.Sprintf("unsupported source language %q (only \"ocaml\")", c.Source.Language),
		}
	}
	enabled := 0
	for i, t := range c.Targets {
		if t.Language != "python" {
			return &Error{
				Path:    c.Path(),
				Field:   fmt.Sprintf("targets[%d].language", i),
				Message: fmt.Sprintf("unsupported target language %q (only \"python\")", t.Language),
			}
		}
		if t.IsEnabled() {
			enabled++
		}
	}
	if len(c.Targets) > 0 && enabled == 0 {
		return &Error{Path: c.Path(), Field: "targets", Message: "all targets are disabled"}
	}
	for name, spellings := range c.TypeMappings {
		for target := range spellings {
			if !registry.Target(target).Valid() {
				return &Error{
					Path:    c.Path(),
					Field:   "type_mappings." + name,
					Message: fmt.Sprintf("unknown target %q", target),
				}
			}
		}
	}
	return nil
}

// CheckRequires enforces the project.requires semver constraint
// against the running tool version.
func (c *Config) CheckRequires(toolVersion string) error {
	if c.Project.Requires == "" {
		return nil
	}
	constraint, err := semver.NewConstraint(c.Project.Requires)
	if err != nil {
		return &Error{
			Path:    c.Path(),
			Field:   "project.requires",
			Message: fmt.Sprintf("invalid constraint %q: %v", c.Project.Requires, err),
		}
	}
	v, err := semver.NewVersion(toolVersion)
	if err != nil {
		return &Error{
			Path:    c.Path(),
			Field:   "project.requires",
			Message: fmt.Sprintf("cannot parse tool version %q: %v", toolVersion, err),
		}
	}
	if !constraint.Check(v) {
		return &Error{
			Path:    c.Path(),
			Field:   "project.requires",
			Message: fmt.Sprintf("polyglot %s does not satisfy required %q", toolVersion, c.Project.Requires),
		}
	}
	return nil
}

// Warnings reports non-fatal issues, mirroring what a dry check prints.
func (c *Config) Warnings() []string {
	var warnings []string
	files, err := c.SourceFiles()
	if err == nil && len(files) == 0 {
		warnings = append(warnings, fmt.Sprintf("no source files found under %q", c.sourceDir()))
	}
	for _, f := range files {
		if _, statErr := os.Stat(f); statErr != nil {
			warnings = append(warnings, fmt.Sprintf("source file %s does not exist", f))
		}
	}
	seen := map[string]bool{}
	for _, t := range c.Targets {
		if !t.IsEnabled() {
			warnings = append(warnings, fmt.Sprintf("target %q is disabled", t.Language))
			continue
		}
		if seen[t.Language] {
			warnings = append(warnings, fmt.Sprintf("duplicate target %q", t.Language))
		}
		seen[t.Language] = true
	}
	return warnings
}

func (c *Config) sourceDir() string {
	if c.Source.Dir != "" {
		return c.Source.Dir
	}
	return "src"
}

// SourceFiles resolves the interface files to parse: the explicit list
// joined onto the source dir, or every .mli under it.
func (c *Config) SourceFiles() ([]string, error) {
	dir := c.sourceDir()
	if len(c.Source.Files) > 0 {
		files := make([]string, 0, len(c.Source.Files))
		for _, f := range c.Source.Files {
			if filepath.IsAbs(f) {
				files = append(files, f)
			} else {
				files = append(files, filepath.Join(dir, f))
			}
		}
		return files, nil
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.mli"))
	if err != nil {
		return nil, &Error{Path: c.Path(), Field: "source.dir", Message: err.Error()}
	}
	sort.Strings(matches)
	return matches, nil
}

// OutputDir returns the first enabled target's output dir, defaulting
// to "generated".
func (c *Config) OutputDir() string {
	for _, t := range c.Targets {
		if t.IsEnabled() && t.OutputDir != "" {
			return t.OutputDir
		}
	}
	return "generated"
}

// Apply registers the [type_mappings] tables on a registry. Every
// custom type registers its per-target spellings as a primitive leaf.
// Registration order is name-sorted so runs are deterministic.
func (c *Config) Apply(reg *registry.Registry) {
	names := make([]string, 0, len(c.TypeMappings))
	for name := range c.TypeMappings {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		spellings := map[registry.Target]string{}
		for target, spelling := range c.TypeMappings[name] {
			spellings[registry.Target(target)] = spelling
		}
		reg.RegisterPrimitive(name, spellings)
	}
}
