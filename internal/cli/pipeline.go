package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/polyglot/internal/config"
	"github.com/roach88/polyglot/internal/generator"
	"github.com/roach88/polyglot/internal/ir"
	"github.com/roach88/polyglot/internal/naming"
	"github.com/roach88/polyglot/internal/parser"
	"github.com/roach88/polyglot/internal/registry"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeConfig      = "E002" // Config missing or invalid
	ErrCodeParse       = "E003" // Interface parse error
	ErrCodeTypeMapping = "E004" // Type has no mapping in a target
	ErrCodeWriteFailed = "E005" // File write error
	ErrCodeNotFound    = "E006" // Path not found
	ErrCodeName        = "E007" // Identifier cannot be sanitized
)

// mapErrorCode classifies a pipeline error for CLI responses.
func mapErrorCode(err error) string {
	var parseErr *parser.ParseError
	if errors.As(err, &parseErr) {
		return ErrCodeParse
	}
	var mappingErr *registry.TypeMappingError
	if errors.As(err, &mappingErr) {
		return ErrCodeTypeMapping
	}
	var configErr *config.Error
	if errors.As(err, &configErr) {
		return ErrCodeConfig
	}
	var ioErr *generator.IOError
	if errors.As(err, &ioErr) {
		return ErrCodeWriteFailed
	}
	var nameErr *naming.SanitizationError
	if errors.As(err, &nameErr) {
		return ErrCodeName
	}
	return ErrCodeGeneric
}

// sourceUnit is one interface file ready for generation.
type sourceUnit struct {
	Path       string
	ModuleName string
	Module     *ir.Module
}

// moduleBaseName derives the sanitized module name from a source path.
func moduleBaseName(path string) (string, error) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return naming.Sanitize(base)
}

// loadUnits reads and parses the given interface files. nameOverride
// replaces the derived module name and is only legal for a single
// source.
func loadUnits(paths []string, nameOverride string) ([]sourceUnit, error) {
	if nameOverride != "" && len(paths) > 1 {
		return nil, NewExitError(ExitCommandError, "--module cannot be used with multiple source files")
	}
	units := make([]sourceUnit, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("reading %s", path), err)
		}
		mod, err := parser.Parse(string(data), path)
		if err != nil {
			return nil, err
		}
		name := nameOverride
		if name == "" {
			name, err = naming.Sanitize(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
			if err != nil {
				return nil, err
			}
		} else {
			name, err = naming.Sanitize(name)
			if err != nil {
				return nil, err
			}
		}
		units = append(units, sourceUnit{Path: path, ModuleName: name, Module: mod})
	}
	return units, nil
}

// loadConfig loads the project config from opts. required controls
// whether a missing file is an error or just a nil config.
func loadConfig(opts *RootOptions, required bool) (*config.Config, error) {
	path := opts.Config
	if path == "" {
		path = config.DefaultFileName
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !required {
			return nil, nil
		}
		return nil, &config.Error{Path: path, Message: "not found (run `polyglot init` to create one)"}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.CheckRequires(Version); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildRegistry seeds a run's registry: builtins plus any config
// type_mappings. Registration finishes before generation starts.
func buildRegistry(cfg *config.Config) *registry.Registry {
	reg := registry.NewWithBuiltins()
	if cfg != nil {
		cfg.Apply(reg)
	}
	return reg
}

// backends selects the generator set for a run. The native side
// (ctypes, cstubs, dune) is always emitted; wrapper targets follow the
// enabled config targets, defaulting to python.
func backends(cfg *config.Config, targets []string) ([]generator.Generator, error) {
	enabled := map[string]bool{}
	switch {
	case len(targets) > 0:
		for _, t := range targets {
			enabled[t] = true
		}
	case cfg != nil && len(cfg.Targets) > 0:
		for _, t := range cfg.Targets {
			if t.IsEnabled() {
				enabled[t.Language] = true
			}
		}
	default:
		enabled["python"] = true
	}

	for t := range enabled {
		if t != "python" {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("unsupported target language %q (only \"python\")", t))
		}
	}

	gens := []generator.Generator{
		&generator.CtypesGenerator{},
		&generator.CStubGenerator{},
	}
	if enabled["python"] {
		gens = append(gens, &generator.PythonGenerator{})
	}
	gens = append(gens, &generator.DuneGenerator{})
	return gens, nil
}

// artifactNames lists the files a generation run emits for one module.
// clean and check use it without running the backends.
func artifactNames(moduleName string, pythonEnabled bool) []string {
	names := []string{
		"type_description.ml",
		"function_description.ml",
		moduleName + "_stubs.h",
		moduleName + "_stubs.c",
	}
	if pythonEnabled {
		names = append(names, moduleName+"_py.py")
	}
	return append(names, "dune", "dune-project")
}
