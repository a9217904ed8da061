package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/polyglot/internal/generator"
)

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	*RootOptions
	Output  string   // output directory
	Module  string   // module name override
	Targets []string // wrapper languages
	DryRun  bool
}

// ModuleReport summarizes one generated module for CLI output.
type ModuleReport struct {
	Module    string   `json:"module"`
	Source    string   `json:"source"`
	Functions int      `json:"functions"`
	Types     int      `json:"types"`
	Files     []string `json:"files"`
}

// GenerateReport is the generate command's success payload.
type GenerateReport struct {
	OutputDir string         `json:"output_dir"`
	DryRun    bool           `json:"dry_run,omitempty"`
	Modules   []ModuleReport `json:"modules"`
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "generate [interface.mli]",
		Short: "Generate FFI bindings from an ML interface",
		Long: `Generate FFI bindings from an ML-style interface file.

With a positional argument, binds that file directly. Without one, the
sources come from polyglot.toml. Emits the OCaml ctypes descriptions,
the C shim, the Python wrapper, and dune build files.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output directory (default: config output_dir or \"generated\")")
	cmd.Flags().StringVar(&opts.Module, "module", "", "module name override (single source only)")
	cmd.Flags().StringArrayVar(&opts.Targets, "target", nil, "wrapper language to emit (repeatable)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "list the files without writing them")

	return cmd
}

func runGenerate(opts *GenerateOptions, args []string, cmd *cobra.Command) error {
	formatter := NewFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions, len(args) == 0)
	if err != nil {
		return outputPipelineError(formatter, err, ExitCommandError)
	}

	sources := args
	if len(sources) == 0 {
		sources, err = cfg.SourceFiles()
		if err != nil {
			return outputPipelineError(formatter, err, ExitCommandError)
		}
		if len(sources) == 0 {
			return outputError(formatter, ErrCodeNotFound,
				fmt.Sprintf("no source files configured in %s", cfg.Path()), ExitCommandError)
		}
	}

	gens, err := backends(cfg, opts.Targets)
	if err != nil {
		return outputPipelineError(formatter, err, ExitCommandError)
	}

	outDir := opts.Output
	if outDir == "" {
		if cfg != nil {
			outDir = cfg.OutputDir()
		} else {
			outDir = "generated"
		}
	}

	units, err := loadUnits(sources, opts.Module)
	if err != nil {
		return outputPipelineError(formatter, err, ExitFailure)
	}

	reg := buildRegistry(cfg)

	report := &GenerateReport{OutputDir: outDir, DryRun: opts.DryRun}
	for _, unit := range units {
		formatter.VerboseLog("Generating bindings for %s (module %s)", unit.Path, unit.ModuleName)
		result, runErr := generator.Run(cmd.Context(), unit.Module, reg, unit.ModuleName, outDir, gens, opts.DryRun)
		if runErr != nil {
			// Fail fast: nothing is written for a module that cannot
			// fully map, and later modules are not attempted.
			return outputPipelineError(formatter, runErr, ExitFailure)
		}
		mr := ModuleReport{
			Module:    result.ModuleName,
			Source:    unit.Path,
			Functions: result.Functions,
			Types:     result.Types,
		}
		for _, f := range result.Files {
			mr.Files = append(mr.Files, f.Path)
		}
		report.Modules = append(report.Modules, mr)
	}

	return outputGenerateSuccess(formatter, report)
}

func outputGenerateSuccess(formatter *OutputFormatter, report *GenerateReport) error {
	if formatter.Format == "json" {
		return formatter.Success(report)
	}

	verb := "Generated"
	if report.DryRun {
		verb = "Would generate"
	}
	for _, m := range report.Modules {
		fmt.Fprintf(formatter.Writer, "✓ %s %d file(s) for module '%s' (%d function(s), %d type(s))\n",
			verb, len(m.Files), m.Module, m.Functions, m.Types)
		for _, f := range m.Files {
			fmt.Fprintf(formatter.Writer, "  %s/%s\n", report.OutputDir, f)
		}
	}
	return nil
}

// outputPipelineError reports a classified pipeline error and carries
// its exit code.
func outputPipelineError(formatter *OutputFormatter, err error, exitCode int) error {
	code := mapErrorCode(err)
	_ = formatter.Error(code, err.Error(), nil)
	return WrapExitError(exitCode, fmt.Sprintf("%s: %s", code, err.Error()), err)
}

// outputError reports a one-off error with an explicit code.
func outputError(formatter *OutputFormatter, code, message string, exitCode int) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(exitCode, fmt.Sprintf("%s: %s", code, message))
}
