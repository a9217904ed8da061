package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/polyglot/internal/generator"
)

// CheckReport is the check command's payload.
type CheckReport struct {
	Valid    bool           `json:"valid"`
	Warnings []string       `json:"warnings,omitempty"`
	Errors   []CLIError     `json:"errors,omitempty"`
	Modules  []ModuleReport `json:"modules,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the project without writing files",
		Long: `Validate the project configuration and interfaces.

Loads polyglot.toml, parses every configured interface, and runs the
full generation pipeline in dry-run mode so every used type is checked
against every enabled target. Nothing is written.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, cmd)
		},
	}

	return cmd
}

func runCheck(opts *RootOptions, cmd *cobra.Command) error {
	formatter := NewFormatter(opts, cmd)

	cfg, err := loadConfig(opts, true)
	if err != nil {
		return outputPipelineError(formatter, err, ExitCommandError)
	}

	report := &CheckReport{Valid: true, Warnings: cfg.Warnings()}

	sources, err := cfg.SourceFiles()
	if err != nil {
		return outputPipelineError(formatter, err, ExitCommandError)
	}
	if len(sources) == 0 {
		return outputError(formatter, ErrCodeNotFound,
			fmt.Sprintf("no source files configured in %s", cfg.Path()), ExitCommandError)
	}

	gens, err := backends(cfg, nil)
	if err != nil {
		return outputPipelineError(formatter, err, ExitCommandError)
	}
	reg := buildRegistry(cfg)

	// Collect-all over sources: one bad interface should not hide
	// problems in the others.
	for _, source := range sources {
		formatter.VerboseLog("Checking %s", source)
		units, loadErr := loadUnits([]string{source}, "")
		if loadErr != nil {
			report.Valid = false
			report.Errors = append(report.Errors, CLIError{
				Code:    mapErrorCode(loadErr),
				Message: loadErr.Error(),
			})
			continue
		}
		unit := units[0]
		result, runErr := generator.Run(cmd.Context(), unit.Module, reg, unit.ModuleName, "", gens, true)
		if runErr != nil {
			report.Valid = false
			report.Errors = append(report.Errors, CLIError{
				Code:    mapErrorCode(runErr),
				Message: runErr.Error(),
			})
			continue
		}
		report.Modules = append(report.Modules, ModuleReport{
			Module:    result.ModuleName,
			Source:    unit.Path,
			Functions: result.Functions,
			Types:     result.Types,
		})
	}

	return outputCheckReport(formatter, report)
}

func outputCheckReport(formatter *OutputFormatter, report *CheckReport) error {
	if formatter.Format == "json" {
		if err := formatter.Success(report); err != nil {
			return err
		}
		if !report.Valid {
			return NewExitError(ExitFailure, fmt.Sprintf("check failed with %d error(s)", len(report.Errors)))
		}
		return nil
	}

	for _, w := range report.Warnings {
		fmt.Fprintf(formatter.Writer, "⚠ %s\n", w)
	}
	if report.Valid {
		fmt.Fprintf(formatter.Writer, "✓ %d module(s) check out\n", len(report.Modules))
		for _, m := range report.Modules {
			fmt.Fprintf(formatter.Writer, "  %s: %d function(s), %d type(s)\n", m.Module, m.Functions, m.Types)
		}
		return nil
	}

	fmt.Fprintln(formatter.Writer, "✗ Check failed")
	fmt.Fprintln(formatter.Writer)
	for _, e := range report.Errors {
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", e.Code, e.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("check failed with %d error(s)", len(report.Errors)))
}
