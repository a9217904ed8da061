package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// CleanOptions holds flags for the clean command.
type CleanOptions struct {
	*RootOptions
	DryRun bool
}

// NewCleanCommand creates the clean command.
func NewCleanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CleanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove generated binding artifacts",
		Long: `Remove the binding artifacts a generate run emits.

Only the files polyglot itself generates for the configured modules are
removed; nothing else under the output directory is touched.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "list the files without removing them")

	return cmd
}

func runClean(opts *CleanOptions, cmd *cobra.Command) error {
	formatter := NewFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions, true)
	if err != nil {
		return outputPipelineError(formatter, err, ExitCommandError)
	}
	sources, err := cfg.SourceFiles()
	if err != nil {
		return outputPipelineError(formatter, err, ExitCommandError)
	}

	pythonEnabled := false
	for _, t := range cfg.Targets {
		if t.Language == "python" && t.IsEnabled() {
			pythonEnabled = true
		}
	}
	if len(cfg.Targets) == 0 {
		pythonEnabled = true
	}

	outDir := cfg.OutputDir()
	var removed []string
	for _, source := range sources {
		name, nameErr := moduleBaseName(source)
		if nameErr != nil {
			return outputPipelineError(formatter, nameErr, ExitCommandError)
		}
		for _, artifact := range artifactNames(name, pythonEnabled) {
			path := filepath.Join(outDir, artifact)
			if _, statErr := os.Stat(path); statErr != nil {
				continue
			}
			if !opts.DryRun {
				if rmErr := os.Remove(path); rmErr != nil {
					return outputError(formatter, ErrCodeWriteFailed, rmErr.Error(), ExitCommandError)
				}
			}
			removed = append(removed, path)
		}
	}

	return outputCleanSuccess(formatter, removed, opts.DryRun)
}

func outputCleanSuccess(formatter *OutputFormatter, removed []string, dryRun bool) error {
	if formatter.Format == "json" {
		return formatter.Success(map[string]interface{}{
			"removed": removed,
			"dry_run": dryRun,
		})
	}

	verb := "Removed"
	if dryRun {
		verb = "Would remove"
	}
	fmt.Fprintf(formatter.Writer, "✓ %s %d file(s)\n", verb, len(removed))
	for _, path := range removed {
		fmt.Fprintf(formatter.Writer, "  %s\n", path)
	}
	return nil
}
