package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/polyglot/internal/config"
	"github.com/roach88/polyglot/internal/naming"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Targets []string
	Force   bool
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init <name>",
		Short: "Scaffold a new polyglot project",
		Long: `Scaffold a new polyglot project directory.

Creates <name>/polyglot.toml, a starter interface under src/, and a
.gitignore. Refuses to overwrite existing files without --force.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Targets, "target", nil, "wrapper language to enable (repeatable, default python)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite existing files")

	return cmd
}

func runInit(opts *InitOptions, name string, cmd *cobra.Command) error {
	formatter := NewFormatter(opts.RootOptions, cmd)

	moduleName, err := naming.Sanitize(name)
	if err != nil {
		return outputPipelineError(formatter, err, ExitCommandError)
	}
	for _, t := range opts.Targets {
		if t != "python" {
			return outputError(formatter, ErrCodeGeneric,
				fmt.Sprintf("unsupported target language %q (only \"python\")", t), ExitCommandError)
		}
	}

	root := name
	files := map[string]string{
		filepath.Join(root, config.DefaultFileName):   config.DefaultTOML(moduleName, Version, opts.Targets),
		filepath.Join(root, "src", moduleName+".mli"): config.ExampleInterface(moduleName),
		filepath.Join(root, ".gitignore"):             config.GitIgnore(),
	}

	if !opts.Force {
		for path := range files {
			if _, statErr := os.Stat(path); statErr == nil {
				return outputError(formatter, ErrCodeWriteFailed,
					fmt.Sprintf("%s already exists (use --force to overwrite)", path), ExitCommandError)
			}
		}
	}

	created := make([]string, 0, len(files))
	for _, path := range []string{
		filepath.Join(root, config.DefaultFileName),
		filepath.Join(root, "src", moduleName+".mli"),
		filepath.Join(root, ".gitignore"),
	} {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return outputError(formatter, ErrCodeWriteFailed, err.Error(), ExitCommandError)
		}
		if err := os.WriteFile(path, []byte(files[path]), 0o644); err != nil {
			return outputError(formatter, ErrCodeWriteFailed, err.Error(), ExitCommandError)
		}
		created = append(created, path)
	}

	return outputInitSuccess(formatter, moduleName, created)
}

func outputInitSuccess(formatter *OutputFormatter, moduleName string, created []string) error {
	if formatter.Format == "json" {
		return formatter.Success(map[string]interface{}{
			"module": moduleName,
			"files":  created,
		})
	}

	fmt.Fprintf(formatter.Writer, "✓ Initialized polyglot project '%s'\n", moduleName)
	for _, path := range created {
		fmt.Fprintf(formatter.Writer, "  %s\n", path)
	}
	fmt.Fprintln(formatter.Writer, "\nNext: edit the interface, then run `polyglot generate`.")
	return nil
}
