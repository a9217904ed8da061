package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/roach88/polyglot/internal/config"
	"github.com/roach88/polyglot/internal/generator"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Debounce time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Regenerate bindings when interfaces change",
		Long: `Watch the configured interface files and regenerate on change.

Events are debounced so editor save bursts trigger one regeneration.
Stops cleanly on Ctrl-C.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Debounce, "debounce", 500*time.Millisecond, "delay before regenerating after a change")

	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	formatter := NewFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions, true)
	if err != nil {
		return outputPipelineError(formatter, err, ExitCommandError)
	}
	sources, err := cfg.SourceFiles()
	if err != nil {
		return outputPipelineError(formatter, err, ExitCommandError)
	}
	if len(sources) == 0 {
		return outputError(formatter, ErrCodeNotFound,
			fmt.Sprintf("no source files configured in %s", cfg.Path()), ExitCommandError)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return outputError(formatter, ErrCodeGeneric, err.Error(), ExitCommandError)
	}
	defer watcher.Close()

	// Watch directories, not files: editors replace files on save and
	// per-file watches die with the old inode.
	watched := map[string]bool{}
	interesting := map[string]bool{}
	for _, s := range sources {
		interesting[filepath.Clean(s)] = true
		dir := filepath.Dir(s)
		if !watched[dir] {
			if err := watcher.Add(dir); err != nil {
				return outputError(formatter, ErrCodeNotFound,
					fmt.Sprintf("watching %s: %v", dir, err), ExitCommandError)
			}
			watched[dir] = true
		}
	}

	regenerate := func() {
		if err := watchGenerate(cfg, cmd); err != nil {
			// Keep watching: a broken intermediate save is normal.
			fmt.Fprintf(formatter.Writer, "✗ %s\n", err.Error())
			return
		}
		fmt.Fprintf(formatter.Writer, "✓ Regenerated at %s\n", time.Now().Format("15:04:05"))
	}

	fmt.Fprintf(formatter.Writer, "Watching %d file(s); press Ctrl-C to stop\n", len(sources))
	regenerate()

	// Debounce timer: armed by events, fired once quiet.
	timer := time.NewTimer(opts.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	ctx := cmd.Context()
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(formatter.Writer, "Stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !interesting[filepath.Clean(event.Name)] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			formatter.VerboseLog("Change detected: %s (%s)", event.Name, event.Op)
			if pending && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(opts.Debounce)
			pending = true

		case <-timer.C:
			pending = false
			regenerate()

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			formatter.VerboseLog("Watcher error: %v", watchErr)
		}
	}
}

// watchGenerate runs one full generation pass with the watch config.
func watchGenerate(cfg *config.Config, cmd *cobra.Command) error {
	sources, err := cfg.SourceFiles()
	if err != nil {
		return err
	}
	gens, err := backends(cfg, nil)
	if err != nil {
		return err
	}
	units, err := loadUnits(sources, "")
	if err != nil {
		return err
	}
	reg := buildRegistry(cfg)
	for _, unit := range units {
		if _, err := generator.Run(cmd.Context(), unit.Module, reg, unit.ModuleName, cfg.OutputDir(), gens, false); err != nil {
			return err
		}
	}
	return nil
}
