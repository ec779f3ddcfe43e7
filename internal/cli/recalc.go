package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gridloom/gridloom/internal/blueprint"
	"github.com/gridloom/gridloom/internal/gridstore"
	"github.com/gridloom/gridloom/internal/harness"
)

// NewRecalcCommand creates the recalc command: load a blueprint, build the
// grid, recalculate everything, and dump the resulting cell state.
func NewRecalcCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recalc <blueprint-dir>",
		Short: "Build a blueprint and dump the recalculated grid",
		Long: `Load a CUE blueprint, build its grid in memory, run a full
recalculation (formula and link passes, dependent fan-out), and print the
final cell state.

Useful for inspecting what a blueprint's formulas and links actually
produce before serving it.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecalc(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runRecalc(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	result, err := blueprint.Load(dir)
	if err != nil {
		return WrapExitError(ExitFailure, "blueprint load failed", err)
	}
	formatter.VerboseLog("Loaded %d vertical(s) from %s", len(result.Verticals), dir)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.Verbose {
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
	}

	// Importing recalculates every sheet; nothing else to drive here.
	store := gridstore.New(nil, logger)
	for _, v := range result.Verticals {
		if err := store.ImportVertical(v); err != nil {
			return WrapExitError(ExitCommandError, "building grid failed", err)
		}
	}

	snapshot := harness.Snapshot("recalc", store.Verticals())
	if opts.Format == "json" {
		return formatter.Success(string(snapshot))
	}
	_, err = cmd.OutOrStdout().Write(snapshot)
	return err
}

// Execute is the conventional entry point for a main package: run the root
// command and translate the error into a process exit code.
func Execute() {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(GetExitCode(err))
	}
}
