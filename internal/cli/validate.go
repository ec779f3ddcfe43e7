package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gridloom/gridloom/internal/blueprint"
)

// ValidationSummary holds validate command results.
type ValidationSummary struct {
	Valid     bool   `json:"valid"`
	Files     int    `json:"files"`
	Verticals int    `json:"verticals"`
	Sheets    int    `json:"sheets"`
	Error     string `json:"error,omitempty"`
}

func (s ValidationSummary) String() string {
	if !s.Valid {
		return fmt.Sprintf("invalid: %s", s.Error)
	}
	return fmt.Sprintf("valid: %d file(s), %d vertical(s), %d sheet(s)", s.Files, s.Verticals, s.Sheets)
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <blueprint-dir>",
		Short: "Validate a workspace blueprint",
		Long: `Validate CUE blueprint files without building a grid.

Checks syntax, required fields, and declaration structure. Faster than
recalc for development feedback.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	result, err := blueprint.Load(dir)
	if err != nil {
		var loadErr *blueprint.LoadError
		code := "LOAD_FAILED"
		if errors.As(err, &loadErr) {
			code = loadErr.Code
		}
		if ferr := formatter.Failure(code, err.Error(), nil); ferr != nil {
			return ferr
		}
		return NewExitError(ExitFailure, err.Error())
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", result.FileCount, dir)

	sheets := 0
	for _, v := range result.Verticals {
		sheets += len(v.Sheets)
	}
	return formatter.Success(ValidationSummary{
		Valid:     true,
		Files:     result.FileCount,
		Verticals: len(result.Verticals),
		Sheets:    sheets,
	})
}
