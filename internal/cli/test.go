package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gridloom/gridloom/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter string // scenario filter (glob pattern against file name)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestSummary holds the overall test result.
type TestSummary struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

func (s TestSummary) String() string {
	var b strings.Builder
	for _, sc := range s.Scenarios {
		status := "PASS"
		if !sc.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "%s  %s\n", status, sc.Name)
		for _, msg := range sc.Errors {
			fmt.Fprintf(&b, "      %s\n", msg)
		}
	}
	fmt.Fprintf(&b, "%d passed, %d failed, %d total", s.Passed, s.Failed, s.Total)
	return b.String()
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run grid conformance scenarios",
		Long: `Run conformance scenarios against a fresh in-memory grid.

Each YAML scenario declares a workspace, a sequence of mutations, and
assertions over the final cell state.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, unreadable scenarios)

Examples:
  gridloom test ./scenarios
  gridloom test ./scenarios --filter "dedupe-*"
  gridloom test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	files, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	if len(files) == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("no scenario files found in %s", scenariosDir))
	}

	summary := TestSummary{}
	for _, file := range files {
		formatter.VerboseLog("Running %s", file)
		scenario, err := harness.LoadScenario(file)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load scenario", err)
		}
		result, err := harness.Run(scenario)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("scenario %s failed to run", scenario.Name), err)
		}

		sr := ScenarioResult{Name: scenario.Name, Pass: result.Passed(), Errors: result.Errors}
		summary.Scenarios = append(summary.Scenarios, sr)
		summary.Total++
		if sr.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}

	if err := formatter.Success(summary); err != nil {
		return err
	}
	if summary.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", summary.Failed))
	}
	return nil
}

// findScenarioFiles returns the YAML files of a directory, sorted, optionally
// filtered by a glob pattern against the base name.
func findScenarioFiles(dir, filter string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (filepath.Ext(name) != ".yaml" && filepath.Ext(name) != ".yml") {
			continue
		}
		if filter != "" {
			match, err := filepath.Match(filter, name)
			if err != nil {
				return nil, fmt.Errorf("invalid filter %q: %w", filter, err)
			}
			if !match {
				continue
			}
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}
