package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/qindex/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter string // scenario filter (glob pattern on the file name)
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenario-path>...",
		Short: "Run index/query scenarios",
		Long: `Run conformance scenarios against a fresh in-memory index.

Each scenario file names a model, indexes its batches in order and
checks every query against the expected identities or count. Paths may
be scenario files or directories of *.yaml files.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  qindex test ./scenarios
  qindex test ./scenarios --filter "people*"
  qindex test ./scenarios/people.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, paths []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	files, err := harness.DiscoverScenarios(paths)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeScenario, "failed to find scenarios", err)
	}
	files, err = filterScenarios(files, opts.Filter)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeScenario, "invalid filter pattern", err)
	}

	if len(files) == 0 {
		if f.IsJSON() {
			return f.Success(&harness.SuiteResult{})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	f.VerboseLog("Running %d scenarios", len(files))
	result, err := harness.RunSuite(cmd.Context(), files, harness.Options{Logger: opts.Logger})
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeScenario, "scenario run aborted", err)
	}

	if f.IsJSON() {
		if err := f.Success(result); err != nil {
			return err
		}
	} else {
		outputTestText(cmd, files, result)
	}

	if !result.Pass() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", result.Failed, result.Total))
	}
	return nil
}

// filterScenarios keeps files whose base name without extension matches
// pattern. An empty pattern keeps everything.
func filterScenarios(files []string, pattern string) ([]string, error) {
	if pattern == "" {
		return files, nil
	}
	var kept []string
	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		matched, err := filepath.Match(pattern, name)
		if err != nil {
			return nil, err
		}
		if matched {
			kept = append(kept, file)
		}
	}
	return kept, nil
}

func outputTestText(cmd *cobra.Command, files []string, result *harness.SuiteResult) {
	w := cmd.OutOrStdout()

	failed := make(map[string]harness.ScenarioFailure, len(result.Failures))
	for _, fail := range result.Failures {
		failed[fail.Path] = fail
	}

	for _, file := range files {
		fail, ok := failed[file]
		if !ok {
			fmt.Fprintf(w, "✓ %s\n", filepath.Base(file))
			continue
		}
		name := filepath.Base(file)
		if fail.Name != "" {
			name = fmt.Sprintf("%s (%s)", fail.Name, name)
		}
		fmt.Fprintf(w, "✗ %s\n", name)
		for _, e := range fail.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
}
