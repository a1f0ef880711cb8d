package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/qindex/internal/harness"
)

// IndexSummary is the payload of the index command. Received counts the
// input states; Indexed and ByStatus count what the store applied.
type IndexSummary struct {
	Received   int            `json:"received"`
	Indexed    int            `json:"indexed"`
	ByStatus   map[string]int `json:"by_status"`
	Identities []string       `json:"identities"`
}

// NewIndexCommand creates the index command.
func NewIndexCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "index <states.yaml>",
		Short: "Index a batch of entity states",
		Long: `Index a batch of entity states in one transaction.

The file holds a "states" list. Each state names its type and status
(NEW, UPDATED or REMOVED) and carries properties and associations by
member name. NEW states without an identity get a generated UUID.
Use "-" to read from stdin.

Example file:
  states:
    - type: Person
      identity: p-1
      properties: {name: Ada, age: 36}
      associations: {employer: c-1}

Examples:
  qindex index states.yaml
  qindex index - --format json < states.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(rootOpts, args[0], cmd)
		},
	}
}

func runIndex(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	specs, err := readStates(cmd, path)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "failed to read states", err)
	}

	sess, err := openSession(cmd.Context(), opts, f)
	if err != nil {
		return err
	}
	defer sess.Close()

	states, err := harness.NewDecoder(sess.Model.Model).States(specs)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeInput, "invalid states", err)
	}

	f.VerboseLog("Indexing %d states", len(states))
	stats, err := sess.Store.IndexEntitiesStats(cmd.Context(), states)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeIndex, "indexing failed", err)
	}

	summary := IndexSummary{
		Received:   len(states),
		Indexed:    stats.Total(),
		ByStatus:   make(map[string]int, len(stats.Applied)),
		Identities: make([]string, 0, len(states)),
	}
	for status, n := range stats.Applied {
		summary.ByStatus[status.String()] = n
	}
	for _, st := range states {
		summary.Identities = append(summary.Identities, st.Identity)
	}

	if f.IsJSON() {
		return f.Success(summary)
	}
	w := cmd.OutOrStdout()
	if summary.Indexed == summary.Received {
		fmt.Fprintf(w, "✓ Indexed %d states\n", summary.Indexed)
	} else {
		fmt.Fprintf(w, "✓ Indexed %d of %d states\n", summary.Indexed, summary.Received)
	}
	for _, status := range sortedStatusKeys(summary.ByStatus) {
		fmt.Fprintf(w, "  %s: %d\n", status, summary.ByStatus[status])
	}
	if opts.Verbose {
		for _, id := range summary.Identities {
			fmt.Fprintf(w, "  %s\n", id)
		}
	}
	return nil
}

func sortedStatusKeys(m map[string]int) []string {
	var keys []string
	for _, k := range []string{"NEW", "UPDATED", "REMOVED"} {
		if _, ok := m[k]; ok {
			keys = append(keys, k)
		}
	}
	return keys
}
