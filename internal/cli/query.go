package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/qindex/internal/harness"
	"github.com/roach88/qindex/internal/querysql"
)

// QueryResult is the payload of the query command.
type QueryResult struct {
	Type       string   `json:"type"`
	Identities []string `json:"identities,omitempty"`
	Count      *int64   `json:"count,omitempty"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "query <query.yaml>",
		Short: "Run a query against the index",
		Long: `Run a query against the index and print the matching identities.

The file names the result type and an optional predicate tree, order,
paging and variables. With "count: true" only the number of matches is
printed. Use "-" to read from stdin.

Example file:
  type: Person
  where:
    and:
      - ge: {path: age, value: 18}
      - eq: {path: employer.city, value: Oslo}
  order_by:
    - {path: name}
  limit: 10

Examples:
  qindex query adults.yaml
  qindex query - --format json < adults.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(rootOpts, args[0], cmd)
		},
	}
}

func runQuery(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	spec, err := readQuery(cmd, path)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "failed to read query", err)
	}

	sess, err := openSession(cmd.Context(), opts, f)
	if err != nil {
		return err
	}
	defer sess.Close()

	q, err := decodeQuery(sess, spec, f)
	if err != nil {
		return err
	}

	result := QueryResult{Type: q.ResultType}
	if q.CountOnly {
		n, err := sess.Store.Count(cmd.Context(), q)
		if err != nil {
			return f.Fail(ExitFailure, ErrCodeQuery, "query failed", err)
		}
		result.Count = &n
	} else {
		matches, err := sess.Store.Find(cmd.Context(), q)
		if err != nil {
			return f.Fail(ExitFailure, ErrCodeQuery, "query failed", err)
		}
		result.Identities = make([]string, len(matches))
		for i, m := range matches {
			result.Identities[i] = m.Identity
		}
	}

	if f.IsJSON() {
		return f.Success(result)
	}
	w := cmd.OutOrStdout()
	if result.Count != nil {
		fmt.Fprintln(w, *result.Count)
		return nil
	}
	for _, id := range result.Identities {
		fmt.Fprintln(w, id)
	}
	f.VerboseLog("%d matches", len(result.Identities))
	return nil
}

// decodeQuery types spec against the session's model.
func decodeQuery(sess *session, spec harness.QuerySpec, f *OutputFormatter) (querysql.Query, error) {
	q, err := harness.NewDecoder(sess.Model.Model).Query(spec)
	if err != nil {
		return q, f.Fail(ExitFailure, ErrCodeQuery, "invalid query", err)
	}
	return q, nil
}
