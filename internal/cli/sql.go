package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// SQLResult is the payload of the sql command.
type SQLResult struct {
	SQL    string     `json:"sql"`
	Params []SQLParam `json:"params"`
}

// SQLParam is one bound parameter, in placeholder order.
type SQLParam struct {
	Value any    `json:"value"`
	Type  string `json:"type"`
}

// NewSQLCommand creates the sql command.
func NewSQLCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sql <query.yaml>",
		Short: "Print the SQL a query compiles to",
		Long: `Compile a query against the current schema and print the SQL and its
parameters without running it. The query file format is the one the
query command reads.

Examples:
  qindex sql adults.yaml
  qindex sql adults.yaml --driver pgx --dsn postgres://localhost/app`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSQL(rootOpts, args[0], cmd)
		},
	}
}

func runSQL(opts *RootOptions, path string, cmd *cobra.Command) error {
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
	compiled, err := sess.Store.ConstructQuery(q)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeQuery, "query compilation failed", err)
	}

	result := SQLResult{SQL: compiled.SQL, Params: make([]SQLParam, len(compiled.Params))}
	for i, p := range compiled.Params {
		result.Params[i] = SQLParam{Value: p.Value, Type: p.Type.String()}
	}

	if f.IsJSON() {
		return f.Success(result)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, result.SQL)
	for i, p := range result.Params {
		fmt.Fprintf(w, "-- $%d = %v (%s)\n", i+1, p.Value, p.Type)
	}
	return nil
}
