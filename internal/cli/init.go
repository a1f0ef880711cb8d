package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// InitSummary is the payload of the init command.
type InitSummary struct {
	Created            bool          `json:"created"`
	ReindexRequired    bool          `json:"reindex_required"`
	ApplicationVersion string        `json:"application_version"`
	NewQNames          int           `json:"new_qnames"`
	Skipped            []SkippedInfo `json:"skipped,omitempty"`
	Drift              []string      `json:"drift,omitempty"`
}

// SkippedInfo names a member that is not indexed.
type SkippedInfo struct {
	QName  string `json:"qname"`
	Reason string `json:"reason"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create or reconcile the index schema",
		Long: `Create the index schema for the configured model, or reconcile an
existing one.

On a fresh database every table is created. On an existing one new
members get new tables; when the reindex policy asks for it (or the
stored layout no longer matches) stored values are dropped and every
entity must be indexed again.

Examples:
  qindex init --model ./model --dsn index.db
  qindex init --driver pgx --dsn postgres://localhost/app --policy never`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(rootOpts, cmd)
		},
	}
}

func runInit(opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	sess, err := openSession(cmd.Context(), opts, f)
	if err != nil {
		return err
	}
	defer sess.Close()

	res := sess.Init
	summary := InitSummary{
		Created:            res.Created,
		ReindexRequired:    res.ReindexRequired,
		ApplicationVersion: res.ApplicationVersion,
		NewQNames:          res.NewQNames,
	}
	for _, s := range res.Skipped {
		summary.Skipped = append(summary.Skipped, SkippedInfo{QName: s.QName.String(), Reason: s.Reason})
	}
	for _, q := range res.Drift {
		summary.Drift = append(summary.Drift, q.String())
	}

	if f.IsJSON() {
		return f.Success(summary)
	}

	w := cmd.OutOrStdout()
	switch {
	case summary.Created:
		fmt.Fprintf(w, "✓ Schema created (%d value tables)\n", summary.NewQNames)
	case summary.ReindexRequired:
		fmt.Fprintf(w, "✓ Schema rebuilt (%d value tables)\n", summary.NewQNames)
	default:
		fmt.Fprintf(w, "✓ Schema up to date (%d new value tables)\n", summary.NewQNames)
	}
	fmt.Fprintf(w, "  Application version: %s\n", summary.ApplicationVersion)
	for _, s := range summary.Skipped {
		fmt.Fprintf(w, "  Skipped %s: %s\n", s.QName, s.Reason)
	}
	if len(summary.Drift) > 0 {
		fmt.Fprintf(w, "  Changed shape: %s\n", strings.Join(summary.Drift, ", "))
	}
	if summary.ReindexRequired {
		f.Warn("stored values were dropped; index every entity again")
	}
	return nil
}
