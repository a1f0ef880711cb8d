package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/qindex/internal/compiler"
	"github.com/roach88/qindex/internal/schema"
)

// ValidateSummary is the payload of a successful validate command.
type ValidateSummary struct {
	Files      int                     `json:"files"`
	Entities   int                     `json:"entities"`
	Composites int                     `json:"composites"`
	Enums      int                     `json:"enums"`
	QNames     int                     `json:"qnames"`
	Tables     []TableInfo             `json:"tables,omitempty"`
	Skipped    []SkippedInfo           `json:"skipped,omitempty"`
	Cycles     []compiler.CycleWarning `json:"cycles,omitempty"`
}

// TableInfo maps a qualified name to its value table.
type TableInfo struct {
	QName string `json:"qname"`
	Table string `json:"table"`
	Kind  string `json:"kind"`
	Depth int    `json:"depth"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [model-dir]",
		Short: "Validate a CUE model",
		Long: `Validate a CUE type model without touching a database.

The model is compiled, checked for undeclared or duplicate types and
members, and laid out into value tables. Recursive composite types are
reported as warnings. Defaults to the configured model directory.

Exit codes:
  0 - Model is valid
  1 - Model has validation errors
  2 - Command error (missing directory, CUE syntax error, etc.)

Examples:
  qindex validate ./model
  qindex validate --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := rootOpts.config().Model
			if len(args) == 1 {
				dir = args[0]
			}
			return runValidate(rootOpts, dir, cmd)
		},
	}
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	f.VerboseLog("Validating model in %s", dir)

	res, err := compiler.LoadModelDir(dir)
	if err != nil {
		var verrs compiler.ValidationErrors
		if errors.As(err, &verrs) {
			return outputValidationErrors(f, verrs)
		}
		return f.Fail(ExitCommandError, ErrCodeModel, "failed to load model", err)
	}

	reg, delta, err := schema.Build(*res.Model, schema.BuildOptions{SchemaName: opts.config().Schema})
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeInvalid, "schema layout failed", err)
	}

	summary := ValidateSummary{
		Files:      res.FileCount,
		Entities:   len(res.Model.Entities),
		Composites: len(res.Model.Composites),
		Enums:      len(res.Model.Enums),
		Cycles:     res.Cycles,
	}
	for _, info := range reg.QNames() {
		summary.QNames++
		summary.Tables = append(summary.Tables, TableInfo{
			QName: info.QName.String(),
			Table: info.Table,
			Kind:  info.Kind.String(),
			Depth: info.CollectionDepth,
		})
	}
	for _, s := range delta.Skipped {
		summary.Skipped = append(summary.Skipped, SkippedInfo{QName: s.QName.String(), Reason: s.Reason})
	}

	if f.IsJSON() {
		return f.Success(summary)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "✓ Model valid (%d entities, %d composites, %d enums, %d value tables)\n",
		summary.Entities, summary.Composites, summary.Enums, summary.QNames)
	if opts.Verbose {
		for _, t := range summary.Tables {
			fmt.Fprintf(w, "  %s → %s (%s, depth %d)\n", t.QName, t.Table, t.Kind, t.Depth)
		}
	}
	for _, s := range summary.Skipped {
		fmt.Fprintf(w, "  Skipped %s: %s\n", s.QName, s.Reason)
	}
	for _, c := range summary.Cycles {
		f.Warn("%s", c.Message)
	}
	return nil
}

func outputValidationErrors(f *OutputFormatter, errs compiler.ValidationErrors) error {
	if f.IsJSON() {
		if err := f.Error(ErrCodeValidation, fmt.Sprintf("%d validation errors", len(errs)), []compiler.ValidationError(errs)); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(f.Writer, "✗ Model invalid (%d errors)\n", len(errs))
		for _, e := range errs {
			fmt.Fprintf(f.Writer, "  %s\n", e.Error())
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d validation errors", len(errs)))
}
