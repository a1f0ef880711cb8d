package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// Config and Logger are populated before any subcommand runs.
	Config *Config
	Logger *zap.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the qindex CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "qindex",
		Short: "qindex - entity graph indexing and query compilation",
		Long: `Index entity state into a relational schema derived from a CUE type
model, and compile predicate queries over it into SQL.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			f := newFormatter(opts, cmd)
			cfg, err := LoadConfig(opts.ConfigPath, cmd.Flags())
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeConfig, "failed to load configuration", err)
			}
			logger, err := NewLogger(cfg.LogLevel, opts.Verbose)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeConfig, "failed to build logger", err)
			}
			opts.Config = cfg
			opts.Logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.Logger != nil {
				_ = opts.Logger.Sync()
			}
		},
	}

	// Global flags
	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVar(&opts.ConfigPath, "config", "", "config file (default ./qindex.yaml)")
	pf.String("model", "", "directory holding the CUE model")
	pf.String("driver", "", "database driver (sqlite3|pgx)")
	pf.String("dsn", "", "database connection string")
	pf.String("schema", "", "table name prefix")
	pf.String("app-version", "", "application version recorded in the schema")
	pf.String("policy", "", "reindex policy (version-change|never|always)")
	pf.String("log-level", "", "log level (debug|info|warn|error)")

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewIndexCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewSQLCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// config returns the loaded configuration, or the defaults when the
// command runs without the root command's pre-run hook.
func (o *RootOptions) config() *Config {
	if o.Config == nil {
		o.Config = DefaultConfig()
	}
	return o.Config
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
