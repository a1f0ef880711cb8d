package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/qindex/internal/compiler"
	"github.com/roach88/qindex/internal/harness"
	"github.com/roach88/qindex/internal/schema"
	"github.com/roach88/qindex/internal/store"
)

// session is an initialized store together with the model it indexes.
type session struct {
	Model *compiler.LoadResult
	Store *store.Store
	Init  *store.InitResult
}

func (s *session) Close() error {
	return s.Store.Close()
}

// openSession loads the configured model, opens the configured database
// and runs InitConnection. Errors come back already reported through f.
func openSession(ctx context.Context, opts *RootOptions, f *OutputFormatter) (*session, error) {
	cfg := opts.config()

	f.VerboseLog("Loading model from %s", cfg.Model)
	res, err := compiler.LoadModelDir(cfg.Model)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeModel, "failed to load model", err)
	}

	policy, err := schema.PolicyByName(cfg.Policy)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}

	f.VerboseLog("Opening %s database %s", cfg.Driver, cfg.DSN)
	st, err := store.Open(cfg.Driver, cfg.DSN, store.Options{
		Model:      *res.Model,
		SchemaName: cfg.Schema,
		AppVersion: cfg.AppVersion,
		Policy:     policy,
		Logger:     opts.Logger,
	})
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}

	initRes, err := st.InitConnection(ctx)
	if err != nil {
		_ = st.Close()
		return nil, f.Fail(ExitCommandError, ErrCodeDatabase, "failed to initialize schema", err)
	}
	return &session{Model: res, Store: st, Init: initRes}, nil
}

// statesFile is the input of the index command.
type statesFile struct {
	States []harness.StateSpec `yaml:"states"`
}

// readStates reads a states document from path ("-" reads stdin).
func readStates(cmd *cobra.Command, path string) ([]harness.StateSpec, error) {
	var doc statesFile
	if err := readYAML(cmd, path, &doc); err != nil {
		return nil, err
	}
	if len(doc.States) == 0 {
		return nil, fmt.Errorf("%s: no states", path)
	}
	return doc.States, nil
}

// readQuery reads a query document from path ("-" reads stdin).
func readQuery(cmd *cobra.Command, path string) (harness.QuerySpec, error) {
	var spec harness.QuerySpec
	if err := readYAML(cmd, path, &spec); err != nil {
		return spec, err
	}
	if spec.Type == "" {
		return spec, fmt.Errorf("%s: type is required", path)
	}
	return spec, nil
}

func readYAML(cmd *cobra.Command, path string, out any) error {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
