package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// fixtureModel is the CUE model shared with the compiler tests, made
// absolute so tests may change directory.
var fixtureModel, _ = filepath.Abs(filepath.Join("..", "compiler", "testdata", "fixture"))

// cliRun holds the outcome of one root command execution.
type cliRun struct {
	Stdout string
	Stderr string
	Err    error
}

// execute runs the root command with args, feeding stdin.
func execute(t *testing.T, stdin string, args ...string) cliRun {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetIn(bytes.NewBufferString(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return cliRun{Stdout: stdout.String(), Stderr: stderr.String(), Err: err}
}

// storeArgs points the store-backed commands at the fixture model and a
// fresh SQLite file.
func storeArgs(t *testing.T) []string {
	t.Helper()
	return []string{"--model", fixtureModel, "--dsn", filepath.Join(t.TempDir(), "index.db")}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func args(base []string, more ...string) []string {
	return append(append([]string{}, base...), more...)
}

// chdirT changes the working directory for the duration of the test,
// restoring it on cleanup (equivalent of testing.T.Chdir for Go < 1.24).
func chdirT(t *testing.T, dir string) {
	t.Helper()
	oldwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	abs, err := filepath.Abs(dir)
	require.NoError(t, err)
	t.Setenv("PWD", abs)
	t.Cleanup(func() {
		if err := os.Chdir(oldwd); err != nil {
			panic("chdirT: restoring working directory: " + err.Error())
		}
	})
}
