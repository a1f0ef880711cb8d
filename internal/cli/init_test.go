package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qindex/internal/schema"
	"github.com/roach88/qindex/internal/testutil"
)

func fixtureQNameCount(t *testing.T) int {
	t.Helper()
	reg, _, err := schema.Build(testutil.FixtureModel(), schema.BuildOptions{SchemaName: "qindex"})
	require.NoError(t, err)
	return len(reg.QNames())
}

func TestInit_CreatesThenReconciles(t *testing.T) {
	base := storeArgs(t)

	run := execute(t, "", args([]string{"init"}, base...)...)
	require.NoError(t, run.Err)
	assert.Contains(t, run.Stdout, "✓ Schema created")
	assert.Contains(t, run.Stdout, "Skipped Person:blob")

	run = execute(t, "", args([]string{"init"}, base...)...)
	require.NoError(t, run.Err)
	assert.Contains(t, run.Stdout, "✓ Schema up to date (0 new value tables)")
}

func TestInit_JSON(t *testing.T) {
	run := execute(t, "", args([]string{"init", "--format", "json", "--app-version", "7"}, storeArgs(t)...)...)
	require.NoError(t, run.Err)

	var resp struct {
		Status string      `json:"status"`
		Data   InitSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(run.Stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Created)
	assert.False(t, resp.Data.ReindexRequired)
	assert.Equal(t, "7", resp.Data.ApplicationVersion)
	assert.Equal(t, fixtureQNameCount(t), resp.Data.NewQNames)
}

func TestInit_AlwaysPolicyRebuilds(t *testing.T) {
	base := storeArgs(t)
	require.NoError(t, execute(t, "", args([]string{"init"}, base...)...).Err)

	run := execute(t, "", args([]string{"init", "--policy", "always"}, base...)...)
	require.NoError(t, run.Err)
	assert.Contains(t, run.Stdout, "✓ Schema rebuilt")
	assert.Contains(t, run.Stdout, "warning: stored values were dropped")
}

func TestInit_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		code    int
		message string
	}{
		{
			name:    "missing model",
			args:    []string{"init", "--model", "does-not-exist"},
			code:    ExitCommandError,
			message: "model directory not found",
		},
		{
			name:    "bad policy",
			args:    []string{"init", "--model", fixtureModel, "--policy", "sometimes"},
			code:    ExitCommandError,
			message: `unknown reindex policy "sometimes"`,
		},
		{
			name:    "bad driver",
			args:    []string{"init", "--model", fixtureModel, "--driver", "oracle"},
			code:    ExitCommandError,
			message: "failed to open database",
		},
		{
			name:    "bad schema name",
			args:    []string{"init", "--model", fixtureModel, "--dsn", ":memory:", "--schema", "1st"},
			code:    ExitCommandError,
			message: "failed to initialize schema",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := execute(t, "", tt.args...)
			require.Error(t, run.Err)
			assert.Equal(t, tt.code, GetExitCode(run.Err))
			assert.Contains(t, run.Stdout, tt.message)
		})
	}
}
