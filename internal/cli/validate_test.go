package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFixture(t *testing.T) {
	run := execute(t, "", "validate", fixtureModel)
	require.NoError(t, run.Err)
	assert.Contains(t, run.Stdout,
		fmt.Sprintf("✓ Model valid (3 entities, 2 composites, 1 enums, %d value tables)", fixtureQNameCount(t)))
	assert.Contains(t, run.Stdout, "Skipped Person:blob")
}

func TestValidateUsesConfiguredModel(t *testing.T) {
	run := execute(t, "", "validate", "--model", fixtureModel, "--verbose")
	require.NoError(t, run.Err)
	assert.Contains(t, run.Stdout, "Person:age → qname_5 (PROPERTY, depth 0)")
}

func TestValidateJSON(t *testing.T) {
	run := execute(t, "", "validate", fixtureModel, "--format", "json")
	require.NoError(t, run.Err)

	var resp struct {
		Status string          `json:"status"`
		Data   ValidateSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(run.Stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Files)
	assert.Equal(t, fixtureQNameCount(t), resp.Data.QNames)
	assert.Len(t, resp.Data.Tables, resp.Data.QNames)
	assert.Empty(t, resp.Data.Cycles)
}

func TestValidateCycleWarning(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "model.cue", `package model

entities: Doc: properties: root: "Node"
composites: Node: properties: children: "list<Node>"
`)

	run := execute(t, "", "validate", dir)
	require.NoError(t, run.Err)
	assert.Contains(t, run.Stdout, "✓ Model valid (1 entities, 1 composites, 0 enums")
	assert.Contains(t, run.Stdout, "warning:")
	assert.Contains(t, run.Stdout, "Node")
}

func TestValidateInvalidModel(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "model.cue", `package model

entities: Order: associations: customer: "Customer"
`)

	run := execute(t, "", "validate", dir)
	require.Error(t, run.Err)
	assert.Equal(t, ExitFailure, GetExitCode(run.Err))
	assert.Contains(t, run.Stdout, "✗ Model invalid (1 errors)")
	assert.Contains(t, run.Stdout, "[E104]")

	run = execute(t, "", "validate", dir, "--format", "json")
	require.Error(t, run.Err)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(run.Stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
}

func TestValidateNonExistentDirectory(t *testing.T) {
	run := execute(t, "", "validate", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, run.Err)
	assert.Equal(t, ExitCommandError, GetExitCode(run.Err))
	assert.Contains(t, run.Stdout, "model directory not found")
}

func TestValidateSyntaxError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "model.cue", "package model\n\nentities: {\n")

	run := execute(t, "", "validate", dir)
	require.Error(t, run.Err)
	assert.Equal(t, ExitCommandError, GetExitCode(run.Err))
	assert.Contains(t, run.Stdout, "failed to load model")
}
