package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const peopleStates = `
states:
  - type: Company
    identity: c-1
    properties: {name: Acme, city: Oslo}
  - type: Person
    identity: p-1
    properties: {name: Ada, age: 36, nums: [1, 2, 3], color: RED}
    associations: {employer: c-1}
  - type: Person
    identity: p-2
    properties: {name: Bob, age: 17}
  - type: Employee
    identity: e-1
    properties: {name: Cy, age: 52, title: CTO}
    associations: {employer: c-1}
`

func TestIndex_Text(t *testing.T) {
	base := storeArgs(t)
	path := writeFile(t, t.TempDir(), "states.yaml", peopleStates)

	run := execute(t, "", args([]string{"index", path}, base...)...)
	require.NoError(t, run.Err)
	assert.Contains(t, run.Stdout, "✓ Indexed 4 states")
	assert.Contains(t, run.Stdout, "NEW: 4")
}

func TestIndex_StdinGeneratesIdentities(t *testing.T) {
	base := storeArgs(t)
	input := `
states:
  - type: Person
    properties: {name: Anon}
`
	run := execute(t, input, args([]string{"index", "-", "--format", "json"}, base...)...)
	require.NoError(t, run.Err)

	var resp struct {
		Data IndexSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(run.Stdout), &resp))
	require.Len(t, resp.Data.Identities, 1)
	id, err := uuid.Parse(resp.Data.Identities[0])
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
}

func TestIndex_UpdateAndRemove(t *testing.T) {
	base := storeArgs(t)
	dir := t.TempDir()
	require.NoError(t, execute(t, "", args([]string{"index", writeFile(t, dir, "a.yaml", peopleStates)}, base...)...).Err)

	changes := `
states:
  - {type: Person, identity: p-2, status: UPDATED, properties: {name: Bob, age: 18}}
  - {type: Employee, identity: e-1, status: removed}
`
	run := execute(t, "", args([]string{"index", writeFile(t, dir, "b.yaml", changes)}, base...)...)
	require.NoError(t, run.Err)
	assert.Contains(t, run.Stdout, "UPDATED: 1")
	assert.Contains(t, run.Stdout, "REMOVED: 1")

	query := writeFile(t, dir, "adults.yaml", `
type: Person
where: {ge: {path: age, value: 18}}
order_by: [{path: name}]
`)
	run = execute(t, "", args([]string{"query", query}, base...)...)
	require.NoError(t, run.Err)
	assert.Equal(t, "p-1\np-2\n", run.Stdout)
}

func TestIndex_ReportsAppliedStatuses(t *testing.T) {
	base := storeArgs(t)
	dir := t.TempDir()
	require.NoError(t, execute(t, "", args([]string{"index", writeFile(t, dir, "a.yaml", peopleStates)}, base...)...).Err)

	changes := `
states:
  - {type: Person, identity: p-1, status: LOADED}
  - {type: Person, identity: p-9, status: UPDATED, properties: {name: New}}
  - {type: Person, identity: p-2, status: UPDATED, properties: {age: 19}}
  - {type: Person, identity: p-2, status: UPDATED, properties: {age: 20}}
`
	run := execute(t, "", args([]string{"index", writeFile(t, dir, "b.yaml", changes), "--format", "json"}, base...)...)
	require.NoError(t, run.Err)

	var resp struct {
		Data IndexSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(run.Stdout), &resp))
	assert.Equal(t, 4, resp.Data.Received)
	assert.Equal(t, 2, resp.Data.Indexed)
	assert.Equal(t, map[string]int{"NEW": 1, "UPDATED": 1}, resp.Data.ByStatus)

	run = execute(t, "", args([]string{"index", writeFile(t, dir, "c.yaml", changes)}, base...)...)
	require.NoError(t, run.Err)
	assert.Contains(t, run.Stdout, "✓ Indexed 2 of 4 states")
	assert.NotContains(t, run.Stdout, "LOADED")
}

func TestIndex_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		file    string
		code    int
		message string
	}{
		{
			name:    "missing file",
			file:    dir + "/missing.yaml",
			code:    ExitCommandError,
			message: "failed to read states",
		},
		{
			name:    "unknown field",
			file:    writeFile(t, dir, "typo.yaml", "state: []\n"),
			code:    ExitCommandError,
			message: "field state not found",
		},
		{
			name:    "empty",
			file:    writeFile(t, dir, "empty.yaml", "states: []\n"),
			code:    ExitCommandError,
			message: "no states",
		},
		{
			name:    "unknown member",
			file:    writeFile(t, dir, "member.yaml", "states: [{type: Person, identity: p, properties: {height: 2}}]\n"),
			code:    ExitFailure,
			message: "invalid states",
		},
		{
			name:    "wrong value type",
			file:    writeFile(t, dir, "value.yaml", "states: [{type: Person, identity: p, properties: {age: old}}]\n"),
			code:    ExitFailure,
			message: "expected int",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := execute(t, "", args([]string{"index", tt.file}, storeArgs(t)...)...)
			require.Error(t, run.Err)
			assert.Equal(t, tt.code, GetExitCode(run.Err))
			assert.Contains(t, run.Stdout, tt.message)
		})
	}
}

func TestIndex_DuplicateNewFails(t *testing.T) {
	base := storeArgs(t)
	path := writeFile(t, t.TempDir(), "states.yaml", peopleStates)
	require.NoError(t, execute(t, "", args([]string{"index", path}, base...)...).Err)

	run := execute(t, "", args([]string{"index", path}, base...)...)
	require.Error(t, run.Err)
	assert.Equal(t, ExitFailure, GetExitCode(run.Err))
	assert.True(t, strings.Contains(run.Stdout, "indexing failed"), run.Stdout)
}
