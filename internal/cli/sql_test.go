package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQL_Text(t *testing.T) {
	run := execute(t, "type: Person\nwhere: {ge: {path: age, value: 18}}\nlimit: 5\n", args([]string{"sql", "-"}, storeArgs(t)...)...)
	require.NoError(t, run.Err)
	assert.Contains(t, run.Stdout, "SELECT")
	assert.Contains(t, run.Stdout, "qname_5")
	assert.Contains(t, run.Stdout, "= 18 (int)")
}

func TestSQL_JSON(t *testing.T) {
	run := execute(t, "type: Company\nwhere: {eq: {path: city, value: Oslo}}\ncount: true\n",
		args([]string{"sql", "-", "--format", "json"}, storeArgs(t)...)...)
	require.NoError(t, run.Err)

	var resp struct {
		Data SQLResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(run.Stdout), &resp))
	assert.Contains(t, resp.Data.SQL, "COUNT(")
	require.NotEmpty(t, resp.Data.Params)
	assert.Contains(t, resp.Data.Params, SQLParam{Value: "Oslo", Type: "text"})
}

func TestSQL_InvalidQuery(t *testing.T) {
	run := execute(t, "type: Person\nwhere: {matches: {path: age, pattern: \"^1\"}}\n", args([]string{"sql", "-"}, storeArgs(t)...)...)
	require.Error(t, run.Err)
	assert.Equal(t, ExitFailure, GetExitCode(run.Err))
	assert.Contains(t, run.Stdout, "query compilation failed")

	run = execute(t, "type: Person\nwhere: {matches: {path: name}}\n", args([]string{"sql", "-"}, storeArgs(t)...)...)
	require.Error(t, run.Err)
	assert.Contains(t, run.Stdout, "pattern must be a string")
}
