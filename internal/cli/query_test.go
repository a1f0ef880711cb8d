package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// indexedStore returns store flags for a database holding peopleStates.
func indexedStore(t *testing.T) []string {
	t.Helper()
	base := storeArgs(t)
	run := execute(t, "", args([]string{"index", writeFile(t, t.TempDir(), "states.yaml", peopleStates)}, base...)...)
	require.NoError(t, run.Err)
	return base
}

func TestQuery(t *testing.T) {
	base := indexedStore(t)

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name:  "all persons include employees",
			query: "type: Person\norder_by: [{path: name}]\n",
			want:  "p-1\np-2\ne-1\n",
		},
		{
			name:  "association path",
			query: "type: Person\nwhere: {eq: {path: employer.city, value: Oslo}}\norder_by: [{path: name, desc: true}]\n",
			want:  "e-1\np-1\n",
		},
		{
			name:  "variable",
			query: "type: Person\nwhere: {lt: {path: age, value: {$var: max}}}\nvariables: {max: 20}\n",
			want:  "p-2\n",
		},
		{
			name:  "paging",
			query: "type: Named\norder_by: [{path: name}]\noffset: 1\nlimit: 2\n",
			want:  "p-1\np-2\n",
		},
		{
			name:  "count",
			query: "type: Company\ncount: true\n",
			want:  "1\n",
		},
		{
			name:  "no matches",
			query: "type: Employee\nwhere: {eq: {path: title, value: CEO}}\n",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := execute(t, tt.query, args([]string{"query", "-"}, base...)...)
			require.NoError(t, run.Err)
			assert.Equal(t, tt.want, run.Stdout)
		})
	}
}

func TestQuery_JSON(t *testing.T) {
	base := indexedStore(t)

	run := execute(t, "type: Person\nwhere: {contains: {path: nums, value: 2}}\n", args([]string{"query", "-", "--format", "json"}, base...)...)
	require.NoError(t, run.Err)

	var resp struct {
		Status string      `json:"status"`
		Data   QueryResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(run.Stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, QueryResult{Type: "Person", Identities: []string{"p-1"}}, resp.Data)
}

func TestQuery_Errors(t *testing.T) {
	base := indexedStore(t)

	tests := []struct {
		name    string
		query   string
		code    int
		message string
	}{
		{"missing type", "where: {isNull: {path: age}}\n", ExitCommandError, "type is required"},
		{"unknown type", "type: Robot\n", ExitFailure, `unknown result type "Robot"`},
		{"unknown member", "type: Person\nwhere: {eq: {path: height, value: 1}}\n", ExitFailure, "invalid query"},
		{"unknown field", "type: Person\nlimits: 3\n", ExitCommandError, "field limits not found"},
		{"unbound variable", "type: Person\nwhere: {eq: {path: age, value: {$var: x}}}\n", ExitFailure, "query failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := execute(t, tt.query, args([]string{"query", "-"}, base...)...)
			require.Error(t, run.Err)
			assert.Equal(t, tt.code, GetExitCode(run.Err))
			assert.Contains(t, run.Stdout, tt.message)
		})
	}
}
