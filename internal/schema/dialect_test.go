package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qindex/internal/testutil"
)

func TestPostgresRebind(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"SELECT 1", "SELECT 1"},
		{"a = ? AND b = ?", "a = $1 AND b = $2"},
		{"path ~ '^\\*\\.?' AND v = ?", "path ~ '^\\*\\.?' AND v = $1"},
		{"x IN (?, ?, ?)", "x IN ($1, $2, $3)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Postgres{}.Rebind(tt.in))
	}
	assert.Equal(t, "a = ?", SQLite{}.Rebind("a = ?"))
}

func TestLimitOffset(t *testing.T) {
	tests := []struct {
		name          string
		d             Dialect
		limit, offset int
		clause        string
		params        []any
	}{
		{"sqlite none", SQLite{}, 0, 0, "", nil},
		{"sqlite limit", SQLite{}, 10, 0, " LIMIT ?", []any{10}},
		{"sqlite both", SQLite{}, 10, 5, " LIMIT ? OFFSET ?", []any{10, 5}},
		{"sqlite offset only", SQLite{}, 0, 5, " LIMIT -1 OFFSET ?", []any{5}},
		{"postgres offset only", Postgres{}, 0, 5, " OFFSET ?", []any{5}},
		{"postgres both", Postgres{}, 3, 2, " LIMIT ? OFFSET ?", []any{3, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clause, params := tt.d.LimitOffset(tt.limit, tt.offset)
			assert.Equal(t, tt.clause, clause)
			assert.Equal(t, tt.params, params)
		})
	}
}

func TestNullsOrder(t *testing.T) {
	assert.Empty(t, SQLite{}.NullsOrder(false))
	assert.Empty(t, SQLite{}.NullsOrder(true))
	assert.Equal(t, " NULLS FIRST", Postgres{}.NullsOrder(false))
	assert.Equal(t, " NULLS LAST", Postgres{}.NullsOrder(true))
}

func TestDialectByName(t *testing.T) {
	for _, name := range []string{"sqlite3", "sqlite3_qindex"} {
		d, err := DialectByName(name)
		require.NoError(t, err)
		assert.IsType(t, SQLite{}, d)
	}
	for _, name := range []string{"pgx", "postgres"} {
		d, err := DialectByName(name)
		require.NoError(t, err)
		assert.IsType(t, Postgres{}, d)
	}
	_, err := DialectByName("mysql")
	assert.Error(t, err)
}

func TestTableQuoting(t *testing.T) {
	assert.Equal(t, `"app_qname_3"`, SQLite{}.Table("app", "qname_3"))
	assert.Equal(t, `"app"."qname_3"`, Postgres{}.Table("app", "qname_3"))
	assert.Equal(t, `"a""b"`, quoteIdent(`a"b`))
}

func TestQNameTableDDL(t *testing.T) {
	reg, _ := buildFixture(t, nil)

	nums, _ := reg.Lookup(testutil.QNums)
	stmts := QNameTableDDL(SQLite{}, "qindex", nums)
	require.Len(t, stmts, 3)
	create := stmts[0]
	assert.Contains(t, create, `CREATE TABLE IF NOT EXISTS "qindex_`+nums.Table+`"`)
	assert.Contains(t, create, "collection_path TEXT NOT NULL")
	assert.Contains(t, create, "qname_value INTEGER")
	assert.Contains(t, create, `REFERENCES "qindex_all_qnames" (qname_id, entity_pk) ON DELETE CASCADE`)
	assert.NotContains(t, create, "qname_index")

	name, _ := reg.Lookup(testutil.QName)
	create = QNameTableDDL(SQLite{}, "qindex", name)[0]
	assert.NotContains(t, create, "collection_path")
	assert.Contains(t, create, "qname_value TEXT")

	friends, _ := reg.Lookup(testutil.QFriends)
	create = QNameTableDDL(Postgres{}, "idx", friends)[0]
	assert.Contains(t, create, `target_pk BIGINT REFERENCES "idx"."entities" (entity_pk) ON DELETE SET NULL`)
	assert.Contains(t, create, "qname_index BIGINT NOT NULL")
	assert.NotContains(t, create, "qname_value")
}

func TestBaseTableDDL(t *testing.T) {
	sqlite := strings.Join(BaseTableDDL(SQLite{}, "qindex"), ";\n")
	assert.Contains(t, sqlite, "entity_pk INTEGER PRIMARY KEY AUTOINCREMENT")
	assert.Contains(t, sqlite, `"qindex_entity_types_join"`)
	assert.NotContains(t, sqlite, "CREATE SCHEMA")

	pg := BaseTableDDL(Postgres{}, "idx")
	assert.Equal(t, `CREATE SCHEMA IF NOT EXISTS "idx"`, pg[0])
	assert.Contains(t, strings.Join(pg, "\n"), "entity_pk BIGSERIAL PRIMARY KEY")
}

func TestDropDDL(t *testing.T) {
	stmts := DropDDL(SQLite{}, "qindex", []string{"qname_1", "qname_2"})
	require.Len(t, stmts, 9)
	assert.Equal(t, `DROP TABLE IF EXISTS "qindex_qname_1"`, stmts[0])
	assert.Equal(t, `DROP TABLE IF EXISTS "qindex_all_qnames"`, stmts[2])
	for _, s := range stmts {
		assert.NotContains(t, s, `"qindex_entities"`, "entity table must survive a reindex")
	}
}

func TestPolicyByName(t *testing.T) {
	tests := []struct {
		name            string
		stored, current string
		want            bool
	}{
		{"", "v1", "v2", true},
		{"version-change", "v1", "v1", false},
		{"never", "v1", "v2", false},
		{"always", "v1", "v1", true},
	}
	for _, tt := range tests {
		p, err := PolicyByName(tt.name)
		require.NoError(t, err)
		assert.Equal(t, tt.want, p.NeedsReindex(tt.stored, tt.current), "policy %q", tt.name)
	}

	_, err := PolicyByName("sometimes")
	assert.Error(t, err)

	custom := ReindexPolicyFunc(func(stored, current string) bool { return stored == "" })
	assert.True(t, custom.NeedsReindex("", "v1"))
}
