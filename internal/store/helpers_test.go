package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/qindex/internal/ir"
	"github.com/roach88/qindex/internal/queryir"
	"github.com/roach88/qindex/internal/querysql"
	"github.com/roach88/qindex/internal/testutil"
)

// testOptions returns the options shared by store tests.
func testOptions() Options {
	return Options{
		Model:      testutil.FixtureModel(),
		AppVersion: "v1",
		Now:        testutil.NewDeterministicClock().Now,
	}
}

// openAt opens a SQLite store at path without initializing it.
func openAt(t *testing.T, path string, opts Options) *Store {
	t.Helper()
	s, err := Open("sqlite3", path, opts)
	require.NoError(t, err, "failed to open store")
	t.Cleanup(func() { s.Close() })
	return s
}

// initAt opens and initializes a SQLite store at path.
func initAt(t *testing.T, path string, opts Options) (*Store, *InitResult) {
	t.Helper()
	s := openAt(t, path, opts)
	res, err := s.InitConnection(context.Background())
	require.NoError(t, err, "failed to initialize store")
	return s, res
}

// createTestStore returns an initialized store on a fresh database.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, _ := initAt(t, filepath.Join(t.TempDir(), "test.db"), testOptions())
	return s
}

// entity builds a state. Values in props are keyed by qualified name;
// string values are association targets, []string many-association
// targets, and ir.IRValue property values.
func entity(identity, typ string, status ir.EntityStatus, props map[ir.QualifiedName]any) ir.EntityState {
	st := ir.EntityState{
		Identity:         identity,
		Type:             typ,
		Status:           status,
		Version:          "1",
		Properties:       map[ir.QualifiedName]ir.IRValue{},
		Associations:     map[ir.QualifiedName]string{},
		ManyAssociations: map[ir.QualifiedName][]string{},
	}
	for q, v := range props {
		switch x := v.(type) {
		case string:
			st.Associations[q] = x
		case []string:
			st.ManyAssociations[q] = x
		case ir.IRValue:
			st.Properties[q] = x
		}
	}
	return st
}

func person(identity string, props map[ir.QualifiedName]any) ir.EntityState {
	return entity(identity, testutil.PersonType, ir.StatusNew, props)
}

func index(t *testing.T, s *Store, states ...ir.EntityState) {
	t.Helper()
	require.NoError(t, s.IndexEntities(context.Background(), states))
}

// find returns the identities of Person entities matching where.
func find(t *testing.T, s *Store, where queryir.Predicate) []string {
	t.Helper()
	return findType(t, s, querysql.Query{ResultType: testutil.PersonType, Where: where})
}

func findType(t *testing.T, s *Store, q querysql.Query) []string {
	t.Helper()
	ids, err := s.FindIdentities(context.Background(), q)
	require.NoError(t, err)
	return ids
}

// countRows counts the rows of an unqualified table name.
func countRows(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM "+s.table(table)).Scan(&n))
	return n
}
