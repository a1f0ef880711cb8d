package store

import (
	"context"
	"sort"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qindex/internal/ir"
	"github.com/roach88/qindex/internal/queryir"
	"github.com/roach88/qindex/internal/querysql"
	"github.com/roach88/qindex/internal/testutil"
)

// seedPeople indexes a small population used by the query tests.
func seedPeople(t *testing.T, s *Store) {
	t.Helper()
	index(t, s,
		person("p-1", map[ir.QualifiedName]any{
			testutil.QName:  ir.IRString("Ada"),
			testutil.QAge:   ir.IRInt(30),
			testutil.QNums:  ir.NewIRList(ir.IRInt(1), ir.IRInt(2), ir.IRInt(3)),
			testutil.QColor: testutil.ColorRed,
		}),
		person("p-2", map[ir.QualifiedName]any{
			testutil.QName: ir.IRString("Bob"),
			testutil.QAge:  ir.IRInt(40),
			testutil.QNums: ir.NewIRList(ir.IRInt(1), ir.IRInt(1), ir.IRInt(2)),
		}),
		person("p-3", map[ir.QualifiedName]any{
			testutil.QName: ir.IRString("Cy"),
		}),
		entity("e-1", testutil.EmployeeTyp, ir.StatusNew, map[ir.QualifiedName]any{
			testutil.QName:  ir.IRString("Dee"),
			testutil.QAge:   ir.IRInt(30),
			testutil.QTitle: ir.IRString("CTO"),
		}),
		entity("c-1", testutil.CompanyType, ir.StatusNew, map[ir.QualifiedName]any{
			testutil.QName:     ir.IRString("Acme"),
			testutil.QCompCity: ir.IRString("Oslo"),
		}),
	)
}

func sorted(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	sort.Strings(out)
	return out
}

func TestFind_TypeScoping(t *testing.T) {
	s := createTestStore(t)
	seedPeople(t, s)

	tests := []struct {
		typ  string
		want []string
	}{
		{testutil.PersonType, []string{"e-1", "p-1", "p-2", "p-3"}},
		{testutil.EmployeeTyp, []string{"e-1"}},
		{testutil.CompanyType, []string{"c-1"}},
		{testutil.NamedType, []string{"c-1", "e-1", "p-1", "p-2", "p-3"}},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			got := findType(t, s, querysql.Query{ResultType: tt.typ})
			assert.Equal(t, tt.want, sorted(got))
		})
	}
}

func TestFind_NegationIsComplement(t *testing.T) {
	s := createTestStore(t)
	seedPeople(t, s)
	all := sorted(find(t, s, nil))

	predicates := map[string]queryir.Predicate{
		"eq":           queryir.Eq(agePath, ir.IRInt(30)),
		"ne":           queryir.Ne(agePath, ir.IRInt(30)),
		"lt":           queryir.Lt(agePath, ir.IRInt(35)),
		"null":         queryir.IsNull{Path: agePath},
		"contains":     queryir.Contains{Path: numPath, Value: ir.IRInt(2)},
		"contains all": queryir.ContainsAll{Path: numPath, Values: []ir.IRValue{ir.IRInt(1), ir.IRInt(3)}},
		"and":          queryir.AllOf(queryir.Eq(agePath, ir.IRInt(30)), queryir.IsNotNull{Path: numPath}),
		"or":           queryir.AnyOf(queryir.Eq(agePath, ir.IRInt(40)), queryir.IsNull{Path: agePath}),
		"matches":      queryir.Matches{Path: queryir.Prop(testutil.QName), Pattern: "^[AB]"},
	}
	for name, p := range predicates {
		t.Run(name, func(t *testing.T) {
			pos := find(t, s, p)
			neg := find(t, s, queryir.Negate(p))

			union := sorted(append(append([]string(nil), pos...), neg...))
			assert.Equal(t, all, union, "P and NOT P must cover every entity exactly once")
			for _, id := range pos {
				assert.NotContains(t, neg, id)
			}
		})
	}
}

func TestFind_Comparisons(t *testing.T) {
	s := createTestStore(t)
	seedPeople(t, s)

	tests := []struct {
		name  string
		where queryir.Predicate
		want  []string
	}{
		{"eq", queryir.Eq(agePath, ir.IRInt(30)), []string{"e-1", "p-1"}},
		{"ne keeps absent", queryir.Ne(agePath, ir.IRInt(30)), []string{"p-2", "p-3"}},
		{"ge", queryir.Ge(agePath, ir.IRInt(40)), []string{"p-2"}},
		{"null", queryir.IsNull{Path: agePath}, []string{"p-3"}},
		{"eq null", queryir.Eq(agePath, ir.IRNull{}), []string{"p-3"}},
		{"not null", queryir.IsNotNull{Path: agePath}, []string{"e-1", "p-1", "p-2"}},
		{"enum", queryir.Eq(queryir.Prop(testutil.QColor), testutil.ColorRed), []string{"p-1"}},
		{"matches", queryir.Matches{Path: queryir.Prop(testutil.QName), Pattern: "^(Ada|Cy)$"}, []string{"p-1", "p-3"}},
		{"identity", queryir.Eq(queryir.Path{}, ir.IRString("p-2")), []string{"p-2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sorted(find(t, s, tt.where)))
		})
	}
}

func TestFind_ContainsAllCountsDistinctValues(t *testing.T) {
	s := createTestStore(t)
	seedPeople(t, s)

	tests := []struct {
		name   string
		values []ir.IRValue
		want   []string
	}{
		{"subset", []ir.IRValue{ir.IRInt(1), ir.IRInt(2)}, []string{"p-1", "p-2"}},
		{"all three", []ir.IRValue{ir.IRInt(1), ir.IRInt(2), ir.IRInt(3)}, []string{"p-1"}},
		{"duplicates count once", []ir.IRValue{ir.IRInt(1), ir.IRInt(1)}, []string{"p-1", "p-2"}},
		{"missing value", []ir.IRValue{ir.IRInt(1), ir.IRInt(9)}, []string{}},
		{"empty is true", []ir.IRValue{}, []string{"e-1", "p-1", "p-2", "p-3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := find(t, s, queryir.ContainsAll{Path: numPath, Values: tt.values})
			assert.Equal(t, tt.want, sorted(got))
		})
	}
}

func TestFind_TwoHopAssociationIdentity(t *testing.T) {
	s := createTestStore(t)
	company := func(identity, parent string) ir.EntityState {
		props := map[ir.QualifiedName]any{testutil.QName: ir.IRString(identity)}
		if parent != "" {
			props[testutil.QParent] = parent
		}
		return entity(identity, testutil.CompanyType, ir.StatusNew, props)
	}
	index(t, s,
		company("c-root", ""),
		company("c-sub", "c-root"),
		company("c-other", ""),
		person("p-a", map[ir.QualifiedName]any{testutil.QEmployer: "c-sub"}),
		person("p-b", map[ir.QualifiedName]any{testutil.QEmployer: "c-other"}),
		person("p-c", nil),
		person("p-d", map[ir.QualifiedName]any{testutil.QEmployer: "c-root"}),
	)

	twoHop := queryir.Assoc(testutil.QEmployer).Assoc(testutil.QParent)
	assert.Equal(t, []string{"p-a"}, find(t, s, queryir.Eq(twoHop, ir.IRString("c-root"))))
	assert.Empty(t, find(t, s, queryir.Eq(twoHop, ir.IRString("c-sub"))))
	assert.Equal(t, []string{"p-b", "p-c", "p-d"},
		sorted(find(t, s, queryir.Negate(queryir.Eq(twoHop, ir.IRString("c-root"))))))
}

func TestFind_OrderAndPaging(t *testing.T) {
	s := createTestStore(t)
	seedPeople(t, s)
	name := queryir.Prop(testutil.QName)

	got := findType(t, s, querysql.Query{
		ResultType: testutil.PersonType,
		OrderBy:    []queryir.OrderBy{{Path: name, Descending: true}},
	})
	assert.Equal(t, []string{"e-1", "p-3", "p-2", "p-1"}, got)

	got = findType(t, s, querysql.Query{
		ResultType: testutil.PersonType,
		OrderBy:    []queryir.OrderBy{{Path: name}},
		Offset:     1,
		Limit:      2,
	})
	assert.Equal(t, []string{"p-2", "p-3"}, got)

	// Without explicit ordering results follow insertion order.
	assert.Equal(t, []string{"p-1", "p-2", "p-3", "e-1"}, find(t, s, nil))
}

func TestFind_Variables(t *testing.T) {
	s := createTestStore(t)
	seedPeople(t, s)

	got := findType(t, s, querysql.Query{
		ResultType: testutil.PersonType,
		Where:      queryir.Eq(agePath, ir.IRVariable{Name: "age"}),
		Variables:  map[string]ir.IRValue{"age": ir.IRInt(40)},
	})
	assert.Equal(t, []string{"p-2"}, got)

	_, err := s.Find(context.Background(), querysql.Query{
		ResultType: testutil.PersonType,
		Where:      queryir.Eq(agePath, ir.IRVariable{Name: "missing"}),
	})
	require.Error(t, err)
}

func TestFind_EmptyResultIsNotNil(t *testing.T) {
	s := createTestStore(t)

	matches, err := s.Find(context.Background(), querysql.Query{ResultType: testutil.PersonType})
	require.NoError(t, err)
	assert.NotNil(t, matches)
	assert.Empty(t, matches)
}

func TestCount(t *testing.T) {
	s := createTestStore(t)
	seedPeople(t, s)

	n, err := s.Count(context.Background(), querysql.Query{
		ResultType: testutil.PersonType,
		Where:      queryir.IsNotNull{Path: agePath},
		Limit:      1,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestConstructQuery(t *testing.T) {
	opts := testOptions()
	opts.Metrics = NewMetrics(prometheus.NewRegistry())
	s, _ := initAt(t, t.TempDir()+"/q.db", opts)

	compiled, err := s.ConstructQuery(querysql.Query{
		ResultType: testutil.PersonType,
		Where:      queryir.Eq(agePath, ir.IRInt(30)),
	})
	require.NoError(t, err)
	assert.Contains(t, compiled.SQL, `"qindex_qname_5"`)
	assert.NotContains(t, compiled.SQL, "30")
	assert.Equal(t, 1.0, promtest.ToFloat64(opts.Metrics.QueriesCompiled))

	_, err = s.ConstructQuery(querysql.Query{
		ResultType: testutil.PersonType,
		Where:      queryir.AllOf(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid predicate")

	_, err = s.ConstructQuery(querysql.Query{ResultType: "Robot"})
	require.Error(t, err)
}
