package harness

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/roach88/qindex/internal/ir"
	"github.com/roach88/qindex/internal/queryir"
	"github.com/roach88/qindex/internal/testutil"
)

func newDecoder(t *testing.T) *Decoder {
	t.Helper()
	m := testutil.FixtureModel()
	return NewDecoder(&m)
}

// yamlMap decodes a YAML mapping the way scenario files are decoded.
func yamlMap(t *testing.T, src string) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(src), &out))
	return out
}

func TestDecoder_State(t *testing.T) {
	d := newDecoder(t)

	st, err := d.State(StateSpec{
		Identity: "p-1",
		Type:     "Person",
		Status:   "updated",
		Properties: yamlMap(t, `
name: Ada
Person:age: 30
score: 2
active: true
born: "2024-03-01T10:00:00Z"
nums: [1, 2]
matrix: [[1], [2, 3]]
color: GREEN
colors: [RED, BLUE]
address: {street: Main, geo: {lat: 1.5, lon: 2}}
addresses: [{city: Oslo}]
secret: s3cret
`),
		Associations:     map[string]string{"employer": "c-1"},
		ManyAssociations: map[string][]string{"Person:friends": {"p-2"}},
	})
	require.NoError(t, err)

	assert.Equal(t, ir.StatusUpdated, st.Status)
	p := st.Properties
	assert.Equal(t, ir.IRString("Ada"), p[testutil.QName])
	assert.Equal(t, ir.IRInt(30), p[testutil.QAge])
	assert.Equal(t, ir.IRFloat(2), p[testutil.QScore])
	assert.Equal(t, ir.IRBool(true), p[testutil.QActive])
	assert.Equal(t, ir.IRTime(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)), p[testutil.QBorn])
	assert.Equal(t, ir.NewIRList(ir.IRInt(1), ir.IRInt(2)), p[testutil.QNums])
	assert.Equal(t, ir.NewIRList(ir.NewIRList(ir.IRInt(1)), ir.NewIRList(ir.IRInt(2), ir.IRInt(3))), p[testutil.QMatrix])
	assert.Equal(t, testutil.ColorGreen, p[testutil.QColor])
	assert.Equal(t, ir.NewIRList(testutil.ColorRed, testutil.ColorBlue), p[testutil.QColors])
	assert.Equal(t, ir.NewIRComposite("Address",
		ir.F("street", ir.IRString("Main")),
		ir.F("geo", ir.NewIRComposite("Geo", ir.F("lat", ir.IRFloat(1.5)), ir.F("lon", ir.IRFloat(2)))),
	), p[testutil.QAddress])
	assert.Equal(t, ir.NewIRList(ir.NewIRComposite("Address", ir.F("city", ir.IRString("Oslo")))), p[testutil.QAddresses])
	assert.Equal(t, ir.IRString("s3cret"), p[testutil.QSecret])

	assert.Equal(t, "c-1", st.Associations[testutil.QEmployer])
	assert.Equal(t, []string{"p-2"}, st.ManyAssociations[testutil.QFriends])
}

func TestDecoder_StateIdentity(t *testing.T) {
	d := newDecoder(t)

	st, err := d.State(StateSpec{Type: "Company"})
	require.NoError(t, err)
	assert.Equal(t, ir.StatusNew, st.Status)
	id, err := uuid.Parse(st.Identity)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())

	d.NewIdentity = testutil.NewIdentityGenerator("c").Generate
	st, err = d.State(StateSpec{Type: "Company"})
	require.NoError(t, err)
	assert.Equal(t, "c-0001", st.Identity)

	_, err = d.State(StateSpec{Type: "Company", Status: "REMOVED"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no identity")
}

func TestDecoder_StateErrors(t *testing.T) {
	d := newDecoder(t)

	tests := []struct {
		name string
		spec StateSpec
		want string
	}{
		{"unknown type", StateSpec{Type: "Robot"}, `unknown entity type "Robot"`},
		{"bad status", StateSpec{Type: "Person", Status: "GONE"}, "unknown entity status"},
		{"unknown member", StateSpec{Type: "Company", Properties: map[string]any{"age": 3}}, `Company has no property "age"`},
		{"wrong kind", StateSpec{Type: "Person", Associations: map[string]string{"age": "x"}}, `has no association "age"`},
		{"wrong value", StateSpec{Type: "Person", Properties: map[string]any{"age": "old"}}, "expected int, got string"},
		{"fractional int", StateSpec{Type: "Person", Properties: map[string]any{"age": 1.5}}, "expected int"},
		{"bad enum", StateSpec{Type: "Person", Properties: map[string]any{"color": "PINK"}}, `"PINK" is not a constant of Color`},
		{"bad composite field", StateSpec{Type: "Person", Properties: map[string]any{"address": map[string]any{"zip": "1"}}}, `Address has no property "zip"`},
		{"unsupported", StateSpec{Type: "Person", Properties: map[string]any{"blob": "x"}}, `type "bytes" cannot be indexed`},
		{"bad time", StateSpec{Type: "Person", Properties: map[string]any{"born": "yesterday"}}, "invalid time"},
		{"bad last modified", StateSpec{Type: "Person", LastModified: "never"}, "last_modified"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.State(tt.spec)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDecoder_NullProperty(t *testing.T) {
	st, err := newDecoder(t).State(StateSpec{
		Identity:   "p-1",
		Type:       "Person",
		Properties: yamlMap(t, "age: null\nnums: [1, null]\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, ir.IRNull{}, st.Properties[testutil.QAge])
	assert.Equal(t, ir.NewIRList(ir.IRInt(1), ir.IRNull{}), st.Properties[testutil.QNums])
}

func TestDecoder_Query(t *testing.T) {
	d := newDecoder(t)
	age := queryir.Prop(testutil.QAge)

	q, err := d.Query(QuerySpec{
		Type: "Person",
		Where: yamlMap(t, `
and:
  - ge: {path: "Person:age", value: {$var: min}}
  - not: {isNull: {path: "Person:employer"}}
  - or:
      - contains: {path: "Person:colors", value: RED}
      - containsAll: {path: "Person:matrix", values: [1, 2]}
  - eq: {path: "Person:employer.Named:name", value: Acme}
  - eq: {path: "", value: p-1}
  - manyAssociationContains: {path: "Person:friends", identity: p-2}
  - matches: {path: "Named:name", pattern: "^A"}
  - isNotNull: {path: "Person:address.Address:city"}
`),
		OrderBy:   []OrderSpec{{Path: "Named:name", Desc: true}},
		Offset:    5,
		Limit:     10,
		Variables: map[string]any{"min": 18, "unused": "x"},
	})
	require.NoError(t, err)

	want := queryir.AllOf(
		queryir.Ge(age, ir.IRVariable{Name: "min"}),
		queryir.Negate(queryir.IsNull{Path: queryir.Assoc(testutil.QEmployer)}),
		queryir.AnyOf(
			queryir.Contains{Path: queryir.Prop(testutil.QColors), Value: testutil.ColorRed},
			queryir.ContainsAll{Path: queryir.Prop(testutil.QMatrix), Values: []ir.IRValue{ir.IRInt(1), ir.IRInt(2)}},
		),
		queryir.Eq(queryir.Assoc(testutil.QEmployer).Prop(testutil.QName), ir.IRString("Acme")),
		queryir.Eq(queryir.Path{}, ir.IRString("p-1")),
		queryir.ManyAssociationContains{Path: queryir.Many(testutil.QFriends), Identity: ir.IRString("p-2")},
		queryir.Matches{Path: queryir.Prop(testutil.QName), Pattern: "^A"},
		queryir.IsNotNull{Path: queryir.Prop(testutil.QAddress).Prop(testutil.QCity)},
	)
	assert.Equal(t, want, q.Where)
	assert.Equal(t, []queryir.OrderBy{{Path: queryir.Prop(testutil.QName), Descending: true}}, q.OrderBy)
	assert.Equal(t, 5, q.Offset)
	assert.Equal(t, 10, q.Limit)
	assert.Equal(t, map[string]ir.IRValue{"min": ir.IRInt(18), "unused": ir.IRString("x")}, q.Variables)
}

func TestDecoder_QueryTypesVariablesByUse(t *testing.T) {
	q, err := newDecoder(t).Query(QuerySpec{
		Type:      "Person",
		Where:     yamlMap(t, `eq: {path: "Person:color", value: {$var: c}}`),
		Variables: map[string]any{"c": "BLUE"},
	})
	require.NoError(t, err)
	assert.Equal(t, testutil.ColorBlue, q.Variables["c"])
}

func TestDecoder_QueryErrors(t *testing.T) {
	d := newDecoder(t)

	tests := []struct {
		name string
		spec QuerySpec
		want string
	}{
		{"unknown type", QuerySpec{Type: "Robot"}, `unknown result type "Robot"`},
		{"unknown predicate", QuerySpec{Type: "Person", Where: map[string]any{"like": map[string]any{}}}, `unknown predicate "like"`},
		{"two keys", QuerySpec{Type: "Person", Where: map[string]any{"and": []any{}, "or": []any{}}}, "single-key mapping"},
		{"unknown member", QuerySpec{Type: "Person", Where: yamlMap(t, `eq: {path: "Person:height", value: 1}`)}, "unknown member Person:height"},
		{"and not a list", QuerySpec{Type: "Person", Where: yamlMap(t, `and: {eq: {}}`)}, "expected a list"},
		{"pattern type", QuerySpec{Type: "Person", Where: yamlMap(t, `matches: {path: "Named:name", pattern: 1}`)}, "pattern must be a string"},
		{"values type", QuerySpec{Type: "Person", Where: yamlMap(t, `containsAll: {path: "Person:nums", values: 1}`)}, "values must be a list"},
		{"bad order path", QuerySpec{Type: "Person", OrderBy: []OrderSpec{{Path: "nope"}}}, "order_by[0]"},
		{"bad variable", QuerySpec{
			Type:      "Person",
			Where:     yamlMap(t, `eq: {path: "Person:age", value: {$var: a}}`),
			Variables: map[string]any{"a": "old"},
		}, `variable "a"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Query(tt.spec)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
