package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qindex/internal/store"
)

const fixtureModel = "../compiler/testdata/fixture"

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err, "failed to load scenario %s", name)
	return scenario
}

// TestScenarios runs every checked-in scenario and compares its snapshot
// with the golden file.
func TestScenarios(t *testing.T) {
	for _, name := range []string{"people", "generated_identities"} {
		t.Run(name, func(t *testing.T) {
			scenario := loadTestScenario(t, name)
			assert.NotEmpty(t, scenario.Description)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "scenario should pass: errors=%v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	scenario := loadTestScenario(t, "generated_identities")

	r1, err := Run(context.Background(), scenario, Options{})
	require.NoError(t, err)
	r2, err := Run(context.Background(), scenario, Options{})
	require.NoError(t, err)

	assert.Equal(t, Snapshot(scenario.Name, r1), Snapshot(scenario.Name, r2))
	assert.Equal(t, r1.Queries, r2.Queries)
}

func TestRun_RecordsSQL(t *testing.T) {
	result, err := Run(context.Background(), loadTestScenario(t, "people"), Options{})
	require.NoError(t, err)

	for _, q := range result.Queries {
		if q.Error != "" {
			continue
		}
		assert.Contains(t, q.SQL, "SELECT", "query %s", q.Name)
		assert.NotContains(t, q.SQL, "Oslo", "values must be bound, query %s", q.Name)
	}
}

func TestRun_ReportsFailures(t *testing.T) {
	scenario := &Scenario{
		Name:  "failing",
		Model: fixtureModel,
		Batches: []Batch{
			{States: []StateSpec{{Identity: "p-1", Type: "Person", Properties: map[string]any{"name": "Ada"}}}},
			{States: []StateSpec{{Identity: "p-1", Type: "Person"}}},
		},
		Queries: []QueryCase{
			{Name: "wrong", QuerySpec: QuerySpec{Type: "Person"}, Expect: Expectation{Identities: []string{"p-9"}}},
			{Name: "right", QuerySpec: QuerySpec{Type: "Person"}, Expect: Expectation{Identities: []string{"p-1"}}},
		},
	}

	result, err := Run(context.Background(), scenario, Options{})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, 1, result.Indexed)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "batch 1: unexpected error")
	assert.Contains(t, result.Errors[1], `query "wrong"`)
	require.Len(t, result.Queries, 2)
	assert.Equal(t, []string{"p-1"}, result.Queries[1].Identities)
}

func TestRun_Metrics(t *testing.T) {
	metrics := store.NewMetrics(prometheus.NewRegistry())
	_, err := Run(context.Background(), loadTestScenario(t, "generated_identities"), Options{Metrics: metrics})
	require.NoError(t, err)

	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.Batches.WithLabelValues("committed")))
}

func TestRun_Errors(t *testing.T) {
	_, err := Run(context.Background(), &Scenario{Name: "x", Model: "testdata/missing"}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load model")

	_, err = Run(context.Background(), &Scenario{
		Name:    "x",
		Model:   fixtureModel,
		Batches: []Batch{{States: []StateSpec{{Type: "Robot"}}}},
	}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch 0")
}
