package harness

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders a result as stable text, one line per query.
// Compiled SQL is left out; query shape is snapshotted by the SQL
// compiler's own golden tests.
//
//	scenario: people
//	indexed: 2
//	adults: [p-1 p-2]
//	how_many: count=2
//	broken: error
func Snapshot(name string, r *Result) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", name)
	fmt.Fprintf(&b, "indexed: %d\n", r.Indexed)
	for _, q := range r.Queries {
		switch {
		case q.Error != "":
			fmt.Fprintf(&b, "%s: error\n", q.Name)
		case q.Count != nil:
			fmt.Fprintf(&b, "%s: count=%d\n", q.Name, *q.Count)
		default:
			fmt.Fprintf(&b, "%s: %v\n", q.Name, q.Identities)
		}
	}
	return []byte(b.String())
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario, Options{})
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, Snapshot(scenario.Name, result))
	return result, nil
}
