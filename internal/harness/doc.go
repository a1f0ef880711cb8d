// Package harness runs index-and-query scenarios against a fresh SQLite
// database.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	model: ../models/people          # CUE model directory
//	batches:
//	  - states:
//	      - identity: p-1
//	        type: Person
//	        properties: {name: Ada, age: 30, nums: [1, 2, 3]}
//	        associations: {employer: c-1}
//	  - states:
//	      - {identity: p-1, type: Person, status: REMOVED}
//	    expect_error: "..."              # optional
//	queries:
//	  - name: adults
//	    type: Person
//	    where: {ge: {path: "Person:age", value: 18}}
//	    order_by: [{path: "Named:name", desc: true}]
//	    expect:
//	      identities: [p-1]
//	      ordered: true
//	  - name: how_many
//	    type: Named
//	    count: true
//	    expect: {count: 2}
//
// # Deterministic Testing
//
// Every scenario runs on its own in-memory database with a deterministic
// clock and deterministic identities for NEW states that omit one, so
// repeated runs produce identical results. RunWithGolden snapshots the
// query outcomes under testdata/golden.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/people.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario, harness.Options{})
//	if !result.Pass {
//	    for _, err := range result.Errors {
//	        log.Println(err)
//	    }
//	}
package harness
