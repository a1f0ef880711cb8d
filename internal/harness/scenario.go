package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines an index-then-query conformance scenario.
// Batches are indexed in order into a fresh database; every query then
// runs against the final state and is checked against its expectation.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Model is the directory holding the CUE model.
	// Relative paths resolve against the scenario file's directory.
	Model string `yaml:"model"`

	// AppVersion is recorded in the schema. Defaults to the model
	// fingerprint.
	AppVersion string `yaml:"app_version,omitempty"`

	// IdentityPrefix names NEW states without an identity
	// deterministically ("<prefix>-0001"). Defaults to "entity".
	IdentityPrefix string `yaml:"identity_prefix,omitempty"`

	// Batches are indexed in order, each in its own transaction.
	Batches []Batch `yaml:"batches"`

	// Queries run after every batch has been indexed.
	Queries []QueryCase `yaml:"queries"`
}

// Batch is one IndexEntities call.
type Batch struct {
	States []StateSpec `yaml:"states"`

	// ExpectError, when set, must be a substring of the indexing error.
	// A failing batch leaves the index untouched.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// QueryCase is a named query with its expected outcome.
type QueryCase struct {
	Name      string `yaml:"name"`
	QuerySpec `yaml:",inline"`
	Expect    Expectation `yaml:"expect"`
}

// Expectation describes a query outcome. Only the fields that are set are
// checked.
type Expectation struct {
	// Identities is the expected result set. An empty list expects no
	// results.
	Identities []string `yaml:"identities,omitempty"`

	// Ordered requires Identities to match in order.
	Ordered bool `yaml:"ordered,omitempty"`

	// Count is the expected result of a count query.
	Count *int64 `yaml:"count,omitempty"`

	// Error, when set, must be a substring of the query error.
	Error string `yaml:"error,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// The model path is resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the model path relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(scenario.Model) {
		scenario.Model = filepath.Join(basePath, scenario.Model)
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML with strict field validation
// (catches typos like "query:" vs "queries:").
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks required fields and structural validity.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Model == "" {
		return fmt.Errorf("model is required")
	}
	if len(s.Batches) == 0 && len(s.Queries) == 0 {
		return fmt.Errorf("scenario needs at least one batch or query")
	}

	for i, b := range s.Batches {
		if len(b.States) == 0 {
			return fmt.Errorf("batch %d: states are required", i)
		}
		for j, st := range b.States {
			if st.Type == "" {
				return fmt.Errorf("batch %d state %d: type is required", i, j)
			}
		}
	}

	names := make(map[string]bool)
	for i, q := range s.Queries {
		if q.Name == "" {
			return fmt.Errorf("query %d: name is required", i)
		}
		if names[q.Name] {
			return fmt.Errorf("query %d: duplicate name %q", i, q.Name)
		}
		names[q.Name] = true
		if q.Type == "" {
			return fmt.Errorf("query %q: type is required", q.Name)
		}
		if q.Expect.Count != nil && !q.Count {
			return fmt.Errorf("query %q: expect.count needs count: true", q.Name)
		}
	}
	return nil
}
