package harness

// QueryOutcome is what one query produced.
type QueryOutcome struct {
	Name string `json:"name"`

	// SQL is the compiled statement; empty when compilation failed.
	SQL string `json:"sql,omitempty"`

	// Identities are the matches in result order (row queries only).
	Identities []string `json:"identities,omitempty"`

	// Count is set for count queries.
	Count *int64 `json:"count,omitempty"`

	Error string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every batch and query met its expectation.
	Pass bool `json:"pass"`

	// Indexed counts the batches that committed.
	Indexed int `json:"indexed"`

	// Queries holds one outcome per query, in scenario order.
	Queries []QueryOutcome `json:"queries"`

	// Errors contains expectation failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Queries: []QueryOutcome{},
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
