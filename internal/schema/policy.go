package schema

import "fmt"

// ReindexPolicy decides whether a stored schema must be rebuilt given the
// application version recorded in it and the current one.
type ReindexPolicy interface {
	NeedsReindex(stored, current string) bool
}

// ReindexPolicyFunc adapts a function to ReindexPolicy.
type ReindexPolicyFunc func(stored, current string) bool

// NeedsReindex implements ReindexPolicy.
func (f ReindexPolicyFunc) NeedsReindex(stored, current string) bool {
	return f(stored, current)
}

var (
	// VersionChangePolicy reindexes whenever the application version changes.
	VersionChangePolicy ReindexPolicy = ReindexPolicyFunc(func(stored, current string) bool {
		return stored != current
	})

	// NeverReindex keeps the stored schema regardless of version.
	NeverReindex ReindexPolicy = ReindexPolicyFunc(func(string, string) bool { return false })

	// AlwaysReindex rebuilds the schema on every start.
	AlwaysReindex ReindexPolicy = ReindexPolicyFunc(func(string, string) bool { return true })
)

// PolicyByName resolves a configured policy name.
// The empty name selects VersionChangePolicy.
func PolicyByName(name string) (ReindexPolicy, error) {
	switch name {
	case "", "version-change":
		return VersionChangePolicy, nil
	case "never":
		return NeverReindex, nil
	case "always":
		return AlwaysReindex, nil
	default:
		return nil, fmt.Errorf("unknown reindex policy %q (want version-change, never or always)", name)
	}
}
