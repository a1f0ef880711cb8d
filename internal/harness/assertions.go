package harness

import (
	"fmt"
	"slices"
	"strings"
)

// CheckBatch compares an indexing outcome with the batch expectation.
// Returns error messages for failures (empty if the batch behaved as
// expected).
func CheckBatch(i int, b Batch, err error) []string {
	switch {
	case b.ExpectError == "" && err != nil:
		return []string{fmt.Sprintf("batch %d: unexpected error: %v", i, err)}
	case b.ExpectError != "" && err == nil:
		return []string{fmt.Sprintf("batch %d: expected error containing %q, got success", i, b.ExpectError)}
	case b.ExpectError != "" && !strings.Contains(err.Error(), b.ExpectError):
		return []string{fmt.Sprintf("batch %d: expected error containing %q, got %q", i, b.ExpectError, err)}
	}
	return nil
}

// CheckQuery compares a query outcome with its expectation.
// Returns error messages for failures (empty if all checks pass).
func CheckQuery(c QueryCase, out QueryOutcome) []string {
	var errs []string
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf("query %q: ", c.Name)+fmt.Sprintf(format, args...))
	}

	want := c.Expect
	if want.Error != "" {
		if out.Error == "" {
			fail("expected error containing %q, got success", want.Error)
		} else if !strings.Contains(out.Error, want.Error) {
			fail("expected error containing %q, got %q", want.Error, out.Error)
		}
		return errs
	}
	if out.Error != "" {
		fail("unexpected error: %s", out.Error)
		return errs
	}

	if want.Identities != nil {
		got := out.Identities
		expected := want.Identities
		if !want.Ordered {
			got = sortedCopy(got)
			expected = sortedCopy(expected)
		}
		if !slices.Equal(got, expected) {
			fail("expected identities %v, got %v", expected, got)
		}
	}
	if want.Count != nil {
		switch {
		case out.Count == nil:
			fail("expected count %d, got a row result", *want.Count)
		case *out.Count != *want.Count:
			fail("expected count %d, got %d", *want.Count, *out.Count)
		}
	}
	return errs
}

func sortedCopy(s []string) []string {
	out := slices.Clone(s)
	slices.Sort(out)
	return out
}
