// Package queryir provides the predicate tree the query compiler consumes.
//
// A query filter is a tree of boolean combinations (And, Or, Not) over
// leaf predicates that reference entity members through a Path:
//
//	Person:employer.Company:parent   (association, association)
//	Person:address.Address:city      (composite property, property)
//
// Leaves compare the value at the end of the path, test it for absence,
// or test collection and many-association membership.
//
// SEALED INTERFACES:
//
// Predicate is a sealed interface using the marker method pattern. Every
// predicate reports one value of the closed Kind enumeration; backends
// dispatch on Kind with an exhaustive switch, so a new predicate kind
// without backend support fails at compile time of the backend rather
// than through a missing table entry at runtime.
//
//	switch p.Kind() {
//	case queryir.KindAnd:
//	    ...
//	case queryir.KindContainsAll:
//	    ...
//	}
//
// PATH SEMANTICS:
//
// A comparison whose path is empty or ends in an association compares
// entity identities (the entity itself, or the association target).
// Collections are only valid as the last step of Contains, ContainsAll
// and null checks; many-associations only as the last step of
// ManyAssociationContains and null checks.
//
// Values are ir.IRValue; ir.IRVariable operands are bound when the
// query is compiled.
package queryir
