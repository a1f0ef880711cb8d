package queryir

import (
	"fmt"

	"github.com/roach88/qindex/internal/ir"
)

// Kind enumerates every predicate the compiler understands.
type Kind int

const (
	KindAnd Kind = iota
	KindOr
	KindNot
	KindEq
	KindNe
	KindGe
	KindGt
	KindLe
	KindLt
	KindPropertyNull
	KindPropertyNotNull
	KindAssociationNull
	KindAssociationNotNull
	KindManyAssociationContains
	KindContains
	KindContainsAll
	KindMatches
)

var kindNames = [...]string{
	KindAnd:                     "and",
	KindOr:                      "or",
	KindNot:                     "not",
	KindEq:                      "eq",
	KindNe:                      "ne",
	KindGe:                      "ge",
	KindGt:                      "gt",
	KindLe:                      "le",
	KindLt:                      "lt",
	KindPropertyNull:            "isNull",
	KindPropertyNotNull:         "isNotNull",
	KindAssociationNull:         "associationIsNull",
	KindAssociationNotNull:      "associationIsNotNull",
	KindManyAssociationContains: "manyAssociationContains",
	KindContains:                "contains",
	KindContainsAll:             "containsAll",
	KindMatches:                 "matches",
}

// String returns the predicate name used in query files.
func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), true
		}
	}
	return 0, false
}

// IsComparison reports whether k is one of Eq, Ne, Ge, Gt, Le, Lt.
func (k Kind) IsComparison() bool {
	return k >= KindEq && k <= KindLt
}

// Predicate is a node of a query filter.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	Kind() Kind
	predicateNode()
}

// And is true when every operand is true. An empty And is true.
type And struct {
	Operands []Predicate
}

func (And) Kind() Kind      { return KindAnd }
func (And) predicateNode() {}

// Or is true when any operand is true. An empty Or is false.
type Or struct {
	Operands []Predicate
}

func (Or) Kind() Kind      { return KindOr }
func (Or) predicateNode() {}

// Not negates its operand. Absent values satisfy negated comparisons.
type Not struct {
	Operand Predicate
}

func (Not) Kind() Kind      { return KindNot }
func (Not) predicateNode() {}

// Compare compares the value at Path with Value.
//
// Op is one of KindEq, KindNe, KindGe, KindGt, KindLe, KindLt. When the
// path addresses an identity, Value is the identity string. A composite
// Value compares every declared property of the composite.
type Compare struct {
	Op    Kind
	Path  Path
	Value ir.IRValue
}

func (c Compare) Kind() Kind  { return c.Op }
func (Compare) predicateNode() {}

// IsNull is true when the member at Path has no value.
// It reports KindAssociationNull for paths ending in an association or
// many-association and KindPropertyNull otherwise.
type IsNull struct {
	Path Path
}

func (n IsNull) Kind() Kind {
	if endsInAssociation(n.Path) {
		return KindAssociationNull
	}
	return KindPropertyNull
}
func (IsNull) predicateNode() {}

// IsNotNull is the complement of IsNull.
type IsNotNull struct {
	Path Path
}

func (n IsNotNull) Kind() Kind {
	if endsInAssociation(n.Path) {
		return KindAssociationNotNull
	}
	return KindPropertyNotNull
}
func (IsNotNull) predicateNode() {}

// ManyAssociationContains is true when the many-association at Path
// includes the entity with the given identity.
type ManyAssociationContains struct {
	Path     Path
	Identity ir.IRValue
}

func (ManyAssociationContains) Kind() Kind      { return KindManyAssociationContains }
func (ManyAssociationContains) predicateNode() {}

// Contains is true when the collection at Path includes Value at any
// nesting depth.
type Contains struct {
	Path  Path
	Value ir.IRValue
}

func (Contains) Kind() Kind      { return KindContains }
func (Contains) predicateNode() {}

// ContainsAll is true when the collection at Path includes every value in
// Values. Duplicate values count once. An empty Values is true.
type ContainsAll struct {
	Path   Path
	Values []ir.IRValue
}

func (ContainsAll) Kind() Kind      { return KindContainsAll }
func (ContainsAll) predicateNode() {}

// Matches is true when the string property at Path matches Pattern.
type Matches struct {
	Path    Path
	Pattern string
}

func (Matches) Kind() Kind      { return KindMatches }
func (Matches) predicateNode() {}

func endsInAssociation(p Path) bool {
	last, ok := p.Last()
	return ok && last.Kind != ir.MemberProperty
}

// OrderBy is one sort segment.
type OrderBy struct {
	Path       Path
	Descending bool
}

// Constructors read like the query they build:
//
//	AllOf(Eq(Prop(name), ir.IRString("X")), Negate(IsNull{Path: Prop(age)}))

// AllOf builds an And.
func AllOf(ps ...Predicate) And { return And{Operands: ps} }

// AnyOf builds an Or.
func AnyOf(ps ...Predicate) Or { return Or{Operands: ps} }

// Negate builds a Not.
func Negate(p Predicate) Not { return Not{Operand: p} }

// Eq builds an equality comparison.
func Eq(p Path, v ir.IRValue) Compare { return Compare{Op: KindEq, Path: p, Value: v} }

// Ne builds an inequality comparison.
func Ne(p Path, v ir.IRValue) Compare { return Compare{Op: KindNe, Path: p, Value: v} }

// Ge builds a greater-or-equal comparison.
func Ge(p Path, v ir.IRValue) Compare { return Compare{Op: KindGe, Path: p, Value: v} }

// Gt builds a greater-than comparison.
func Gt(p Path, v ir.IRValue) Compare { return Compare{Op: KindGt, Path: p, Value: v} }

// Le builds a less-or-equal comparison.
func Le(p Path, v ir.IRValue) Compare { return Compare{Op: KindLe, Path: p, Value: v} }

// Lt builds a less-than comparison.
func Lt(p Path, v ir.IRValue) Compare { return Compare{Op: KindLt, Path: p, Value: v} }

// Deref returns the value form of a predicate passed by pointer, so
// callers can type switch on value types only. A nil pointer yields nil.
func Deref(p Predicate) Predicate {
	switch x := p.(type) {
	case *And:
		if x != nil {
			return *x
		}
	case *Or:
		if x != nil {
			return *x
		}
	case *Not:
		if x != nil {
			return *x
		}
	case *Compare:
		if x != nil {
			return *x
		}
	case *IsNull:
		if x != nil {
			return *x
		}
	case *IsNotNull:
		if x != nil {
			return *x
		}
	case *ManyAssociationContains:
		if x != nil {
			return *x
		}
	case *Contains:
		if x != nil {
			return *x
		}
	case *ContainsAll:
		if x != nil {
			return *x
		}
	case *Matches:
		if x != nil {
			return *x
		}
	default:
		return p
	}
	return nil
}
