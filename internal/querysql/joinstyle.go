package querysql

import "github.com/roach88/qindex/internal/queryir"

type joinType int

const (
	innerJoin joinType = iota
	leftJoin
)

func (j joinType) sql() string {
	if j == leftJoin {
		return " LEFT JOIN "
	}
	return " JOIN "
}

type negationStrategy int

const (
	// flipJoin recompiles the leaf with the negated join type and the
	// complementary condition.
	flipJoin negationStrategy = iota

	// exceptAll compiles the positive leaf and subtracts it from all
	// entities.
	exceptAll
)

type joinStyle struct {
	normal   joinType
	negated  joinType
	strategy negationStrategy
}

// styleOf is the single source of truth for how each leaf kind behaves
// under negation. Absent values must satisfy a negated comparison, so
// comparisons join INNER normally and LEFT OUTER when negated; null
// checks are the mirror image. Containment cannot be expressed by join
// style and is subtracted instead.
func styleOf(k queryir.Kind) (joinStyle, bool) {
	switch k {
	case queryir.KindEq, queryir.KindGe, queryir.KindGt, queryir.KindLe, queryir.KindLt:
		return joinStyle{innerJoin, leftJoin, flipJoin}, true
	case queryir.KindNe:
		return joinStyle{leftJoin, innerJoin, flipJoin}, true
	case queryir.KindPropertyNull, queryir.KindAssociationNull:
		return joinStyle{leftJoin, innerJoin, flipJoin}, true
	case queryir.KindPropertyNotNull, queryir.KindAssociationNotNull:
		return joinStyle{innerJoin, leftJoin, flipJoin}, true
	case queryir.KindMatches:
		return joinStyle{innerJoin, leftJoin, flipJoin}, true
	case queryir.KindManyAssociationContains, queryir.KindContains, queryir.KindContainsAll:
		return joinStyle{innerJoin, innerJoin, exceptAll}, true
	case queryir.KindAnd, queryir.KindOr, queryir.KindNot:
		return joinStyle{}, false
	default:
		return joinStyle{}, false
	}
}

// comparison operators and their complements.
func operator(k queryir.Kind) string {
	switch k {
	case queryir.KindEq:
		return "="
	case queryir.KindNe:
		return "<>"
	case queryir.KindGe:
		return ">="
	case queryir.KindGt:
		return ">"
	case queryir.KindLe:
		return "<="
	case queryir.KindLt:
		return "<"
	default:
		return ""
	}
}

func complement(k queryir.Kind) queryir.Kind {
	switch k {
	case queryir.KindEq:
		return queryir.KindNe
	case queryir.KindNe:
		return queryir.KindEq
	case queryir.KindGe:
		return queryir.KindLt
	case queryir.KindGt:
		return queryir.KindLe
	case queryir.KindLe:
		return queryir.KindGt
	case queryir.KindLt:
		return queryir.KindGe
	default:
		return k
	}
}
