package queryir

import (
	"fmt"

	"github.com/roach88/qindex/internal/ir"
)

// ValidationResult lists structural problems of a predicate tree.
//
// Validation is registry-free: it checks shape (operands present, paths
// well formed for the predicate kind), not whether qualified names exist.
type ValidationResult struct {
	// IsValid is true when Problems is empty.
	IsValid bool

	// Problems describe each violation, outermost first.
	Problems []string
}

// Validate checks a predicate tree and its ordering segments.
// A nil predicate is valid and means no filter.
//
// Validate is a pure function with no side effects.
func Validate(p Predicate, order ...OrderBy) ValidationResult {
	v := &validator{problems: []string{}}
	if p != nil {
		v.predicate(p)
	}
	for i, o := range order {
		v.order(i, o)
	}
	return ValidationResult{
		IsValid:  len(v.problems) == 0,
		Problems: v.problems,
	}
}

type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) predicate(p Predicate) {
	switch pred := Deref(p).(type) {
	case nil:
		v.addProblem("nil predicate operand")
	case And:
		v.group("and", pred.Operands)
	case Or:
		v.group("or", pred.Operands)
	case Not:
		if pred.Operand == nil {
			v.addProblem("not: missing operand")
			return
		}
		v.predicate(pred.Operand)
	case Compare:
		v.compare(pred)
	case IsNull:
		v.nullCheck(pred.Kind(), pred.Path)
	case IsNotNull:
		v.nullCheck(pred.Kind(), pred.Path)
	case ManyAssociationContains:
		v.chain(pred.Kind(), pred.Path)
		if last, ok := pred.Path.Last(); !ok || last.Kind != ir.MemberManyAssociation {
			v.addProblem("%s: path %s must end in a many-association", pred.Kind(), pred.Path)
		}
		if ir.IsNull(pred.Identity) {
			v.addProblem("%s: missing identity", pred.Kind())
		}
	case Contains:
		v.property(pred.Kind(), pred.Path)
		if ir.IsNull(pred.Value) {
			v.addProblem("%s: missing value", pred.Kind())
		}
	case ContainsAll:
		v.property(pred.Kind(), pred.Path)
		for i, val := range pred.Values {
			if ir.IsNull(val) {
				v.addProblem("%s: value %d is null", pred.Kind(), i)
			}
		}
	case Matches:
		v.property(pred.Kind(), pred.Path)
		if pred.Pattern == "" {
			v.addProblem("%s: empty pattern", pred.Kind())
		}
	default:
		v.addProblem("unknown predicate type %T", p)
	}
}

func (v *validator) group(name string, ops []Predicate) {
	if len(ops) == 0 {
		v.addProblem("%s: no operands", name)
	}
	for _, op := range ops {
		v.predicate(op)
	}
}

func (v *validator) compare(c Compare) {
	if !c.Op.IsComparison() {
		v.addProblem("compare: %s is not a comparison operator", c.Op)
	}
	v.chain(c.Op, c.Path)
	if last, ok := c.Path.Last(); ok && last.Kind == ir.MemberManyAssociation {
		v.addProblem("%s: path %s ends in a many-association; use manyAssociationContains", c.Op, c.Path)
	}
	if c.Value == nil {
		v.addProblem("%s: missing value for %s", c.Op, c.Path)
	}
}

func (v *validator) nullCheck(k Kind, p Path) {
	if len(p) == 0 {
		v.addProblem("%s: empty path", k)
		return
	}
	v.chain(k, p)
}

func (v *validator) property(k Kind, p Path) {
	last, ok := p.Last()
	if !ok {
		v.addProblem("%s: empty path", k)
		return
	}
	v.chain(k, p)
	if last.Kind != ir.MemberProperty {
		v.addProblem("%s: path %s must end in a property", k, p)
	}
}

// chain rejects many-association steps before the last step.
func (v *validator) chain(k Kind, p Path) {
	for i, s := range p {
		if s.QName.IsZero() {
			v.addProblem("%s: step %d has no qualified name", k, i)
		}
		if s.Kind == ir.MemberManyAssociation && i < len(p)-1 {
			v.addProblem("%s: path %s traverses many-association %s", k, p, s.QName)
		}
	}
}

func (v *validator) order(i int, o OrderBy) {
	for _, s := range o.Path {
		if s.Kind == ir.MemberManyAssociation {
			v.addProblem("order %d: cannot sort on many-association %s", i, s.QName)
			return
		}
	}
}
