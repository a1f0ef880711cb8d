package querysql

import (
	"fmt"

	"github.com/roach88/qindex/internal/ir"
	"github.com/roach88/qindex/internal/queryir"
	"github.com/roach88/qindex/internal/schema"
)

// Query is one compilation request.
type Query struct {
	// ResultType restricts results to entities assignable to this type.
	ResultType string

	// Where filters the results; nil selects every entity of ResultType.
	Where queryir.Predicate

	OrderBy []queryir.OrderBy

	// Offset and Limit page the results; zero means none.
	Offset int
	Limit  int

	// Variables bind ir.IRVariable operands by name.
	Variables map[string]ir.IRValue

	// CountOnly selects COUNT(*) instead of rows; ordering and paging
	// are ignored.
	CountOnly bool
}

// Compiled is parameterized SQL ready for execution.
//
// Row queries select (entity_pk, entity_identity); count queries select
// a single integer.
type Compiled struct {
	SQL    string
	Params []Param
}

// Args returns the parameter values in placeholder order.
func (c *Compiled) Args() []any {
	args := make([]any, len(c.Params))
	for i, p := range c.Params {
		args[i] = p.Value
	}
	return args
}

// Compiler compiles predicate trees against one registry snapshot.
//
// Compilation performs no I/O and is safe for concurrent use.
type Compiler struct {
	reg *schema.Registry
}

// NewCompiler creates a Compiler for reg.
func NewCompiler(reg *schema.Registry) *Compiler {
	return &Compiler{reg: reg}
}

// Compile converts a query to parameterized SQL.
//
// MANDATORY: every row query ends its ORDER BY with entity_pk so results
// are deterministic.
// CRITICAL: values are never interpolated; every operand is a parameter.
func (c *Compiler) Compile(q Query) (*Compiled, error) {
	typeIDs, err := c.reg.AssignableTypeIDs(q.ResultType)
	if err != nil {
		return nil, err
	}
	cc := &compilation{reg: c.reg, vars: q.Variables}

	var where *fragment
	if q.Where != nil {
		where, err = cc.set(q.Where, false)
		if err != nil {
			return nil, fmt.Errorf("compile where: %w", err)
		}
	}

	f := &fragment{}
	if q.CountOnly {
		f.write("SELECT COUNT(*)")
	} else {
		f.write("SELECT e.", schema.ColEntityPK, ", e.", schema.ColIdentity)
	}
	f.write(" FROM ", c.reg.Table(schema.TableEntities), " e")

	var orderBy *fragment
	if !q.CountOnly {
		plan := newJoinPlan(c.reg, "o")
		orderBy, err = cc.order(plan, q.OrderBy)
		if err != nil {
			return nil, fmt.Errorf("compile order by: %w", err)
		}
		f.append(&plan.joins)
	}

	f.write(" WHERE EXISTS (SELECT 1 FROM ", c.reg.Table(schema.TableEntityTypesJoin), " j WHERE j.",
		schema.ColEntityPK, " = e.", schema.ColEntityPK, " AND j.", schema.ColEntityTypeID, " IN (")
	ids := make([]Param, len(typeIDs))
	for i, id := range typeIDs {
		ids[i] = Param{Value: id, Type: schema.ColInt}
	}
	f.bindList(ids)
	f.write("))")

	if where != nil {
		f.write(" AND e.", schema.ColEntityPK, " IN (")
		f.append(where)
		f.write(")")
	}

	if !q.CountOnly {
		f.write(" ORDER BY ")
		if !orderBy.empty() {
			f.append(orderBy)
			f.write(", ")
		}
		f.write("e.", schema.ColEntityPK, " ASC")

		clause, params := c.reg.Dialect().LimitOffset(q.Limit, q.Offset)
		f.write(clause)
		f.params = append(f.params, paramsOf(params)...)
	}

	return &Compiled{
		SQL:    c.reg.Dialect().Rebind(f.String()),
		Params: f.params,
	}, nil
}

func paramsOf(values []any) []Param {
	out := make([]Param, len(values))
	for i, v := range values {
		out[i] = Param{Value: v, Type: schema.ColInt}
	}
	return out
}

// compilation carries the state of one Compile call.
type compilation struct {
	reg  *schema.Registry
	vars map[string]ir.IRValue
}

// set compiles p to a SELECT yielding the entity_pk of every entity for
// which p holds (or, when negated, does not hold).
func (c *compilation) set(p queryir.Predicate, negated bool) (*fragment, error) {
	p = queryir.Deref(p)
	if p == nil {
		return nil, schema.NewInvalidValueError("predicate", "nil predicate operand")
	}

	switch p.Kind() {
	case queryir.KindAnd:
		and, err := as[queryir.And](p)
		if err != nil {
			return nil, err
		}
		return c.combine(and.Operands, negated, true)
	case queryir.KindOr:
		or, err := as[queryir.Or](p)
		if err != nil {
			return nil, err
		}
		return c.combine(or.Operands, negated, false)
	case queryir.KindNot:
		not, err := as[queryir.Not](p)
		if err != nil {
			return nil, err
		}
		return c.set(not.Operand, !negated)
	case queryir.KindEq, queryir.KindNe, queryir.KindGe, queryir.KindGt, queryir.KindLe, queryir.KindLt:
		cmp, err := as[queryir.Compare](p)
		if err != nil {
			return nil, err
		}
		return c.compare(cmp, negated)
	case queryir.KindPropertyNull, queryir.KindAssociationNull:
		n, err := as[queryir.IsNull](p)
		if err != nil {
			return nil, err
		}
		return c.nullCheck(p.Kind(), n.Path, negated)
	case queryir.KindPropertyNotNull, queryir.KindAssociationNotNull:
		n, err := as[queryir.IsNotNull](p)
		if err != nil {
			return nil, err
		}
		return c.nullCheck(p.Kind(), n.Path, negated)
	case queryir.KindManyAssociationContains:
		m, err := as[queryir.ManyAssociationContains](p)
		if err != nil {
			return nil, err
		}
		return c.negatable(p.Kind(), negated, func() (*fragment, error) { return c.manyContains(m) })
	case queryir.KindContains:
		ct, err := as[queryir.Contains](p)
		if err != nil {
			return nil, err
		}
		return c.negatable(p.Kind(), negated, func() (*fragment, error) { return c.contains(ct.Path, ct.Value) })
	case queryir.KindContainsAll:
		ca, err := as[queryir.ContainsAll](p)
		if err != nil {
			return nil, err
		}
		return c.negatable(p.Kind(), negated, func() (*fragment, error) { return c.containsAll(ca) })
	case queryir.KindMatches:
		m, err := as[queryir.Matches](p)
		if err != nil {
			return nil, err
		}
		return c.matches(m, negated)
	default:
		return nil, schema.NewUnsupportedPredicateError(p.Kind().String())
	}
}

func as[T queryir.Predicate](p queryir.Predicate) (T, error) {
	v, ok := p.(T)
	if !ok {
		var zero T
		return zero, schema.NewUnsupportedPredicateError(fmt.Sprintf("%s (%T)", p.Kind(), p))
	}
	return v, nil
}

// negatable compiles leaves whose negation strategy is exceptAll.
func (c *compilation) negatable(k queryir.Kind, negated bool, positive func() (*fragment, error)) (*fragment, error) {
	set, err := positive()
	if err != nil {
		return nil, err
	}
	if st, _ := styleOf(k); negated && st.strategy == exceptAll {
		return c.except(set), nil
	}
	return set, nil
}

// combine joins operand sets with INTERSECT or UNION. Under negation the
// roles swap.
func (c *compilation) combine(ops []queryir.Predicate, negated, isAnd bool) (*fragment, error) {
	intersect := isAnd != negated
	if len(ops) == 0 {
		if intersect {
			return c.all(), nil
		}
		return c.none(), nil
	}

	sets := make([]*fragment, 0, len(ops))
	for _, op := range ops {
		s, err := c.set(op, negated)
		if err != nil {
			return nil, err
		}
		sets = append(sets, s)
	}
	if len(sets) == 1 {
		return sets[0], nil
	}

	joiner := " UNION "
	if intersect {
		joiner = " INTERSECT "
	}
	f := &fragment{}
	for i, s := range sets {
		if i > 0 {
			f.write(joiner)
		}
		wrap(f, s)
	}
	return f, nil
}

// wrap writes s as a FROM subquery so compound operators never nest
// directly.
func wrap(f, s *fragment) {
	f.write("SELECT s.", schema.ColEntityPK, " FROM (")
	f.append(s)
	f.write(") s")
}

func (c *compilation) all() *fragment {
	return cond("SELECT r.", schema.ColEntityPK, " FROM ", c.reg.Table(schema.TableEntities), " r")
}

func (c *compilation) none() *fragment {
	f := c.all()
	f.write(" WHERE 1 = 0")
	return f
}

// except returns all entities not in set.
func (c *compilation) except(set *fragment) *fragment {
	f := &fragment{}
	wrap(f, c.all())
	f.write(" EXCEPT ")
	wrap(f, set)
	return f
}

// leaf assembles a leaf set from a join plan and its conditions.
func (c *compilation) leaf(plan *joinPlan, where *fragment, having *fragment) *fragment {
	f := c.all()
	f.append(&plan.joins)
	if where != nil && !where.empty() {
		f.write(" WHERE ")
		f.append(where)
	}
	if having != nil {
		f.write(" GROUP BY r.", schema.ColEntityPK, " HAVING ")
		f.append(having)
	}
	return f
}

func rootCursor() cursor {
	return cursor{alias: "r", entity: true}
}

// resolve binds variables. Variables never nest.
func (c *compilation) resolve(v ir.IRValue) (ir.IRValue, error) {
	variable, ok := v.(ir.IRVariable)
	if !ok {
		return v, nil
	}
	bound, ok := c.vars[variable.Name]
	if !ok {
		return nil, schema.NewUnboundVariableError(variable.Name)
	}
	if _, nested := bound.(ir.IRVariable); nested {
		return nil, schema.NewInvalidValueError(variable.Name, "variable bound to another variable")
	}
	return bound, nil
}
