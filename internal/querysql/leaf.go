package querysql

import (
	"github.com/roach88/qindex/internal/ir"
	"github.com/roach88/qindex/internal/queryir"
	"github.com/roach88/qindex/internal/schema"
)

// compare compiles Eq, Ne, Ge, Gt, Le and Lt.
func (c *compilation) compare(cmp queryir.Compare, negated bool) (*fragment, error) {
	value, err := c.resolve(cmp.Value)
	if err != nil {
		return nil, err
	}

	// Comparing with null is a null check.
	if ir.IsNull(value) {
		switch cmp.Op {
		case queryir.KindEq:
			return c.set(queryir.IsNull{Path: cmp.Path}, negated)
		case queryir.KindNe:
			return c.set(queryir.IsNotNull{Path: cmp.Path}, negated)
		default:
			return nil, schema.NewInvalidValueError(cmp.Path.String(), "%s against null", cmp.Op)
		}
	}

	if composite, ok := value.(ir.IRComposite); ok {
		return c.compareComposite(cmp, composite, negated)
	}

	single, err := singleValued(c.reg, cmp.Path)
	if err != nil {
		return nil, err
	}
	if negated && !single {
		pos, err := c.compare(cmp, false)
		if err != nil {
			return nil, err
		}
		return c.except(pos), nil
	}

	st, _ := styleOf(cmp.Op)
	jt := st.normal
	op := cmp.Op
	if negated {
		jt = st.negated
		op = complement(cmp.Op)
	}

	plan := newJoinPlan(c.reg, "t")
	cur, err := plan.walk(rootCursor(), cmp.Path, jt, walkOptions{enterFinal: true})
	if err != nil {
		return nil, err
	}

	var expr string
	var param Param
	if cmp.Path.IsIdentity() {
		s, ok := value.(ir.IRString)
		if !ok {
			return nil, schema.NewInvalidValueError(cmp.Path.String(), "identity comparison needs a string, got %s", ir.FormatValue(value))
		}
		expr = cur.alias + "." + schema.ColIdentity
		param = Param{Value: schema.EncodeIdentity(string(s)), Type: schema.ColText}
	} else {
		if cur.info.CollectionDepth > 0 {
			return nil, schema.NewInvalidValueError(cmp.Path.String(), "cannot compare a collection; use contains")
		}
		if cur.info.FinalType.Kind == ir.TypeEnum && cmp.Op != queryir.KindEq && cmp.Op != queryir.KindNe {
			return nil, schema.NewInvalidValueError(cmp.Path.String(), "enums only support eq and ne")
		}
		v, ct, err := c.reg.EncodeValue(cmp.Path.String(), cur.info.FinalType, value)
		if err != nil {
			return nil, err
		}
		expr = cur.alias + "." + schema.ColValue
		param = Param{Value: v, Type: ct}
	}

	where := &fragment{}
	if jt == leftJoin {
		where.write("(", expr, " IS NULL OR ", expr, " ", operator(op), " ")
		where.bind(param.Value, param.Type)
		where.write(")")
	} else {
		where.write(expr, " ", operator(op), " ")
		where.bind(param.Value, param.Type)
	}
	return c.leaf(plan, where, nil), nil
}

// nullCheck compiles property and association null checks.
func (c *compilation) nullCheck(k queryir.Kind, path queryir.Path, negated bool) (*fragment, error) {
	if len(path) == 0 {
		return nil, schema.NewInvalidValueError("<identity>", "%s needs a member path", k)
	}
	single, err := singleValued(c.reg, path)
	if err != nil {
		return nil, err
	}
	if negated && !single {
		pos, err := c.nullCheck(k, path, false)
		if err != nil {
			return nil, err
		}
		return c.except(pos), nil
	}

	st, _ := styleOf(k)
	jt := st.normal
	if negated {
		jt = st.negated
	}
	plan := newJoinPlan(c.reg, "t")
	cur, err := plan.walk(rootCursor(), path, jt, walkOptions{finalRoot: true})
	if err != nil {
		return nil, err
	}

	column := schema.ColQNameID
	if cur.info.Kind == ir.MemberAssociation {
		column = schema.ColTargetPK
	}
	wantNull := (k == queryir.KindPropertyNull || k == queryir.KindAssociationNull) != negated
	test := " IS NOT NULL"
	if wantNull {
		test = " IS NULL"
	}
	return c.leaf(plan, cond(cur.alias, ".", column, test), nil), nil
}

// matches compiles a regular expression match on a string property.
func (c *compilation) matches(m queryir.Matches, negated bool) (*fragment, error) {
	single, err := singleValued(c.reg, m.Path)
	if err != nil {
		return nil, err
	}
	if negated && !single {
		pos, err := c.matches(m, false)
		if err != nil {
			return nil, err
		}
		return c.except(pos), nil
	}

	st, _ := styleOf(queryir.KindMatches)
	jt := st.normal
	if negated {
		jt = st.negated
	}
	plan := newJoinPlan(c.reg, "t")
	cur, err := plan.walk(rootCursor(), m.Path, jt, walkOptions{})
	if err != nil {
		return nil, err
	}
	if cur.info == nil || cur.info.Kind != ir.MemberProperty || cur.info.CollectionDepth > 0 ||
		schema.ColumnTypeOf(cur.info.FinalType) != schema.ColText || cur.info.FinalType.Kind != ir.TypePrimitive {
		return nil, schema.NewInvalidValueError(m.Path.String(), "matches needs a scalar string property")
	}

	expr := cur.alias + "." + schema.ColValue
	match := expr + " " + c.reg.Dialect().RegexpOperator() + " "
	where := &fragment{}
	if negated {
		where.write("(", expr, " IS NULL OR NOT (", match)
		where.bind(m.Pattern, schema.ColText)
		where.write("))")
	} else {
		where.write(match)
		where.bind(m.Pattern, schema.ColText)
	}
	return c.leaf(plan, where, nil), nil
}

// manyContains compiles membership of an identity in a many-association.
func (c *compilation) manyContains(m queryir.ManyAssociationContains) (*fragment, error) {
	last, ok := m.Path.Last()
	if !ok || last.Kind != ir.MemberManyAssociation {
		return nil, schema.NewInvalidValueError(m.Path.String(), "manyAssociationContains needs a many-association path")
	}
	value, err := c.resolve(m.Identity)
	if err != nil {
		return nil, err
	}
	s, ok := value.(ir.IRString)
	if !ok {
		return nil, schema.NewInvalidValueError(m.Path.String(), "identity must be a string, got %s", ir.FormatValue(value))
	}

	plan := newJoinPlan(c.reg, "t")
	cur, err := plan.walk(rootCursor(), m.Path, innerJoin, walkOptions{enterFinal: true})
	if err != nil {
		return nil, err
	}
	where := cond(cur.alias, ".", schema.ColIdentity, " = ")
	where.bind(schema.EncodeIdentity(string(s)), schema.ColText)
	return c.leaf(plan, where, nil), nil
}
