package querysql

import (
	"fmt"

	"github.com/roach88/qindex/internal/ir"
	"github.com/roach88/qindex/internal/queryir"
	"github.com/roach88/qindex/internal/schema"
)

// collectionCursor walks path and checks that it ends in a collection.
func (c *compilation) collectionCursor(plan *joinPlan, path queryir.Path) (cursor, error) {
	cur, err := plan.walk(rootCursor(), path, innerJoin, walkOptions{})
	if err != nil {
		return cursor{}, err
	}
	if cur.info == nil || cur.info.Kind != ir.MemberProperty || cur.info.CollectionDepth == 0 {
		return cursor{}, schema.NewInvalidValueError(path.String(), "not a collection property")
	}
	return cur, nil
}

// itemCondition restricts alias to collection item rows at any depth.
func (c *compilation) itemCondition(alias string) *fragment {
	f := cond(alias, ".", schema.ColCollectionPath, " ", c.reg.Dialect().RegexpOperator(), " ")
	f.bind(schema.CollectionItemPattern, schema.ColText)
	return f
}

// contains compiles "collection at path includes value". Items of nested
// collections match at any depth.
func (c *compilation) contains(path queryir.Path, item ir.IRValue) (*fragment, error) {
	value, err := c.resolve(item)
	if err != nil {
		return nil, err
	}
	if ir.IsNull(value) {
		return nil, schema.NewInvalidValueError(path.String(), "contains needs a value")
	}

	plan := newJoinPlan(c.reg, "t")
	cur, err := c.collectionCursor(plan, path)
	if err != nil {
		return nil, err
	}

	where := c.itemCondition(cur.alias)
	if composite, ok := value.(ir.IRComposite); ok {
		if cur.info.FinalType.Kind != ir.TypeComposite {
			return nil, schema.NewInvalidValueError(path.String(), "collection of %s cannot contain %s", cur.info.FinalType, composite.Type)
		}
		if err := c.matchComposite(plan, cur, cur.info.FinalType.Name, composite, where); err != nil {
			return nil, err
		}
		return c.leaf(plan, where, nil), nil
	}

	v, ct, err := c.reg.EncodeValue(path.String(), cur.info.FinalType, value)
	if err != nil {
		return nil, err
	}
	where.write(" AND ", cur.alias, ".", schema.ColValue, " = ")
	where.bind(v, ct)
	return c.leaf(plan, where, nil), nil
}

// containsAll compiles "collection at path includes every value".
//
// Scalar items are matched in one grouped scan: the entity qualifies
// when the number of distinct matching values reaches the number of
// distinct requested values, so a repeated stored value cannot stand in
// for a missing one. Composite items are matched one by one and
// intersected.
func (c *compilation) containsAll(ca queryir.ContainsAll) (*fragment, error) {
	items := make([]ir.IRValue, 0, len(ca.Values))
	for _, v := range ca.Values {
		resolved, err := c.resolve(v)
		if err != nil {
			return nil, err
		}
		if ir.IsNull(resolved) {
			return nil, schema.NewInvalidValueError(ca.Path.String(), "containsAll item is null")
		}
		items = append(items, resolved)
	}
	if len(items) == 0 {
		return c.all(), nil
	}

	plan := newJoinPlan(c.reg, "t")
	cur, err := c.collectionCursor(plan, ca.Path)
	if err != nil {
		return nil, err
	}

	if cur.info.FinalType.Kind == ir.TypeComposite {
		return c.containsAllComposites(ca.Path, items)
	}

	seen := make(map[any]bool, len(items))
	params := make([]Param, 0, len(items))
	for _, item := range items {
		v, ct, err := c.reg.EncodeValue(ca.Path.String(), cur.info.FinalType, item)
		if err != nil {
			return nil, err
		}
		if seen[v] {
			continue
		}
		seen[v] = true
		params = append(params, Param{Value: v, Type: ct})
	}

	where := c.itemCondition(cur.alias)
	where.write(" AND ", cur.alias, ".", schema.ColValue, " IN (")
	where.bindList(params)
	where.write(")")

	having := cond("COUNT(DISTINCT ", cur.alias, ".", schema.ColValue, ") >= ")
	having.bind(int64(len(params)), schema.ColInt)
	return c.leaf(plan, where, having), nil
}

func (c *compilation) containsAllComposites(path queryir.Path, items []ir.IRValue) (*fragment, error) {
	seen := make(map[string]bool, len(items))
	var sets []*fragment
	for _, item := range items {
		key := ir.FormatValue(item)
		if seen[key] {
			continue
		}
		seen[key] = true
		s, err := c.contains(path, item)
		if err != nil {
			return nil, err
		}
		sets = append(sets, s)
	}
	if len(sets) == 1 {
		return sets[0], nil
	}
	f := &fragment{}
	for i, s := range sets {
		if i > 0 {
			f.write(" INTERSECT ")
		}
		wrap(f, s)
	}
	return f, nil
}

// compareComposite compiles a comparison whose operand is a composite
// value. Only eq and ne are defined; a negated match is subtracted from
// all entities.
func (c *compilation) compareComposite(cmp queryir.Compare, value ir.IRComposite, negated bool) (*fragment, error) {
	switch cmp.Op {
	case queryir.KindEq:
	case queryir.KindNe:
		negated = !negated
	default:
		return nil, schema.NewInvalidValueError(cmp.Path.String(), "%s is not defined for composite values", cmp.Op)
	}

	plan := newJoinPlan(c.reg, "t")
	cur, err := plan.walk(rootCursor(), cmp.Path, innerJoin, walkOptions{})
	if err != nil {
		return nil, err
	}
	if cur.info == nil || cur.info.Kind != ir.MemberProperty ||
		cur.info.FinalType.Kind != ir.TypeComposite || cur.info.CollectionDepth > 0 {
		return nil, schema.NewInvalidValueError(cmp.Path.String(), "not a composite property")
	}

	where := &fragment{}
	if err := c.matchComposite(plan, cur, cur.info.FinalType.Name, value, where); err != nil {
		return nil, err
	}
	set := c.leaf(plan, where, nil)
	if negated {
		return c.except(set), nil
	}
	return set, nil
}

// matchComposite constrains the composite row at cur to equal value:
// same class, and every declared, indexed property equal (absent
// properties must be absent).
func (c *compilation) matchComposite(plan *joinPlan, cur cursor, declared string, value ir.IRComposite, where *fragment) error {
	desc, ok := c.reg.Composite(declared)
	if !ok {
		return schema.NewInvalidValueError(declared, "composite type is not registered")
	}
	if value.Type != "" && value.Type != declared {
		return schema.NewInvalidValueError(cur.info.QName.String(), "want %s value, got %s", declared, value.Type)
	}
	known := make(map[string]bool, len(desc.Properties))
	for _, p := range desc.Properties {
		known[p.QName.Name] = true
	}
	for _, name := range value.SortedFields() {
		if !known[name] {
			return schema.NewInvalidValueError(declared, "unknown field %q", name)
		}
	}

	classID, err := c.reg.ClassID(declared)
	if err != nil {
		return err
	}
	where.and(bound(cur.alias+"."+schema.ColValue+" = ", classID, schema.ColInt))

	parent := cursor{alias: cur.alias, info: cur.info}
	for _, p := range desc.Properties {
		info, ok := c.reg.Lookup(p.QName)
		if !ok {
			continue
		}
		field, err := c.resolve(value.Fields[p.QName.Name])
		if err != nil {
			return err
		}
		if err := c.matchField(plan, parent, info, field, where); err != nil {
			return err
		}
	}
	return nil
}

func (c *compilation) matchField(plan *joinPlan, parent cursor, info *schema.QNameInfo, field ir.IRValue, where *fragment) error {
	subject := info.QName.String()

	if ir.IsNull(field) {
		a := plan.hop(parent, info, leftJoin, hopOptions{path: rootPath(info)})
		where.and(cond(a, ".", schema.ColQNameID, " IS NULL"))
		return nil
	}

	switch {
	case info.CollectionDepth == 0 && info.FinalType.Kind == ir.TypeComposite:
		nested, ok := field.(ir.IRComposite)
		if !ok {
			return schema.NewInvalidValueError(subject, "want %s value, got %s", info.FinalType, ir.FormatValue(field))
		}
		a := plan.hop(parent, info, innerJoin, hopOptions{})
		return c.matchComposite(plan, cursor{alias: a, info: info}, info.FinalType.Name, nested, where)

	case info.CollectionDepth == 0:
		v, ct, err := c.reg.EncodeValue(subject, info.FinalType, field)
		if err != nil {
			return err
		}
		a := plan.hop(parent, info, innerJoin, hopOptions{})
		where.and(bound(a+"."+schema.ColValue+" = ", v, ct))
		return nil

	case info.CollectionDepth == 1 && info.FinalTypePrimitive:
		list, ok := field.(ir.IRList)
		if !ok {
			return schema.NewInvalidValueError(subject, "want list, got %s", ir.FormatValue(field))
		}
		plan.hop(parent, info, innerJoin, hopOptions{path: schema.CollectionRoot})
		for i, item := range list {
			item, err := c.resolve(item)
			if err != nil {
				return err
			}
			v, ct, err := c.reg.EncodeValue(subject, info.FinalType, item)
			if err != nil {
				return err
			}
			a := plan.hop(parent, info, innerJoin, hopOptions{path: itemPath(i), fresh: true})
			where.and(bound(a+"."+schema.ColValue+" = ", v, ct))
		}
		// No item past the last one: same length.
		tail := cond("NOT EXISTS (SELECT 1 FROM ", c.reg.Table(info.Table), " x WHERE x.",
			schema.ColParentQName, " = ", parent.alias, ".", schema.ColQNameID,
			" AND x.", schema.ColEntityPK, " = ", parent.alias, ".", schema.ColEntityPK,
			" AND x.", schema.ColCollectionPath, " = ")
		tail.bind(itemPath(len(list)), schema.ColText)
		tail.write(")")
		where.and(tail)
		return nil

	default:
		return schema.NewInvalidValueError(subject, "nested collections are not comparable inside composite values")
	}
}

func bound(prefix string, v any, ct schema.ColumnType) *fragment {
	f := cond(prefix)
	f.bind(v, ct)
	return f
}

func rootPath(info *schema.QNameInfo) string {
	if info.CollectionDepth > 0 {
		return schema.CollectionRoot
	}
	return ""
}

func itemPath(i int) string {
	return fmt.Sprintf("%s%s%d", schema.CollectionRoot, schema.CollectionSeparator, i)
}
