package querysql

import (
	"github.com/roach88/qindex/internal/ir"
	"github.com/roach88/qindex/internal/queryir"
	"github.com/roach88/qindex/internal/schema"
)

// order compiles sort keys against the outer entity alias. Joins are
// LEFT OUTER so entities without a sort value are kept; they sort first
// ascending and last descending on every dialect.
func (c *compilation) order(plan *joinPlan, keys []queryir.OrderBy) (*fragment, error) {
	f := &fragment{}
	for _, key := range keys {
		expr, err := c.sortExpr(plan, key.Path)
		if err != nil {
			return nil, err
		}
		if !f.empty() {
			f.write(", ")
		}
		f.write(expr)
		if key.Descending {
			f.write(" DESC")
		} else {
			f.write(" ASC")
		}
		f.write(c.reg.Dialect().NullsOrder(key.Descending))
	}
	return f, nil
}

func (c *compilation) sortExpr(plan *joinPlan, path queryir.Path) (string, error) {
	single, err := singleValued(c.reg, path)
	if err != nil {
		return "", err
	}
	if last, ok := path.Last(); !single || (ok && last.Kind == ir.MemberManyAssociation) {
		return "", schema.NewInvalidValueError(path.String(), "cannot sort on a multi-valued path")
	}

	cur, err := plan.walk(cursor{alias: "e", entity: true}, path, leftJoin, walkOptions{enterFinal: true})
	if err != nil {
		return "", err
	}
	if path.IsIdentity() {
		return cur.alias + "." + schema.ColIdentity, nil
	}
	if cur.info.CollectionDepth > 0 || !cur.info.FinalType.IsPrimitiveLike() {
		return "", schema.NewInvalidValueError(path.String(), "cannot sort on %s", cur.info.FinalType)
	}
	return cur.alias + "." + schema.ColValue, nil
}
