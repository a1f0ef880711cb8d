package querysql

import (
	"strconv"

	"github.com/roach88/qindex/internal/ir"
	"github.com/roach88/qindex/internal/queryir"
	"github.com/roach88/qindex/internal/schema"
)

// cursor is the table alias a path traversal has reached.
type cursor struct {
	alias string

	// entity is true when alias is an entities table.
	entity bool

	// info describes the value table at alias; nil at the root.
	info *schema.QNameInfo

	// link is the association table alias of the last association hop
	// when the traversal did not enter its target.
	link string
}

type hopOptions struct {
	// path restricts the hop to rows with this exact collection path.
	path string

	// itemsOnly restricts the hop to rows carrying a value, skipping
	// collection root and intermediate list rows.
	itemsOnly bool

	// fresh bypasses the join cache.
	fresh bool
}

type joinKey struct {
	parent string
	qname  ir.QualifiedName
	jt     joinType
	opts   hopOptions
	enter  bool
}

// joinPlan accumulates the joins of one SELECT scope. Aliases are
// numbered from prefix; the cache lets repeated references to the same
// hop from the same parent reuse one join.
type joinPlan struct {
	reg    *schema.Registry
	prefix string
	next   int
	joins  fragment
	cache  map[joinKey]string
}

func newJoinPlan(reg *schema.Registry, prefix string) *joinPlan {
	return &joinPlan{reg: reg, prefix: prefix, cache: make(map[joinKey]string)}
}

func (p *joinPlan) alias() string {
	a := p.prefix + strconv.Itoa(p.next)
	p.next++
	return a
}

// hop joins the value table of info to from.
func (p *joinPlan) hop(from cursor, info *schema.QNameInfo, jt joinType, opts hopOptions) string {
	key := joinKey{parent: from.alias, qname: info.QName, jt: jt, opts: opts}
	if !opts.fresh {
		if a, ok := p.cache[key]; ok {
			return a
		}
	}
	a := p.alias()
	p.joins.write(jt.sql(), p.reg.Table(info.Table), " ", a, " ON ")
	if from.entity {
		p.joins.write(a, ".", schema.ColEntityPK, " = ", from.alias, ".", schema.ColEntityPK,
			" AND ", a, ".", schema.ColParentQName, " IS NULL")
	} else {
		p.joins.write(a, ".", schema.ColParentQName, " = ", from.alias, ".", schema.ColQNameID,
			" AND ", a, ".", schema.ColEntityPK, " = ", from.alias, ".", schema.ColEntityPK)
	}
	if opts.path != "" {
		p.joins.write(" AND ", a, ".", schema.ColCollectionPath, " = ")
		p.joins.bind(opts.path, schema.ColText)
	}
	if opts.itemsOnly {
		p.joins.write(" AND ", a, ".", schema.ColValue, " IS NOT NULL")
	}
	if !opts.fresh {
		p.cache[key] = a
	}
	return a
}

// enter joins the entities table on the target of an association alias.
func (p *joinPlan) enter(link string, jt joinType) string {
	key := joinKey{parent: link, jt: jt, enter: true}
	if a, ok := p.cache[key]; ok {
		return a
	}
	a := p.alias()
	p.joins.write(jt.sql(), p.reg.Table(schema.TableEntities), " ", a, " ON ",
		a, ".", schema.ColEntityPK, " = ", link, ".", schema.ColTargetPK)
	p.cache[key] = a
	return a
}

type walkOptions struct {
	// enterFinal joins the target entity of a final association step.
	enterFinal bool

	// finalRoot restricts a final collection hop to the collection root row.
	finalRoot bool
}

// walk traverses path from root, innermost hop last, and returns the
// cursor at the final step.
func (p *joinPlan) walk(root cursor, path queryir.Path, jt joinType, opts walkOptions) (cursor, error) {
	cur := root
	for i, step := range path {
		info, err := p.reg.QNameInfo(step.QName)
		if err != nil {
			return cursor{}, err
		}
		if info.Kind != step.Kind {
			return cursor{}, schema.NewInvalidValueError(step.QName.String(),
				"path step is a %s, not a %s", info.Kind, step.Kind)
		}
		last := i == len(path)-1

		switch info.Kind {
		case ir.MemberProperty:
			var ho hopOptions
			if !last {
				if info.FinalType.Kind != ir.TypeComposite {
					return cursor{}, schema.NewInvalidValueError(path.String(),
						"path continues past %s property %s", info.FinalType, step.QName)
				}
				ho.itemsOnly = info.CollectionDepth > 0
			} else if opts.finalRoot && info.CollectionDepth > 0 {
				ho.path = schema.CollectionRoot
			}
			cur = cursor{alias: p.hop(cur, info, jt, ho), info: info}

		case ir.MemberAssociation, ir.MemberManyAssociation:
			if !cur.entity {
				return cursor{}, schema.NewInvalidValueError(path.String(),
					"association %s is not reachable from a composite", step.QName)
			}
			if info.Kind == ir.MemberManyAssociation && !last {
				return cursor{}, schema.NewInvalidValueError(path.String(),
					"path traverses many-association %s", step.QName)
			}
			link := p.hop(cur, info, jt, hopOptions{})
			if !last || opts.enterFinal {
				cur = cursor{alias: p.enter(link, jt), entity: true, info: info, link: link}
			} else {
				cur = cursor{alias: link, info: info, link: link}
			}
		}
	}
	return cur, nil
}

// singleValued reports whether every non-final step of path yields at
// most one row per entity.
func singleValued(reg *schema.Registry, path queryir.Path) (bool, error) {
	for i, step := range path {
		info, err := reg.QNameInfo(step.QName)
		if err != nil {
			return false, err
		}
		if i == len(path)-1 {
			break
		}
		if info.CollectionDepth > 0 || info.Kind == ir.MemberManyAssociation {
			return false, nil
		}
	}
	return true, nil
}
