package store

import (
	"strconv"

	"github.com/roach88/qindex/internal/ir"
	"github.com/roach88/qindex/internal/schema"
)

// valueRow is one row of a value table.
type valueRow struct {
	info    *schema.QNameInfo
	qnameID int64

	// parent is the qname_id of the owning composite row, or nil.
	parent any

	// path is the collection path; empty for tables without one.
	path string

	// value is the encoded value, or nil for collection and list rows.
	value any

	// target is the target identity of association rows.
	target string

	// index is the position of a many-association target.
	index int
}

// flattener turns one entity state into value rows. qname ids are
// numbered per entity from 1 in walk order.
type flattener struct {
	reg  *schema.Registry
	next int64
	rows []valueRow
}

func flatten(reg *schema.Registry, entity *ir.EntityDescriptor, st ir.EntityState) ([]valueRow, error) {
	f := &flattener{reg: reg}
	for _, p := range entity.Properties {
		info, ok := reg.Lookup(p.QName)
		if !ok {
			continue
		}
		if err := f.property(info, nil, st.Property(p.QName)); err != nil {
			return nil, err
		}
	}
	for _, a := range entity.Associations {
		info, ok := reg.Lookup(a.QName)
		if !ok {
			continue
		}
		if target := st.Associations[a.QName]; target != "" {
			f.add(valueRow{info: info, target: schema.EncodeIdentity(target)})
		}
	}
	for _, a := range entity.ManyAssociations {
		info, ok := reg.Lookup(a.QName)
		if !ok {
			continue
		}
		for i, target := range st.ManyAssociations[a.QName] {
			if target == "" {
				return nil, schema.NewInvalidValueError(a.QName.String(), "empty target identity at %d", i)
			}
			f.add(valueRow{info: info, target: schema.EncodeIdentity(target), index: i})
		}
	}
	return f.rows, nil
}

func (f *flattener) add(r valueRow) int64 {
	f.next++
	r.qnameID = f.next
	f.rows = append(f.rows, r)
	return r.qnameID
}

func (f *flattener) property(info *schema.QNameInfo, parent any, v ir.IRValue) error {
	if ir.IsNull(v) {
		return nil
	}
	if info.CollectionDepth == 0 {
		return f.scalar(info, parent, "", v)
	}
	list, ok := v.(ir.IRList)
	if !ok {
		return schema.NewInvalidValueError(info.QName.String(), "want list, got %s", ir.FormatValue(v))
	}
	f.add(valueRow{info: info, parent: parent, path: schema.CollectionRoot})
	return f.items(info, parent, list, schema.CollectionRoot, info.CollectionDepth)
}

// items writes the rows of one list level. Null items get no row and keep
// their index.
func (f *flattener) items(info *schema.QNameInfo, parent any, list ir.IRList, prefix string, depth int) error {
	for i, item := range list {
		if ir.IsNull(item) {
			continue
		}
		path := prefix + schema.CollectionSeparator + strconv.Itoa(i)
		if depth > 1 {
			nested, ok := item.(ir.IRList)
			if !ok {
				return schema.NewInvalidValueError(info.QName.String(), "want list at %s, got %s", path, ir.FormatValue(item))
			}
			f.add(valueRow{info: info, parent: parent, path: path})
			if err := f.items(info, parent, nested, path, depth-1); err != nil {
				return err
			}
			continue
		}
		if err := f.scalar(info, parent, path, item); err != nil {
			return err
		}
	}
	return nil
}

// scalar writes a primitive, enum or composite value at path.
func (f *flattener) scalar(info *schema.QNameInfo, parent any, path string, v ir.IRValue) error {
	if info.FinalType.Kind != ir.TypeComposite {
		enc, _, err := f.reg.EncodeValue(info.QName.String(), info.FinalType, v)
		if err != nil {
			return err
		}
		f.add(valueRow{info: info, parent: parent, path: path, value: enc})
		return nil
	}

	c, ok := v.(ir.IRComposite)
	if !ok {
		return schema.NewInvalidValueError(info.QName.String(), "want %s value, got %s", info.FinalType, ir.FormatValue(v))
	}
	name := info.FinalType.Name
	if c.Type != "" && c.Type != name {
		return schema.NewInvalidValueError(info.QName.String(), "want %s value, got %s", name, c.Type)
	}
	desc, ok := f.reg.Composite(name)
	if !ok {
		return schema.NewInvalidValueError(name, "composite type is not registered")
	}
	classID, err := f.reg.ClassID(name)
	if err != nil {
		return err
	}

	known := make(map[string]bool, len(desc.Properties))
	for _, p := range desc.Properties {
		known[p.QName.Name] = true
	}
	for _, field := range c.SortedFields() {
		if !known[field] {
			return schema.NewInvalidValueError(name, "unknown field %q", field)
		}
	}

	id := f.add(valueRow{info: info, parent: parent, path: path, value: classID})
	for _, p := range desc.Properties {
		child, ok := f.reg.Lookup(p.QName)
		if !ok {
			continue
		}
		if err := f.property(child, id, c.Fields[p.QName.Name]); err != nil {
			return err
		}
	}
	return nil
}
