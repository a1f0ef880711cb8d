package querysql

import (
	"strings"

	"github.com/roach88/qindex/internal/schema"
)

// Param is one positional query parameter with its target column type.
type Param struct {
	Value any
	Type  schema.ColumnType
}

// fragment is SQL text with the parameters of its placeholders, kept in
// textual order so fragments can be spliced without renumbering.
type fragment struct {
	b      strings.Builder
	params []Param
}

func (f *fragment) write(parts ...string) {
	for _, p := range parts {
		f.b.WriteString(p)
	}
}

// bind writes a placeholder for v.
func (f *fragment) bind(v any, t schema.ColumnType) {
	f.b.WriteByte('?')
	f.params = append(f.params, Param{Value: v, Type: t})
}

// bindList writes a comma separated placeholder list.
func (f *fragment) bindList(ps []Param) {
	for i, p := range ps {
		if i > 0 {
			f.b.WriteString(", ")
		}
		f.bind(p.Value, p.Type)
	}
}

func (f *fragment) append(o *fragment) {
	f.b.WriteString(o.b.String())
	f.params = append(f.params, o.params...)
}

func (f *fragment) empty() bool { return f.b.Len() == 0 }

func (f *fragment) String() string { return f.b.String() }

// and appends a condition joined with AND.
func (f *fragment) and(cond *fragment) {
	if cond.empty() {
		return
	}
	if !f.empty() {
		f.b.WriteString(" AND ")
	}
	f.append(cond)
}

func cond(parts ...string) *fragment {
	f := &fragment{}
	f.write(parts...)
	return f
}
