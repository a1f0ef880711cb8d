package harness

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/qindex/internal/ir"
	"github.com/roach88/qindex/internal/queryir"
	"github.com/roach88/qindex/internal/querysql"
)

// StateSpec is one entity state as written in YAML.
//
// Member keys are qualified names ("Person:age") or, when unambiguous for
// the entity type, bare member names ("age").
type StateSpec struct {
	Identity         string              `yaml:"identity,omitempty" json:"identity,omitempty"`
	Type             string              `yaml:"type" json:"type"`
	Status           string              `yaml:"status,omitempty" json:"status,omitempty"`
	Version          string              `yaml:"version,omitempty" json:"version,omitempty"`
	LastModified     string              `yaml:"last_modified,omitempty" json:"last_modified,omitempty"`
	Properties       map[string]any      `yaml:"properties,omitempty" json:"properties,omitempty"`
	Associations     map[string]string   `yaml:"associations,omitempty" json:"associations,omitempty"`
	ManyAssociations map[string][]string `yaml:"many_associations,omitempty" json:"many_associations,omitempty"`
}

// QuerySpec is one query as written in YAML.
//
// Where holds a single-key map naming the predicate:
//
//	where:
//	  and:
//	    - eq: {path: "Person:age", value: 30}
//	    - not: {isNull: {path: "Person:employer"}}
//	    - containsAll: {path: "Person:nums", values: [1, 2]}
//	    - eq: {path: "Person:employer.Named:name", value: {$var: company}}
//
// An empty path addresses the entity identity.
type QuerySpec struct {
	Type      string         `yaml:"type" json:"type"`
	Where     map[string]any `yaml:"where,omitempty" json:"where,omitempty"`
	OrderBy   []OrderSpec    `yaml:"order_by,omitempty" json:"order_by,omitempty"`
	Offset    int            `yaml:"offset,omitempty" json:"offset,omitempty"`
	Limit     int            `yaml:"limit,omitempty" json:"limit,omitempty"`
	Variables map[string]any `yaml:"variables,omitempty" json:"variables,omitempty"`
	Count     bool           `yaml:"count,omitempty" json:"count,omitempty"`
}

// OrderSpec is one sort key.
type OrderSpec struct {
	Path string `yaml:"path" json:"path"`
	Desc bool   `yaml:"desc,omitempty" json:"desc,omitempty"`
}

// varKey marks a variable operand: {$var: name}.
const varKey = "$var"

// Decoder converts YAML-decoded states and queries into IR, using the
// model to type every value.
type Decoder struct {
	model   *ir.Model
	members map[ir.QualifiedName]member

	// NewIdentity names NEW states that have no identity.
	// Defaults to a UUIDv7 string.
	NewIdentity func() string
}

type member struct {
	kind ir.MemberKind
	typ  ir.TypeRef
}

// NewDecoder indexes the members of m.
func NewDecoder(m *ir.Model) *Decoder {
	d := &Decoder{model: m, members: make(map[ir.QualifiedName]member)}
	for _, e := range m.Entities {
		for _, p := range e.Properties {
			d.members[p.QName] = member{kind: ir.MemberProperty, typ: p.Type}
		}
		for _, a := range e.Associations {
			d.members[a.QName] = member{kind: ir.MemberAssociation}
		}
		for _, a := range e.ManyAssociations {
			d.members[a.QName] = member{kind: ir.MemberManyAssociation}
		}
	}
	for _, c := range m.Composites {
		for _, p := range c.Properties {
			d.members[p.QName] = member{kind: ir.MemberProperty, typ: p.Type}
		}
	}
	return d
}

func (d *Decoder) newIdentity() string {
	if d.NewIdentity != nil {
		return d.NewIdentity()
	}
	return uuid.Must(uuid.NewV7()).String()
}

// States converts a batch of state specs.
func (d *Decoder) States(specs []StateSpec) ([]ir.EntityState, error) {
	out := make([]ir.EntityState, 0, len(specs))
	for i, spec := range specs {
		st, err := d.State(spec)
		if err != nil {
			return nil, fmt.Errorf("state %d: %w", i, err)
		}
		out = append(out, st)
	}
	return out, nil
}

// State converts one state spec. The status defaults to NEW.
func (d *Decoder) State(spec StateSpec) (ir.EntityState, error) {
	entity, ok := d.model.Entity(spec.Type)
	if !ok {
		return ir.EntityState{}, fmt.Errorf("unknown entity type %q", spec.Type)
	}

	status := ir.StatusNew
	if spec.Status != "" {
		s, err := ir.ParseEntityStatus(strings.ToUpper(spec.Status))
		if err != nil {
			return ir.EntityState{}, err
		}
		status = s
	}

	st := ir.EntityState{
		Identity:         spec.Identity,
		Type:             spec.Type,
		Status:           status,
		Version:          spec.Version,
		Properties:       make(map[ir.QualifiedName]ir.IRValue, len(spec.Properties)),
		Associations:     make(map[ir.QualifiedName]string, len(spec.Associations)),
		ManyAssociations: make(map[ir.QualifiedName][]string, len(spec.ManyAssociations)),
	}
	if st.Identity == "" {
		if status != ir.StatusNew {
			return ir.EntityState{}, fmt.Errorf("%s state of type %s has no identity", status, spec.Type)
		}
		st.Identity = d.newIdentity()
	}
	if spec.LastModified != "" {
		t, err := parseTime(spec.LastModified)
		if err != nil {
			return ir.EntityState{}, fmt.Errorf("last_modified: %w", err)
		}
		st.LastModified = t
	}

	for _, key := range sortedKeys(spec.Properties) {
		q, m, err := d.entityMember(entity, key, ir.MemberProperty)
		if err != nil {
			return ir.EntityState{}, err
		}
		v, err := d.value(m.typ, spec.Properties[key])
		if err != nil {
			return ir.EntityState{}, fmt.Errorf("%s: %w", q, err)
		}
		st.Properties[q] = v
	}
	for key, target := range spec.Associations {
		q, _, err := d.entityMember(entity, key, ir.MemberAssociation)
		if err != nil {
			return ir.EntityState{}, err
		}
		st.Associations[q] = target
	}
	for key, targets := range spec.ManyAssociations {
		q, _, err := d.entityMember(entity, key, ir.MemberManyAssociation)
		if err != nil {
			return ir.EntityState{}, err
		}
		st.ManyAssociations[q] = targets
	}
	return st, nil
}

// entityMember resolves key against the members entity exposes.
func (d *Decoder) entityMember(entity *ir.EntityDescriptor, key string, kind ir.MemberKind) (ir.QualifiedName, member, error) {
	var candidates []ir.QualifiedName
	add := func(q ir.QualifiedName) {
		if q.String() == key || (!strings.Contains(key, ":") && q.Name == key) {
			candidates = append(candidates, q)
		}
	}
	switch kind {
	case ir.MemberProperty:
		for _, p := range entity.Properties {
			add(p.QName)
		}
	case ir.MemberAssociation:
		for _, a := range entity.Associations {
			add(a.QName)
		}
	case ir.MemberManyAssociation:
		for _, a := range entity.ManyAssociations {
			add(a.QName)
		}
	}
	switch len(candidates) {
	case 0:
		return ir.QualifiedName{}, member{}, fmt.Errorf("%s has no %s %q", entity.Name, strings.ToLower(kind.String()), key)
	case 1:
		return candidates[0], d.members[candidates[0]], nil
	default:
		return ir.QualifiedName{}, member{}, fmt.Errorf("%s member %q is ambiguous; qualify it", entity.Name, key)
	}
}

// value converts a YAML value to the IR value of type t. Variables are
// accepted anywhere; the compiler rejects them at index time.
func (d *Decoder) value(t ir.TypeRef, raw any) (ir.IRValue, error) {
	if raw == nil {
		return ir.IRNull{}, nil
	}
	if name, ok := variableName(raw); ok {
		return ir.IRVariable{Name: name}, nil
	}

	switch t.Kind {
	case ir.TypeCollection:
		items, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("expected a list, got %T", raw)
		}
		list := make(ir.IRList, len(items))
		for i, item := range items {
			v, err := d.value(*t.Elem, item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			list[i] = v
		}
		return list, nil

	case ir.TypeEnum:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected a %s constant, got %T", t.Name, raw)
		}
		e, ok := d.model.Enum(t.Name)
		if !ok {
			return nil, fmt.Errorf("unknown enum %q", t.Name)
		}
		for _, c := range e.Constants {
			if c == s {
				return ir.IREnum{Type: t.Name, Constant: s}, nil
			}
		}
		return nil, fmt.Errorf("%q is not a constant of %s", s, t.Name)

	case ir.TypeComposite:
		fields, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected a %s mapping, got %T", t.Name, raw)
		}
		c, ok := d.model.Composite(t.Name)
		if !ok {
			return nil, fmt.Errorf("unknown composite %q", t.Name)
		}
		out := ir.IRComposite{Type: t.Name, Fields: make(map[string]ir.IRValue, len(fields))}
		for _, key := range sortedKeys(fields) {
			var prop *ir.PropertyDescriptor
			for i := range c.Properties {
				if c.Properties[i].QName.Name == key {
					prop = &c.Properties[i]
					break
				}
			}
			if prop == nil {
				return nil, fmt.Errorf("%s has no property %q", t.Name, key)
			}
			v, err := d.value(prop.Type, fields[key])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			out.Fields[key] = v
		}
		return out, nil

	case ir.TypePrimitive:
		return primitive(t.Primitive, raw)

	default:
		return nil, fmt.Errorf("type %q cannot be indexed", t.Raw)
	}
}

func primitive(p ir.Primitive, raw any) (ir.IRValue, error) {
	switch p {
	case ir.PrimString:
		if s, ok := raw.(string); ok {
			return ir.IRString(s), nil
		}
	case ir.PrimInt:
		switch v := raw.(type) {
		case int:
			return ir.IRInt(v), nil
		case int64:
			return ir.IRInt(v), nil
		case uint64:
			return ir.IRInt(int64(v)), nil
		case float64:
			if v == float64(int64(v)) {
				return ir.IRInt(int64(v)), nil
			}
		}
	case ir.PrimFloat:
		switch v := raw.(type) {
		case float64:
			return ir.IRFloat(v), nil
		case int:
			return ir.IRFloat(float64(v)), nil
		case int64:
			return ir.IRFloat(float64(v)), nil
		}
	case ir.PrimBool:
		if b, ok := raw.(bool); ok {
			return ir.IRBool(b), nil
		}
	case ir.PrimTime:
		switch v := raw.(type) {
		case time.Time:
			return ir.IRTime(v.UTC()), nil
		case string:
			t, err := parseTime(v)
			if err != nil {
				return nil, err
			}
			return ir.IRTime(t), nil
		}
	}
	return nil, fmt.Errorf("expected %s, got %T", p, raw)
}

// untyped converts a value whose type is not known from the model.
func untyped(raw any) (ir.IRValue, error) {
	switch v := raw.(type) {
	case nil:
		return ir.IRNull{}, nil
	case string:
		return ir.IRString(v), nil
	case int:
		return ir.IRInt(v), nil
	case int64:
		return ir.IRInt(v), nil
	case float64:
		return ir.IRFloat(v), nil
	case bool:
		return ir.IRBool(v), nil
	case time.Time:
		return ir.IRTime(v.UTC()), nil
	case []any:
		list := make(ir.IRList, len(v))
		for i, item := range v {
			iv, err := untyped(item)
			if err != nil {
				return nil, err
			}
			list[i] = iv
		}
		return list, nil
	default:
		return nil, fmt.Errorf("unsupported value %T", raw)
	}
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q", s)
}

func variableName(raw any) (string, bool) {
	m, ok := raw.(map[string]any)
	if !ok || len(m) != 1 {
		return "", false
	}
	name, ok := m[varKey].(string)
	return name, ok
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Query converts a query spec.
//
// Variable values take the type of the operand they are bound to; a
// variable that is never referenced keeps its YAML type.
func (d *Decoder) Query(spec QuerySpec) (querysql.Query, error) {
	if _, ok := d.model.Entity(spec.Type); !ok && !d.isSupertype(spec.Type) {
		return querysql.Query{}, fmt.Errorf("unknown result type %q", spec.Type)
	}
	q := querysql.Query{
		ResultType: spec.Type,
		Offset:     spec.Offset,
		Limit:      spec.Limit,
		CountOnly:  spec.Count,
	}

	pd := &predicateDecoder{Decoder: d, vars: make(map[string]ir.TypeRef)}
	if len(spec.Where) > 0 {
		p, err := pd.predicate(spec.Where)
		if err != nil {
			return querysql.Query{}, fmt.Errorf("where: %w", err)
		}
		q.Where = p
	}
	for i, o := range spec.OrderBy {
		path, err := d.path(o.Path)
		if err != nil {
			return querysql.Query{}, fmt.Errorf("order_by[%d]: %w", i, err)
		}
		q.OrderBy = append(q.OrderBy, queryir.OrderBy{Path: path, Descending: o.Desc})
	}

	if len(spec.Variables) > 0 {
		q.Variables = make(map[string]ir.IRValue, len(spec.Variables))
		for _, name := range sortedKeys(spec.Variables) {
			raw := spec.Variables[name]
			var (
				v   ir.IRValue
				err error
			)
			if t, ok := pd.vars[name]; ok {
				v, err = d.value(t, raw)
			} else {
				v, err = untyped(raw)
			}
			if err != nil {
				return querysql.Query{}, fmt.Errorf("variable %q: %w", name, err)
			}
			q.Variables[name] = v
		}
	}
	return q, nil
}

func (d *Decoder) isSupertype(name string) bool {
	for _, n := range d.model.TypeNames() {
		if n == name {
			return true
		}
	}
	return false
}

func (d *Decoder) path(s string) (queryir.Path, error) {
	return queryir.ParsePath(s, func(q ir.QualifiedName) (ir.MemberKind, bool) {
		m, ok := d.members[q]
		return m.kind, ok
	})
}

// operandType is the type of values compared at path: the property type,
// or a string identity for the empty path and associations.
func (d *Decoder) operandType(path queryir.Path) ir.TypeRef {
	last, ok := path.Last()
	if !ok || last.Kind != ir.MemberProperty {
		return ir.PrimitiveType(ir.PrimString)
	}
	return d.members[last.QName].typ
}

type predicateDecoder struct {
	*Decoder
	vars map[string]ir.TypeRef
}

func (pd *predicateDecoder) predicate(raw any) (queryir.Predicate, error) {
	m, ok := raw.(map[string]any)
	if !ok || len(m) != 1 {
		return nil, fmt.Errorf("predicate must be a single-key mapping, got %v", raw)
	}
	var (
		name string
		body any
	)
	for name, body = range m {
	}

	kind, ok := queryir.ParseKind(name)
	if !ok {
		return nil, fmt.Errorf("unknown predicate %q", name)
	}

	switch kind {
	case queryir.KindAnd, queryir.KindOr:
		items, ok := body.([]any)
		if !ok {
			return nil, fmt.Errorf("%s: expected a list of predicates", name)
		}
		ops := make([]queryir.Predicate, len(items))
		for i, item := range items {
			p, err := pd.predicate(item)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", name, i, err)
			}
			ops[i] = p
		}
		if kind == queryir.KindAnd {
			return queryir.AllOf(ops...), nil
		}
		return queryir.AnyOf(ops...), nil

	case queryir.KindNot:
		p, err := pd.predicate(body)
		if err != nil {
			return nil, fmt.Errorf("not: %w", err)
		}
		return queryir.Negate(p), nil
	}

	args, ok := body.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected a mapping", name)
	}
	pathStr, _ := args["path"].(string)
	path, err := pd.path(pathStr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	switch kind {
	case queryir.KindPropertyNull, queryir.KindAssociationNull:
		return queryir.IsNull{Path: path}, nil
	case queryir.KindPropertyNotNull, queryir.KindAssociationNotNull:
		return queryir.IsNotNull{Path: path}, nil

	case queryir.KindMatches:
		pattern, ok := args["pattern"].(string)
		if !ok {
			return nil, fmt.Errorf("matches: pattern must be a string")
		}
		return queryir.Matches{Path: path, Pattern: pattern}, nil

	case queryir.KindManyAssociationContains:
		v, err := pd.operand(ir.PrimitiveType(ir.PrimString), args["identity"])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return queryir.ManyAssociationContains{Path: path, Identity: v}, nil

	case queryir.KindContains:
		v, err := pd.operand(pd.operandType(path).Final(), args["value"])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return queryir.Contains{Path: path, Value: v}, nil

	case queryir.KindContainsAll:
		items, ok := args["values"].([]any)
		if !ok {
			return nil, fmt.Errorf("%s: values must be a list", name)
		}
		elem := pd.operandType(path).Final()
		values := make([]ir.IRValue, len(items))
		for i, item := range items {
			v, err := pd.operand(elem, item)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", name, i, err)
			}
			values[i] = v
		}
		return queryir.ContainsAll{Path: path, Values: values}, nil
	}

	v, err := pd.operand(pd.operandType(path), args["value"])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return queryir.Compare{Op: kind, Path: path, Value: v}, nil
}

// operand converts a predicate operand and records the type of any
// variable it names.
func (pd *predicateDecoder) operand(t ir.TypeRef, raw any) (ir.IRValue, error) {
	if name, ok := variableName(raw); ok {
		pd.vars[name] = t
		return ir.IRVariable{Name: name}, nil
	}
	return pd.value(t, raw)
}
