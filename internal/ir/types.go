package ir

import (
	"fmt"
	"sort"
	"strings"
)

// QualifiedName identifies a property, association or many-association,
// scoped by the type that declares it.
//
// Textual form: "Type:name" (e.g. "Person:name").
type QualifiedName struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// QName is shorthand for constructing a QualifiedName.
func QName(typeName, member string) QualifiedName {
	return QualifiedName{Type: typeName, Name: member}
}

// String returns the "Type:name" form.
func (q QualifiedName) String() string {
	return q.Type + ":" + q.Name
}

// IsZero reports whether q is the zero value.
func (q QualifiedName) IsZero() bool {
	return q.Type == "" && q.Name == ""
}

// ParseQualifiedName parses the "Type:name" form.
func ParseQualifiedName(s string) (QualifiedName, error) {
	typeName, member, ok := strings.Cut(s, ":")
	if !ok || typeName == "" || member == "" {
		return QualifiedName{}, fmt.Errorf("invalid qualified name %q: want Type:name", s)
	}
	return QualifiedName{Type: typeName, Name: member}, nil
}

// MemberKind classifies a qualified name.
type MemberKind int

const (
	MemberProperty MemberKind = iota
	MemberAssociation
	MemberManyAssociation
)

// String returns the persisted name of the member kind.
func (k MemberKind) String() string {
	switch k {
	case MemberProperty:
		return "PROPERTY"
	case MemberAssociation:
		return "ASSOCIATION"
	case MemberManyAssociation:
		return "MANY_ASSOCIATION"
	default:
		return fmt.Sprintf("MemberKind(%d)", int(k))
	}
}

// ParseMemberKind is the inverse of MemberKind.String.
func ParseMemberKind(s string) (MemberKind, error) {
	switch s {
	case "PROPERTY":
		return MemberProperty, nil
	case "ASSOCIATION":
		return MemberAssociation, nil
	case "MANY_ASSOCIATION":
		return MemberManyAssociation, nil
	default:
		return 0, fmt.Errorf("unknown member kind %q", s)
	}
}

// TypeKind classifies a property value type.
type TypeKind int

const (
	// TypeUnsupported marks a type the mapping layer cannot represent.
	// Properties of this type are excluded from indexing.
	TypeUnsupported TypeKind = iota
	TypePrimitive
	TypeEnum
	TypeComposite
	TypeCollection
)

// Primitive enumerates the primitive value types.
type Primitive int

const (
	PrimString Primitive = iota
	PrimInt
	PrimFloat
	PrimBool
	PrimTime
)

var primitiveNames = map[Primitive]string{
	PrimString: "string",
	PrimInt:    "int",
	PrimFloat:  "float",
	PrimBool:   "bool",
	PrimTime:   "time",
}

// String returns the model spelling of the primitive.
func (p Primitive) String() string {
	if name, ok := primitiveNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Primitive(%d)", int(p))
}

// LookupPrimitive returns the primitive for a model spelling.
func LookupPrimitive(name string) (Primitive, bool) {
	for p, n := range primitiveNames {
		if n == name {
			return p, true
		}
	}
	return 0, false
}

// TypeRef describes the declared type of a property.
//
// Collections nest through Elem; Name carries the enum or composite type
// name; Raw keeps the original spelling for diagnostics.
type TypeRef struct {
	Kind      TypeKind  `json:"kind"`
	Primitive Primitive `json:"primitive,omitempty"`
	Name      string    `json:"name,omitempty"`
	Elem      *TypeRef  `json:"elem,omitempty"`
	Raw       string    `json:"raw,omitempty"`
}

// PrimitiveType returns a TypeRef for a primitive.
func PrimitiveType(p Primitive) TypeRef {
	return TypeRef{Kind: TypePrimitive, Primitive: p, Raw: p.String()}
}

// EnumType returns a TypeRef for an enum type.
func EnumType(name string) TypeRef {
	return TypeRef{Kind: TypeEnum, Name: name, Raw: name}
}

// CompositeType returns a TypeRef for a value-composite type.
func CompositeType(name string) TypeRef {
	return TypeRef{Kind: TypeComposite, Name: name, Raw: name}
}

// CollectionOf returns a TypeRef for a collection of elem.
func CollectionOf(elem TypeRef) TypeRef {
	e := elem
	return TypeRef{Kind: TypeCollection, Elem: &e, Raw: "list<" + elem.Raw + ">"}
}

// Unsupported returns a TypeRef for a type that cannot be indexed.
func Unsupported(raw string) TypeRef {
	return TypeRef{Kind: TypeUnsupported, Raw: raw}
}

// Depth returns the number of collection levels wrapping the final type.
func (t TypeRef) Depth() int {
	depth := 0
	cur := t
	for cur.Kind == TypeCollection && cur.Elem != nil {
		depth++
		cur = *cur.Elem
	}
	return depth
}

// Final returns the innermost non-collection type.
func (t TypeRef) Final() TypeRef {
	cur := t
	for cur.Kind == TypeCollection && cur.Elem != nil {
		cur = *cur.Elem
	}
	return cur
}

// IsPrimitiveLike reports whether values of t are stored directly in a
// value column (primitives and enums) rather than as composite rows.
func (t TypeRef) IsPrimitiveLike() bool {
	return t.Kind == TypePrimitive || t.Kind == TypeEnum
}

// String returns the model spelling of the type.
func (t TypeRef) String() string {
	switch t.Kind {
	case TypePrimitive:
		return t.Primitive.String()
	case TypeEnum, TypeComposite:
		return t.Name
	case TypeCollection:
		if t.Elem == nil {
			return "list<?>"
		}
		return "list<" + t.Elem.String() + ">"
	default:
		return t.Raw
	}
}

// PropertyDescriptor describes one declared property.
type PropertyDescriptor struct {
	QName     QualifiedName `json:"qname"`
	Type      TypeRef       `json:"type"`
	Queryable bool          `json:"queryable"`
}

// AssociationDescriptor describes an association or many-association.
type AssociationDescriptor struct {
	QName      QualifiedName `json:"qname"`
	TargetType string        `json:"target_type"`
	Queryable  bool          `json:"queryable"`
}

// EntityDescriptor describes an entity type with all members it exposes,
// inherited ones included. Inherited members keep the qualified name of
// the type that declares them.
type EntityDescriptor struct {
	Name             string                  `json:"name"`
	Supertypes       []string                `json:"supertypes,omitempty"`
	Properties       []PropertyDescriptor    `json:"properties,omitempty"`
	Associations     []AssociationDescriptor `json:"associations,omitempty"`
	ManyAssociations []AssociationDescriptor `json:"many_associations,omitempty"`
}

// CompositeDescriptor describes a value-composite type.
type CompositeDescriptor struct {
	Name       string               `json:"name"`
	Properties []PropertyDescriptor `json:"properties,omitempty"`
}

// EnumDescriptor describes an enum type and its constants in declaration order.
type EnumDescriptor struct {
	Name      string   `json:"name"`
	Constants []string `json:"constants"`
}

// Model is the complete, pre-resolved type graph of the queryable types.
type Model struct {
	Entities   []EntityDescriptor    `json:"entities"`
	Composites []CompositeDescriptor `json:"composites,omitempty"`
	Enums      []EnumDescriptor      `json:"enums,omitempty"`
}

// Entity returns the descriptor of the named entity type.
func (m *Model) Entity(name string) (*EntityDescriptor, bool) {
	for i := range m.Entities {
		if m.Entities[i].Name == name {
			return &m.Entities[i], true
		}
	}
	return nil, false
}

// Composite returns the descriptor of the named composite type.
func (m *Model) Composite(name string) (*CompositeDescriptor, bool) {
	for i := range m.Composites {
		if m.Composites[i].Name == name {
			return &m.Composites[i], true
		}
	}
	return nil, false
}

// Enum returns the descriptor of the named enum type.
func (m *Model) Enum(name string) (*EnumDescriptor, bool) {
	for i := range m.Enums {
		if m.Enums[i].Name == name {
			return &m.Enums[i], true
		}
	}
	return nil, false
}

// TypeNames returns every entity type name and every supertype name that
// appears in the model, sorted.
func (m *Model) TypeNames() []string {
	seen := make(map[string]bool)
	for _, e := range m.Entities {
		seen[e.Name] = true
		for _, s := range e.Supertypes {
			seen[s] = true
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// TypeClosure returns the entity type name followed by all of its
// supertypes, transitively, without duplicates. Supertypes that are
// themselves entities contribute their own supertypes.
func (m *Model) TypeClosure(name string) []string {
	var out []string
	seen := make(map[string]bool)
	var walk func(n string)
	walk = func(n string) {
		if seen[n] {
			return
		}
		seen[n] = true
		out = append(out, n)
		if e, ok := m.Entity(n); ok {
			for _, s := range e.Supertypes {
				walk(s)
			}
		}
	}
	walk(name)
	return out
}
