package schema

import (
	"regexp"
	"sort"

	"github.com/roach88/qindex/internal/ir"
)

// Base table names. Dialect.Table scopes them by schema name.
const (
	TableEntities        = "entities"
	TableEntityTypesJoin = "entity_types_join"
	TableAllQNames       = "all_qnames"
	TableQNames          = "qnames"
	TableEntityTypes     = "entity_types"
	TableUsedClasses     = "used_classes"
	TableEnumLookup      = "enum_lookup"
	TableAppVersion      = "app_version"
)

// Column names shared by the generated tables.
const (
	ColEntityPK       = "entity_pk"
	ColEntityTypeID   = "entity_type_id"
	ColEntityTypeName = "entity_type_name"
	ColIdentity       = "entity_identity"
	ColModified       = "modified"
	ColEntityVersion  = "entity_version"
	ColAppVersion     = "application_version"
	ColLayoutVersion  = "layout_version"
	ColQNameID        = "qname_id"
	ColParentQName    = "parent_qname"
	ColCollectionPath = "collection_path"
	ColValue          = "qname_value"
	ColTargetPK       = "target_pk"
	ColIndex          = "qname_index"
)

// Collection path markers.
const (
	// CollectionRoot is the path of the row standing for the collection itself.
	CollectionRoot = "*"

	// CollectionSeparator separates path segments.
	CollectionSeparator = "."

	// CollectionItemPattern matches the path of every item below a
	// collection root, regardless of nesting depth.
	CollectionItemPattern = `^\*\.`
)

// QNameTablePrefix prefixes per-qname value table names.
const QNameTablePrefix = "qname_"

var schemaNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// ValidateSchemaName checks the schema name against the identifier grammar:
// a letter followed by letters, digits or underscores.
func ValidateSchemaName(name string) error {
	if !schemaNamePattern.MatchString(name) {
		return newError(ErrCodeInvalidSchemaName, name,
			"schema name must start with a letter and contain only letters, digits and underscores")
	}
	return nil
}

// QNameInfo describes how one qualified name is stored.
type QNameInfo struct {
	QName ir.QualifiedName

	// Table is the unqualified value table name ("qname_<n>").
	Table string

	Kind ir.MemberKind

	// CollectionDepth counts the collection levels around FinalType.
	// Zero for associations and scalar properties.
	CollectionDepth int

	// FinalType is the innermost non-collection type (properties only).
	FinalType ir.TypeRef

	// FinalTypePrimitive is true when values are stored directly in the
	// value column (primitives and enums).
	FinalTypePrimitive bool

	// TargetType is the associated entity type (associations only).
	TargetType string
}

// ValueColumnType returns the logical type of the value column.
func (q *QNameInfo) ValueColumnType() ColumnType {
	if q.Kind != ir.MemberProperty {
		return ColInt
	}
	return ColumnTypeOf(q.FinalType)
}

// ColumnTypeOf maps a final (non-collection) type to its column type.
// Enums and composites are stored as dictionary ids.
func ColumnTypeOf(t ir.TypeRef) ColumnType {
	if t.Kind != ir.TypePrimitive {
		return ColInt
	}
	switch t.Primitive {
	case ir.PrimInt:
		return ColInt
	case ir.PrimFloat:
		return ColFloat
	case ir.PrimBool:
		return ColBool
	case ir.PrimTime:
		return ColTime
	default:
		return ColText
	}
}

// EntityTypeInfo maps an entity type (or supertype) to its numeric id.
type EntityTypeInfo struct {
	Name string
	ID   int64
}

// ClassInfo maps a value-composite class to its numeric id.
type ClassInfo struct {
	Name string
	ID   int64
}

// EnumInfo maps an enum constant key ("Type.CONSTANT") to its numeric id.
type EnumInfo struct {
	Key string
	ID  int64
}

// SkippedMember records a member excluded from indexing.
type SkippedMember struct {
	QName  ir.QualifiedName
	Reason string
}

// Registry is the immutable metadata snapshot shared by the indexer and
// the query compiler. Safe for concurrent use once built.
type Registry struct {
	schemaName string
	dialect    Dialect
	appVersion string

	model      ir.Model
	entities   map[string]*ir.EntityDescriptor
	composites map[string]*ir.CompositeDescriptor

	qnames     map[ir.QualifiedName]*QNameInfo
	skipped    map[ir.QualifiedName]string
	typeIDs    map[string]int64
	closures   map[string][]string
	assignable map[string][]int64
	classIDs   map[string]int64
	enumIDs    map[string]int64
}

// SchemaName returns the configured schema name.
func (r *Registry) SchemaName() string { return r.schemaName }

// Dialect returns the SQL dialect the registry was built for.
func (r *Registry) Dialect() Dialect { return r.dialect }

// ApplicationVersion returns the application version the snapshot was built with.
func (r *Registry) ApplicationVersion() string { return r.appVersion }

// Model returns the type model the registry was built from.
func (r *Registry) Model() *ir.Model { return &r.model }

// Table returns the quoted, schema-scoped name of a base or value table.
func (r *Registry) Table(name string) string {
	return r.dialect.Table(r.schemaName, name)
}

// Lookup returns the QNameInfo for q.
func (r *Registry) Lookup(q ir.QualifiedName) (*QNameInfo, bool) {
	info, ok := r.qnames[q]
	return info, ok
}

// QNameInfo returns the QNameInfo for q or a consistency error.
func (r *Registry) QNameInfo(q ir.QualifiedName) (*QNameInfo, error) {
	if info, ok := r.qnames[q]; ok {
		return info, nil
	}
	return nil, NewUnknownQNameError(q.String())
}

// IsSkipped reports whether q was excluded from indexing as unsupported.
func (r *Registry) IsSkipped(q ir.QualifiedName) bool {
	_, ok := r.skipped[q]
	return ok
}

// QNames returns all QNameInfos ordered by table name.
func (r *Registry) QNames() []*QNameInfo {
	out := make([]*QNameInfo, 0, len(r.qnames))
	for _, info := range r.qnames {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		return tableNumber(out[i].Table) < tableNumber(out[j].Table)
	})
	return out
}

// Entity returns the descriptor of an entity type.
func (r *Registry) Entity(name string) (*ir.EntityDescriptor, bool) {
	e, ok := r.entities[name]
	return e, ok
}

// Composite returns the descriptor of a value-composite type.
func (r *Registry) Composite(name string) (*ir.CompositeDescriptor, bool) {
	c, ok := r.composites[name]
	return c, ok
}

// EntityTypeID returns the numeric id of an entity type or supertype.
func (r *Registry) EntityTypeID(name string) (int64, error) {
	if id, ok := r.typeIDs[name]; ok {
		return id, nil
	}
	return 0, NewUnknownEntityTypeError(name)
}

// TypeClosure returns the entity type and all its supertypes.
func (r *Registry) TypeClosure(name string) ([]string, error) {
	if c, ok := r.closures[name]; ok {
		return c, nil
	}
	return nil, NewUnknownEntityTypeError(name)
}

// AssignableTypeIDs returns the ids of every type assignable to name
// (name itself and all of its subtypes), ascending.
func (r *Registry) AssignableTypeIDs(name string) ([]int64, error) {
	if ids, ok := r.assignable[name]; ok {
		return ids, nil
	}
	return nil, NewUnknownEntityTypeError(name)
}

// EntityTypes returns all entity type infos ordered by id.
func (r *Registry) EntityTypes() []EntityTypeInfo {
	out := make([]EntityTypeInfo, 0, len(r.typeIDs))
	for n, id := range r.typeIDs {
		out = append(out, EntityTypeInfo{Name: n, ID: id})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ClassID returns the numeric id of a value-composite class.
func (r *Registry) ClassID(name string) (int64, error) {
	if id, ok := r.classIDs[name]; ok {
		return id, nil
	}
	return 0, newError(ErrCodeUnknownClass, name, "composite class is not registered")
}

// EnumID returns the numeric id of an enum constant.
func (r *Registry) EnumID(e ir.IREnum) (int64, error) {
	if id, ok := r.enumIDs[e.Key()]; ok {
		return id, nil
	}
	return 0, newError(ErrCodeUnknownEnum, e.Key(), "enum constant is not registered")
}
