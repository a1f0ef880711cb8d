package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/qindex/internal/ir"
)

// StoredQName is a qualified-name assignment read back from an existing schema.
type StoredQName struct {
	Table           string
	Kind            ir.MemberKind
	CollectionDepth int
	FinalType       string
}

// Assignments are the numeric and table-name assignments already persisted
// in the dictionary tables. Build honours them and only numbers new items.
type Assignments struct {
	QNames      map[ir.QualifiedName]StoredQName
	EntityTypes map[string]int64
	Classes     map[string]int64
	Enums       map[string]int64
}

// NewAssignments returns empty assignments.
func NewAssignments() *Assignments {
	return &Assignments{
		QNames:      make(map[ir.QualifiedName]StoredQName),
		EntityTypes: make(map[string]int64),
		Classes:     make(map[string]int64),
		Enums:       make(map[string]int64),
	}
}

// Delta lists what Build added on top of the existing assignments.
// The store persists these rows and creates the new value tables.
type Delta struct {
	NewQNames      []*QNameInfo
	NewEntityTypes []EntityTypeInfo
	NewClasses     []ClassInfo
	NewEnums       []EnumInfo

	// Skipped members have an unsupported type and are not indexed.
	Skipped []SkippedMember

	// Drift lists stored qualified names whose kind, depth or final type
	// no longer matches the model. Any drift requires a reindex.
	Drift []ir.QualifiedName
}

// Empty reports whether the delta adds nothing.
func (d *Delta) Empty() bool {
	return len(d.NewQNames) == 0 && len(d.NewEntityTypes) == 0 &&
		len(d.NewClasses) == 0 && len(d.NewEnums) == 0
}

// BuildOptions configure Build.
type BuildOptions struct {
	SchemaName string
	Dialect    Dialect
	AppVersion string

	// Existing assignments; nil for a fresh schema.
	Existing *Assignments
}

// Build walks the model and produces an immutable registry snapshot.
//
// Entity types are visited sorted by name, members in declaration order.
// Non-queryable members are skipped. Composite-typed properties recurse
// into the composite's properties under the composite's own qualified
// names; enum types register every constant. Members with unsupported
// types are reported in Delta.Skipped.
func Build(model ir.Model, opts BuildOptions) (*Registry, *Delta, error) {
	if err := ValidateSchemaName(opts.SchemaName); err != nil {
		return nil, nil, err
	}
	if opts.Dialect == nil {
		opts.Dialect = SQLite{}
	}
	existing := opts.Existing
	if existing == nil {
		existing = NewAssignments()
	}

	b := &builder{
		model:    model,
		existing: existing,
		delta:    &Delta{},
		reg: &Registry{
			schemaName: opts.SchemaName,
			dialect:    opts.Dialect,
			appVersion: opts.AppVersion,
			model:      model,
			entities:   make(map[string]*ir.EntityDescriptor),
			composites: make(map[string]*ir.CompositeDescriptor),
			qnames:     make(map[ir.QualifiedName]*QNameInfo),
			skipped:    make(map[ir.QualifiedName]string),
			typeIDs:    make(map[string]int64),
			closures:   make(map[string][]string),
			assignable: make(map[string][]int64),
			classIDs:   make(map[string]int64),
			enumIDs:    make(map[string]int64),
		},
		visitedComposites: make(map[string]bool),
	}
	b.nextTable = maxTableNumber(existing.QNames)
	b.nextTypeID = maxID(existing.EntityTypes)
	b.nextClassID = maxID(existing.Classes)
	b.nextEnumID = maxID(existing.Enums)

	if err := b.walk(); err != nil {
		return nil, nil, err
	}
	return b.reg, b.delta, nil
}

type builder struct {
	model    ir.Model
	existing *Assignments
	reg      *Registry
	delta    *Delta

	nextTable   int
	nextTypeID  int64
	nextClassID int64
	nextEnumID  int64

	visitedComposites map[string]bool
}

func (b *builder) walk() error {
	m := &b.reg.model
	for i := range m.Entities {
		e := &m.Entities[i]
		if e.Name == "" {
			return newError(ErrCodeInvalidModel, "", "entity type with empty name")
		}
		if _, dup := b.reg.entities[e.Name]; dup {
			return newError(ErrCodeInvalidModel, e.Name, "entity type declared twice")
		}
		b.reg.entities[e.Name] = e
	}
	for i := range m.Composites {
		c := &m.Composites[i]
		if _, dup := b.reg.composites[c.Name]; dup {
			return newError(ErrCodeInvalidModel, c.Name, "composite type declared twice")
		}
		if _, clash := b.reg.entities[c.Name]; clash {
			return newError(ErrCodeInvalidModel, c.Name, "composite type shares a name with an entity type")
		}
		b.reg.composites[c.Name] = c
	}

	names := make([]string, 0, len(b.reg.entities))
	for n := range b.reg.entities {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, name := range names {
		closure := m.TypeClosure(name)
		b.reg.closures[name] = closure
		for _, t := range closure {
			b.typeID(t)
		}
	}
	for _, t := range m.TypeNames() {
		if _, ok := b.reg.closures[t]; !ok {
			b.reg.closures[t] = []string{t}
		}
	}
	b.buildAssignable(names)

	for _, name := range names {
		e := b.reg.entities[name]
		for _, p := range e.Properties {
			if err := b.property(p); err != nil {
				return err
			}
		}
		for _, a := range e.Associations {
			if err := b.association(a, ir.MemberAssociation); err != nil {
				return err
			}
		}
		for _, a := range e.ManyAssociations {
			if err := b.association(a, ir.MemberManyAssociation); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *builder) buildAssignable(entityNames []string) {
	subtypes := make(map[string]map[string]bool)
	for _, name := range entityNames {
		for _, t := range b.reg.closures[name] {
			if subtypes[t] == nil {
				subtypes[t] = make(map[string]bool)
			}
			subtypes[t][name] = true
		}
	}
	for t := range b.reg.typeIDs {
		ids := []int64{b.reg.typeIDs[t]}
		for sub := range subtypes[t] {
			if sub != t {
				ids = append(ids, b.reg.typeIDs[sub])
			}
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		b.reg.assignable[t] = ids
	}
}

func (b *builder) typeID(name string) int64 {
	if id, ok := b.reg.typeIDs[name]; ok {
		return id
	}
	id, ok := b.existing.EntityTypes[name]
	if !ok {
		b.nextTypeID++
		id = b.nextTypeID
		b.delta.NewEntityTypes = append(b.delta.NewEntityTypes, EntityTypeInfo{Name: name, ID: id})
	}
	b.reg.typeIDs[name] = id
	return id
}

func (b *builder) property(p ir.PropertyDescriptor) error {
	if !p.Queryable {
		return nil
	}
	if _, done := b.reg.qnames[p.QName]; done {
		return nil
	}
	if _, done := b.reg.skipped[p.QName]; done {
		return nil
	}

	final := p.Type.Final()
	switch final.Kind {
	case ir.TypePrimitive:
	case ir.TypeEnum:
		if err := b.enum(final.Name); err != nil {
			return err
		}
	case ir.TypeComposite:
		if _, ok := b.reg.composites[final.Name]; !ok {
			return newError(ErrCodeInvalidModel, p.QName.String(), "composite type %q is not declared", final.Name)
		}
	default:
		b.skip(p.QName, fmt.Sprintf("unsupported type %q", p.Type.Raw))
		return nil
	}

	b.register(&QNameInfo{
		QName:              p.QName,
		Kind:               ir.MemberProperty,
		CollectionDepth:    p.Type.Depth(),
		FinalType:          final,
		FinalTypePrimitive: final.IsPrimitiveLike(),
	})

	if final.Kind == ir.TypeComposite {
		return b.composite(final.Name)
	}
	return nil
}

func (b *builder) composite(name string) error {
	if b.visitedComposites[name] {
		return nil
	}
	b.visitedComposites[name] = true

	if _, ok := b.reg.classIDs[name]; !ok {
		id, ok := b.existing.Classes[name]
		if !ok {
			b.nextClassID++
			id = b.nextClassID
			b.delta.NewClasses = append(b.delta.NewClasses, ClassInfo{Name: name, ID: id})
		}
		b.reg.classIDs[name] = id
	}

	c := b.reg.composites[name]
	for _, p := range c.Properties {
		if err := b.property(p); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) enum(name string) error {
	en, ok := b.model.Enum(name)
	if !ok {
		return newError(ErrCodeInvalidModel, name, "enum type is not declared")
	}
	for _, c := range en.Constants {
		key := ir.IREnum{Type: name, Constant: c}.Key()
		if _, done := b.reg.enumIDs[key]; done {
			continue
		}
		id, ok := b.existing.Enums[key]
		if !ok {
			b.nextEnumID++
			id = b.nextEnumID
			b.delta.NewEnums = append(b.delta.NewEnums, EnumInfo{Key: key, ID: id})
		}
		b.reg.enumIDs[key] = id
	}
	return nil
}

func (b *builder) association(a ir.AssociationDescriptor, kind ir.MemberKind) error {
	if !a.Queryable {
		return nil
	}
	if _, done := b.reg.qnames[a.QName]; done {
		return nil
	}
	if _, ok := b.reg.typeIDs[a.TargetType]; !ok {
		return newError(ErrCodeInvalidModel, a.QName.String(), "association target %q is not an entity type", a.TargetType)
	}
	b.register(&QNameInfo{
		QName:      a.QName,
		Kind:       kind,
		TargetType: a.TargetType,
	})
	return nil
}

func (b *builder) register(info *QNameInfo) {
	if stored, ok := b.existing.QNames[info.QName]; ok {
		info.Table = stored.Table
		if stored.Kind != info.Kind || stored.CollectionDepth != info.CollectionDepth ||
			stored.FinalType != finalTypeName(info) {
			b.delta.Drift = append(b.delta.Drift, info.QName)
		}
	} else {
		b.nextTable++
		info.Table = QNameTablePrefix + strconv.Itoa(b.nextTable)
		b.delta.NewQNames = append(b.delta.NewQNames, info)
	}
	b.reg.qnames[info.QName] = info
}

func (b *builder) skip(q ir.QualifiedName, reason string) {
	b.reg.skipped[q] = reason
	b.delta.Skipped = append(b.delta.Skipped, SkippedMember{QName: q, Reason: reason})
}

// FinalTypeName is the persisted spelling of a QNameInfo's final type.
func FinalTypeName(info *QNameInfo) string { return finalTypeName(info) }

func finalTypeName(info *QNameInfo) string {
	if info.Kind != ir.MemberProperty {
		return info.TargetType
	}
	return info.FinalType.String()
}

func tableNumber(table string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(table, QNameTablePrefix))
	if err != nil {
		return 0
	}
	return n
}

func maxTableNumber(stored map[ir.QualifiedName]StoredQName) int {
	hi := 0
	for _, s := range stored {
		if n := tableNumber(s.Table); n > hi {
			hi = n
		}
	}
	return hi
}

func maxID(ids map[string]int64) int64 {
	var hi int64
	for _, id := range ids {
		if id > hi {
			hi = id
		}
	}
	return hi
}
