package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/qindex/internal/ir"
)

// CompileModel parses a CUE value into an ir.Model.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The value holds up to four top-level structs:
//
//	interfaces: Named: properties: name: "string"
//
//	entities: Person: {
//		extends: ["Named"]
//		properties: {
//			age:    "int"
//			nums:   "list<int>"
//			secret: "string"
//		}
//		nonQueryable: ["secret"]
//		associations: employer: "Company"
//		manyAssociations: friends: "Person"
//	}
//
//	composites: Address: properties: street: "string"
//	enums: Color: ["RED", "GREEN", "BLUE"]
//
// Member types are strings (string, int, float, bool, time, list<T>,
// set<T>, or an enum or composite name) or the CUE kinds string, int,
// float, number and bool. Any other spelling yields an unsupported type,
// which the schema skips.
//
// Entities expose inherited members first, in extends order, followed by
// their own. Interfaces carry members but are not entities themselves.
func CompileModel(v cue.Value) (*ir.Model, error) {
	if err := v.Validate(); err != nil {
		return nil, formatCUEError(err)
	}

	c := &modelCompiler{
		enums:      make(map[string]bool),
		composites: make(map[string]bool),
		decls:      make(map[string]*typeDecl),
	}
	model := &ir.Model{}

	// Enums and composite names first so member types can resolve.
	enums, err := parseEnums(v)
	if err != nil {
		return nil, err
	}
	for _, e := range enums {
		c.enums[e.Name] = true
	}
	model.Enums = enums

	compVal := v.LookupPath(cue.ParsePath("composites"))
	if err := eachField(compVal, func(name string, _ cue.Value) error {
		c.composites[name] = true
		return nil
	}); err != nil {
		return nil, err
	}
	if err := eachField(compVal, func(name string, cv cue.Value) error {
		decl, err := c.parseDecl(name, cv, false)
		if err != nil {
			return err
		}
		model.Composites = append(model.Composites, ir.CompositeDescriptor{
			Name:       name,
			Properties: decl.properties,
		})
		return nil
	}); err != nil {
		return nil, err
	}

	for _, section := range []struct {
		path   string
		entity bool
	}{{"interfaces", false}, {"entities", true}} {
		if err := eachField(v.LookupPath(cue.ParsePath(section.path)), func(name string, tv cue.Value) error {
			if _, dup := c.decls[name]; dup {
				return &CompileError{
					Field:   section.path + "." + name,
					Message: fmt.Sprintf("type %q declared twice", name),
					Pos:     tv.Pos(),
				}
			}
			decl, err := c.parseDecl(name, tv, true)
			if err != nil {
				return err
			}
			decl.entity = section.entity
			c.decls[name] = decl
			c.order = append(c.order, name)
			return nil
		}); err != nil {
			return nil, err
		}
	}

	if cycles := inheritanceCycles(c.decls); len(cycles) > 0 {
		return nil, &CompileError{
			Field:   "extends",
			Message: cycles[0].Message,
		}
	}

	for _, name := range c.order {
		decl := c.decls[name]
		if !decl.entity {
			continue
		}
		entity := ir.EntityDescriptor{Name: name, Supertypes: decl.extends}
		if err := c.collect(&entity, name, make(map[string]bool), make(map[ir.QualifiedName]bool)); err != nil {
			return nil, err
		}
		model.Entities = append(model.Entities, entity)
	}
	return model, nil
}

// typeDecl is one entity, interface or composite as declared.
type typeDecl struct {
	entity       bool
	extends      []string
	properties   []ir.PropertyDescriptor
	associations []ir.AssociationDescriptor
	many         []ir.AssociationDescriptor
	pos          token.Pos
}

type modelCompiler struct {
	enums      map[string]bool
	composites map[string]bool
	decls      map[string]*typeDecl
	order      []string
}

// collect appends the members of name and its supertypes to e, inherited
// first. A member reached twice through diamond inheritance is kept once.
func (c *modelCompiler) collect(e *ir.EntityDescriptor, name string, visited map[string]bool, seen map[ir.QualifiedName]bool) error {
	if visited[name] {
		return nil
	}
	visited[name] = true
	decl, ok := c.decls[name]
	if !ok {
		return &CompileError{
			Field:   "entities." + e.Name + ".extends",
			Message: fmt.Sprintf("unknown supertype %q", name),
			Pos:     c.decls[e.Name].pos,
		}
	}
	for _, super := range decl.extends {
		if err := c.collect(e, super, visited, seen); err != nil {
			return err
		}
	}
	for _, p := range decl.properties {
		if !seen[p.QName] {
			seen[p.QName] = true
			e.Properties = append(e.Properties, p)
		}
	}
	for _, a := range decl.associations {
		if !seen[a.QName] {
			seen[a.QName] = true
			e.Associations = append(e.Associations, a)
		}
	}
	for _, a := range decl.many {
		if !seen[a.QName] {
			seen[a.QName] = true
			e.ManyAssociations = append(e.ManyAssociations, a)
		}
	}
	return nil
}

// parseDecl reads the members of one type. Composites only carry
// properties.
func (c *modelCompiler) parseDecl(name string, v cue.Value, withAssociations bool) (*typeDecl, error) {
	decl := &typeDecl{pos: v.Pos()}

	hidden := make(map[string]bool)
	nonQueryable, err := stringList(v.LookupPath(cue.ParsePath("nonQueryable")))
	if err != nil {
		return nil, err
	}
	for _, n := range nonQueryable {
		hidden[n] = true
	}

	if err := eachField(v.LookupPath(cue.ParsePath("properties")), func(member string, mv cue.Value) error {
		t, err := c.typeRef(mv)
		if err != nil {
			return err
		}
		decl.properties = append(decl.properties, ir.PropertyDescriptor{
			QName:     ir.QName(name, member),
			Type:      t,
			Queryable: !hidden[member],
		})
		return nil
	}); err != nil {
		return nil, err
	}

	if !withAssociations {
		return decl, nil
	}

	decl.extends, err = stringList(v.LookupPath(cue.ParsePath("extends")))
	if err != nil {
		return nil, err
	}
	for _, section := range []struct {
		path string
		dst  *[]ir.AssociationDescriptor
	}{{"associations", &decl.associations}, {"manyAssociations", &decl.many}} {
		if err := eachField(v.LookupPath(cue.ParsePath(section.path)), func(member string, av cue.Value) error {
			target, err := av.String()
			if err != nil {
				return formatCUEError(err)
			}
			*section.dst = append(*section.dst, ir.AssociationDescriptor{
				QName:      ir.QName(name, member),
				TargetType: target,
				Queryable:  !hidden[member],
			})
			return nil
		}); err != nil {
			return nil, err
		}
	}
	return decl, nil
}

// typeRef converts a member type to an ir.TypeRef.
func (c *modelCompiler) typeRef(v cue.Value) (ir.TypeRef, error) {
	if s, err := v.String(); err == nil {
		return c.parseType(strings.TrimSpace(s)), nil
	}
	switch v.IncompleteKind() {
	case cue.StringKind:
		return ir.PrimitiveType(ir.PrimString), nil
	case cue.IntKind:
		return ir.PrimitiveType(ir.PrimInt), nil
	case cue.FloatKind, cue.NumberKind:
		return ir.PrimitiveType(ir.PrimFloat), nil
	case cue.BoolKind:
		return ir.PrimitiveType(ir.PrimBool), nil
	default:
		return ir.TypeRef{}, &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func (c *modelCompiler) parseType(s string) ir.TypeRef {
	for _, prefix := range []string{"list<", "set<"} {
		if strings.HasPrefix(s, prefix) && strings.HasSuffix(s, ">") {
			inner := strings.TrimSpace(s[len(prefix) : len(s)-1])
			return ir.CollectionOf(c.parseType(inner))
		}
	}
	if p, ok := ir.LookupPrimitive(s); ok {
		return ir.PrimitiveType(p)
	}
	if c.enums[s] {
		return ir.EnumType(s)
	}
	if c.composites[s] {
		return ir.CompositeType(s)
	}
	return ir.Unsupported(s)
}

func parseEnums(v cue.Value) ([]ir.EnumDescriptor, error) {
	var enums []ir.EnumDescriptor
	err := eachField(v.LookupPath(cue.ParsePath("enums")), func(name string, ev cue.Value) error {
		constants, err := stringList(ev)
		if err != nil {
			return err
		}
		if len(constants) == 0 {
			return &CompileError{
				Field:   "enums." + name,
				Message: "enum needs at least one constant",
				Pos:     ev.Pos(),
			}
		}
		enums = append(enums, ir.EnumDescriptor{Name: name, Constants: constants})
		return nil
	})
	return enums, err
}

// eachField calls fn for every field of v in declaration order. A missing
// v has no fields.
func eachField(v cue.Value, fn func(label string, v cue.Value) error) error {
	if !v.Exists() {
		return nil
	}
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		if err := fn(iter.Label(), iter.Value()); err != nil {
			return err
		}
	}
	return nil
}

// stringList reads a list of strings. A missing v is empty.
func stringList(v cue.Value) ([]string, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
