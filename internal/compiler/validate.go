package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/qindex/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrEmptyName          = "E101" // type or member without a name
	ErrDuplicateType      = "E102" // entity, composite or enum declared twice
	ErrDuplicateMember    = "E103" // qualified name exposed twice by one type
	ErrUnknownTarget      = "E104" // association target is not a known type
	ErrUnknownTypeRef     = "E105" // enum or composite reference with no declaration
	ErrEnumNoConstants    = "E106" // enum without constants
	ErrDuplicateConstant  = "E107" // enum constant declared twice
	ErrInheritanceCycle   = "E108" // supertype chain loops
	ErrCollectionInvalid  = "E109" // collection without element type
	ErrMemberOwnerUnknown = "E110" // qualified name owned by an undeclared type
)

// ValidationError represents a model validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors is a non-empty list of validation errors.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// ValidateModel checks a model for problems the schema synthesizer would
// reject or silently mis-handle. Returns all errors found (does not
// fail-fast).
//
// Unsupported member types are not errors; the schema skips them.
func ValidateModel(m *ir.Model) []ValidationError {
	v := &modelValidator{model: m, known: make(map[string]bool), owners: make(map[string]bool)}
	for _, name := range m.TypeNames() {
		v.known[name] = true
		v.owners[name] = true
	}
	for _, c := range m.Composites {
		v.owners[c.Name] = true
	}

	v.enums()
	v.composites()
	v.entities()
	for _, c := range supertypeCycles(m) {
		v.add("entities", ErrInheritanceCycle, "%s", c.Message)
	}
	return v.errs
}

type modelValidator struct {
	model *ir.Model
	errs  []ValidationError

	// known holds entity and supertype names; owners adds composites.
	known  map[string]bool
	owners map[string]bool
}

func (v *modelValidator) add(field, code, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	})
}

func (v *modelValidator) enums() {
	seen := make(map[string]bool)
	for i, e := range v.model.Enums {
		field := fmt.Sprintf("enums[%d]", i)
		if e.Name == "" {
			v.add(field, ErrEmptyName, "enum without a name")
		}
		if seen[e.Name] {
			v.add(field, ErrDuplicateType, "duplicate enum %q", e.Name)
		}
		seen[e.Name] = true
		if len(e.Constants) == 0 {
			v.add(field, ErrEnumNoConstants, "enum %q has no constants", e.Name)
		}
		constants := make(map[string]bool)
		for _, c := range e.Constants {
			if constants[c] {
				v.add(field, ErrDuplicateConstant, "enum %q declares %q twice", e.Name, c)
			}
			constants[c] = true
		}
	}
}

func (v *modelValidator) composites() {
	seen := make(map[string]bool)
	for i, c := range v.model.Composites {
		field := fmt.Sprintf("composites[%d]", i)
		if c.Name == "" {
			v.add(field, ErrEmptyName, "composite without a name")
		}
		if seen[c.Name] {
			v.add(field, ErrDuplicateType, "duplicate composite %q", c.Name)
		}
		seen[c.Name] = true
		v.properties(field, c.Properties)
	}
}

func (v *modelValidator) entities() {
	seen := make(map[string]bool)
	for i, e := range v.model.Entities {
		field := fmt.Sprintf("entities[%d]", i)
		if e.Name == "" {
			v.add(field, ErrEmptyName, "entity without a name")
		}
		if seen[e.Name] {
			v.add(field, ErrDuplicateType, "duplicate entity %q", e.Name)
		}
		seen[e.Name] = true

		v.properties(field, e.Properties)
		members := make(map[ir.QualifiedName]bool)
		check := func(q ir.QualifiedName, where string) {
			if members[q] {
				v.add(where, ErrDuplicateMember, "%s exposed twice by %s", q, e.Name)
			}
			members[q] = true
		}
		for j, p := range e.Properties {
			check(p.QName, fmt.Sprintf("%s.properties[%d]", field, j))
		}
		for j, a := range e.Associations {
			where := fmt.Sprintf("%s.associations[%d]", field, j)
			check(a.QName, where)
			v.association(where, a)
		}
		for j, a := range e.ManyAssociations {
			where := fmt.Sprintf("%s.manyAssociations[%d]", field, j)
			check(a.QName, where)
			v.association(where, a)
		}
	}
}

func (v *modelValidator) properties(field string, props []ir.PropertyDescriptor) {
	for j, p := range props {
		where := fmt.Sprintf("%s.properties[%d]", field, j)
		v.member(where, p.QName)
		v.typeRef(where, p.Type)
	}
}

func (v *modelValidator) association(where string, a ir.AssociationDescriptor) {
	v.member(where, a.QName)
	if !v.known[a.TargetType] {
		v.add(where, ErrUnknownTarget, "%s targets unknown type %q", a.QName, a.TargetType)
	}
}

func (v *modelValidator) member(where string, q ir.QualifiedName) {
	if q.Type == "" || q.Name == "" {
		v.add(where, ErrEmptyName, "member with incomplete qualified name %q", q)
		return
	}
	if !v.owners[q.Type] {
		v.add(where, ErrMemberOwnerUnknown, "%s is owned by undeclared type %q", q, q.Type)
	}
}

func (v *modelValidator) typeRef(where string, t ir.TypeRef) {
	switch t.Kind {
	case ir.TypeCollection:
		if t.Elem == nil {
			v.add(where, ErrCollectionInvalid, "collection without element type")
			return
		}
		v.typeRef(where, *t.Elem)
	case ir.TypeEnum:
		if _, ok := v.model.Enum(t.Name); !ok {
			v.add(where, ErrUnknownTypeRef, "unknown enum %q", t.Name)
		}
	case ir.TypeComposite:
		if _, ok := v.model.Composite(t.Name); !ok {
			v.add(where, ErrUnknownTypeRef, "unknown composite %q", t.Name)
		}
	}
}
