package queryir

import (
	"fmt"
	"strings"

	"github.com/roach88/qindex/internal/ir"
)

// Step is one hop of a Path.
type Step struct {
	QName ir.QualifiedName
	Kind  ir.MemberKind
}

// String returns the qualified name of the step.
func (s Step) String() string { return s.QName.String() }

// Path is a chain of member references starting at the queried entity.
// The empty path denotes the entity itself.
type Path []Step

// Prop returns a single property step path.
func Prop(q ir.QualifiedName) Path {
	return Path{{QName: q, Kind: ir.MemberProperty}}
}

// Assoc returns a single association step path.
func Assoc(q ir.QualifiedName) Path {
	return Path{{QName: q, Kind: ir.MemberAssociation}}
}

// Many returns a single many-association step path.
func Many(q ir.QualifiedName) Path {
	return Path{{QName: q, Kind: ir.MemberManyAssociation}}
}

// Prop extends the path with a property step.
func (p Path) Prop(q ir.QualifiedName) Path {
	return p.append(Step{QName: q, Kind: ir.MemberProperty})
}

// Assoc extends the path with an association step.
func (p Path) Assoc(q ir.QualifiedName) Path {
	return p.append(Step{QName: q, Kind: ir.MemberAssociation})
}

// Many extends the path with a many-association step.
func (p Path) Many(q ir.QualifiedName) Path {
	return p.append(Step{QName: q, Kind: ir.MemberManyAssociation})
}

func (p Path) append(s Step) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, s)
}

// Last returns the final step. ok is false for the empty path.
func (p Path) Last() (Step, bool) {
	if len(p) == 0 {
		return Step{}, false
	}
	return p[len(p)-1], true
}

// IsIdentity reports whether the path addresses an entity identity: the
// empty path or a path ending in an association.
func (p Path) IsIdentity() bool {
	last, ok := p.Last()
	return !ok || last.Kind == ir.MemberAssociation
}

// String renders the path as dot-separated qualified names.
func (p Path) String() string {
	if len(p) == 0 {
		return "<identity>"
	}
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.String()
	}
	return strings.Join(parts, ".")
}

// KindResolver returns the member kind of a qualified name.
type KindResolver func(ir.QualifiedName) (ir.MemberKind, bool)

// ParsePath parses the dot-separated form produced by Path.String.
// Member kinds come from resolve. The empty string and "<identity>"
// parse to the empty path.
func ParsePath(s string, resolve KindResolver) (Path, error) {
	if s == "" || s == "<identity>" {
		return Path{}, nil
	}
	segments := strings.Split(s, ".")
	path := make(Path, 0, len(segments))
	for _, seg := range segments {
		q, err := ir.ParseQualifiedName(seg)
		if err != nil {
			return nil, fmt.Errorf("parse path %q: %w", s, err)
		}
		kind, ok := resolve(q)
		if !ok {
			return nil, fmt.Errorf("parse path %q: unknown member %s", s, q)
		}
		path = append(path, Step{QName: q, Kind: kind})
	}
	return path, nil
}
