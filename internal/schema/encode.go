package schema

import (
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/qindex/internal/ir"
)

// EncodeValue converts a primitive or enum value to its column
// representation for a value of final type t.
//
// Strings are NFC normalized, times become UTC unix nanoseconds, enums
// become dictionary ids and ints widen to floats for float columns.
// Composite, list, null and variable values are rejected; callers flatten
// or resolve them first.
func (r *Registry) EncodeValue(subject string, t ir.TypeRef, v ir.IRValue) (any, ColumnType, error) {
	col := ColumnTypeOf(t)
	switch t.Kind {
	case ir.TypeEnum:
		e, ok := v.(ir.IREnum)
		if !ok {
			return nil, col, NewInvalidValueError(subject, "want %s constant, got %s", t.Name, ir.FormatValue(v))
		}
		if e.Type != t.Name {
			return nil, col, NewInvalidValueError(subject, "want %s constant, got %s", t.Name, e.Key())
		}
		id, err := r.EnumID(e)
		return id, col, err
	case ir.TypePrimitive:
	default:
		return nil, col, NewInvalidValueError(subject, "type %s is not stored as a scalar", t)
	}

	switch t.Primitive {
	case ir.PrimString:
		if s, ok := v.(ir.IRString); ok {
			return norm.NFC.String(string(s)), col, nil
		}
	case ir.PrimInt:
		if n, ok := v.(ir.IRInt); ok {
			return int64(n), col, nil
		}
	case ir.PrimFloat:
		switch n := v.(type) {
		case ir.IRFloat:
			return float64(n), col, nil
		case ir.IRInt:
			return float64(n), col, nil
		}
	case ir.PrimBool:
		if b, ok := v.(ir.IRBool); ok {
			return bool(b), col, nil
		}
	case ir.PrimTime:
		if ts, ok := v.(ir.IRTime); ok {
			return time.Time(ts).UTC().UnixNano(), col, nil
		}
	}
	return nil, col, NewInvalidValueError(subject, "want %s, got %s", t, ir.FormatValue(v))
}

// EncodeIdentity normalizes an entity identity.
func EncodeIdentity(identity string) string {
	return norm.NFC.String(identity)
}
