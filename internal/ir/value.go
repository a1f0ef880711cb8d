package ir

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// IRValue is a sealed interface representing property values.
// Only the IR* types in this package implement it.
type IRValue interface {
	irValue() // Sealed - only these types implement it
}

// IRNull represents an absent property value.
type IRNull struct{}

func (IRNull) irValue() {}

// IRString represents a string value.
type IRString string

func (IRString) irValue() {}

// IRInt represents an integer value.
type IRInt int64

func (IRInt) irValue() {}

// IRFloat represents a floating point value.
type IRFloat float64

func (IRFloat) irValue() {}

// IRBool represents a boolean value.
type IRBool bool

func (IRBool) irValue() {}

// IRTime represents an instant. Stored as UTC unix nanoseconds.
type IRTime time.Time

func (IRTime) irValue() {}

// IREnum represents one constant of an enum type.
type IREnum struct {
	Type     string
	Constant string
}

func (IREnum) irValue() {}

// Key returns the enum dictionary key ("Type.CONSTANT").
func (e IREnum) Key() string {
	return e.Type + "." + e.Constant
}

// IRList represents a collection value. Element order is significant.
type IRList []IRValue

func (IRList) irValue() {}

// IRComposite represents a value-composite instance.
// Fields are keyed by the composite's member names.
type IRComposite struct {
	Type   string
	Fields map[string]IRValue
}

func (IRComposite) irValue() {}

// SortedFields returns the field names in lexicographic order.
func (c IRComposite) SortedFields() []string {
	keys := make([]string, 0, len(c.Fields))
	for k := range c.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IRVariable is a named placeholder resolved when a query is compiled.
// It is never valid as an indexed value.
type IRVariable struct {
	Name string
}

func (IRVariable) irValue() {}

// NewIRString creates an IRString value.
func NewIRString(s string) IRString {
	return IRString(s)
}

// NewIRInt creates an IRInt value.
func NewIRInt(n int64) IRInt {
	return IRInt(n)
}

// NewIRBool creates an IRBool value.
func NewIRBool(b bool) IRBool {
	return IRBool(b)
}

// NewIRList creates an IRList from values.
func NewIRList(vals ...IRValue) IRList {
	return IRList(vals)
}

// NewIRComposite creates a composite of the given type from field pairs.
func NewIRComposite(typeName string, pairs ...IRPair) IRComposite {
	fields := make(map[string]IRValue, len(pairs))
	for _, p := range pairs {
		fields[p.Key] = p.Value
	}
	return IRComposite{Type: typeName, Fields: fields}
}

// IRPair represents a key-value pair for composite construction.
type IRPair struct {
	Key   string
	Value IRValue
}

// F is a shorthand for IRPair.
// Example: NewIRComposite("Address", F("city", NewIRString("Oslo")))
func F(key string, value IRValue) IRPair {
	return IRPair{Key: key, Value: value}
}

// IsNull reports whether v is nil or IRNull.
func IsNull(v IRValue) bool {
	if v == nil {
		return true
	}
	_, ok := v.(IRNull)
	return ok
}

// FormatValue renders a value for diagnostics and text output.
func FormatValue(v IRValue) string {
	switch val := v.(type) {
	case nil, IRNull:
		return "null"
	case IRString:
		return strconv.Quote(string(val))
	case IRInt:
		return strconv.FormatInt(int64(val), 10)
	case IRFloat:
		return strconv.FormatFloat(float64(val), 'g', -1, 64)
	case IRBool:
		return strconv.FormatBool(bool(val))
	case IRTime:
		return time.Time(val).UTC().Format(time.RFC3339Nano)
	case IREnum:
		return val.Key()
	case IRList:
		parts := make([]string, len(val))
		for i, e := range val {
			parts[i] = FormatValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case IRComposite:
		keys := val.SortedFields()
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + FormatValue(val.Fields[k])
		}
		return val.Type + "{" + strings.Join(parts, ", ") + "}"
	case IRVariable:
		return "$" + val.Name
	default:
		return fmt.Sprintf("<%T>", v)
	}
}
