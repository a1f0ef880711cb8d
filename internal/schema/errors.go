package schema

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes registry, synthesis and compilation errors.
type ErrorCode string

const (
	// ErrCodeInvalidSchemaName indicates the configured schema name does not
	// match the identifier grammar.
	ErrCodeInvalidSchemaName ErrorCode = "INVALID_SCHEMA_NAME"

	// ErrCodeInvalidModel indicates the type model cannot be synthesized.
	ErrCodeInvalidModel ErrorCode = "INVALID_MODEL"

	// ErrCodeUnsupportedBackend indicates a database connection that lacks
	// a feature the index relies on (foreign key cascades, regexp).
	ErrCodeUnsupportedBackend ErrorCode = "UNSUPPORTED_BACKEND"

	// ErrCodeUnknownQName indicates a qualified name with no QNameInfo.
	ErrCodeUnknownQName ErrorCode = "UNKNOWN_QNAME"

	// ErrCodeUnknownEntityType indicates an entity type with no numeric id.
	ErrCodeUnknownEntityType ErrorCode = "UNKNOWN_ENTITY_TYPE"

	// ErrCodeUnknownEnum indicates an enum constant with no numeric id.
	ErrCodeUnknownEnum ErrorCode = "UNKNOWN_ENUM"

	// ErrCodeUnknownClass indicates a composite class with no numeric id.
	ErrCodeUnknownClass ErrorCode = "UNKNOWN_CLASS"

	// ErrCodeUnsupportedPredicate indicates a predicate kind the compiler
	// does not handle.
	ErrCodeUnsupportedPredicate ErrorCode = "UNSUPPORTED_PREDICATE"

	// ErrCodeUnboundVariable indicates a query variable with no binding.
	ErrCodeUnboundVariable ErrorCode = "UNBOUND_VARIABLE"

	// ErrCodeInvalidValue indicates a value that does not fit its declared type.
	ErrCodeInvalidValue ErrorCode = "INVALID_VALUE"
)

// Error is returned for configuration and consistency failures.
//
// Configuration errors (invalid schema name, invalid model, unsupported
// backend) fail startup.
// All other codes mean the registry and the caller disagree about the
// type model; they are internal errors and are never recovered silently.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Subject names the offending item (qualified name, type, constant).
	Subject string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Subject)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsConfigError reports whether err is a configuration error.
// Uses errors.As to handle wrapped errors.
func IsConfigError(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		switch se.Code {
		case ErrCodeInvalidSchemaName, ErrCodeInvalidModel, ErrCodeUnsupportedBackend:
			return true
		}
	}
	return false
}

// IsConsistencyError reports whether err signals registry/model drift or an
// unhandled predicate kind.
func IsConsistencyError(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return !IsConfigError(err)
	}
	return false
}

// HasCode reports whether err is an *Error with the given code.
func HasCode(err error, code ErrorCode) bool {
	var se *Error
	return errors.As(err, &se) && se.Code == code
}

func newError(code ErrorCode, subject, format string, args ...any) *Error {
	return &Error{Code: code, Subject: subject, Message: fmt.Sprintf(format, args...)}
}

// NewUnsupportedBackendError creates an error for a connection that is
// missing a required database feature.
func NewUnsupportedBackendError(feature, format string, args ...any) *Error {
	return newError(ErrCodeUnsupportedBackend, feature, format, args...)
}

// NewUnknownQNameError creates an error for a qualified name with no QNameInfo.
func NewUnknownQNameError(qname string) *Error {
	return newError(ErrCodeUnknownQName, qname, "qualified name is not registered")
}

// NewUnsupportedPredicateError creates an error for an unhandled predicate.
func NewUnsupportedPredicateError(kind string) *Error {
	return newError(ErrCodeUnsupportedPredicate, kind, "predicate kind has no compiler support")
}

// NewUnboundVariableError creates an error for a query variable with no value.
func NewUnboundVariableError(name string) *Error {
	return newError(ErrCodeUnboundVariable, name, "query variable has no binding")
}

// NewInvalidValueError creates an error for a value that does not fit its type.
func NewInvalidValueError(subject, format string, args ...any) *Error {
	return newError(ErrCodeInvalidValue, subject, format, args...)
}

// NewUnknownEntityTypeError creates an error for an entity type with no numeric id.
func NewUnknownEntityTypeError(name string) *Error {
	return newError(ErrCodeUnknownEntityType, name, "entity type is not registered")
}
