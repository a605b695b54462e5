package gosieve

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrFormat is returned when a literal cannot be parsed into the target type.
	ErrFormat = errors.New("invalid format")
	// ErrOverflow is returned when a numeric literal does not fit the target type.
	ErrOverflow = errors.New("value out of range")
	// ErrUnsupportedConversion is returned when no coercion path exists between
	// the literal and the target type.
	ErrUnsupportedConversion = errors.New("unsupported conversion")
	// ErrUnsupportedOperation is returned when an operator cannot be applied to
	// the given arguments or property type.
	ErrUnsupportedOperation = errors.New("unsupported operation")
	// ErrMissingArgument is returned when a required argument is absent.
	ErrMissingArgument = errors.New("missing required argument")
	// ErrUnknownOperator is returned for operator values outside the known set.
	ErrUnknownOperator = errors.New("unknown operator")
)

// CoercionError describes a failed attempt to convert a literal into the type
// of a resolved property. Err is one of ErrFormat, ErrOverflow or
// ErrUnsupportedConversion, possibly wrapping the parser error.
type CoercionError struct {
	// Value is the literal as supplied by the caller.
	Value any
	// Target is the type the literal was coerced to.
	Target reflect.Type
	// Err is the cause.
	Err error
}

// Error implements the error interface.
func (e *CoercionError) Error() string {
	return fmt.Sprintf("cannot coerce %v (%T) to %s: %v", e.Value, e.Value, e.Target, e.Err)
}

// Unwrap returns the underlying cause, supporting errors.Is and errors.As chains.
func (e *CoercionError) Unwrap() error {
	return e.Err
}

// IsFormatError reports whether err is (or wraps) a format error.
func IsFormatError(err error) bool {
	return errors.Is(err, ErrFormat)
}

// IsOverflowError reports whether err is (or wraps) an overflow error.
func IsOverflowError(err error) bool {
	return errors.Is(err, ErrOverflow)
}

func coercionError(value any, target reflect.Type, kind error, cause error) error {
	err := kind
	if cause != nil {
		err = fmt.Errorf("%w: %w", kind, cause)
	}

	return &CoercionError{Value: value, Target: target, Err: err}
}
