package gosieve

import (
	"bytes"
	"cmp"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	_timeType     = reflect.TypeFor[time.Time]()
	_durationType = reflect.TypeFor[time.Duration]()
	_uuidType     = reflect.TypeFor[uuid.UUID]()
)

// indirect follows pointers and interfaces. It returns false when a nil is
// met on the way.
func indirect(v reflect.Value) (reflect.Value, bool) {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}

	return v, v.IsValid()
}

func baseType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	return t
}

func nilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	default:
		return false
	}
}

func isSigned(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUnsigned(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uintptr
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

func isNumeric(k reflect.Kind) bool {
	return isSigned(k) || isUnsigned(k) || isFloat(k)
}

// orderable reports whether values of t support <, >, <= and >=.
func orderable(t reflect.Type) bool {
	t = baseType(t)
	if t == _timeType || t == _uuidType {
		return true
	}

	return isNumeric(t.Kind()) || t.Kind() == reflect.String
}

// isSequence reports whether t is a slice or array other than a byte string
// or an identifier.
func isSequence(t reflect.Type) bool {
	t = baseType(t)
	if t == _uuidType {
		return false
	}
	if t.Kind() != reflect.Slice && t.Kind() != reflect.Array {
		return false
	}

	return t.Elem().Kind() != reflect.Uint8
}

// compareValues is a three-way comparison of two non-null values. Numbers of
// different kinds are compared by value, strings ordinally and identifiers by
// their bytes.
func compareValues(a, b reflect.Value) (int, error) {
	a, okA := indirect(a)
	b, okB := indirect(b)
	if !okA || !okB {
		return 0, fmt.Errorf("%w: cannot compare null values", ErrUnsupportedOperation)
	}

	ka, kb := a.Kind(), b.Kind()
	switch {
	case a.Type() == _timeType && b.Type() == _timeType:
		return a.Interface().(time.Time).Compare(b.Interface().(time.Time)), nil
	case a.Type() == _uuidType && b.Type() == _uuidType:
		x, y := a.Interface().(uuid.UUID), b.Interface().(uuid.UUID)
		return bytes.Compare(x[:], y[:]), nil
	case isSigned(ka) && isSigned(kb):
		return cmp.Compare(a.Int(), b.Int()), nil
	case isUnsigned(ka) && isUnsigned(kb):
		return cmp.Compare(a.Uint(), b.Uint()), nil
	case isSigned(ka) && isUnsigned(kb):
		return compareSignedUnsigned(a.Int(), b.Uint()), nil
	case isUnsigned(ka) && isSigned(kb):
		return -compareSignedUnsigned(b.Int(), a.Uint()), nil
	case isNumeric(ka) && isNumeric(kb):
		return cmp.Compare(toFloat(a), toFloat(b)), nil
	case ka == reflect.String && kb == reflect.String:
		return strings.Compare(a.String(), b.String()), nil
	case ka == reflect.Bool && kb == reflect.Bool:
		return cmp.Compare(boolToInt(a.Bool()), boolToInt(b.Bool())), nil
	default:
		return 0, fmt.Errorf("%w: cannot compare %s with %s", ErrUnsupportedOperation, a.Type(), b.Type())
	}
}

func compareSignedUnsigned(i int64, u uint64) int {
	if i < 0 || u > math.MaxInt64 {
		return -1
	}

	return cmp.Compare(i, int64(u))
}

func toFloat(v reflect.Value) float64 {
	switch k := v.Kind(); {
	case isSigned(k):
		return float64(v.Int())
	case isUnsigned(k):
		return float64(v.Uint())
	default:
		return v.Float()
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}

// equalValues reports whether a and b hold the same value. Two nulls are
// equal; a null never equals a non-null.
func equalValues(a, b reflect.Value) bool {
	a, okA := indirect(a)
	b, okB := indirect(b)
	if !okA || !okB {
		return okA == okB
	}

	if c, err := compareValues(a, b); err == nil {
		return c == 0
	}

	if a.Type() == b.Type() && a.Comparable() {
		return a.Equal(b)
	}

	return reflect.DeepEqual(a.Interface(), b.Interface())
}

// stringify renders v the way fmt does, except that byte slices are read as
// text.
func stringify(v reflect.Value) string {
	v, ok := indirect(v)
	if !ok {
		return ""
	}

	if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
		return string(v.Bytes())
	}

	return fmt.Sprint(v.Interface())
}
