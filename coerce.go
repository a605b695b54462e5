package gosieve

import (
	"encoding"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// semanticKind is the closed set of coercion targets.
type semanticKind int

const (
	kindOther semanticKind = iota
	kindIdentifier
	kindEnum
	kindString
	kindTime
	kindDuration
	kindText
	kindBool
	kindSigned
	kindUnsigned
	kindFloat
	kindSequence
	kindInterface
)

var _textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()

func semanticKindOf(t reflect.Type) semanticKind {
	switch {
	case t == _uuidType:
		return kindIdentifier
	case isEnum(t):
		return kindEnum
	case t == _timeType:
		return kindTime
	case t == _durationType:
		return kindDuration
	}

	k := t.Kind()
	switch {
	case k == reflect.String:
		return kindString
	case k == reflect.Interface:
		return kindInterface
	case reflect.PointerTo(t).Implements(_textUnmarshalerType):
		return kindText
	case k == reflect.Bool:
		return kindBool
	case isSigned(k):
		return kindSigned
	case isUnsigned(k):
		return kindUnsigned
	case isFloat(k):
		return kindFloat
	case k == reflect.Slice || k == reflect.Array:
		return kindSequence
	default:
		return kindOther
	}
}

// Coerce converts value into target. A pointer target yields a pointer to the
// coerced element; a nil value yields nil.
//
// Failures are *CoercionError wrapping ErrFormat when text cannot be parsed,
// ErrOverflow when a number does not fit target and ErrUnsupportedConversion
// when no conversion exists.
//
//	v, err := gosieve.Coerce("300", reflect.TypeFor[uint8]()) // ErrOverflow
func Coerce(value any, target reflect.Type) (any, error) {
	if target == nil {
		return nil, fmt.Errorf("%w: coercion target type", ErrMissingArgument)
	}
	if isNil(value) {
		return nil, nil
	}

	rv, err := coerce(value, target)
	if err != nil {
		return nil, err
	}

	return rv.Interface(), nil
}

// coerce is Coerce over reflect values. The result always has type target.
func coerce(value any, target reflect.Type) (reflect.Value, error) {
	if isNil(value) {
		if nilable(target) {
			return reflect.Zero(target), nil
		}
		return reflect.Value{}, coercionError(value, target, ErrUnsupportedConversion, nil)
	}

	src := reflect.ValueOf(value)
	if src.Type() == target {
		return src, nil
	}

	if target.Kind() == reflect.Pointer {
		elem, err := coerce(value, target.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(target.Elem())
		p.Elem().Set(elem)
		return p, nil
	}

	if src.Kind() == reflect.Pointer {
		return coerce(src.Elem().Interface(), target)
	}

	var (
		out reflect.Value
		err error
	)
	switch semanticKindOf(target) {
	case kindIdentifier:
		out, err = coerceIdentifier(src)
	case kindEnum:
		out, err = coerceEnum(src, target)
	case kindString:
		out = reflect.ValueOf(stringify(src)).Convert(target)
	case kindTime:
		out, err = coerceTime(src)
	case kindDuration:
		out, err = coerceDuration(src)
	case kindText:
		out, err = coerceText(src, target)
	case kindBool:
		out, err = coerceBool(src, target)
	case kindSigned:
		out, err = coerceSigned(src, target)
	case kindUnsigned:
		out, err = coerceUnsigned(src, target)
	case kindFloat:
		out, err = coerceFloat(src, target)
	case kindSequence:
		out, err = coerceSequence(src, target)
	case kindInterface:
		if !src.Type().Implements(target) {
			err = ErrUnsupportedConversion
			break
		}
		out = reflect.New(target).Elem()
		out.Set(src)
	default:
		out, err = convertSameKind(src, target)
	}

	if err == nil {
		return out, nil
	}

	var ce *CoercionError
	if errors.As(err, &ce) {
		return reflect.Value{}, err
	}

	return reflect.Value{}, wrapCoercion(value, target, err)
}

// wrapCoercion attaches value and target to an internal failure. Failures
// that carry no sentinel are reported as unsupported conversions.
func wrapCoercion(value any, target reflect.Type, err error) error {
	for _, sentinel := range []error{ErrOverflow, ErrFormat, ErrUnsupportedConversion} {
		if errors.Is(err, sentinel) {
			return &CoercionError{Value: value, Target: target, Err: err}
		}
	}

	return coercionError(value, target, ErrUnsupportedConversion, err)
}

func coerceIdentifier(src reflect.Value) (reflect.Value, error) {
	switch {
	case src.Kind() == reflect.String:
		id, err := uuid.Parse(strings.TrimSpace(src.String()))
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%w: %w", ErrFormat, err)
		}
		return reflect.ValueOf(id), nil
	case src.Kind() == reflect.Slice && src.Type().Elem().Kind() == reflect.Uint8:
		id, err := uuid.FromBytes(src.Bytes())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%w: %w", ErrFormat, err)
		}
		return reflect.ValueOf(id), nil
	case src.Kind() == reflect.Array && src.Type().ConvertibleTo(_uuidType):
		return src.Convert(_uuidType), nil
	default:
		return reflect.Value{}, ErrUnsupportedConversion
	}
}

func coerceTime(src reflect.Value) (reflect.Value, error) {
	text, ok := textOf(src)
	if !ok {
		return reflect.Value{}, ErrUnsupportedConversion
	}

	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(text))
	if err != nil {
		return reflect.Value{}, fmt.Errorf("%w: %w", ErrFormat, err)
	}

	return reflect.ValueOf(t), nil
}

func coerceDuration(src reflect.Value) (reflect.Value, error) {
	if text, ok := textOf(src); ok {
		d, err := time.ParseDuration(strings.TrimSpace(text))
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%w: %w", ErrFormat, err)
		}
		return reflect.ValueOf(d), nil
	}

	if isSigned(src.Kind()) || isUnsigned(src.Kind()) {
		return coerceSigned(src, _durationType)
	}

	return reflect.Value{}, ErrUnsupportedConversion
}

func coerceText(src reflect.Value, target reflect.Type) (reflect.Value, error) {
	text, ok := textOf(src)
	if !ok {
		return convertSameKind(src, target)
	}

	p := reflect.New(target)
	if err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(text)); err != nil {
		return reflect.Value{}, fmt.Errorf("%w: %w", ErrFormat, err)
	}

	return p.Elem(), nil
}

func coerceBool(src reflect.Value, target reflect.Type) (reflect.Value, error) {
	out := reflect.New(target).Elem()

	switch k := src.Kind(); {
	case k == reflect.Bool:
		out.SetBool(src.Bool())
	case k == reflect.String:
		b, err := strconv.ParseBool(strings.TrimSpace(src.String()))
		if err != nil {
			return reflect.Value{}, numError(err)
		}
		out.SetBool(b)
	case isNumeric(k):
		out.SetBool(toFloat(src) != 0)
	default:
		return reflect.Value{}, ErrUnsupportedConversion
	}

	return out, nil
}

func coerceSigned(src reflect.Value, target reflect.Type) (reflect.Value, error) {
	out := reflect.New(target).Elem()

	var n int64
	switch k := src.Kind(); {
	case isSigned(k):
		n = src.Int()
	case isUnsigned(k):
		u := src.Uint()
		if u > math.MaxInt64 {
			return reflect.Value{}, ErrOverflow
		}
		n = int64(u)
	case isFloat(k):
		f := src.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return reflect.Value{}, ErrFormat
		}
		f = math.RoundToEven(f)
		if f < math.MinInt64 || f >= math.MaxInt64 {
			return reflect.Value{}, ErrOverflow
		}
		n = int64(f)
	case k == reflect.Bool:
		n = int64(boolToInt(src.Bool()))
	case k == reflect.String:
		parsed, err := strconv.ParseInt(strings.TrimSpace(src.String()), 10, target.Bits())
		if err != nil {
			return reflect.Value{}, numError(err)
		}
		n = parsed
	default:
		return reflect.Value{}, ErrUnsupportedConversion
	}

	if out.OverflowInt(n) {
		return reflect.Value{}, ErrOverflow
	}
	out.SetInt(n)

	return out, nil
}

func coerceUnsigned(src reflect.Value, target reflect.Type) (reflect.Value, error) {
	out := reflect.New(target).Elem()

	var n uint64
	switch k := src.Kind(); {
	case isSigned(k):
		i := src.Int()
		if i < 0 {
			return reflect.Value{}, ErrOverflow
		}
		n = uint64(i)
	case isUnsigned(k):
		n = src.Uint()
	case isFloat(k):
		f := src.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return reflect.Value{}, ErrFormat
		}
		f = math.RoundToEven(f)
		if f < 0 || f >= math.MaxUint64 {
			return reflect.Value{}, ErrOverflow
		}
		n = uint64(f)
	case k == reflect.Bool:
		n = uint64(boolToInt(src.Bool()))
	case k == reflect.String:
		text := strings.TrimSpace(src.String())
		if strings.HasPrefix(text, "-") {
			if _, err := strconv.ParseInt(text, 10, 64); err == nil {
				return reflect.Value{}, ErrOverflow
			}
		}
		parsed, err := strconv.ParseUint(text, 10, target.Bits())
		if err != nil {
			return reflect.Value{}, numError(err)
		}
		n = parsed
	default:
		return reflect.Value{}, ErrUnsupportedConversion
	}

	if out.OverflowUint(n) {
		return reflect.Value{}, ErrOverflow
	}
	out.SetUint(n)

	return out, nil
}

func coerceFloat(src reflect.Value, target reflect.Type) (reflect.Value, error) {
	out := reflect.New(target).Elem()

	var f float64
	switch k := src.Kind(); {
	case isNumeric(k):
		f = toFloat(src)
	case k == reflect.Bool:
		f = float64(boolToInt(src.Bool()))
	case k == reflect.String:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(src.String()), target.Bits())
		if err != nil {
			return reflect.Value{}, numError(err)
		}
		f = parsed
	default:
		return reflect.Value{}, ErrUnsupportedConversion
	}

	if !math.IsInf(f, 0) && out.OverflowFloat(f) {
		return reflect.Value{}, ErrOverflow
	}
	out.SetFloat(f)

	return out, nil
}

// coerceSequence converts slices and arrays element by element. Text coerces
// into byte slices directly.
func coerceSequence(src reflect.Value, target reflect.Type) (reflect.Value, error) {
	if target.Kind() == reflect.Slice && target.Elem().Kind() == reflect.Uint8 && src.Kind() == reflect.String {
		return reflect.ValueOf([]byte(src.String())).Convert(target), nil
	}

	if src.Kind() != reflect.Slice && src.Kind() != reflect.Array {
		return convertSameKind(src, target)
	}

	n := src.Len()
	var out reflect.Value
	if target.Kind() == reflect.Array {
		if n != target.Len() {
			return reflect.Value{}, fmt.Errorf("%w: expected %d elements, got %d", ErrFormat, target.Len(), n)
		}
		out = reflect.New(target).Elem()
	} else {
		out = reflect.MakeSlice(target, n, n)
	}

	for i := 0; i < n; i++ {
		elem, err := coerce(src.Index(i).Interface(), target.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		out.Index(i).Set(elem)
	}

	return out, nil
}

// convertSameKind applies a plain Go conversion between types of the same
// kind, e.g. between two struct types with identical fields.
func convertSameKind(src reflect.Value, target reflect.Type) (reflect.Value, error) {
	if src.Kind() == target.Kind() && src.Type().ConvertibleTo(target) {
		return src.Convert(target), nil
	}

	return reflect.Value{}, ErrUnsupportedConversion
}

func textOf(src reflect.Value) (string, bool) {
	switch {
	case src.Kind() == reflect.String:
		return src.String(), true
	case src.Kind() == reflect.Slice && src.Type().Elem().Kind() == reflect.Uint8:
		return string(src.Bytes()), true
	default:
		return "", false
	}
}

func numError(err error) error {
	if errors.Is(err, strconv.ErrRange) {
		return fmt.Errorf("%w: %w", ErrOverflow, err)
	}

	return fmt.Errorf("%w: %w", ErrFormat, err)
}
