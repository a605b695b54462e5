package gosieve

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

type enumInfo struct {
	byName map[string]reflect.Value
}

var _enums sync.Map // reflect.Type -> *enumInfo

// RegisterEnum declares E an enumerated type. Filter literals are then
// coerced into E by case-insensitive name, or by integral value when E has an
// integer underlying type.
//
//	gosieve.RegisterEnum(map[string]Status{"active": StatusActive, "banned": StatusBanned})
func RegisterEnum[E comparable](names map[string]E) {
	info := &enumInfo{byName: make(map[string]reflect.Value, len(names))}
	for name, value := range names {
		info.byName[strings.ToLower(name)] = reflect.ValueOf(value)
	}

	_enums.Store(reflect.TypeFor[E](), info)
}

func isEnum(t reflect.Type) bool {
	_, ok := _enums.Load(t)
	return ok
}

func coerceEnum(src reflect.Value, target reflect.Type) (reflect.Value, error) {
	v, _ := _enums.Load(target)
	info := v.(*enumInfo)

	switch k := src.Kind(); {
	case k == reflect.String:
		name := strings.TrimSpace(src.String())
		if value, ok := info.byName[strings.ToLower(name)]; ok {
			return value, nil
		}
		if isSigned(target.Kind()) || isUnsigned(target.Kind()) {
			if n, err := strconv.ParseInt(name, 10, 64); err == nil {
				return coerceIntegral(reflect.ValueOf(n), target)
			}
		}
		return reflect.Value{}, fmt.Errorf("%w: unknown %s name '%s'", ErrFormat, target, name)
	case isSigned(k) || isUnsigned(k):
		return coerceIntegral(src, target)
	case isFloat(k):
		// JSON payloads carry every number as float64.
		if f := src.Float(); f != math.Trunc(f) {
			return reflect.Value{}, fmt.Errorf("%w: %v is not a %s value", ErrFormat, f, target)
		}
		return coerceIntegral(src, target)
	default:
		return convertSameKind(src, target)
	}
}

func coerceIntegral(src reflect.Value, target reflect.Type) (reflect.Value, error) {
	switch k := target.Kind(); {
	case isSigned(k):
		return coerceSigned(src, target)
	case isUnsigned(k):
		return coerceUnsigned(src, target)
	default:
		return reflect.Value{}, ErrUnsupportedConversion
	}
}
