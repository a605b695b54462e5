package gosieve

import (
	"reflect"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// A shape is the cache key of a filter tree. Every token is length prefixed
// and every literal carries the identity of its type, so two trees share a
// shape only when they compile to the same predicate. Trees holding literals
// without a canonical form (pointers, slices, maps, structs other than
// time.Time) have no shape and are compiled on every call.

var (
	_typeIDs    sync.Map
	_nextTypeID atomic.Uint64
)

// typeID numbers types for the lifetime of the process. Unlike type names it
// tells apart equally named types of different packages.
func typeID(t reflect.Type) uint64 {
	if id, ok := _typeIDs.Load(t); ok {
		return id.(uint64)
	}

	id, _ := _typeIDs.LoadOrStore(t, _nextTypeID.Add(1))

	return id.(uint64)
}

func writeToken(b *strings.Builder, s string) {
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteByte(':')
	b.WriteString(s)
}

func writeLiteral(b *strings.Builder, v any) bool {
	if v == nil {
		b.WriteByte('n')
		return true
	}

	payload, ok := canonical(v)
	if !ok {
		return false
	}

	b.WriteByte('v')
	writeToken(b, strconv.FormatUint(typeID(reflect.TypeOf(v)), 10))
	writeToken(b, payload)

	return true
}

func canonical(v any) (string, bool) {
	if t, ok := v.(time.Time); ok {
		return t.Round(0).String(), true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64), true
	case reflect.Complex64, reflect.Complex128:
		return strconv.FormatComplex(rv.Complex(), 'g', -1, 128), true
	case reflect.String:
		return rv.String(), true
	case reflect.Array:
		// Fixed size byte arrays, e.g. uuid.UUID.
		if rv.Type().Elem().Kind() != reflect.Uint8 {
			return "", false
		}
		buf := make([]byte, rv.Len())
		for i := range buf {
			buf[i] = byte(rv.Index(i).Uint())
		}
		return string(buf), true
	default:
		return "", false
	}
}

func (c FilterCriterion) writeShape(b *strings.Builder) bool {
	b.WriteByte('c')
	writeToken(b, c.Path)
	writeToken(b, string(c.Operator))
	b.WriteString(strconv.Itoa(len(c.Values)))
	b.WriteByte('[')
	for _, v := range c.Values {
		if !writeLiteral(b, v) {
			return false
		}
	}
	b.WriteByte(']')

	return true
}

func (g FilterGroup) writeShape(b *strings.Builder) bool {
	b.WriteByte('g')
	writeToken(b, string(g.Conjunction.orDefault()))
	b.WriteString(strconv.Itoa(len(g.Children)))
	b.WriteByte('(')
	for _, child := range g.Children {
		if child == nil {
			b.WriteByte('x')
			continue
		}
		if !child.writeShape(b) {
			return false
		}
	}
	b.WriteByte(')')

	return true
}

// shape renders the cache key of the tree. ok is false when the tree holds a
// literal without a canonical form.
func (g FilterGroup) shape() (key string, ok bool) {
	var b strings.Builder
	if !g.writeShape(&b) {
		return "", false
	}

	return b.String(), true
}
