package gosieve

import (
	"cmp"
	"encoding/base64"
	"fmt"
	"iter"
	"reflect"
	"slices"
	"strings"
	"time"
)

var _encoder = base64.RawURLEncoding

// FormatCursor renders a cursor property value as a cursor string that
// Coerce parses back into the same value. Times use RFC 3339 with
// nanoseconds.
func FormatCursor(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case *time.Time:
		if v == nil {
			return ""
		}
		return v.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return v.String()
	default:
		return stringify(reflect.ValueOf(v))
	}
}

// EncodeCursor builds an opaque URL-safe token for value.
func EncodeCursor(value any) string {
	s := FormatCursor(value)
	if s == "" {
		return ""
	}

	return _encoder.EncodeToString([]byte(s))
}

// DecodeCursor reverses EncodeCursor. An empty token is an absent cursor.
func DecodeCursor(token string) (string, error) {
	if len(token) == 0 {
		return "", nil
	}

	data, err := _encoder.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64 encoded cursor: %w", err)
	}

	return string(data), nil
}

// CursorKey extracts the cursor property of an element. It reports false
// when the property is null; such elements never appear in cursor pages.
type CursorKey[T, C any] func(T) (C, bool)

// Value adapts a plain getter into a CursorKey.
func Value[T, C any](get func(T) C) CursorKey[T, C] {
	if get == nil {
		return nil
	}

	return func(item T) (C, bool) {
		return get(item), true
	}
}

// Nullable adapts a getter of an optional property into a CursorKey.
func Nullable[T, C any](get func(T) *C) CursorKey[T, C] {
	if get == nil {
		return nil
	}

	return func(item T) (C, bool) {
		if p := get(item); p != nil {
			return *p, true
		}

		var zero C
		return zero, false
	}
}

// CursorPaginate pages seq by a cursor property. The cursor strings of p are
// coerced into C; strings compare byte-wise.
//
// Before orders the sequence by key and returns the Limit elements closest
// to, but strictly below, Before in descending order. Otherwise After returns
// the Limit elements strictly above After in ascending order. When no cursor
// is set or it cannot be coerced, the first Limit elements in ascending order
// are returned.
func CursorPaginate[T any, C cmp.Ordered](seq iter.Seq[T], p PagingDescriptor, key CursorKey[T, C]) (iter.Seq[T], error) {
	return CursorPaginateFunc(seq, p, key, cmp.Compare[C])
}

// CursorPaginateFunc is CursorPaginate with a custom comparison.
func CursorPaginateFunc[T, C any](
	seq iter.Seq[T],
	p PagingDescriptor,
	key CursorKey[T, C],
	compare func(a, b C) int,
) (iter.Seq[T], error) {
	if key == nil {
		return nil, fmt.Errorf("%w: cursor key", ErrMissingArgument)
	}
	if compare == nil {
		return nil, fmt.Errorf("%w: cursor comparison", ErrMissingArgument)
	}
	if seq == nil {
		return nil, nil
	}

	return cursorWindow(seq, p, key, parseCursor[C], compare), nil
}

func parseCursor[C any](raw string) (C, bool) {
	var zero C

	v, err := Coerce(raw, reflect.TypeFor[C]())
	if err != nil || v == nil {
		return zero, false
	}

	c, ok := v.(C)
	return c, ok
}

type keyed[T, C any] struct {
	item T
	key  C
}

// cursorWindow implements the three cursor modes. The bound is always the
// second argument of compare.
func cursorWindow[T, C any](
	seq iter.Seq[T],
	p PagingDescriptor,
	key CursorKey[T, C],
	parse func(string) (C, bool),
	compare func(a, b C) int,
) iter.Seq[T] {
	raw, mode := p.cursor()

	var bound C
	if mode != cursorNone {
		var ok bool
		if bound, ok = parse(raw); !ok {
			mode = cursorNone
		}
	}

	limit := max(p.Limit, 0)

	return func(yield func(T) bool) {
		var rows []keyed[T, C]
		for item := range seq {
			k, ok := key(item)
			if !ok {
				continue
			}
			if mode == cursorBefore && compare(k, bound) >= 0 {
				continue
			}
			if mode == cursorAfter && compare(k, bound) <= 0 {
				continue
			}
			rows = append(rows, keyed[T, C]{item: item, key: k})
		}

		// Before walks downwards. Equal keys keep their input order either way.
		slices.SortStableFunc(rows, func(a, b keyed[T, C]) int {
			if mode == cursorBefore {
				return compare(b.key, a.key)
			}
			return compare(a.key, b.key)
		})

		for i, row := range rows {
			if limit > 0 && i >= limit {
				return
			}
			if !yield(row.item) {
				return
			}
		}
	}
}

// FirstCursor returns the cursor string of the first element of page with a
// non-null key, or "".
func FirstCursor[T, C any](page []T, key CursorKey[T, C]) string {
	for _, item := range page {
		if k, ok := key(item); ok {
			return FormatCursor(k)
		}
	}

	return ""
}

// LastCursor returns the cursor string of the last element of page with a
// non-null key, or "". For ascending pages it is the After of the next page;
// for descending pages it is the Before of the previous one.
func LastCursor[T, C any](page []T, key CursorKey[T, C]) string {
	for i := len(page) - 1; i >= 0; i-- {
		if k, ok := key(page[i]); ok {
			return FormatCursor(k)
		}
	}

	return ""
}

// CursorPaginate pages seq by the property at path, coercing the cursor
// strings into its type.
func (s *Sieve[T]) CursorPaginate(seq iter.Seq[T], p PagingDescriptor, path string) (iter.Seq[T], error) {
	a, ok := s.Resolve(path)
	if !ok {
		return nil, fmt.Errorf("%w: cursor path '%s' does not resolve on %s", ErrMissingArgument, path, s.typ)
	}
	if seq == nil {
		return nil, nil
	}

	key := func(item T) (reflect.Value, bool) {
		return read(a, reflect.ValueOf(&item).Elem())
	}

	parse := func(raw string) (reflect.Value, bool) {
		if a.Dynamic() {
			return reflect.ValueOf(raw), true
		}

		v, err := coerce(raw, baseType(a.Type()))
		if err != nil {
			s.engine.logger.Debug("cursor ignored", "path", path, "cursor", raw, "error", err)
			return reflect.Value{}, false
		}
		return v, true
	}

	return cursorWindow(seq, p, key, parse, compareCursor), nil
}

// CursorOf returns the cursor string of item for the property at path.
func (s *Sieve[T]) CursorOf(item T, path string) string {
	a, ok := s.Resolve(path)
	if !ok {
		return ""
	}

	v, ok := read(a, reflect.ValueOf(&item).Elem())
	if !ok {
		return ""
	}

	return FormatCursor(v.Interface())
}

// compareCursor compares a property value with another one or with a bound.
// Bounds of dynamic properties arrive as text and are coerced into the type
// of x.
func compareCursor(x, y reflect.Value) int {
	if c, err := compareValues(x, y); err == nil {
		return c
	}

	if y2, err := coerce(y.Interface(), x.Type()); err == nil {
		if c, err := compareValues(x, y2); err == nil {
			return c
		}
	}

	return strings.Compare(stringify(x), stringify(y))
}

// PaginationResult is a generic cursor page container.
type PaginationResult[T any] struct {
	// Items result elements.
	Items []T `json:"items"`
	// AppliedLimit effective limit used for the page.
	AppliedLimit int `json:"appliedLimit"`
	// BeforeToken token for the page of smaller cursor values, empty at the
	// start of the dataset.
	BeforeToken string `json:"beforeToken,omitempty"`
	// AfterToken token for the page of greater cursor values, empty at the
	// end of the dataset.
	AfterToken string `json:"afterToken,omitempty"`
}

// CollectCursorPage materializes a page produced with p and builds the tokens
// of its neighbours. A page shorter than its limit is the last one in its
// direction.
func CollectCursorPage[T, C any](page iter.Seq[T], p PagingDescriptor, key CursorKey[T, C]) PaginationResult[T] {
	ret := PaginationResult[T]{AppliedLimit: max(p.Limit, 0)}
	if page == nil || key == nil {
		return ret
	}

	ret.Items = slices.Collect(page)
	if len(ret.Items) == 0 {
		return ret
	}

	_, mode := p.cursor()
	full := !p.IsUnbounded() && len(ret.Items) >= p.Limit
	first, last := FirstCursor(ret.Items, key), LastCursor(ret.Items, key)

	switch mode {
	case cursorBefore:
		ret.AfterToken = EncodeCursor(first)
		if full {
			ret.BeforeToken = EncodeCursor(last)
		}
	case cursorAfter:
		ret.BeforeToken = EncodeCursor(first)
		if full {
			ret.AfterToken = EncodeCursor(last)
		}
	default:
		if full {
			ret.AfterToken = EncodeCursor(last)
		}
	}

	return ret
}
