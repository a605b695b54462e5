package gosieve

import (
	"fmt"
	"iter"
	"reflect"
	"strings"
	"sync/atomic"
)

// Getters maps property paths to explicit accessors. Registered paths take
// precedence over reflection and are matched case-insensitively.
//
//	gosieve.Getters[User]{
//		"id":       func(u User) any { return u.ID },
//		"fullName": func(u User) any { return u.First + " " + u.Last },
//	}
type Getters[T any] map[string]func(T) any

// Query bundles the descriptors consumed by Apply.
type Query struct {
	Filter FilterGroup      `json:"filter"`
	Sort   SortKeys         `json:"sort,omitempty"`
	Paging PagingDescriptor `json:"paging"`
	// CursorPath switches paging to the cursor strategy keyed on this
	// property. Sort is ignored in that case.
	CursorPath string `json:"cursorPath,omitempty"`
}

var _scopes atomic.Uint64

// Sieve filters, sorts and pages elements of type T.
type Sieve[T any] struct {
	engine  *Engine
	typ     reflect.Type
	scope   uint64
	getters map[string]*Accessor
	columns ColumnMapping
}

// Of creates a Sieve for T backed by e, or by Default() when e is nil.
func Of[T any](e *Engine) *Sieve[T] {
	if e == nil {
		e = Default()
	}

	return &Sieve[T]{
		engine: e,
		typ:    reflect.TypeFor[T](),
	}
}

// WithGetters registers explicit accessors.
func (s *Sieve[T]) WithGetters(getters Getters[T]) *Sieve[T] {
	if s == nil {
		s = Of[T](nil)
	}

	if s.getters == nil {
		s.getters = make(map[string]*Accessor, len(getters))
	}

	for path, getter := range getters {
		if getter == nil {
			continue
		}

		path = strings.TrimSpace(path)
		s.getters[strings.ToLower(path)] = &Accessor{
			engine: s.engine,
			path:   path,
			root:   s.typ,
			typ:    getterType(getter),
			getter: func(v any) any {
				item, _ := v.(T)
				return getter(item)
			},
		}
	}

	// Compiled predicates are shared between sieves of one type only while
	// they resolve paths the same way.
	s.scope = _scopes.Add(1)

	return s
}

// WithColumns sets the alias to column mapping used by the SQL lowerings.
func (s *Sieve[T]) WithColumns(columns ColumnMapping) *Sieve[T] {
	if s == nil {
		s = Of[T](nil)
	}

	s.columns = columns

	return s
}

// Column returns the column mapped to alias by WithColumns.
func (s *Sieve[T]) Column(alias string) (string, bool) {
	name, ok := s.columns[strings.TrimSpace(alias)]

	return name, ok
}

// getterType calls getter on the zero T to learn its result type. A getter
// that panics or returns nil there is treated as dynamic.
func getterType[T any](getter func(T) any) (t reflect.Type) {
	defer func() {
		if recover() != nil {
			t = reflect.TypeFor[any]()
		}
	}()

	var zero T
	if v := getter(zero); v != nil {
		return reflect.TypeOf(v)
	}

	return reflect.TypeFor[any]()
}

// Resolve returns the accessor for path, preferring registered getters.
func (s *Sieve[T]) Resolve(path string) (*Accessor, bool) {
	if a, ok := s.getters[strings.ToLower(strings.TrimSpace(path))]; ok {
		return a, true
	}

	return s.engine.Resolve(s.typ, path)
}

// Predicate compiles group into a function over T. Criteria on paths that do
// not resolve match everything.
func (s *Sieve[T]) Predicate(group FilterGroup) (func(T) bool, error) {
	match, err := s.engine.compile(s.typ, group, s.scope, s.Resolve)
	if err != nil {
		return nil, err
	}

	return func(item T) bool {
		return match(reflect.ValueOf(&item).Elem())
	}, nil
}

// Filter returns the elements of seq matching group. A nil seq yields nil.
func (s *Sieve[T]) Filter(seq iter.Seq[T], group FilterGroup) (iter.Seq[T], error) {
	if seq == nil {
		return nil, nil
	}

	match, err := s.Predicate(group)
	if err != nil {
		return nil, err
	}

	return func(yield func(T) bool) {
		for item := range seq {
			if match(item) && !yield(item) {
				return
			}
		}
	}, nil
}

// Sort orders seq by keys with a stable multi-key sort. Keys on unresolved
// paths are skipped and no keys leave seq untouched.
func (s *Sieve[T]) Sort(seq iter.Seq[T], keys ...SortKey) iter.Seq[T] {
	return sortSeq(seq, s.sortFields(keys))
}

// Apply filters, sorts and pages seq. With a CursorPath the cursor strategy
// orders the sequence by itself; otherwise offset paging runs over the
// sorted sequence.
func (s *Sieve[T]) Apply(seq iter.Seq[T], q Query) (iter.Seq[T], error) {
	if seq == nil {
		return nil, nil
	}

	filtered, err := s.Filter(seq, q.Filter)
	if err != nil {
		return nil, fmt.Errorf("cannot apply query: %w", err)
	}

	if q.CursorPath != "" {
		paged, err := s.CursorPaginate(filtered, q.Paging, q.CursorPath)
		if err != nil {
			return nil, fmt.Errorf("cannot apply query: %w", err)
		}
		return paged, nil
	}

	return Paginate(s.Sort(filtered, q.Sort...), q.Paging), nil
}

// Filter is Sieve.Filter on the default engine.
func Filter[T any](seq iter.Seq[T], group FilterGroup) (iter.Seq[T], error) {
	return Of[T](nil).Filter(seq, group)
}

// Sort is Sieve.Sort on the default engine.
func Sort[T any](seq iter.Seq[T], keys ...SortKey) iter.Seq[T] {
	return Of[T](nil).Sort(seq, keys...)
}
