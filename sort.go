package gosieve

import (
	"iter"
	"reflect"
	"slices"
	"strings"
)

type sortField struct {
	accessor *Accessor
	desc     bool
}

// sortFields resolves keys in order, skipping the ones whose path does not
// resolve.
func (s *Sieve[T]) sortFields(keys []SortKey) []sortField {
	fields := make([]sortField, 0, len(keys))
	for _, key := range keys {
		a, ok := s.Resolve(key.Path)
		if !ok {
			s.engine.logger.Debug("sort key on unresolved path skipped", "type", s.typ.String(), "path", key.Path)
			continue
		}

		fields = append(fields, sortField{
			accessor: a,
			desc:     strings.EqualFold(string(key.Direction), string(DirectionDESC)),
		})
	}

	return fields
}

type sortRow[T any] struct {
	item    T
	values  []reflect.Value
	present []bool
}

// sortSeq orders seq by fields. The first field is the primary order and
// later ones break ties; elements equal on every field keep their input
// order.
func sortSeq[T any](seq iter.Seq[T], fields []sortField) iter.Seq[T] {
	if seq == nil {
		return nil
	}
	if len(fields) == 0 {
		return seq
	}

	return func(yield func(T) bool) {
		var rows []sortRow[T]
		for item := range seq {
			row := sortRow[T]{
				item:    item,
				values:  make([]reflect.Value, len(fields)),
				present: make([]bool, len(fields)),
			}
			elem := reflect.ValueOf(&row.item).Elem()
			for i, f := range fields {
				row.values[i], row.present[i] = read(f.accessor, elem)
			}
			rows = append(rows, row)
		}

		slices.SortStableFunc(rows, func(a, b sortRow[T]) int {
			for i, f := range fields {
				c := compareSortValues(a.values[i], a.present[i], b.values[i], b.present[i])
				if f.desc {
					c = -c
				}
				if c != 0 {
					return c
				}
			}
			return 0
		})

		for _, row := range rows {
			if !yield(row.item) {
				return
			}
		}
	}
}

// compareSortValues orders nulls first. Values without a natural order are
// compared by their textual form.
func compareSortValues(a reflect.Value, okA bool, b reflect.Value, okB bool) int {
	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return -1
	case !okB:
		return 1
	}

	if c, err := compareValues(a, b); err == nil {
		return c
	}

	return strings.Compare(stringify(a), stringify(b))
}
