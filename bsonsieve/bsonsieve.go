// Package bsonsieve lowers gosieve filter trees, sort keys and paging
// descriptors into MongoDB query documents and find options.
//
// Field names follow the encoding rules of the mongo driver: the bson tag
// name when present, otherwise the lower-cased Go field name. Inline embedded
// structs add no path element. Paths mapped with Sieve.WithColumns are used
// as they are.
//
//	filter, opts, err := bsonsieve.Find(users, query)
//	if err != nil {
//		return err
//	}
//	cur, err := coll.Find(ctx, filter, opts)
package bsonsieve

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/Alp4ka/gosieve"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Filter lowers group into a query document. Criteria on paths that neither
// resolve nor are mapped are skipped; a filter without restrictions is an
// empty document.
func Filter[T any](s *gosieve.Sieve[T], group gosieve.FilterGroup) (bson.M, error) {
	expr, err := gosieve.BuildExpr(group)
	if err != nil {
		return nil, fmt.Errorf("cannot build mongo filter: %w", err)
	}

	doc, err := gosieve.Lower[bson.M](expr, &lowering[T]{sieve: s})
	if err != nil {
		return nil, fmt.Errorf("cannot build mongo filter: %w", err)
	}
	if doc == nil {
		return bson.M{}, nil
	}

	return doc, nil
}

// Sort lowers keys into a sort document. Keys on unknown paths are skipped.
func Sort[T any](s *gosieve.Sieve[T], keys ...gosieve.SortKey) (bson.D, error) {
	ret := make(bson.D, 0, len(keys))
	for _, key := range keys {
		if !key.Direction.Valid() {
			return nil, fmt.Errorf("invalid ordering direction '%s'", key.Direction)
		}

		f, ok := field(s, key.Path)
		if !ok {
			continue
		}

		ret = append(ret, bson.E{Key: f.name, Value: lo.Ternary(key.Direction == gosieve.DirectionDESC, -1, 1)})
	}

	return ret, nil
}

// Find lowers q into a query document and the find options that sort and
// page it. With a cursor path the documents are ordered by that field, the
// Before cursor reading downwards and the After cursor upwards, and documents
// where the field is null are left out. Otherwise q.Sort orders the documents
// and q.Paging applies as skip and limit.
func Find[T any](s *gosieve.Sieve[T], q gosieve.Query) (bson.M, *options.FindOptions, error) {
	filter, err := Filter(s, q.Filter)
	if err != nil {
		return nil, nil, err
	}

	opts := options.Find()
	if !q.Paging.IsUnbounded() {
		opts.SetLimit(int64(q.Paging.Limit))
	}

	if q.CursorPath == "" {
		sort, err := Sort(s, q.Sort...)
		if err != nil {
			return nil, nil, err
		}
		if len(sort) > 0 {
			opts.SetSort(sort)
		}
		if q.Paging.Offset > 0 {
			opts.SetSkip(int64(q.Paging.Offset))
		}

		return filter, opts, nil
	}

	f, ok := field(s, q.CursorPath)
	if !ok {
		return nil, nil, fmt.Errorf("cannot page mongo query: %w: cursor path '%s' has no field",
			gosieve.ErrMissingArgument, q.CursorPath)
	}

	bound := bson.M{"$ne": nil}
	order := 1
	if raw, before := q.Paging.Cursor(); raw != "" {
		if v, err := f.value(raw); err == nil {
			op := lo.Ternary(before, gosieve.OperatorLessThan, gosieve.OperatorGreaterThan)
			bound = bson.M{_comparisonOperators[op]: v}
			order = lo.Ternary(op.ForOrdering() == gosieve.DirectionDESC, -1, 1)
		}
	}
	opts.SetSort(bson.D{{Key: f.name, Value: order}})

	cond := bson.M{f.name: bound}
	if len(filter) == 0 {
		return cond, opts, nil
	}

	return bson.M{"$and": bson.A{filter, cond}}, opts, nil
}

type docField struct {
	name     string
	accessor *gosieve.Accessor
}

func (f docField) static() bool {
	return f.accessor != nil && !f.accessor.Dynamic()
}

// value coerces a literal into the field's property type.
func (f docField) value(raw any) (any, error) {
	if !f.static() || raw == nil {
		return raw, nil
	}

	v, err := gosieve.Coerce(raw, elemType(f.accessor.Type()))
	if err != nil {
		return nil, fmt.Errorf("cannot use value for '%s': %w", f.accessor.Path(), err)
	}

	return v, nil
}

func field[T any](s *gosieve.Sieve[T], path string) (docField, bool) {
	a, resolved := s.Resolve(path)

	if mapped, ok := s.Column(path); ok {
		return docField{name: mapped, accessor: a}, true
	}
	if !resolved {
		return docField{}, false
	}

	return docField{name: fieldName(reflect.TypeFor[T](), a), accessor: a}, true
}

// fieldName renders the dotted document path of a. Hops that are not struct
// fields, and hops past an interface, are written as given.
func fieldName(root reflect.Type, a *gosieve.Accessor) string {
	var (
		parts    = strings.Split(a.Path(), ".")
		segments = a.Segments()
		keys     = make([]string, 0, len(parts))
		cur      = root
	)

	for i, part := range parts {
		if i >= len(segments) {
			keys = append(keys, strings.TrimSpace(part))
			continue
		}

		seg := segments[i]
		if seg.Field == nil || cur == nil {
			keys = append(keys, seg.Name)
			cur = nil
			continue
		}

		t := elemType(cur)
		for _, idx := range seg.Field.Index[:len(seg.Field.Index)-1] {
			embedded := t.Field(idx)
			if key, inline := fieldKey(embedded); !inline {
				keys = append(keys, key)
			}
			t = elemType(embedded.Type)
		}

		key, _ := fieldKey(*seg.Field)
		keys = append(keys, key)
		cur = seg.Field.Type
	}

	return strings.Join(keys, ".")
}

func fieldKey(f reflect.StructField) (string, bool) {
	name, opts, _ := strings.Cut(f.Tag.Get("bson"), ",")
	if name == "" || name == "-" {
		name = strings.ToLower(f.Name)
	}

	return name, lo.Contains(strings.Split(opts, ","), "inline")
}

func elemType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	return t
}

var _timeType = reflect.TypeFor[time.Time]()

func orderable(t reflect.Type) bool {
	t = elemType(t)
	switch t.Kind() {
	case reflect.Bool, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return false
	case reflect.Struct:
		return t == _timeType
	default:
		return true
	}
}

func isSequence(t reflect.Type) bool {
	t = elemType(t)
	switch t.Kind() {
	case reflect.Slice:
		return t.Elem().Kind() != reflect.Uint8
	case reflect.Array:
		return t.Elem().Kind() != reflect.Uint8
	default:
		return false
	}
}

var _comparisonOperators = map[gosieve.Operator]string{
	gosieve.OperatorNotEqualTo:           "$ne",
	gosieve.OperatorGreaterThan:          "$gt",
	gosieve.OperatorLessThan:             "$lt",
	gosieve.OperatorGreaterThanOrEqualTo: "$gte",
	gosieve.OperatorLessThanOrEqualTo:    "$lte",
}

// lowering is a gosieve.Visitor producing query documents. A nil document
// places no restriction.
type lowering[T any] struct {
	sieve *gosieve.Sieve[T]
}

func (l *lowering[T]) VisitAlways() (bson.M, error) {
	return nil, nil
}

func (l *lowering[T]) VisitComparison(c gosieve.Comparison) (bson.M, error) {
	f, ok := field(l.sieve, c.Path)
	if !ok {
		return nil, nil
	}

	ordering := c.Operator != gosieve.OperatorEqualTo && c.Operator != gosieve.OperatorNotEqualTo
	if ordering && c.Value == nil {
		return nil, fmt.Errorf("%w: operator '%s' on '%s' cannot compare with null",
			gosieve.ErrUnsupportedOperation, c.Operator, c.Path)
	}
	if ordering && f.static() && !orderable(f.accessor.Type()) {
		return nil, fmt.Errorf("%w: operator '%s' on '%s' of type %s",
			gosieve.ErrUnsupportedOperation, c.Operator, c.Path, f.accessor.Type())
	}

	v, err := f.value(c.Value)
	if err != nil {
		return nil, err
	}

	if c.Operator == gosieve.OperatorEqualTo {
		return bson.M{f.name: v}, nil
	}

	op, ok := _comparisonOperators[c.Operator]
	if !ok {
		panic(fmt.Errorf("unexpected comparison operator '%s'", c.Operator))
	}

	return bson.M{f.name: bson.M{op: v}}, nil
}

func (l *lowering[T]) VisitRange(r gosieve.Range) (bson.M, error) {
	f, ok := field(l.sieve, r.Path)
	if !ok {
		return nil, nil
	}

	if f.static() && !orderable(f.accessor.Type()) {
		return nil, fmt.Errorf("%w: range on '%s' of type %s", gosieve.ErrUnsupportedOperation, r.Path, f.accessor.Type())
	}

	low, err := f.value(r.Low)
	if err != nil {
		return nil, err
	}
	high, err := f.value(r.High)
	if err != nil {
		return nil, err
	}

	if r.Negated {
		return bson.M{"$or": bson.A{
			bson.M{f.name: bson.M{"$lt": low}},
			bson.M{f.name: bson.M{"$gt": high}},
		}}, nil
	}

	return bson.M{f.name: bson.M{"$gt": low, "$lt": high}}, nil
}

// VisitMembership relies on $in matching null and missing fields when the
// list holds null, and on $nin matching them when it does not.
func (l *lowering[T]) VisitMembership(m gosieve.Membership) (bson.M, error) {
	f, ok := field(l.sieve, m.Path)
	if !ok {
		return nil, nil
	}

	values := make(bson.A, 0, len(m.Values))
	for _, raw := range m.Values {
		v, err := f.value(raw)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}

	return bson.M{f.name: bson.M{lo.Ternary(m.Negated, "$nin", "$in"): values}}, nil
}

func (l *lowering[T]) VisitStringMatch(sm gosieve.StringMatch) (bson.M, error) {
	f, ok := field(l.sieve, sm.Path)
	if !ok {
		return nil, nil
	}

	needle := regexp.QuoteMeta(fmt.Sprint(sm.Value))
	pattern := "^" + needle
	if sm.Operator == gosieve.OperatorEndsWith {
		pattern = needle + "$"
	}

	return bson.M{f.name: primitive.Regex{Pattern: pattern, Options: "i"}}, nil
}

func (l *lowering[T]) VisitContainment(c gosieve.Containment) (bson.M, error) {
	f, ok := field(l.sieve, c.Path)
	if !ok {
		return nil, nil
	}

	if f.static() && isSequence(f.accessor.Type()) {
		elem, err := gosieve.Coerce(c.Value, elemType(elemType(f.accessor.Type()).Elem()))
		if err != nil {
			return nil, fmt.Errorf("cannot use value for '%s': %w", c.Path, err)
		}
		if c.Negated {
			return bson.M{f.name: bson.M{"$ne": elem}}, nil
		}
		return bson.M{f.name: elem}, nil
	}

	re := primitive.Regex{Pattern: regexp.QuoteMeta(fmt.Sprint(c.Value)), Options: "i"}
	if c.Negated {
		return bson.M{f.name: bson.M{"$not": re}}, nil
	}

	return bson.M{f.name: re}, nil
}

func (l *lowering[T]) VisitNullCheck(n gosieve.NullCheck) (bson.M, error) {
	f, ok := field(l.sieve, n.Path)
	if !ok {
		return nil, nil
	}

	if n.Negated {
		return bson.M{f.name: bson.M{"$ne": nil}}, nil
	}

	return bson.M{f.name: nil}, nil
}

func (l *lowering[T]) VisitPatternMatch(p gosieve.PatternMatch) (bson.M, error) {
	f, ok := field(l.sieve, p.Path)
	if !ok {
		return nil, nil
	}

	return bson.M{f.name: primitive.Regex{Pattern: p.Pattern.String()}}, nil
}

func (l *lowering[T]) VisitComposite(c gosieve.Composite, children []bson.M) (bson.M, error) {
	if c.Conjunction == gosieve.ConjunctionOr && lo.ContainsBy(children, func(doc bson.M) bool { return doc == nil }) {
		return nil, nil
	}

	docs := lo.Filter(children, func(doc bson.M, _ int) bool {
		return doc != nil
	})

	switch len(docs) {
	case 0:
		return nil, nil
	case 1:
		return docs[0], nil
	}

	return bson.M{lo.Ternary(c.Conjunction == gosieve.ConjunctionOr, "$or", "$and"): bson.A(lo.ToAnySlice(docs))}, nil
}

var _ gosieve.Visitor[bson.M] = (*lowering[struct{}])(nil)
