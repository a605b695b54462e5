package gosieve

import (
	"fmt"
	"reflect"
	"regexp"

	"github.com/samber/lo"
)

// handler turns one filter criterion into an IR fragment. Every operator is
// serviced by exactly one handler.
type handler interface {
	Operators() []Operator
	Build(c FilterCriterion) (Expr, error)
}

type (
	equalityHandler      struct{}
	comparisonHandler    struct{}
	rangeHandler         struct{}
	membershipHandler    struct{}
	stringPatternHandler struct{}
	containmentHandler   struct{}
	nullCheckHandler     struct{}
	patternMatchHandler  struct{}
)

func (equalityHandler) Operators() []Operator {
	return []Operator{OperatorEqualTo, OperatorNotEqualTo}
}

func (h equalityHandler) Build(c FilterCriterion) (Expr, error) {
	mustService(h, c)
	if err := requireArity(c, 1); err != nil {
		return nil, err
	}

	return Comparison{Path: c.Path, Operator: c.Operator, Value: c.Values[0]}, nil
}

func (comparisonHandler) Operators() []Operator {
	return []Operator{
		OperatorGreaterThan,
		OperatorLessThan,
		OperatorGreaterThanOrEqualTo,
		OperatorLessThanOrEqualTo,
	}
}

func (h comparisonHandler) Build(c FilterCriterion) (Expr, error) {
	mustService(h, c)
	if err := requireArity(c, 1); err != nil {
		return nil, err
	}

	return Comparison{Path: c.Path, Operator: c.Operator, Value: c.Values[0]}, nil
}

func (rangeHandler) Operators() []Operator {
	return []Operator{OperatorBetween, OperatorNotBetween}
}

func (h rangeHandler) Build(c FilterCriterion) (Expr, error) {
	mustService(h, c)
	if len(c.Values) != 2 {
		return nil, fmt.Errorf("%w: operator '%s' on '%s' expects exactly 2 values, got %d",
			ErrUnsupportedOperation, c.Operator, c.Path, len(c.Values))
	}
	if isNil(c.Values[0]) || isNil(c.Values[1]) {
		return nil, fmt.Errorf("%w: operator '%s' on '%s' requires non-null bounds",
			ErrUnsupportedOperation, c.Operator, c.Path)
	}

	return Range{
		Path:    c.Path,
		Negated: c.Operator == OperatorNotBetween,
		Low:     c.Values[0],
		High:    c.Values[1],
	}, nil
}

func (membershipHandler) Operators() []Operator {
	return []Operator{OperatorIn, OperatorNotIn}
}

func (h membershipHandler) Build(c FilterCriterion) (Expr, error) {
	mustService(h, c)

	return Membership{
		Path:    c.Path,
		Negated: c.Operator == OperatorNotIn,
		Values:  flattenValues(c.Values),
	}, nil
}

func (stringPatternHandler) Operators() []Operator {
	return []Operator{OperatorStartsWith, OperatorEndsWith}
}

func (h stringPatternHandler) Build(c FilterCriterion) (Expr, error) {
	mustService(h, c)
	if err := requireNonNullArgument(c); err != nil {
		return nil, err
	}

	return StringMatch{Path: c.Path, Operator: c.Operator, Value: c.Values[0]}, nil
}

func (containmentHandler) Operators() []Operator {
	return []Operator{OperatorContains, OperatorNotContains}
}

func (h containmentHandler) Build(c FilterCriterion) (Expr, error) {
	mustService(h, c)
	if err := requireNonNullArgument(c); err != nil {
		return nil, err
	}

	return Containment{
		Path:    c.Path,
		Negated: c.Operator == OperatorNotContains,
		Value:   c.Values[0],
	}, nil
}

func (nullCheckHandler) Operators() []Operator {
	return []Operator{OperatorIsNull, OperatorIsNotNull}
}

func (h nullCheckHandler) Build(c FilterCriterion) (Expr, error) {
	mustService(h, c)

	return NullCheck{Path: c.Path, Negated: c.Operator == OperatorIsNotNull}, nil
}

func (patternMatchHandler) Operators() []Operator {
	return []Operator{OperatorRegex}
}

func (h patternMatchHandler) Build(c FilterCriterion) (Expr, error) {
	mustService(h, c)
	if err := requireNonNullArgument(c); err != nil {
		return nil, err
	}

	pattern := fmt.Sprint(c.Values[0])
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid pattern for '%s': %w", ErrFormat, c.Path, err)
	}

	return PatternMatch{Path: c.Path, Pattern: re}, nil
}

var _handlers = []handler{
	equalityHandler{},
	comparisonHandler{},
	rangeHandler{},
	membershipHandler{},
	stringPatternHandler{},
	containmentHandler{},
	nullCheckHandler{},
	patternMatchHandler{},
}

type dispatchTable map[Operator]handler

// newDispatchTable indexes handlers by operator. A known operator serviced by
// zero or several handlers is a programming error.
func newDispatchTable(handlers ...handler) dispatchTable {
	table := make(dispatchTable, len(_operators))
	for _, h := range handlers {
		for _, op := range h.Operators() {
			if prev, dup := table[op]; dup {
				panic(fmt.Errorf("operator '%s' is serviced by both %T and %T", op, prev, h))
			}
			table[op] = h
		}
	}

	for _, op := range _operators {
		if _, ok := table[op]; !ok {
			panic(fmt.Errorf("operator '%s' has no handler", op))
		}
	}

	return table
}

var _dispatch = newDispatchTable(_handlers...)

func (t dispatchTable) build(c FilterCriterion) (Expr, error) {
	if !c.Operator.Valid() {
		return nil, fmt.Errorf("%w '%s' on '%s'", ErrUnknownOperator, c.Operator, c.Path)
	}

	return t[c.Operator].Build(c)
}

func mustService(h handler, c FilterCriterion) {
	if !lo.Contains(h.Operators(), c.Operator) {
		panic(fmt.Errorf("%T cannot service operator '%s'", h, c.Operator))
	}
}

func requireArity(c FilterCriterion, n int) error {
	switch {
	case len(c.Values) < n:
		return fmt.Errorf("%w: operator '%s' on '%s' expects %d value(s), got %d",
			ErrMissingArgument, c.Operator, c.Path, n, len(c.Values))
	case len(c.Values) > n:
		return fmt.Errorf("%w: operator '%s' on '%s' expects %d value(s), got %d",
			ErrUnsupportedOperation, c.Operator, c.Path, n, len(c.Values))
	}

	return nil
}

func requireNonNullArgument(c FilterCriterion) error {
	if err := requireArity(c, 1); err != nil {
		return err
	}
	if isNil(c.Values[0]) {
		return fmt.Errorf("%w: operator '%s' on '%s' requires a non-null value",
			ErrMissingArgument, c.Operator, c.Path)
	}

	return nil
}

// flattenValues expands a single slice argument, so that both
// Where(p, In, "a", "b") and Where(p, In, []string{"a", "b"}) work.
func flattenValues(values []any) []any {
	if len(values) != 1 || values[0] == nil {
		return values
	}

	rv := reflect.ValueOf(values[0])
	if (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) || rv.Type().Elem().Kind() == reflect.Uint8 {
		return values
	}

	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}

	return out
}

func isNil(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
