package gosieve

import (
	"fmt"
	"reflect"
	"strings"
)

// predicate tests one element. Elements are passed as addressable values.
type predicate func(v reflect.Value) bool

func alwaysTrue(reflect.Value) bool { return true }

// operand is a filter literal coerced into the type of the property it is
// compared with. For dynamic properties the coercion happens per element,
// against the runtime type.
type operand struct {
	raw     any
	static  reflect.Value
	dynamic bool
}

func newOperand(a *Accessor, raw any) (operand, error) {
	if a.Dynamic() {
		return operand{raw: raw, dynamic: true}, nil
	}

	v, err := coerce(raw, baseType(a.Type()))
	if err != nil {
		return operand{}, fmt.Errorf("cannot use value for '%s': %w", a.Path(), err)
	}

	return operand{raw: raw, static: v}, nil
}

// against returns the operand to compare with got. It reports false when a
// dynamic literal cannot be coerced into the runtime type of got.
func (o operand) against(got reflect.Value) (reflect.Value, bool) {
	if !o.dynamic {
		return o.static, true
	}

	v, err := coerce(o.raw, got.Type())
	if err != nil {
		return reflect.Value{}, false
	}

	return v, true
}

// read returns the dereferenced property value, false for null.
func read(a *Accessor, v reflect.Value) (reflect.Value, bool) {
	got, ok := a.value(v)
	if !ok {
		return reflect.Value{}, false
	}

	return indirect(got)
}

// predicateBuilder lowers the IR into in-memory predicates over elements of
// typ.
type predicateBuilder struct {
	engine  *Engine
	typ     reflect.Type
	resolve func(path string) (*Accessor, bool)
}

func (b *predicateBuilder) accessor(path string) (*Accessor, bool) {
	a, ok := b.resolve(path)
	if !ok {
		b.engine.logger.Debug("filter on unresolved path skipped", "type", b.typ.String(), "path", path)
	}

	return a, ok
}

func (b *predicateBuilder) VisitAlways() (predicate, error) {
	return alwaysTrue, nil
}

func (b *predicateBuilder) VisitComparison(c Comparison) (predicate, error) {
	a, ok := b.accessor(c.Path)
	if !ok {
		return alwaysTrue, nil
	}

	if isNil(c.Value) {
		switch c.Operator {
		case OperatorEqualTo:
			return func(v reflect.Value) bool {
				_, ok := read(a, v)
				return !ok
			}, nil
		case OperatorNotEqualTo:
			return func(v reflect.Value) bool {
				_, ok := read(a, v)
				return ok
			}, nil
		default:
			return nil, fmt.Errorf("%w: operator '%s' on '%s' cannot compare with null",
				ErrUnsupportedOperation, c.Operator, c.Path)
		}
	}

	if c.Operator.isOrdering() && !a.Dynamic() && !orderable(a.Type()) {
		return nil, fmt.Errorf("%w: operator '%s' on '%s' of type %s",
			ErrUnsupportedOperation, c.Operator, c.Path, a.Type())
	}

	lit, err := newOperand(a, c.Value)
	if err != nil {
		return nil, err
	}

	op := c.Operator
	return func(v reflect.Value) bool {
		got, ok := read(a, v)
		if !ok {
			return op == OperatorNotEqualTo
		}
		want, ok := lit.against(got)
		if !ok {
			return op == OperatorNotEqualTo
		}

		switch op {
		case OperatorEqualTo:
			return equalValues(got, want)
		case OperatorNotEqualTo:
			return !equalValues(got, want)
		}

		cmp, err := compareValues(got, want)
		return err == nil && op.satisfied(cmp)
	}, nil
}

func (b *predicateBuilder) VisitRange(r Range) (predicate, error) {
	a, ok := b.accessor(r.Path)
	if !ok {
		return alwaysTrue, nil
	}

	if !a.Dynamic() && !orderable(a.Type()) {
		return nil, fmt.Errorf("%w: range on '%s' of type %s", ErrUnsupportedOperation, r.Path, a.Type())
	}

	low, err := newOperand(a, r.Low)
	if err != nil {
		return nil, err
	}
	high, err := newOperand(a, r.High)
	if err != nil {
		return nil, err
	}

	return func(v reflect.Value) bool {
		got, ok := read(a, v)
		if !ok {
			return false
		}

		lo, okLo := low.against(got)
		hi, okHi := high.against(got)
		if !okLo || !okHi {
			return false
		}

		cmpLo, errLo := compareValues(got, lo)
		cmpHi, errHi := compareValues(got, hi)
		if errLo != nil || errHi != nil {
			return false
		}

		if r.Negated {
			return cmpLo < 0 || cmpHi > 0
		}

		return cmpLo > 0 && cmpHi < 0
	}, nil
}

func (b *predicateBuilder) VisitMembership(m Membership) (predicate, error) {
	a, ok := b.accessor(m.Path)
	if !ok {
		return alwaysTrue, nil
	}

	var (
		operands = make([]operand, 0, len(m.Values))
		withNull bool
	)
	for _, raw := range m.Values {
		if isNil(raw) {
			withNull = true
			continue
		}

		lit, err := newOperand(a, raw)
		if err != nil {
			return nil, err
		}
		operands = append(operands, lit)
	}

	return func(v reflect.Value) bool {
		got, ok := read(a, v)
		if !ok {
			return withNull != m.Negated
		}

		found := false
		for _, lit := range operands {
			want, ok := lit.against(got)
			if ok && equalValues(got, want) {
				found = true
				break
			}
		}

		return found != m.Negated
	}, nil
}

func (b *predicateBuilder) VisitStringMatch(s StringMatch) (predicate, error) {
	a, ok := b.accessor(s.Path)
	if !ok {
		return alwaysTrue, nil
	}

	needle := strings.ToLower(stringify(reflect.ValueOf(s.Value)))
	match := strings.HasPrefix
	if s.Operator == OperatorEndsWith {
		match = strings.HasSuffix
	}

	return func(v reflect.Value) bool {
		got, ok := read(a, v)
		if !ok {
			return false
		}

		return match(strings.ToLower(stringify(got)), needle)
	}, nil
}

func (b *predicateBuilder) VisitContainment(c Containment) (predicate, error) {
	a, ok := b.accessor(c.Path)
	if !ok {
		return alwaysTrue, nil
	}

	needle := strings.ToLower(stringify(reflect.ValueOf(c.Value)))
	elem := operand{raw: c.Value, dynamic: true}
	if !a.Dynamic() && isSequence(a.Type()) {
		ev, err := coerce(c.Value, baseType(baseType(a.Type()).Elem()))
		if err != nil {
			return nil, fmt.Errorf("cannot use value for '%s': %w", c.Path, err)
		}
		elem = operand{raw: c.Value, static: ev}
	}

	contains := func(got reflect.Value) bool {
		if !isSequence(got.Type()) {
			return strings.Contains(strings.ToLower(stringify(got)), needle)
		}

		for i := 0; i < got.Len(); i++ {
			item, ok := indirect(got.Index(i))
			if !ok {
				continue
			}
			if want, ok := elem.against(item); ok && equalValues(item, want) {
				return true
			}
		}

		return false
	}

	return func(v reflect.Value) bool {
		got, ok := read(a, v)
		if !ok {
			return c.Negated
		}

		return contains(got) != c.Negated
	}, nil
}

func (b *predicateBuilder) VisitNullCheck(n NullCheck) (predicate, error) {
	a, ok := b.accessor(n.Path)
	if !ok {
		return alwaysTrue, nil
	}

	return func(v reflect.Value) bool {
		_, ok := read(a, v)
		return ok == n.Negated
	}, nil
}

func (b *predicateBuilder) VisitPatternMatch(p PatternMatch) (predicate, error) {
	a, ok := b.accessor(p.Path)
	if !ok {
		return alwaysTrue, nil
	}

	return func(v reflect.Value) bool {
		got, ok := read(a, v)
		if !ok {
			return false
		}

		return p.Pattern.MatchString(stringify(got))
	}, nil
}

func (b *predicateBuilder) VisitComposite(c Composite, children []predicate) (predicate, error) {
	switch len(children) {
	case 0:
		return alwaysTrue, nil
	case 1:
		return children[0], nil
	}

	if c.Conjunction.orDefault() == ConjunctionOr {
		return func(v reflect.Value) bool {
			for _, child := range children {
				if child(v) {
					return true
				}
			}
			return false
		}, nil
	}

	return func(v reflect.Value) bool {
		for _, child := range children {
			if !child(v) {
				return false
			}
		}
		return true
	}, nil
}

var _ Visitor[predicate] = (*predicateBuilder)(nil)
