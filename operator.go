package gosieve

import (
	"fmt"

	"github.com/samber/lo"
)

// Operator defines the comparison applied by a single filter criterion.
type Operator string

const (
	OperatorEqualTo              Operator = "eq"
	OperatorNotEqualTo           Operator = "ne"
	OperatorGreaterThan          Operator = "gt"
	OperatorLessThan             Operator = "lt"
	OperatorGreaterThanOrEqualTo Operator = "gte"
	OperatorLessThanOrEqualTo    Operator = "lte"
	OperatorBetween              Operator = "between"
	OperatorNotBetween           Operator = "notBetween"
	OperatorIn                   Operator = "in"
	OperatorNotIn                Operator = "notIn"
	OperatorContains             Operator = "contains"
	OperatorNotContains          Operator = "notContains"
	OperatorStartsWith           Operator = "startsWith"
	OperatorEndsWith             Operator = "endsWith"
	OperatorIsNull               Operator = "isNull"
	OperatorIsNotNull            Operator = "isNotNull"
	OperatorRegex                Operator = "regex"
)

var _operators = []Operator{
	OperatorEqualTo,
	OperatorNotEqualTo,
	OperatorGreaterThan,
	OperatorLessThan,
	OperatorGreaterThanOrEqualTo,
	OperatorLessThanOrEqualTo,
	OperatorBetween,
	OperatorNotBetween,
	OperatorIn,
	OperatorNotIn,
	OperatorContains,
	OperatorNotContains,
	OperatorStartsWith,
	OperatorEndsWith,
	OperatorIsNull,
	OperatorIsNotNull,
	OperatorRegex,
}

// Operators returns every known operator.
func Operators() []Operator {
	return append([]Operator(nil), _operators...)
}

func (o Operator) Valid() bool {
	return lo.Contains(_operators, o)
}

// ForOrdering maps a strict cursor operator onto the ordering it walks.
func (o Operator) ForOrdering() Direction {
	switch o {
	case OperatorGreaterThan:
		return DirectionASC
	case OperatorLessThan:
		return DirectionDESC
	default:
		panic(fmt.Errorf("cannot map operator '%s' to ordering", o))
	}
}

// sqlSymbol is the infix SQL operator for the plain comparison operators.
func (o Operator) sqlSymbol() string {
	switch o {
	case OperatorEqualTo:
		return "="
	case OperatorNotEqualTo:
		return "<>"
	case OperatorGreaterThan:
		return ">"
	case OperatorLessThan:
		return "<"
	case OperatorGreaterThanOrEqualTo:
		return ">="
	case OperatorLessThanOrEqualTo:
		return "<="
	default:
		panic(fmt.Errorf("operator '%s' has no infix SQL form", o))
	}
}

func (o Operator) isOrdering() bool {
	return o == OperatorGreaterThan ||
		o == OperatorLessThan ||
		o == OperatorGreaterThanOrEqualTo ||
		o == OperatorLessThanOrEqualTo
}

// satisfied reports whether a three-way comparison result satisfies o.
func (o Operator) satisfied(cmp int) bool {
	switch o {
	case OperatorEqualTo:
		return cmp == 0
	case OperatorNotEqualTo:
		return cmp != 0
	case OperatorGreaterThan:
		return cmp > 0
	case OperatorLessThan:
		return cmp < 0
	case OperatorGreaterThanOrEqualTo:
		return cmp >= 0
	case OperatorLessThanOrEqualTo:
		return cmp <= 0
	default:
		return false
	}
}
