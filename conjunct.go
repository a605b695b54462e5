package gosieve

import (
	"fmt"

	"gorm.io/gorm/clause"
)

// tConjunct is the single condition Operator(Column, Value) a cursor page is
// bounded with.
type tConjunct struct {
	Column   clause.Column
	Value    any
	Operator Operator
}

// toGORMExpression converts a conjunct of the form Operator(Column, Value)
// into an SQL condition "Column Operator ?" represented as a clause.Expression.
//
// Example:
//
//	tConjunct = { Column: "id", Operator: "gt", Value: 123}
//
// Result:
//
//	"`id` > 123"
func (c tConjunct) toGORMExpression() clause.Expression {
	return clause.Expr{
		SQL:  fmt.Sprintf("? %s ?", c.Operator.sqlSymbol()),
		Vars: []any{c.Column, c.Value},
	}
}
