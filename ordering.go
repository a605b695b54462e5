package gosieve

import (
	"fmt"
	"math"
	"strings"

	"github.com/samber/lo"
)

// Direction defines the sort direction for the requested dataset.
type Direction string

const (
	DirectionASC  Direction = "ASC"
	DirectionDESC Direction = "DESC"
)

func (o Direction) Valid() bool {
	return o == DirectionASC || o == DirectionDESC
}

// ForOperator maps a direction onto the strict operator a cursor walks it with.
func (o Direction) ForOperator() Operator {
	switch o {
	case DirectionASC:
		return OperatorGreaterThan
	case DirectionDESC:
		return OperatorLessThan
	default:
		panic(fmt.Errorf("cannot map direction '%s' to operator", o))
	}
}

type (
	SortKeys []SortKey
	SortKey  struct {
		Path      string    `json:"path"`
		Direction Direction `json:"direction"`
	}

	ColumnAlias = string

	// ColumnMapping maps external aliases to property paths, or to fully
	// qualified column names for SQL lowering. Use it when bare column names
	// could cause an "ambiguous column name" error.
	// Key is an external alias, value is an internal name.
	ColumnMapping = map[ColumnAlias]string
)

// Asc sorts by path in ascending order.
func Asc(path string) SortKey {
	return SortKey{Path: path, Direction: DirectionASC}
}

// Desc sorts by path in descending order.
func Desc(path string) SortKey {
	return SortKey{Path: path, Direction: DirectionDESC}
}

var _availableColumnNameSymbols = append([]rune("_.'`\""), lo.AlphanumericCharset...)

func (o SortKey) validate() error {
	if !o.Direction.Valid() {
		return fmt.Errorf("invalid ordering direction '%s'", o.Direction)
	}

	// Guard against SQL injection by restricting allowed characters in column names.
	if !lo.Every(_availableColumnNameSymbols, []rune(o.Path)) {
		return fmt.Errorf("ordering column name contains forbidden symbols '%s'", o.Path)
	}

	return nil
}

// ToSQLSlice converts SortKeys to a slice of strings in the form
// "<order_column> <order_direction>" suitable for SQL query builders.
//
// Example: for SortKeys: [{"a", "ASC"}, {"b", "DESC"}] returns ["a ASC", "b DESC"].
func (o SortKeys) ToSQLSlice() []string {
	ret := make([]string, 0, len(o))
	for _, key := range o {
		ret = append(ret, fmt.Sprintf("%s %s", key.Path, key.Direction))
	}

	return ret
}

// ToSQL converts SortKeys to a single string
// "<order_column_1> <order_direction_1>, <order_column_2> <order_direction_2>"
// suitable for embedding into an SQL query. Paths are written as they are,
// so use it with keys whose paths are column names.
//
// Usage:
//
//	query := fmt.Sprintf("SELECT * FROM table ORDER BY %s", keys.ToSQL())
func (o SortKeys) ToSQL() (string, error) {
	if err := o.validate(); err != nil {
		return "", err
	}

	return strings.Join(o.ToSQLSlice(), ", "), nil
}

func (o SortKeys) validate() error {
	if len(o) == 0 {
		return fmt.Errorf("empty ordering list")
	}

	var err error
	for _, key := range o {
		err = key.validate()
		if err != nil {
			return err
		}
	}

	return nil
}

// ParseSort builds SortKeys from a list of strings in the format
// "alias asc|desc". Aliases are resolved via ColumnMapping.
// Returns an error if an alias is not found in the mapping.
func ParseSort(stringsOrderings []string, columnMapping ColumnMapping) (SortKeys, error) {
	ret := make(SortKeys, 0, len(stringsOrderings))
	aliases := lo.Keys(columnMapping)

	for _, stringOrdering := range stringsOrderings {
		cutStringOrdering := strings.Fields(stringOrdering)
		if len(cutStringOrdering) != 2 {
			return nil, fmt.Errorf("invalid ordering string format '%s'", stringOrdering)
		}

		columnAlias := cutStringOrdering[0]
		direction := Direction(strings.ToUpper(cutStringOrdering[1]))
		if !direction.Valid() {
			return nil, fmt.Errorf("invalid ordering direction '%s'", cutStringOrdering[1])
		}

		path := columnMapping[columnAlias]
		if path == "" {
			return nil, fmt.Errorf("invalid column alias. closest: '%s'", closestAlias(columnAlias, aliases))
		}

		ret = append(ret, SortKey{
			Path:      path,
			Direction: direction,
		})
	}

	return ret, nil
}

func closestAlias(input ColumnAlias, dataSet []ColumnAlias) ColumnAlias {
	minDist := math.MaxInt
	closest := ""

	for _, dataSetAlias := range dataSet {
		dist := levenshtein([]rune(dataSetAlias), []rune(input))
		if dist < minDist || (dist == minDist && dataSetAlias < closest) {
			minDist = dist
			closest = dataSetAlias
		}
	}

	return closest
}
