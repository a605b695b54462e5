package gosieve

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Operator_Valid_And_ForOrdering(t *testing.T) {
	tests := []struct {
		name     string
		in       Operator
		valid    bool
		ordering Direction
		panicExp bool
	}{
		{"GT valid maps to ASC", OperatorGreaterThan, true, DirectionASC, false},
		{"LT valid maps to DESC", OperatorLessThan, true, DirectionDESC, false},
		{"EQ valid has no ordering", OperatorEqualTo, true, "", true},
		{"unknown is invalid", Operator("like"), false, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Valid(); got != tt.valid {
				t.Errorf("%s: Valid=%v want %v", tt.name, got, tt.valid)
			}
			if tt.panicExp {
				require.Panics(t, func() { tt.in.ForOrdering() })
				return
			}
			if got := tt.in.ForOrdering(); got != tt.ordering {
				t.Errorf("%s: ForOrdering=%v want %v", tt.name, got, tt.ordering)
			}
		})
	}
}

func Test_Operators(t *testing.T) {
	ops := Operators()
	require.Len(t, ops, 17)
	for _, op := range ops {
		require.True(t, op.Valid(), op)
	}

	// The returned slice is a copy.
	ops[0] = "bogus"
	require.Equal(t, OperatorEqualTo, Operators()[0])
}

func Test_Operator_sqlSymbol(t *testing.T) {
	tests := []struct {
		in   Operator
		want string
	}{
		{OperatorEqualTo, "="},
		{OperatorNotEqualTo, "<>"},
		{OperatorGreaterThan, ">"},
		{OperatorLessThan, "<"},
		{OperatorGreaterThanOrEqualTo, ">="},
		{OperatorLessThanOrEqualTo, "<="},
	}
	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			require.Equal(t, tt.want, tt.in.sqlSymbol())
		})
	}

	require.Panics(t, func() { OperatorBetween.sqlSymbol() })
}

func Test_Operator_satisfied(t *testing.T) {
	tests := []struct {
		op   Operator
		cmp  int
		want bool
	}{
		{OperatorEqualTo, 0, true},
		{OperatorEqualTo, 1, false},
		{OperatorNotEqualTo, -1, true},
		{OperatorGreaterThan, 1, true},
		{OperatorGreaterThan, 0, false},
		{OperatorGreaterThanOrEqualTo, 0, true},
		{OperatorLessThan, -1, true},
		{OperatorLessThanOrEqualTo, 1, false},
		{OperatorIn, 0, false},
	}
	for _, tt := range tests {
		if got := tt.op.satisfied(tt.cmp); got != tt.want {
			t.Errorf("%s(%d): got %v want %v", tt.op, tt.cmp, got, tt.want)
		}
	}
}
