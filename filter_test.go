package gosieve

import (
	"encoding/json"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterGroup_UnmarshalJSON(t *testing.T) {
	payload := `{
		"conjunction": "OR",
		"children": [
			{"path": "Age", "operator": "gt", "values": [30]},
			null,
			{"children": [
				{"path": "Email", "operator": "isNotNull"},
				{"path": "Role", "operator": "in", "values": ["admin", "user"]}
			]}
		]
	}`

	var got FilterGroup
	require.NoError(t, json.Unmarshal([]byte(payload), &got))

	want := Or(
		Where("Age", OperatorGreaterThan, 30.0),
		nil,
		FilterGroup{Children: []FilterNode{
			FilterCriterion{Path: "Email", Operator: OperatorIsNotNull},
			Where("Role", OperatorIn, "admin", "user"),
		}},
	)
	require.Equal(t, want, got)

	seq, err := Of[tUser](New()).Filter(slices.Values(fixtureUsers()), got)
	require.NoError(t, err)
	require.Equal(t, []uint{1, 3}, ids(slices.Collect(seq)))
}

func TestFilterGroup_UnmarshalJSON_enumNumbers(t *testing.T) {
	var group FilterGroup
	require.NoError(t, json.Unmarshal([]byte(`{"children": [{"path": "Role", "operator": "eq", "values": [2]}]}`), &group))

	seq, err := Of[tUser](New()).Filter(slices.Values(fixtureUsers()), group)
	require.NoError(t, err)

	var want []uint
	for _, u := range fixtureUsers() {
		if u.Role == roleAdmin {
			want = append(want, u.ID)
		}
	}
	require.NotEmpty(t, want)
	require.Equal(t, want, ids(slices.Collect(seq)))
}

func TestFilterGroup_UnmarshalJSON_roundTrip(t *testing.T) {
	group := And(
		Where("Name", OperatorStartsWith, "a"),
		Or(Where("Age", OperatorBetween, 18.0, 30.0), Where("Email", OperatorIsNull)),
	)

	data, err := json.Marshal(group)
	require.NoError(t, err)

	var got FilterGroup
	require.NoError(t, json.Unmarshal(data, &got))

	want, ok := group.shape()
	require.True(t, ok)
	shape, ok := got.shape()
	require.True(t, ok)
	require.Equal(t, want, shape)
}

func TestFilterGroup_UnmarshalJSON_errors(t *testing.T) {
	for _, payload := range []string{
		`[]`,
		`{"children": [42]}`,
		`{"children": [{"path": 1}]}`,
		`{"children": [{"children": "x"}]}`,
	} {
		t.Run(payload, func(t *testing.T) {
			var got FilterGroup
			require.Error(t, json.Unmarshal([]byte(payload), &got))
		})
	}
}
