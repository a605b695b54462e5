package gosieve

import (
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func oneToN(n int) []int {
	ret := make([]int, n)
	for i := range ret {
		ret[i] = i + 1
	}

	return ret
}

func identity[T any](v T) T { return v }

func Test_CursorPaginate(t *testing.T) {
	tests := []struct {
		name  string
		items []int
		p     PagingDescriptor
		want  []int
	}{
		{"after", oneToN(10), PageAfter("5", 3), []int{6, 7, 8}},
		{"before", oneToN(5), PageBefore("4", 2), []int{3, 2}},
		{"before wins over after", oneToN(10), PagingDescriptor{Before: "6", After: "2", Limit: 3}, []int{5, 4, 3}},
		{"no cursor", []int{4, 2, 9, 1}, PagingDescriptor{Limit: 2}, []int{1, 2}},
		{"unparsable cursor", oneToN(5), PageAfter("five", 2), []int{1, 2}},
		{"unparsable before is not replaced by after", oneToN(5), PagingDescriptor{Before: "x", After: "3", Limit: 2}, []int{1, 2}},
		{"after the end", oneToN(5), PageAfter("5", 3), nil},
		{"before the start", oneToN(5), PageBefore("1", 3), nil},
		{"before with short window", oneToN(5), PageBefore("3", 10), []int{2, 1}},
		{"unbounded after", oneToN(5), PageAfter("2", Unbounded), []int{3, 4, 5}},
		{"unsorted input", []int{8, 3, 10, 1, 6, 7}, PageAfter("5", 2), []int{6, 7}},
		{"offset is ignored", oneToN(10), PagingDescriptor{Offset: 4, After: "1", Limit: 2}, []int{2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq, err := CursorPaginate(slices.Values(tt.items), tt.p, Value(identity[int]))
			require.NoError(t, err)
			require.Equal(t, tt.want, slices.Collect(seq))
		})
	}
}

func Test_CursorPaginate_strings(t *testing.T) {
	fruits := []string{"apple", "banana", "cherry", "date", "elderberry"}

	seq, err := CursorPaginate(slices.Values(fruits), PageAfter("banana", 2), Value(identity[string]))
	require.NoError(t, err)
	require.Equal(t, []string{"cherry", "date"}, slices.Collect(seq))

	// Ordinal comparison: upper case sorts before lower case.
	seq, err = CursorPaginate(slices.Values([]string{"b", "B", "a", "A"}), PageAfter("B", 10), Value(identity[string]))
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, slices.Collect(seq))
}

func Test_CursorPaginate_nullable(t *testing.T) {
	type row struct {
		ID int
		At *time.Time
	}

	at := func(h int) *time.Time {
		v := _epoch.Add(time.Duration(h) * time.Hour)
		return &v
	}
	rows := []row{{1, at(3)}, {2, nil}, {3, at(1)}, {4, at(2)}, {5, nil}}
	key := Nullable(func(r row) *time.Time { return r.At })

	seq, err := CursorPaginateFunc(slices.Values(rows), PagingDescriptor{Limit: 10}, key, time.Time.Compare)
	require.NoError(t, err)
	require.Equal(t, []int{3, 4, 1}, rowIDs(slices.Collect(seq), func(r row) int { return r.ID }))

	seq, err = CursorPaginateFunc(slices.Values(rows), PageBefore(FormatCursor(at(3)), 10), key, time.Time.Compare)
	require.NoError(t, err)
	require.Equal(t, []int{4, 3}, rowIDs(slices.Collect(seq), func(r row) int { return r.ID }))
}

func Test_CursorPaginate_equalKeysKeepInputOrder(t *testing.T) {
	type row struct {
		ID    int
		Score int
	}

	rows := []row{{1, 5}, {2, 3}, {3, 5}, {4, 3}, {5, 1}, {6, 5}}
	key := Value(func(r row) int { return r.Score })
	id := func(r row) int { return r.ID }

	tests := []struct {
		name string
		p    PagingDescriptor
		want []int
	}{
		{"after", PageAfter("1", 10), []int{2, 4, 1, 3, 6}},
		{"before", PageBefore("9", 10), []int{1, 3, 6, 2, 4, 5}},
		{"before cuts inside a tie", PageBefore("9", 2), []int{1, 3}},
		{"before below a tie", PageBefore("5", 2), []int{2, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq, err := CursorPaginate(slices.Values(rows), tt.p, key)
			require.NoError(t, err)
			require.Equal(t, tt.want, rowIDs(slices.Collect(seq), id))
		})
	}
}

func rowIDs[T any](rows []T, id func(T) int) []int {
	ret := make([]int, 0, len(rows))
	for _, r := range rows {
		ret = append(ret, id(r))
	}

	return ret
}

func Test_CursorPaginate_missingArguments(t *testing.T) {
	_, err := CursorPaginate[int, int](slices.Values(oneToN(3)), PageAfter("1", 1), nil)
	require.ErrorIs(t, err, ErrMissingArgument)

	_, err = CursorPaginateFunc(slices.Values(oneToN(3)), PageAfter("1", 1), Value(identity[int]), nil)
	require.ErrorIs(t, err, ErrMissingArgument)

	seq, err := CursorPaginate(nil, PageAfter("1", 1), Value(identity[int]))
	require.NoError(t, err)
	require.Nil(t, seq)
}

func Test_Sieve_CursorPaginate(t *testing.T) {
	s := Of[tUser](New())

	tests := []struct {
		name string
		path string
		p    PagingDescriptor
		want []uint
	}{
		{"after by id", "id", PageAfter("1", 2), []uint{2, 3}},
		{"before by age", "Age", PageBefore("31", 5), []uint{4, 2}},
		{"nullable property skips nulls", "Email", PagingDescriptor{Limit: 10}, []uint{1, 3}},
		{"time cursor", "CreatedAt", PageAfter("2024-01-01T01:00:00Z", 1), []uint{3}},
		{"enum cursor by name", "Role", PageAfter("guest", 10), []uint{2, 3, 1}},
		{"nested", "Address.City", PageBefore("Rome", 2), []uint{2, 1}},
		{"dynamic", "Extra", PageAfter("5", 10), []uint{1, 2}},
		{"unparsable cursor", "Age", PageAfter("old", 1), []uint{2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq, err := s.CursorPaginate(slices.Values(fixtureUsers()), tt.p, tt.path)
			require.NoError(t, err)
			require.Equal(t, tt.want, ids(slices.Collect(seq)))
		})
	}

	_, err := s.CursorPaginate(slices.Values(fixtureUsers()), PageAfter("1", 1), "Nope")
	require.ErrorIs(t, err, ErrMissingArgument)
}

func Test_Sieve_CursorOf(t *testing.T) {
	s := Of[tUser](New())
	u := fixtureUsers()[0]

	require.Equal(t, "1", s.CursorOf(u, "ID"))
	require.Equal(t, "2024-01-01T00:00:00Z", s.CursorOf(u, "CreatedAt"))
	require.Equal(t, "alice@example.com", s.CursorOf(u, "Email"))
	require.Equal(t, "", s.CursorOf(fixtureUsers()[1], "Email"))
	require.Equal(t, "", s.CursorOf(u, "Nope"))

	// The cursor of an element selects the following elements.
	seq, err := s.CursorPaginate(slices.Values(fixtureUsers()), PageAfter(s.CursorOf(u, "CreatedAt"), 10), "CreatedAt")
	require.NoError(t, err)
	require.Equal(t, []uint{2, 3, 4}, ids(slices.Collect(seq)))
}

func Test_EncodeCursor_roundTrip(t *testing.T) {
	id := uuid.MustParse("5b0a7e0e-2c53-4f2e-9a49-6f8fbb2a3c10")

	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"int", 42, "42"},
		{"string", "cherry", "cherry"},
		{"time", _epoch.Add(1500 * time.Millisecond), "2024-01-01T00:00:01.5Z"},
		{"uuid", id, id.String()},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := EncodeCursor(tt.value)
			require.False(t, strings.ContainsAny(token, "+/="))

			got, err := DecodeCursor(token)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	_, err := DecodeCursor("not base64!")
	require.Error(t, err)
}

func Test_CollectCursorPage(t *testing.T) {
	key := Value(identity[int])

	tests := []struct {
		name       string
		items      []int
		p          PagingDescriptor
		wantItems  []int
		wantBefore string
		wantAfter  string
	}{
		{"first page", oneToN(10), PagingDescriptor{Limit: 3}, []int{1, 2, 3}, "", "3"},
		{"middle page", oneToN(10), PageAfter("3", 3), []int{4, 5, 6}, "4", "6"},
		{"last page", oneToN(10), PageAfter("8", 3), []int{9, 10}, "9", ""},
		{"backwards", oneToN(10), PageBefore("8", 3), []int{7, 6, 5}, "5", "7"},
		{"backwards to start", oneToN(10), PageBefore("3", 3), []int{2, 1}, "", "2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq, err := CursorPaginate(slices.Values(tt.items), tt.p, key)
			require.NoError(t, err)

			page := CollectCursorPage(seq, tt.p, key)
			require.Equal(t, tt.wantItems, page.Items)
			require.Equal(t, tt.p.Limit, page.AppliedLimit)

			before, err := DecodeCursor(page.BeforeToken)
			require.NoError(t, err)
			require.Equal(t, tt.wantBefore, before)

			after, err := DecodeCursor(page.AfterToken)
			require.NoError(t, err)
			require.Equal(t, tt.wantAfter, after)
		})
	}
}

func Test_RawPaging_Decode(t *testing.T) {
	e := New(WithConfig(Config{DefaultLimit: 5, MaxLimit: 20}))

	tests := []struct {
		name    string
		raw     RawPaging
		want    PagingDescriptor
		wantErr bool
	}{
		{"defaults", RawPaging{}, PagingDescriptor{Limit: 5}, false},
		{"clamped", RawPaging{Limit: 500, Offset: 3}, PagingDescriptor{Limit: 20, Offset: 3}, false},
		{"no limit", RawPaging{Limit: NoLimit}, PagingDescriptor{Limit: Unbounded}, false},
		{"tokens", RawPaging{Limit: 2, Before: EncodeCursor(7), After: EncodeCursor(3)}, PagingDescriptor{Limit: 2, Before: "7", After: "3"}, false},
		{"negative offset", RawPaging{Offset: -1}, PagingDescriptor{}, true},
		{"broken token", RawPaging{After: "%%%"}, PagingDescriptor{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.DecodePaging(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	p, err := RawPaging{Limit: 1000}.Decode()
	require.NoError(t, err)
	require.Equal(t, MaxLimit, p.Limit)
}
