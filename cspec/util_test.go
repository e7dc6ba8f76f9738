package cspec

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestIsTruthy(t *testing.T) {
	cases := []struct {
		name string
		v    any
		want bool
	}{
		{"nil", nil, false},
		{"empty string", "", false},
		{"non-empty string", "x", true},
		{"zero int", 0, false},
		{"non-zero int", 1, true},
		{"false bool", false, false},
		{"true bool", true, true},
		{"empty slice", []int{}, false},
		{"non-empty slice", []int{1}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, isTruthy(tc.v))
		})
	}
}

func TestToSlice(t *testing.T) {
	require.Nil(t, toSlice(nil))
	require.Equal(t, []any{1, 2, 3}, toSlice([]int{1, 2, 3}))
	require.Equal(t, []any{"solo"}, toSlice("solo"))
	require.Equal(t, []any{1, 2}, toSlice([]any{1, 2}))
}

func TestToSlice_StructElements(t *testing.T) {
	type row struct {
		Name string
		Age  int
	}
	got := toSlice([]row{{Name: "Alice", Age: 30}, {Name: "Bob", Age: 25}})
	want := []any{row{Name: "Alice", Age: 30}, row{Name: "Bob", Age: 25}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("toSlice() mismatch (-want +got):\n%s", diff)
	}
}
