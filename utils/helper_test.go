package utils

import "testing"

func TestEscapeLike_EscapesWildcardsOnly(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"plain", "plain"},
		{"100%", `100\%`},
		{"a_b", `a\_b`},
		{`a\b`, `a\\b`},
		{`%_\`, `\%\_\\`},
		// regex metacharacters carry no meaning in LIKE and must pass through
		{"a.*b", "a.*b"},
		{"(rice)", "(rice)"},
		{"qty+1", "qty+1"},
	}
	for _, tc := range cases {
		if got := EscapeLike(tc.in); got != tc.expected {
			t.Fatalf("EscapeLike(%q) expected %q, got %q", tc.in, tc.expected, got)
		}
	}
}

func TestUniqueSlice_DropsDuplicatesKeepsOrder(t *testing.T) {
	got := UniqueSlice([]int{3, 1, 3, 2, 1})
	expected := []int{3, 1, 2}
	if len(got) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatalf("expected %v, got %v", expected, got)
		}
	}
}
