package match

import "testing"

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase", "Whole Milk", "whole milk"},
		{"collapse whitespace", "  whole   milk  ", "whole milk"},
		{"strip punctuation", "half-and-half, please!", "half and half please"},
		{"drop standalone fillers", "a few red apples", "red apples"},
		{"keep qualifiers", "red apples", "red apples"},
		{"filler inside word survives", "theater tickets", "theater tickets"},
		{"the filler", "the milk", "milk"},
		{"cyrillic preserved", "Молоко 2%", "молоко 2"},
		{"empty", "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Sanitize(tc.in); got != tc.want {
				t.Fatalf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestSanitizeKeepsQualifiersDistinct(t *testing.T) {
	if Sanitize("red apples") == Sanitize("apples") {
		t.Fatal("sanitization must not collapse meaningful qualifiers")
	}
}

func TestPairKeyOrderIndependent(t *testing.T) {
	if PairKey("milk", "oat milk") != PairKey("oat milk", "milk") {
		t.Fatal("pair key must be order independent")
	}
	if PairKey("a", "b") == PairKey("a", "c") {
		t.Fatal("distinct pairs must have distinct keys")
	}
}
