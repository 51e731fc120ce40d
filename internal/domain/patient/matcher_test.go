package patient

import "testing"

func TestTokenSortRatio_Identical(t *testing.T) {
	sim := TokenSortRatio{}
	if got := sim.Similarity("GARZA TIJERINA MARIA ESTHER", "GARZA TIJERINA MARIA ESTHER"); got != 1.0 {
		t.Errorf("expected 1.0 for identical names, got %f", got)
	}
}

func TestTokenSortRatio_CaseAndWhitespaceInsensitive(t *testing.T) {
	sim := TokenSortRatio{}
	a := sim.Similarity("garza tijerina maria esther", "GARZA TIJERINA MARIA ESTHER")
	b := sim.Similarity("  GARZA   TIJERINA  MARIA ESTHER ", "GARZA TIJERINA MARIA ESTHER")
	if a != 1.0 || b != 1.0 {
		t.Errorf("expected case/whitespace invariance, got %f and %f", a, b)
	}
}

func TestTokenSortRatio_WordOrderInvariant(t *testing.T) {
	sim := TokenSortRatio{}
	if got := sim.Similarity("MARIA ESTHER GARZA TIJERINA", "GARZA TIJERINA MARIA ESTHER"); got != 1.0 {
		t.Errorf("expected 1.0 for reordered tokens, got %f", got)
	}
}

func TestTokenSortRatio_Distinct(t *testing.T) {
	sim := TokenSortRatio{}
	got := sim.Similarity("GARZA TIJERINA MARIA ESTHER", "LOPEZ HERNANDEZ JUAN CARLOS")
	if got >= 0.5 {
		t.Errorf("expected low score for unrelated names, got %f", got)
	}
}

func TestTokenSortRatio_Typo(t *testing.T) {
	sim := TokenSortRatio{}
	got := sim.Similarity("GARZA TIJERINA MARIA ESTHER", "GARZA TIJERNA MARIA ESTHER")
	if got < 0.9 {
		t.Errorf("expected high score for a single-character typo, got %f", got)
	}
}

func TestTokenSortRatio_Empty(t *testing.T) {
	sim := TokenSortRatio{}
	if got := sim.Similarity("", ""); got != 1.0 {
		t.Errorf("expected 1.0 for two empty names, got %f", got)
	}
	if got := sim.Similarity("GARZA", ""); got != 0.0 {
		t.Errorf("expected 0.0 against an empty name, got %f", got)
	}
}

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"garza", "garza", 0},
		{"garza", "garsa", 1},
	}
	for _, tc := range cases {
		if got := levenshtein(tc.a, tc.b); got != tc.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}
