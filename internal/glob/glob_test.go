package glob

import "testing"

func TestIsMatching(t *testing.T) {
	cases := []struct {
		name     string
		filename string
		patterns []string
		want     bool
	}{
		{
			name:     "nil pattern list defaults to match-all",
			filename: "anything.txt",
			patterns: nil,
			want:     true,
		},
		{
			name:     "empty pattern list defaults to match-all",
			filename: "anything.txt",
			patterns: []string{},
			want:     true,
		},
		{
			name:     "later negative overrides earlier positive",
			filename: "1.txt",
			patterns: []string{"1.txt", "!*.txt"},
			want:     false,
		},
		{
			name:     "later positive overrides earlier negative",
			filename: "1.txt",
			patterns: []string{"!*.txt", "[12].txt"},
			want:     true,
		},
		{
			name:     "character class",
			filename: "2.txt",
			patterns: []string{"*", "![34].txt"},
			want:     true,
		},
		{
			name:     "character class excludes match",
			filename: "3.txt",
			patterns: []string{"*", "![34].txt"},
			want:     false,
		},
		{
			name:     "no pattern matches",
			filename: "readme.md",
			patterns: []string{"*.txt"},
			want:     false,
		},
		{
			name:     "question mark wildcard",
			filename: "a.log",
			patterns: []string{"?.log"},
			want:     true,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := IsMatching(tc.filename, tc.patterns)
			if got != tc.want {
				t.Errorf("IsMatching(%q, %v) = %v, want %v", tc.filename, tc.patterns, got, tc.want)
			}
		})
	}
}

// TestOrderSensitivity exercises the property from the testable-properties
// list directly: appending a negative pattern that matches f can only ever
// turn a prior match off, never on.
func TestOrderSensitivity(t *testing.T) {
	f := "1.txt"
	base := []string{"1.txt"}
	withNegative := append(append([]string{}, base...), "!*.txt")

	if !IsMatching(f, base) {
		t.Fatalf("base pattern list should match %q", f)
	}
	if IsMatching(f, withNegative) {
		t.Fatalf("appending a matching negative pattern should turn the match off")
	}
}
