// Package glob evaluates ordered lists of shell-style glob patterns against
// filenames, the way a .gitignore-style pattern list is evaluated: later
// patterns override earlier ones, and nothing short-circuits the walk.
package glob

import "path/filepath"

// IsMatching evaluates an ordered pattern list against filename. A pattern
// without a leading '!' is positive; one with a leading '!' is negative and
// its tail is the glob to match. Patterns are applied in order: whichever
// pattern matches last wins. A nil or empty pattern list is equivalent to
// ["*"].
func IsMatching(filename string, patterns []string) bool {
	if len(patterns) == 0 {
		patterns = []string{"*"}
	}

	matched := false
	for _, p := range patterns {
		negative := false
		pat := p
		if len(pat) > 0 && pat[0] == '!' {
			negative = true
			pat = pat[1:]
		}

		ok, err := filepath.Match(pat, filename)
		if err != nil || !ok {
			continue
		}
		matched = !negative
	}
	return matched
}
