// Package rules provides the glob pattern matcher and risk classifier.
package rules

// Match reports whether command matches pattern. `*` matches any run of
// characters, including the empty one; everything else is literal and
// case-sensitive. Patterns are implicitly anchored: without a `*` the
// pattern must equal the command exactly.
//
// Iterative two-pointer matching with single-star backtracking; the boolean
// result is deterministic and total.
func Match(pattern, command string) bool {
	p, c := 0, 0
	star, mark := -1, 0

	for c < len(command) {
		switch {
		case p < len(pattern) && pattern[p] == '*':
			star, mark = p, c
			p++
		case p < len(pattern) && pattern[p] == command[c]:
			p++
			c++
		case star >= 0:
			// Re-expand the last star by one character.
			mark++
			p = star + 1
			c = mark
		default:
			return false
		}
	}

	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}

// MatchAny reports whether any pattern matches the command.
func MatchAny(patterns []string, command string) (string, bool) {
	for _, pat := range patterns {
		if Match(pat, command) {
			return pat, true
		}
	}
	return "", false
}
