package common

import "unicode/utf8"

// Truncate shortens s to at most n bytes plus "...", cutting on a rune
// boundary so multi-byte characters are never split.
func Truncate(s string, n int) string {
	if n < 0 {
		n = 0
	}
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
