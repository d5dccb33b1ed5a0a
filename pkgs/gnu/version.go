// Package gnu provides the version ordering used by GNU sort -V and dpkg.
package gnu

import "strings"

// Compare orders two version strings the way `sort -V` does. The result
// is negative, zero or positive as a sorts before, with or after b.
//
// Versions are compared as alternating runs of non-digits and digits.
// Non-digit runs compare character by character with letters before
// other symbols and '~' before everything, even the end of the string.
// Digit runs compare numerically.
func Compare(a, b string) int {
	for a != "" || b != "" {
		var ta, tb string
		ta, a = span(a, false)
		tb, b = span(b, false)
		if c := compareText(ta, tb); c != 0 {
			return c
		}
		var na, nb string
		na, a = span(a, true)
		nb, b = span(b, true)
		if c := compareNumber(na, nb); c != 0 {
			return c
		}
	}
	return 0
}

// span splits off the leading run of digits (or non-digits) of s.
func span(s string, digits bool) (run, rest string) {
	i := 0
	for i < len(s) && isDigit(s[i]) == digits {
		i++
	}
	return s[:i], s[i:]
}

func compareText(a, b string) int {
	for i := 0; i < len(a) || i < len(b); i++ {
		if d := weight(a, i) - weight(b, i); d != 0 {
			return d
		}
	}
	return 0
}

func weight(s string, i int) int {
	if i >= len(s) {
		return 0
	}
	switch c := s[i]; {
	case c == '~':
		return -1
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		return int(c)
	default:
		return int(c) + 256
	}
}

func compareNumber(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		return len(a) - len(b)
	}
	return strings.Compare(a, b)
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }
