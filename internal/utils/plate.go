package utils

import "strings"

// NormalizePlate upper-cases s and drops every rune outside [A-Z0-9].
func NormalizePlate(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		default:
			return -1
		}
	}, s)
}
