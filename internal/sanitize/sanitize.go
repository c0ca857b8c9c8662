// Package sanitize normalizes untrusted strings before they are forwarded
// or persisted.
package sanitize

import "strings"

// String strips control and non-printable characters from an untrusted
// string, keeping tab, newline, carriage return and printable ASCII, then
// trims surrounding whitespace.
func String(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			b.WriteRune(r)
		case r >= 0x20 && r <= 0x7e:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
