// Package sanitize strips dangerous characters from request payloads before
// they are forwarded downstream. It removes control characters and NUL bytes
// from every string it finds, recursing through objects and arrays, and never
// touches ordinary punctuation so legal document text survives intact.
package sanitize

import (
	"strings"
	"unicode"
)

// Value sanitizes a decoded JSON value in place semantics: strings are
// cleaned, maps and slices are walked recursively, everything else passes
// through unchanged.
func Value(v any) any {
	switch t := v.(type) {
	case string:
		return String(t)
	case map[string]any:
		for k, e := range t {
			t[k] = Value(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = Value(e)
		}
		return t
	default:
		return v
	}
}

// String removes control characters and NUL bytes, keeping tabs and newlines
// so multi-line document content is preserved, and trims surrounding space.
func String(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == 0 {
			return -1
		}
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(cleaned)
}
