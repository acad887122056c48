// Package bonjour decodes the escaped instance names produced by DNS-SD
// service discovery. Resolvers present non-identifier bytes in a label as
// a backslash followed by three decimal digits (\032 for a space), and the
// same logical name can arrive escaped or not depending on the stack that
// handed it over.
package bonjour

import "strings"

// Decode replaces every \DDD sequence (a backslash followed by exactly
// three ASCII digits) with the character whose code point is DDD. Any
// other backslash, including one followed by fewer than three digits or
// by non-digits, is copied through unchanged. Decode never fails.
func Decode(raw string) string {
	if !HasEscapes(raw) {
		return raw
	}

	var b strings.Builder
	b.Grow(len(raw))

	for i := 0; i < len(raw); {
		if raw[i] == '\\' && i+3 < len(raw) && isDigit(raw[i+1]) && isDigit(raw[i+2]) && isDigit(raw[i+3]) {
			code := int(raw[i+1]-'0')*100 + int(raw[i+2]-'0')*10 + int(raw[i+3]-'0')
			b.WriteRune(rune(code))
			i += 4
			continue
		}
		b.WriteByte(raw[i])
		i++
	}
	return b.String()
}

// HasEscapes reports whether raw contains at least one sequence that
// [Decode] would rewrite.
func HasEscapes(raw string) bool {
	for i := 0; i+3 < len(raw); i++ {
		if raw[i] == '\\' && isDigit(raw[i+1]) && isDigit(raw[i+2]) && isDigit(raw[i+3]) {
			return true
		}
	}
	return false
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
