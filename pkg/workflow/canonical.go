package workflow

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Canonicalize removes every whitespace rune that is not inside a
// double-quoted literal. Backslash escapes inside literals are honoured, so
// an escaped quote does not end the literal.
func Canonicalize(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))

	inQuote, escaped := false, false
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		start := i
		i += size

		switch {
		case inQuote && escaped:
			escaped = false
		case inQuote && r == '\\':
			escaped = true
		case r == '"':
			inQuote = !inQuote
		case !inQuote && unicode.IsSpace(r):
			continue
		}
		sb.WriteString(s[start:i])
	}
	return sb.String()
}
