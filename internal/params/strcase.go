package params

import (
	"strings"
	"unicode"
)

// SnakeToCamel converts a snake_case wire key to the camelCase invocation
// name used by parameter definitions. Keys without underscores pass through.
func SnakeToCamel(s string) string {
	parts := strings.Split(s, "_")
	if len(parts) == 1 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	wrote := false
	for _, part := range parts {
		if part == "" {
			continue
		}
		if !wrote {
			b.WriteString(part)
			wrote = true
			continue
		}
		r := []rune(part)
		b.WriteRune(unicode.ToUpper(r[0]))
		b.WriteString(string(r[1:]))
	}
	return b.String()
}

// CamelToSnake converts a camelCase invocation name back to the snake_case
// wire key providers expect.
func CamelToSnake(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
