package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// NormalizeRole maps a free-form source role string onto the fixed role set.
// Unmatched roles default to user.
func NormalizeRole(raw string) Role {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "user", "human":
		return RoleUser
	case "ai", "assistant", "bot":
		return RoleAI
	case "system":
		return RoleSystem
	case "tool":
		return RoleTool
	default:
		return RoleUser
	}
}

// NormalizeMessageContent canonicalizes arbitrary recorded message content
// into display text. Primitives render in their natural string form, except
// bare strings that could be mistaken for a number, boolean, null, or a
// single-character token: those are re-wrapped in JSON quotes so the string
// "true" stays distinguishable from the boolean true. Objects and arrays
// pretty-print as 2-space-indented JSON. Strings that arrive already
// JSON-quoted are unwrapped to their literal text first.
func NormalizeMessageContent(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return normalizeStringContent(val)
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return formatNumber(val)
	case json.Number:
		return val.String()
	default:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

func normalizeStringContent(s string) string {
	trimmed := strings.TrimSpace(s)

	// Unwrap strings that are themselves JSON-quoted, then re-escape if the
	// inner text is ambiguous on its own.
	if len(trimmed) >= 2 && strings.HasPrefix(trimmed, `"`) && strings.HasSuffix(trimmed, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(trimmed), &inner); err == nil {
			if isAmbiguousToken(inner) {
				return quote(inner)
			}
			return inner
		}
	}

	if isAmbiguousToken(trimmed) {
		return quote(s)
	}
	return s
}

// isAmbiguousToken reports whether a bare string would be indistinguishable
// from a non-string primitive once rendered.
func isAmbiguousToken(s string) bool {
	if len(s) == 1 {
		return true
	}
	switch strings.ToLower(s) {
	case "true", "false", "null":
		return true
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return true
	}
	return false
}

func quote(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return strconv.Quote(s)
	}
	return string(b)
}

// formatNumber renders a JSON number the way it was written: integral
// values without a decimal point.
func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
