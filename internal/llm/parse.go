package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// The oracle is instructed to return a bare JSON object, but it is a
// non-contractual text generator: fenced output, trailing commas, and
// truncated objects all show up in practice. ParseLenient is the single
// boundary-robustness layer for that - it is not a general JSON parser.
//
// Fallback chain: strict parse -> strip fences -> structural repair -> error.
func ParseLenient(raw string, v interface{}) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fmt.Errorf("empty oracle response")
	}

	if err := json.Unmarshal([]byte(trimmed), v); err == nil {
		return nil
	}

	stripped := stripFences(trimmed)
	if err := json.Unmarshal([]byte(stripped), v); err == nil {
		return nil
	}

	repaired := repairJSON(stripped)
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("unparseable oracle response: %w", err)
	}
	return nil
}

// stripFences removes markdown code fences the oracle was told not to emit.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

var trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

// repairJSON applies best-effort structural fixes: isolate the outermost
// object, drop trailing commas, close unbalanced braces on truncated output.
func repairJSON(s string) string {
	// Isolate the first object if the response has surrounding prose
	if start := strings.Index(s, "{"); start > 0 {
		s = s[start:]
	}

	s = trailingCommaRe.ReplaceAllString(s, "$1")

	// Balance braces for truncated responses, ignoring string contents
	depth := 0
	inString := false
	escaped := false
	for _, r := range s {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
			}
		}
	}
	if inString {
		s += `"`
	}
	for ; depth > 0; depth-- {
		s += "}"
	}
	return s
}
