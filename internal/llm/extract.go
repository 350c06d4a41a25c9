package llm

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSONObject is returned when model output contains no complete object.
var ErrNoJSONObject = errors.New("no JSON object in model output")

// ExtractJSONObject returns the first complete top-level JSON object in
// text. Surrounding prose, code fences and reasoning blocks are ignored;
// braces inside string literals do not affect nesting.
func ExtractJSONObject(text string) (string, error) {
	text = stripThink(text)
	start := strings.IndexByte(text, '{')
	for start >= 0 {
		if end, ok := objectEnd(text[start:]); ok {
			return text[start : start+end], nil
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", ErrNoJSONObject
}

// objectEnd scans from an opening brace and reports the length of the
// balanced object.
func objectEnd(s string) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

var thinkRe = regexp.MustCompile(`(?is)<think>.*?(</think>|$)`)

func stripThink(text string) string {
	return thinkRe.ReplaceAllString(text, "")
}
