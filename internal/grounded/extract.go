package grounded

import (
	"encoding/json"
	"fmt"
	"strings"
)

// diagChars is how much of the raw output's head and tail an extraction
// error quotes.
const diagChars = 300

// ExtractJSON returns the single JSON object in raw model output. The whole
// trimmed output is tried first; failing that, the first balanced {...}
// span is cut out and parsed. Braces inside JSON strings do not count
// toward the balance. On failure the error wraps ErrMalformedOutput and
// quotes the first and last 300 characters of the output.
func ExtractJSON(raw string) (json.RawMessage, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("%w: empty model output; expected JSON", ErrMalformedOutput)
	}

	if isObject(s) {
		return json.RawMessage(s), nil
	}

	start := strings.IndexByte(s, '{')
	if start == -1 {
		return nil, fmt.Errorf("%w: no '{' found in model output. %s", ErrMalformedOutput, headTail(s))
	}

	end := balancedEnd(s, start)
	if end == -1 {
		return nil, fmt.Errorf("%w: unclosed JSON object in model output. %s", ErrMalformedOutput, headTail(s))
	}

	candidate := strings.TrimSpace(s[start:end])
	if !isObject(candidate) {
		return nil, fmt.Errorf("%w: failed to parse JSON from model output. Candidate starts with:\n%s\n\nFull %s",
			ErrMalformedOutput, head(candidate), headTail(s))
	}
	return json.RawMessage(candidate), nil
}

// isObject reports whether s is exactly one valid JSON object.
func isObject(s string) bool {
	if !strings.HasPrefix(s, "{") {
		return false
	}
	var v map[string]json.RawMessage
	return json.Unmarshal([]byte(s), &v) == nil
}

// balancedEnd returns the index just past the '}' that closes the '{' at
// start, or -1 if the braces never balance.
func balancedEnd(s string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
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
				return i + 1
			}
		}
	}
	return -1
}

func head(s string) string {
	r := []rune(s)
	if len(r) <= diagChars {
		return s
	}
	return string(r[:diagChars])
}

func tail(s string) string {
	r := []rune(s)
	if len(r) <= diagChars {
		return s
	}
	return string(r[len(r)-diagChars:])
}

func headTail(s string) string {
	return fmt.Sprintf("Output starts with:\n%s\n\nOutput ends with:\n%s", head(s), tail(s))
}
