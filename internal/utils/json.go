package utils

import (
	"encoding/json"
	"strings"
)

// ExtractJSON recovers a JSON document from free-form model output. It tries
// the text as-is, then without markdown fences, then the first balanced
// object or array, then the span from the first opener to the last closer.
func ExtractJSON(text string) ([]byte, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil, false
	}
	if json.Valid([]byte(s)) {
		return []byte(s), true
	}
	s = StripCodeFences(s)
	if json.Valid([]byte(s)) {
		return []byte(s), true
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return nil, false
	}
	if block, ok := balancedBlock(s[start:]); ok && json.Valid([]byte(block)) {
		return []byte(block), true
	}

	closer := "}"
	if s[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(s, closer)
	if end > start && json.Valid([]byte(s[start:end+1])) {
		return []byte(s[start : end+1]), true
	}
	return nil, false
}

func StripCodeFences(src string) string {
	s := strings.TrimSpace(src)
	if !strings.HasPrefix(s, "```") {
		if i := strings.Index(s, "```"); i >= 0 {
			s = s[i:]
		} else {
			return s
		}
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return strings.Trim(s, "`")
	}
	body := lines[1:]
	for i, line := range body {
		if strings.TrimSpace(line) == "```" {
			body = body[:i]
			break
		}
	}
	return strings.TrimSpace(strings.Join(body, "\n"))
}

// balancedBlock returns the prefix of s (which must start with '{' or '[')
// up to its matching closer, skipping brackets inside string literals.
func balancedBlock(s string) (string, bool) {
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
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}
