package completion

import (
	"encoding/json"
	"fmt"
	"strings"
)

// decodeJSONObject pulls the first JSON object out of model output and
// decodes it into out. Models often wrap JSON in markdown fences or add a
// sentence before it, so both are tolerated.
func decodeJSONObject(raw string, out any) error {
	block := firstObject(withoutFences(raw))
	if block == "" {
		return fmt.Errorf("%w: no JSON object in response", ErrInvalidStructure)
	}
	if err := json.Unmarshal([]byte(block), out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}
	return nil
}

func withoutFences(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// firstObject returns the first balanced {...} block, ignoring braces inside
// string literals.
func firstObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
