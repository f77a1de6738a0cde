package analysis

import (
	"fmt"
	"regexp"
	"strings"
)

var codeBlockRegex = regexp.MustCompile("```(?:json)?([\\s\\S]*?)```")

// ExtractJSON digs the JSON payload out of an LLM response. Models wrap
// the object in markdown fences or prose despite instructions, so fenced
// blocks are tried first, then a brace-balanced scan over the raw content.
func ExtractJSON(content string) (string, error) {
	for _, match := range codeBlockRegex.FindAllStringSubmatch(content, -1) {
		if len(match) < 2 {
			continue
		}
		potential := strings.TrimSpace(match[1])
		if strings.HasPrefix(potential, "{") && strings.HasSuffix(potential, "}") {
			return potential, nil
		}
	}

	start := strings.Index(content, "{")
	if start < 0 {
		return "", fmt.Errorf("no JSON found in content")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return content[start : i+1], nil
			}
		}
	}

	return "", fmt.Errorf("unbalanced JSON object in content")
}
