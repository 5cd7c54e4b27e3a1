package ai

import (
	"fmt"
	"strings"
)

// firstBalancedBlock returns the first balanced open..close block in content.
// Oracle and extractor replies may embed their JSON in surrounding prose or
// markdown fences, so a plain first-index/last-index scan is not enough once
// the prose itself contains braces.
func firstBalancedBlock(content string, open, close byte) (string, error) {
	start := strings.IndexByte(content, open)
	if start == -1 {
		return "", fmt.Errorf("no %q found in response", string(open))
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		ch := content[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return content[start : i+1], nil
			}
		}
	}

	return "", fmt.Errorf("unbalanced %q in response", string(open))
}

// firstJSONObject extracts the first balanced {...} block.
func firstJSONObject(content string) (string, error) {
	return firstBalancedBlock(content, '{', '}')
}

// firstJSONArray extracts the first balanced [...] block.
func firstJSONArray(content string) (string, error) {
	return firstBalancedBlock(content, '[', ']')
}
