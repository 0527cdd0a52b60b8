package ai

import (
	"encoding/json"
	"fmt"
)

// ExtractJSON unmarshals a model answer into v. Answers are often wrapped
// in markdown fences or surrounded by prose, so when direct unmarshaling
// fails we scan for the first balanced JSON object and retry on that.
func ExtractJSON(content string, v interface{}) error {
	if err := json.Unmarshal([]byte(content), v); err == nil {
		return nil
	}

	start := findJSONStart(content)
	if start < 0 {
		return fmt.Errorf("no JSON object in response")
	}
	end := findJSONEnd(content, start)
	if end <= start {
		return fmt.Errorf("unbalanced JSON object in response")
	}

	if err := json.Unmarshal([]byte(content[start:end]), v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func findJSONStart(content string) int {
	for i := 0; i < len(content); i++ {
		if content[i] == '{' {
			return i
		}
	}
	return -1
}

// findJSONEnd counts braces from start to find the matching closing brace,
// skipping brace characters inside string literals.
func findJSONEnd(content string, start int) int {
	braceCount := 0
	inString := false
	escapeNext := false

	for i := start; i < len(content); i++ {
		char := content[i]

		if escapeNext {
			escapeNext = false
			continue
		}
		if char == '\\' {
			escapeNext = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		if char == '{' {
			braceCount++
		} else if char == '}' {
			braceCount--
			if braceCount == 0 {
				return i + 1
			}
		}
	}
	return -1
}
