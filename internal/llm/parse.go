package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

// StripCodeBlock removes a surrounding markdown code fence, a common LLM
// output wrapper.
func StripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

// ParseJSONObject salvages a JSON object from model output. It tries the
// whole (fence-stripped) text first, then the outermost braced block, so a
// reply with prose around the JSON still parses.
func ParseJSONObject(raw string) (map[string]any, error) {
	cleaned := StripCodeBlock(raw)

	var obj map[string]any
	if err := json.Unmarshal([]byte(cleaned), &obj); err == nil {
		return obj, nil
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), &obj); err == nil {
			return obj, nil
		}
	}

	return nil, fmt.Errorf("no JSON object in response (raw: %s)", truncate(cleaned, 200))
}
