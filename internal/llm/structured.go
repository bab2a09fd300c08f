package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeStructured parses the JSON document of a structured reply. A
// markdown code fence around the document is tolerated.
func DecodeStructured(content string) (any, error) {
	s := strings.TrimSpace(content)
	if rest, ok := strings.CutPrefix(s, "```"); ok {
		if i := strings.IndexByte(rest, '\n'); i >= 0 {
			rest = rest[i+1:]
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(rest), "```"))
	}
	if s == "" {
		return nil, fmt.Errorf("decode structured reply: empty content")
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("decode structured reply: %w", err)
	}
	return v, nil
}
