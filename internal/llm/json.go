package llm

import (
	"strings"
)

// ExtractJSON strips optional fenced-code-block markers from a model
// response and returns the bare payload. The response is otherwise treated
// as untrusted text; no repair of partially valid JSON is attempted.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}
