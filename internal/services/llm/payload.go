package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const payloadSummaryLimit = 160

// DecodeJSON unmarshals a model reply into target. Code fences are removed
// first; when the reply still carries prose around the document, the span from
// the first opening brace or bracket to the last matching closer is tried.
func DecodeJSON(reply string, target any) error {
	body := StripCodeFences(reply)
	if body == "" {
		return errors.New("empty response")
	}
	err := json.Unmarshal([]byte(body), target)
	if err == nil {
		return nil
	}
	if inner, ok := outerDocument(body); ok && inner != body {
		if innerErr := json.Unmarshal([]byte(inner), target); innerErr == nil {
			return nil
		}
	}
	return fmt.Errorf("%w (payload snippet: %s)", err, SummarizePayload(body))
}

// StripCodeFences drops Markdown fence lines such as ```json and trims the rest.
func StripCodeFences(reply string) string {
	lines := strings.Split(strings.TrimSpace(reply), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// SummarizePayload flattens whitespace and caps content for log and error text.
func SummarizePayload(content string) string {
	flat := strings.Join(strings.Fields(content), " ")
	if flat == "" {
		return "<empty>"
	}
	if utf8.RuneCountInString(flat) <= payloadSummaryLimit {
		return flat
	}
	return string([]rune(flat)[:payloadSummaryLimit]) + "..."
}

func outerDocument(body string) (string, bool) {
	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(body, pair[0])
		end := strings.LastIndex(body, pair[1])
		if start >= 0 && end > start {
			return body[start : end+1], true
		}
	}
	return "", false
}
