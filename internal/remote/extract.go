package remote

import (
	"encoding/json"
	"strconv"
	"strings"
)

const maxLabelLength = 64

// LabelExtractor derives a short display label from a status document
// body. An empty return means the extractor could not find a label.
type LabelExtractor func(body []byte) string

// JSONFieldExtractor returns a [LabelExtractor] that reads a JSON field
// using dot notation to navigate nested objects.
//
// For example, "status.text" navigates to {"status": {"text": "passing"}}.
// Boolean and numeric values are converted to their string form. Returns
// "" if parsing fails or the field is missing.
func JSONFieldExtractor(path string) LabelExtractor {
	parts := strings.Split(path, ".")

	return func(body []byte) string {
		var data interface{}
		if err := json.Unmarshal(body, &data); err != nil {
			return ""
		}
		return clipLabel(extractJSONPath(data, parts))
	}
}

// extractJSONPath walks a JSON structure using dot notation parts.
func extractJSONPath(data interface{}, parts []string) string {
	current := data

	for _, part := range parts {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return ""
		}
		current, ok = obj[part]
		if !ok {
			return ""
		}
	}

	switch v := current.(type) {
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// TextExtractor treats the body as plain text: it returns the first line,
// trimmed and clipped. Useful for endpoints that answer "OK" or
// "passing" without JSON structure.
func TextExtractor(body []byte) string {
	text := strings.TrimSpace(string(body))
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = strings.TrimSpace(text[:i])
	}
	return clipLabel(text)
}

// FirstMatch returns a [LabelExtractor] that tries each extractor in order
// and returns the first non-empty label.
func FirstMatch(extractors ...LabelExtractor) LabelExtractor {
	return func(body []byte) string {
		for _, extract := range extractors {
			if label := extract(body); label != "" {
				return label
			}
		}
		return ""
	}
}

// DefaultExtractor is used when no extractor is configured on a [Client].
// It tries the conventional "status" JSON field first and falls back to
// plain text.
var DefaultExtractor = FirstMatch(
	JSONFieldExtractor("status"),
	TextExtractor,
)

// clipLabel caps a label at a display-friendly length.
func clipLabel(label string) string {
	if len(label) > maxLabelLength {
		return label[:maxLabelLength]
	}
	return label
}
