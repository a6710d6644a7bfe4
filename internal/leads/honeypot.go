package leads

import (
	"encoding/json"
	"strings"
)

// honeypotFields are inputs hidden from humans. Naive bots fill them in.
var honeypotFields = []string{"company", "website", "fax", "hp"}

// DetectHoneypot reports the first trap field carrying a non-blank string.
// It runs on the raw body so that a trap the schema does not know about
// still counts.
func DetectHoneypot(fields map[string]json.RawMessage) (string, bool) {
	for _, name := range honeypotFields {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			continue
		}
		if strings.TrimSpace(value) != "" {
			return name, true
		}
	}
	return "", false
}
