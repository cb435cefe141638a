package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anycompany/docsearch/genai"
	"github.com/anycompany/docsearch/schema"
)

func buildPrompt(s *schema.Schema) string {
	var sb strings.Builder
	sb.WriteString("You extract structured metadata from documents. ")
	sb.WriteString("Read the document and return a single JSON object with exactly these fields:\n\n")

	for _, field := range s.Fields {
		if field.Derived() {
			continue
		}
		sb.WriteString(fmt.Sprintf("- %s (%s)", field.Name, field.Type))
		if field.Type == schema.TypeEnum {
			sb.WriteString(fmt.Sprintf(", one of: %s", strings.Join(field.Enum, ", ")))
		}
		if field.Hints != "" {
			sb.WriteString(": ")
			sb.WriteString(field.Hints)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\nRules:\n")
	sb.WriteString("1. Respond with the JSON object only, no explanation and no markdown fences.\n")
	sb.WriteString("2. Use null for any field whose value cannot be found in the document.\n")
	sb.WriteString("3. Format dates as YYYY-MM-DD.\n")
	sb.WriteString("4. Do not invent values that are not supported by the document text.\n")

	return sb.String()
}

// decodeObject parses a model response into a field mapping, tolerating prose
// around the JSON object.
func decodeObject(response string) (map[string]any, bool) {
	payload, ok := genai.JSONObject(response)
	if !ok {
		return nil, false
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return nil, false
	}
	return fields, true
}
