package query

import (
	"fmt"
	"strings"

	"github.com/anycompany/docsearch/genai"
	"github.com/anycompany/docsearch/schema"
)

const exampleQuestion = "what are the breach notification requirements for each client?"

const exampleAnswer = `{"semantic_query": "breach notification requirements", "join": "and", "filters": [{"field": "breach_notification_required", "op": "equals", "value": true}]}`

func buildMessages(question string, s *schema.Schema) []genai.Message {
	var sb strings.Builder
	sb.WriteString("You split a search question into a free-text semantic query and structured filters. ")
	sb.WriteString("Respond with a single JSON object shaped like:\n")
	sb.WriteString(`{"semantic_query": "...", "join": "and", "filters": [{"field": "...", "op": "...", "value": ...}]}` + "\n\n")
	sb.WriteString("Filterable fields and their operators:\n")

	for _, field := range s.Fields {
		ops := make([]string, 0, 4)
		for _, op := range field.Operators() {
			ops = append(ops, string(op))
		}
		sb.WriteString(fmt.Sprintf("- %s (%s; operators: %s)", field.Name, field.Type, strings.Join(ops, ", ")))
		if field.Type == schema.TypeEnum {
			sb.WriteString(fmt.Sprintf("; values: %s", strings.Join(field.Enum, ", ")))
		}
		if field.Hints != "" {
			sb.WriteString(": ")
			sb.WriteString(field.Hints)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\nRules:\n")
	sb.WriteString("1. Only use the fields and operators listed above; put everything else into semantic_query.\n")
	sb.WriteString("2. For boolean fields use value true when the question asks about presence or requirements, false when it asks about absence or contains 'not'.\n")
	sb.WriteString("3. For range filters use {\"op\": \"range\", \"value\": {\"min\": ..., \"max\": ...}} with YYYY-MM-DD dates.\n")
	sb.WriteString("4. Prefer fewer filters over wrong ones; an empty filters array is a valid answer.\n")
	sb.WriteString("5. Return the JSON only, with no additional text or explanation.\n")

	return []genai.Message{
		{Role: genai.RoleSystem, Content: sb.String()},
		{Role: genai.RoleUser, Content: exampleQuestion},
		{Role: genai.RoleAssistant, Content: exampleAnswer},
		{Role: genai.RoleUser, Content: question},
	}
}
