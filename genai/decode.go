package genai

import (
	"encoding/json"
	"strings"
)

// JSONObject recovers a JSON object from a model response. Models frequently
// wrap their answer in prose or markdown fences, so when the whole response is
// not valid JSON the substring between the first '{' and the last '}' is
// tried.
func JSONObject(response string) (string, bool) {
	trimmed := strings.TrimSpace(response)
	if json.Valid([]byte(trimmed)) && strings.HasPrefix(trimmed, "{") {
		return trimmed, true
	}

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end <= start {
		return "", false
	}
	candidate := response[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return "", false
	}
	return candidate, true
}
