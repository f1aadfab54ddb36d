// Package llmcall provides the two LLM calling conventions used throughout
// the extraction engine: a one-shot structured (JSON) request/response, and
// a growing multi-turn chat transcript.
package llmcall

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"
)

const jsonInstructions = "Return your answer in JSON format"

// ResponseAsJSON parses an LLM reply leniently: it strips an optional
// ```json code fence, rewrites Python-style True/False tokens to their JSON
// equivalents, and returns an empty map (never an error) when the content
// still cannot be parsed, since a malformed reply from the model is a data
// problem, not a caller bug.
func ResponseAsJSON(content string) map[string]any {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimPrefix(content, "json")
	content = strings.TrimPrefix(content, "\n")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)
	content = strings.ReplaceAll(content, "True", "true")
	content = strings.ReplaceAll(content, "False", "false")

	out := map[string]any{}
	if content == "" {
		return out
	}
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		log.Error().Err(err).Msg("llm returned improperly formatted JSON")
		return map[string]any{}
	}
	return out
}

// addJSONInstructionsIfNeeded appends a JSON-output instruction to a system
// message unless it is already present (case-insensitively).
func addJSONInstructionsIfNeeded(systemMessage string) string {
	if strings.Contains(strings.ToLower(systemMessage), strings.ToLower(jsonInstructions)) {
		return systemMessage
	}
	return systemMessage + " " + jsonInstructions + "."
}
