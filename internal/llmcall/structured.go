package llmcall

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/NREL/elm-sub000/internal/cache"
	"github.com/NREL/elm-sub000/internal/services"
)

// Caller is the minimal surface StructuredCaller and ChatCaller need to
// submit a chat-completion job through the service runtime.
type Caller interface {
	Call(ctx context.Context, name string, payload any) (any, error)
}

// StructuredCaller issues a single (system, user) request and parses the
// reply as JSON, auto-injecting a JSON-output instruction into the system
// message when missing. It mirrors the original's StructuredLLMCaller.
type StructuredCaller struct {
	Provider Caller
	Model    string
	// Cache, when set, short-circuits repeat (model, prompt) pairs
	// instead of resubmitting them to the service runtime.
	Cache *cache.LLMCache
	// Location labels usage from this caller's calls, passed through to
	// services.LLMRequest.Location for per-location accounting.
	Location string
}

// Call submits sysMsg/content as a two-message chat completion and
// returns the parsed JSON object, or an empty map if the model's reply
// was not parseable JSON. It satisfies validate.StructuredCaller.
func (c *StructuredCaller) Call(ctx context.Context, sysMsg, content string) (map[string]any, error) {
	sysMsg = addJSONInstructionsIfNeeded(sysMsg)
	content = fitToContext(c.Model, sysMsg, content)

	var key string
	if c.Cache != nil {
		key = cache.KeyFrom(c.Model, sysMsg+"\n\n"+content)
		if raw, ok, _ := c.Cache.Get(ctx, key); ok {
			var cached map[string]any
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		}
	}

	v, err := c.Provider.Call(ctx, "LLMService", services.LLMRequest{
		Model: c.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: sysMsg},
			{Role: openai.ChatMessageRoleUser, Content: content},
		},
		Location: c.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("llmcall: structured call: %w", err)
	}
	resp, ok := v.(openai.ChatCompletionResponse)
	if !ok || len(resp.Choices) == 0 {
		return map[string]any{}, nil
	}
	result := ResponseAsJSON(resp.Choices[0].Message.Content)

	if c.Cache != nil {
		if b, err := json.Marshal(result); err == nil {
			_ = c.Cache.Save(ctx, key, b)
		}
	}
	return result, nil
}
