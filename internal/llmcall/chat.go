package llmcall

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/NREL/elm-sub000/internal/cache"
	"github.com/NREL/elm-sub000/internal/services"
)

// ChatCaller maintains a growing message transcript across multiple LLM
// turns, used by the decision tree to walk a multi-prompt conversation
// without re-sending earlier turns by hand.
type ChatCaller struct {
	Provider Caller
	Model    string
	// Cache, when set, short-circuits a turn whose full transcript
	// (including the new user message) has already been seen.
	Cache *cache.LLMCache
	// Location labels usage from this transcript's calls, passed through
	// to services.LLMRequest.Location for per-location accounting.
	Location string

	messages []openai.ChatCompletionMessage
}

// NewChatCaller starts a transcript with an optional system message.
func NewChatCaller(provider Caller, model, systemMessage string) *ChatCaller {
	c := &ChatCaller{Provider: provider, Model: model}
	if systemMessage != "" {
		c.messages = append(c.messages, openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleSystem, Content: systemMessage,
		})
	}
	return c
}

// Messages returns the transcript accumulated so far.
func (c *ChatCaller) Messages() []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// SetMessages replaces the transcript wholesale, letting a caller resume a
// conversation from a previously captured checkpoint (e.g. the messages
// recorded right before a decision tree branches).
func (c *ChatCaller) SetMessages(messages []openai.ChatCompletionMessage) {
	c.messages = append([]openai.ChatCompletionMessage{}, messages...)
}

// Send appends a user turn, submits the full transcript so far, appends the
// model's reply, and returns the reply's raw text.
func (c *ChatCaller) Send(ctx context.Context, userMessage string) (string, error) {
	if len(c.messages) > 0 {
		userMessage = fitToContext(c.Model, transcriptKey(c.messages), userMessage)
	}
	c.messages = append(c.messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser, Content: userMessage,
	})

	var key string
	if c.Cache != nil {
		key = cache.KeyFrom(c.Model, transcriptKey(c.messages))
		if raw, ok, _ := c.Cache.Get(ctx, key); ok {
			var reply string
			if err := json.Unmarshal(raw, &reply); err == nil {
				c.messages = append(c.messages, openai.ChatCompletionMessage{
					Role: openai.ChatMessageRoleAssistant, Content: reply,
				})
				return reply, nil
			}
		}
	}

	v, err := c.Provider.Call(ctx, "LLMService", services.LLMRequest{
		Model:    c.Model,
		Messages: c.messages,
		Location: c.Location,
	})
	if err != nil {
		return "", fmt.Errorf("llmcall: chat call: %w", err)
	}
	resp, ok := v.(openai.ChatCompletionResponse)
	if !ok || len(resp.Choices) == 0 {
		return "", fmt.Errorf("llmcall: chat call returned no choices")
	}
	reply := resp.Choices[0].Message
	c.messages = append(c.messages, reply)

	if c.Cache != nil {
		if b, err := json.Marshal(reply.Content); err == nil {
			_ = c.Cache.Save(ctx, key, b)
		}
	}
	return reply.Content, nil
}

// SendJSON is Send followed by lenient JSON parsing of the reply, the
// pairing the decision tree uses at every node.
func (c *ChatCaller) SendJSON(ctx context.Context, userMessage string) (map[string]any, error) {
	reply, err := c.Send(ctx, userMessage)
	if err != nil {
		return nil, err
	}
	return ResponseAsJSON(reply), nil
}

// transcriptKey flattens a message transcript into a single string for
// cache-keying and context-budget estimation purposes.
func transcriptKey(messages []openai.ChatCompletionMessage) string {
	out := ""
	for _, m := range messages {
		out += m.Role + ":" + m.Content + "\n"
	}
	return out
}
