package llm

import (
	openai "github.com/sashabaranov/go-openai"
	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts tokens the way the target model actually will, for rate
// limiting and context-budget decisions. A char/4 heuristic (see
// internal/budget) is fine for a pre-flight sanity check, but a rate
// limiter needs the real count.
type Tokenizer interface {
	CountTokens(text, model string) int
	CountMessageTokens(messages []openai.ChatCompletionMessage, model string) int
}

// TiktokenCounter counts tokens using github.com/pkoukk/tiktoken-go,
// falling back to cl100k_base for models tiktoken does not recognize by
// name (e.g. locally hosted models served behind an OpenAI-compatible
// endpoint).
type TiktokenCounter struct{}

// perMessageOverhead and perReplyOverhead mirror OpenAI's documented
// chat-format token bookkeeping (role/name separators and the assistant
// priming tokens), matching count_openai_tokens's "+4 per message, +3
// overall" convention.
const (
	perMessageOverhead = 4
	perReplyOverhead   = 3
)

func (TiktokenCounter) encoding(model string) *tiktoken.Tiktoken {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil
		}
	}
	return enc
}

func (c TiktokenCounter) CountTokens(text, model string) int {
	enc := c.encoding(model)
	if enc == nil {
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

func (c TiktokenCounter) CountMessageTokens(messages []openai.ChatCompletionMessage, model string) int {
	total := 0
	for _, m := range messages {
		total += c.CountTokens(m.Content, model) + perMessageOverhead
	}
	return total + perReplyOverhead
}
