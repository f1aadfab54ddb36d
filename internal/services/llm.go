package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/NREL/elm-sub000/internal/llm"
	"github.com/NREL/elm-sub000/internal/usage"
)

const minuteWindow = time.Minute

// defaultRequestTimeout bounds a single chat-completion attempt when the
// request carries no explicit Timeout.
const defaultRequestTimeout = 60 * time.Second

// ErrRateLimited names the over-budget condition of an LLMService. Process
// does not return it: the request and token budgets are enforced through
// CanProcess, which the dispatcher polls before handing over each job.
var ErrRateLimited = errors.New("services: llm rate limit exceeded")

// LLMRequest is the payload type accepted by LLMService.
type LLMRequest struct {
	Messages    []openai.ChatCompletionMessage
	Model       string
	Temperature float32
	// Location labels which location's usage this call should be charged
	// to, when UsageSink is configured.
	Location string
	// Timeout bounds a single attempt; it doubles after every retry. Zero
	// uses defaultRequestTimeout.
	Timeout time.Duration
}

// UsageSink receives per-call token accounting, keyed by the sub-label a
// request was submitted under (normally a location name).
type UsageSink interface {
	Record(location string, requestTokens, responseTokens int)
}

// LLMService is a rate-limited wrapper around an llm.Client. It enforces a
// moving-window budget on both request count and token count, tracked by
// two independent TimeBoundedTrackers, and retries transient failures with
// exponential backoff.
type LLMService struct {
	Client            llm.Client
	Tokenizer         llm.Tokenizer
	RequestsPerMinute int
	TokensPerMinute   int
	// RetryPolicy overrides the retry/backoff behavior of Process. The
	// zero value uses usage.DefaultRetryPolicy(); IsRetryable is always
	// replaced with this service's own transient/bad-request
	// classification regardless of what is set here.
	RetryPolicy usage.RetryPolicy
	// UsageSink, when set, is notified of prompt/response token counts
	// after every successful call.
	UsageSink UsageSink

	requests *usage.TimeBoundedTracker
	tokens   *usage.TimeBoundedTracker
}

// NewLLMService constructs an LLMService with one-minute rate windows.
func NewLLMService(client llm.Client, tok llm.Tokenizer, requestsPerMinute, tokensPerMinute int) *LLMService {
	return &LLMService{
		Client:            client,
		Tokenizer:         tok,
		RequestsPerMinute: requestsPerMinute,
		TokensPerMinute:   tokensPerMinute,
		requests:          usage.NewTimeBoundedTracker(minuteWindow),
		tokens:            usage.NewTimeBoundedTracker(minuteWindow),
	}
}

func (s *LLMService) Name() string { return "LLMService" }

// CanProcess reports whether both the request-count and token-count
// windows are under budget. A zero limit disables that dimension's check.
func (s *LLMService) CanProcess() bool {
	if s.RequestsPerMinute > 0 && s.requests.Total() >= float64(s.RequestsPerMinute) {
		return false
	}
	if s.TokensPerMinute > 0 && s.tokens.Total() >= float64(s.TokensPerMinute) {
		return false
	}
	return true
}

// Process issues the chat completion, retrying transient errors with
// exponential backoff and doubling the per-attempt timeout after each
// retry. A non-retryable (bad-request) error returns (nil, nil): the
// caller sees "no answer", not a hard failure, matching the decision-tree
// graphs' lenient treatment of a missing response.
func (s *LLMService) Process(ctx context.Context, payload any) (any, error) {
	req, ok := payload.(LLMRequest)
	if !ok {
		return nil, fmt.Errorf("services: LLMService expects LLMRequest, got %T", payload)
	}
	if s.Client == nil {
		return nil, errors.New("services: LLMService has no client configured")
	}

	promptTokens := 0
	if s.Tokenizer != nil {
		promptTokens = s.Tokenizer.CountMessageTokens(req.Messages, req.Model)
	}
	s.requests.Add(1)
	s.tokens.Add(float64(promptTokens))

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	policy := s.RetryPolicy
	if policy.BaseDelay == 0 && policy.MaxRetries == 0 && !policy.Jitter {
		policy = usage.DefaultRetryPolicy()
	}
	policy.IsRetryable = isRetryableLLMError

	var resp openai.ChatCompletionResponse
	err := usage.RetryWithBackoff(ctx, policy, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		r, callErr := s.Client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model:       req.Model,
			Messages:    req.Messages,
			Temperature: req.Temperature,
			N:           1,
		})
		if callErr != nil {
			timeout *= 2
			return callErr
		}
		resp = r
		return nil
	})
	if err != nil {
		if !isRetryableLLMError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("services: llm call failed after retries: %w", err)
	}

	if s.UsageSink != nil {
		responseTokens := 0
		if s.Tokenizer != nil && len(resp.Choices) > 0 {
			responseTokens = s.Tokenizer.CountTokens(resp.Choices[0].Message.Content, req.Model)
		}
		s.UsageSink.Record(req.Location, promptTokens, responseTokens)
	}
	return resp, nil
}

// isRetryableLLMError classifies rate-limit and server errors as
// retryable, and malformed-request (4xx other than 429) errors as not,
// matching the original's "retry transient, null out bad requests" split.
func isRetryableLLMError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return true
}
