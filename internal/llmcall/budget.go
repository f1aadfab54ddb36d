package llmcall

import "github.com/NREL/elm-sub000/internal/budget"

// reservedOutputTokens is the output headroom reserved when deciding how
// much of a user/content message still fits a model's context window.
const reservedOutputTokens = 1024

// fitToContext truncates content so that sysMsg+content stays within
// model's context window (minus budget.HeadroomTokens and
// reservedOutputTokens), using budget's char/4 token estimate. content is
// returned unmodified if it already fits or if nothing would remain for
// it regardless (truncating to nothing would only make the call worse).
func fitToContext(model, sysMsg, content string) string {
	promptTokens := budget.EstimateTokens(sysMsg)
	remaining := budget.RemainingContextWithHeadroom(model, reservedOutputTokens, promptTokens)
	if remaining <= 0 {
		return content
	}
	maxChars := remaining * 4
	if len(content) <= maxChars {
		return content
	}
	return content[:maxChars]
}
