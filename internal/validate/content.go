package validate

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// ValidationWithMemory checks a sequence of text chunks against a
// structured LLM prompt, recalling answers from earlier chunks instead of
// re-querying the LLM once a key has been resolved for a given index.
type ValidationWithMemory struct {
	Caller      StructuredCaller
	TextChunks  []string
	NumToRecall int

	memory []map[string]bool
}

// NewValidationWithMemory builds a validator over textChunks. numToRecall
// must be at least 1 (it includes the chunk at the requested index);
// values below 1 are clamped to 1.
func NewValidationWithMemory(caller StructuredCaller, textChunks []string, numToRecall int) *ValidationWithMemory {
	if numToRecall < 1 {
		numToRecall = 1
	}
	return &ValidationWithMemory{
		Caller:      caller,
		TextChunks:  textChunks,
		NumToRecall: numToRecall,
		memory:      make([]map[string]bool, len(textChunks)),
	}
}

// ParseFromInd checks chunk ind (and up to NumToRecall-1 chunks before it,
// most recent first) against promptTemplate formatted with key, returning
// true on the first chunk whose reply answers key truthily.
func (m *ValidationWithMemory) ParseFromInd(ctx context.Context, ind int, promptTemplate, key string) (bool, error) {
	if ind < 0 || ind >= len(m.TextChunks) {
		return false, fmt.Errorf("validate: index %d out of range [0,%d)", ind, len(m.TextChunks))
	}

	start := ind - m.NumToRecall + 1
	if start < 0 {
		start = 0
	}
	for i := ind; i >= start; i-- {
		if m.memory[i] == nil {
			m.memory[i] = map[string]bool{}
		}
		check, known := m.memory[i][key]
		if !known {
			sysMsg := formatWithArgs(promptTemplate, map[string]string{"key": key})
			props, err := m.Caller.Call(ctx, sysMsg, m.TextChunks[i])
			if err != nil {
				return false, fmt.Errorf("validate: parse from ind %d: %w", i, err)
			}
			check = boolProp(props, key)
			m.memory[i][key] = check
			log.Debug().Int("chunk", i).Str("key", key).Bool("value", check).Msg("validation memo recorded")
		}
		if check {
			return true, nil
		}
	}
	return false, nil
}

// KeywordHeuristic is a configurable allow-list/deny-list term matcher
// used to gate chunks out before any LLM call. It generalizes the
// original's hardcoded wind-energy word lists to an arbitrary domain
// vocabulary.
type KeywordHeuristic struct {
	// DenyWords are look-alike words stripped from the text before
	// matching (e.g. "window" should not count as a "wind" hit).
	DenyWords []string
	// Keywords are single words that count as one match each if present.
	Keywords []string
	// Acronyms are short tokens that only count when they appear with
	// word-boundary-like surrounding context (space, newline, punctuation)
	// to avoid matching them as substrings of unrelated words.
	Acronyms []string
	// Phrases are multi-word phrases; every word in the phrase must be
	// present (not necessarily adjacent) for the phrase to count.
	Phrases []string
	// MatchThreshold is exclusive: Mentions passes only when the match
	// count is strictly greater than it. The original's rule corresponds
	// to a value of 1.
	MatchThreshold int
}

var acronymContexts = []string{
	" %s ", " %s\n", " %s.", "\n%s ", "\n%s.", "\n%s\n", "(%s ", " %s)",
}

// Mentions reports whether text passes the keyword heuristic.
func (k KeywordHeuristic) Mentions(text string) bool {
	heuristicText := strings.ToLower(text)
	for _, deny := range k.DenyWords {
		heuristicText = strings.ReplaceAll(heuristicText, strings.ToLower(deny), "")
	}

	matches := 0
	for _, kw := range k.Keywords {
		if strings.Contains(heuristicText, strings.ToLower(kw)) {
			matches++
		}
	}
	matches += countAcronymMatches(heuristicText, k.Acronyms)
	for _, phrase := range k.Phrases {
		if phraseWordsAllPresent(heuristicText, phrase) {
			matches++
		}
	}
	return matches > k.MatchThreshold
}

func countAcronymMatches(text string, acronyms []string) int {
	for _, ctx := range acronymContexts {
		count := 0
		for _, a := range acronyms {
			if strings.Contains(text, fmt.Sprintf(ctx, strings.ToLower(a))) {
				count++
			}
		}
		if count > 0 {
			return count
		}
	}
	return 0
}

func phraseWordsAllPresent(text, phrase string) bool {
	for _, word := range strings.Fields(phrase) {
		if !strings.Contains(text, strings.ToLower(word)) {
			return false
		}
	}
	return true
}
