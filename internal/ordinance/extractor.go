package ordinance

import (
	"context"
	"fmt"

	"github.com/NREL/elm-sub000/internal/validate"
)

// IsLegalTextPrompt asks whether a chunk is legally-binding statute or
// code text, as opposed to a news article, summary, or application.
const IsLegalTextPrompt = "You extract structured data from text. Return " +
	"your answer in JSON format (not markdown). Your JSON file must " +
	"include exactly three keys. The first key is 'summary', a string " +
	"summary of the text. The second key is 'type', a string naming the " +
	"type of document this text belongs to. The third key is '{key}', a " +
	"boolean set to true if the type of text is a legally-binding statute " +
	"or code, and false if the text is an excerpt from other non-legal " +
	"text such as a news article, survey, summary, application, or " +
	"public notice."

// ContainsOrdinanceInfoPrompt asks whether a chunk contains enough
// quantitative information to compute siting requirements for the
// regulated technology.
const ContainsOrdinanceInfoPrompt = "You extract structured data from " +
	"text. Return your answer in JSON format (not markdown). Your JSON " +
	"file must include exactly three keys. The first key is " +
	"'siting_reqs', a string summarizing any setbacks or other " +
	"geospatial siting requirements given in the text. The second key is " +
	"'reqs', a list of the quantitative values from the text that can be " +
	"used to compute those requirements (empty list if none exist). The " +
	"last key is '{key}', a boolean set to true if the text excerpt " +
	"provides enough quantitative information to compute siting " +
	"requirements and false otherwise. Geospatial siting is impacted by " +
	"any of the following: buildings/structures/residences; property " +
	"lines/parcels/subdivisions; roads/rights-of-way; railroads; overhead " +
	"electrical transmission wires; bodies of water including wetlands, " +
	"lakes, reservoirs, streams, and rivers; natural, wildlife, and " +
	"environmental conservation areas; noise restrictions; shadow " +
	"flicker restrictions; density restrictions; height restrictions; " +
	"minimum/maximum lot size."

// IsUtilityScalePrompt asks whether the regulated technology described in
// the text applies at utility scale rather than private/residential scale.
const IsUtilityScalePrompt = "You are a legal scholar that reads ordinance " +
	"text and determines whether it applies to large, utility-scale " +
	"installations of the regulated technology, as opposed to private, " +
	"micro, small, or medium scale installations a developer would not " +
	"care about. Return your answer in JSON format (not markdown). Your " +
	"JSON file must include exactly two keys. The first key is " +
	"'summary', a string summarizing the scale(s) of installation the " +
	"text applies to (if any). The second key is '{key}', a boolean set " +
	"to true if any part of the text is applicable to utility-scale " +
	"installations and false otherwise."

// Chunk is one unit of ordinance-candidate text at a known chunk index.
type Chunk struct {
	Ind  int
	Text string
}

// Extractor walks a document's text chunks and accumulates the ones that
// look like enforceable, utility-scale ordinance text, then reconstructs
// the combined ordinance excerpt from the chunks around each hit.
type Extractor struct {
	Memory    *validate.ValidationWithMemory
	Heuristic validate.KeywordHeuristic

	legalTextVotes  []bool
	mentionVotes    []bool
	ordinanceChunks []Chunk
}

// NewExtractor builds an Extractor over textChunks using caller for the
// structured LLM checks and heuristic to gate chunks before any LLM call.
func NewExtractor(caller validate.StructuredCaller, textChunks []string, numToRecall int, heuristic validate.KeywordHeuristic) *Extractor {
	return &Extractor{
		Memory:    validate.NewValidationWithMemory(caller, textChunks, numToRecall),
		Heuristic: heuristic,
	}
}

// IsLegalText reports whether at least half of the legal-text votes cast
// so far were true. It returns false if no votes have been cast yet.
func (e *Extractor) IsLegalText() bool {
	if len(e.legalTextVotes) == 0 {
		return false
	}
	trueCount := 0
	for _, v := range e.legalTextVotes {
		if v {
			trueCount++
		}
	}
	return float64(trueCount) >= 0.5*float64(len(e.legalTextVotes))
}

// OrdinanceText reconstructs the combined ordinance excerpt from every
// chunk recorded as a hit, preceded by NumToRecall-1 chunks and followed by
// one chunk of context, with overlap spliced out via MergeOverlappingTexts.
func (e *Extractor) OrdinanceText() string {
	chunks := e.Memory.TextChunks
	numToRecall := e.Memory.NumToRecall

	indsToGrab := map[int]struct{}{}
	for _, c := range e.ordinanceChunks {
		for delta := 1 - numToRecall; delta <= 1; delta++ {
			indsToGrab[c.Ind+delta] = struct{}{}
		}
	}

	sorted := sortedInRangeInds(indsToGrab, len(chunks))
	texts := make([]string, len(sorted))
	for i, ind := range sorted {
		texts[i] = chunks[ind]
	}
	return MergeOverlappingTexts(texts, DefaultOverlapChars)
}

// Parse iterates the chunks in order, gating LLM calls behind the keyword
// heuristic and the running legal-text vote once minChunksToProcess chunks
// have been seen, and returns true if any ordinance chunk was found.
func (e *Extractor) Parse(ctx context.Context, minChunksToProcess int) (bool, error) {
	chunks := e.Memory.TextChunks
	for ind, text := range chunks {
		e.mentionVotes = append(e.mentionVotes, e.Heuristic.Mentions(text))

		if ind >= minChunksToProcess {
			if !e.IsLegalText() {
				return false, nil
			}
			if !anyOfLast(e.mentionVotes, e.Memory.NumToRecall) {
				continue
			}
		}

		if ind < minChunksToProcess {
			isLegal, err := e.Memory.ParseFromInd(ctx, ind, IsLegalTextPrompt, "legal_text")
			if err != nil {
				return false, fmt.Errorf("ordinance: legal text check at %d: %w", ind, err)
			}
			e.legalTextVotes = append(e.legalTextVotes, isLegal)
			if !isLegal {
				continue
			}
		}

		containsOrd, err := e.Memory.ParseFromInd(ctx, ind, ContainsOrdinanceInfoPrompt, "contains_ord_info")
		if err != nil {
			return false, fmt.Errorf("ordinance: contains-info check at %d: %w", ind, err)
		}
		if !containsOrd {
			continue
		}

		isUtilityScale, err := e.Memory.ParseFromInd(ctx, ind, IsUtilityScalePrompt, "x")
		if err != nil {
			return false, fmt.Errorf("ordinance: utility-scale check at %d: %w", ind, err)
		}
		if !isUtilityScale {
			continue
		}

		e.ordinanceChunks = append(e.ordinanceChunks, Chunk{Ind: ind, Text: text})
		e.mentionVotes[len(e.mentionVotes)-1] = false
	}
	return len(e.ordinanceChunks) > 0, nil
}

func anyOfLast(votes []bool, n int) bool {
	start := len(votes) - n
	if start < 0 {
		start = 0
	}
	for _, v := range votes[start:] {
		if v {
			return true
		}
	}
	return false
}

func sortedInRangeInds(inds map[int]struct{}, limit int) []int {
	out := make([]int, 0, len(inds))
	for i := range inds {
		if i >= 0 && i < limit {
			out = append(out, i)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
