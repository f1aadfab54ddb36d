package validate

import (
	"context"
	"fmt"
	"strings"
)

// Document is the minimal surface a CountyValidator needs from a fetched
// document: the source URL it was retrieved from, and the small set of raw
// pages used for location-validation voting.
type Document interface {
	Source() string
	RawPages() []string
}

// NewURLValidator builds the validator that checks whether a document's
// source URL mentions the target county and state.
func NewURLValidator(caller StructuredCaller) *Validator {
	msg := "You extract structured data from a URL. Return your answer " +
		"in JSON format. Your JSON file must include exactly two keys. " +
		"The first key is 'correct_county', which is a boolean that is set " +
		"to true if the URL mentions {county} County in some way. Do not " +
		"infer based on information in the URL about any US state, city, " +
		"township, or otherwise. False if not sure. The second key is " +
		"'correct_state', which is a boolean that is set to true if the " +
		"URL mentions {state} State in some way. Do not infer based on " +
		"information in the URL about any US county, city, township, or " +
		"otherwise. False if not sure."
	return NewValidator(caller, msg, func(props map[string]any) bool {
		return boolProp(props, "correct_county") && boolProp(props, "correct_state")
	})
}

// NewCountyJurisdictionValidator builds the validator that rejects
// documents whose regulations explicitly apply to a different or broader
// jurisdiction than the target county.
func NewCountyJurisdictionValidator(caller StructuredCaller) *Validator {
	msg := "You extract structured data from legal text. Return your " +
		"answer in JSON format. Your JSON file must include exactly three " +
		"keys. The first key is 'other_jurisdiction', which is a boolean " +
		"that is set to true if the text excerpt explicitly mentions that " +
		"the regulations within apply to a jurisdiction other than " +
		"{county} County (i.e. they apply to a subdivision like a " +
		"township or a city, or they apply more broadly, like to a state " +
		"or the full country). False if the regulations apply to {county} " +
		"County or if there is not enough information to determine the " +
		"answer. The second key is 'multi_county', which is a boolean " +
		"that is set to true if the text excerpt explicitly mentions that " +
		"the regulations apply to more than one county. False otherwise " +
		"or if there is not enough information. The third key is " +
		"'explanation', a string with a short explanation if either " +
		"boolean above is true."
	return NewValidator(caller, msg, func(props map[string]any) bool {
		return !boolProp(props, "other_jurisdiction") && !boolProp(props, "multi_county")
	})
}

// NewCountyNameValidator builds the validator that checks whether legal
// text explicitly names the target county and state.
func NewCountyNameValidator(caller StructuredCaller) *Validator {
	msg := "You extract structured data from legal text. Return your " +
		"answer in JSON format. Your JSON file must include exactly three " +
		"keys. The first key is 'wrong_county', which is a boolean that " +
		"is set to true if the legal text is not for {county} County. Do " +
		"not infer based on any information about any US state, city, " +
		"township, or otherwise. False if the text applies to {county} " +
		"County or if there is not enough information to determine the " +
		"answer. The second key is 'wrong_state', which is a boolean that " +
		"is set to true if the legal text is not for a county in {state} " +
		"State. False if the text applies to a county in {state} State or " +
		"if there is not enough information. The third key is " +
		"'explanation', a string with a short explanation if either " +
		"boolean above is true."
	return NewValidator(caller, msg, func(props map[string]any) bool {
		return !boolProp(props, "wrong_county") && !boolProp(props, "wrong_state")
	})
}

// CountyValidator combines URL, jurisdiction, and name validators with
// heuristic shortcuts into a single accept/reject decision for a document
// against a target county.
type CountyValidator struct {
	ScoreThresh float64

	jurisdiction *Validator
	url          *Validator
	name         *Validator
}

// NewCountyValidator wires the three sub-validators against a shared
// caller. scoreThresh is the per-page weighted-vote threshold (default 0.8
// semantics expected from callers passing 0 to mean "use default").
func NewCountyValidator(caller StructuredCaller, scoreThresh float64) *CountyValidator {
	if scoreThresh <= 0 {
		scoreThresh = 0.8
	}
	return &CountyValidator{
		ScoreThresh:  scoreThresh,
		jurisdiction: NewCountyJurisdictionValidator(caller),
		url:          NewURLValidator(caller),
		name:         NewCountyNameValidator(caller),
	}
}

// Check decides whether doc pertains to county, state.
func (cv *CountyValidator) Check(ctx context.Context, doc Document, county, state string) (bool, error) {
	args := map[string]string{"county": county, "state": state}

	jurisdictionOK, err := cv.votedCheck(ctx, cv.jurisdiction, doc, args)
	if err != nil {
		return false, err
	}
	if !jurisdictionOK {
		return false, nil
	}

	urlOK, err := cv.url.Check(ctx, doc.Source(), args)
	if err != nil {
		return false, err
	}
	if urlOK {
		return true, nil
	}

	if heuristicMentionsCountyAndState(doc, county, state) {
		return true, nil
	}

	return cv.votedCheck(ctx, cv.name, doc, args)
}

// votedCheck runs v against every raw page in turn and combines the
// per-page verdicts with a length-weighted average against ScoreThresh.
func (cv *CountyValidator) votedCheck(ctx context.Context, v *Validator, doc Document, args map[string]string) (bool, error) {
	pages := doc.RawPages()
	if len(pages) == 0 {
		return false, nil
	}
	votes := make([]bool, len(pages))
	for i, page := range pages {
		ok, err := v.Check(ctx, page, args)
		if err != nil {
			return false, fmt.Errorf("validate: county check page %d: %w", i, err)
		}
		votes[i] = ok
	}
	return weightedVote(votes, pages) > cv.ScoreThresh, nil
}

func weightedVote(votes []bool, pages []string) float64 {
	var total, weight float64
	for i, page := range pages {
		w := float64(len(page))
		weight += w
		if votes[i] {
			total += w
		}
	}
	if weight == 0 {
		return 0
	}
	return total / weight
}

func heuristicMentionsCountyAndState(doc Document, county, state string) bool {
	pages := doc.RawPages()
	foundCounty := false
	foundState := false
	countyLower := strings.ToLower(county)
	stateLower := strings.ToLower(state)
	for _, p := range pages {
		pl := strings.ToLower(p)
		if !foundCounty && strings.Contains(pl, countyLower) {
			foundCounty = true
		}
		if !foundState && strings.Contains(pl, stateLower) {
			foundState = true
		}
	}
	return foundCounty && foundState
}
