// Package synth cleans the ordinance text an Extractor has assembled
// before it is handed to the structured parser: it re-gates the chunks
// that make up the excerpt against two further checks (does the chunk
// state an enforceable restriction, and does it apply at the right
// installation scale) and splices the survivors back together.
package synth

import (
	"context"
	"fmt"

	"github.com/NREL/elm-sub000/internal/ordinance"
	"github.com/NREL/elm-sub000/internal/validate"
)

// RestrictionPrompt asks whether a chunk states an enforceable
// requirement or restriction, as opposed to purely procedural,
// definitional, or administrative text (permit fees, application steps,
// term definitions) that happened to survive the earlier gate.
const RestrictionPrompt = "You extract structured data from text. Return " +
	"your answer in JSON format (not markdown). Your JSON file must " +
	"include exactly two keys. The first key is 'summary', a string " +
	"summarizing any requirement or restriction stated in the text. The " +
	"second key is '{key}', a boolean set to true if the text states an " +
	"enforceable requirement or restriction on siting, and false if the " +
	"text is purely procedural, definitional, or administrative (e.g. " +
	"permit fees, application steps, or term definitions) with no " +
	"enforceable requirement of its own."

// CorrectSizePrompt re-checks, after restriction trimming, whether the
// surviving text still applies to utility-scale installations rather
// than only to the private/residential scale ordinances regulate
// separately.
const CorrectSizePrompt = "You are a legal scholar that reads ordinance " +
	"text and determines whether it applies to large, utility-scale " +
	"installations of the regulated technology, as opposed to private, " +
	"micro, small, or medium scale installations a developer would not " +
	"care about. Return your answer in JSON format (not markdown). Your " +
	"JSON file must include exactly two keys. The first key is " +
	"'summary', a string summarizing the scale(s) of installation the " +
	"text applies to (if any). The second key is '{key}', a boolean set " +
	"to true if any part of the text is applicable to utility-scale " +
	"installations and false otherwise."

// Cleaner narrows a set of ordinance-candidate text chunks down to the
// ones that both state an enforceable restriction and apply at the
// correct installation scale, then reconstructs the cleaned excerpt.
type Cleaner struct {
	Restrictions *validate.Validator
	CorrectSize  *validate.Validator
	OverlapChars int
}

// NewCleaner builds a Cleaner whose two checks both run against caller.
func NewCleaner(caller validate.StructuredCaller) *Cleaner {
	return &Cleaner{
		Restrictions: validate.NewValidator(caller, RestrictionPrompt, func(props map[string]any) bool {
			return boolProp(props, "restriction")
		}),
		CorrectSize: validate.NewValidator(caller, CorrectSizePrompt, func(props map[string]any) bool {
			return boolProp(props, "correct_size")
		}),
		OverlapChars: ordinance.DefaultOverlapChars,
	}
}

// Clean keeps only the chunks that pass both checks and splices the
// survivors back together with ordinance.MergeOverlappingTexts. It
// returns an empty string, not an error, when nothing survives; that is
// a normal "no enforceable utility-scale restriction found here" result.
func (c *Cleaner) Clean(ctx context.Context, chunks []string) (string, error) {
	var kept []string
	for i, text := range chunks {
		ok, err := c.Restrictions.Check(ctx, text, map[string]string{"key": "restriction"})
		if err != nil {
			return "", fmt.Errorf("synth: restriction check at chunk %d: %w", i, err)
		}
		if !ok {
			continue
		}
		ok, err = c.CorrectSize.Check(ctx, text, map[string]string{"key": "correct_size"})
		if err != nil {
			return "", fmt.Errorf("synth: correct-size check at chunk %d: %w", i, err)
		}
		if !ok {
			continue
		}
		kept = append(kept, text)
	}
	if len(kept) == 0 {
		return "", nil
	}
	return ordinance.MergeOverlappingTexts(kept, c.OverlapChars), nil
}

func boolProp(props map[string]any, key string) bool {
	v, ok := props[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}
