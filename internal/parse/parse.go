// Package parse implements the structured, decision-tree-driven
// extraction of setback multipliers, fixed distances, and non-setback
// restriction values from ordinance text.
package parse

import (
	"context"
	"errors"
	"fmt"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/NREL/elm-sub000/internal/llmcall"
	"github.com/NREL/elm-sub000/internal/tree"
)

const defaultSystemMessage = "You are a legal scholar explaining legal " +
	"ordinances to a wind energy developer."

func setbacksSystemMessage(feature, wesType string) string {
	return tree.FormatPrompt(defaultSystemMessage+" For the duration of "+
		"this conversation, only focus on ordinances relating to setbacks "+
		"from {feature} for {wes_type}. Ignore all text that pertains to "+
		"private, micro, small, or medium sized wind energy systems.",
		map[string]string{"feature": feature, "wes_type": wesType})
}

func restrictionsSystemMessage(restriction, wesType string) string {
	return tree.FormatPrompt(defaultSystemMessage+" For the duration of "+
		"this conversation, only focus on ordinances relating to "+
		"{restriction} for {wes_type}. Ignore all text that pertains to "+
		"private, micro, small, or medium sized wind energy systems.",
		map[string]string{"restriction": restriction, "wes_type": wesType})
}

// Row is one output row of structured ordinance values for a single
// feature or restriction.
type Row map[string]any

// StructuredOrdinanceParser walks a fixed set of decision trees over
// ordinance text to extract setback multipliers/fixed distances for each
// mutually-exclusive siting feature, plus a handful of non-setback
// restrictions (noise, height, lot size, shadow flicker, density).
type StructuredOrdinanceParser struct {
	Provider llmcall.Caller
	Model    string
	// Location labels this parser's usage accounting; empty means
	// unattributed.
	Location string
	Options  Options
}

// Options configures extraction sanity checks that sit outside the
// decision-tree graphs themselves.
type Options struct {
	// BadAdderThresholdFt discards an extracted "adder" value (the static
	// distance added on top of a height-multiplier setback, e.g. "3x
	// height plus 50 feet") above this many feet. Operators occasionally
	// see an adder that is really a second multiplier misread as a fixed
	// distance, producing values in the thousands of feet; those are
	// nulled out rather than trusted. Zero disables the check.
	BadAdderThresholdFt float64
}

// NewStructuredOrdinanceParser builds a parser against provider/model.
func NewStructuredOrdinanceParser(provider llmcall.Caller, model string) *StructuredOrdinanceParser {
	return &StructuredOrdinanceParser{Provider: provider, Model: model}
}

func (p *StructuredOrdinanceParser) newChat(systemMessage string) *llmcall.ChatCaller {
	c := llmcall.NewChatCaller(p.Provider, p.Model, systemMessage)
	c.Location = p.Location
	return c
}

// clampBadAdder nulls out row's "adder" value when it exceeds
// Options.BadAdderThresholdFt. Disabled when the threshold is zero.
func (p *StructuredOrdinanceParser) clampBadAdder(row map[string]any) {
	if p.Options.BadAdderThresholdFt <= 0 {
		return
	}
	v, ok := row["adder"].(float64)
	if !ok || v <= p.Options.BadAdderThresholdFt {
		return
	}
	row["adder"] = nil
}

// runTreeLenient runs dt and treats a malformed-graph error (no edge
// condition satisfied, or a node with no conditioned edge to fall back
// on) the way the original treats that class of error: as "the text
// doesn't have this information", not a hard failure. A real error from
// the underlying LLM call still propagates.
func runTreeLenient(ctx context.Context, dt *tree.DecisionTree) (string, error) {
	reply, err := dt.Run(ctx)
	if err != nil {
		if errors.Is(err, tree.ErrMissingCondition) || errors.Is(err, tree.ErrNoEdgeSatisfied) {
			return "", nil
		}
		return "", err
	}
	return reply, nil
}

func runTreeAsJSON(ctx context.Context, dt *tree.DecisionTree) (map[string]any, error) {
	reply, err := runTreeLenient(ctx, dt)
	if err != nil {
		return nil, err
	}
	if reply == "" {
		return map[string]any{}, nil
	}
	return llmcall.ResponseAsJSON(reply), nil
}

// foundOrd checks whether the base graph's answer (the third message: the
// model's reply to the "is there a setback for this feature" question)
// began with "yes". This is deliberately stricter than the base graph's
// own continuation condition (llmResponseDoesNotStartWithNo), which also
// lets an uncertain "maybe" answer through so its text gets extracted.
func foundOrd(messages []openai.ChatCompletionMessage) bool {
	if len(messages) < 3 {
		return false
	}
	return llmResponseStartsWithYes(messages[2].Content)
}

// emptyOutput is the placeholder row(s) returned for a feature whose
// ordinance text was not found at all.
func emptyOutput(featureID string) []Row {
	if featureID == "struct" || featureID == "pline" {
		return []Row{
			{"feature": featureID + " (participating)"},
			{"feature": featureID + " (non-participating)"},
		}
	}
	return []Row{{"feature": featureID}}
}

// Parse extracts structured setback and restriction values from text,
// returning one Row per feature/restriction (features that split into
// participating/non-participating owner values contribute two rows).
func (p *StructuredOrdinanceParser) Parse(ctx context.Context, text string) ([]Row, error) {
	largestWESType, err := p.checkWindTurbineType(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("parse: turbine type check: %w", err)
	}

	features := setbackFeatures()
	total := len(features) + len(extraRestrictionOrder)

	type slot struct {
		rows []Row
		err  error
	}
	slots := make([]slot, total)

	var wg sync.WaitGroup
	for i, f := range features {
		wg.Add(1)
		go func(i int, f SetbackFeature) {
			defer wg.Done()
			rows, err := p.parseSetbackFeature(ctx, text, f, largestWESType)
			slots[i] = slot{rows: rows, err: err}
		}(i, f)
	}
	for j, key := range extraRestrictionOrder {
		slotIdx := len(features) + j
		featureKey := key
		restrictionText := extraRestrictionText[key]
		wg.Add(1)
		go func(slotIdx int, featureKey, restrictionText string) {
			defer wg.Done()
			row, err := p.parseExtraRestriction(ctx, text, featureKey, restrictionText, largestWESType)
			slots[slotIdx] = slot{rows: []Row{row}, err: err}
		}(slotIdx, featureKey, restrictionText)
	}
	wg.Wait()

	var out []Row
	for _, s := range slots {
		if s.err != nil {
			return nil, s.err
		}
		out = append(out, s.rows...)
	}
	return out, nil
}

func (p *StructuredOrdinanceParser) checkWindTurbineType(ctx context.Context, text string) (string, error) {
	chat := p.newChat(defaultSystemMessage)
	dt := &tree.DecisionTree{Graph: setupGraphWESTypes(text), Chat: chat}
	props, err := runTreeAsJSON(ctx, dt)
	if err != nil {
		return "", err
	}
	if v, ok := props["largest_wes_type"].(string); ok && v != "" {
		return v, nil
	}
	return "large wind energy systems", nil
}

func (p *StructuredOrdinanceParser) baseMessages(ctx context.Context, text string, f SetbackFeature, wesType string) ([]openai.ChatCompletionMessage, error) {
	chat := p.newChat(setbacksSystemMessage(f.Feature, wesType))
	dt := &tree.DecisionTree{Graph: setupBaseGraph(text, f.Feature, wesType, f.FeatureClarifications), Chat: chat}
	if _, err := runTreeLenient(ctx, dt); err != nil {
		return nil, err
	}
	return chat.Messages(), nil
}

func (p *StructuredOrdinanceParser) parseSetbackFeature(ctx context.Context, text string, f SetbackFeature, wesType string) ([]Row, error) {
	baseMsgs, err := p.baseMessages(ctx, text, f, wesType)
	if err != nil {
		return nil, fmt.Errorf("parse: base messages for feature %q: %w", f.FeatureID, err)
	}
	if !foundOrd(baseMsgs) {
		return emptyOutput(f.FeatureID), nil
	}

	if f.FeatureID != "struct" && f.FeatureID != "pline" {
		values, err := p.extractSetbackValues(ctx, text, f, wesType, baseMsgs)
		if err != nil {
			return nil, err
		}
		row := Row{"feature": f.FeatureID}
		for k, v := range values {
			row[k] = v
		}
		return []Row{row}, nil
	}

	return p.extractSetbackValuesForParticipatingOrNot(ctx, text, f, wesType, baseMsgs)
}

// extractSetbackValues forks two fresh conversations from baseMessages —
// one to extract the multiplier (or fixed distance), one to extract any
// minimum/maximum static bound — and merges their structured output.
func (p *StructuredOrdinanceParser) extractSetbackValues(ctx context.Context, text string, f SetbackFeature, wesType string, baseMessages []openai.ChatCompletionMessage) (Row, error) {
	sysMsg := setbacksSystemMessage(f.Feature, wesType)

	chat := p.newChat(sysMsg)
	chat.SetMessages(baseMessages)
	dt := &tree.DecisionTree{Graph: setupMultiplier(f.Feature, f.IgnoreFeatures), Chat: chat}
	out, err := runTreeAsJSON(ctx, dt)
	if err != nil {
		return nil, fmt.Errorf("parse: multiplier graph for feature %q: %w", f.FeatureID, err)
	}
	if out["mult_value"] == nil {
		return out, nil
	}

	chat2 := p.newChat(sysMsg)
	chat2.SetMessages(baseMessages)
	dt2 := &tree.DecisionTree{Graph: setupConditional(f.Feature), Chat: chat2}
	conOut, err := runTreeAsJSON(ctx, dt2)
	if err != nil {
		return nil, fmt.Errorf("parse: conditional graph for feature %q: %w", f.FeatureID, err)
	}
	for k, v := range conOut {
		out[k] = v
	}
	p.clampBadAdder(out)
	return out, nil
}

// extractSetbackValuesForParticipatingOrNot splits a struct/pline
// ordinance into its participating- and non-participating-owner text (if
// the ordinance makes that distinction) and extracts setback values for
// each half independently and concurrently.
func (p *StructuredOrdinanceParser) extractSetbackValuesForParticipatingOrNot(ctx context.Context, text string, f SetbackFeature, wesType string, baseMessages []openai.ChatCompletionMessage) ([]Row, error) {
	chat := p.newChat(setbacksSystemMessage(f.Feature, wesType))
	chat.SetMessages(baseMessages)
	dt := &tree.DecisionTree{Graph: setupParticipatingOwner(f.Feature), Chat: chat}
	out, err := runTreeAsJSON(ctx, dt)
	if err != nil {
		return nil, fmt.Errorf("parse: participating-owner graph for feature %q: %w", f.FeatureID, err)
	}

	keys := []string{"participating", "non-participating"}
	type slot struct {
		row Row
		err error
	}
	slots := make([]slot, len(keys))

	var wg sync.WaitGroup
	for i, key := range keys {
		subText, _ := out[key].(string)
		wg.Add(1)
		go func(i int, key, subText string) {
			defer wg.Done()
			row, err := p.parsePOrNPText(ctx, key, subText, f, wesType, baseMessages)
			slots[i] = slot{row: row, err: err}
		}(i, key, subText)
	}
	wg.Wait()

	rows := make([]Row, 0, len(slots))
	for _, s := range slots {
		if s.err != nil {
			return nil, s.err
		}
		rows = append(rows, s.row)
	}
	return rows, nil
}

// parsePOrNPText extracts setback values for one half (participating or
// non-participating) of a split ordinance. It replaces the tail of the
// base transcript as if the model had originally been asked about, and
// answered with, just this half's text — so the multiplier/conditional
// graphs continue from a conversation scoped to the right sub-text.
func (p *StructuredOrdinanceParser) parsePOrNPText(ctx context.Context, key, subText string, f SetbackFeature, wesType string, baseMessages []openai.ChatCompletionMessage) (Row, error) {
	outFeatName := f.FeatureID + " (" + key + ")"
	if subText == "" {
		return Row{"feature": outFeatName}, nil
	}

	subFeature := f
	subFeature.Feature = key + " " + f.Feature

	messages := append([]openai.ChatCompletionMessage{}, baseMessages...)
	if len(messages) >= 2 {
		messages[len(messages)-2].Content = extractOriginalTextPrompt(subFeature.Feature, wesType)
		messages[len(messages)-1].Content = subText
	}

	values, err := p.extractSetbackValues(ctx, subText, subFeature, wesType, messages)
	if err != nil {
		return nil, fmt.Errorf("parse: participating/non-participating text for %q: %w", outFeatName, err)
	}
	row := Row{"feature": outFeatName}
	for k, v := range values {
		row[k] = v
	}
	return row, nil
}

func (p *StructuredOrdinanceParser) parseExtraRestriction(ctx context.Context, text, featureKey, restrictionText, wesType string) (Row, error) {
	chat := p.newChat(restrictionsSystemMessage(restrictionText, wesType))
	dt := &tree.DecisionTree{Graph: setupGraphExtraRestriction(restrictionText, wesType, text), Chat: chat}
	out, err := runTreeAsJSON(ctx, dt)
	if err != nil {
		return nil, fmt.Errorf("parse: extra restriction %q: %w", featureKey, err)
	}
	row := Row{"feature": featureKey}
	for k, v := range out {
		row[k] = v
	}
	return row, nil
}
