package parse

import (
	"strings"

	"github.com/NREL/elm-sub000/internal/tree"
)

const sectionPrompt = `The value of the "section" key should be a string representing the title of the section (including numerical labels), if it's given, and ` + "`null`" + ` otherwise.`

const commentPrompt = `The value of the "comment" key should be a one-sentence explanation of how you determined the value, if you think it is necessary (` + "`null`" + ` otherwise).`

const extractOriginalTextPromptTemplate = "Can you extract the raw text with original formatting that states how close I can site {wes_type} to {feature}? "

// llmResponseStartsWithYes reports whether reply begins with "yes",
// case-insensitively.
func llmResponseStartsWithYes(reply string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(reply)), "yes")
}

// llmResponseStartsWithNo reports whether reply begins with "no",
// case-insensitively.
func llmResponseStartsWithNo(reply string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(reply)), "no")
}

func llmResponseDoesNotStartWithNo(reply string) bool {
	return !llmResponseStartsWithNo(reply)
}

func fmtPrompt(template string, attrs map[string]string) string {
	return tree.FormatPrompt(template, attrs)
}

// setupGraphWESTypes builds the graph that determines the largest wind
// energy system size distinguished in text, if any.
func setupGraphWESTypes(text string) tree.Graph {
	attrs := map[string]string{"text": text}
	return tree.Graph{
		Root: "init",
		Nodes: map[string]tree.Node{
			"init": {
				Prompt: fmtPrompt("Does the following text distinguish between "+
					"multiple turbine sizes? Distinctions are often made as "+
					"'small' vs 'large' wind energy conversion systems or "+
					"actual MW values. Begin your response with either 'Yes' "+
					"or 'No' and explain your answer.\n\n\"\"\"\n{text}\n\"\"\"", attrs),
				Edges: []tree.Edge{{To: "get_text", Condition: llmResponseStartsWithYes}},
			},
			"get_text": {
				Prompt: "What are the different turbine sizes this text " +
					"mentions? List them in order of increasing size.",
				Edges: []tree.Edge{{To: "final"}},
			},
			"final": {
				Prompt: "Respond based on our entire conversation so far. " +
					"Return your answer in JSON format (not markdown). Your " +
					"JSON file must include exactly two keys. The keys are " +
					`"largest_wes_type" and "explanation". The value of the ` +
					`"largest_wes_type" key should be a string that labels ` +
					"the largest wind energy conversion system mentioned in " +
					`the text. The value of the "explanation" key should be ` +
					"a string containing a short explanation for your choice.",
			},
		},
	}
}

// setupBaseGraph builds the graph that determines whether text describes
// a setback for feature/wesType at all, and if so extracts the raw
// ordinance text for it.
func setupBaseGraph(text, feature, wesType, featureClarifications string) tree.Graph {
	attrs := map[string]string{
		"text": text, "feature": feature, "wes_type": wesType,
		"feature_clarifications": featureClarifications,
	}
	return tree.Graph{
		Root: "init",
		Nodes: map[string]tree.Node{
			"init": {
				Prompt: fmtPrompt("Is there text in the following legal document "+
					"that describes how close I can site or how far I have to "+
					"setback {wes_type} to {feature}? {feature_clarifications}"+
					"Pay extra attention to clarifying text found in "+
					"parentheses and footnotes. Begin your response with "+
					"either 'Yes' or 'No' and explain your answer.\n\n\"\"\"\n{text}\n\"\"\"", attrs),
				Edges: []tree.Edge{{To: "get_text", Condition: llmResponseDoesNotStartWithNo}},
			},
			"get_text": {
				Prompt: fmtPrompt(extractOriginalTextPromptTemplate, attrs),
			},
		},
	}
}

// extractOriginalTextPrompt formats the shared "extract raw text" prompt
// node re-used when splitting an ordinance into participating and
// non-participating owner sub-texts.
func extractOriginalTextPrompt(feature, wesType string) string {
	return fmtPrompt(extractOriginalTextPromptTemplate, map[string]string{
		"feature": feature, "wes_type": wesType,
	})
}

// setupParticipatingOwner builds the graph that splits a confirmed
// setback ordinance into its participating- and non-participating-owner
// text, if the ordinance distinguishes between the two.
func setupParticipatingOwner(feature string) tree.Graph {
	attrs := map[string]string{"feature": feature}
	return tree.Graph{
		Root: "init",
		Nodes: map[string]tree.Node{
			"init": {
				Prompt: fmtPrompt("Does the ordinance for {feature} setbacks "+
					"explicitly specify a value that applies to participating "+
					"owners? Occupying owners are not participating owners "+
					"unless explicitly mentioned in the text. Justify your "+
					"answer by quoting the raw text directly.", attrs),
				Edges: []tree.Edge{{To: "non_part"}},
			},
			"non_part": {
				Prompt: fmtPrompt("Does the ordinance for {feature} setbacks "+
					"explicitly specify a value that applies to "+
					"non-participating owners? Non-occupying owners are not "+
					"non-participating owners unless explicitly mentioned in "+
					"the text. Justify your answer by quoting the raw text "+
					"directly.", attrs),
				Edges: []tree.Edge{{To: "final"}},
			},
			"final": {
				Prompt: "Now we are ready to extract structured data. Respond " +
					"based on our entire conversation so far. Return your " +
					"answer in JSON format (not markdown). Your JSON file " +
					`must include exactly two keys. The keys are ` +
					`"participating" and "non-participating". The value of ` +
					`the "participating" key should be a string containing ` +
					"the raw text with original formatting from the ordinance " +
					"that applies to participating owners or `null` if there " +
					`was no such text. The value of the "non-participating" ` +
					"key should be a string containing the raw text with " +
					"original formatting from the ordinance that applies to " +
					"non-participating owners or simply the full ordinance if " +
					"the text did not make the distinction between " +
					"participating and non-participating owners.",
			},
		},
	}
}

// setupMultiplier builds the graph that extracts a setback multiplier
// (applied to a turbine dimension) or a fixed setback distance, for
// feature, ignoring ignoreFeatures.
func setupMultiplier(feature, ignoreFeatures string) tree.Graph {
	attrs := map[string]string{"feature": feature, "ignore_features": ignoreFeatures}
	withSection := map[string]string{"feature": feature, "SECTION_PROMPT": sectionPrompt}
	withSectionComment := map[string]string{
		"feature": feature, "SECTION_PROMPT": sectionPrompt, "COMMENT_PROMPT": commentPrompt,
	}
	return tree.Graph{
		Root: "init",
		Nodes: map[string]tree.Node{
			"init": {
				Prompt: fmtPrompt("We will attempt to extract structured data "+
					"for this ordinance. Let's think step by step. Does the "+
					"text mention a multiplier that should be applied to a "+
					"turbine dimension (e.g. height, rotor diameter, etc) to "+
					"compute the setback distance from {feature}? Ignore any "+
					"text related to {ignore_features}. Remember that 1 is a "+
					"valid multiplier, and treat any mention of 'fall zone' as "+
					"a system height multiplier of 1. Begin your response with "+
					"either 'Yes' or 'No' and explain your answer.", attrs),
				Edges: []tree.Edge{
					{To: "no_multiplier", Condition: llmResponseStartsWithNo},
					{To: "mult_single", Condition: llmResponseStartsWithYes},
				},
			},
			"no_multiplier": {
				Prompt: fmtPrompt("Does the ordinance give the setback from "+
					"{feature} as a fixed distance value? Explain yourself.", attrs),
				Edges: []tree.Edge{{To: "out_static"}},
			},
			"out_static": {
				Prompt: fmtPrompt("Now we are ready to extract structured "+
					"data. Respond based on our entire conversation so far. "+
					"Return your answer in JSON format (not markdown). Your "+
					`JSON file must include exactly four keys. The keys are `+
					`"fixed_value", "units", "section", "comment". The value `+
					`of the "fixed_value" key should be a numerical value `+
					"corresponding to the setback distance value from "+
					"{feature} or `null` if there was no such value. The "+
					`value of the "units" key should be a string `+
					"corresponding to the units of the setback distance "+
					"value from {feature} or `null` if there was no such "+
					`value. {SECTION_PROMPT} The value of the "comment" key `+
					"should be a one-sentence explanation of how you "+
					"determined the value, or a short description of the "+
					"ordinance itself if no multiplier or static setback "+
					"value was found.", withSection),
			},
			"mult_single": {
				Prompt: fmtPrompt("Are multiple values given for the "+
					"multiplier used to compute the setback distance value "+
					"from {feature}? If so, select and state the largest "+
					"one. Otherwise, repeat the single multiplier value that "+
					"was given in the text. ", attrs),
				Edges: []tree.Edge{{To: "mult_type"}},
			},
			"mult_type": {
				Prompt: "What should the multiplier be applied to? Common " +
					"acronyms include RD for rotor diameter and HH for hub " +
					"height. Remember that system/total height is the " +
					"tip-hight of the turbine. Select a value from the " +
					"following list and explain yourself: " +
					"['tip-height-multiplier', 'hub-height-multiplier', " +
					"'rotor-diameter-multiplier]",
				Edges: []tree.Edge{{To: "adder"}},
			},
			"adder": {
				Prompt: "Does the ordinance include a static distance value " +
					"that should be added to the result of the " +
					"multiplication? Do not confuse this value with static " +
					"setback requirements. Ignore text with clauses such as " +
					"'no lesser than', 'no greater than', 'the lesser of', " +
					"or 'the greater of'. Begin your response with either " +
					"'Yes' or 'No' and explain your answer, stating the " +
					"adder value if it exists.",
				Edges: []tree.Edge{
					{To: "out_mult", Condition: llmResponseStartsWithNo},
					{To: "adder_eq", Condition: llmResponseStartsWithYes},
				},
			},
			"adder_eq": {
				Prompt: "We are only interested in adders that satisfy the " +
					"following equation: 'multiplier * turbine_dimension + " +
					"<adder>'. Does the adder value you identified satisfy " +
					"this equation? Begin your response with either 'Yes' " +
					"or 'No' and explain your answer.",
				Edges: []tree.Edge{
					{To: "out_mult", Condition: llmResponseStartsWithNo},
					{To: "conversion", Condition: llmResponseStartsWithYes},
				},
			},
			"conversion": {
				Prompt: "If the adder value is not given in feet, convert " +
					"it to feet (remember that there are 3.28084 feet in " +
					"one meter and 5280 feet in one mile). Show your work " +
					"step-by-step if you had to perform a conversion.",
				Edges: []tree.Edge{{To: "out_mult"}},
			},
			"out_mult": {
				Prompt: fmtPrompt("Now we are ready to extract structured "+
					"data. Respond based on our entire conversation so far. "+
					"Return your answer in JSON format (not markdown). Your "+
					`JSON file must include exactly five keys. The keys are `+
					`"mult_value", "mult_type", "adder", "section", `+
					`"comment". The value of the "mult_value" key should be `+
					"a numerical value corresponding to the multiplier value "+
					`we determined earlier. The value of the "mult_type" key `+
					"should be a string corresponding to the dimension that "+
					"the multiplier should be applied to, as we determined "+
					`earlier. The value of the "adder" key should be a `+
					"numerical value corresponding to the static value to be "+
					"added to the total setback distance after "+
					"multiplication, as we determined earlier, or `null` if "+
					"there is no such value. {SECTION_PROMPT} {COMMENT_PROMPT}", withSectionComment),
			},
		},
	}
}

// setupConditional builds the graph that extracts min/max static setback
// bounds that apply regardless of the multiplier calculation (typically
// phrased as "the greater of" / "the lesser of" clauses).
func setupConditional(feature string) tree.Graph {
	attrs := map[string]string{"feature": feature}
	return tree.Graph{
		Root: "init",
		Nodes: map[string]tree.Node{
			"init": {
				Prompt: fmtPrompt("We will attempt to extract structured "+
					"data for this ordinance. Let's think step by step. Does "+
					"the setback from {feature} mention a minimum or maximum "+
					"static setback distance regardless of the outcome of "+
					"the multiplier calculation? This is often phrased as "+
					"'the greater of' or 'the lesser of'. Do not confuse "+
					"this value with static values to be added to "+
					"multiplicative setbacks. Begin your response with "+
					"either 'Yes' or 'No' and explain your answer.", attrs),
				Edges: []tree.Edge{{To: "conversions", Condition: llmResponseStartsWithYes}},
			},
			"conversions": {
				Prompt: "Tell me the minimum and/or maximum setback " +
					"distances, converting to feet if necessary (remember " +
					"that there are 3.28084 feet in one meter and 5280 feet " +
					"in one mile). Explain your answer and show your work " +
					"if you had to perform a conversion.",
				Edges: []tree.Edge{{To: "out_condition"}},
			},
			"out_condition": {
				Prompt: fmtPrompt("Now we are ready to extract structured "+
					"data. Respond based on our entire conversation so far. "+
					"Return your answer in JSON format (not markdown). Your "+
					`JSON file must include exactly two keys. The keys are `+
					`"min_dist" and "max_dist". The value of the "min_dist" `+
					"key should be a numerical value corresponding to the "+
					"minimum setback value from {feature} we determined "+
					`earlier, or `+"`null`"+` if no such value exists. The `+
					`value of the "max_dist" key should be a numerical value `+
					"corresponding to the maximum setback value from "+
					"{feature} we determined earlier, or `null` if no such "+
					"value exists.", attrs),
			},
		},
	}
}

// setupGraphExtraRestriction builds the graph that extracts a non-setback
// restriction value (noise, height, lot size, etc) for wesType.
func setupGraphExtraRestriction(restriction, wesType, text string) tree.Graph {
	attrs := map[string]string{"restriction": restriction, "wes_type": wesType, "text": text}
	withPrompts := map[string]string{
		"restriction": restriction, "wes_type": wesType,
		"SECTION_PROMPT": sectionPrompt, "COMMENT_PROMPT": commentPrompt,
	}
	return tree.Graph{
		Root: "init",
		Nodes: map[string]tree.Node{
			"init": {
				Prompt: fmtPrompt("We will attempt to extract structured "+
					"data for this ordinance. Let's think step by step. Does "+
					"the following text explicitly limit the {restriction} "+
					"allowed for {wes_type}? Do not infer based on other "+
					"restrictions; if this particular restriction is not "+
					"explicitly mentioned then say 'No'. Pay extra attention "+
					"to clarifying text found in parentheses and footnotes. "+
					"Begin your response with either 'Yes' or 'No' and "+
					"explain your answer.\n\n\"\"\"\n{text}\n\"\"\"", attrs),
				Edges: []tree.Edge{{To: "final", Condition: llmResponseStartsWithYes}},
			},
			"final": {
				Prompt: fmtPrompt("Now we are ready to extract structured "+
					"data. Respond based on our entire conversation so far. "+
					"Return your answer in JSON format (not markdown). Your "+
					`JSON file must include exactly four keys. The keys are `+
					`"value", "units", "section", "comment". The value of `+
					`the "value" key should be a numerical value `+
					"corresponding to the {restriction} allowed for "+
					"{wes_type}, or `null` if the text does not mention such "+
					"a restriction. Use our conversation to fill out this "+
					`value. The value of the "units" key should be a string `+
					"corresponding to the units for the {restriction} "+
					"allowed for {wes_type} by the text below, or `null` if "+
					"the text does not mention such a restriction. Make sure "+
					`to include any "per XXX" clauses in the units. `+
					"{SECTION_PROMPT} {COMMENT_PROMPT}", withPrompts),
			},
		},
	}
}
