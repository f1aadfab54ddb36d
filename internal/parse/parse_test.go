package parse

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/NREL/elm-sub000/internal/services"
	"github.com/NREL/elm-sub000/internal/tree"
)

// routeRule maps a substring of the question just sent to the model onto
// the canned reply the model "gives". Rules are tried in order; the first
// match wins.
type routeRule struct {
	contains string
	reply    string
}

type routedCaller struct {
	mu    sync.Mutex
	rules []routeRule
	calls int
}

func (r *routedCaller) Call(_ context.Context, _ string, payload any) (any, error) {
	req, ok := payload.(services.LLMRequest)
	if !ok || len(req.Messages) == 0 {
		return nil, errors.New("routedCaller: bad payload")
	}
	last := req.Messages[len(req.Messages)-1].Content

	r.mu.Lock()
	r.calls++
	r.mu.Unlock()

	for _, rule := range r.rules {
		if strings.Contains(last, rule.contains) {
			return openai.ChatCompletionResponse{
				Choices: []openai.ChatCompletionChoice{{
					Message: openai.ChatCompletionMessage{
						Role:    openai.ChatMessageRoleAssistant,
						Content: rule.reply,
					},
				}},
			}, nil
		}
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "No."},
		}},
	}, nil
}

// allNotFoundRules answers every base/participating/extra-restriction
// existence question with "No", so every feature and restriction comes
// back as an empty placeholder row.
func allNotFoundRules() []routeRule {
	return []routeRule{
		{contains: "distinguish between", reply: "No, it does not distinguish between sizes."},
		{contains: "Is there text in the following legal document", reply: "No, there is no such text."},
		{contains: "explicitly limit the", reply: "No, this restriction is not mentioned."},
	}
}

func TestCheckWindTurbineType_DefaultsWhenNoDistinction(t *testing.T) {
	caller := &routedCaller{rules: allNotFoundRules()}
	p := NewStructuredOrdinanceParser(caller, "gpt-4")

	got, err := p.checkWindTurbineType(context.Background(), "some ordinance text")
	if err != nil {
		t.Fatalf("checkWindTurbineType() error = %v", err)
	}
	if got != "large wind energy systems" {
		t.Errorf("got %q, want default", got)
	}
}

func TestCheckWindTurbineType_UsesModelAnswerWhenDistinguished(t *testing.T) {
	caller := &routedCaller{rules: []routeRule{
		{contains: "distinguish between", reply: "Yes, it distinguishes small and large systems."},
		{contains: "What are the different turbine sizes", reply: "small, then large"},
		{contains: "largest_wes_type", reply: `{"largest_wes_type":"large wind energy conversion systems","explanation":"stated directly"}`},
	}}
	p := NewStructuredOrdinanceParser(caller, "gpt-4")

	got, err := p.checkWindTurbineType(context.Background(), "some ordinance text")
	if err != nil {
		t.Fatalf("checkWindTurbineType() error = %v", err)
	}
	if got != "large wind energy conversion systems" {
		t.Errorf("got %q", got)
	}
}

func TestParseSetbackFeature_NotFoundReturnsEmptyOutput(t *testing.T) {
	caller := &routedCaller{rules: allNotFoundRules()}
	p := NewStructuredOrdinanceParser(caller, "gpt-4")
	f := setbackFeatures()[2] // roads: single-row feature

	rows, err := p.parseSetbackFeature(context.Background(), "text", f, "large wind energy systems")
	if err != nil {
		t.Fatalf("parseSetbackFeature() error = %v", err)
	}
	if len(rows) != 1 || rows[0]["feature"] != "roads" {
		t.Errorf("rows = %v, want single empty roads row", rows)
	}
	if _, ok := rows[0]["mult_value"]; ok {
		t.Errorf("expected no mult_value key in empty output, got %v", rows[0])
	}
}

func TestParseSetbackFeature_StructNotFoundReturnsTwoRows(t *testing.T) {
	caller := &routedCaller{rules: allNotFoundRules()}
	p := NewStructuredOrdinanceParser(caller, "gpt-4")
	f := setbackFeatures()[0] // struct

	rows, err := p.parseSetbackFeature(context.Background(), "text", f, "large wind energy systems")
	if err != nil {
		t.Fatalf("parseSetbackFeature() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0]["feature"] != "struct (participating)" || rows[1]["feature"] != "struct (non-participating)" {
		t.Errorf("rows = %v", rows)
	}
}

func TestParseSetbackFeature_ExtractsMultiplier(t *testing.T) {
	rules := []routeRule{
		{contains: "Is there text in the following legal document", reply: "Yes, roads are mentioned."},
		{contains: "Can you extract the raw text", reply: "turbines must be set back 5 times total height from roads"},
		{contains: "Does the text mention a multiplier", reply: "Yes, 5 times the height."},
		{contains: "Are multiple values given for the multiplier", reply: "Just one value: 5."},
		{contains: "What should the multiplier be applied to", reply: "tip-height-multiplier"},
		{contains: "Does the ordinance include a static distance value", reply: "No adder is mentioned."},
		{contains: `"mult_value"`, reply: `{"mult_value":5,"mult_type":"tip-height-multiplier","adder":null,"section":null,"comment":"five times total height"}`},
		{contains: "mention a minimum or maximum static setback distance", reply: "No such bound is mentioned."},
	}
	caller := &routedCaller{rules: rules}
	p := NewStructuredOrdinanceParser(caller, "gpt-4")
	f := setbackFeatures()[2] // roads

	rows, err := p.parseSetbackFeature(context.Background(), "ordinance text", f, "large wind energy systems")
	if err != nil {
		t.Fatalf("parseSetbackFeature() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	row := rows[0]
	if row["feature"] != "roads" {
		t.Errorf("feature = %v", row["feature"])
	}
	if v, _ := row["mult_value"].(float64); v != 5 {
		t.Errorf("mult_value = %v, want 5", row["mult_value"])
	}
	if row["mult_type"] != "tip-height-multiplier" {
		t.Errorf("mult_type = %v", row["mult_type"])
	}
}

func TestParseSetbackFeature_BadAdderThresholdNullsImplausibleAdder(t *testing.T) {
	rules := []routeRule{
		{contains: "Is there text in the following legal document", reply: "Yes, roads are mentioned."},
		{contains: "Can you extract the raw text", reply: "turbines must be set back 5 times total height plus 9000 feet from roads"},
		{contains: "Does the text mention a multiplier", reply: "Yes, 5 times the height."},
		{contains: "Are multiple values given for the multiplier", reply: "Just one value: 5."},
		{contains: "What should the multiplier be applied to", reply: "tip-height-multiplier"},
		{contains: "Does the ordinance include a static distance value", reply: "Yes, 9000 feet is added."},
		{contains: `"mult_value"`, reply: `{"mult_value":5,"mult_type":"tip-height-multiplier","adder":9000,"section":null,"comment":"plus 9000 feet"}`},
		{contains: "mention a minimum or maximum static setback distance", reply: "No such bound is mentioned."},
	}
	caller := &routedCaller{rules: rules}
	p := NewStructuredOrdinanceParser(caller, "gpt-4")
	p.Options.BadAdderThresholdFt = 2000
	f := setbackFeatures()[2] // roads

	rows, err := p.parseSetbackFeature(context.Background(), "ordinance text", f, "large wind energy systems")
	if err != nil {
		t.Fatalf("parseSetbackFeature() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0]["adder"] != nil {
		t.Errorf("adder = %v, want nil (above BadAdderThresholdFt)", rows[0]["adder"])
	}
	if v, _ := rows[0]["mult_value"].(float64); v != 5 {
		t.Errorf("mult_value = %v, want 5 (unaffected by adder clamp)", rows[0]["mult_value"])
	}
}

func TestParseExtraRestriction_Found(t *testing.T) {
	rules := []routeRule{
		{contains: "explicitly limit the", reply: "Yes, 50 decibels max."},
		{contains: `"value", "units"`, reply: `{"value":50,"units":"dB","section":null,"comment":"stated directly"}`},
	}
	caller := &routedCaller{rules: rules}
	p := NewStructuredOrdinanceParser(caller, "gpt-4")

	row, err := p.parseExtraRestriction(context.Background(), "ordinance text", "noise", "maximum noise level", "large wind energy systems")
	if err != nil {
		t.Fatalf("parseExtraRestriction() error = %v", err)
	}
	if row["feature"] != "noise" {
		t.Errorf("feature = %v", row["feature"])
	}
	if v, _ := row["value"].(float64); v != 50 {
		t.Errorf("value = %v, want 50", row["value"])
	}
}

func TestParser_Parse_ReturnsAllFeaturesAndRestrictionsWhenNothingFound(t *testing.T) {
	caller := &routedCaller{rules: allNotFoundRules()}
	p := NewStructuredOrdinanceParser(caller, "gpt-4")

	rows, err := p.Parse(context.Background(), "an ordinance with no wind energy content")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	// struct and pline each contribute 2 rows, the remaining 4 setback
	// features and 5 extra restrictions each contribute 1.
	want := 2 + 2 + 4 + 5
	if len(rows) != want {
		t.Fatalf("got %d rows, want %d", len(rows), want)
	}
	if rows[0]["feature"] != "struct (participating)" {
		t.Errorf("rows[0] = %v, want struct participating row first", rows[0])
	}
	if rows[len(rows)-1]["feature"] != "density" {
		t.Errorf("rows[last] = %v, want density row last", rows[len(rows)-1])
	}
}

// --- runTreeLenient / runTreeAsJSON ---

type scriptedChat struct {
	replies []string
	i       int
}

func (s *scriptedChat) Send(_ context.Context, _ string) (string, error) {
	if s.i >= len(s.replies) {
		return "", errors.New("scriptedChat: out of replies")
	}
	r := s.replies[s.i]
	s.i++
	return r, nil
}

func TestRunTreeLenient_TreatsMissingConditionAsEmpty(t *testing.T) {
	g := tree.Graph{
		Root: "init",
		Nodes: map[string]tree.Node{
			"init": {Prompt: "p", Edges: []tree.Edge{{To: "a"}, {To: "b"}}},
			"a":    {Prompt: "a"},
			"b":    {Prompt: "b"},
		},
	}
	dt := &tree.DecisionTree{Graph: g, Chat: &scriptedChat{replies: []string{"whatever"}}}

	got, err := runTreeLenient(context.Background(), dt)
	if err != nil {
		t.Fatalf("runTreeLenient() error = %v, want nil", err)
	}
	if got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestRunTreeLenient_TreatsNoEdgeSatisfiedAsEmpty(t *testing.T) {
	g := tree.Graph{
		Root: "init",
		Nodes: map[string]tree.Node{
			"init": {Prompt: "p", Edges: []tree.Edge{{To: "a", Condition: func(string) bool { return false }}}},
			"a":    {Prompt: "a"},
		},
	}
	dt := &tree.DecisionTree{Graph: g, Chat: &scriptedChat{replies: []string{"no match"}}}

	got, err := runTreeLenient(context.Background(), dt)
	if err != nil {
		t.Fatalf("runTreeLenient() error = %v, want nil", err)
	}
	if got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestRunTreeLenient_PropagatesRealErrors(t *testing.T) {
	g := tree.Graph{
		Root:  "init",
		Nodes: map[string]tree.Node{"init": {Prompt: "p"}},
	}
	dt := &tree.DecisionTree{Graph: g, Chat: &scriptedChat{}}

	_, err := runTreeLenient(context.Background(), dt)
	if err == nil {
		t.Fatal("expected error for exhausted scripted chat")
	}
	if errors.Is(err, tree.ErrMissingCondition) || errors.Is(err, tree.ErrNoEdgeSatisfied) {
		t.Errorf("unexpected sentinel error: %v", err)
	}
}

func TestRunTreeAsJSON_EmptyReplyYieldsEmptyMap(t *testing.T) {
	g := tree.Graph{
		Root: "init",
		Nodes: map[string]tree.Node{
			"init": {Prompt: "p", Edges: []tree.Edge{{To: "a", Condition: func(string) bool { return false }}}},
			"a":    {Prompt: "a"},
		},
	}
	dt := &tree.DecisionTree{Graph: g, Chat: &scriptedChat{replies: []string{"no match"}}}

	out, err := runTreeAsJSON(context.Background(), dt)
	if err != nil {
		t.Fatalf("runTreeAsJSON() error = %v", err)
	}
	if len(out) != 0 {
		t.Errorf("out = %v, want empty map", out)
	}
}
