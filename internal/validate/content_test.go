package validate

import (
	"context"
	"testing"
)

func TestValidationWithMemory_RecallsPreviousChunks(t *testing.T) {
	fc := &fakeCaller{replies: []map[string]any{
		{"is_legal": false},
		{"is_legal": true},
	}}
	m := NewValidationWithMemory(fc, []string{"chunk0", "chunk1", "chunk2"}, 2)

	ok, err := m.ParseFromInd(context.Background(), 2, "check {key} please", "is_legal")
	if err != nil {
		t.Fatalf("ParseFromInd() error = %v", err)
	}
	if !ok {
		t.Fatal("expected true from recalled chunk")
	}
	if len(fc.content) != 2 {
		t.Fatalf("expected 2 LLM calls (chunk2, then chunk1), got %d", len(fc.content))
	}
	if fc.content[0] != "chunk2" || fc.content[1] != "chunk1" {
		t.Errorf("content order = %v, want [chunk2 chunk1]", fc.content)
	}
}

func TestValidationWithMemory_UsesMemoOnSecondCall(t *testing.T) {
	fc := &fakeCaller{replies: []map[string]any{{"is_legal": true}}}
	m := NewValidationWithMemory(fc, []string{"chunk0", "chunk1"}, 1)

	if _, err := m.ParseFromInd(context.Background(), 0, "p {key}", "is_legal"); err != nil {
		t.Fatalf("first call error = %v", err)
	}
	if _, err := m.ParseFromInd(context.Background(), 0, "p {key}", "is_legal"); err != nil {
		t.Fatalf("second call error = %v", err)
	}
	if len(fc.content) != 1 {
		t.Errorf("expected memoized second call, got %d LLM calls", len(fc.content))
	}
}

func TestValidationWithMemory_OutOfRangeErrors(t *testing.T) {
	fc := &fakeCaller{replies: []map[string]any{{}}}
	m := NewValidationWithMemory(fc, []string{"chunk0"}, 2)
	if _, err := m.ParseFromInd(context.Background(), 5, "p {key}", "key"); err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func windHeuristic() KeywordHeuristic {
	return KeywordHeuristic{
		DenyWords: []string{
			"windy", "winds", "window", "windiest", "windbreak",
			"windshield", "wind blow", "wind erosion", "rewind",
			"mini wecs", "swecs", "private wecs", "pwecs",
			"wind direction", "wind movement", "wind attribute",
			"wind runway", "wind load", "wind orient", "wind damage",
		},
		Keywords:       []string{"wind", "setback"},
		Acronyms:       []string{"wecs", "wes", "lwet", "uwet", "wef"},
		Phrases:        []string{"wind energy conversion", "wind turbine", "wind tower"},
		MatchThreshold: 1,
	}
}

func TestKeywordHeuristic_Mentions_KeywordsAndPhrase(t *testing.T) {
	k := windHeuristic()
	text := "This ordinance regulates wind turbine setback requirements."
	if !k.Mentions(text) {
		t.Error("expected a mention: wind, setback, and 'wind turbine' phrase all present")
	}
}

func TestKeywordHeuristic_Mentions_LookAlikeWordsExcluded(t *testing.T) {
	k := windHeuristic()
	text := "Please close the window before the windshield fogs up."
	if k.Mentions(text) {
		t.Error("expected no mention: only look-alike words present")
	}
}

func TestKeywordHeuristic_Mentions_SingleKeywordBelowThreshold(t *testing.T) {
	k := windHeuristic()
	text := "There is some wind today."
	if k.Mentions(text) {
		t.Error("expected no mention: only one keyword match, threshold requires >1")
	}
}

func TestKeywordHeuristic_Mentions_Acronym(t *testing.T) {
	k := windHeuristic()
	text := "The property is zoned for setback from any WECS installation."
	if !k.Mentions(text) {
		t.Error("expected mention via acronym + keyword")
	}
}
