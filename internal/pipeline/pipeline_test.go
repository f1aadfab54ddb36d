package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/NREL/elm-sub000/internal/document"
	"github.com/NREL/elm-sub000/internal/llm"
	"github.com/NREL/elm-sub000/internal/location"
	"github.com/NREL/elm-sub000/internal/planner"
	"github.com/NREL/elm-sub000/internal/search"
	"github.com/NREL/elm-sub000/internal/services"
	"github.com/NREL/elm-sub000/internal/validate"
)

func TestInterleave_RoundRobinsAcrossGroups(t *testing.T) {
	groups := [][]search.Result{
		{{URL: "a1"}, {URL: "a2"}, {URL: "a3"}},
		{{URL: "b1"}},
		{{URL: "c1"}, {URL: "c2"}},
	}
	got := interleave(groups)
	want := []string{"a1", "b1", "c1", "a2", "c2", "a3"}
	if len(got) != len(want) {
		t.Fatalf("interleave() len = %d, want %d (%v)", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].URL != w {
			t.Errorf("interleave()[%d] = %q, want %q", i, got[i].URL, w)
		}
	}
}

func TestUsageTracker_AccumulatesPerLocation(t *testing.T) {
	tr := NewUsageTracker()
	tr.Record("Story County, Iowa", 10, 5)
	tr.Record("Story County, Iowa", 20, 8)
	tr.Record("Polk County, Iowa", 1, 1)

	reqs, toks := tr.Snapshot("Story County, Iowa")
	if reqs != 2 || toks != 43 {
		t.Errorf("Snapshot(Story) = (%d, %d), want (2, 43)", reqs, toks)
	}
	reqs, toks = tr.Snapshot("Polk County, Iowa")
	if reqs != 1 || toks != 2 {
		t.Errorf("Snapshot(Polk) = (%d, %d), want (1, 2)", reqs, toks)
	}
	if reqs, toks := tr.Snapshot("Never Seen, Iowa"); reqs != 0 || toks != 0 {
		t.Errorf("Snapshot(unknown) = (%d, %d), want (0, 0)", reqs, toks)
	}
}

type fakeDoc struct {
	source string
	text   string
}

func (d fakeDoc) Source() string        { return d.source }
func (d fakeDoc) Text() string          { return d.text }
func (d fakeDoc) RawPages() []string    { return []string{d.text} }
func (d fakeDoc) Empty() bool           { return d.text == "" }
func (d fakeDoc) Attrs() map[string]any { return nil }

var _ document.Document = fakeDoc{}

// routedDateCaller replies with the year registered for whichever
// document's raw-page content (here, just its source URL standing in for
// page text) it is asked about, so TestPickBest_PrefersMostRecentDate can
// give two candidates distinguishable dates without a real LLM.
type routedDateCaller struct {
	sourceYears map[string]int
}

func (c *routedDateCaller) Call(_ context.Context, _ string, content string) (map[string]any, error) {
	for page, year := range c.sourceYears {
		if strings.HasSuffix(content, "\n"+page) {
			return map[string]any{"year": float64(year), "month": float64(6), "day": float64(1)}, nil
		}
	}
	return map[string]any{}, nil
}

var _ validate.StructuredCaller = (*routedDateCaller)(nil)

func TestPickBest_PrefersMostRecentDate(t *testing.T) {
	older := ordinanceHit{doc: fakeDoc{source: "https://example.gov/2015.html", text: "https://example.gov/2015.html"}, ordinanceText: "short"}
	newer := ordinanceHit{doc: fakeDoc{source: "https://example.gov/2022.html", text: "https://example.gov/2022.html"}, ordinanceText: "short"}

	caller := &routedDateCaller{sourceYears: map[string]int{
		older.doc.RawPages()[0]: 2015,
		newer.doc.RawPages()[0]: 2022,
	}}

	got := pickBest(context.Background(), []ordinanceHit{older, newer}, caller)
	if got.doc.Source() != newer.doc.Source() {
		t.Errorf("pickBest() chose %q, want the 2022 document", got.doc.Source())
	}
}

// fixedSearchEngine returns the same single hit for every query.
type fixedSearchEngine struct {
	url string
}

func (f fixedSearchEngine) Search(_ context.Context, query string, _ int) ([]search.Result, error) {
	return []search.Result{{Title: "ordinance", URL: f.url, Snippet: query}}, nil
}

// docLoader always returns the same document regardless of URL.
type docLoader struct {
	html string
}

func (d docLoader) Load(_ context.Context, rawURL string) (document.Document, error) {
	return fakeDoc{source: rawURL, text: d.html}, nil
}

// alwaysTrueCaller answers every structured or chat call with one JSON
// blob that sets every boolean key any validator/extractor/cleaner in
// this package's call graph might look up to true (and every date key to
// a fixed value), so a full ProcessLocation run reaches the end-to-end
// parse step without a real LLM. Tree-based chat turns in internal/parse
// see the same JSON text; since it never starts with "yes"/"no", the
// decision trees there fall back to their lenient "not found" paths (see
// parse.foundOrd), so every setback feature resolves to its empty
// placeholder row rather than requiring node-specific scripted replies.
type alwaysTrueCaller struct{}

func (alwaysTrueCaller) Call(_ context.Context, _ string, payload any) (any, error) {
	if _, ok := payload.(services.LLMRequest); !ok {
		return nil, nil
	}
	content := `{"correct_county":true,"correct_state":true,` +
		`"other_jurisdiction":false,"multi_county":false,` +
		`"wrong_county":false,"wrong_state":false,` +
		`"legal_text":true,"contains_ord_info":true,"x":true,` +
		`"restriction":true,"correct_size":true,` +
		`"summary":"ok","type":"ordinance code","reqs":[],` +
		`"siting_reqs":"setback info","explanation":"ok",` +
		`"year":2020,"month":1,"day":1}`
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
		}},
	}, nil
}

func TestProcessLocation_EndToEndWithFakes(t *testing.T) {
	dir := t.TempDir()
	cleanedDir := filepath.Join(dir, "cleaned")
	usagePath := filepath.Join(dir, "usage.json")

	provider, err := services.NewProvider(4,
		services.NewThreadPoolService(2),
		services.NewFileMoverService(2),
		services.NewUsageRecorderService(usagePath),
	)
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	if err := provider.Start(context.Background()); err != nil {
		t.Fatalf("Provider.Start() error = %v", err)
	}
	defer provider.Close(context.Background())

	html := `<html><body><p>This ordinance governs Example County, Example State ` +
		`wind energy systems and imposes a setback of 3 times total height ` +
		`from any occupied residence within the county.</p></body></html>`

	p := &Pipeline{
		Planner:            &planner.TemplatePlanner{},
		SearchEngine:       fixedSearchEngine{url: "https://example-county.gov/ordinance.html"},
		Loader:             docLoader{html: html},
		Tokenizer:          llm.TiktokenCounter{},
		Caller:             alwaysTrueCaller{},
		Provider:           provider,
		Usage:              NewUsageTracker(),
		Model:              "gpt-4",
		ChunkSizeTokens:    2000,
		MinChunksToProcess: 1,
		CleanedTextDir:     cleanedDir,
	}

	loc := location.County{Name: "Example", State: "Example State"}

	result, err := p.ProcessLocation(context.Background(), loc)
	if err != nil {
		t.Fatalf("ProcessLocation() error = %v", err)
	}
	if result.Location != loc.FullName() {
		t.Errorf("result.Location = %q, want %q", result.Location, loc.FullName())
	}
	if !result.FoundOrdinance {
		t.Fatalf("result.FoundOrdinance = false, want true (result = %+v)", result)
	}
	if len(result.Rows) == 0 {
		t.Error("result.Rows is empty, want at least the empty-placeholder rows every feature contributes")
	}

	cleanedPath := filepath.Join(cleanedDir, "Example County, Example State.txt")
	if _, err := os.Stat(cleanedPath); err != nil {
		t.Errorf("cleaned text file not written: %v", err)
	}
	if _, err := os.Stat(usagePath); err != nil {
		t.Errorf("usage file not written: %v", err)
	}
}
