package orchestrator

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/semaphore"

	"github.com/NREL/elm-sub000/internal/app"
	"github.com/NREL/elm-sub000/internal/document"
	"github.com/NREL/elm-sub000/internal/llm"
	"github.com/NREL/elm-sub000/internal/location"
	"github.com/NREL/elm-sub000/internal/pipeline"
	"github.com/NREL/elm-sub000/internal/planner"
	"github.com/NREL/elm-sub000/internal/search"
	"github.com/NREL/elm-sub000/internal/services"
)

func TestTableColumns_UnionsRowKeysSorted(t *testing.T) {
	results := []pipeline.Result{
		{FoundOrdinance: true, Rows: []map[string]any{{"feature": "setback", "value_ft": 100.0}}},
		{FoundOrdinance: true, Rows: []map[string]any{{"feature": "setback", "units": "ft"}}},
	}
	got := tableColumns(results)
	want := []string{"location", "source_url", "feature", "units", "value_ft"}
	if len(got) != len(want) {
		t.Fatalf("tableColumns() = %v, want %v", got, want)
	}
	for i, w := range want {
		if got[i] != w {
			t.Errorf("tableColumns()[%d] = %q, want %q", i, got[i], w)
		}
	}
}

func sampleResults() []pipeline.Result {
	return []pipeline.Result{
		{
			Location:       "Example County, Example State",
			SourceURL:      "https://example-county.gov/ordinance.html",
			FoundOrdinance: true,
			Rows: []map[string]any{
				{"feature": "setback", "value_ft": 500.0},
			},
		},
		{
			Location:       "Other County, Other State",
			FoundOrdinance: false,
		},
	}
}

func TestWriteCSV_SkipsLocationsWithoutOrdinance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ordinances.csv")
	if err := writeCSV(path, sampleResults()); err != nil {
		t.Fatalf("writeCSV() error = %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2 (header + one data row)", len(records))
	}
	if records[1][0] != "Example County, Example State" {
		t.Errorf("records[1][0] = %q, want the found location", records[1][0])
	}
}

func TestWriteXLSX_SkipsLocationsWithoutOrdinance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ordinances.xlsx")
	if err := writeXLSX(path, sampleResults()); err != nil {
		t.Fatalf("writeXLSX() error = %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Ordinances")
	if err != nil {
		t.Fatalf("get rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2 (header + one data row)", len(rows))
	}
}

// fakeDoc, fixedSearchEngine, docLoader, and alwaysTrueCaller mirror the
// internal/pipeline package's own end-to-end test fakes, duplicated here
// (unexported test fixtures, not worth exporting across packages) to drive
// Orchestrator.Run through a real Pipeline without network or LLM access.

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

type fixedSearchEngine struct {
	url string
}

func (f fixedSearchEngine) Search(_ context.Context, query string, _ int) ([]search.Result, error) {
	return []search.Result{{Title: "ordinance", URL: f.url, Snippet: query}}, nil
}

type docLoader struct {
	html string
}

func (d docLoader) Load(_ context.Context, rawURL string) (document.Document, error) {
	return fakeDoc{source: rawURL, text: d.html}, nil
}

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

func TestRun_ProcessesEveryLocationAndWritesTable(t *testing.T) {
	dir := t.TempDir()
	outputTable := filepath.Join(dir, "ordinances.csv")

	html := `<html><body><p>This ordinance governs wind energy systems and ` +
		`imposes a setback from any occupied residence within the county.</p></body></html>`

	pl := &pipeline.Pipeline{
		Planner:            &planner.TemplatePlanner{},
		SearchEngine:       fixedSearchEngine{url: "https://example-county.gov/ordinance.html"},
		Loader:             docLoader{html: html},
		Tokenizer:          llm.TiktokenCounter{},
		Caller:             alwaysTrueCaller{},
		Model:              "gpt-4",
		ChunkSizeTokens:    2000,
		MinChunksToProcess: 1,
	}

	o := &Orchestrator{
		cfg: app.Config{OutputTable: outputTable},
		pl:  pl,
		sem: semaphore.NewWeighted(2),
	}

	locs := []location.County{
		{Name: "Alpha", State: "Example State"},
		{Name: "Beta", State: "Example State"},
	}
	results, err := o.Run(context.Background(), locs)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != len(locs) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(locs))
	}
	for _, r := range results {
		if !r.FoundOrdinance {
			t.Errorf("location %q: FoundOrdinance = false, want true", r.Location)
		}
	}

	if _, err := os.Stat(outputTable); err != nil {
		t.Errorf("aggregate table not written: %v", err)
	}
}
