// Package pipeline implements process_location: the end-to-end run, for
// one target location at a time, from web search down to structured
// ordinance values and the side effects (cleaned text, usage accounting)
// that a successful run leaves behind.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/NREL/elm-sub000/internal/applog"
	"github.com/NREL/elm-sub000/internal/chunk"
	"github.com/NREL/elm-sub000/internal/contracts"
	"github.com/NREL/elm-sub000/internal/document"
	"github.com/NREL/elm-sub000/internal/llmcall"
	"github.com/NREL/elm-sub000/internal/location"
	"github.com/NREL/elm-sub000/internal/ordinance"
	"github.com/NREL/elm-sub000/internal/parse"
	"github.com/NREL/elm-sub000/internal/planner"
	"github.com/NREL/elm-sub000/internal/search"
	"github.com/NREL/elm-sub000/internal/services"
	"github.com/NREL/elm-sub000/internal/synth"
	"github.com/NREL/elm-sub000/internal/validate"
)

// Result is one location's outcome. FoundOrdinance is false (with Rows
// left nil) when no candidate document both matched the location and
// cleared the ordinance-content gates; that is a normal "nothing found
// here" result, not an error.
type Result struct {
	Location       string
	SourceURL      string
	CleanedText    string
	Rows           []parse.Row
	FoundOrdinance bool
}

// ordinanceHit is a document that passed the location and ordinance
// content gates, paired with the ordinance excerpt reconstructed from its
// hit chunks.
type ordinanceHit struct {
	doc           document.Document
	ordinanceText string
}

// Pipeline runs ProcessLocation for one location at a time. Its
// collaborators are expressed as the contracts package's interfaces (plus
// llmcall.Caller for the LLM round trip itself) so a caller can swap in
// fakes for testing without standing up the full service runtime.
type Pipeline struct {
	Planner      planner.Planner
	SearchEngine contracts.SearchEngine
	Loader       contracts.FileLoader
	Tokenizer    contracts.Tokenizer
	Caller       llmcall.Caller

	// Provider, when set, routes loads through ThreadPoolService and
	// persists cleaned text and usage records through FileMoverService
	// and UsageRecorderService. A nil Provider skips all of that: loads
	// run unbounded and no side effects are persisted, which is exactly
	// what a unit test exercising only the extraction logic wants.
	Provider *services.Provider
	// Usage, when set alongside Provider, supplies the per-location
	// request/token counts recorded in the final UsageRecord.
	Usage *UsageTracker
	// Logs, when set, scopes every log line this location emits to its
	// own file via applog.Listener.EnterLocation.
	Logs *applog.Listener

	Model              string
	SearchLimit        int
	URLsPerLocation    int
	ChunkSizeTokens    int
	ChunkOverlapPars   int
	NumToRecall        int
	MinChunksToProcess int
	Heuristic          validate.KeywordHeuristic
	ScoreThresh        float64
	BadAdderThresholdFt float64
	CleanedTextDir     string

	// now stands in for time.Now in tests; nil uses the real clock.
	now func() time.Time
}

// ProcessLocation runs the full search -> load -> filter-by-location ->
// filter-by-content -> pick-best -> extract-text -> extract-values ->
// side-effects pipeline for loc.
func (p *Pipeline) ProcessLocation(ctx context.Context, loc location.County) (*Result, error) {
	start := p.nowFunc()
	full := loc.FullName()

	if p.Logs != nil {
		taggedCtx, scope, err := p.Logs.EnterLocation(ctx, full)
		if err != nil {
			return nil, fmt.Errorf("pipeline: enter location log scope for %q: %w", full, err)
		}
		ctx = taggedCtx
		defer scope.Close()
	}
	logger := p.logger(ctx)
	logger.Info().Str("location", full).Msg("processing location")

	plan, err := p.Planner.Plan(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("pipeline: plan queries for %q: %w", full, err)
	}

	hits, err := runSearch(ctx, p.SearchEngine, plan.Queries, p.searchLimit(), p.urlsPerLocation())
	if err != nil {
		p.recordUsage(ctx, full, start)
		return nil, fmt.Errorf("pipeline: search for %q: %w", full, err)
	}
	logger.Debug().Int("search_hits", len(hits)).Msg("search complete")

	docs := p.loadAll(ctx, hits)
	logger.Debug().Int("loaded", len(docs)).Msg("load complete")

	docs = p.filterByLocation(ctx, docs, loc, full)
	logger.Debug().Int("matched_location", len(docs)).Msg("location filter complete")

	candidates := p.filterByContent(ctx, docs, full)
	logger.Debug().Int("ordinance_candidates", len(candidates)).Msg("ordinance filter complete")

	if len(candidates) == 0 {
		p.recordUsage(ctx, full, start)
		return &Result{Location: full}, nil
	}

	best := pickBest(ctx, candidates, p.structuredCaller(full))
	logger.Info().Str("source", best.doc.Source()).Msg("selected ordinance document")

	cleaned, err := p.cleanText(ctx, best.ordinanceText, full)
	if err != nil {
		p.recordUsage(ctx, full, start)
		return nil, fmt.Errorf("pipeline: clean ordinance text for %q: %w", full, err)
	}
	if strings.TrimSpace(cleaned) == "" {
		p.recordUsage(ctx, full, start)
		return &Result{Location: full, SourceURL: best.doc.Source()}, nil
	}

	parser := parse.NewStructuredOrdinanceParser(p.Caller, p.Model)
	parser.Location = full
	parser.Options.BadAdderThresholdFt = p.BadAdderThresholdFt
	rows, err := parser.Parse(ctx, cleaned)
	if err != nil {
		p.recordUsage(ctx, full, start)
		return nil, fmt.Errorf("pipeline: extract values for %q: %w", full, err)
	}

	result := &Result{
		Location:       full,
		SourceURL:      best.doc.Source(),
		CleanedText:    cleaned,
		Rows:           rows,
		FoundOrdinance: true,
	}
	p.sideEffects(ctx, result)
	p.recordUsage(ctx, full, start)
	return result, nil
}

// loadAll loads every search hit concurrently, dropping ones that fail to
// load or carry no meaningful text.
func (p *Pipeline) loadAll(ctx context.Context, hits []search.Result) []document.Document {
	slots := make([]document.Document, len(hits))
	var wg sync.WaitGroup
	for i, h := range hits {
		wg.Add(1)
		go func(i int, rawURL string) {
			defer wg.Done()
			doc, err := p.load(ctx, rawURL)
			if err != nil {
				p.logger(ctx).Warn().Err(err).Str("url", rawURL).Msg("load failed")
				return
			}
			if doc == nil || doc.Empty() {
				return
			}
			slots[i] = doc
		}(i, h.URL)
	}
	wg.Wait()

	out := make([]document.Document, 0, len(slots))
	for _, d := range slots {
		if d != nil {
			out = append(out, d)
		}
	}
	return out
}

func (p *Pipeline) load(ctx context.Context, rawURL string) (document.Document, error) {
	if p.Provider == nil {
		return p.Loader.Load(ctx, rawURL)
	}
	v, err := p.Provider.Call(ctx, "ThreadPoolService", services.PoolJob{Fn: func(ctx context.Context) (any, error) {
		return p.Loader.Load(ctx, rawURL)
	}})
	if err != nil {
		return nil, err
	}
	doc, _ := v.(document.Document)
	return doc, nil
}

// filterByLocation keeps only the documents validate.CountyValidator
// accepts as pertaining to loc.
func (p *Pipeline) filterByLocation(ctx context.Context, docs []document.Document, loc location.County, full string) []document.Document {
	validator := validate.NewCountyValidator(p.structuredCaller(full), p.ScoreThresh)

	kept := make([]document.Document, len(docs))
	var wg sync.WaitGroup
	for i, d := range docs {
		wg.Add(1)
		go func(i int, d document.Document) {
			defer wg.Done()
			ok, err := validator.Check(ctx, d, loc.Name, loc.State)
			if err != nil {
				p.logger(ctx).Warn().Err(err).Str("source", d.Source()).Msg("county check failed")
				return
			}
			if ok {
				kept[i] = d
			}
		}(i, d)
	}
	wg.Wait()

	out := make([]document.Document, 0, len(docs))
	for _, d := range kept {
		if d != nil {
			out = append(out, d)
		}
	}
	return out
}

// filterByContent chunks each document's text and gates it through
// ordinance.Extractor, keeping the ones with at least one utility-scale
// ordinance hit.
func (p *Pipeline) filterByContent(ctx context.Context, docs []document.Document, full string) []ordinanceHit {
	hits := make([]*ordinanceHit, len(docs))
	var wg sync.WaitGroup
	for i, d := range docs {
		wg.Add(1)
		go func(i int, d document.Document) {
			defer wg.Done()
			chunks := p.chunkText(d.Text())
			if len(chunks) == 0 {
				return
			}
			extractor := ordinance.NewExtractor(p.structuredCaller(full), chunks, p.numToRecall(), p.Heuristic)
			found, err := extractor.Parse(ctx, p.minChunksToProcess())
			if err != nil {
				p.logger(ctx).Warn().Err(err).Str("source", d.Source()).Msg("ordinance extraction failed")
				return
			}
			if !found {
				return
			}
			hits[i] = &ordinanceHit{doc: d, ordinanceText: extractor.OrdinanceText()}
		}(i, d)
	}
	wg.Wait()

	out := make([]ordinanceHit, 0, len(docs))
	for _, h := range hits {
		if h != nil {
			out = append(out, *h)
		}
	}
	return out
}

// pickBest chooses the candidate with the most recently dated text,
// breaking ties (and undated candidates) toward the longer ordinance
// excerpt.
func pickBest(ctx context.Context, candidates []ordinanceHit, caller validate.StructuredCaller) ordinanceHit {
	dateExtractor := document.NewDateExtractor(caller)

	best := candidates[0]
	bestScore := -1.0
	for i, c := range candidates {
		score := float64(len(c.ordinanceText)) / 1e6 // tie-break only; never outweighs a date component below
		if year, month, day, err := dateExtractor.Parse(ctx, c.doc); err == nil {
			if year != nil {
				score += float64(*year) * 10000
			}
			if month != nil {
				score += float64(*month) * 100
			}
			if day != nil {
				score += float64(*day)
			}
		}
		if i == 0 || score > bestScore {
			best = c
			bestScore = score
		}
	}
	return best
}

// cleanText re-chunks an ordinance excerpt and runs it through
// synth.Cleaner's restriction/scale gates.
func (p *Pipeline) cleanText(ctx context.Context, ordinanceText, full string) (string, error) {
	chunks := p.chunkText(ordinanceText)
	if len(chunks) == 0 {
		return "", nil
	}
	cleaner := synth.NewCleaner(p.structuredCaller(full))
	return cleaner.Clean(ctx, chunks)
}

// sideEffects persists the cleaned ordinance text under CleanedTextDir.
// It is a no-op if Provider or CleanedTextDir is unset.
func (p *Pipeline) sideEffects(ctx context.Context, result *Result) {
	if p.Provider == nil || p.CleanedTextDir == "" {
		return
	}
	req := services.FileMoveRequest{
		DestDir:  p.CleanedTextDir,
		FileName: applog.SanitizeFileName(result.Location) + ".txt",
		Content:  []byte(result.CleanedText),
	}
	if _, err := p.Provider.Call(ctx, "FileMoverService", req); err != nil {
		p.logger(ctx).Warn().Err(err).Str("location", result.Location).Msg("failed to persist cleaned text")
	}
}

// recordUsage persists the location's accumulated usage, including the
// wall-clock time spent on it since start. It is a no-op unless both
// Provider and Usage are set.
func (p *Pipeline) recordUsage(ctx context.Context, full string, start time.Time) {
	if p.Provider == nil || p.Usage == nil {
		return
	}
	requests, tokens := p.Usage.Snapshot(full)
	rec := services.UsageRecord{
		Location:       full,
		Requests:       requests,
		Tokens:         tokens,
		ElapsedSeconds: p.nowFunc().Sub(start).Seconds(),
	}
	if _, err := p.Provider.Call(ctx, "UsageRecorderService", rec); err != nil {
		p.logger(ctx).Warn().Err(err).Str("location", full).Msg("failed to persist usage record")
	}
}

func (p *Pipeline) structuredCaller(location string) *llmcall.StructuredCaller {
	return &llmcall.StructuredCaller{Provider: p.Caller, Model: p.Model, Location: location}
}

func (p *Pipeline) chunkText(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return chunk.New(text, p.Tokenizer, p.Model, p.chunkSizeTokens(), p.chunkOverlapPars(), "").Chunks()
}

func (p *Pipeline) logger(ctx context.Context) *zerolog.Logger {
	if p.Logs != nil {
		return p.Logs.Logger(ctx)
	}
	return &log.Logger
}

func (p *Pipeline) nowFunc() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now()
}

func (p *Pipeline) searchLimit() int {
	if p.SearchLimit > 0 {
		return p.SearchLimit
	}
	return 10
}

func (p *Pipeline) urlsPerLocation() int {
	if p.URLsPerLocation > 0 {
		return p.URLsPerLocation
	}
	return 10
}

func (p *Pipeline) numToRecall() int {
	if p.NumToRecall > 0 {
		return p.NumToRecall
	}
	return 2
}

func (p *Pipeline) minChunksToProcess() int {
	if p.MinChunksToProcess > 0 {
		return p.MinChunksToProcess
	}
	return 3
}

func (p *Pipeline) chunkSizeTokens() int {
	if p.ChunkSizeTokens > 0 {
		return p.ChunkSizeTokens
	}
	return 3000
}

func (p *Pipeline) chunkOverlapPars() int {
	if p.ChunkOverlapPars > 0 {
		return p.ChunkOverlapPars
	}
	return 1
}
