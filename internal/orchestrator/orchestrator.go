// Package orchestrator fans process_location out across a roster of
// locations, bounding how many run concurrently, isolating each one's logs,
// and collecting every location's rows into one run-wide tabular output.
// It is the Go analogue of elm/ords/process.py's per-location async
// gather, generalized from the teacher's single-report internal/app.App.Run
// into a many-location run.
package orchestrator

import (
	"context"
	"encoding/csv"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/semaphore"

	"github.com/NREL/elm-sub000/internal/app"
	"github.com/NREL/elm-sub000/internal/applog"
	"github.com/NREL/elm-sub000/internal/cache"
	"github.com/NREL/elm-sub000/internal/fetch"
	"github.com/NREL/elm-sub000/internal/llm"
	"github.com/NREL/elm-sub000/internal/location"
	"github.com/NREL/elm-sub000/internal/pipeline"
	"github.com/NREL/elm-sub000/internal/planner"
	"github.com/NREL/elm-sub000/internal/robots"
	"github.com/NREL/elm-sub000/internal/search"
	"github.com/NREL/elm-sub000/internal/services"
	"github.com/NREL/elm-sub000/internal/validate"
)

// windEnergyHeuristic is the keyword/acronym/phrase set a chunk of
// ordinance text must clear before the LLM is asked whether it discusses
// wind energy systems at all, ported from the original's GOOD_WIND_*
// constants (elm/ords/validation/content.py).
var windEnergyHeuristic = validate.KeywordHeuristic{
	Keywords: []string{"wind", "setback"},
	Acronyms: []string{"wecs", "wes", "lwet", "uwet", "wef"},
	Phrases:  []string{"wind energy conversion", "wind turbine", "wind tower"},
}

// userAgent identifies this module's outbound HTTP traffic to the sites and
// SearxNG/robots.txt endpoints it fetches from.
const userAgent = "elm-sub000/1.0 (+https://github.com/NREL/elm-sub000)"

// Orchestrator owns the service runtime and collaborator wiring shared by
// every location's Pipeline.ProcessLocation call, and bounds how many of
// them run at once.
type Orchestrator struct {
	cfg      app.Config
	pl       *pipeline.Pipeline
	provider *services.Provider
	logs     *applog.Listener
	sem      *semaphore.Weighted
}

// New builds the full service runtime (LLM/thread-pool/file-mover/usage
// services), the search/fetch/robots collaborators, and the per-location
// log listener described in SPEC_FULL.md, and starts the service runtime.
// Callers must call Close when done.
func New(ctx context.Context, cfg app.Config) (*Orchestrator, error) {
	transportCfg := openai.DefaultConfig(cfg.LLMAPIKey)
	if cfg.LLMBaseURL != "" {
		transportCfg.BaseURL = cfg.LLMBaseURL
	}
	httpClient := newHighThroughputHTTPClient()
	transportCfg.HTTPClient = httpClient
	llmProvider := &llm.OpenAIProvider{Inner: openai.NewClientWithConfig(transportCfg)}

	var httpCache *cache.HTTPCache
	if cfg.CacheDir != "" {
		if cfg.CacheClear {
			if err := cache.ClearDir(cfg.CacheDir); err != nil {
				return nil, fmt.Errorf("orchestrator: clear cache: %w", err)
			}
		}
		if cfg.CacheMaxAge > 0 {
			if _, err := cache.PurgeHTTPCacheByAge(cfg.CacheDir, cfg.CacheMaxAge); err != nil {
				return nil, fmt.Errorf("orchestrator: purge cache: %w", err)
			}
		}
		httpCache = &cache.HTTPCache{Dir: cfg.CacheDir, StrictPerms: cfg.CacheStrictPerms}
	}

	usageTracker := pipeline.NewUsageTracker()
	llmSvc := services.NewLLMService(llmProvider, llm.TiktokenCounter{}, cfg.LLMRequestsPerMinute, cfg.LLMTokensPerMinute)
	llmSvc.UsageSink = usageTracker

	threadPool := services.NewThreadPoolService(threadPoolSize(cfg))
	fileMover := services.NewFileMoverService(processPoolSize(cfg))
	usagePath := filepath.Join(dbDir(cfg), "usage.json")
	usageRecorder := services.NewUsageRecorderService(usagePath)

	provider, err := services.NewProvider(queueDepth(cfg), llmSvc, threadPool, fileMover, usageRecorder)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: build service provider: %w", err)
	}
	if err := provider.Start(ctx); err != nil {
		return nil, fmt.Errorf("orchestrator: start service provider: %w", err)
	}

	logDir := cfg.LogDir
	if logDir == "" {
		logDir = filepath.Join(cfg.OutputDir, "logs")
	}
	logs, err := applog.NewListener(logDir, os.Stderr)
	if err != nil {
		_ = provider.Close(ctx)
		return nil, fmt.Errorf("orchestrator: build log listener: %w", err)
	}

	fetchClient := &fetch.Client{
		HTTPClient:        httpClient,
		UserAgent:         userAgent,
		MaxAttempts:       2,
		PerRequestTimeout: 15 * time.Second,
		Cache:             httpCache,
		RedirectMaxHops:   5,
		MaxConcurrent:     8,
	}
	robotsManager := &robots.Manager{HTTPClient: httpClient, Cache: httpCache, UserAgent: userAgent}

	var searchEngine search.Provider
	if cfg.FileSearchPath != "" {
		searchEngine = &search.FileProvider{Path: cfg.FileSearchPath}
	} else {
		searchEngine = &search.SearxNG{BaseURL: cfg.SearxURL, APIKey: cfg.SearxKey, HTTPClient: httpClient, UserAgent: userAgent}
	}

	loader := &pipeline.Loader{
		Fetch:         fetchClient,
		Robots:        robotsManager,
		UserAgent:     userAgent,
		TempDir:       cfg.TempDir,
		OCRBinaryPath: cfg.OCRBinaryPath,
	}

	pl := &pipeline.Pipeline{
		Planner:             &planner.TemplatePlanner{},
		SearchEngine:        searchEngine,
		Loader:              loader,
		Tokenizer:           llm.TiktokenCounter{},
		Caller:              provider,
		Provider:            provider,
		Usage:               usageTracker,
		Logs:                logs,
		Model:               cfg.LLMModel,
		URLsPerLocation:     cfg.URLsPerLocation,
		ChunkSizeTokens:     cfg.ChunkSizeTokens,
		ChunkOverlapPars:    cfg.ChunkOverlapPars,
		BadAdderThresholdFt: cfg.BadAdderThresholdFt,
		CleanedTextDir:      cleanedTextDir(cfg),
		Heuristic:           windEnergyHeuristic,
	}

	return &Orchestrator{
		cfg:      cfg,
		pl:       pl,
		provider: provider,
		logs:     logs,
		sem:      semaphore.NewWeighted(int64(maxConcurrentLocations(cfg))),
	}, nil
}

// Close drains the service runtime and closes the run-wide log file.
// Location-scoped log files are each closed by their own ProcessLocation
// call; Close only tears down what New built.
func (o *Orchestrator) Close(ctx context.Context) error {
	var errs []error
	if err := o.provider.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close provider: %w", err))
	}
	if err := o.logs.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close logs: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("orchestrator: close: %v", errs)
	}
	return nil
}

// Run processes every location concurrently, bounded by
// cfg.MaxConcurrentLocations, and writes the aggregate CSV (and, if
// configured, XLSX) table of every location's extracted rows. A single
// location's failure is logged and excluded from the table rather than
// aborting the run, matching spec.md's "await all, ignore individual
// errors" policy (§4.9).
func (o *Orchestrator) Run(ctx context.Context, locations []location.County) ([]pipeline.Result, error) {
	results := make([]*pipeline.Result, len(locations))

	var wg sync.WaitGroup
	for i, loc := range locations {
		if err := o.sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("orchestrator: acquire concurrency slot: %w", err)
		}
		wg.Add(1)
		go func(i int, loc location.County) {
			defer wg.Done()
			defer o.sem.Release(1)
			result, err := o.pl.ProcessLocation(ctx, loc)
			if err != nil {
				log.Error().Err(err).Str("location", loc.FullName()).Msg("process_location failed")
				return
			}
			results[i] = result
		}(i, loc)
	}
	wg.Wait()

	out := make([]pipeline.Result, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}

	if o.cfg.OutputTable != "" {
		if err := writeCSV(o.cfg.OutputTable, out); err != nil {
			return out, fmt.Errorf("orchestrator: write csv table: %w", err)
		}
	}
	if o.cfg.OutputXLSX != "" {
		if err := writeXLSX(o.cfg.OutputXLSX, out); err != nil {
			return out, fmt.Errorf("orchestrator: write xlsx table: %w", err)
		}
	}
	return out, nil
}

// tableColumns returns "location", "source_url", then every distinct row
// key across results in sorted order, so the table's column set adapts to
// whatever features actually produced rows instead of hardcoding them.
func tableColumns(results []pipeline.Result) []string {
	seen := map[string]bool{}
	for _, r := range results {
		for _, row := range r.Rows {
			for k := range row {
				seen[k] = true
			}
		}
	}
	cols := make([]string, 0, len(seen)+2)
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return append([]string{"location", "source_url"}, cols...)
}

func cellValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// writeCSV writes one row per (location, parse.Row) pair, skipping
// locations where no ordinance was found.
func writeCSV(path string, results []pipeline.Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cols := tableColumns(results)
	w := csv.NewWriter(f)
	if err := w.Write(cols); err != nil {
		return err
	}
	for _, r := range results {
		if !r.FoundOrdinance {
			continue
		}
		for _, row := range r.Rows {
			record := make([]string, len(cols))
			record[0] = r.Location
			record[1] = r.SourceURL
			for i, c := range cols[2:] {
				record[i+2] = cellValue(row[c])
			}
			if err := w.Write(record); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}

// writeXLSX mirrors writeCSV's rows into a single-sheet spreadsheet.
func writeXLSX(path string, results []pipeline.Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	cols := tableColumns(results)
	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Ordinances"
	f.SetSheetName(f.GetSheetName(0), sheet)

	for i, c := range cols {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, c); err != nil {
			return err
		}
	}

	rowIdx := 2
	for _, r := range results {
		if !r.FoundOrdinance {
			continue
		}
		for _, row := range r.Rows {
			values := append([]any{r.Location, r.SourceURL}, make([]any, len(cols)-2)...)
			for i, c := range cols[2:] {
				values[i+2] = cellValue(row[c])
			}
			for i, v := range values {
				cell, err := excelize.CoordinatesToCellName(i+1, rowIdx)
				if err != nil {
					return err
				}
				if err := f.SetCellValue(sheet, cell, v); err != nil {
					return err
				}
			}
			rowIdx++
		}
	}

	return f.SaveAs(path)
}

func cleanedTextDir(cfg app.Config) string {
	if cfg.CleanedTextDir != "" {
		return cfg.CleanedTextDir
	}
	return filepath.Join(cfg.OutputDir, "cleaned")
}

func dbDir(cfg app.Config) string {
	if cfg.DBDir != "" {
		return cfg.DBDir
	}
	return filepath.Join(cfg.OutputDir, "db")
}

func threadPoolSize(cfg app.Config) int {
	if cfg.ThreadPoolSize > 0 {
		return cfg.ThreadPoolSize
	}
	return app.DefaultThreadPoolSize
}

func processPoolSize(cfg app.Config) int {
	if cfg.ProcessPoolSize > 0 {
		return cfg.ProcessPoolSize
	}
	return app.DefaultProcessPoolSize
}

func maxConcurrentLocations(cfg app.Config) int {
	if cfg.MaxConcurrentLocations > 0 {
		return cfg.MaxConcurrentLocations
	}
	return app.DefaultMaxConcurrentLocations
}

func queueDepth(cfg app.Config) int {
	return maxConcurrentLocations(cfg) * 4
}

// newHighThroughputHTTPClient mirrors the teacher's internal/app HTTP
// client tuning (large per-host pool, no client-side throttling) for the
// fetch/search/robots traffic this package's collaborators issue.
func newHighThroughputHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConnsPerHost:   1024,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}
