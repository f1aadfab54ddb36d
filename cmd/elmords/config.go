package main

import (
	"github.com/spf13/cobra"

	"github.com/NREL/elm-sub000/internal/app"
)

// configFlags holds every flag common to run and validate-config, and the
// path to an optional YAML/JSON config file layered beneath them.
type configFlags struct {
	configPath string
	cfg        app.Config
}

// bindConfigFlags registers the command-line subset of Config's fields as
// flags on cmd (LogDir, CleanedTextDir, DBDir and the cache-only switches
// have no flag), defaulting to the same constants config_file.go uses for
// the file-based overlay.
func bindConfigFlags(cmd *cobra.Command) *configFlags {
	f := &configFlags{}
	flags := cmd.Flags()

	flags.StringVar(&f.configPath, "config", "", "Path to a YAML or JSON config file")

	flags.StringVar(&f.cfg.LocationsPath, "locations", app.DefaultLocationsPath, "CSV roster of counties to process")
	flags.StringVar(&f.cfg.OutputDir, "output-dir", app.DefaultOutputDir, "Directory for per-run artifacts")
	flags.StringVar(&f.cfg.OutputTable, "output-table", app.DefaultOutputTable, "Path to the aggregate CSV of extracted values")
	flags.StringVar(&f.cfg.OutputXLSX, "output-xlsx", "", "Optional path to the aggregate spreadsheet")

	flags.StringVar(&f.cfg.LLMBaseURL, "llm-base", "", "OpenAI-compatible base URL")
	flags.StringVar(&f.cfg.LLMModel, "llm-model", "", "Model name")
	flags.StringVar(&f.cfg.LLMAPIKey, "llm-key", "", "API key for the OpenAI-compatible server")
	flags.IntVar(&f.cfg.LLMRequestsPerMinute, "llm-requests-per-minute", app.DefaultLLMRequestsPerMinute, "LLM request rate limit")
	flags.IntVar(&f.cfg.LLMTokensPerMinute, "llm-tokens-per-minute", app.DefaultLLMTokensPerMinute, "LLM token rate limit")

	flags.IntVar(&f.cfg.ChunkSizeTokens, "chunk-size-tokens", app.DefaultChunkSizeTokens, "Chunk size, in tokens")
	flags.IntVar(&f.cfg.ChunkOverlapPars, "chunk-overlap-paragraphs", app.DefaultChunkOverlapPars, "Chunk overlap, in paragraphs")

	flags.StringVar(&f.cfg.SearxURL, "searx-url", "", "SearxNG base URL")
	flags.StringVar(&f.cfg.SearxKey, "searx-key", "", "SearxNG API key (optional)")
	flags.StringVar(&f.cfg.FileSearchPath, "file-search", "", "Path to a local file-backed search index, used instead of SearxNG")
	flags.IntVar(&f.cfg.URLsPerLocation, "urls-per-location", app.DefaultURLsPerLocation, "Candidate URLs to fetch per county")

	flags.IntVar(&f.cfg.MaxConcurrentLocations, "max-concurrent-locations", app.DefaultMaxConcurrentLocations, "Maximum counties processed concurrently")
	flags.IntVar(&f.cfg.ProcessPoolSize, "process-pool-size", app.DefaultProcessPoolSize, "Worker pool size for CPU-bound processing")
	flags.IntVar(&f.cfg.ThreadPoolSize, "thread-pool-size", app.DefaultThreadPoolSize, "Worker pool size for I/O-bound processing")

	flags.StringVar(&f.cfg.OCRBinaryPath, "ocr-binary", "", "Path to an OCR binary used for scanned PDFs (optional)")
	flags.StringVar(&f.cfg.TempDir, "temp-dir", "", "Temporary directory for intermediate files")

	flags.Float64Var(&f.cfg.BadAdderThresholdFt, "bad-adder-threshold-ft", 0, "Blade-tip-height adder flagged as implausible above this value, in feet")

	flags.StringVar(&f.cfg.LanguageHint, "lang", "", "Optional language hint for source documents")
	flags.BoolVar(&f.cfg.DryRun, "dry-run", false, "Skip the model-name check in config validation; the run itself still calls the model")
	flags.BoolVar(&f.cfg.Verbose, "v", false, "Verbose logging")
	flags.StringVar(&f.cfg.LogLevel, "log-level", app.DefaultLogLevel, "Log level (debug, info, warn, error)")

	flags.StringVar(&f.cfg.CacheDir, "cache-dir", app.DefaultCacheDir, "Cache directory path")
	flags.DurationVar(&f.cfg.CacheMaxAge, "cache-max-age", 0, "Max age for cache entries before purge (e.g. 24h); 0 disables")
	flags.BoolVar(&f.cfg.CacheClear, "cache-clear", false, "Clear cache directory before run")
	flags.BoolVar(&f.cfg.CacheStrictPerms, "cache-strict-perms", false, "Restrict cache permissions (0700 dirs, 0600 files)")

	return f
}

// resolve overlays file config and then environment variables onto the
// flags bound by bindConfigFlags. ApplyFileConfig only fills fields that
// are still empty or at their built-in default, so an explicitly set flag
// wins over the file. ApplyEnvToConfig then only fills fields that are
// still empty (or zero), so the file wins over the environment, and an
// environment variable never replaces a value that has a non-empty flag
// default.
func (f *configFlags) resolve() (app.Config, error) {
	cfg := f.cfg
	if f.configPath != "" {
		fc, err := app.LoadConfigFile(f.configPath)
		if err != nil {
			return cfg, err
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	app.ApplyEnvToConfig(&cfg)
	return cfg, nil
}
