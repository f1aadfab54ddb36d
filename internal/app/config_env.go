package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvToConfig populates unset fields of cfg from environment variables.
// Explicit cfg values take precedence over env.
func ApplyEnvToConfig(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.LLMBaseURL == "" {
		cfg.LLMBaseURL = os.Getenv("LLM_BASE_URL")
	}
	if cfg.LLMModel == "" {
		cfg.LLMModel = os.Getenv("LLM_MODEL")
	}
	if cfg.LLMAPIKey == "" {
		cfg.LLMAPIKey = os.Getenv("LLM_API_KEY")
	}

	if cfg.SearxURL == "" {
		v := os.Getenv("SEARX_URL")
		if v == "" {
			v = os.Getenv("SEARXNG_URL")
		}
		cfg.SearxURL = v
	}
	if cfg.SearxKey == "" {
		v := os.Getenv("SEARX_KEY")
		if v == "" {
			v = os.Getenv("SEARXNG_KEY")
		}
		cfg.SearxKey = v
	}

	if cfg.CacheDir == "" {
		cfg.CacheDir = os.Getenv("CACHE_DIR")
	}
	if cfg.LanguageHint == "" {
		cfg.LanguageHint = os.Getenv("LANGUAGE")
	}
	if cfg.LocationsPath == "" {
		cfg.LocationsPath = os.Getenv("LOCATIONS_PATH")
	}
	if cfg.OCRBinaryPath == "" {
		cfg.OCRBinaryPath = os.Getenv("OCR_BINARY")
	}

	setInt := func(dst *int, envKey string) {
		if *dst != 0 {
			return
		}
		if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				*dst = n
			}
		}
	}
	setInt(&cfg.LLMRequestsPerMinute, "LLM_REQUESTS_PER_MINUTE")
	setInt(&cfg.LLMTokensPerMinute, "LLM_TOKENS_PER_MINUTE")
	setInt(&cfg.ChunkSizeTokens, "CHUNK_SIZE_TOKENS")
	setInt(&cfg.ChunkOverlapPars, "CHUNK_OVERLAP_PARAGRAPHS")
	setInt(&cfg.URLsPerLocation, "URLS_PER_LOCATION")
	setInt(&cfg.MaxConcurrentLocations, "MAX_CONCURRENT_LOCATIONS")
	setInt(&cfg.ProcessPoolSize, "PROCESS_POOL_SIZE")
	setInt(&cfg.ThreadPoolSize, "THREAD_POOL_SIZE")

	if cfg.CacheMaxAge == 0 {
		if s := os.Getenv("CACHE_MAX_AGE"); s != "" {
			if d, err := time.ParseDuration(s); err == nil {
				cfg.CacheMaxAge = d
			}
		}
	}

	setBool := func(dst *bool, envKey string) {
		if *dst {
			return
		}
		if s := strings.ToLower(strings.TrimSpace(os.Getenv(envKey))); s != "" {
			if s == "1" || s == "true" || s == "yes" || s == "on" {
				*dst = true
			}
		}
	}
	setBool(&cfg.DryRun, "DRY_RUN")
	setBool(&cfg.Verbose, "VERBOSE")
	setBool(&cfg.CacheClear, "CACHE_CLEAR")
	setBool(&cfg.CacheStrictPerms, "CACHE_STRICT_PERMS")
	setBool(&cfg.HTTPCacheOnly, "HTTP_CACHE_ONLY")
	setBool(&cfg.LLMCacheOnly, "LLM_CACHE_ONLY")

	if cfg.LogLevel == "" {
		cfg.LogLevel = os.Getenv("LOG_LEVEL")
	}
}

// ApplyEnvOverrides forcefully overrides cfg fields with environment
// variables when set, regardless of their current values. cmd/elmords's
// resolve does not call it; it uses ApplyEnvToConfig.
func ApplyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLMBaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLMModel = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLMAPIKey = v
	}
	if v := os.Getenv("SEARX_URL"); v != "" {
		cfg.SearxURL = v
	}
	if v := os.Getenv("SEARXNG_URL"); v != "" {
		cfg.SearxURL = v
	}
	if v := os.Getenv("SEARX_KEY"); v != "" {
		cfg.SearxKey = v
	}
	if v := os.Getenv("CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("LANGUAGE"); v != "" {
		cfg.LanguageHint = v
	}
	if v := os.Getenv("LOCATIONS_PATH"); v != "" {
		cfg.LocationsPath = v
	}
	if s := os.Getenv("CACHE_MAX_AGE"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			cfg.CacheMaxAge = d
		}
	}

	setBool := func(dst *bool, envKey string) {
		if s := strings.ToLower(strings.TrimSpace(os.Getenv(envKey))); s != "" {
			switch s {
			case "1", "true", "yes", "on":
				*dst = true
			case "0", "false", "no", "off":
				*dst = false
			}
		}
	}
	setBool(&cfg.DryRun, "DRY_RUN")
	setBool(&cfg.Verbose, "VERBOSE")
	setBool(&cfg.CacheClear, "CACHE_CLEAR")
	setBool(&cfg.CacheStrictPerms, "CACHE_STRICT_PERMS")
	setBool(&cfg.HTTPCacheOnly, "HTTP_CACHE_ONLY")
	setBool(&cfg.LLMCacheOnly, "LLM_CACHE_ONLY")
}
