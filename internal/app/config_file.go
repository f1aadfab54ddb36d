package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// Defaults mirrored by flags, env, and ApplyFileConfig's zero-value overlay
// test below.
const (
	DefaultLocationsPath           = "locations.csv"
	DefaultOutputDir               = "out"
	DefaultOutputTable             = "ordinances.csv"
	DefaultCacheDir                = ".elm-sub000-cache"
	DefaultChunkSizeTokens         = 3000
	DefaultChunkOverlapPars        = 1
	DefaultURLsPerLocation         = 5
	DefaultMaxConcurrentLocations  = 10
	DefaultProcessPoolSize         = 4
	DefaultThreadPoolSize          = 10
	DefaultLLMRequestsPerMinute    = 500
	DefaultLLMTokensPerMinute      = 4000
	DefaultLogLevel                = "info"
)

// FileConfig is the on-disk YAML/JSON configuration schema. Nested sections
// map naturally onto flags and env vars.
type FileConfig struct {
	Locations string `yaml:"locations" json:"locations"`
	OutputDir string `yaml:"outputDir" json:"outputDir"`

	Output struct {
		Table string `yaml:"table" json:"table"`
		XLSX  string `yaml:"xlsx" json:"xlsx"`
	} `yaml:"output" json:"output"`

	LLM struct {
		BaseURL           string `yaml:"base" json:"base"`
		Model             string `yaml:"model" json:"model"`
		Key               string `yaml:"key" json:"key"`
		RequestsPerMinute int    `yaml:"requestsPerMinute" json:"requestsPerMinute"`
		TokensPerMinute   int    `yaml:"tokensPerMinute" json:"tokensPerMinute"`
	} `yaml:"llm" json:"llm"`

	Searx struct {
		URL string `yaml:"url" json:"url"`
		Key string `yaml:"key" json:"key"`
	} `yaml:"searx" json:"searx"`

	Search struct {
		File            string `yaml:"file" json:"file"`
		URLsPerLocation int    `yaml:"urlsPerLocation" json:"urlsPerLocation"`
	} `yaml:"search" json:"search"`

	Chunk struct {
		SizeTokens  int `yaml:"sizeTokens" json:"sizeTokens"`
		OverlapPars int `yaml:"overlapParagraphs" json:"overlapParagraphs"`
	} `yaml:"chunk" json:"chunk"`

	Concurrency struct {
		MaxLocations    int `yaml:"maxLocations" json:"maxLocations"`
		ProcessPoolSize int `yaml:"processPoolSize" json:"processPoolSize"`
		ThreadPoolSize  int `yaml:"threadPoolSize" json:"threadPoolSize"`
	} `yaml:"concurrency" json:"concurrency"`

	Tools struct {
		OCRBinary string `yaml:"ocrBinary" json:"ocrBinary"`
		TempDir   string `yaml:"tempDir" json:"tempDir"`
	} `yaml:"tools" json:"tools"`

	Dirs struct {
		Log         string `yaml:"log" json:"log"`
		CleanedText string `yaml:"cleanedText" json:"cleanedText"`
		Doc         string `yaml:"doc" json:"doc"`
		DB          string `yaml:"db" json:"db"`
	} `yaml:"dirs" json:"dirs"`

	Parse struct {
		BadAdderThresholdFt float64 `yaml:"badAdderThresholdFt" json:"badAdderThresholdFt"`
	} `yaml:"parse" json:"parse"`

	Language string `yaml:"language" json:"language"`
	DryRun   bool   `yaml:"dryRun" json:"dryRun"`
	Verbose  bool   `yaml:"verbose" json:"verbose"`
	LogLevel string `yaml:"logLevel" json:"logLevel"`

	Cache struct {
		Dir         string        `yaml:"dir" json:"dir"`
		MaxAge      time.Duration `yaml:"maxAge" json:"maxAge"`
		Clear       bool          `yaml:"clear" json:"clear"`
		StrictPerms bool          `yaml:"strictPerms" json:"strictPerms"`
	} `yaml:"cache" json:"cache"`
}

// LoadConfigFile reads YAML or JSON into a FileConfig, dispatching on the
// file extension and falling back to trying both when the extension is
// absent or unrecognized.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays FileConfig values into cfg for any fields that are
// still unset or at their default, so flags retain the highest precedence.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	if (cfg.LocationsPath == "" || cfg.LocationsPath == DefaultLocationsPath) && fc.Locations != "" {
		cfg.LocationsPath = fc.Locations
	}
	if (cfg.OutputDir == "" || cfg.OutputDir == DefaultOutputDir) && fc.OutputDir != "" {
		cfg.OutputDir = fc.OutputDir
	}
	if (cfg.OutputTable == "" || cfg.OutputTable == DefaultOutputTable) && fc.Output.Table != "" {
		cfg.OutputTable = fc.Output.Table
	}
	if cfg.OutputXLSX == "" && fc.Output.XLSX != "" {
		cfg.OutputXLSX = fc.Output.XLSX
	}

	if cfg.LLMBaseURL == "" && fc.LLM.BaseURL != "" {
		cfg.LLMBaseURL = fc.LLM.BaseURL
	}
	if cfg.LLMModel == "" && fc.LLM.Model != "" {
		cfg.LLMModel = fc.LLM.Model
	}
	if cfg.LLMAPIKey == "" && fc.LLM.Key != "" {
		cfg.LLMAPIKey = fc.LLM.Key
	}
	if (cfg.LLMRequestsPerMinute == 0 || cfg.LLMRequestsPerMinute == DefaultLLMRequestsPerMinute) && fc.LLM.RequestsPerMinute > 0 {
		cfg.LLMRequestsPerMinute = fc.LLM.RequestsPerMinute
	}
	if (cfg.LLMTokensPerMinute == 0 || cfg.LLMTokensPerMinute == DefaultLLMTokensPerMinute) && fc.LLM.TokensPerMinute > 0 {
		cfg.LLMTokensPerMinute = fc.LLM.TokensPerMinute
	}

	if cfg.SearxURL == "" && fc.Searx.URL != "" {
		cfg.SearxURL = fc.Searx.URL
	}
	if cfg.SearxKey == "" && fc.Searx.Key != "" {
		cfg.SearxKey = fc.Searx.Key
	}
	if cfg.FileSearchPath == "" && fc.Search.File != "" {
		cfg.FileSearchPath = fc.Search.File
	}
	if (cfg.URLsPerLocation == 0 || cfg.URLsPerLocation == DefaultURLsPerLocation) && fc.Search.URLsPerLocation > 0 {
		cfg.URLsPerLocation = fc.Search.URLsPerLocation
	}

	if (cfg.ChunkSizeTokens == 0 || cfg.ChunkSizeTokens == DefaultChunkSizeTokens) && fc.Chunk.SizeTokens > 0 {
		cfg.ChunkSizeTokens = fc.Chunk.SizeTokens
	}
	if (cfg.ChunkOverlapPars == 0 || cfg.ChunkOverlapPars == DefaultChunkOverlapPars) && fc.Chunk.OverlapPars > 0 {
		cfg.ChunkOverlapPars = fc.Chunk.OverlapPars
	}

	if (cfg.MaxConcurrentLocations == 0 || cfg.MaxConcurrentLocations == DefaultMaxConcurrentLocations) && fc.Concurrency.MaxLocations > 0 {
		cfg.MaxConcurrentLocations = fc.Concurrency.MaxLocations
	}
	if (cfg.ProcessPoolSize == 0 || cfg.ProcessPoolSize == DefaultProcessPoolSize) && fc.Concurrency.ProcessPoolSize > 0 {
		cfg.ProcessPoolSize = fc.Concurrency.ProcessPoolSize
	}
	if (cfg.ThreadPoolSize == 0 || cfg.ThreadPoolSize == DefaultThreadPoolSize) && fc.Concurrency.ThreadPoolSize > 0 {
		cfg.ThreadPoolSize = fc.Concurrency.ThreadPoolSize
	}

	if cfg.OCRBinaryPath == "" && fc.Tools.OCRBinary != "" {
		cfg.OCRBinaryPath = fc.Tools.OCRBinary
	}
	if cfg.TempDir == "" && fc.Tools.TempDir != "" {
		cfg.TempDir = fc.Tools.TempDir
	}

	if cfg.LogDir == "" && fc.Dirs.Log != "" {
		cfg.LogDir = fc.Dirs.Log
	}
	if cfg.CleanedTextDir == "" && fc.Dirs.CleanedText != "" {
		cfg.CleanedTextDir = fc.Dirs.CleanedText
	}
	if cfg.DocDir == "" && fc.Dirs.Doc != "" {
		cfg.DocDir = fc.Dirs.Doc
	}
	if cfg.DBDir == "" && fc.Dirs.DB != "" {
		cfg.DBDir = fc.Dirs.DB
	}

	if cfg.BadAdderThresholdFt == 0 && fc.Parse.BadAdderThresholdFt != 0 {
		cfg.BadAdderThresholdFt = fc.Parse.BadAdderThresholdFt
	}

	if cfg.LanguageHint == "" && fc.Language != "" {
		cfg.LanguageHint = fc.Language
	}
	if !cfg.DryRun && fc.DryRun {
		cfg.DryRun = true
	}
	if !cfg.Verbose && fc.Verbose {
		cfg.Verbose = true
	}
	if (cfg.LogLevel == "" || cfg.LogLevel == DefaultLogLevel) && fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}

	if (cfg.CacheDir == "" || cfg.CacheDir == DefaultCacheDir) && fc.Cache.Dir != "" {
		cfg.CacheDir = fc.Cache.Dir
	}
	if cfg.CacheMaxAge == 0 && fc.Cache.MaxAge > 0 {
		cfg.CacheMaxAge = fc.Cache.MaxAge
	}
	if !cfg.CacheClear && fc.Cache.Clear {
		cfg.CacheClear = true
	}
	if !cfg.CacheStrictPerms && fc.Cache.StrictPerms {
		cfg.CacheStrictPerms = true
	}
}

// ValidateConfig performs minimal schema validation for required settings.
// For dry-run, LLM settings may be omitted.
func ValidateConfig(cfg Config) error {
	if trim(cfg.LocationsPath) == "" {
		return errors.New("config: locations path is required")
	}
	if trim(cfg.OutputDir) == "" {
		return errors.New("config: output directory is required")
	}
	if !cfg.DryRun {
		if trim(cfg.LLMModel) == "" {
			return errors.New("config: llm.model is required (or set LLM_MODEL)")
		}
	}
	if cfg.MaxConcurrentLocations < 0 || cfg.ProcessPoolSize < 0 || cfg.ThreadPoolSize < 0 {
		return errors.New("config: negative concurrency limits are not allowed")
	}
	if cfg.ChunkSizeTokens < 0 || cfg.ChunkOverlapPars < 0 {
		return errors.New("config: negative chunk settings are not allowed")
	}
	if cfg.LLMRequestsPerMinute < 0 || cfg.LLMTokensPerMinute < 0 {
		return errors.New("config: negative rate limits are not allowed")
	}
	return nil
}

func trim(s string) string {
	i := 0
	j := len(s)
	for i < j && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	for j > i && (s[j-1] == ' ' || s[j-1] == '\t' || s[j-1] == '\n' || s[j-1] == '\r') {
		j--
	}
	return s[i:j]
}
