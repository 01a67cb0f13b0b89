package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"sjsage522/placereviewworker/pkg/errors"
)

// Config represents the application configuration
type Config struct {
	// Targets
	PlaceNames      []string
	SearchQuery     string
	CompetitorLimit int
	SearchURL       string

	// Output
	OutputDir     string
	OutputFormats []string
	ErrorLogFile  string

	// Review harvest tuning
	HardMax            int
	IdleThreshold      int
	MaxRecoveryPasses  int
	MaxRounds          int
	ScrollStepFraction float64
	ScrollJitterPx     int
	PacingScale        float64
	FrameTimeout       time.Duration

	// Browser
	BrowserHeadless bool
	BrowserProxy    string
	BrowserProxies  []string
	ProxyRefresh    time.Duration
	ActionRate      int

	// Memcache configuration
	MemcacheAddr    string
	HarvestCooldown time.Duration
	ForceHarvest    bool

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// MySQL configuration
	MySQLDSN string

	// Metrics
	MetricsAddr string

	// Scheduling
	HarvestInterval time.Duration

	// Analysis
	AnalysisInputDir     string
	AnalysisInputCharset string
	SentimentDictPath    string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	outputDir := getEnv("OUTPUT_DIR", "./output")

	return &Config{
		PlaceNames:      splitList(getEnv("PLACE_NAMES", "")),
		SearchQuery:     getEnv("SEARCH_QUERY", ""),
		CompetitorLimit: getInt("COMPETITOR_LIMIT", 8),
		SearchURL:       getEnv("SEARCH_URL", "https://map.naver.com/p/search/"),

		OutputDir:     outputDir,
		OutputFormats: splitList(getEnv("OUTPUT_FORMATS", "csv")),
		ErrorLogFile:  getEnv("ERROR_LOG_FILE", "harvest_errors.log"),

		HardMax:            getInt("HARD_MAX", 20000),
		IdleThreshold:      getInt("IDLE_THRESHOLD", 15),
		MaxRecoveryPasses:  getInt("MAX_RECOVERY_PASSES", 20),
		MaxRounds:          getInt("MAX_ROUNDS", 9998),
		ScrollStepFraction: getFloat("SCROLL_STEP_FRACTION", 0.7),
		ScrollJitterPx:     getInt("SCROLL_JITTER_PX", 100),
		PacingScale:        getFloat("PACING_SCALE", 1.0),
		FrameTimeout:       time.Duration(getInt("FRAME_TIMEOUT_SECONDS", 10)) * time.Second,

		BrowserHeadless: getEnv("BROWSER_HEADLESS", "true") != "false",
		BrowserProxy:    getEnv("BROWSER_PROXY", ""),
		BrowserProxies:  splitList(getEnv("BROWSER_PROXIES", "")),
		ProxyRefresh:    time.Duration(getInt("PROXY_REFRESH_SECONDS", 1800)) * time.Second,
		ActionRate:      getInt("ACTION_RATE", 20),

		MemcacheAddr:    getEnv("MEMCACHE_ADDR", ""),
		HarvestCooldown: time.Duration(getInt("HARVEST_COOLDOWN_SECONDS", 21600)) * time.Second,
		ForceHarvest:    getEnv("HARVEST_FORCE", "false") == "true",

		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              getInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "reviews"),
		RedisStreamCount:     getInt("REDIS_STREAM_COUNT", 1),
		RedisStreamMaxLength: getInt("REDIS_STREAM_MAX_LENGTH", 10000),

		MySQLDSN: getEnv("MYSQL_DSN", ""),

		MetricsAddr: getEnv("METRICS_ADDR", ""),

		HarvestInterval: time.Duration(getInt("HARVEST_INTERVAL_SECONDS", 0)) * time.Second,

		AnalysisInputDir:     getEnv("ANALYSIS_INPUT_DIR", outputDir),
		AnalysisInputCharset: getEnv("ANALYSIS_INPUT_CHARSET", "euc-kr"),
		SentimentDictPath:    getEnv("SENTIMENT_DICT", ""),

		Environment: getEnv("HARVEST_ENVIRONMENT", "development"),
	}
}

// Validate rejects values the harvester cannot run with
func (c *Config) Validate() error {
	if c.HardMax <= 0 {
		return errors.NewConfiguration("HARD_MAX must be positive", nil)
	}
	if c.IdleThreshold <= 0 {
		return errors.NewConfiguration("IDLE_THRESHOLD must be positive", nil)
	}
	if c.MaxRounds <= 0 {
		return errors.NewConfiguration("MAX_ROUNDS must be positive", nil)
	}
	if c.MaxRecoveryPasses < 0 {
		return errors.NewConfiguration("MAX_RECOVERY_PASSES must not be negative", nil)
	}
	if c.ScrollStepFraction <= 0 || c.ScrollStepFraction > 1 {
		return errors.NewConfiguration("SCROLL_STEP_FRACTION must be in (0, 1]", nil)
	}
	if c.PacingScale < 0 {
		return errors.NewConfiguration("PACING_SCALE must not be negative", nil)
	}
	if c.FrameTimeout <= 0 {
		return errors.NewConfiguration("FRAME_TIMEOUT_SECONDS must be positive", nil)
	}
	if c.ActionRate <= 0 {
		return errors.NewConfiguration("ACTION_RATE must be positive", nil)
	}
	if c.RedisStreamCount <= 0 {
		return errors.NewConfiguration("REDIS_STREAM_COUNT must be positive", nil)
	}
	for _, f := range c.OutputFormats {
		switch f {
		case "csv", "xlsx", "redis":
		case "mysql":
			if c.MySQLDSN == "" {
				return errors.NewConfiguration("OUTPUT_FORMATS includes mysql but MYSQL_DSN is empty", nil)
			}
		default:
			return errors.NewConfiguration("unknown output format: "+f, nil)
		}
	}
	return nil
}

// HasFormat reports whether the review sink list includes format
func (c *Config) HasFormat(format string) bool {
	for _, f := range c.OutputFormats {
		if f == format {
			return true
		}
	}
	return false
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return n
}

func getFloat(key string, defaultValue float64) float64 {
	f, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return f
}

// splitList splits a comma separated value, dropping blanks
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
