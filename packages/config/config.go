// Package config
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DatabaseURL string
	SourceBase  string

	// Ingestion loop
	BatchSize      int
	MaxRetries     int
	SleepInterval  time.Duration
	ItemDelay      time.Duration
	JobTimeout     time.Duration
	MetricsAddr    string
	SourceLanguage string

	// Adaptive fetcher. Block thresholds and backoff constants are observed
	// heuristics against one source, not a contract, so all of them are
	// tunable here.
	FetchTimeout      time.Duration
	NetworkRetries    int
	BlockRetries      int
	BackoffBase       time.Duration
	BackoffCap        time.Duration
	BlockDelayStep    time.Duration
	ReadDelayMin      time.Duration
	ReadDelayMax      time.Duration
	ProxyURLs         []string
	ProxiedHosts      []string
	FingerprintLocale string

	// Quality gate
	MinContentLength int
	FallbackImageURL string

	// Translation
	LLMEndpoint      string
	LLMModel         string
	LLMAPIKey        string
	PivotLanguage    string
	TargetLanguages  []string
	ChunkSize        int
	LLMRetries       int
	LLMRetryDelay    time.Duration
	SlugAttempts     int

	// Media
	S3Bucket        string
	S3Region        string
	S3PublicBase    string
	ImageConcurrency int

	// Logging
	LogFile  string
	LogLevel string

	// Redis cache for AI category matches (optional)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	MatchCacheKey string
	MatchCacheTTL time.Duration
}

func Load() (Config, error) {
	cfg := Config{}
	var missingVars []string

	cfg.DatabaseURL = getEnv("DATABASE_URL", "")
	cfg.SourceBase = getEnv("SOURCE_BASE_URL", "")

	if cfg.DatabaseURL == "" {
		missingVars = append(missingVars, "DATABASE_URL")
	}
	if cfg.SourceBase == "" {
		missingVars = append(missingVars, "SOURCE_BASE_URL")
	}
	if len(missingVars) > 0 {
		return cfg, fmt.Errorf("missing required environment variables: %s", strings.Join(missingVars, ", "))
	}

	var err error
	cfg.BatchSize, err = strconv.Atoi(getEnv("BATCH_SIZE", "20"))
	if err != nil {
		slog.Warn("Invalid BATCH_SIZE", "value", getEnv("BATCH_SIZE", "20"), "error", err)
		cfg.BatchSize = 20
	}
	cfg.MaxRetries, _ = strconv.Atoi(getEnv("MAX_RETRIES", "3"))
	cfg.SleepInterval, _ = time.ParseDuration(getEnv("SLEEP_INTERVAL", "30s"))
	cfg.ItemDelay, _ = time.ParseDuration(getEnv("ITEM_DELAY", "4s"))
	cfg.JobTimeout, _ = time.ParseDuration(getEnv("JOB_TIMEOUT", "30m"))
	cfg.MetricsAddr = getEnv("METRICS_ADDR", "0.0.0.0:9091")
	cfg.SourceLanguage = getEnv("SOURCE_LANGUAGE", "rus")

	cfg.FetchTimeout, _ = time.ParseDuration(getEnv("FETCH_TIMEOUT", "25s"))
	cfg.NetworkRetries, _ = strconv.Atoi(getEnv("NETWORK_RETRIES", "3"))
	cfg.BlockRetries, _ = strconv.Atoi(getEnv("BLOCK_RETRIES", "8"))
	cfg.BackoffBase, _ = time.ParseDuration(getEnv("BACKOFF_BASE", "2s"))
	cfg.BackoffCap, _ = time.ParseDuration(getEnv("BACKOFF_CAP", "60s"))
	cfg.BlockDelayStep, _ = time.ParseDuration(getEnv("BLOCK_DELAY_STEP", "10s"))
	cfg.ReadDelayMin, _ = time.ParseDuration(getEnv("READ_DELAY_MIN", "800ms"))
	cfg.ReadDelayMax, _ = time.ParseDuration(getEnv("READ_DELAY_MAX", "2500ms"))
	cfg.ProxyURLs = splitNonEmpty(getEnv("PROXY_URLS", ""))
	cfg.ProxiedHosts = splitNonEmpty(getEnv("PROXIED_HOSTS", ""))
	cfg.FingerprintLocale = getEnv("FINGERPRINT_LOCALE", "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7")

	cfg.MinContentLength, _ = strconv.Atoi(getEnv("MIN_CONTENT_LENGTH", "500"))
	cfg.FallbackImageURL = getEnv("FALLBACK_IMAGE_URL", "")

	cfg.LLMEndpoint = getEnv("LLM_ENDPOINT", "https://api.openai.com/v1/chat/completions")
	cfg.LLMModel = getEnv("LLM_MODEL", "gpt-4o-mini")
	cfg.LLMAPIKey = getEnv("LLM_API_KEY", "")
	cfg.PivotLanguage = getEnv("PIVOT_LANGUAGE", "en")
	cfg.TargetLanguages = splitNonEmpty(getEnv("TARGET_LANGUAGES", "en,de,fr,es,it"))
	cfg.ChunkSize, _ = strconv.Atoi(getEnv("TRANSLATION_CHUNK_SIZE", "6000"))
	cfg.LLMRetries, _ = strconv.Atoi(getEnv("LLM_RETRIES", "3"))
	cfg.LLMRetryDelay, _ = time.ParseDuration(getEnv("LLM_RETRY_DELAY", "3s"))
	cfg.SlugAttempts, _ = strconv.Atoi(getEnv("SLUG_ATTEMPTS", "4"))

	cfg.S3Bucket = getEnv("S3_BUCKET", "")
	cfg.S3Region = getEnv("S3_REGION", "")
	cfg.S3PublicBase = getEnv("S3_PUBLIC_BASE", "")
	cfg.ImageConcurrency, _ = strconv.Atoi(getEnv("IMAGE_CONCURRENCY", "4"))

	cfg.LogFile = getEnv("LOG_FILE", "logs/harvester.log")
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")

	cfg.RedisAddr = getEnv("REDIS_ADDR", "")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB, _ = strconv.Atoi(getEnv("REDIS_DB", "0"))
	cfg.MatchCacheKey = getEnv("MATCH_CACHE_KEY", "harvester:category_matches")
	cfg.MatchCacheTTL, _ = time.ParseDuration(getEnv("MATCH_CACHE_TTL", "168h"))

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
