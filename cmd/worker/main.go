package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"harvester/packages/category"
	"harvester/packages/config"
	"harvester/packages/db"
	"harvester/packages/extractor"
	"harvester/packages/fetcher"
	"harvester/packages/llm"
	"harvester/packages/media"
	"harvester/packages/metrics"
	"harvester/packages/translate"
	"harvester/packages/worker"

	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"
)

func setupLogger(cfg config.Config, service string) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logDir := filepath.Dir(cfg.LogFile)
	if err := os.MkdirAll(logDir, 0750); err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error(
			"Failed to create log directory", "path", logDir, "error", err,
		)
	}

	logRotator := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    5,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	}

	multiWriter := io.MultiWriter(os.Stdout, logRotator)

	handler := slog.NewJSONHandler(multiWriter, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().Format(time.RFC3339Nano))
			}
			return a
		},
	}).WithAttrs([]slog.Attr{slog.String("service", service)})

	slog.SetDefault(slog.New(handler))
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("FATAL: Failed to load configuration", "error", err)
		os.Exit(1)
	}
	setupLogger(cfg, "harvester-worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("--- Starting Harvester Worker ---")

	go metrics.ExposeMetrics(cfg.MetricsAddr)

	storage, err := db.New(ctx, cfg.DatabaseURL, db.Config{
		JobTimeout:    cfg.JobTimeout,
		MaxRetries:    cfg.MaxRetries,
		SlugAttempts:  cfg.SlugAttempts,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	})
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer storage.Close()

	pageFetcher := fetcher.New(fetcher.Config{
		FetchTimeout:   cfg.FetchTimeout,
		NetworkRetries: cfg.NetworkRetries,
		BlockRetries:   cfg.BlockRetries,
		BackoffBase:    cfg.BackoffBase,
		BackoffCap:     cfg.BackoffCap,
		BlockDelayStep: cfg.BlockDelayStep,
		ReadDelayMin:   cfg.ReadDelayMin,
		ReadDelayMax:   cfg.ReadDelayMax,
		ProxyURLs:      cfg.ProxyURLs,
		ProxiedHosts:   cfg.ProxiedHosts,
		AcceptLanguage: cfg.FingerprintLocale,
	})

	llmClient := llm.New(llm.Config{
		Endpoint:   cfg.LLMEndpoint,
		Model:      cfg.LLMModel,
		APIKey:     cfg.LLMAPIKey,
		Retries:    cfg.LLMRetries,
		RetryDelay: cfg.LLMRetryDelay,
	})
	if !llmClient.Configured() {
		slog.Warn("LLM_API_KEY not set: AI extraction fallback and semantic category matching are disabled, translations will use deterministic fallbacks")
	}

	var matcher category.SemanticMatcher
	if m := category.NewAIMatcher(llmClient); m != nil {
		matcher = m
	}
	var fallbackClient extractor.Completer
	if llmClient.Configured() {
		fallbackClient = llmClient
	}
	matchCache := category.NewMatchCache(storage.Redis, cfg.MatchCacheKey, cfg.MatchCacheTTL)

	mediaStore, err := media.NewStore(ctx, pageFetcher, nil, media.Config{
		Bucket:      cfg.S3Bucket,
		Region:      cfg.S3Region,
		PublicBase:  cfg.S3PublicBase,
		Concurrency: cfg.ImageConcurrency,
	})
	if err != nil {
		slog.Error("Failed to initialize media store", "error", err)
		os.Exit(1)
	}
	if !mediaStore.Enabled() {
		slog.Warn("S3_BUCKET not set: source image URLs will be stored as-is")
	}

	appWorker := worker.New(cfg, worker.Deps{
		Storage:    storage,
		Fetcher:    pageFetcher,
		Extractor:  extractor.New(extractor.DefaultSelectors),
		Fallback:   extractor.NewFallback(fallbackClient),
		Translator: translate.New(llmClient, cfg.PivotLanguage, cfg.ChunkSize),
		Media:      mediaStore,
		Matcher:    matcher,
		MatchCache: matchCache,
	})

	ticker := time.NewTicker(cfg.SleepInterval)
	defer ticker.Stop()

	// Immediate first pass, then the ticker cadence.
	appWorker.ProcessBatch(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Shutdown signal received. Exiting...")
			return
		case <-ticker.C:
			appWorker.ProcessBatch(ctx)
		}
	}
}
