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

	"harvester/packages/config"
	"harvester/packages/db"
	"harvester/packages/metrics"

	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"
)

func setupLogger(cfg config.Config) {
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

	handler := slog.NewJSONHandler(io.MultiWriter(os.Stdout, logRotator), &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().Format(time.RFC3339Nano))
			}
			return a
		},
	}).WithAttrs([]slog.Attr{slog.String("service", "harvester-reaper")})

	slog.SetDefault(slog.New(handler))
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("FATAL: Failed to load configuration", "error", err)
		os.Exit(1)
	}
	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("--- Starting Harvester Reaper ---")

	go metrics.ExposeMetrics("0.0.0.0:9093")

	storage, err := db.New(ctx, cfg.DatabaseURL, db.Config{
		JobTimeout:   cfg.JobTimeout,
		MaxRetries:   cfg.MaxRetries,
		SlugAttempts: cfg.SlugAttempts,
	})
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer storage.Close()

	countTicker := time.NewTicker(10 * time.Second)
	defer countTicker.Stop()

	stalledTicker := time.NewTicker(15 * time.Minute)
	defer stalledTicker.Stop()

	slog.Info("Reaper tasks scheduled",
		"count_refresh", "10s",
		"stalled_item_reset", "15m",
	)

	if _, err := storage.ResetStalled(ctx); err != nil {
		slog.Error("Stalled item reset failed on startup", "error", err)
	}
	_ = storage.RefreshCounts(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Shutdown signal received. Exiting...")
			return
		case <-countTicker.C:
			if err := storage.RefreshCounts(ctx); err != nil {
				slog.Error("Failed to refresh ledger counts", "error", err)
			}
		case <-stalledTicker.C:
			reset, err := storage.ResetStalled(ctx)
			if err != nil {
				slog.Error("Failed to reset stalled items", "error", err)
			} else if reset > 0 {
				slog.Info("Reset stalled items back to new", "count", reset)
			}
		}
	}
}
