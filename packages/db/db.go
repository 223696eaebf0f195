// Package db
package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Storage struct {
	DB    *pgxpool.Pool
	Redis *redis.Client
	cfg   Config
}

type Config struct {
	JobTimeout    time.Duration
	MaxRetries    int
	SlugAttempts  int
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func New(ctx context.Context, databaseURL string, cfg Config) (*Storage, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	s := &Storage{DB: pool, cfg: cfg}

	if cfg.RedisAddr != "" {
		s.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := s.Redis.Ping(ctx).Err(); err != nil {
			slog.Warn("Redis unreachable, match cache will be in-process only", "addr", cfg.RedisAddr, "error", err)
			s.Redis = nil
		}
	}

	return s, nil
}

func (s *Storage) Close() {
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	s.DB.Close()
}

func (s *Storage) WithTransaction(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = fn(tx)
	return err
}
