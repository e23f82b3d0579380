// Package main prefetches daily price history into the configured bar
// cache so later study runs avoid hitting the external provider. It can
// also prune stale rows with -prune-before.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"event-study-lab/internal/config"
	"event-study-lab/internal/marketdata"
	"event-study-lab/internal/storage"
	chstore "event-study-lab/internal/storage/clickhouse"
	"event-study-lab/internal/storage/migrations"
	pgstore "event-study-lab/internal/storage/postgres"
	redisstore "event-study-lab/internal/storage/redis"
)

func main() {
	_ = godotenv.Load()

	tickersStr := flag.String("tickers", "", "Comma-separated tickers to prefetch (required)")
	days := flag.Int("days", 365, "How many calendar days of history to prefetch")
	pruneBefore := flag.String("prune-before", "", "Delete cached bars older than this date (YYYY-MM-DD)")
	configPath := flag.String("config", os.Getenv("EVENT_STUDY_CONFIG"), "Optional YAML config file")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL DSN for the price-bar cache")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse DSN for the price-bar cache")
	redisAddr := flag.String("redis-addr", os.Getenv("REDIS_ADDR"), "Redis address for the price-bar cache")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load config")
	}

	tickers := splitTickers(*tickersStr)
	if len(tickers) == 0 && *pruneBefore == "" {
		logger.Fatal().Msg("--tickers is required (or --prune-before)")
	}
	if *days <= 0 {
		logger.Fatal().Msg("--days must be positive")
	}

	ctx := context.Background()

	store, cleanup, err := createBarStore(ctx, cfg, *postgresDSN, *clickhouseDSN, *redisAddr)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create bar store")
	}
	if store == nil {
		logger.Fatal().Msg("No bar cache configured; set --postgres-dsn, --clickhouse-dsn or --redis-addr")
	}
	defer cleanup()

	if *pruneBefore != "" {
		cutoff, err := time.Parse("2006-01-02", *pruneBefore)
		if err != nil {
			logger.Fatal().Err(err).Msg("Invalid --prune-before")
		}
		pruned := int64(0)
		for _, ticker := range tickers {
			n, err := store.DeleteBefore(ctx, ticker, cutoff)
			if err != nil {
				logger.Error().Err(err).Str("ticker", ticker).Msg("Prune failed")
				continue
			}
			pruned += n
		}
		logger.Info().Int64("rows", pruned).Time("cutoff", cutoff).Msg("Prune complete")
		if len(tickers) == 0 {
			return
		}
	}

	yahoo := marketdata.NewYahooProvider(logger)
	if cfg.MarketData.BaseURL != "" {
		yahoo = yahoo.WithBaseURL(cfg.MarketData.BaseURL)
	}

	// The cached provider persists whatever the upstream returns, so a
	// plain fetch through it doubles as ingestion.
	provider := marketdata.NewCachedProvider(yahoo, store, logger)

	end := time.Now()
	start := end.AddDate(0, 0, -*days)

	failed := 0
	for _, ticker := range tickers {
		bars, err := provider.Fetch(ctx, ticker, start, end)
		if err != nil {
			failed++
			if errors.Is(err, marketdata.ErrDataUnavailable) {
				logger.Warn().Str("ticker", ticker).Msg("No data available")
			} else {
				logger.Error().Err(err).Str("ticker", ticker).Msg("Fetch failed")
			}
			continue
		}
		logger.Info().Str("ticker", ticker).Int("bars", len(bars)).Msg("Prefetched")
	}

	logger.Info().
		Int("tickers", len(tickers)).
		Int("failed", failed).
		Msg("Ingestion complete")
	if failed == len(tickers) && len(tickers) > 0 {
		os.Exit(1)
	}
}

func splitTickers(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// createBarStore returns nil without error when nothing is configured.
func createBarStore(
	ctx context.Context,
	cfg *config.Config,
	postgresDSN, clickhouseDSN, redisAddr string,
) (storage.BarStore, func(), error) {
	postgresDSN = firstNonEmpty(postgresDSN, cfg.Storage.PostgresDSN)
	clickhouseDSN = firstNonEmpty(clickhouseDSN, cfg.Storage.ClickhouseDSN)
	redisAddr = firstNonEmpty(redisAddr, cfg.Storage.RedisAddr)

	switch {
	case postgresDSN != "":
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
		}
		return pgstore.NewBarStore(pool), pool.Close, nil

	case clickhouseDSN != "":
		conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
		}
		return chstore.NewBarStore(conn), func() { _ = conn.Close() }, nil

	case redisAddr != "":
		client, err := redisstore.NewClient(ctx, redisAddr, os.Getenv("REDIS_PASSWORD"), 0)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		ttl := cfg.Storage.RedisTTL
		if ttl <= 0 {
			ttl = redisstore.DefaultTTL
		}
		return redisstore.NewBarStoreWithTTL(client, ttl), func() { _ = client.Close() }, nil
	}

	return nil, func() {}, nil
}
