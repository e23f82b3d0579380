// Package main runs a one-shot event study and writes the report files:
// REPORT.md, summary.csv and a per-asset event-window CSV.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"event-study-lab/internal/config"
	"event-study-lab/internal/domain"
	"event-study-lab/internal/marketdata"
	"event-study-lab/internal/orchestrator"
	"event-study-lab/internal/reporting"
	"event-study-lab/internal/storage"
	chstore "event-study-lab/internal/storage/clickhouse"
	"event-study-lab/internal/storage/memory"
	"event-study-lab/internal/storage/migrations"
	pgstore "event-study-lab/internal/storage/postgres"
	redisstore "event-study-lab/internal/storage/redis"
)

func main() {
	_ = godotenv.Load()

	eventDateStr := flag.String("event-date", "", "Event date in YYYY-MM-DD (required)")
	eventName := flag.String("event-name", "Market Event", "Human-readable event name for the report")
	assetsStr := flag.String("assets", "", "Semicolon-separated assets, Label=TICKER or bare tickers (required)")
	estimationWindow := flag.Int("estimation-window", 0, "Estimation window in calendar days (default from config, 252)")
	eventWindow := flag.Int("event-window", 0, "Event half-window in calendar days (default from config, 7)")
	benchmark := flag.String("benchmark", "", "Benchmark ticker (default from config, ^GSPC)")
	outputDir := flag.String("output-dir", "output", "Output directory for report files")
	configPath := flag.String("config", os.Getenv("EVENT_STUDY_CONFIG"), "Optional YAML config file")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL DSN for the optional price-bar cache")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse DSN for the optional price-bar cache")
	redisAddr := flag.String("redis-addr", os.Getenv("REDIS_ADDR"), "Redis address for the optional price-bar cache")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	logger := newLogger(*verbose)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load config")
	}

	if *eventDateStr == "" {
		logger.Fatal().Msg("--event-date is required (YYYY-MM-DD)")
	}
	eventDate, err := time.Parse("2006-01-02", *eventDateStr)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid --event-date")
	}

	assets, err := parseAssets(*assetsStr)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid --assets")
	}

	benchmarkTicker := firstNonEmpty(*benchmark, cfg.Analysis.BenchmarkTicker)
	estDays := firstNonZero(*estimationWindow, cfg.Analysis.EstimationWindowDays)
	evtDays := firstNonZero(*eventWindow, cfg.Analysis.EventWindowDays)

	ctx := context.Background()

	provider, cleanup, err := createProvider(ctx, cfg, *postgresDSN, *clickhouseDSN, *redisAddr, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to set up price provider")
	}
	defer cleanup()

	orch := orchestrator.New(orchestrator.Options{
		Provider:        provider,
		BenchmarkTicker: benchmarkTicker,
		Logger:          logger,
	})

	result, err := orch.Run(ctx, orchestrator.Request{
		EventDate:            eventDate,
		EventName:            *eventName,
		Assets:               assets,
		EstimationWindowDays: estDays,
		EventWindowDays:      evtDays,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Event study failed")
	}

	for _, skip := range result.Skipped {
		logger.Warn().
			Str("label", skip.Label).
			Str("ticker", skip.Ticker).
			Str("reason", skip.Reason).
			Msg("Asset skipped")
	}

	report := reporting.NewGenerator().Build(reporting.RunInfo{
		EventName:            *eventName,
		EventDate:            eventDate,
		EstimationWindowDays: estDays,
		EventWindowDays:      evtDays,
		BenchmarkTicker:      benchmarkTicker,
	}, result)

	if err := writeReportFiles(*outputDir, report); err != nil {
		logger.Fatal().Err(err).Msg("Failed to write report files")
	}

	logger.Info().
		Int("analyzed", len(result.Order)).
		Int("skipped", len(result.Skipped)).
		Str("output_dir", *outputDir).
		Msg("Event study complete")
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// parseAssets parses "Label=TICKER;Label2=TICKER2" entries. A bare ticker
// becomes its own label.
func parseAssets(s string) ([]domain.Asset, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("--assets is required")
	}

	var assets []domain.Asset
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		label, ticker := part, part
		if idx := strings.Index(part, "="); idx >= 0 {
			label = strings.TrimSpace(part[:idx])
			ticker = strings.TrimSpace(part[idx+1:])
		}
		if label == "" || ticker == "" {
			return nil, fmt.Errorf("malformed asset entry %q", part)
		}
		if seen[label] {
			return nil, fmt.Errorf("duplicate asset label %q", label)
		}
		seen[label] = true

		assets = append(assets, domain.Asset{Label: label, Ticker: ticker})
	}

	if len(assets) == 0 {
		return nil, fmt.Errorf("no assets parsed from %q", s)
	}
	return assets, nil
}

// createProvider builds the Yahoo provider, optionally wrapped with a
// cache when a storage backend is configured. Flags override the config
// file; the first configured backend wins in the order postgres,
// clickhouse, redis.
func createProvider(
	ctx context.Context,
	cfg *config.Config,
	postgresDSN, clickhouseDSN, redisAddr string,
	logger zerolog.Logger,
) (marketdata.Provider, func(), error) {
	yahoo := marketdata.NewYahooProvider(logger)
	if cfg.MarketData.BaseURL != "" {
		yahoo = yahoo.WithBaseURL(cfg.MarketData.BaseURL)
	}

	store, cleanup, err := createBarStore(ctx, cfg, postgresDSN, clickhouseDSN, redisAddr)
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		return yahoo, func() {}, nil
	}
	return marketdata.NewCachedProvider(yahoo, store, logger), cleanup, nil
}

// createBarStore returns nil without error when no cache is configured.
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

	case cfg.Storage.Backend == "memory":
		// In-memory cache only helps within a single process; for a
		// one-shot run it still deduplicates overlapping fetch ranges.
		return memory.NewBarStore(), func() {}, nil
	}

	return nil, func() {}, nil
}

// writeReportFiles renders REPORT.md, summary.csv and per-asset window CSVs.
func writeReportFiles(dir string, report *reporting.Report) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	md := reporting.RenderMarkdown(report)
	if err := os.WriteFile(filepath.Join(dir, "REPORT.md"), []byte(md), 0644); err != nil {
		return fmt.Errorf("write REPORT.md: %w", err)
	}

	summary := reporting.RenderSummaryCSV(report)
	if err := os.WriteFile(filepath.Join(dir, "summary.csv"), []byte(summary), 0644); err != nil {
		return fmt.Errorf("write summary.csv: %w", err)
	}

	for _, row := range report.Assets {
		name := fmt.Sprintf("window_%s.csv", sanitizeFilename(row.Ticker))
		body := reporting.RenderWindowCSV(row)
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

// sanitizeFilename keeps tickers like ^GSPC or EURUSD=X filesystem-safe.
func sanitizeFilename(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
