// Package main provides the event-study HTTP service:
// - POST /api/v1/eventstudy runs a study and returns the JSON report
// - GET /api/v1/assets searches the asset reference catalog
// - GET /health, GET /metrics (Prometheus) on a separate metrics listener
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"event-study-lab/internal/catalog"
	"event-study-lab/internal/config"
	"event-study-lab/internal/domain"
	"event-study-lab/internal/marketdata"
	"event-study-lab/internal/observability"
	"event-study-lab/internal/orchestrator"
	"event-study-lab/internal/reporting"
	"event-study-lab/internal/storage"
	chstore "event-study-lab/internal/storage/clickhouse"
	"event-study-lab/internal/storage/memory"
	"event-study-lab/internal/storage/migrations"
	pgstore "event-study-lab/internal/storage/postgres"
	redisstore "event-study-lab/internal/storage/redis"
)

// Server wires the HTTP layer to the analysis components.
type Server struct {
	provider        marketdata.Provider
	catalog         *catalog.Service
	benchmarkTicker string
	defaults        config.AnalysisConfig
	logger          zerolog.Logger
}

func main() {
	_ = godotenv.Load()

	listen := flag.String("listen", envOr("LISTEN_ADDR", ":8080"), "API listen address")
	metricsAddr := flag.String("metrics-addr", envOr("METRICS_ADDR", ":9090"), "Prometheus metrics HTTP address")
	configPath := flag.String("config", os.Getenv("EVENT_STUDY_CONFIG"), "Optional YAML config file")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL DSN for the price-bar cache and catalog")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse DSN for the price-bar cache")
	redisAddr := flag.String("redis-addr", os.Getenv("REDIS_ADDR"), "Redis address for the price-bar cache")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of a database")
	benchmark := flag.String("benchmark", "", "Default benchmark ticker")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	logger := newLogger(*verbose)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, cfg, *postgresDSN, *clickhouseDSN, *redisAddr, *useMemory)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create stores")
	}
	defer cleanup()

	catalogSvc := catalog.NewService(stores.assetStore)
	if err := catalogSvc.Seed(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to seed asset catalog")
	}

	yahoo := marketdata.NewYahooProvider(logger)
	if cfg.MarketData.BaseURL != "" {
		yahoo = yahoo.WithBaseURL(cfg.MarketData.BaseURL)
	}
	var provider marketdata.Provider = yahoo
	if stores.barStore != nil {
		provider = marketdata.NewCachedProvider(yahoo, stores.barStore, logger)
	}

	server := &Server{
		provider:        provider,
		catalog:         catalogSvc,
		benchmarkTicker: firstNonEmpty(*benchmark, cfg.Analysis.BenchmarkTicker),
		defaults:        cfg.Analysis,
		logger:          logger,
	}

	apiSrv := &http.Server{
		Addr:         firstNonEmpty(*listen, cfg.Server.Listen),
		Handler:      server.routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}

	go startMetricsServer(firstNonEmpty(*metricsAddr, cfg.Server.MetricsAddr), logger)

	// Handle shutdown signals; a second signal forces immediate exit.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("Initiating graceful shutdown")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		go func() {
			sig := <-sigCh
			logger.Error().Str("signal", sig.String()).Msg("Forcing immediate shutdown")
			os.Exit(1)
		}()

		if err := apiSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Graceful shutdown failed")
		}
		cancel()
	}()

	logger.Info().Str("addr", apiSrv.Addr).Msg("Starting API server")
	if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("API server error")
	}

	logger.Info().Msg("Shutdown complete")
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// allStores holds the storage implementations the server depends on.
// barStore is nil when no price-bar cache is configured.
type allStores struct {
	barStore   storage.BarStore
	assetStore storage.AssetStore
}

// createStores selects storage per flags and config. Postgres hosts both
// the bar cache and the asset catalog; ClickHouse and Redis host only the
// bar cache, with the catalog falling back to memory.
func createStores(
	ctx context.Context,
	cfg *config.Config,
	postgresDSN, clickhouseDSN, redisAddr string,
	useMemory bool,
) (*allStores, func(), error) {
	postgresDSN = firstNonEmpty(postgresDSN, cfg.Storage.PostgresDSN)
	clickhouseDSN = firstNonEmpty(clickhouseDSN, cfg.Storage.ClickhouseDSN)
	redisAddr = firstNonEmpty(redisAddr, cfg.Storage.RedisAddr)

	if useMemory || (postgresDSN == "" && clickhouseDSN == "" && redisAddr == "") {
		stores := &allStores{
			barStore:   memory.NewBarStore(),
			assetStore: memory.NewAssetStore(),
		}
		return stores, func() {}, nil
	}

	stores := &allStores{assetStore: memory.NewAssetStore()}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		cleanups = append(cleanups, pool.Close)

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
		}
		stores.barStore = pgstore.NewBarStore(pool)
		stores.assetStore = pgstore.NewAssetStore(pool)
	}

	if clickhouseDSN != "" && stores.barStore == nil {
		conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
		}
		cleanups = append(cleanups, func() { _ = conn.Close() })
		stores.barStore = chstore.NewBarStore(conn)
	}

	if redisAddr != "" && stores.barStore == nil {
		client, err := redisstore.NewClient(ctx, redisAddr, os.Getenv("REDIS_PASSWORD"), 0)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		cleanups = append(cleanups, func() { _ = client.Close() })

		ttl := cfg.Storage.RedisTTL
		if ttl <= 0 {
			ttl = redisstore.DefaultTTL
		}
		stores.barStore = redisstore.NewBarStoreWithTTL(client, ttl)
	}

	return stores, cleanup, nil
}

// startMetricsServer serves /health and /metrics on a dedicated listener.
func startMetricsServer(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())

	logger.Info().Str("addr", addr).Msg("Starting metrics server")
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("Metrics server error")
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/v1/eventstudy", s.handleEventStudy)
	mux.HandleFunc("/api/v1/assets", s.handleAssetSearch)
	return mux
}

// StudyRequest is the JSON body of POST /api/v1/eventstudy.
type StudyRequest struct {
	EventDate            string         `json:"event_date"` // YYYY-MM-DD
	EventName            string         `json:"event_name"`
	Assets               []AssetRequest `json:"assets"`
	EstimationWindowDays int            `json:"estimation_window_days,omitempty"`
	EventWindowDays      int            `json:"event_window_days,omitempty"`
	Benchmark            string         `json:"benchmark,omitempty"`
}

// AssetRequest is one requested asset. Label defaults to the ticker.
type AssetRequest struct {
	Label  string `json:"label,omitempty"`
	Ticker string `json:"ticker"`
}

// StudyResponse is the JSON report returned to the caller.
type StudyResponse struct {
	GeneratedAt          time.Time            `json:"generated_at"`
	EventName            string               `json:"event_name"`
	EventDate            string               `json:"event_date"`
	EstimationWindowDays int                  `json:"estimation_window_days"`
	EventWindowDays      int                  `json:"event_window_days"`
	Benchmark            string               `json:"benchmark"`
	Assets               []AssetResult        `json:"assets"`
	Correlation          *CorrelationResult   `json:"correlation,omitempty"`
	Skipped              []SkippedAssetResult `json:"skipped,omitempty"`
}

// AssetResult is one asset's model fit and abnormal-return outcome.
type AssetResult struct {
	Label        string  `json:"label"`
	Ticker       string  `json:"ticker"`
	Alpha        float64 `json:"alpha"`
	Beta         float64 `json:"beta"`
	RSquared     float64 `json:"r_squared"`
	SlopePValue  float64 `json:"slope_p_value"`
	Observations int     `json:"observations"`
	ShortWindow  bool    `json:"short_window,omitempty"`

	MeanAR       float64 `json:"mean_abnormal_return"`
	TotalCAR     float64 `json:"total_car"`
	TStatistic   float64 `json:"t_statistic"`
	PValue       float64 `json:"p_value"`
	Significant  bool    `json:"significant"`
	PositiveDays int     `json:"positive_days"`
	NegativeDays int     `json:"negative_days"`
	EventDayAR   float64 `json:"event_day_abnormal_return"`

	VolumeSpikeRatio    *float64 `json:"volume_spike_ratio,omitempty"`
	ClusteringAutocorr  *float64 `json:"clustering_autocorrelation,omitempty"`
	VolatilityClustered bool     `json:"volatility_clustered,omitempty"`

	Window []WindowDay `json:"window"`
}

// WindowDay is one event-window day.
type WindowDay struct {
	Date           string  `json:"date"`
	AssetReturn    float64 `json:"asset_return"`
	MarketReturn   float64 `json:"market_return"`
	ExpectedReturn float64 `json:"expected_return"`
	AbnormalReturn float64 `json:"abnormal_return"`
	CumulativeAR   float64 `json:"cumulative_ar"`
	VolatilityPct  float64 `json:"volatility_pct"`
}

// CorrelationResult is the cross-asset return correlation matrix.
type CorrelationResult struct {
	Labels       []string    `json:"labels"`
	Values       [][]float64 `json:"values"`
	Observations int         `json:"observations"`
}

// SkippedAssetResult records one omitted asset.
type SkippedAssetResult struct {
	Label  string `json:"label"`
	Ticker string `json:"ticker"`
	Reason string `json:"reason"`
}

func (s *Server) handleEventStudy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req StudyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	eventDate, err := time.Parse("2006-01-02", req.EventDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "event_date must be YYYY-MM-DD")
		return
	}
	if len(req.Assets) == 0 {
		writeError(w, http.StatusBadRequest, "assets must not be empty")
		return
	}

	assets := make([]domain.Asset, 0, len(req.Assets))
	for _, a := range req.Assets {
		if a.Ticker == "" {
			writeError(w, http.StatusBadRequest, "asset ticker must not be empty")
			return
		}
		label := a.Label
		if label == "" {
			label = a.Ticker
		}
		assets = append(assets, domain.Asset{Label: label, Ticker: a.Ticker})
	}

	benchmark := firstNonEmpty(req.Benchmark, s.benchmarkTicker)
	estDays := req.EstimationWindowDays
	if estDays == 0 {
		estDays = s.defaults.EstimationWindowDays
	}
	evtDays := req.EventWindowDays
	if evtDays == 0 {
		evtDays = s.defaults.EventWindowDays
	}

	orch := orchestrator.New(orchestrator.Options{
		Provider:        s.provider,
		BenchmarkTicker: benchmark,
		Logger:          s.logger,
	})

	result, err := orch.Run(r.Context(), orchestrator.Request{
		EventDate:            eventDate,
		EventName:            req.EventName,
		Assets:               assets,
		EstimationWindowDays: estDays,
		EventWindowDays:      evtDays,
	})
	if err != nil {
		if errors.Is(err, orchestrator.ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error().Err(err).Msg("Event study failed")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	report := reporting.NewGenerator().Build(reporting.RunInfo{
		EventName:            req.EventName,
		EventDate:            eventDate,
		EstimationWindowDays: estDays,
		EventWindowDays:      evtDays,
		BenchmarkTicker:      benchmark,
	}, result)

	writeJSON(w, http.StatusOK, toStudyResponse(report))
}

func (s *Server) handleAssetSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}

	results, err := s.catalog.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.logger.Error().Err(err).Msg("Catalog search failed")
		writeError(w, http.StatusInternalServerError, "catalog search failed")
		return
	}

	type entry struct {
		Symbol string `json:"symbol"`
		Name   string `json:"name"`
		Class  string `json:"class"`
	}
	out := make([]entry, 0, len(results))
	for _, a := range results {
		out = append(out, entry{Symbol: a.Symbol, Name: a.Name, Class: string(a.Class)})
	}
	writeJSON(w, http.StatusOK, out)
}

func toStudyResponse(r *reporting.Report) StudyResponse {
	resp := StudyResponse{
		GeneratedAt:          r.GeneratedAt,
		EventName:            r.EventName,
		EventDate:            r.EventDate.Format("2006-01-02"),
		EstimationWindowDays: r.EstimationWindowDays,
		EventWindowDays:      r.EventWindowDays,
		Benchmark:            r.BenchmarkTicker,
		Assets:               make([]AssetResult, 0, len(r.Assets)),
	}

	for _, a := range r.Assets {
		row := AssetResult{
			Label:               a.Label,
			Ticker:              a.Ticker,
			Alpha:               a.Alpha,
			Beta:                a.Beta,
			RSquared:            a.RSquared,
			SlopePValue:         a.SlopePValue,
			Observations:        a.Observations,
			ShortWindow:         a.ShortWindow,
			MeanAR:              a.MeanAR,
			TotalCAR:            a.TotalCAR,
			TStatistic:          a.TStatistic,
			PValue:              a.PValue,
			Significant:         a.Significant,
			PositiveDays:        a.PositiveDays,
			NegativeDays:        a.NegativeDays,
			EventDayAR:          a.EventDayAR,
			VolumeSpikeRatio:    a.VolumeSpikeRatio,
			ClusteringAutocorr:  a.ClusteringAutocorr,
			VolatilityClustered: a.VolatilityClustered,
			Window:              make([]WindowDay, 0, len(a.Window)),
		}
		for _, d := range a.Window {
			row.Window = append(row.Window, WindowDay{
				Date:           d.Date.Format("2006-01-02"),
				AssetReturn:    d.AssetReturn,
				MarketReturn:   d.MarketReturn,
				ExpectedReturn: d.ExpectedReturn,
				AbnormalReturn: d.AbnormalReturn,
				CumulativeAR:   d.CumulativeAR,
				VolatilityPct:  d.VolatilityPct,
			})
		}
		resp.Assets = append(resp.Assets, row)
	}

	if r.Correlation != nil {
		resp.Correlation = &CorrelationResult{
			Labels:       r.Correlation.Labels,
			Values:       r.Correlation.Values,
			Observations: r.Correlation.Observations,
		}
	}
	for _, sk := range r.Skipped {
		resp.Skipped = append(resp.Skipped, SkippedAssetResult{
			Label:  sk.Label,
			Ticker: sk.Ticker,
			Reason: sk.Reason,
		})
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
