// Package orchestrator runs the full event study.
// It coordinates: fetch → return series → estimation → event window → stats
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"event-study-lab/internal/domain"
	"event-study-lab/internal/estimation"
	"event-study-lab/internal/eventwindow"
	"event-study-lab/internal/marketdata"
	"event-study-lab/internal/observability"
	"event-study-lab/internal/returns"
	"event-study-lab/internal/stats"
)

// ErrInvalidRequest signals out-of-range window parameters or a missing
// event date.
var ErrInvalidRequest = errors.New("invalid event study request")

const (
	// DefaultBenchmarkTicker is the market proxy used when none is set.
	DefaultBenchmarkTicker = "^GSPC"

	// DefaultEstimationWindowDays is the nominal estimation span.
	DefaultEstimationWindowDays = 252

	// DefaultEventWindowDays is the event half-window in calendar days.
	DefaultEventWindowDays = 11

	MinEstimationWindowDays = 60
	MaxEstimationWindowDays = 500
	MinEventWindowDays      = 1
	MaxEventWindowDays      = 21

	// fetchSafetyMarginDays pads the fetch range ahead of the
	// estimation window to absorb non-trading days.
	fetchSafetyMarginDays = 50

	// clusteringMinObservations is the smallest event window for which
	// the volatility clustering diagnostic is reported.
	clusteringMinObservations = 6

	// clusteringThreshold marks lag-1 autocorrelation of squared
	// abnormal returns as clustered.
	clusteringThreshold = 0.3

	// correlationMinAssets and correlationMinObservations gate the
	// cross-asset correlation matrix.
	correlationMinAssets       = 2
	correlationMinObservations = 10
)

// Orchestrator coordinates a full event study run.
type Orchestrator struct {
	provider        marketdata.Provider
	estimator       *estimation.Estimator
	calculator      *eventwindow.Calculator
	benchmarkTicker string
	now             func() time.Time
	logger          zerolog.Logger
}

// Options for creating Orchestrator.
type Options struct {
	// Required price history source
	Provider marketdata.Provider

	// BenchmarkTicker overrides the default market proxy.
	BenchmarkTicker string

	// Now overrides the clock used for the fetch range end. Tests set
	// this for deterministic ranges.
	Now func() time.Time

	Logger zerolog.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	benchmark := opts.BenchmarkTicker
	if benchmark == "" {
		benchmark = DefaultBenchmarkTicker
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger.With().Str("component", "orchestrator").Logger()

	return &Orchestrator{
		provider:        opts.Provider,
		estimator:       estimation.NewEstimator(opts.Logger),
		calculator:      eventwindow.NewCalculator(opts.Logger),
		benchmarkTicker: benchmark,
		now:             now,
		logger:          logger,
	}
}

// Request describes one event study.
type Request struct {
	EventDate time.Time
	EventName string

	// Assets are analyzed in order; labels must be unique.
	Assets []domain.Asset

	// EstimationWindowDays is the nominal estimation span in calendar
	// days, within [60, 500]. Zero selects the default of 252.
	EstimationWindowDays int

	// EventWindowDays is the event half-window in calendar days,
	// within [1, 21]. Zero selects the default of 11.
	EventWindowDays int
}

// SkippedAsset records an asset omitted from the results and why.
type SkippedAsset struct {
	Label  string
	Ticker string
	Reason string
}

// RunResult contains results from one event study run.
type RunResult struct {
	// Results maps asset label to its analysis; failed assets are
	// absent. Order preserves the request order of analyzed labels.
	Results map[string]domain.AssetAnalysisResult
	Order   []string

	Benchmark   domain.ReturnSeries
	Correlation *CorrelationMatrix // nil when unavailable
	Skipped     []SkippedAsset
}

// CorrelationMatrix holds pairwise Pearson correlations of asset returns
// over their shared trading dates.
type CorrelationMatrix struct {
	Labels       []string
	Values       [][]float64
	Observations int
}

// Run executes the event study.
// Phases:
//  1. Validate the request
//  2. Fetch and build the benchmark series (fatal on failure)
//  3. Per asset: fetch → returns → estimation → event window
//  4. Cross-asset correlation matrix
//
// A single asset's failure never aborts the batch; only a benchmark
// failure is fatal.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*RunResult, error) {
	started := o.now()

	estimationDays, eventDays, err := o.normalizeWindows(req)
	if err != nil {
		observability.RecordRun("invalid", 0)
		return nil, err
	}

	eventDay := domain.Day(req.EventDate)
	fetchStart := eventDay.AddDate(0, 0, -(estimationDays + eventDays + fetchSafetyMarginDays))
	fetchEnd := domain.Day(o.now())

	o.logger.Info().
		Str("event", req.EventName).
		Time("event_date", eventDay).
		Int("assets", len(req.Assets)).
		Int("estimation_window_days", estimationDays).
		Int("event_window_days", eventDays).
		Msg("starting event study run")

	benchmark, err := o.buildSeries(ctx, o.benchmarkTicker, fetchStart, fetchEnd)
	if err != nil {
		observability.RecordRun("benchmark_failed", o.now().Sub(started).Seconds())
		return nil, fmt.Errorf("benchmark %s: %w", o.benchmarkTicker, err)
	}

	result := &RunResult{
		Results:   make(map[string]domain.AssetAnalysisResult, len(req.Assets)),
		Benchmark: benchmark,
	}

	estimationEnd := eventDay.AddDate(0, 0, -eventDays)
	estimationStart := estimationEnd.AddDate(0, 0, -estimationDays)

	seriesByLabel := make(map[string]domain.ReturnSeries, len(req.Assets))

	for _, asset := range req.Assets {
		analysis, series, err := o.analyzeAsset(ctx, asset, benchmark, analysisWindow{
			fetchStart:      fetchStart,
			fetchEnd:        fetchEnd,
			estimationStart: estimationStart,
			estimationEnd:   estimationEnd,
			eventDay:        eventDay,
			eventDays:       eventDays,
		})
		if err != nil {
			reason := skipReason(err)
			result.Skipped = append(result.Skipped, SkippedAsset{
				Label:  asset.Label,
				Ticker: asset.Ticker,
				Reason: reason,
			})
			observability.RecordAssetSkipped(reason)
			o.logger.Warn().
				Str("label", asset.Label).
				Str("ticker", asset.Ticker).
				Err(err).
				Msg("asset skipped")
			continue
		}

		result.Results[asset.Label] = analysis
		result.Order = append(result.Order, asset.Label)
		seriesByLabel[asset.Label] = series
		observability.RecordAssetAnalyzed()
	}

	result.Correlation = correlationMatrix(result.Order, seriesByLabel)

	observability.RecordRun("ok", o.now().Sub(started).Seconds())
	o.logger.Info().
		Int("analyzed", len(result.Order)).
		Int("skipped", len(result.Skipped)).
		Msg("event study run completed")

	return result, nil
}

func (o *Orchestrator) normalizeWindows(req Request) (estimationDays, eventDays int, err error) {
	if req.EventDate.IsZero() {
		return 0, 0, fmt.Errorf("event date is required: %w", ErrInvalidRequest)
	}
	if len(req.Assets) == 0 {
		return 0, 0, fmt.Errorf("at least one asset is required: %w", ErrInvalidRequest)
	}

	estimationDays = req.EstimationWindowDays
	if estimationDays == 0 {
		estimationDays = DefaultEstimationWindowDays
	}
	if estimationDays < MinEstimationWindowDays || estimationDays > MaxEstimationWindowDays {
		return 0, 0, fmt.Errorf("estimation window %d outside [%d, %d]: %w",
			estimationDays, MinEstimationWindowDays, MaxEstimationWindowDays, ErrInvalidRequest)
	}

	eventDays = req.EventWindowDays
	if eventDays == 0 {
		eventDays = DefaultEventWindowDays
	}
	if eventDays < MinEventWindowDays || eventDays > MaxEventWindowDays {
		return 0, 0, fmt.Errorf("event window %d outside [%d, %d]: %w",
			eventDays, MinEventWindowDays, MaxEventWindowDays, ErrInvalidRequest)
	}

	return estimationDays, eventDays, nil
}

type analysisWindow struct {
	fetchStart, fetchEnd           time.Time
	estimationStart, estimationEnd time.Time
	eventDay                       time.Time
	eventDays                      int
}

func (o *Orchestrator) analyzeAsset(
	ctx context.Context,
	asset domain.Asset,
	benchmark domain.ReturnSeries,
	w analysisWindow,
) (domain.AssetAnalysisResult, domain.ReturnSeries, error) {
	series, err := o.buildSeries(ctx, asset.Ticker, w.fetchStart, w.fetchEnd)
	if err != nil {
		return domain.AssetAnalysisResult{}, domain.ReturnSeries{}, err
	}

	assetEst := domain.ReturnSeries{Ticker: series.Ticker, Points: series.Slice(w.estimationStart, w.estimationEnd)}
	marketEst := domain.ReturnSeries{Ticker: benchmark.Ticker, Points: benchmark.Slice(w.estimationStart, w.estimationEnd)}

	model, err := o.estimator.Fit(assetEst, marketEst)
	if err != nil {
		observability.RecordEstimation("failed")
		return domain.AssetAnalysisResult{}, domain.ReturnSeries{}, err
	}
	observability.RecordEstimation("ok")

	window, statistics, err := o.calculator.Compute(series, benchmark, model, w.eventDay, w.eventDays)
	if err != nil {
		return domain.AssetAnalysisResult{}, domain.ReturnSeries{}, err
	}

	return domain.AssetAnalysisResult{
		Label:      asset.Label,
		Ticker:     asset.Ticker,
		Model:      model,
		Window:     window,
		Statistics: statistics,
		Clustering: volatilityClustering(window),
	}, series, nil
}

// buildSeries fetches price history and derives the return series.
func (o *Orchestrator) buildSeries(ctx context.Context, ticker string, start, end time.Time) (domain.ReturnSeries, error) {
	bars, err := o.provider.Fetch(ctx, ticker, start, end)
	if err != nil {
		return domain.ReturnSeries{}, err
	}
	return returns.Build(ticker, bars)
}

// volatilityClustering reports lag-1 autocorrelation of squared abnormal
// returns. Nil when the window is too short for the diagnostic.
func volatilityClustering(window []domain.EventWindowRecord) *domain.VolatilityClustering {
	if len(window) < clusteringMinObservations {
		return nil
	}

	squared := make([]float64, len(window))
	for i, rec := range window {
		squared[i] = rec.AbnormalReturn * rec.AbnormalReturn
	}

	ac, ok := stats.Lag1Autocorrelation(squared)
	if !ok {
		return nil
	}
	return &domain.VolatilityClustering{
		Lag1Autocorrelation: ac,
		Clustered:           ac > clusteringThreshold,
	}
}

// correlationMatrix computes pairwise Pearson correlations of the
// analyzed assets' full return series over their shared dates. Nil when
// fewer than 2 assets succeeded or fewer than 10 dates align.
func correlationMatrix(order []string, seriesByLabel map[string]domain.ReturnSeries) *CorrelationMatrix {
	if len(order) < correlationMinAssets {
		return nil
	}

	perAsset := make([]map[int64]float64, len(order))
	for i, label := range order {
		byDate := make(map[int64]float64)
		for _, p := range seriesByLabel[label].Points {
			if p.Return != nil {
				byDate[p.Date.Unix()] = *p.Return
			}
		}
		perAsset[i] = byDate
	}

	// Intersection of dates across all assets, in order.
	var shared []int64
	for date := range perAsset[0] {
		inAll := true
		for _, byDate := range perAsset[1:] {
			if _, ok := byDate[date]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			shared = append(shared, date)
		}
	}
	if len(shared) < correlationMinObservations {
		return nil
	}
	sort.Slice(shared, func(i, j int) bool { return shared[i] < shared[j] })

	aligned := make([][]float64, len(order))
	for i, byDate := range perAsset {
		vec := make([]float64, len(shared))
		for k, date := range shared {
			vec[k] = byDate[date]
		}
		aligned[i] = vec
	}

	values := make([][]float64, len(order))
	for i := range aligned {
		values[i] = make([]float64, len(order))
		for j := range aligned {
			if i == j {
				values[i][j] = 1
				continue
			}
			if r, ok := stats.Pearson(aligned[i], aligned[j]); ok {
				values[i][j] = r
			}
		}
	}

	labels := make([]string, len(order))
	copy(labels, order)

	return &CorrelationMatrix{
		Labels:       labels,
		Values:       values,
		Observations: len(shared),
	}
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, marketdata.ErrDataUnavailable):
		return "data_unavailable"
	case errors.Is(err, estimation.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, eventwindow.ErrEmptyWindow):
		return "empty_event_window"
	default:
		return "error"
	}
}
