// Package eventwindow computes abnormal returns and their summary
// statistics over a calendar-day window around an event date.
package eventwindow

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"event-study-lab/internal/domain"
	"event-study-lab/internal/stats"
)

// ErrEmptyWindow signals that no joined trading rows fall inside the
// event window.
var ErrEmptyWindow = errors.New("event window contains no joined observations")

const (
	// annualRiskFree is the annual risk-free rate convention used for
	// event-window expected returns. It differs from the estimation
	// rate on purpose; unifying the two is an open product question.
	annualRiskFree = 0.045

	tradingDaysPerYear = 252

	// volatilityWindow is the trailing observation count for the
	// per-day volatility column.
	volatilityWindow = 2

	// baselineDays is the calendar span before the window start used
	// for the volume baseline.
	baselineDays = 10
)

// Calculator derives event-window records and abnormal-return statistics
// from fitted market model parameters.
type Calculator struct {
	logger zerolog.Logger
}

// NewCalculator creates a new event-window calculator.
func NewCalculator(logger zerolog.Logger) *Calculator {
	return &Calculator{logger: logger.With().Str("component", "eventwindow").Logger()}
}

// Compute builds the per-day abnormal-return decomposition over
// [eventDate - windowDays, eventDate + windowDays] in calendar days,
// plus summary statistics. The event date missing from the window is a
// normal condition and yields zero event-day values.
func (c *Calculator) Compute(
	asset, market domain.ReturnSeries,
	model domain.MarketModelParameters,
	eventDate time.Time,
	windowDays int,
) ([]domain.EventWindowRecord, domain.AbnormalReturnStatistics, error) {
	day := domain.Day(eventDate)
	start := day.AddDate(0, 0, -windowDays)
	end := day.AddDate(0, 0, windowDays)

	rows := joinWindow(asset.Slice(start, end), market)
	if len(rows) == 0 {
		return nil, domain.AbnormalReturnStatistics{}, fmt.Errorf(
			"window %s..%s for %s: %w",
			start.Format("2006-01-02"), end.Format("2006-01-02"), asset.Ticker, ErrEmptyWindow)
	}

	rf := annualRiskFree / tradingDaysPerYear

	records := make([]domain.EventWindowRecord, len(rows))
	abnormal := make([]float64, len(rows))
	var cumulative float64

	for i, row := range rows {
		expected := rf + model.Beta*(row.market-rf)
		ar := row.asset - expected
		cumulative += ar
		abnormal[i] = ar

		records[i] = domain.EventWindowRecord{
			Date:           row.date,
			AssetReturn:    row.asset,
			MarketReturn:   row.market,
			ExpectedReturn: expected,
			AbnormalReturn: ar,
			CumulativeAR:   cumulative,
		}
	}
	fillVolatility(records)

	result := domain.AbnormalReturnStatistics{
		MeanAR:       stats.Mean(abnormal),
		StdAR:        stats.SampleStdDev(abnormal),
		TotalCAR:     cumulative,
		Observations: len(abnormal),
	}

	ttest := stats.OneSampleTTest(abnormal)
	result.TStatistic = ttest.TStatistic
	result.PValue = ttest.PValue
	result.Significant = ttest.Significant

	for i, ar := range abnormal {
		switch {
		case ar > 0:
			result.PositiveDays++
		case ar < 0:
			result.NegativeDays++
		}
		if records[i].Date.Equal(day) {
			result.EventDayAR = ar
			result.EventDayActual = records[i].AssetReturn
			result.EventDayExpected = records[i].ExpectedReturn
			result.EventDayMarket = records[i].MarketReturn
		}
	}

	result.Volume = volumeDiagnostics(asset, day, start)

	c.logger.Debug().
		Str("ticker", asset.Ticker).
		Int("observations", result.Observations).
		Float64("total_car", result.TotalCAR).
		Float64("p_value", result.PValue).
		Msg("event window computed")

	return records, result, nil
}

type joinedRow struct {
	date   time.Time
	asset  float64
	market float64
}

// joinWindow inner-joins window rows on date, dropping rows with an
// absent return on either side.
func joinWindow(assetPoints []domain.ReturnPoint, market domain.ReturnSeries) []joinedRow {
	rows := make([]joinedRow, 0, len(assetPoints))
	for _, p := range assetPoints {
		if p.Return == nil {
			continue
		}
		m, ok := market.At(p.Date)
		if !ok || m.Return == nil {
			continue
		}
		rows = append(rows, joinedRow{date: p.Date, asset: *p.Return, market: *m.Return})
	}
	return rows
}

// fillVolatility sets the 2-observation trailing annualized volatility in
// percent. The first record is backfilled with the second record's value
// since a single observation has no spread.
func fillVolatility(records []domain.EventWindowRecord) {
	annualize := math.Sqrt(tradingDaysPerYear) * 100

	for i := volatilityWindow - 1; i < len(records); i++ {
		window := []float64{records[i-1].AssetReturn, records[i].AssetReturn}
		v := stats.SampleStdDev(window) * annualize
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		records[i].VolatilityPct = v
	}
	if len(records) > 1 {
		records[0].VolatilityPct = records[1].VolatilityPct
	}
}

// volumeDiagnostics compares event-day volume against the mean volume
// over the 10 calendar days before the window start. Nil when the event
// date has no trading row or no baseline rows exist.
func volumeDiagnostics(asset domain.ReturnSeries, eventDay, windowStart time.Time) *domain.VolumeDiagnostics {
	eventRow, ok := asset.At(eventDay)
	if !ok {
		return nil
	}

	baselineStart := windowStart.AddDate(0, 0, -baselineDays)
	baselineEnd := windowStart.AddDate(0, 0, -1)
	baselineRows := asset.Slice(baselineStart, baselineEnd)
	if len(baselineRows) == 0 {
		return nil
	}

	var sum float64
	for _, p := range baselineRows {
		sum += float64(p.Volume)
	}
	baseline := sum / float64(len(baselineRows))

	diag := &domain.VolumeDiagnostics{
		EventVolume:    eventRow.Volume,
		BaselineVolume: baseline,
	}
	if baseline > 0 {
		diag.SpikeRatio = float64(eventRow.Volume) / baseline
		diag.PercentChange = (float64(eventRow.Volume) - baseline) / baseline * 100
	}
	return diag
}
