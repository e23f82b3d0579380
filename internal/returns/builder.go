// Package returns derives daily return series and rolling indicators
// from raw price bars.
package returns

import (
	"fmt"
	"math"

	"event-study-lab/internal/domain"
	"event-study-lab/internal/marketdata"
	"event-study-lab/internal/stats"
)

const (
	// rollingWindow is the number of trailing observations used for
	// moving averages and rolling volatility.
	rollingWindow = 20

	// tradingDaysPerYear annualizes daily volatility.
	tradingDaysPerYear = 252
)

// Build computes the daily return series for a ticker from its price bars.
//
// Formulas:
//   - return[t] = close[t]/close[t-1] - 1, NULL for the first bar
//   - volume_avg[t] = SMA(volume, 20), NULL until 20 bars are available
//   - price_avg[t] = SMA(close, 20), NULL until 20 bars are available
//   - volatility[t] = stddev(returns, 20) * sqrt(252), NULL until 20
//     returns are available
//
// Bars must be validated and sorted ascending by date. Fewer than two
// bars cannot produce a single return and is reported as unavailable
// data.
func Build(ticker string, bars []domain.PriceBar) (domain.ReturnSeries, error) {
	if err := domain.ValidateBars(bars); err != nil {
		return domain.ReturnSeries{}, fmt.Errorf("build returns for %s: %w", ticker, err)
	}
	if len(bars) < 2 {
		return domain.ReturnSeries{}, fmt.Errorf("build returns for %s: %d bars: %w",
			ticker, len(bars), marketdata.ErrDataUnavailable)
	}

	points := make([]domain.ReturnPoint, len(bars))
	rets := make([]float64, 0, len(bars)-1)

	for i, bar := range bars {
		point := domain.ReturnPoint{
			Date:   bar.Date,
			Close:  bar.Close,
			Volume: bar.Volume,
		}

		if i > 0 {
			r := bar.Close/bars[i-1].Close - 1
			point.Return = finiteOrNil(r)
			rets = append(rets, r)
		}

		if i >= rollingWindow-1 {
			point.VolumeAvg = finiteOrNil(volumeMean(bars[i-rollingWindow+1 : i+1]))
			point.PriceAvg = finiteOrNil(closeMean(bars[i-rollingWindow+1 : i+1]))
		}

		// Rolling volatility needs a full window of returns, which only
		// exists from the bar after the window fills.
		if len(rets) >= rollingWindow {
			window := rets[len(rets)-rollingWindow:]
			vol := stats.SampleStdDev(window) * math.Sqrt(tradingDaysPerYear)
			point.Volatility = finiteOrNil(vol)
		}

		points[i] = point
	}

	return domain.ReturnSeries{Ticker: ticker, Points: points}, nil
}

func volumeMean(bars []domain.PriceBar) float64 {
	var sum float64
	for _, b := range bars {
		sum += float64(b.Volume)
	}
	return sum / float64(len(bars))
}

func closeMean(bars []domain.PriceBar) float64 {
	var sum float64
	for _, b := range bars {
		sum += b.Close
	}
	return sum / float64(len(bars))
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
