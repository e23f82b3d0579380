// Package estimation fits the single-factor market model used to price
// expected returns: asset_excess = alpha + beta * market_excess.
package estimation

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"event-study-lab/internal/domain"
	"event-study-lab/internal/stats"
)

// ErrInsufficientData signals that the joined estimation sample is too
// small or too degenerate for a meaningful regression.
var ErrInsufficientData = errors.New("insufficient data for market model estimation")

const (
	// annualRiskFree is the annual risk-free rate convention used for
	// estimation-window excess returns.
	annualRiskFree = 0.050

	tradingDaysPerYear = 252

	// tailWindow caps the estimation sample at the most recent
	// observations when more are available.
	tailWindow = 60

	// minObservations is the floor for a numerically meaningful OLS fit.
	minObservations = 20

	// outlierZThreshold trims rows whose excess return sits beyond this
	// many standard deviations in either series.
	outlierZThreshold = 3.0
)

// Estimator fits market model parameters from joined return series.
type Estimator struct {
	logger zerolog.Logger
}

// NewEstimator creates a new market model estimator.
func NewEstimator(logger zerolog.Logger) *Estimator {
	return &Estimator{logger: logger.With().Str("component", "estimation").Logger()}
}

// Fit estimates alpha and beta for the asset against the market series.
//
// Both series are inner-joined on date, rows without a return in either
// series are dropped, and the sample is capped at the most recent 60
// joined rows. Excess returns over a fixed daily risk-free rate are
// trimmed of outliers (|z| >= 3 in either series) unless trimming would
// leave fewer than 20 rows, in which case the full sample is kept.
func (e *Estimator) Fit(asset, market domain.ReturnSeries) (domain.MarketModelParameters, error) {
	assetRets, marketRets := joinReturns(asset, market)

	windowUsed := len(assetRets)
	shortWindow := windowUsed < tailWindow
	if windowUsed > tailWindow {
		assetRets = assetRets[windowUsed-tailWindow:]
		marketRets = marketRets[windowUsed-tailWindow:]
		windowUsed = tailWindow
	}

	if windowUsed < minObservations {
		return domain.MarketModelParameters{}, fmt.Errorf(
			"estimate %s: %d joined observations: %w", asset.Ticker, windowUsed, ErrInsufficientData)
	}

	rf := annualRiskFree / tradingDaysPerYear
	y := excess(assetRets, rf)
	x := excess(marketRets, rf)

	xKept, yKept := trimOutliers(x, y)
	if len(xKept) < minObservations {
		// Rejection would starve the fit; keep the full sample instead.
		xKept, yKept = x, y
	} else if len(xKept) < len(x) {
		e.logger.Debug().
			Str("ticker", asset.Ticker).
			Int("dropped", len(x)-len(xKept)).
			Msg("outlier rows excluded from estimation sample")
	}

	params, err := fitOLS(xKept, yKept)
	if err != nil {
		return domain.MarketModelParameters{}, fmt.Errorf("estimate %s: %w", asset.Ticker, err)
	}

	params.RiskFreeDaily = rf
	params.WindowUsed = windowUsed
	params.ShortWindow = shortWindow

	e.logger.Debug().
		Str("ticker", asset.Ticker).
		Float64("beta", params.Beta).
		Float64("r_squared", params.RSquared).
		Int("observations", params.Observations).
		Bool("short_window", shortWindow).
		Msg("market model fitted")

	return params, nil
}

// joinReturns inner-joins two series on date and drops rows where either
// side has no return. Output stays in date order.
func joinReturns(asset, market domain.ReturnSeries) (assetRets, marketRets []float64) {
	byDate := make(map[int64]float64, len(market.Points))
	for _, p := range market.Points {
		if p.Return != nil {
			byDate[p.Date.Unix()] = *p.Return
		}
	}

	for _, p := range asset.Points {
		if p.Return == nil {
			continue
		}
		m, ok := byDate[p.Date.Unix()]
		if !ok {
			continue
		}
		assetRets = append(assetRets, *p.Return)
		marketRets = append(marketRets, m)
	}
	return assetRets, marketRets
}

func excess(rets []float64, riskFree float64) []float64 {
	out := make([]float64, len(rets))
	for i, r := range rets {
		out[i] = r - riskFree
	}
	return out
}

// trimOutliers keeps rows where both series' z-scores are strictly inside
// the threshold. Z-scores are computed per series over the full input.
func trimOutliers(x, y []float64) ([]float64, []float64) {
	zx := stats.ZScores(x)
	zy := stats.ZScores(y)

	xKept := make([]float64, 0, len(x))
	yKept := make([]float64, 0, len(y))
	for i := range x {
		if math.Abs(zx[i]) < outlierZThreshold && math.Abs(zy[i]) < outlierZThreshold {
			xKept = append(xKept, x[i])
			yKept = append(yKept, y[i])
		}
	}
	return xKept, yKept
}

// fitOLS runs ordinary least squares of y on x and reports diagnostics.
func fitOLS(x, y []float64) (domain.MarketModelParameters, error) {
	n := float64(len(x))

	var sumX, sumY, sumXY, sumXX, sumYY float64
	for i := range x {
		sumX += x[i]
		sumY += y[i]
		sumXY += x[i] * y[i]
		sumXX += x[i] * x[i]
		sumYY += y[i] * y[i]
	}

	sxx := sumXX - sumX*sumX/n
	syy := sumYY - sumY*sumY/n
	sxy := sumXY - sumX*sumY/n

	if sxx <= 0 || syy <= 0 {
		return domain.MarketModelParameters{}, fmt.Errorf("zero variance input: %w", ErrInsufficientData)
	}

	beta := sxy / sxx
	alpha := sumY/n - beta*sumX/n

	ssRes := syy - beta*sxy
	if ssRes < 0 {
		ssRes = 0
	}
	rSquared := 1 - ssRes/syy

	df := len(x) - 2
	var stdErr, pValue float64
	if df > 0 {
		stdErr = math.Sqrt(ssRes / float64(df))
		seBeta := stdErr / math.Sqrt(sxx)
		if seBeta > 0 {
			pValue = stats.TwoTailedPValue(beta/seBeta, float64(df))
		}
	}

	return domain.MarketModelParameters{
		Alpha:        alpha,
		Beta:         beta,
		RSquared:     rSquared,
		SlopePValue:  pValue,
		StdErr:       stdErr,
		Observations: len(x),
	}, nil
}
