// Package marketdata supplies daily OHLCV history through a narrow
// provider interface. The analysis core does not care how data is sourced.
package marketdata

import (
	"context"
	"errors"
	"time"

	"event-study-lab/internal/domain"
)

// ErrDataUnavailable is returned when no usable price history exists for a
// ticker/date range. Providers never return partial or corrupt data.
var ErrDataUnavailable = errors.New("price data unavailable")

// Provider fetches daily price bars for a ticker over a date range.
// Implementations must return bars with strictly increasing, timezone-naive
// dates and a consistent split/dividend adjustment policy.
type Provider interface {
	Fetch(ctx context.Context, ticker string, start, end time.Time) ([]domain.PriceBar, error)
}
