// Package domain defines the core data model for event-study analysis.
package domain

import (
	"errors"
	"time"
)

// ErrInvalidSeries is returned when a price-bar sequence violates its
// ordering or value invariants.
var ErrInvalidSeries = errors.New("invalid price series")

// PriceBar represents one trading day's data for one instrument.
type PriceBar struct {
	Date   time.Time // calendar date, midnight UTC, trading-day granularity
	Open   float64   // positive
	High   float64   // positive
	Low    float64   // positive
	Close  float64   // positive
	Volume int64     // non-negative
}

// Day normalizes a timestamp to a timezone-naive calendar date
// (midnight UTC). All window arithmetic downstream operates on naive
// date differences, so upstream zone information is stripped here.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ValidateBars checks the PriceBar sequence invariant: dates strictly
// increasing and unique, prices positive, volume non-negative.
func ValidateBars(bars []PriceBar) error {
	for i, b := range bars {
		if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
			return ErrInvalidSeries
		}
		if b.Volume < 0 {
			return ErrInvalidSeries
		}
		if i > 0 && !bars[i-1].Date.Before(b.Date) {
			return ErrInvalidSeries
		}
	}
	return nil
}
