package domain

import "time"

// ReturnPoint holds one day's derived return data. Rolling statistics are
// nil until their 20-observation window fills; the first day's return is
// nil because no prior close exists.
type ReturnPoint struct {
	Date       time.Time
	Close      float64
	Volume     int64
	Return     *float64 // simple return: close[t]/close[t-1] - 1
	VolumeAvg  *float64 // 20-obs trailing mean of volume
	PriceAvg   *float64 // 20-obs trailing mean of close
	Volatility *float64 // 20-obs trailing stddev of returns, annualized ×√252
}

// ReturnSeries is a date-ordered return series for one instrument.
// Read-only after construction; the benchmark series is shared across
// assets within a run.
type ReturnSeries struct {
	Ticker string
	Points []ReturnPoint
}

// Slice returns the points with dates in [start, end] inclusive.
// Points stay in date order; the backing array is shared.
func (s *ReturnSeries) Slice(start, end time.Time) []ReturnPoint {
	lo := 0
	for lo < len(s.Points) && s.Points[lo].Date.Before(start) {
		lo++
	}
	hi := lo
	for hi < len(s.Points) && !s.Points[hi].Date.After(end) {
		hi++
	}
	return s.Points[lo:hi]
}

// At returns the point for the given calendar date, if present.
func (s *ReturnSeries) At(date time.Time) (ReturnPoint, bool) {
	d := Day(date)
	for _, p := range s.Points {
		if p.Date.Equal(d) {
			return p, true
		}
		if p.Date.After(d) {
			break
		}
	}
	return ReturnPoint{}, false
}
