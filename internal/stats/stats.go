// Package stats provides the statistical primitives shared by the
// estimation and event-window calculators: moments, z-scores, Pearson
// correlation, the Student-t distribution and the one-sample t-test.
package stats

import "math"

// Mean calculates the arithmetic mean. Returns 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// SampleStdDev calculates the sample standard deviation (n-1 denominator).
// Returns 0 when fewer than 2 values are given.
func SampleStdDev(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	mean := Mean(values)
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// PopStdDev calculates the population standard deviation (n denominator),
// the convention z-scores are built on.
func PopStdDev(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	mean := Mean(values)
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n))
}

// ZScores returns the z-score of each value against the slice's own mean
// and population standard deviation. All zeros when variance is zero.
func ZScores(values []float64) []float64 {
	scores := make([]float64, len(values))
	std := PopStdDev(values)
	if std == 0 {
		return scores
	}
	mean := Mean(values)
	for i, v := range values {
		scores[i] = (v - mean) / std
	}
	return scores
}

// Pearson calculates the Pearson correlation coefficient of two equal-length
// series. Returns (0, false) when lengths differ, n < 2, or either series
// has zero variance.
func Pearson(x, y []float64) (float64, bool) {
	n := len(x)
	if n != len(y) || n < 2 {
		return 0, false
	}
	meanX := Mean(x)
	meanY := Mean(y)
	var sxy, sxx, syy float64
	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		dy := y[i] - meanY
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0, false
	}
	return sxy / math.Sqrt(sxx*syy), true
}

// Lag1Autocorrelation returns the lag-1 autocorrelation of the series,
// or (0, false) when fewer than 3 observations or zero variance.
func Lag1Autocorrelation(values []float64) (float64, bool) {
	if len(values) < 3 {
		return 0, false
	}
	return Pearson(values[:len(values)-1], values[1:])
}
