package stats

import "math"

// SignificanceLevel is the two-tailed threshold below which an
// abnormal-return series is flagged significant.
const SignificanceLevel = 0.05

// TTestResult holds a one-sample t-test outcome.
type TTestResult struct {
	TStatistic  float64
	PValue      float64
	Significant bool
}

// OneSampleTTest tests whether the mean of the series differs from zero.
// Degenerate inputs (n <= 1, or zero sample variance) never fail: they
// yield t=0, p=1, significant=false.
func OneSampleTTest(values []float64) TTestResult {
	n := len(values)
	if n <= 1 {
		return TTestResult{TStatistic: 0, PValue: 1, Significant: false}
	}

	mean := Mean(values)
	std := SampleStdDev(values)
	if std <= 0 {
		return TTestResult{TStatistic: 0, PValue: 1, Significant: false}
	}

	t := mean / (std / math.Sqrt(float64(n)))
	p := TwoTailedPValue(t, float64(n-1))

	return TTestResult{
		TStatistic:  t,
		PValue:      p,
		Significant: p < SignificanceLevel,
	}
}
