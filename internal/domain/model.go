package domain

// MarketModelParameters holds the fitted single-factor market model for one
// asset. Produced once per asset per analysis run; immutable thereafter.
type MarketModelParameters struct {
	Alpha         float64 // intercept, daily excess-return units
	Beta          float64 // slope on market excess return
	RSquared      float64
	SlopePValue   float64 // two-tailed p-value of the beta estimate
	StdErr        float64 // regression standard error
	Observations  int     // rows used in the final fit
	RiskFreeDaily float64 // daily risk-free rate applied to both series
	WindowUsed    int     // estimation-window length actually used
	ShortWindow   bool    // true when fewer than the tail-60 rows were available
}
