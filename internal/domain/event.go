package domain

import "time"

// EventWindowRecord is one day of the event window with the market-model
// decomposition of the asset's return.
type EventWindowRecord struct {
	Date           time.Time
	AssetReturn    float64
	MarketReturn   float64
	ExpectedReturn float64 // risk_free + beta × (market - risk_free)
	AbnormalReturn float64 // asset - expected
	CumulativeAR   float64 // running sum, reset at the window start
	VolatilityPct  float64 // 2-obs trailing stddev of asset returns, annualized, percent
}

// VolumeDiagnostics compares event-day volume against the pre-window
// baseline. Absent (nil on the owning struct) when the event date has no
// trading row or no baseline rows exist.
type VolumeDiagnostics struct {
	EventVolume    int64
	BaselineVolume float64 // mean volume over the 10 calendar days before the window
	SpikeRatio     float64
	PercentChange  float64
}

// AbnormalReturnStatistics summarizes the abnormal-return series over the
// event window. One instance per asset per run.
type AbnormalReturnStatistics struct {
	MeanAR       float64
	StdAR        float64 // sample standard deviation (n-1 denominator)
	TotalCAR     float64 // last cumulative value
	TStatistic   float64
	PValue       float64
	Observations int

	// Event-day decomposition; zero when the event date is not a trading day.
	EventDayAR       float64
	EventDayActual   float64
	EventDayExpected float64
	EventDayMarket   float64

	PositiveDays int
	NegativeDays int
	Volume       *VolumeDiagnostics
	Significant  bool // p < 0.05
}

// VolatilityClustering reports lag-1 autocorrelation of squared abnormal
// returns over the event window.
type VolatilityClustering struct {
	Lag1Autocorrelation float64
	Clustered           bool
}

// AssetAnalysisResult is the aggregate per-asset unit for a run. Created
// fresh each orchestration run and never mutated after construction.
type AssetAnalysisResult struct {
	Label      string
	Ticker     string
	Model      MarketModelParameters
	Window     []EventWindowRecord
	Statistics AbnormalReturnStatistics
	Clustering *VolatilityClustering // nil when the window is too short
}
