package reporting

import (
	"time"

	"event-study-lab/internal/domain"
)

// Report is the renderable result of one event study run.
type Report struct {
	// Metadata
	GeneratedAt          time.Time
	EventName            string
	EventDate            time.Time
	EstimationWindowDays int
	EventWindowDays      int
	BenchmarkTicker      string

	// Per-asset rows in request order
	Assets []AssetRow

	// Cross-asset diagnostics; nil when unavailable
	Correlation *CorrelationSection

	// Assets omitted from the results
	Skipped []SkippedRow
}

// AssetRow summarizes one asset's model fit and abnormal-return outcome.
type AssetRow struct {
	Label  string
	Ticker string

	// Market model
	Alpha        float64
	Beta         float64
	RSquared     float64
	SlopePValue  float64
	Observations int
	ShortWindow  bool

	// Abnormal returns
	MeanAR       float64
	TotalCAR     float64
	TStatistic   float64
	PValue       float64
	Significant  bool
	PositiveDays int
	NegativeDays int
	EventDayAR   float64

	// Optional diagnostics
	VolumeSpikeRatio    *float64
	ClusteringAutocorr  *float64
	VolatilityClustered bool

	// Full per-day decomposition, used by the CSV export
	Window []domain.EventWindowRecord
}

// CorrelationSection holds the cross-asset return correlation matrix.
type CorrelationSection struct {
	Labels       []string
	Values       [][]float64
	Observations int
}

// SkippedRow records one omitted asset.
type SkippedRow struct {
	Label  string
	Ticker string
	Reason string
}
