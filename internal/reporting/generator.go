// Package reporting renders event study results as Markdown and CSV.
package reporting

import (
	"time"

	"event-study-lab/internal/observability"
	"event-study-lab/internal/orchestrator"
)

// RunInfo carries the request metadata echoed into the report header.
type RunInfo struct {
	EventName            string
	EventDate            time.Time
	EstimationWindowDays int
	EventWindowDays      int
	BenchmarkTicker      string
}

// Generator produces reports from run results.
type Generator struct {
	now func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator() *Generator {
	return &Generator{
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Build assembles a Report from a completed run. Rows follow the run's
// request order.
func (g *Generator) Build(info RunInfo, result *orchestrator.RunResult) *Report {
	report := &Report{
		GeneratedAt:          g.now(),
		EventName:            info.EventName,
		EventDate:            info.EventDate,
		EstimationWindowDays: info.EstimationWindowDays,
		EventWindowDays:      info.EventWindowDays,
		BenchmarkTicker:      info.BenchmarkTicker,
	}

	for _, label := range result.Order {
		analysis := result.Results[label]

		row := AssetRow{
			Label:        analysis.Label,
			Ticker:       analysis.Ticker,
			Alpha:        analysis.Model.Alpha,
			Beta:         analysis.Model.Beta,
			RSquared:     analysis.Model.RSquared,
			SlopePValue:  analysis.Model.SlopePValue,
			Observations: analysis.Model.Observations,
			ShortWindow:  analysis.Model.ShortWindow,
			MeanAR:       analysis.Statistics.MeanAR,
			TotalCAR:     analysis.Statistics.TotalCAR,
			TStatistic:   analysis.Statistics.TStatistic,
			PValue:       analysis.Statistics.PValue,
			Significant:  analysis.Statistics.Significant,
			PositiveDays: analysis.Statistics.PositiveDays,
			NegativeDays: analysis.Statistics.NegativeDays,
			EventDayAR:   analysis.Statistics.EventDayAR,
			Window:       analysis.Window,
		}
		if analysis.Statistics.Volume != nil {
			ratio := analysis.Statistics.Volume.SpikeRatio
			row.VolumeSpikeRatio = &ratio
		}
		if analysis.Clustering != nil {
			ac := analysis.Clustering.Lag1Autocorrelation
			row.ClusteringAutocorr = &ac
			row.VolatilityClustered = analysis.Clustering.Clustered
		}

		report.Assets = append(report.Assets, row)
	}

	if result.Correlation != nil {
		report.Correlation = &CorrelationSection{
			Labels:       result.Correlation.Labels,
			Values:       result.Correlation.Values,
			Observations: result.Correlation.Observations,
		}
	}

	for _, skip := range result.Skipped {
		report.Skipped = append(report.Skipped, SkippedRow{
			Label:  skip.Label,
			Ticker: skip.Ticker,
			Reason: skip.Reason,
		})
	}

	observability.RecordReportGenerated()

	return report
}
