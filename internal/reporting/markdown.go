package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders a report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	title := r.EventName
	if title == "" {
		title = "Event Study"
	}
	sb.WriteString(fmt.Sprintf("# Event Study: %s\n\n", title))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Event date: %s | Benchmark: %s | Estimation window: %d days | Event window: +/-%d days\n\n",
		r.EventDate.Format("2006-01-02"), r.BenchmarkTicker, r.EstimationWindowDays, r.EventWindowDays))

	// Market model
	sb.WriteString("## Market Model\n\n")
	if len(r.Assets) > 0 {
		sb.WriteString("| Asset | Ticker | Alpha | Beta | R² | Slope p | Obs | Short Window |\n")
		sb.WriteString("|-------|--------|-------|------|----|---------|-----|--------------|\n")
		for _, a := range r.Assets {
			short := ""
			if a.ShortWindow {
				short = "yes"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %.6f | %.4f | %.4f | %.4f | %d | %s |\n",
				a.Label, a.Ticker, a.Alpha, a.Beta, a.RSquared, a.SlopePValue, a.Observations, short))
		}
	} else {
		sb.WriteString("No assets were analyzed.\n")
	}
	sb.WriteString("\n")

	// Abnormal returns
	sb.WriteString("## Abnormal Returns\n\n")
	if len(r.Assets) > 0 {
		sb.WriteString("| Asset | Mean AR | Total CAR | Event-Day AR | t | p | Significant | +Days | -Days |\n")
		sb.WriteString("|-------|---------|-----------|--------------|---|---|-------------|-------|-------|\n")
		for _, a := range r.Assets {
			sig := "no"
			if a.Significant {
				sig = "yes"
			}
			sb.WriteString(fmt.Sprintf("| %s | %.6f | %.6f | %.6f | %.4f | %.4f | %s | %d | %d |\n",
				a.Label, a.MeanAR, a.TotalCAR, a.EventDayAR, a.TStatistic, a.PValue, sig,
				a.PositiveDays, a.NegativeDays))
		}
		sb.WriteString("\n")
	}

	// Diagnostics
	diagnostics := false
	for _, a := range r.Assets {
		if a.VolumeSpikeRatio != nil || a.ClusteringAutocorr != nil {
			diagnostics = true
			break
		}
	}
	if diagnostics {
		sb.WriteString("## Diagnostics\n\n")
		sb.WriteString("| Asset | Volume Spike | Vol. Clustering (lag-1) | Clustered |\n")
		sb.WriteString("|-------|--------------|-------------------------|-----------|\n")
		for _, a := range r.Assets {
			spike := "n/a"
			if a.VolumeSpikeRatio != nil {
				spike = fmt.Sprintf("%.2fx", *a.VolumeSpikeRatio)
			}
			cluster := "n/a"
			clustered := ""
			if a.ClusteringAutocorr != nil {
				cluster = fmt.Sprintf("%.4f", *a.ClusteringAutocorr)
				clustered = "no"
				if a.VolatilityClustered {
					clustered = "yes"
				}
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", a.Label, spike, cluster, clustered))
		}
		sb.WriteString("\n")
	}

	// Correlation matrix
	sb.WriteString("## Return Correlation\n\n")
	if r.Correlation != nil {
		sb.WriteString(fmt.Sprintf("Aligned observations: %d\n\n", r.Correlation.Observations))
		sb.WriteString("| |")
		for _, label := range r.Correlation.Labels {
			sb.WriteString(fmt.Sprintf(" %s |", label))
		}
		sb.WriteString("\n|-|")
		for range r.Correlation.Labels {
			sb.WriteString("-|")
		}
		sb.WriteString("\n")
		for i, label := range r.Correlation.Labels {
			sb.WriteString(fmt.Sprintf("| %s |", label))
			for j := range r.Correlation.Labels {
				sb.WriteString(fmt.Sprintf(" %.4f |", r.Correlation.Values[i][j]))
			}
			sb.WriteString("\n")
		}
	} else {
		sb.WriteString("Correlation matrix unavailable (needs at least 2 analyzed assets and 10 aligned observations).\n")
	}
	sb.WriteString("\n")

	// Skipped assets
	if len(r.Skipped) > 0 {
		sb.WriteString("## Skipped Assets\n\n")
		for _, s := range r.Skipped {
			sb.WriteString(fmt.Sprintf("- %s (%s): %s\n", s.Label, s.Ticker, s.Reason))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
