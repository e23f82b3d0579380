package reporting

import (
	"fmt"
	"strings"
)

// RenderSummaryCSV renders the per-asset summary rows as CSV.
func RenderSummaryCSV(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("label,ticker,alpha,beta,r_squared,slope_p_value,observations,short_window,")
	sb.WriteString("mean_ar,total_car,event_day_ar,t_statistic,p_value,significant,")
	sb.WriteString("positive_days,negative_days\n")

	// Rows
	for _, a := range r.Assets {
		sb.WriteString(fmt.Sprintf("%s,%s,%.8f,%.6f,%.6f,%.6f,%d,%t,%.8f,%.8f,%.8f,%.6f,%.6f,%t,%d,%d\n",
			csvField(a.Label),
			csvField(a.Ticker),
			a.Alpha,
			a.Beta,
			a.RSquared,
			a.SlopePValue,
			a.Observations,
			a.ShortWindow,
			a.MeanAR,
			a.TotalCAR,
			a.EventDayAR,
			a.TStatistic,
			a.PValue,
			a.Significant,
			a.PositiveDays,
			a.NegativeDays,
		))
	}

	return sb.String()
}

// RenderWindowCSV renders one asset's per-day event window decomposition
// as CSV.
func RenderWindowCSV(a AssetRow) string {
	var sb strings.Builder

	sb.WriteString("date,asset_return,market_return,expected_return,abnormal_return,cumulative_ar,volatility_pct\n")
	for _, rec := range a.Window {
		sb.WriteString(fmt.Sprintf("%s,%.8f,%.8f,%.8f,%.8f,%.8f,%.4f\n",
			rec.Date.Format("2006-01-02"),
			rec.AssetReturn,
			rec.MarketReturn,
			rec.ExpectedReturn,
			rec.AbnormalReturn,
			rec.CumulativeAR,
			rec.VolatilityPct,
		))
	}

	return sb.String()
}

// csvField quotes a value when it contains a comma or quote.
func csvField(v string) string {
	if strings.ContainsAny(v, ",\"\n") {
		return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
	}
	return v
}
