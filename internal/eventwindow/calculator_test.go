package eventwindow

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"event-study-lab/internal/domain"
)

// buildSeries creates a daily return series starting at start. Dates in
// skip are left out, simulating non-trading days.
func buildSeries(ticker string, start time.Time, rets []float64, volume int64, skip map[string]bool) domain.ReturnSeries {
	points := make([]domain.ReturnPoint, 0, len(rets))
	d := start
	for i := 0; i < len(rets); {
		if skip[d.Format("2006-01-02")] {
			d = d.AddDate(0, 0, 1)
			continue
		}
		r := rets[i]
		points = append(points, domain.ReturnPoint{
			Date:   d,
			Close:  100,
			Volume: volume,
			Return: &r,
		})
		d = d.AddDate(0, 0, 1)
		i++
	}
	return domain.ReturnSeries{Ticker: ticker, Points: points}
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestComputeCumulativeARIsRunningSum(t *testing.T) {
	event := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	start := event.AddDate(0, 0, -30)

	assetRets := make([]float64, 61)
	marketRets := make([]float64, 61)
	for i := range assetRets {
		assetRets[i] = 0.01 * math.Sin(float64(i)*0.5)
		marketRets[i] = 0.008 * math.Cos(float64(i)*0.3)
	}

	asset := buildSeries("AAA", start, assetRets, 1000, nil)
	market := buildSeries("MKT", start, marketRets, 0, nil)
	model := domain.MarketModelParameters{Beta: 1.2}

	calc := NewCalculator(zerolog.Nop())
	records, result, err := calc.Compute(asset, market, model, event, 7)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	var sum float64
	for k, rec := range records {
		sum += rec.AbnormalReturn
		if math.Abs(rec.CumulativeAR-sum) > 1e-12 {
			t.Errorf("CAR at %d: expected %v, got %v", k, sum, rec.CumulativeAR)
		}
	}
	if math.Abs(result.TotalCAR-sum) > 1e-12 {
		t.Errorf("total CAR: expected %v, got %v", sum, result.TotalCAR)
	}
}

func TestComputeZeroVarianceAbnormalReturns(t *testing.T) {
	const rf = annualRiskFree / tradingDaysPerYear

	event := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)
	start := event.AddDate(0, 0, -5)

	// Beta 0 makes expected = rf; asset return rf+0.01 yields AR = 0.01
	// on every day.
	asset := buildSeries("AAA", start, constant(11, rf+0.01), 1000, nil)
	market := buildSeries("MKT", start, constant(11, 0.002), 0, nil)
	model := domain.MarketModelParameters{Beta: 0}

	calc := NewCalculator(zerolog.Nop())
	_, result, err := calc.Compute(asset, market, model, event, 3)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if result.TStatistic != 0 {
		t.Errorf("expected t=0 for zero variance, got %v", result.TStatistic)
	}
	if result.PValue != 1 {
		t.Errorf("expected p=1 for zero variance, got %v", result.PValue)
	}
	if result.Significant {
		t.Error("zero-variance series must not be significant")
	}
	if result.PositiveDays != result.Observations {
		t.Errorf("expected all %d days positive, got %d", result.Observations, result.PositiveDays)
	}
}

func TestComputeWindowDateBounds(t *testing.T) {
	events := []time.Time{
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),   // year boundary
		time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),  // leap day
		time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC),   // month boundary
		time.Date(2024, 12, 29, 0, 0, 0, 0, time.UTC), // year end
	}

	calc := NewCalculator(zerolog.Nop())
	model := domain.MarketModelParameters{Beta: 1}

	for _, event := range events {
		start := event.AddDate(0, 0, -20)
		asset := buildSeries("AAA", start, constant(41, 0.01), 1000, nil)
		market := buildSeries("MKT", start, constant(41, 0.005), 0, nil)

		records, _, err := calc.Compute(asset, market, model, event, 7)
		if err != nil {
			t.Fatalf("Compute failed for %s: %v", event.Format("2006-01-02"), err)
		}

		lo := event.AddDate(0, 0, -7)
		hi := event.AddDate(0, 0, 7)
		if len(records) != 15 {
			t.Errorf("%s: expected 15 records, got %d", event.Format("2006-01-02"), len(records))
		}
		for _, rec := range records {
			if rec.Date.Before(lo) || rec.Date.After(hi) {
				t.Errorf("%s: record date %s outside window",
					event.Format("2006-01-02"), rec.Date.Format("2006-01-02"))
			}
		}
	}
}

func TestComputeEventDateNotTradingDay(t *testing.T) {
	event := time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC)
	start := event.AddDate(0, 0, -10)
	skip := map[string]bool{"2024-05-11": true}

	asset := buildSeries("AAA", start, constant(20, 0.01), 1000, skip)
	market := buildSeries("MKT", start, constant(20, 0.004), 0, skip)
	model := domain.MarketModelParameters{Beta: 1}

	calc := NewCalculator(zerolog.Nop())
	_, result, err := calc.Compute(asset, market, model, event, 5)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if result.EventDayAR != 0 || result.EventDayActual != 0 ||
		result.EventDayExpected != 0 || result.EventDayMarket != 0 {
		t.Errorf("expected zero event-day values, got %+v", result)
	}
	if result.Volume != nil {
		t.Error("volume diagnostics should be absent without an event-day row")
	}
}

func TestComputeEmptyWindow(t *testing.T) {
	event := time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC)
	start := event.AddDate(0, 0, -100)

	asset := buildSeries("AAA", start, constant(10, 0.01), 1000, nil)
	market := buildSeries("MKT", start, constant(10, 0.005), 0, nil)

	calc := NewCalculator(zerolog.Nop())
	_, _, err := calc.Compute(asset, market, domain.MarketModelParameters{Beta: 1}, event, 3)
	if err == nil {
		t.Fatal("expected error for empty window")
	}
	if !errors.Is(err, ErrEmptyWindow) {
		t.Errorf("expected ErrEmptyWindow, got %v", err)
	}
}

func TestComputeVolumeDiagnostics(t *testing.T) {
	event := time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)
	start := event.AddDate(0, 0, -20)

	asset := buildSeries("AAA", start, constant(41, 0.01), 500, nil)
	market := buildSeries("MKT", start, constant(41, 0.004), 0, nil)
	// Double the volume on the event day.
	for i := range asset.Points {
		if asset.Points[i].Date.Equal(event) {
			asset.Points[i].Volume = 1000
		}
	}

	calc := NewCalculator(zerolog.Nop())
	_, result, err := calc.Compute(asset, market, domain.MarketModelParameters{Beta: 1}, event, 5)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if result.Volume == nil {
		t.Fatal("expected volume diagnostics")
	}
	if result.Volume.EventVolume != 1000 {
		t.Errorf("expected event volume 1000, got %d", result.Volume.EventVolume)
	}
	if math.Abs(result.Volume.BaselineVolume-500) > 1e-9 {
		t.Errorf("expected baseline 500, got %v", result.Volume.BaselineVolume)
	}
	if math.Abs(result.Volume.SpikeRatio-2.0) > 1e-9 {
		t.Errorf("expected spike ratio 2.0, got %v", result.Volume.SpikeRatio)
	}
	if math.Abs(result.Volume.PercentChange-100) > 1e-9 {
		t.Errorf("expected percent change 100, got %v", result.Volume.PercentChange)
	}
}

func TestComputeVolatilityBackfill(t *testing.T) {
	event := time.Date(2024, 9, 10, 0, 0, 0, 0, time.UTC)
	start := event.AddDate(0, 0, -5)

	rets := []float64{0.01, -0.02, 0.03, 0.00, 0.01, -0.01, 0.02, 0.00, 0.01, -0.02, 0.03}
	asset := buildSeries("AAA", start, rets, 1000, nil)
	market := buildSeries("MKT", start, constant(11, 0.004), 0, nil)

	calc := NewCalculator(zerolog.Nop())
	records, _, err := calc.Compute(asset, market, domain.MarketModelParameters{Beta: 1}, event, 3)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if len(records) < 2 {
		t.Fatalf("expected at least 2 records, got %d", len(records))
	}

	if records[0].VolatilityPct != records[1].VolatilityPct {
		t.Errorf("first volatility should be backfilled: %v vs %v",
			records[0].VolatilityPct, records[1].VolatilityPct)
	}

	// Spot-check the second record against the two-observation formula.
	a, b := records[0].AssetReturn, records[1].AssetReturn
	mean := (a + b) / 2
	std := math.Sqrt((a-mean)*(a-mean) + (b-mean)*(b-mean)) // ddof=1 with n=2
	want := std * math.Sqrt(252) * 100
	if math.Abs(records[1].VolatilityPct-want) > 1e-9 {
		t.Errorf("expected volatility %v, got %v", want, records[1].VolatilityPct)
	}
}
