package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"event-study-lab/internal/domain"
	"event-study-lab/internal/storage/memory"
)

// countingProvider serves synthetic daily bars and counts upstream calls.
type countingProvider struct {
	calls int
	err   error
}

func (p *countingProvider) Fetch(_ context.Context, ticker string, start, end time.Time) ([]domain.PriceBar, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}

	var bars []domain.PriceBar
	for day := domain.Day(start); !day.After(domain.Day(end)); day = day.AddDate(0, 0, 1) {
		bars = append(bars, domain.PriceBar{
			Date:   day,
			Open:   100,
			High:   101,
			Low:    99,
			Close:  100,
			Volume: 1000,
		})
	}
	return bars, nil
}

func TestCachedProviderSecondFetchSkipsUpstream(t *testing.T) {
	upstream := &countingProvider{}
	cached := NewCachedProvider(upstream, memory.NewBarStore(), zerolog.Nop())

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	first, err := cached.Fetch(ctx, "AAPL", start, end)
	if err != nil {
		t.Fatalf("first Fetch failed: %v", err)
	}
	if upstream.calls != 1 {
		t.Fatalf("expected 1 upstream call, got %d", upstream.calls)
	}

	second, err := cached.Fetch(ctx, "AAPL", start, end)
	if err != nil {
		t.Fatalf("second Fetch failed: %v", err)
	}
	if upstream.calls != 1 {
		t.Errorf("expected cache to serve second fetch, upstream calls = %d", upstream.calls)
	}
	if len(second) != len(first) {
		t.Errorf("cache returned %d bars, upstream returned %d", len(second), len(first))
	}
}

func TestCachedProviderWiderRangeRefetches(t *testing.T) {
	upstream := &countingProvider{}
	cached := NewCachedProvider(upstream, memory.NewBarStore(), zerolog.Nop())

	ctx := context.Background()
	end := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)

	if _, err := cached.Fetch(ctx, "AAPL", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), end); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	// Earlier start than the cache holds: must go upstream again.
	bars, err := cached.Fetch(ctx, "AAPL", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), end)
	if err != nil {
		t.Fatalf("widened Fetch failed: %v", err)
	}
	if upstream.calls != 2 {
		t.Errorf("expected 2 upstream calls, got %d", upstream.calls)
	}
	if len(bars) == 0 {
		t.Error("expected bars from widened fetch")
	}
}

func TestCachedProviderTickersDoNotShareCache(t *testing.T) {
	upstream := &countingProvider{}
	cached := NewCachedProvider(upstream, memory.NewBarStore(), zerolog.Nop())

	ctx := context.Background()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	if _, err := cached.Fetch(ctx, "AAPL", start, end); err != nil {
		t.Fatalf("Fetch AAPL failed: %v", err)
	}
	if _, err := cached.Fetch(ctx, "MSFT", start, end); err != nil {
		t.Fatalf("Fetch MSFT failed: %v", err)
	}
	if upstream.calls != 2 {
		t.Errorf("expected separate upstream calls per ticker, got %d", upstream.calls)
	}
}

func TestCachedProviderUpstreamErrorPropagates(t *testing.T) {
	upstream := &countingProvider{err: ErrDataUnavailable}
	cached := NewCachedProvider(upstream, memory.NewBarStore(), zerolog.Nop())

	_, err := cached.Fetch(context.Background(), "NOPE",
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))
	if err == nil {
		t.Fatal("expected upstream error to propagate")
	}
}
