package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"event-study-lab/internal/domain"
	"event-study-lab/internal/observability"
	"event-study-lab/internal/storage"
)

// coverageSlackDays absorbs weekends and holidays at the range edges when
// deciding whether cached bars cover a requested range.
const coverageSlackDays = 5

// CachedProvider decorates a Provider with a BarStore so repeated fetches
// of the same history hit the cache instead of the upstream API. Eviction
// is the backend's concern (Redis TTL, SQL pruning via DeleteBefore).
type CachedProvider struct {
	upstream Provider
	store    storage.BarStore
	logger   zerolog.Logger
}

// NewCachedProvider wraps upstream with the given bar cache.
func NewCachedProvider(upstream Provider, store storage.BarStore, logger zerolog.Logger) *CachedProvider {
	return &CachedProvider{
		upstream: upstream,
		store:    store,
		logger:   logger.With().Str("component", "marketdata.cache").Logger(),
	}
}

// Fetch serves from the store when it covers [start, end]; otherwise it
// fetches upstream and backfills the store. A store write failure is logged
// but never fails the fetch: the cache is an optimization, not a dependency.
func (p *CachedProvider) Fetch(ctx context.Context, ticker string, start, end time.Time) ([]domain.PriceBar, error) {
	start, end = domain.Day(start), domain.Day(end)

	cached, err := p.store.GetByTickerRange(ctx, ticker, start, end)
	if err == nil && covers(cached, start, end) {
		observability.RecordCacheHit(ticker)
		return cached, nil
	}
	if err != nil {
		p.logger.Warn().Err(err).Str("ticker", ticker).Msg("bar cache read failed")
	}
	observability.RecordCacheMiss(ticker)

	bars, err := p.upstream.Fetch(ctx, ticker, start, end)
	if err != nil {
		return nil, err
	}

	if err := p.backfill(ctx, ticker, cached, bars); err != nil {
		p.logger.Warn().Err(err).Str("ticker", ticker).Msg("bar cache write failed")
	}
	return bars, nil
}

// backfill inserts only the bars the store does not already hold.
func (p *CachedProvider) backfill(ctx context.Context, ticker string, cached, fetched []domain.PriceBar) error {
	have := make(map[time.Time]struct{}, len(cached))
	for _, b := range cached {
		have[b.Date] = struct{}{}
	}

	missing := make([]domain.PriceBar, 0, len(fetched))
	for _, b := range fetched {
		if _, ok := have[b.Date]; !ok {
			missing = append(missing, b)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	if err := p.store.InsertBulk(ctx, ticker, missing); err != nil {
		// A concurrent run may have inserted the same days; not a failure.
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil
		}
		return fmt.Errorf("backfill %d bars: %w", len(missing), err)
	}
	return nil
}

// covers reports whether the cached bars bracket [start, end] within
// weekend/holiday slack at both edges.
func covers(bars []domain.PriceBar, start, end time.Time) bool {
	if len(bars) == 0 {
		return false
	}
	slack := coverageSlackDays * 24 * time.Hour
	return !bars[0].Date.After(start.Add(slack)) && !bars[len(bars)-1].Date.Before(end.Add(-slack))
}

var _ Provider = (*CachedProvider)(nil)
