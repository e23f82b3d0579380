package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"event-study-lab/internal/domain"
	"event-study-lab/internal/storage"
)

// BarStore is an in-memory implementation of storage.BarStore.
type BarStore struct {
	mu   sync.RWMutex
	data map[string]map[int64]domain.PriceBar // ticker -> day unix -> bar
}

// NewBarStore creates a new in-memory bar store.
func NewBarStore() *BarStore {
	return &BarStore{
		data: make(map[string]map[int64]domain.PriceBar),
	}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

// InsertBulk adds multiple bars for one ticker. Fails the entire batch
// on any duplicate (ticker, date).
func (s *BarStore) InsertBulk(_ context.Context, ticker string, bars []domain.PriceBar) error {
	if ticker == "" {
		return storage.ErrInvalidInput
	}
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.data[ticker]

	// First pass: check for duplicates (existing + intra-batch)
	batchKeys := make(map[int64]struct{}, len(bars))
	for _, bar := range bars {
		if bar.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		key := domain.Day(bar.Date).Unix()
		if _, exists := existing[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	if existing == nil {
		existing = make(map[int64]domain.PriceBar, len(bars))
		s.data[ticker] = existing
	}
	for _, bar := range bars {
		bar.Date = domain.Day(bar.Date)
		existing[bar.Date.Unix()] = bar
	}

	return nil
}

// GetByTickerRange retrieves bars with dates in [start, end] inclusive,
// ordered by date ASC.
func (s *BarStore) GetByTickerRange(_ context.Context, ticker string, start, end time.Time) ([]domain.PriceBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lo := domain.Day(start).Unix()
	hi := domain.Day(end).Unix()

	var result []domain.PriceBar
	for key, bar := range s.data[ticker] {
		if key >= lo && key <= hi {
			result = append(result, bar)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})

	return result, nil
}

// DeleteBefore removes bars older than cutoff for a ticker.
func (s *BarStore) DeleteBefore(_ context.Context, ticker string, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := domain.Day(cutoff).Unix()

	var deleted int64
	for key := range s.data[ticker] {
		if key < limit {
			delete(s.data[ticker], key)
			deleted++
		}
	}

	return deleted, nil
}
