package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"event-study-lab/internal/domain"
	"event-study-lab/internal/storage"
)

// AssetStore is an in-memory implementation of storage.AssetStore.
type AssetStore struct {
	mu   sync.RWMutex
	data map[string]*domain.AssetInfo // keyed by symbol
}

// NewAssetStore creates a new in-memory asset store.
func NewAssetStore() *AssetStore {
	return &AssetStore{
		data: make(map[string]*domain.AssetInfo),
	}
}

// Compile-time interface check.
var _ storage.AssetStore = (*AssetStore)(nil)

// Insert adds a catalog entry. Returns ErrDuplicateKey if the symbol exists.
func (s *AssetStore) Insert(_ context.Context, a *domain.AssetInfo) error {
	if a == nil || a.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[a.Symbol]; exists {
		return storage.ErrDuplicateKey
	}

	entry := *a
	s.data[a.Symbol] = &entry
	return nil
}

// GetBySymbol retrieves an entry by symbol.
func (s *AssetStore) GetBySymbol(_ context.Context, symbol string) (*domain.AssetInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.data[symbol]
	if !ok {
		return nil, storage.ErrNotFound
	}

	entry := *a
	return &entry, nil
}

// Search returns entries whose symbol or name contains the query,
// case-insensitive, ordered by symbol ASC.
func (s *AssetStore) Search(_ context.Context, query string) ([]*domain.AssetInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(query)

	var result []*domain.AssetInfo
	for _, a := range s.data {
		if strings.Contains(strings.ToLower(a.Symbol), q) ||
			strings.Contains(strings.ToLower(a.Name), q) {
			entry := *a
			result = append(result, &entry)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol < result[j].Symbol
	})

	return result, nil
}
