// Package storage defines the persistence interfaces backing the
// price-history cache and the asset reference catalog. Analysis results
// are never persisted; storage exists so external-data fetches can be
// cached through an explicit, injectable collaborator.
package storage

import (
	"context"
	"time"

	"event-study-lab/internal/domain"
)

// BarStore caches daily price bars per ticker.
type BarStore interface {
	// InsertBulk adds multiple bars for one ticker. Returns ErrDuplicateKey
	// if any (ticker, date) pair already exists; the batch is rejected whole.
	InsertBulk(ctx context.Context, ticker string, bars []domain.PriceBar) error

	// GetByTickerRange retrieves bars for a ticker with dates in
	// [start, end] inclusive, ordered by date ASC.
	GetByTickerRange(ctx context.Context, ticker string, start, end time.Time) ([]domain.PriceBar, error)

	// DeleteBefore removes bars older than cutoff for a ticker and reports
	// how many were removed. Used by pruning, not by analysis runs.
	DeleteBefore(ctx context.Context, ticker string, cutoff time.Time) (int64, error)
}

// AssetStore holds the searchable asset reference catalog.
type AssetStore interface {
	// Insert adds a catalog entry. Returns ErrDuplicateKey if the symbol exists.
	Insert(ctx context.Context, a *domain.AssetInfo) error

	// GetBySymbol retrieves an entry by symbol. Returns ErrNotFound if absent.
	GetBySymbol(ctx context.Context, symbol string) (*domain.AssetInfo, error)

	// Search returns entries whose symbol or name contains the query,
	// case-insensitive, ordered by symbol ASC.
	Search(ctx context.Context, query string) ([]*domain.AssetInfo, error)
}
