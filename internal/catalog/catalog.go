// Package catalog maintains the searchable asset reference list used to
// resolve tickers for analysis requests.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"event-study-lab/internal/domain"
	"event-study-lab/internal/storage"
)

// defaultAssets is the seeded reference universe: major US equities,
// indices, ETFs, FX pairs and crypto tickers.
var defaultAssets = []domain.AssetInfo{
	{Symbol: "AAPL", Name: "Apple Inc.", Class: domain.AssetClassEquity},
	{Symbol: "MSFT", Name: "Microsoft Corporation", Class: domain.AssetClassEquity},
	{Symbol: "GOOGL", Name: "Alphabet Inc.", Class: domain.AssetClassEquity},
	{Symbol: "AMZN", Name: "Amazon.com Inc.", Class: domain.AssetClassEquity},
	{Symbol: "NVDA", Name: "NVIDIA Corporation", Class: domain.AssetClassEquity},
	{Symbol: "META", Name: "Meta Platforms Inc.", Class: domain.AssetClassEquity},
	{Symbol: "TSLA", Name: "Tesla Inc.", Class: domain.AssetClassEquity},
	{Symbol: "JPM", Name: "JPMorgan Chase & Co.", Class: domain.AssetClassEquity},
	{Symbol: "V", Name: "Visa Inc.", Class: domain.AssetClassEquity},
	{Symbol: "WMT", Name: "Walmart Inc.", Class: domain.AssetClassEquity},
	{Symbol: "XOM", Name: "Exxon Mobil Corporation", Class: domain.AssetClassEquity},
	{Symbol: "JNJ", Name: "Johnson & Johnson", Class: domain.AssetClassEquity},
	{Symbol: "BAC", Name: "Bank of America Corporation", Class: domain.AssetClassEquity},
	{Symbol: "KO", Name: "The Coca-Cola Company", Class: domain.AssetClassEquity},
	{Symbol: "PFE", Name: "Pfizer Inc.", Class: domain.AssetClassEquity},

	{Symbol: "^GSPC", Name: "S&P 500 Index", Class: domain.AssetClassIndex},
	{Symbol: "^DJI", Name: "Dow Jones Industrial Average", Class: domain.AssetClassIndex},
	{Symbol: "^IXIC", Name: "NASDAQ Composite", Class: domain.AssetClassIndex},
	{Symbol: "^RUT", Name: "Russell 2000 Index", Class: domain.AssetClassIndex},
	{Symbol: "^VIX", Name: "CBOE Volatility Index", Class: domain.AssetClassIndex},

	{Symbol: "SPY", Name: "SPDR S&P 500 ETF Trust", Class: domain.AssetClassETF},
	{Symbol: "QQQ", Name: "Invesco QQQ Trust", Class: domain.AssetClassETF},
	{Symbol: "IWM", Name: "iShares Russell 2000 ETF", Class: domain.AssetClassETF},
	{Symbol: "GLD", Name: "SPDR Gold Shares", Class: domain.AssetClassETF},
	{Symbol: "TLT", Name: "iShares 20+ Year Treasury Bond ETF", Class: domain.AssetClassETF},

	{Symbol: "EURUSD=X", Name: "EUR/USD", Class: domain.AssetClassFX},
	{Symbol: "GBPUSD=X", Name: "GBP/USD", Class: domain.AssetClassFX},
	{Symbol: "JPY=X", Name: "USD/JPY", Class: domain.AssetClassFX},

	{Symbol: "BTC-USD", Name: "Bitcoin USD", Class: domain.AssetClassCrypto},
	{Symbol: "ETH-USD", Name: "Ethereum USD", Class: domain.AssetClassCrypto},
}

// Service exposes catalog seeding and search over an AssetStore.
type Service struct {
	store storage.AssetStore
}

// NewService creates a new catalog service.
func NewService(store storage.AssetStore) *Service {
	return &Service{store: store}
}

// Seed inserts the default reference list. Entries already present are
// left untouched, so Seed is safe to run on every startup.
func (s *Service) Seed(ctx context.Context) error {
	for i := range defaultAssets {
		entry := defaultAssets[i]
		if err := s.store.Insert(ctx, &entry); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				continue
			}
			return fmt.Errorf("seed %s: %w", entry.Symbol, err)
		}
	}
	return nil
}

// Search finds catalog entries matching the query, case-insensitive over
// symbol and name, ordered by symbol.
func (s *Service) Search(ctx context.Context, query string) ([]*domain.AssetInfo, error) {
	return s.store.Search(ctx, query)
}

// Lookup resolves a single symbol.
func (s *Service) Lookup(ctx context.Context, symbol string) (*domain.AssetInfo, error) {
	return s.store.GetBySymbol(ctx, symbol)
}
