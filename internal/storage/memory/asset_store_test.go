package memory

import (
	"context"
	"errors"
	"testing"

	"event-study-lab/internal/domain"
	"event-study-lab/internal/storage"
)

func TestAssetStoreInsertAndGet(t *testing.T) {
	store := NewAssetStore()
	ctx := context.Background()

	entry := &domain.AssetInfo{Symbol: "AAPL", Name: "Apple Inc.", Class: domain.AssetClassEquity}
	if err := store.Insert(ctx, entry); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetBySymbol(ctx, "AAPL")
	if err != nil {
		t.Fatalf("GetBySymbol failed: %v", err)
	}
	if got.Name != "Apple Inc." {
		t.Errorf("expected Apple Inc., got %s", got.Name)
	}

	// Mutating the returned copy must not affect the store.
	got.Name = "changed"
	again, err := store.GetBySymbol(ctx, "AAPL")
	if err != nil {
		t.Fatalf("GetBySymbol failed: %v", err)
	}
	if again.Name != "Apple Inc." {
		t.Error("store returned a shared pointer instead of a copy")
	}
}

func TestAssetStoreNotFound(t *testing.T) {
	store := NewAssetStore()

	_, err := store.GetBySymbol(context.Background(), "ZZZZ")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAssetStoreDuplicate(t *testing.T) {
	store := NewAssetStore()
	ctx := context.Background()

	entry := &domain.AssetInfo{Symbol: "AAPL", Name: "Apple Inc.", Class: domain.AssetClassEquity}
	if err := store.Insert(ctx, entry); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	err := store.Insert(ctx, entry)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestAssetStoreSearch(t *testing.T) {
	store := NewAssetStore()
	ctx := context.Background()

	entries := []*domain.AssetInfo{
		{Symbol: "MSFT", Name: "Microsoft Corporation", Class: domain.AssetClassEquity},
		{Symbol: "AAPL", Name: "Apple Inc.", Class: domain.AssetClassEquity},
		{Symbol: "^GSPC", Name: "S&P 500 Index", Class: domain.AssetClassIndex},
	}
	for _, e := range entries {
		if err := store.Insert(ctx, e); err != nil {
			t.Fatalf("Insert %s failed: %v", e.Symbol, err)
		}
	}

	// Case-insensitive match on name.
	got, err := store.Search(ctx, "apple")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 1 || got[0].Symbol != "AAPL" {
		t.Errorf("unexpected search result: %+v", got)
	}

	// Symbol substring match, ordered by symbol ASC.
	got, err = store.Search(ctx, "s")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].Symbol > got[1].Symbol {
		t.Error("results not ordered by symbol ASC")
	}
}
