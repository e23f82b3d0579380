package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-study-lab/internal/domain"
	"event-study-lab/internal/storage"
)

func testBar(date time.Time, close float64) domain.PriceBar {
	return domain.PriceBar{
		Date:   date,
		Open:   close * 0.99,
		High:   close * 1.02,
		Low:    close * 0.98,
		Close:  close,
		Volume: 12345,
	}
}

func TestBarStore_InsertBulkAndGetByTickerRange(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBarStore(pool)

	bars := []domain.PriceBar{
		testBar(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), 100),
		testBar(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), 101),
		testBar(time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), 102),
	}

	err := store.InsertBulk(ctx, "AAPL", bars)
	require.NoError(t, err)

	got, err := store.GetByTickerRange(ctx, "AAPL",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), got[0].Date)
	assert.Equal(t, 100.0, got[0].Close)
	assert.Equal(t, int64(12345), got[0].Volume)

	// Ordered by date ASC
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i-1].Date.Before(got[i].Date))
	}
}

func TestBarStore_RangeIsInclusive(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBarStore(pool)

	bars := []domain.PriceBar{
		testBar(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), 100),
		testBar(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), 101),
		testBar(time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), 102),
	}
	require.NoError(t, store.InsertBulk(ctx, "AAPL", bars))

	got, err := store.GetByTickerRange(ctx, "AAPL",
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), got[0].Date)
	assert.Equal(t, time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), got[1].Date)
}

func TestBarStore_DuplicateKeyRejectsBatch(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBarStore(pool)

	first := []domain.PriceBar{
		testBar(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), 100),
	}
	require.NoError(t, store.InsertBulk(ctx, "AAPL", first))

	second := []domain.PriceBar{
		testBar(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), 101),
		testBar(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), 100), // duplicate
	}
	err := store.InsertBulk(ctx, "AAPL", second)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Transaction rolled back: the non-duplicate row must not be stored.
	got, err := store.GetByTickerRange(ctx, "AAPL",
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBarStore_SameDateDifferentTickers(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBarStore(pool)

	date := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.InsertBulk(ctx, "AAPL", []domain.PriceBar{testBar(date, 100)}))
	require.NoError(t, store.InsertBulk(ctx, "MSFT", []domain.PriceBar{testBar(date, 400)}))

	got, err := store.GetByTickerRange(ctx, "MSFT", date, date)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 400.0, got[0].Close)
}

func TestBarStore_DeleteBefore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBarStore(pool)

	bars := []domain.PriceBar{
		testBar(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), 100),
		testBar(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), 101),
		testBar(time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), 102),
	}
	require.NoError(t, store.InsertBulk(ctx, "AAPL", bars))

	deleted, err := store.DeleteBefore(ctx, "AAPL", time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	got, err := store.GetByTickerRange(ctx, "AAPL",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), got[0].Date)
}

func TestBarStore_EmptyBatchIsNoop(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBarStore(pool)
	assert.NoError(t, store.InsertBulk(context.Background(), "AAPL", nil))
}
