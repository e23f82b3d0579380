package postgres

import (
	"context"
	"fmt"
	"time"

	"event-study-lab/internal/domain"
	"event-study-lab/internal/observability"
	"event-study-lab/internal/storage"
)

// BarStore implements storage.BarStore using PostgreSQL.
type BarStore struct {
	pool *Pool
}

// NewBarStore creates a new BarStore.
func NewBarStore(pool *Pool) *BarStore {
	return &BarStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

// InsertBulk adds multiple bars atomically. Fails the entire batch on
// any duplicate (ticker, date).
func (s *BarStore) InsertBulk(ctx context.Context, ticker string, bars []domain.PriceBar) (err error) {
	began := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "insert_bars", time.Since(began).Seconds(), err)
	}()

	if ticker == "" {
		return storage.ErrInvalidInput
	}
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO price_bars (
			ticker, date, open, high, low, close, volume
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for _, bar := range bars {
		_, err := tx.Exec(ctx, query,
			ticker,
			domain.Day(bar.Date),
			bar.Open,
			bar.High,
			bar.Low,
			bar.Close,
			bar.Volume,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert bar in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByTickerRange retrieves bars with dates in [start, end] inclusive,
// ordered by date ASC.
func (s *BarStore) GetByTickerRange(ctx context.Context, ticker string, start, end time.Time) (result []domain.PriceBar, err error) {
	began := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "get_bars_range", time.Since(began).Seconds(), err)
	}()

	query := `
		SELECT date, open, high, low, close, volume
		FROM price_bars
		WHERE ticker = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`

	rows, err := s.pool.Query(ctx, query, ticker, domain.Day(start), domain.Day(end))
	if err != nil {
		return nil, fmt.Errorf("get bars by ticker range: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var bar domain.PriceBar
		if err := rows.Scan(&bar.Date, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		bar.Date = domain.Day(bar.Date)
		result = append(result, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bars: %w", err)
	}

	return result, nil
}

// DeleteBefore removes bars older than cutoff for a ticker.
func (s *BarStore) DeleteBefore(ctx context.Context, ticker string, cutoff time.Time) (n int64, err error) {
	began := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "delete_bars_before", time.Since(began).Seconds(), err)
	}()

	query := `DELETE FROM price_bars WHERE ticker = $1 AND date < $2`

	tag, err := s.pool.Exec(ctx, query, ticker, domain.Day(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete bars before cutoff: %w", err)
	}

	return tag.RowsAffected(), nil
}
