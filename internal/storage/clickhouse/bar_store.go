// Package clickhouse implements the bar cache on ClickHouse for
// analytical workloads over large price histories.
package clickhouse

import (
	"context"
	"fmt"
	"time"

	"event-study-lab/internal/domain"
	"event-study-lab/internal/observability"
	"event-study-lab/internal/storage"
)

// BarStore implements storage.BarStore using ClickHouse.
type BarStore struct {
	conn *Conn
}

// NewBarStore creates a new BarStore.
func NewBarStore(conn *Conn) *BarStore {
	return &BarStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

// InsertBulk adds multiple bars. MergeTree does not enforce uniqueness
// at insert time, so duplicates against existing rows are checked
// explicitly before the batch is sent.
func (s *BarStore) InsertBulk(ctx context.Context, ticker string, bars []domain.PriceBar) (err error) {
	began := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "insert_bars", time.Since(began).Seconds(), err)
	}()

	if ticker == "" {
		return storage.ErrInvalidInput
	}
	if len(bars) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[int64]struct{}, len(bars))
	for _, bar := range bars {
		key := domain.Day(bar.Date).Unix()
		if _, exists := seen[key]; exists {
			return storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}
	}

	// Check for duplicates against existing rows
	for _, bar := range bars {
		exists, err := s.exists(ctx, ticker, domain.Day(bar.Date))
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_bars (
			ticker, date, open, high, low, close, volume
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, bar := range bars {
		err = batch.Append(
			ticker, domain.Day(bar.Date),
			bar.Open, bar.High, bar.Low, bar.Close, bar.Volume,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTickerRange retrieves bars with dates in [start, end] inclusive,
// ordered by date ASC.
func (s *BarStore) GetByTickerRange(ctx context.Context, ticker string, start, end time.Time) (result []domain.PriceBar, err error) {
	began := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "get_bars_range", time.Since(began).Seconds(), err)
	}()

	query := `
		SELECT date, open, high, low, close, volume
		FROM price_bars FINAL
		WHERE ticker = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, ticker, domain.Day(start), domain.Day(end))
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

// DeleteBefore removes bars older than cutoff for a ticker. ClickHouse
// mutations are asynchronous, so the affected count is computed first.
func (s *BarStore) DeleteBefore(ctx context.Context, ticker string, cutoff time.Time) (n int64, err error) {
	began := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "delete_bars_before", time.Since(began).Seconds(), err)
	}()

	limit := domain.Day(cutoff)

	var count uint64
	countQuery := `SELECT count() FROM price_bars FINAL WHERE ticker = ? AND date < ?`
	if err := s.conn.QueryRow(ctx, countQuery, ticker, limit).Scan(&count); err != nil {
		return 0, fmt.Errorf("count bars before cutoff: %w", err)
	}

	deleteQuery := `ALTER TABLE price_bars DELETE WHERE ticker = ? AND date < ?`
	if err := s.conn.Exec(ctx, deleteQuery, ticker, limit); err != nil {
		return 0, fmt.Errorf("delete bars before cutoff: %w", err)
	}

	return int64(count), nil
}

// exists checks whether a bar is stored for (ticker, date).
func (s *BarStore) exists(ctx context.Context, ticker string, date time.Time) (bool, error) {
	query := `SELECT count() FROM price_bars FINAL WHERE ticker = ? AND date = ?`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, ticker, date).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
