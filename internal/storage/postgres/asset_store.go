package postgres

import (
	"context"
	"fmt"
	"time"

	"event-study-lab/internal/domain"
	"event-study-lab/internal/observability"
	"event-study-lab/internal/storage"
)

// AssetStore implements storage.AssetStore using PostgreSQL.
type AssetStore struct {
	pool *Pool
}

// NewAssetStore creates a new AssetStore.
func NewAssetStore(pool *Pool) *AssetStore {
	return &AssetStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AssetStore = (*AssetStore)(nil)

// Insert adds a catalog entry. Returns ErrDuplicateKey if the symbol exists.
func (s *AssetStore) Insert(ctx context.Context, a *domain.AssetInfo) (err error) {
	began := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "insert_asset", time.Since(began).Seconds(), err)
	}()

	if a == nil || a.Symbol == "" {
		return storage.ErrInvalidInput
	}

	query := `INSERT INTO asset_catalog (symbol, name, class) VALUES ($1, $2, $3)`

	_, err = s.pool.Exec(ctx, query, a.Symbol, a.Name, string(a.Class))
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

// GetBySymbol retrieves an entry by symbol.
func (s *AssetStore) GetBySymbol(ctx context.Context, symbol string) (info *domain.AssetInfo, err error) {
	began := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "get_asset", time.Since(began).Seconds(), err)
	}()

	query := `SELECT symbol, name, class FROM asset_catalog WHERE symbol = $1`

	var a domain.AssetInfo
	var class string
	err = s.pool.QueryRow(ctx, query, symbol).Scan(&a.Symbol, &a.Name, &class)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get asset by symbol: %w", err)
	}
	a.Class = domain.AssetClass(class)

	return &a, nil
}

// Search returns entries whose symbol or name contains the query,
// case-insensitive, ordered by symbol ASC.
func (s *AssetStore) Search(ctx context.Context, query string) (result []*domain.AssetInfo, err error) {
	began := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "search_assets", time.Since(began).Seconds(), err)
	}()

	sql := `
		SELECT symbol, name, class
		FROM asset_catalog
		WHERE symbol ILIKE '%' || $1 || '%' OR name ILIKE '%' || $1 || '%'
		ORDER BY symbol ASC
	`

	rows, err := s.pool.Query(ctx, sql, query)
	if err != nil {
		return nil, fmt.Errorf("search assets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a domain.AssetInfo
		var class string
		if err := rows.Scan(&a.Symbol, &a.Name, &class); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		a.Class = domain.AssetClass(class)
		result = append(result, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assets: %w", err)
	}

	return result, nil
}
