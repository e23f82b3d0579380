// Package redis implements the bar cache on Redis for short-lived,
// shared caching between processes.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"event-study-lab/internal/domain"
	"event-study-lab/internal/storage"
)

// DefaultTTL bounds how long cached bars stay valid. Daily bars go
// stale slowly; one week keeps recent event studies warm without
// serving months-old data forever.
const DefaultTTL = 7 * 24 * time.Hour

// Client wraps redis.Client for dependency injection.
type Client struct {
	*redis.Client
}

// NewClient creates a new Redis client and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{Client: client}, nil
}

// BarStore implements storage.BarStore using Redis. Bars live in one
// hash per ticker, keyed by day unix timestamp, with a TTL refreshed on
// every write.
type BarStore struct {
	client *Client
	ttl    time.Duration
}

// NewBarStore creates a new BarStore with the default TTL.
func NewBarStore(client *Client) *BarStore {
	return &BarStore{client: client, ttl: DefaultTTL}
}

// NewBarStoreWithTTL creates a new BarStore with a custom TTL.
func NewBarStoreWithTTL(client *Client, ttl time.Duration) *BarStore {
	return &BarStore{client: client, ttl: ttl}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

func barKey(ticker string) string {
	return "bars:" + ticker
}

// InsertBulk adds multiple bars for one ticker. Fails the entire batch
// on any duplicate (ticker, date).
func (s *BarStore) InsertBulk(ctx context.Context, ticker string, bars []domain.PriceBar) error {
	if ticker == "" {
		return storage.ErrInvalidInput
	}
	if len(bars) == 0 {
		return nil
	}

	key := barKey(ticker)

	fields := make([]string, 0, len(bars))
	batchKeys := make(map[string]struct{}, len(bars))
	for _, bar := range bars {
		field := strconv.FormatInt(domain.Day(bar.Date).Unix(), 10)
		if _, exists := batchKeys[field]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[field] = struct{}{}
		fields = append(fields, field)
	}

	// Check duplicates against stored fields before writing.
	existing, err := s.client.HMGet(ctx, key, fields...).Result()
	if err != nil {
		return fmt.Errorf("check existing bars: %w", err)
	}
	for _, v := range existing {
		if v != nil {
			return storage.ErrDuplicateKey
		}
	}

	values := make(map[string]interface{}, len(bars))
	for i, bar := range bars {
		bar.Date = domain.Day(bar.Date)
		data, err := json.Marshal(bar)
		if err != nil {
			return fmt.Errorf("marshal bar: %w", err)
		}
		values[fields[i]] = data
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, values)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store bars: %w", err)
	}

	return nil
}

// GetByTickerRange retrieves bars with dates in [start, end] inclusive,
// ordered by date ASC.
func (s *BarStore) GetByTickerRange(ctx context.Context, ticker string, start, end time.Time) ([]domain.PriceBar, error) {
	stored, err := s.client.HGetAll(ctx, barKey(ticker)).Result()
	if err != nil {
		return nil, fmt.Errorf("load bars: %w", err)
	}

	lo := domain.Day(start).Unix()
	hi := domain.Day(end).Unix()

	var bars []domain.PriceBar
	for field, raw := range stored {
		day, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse bar field %q: %w", field, err)
		}
		if day < lo || day > hi {
			continue
		}
		var bar domain.PriceBar
		if err := json.Unmarshal([]byte(raw), &bar); err != nil {
			return nil, fmt.Errorf("unmarshal bar: %w", err)
		}
		bars = append(bars, bar)
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Date.Before(bars[j].Date)
	})

	return bars, nil
}

// DeleteBefore removes bars older than cutoff for a ticker.
func (s *BarStore) DeleteBefore(ctx context.Context, ticker string, cutoff time.Time) (int64, error) {
	key := barKey(ticker)

	stored, err := s.client.HKeys(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("load bar fields: %w", err)
	}

	limit := domain.Day(cutoff).Unix()

	var old []string
	for _, field := range stored {
		day, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse bar field %q: %w", field, err)
		}
		if day < limit {
			old = append(old, field)
		}
	}
	if len(old) == 0 {
		return 0, nil
	}

	deleted, err := s.client.HDel(ctx, key, old...).Result()
	if err != nil {
		return 0, fmt.Errorf("delete old bars: %w", err)
	}

	return deleted, nil
}
