// Package candles keeps the persistent candle store consistent with the
// upstream OHLCV API while serving degraded-but-available reads.
package candles

import (
	"context"
	"log"
	"sort"
	"time"

	"zera-sync/internal/domain"
	"zera-sync/internal/storage"
	"zera-sync/internal/storage/async"
)

// Source fetches fresh candles from the upstream API.
type Source interface {
	FetchOHLCV(ctx context.Context, poolAddress, tokenAddress string, tf domain.Timeframe, limit int) ([]domain.Candle, error)
}

// Cache merges freshly fetched candles with previously persisted ones and
// decides which candles are safe to persist.
type Cache struct {
	store  storage.CandleStore
	source Source
	writer *async.Writer
	logger *log.Logger
	now    func() time.Time
}

// CacheOptions configures a Cache.
type CacheOptions struct {
	Store  storage.CandleStore
	Source Source
	Writer *async.Writer
	Logger *log.Logger
	Now    func() time.Time
}

// NewCache creates a candle cache.
func NewCache(opts CacheOptions) *Cache {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Cache{
		store:  opts.Store,
		source: opts.Source,
		writer: opts.Writer,
		logger: logger,
		now:    now,
	}
}

// Cached returns previously persisted candles ascending by timestamp.
// The read path never raises: a store failure or empty cache both come
// back as an empty slice.
func (c *Cache) Cached(ctx context.Context, token string, tf domain.Timeframe) []domain.Candle {
	if c.store == nil {
		return nil
	}
	cached, err := c.store.ByTokenTimeframe(ctx, token, tf)
	if err != nil {
		c.logger.Printf("Candle cache read failed for %s/%s: %v", token, tf, err)
		return nil
	}
	return cached
}

// Merge unions cached and fresh candles keyed by timestamp. On collision
// fresh wins: the fetch is authoritative over a possibly-stale cache.
// Output is deduplicated and sorted ascending.
func Merge(cached, fresh []domain.Candle) []domain.Candle {
	byTimestamp := make(map[int64]domain.Candle, len(cached)+len(fresh))
	for _, c := range cached {
		byTimestamp[c.Timestamp] = c
	}
	for _, f := range fresh {
		byTimestamp[f.Timestamp] = f
	}

	merged := make([]domain.Candle, 0, len(byTimestamp))
	for _, c := range byTimestamp {
		merged = append(merged, c)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}

// SaveComplete persists the complete candles among fresh. The write runs
// on the background writer: its failure is logged there, never propagated
// to the caller.
func (c *Cache) SaveComplete(token string, tf domain.Timeframe, fresh []domain.Candle) {
	if c.store == nil || c.writer == nil {
		return
	}

	now := c.now()
	complete := make([]domain.Candle, 0, len(fresh))
	for _, candle := range fresh {
		if candle.CompleteAt(now) {
			complete = append(complete, candle)
		}
	}
	if len(complete) == 0 {
		return
	}

	c.writer.Submit("save candles "+token+"/"+string(tf), func(ctx context.Context) error {
		return c.store.Upsert(ctx, complete)
	})
}

// Refresh fetches fresh candles, merges them with the cache, schedules the
// complete ones for persistence, and returns the merged view. If the fetch
// fails the cached candles are returned as a degraded result; if the cache
// is also empty the result is an empty slice. Refresh never returns an
// error to the read path.
func (c *Cache) Refresh(ctx context.Context, poolAddress, token string, tf domain.Timeframe, limit int) []domain.Candle {
	cached := c.Cached(ctx, token, tf)

	if c.source == nil {
		return cached
	}

	fresh, err := c.source.FetchOHLCV(ctx, poolAddress, token, tf, limit)
	if err != nil {
		c.logger.Printf("Candle fetch failed for %s/%s, serving %d cached: %v", token, tf, len(cached), err)
		return cached
	}

	c.SaveComplete(token, tf, fresh)

	return Merge(cached, fresh)
}
