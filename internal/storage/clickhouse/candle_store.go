package clickhouse

import (
	"context"
	"fmt"

	"zera-sync/internal/domain"
	"zera-sync/internal/storage"
)

// CandleStore implements storage.CandleStore using ClickHouse.
// The candles table is a ReplacingMergeTree keyed by
// (token_address, timeframe, timestamp): re-inserting a key overwrites the
// row at merge time, which gives upsert semantics without a uniqueness
// check on the write path.
type CandleStore struct {
	conn *Conn
}

// NewCandleStore creates a new CandleStore.
func NewCandleStore(conn *Conn) *CandleStore {
	return &CandleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

// Upsert stores candles keyed by (token_address, timeframe, timestamp).
func (s *CandleStore) Upsert(ctx context.Context, candles []domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO candles (
			token_address, timeframe, timestamp, open, high, low, close, volume
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, c := range candles {
		err = batch.Append(
			c.TokenAddress, string(c.Timeframe), uint64(c.Timestamp),
			c.Open, c.High, c.Low, c.Close, c.Volume,
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

// ByTokenTimeframe retrieves candles ordered by timestamp ASC.
// FINAL collapses replaced rows so a re-upserted candle is read once.
func (s *CandleStore) ByTokenTimeframe(ctx context.Context, token string, tf domain.Timeframe) ([]domain.Candle, error) {
	query := `
		SELECT token_address, timeframe, timestamp, open, high, low, close, volume
		FROM candles FINAL
		WHERE token_address = ? AND timeframe = ?
		ORDER BY timestamp ASC
	`

	rows, err := s.conn.Query(ctx, query, token, string(tf))
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	var candles []domain.Candle
	for rows.Next() {
		var (
			c  domain.Candle
			tf string
			ts uint64
		)
		if err := rows.Scan(&c.TokenAddress, &tf, &ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle row: %w", err)
		}
		c.Timeframe = domain.Timeframe(tf)
		c.Timestamp = int64(ts)
		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candle rows: %w", err)
	}

	return candles, nil
}
