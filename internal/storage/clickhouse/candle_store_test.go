package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zera-sync/internal/domain"
)

func testCandle(token string, tf domain.Timeframe, ts int64, close float64) domain.Candle {
	return domain.Candle{
		TokenAddress: token,
		Timeframe:    tf,
		Timestamp:    ts,
		Open:         close - 1,
		High:         close + 1,
		Low:          close - 2,
		Close:        close,
		Volume:       1000,
	}
}

func TestCandleStore_UpsertAndRead(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCandleStore(conn)
	ctx := context.Background()

	candles := []domain.Candle{
		testCandle("tok1", domain.Timeframe1H, 7200, 20),
		testCandle("tok1", domain.Timeframe1H, 3600, 10),
		testCandle("tok1", domain.Timeframe1D, 0, 5),
		testCandle("tok2", domain.Timeframe1H, 3600, 99),
	}
	require.NoError(t, store.Upsert(ctx, candles))

	got, err := store.ByTokenTimeframe(ctx, "tok1", domain.Timeframe1H)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Ascending by timestamp, scoped to token and timeframe.
	assert.Equal(t, int64(3600), got[0].Timestamp)
	assert.Equal(t, 10.0, got[0].Close)
	assert.Equal(t, int64(7200), got[1].Timestamp)
	assert.Equal(t, 20.0, got[1].Close)
}

func TestCandleStore_UpsertOverwrites(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCandleStore(conn)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, []domain.Candle{
		testCandle("tok1", domain.Timeframe1H, 3600, 10),
	}))
	require.NoError(t, store.Upsert(ctx, []domain.Candle{
		testCandle("tok1", domain.Timeframe1H, 3600, 42),
	}))

	got, err := store.ByTokenTimeframe(ctx, "tok1", domain.Timeframe1H)
	require.NoError(t, err)
	require.Len(t, got, 1, "FINAL must collapse the replaced row")
	assert.Equal(t, 42.0, got[0].Close)
}

func TestCandleStore_EmptyUpsertAndEmptyRead(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCandleStore(conn)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, nil))

	got, err := store.ByTokenTimeframe(ctx, "missing", domain.Timeframe1H)
	require.NoError(t, err)
	assert.Empty(t, got)
}
