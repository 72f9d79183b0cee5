package memory

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
		Close:        close,
		Volume:       10,
	}
}

func TestCandleStore_UpsertOverwrites(t *testing.T) {
	store := NewCandleStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, []domain.Candle{
		testCandle("tok", domain.Timeframe1H, 3600, 10),
	}))
	require.NoError(t, store.Upsert(ctx, []domain.Candle{
		testCandle("tok", domain.Timeframe1H, 3600, 42),
	}))

	got, err := store.ByTokenTimeframe(ctx, "tok", domain.Timeframe1H)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 42.0, got[0].Close)
	assert.Equal(t, 1, store.Len())
}

func TestCandleStore_ScopedAndSorted(t *testing.T) {
	store := NewCandleStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, []domain.Candle{
		testCandle("tok", domain.Timeframe1H, 7200, 2),
		testCandle("tok", domain.Timeframe1H, 3600, 1),
		testCandle("tok", domain.Timeframe1D, 0, 5),
		testCandle("other", domain.Timeframe1H, 3600, 9),
	}))

	got, err := store.ByTokenTimeframe(ctx, "tok", domain.Timeframe1H)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(3600), got[0].Timestamp)
	assert.Equal(t, int64(7200), got[1].Timestamp)
}

func TestCandleStore_FailureInjection(t *testing.T) {
	store := NewCandleStore()
	ctx := context.Background()

	store.FailWrites = true
	assert.Error(t, store.Upsert(ctx, []domain.Candle{testCandle("tok", domain.Timeframe1H, 0, 1)}))

	store.FailWrites = false
	store.FailReads = true
	require.NoError(t, store.Upsert(ctx, []domain.Candle{testCandle("tok", domain.Timeframe1H, 0, 1)}))

	_, err := store.ByTokenTimeframe(ctx, "tok", domain.Timeframe1H)
	assert.Error(t, err)
}
