package candles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zera-sync/internal/domain"
)

func history(name string, candles ...domain.Candle) PoolHistory {
	return PoolHistory{
		PoolName:    name,
		PoolAddress: name + "-addr",
		TokenSymbol: "ZRA",
		Candles:     candles,
	}
}

func TestConsolidate_InterleavesPoolsByTimestamp(t *testing.T) {
	points := Consolidate([]PoolHistory{
		history("raydium", candle(300, 3), candle(100, 1)),
		history("pumpswap", candle(200, 2)),
		history("empty"),
	})

	require.Len(t, points, 3)
	assert.Equal(t, []int64{100, 200, 300}, []int64{points[0].Timestamp, points[1].Timestamp, points[2].Timestamp})
	assert.Equal(t, "raydium", points[0].PoolName)
	assert.Equal(t, "pumpswap", points[1].PoolName)
	assert.Equal(t, "raydium", points[2].PoolName)
}

func TestConsolidate_Empty(t *testing.T) {
	assert.Empty(t, Consolidate(nil))
	assert.Empty(t, Consolidate([]PoolHistory{history("empty")}))
}

func TestInterpolateGaps_BridgesMigrationGap(t *testing.T) {
	// One hour of dead air between the last pumpswap candle and the
	// first raydium candle; hourly steps should add exactly one point
	// halfway through.
	points := []TimelinePoint{
		{Timestamp: 0, Close: 10, Volume: 100, PoolName: "pumpswap"},
		{Timestamp: 7200, Close: 20, Volume: 200, PoolName: "raydium"},
	}

	out := InterpolateGaps(points, []int64{3600}, 3600)

	require.Len(t, out, 3)
	mid := out[1]
	assert.True(t, mid.Interpolated)
	assert.Equal(t, int64(3600), mid.Timestamp)
	assert.InDelta(t, 15.0, mid.Close, 1e-9) // linear between 10 and 20
	assert.Equal(t, "pumpswap_to_raydium", mid.PoolName)
	// Midpoint of the gap: full valley depth.
	assert.InDelta(t, (100+200)*0.3, mid.Volume, 1e-9)
}

func TestInterpolateGaps_VolumeValleyShape(t *testing.T) {
	points := []TimelinePoint{
		{Timestamp: 0, Close: 10, Volume: 100, PoolName: "a"},
		{Timestamp: 4000, Close: 10, Volume: 100, PoolName: "b"},
	}

	out := InterpolateGaps(points, []int64{2000}, 1000)

	var synthetic []TimelinePoint
	for _, p := range out {
		if p.Interpolated {
			synthetic = append(synthetic, p)
		}
	}
	require.Len(t, synthetic, 3)

	// Volume dips toward the midpoint and recovers.
	assert.Greater(t, synthetic[1].Volume, 0.0)
	assert.Less(t, synthetic[0].Volume, synthetic[1].Volume)
	assert.Less(t, synthetic[2].Volume, synthetic[1].Volume)
	assert.InDelta(t, synthetic[0].Volume, synthetic[2].Volume, 1e-9)
}

func TestInterpolateGaps_SmallGapUntouched(t *testing.T) {
	points := []TimelinePoint{
		{Timestamp: 0, Close: 10},
		{Timestamp: 3600, Close: 20},
	}

	out := InterpolateGaps(points, []int64{1800}, 3600)
	assert.Len(t, out, 2)
}

func TestInterpolateGaps_MigrationOutsideData(t *testing.T) {
	points := []TimelinePoint{
		{Timestamp: 100, Close: 10},
		{Timestamp: 200, Close: 20},
	}

	// No real point after the migration timestamp: nothing to bridge.
	out := InterpolateGaps(points, []int64{500}, 10)
	assert.Len(t, out, 2)
}

func TestSummarize_SkipsInterpolatedPoints(t *testing.T) {
	points := []TimelinePoint{
		{Timestamp: 100, Close: 10, High: 12, Low: 9, Volume: 50},
		{Timestamp: 200, Close: 99, High: 999, Low: 0.1, Volume: 9999, Interpolated: true},
		{Timestamp: 300, Close: 15, High: 16, Low: 11, Volume: 70},
	}

	stats := Summarize(points)

	assert.Equal(t, 2, stats.Points)
	assert.Equal(t, int64(100), stats.StartTime)
	assert.Equal(t, int64(300), stats.EndTime)
	assert.Equal(t, 10.0, stats.StartPrice)
	assert.Equal(t, 15.0, stats.EndPrice)
	assert.InDelta(t, 50.0, stats.ChangePct, 1e-9)
	assert.Equal(t, 16.0, stats.Highest)
	assert.Equal(t, 9.0, stats.Lowest)
	assert.Equal(t, 120.0, stats.TotalVolume)
}

func TestSummarize_Empty(t *testing.T) {
	stats := Summarize(nil)
	assert.Equal(t, SummaryStats{}, stats)
	assert.Zero(t, stats.ChangePct)
}
