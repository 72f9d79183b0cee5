package candles

import (
	"sort"

	"zera-sync/internal/domain"
)

// PoolHistory is the candle history of one pool in a project's lineage.
type PoolHistory struct {
	PoolName    string
	PoolAddress string
	TokenSymbol string
	Candles     []domain.Candle
}

// TimelinePoint is one entry of a consolidated cross-pool timeline.
type TimelinePoint struct {
	Timestamp    int64
	Open         float64
	High         float64
	Low          float64
	Close        float64
	Volume       float64
	PoolName     string
	PoolAddress  string
	TokenSymbol  string
	Interpolated bool // synthetic point bridging a migration gap
}

// Consolidate merges the candle histories of successive pools into a
// single timeline ordered by timestamp. Pools with no data are skipped.
func Consolidate(histories []PoolHistory) []TimelinePoint {
	var points []TimelinePoint
	for _, h := range histories {
		for _, c := range h.Candles {
			points = append(points, TimelinePoint{
				Timestamp:   c.Timestamp,
				Open:        c.Open,
				High:        c.High,
				Low:         c.Low,
				Close:       c.Close,
				Volume:      c.Volume,
				PoolName:    h.PoolName,
				PoolAddress: h.PoolAddress,
				TokenSymbol: h.TokenSymbol,
			})
		}
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp < points[j].Timestamp
	})
	return points
}

// InterpolateGaps inserts synthetic points across each migration boundary
// whose gap exceeds stepSeconds, linearly interpolating price between the
// last real point before and the first real point after the migration.
// Volume tapers toward the gap midpoint. Synthetic points are flagged so
// consumers can exclude them from aggregates.
func InterpolateGaps(points []TimelinePoint, migrationTimestamps []int64, stepSeconds int64) []TimelinePoint {
	if stepSeconds <= 0 || len(points) < 2 {
		return points
	}

	out := append([]TimelinePoint(nil), points...)

	for _, migrationTS := range migrationTimestamps {
		var before, after *TimelinePoint
		for i := range out {
			p := &out[i]
			if p.Interpolated {
				continue
			}
			if p.Timestamp < migrationTS {
				if before == nil || p.Timestamp > before.Timestamp {
					before = p
				}
			} else {
				if after == nil || p.Timestamp < after.Timestamp {
					after = p
				}
			}
		}
		if before == nil || after == nil {
			continue
		}

		gap := after.Timestamp - before.Timestamp
		if gap <= stepSeconds {
			continue
		}

		steps := int(gap / stepSeconds)
		for i := 1; i <= steps; i++ {
			ts := before.Timestamp + int64(i)*stepSeconds
			if ts >= after.Timestamp {
				break
			}
			ratio := float64(ts-before.Timestamp) / float64(gap)
			price := before.Close + ratio*(after.Close-before.Close)
			// Valley at the midpoint: trading activity dries up while
			// liquidity moves between pools.
			volumeRatio := 1 - 2*abs(ratio-0.5)
			volume := (before.Volume + after.Volume) * volumeRatio * 0.3

			out = append(out, TimelinePoint{
				Timestamp:    ts,
				Open:         price,
				High:         price,
				Low:          price,
				Close:        price,
				Volume:       volume,
				PoolName:     before.PoolName + "_to_" + after.PoolName,
				PoolAddress:  before.PoolAddress,
				TokenSymbol:  before.TokenSymbol,
				Interpolated: true,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}

// SummaryStats summarizes a consolidated timeline.
type SummaryStats struct {
	Points      int
	StartTime   int64
	EndTime     int64
	StartPrice  float64
	EndPrice    float64
	ChangePct   float64
	Highest     float64
	Lowest      float64
	TotalVolume float64
}

// Summarize computes summary statistics over the real (non-interpolated)
// points of a timeline. Returns the zero value for an empty timeline.
func Summarize(points []TimelinePoint) SummaryStats {
	var stats SummaryStats
	first := true

	for _, p := range points {
		if p.Interpolated {
			continue
		}
		if first {
			stats.StartTime = p.Timestamp
			stats.StartPrice = p.Close
			stats.Highest = p.High
			stats.Lowest = p.Low
			first = false
		}
		stats.Points++
		stats.EndTime = p.Timestamp
		stats.EndPrice = p.Close
		if p.High > stats.Highest {
			stats.Highest = p.High
		}
		if p.Low < stats.Lowest {
			stats.Lowest = p.Low
		}
		stats.TotalVolume += p.Volume
	}

	if stats.StartPrice != 0 {
		stats.ChangePct = (stats.EndPrice - stats.StartPrice) / stats.StartPrice * 100
	}
	return stats
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
