package domain

import "time"

// Timeframe is a candle bucket-width selector.
type Timeframe string

// Supported timeframes.
const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1H  Timeframe = "1H"
	Timeframe4H  Timeframe = "4H"
	Timeframe1D  Timeframe = "1D"
)

// timeframeIntervals maps each timeframe to its bucket length in seconds.
var timeframeIntervals = map[Timeframe]int64{
	Timeframe1m:  60,
	Timeframe5m:  300,
	Timeframe15m: 900,
	Timeframe1H:  3600,
	Timeframe4H:  14400,
	Timeframe1D:  86400,
}

// IntervalSeconds returns the bucket length of the timeframe in seconds.
// Unknown timeframes return 0.
func (tf Timeframe) IntervalSeconds() int64 {
	return timeframeIntervals[tf]
}

// Valid reports whether the timeframe is one of the supported selectors.
func (tf Timeframe) Valid() bool {
	_, ok := timeframeIntervals[tf]
	return ok
}

// Candle represents one OHLCV bucket for a token.
// Unique key: (TokenAddress, Timeframe, Timestamp).
type Candle struct {
	TokenAddress string    // token mint address
	Timeframe    Timeframe // bucket width selector
	Timestamp    int64     // bucket start, Unix seconds
	Open         float64
	High         float64
	Low          float64
	Close        float64
	Volume       float64
}

// CompleteAt reports whether the candle's bucket has fully closed as of now.
// An in-progress bucket is still mutable upstream and must never be persisted.
func (c Candle) CompleteAt(now time.Time) bool {
	return c.Timestamp+c.Timeframe.IntervalSeconds() < now.Unix()
}
