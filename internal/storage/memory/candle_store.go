package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"zera-sync/internal/domain"
	"zera-sync/internal/storage"
)

type candleKey struct {
	token     string
	timeframe domain.Timeframe
	timestamp int64
}

// CandleStore is an in-memory implementation of storage.CandleStore.
type CandleStore struct {
	mu   sync.RWMutex
	data map[candleKey]domain.Candle

	// FailWrites forces Upsert to fail (test helper for degraded paths).
	FailWrites bool
	// FailReads forces ByTokenTimeframe to fail.
	FailReads bool
}

// NewCandleStore creates a new in-memory candle store.
func NewCandleStore() *CandleStore {
	return &CandleStore{
		data: make(map[candleKey]domain.Candle),
	}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

// Upsert stores candles keyed by (token, timeframe, timestamp), overwriting
// existing rows.
func (s *CandleStore) Upsert(_ context.Context, candles []domain.Candle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWrites {
		return errors.New("candle store write failure (injected)")
	}

	for _, c := range candles {
		if c.TokenAddress == "" || !c.Timeframe.Valid() {
			return storage.ErrInvalidInput
		}
		s.data[candleKey{c.TokenAddress, c.Timeframe, c.Timestamp}] = c
	}
	return nil
}

// ByTokenTimeframe retrieves candles ordered by timestamp ASC.
func (s *CandleStore) ByTokenTimeframe(_ context.Context, token string, tf domain.Timeframe) ([]domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.FailReads {
		return nil, errors.New("candle store read failure (injected)")
	}

	var result []domain.Candle
	for k, c := range s.data {
		if k.token == token && k.timeframe == tf {
			result = append(result, c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})

	return result, nil
}

// Len returns the number of stored candles (test helper).
func (s *CandleStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
