package memory

import (
	"context"
	"sort"
	"sync"

	"zera-sync/internal/domain"
	"zera-sync/internal/storage"
)

// BurnEventStore is an in-memory implementation of storage.BurnEventStore.
type BurnEventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.BurnEvent // keyed by signature
}

// NewBurnEventStore creates a new in-memory burn event store.
func NewBurnEventStore() *BurnEventStore {
	return &BurnEventStore{
		data: make(map[string]*domain.BurnEvent),
	}
}

// Compile-time interface check.
var _ storage.BurnEventStore = (*BurnEventStore)(nil)

// Upsert stores a burn event keyed by signature.
func (s *BurnEventStore) Upsert(_ context.Context, e *domain.BurnEvent) error {
	if e == nil || e.Signature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.Signature]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	eventCopy := *e
	s.data[e.Signature] = &eventCopy
	return nil
}

// LatestSignature returns the most recent stored signature for a project.
func (s *BurnEventStore) LatestSignature(_ context.Context, projectID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.BurnEvent
	for _, e := range s.data {
		if e.ProjectID != projectID {
			continue
		}
		if latest == nil || e.Timestamp > latest.Timestamp {
			latest = e
		}
	}

	if latest == nil {
		return "", storage.ErrNotFound
	}
	return latest.Signature, nil
}

// ByProject retrieves all burns for a project, ordered by timestamp DESC.
func (s *BurnEventStore) ByProject(_ context.Context, projectID string) ([]*domain.BurnEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.BurnEvent
	for _, e := range s.data {
		if e.ProjectID == projectID {
			eventCopy := *e
			result = append(result, &eventCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp > result[j].Timestamp
		}
		return result[i].Signature < result[j].Signature
	})

	return result, nil
}

// TotalBurned sums the normalized burn amounts for a project.
func (s *BurnEventStore) TotalBurned(_ context.Context, projectID string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total float64
	for _, e := range s.data {
		if e.ProjectID == projectID {
			total += e.Amount
		}
	}
	return total, nil
}

// Len returns the number of stored burns (test helper).
func (s *BurnEventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
