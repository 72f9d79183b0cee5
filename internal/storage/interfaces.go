package storage

import (
	"context"

	"zera-sync/internal/domain"
)

// BurnEventStore provides access to burn_events storage.
// Burns are content-addressed by signature; re-inserting an existing
// signature is a no-op, never an error surfaced to sync runs.
type BurnEventStore interface {
	// Upsert stores a burn event keyed by signature.
	// Returns ErrDuplicateKey if the signature already exists unchanged.
	Upsert(ctx context.Context, e *domain.BurnEvent) error

	// LatestSignature returns the most recent stored signature for a
	// project, used to bound the next incremental fetch window.
	// Returns ErrNotFound if the project has no burns yet.
	LatestSignature(ctx context.Context, projectID string) (string, error)

	// ByProject retrieves all burns for a project, ordered by timestamp DESC.
	ByProject(ctx context.Context, projectID string) ([]*domain.BurnEvent, error)

	// TotalBurned sums the normalized burn amounts for a project.
	TotalBurned(ctx context.Context, projectID string) (float64, error)
}

// CandleStore provides access to candle storage.
type CandleStore interface {
	// Upsert stores candles keyed by (token_address, timeframe, timestamp).
	// Existing rows are overwritten; the fresh fetch is authoritative.
	Upsert(ctx context.Context, candles []domain.Candle) error

	// ByTokenTimeframe retrieves candles ordered by timestamp ASC.
	ByTokenTimeframe(ctx context.Context, token string, tf domain.Timeframe) ([]domain.Candle, error)
}
