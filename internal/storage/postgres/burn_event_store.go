package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"zera-sync/internal/domain"
	"zera-sync/internal/storage"
)

// BurnEventStore implements storage.BurnEventStore using PostgreSQL.
type BurnEventStore struct {
	pool *Pool
}

// NewBurnEventStore creates a new BurnEventStore.
func NewBurnEventStore(pool *Pool) *BurnEventStore {
	return &BurnEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BurnEventStore = (*BurnEventStore)(nil)

// Upsert stores a burn event keyed by signature. An existing signature is
// left untouched and reported as ErrDuplicateKey so callers can count it
// as already-recorded rather than an error.
func (s *BurnEventStore) Upsert(ctx context.Context, e *domain.BurnEvent) error {
	if e == nil || e.Signature == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO burn_events (
			signature, project_id, timestamp, amount, from_account
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (signature) DO NOTHING
	`

	tag, err := s.pool.Exec(ctx, query,
		e.Signature,
		e.ProjectID,
		e.Timestamp,
		e.Amount,
		e.FromAccount,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("upsert burn event: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return storage.ErrDuplicateKey
	}
	return nil
}

// LatestSignature returns the most recent stored signature for a project.
func (s *BurnEventStore) LatestSignature(ctx context.Context, projectID string) (string, error) {
	query := `
		SELECT signature
		FROM burn_events
		WHERE project_id = $1
		ORDER BY timestamp DESC
		LIMIT 1
	`

	var sig string
	err := s.pool.QueryRow(ctx, query, projectID).Scan(&sig)
	if err != nil {
		if isNotFoundError(err) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("latest signature: %w", err)
	}

	return sig, nil
}

// ByProject retrieves all burns for a project, ordered by timestamp DESC.
func (s *BurnEventStore) ByProject(ctx context.Context, projectID string) ([]*domain.BurnEvent, error) {
	query := `
		SELECT signature, project_id, timestamp, amount, from_account
		FROM burn_events
		WHERE project_id = $1
		ORDER BY timestamp DESC, signature ASC
	`

	rows, err := s.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("get burns by project: %w", err)
	}
	defer rows.Close()

	return scanBurnEvents(rows)
}

// TotalBurned sums the normalized burn amounts for a project.
func (s *BurnEventStore) TotalBurned(ctx context.Context, projectID string) (float64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM burn_events
		WHERE project_id = $1
	`

	var total float64
	if err := s.pool.QueryRow(ctx, query, projectID).Scan(&total); err != nil {
		return 0, fmt.Errorf("total burned: %w", err)
	}

	return total, nil
}

// scanBurnEvents scans multiple rows into a slice of BurnEvent.
func scanBurnEvents(rows pgx.Rows) ([]*domain.BurnEvent, error) {
	var events []*domain.BurnEvent

	for rows.Next() {
		var e domain.BurnEvent

		err := rows.Scan(
			&e.Signature,
			&e.ProjectID,
			&e.Timestamp,
			&e.Amount,
			&e.FromAccount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan burn event row: %w", err)
		}
		// Only successful burns are ever persisted.
		e.Success = true

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate burn event rows: %w", err)
	}

	return events, nil
}
