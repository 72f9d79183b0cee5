package domain

import "time"

// MigrationStatus describes where a migration sits relative to its window.
type MigrationStatus string

// Migration statuses.
const (
	MigrationUpcoming MigrationStatus = "Upcoming"
	MigrationActive   MigrationStatus = "Active"
	MigrationClaims   MigrationStatus = "Claims"
	MigrationUnknown  MigrationStatus = "Unknown"
)

// MigrationAccount is a migration definition decoded from a raw program
// account. It is produced transiently per decode call; callers persist
// derived project/pool/migration rows instead.
type MigrationAccount struct {
	Pubkey       string // account public key, base58
	MigrationID  string
	ProjectName  string
	OldTokenMint string // base58
	NewTokenMint string // base58
	StartDate    *int64 // Unix seconds, nil if not recoverable
	EndDate      *int64 // Unix seconds, nil if not recoverable
	Status       MigrationStatus

	// DecodeErr carries the reason the account could not be fully decoded.
	// A malformed account yields a placeholder record, never an error.
	DecodeErr string
}

// DeriveMigrationStatus computes the status from the migration window.
// No end date means no window is recoverable at all.
func DeriveMigrationStatus(now time.Time, start, end *int64) MigrationStatus {
	if end == nil {
		return MigrationUnknown
	}
	ts := now.Unix()
	if start != nil && ts < *start {
		return MigrationUpcoming
	}
	if ts > *end {
		return MigrationClaims
	}
	return MigrationActive
}
