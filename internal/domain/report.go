package domain

// ItemError records a per-item failure inside a batch operation.
type ItemError struct {
	Item   string // signature, pubkey, or other item key
	Reason string
}

// SyncReport is the structured result of a sync/backfill/decode run.
// Partial progress is always observable; a run never collapses into a
// single success/failure flag.
type SyncReport struct {
	Added     []string    // newly persisted item keys
	Updated   []string    // item keys whose stored row changed
	Skipped   []string    // items ignored on purpose (failed tx, duplicate, no metadata)
	Errors    []ItemError // items that failed with a reason
	Truncated bool        // run stopped early on deadline; safe to resume
}

// AddError appends a per-item failure.
func (r *SyncReport) AddError(item, reason string) {
	r.Errors = append(r.Errors, ItemError{Item: item, Reason: reason})
}

// Merge folds another report into this one.
func (r *SyncReport) Merge(other *SyncReport) {
	if other == nil {
		return
	}
	r.Added = append(r.Added, other.Added...)
	r.Updated = append(r.Updated, other.Updated...)
	r.Skipped = append(r.Skipped, other.Skipped...)
	r.Errors = append(r.Errors, other.Errors...)
	r.Truncated = r.Truncated || other.Truncated
}
