package domain

// BurnEvent represents one confirmed token burn transaction.
// Unique key: Signature. Amount is decimal-normalized (raw / 10^decimals).
type BurnEvent struct {
	Signature   string  // transaction signature
	ProjectID   string  // owning project identifier
	Timestamp   int64   // block time, Unix seconds
	Amount      float64 // burned amount, decimal-normalized
	FromAccount string  // burn authority account
	Success     bool    // on-chain execution succeeded; failed burns are never persisted
}
