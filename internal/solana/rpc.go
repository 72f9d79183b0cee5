package solana

import "context"

// RPCClient defines the Solana RPC HTTP interface consumed by the sync layer.
type RPCClient interface {
	// GetSignaturesForAddress retrieves signatures for an address, newest first.
	GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error)

	// GetParsedTransaction retrieves a transaction with jsonParsed encoding.
	// Returns nil if the transaction is not found.
	GetParsedTransaction(ctx context.Context, signature string) (*ParsedTransaction, error)

	// GetProgramAccounts lists accounts owned by a program, optionally
	// filtered by a memcmp on the account data.
	GetProgramAccounts(ctx context.Context, programID string, filter *MemcmpFilter) ([]ProgramAccount, error)

	// GetAccountInfo retrieves account info by public key.
	// Returns nil if the account does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)
}
