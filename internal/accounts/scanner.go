package accounts

import (
	"context"
	"fmt"
	"log"

	"github.com/mr-tron/base58"

	"zera-sync/internal/domain"
	"zera-sync/internal/ratelimit"
	"zera-sync/internal/solana"
)

// Scanner lists migration accounts of a program and decodes them in bulk.
type Scanner struct {
	rpc     solana.RPCClient
	fetcher *ratelimit.Fetcher
	decoder *Decoder
	logger  *log.Logger
}

// ScannerOptions configures a Scanner.
type ScannerOptions struct {
	RPC     solana.RPCClient
	Fetcher *ratelimit.Fetcher
	Decoder *Decoder
	Logger  *log.Logger
}

// NewScanner creates a migration account scanner.
func NewScanner(opts ScannerOptions) *Scanner {
	decoder := opts.Decoder
	if decoder == nil {
		decoder = NewDecoder()
	}
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = ratelimit.NewFetcher(ratelimit.FetcherOptions{})
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Scanner{
		rpc:     opts.RPC,
		fetcher: fetcher,
		decoder: decoder,
		logger:  logger,
	}
}

// Scan lists accounts of programID whose data starts with discriminator
// (optional) and decodes each into a MigrationAccount. The slice always
// has one record per listed account; malformed accounts appear as
// placeholders and are itemized in the report.
func (s *Scanner) Scan(ctx context.Context, programID string, discriminator []byte) ([]domain.MigrationAccount, *domain.SyncReport, error) {
	var filter *solana.MemcmpFilter
	if len(discriminator) > 0 {
		filter = &solana.MemcmpFilter{
			Offset: 0,
			Bytes:  base58.Encode(discriminator),
		}
	}

	var listed []solana.ProgramAccount
	err := s.fetcher.Do(ctx, "rpc", func(ctx context.Context) error {
		accounts, err := s.rpc.GetProgramAccounts(ctx, programID, filter)
		if err != nil {
			return ratelimit.Transient(err)
		}
		listed = accounts
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("list program accounts for %s: %w", programID, err)
	}

	report := &domain.SyncReport{}
	records := make([]domain.MigrationAccount, 0, len(listed))
	for _, acc := range listed {
		record := s.decoder.Decode(acc.Pubkey, acc.Data)
		if record.DecodeErr != "" {
			s.logger.Printf("Account %s decoded as placeholder: %s", acc.Pubkey, record.DecodeErr)
			report.AddError(acc.Pubkey, record.DecodeErr)
		} else {
			report.Added = append(report.Added, acc.Pubkey)
		}
		records = append(records, record)
	}

	s.logger.Printf("Scanned %d accounts of %s: %d decoded, %d placeholders",
		len(listed), programID, len(report.Added), len(report.Errors))

	return records, report, nil
}
