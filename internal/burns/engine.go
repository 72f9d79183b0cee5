package burns

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"time"

	"github.com/alitto/pond/v2"

	"zera-sync/internal/domain"
	"zera-sync/internal/ratelimit"
	"zera-sync/internal/solana"
	"zera-sync/internal/storage"
)

const (
	syncPageLimit     = 100
	backfillPageLimit = 1000

	defaultBatchWidth      = 10
	defaultMintDecimals    = 9
	mintDecimalsOffset     = 44
	splTokenProgram        = "spl-token"
	instructionBurn        = "burn"
	instructionBurnChecked = "burnChecked"
)

// Engine synchronizes SPL burn transactions for a project into storage.
// Sync covers the incremental head of the signature history; Backfill
// walks it backwards page by page.
type Engine struct {
	rpc              solana.RPCClient
	store            storage.BurnEventStore
	fetcher          *ratelimit.Fetcher
	pool             pond.Pool
	batchWidth       int
	fallbackDecimals int
	logger           *log.Logger
	now              func() time.Time
}

// EngineOptions contains configuration for creating an Engine.
type EngineOptions struct {
	RPC     solana.RPCClient
	Store   storage.BurnEventStore
	Fetcher *ratelimit.Fetcher

	// BatchWidth bounds concurrent transaction-detail fetches.
	BatchWidth int

	// FallbackDecimals is used when the mint account cannot be read.
	FallbackDecimals int

	Logger *log.Logger
	Now    func() time.Time
}

// NewEngine creates a burn sync engine.
func NewEngine(opts EngineOptions) *Engine {
	batchWidth := opts.BatchWidth
	if batchWidth <= 0 {
		batchWidth = defaultBatchWidth
	}

	fallback := opts.FallbackDecimals
	if fallback <= 0 {
		fallback = defaultMintDecimals
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		rpc:              opts.RPC,
		store:            opts.Store,
		fetcher:          opts.Fetcher,
		pool:             pond.NewPool(batchWidth),
		batchWidth:       batchWidth,
		fallbackDecimals: fallback,
		logger:           logger,
		now:              now,
	}
}

// Close releases the engine's worker pool.
func (e *Engine) Close() {
	e.pool.StopAndWait()
}

// Sync processes the newest signature page for programAddress and persists
// any burns not yet stored for projectID. The stored latest signature acts
// as the cursor: everything newer than it on the page is processed. Partial
// progress is reported even when the run is cut short by the context
// deadline.
func (e *Engine) Sync(ctx context.Context, programAddress, projectID string) (*domain.SyncReport, error) {
	report := &domain.SyncReport{}

	cursor, err := e.loadCursor(ctx, projectID)
	if err != nil {
		return report, fmt.Errorf("load cursor: %w", err)
	}

	sigs, err := e.signaturePage(ctx, programAddress, &solana.SignaturesOpts{Limit: syncPageLimit})
	if err != nil {
		return report, fmt.Errorf("fetch signatures: %w", err)
	}
	if len(sigs) == 0 {
		return report, nil
	}

	pending := signaturesAfterCursor(sigs, cursor)
	if len(pending) == 0 {
		e.logger.Printf("Burn sync caught up for project %s", projectID)
		return report, nil
	}

	e.logger.Printf("Burn sync for project %s: %d of %d signatures pending", projectID, len(pending), len(sigs))

	e.processSignatures(ctx, projectID, pending, report, newDecimalsCache())
	return report, nil
}

// Backfill walks the signature history of programAddress backwards and
// persists burns until the history is exhausted or limit signatures have
// been examined. A limit of zero means no cap.
func (e *Engine) Backfill(ctx context.Context, programAddress, projectID string, limit int) (*domain.SyncReport, error) {
	report := &domain.SyncReport{}
	decimals := newDecimalsCache()

	var before string
	examined := 0

	for {
		sigs, err := e.signaturePage(ctx, programAddress, &solana.SignaturesOpts{
			Before: before,
			Limit:  backfillPageLimit,
		})
		if err != nil {
			return report, fmt.Errorf("fetch signatures before %q: %w", before, err)
		}
		if len(sigs) == 0 {
			break
		}

		shortPage := len(sigs) < backfillPageLimit
		before = sigs[len(sigs)-1].Signature

		if limit > 0 && examined+len(sigs) > limit {
			sigs = sigs[:limit-examined]
		}
		examined += len(sigs)

		e.processSignatures(ctx, projectID, sigs, report, decimals)
		if report.Truncated {
			break
		}
		if shortPage || (limit > 0 && examined >= limit) {
			break
		}
	}

	e.logger.Printf("Burn backfill for project %s examined %d signatures: %d added, %d skipped, %d errors",
		projectID, examined, len(report.Added), len(report.Skipped), len(report.Errors))
	return report, nil
}

// loadCursor returns the stored latest signature for the project, or ""
// when the project has no burns yet.
func (e *Engine) loadCursor(ctx context.Context, projectID string) (string, error) {
	cursor, err := e.store.LatestSignature(ctx, projectID)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return cursor, nil
}

// signaturesAfterCursor cuts the newest-first page at the cursor position.
// Cursor at index 0 means nothing new; cursor absent from the page means
// the whole page is newer than anything stored.
func signaturesAfterCursor(sigs []solana.SignatureInfo, cursor string) []solana.SignatureInfo {
	if cursor == "" {
		return sigs
	}
	for i, s := range sigs {
		if s.Signature == cursor {
			return sigs[:i]
		}
	}
	return sigs
}

func (e *Engine) signaturePage(ctx context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error) {
	var sigs []solana.SignatureInfo
	err := e.do(ctx, func(ctx context.Context) error {
		var err error
		sigs, err = e.rpc.GetSignaturesForAddress(ctx, address, opts)
		if err != nil {
			return ratelimit.Transient(err)
		}
		return nil
	})
	return sigs, err
}

// processSignatures fetches transaction details in bounded concurrent
// batches and persists the burns found. Batches run sequentially; within a
// batch up to batchWidth fetches run at once. Once the context deadline
// elapses no new batch is started and the report is marked truncated.
func (e *Engine) processSignatures(ctx context.Context, projectID string, sigs []solana.SignatureInfo, report *domain.SyncReport, decimals decimalsCache) {
	for start := 0; start < len(sigs); start += e.batchWidth {
		if e.deadlineElapsed(ctx) {
			report.Truncated = true
			e.logger.Printf("Burn sync for project %s truncated with %d signatures unprocessed", projectID, len(sigs)-start)
			return
		}

		end := start + e.batchWidth
		if end > len(sigs) {
			end = len(sigs)
		}
		batch := sigs[start:end]

		txs := make([]*solana.ParsedTransaction, len(batch))
		fetchErrs := make([]error, len(batch))

		group := e.pool.NewGroupContext(ctx)
		for i, sig := range batch {
			i, sig := i, sig
			group.Submit(func() {
				txs[i], fetchErrs[i] = e.fetchTransaction(group.Context(), sig.Signature)
			})
		}
		if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
			e.logger.Printf("Transaction batch wait: %v", err)
		}

		for i, sig := range batch {
			e.handleTransaction(ctx, projectID, sig.Signature, txs[i], fetchErrs[i], report, decimals)
		}
	}
}

func (e *Engine) fetchTransaction(ctx context.Context, signature string) (*solana.ParsedTransaction, error) {
	var tx *solana.ParsedTransaction
	err := e.do(ctx, func(ctx context.Context) error {
		var err error
		tx, err = e.rpc.GetParsedTransaction(ctx, signature)
		if err != nil {
			return ratelimit.Transient(err)
		}
		return nil
	})
	return tx, err
}

// handleTransaction classifies one fetched transaction into the report and
// persists its burn if it has one. Store failures other than duplicates are
// recorded and processing continues.
func (e *Engine) handleTransaction(ctx context.Context, projectID, signature string, tx *solana.ParsedTransaction, fetchErr error, report *domain.SyncReport, decimals decimalsCache) {
	if fetchErr != nil {
		report.AddError(signature, fmt.Sprintf("fetch transaction: %v", fetchErr))
		return
	}
	if tx == nil || tx.Meta == nil {
		report.Skipped = append(report.Skipped, signature)
		return
	}
	if tx.Meta.Failed() {
		report.Skipped = append(report.Skipped, signature)
		return
	}

	event, found := e.extractBurn(ctx, projectID, signature, tx, decimals)
	if !found {
		report.Skipped = append(report.Skipped, signature)
		return
	}

	err := e.store.Upsert(ctx, event)
	switch {
	case errors.Is(err, storage.ErrDuplicateKey):
		report.Skipped = append(report.Skipped, signature)
	case err != nil:
		e.logger.Printf("Store burn %s: %v", signature, err)
		report.AddError(signature, fmt.Sprintf("store: %v", err))
	default:
		report.Added = append(report.Added, signature)
	}
}

// extractBurn finds the first burn or burnChecked inner instruction of the
// transaction. Later burns in the same transaction are ignored.
func (e *Engine) extractBurn(ctx context.Context, projectID, signature string, tx *solana.ParsedTransaction, decimals decimalsCache) (*domain.BurnEvent, bool) {
	for _, set := range tx.Meta.InnerInstructions {
		for _, instr := range set.Instructions {
			if instr.Parsed == nil || instr.Program != splTokenProgram {
				continue
			}
			if instr.Parsed.Type != instructionBurn && instr.Parsed.Type != instructionBurnChecked {
				continue
			}

			amount, err := e.normalizeAmount(ctx, instr.Parsed, decimals)
			if err != nil {
				e.logger.Printf("Burn %s has unreadable amount: %v", signature, err)
				return nil, false
			}

			return &domain.BurnEvent{
				Signature:   signature,
				ProjectID:   projectID,
				Timestamp:   tx.BlockTime,
				Amount:      amount,
				FromAccount: instr.Parsed.Info.Authority,
				Success:     true,
			}, true
		}
	}
	return nil, false
}

// normalizeAmount converts the raw instruction amount to token units.
// burnChecked carries its own decimals; plain burn needs the mint account.
func (e *Engine) normalizeAmount(ctx context.Context, detail *solana.ParsedInstructionDetail, decimals decimalsCache) (float64, error) {
	raw := detail.Info.Amount
	dec := 0

	if detail.Type == instructionBurnChecked && detail.Info.TokenAmount != nil {
		raw = detail.Info.TokenAmount.Amount
		dec = detail.Info.TokenAmount.Decimals
	} else {
		dec = e.mintDecimals(ctx, detail.Info.Mint, decimals)
	}

	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	return float64(value) / math.Pow10(dec), nil
}

// decimalsCache memoizes mint decimals for the duration of one run.
type decimalsCache map[string]int

func newDecimalsCache() decimalsCache {
	return make(decimalsCache)
}

// mintDecimals reads the decimals byte of the SPL mint account. Falls back
// to the configured default when the account is missing or malformed.
func (e *Engine) mintDecimals(ctx context.Context, mint string, cache decimalsCache) int {
	if mint == "" {
		return e.fallbackDecimals
	}
	if dec, ok := cache[mint]; ok {
		return dec
	}

	dec := e.fallbackDecimals

	var info *solana.AccountInfo
	err := e.do(ctx, func(ctx context.Context) error {
		var err error
		info, err = e.rpc.GetAccountInfo(ctx, mint)
		if err != nil {
			return ratelimit.Transient(err)
		}
		return nil
	})
	if err != nil {
		e.logger.Printf("Resolve decimals for mint %s: %v (using fallback %d)", mint, err, e.fallbackDecimals)
	} else if info != nil {
		if raw, decodeErr := base64.StdEncoding.DecodeString(info.Data); decodeErr == nil && len(raw) > mintDecimalsOffset {
			dec = int(raw[mintDecimalsOffset])
		}
	}

	cache[mint] = dec
	return dec
}

func (e *Engine) do(ctx context.Context, fn func(ctx context.Context) error) error {
	if e.fetcher == nil {
		return fn(ctx)
	}
	return e.fetcher.Do(ctx, "rpc", fn)
}

// deadlineElapsed reports whether the context deadline has passed by the
// engine's clock. Contexts without a deadline never truncate a run.
func (e *Engine) deadlineElapsed(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		return false
	}
	return !e.now().Before(deadline)
}
