package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mr-tron/base58"

	"zera-sync/internal/accounts"
	"zera-sync/internal/burns"
	"zera-sync/internal/candles"
	"zera-sync/internal/domain"
	"zera-sync/internal/geckoterminal"
	"zera-sync/internal/observability"
	"zera-sync/internal/ratelimit"
	"zera-sync/internal/solana"
	"zera-sync/internal/storage"
	"zera-sync/internal/storage/async"
	chstore "zera-sync/internal/storage/clickhouse"
	"zera-sync/internal/storage/memory"
	"zera-sync/internal/storage/migrations"
	pgstore "zera-sync/internal/storage/postgres"
)

func main() {
	// Parse flags
	mode := flag.String("mode", "sync", "Run mode: sync, backfill, candles, or accounts")
	rpcEndpoint := flag.String("rpc-endpoint", "", "Solana RPC HTTP endpoint")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string")
	program := flag.String("program", "", "Program address to sync burns or scan accounts for")
	project := flag.String("project", "", "Project identifier burns are stored under")
	discriminator := flag.String("discriminator", "", "Base58 account discriminator for account scans")
	poolAddress := flag.String("pool", "", "Liquidity pool address for candle refresh")
	tokenAddress := flag.String("token", "", "Token mint address for candle refresh")
	timeframe := flag.String("timeframe", "1H", "Candle timeframe: 1m, 5m, 15m, 1H, 4H, 1D")
	limit := flag.Int("limit", 0, "Backfill signature cap or candle fetch limit (0 = default)")
	deadline := flag.Duration("deadline", 0, "Soft deadline for a sync run (0 = none)")
	ratePerSec := flag.Float64("rate", 0, "Upstream request rate per second (0 = default)")
	fallbackDecimals := flag.Int("fallback-decimals", 9, "Token decimals used when the mint account is unreadable")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[sync] ", log.LstdFlags|log.Lshortfile)

	// Start metrics server if enabled
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to signal main goroutine completion
	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	fetcher := ratelimit.NewFetcher(ratelimit.FetcherOptions{
		RatePerSec: *ratePerSec,
		Logger:     logger,
	})

	// Run based on mode
	var err error
	switch *mode {
	case "sync":
		err = runSync(ctx, logger, fetcher, *rpcEndpoint, *postgresDSN, *program, *project, *deadline, *fallbackDecimals, *useMemory)
	case "backfill":
		err = runBackfill(ctx, logger, fetcher, *rpcEndpoint, *postgresDSN, *program, *project, *limit, *fallbackDecimals, *useMemory)
	case "candles":
		err = runCandles(ctx, logger, fetcher, *clickhouseDSN, *poolAddress, *tokenAddress, *timeframe, *limit, *useMemory)
	case "accounts":
		err = runAccounts(ctx, logger, fetcher, *rpcEndpoint, *program, *discriminator)
	default:
		logger.Fatalf("Unknown mode: %s", *mode)
	}

	// Signal completion to shutdown handler
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// openBurnStore connects the burn event store, applying migrations when
// PostgreSQL is used. The returned cleanup is safe to call once.
func openBurnStore(ctx context.Context, postgresDSN string, useMemory bool) (storage.BurnEventStore, func(), error) {
	if useMemory {
		return memory.NewBurnEventStore(), func() {}, nil
	}
	if postgresDSN == "" {
		return nil, nil, fmt.Errorf("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}
	return pgstore.NewBurnEventStore(pool), pool.Close, nil
}

// runSync performs one incremental burn sync run.
func runSync(ctx context.Context, logger *log.Logger, fetcher *ratelimit.Fetcher, rpcEndpoint, postgresDSN, program, project string, deadline time.Duration, fallbackDecimals int, useMemory bool) error {
	if rpcEndpoint == "" {
		return fmt.Errorf("--rpc-endpoint is required for sync mode")
	}
	if program == "" || project == "" {
		return fmt.Errorf("--program and --project are required for sync mode")
	}

	store, closeStore, err := openBurnStore(ctx, postgresDSN, useMemory)
	if err != nil {
		return err
	}
	defer closeStore()

	engine := burns.NewEngine(burns.EngineOptions{
		RPC:              solana.NewHTTPClient(rpcEndpoint),
		Store:            store,
		Fetcher:          fetcher,
		FallbackDecimals: fallbackDecimals,
		Logger:           logger,
	})
	defer engine.Close()

	if deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	report, err := engine.Sync(ctx, program, project)
	observability.RecordSyncReport(report)
	if err != nil {
		return fmt.Errorf("sync burns: %w", err)
	}

	logReport(logger, "Sync", report)
	if !report.Truncated {
		observability.MarkSyncSuccess(project, time.Now().Unix())
	}
	return nil
}

// runBackfill walks the burn history backwards.
func runBackfill(ctx context.Context, logger *log.Logger, fetcher *ratelimit.Fetcher, rpcEndpoint, postgresDSN, program, project string, limit, fallbackDecimals int, useMemory bool) error {
	if rpcEndpoint == "" {
		return fmt.Errorf("--rpc-endpoint is required for backfill mode")
	}
	if program == "" || project == "" {
		return fmt.Errorf("--program and --project are required for backfill mode")
	}

	store, closeStore, err := openBurnStore(ctx, postgresDSN, useMemory)
	if err != nil {
		return err
	}
	defer closeStore()

	engine := burns.NewEngine(burns.EngineOptions{
		RPC:              solana.NewHTTPClient(rpcEndpoint),
		Store:            store,
		Fetcher:          fetcher,
		FallbackDecimals: fallbackDecimals,
		Logger:           logger,
	})
	defer engine.Close()

	report, err := engine.Backfill(ctx, program, project, limit)
	observability.RecordSyncReport(report)
	if err != nil {
		return fmt.Errorf("backfill burns: %w", err)
	}

	logReport(logger, "Backfill", report)
	if !report.Truncated {
		observability.MarkBackfillSuccess(project, time.Now().Unix())
	}
	return nil
}

// runCandles refreshes one token/timeframe candle series.
func runCandles(ctx context.Context, logger *log.Logger, fetcher *ratelimit.Fetcher, clickhouseDSN, poolAddress, tokenAddress, timeframe string, limit int, useMemory bool) error {
	if poolAddress == "" || tokenAddress == "" {
		return fmt.Errorf("--pool and --token are required for candles mode")
	}

	tf := domain.Timeframe(timeframe)
	if !tf.Valid() {
		return fmt.Errorf("unsupported timeframe %q", timeframe)
	}
	if limit <= 0 {
		limit = 100
	}

	var store storage.CandleStore = memory.NewCandleStore()
	if !useMemory {
		if clickhouseDSN == "" {
			return fmt.Errorf("--clickhouse-dsn is required for candles mode (use --use-memory for in-memory storage)")
		}
		conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			return fmt.Errorf("run clickhouse migrations: %w", err)
		}
		defer conn.Close()
		store = chstore.NewCandleStore(conn)
	}

	writer := async.NewWriter(async.WriterOptions{Logger: logger})
	defer writer.Close()

	cache := candles.NewCache(candles.CacheOptions{
		Store:  store,
		Source: geckoterminal.NewClient(geckoterminal.ClientOptions{Fetcher: fetcher}),
		Writer: writer,
		Logger: logger,
	})

	series := cache.Refresh(ctx, poolAddress, tokenAddress, tf, limit)
	observability.RecordCandleFetch(string(tf), len(series), nil)
	observability.UpdateWriterQueueDepth(writer.QueueDepth())

	logger.Printf("Refreshed %d candles for %s/%s", len(series), tokenAddress, tf)
	return nil
}

// runAccounts scans and decodes migration accounts of a program.
func runAccounts(ctx context.Context, logger *log.Logger, fetcher *ratelimit.Fetcher, rpcEndpoint, program, discriminator string) error {
	if rpcEndpoint == "" {
		return fmt.Errorf("--rpc-endpoint is required for accounts mode")
	}
	if program == "" {
		return fmt.Errorf("--program is required for accounts mode")
	}

	var disc []byte
	if discriminator != "" {
		var err error
		disc, err = base58.Decode(discriminator)
		if err != nil {
			return fmt.Errorf("decode discriminator: %w", err)
		}
	}

	scanner := accounts.NewScanner(accounts.ScannerOptions{
		RPC:     solana.NewHTTPClient(rpcEndpoint),
		Fetcher: fetcher,
		Logger:  logger,
	})

	records, report, err := scanner.Scan(ctx, program, disc)
	if err != nil {
		return fmt.Errorf("scan accounts: %w", err)
	}
	observability.RecordAccountsDecoded(records)

	for _, r := range records {
		if r.DecodeErr != "" {
			logger.Printf("Account %s: decode failed: %s", r.Pubkey, r.DecodeErr)
			continue
		}
		logger.Printf("Account %s: migration %s (%s) %s -> %s status=%s",
			r.Pubkey, r.MigrationID, r.ProjectName, r.OldTokenMint, r.NewTokenMint, r.Status)
	}
	logReport(logger, "Account scan", report)
	return nil
}

func logReport(logger *log.Logger, label string, report *domain.SyncReport) {
	if report == nil {
		return
	}
	logger.Printf("%s complete: %d added, %d updated, %d skipped, %d errors, truncated=%v",
		label, len(report.Added), len(report.Updated), len(report.Skipped), len(report.Errors), report.Truncated)
	for _, e := range report.Errors {
		logger.Printf("  %s: %s", e.Item, e.Reason)
	}
}
