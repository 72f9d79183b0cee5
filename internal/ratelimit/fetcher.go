// Package ratelimit throttles and retries outbound calls per upstream API.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrTransient marks a failure that is safe to retry. Callers treat any
// other error as permanent.
var ErrTransient = errors.New("transient upstream error")

// Transient wraps err so the fetcher (and callers) retry it.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrTransient, err)
}

// Default configuration values.
const (
	DefaultRate       = 5.0 // requests per second per upstream
	DefaultBurst      = 2
	DefaultMaxRetries = 3
	DefaultRetryDelay = 500 * time.Millisecond
)

// Fetcher rate-limits calls keyed by upstream API name. Each upstream gets
// an independent token bucket so a slow provider cannot starve the others.
type Fetcher struct {
	mu         sync.Mutex
	limiters   map[string]*rate.Limiter
	ratePerSec float64
	burst      int
	maxRetries int
	retryDelay time.Duration
	logger     *log.Logger
}

// FetcherOptions configures a Fetcher.
type FetcherOptions struct {
	RatePerSec float64
	Burst      int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *log.Logger
}

// NewFetcher creates a rate-limited fetcher.
func NewFetcher(opts FetcherOptions) *Fetcher {
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = DefaultRate
	}
	if opts.Burst <= 0 {
		opts.Burst = DefaultBurst
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Fetcher{
		limiters:   make(map[string]*rate.Limiter),
		ratePerSec: opts.RatePerSec,
		burst:      opts.Burst,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		logger:     logger,
	}
}

// limiter returns the token bucket for an upstream, creating it on first use.
func (f *Fetcher) limiter(api string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()

	l, ok := f.limiters[api]
	if !ok {
		l = rate.NewLimiter(rate.Limit(f.ratePerSec), f.burst)
		f.limiters[api] = l
	}
	return l
}

// Do waits for a rate-limit slot for the named upstream, then runs fn.
// Failures wrapped with ErrTransient are retried with a linear delay;
// any other error returns immediately.
func (f *Fetcher) Do(ctx context.Context, api string, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(f.retryDelay):
			}
			f.logger.Printf("Retrying %s call (attempt %d/%d): %v", api, attempt, f.maxRetries, lastErr)
		}

		if err := f.limiter(api).Wait(ctx); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrTransient) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("%s: retries exhausted: %w", api, lastErr)
}
