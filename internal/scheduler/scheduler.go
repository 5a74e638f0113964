// Package scheduler arbitrates all outbound calls to rate-limited remote
// data sources. Two independent quota pools exist: PoolBulk for ordinary
// JSON-RPC traffic and PoolAPI for the lower-quota indexer/DAS endpoints.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"solana-holder-audit/internal/observability"
)

// Pool identifies one of the scheduler's quota pools.
type Pool string

const (
	// PoolBulk covers ordinary JSON-RPC calls.
	PoolBulk Pool = "bulk"
	// PoolAPI covers indexer/DAS calls with a lower quota.
	PoolAPI Pool = "api"
)

// Default retry policy values.
const (
	DefaultMaxRetries   = 3
	DefaultRetryBackoff = 1 * time.Second
	DefaultMaxBackoff   = 10 * time.Second
)

// Scheduler smooths bursts against per-pool token buckets and retries
// transient failures with exponential backoff. Safe for unbounded
// concurrent callers; queued callers are served in submission order.
type Scheduler struct {
	bulk *bucket
	api  *bucket

	maxRetries   int
	retryBackoff time.Duration
	maxBackoff   time.Duration

	logger zerolog.Logger
}

// Options configures a Scheduler. Zero values fall back to defaults.
type Options struct {
	BulkCapacity int
	BulkRate     float64 // tokens per second
	APICapacity  int
	APIRate      float64

	MaxRetries   int
	RetryBackoff time.Duration
	MaxBackoff   time.Duration

	Logger zerolog.Logger
}

// New creates a Scheduler with the given pool shapes.
func New(opts Options) *Scheduler {
	if opts.BulkCapacity == 0 {
		opts.BulkCapacity = 10
	}
	if opts.BulkRate == 0 {
		opts.BulkRate = 10
	}
	if opts.APICapacity == 0 {
		opts.APICapacity = 2
	}
	if opts.APIRate == 0 {
		opts.APIRate = 2
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = DefaultRetryBackoff
	}
	if opts.MaxBackoff == 0 {
		opts.MaxBackoff = DefaultMaxBackoff
	}

	s := &Scheduler{
		bulk:         newBucket(opts.BulkCapacity, opts.BulkRate),
		api:          newBucket(opts.APICapacity, opts.APIRate),
		maxRetries:   opts.MaxRetries,
		retryBackoff: opts.RetryBackoff,
		maxBackoff:   opts.MaxBackoff,
		logger:       opts.Logger,
	}
	s.bulk.onQueueDepth = func(n int) { observability.SetQueueDepth(string(PoolBulk), n) }
	s.api.onQueueDepth = func(n int) { observability.SetQueueDepth(string(PoolAPI), n) }
	return s
}

// Do executes fn under the pool's quota, retrying transient failures.
// mainContext/subContext tag the call for observability counters only;
// they have no effect on scheduling.
func (s *Scheduler) Do(ctx context.Context, pool Pool, mainContext, subContext string, fn func(context.Context) error) error {
	b := s.bucketFor(pool)
	start := time.Now()

	delay := s.retryBackoff
	var lastErr error

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			observability.RecordRetry(string(pool))
			s.logger.Debug().
				Str("pool", string(pool)).
				Str("context", mainContext+"/"+subContext).
				Int("attempt", attempt).
				Dur("backoff", delay).
				Msg("retrying transient failure")

			select {
			case <-ctx.Done():
				s.record(pool, mainContext, subContext, "cancelled", start)
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > s.maxBackoff {
				delay = s.maxBackoff
			}
		}

		if err := b.take(ctx); err != nil {
			s.record(pool, mainContext, subContext, "cancelled", start)
			return err
		}

		err := fn(ctx)
		if err == nil {
			s.record(pool, mainContext, subContext, "ok", start)
			return nil
		}

		if !retryable(err) {
			s.record(pool, mainContext, subContext, "error", start)
			return err
		}
		lastErr = err
	}

	s.record(pool, mainContext, subContext, "exhausted", start)
	return fmt.Errorf("%w: %w", ErrRetriesExhausted, lastErr)
}

func (s *Scheduler) bucketFor(pool Pool) *bucket {
	if pool == PoolAPI {
		return s.api
	}
	return s.bulk
}

func (s *Scheduler) record(pool Pool, mainContext, subContext, outcome string, start time.Time) {
	observability.RecordRequest(string(pool), mainContext, subContext, outcome, time.Since(start).Seconds())
}
