package trades

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"solana-holder-audit/internal/domain"
	"solana-holder-audit/internal/registry"
	"solana-holder-audit/internal/solana"
	"solana-holder-audit/internal/storage"
)

const (
	maxFetchRetries = 3
	baseFetchDelay  = 500 * time.Millisecond
)

// RecorderConfig configures the live recorder. Zero values get defaults.
type RecorderConfig struct {
	// Programs to watch. Defaults to the known swap programs.
	Programs []string
	// BatchSize is how many events accumulate before a flush.
	BatchSize int
	// FlushInterval bounds how long a partial batch waits.
	FlushInterval time.Duration
	Logger        zerolog.Logger
}

func (c RecorderConfig) withDefaults() RecorderConfig {
	if len(c.Programs) == 0 {
		c.Programs = swapProgramList()
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 64
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 5 * time.Second
	}
	return c
}

func swapProgramList() []string {
	programs := make([]string, 0, len(registry.SwapPrograms))
	for p := range registry.SwapPrograms {
		programs = append(programs, p)
	}
	sort.Strings(programs)
	return programs
}

// Recorder subscribes to swap-program logs, resolves each confirmed
// transaction, and appends the derived trade events for one mint to the
// trade event archive.
type Recorder struct {
	ws    solana.WSClient
	rpc   solana.Client
	store storage.TradeEventStore
	reg   *registry.Registry
	mint  string
	cfg   RecorderConfig
	log   zerolog.Logger
}

// NewRecorder creates a Recorder for the given mint.
func NewRecorder(ws solana.WSClient, rpc solana.Client, store storage.TradeEventStore, reg *registry.Registry, mint string, cfg RecorderConfig) *Recorder {
	cfg = cfg.withDefaults()
	return &Recorder{
		ws:    ws,
		rpc:   rpc,
		store: store,
		reg:   reg,
		mint:  mint,
		cfg:   cfg,
		log:   cfg.Logger.With().Str("component", "trade_recorder").Str("mint", mint).Logger(),
	}
}

// Run subscribes and records until the context is cancelled. The final
// partial batch is flushed before returning.
func (r *Recorder) Run(ctx context.Context) error {
	// One subscription per program; providers accept a single mentioned
	// address per logsSubscribe.
	merged := make(chan solana.LogNotification, 1000)
	for _, program := range r.cfg.Programs {
		logsCh, err := r.ws.SubscribeLogs(ctx, solana.LogsFilter{Mentions: []string{program}})
		if err != nil {
			return err
		}
		r.log.Info().Str("program", program).Msg("subscribed to swap program logs")
		go func(ch <-chan solana.LogNotification) {
			for notif := range ch {
				select {
				case merged <- notif:
				case <-ctx.Done():
					return
				}
			}
		}(logsCh)
	}

	batch := make([]*domain.TradeEvent, 0, r.cfg.BatchSize)
	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.flushFinal(batch)
			return ctx.Err()
		case <-ticker.C:
			batch = r.flush(ctx, batch)
		case notif := <-merged:
			batch = append(batch, r.process(ctx, notif)...)
			if len(batch) >= r.cfg.BatchSize {
				batch = r.flush(ctx, batch)
			}
		}
	}
}

// process turns one log notification into trade events. Failed
// transactions and unresolvable fetches yield nothing; a dropped
// notification costs one transaction of history, not the stream.
func (r *Recorder) process(ctx context.Context, notif solana.LogNotification) []*domain.TradeEvent {
	if notif.Err != nil {
		return nil
	}

	tx, err := r.fetchTransaction(ctx, notif.Signature)
	if err != nil || tx == nil {
		if err != nil && ctx.Err() == nil {
			r.log.Warn().Err(err).Str("signature", notif.Signature).
				Msg("transaction fetch failed, dropping notification")
		}
		return nil
	}

	events := ParseTrades(tx, r.mint, r.reg)
	if len(events) > 0 {
		r.log.Debug().Str("signature", notif.Signature).Int("events", len(events)).
			Msg("recorded trades from notification")
	}
	return events
}

// fetchTransaction retries transient fetch failures with exponential
// backoff before giving up on the notification.
func (r *Recorder) fetchTransaction(ctx context.Context, signature string) (*solana.Transaction, error) {
	var lastErr error
	for attempt := 0; attempt < maxFetchRetries; attempt++ {
		tx, err := r.rpc.GetTransaction(ctx, signature)
		if err == nil {
			return tx, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		select {
		case <-time.After(baseFetchDelay * time.Duration(1<<attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (r *Recorder) flush(ctx context.Context, batch []*domain.TradeEvent) []*domain.TradeEvent {
	if len(batch) == 0 {
		return batch
	}
	if err := r.store.InsertBulk(ctx, batch); err != nil {
		r.log.Error().Err(err).Int("events", len(batch)).Msg("trade batch insert failed")
		// Keep the batch; the next flush retries the archive append.
		return batch
	}
	return batch[:0]
}

// flushFinal writes the remaining batch on shutdown under its own
// deadline, since the run context is already cancelled.
func (r *Recorder) flushFinal(batch []*domain.TradeEvent) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.store.InsertBulk(ctx, batch); err != nil {
		r.log.Error().Err(err).Int("events", len(batch)).Msg("final trade batch insert failed")
	}
}
