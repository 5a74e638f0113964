// Package orchestrator drives a full audit run: token capture, holder
// enumeration, batched classification, funder grouping and reporting.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"solana-holder-audit/internal/bundle"
	"solana-holder-audit/internal/classify"
	"solana-holder-audit/internal/domain"
	"solana-holder-audit/internal/funding"
	"solana-holder-audit/internal/holders"
	"solana-holder-audit/internal/observability"
	"solana-holder-audit/internal/solana"
	"solana-holder-audit/internal/storage"
	"solana-holder-audit/internal/trades"
)

// ErrCancelled reports that the run was aborted by the caller. Distinct
// from per-wallet failures, which land in the report as Error-category
// wallets.
var ErrCancelled = fmt.Errorf("audit cancelled: %w", context.Canceled)

// TokenInfoError is the fatal failure to capture the audited token's
// supply and decimals. No partial result is meaningful without it.
type TokenInfoError struct {
	Mint string
	Err  error
}

func (e *TokenInfoError) Error() string {
	return fmt.Sprintf("token info for %s: %v", e.Mint, e.Err)
}

func (e *TokenInfoError) Unwrap() error { return e.Err }

// Batch orchestration bounds.
const (
	DefaultBatchSize     = 20
	MinBatchSize         = 5
	MaxBatchSize         = 30
	DefaultBatchPause    = 150 * time.Millisecond
	DefaultWalletTimeout = 10 * time.Second
)

// Options configures a run. Zero values get defaults; BatchSize is
// clamped into [MinBatchSize, MaxBatchSize].
type Options struct {
	BatchSize     int
	BatchPause    time.Duration
	WalletTimeout time.Duration

	// TopHolders limits the audit to the N largest holders. Zero audits
	// every holder.
	TopHolders int

	// MinBalance drops holders below this decimal balance.
	MinBalance decimal.Decimal

	// ClusterSizeThreshold is the funder-group size that turns Normal
	// wallets into SuspiciousFunding.
	ClusterSizeThreshold int

	// BundleWindowSeconds is the fallback grouping window for trades
	// without slot granularity.
	BundleWindowSeconds int64

	Logger zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.BatchSize == 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.BatchSize < MinBatchSize {
		o.BatchSize = MinBatchSize
	}
	if o.BatchSize > MaxBatchSize {
		o.BatchSize = MaxBatchSize
	}
	if o.BatchPause <= 0 {
		o.BatchPause = DefaultBatchPause
	}
	if o.WalletTimeout <= 0 {
		o.WalletTimeout = DefaultWalletTimeout
	}
	if o.ClusterSizeThreshold <= 0 {
		o.ClusterSizeThreshold = funding.DefaultClusterSize
	}
	if o.BundleWindowSeconds <= 0 {
		o.BundleWindowSeconds = bundle.DefaultWindowSeconds
	}
	return o
}

// Result is the outcome of one audit run.
type Result struct {
	Report  *domain.AuditReport
	Bundles []domain.Bundle
	Team    *bundle.TeamReport
}

// Orchestrator wires the audit collaborators together. Trade source and
// stores are optional; a nil store skips persistence and a nil trade
// source skips bundle cross-referencing and bot detection.
type Orchestrator struct {
	client     solana.Client
	enumerator *holders.Enumerator
	classifier *classify.Classifier
	bots       *classify.BotDetector

	trades      trades.Source
	runStore    storage.AuditRunStore
	walletStore storage.ClassifiedWalletStore

	opts Options
	log  zerolog.Logger
}

// New creates an Orchestrator from its required collaborators.
func New(client solana.Client, enumerator *holders.Enumerator, classifier *classify.Classifier, opts Options) *Orchestrator {
	opts = opts.withDefaults()
	return &Orchestrator{
		client:     client,
		enumerator: enumerator,
		classifier: classifier,
		bots:       classify.NewBotDetector(),
		opts:       opts,
		log:        opts.Logger.With().Str("component", "orchestrator").Logger(),
	}
}

// WithTradeSource attaches a trade-history source, enabling bundle
// analysis and bot flags.
func (o *Orchestrator) WithTradeSource(src trades.Source) *Orchestrator {
	o.trades = src
	return o
}

// WithStores attaches run persistence.
func (o *Orchestrator) WithStores(runs storage.AuditRunStore, wallets storage.ClassifiedWalletStore) *Orchestrator {
	o.runStore = runs
	o.walletStore = wallets
	return o
}

// WithBotDetector replaces the default bot detector.
func (o *Orchestrator) WithBotDetector(d *classify.BotDetector) *Orchestrator {
	o.bots = d
	return o
}

// Run audits every selected holder of the mint and returns the full
// result. When only persistence fails the result is still returned next
// to the error. Cancellation surfaces as ErrCancelled.
func (o *Orchestrator) Run(ctx context.Context, mint string) (*Result, error) {
	started := time.Now()
	runID := uuid.NewString()
	log := o.log.With().Str("run_id", runID).Str("mint", mint).Logger()

	token, err := o.captureToken(ctx, mint)
	if err != nil {
		observability.RecordAuditRun("token_info_failed", time.Since(started).Seconds())
		return nil, err
	}
	log.Info().Int("decimals", token.Decimals).Str("supply", token.Supply.String()).
		Msg("token captured")

	holderSet, err := o.selectHolders(ctx, token)
	if err != nil {
		observability.RecordAuditRun("failed", time.Since(started).Seconds())
		return nil, o.runErr(ctx, err)
	}
	log.Info().Int("holders", len(holderSet)).Msg("holders selected")

	classified, err := o.classifyAll(ctx, holderSet, token, log)
	if err != nil {
		observability.RecordAuditRun("cancelled", time.Since(started).Seconds())
		return nil, err
	}

	groups := o.applyFunderGroups(classified)

	result := &Result{
		Report: o.buildReport(runID, token, classified, groups, started),
	}
	o.crossReferenceTrades(ctx, result, classified, groups, holderSet, token, log)

	finished := time.Now()
	result.Report.Run.FinishedAt = finished.UnixMilli()

	observability.RecordAuditRun("completed", finished.Sub(started).Seconds())
	log.Info().Dur("elapsed", finished.Sub(started)).
		Int("wallets", len(classified)).Int("funder_groups", len(groups)).
		Msg("audit complete")

	if err := o.persist(ctx, result.Report, classified); err != nil {
		return result, fmt.Errorf("persist run %s: %w", runID, err)
	}
	return result, nil
}

// captureToken fetches supply and decimals once. Everything downstream
// divides by this snapshot so percentages stay internally consistent.
func (o *Orchestrator) captureToken(ctx context.Context, mint string) (domain.TokenInfo, error) {
	supply, err := o.client.GetTokenSupply(ctx, mint)
	if err != nil {
		return domain.TokenInfo{}, &TokenInfoError{Mint: mint, Err: err}
	}
	raw, err := decimal.NewFromString(supply.Amount)
	if err != nil {
		return domain.TokenInfo{}, &TokenInfoError{Mint: mint, Err: fmt.Errorf("unparseable supply %q: %w", supply.Amount, err)}
	}
	token := domain.TokenInfo{Mint: mint, Decimals: supply.Decimals}
	token.Supply = token.ScaleRaw(raw)
	return token, nil
}

func (o *Orchestrator) selectHolders(ctx context.Context, token domain.TokenInfo) ([]domain.Holder, error) {
	if o.opts.TopHolders > 0 {
		return o.enumerator.Top(ctx, token, o.opts.TopHolders)
	}
	return o.enumerator.Enumerate(ctx, token, holders.Filter{MinBalance: o.opts.MinBalance})
}

// classifyAll works through the holders in fixed-size batches. Wallets
// within a batch classify concurrently; batches run sequentially with a
// pause between them. Cancellation is checked before each batch and at
// the start of each wallet.
func (o *Orchestrator) classifyAll(ctx context.Context, holderSet []domain.Holder, token domain.TokenInfo, log zerolog.Logger) ([]*domain.ClassifiedWallet, error) {
	classified := make([]*domain.ClassifiedWallet, len(holderSet))

	for offset := 0; offset < len(holderSet); offset += o.opts.BatchSize {
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}
		end := offset + o.opts.BatchSize
		if end > len(holderSet) {
			end = len(holderSet)
		}

		var wg sync.WaitGroup
		for i := offset; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				classified[i] = o.classifyOne(ctx, holderSet[i], token)
			}(i)
		}
		wg.Wait()

		if ctx.Err() != nil {
			return nil, ErrCancelled
		}
		log.Debug().Int("from", offset).Int("to", end).Msg("batch classified")

		if end < len(holderSet) {
			select {
			case <-time.After(o.opts.BatchPause):
			case <-ctx.Done():
				return nil, ErrCancelled
			}
		}
	}
	return classified, nil
}

// classifyOne races one wallet against the per-wallet timeout. A timed
// out wallet lands in the Error category; the batch keeps going.
func (o *Orchestrator) classifyOne(ctx context.Context, holder domain.Holder, token domain.TokenInfo) *domain.ClassifiedWallet {
	if ctx.Err() != nil {
		// Cooperative stop; classifyAll surfaces the cancellation.
		return &domain.ClassifiedWallet{Holder: holder, Category: domain.CategoryError, Err: context.Canceled.Error()}
	}

	wctx, cancel := context.WithTimeout(ctx, o.opts.WalletTimeout)
	defer cancel()

	w, err := o.classifier.Classify(wctx, holder, token)
	if err == nil {
		return &w
	}
	if ctx.Err() != nil {
		return &domain.ClassifiedWallet{Holder: holder, Category: domain.CategoryError, Err: context.Canceled.Error()}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		o.log.Warn().Str("wallet", holder.Address).Dur("timeout", o.opts.WalletTimeout).
			Msg("wallet classification timed out")
		return &domain.ClassifiedWallet{Holder: holder, Category: domain.CategoryError, Err: "timeout"}
	}
	return &domain.ClassifiedWallet{Holder: holder, Category: domain.CategoryError, Err: err.Error()}
}

// applyFunderGroups clusters wallets by shared funder and upgrades
// Normal members of a cluster to SuspiciousFunding.
func (o *Orchestrator) applyFunderGroups(classified []*domain.ClassifiedWallet) []domain.FunderGroup {
	records := make(map[string]*domain.FundingRecord)
	for _, w := range classified {
		if w.Funding != nil {
			records[w.Address] = w.Funding
		}
	}

	groups := funding.GroupByFunder(records, o.opts.ClusterSizeThreshold)
	if len(groups) == 0 {
		return nil
	}

	members := make(map[string]struct{})
	for _, g := range groups {
		for _, m := range g.Members {
			members[m] = struct{}{}
		}
	}
	for _, w := range classified {
		if w.Category != domain.CategoryNormal {
			continue
		}
		if _, ok := members[w.Address]; ok {
			w.Category = domain.CategorySuspiciousFunding
		}
	}
	return groups
}

// crossReferenceTrades pulls the mint's trade history, computes bundles
// and the team report, and flags bot wallets. A missing or failing trade
// source degrades to a report without bundle data.
func (o *Orchestrator) crossReferenceTrades(ctx context.Context, result *Result, classified []*domain.ClassifiedWallet, groups []domain.FunderGroup, holderSet []domain.Holder, token domain.TokenInfo, log zerolog.Logger) {
	if o.trades == nil {
		return
	}
	events, err := o.trades.Trades(ctx, token.Mint, 0, time.Now().Unix())
	if err != nil {
		log.Warn().Err(err).Msg("trade history unavailable, skipping bundle analysis")
		return
	}
	if len(events) == 0 {
		return
	}

	result.Bundles = bundle.FindBundles(events, o.opts.BundleWindowSeconds)
	team := bundle.TeamAnalysis(result.Bundles, groups, holderSet, token)
	result.Team = &team

	byWallet := make(map[string][]domain.TradeEvent)
	for _, e := range events {
		byWallet[e.Wallet] = append(byWallet[e.Wallet], e)
	}
	for _, w := range classified {
		if o.bots.Detect(byWallet[w.Address]) {
			w.Bot = true
		}
	}
}

func (o *Orchestrator) buildReport(runID string, token domain.TokenInfo, classified []*domain.ClassifiedWallet, groups []domain.FunderGroup, started time.Time) *domain.AuditReport {
	report := &domain.AuditReport{
		Run: domain.AuditRun{
			RunID:       runID,
			Mint:        token.Mint,
			Decimals:    token.Decimals,
			Supply:      token.Supply,
			HolderCount: len(classified),
			StartedAt:   started.UnixMilli(),
		},
		Token:        token,
		FunderGroups: groups,
	}
	for _, w := range classified {
		report.Add(w)
		if w.Category == domain.CategoryError && w.Err != "" {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %s", w.Address, w.Err))
		}
	}
	return report
}

func (o *Orchestrator) persist(ctx context.Context, report *domain.AuditReport, classified []*domain.ClassifiedWallet) error {
	if o.runStore == nil || o.walletStore == nil {
		return nil
	}
	if err := o.runStore.Insert(ctx, &report.Run); err != nil {
		return err
	}
	return o.walletStore.InsertBulk(ctx, report.Run.RunID, classified)
}

// runErr maps context errors to ErrCancelled, leaving other failures as
// they are.
func (o *Orchestrator) runErr(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return ErrCancelled
	}
	return err
}
