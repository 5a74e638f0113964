package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-holder-audit/internal/classify"
	"solana-holder-audit/internal/domain"
	"solana-holder-audit/internal/funding"
	"solana-holder-audit/internal/holders"
	"solana-holder-audit/internal/registry"
	"solana-holder-audit/internal/solana"
	"solana-holder-audit/internal/solana/stub"
	"solana-holder-audit/internal/storage/memory"
	"solana-holder-audit/internal/trades"
)

const testMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

// newOrchestrator builds an orchestrator over a stub chain with the
// given holders. Wallets without history classify as Fresh, which keeps
// run-level tests fast.
func newOrchestrator(client *stub.Client, opts Options) *Orchestrator {
	opts.Logger = zerolog.Nop()
	reg := registry.New(nil)
	tracer := funding.New(client, reg, funding.Options{})
	classifier := classify.New(client, tracer, classify.DefaultThresholds(), zerolog.Nop())
	enumerator := holders.New(client, holders.Options{Logger: zerolog.Nop()})
	return New(client, enumerator, classifier, opts)
}

func seedToken(client *stub.Client, holderAmounts map[string]string) {
	client.Supplies[testMint] = &solana.TokenSupply{Amount: "1000000000", Decimals: 6}
	for owner, amount := range holderAmounts {
		client.TokenAccounts[testMint] = append(client.TokenAccounts[testMint],
			solana.TokenAccount{Address: owner + "-ata", Owner: owner, Amount: amount})
	}
}

func fastOptions() Options {
	return Options{
		BatchSize:     MinBatchSize,
		BatchPause:    time.Millisecond,
		WalletTimeout: time.Second,
	}
}

func TestRun_FreshHolders(t *testing.T) {
	client := stub.NewClient()
	seedToken(client, map[string]string{
		"w1": "100000000", // 100 tokens
		"w2": "50000000",
		"w3": "25000000",
		"w4": "10000000",
		"w5": "5000000",
		"w6": "1000000",
	})

	orch := newOrchestrator(client, fastOptions())

	result, err := orch.Run(context.Background(), testMint)
	require.NoError(t, err)

	report := result.Report
	assert.Equal(t, testMint, report.Run.Mint)
	assert.Equal(t, 6, report.Run.HolderCount)
	assert.True(t, report.Token.Supply.Equal(decimal.NewFromInt(1000)), "got %s", report.Token.Supply)
	assert.NotEmpty(t, report.Run.RunID)
	assert.GreaterOrEqual(t, report.Run.FinishedAt, report.Run.StartedAt)

	fresh := report.Buckets[domain.CategoryFresh]
	require.NotNil(t, fresh)
	assert.Len(t, fresh.Wallets, 6)
	// All six together hold 191 of 1000 tokens.
	assert.True(t, fresh.SupplyPercent.Equal(decimal.RequireFromString("19.1")), "got %s", fresh.SupplyPercent)
	assert.Empty(t, report.Errors)
}

func TestRun_TokenInfoFatal(t *testing.T) {
	client := stub.NewClient() // no supply registered

	orch := newOrchestrator(client, fastOptions())

	_, err := orch.Run(context.Background(), testMint)
	require.Error(t, err)

	var tokenErr *TokenInfoError
	require.ErrorAs(t, err, &tokenErr)
	assert.Equal(t, testMint, tokenErr.Mint)
}

func TestRun_Cancellation(t *testing.T) {
	client := stub.NewClient()
	seedToken(client, map[string]string{"w1": "1000000"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	orch := newOrchestrator(client, fastOptions())

	_, err := orch.Run(ctx, testMint)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

// slowClient delays signature fetches so a wallet can out-wait the
// per-wallet timeout.
type slowClient struct {
	*stub.Client
	delay time.Duration
}

func (s *slowClient) GetSignaturesForAddress(ctx context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.Client.GetSignaturesForAddress(ctx, address, opts)
}

func TestRun_WalletTimeoutBecomesError(t *testing.T) {
	inner := stub.NewClient()
	seedToken(inner, map[string]string{"w1": "1000000"})
	slow := &slowClient{Client: inner, delay: 200 * time.Millisecond}

	opts := fastOptions()
	opts.WalletTimeout = 50 * time.Millisecond
	opts.Logger = zerolog.Nop()

	reg := registry.New(nil)
	tracer := funding.New(slow, reg, funding.Options{})
	classifier := classify.New(slow, tracer, classify.DefaultThresholds(), zerolog.Nop())
	// Enumeration and token capture go through the plain stub so only
	// wallet classification feels the delay.
	enumerator := holders.New(inner, holders.Options{Logger: zerolog.Nop()})
	orch := New(inner, enumerator, classifier, opts)

	result, err := orch.Run(context.Background(), testMint)
	require.NoError(t, err)

	bucket := result.Report.Buckets[domain.CategoryError]
	require.NotNil(t, bucket)
	require.Len(t, bucket.Wallets, 1)
	assert.Equal(t, "timeout", bucket.Wallets[0].Err)
	require.Len(t, result.Report.Errors, 1)
}

func TestRun_PersistenceAndBundles(t *testing.T) {
	client := stub.NewClient()
	seedToken(client, map[string]string{
		"w1": "100000000",
		"w2": "50000000",
	})

	runs := memory.NewAuditRunStore()
	wallets := memory.NewClassifiedWalletStore()
	events := memory.NewTradeEventStore()

	now := time.Now().Unix() - 60
	require.NoError(t, events.InsertBulk(context.Background(), []*domain.TradeEvent{
		{Mint: testMint, Wallet: "w1", IsBuy: true, TokenAmount: decimal.NewFromInt(100), SolAmount: decimal.NewFromInt(2), Timestamp: now, Slot: 7000, Signature: "s1"},
		{Mint: testMint, Wallet: "w2", IsBuy: true, TokenAmount: decimal.NewFromInt(50), SolAmount: decimal.NewFromInt(1), Timestamp: now, Slot: 7000, Signature: "s2"},
	}))

	orch := newOrchestrator(client, fastOptions()).
		WithStores(runs, wallets).
		WithTradeSource(trades.NewStoreSource(events))

	result, err := orch.Run(context.Background(), testMint)
	require.NoError(t, err)

	// Both buys share slot 7000, so they bundle.
	require.Len(t, result.Bundles, 1)
	assert.Equal(t, 2, result.Bundles[0].WalletCount())
	require.NotNil(t, result.Team)

	persisted, err := runs.Latest(context.Background(), testMint)
	require.NoError(t, err)
	assert.Equal(t, result.Report.Run.RunID, persisted.RunID)

	stored, err := wallets.GetByRun(context.Background(), result.Report.Run.RunID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestApplyFunderGroups_UpgradesNormalWallets(t *testing.T) {
	orch := newOrchestrator(stub.NewClient(), fastOptions())

	funder := "FunderXYZ"
	mk := func(addr string, cat domain.Category, funded bool) *domain.ClassifiedWallet {
		w := &domain.ClassifiedWallet{Category: cat}
		w.Address = addr
		if funded {
			w.Funding = &domain.FundingRecord{Funder: funder, Lamports: 1_000_000}
		}
		return w
	}

	classified := []*domain.ClassifiedWallet{
		mk("a", domain.CategoryNormal, true),
		mk("b", domain.CategoryNormal, true),
		mk("c", domain.CategoryInactive, true), // terminal category keeps
		mk("d", domain.CategoryNormal, false),  // no funding record
	}

	groups := orch.applyFunderGroups(classified)

	require.Len(t, groups, 1)
	assert.Equal(t, funder, groups[0].Funder)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, groups[0].Members)

	assert.Equal(t, domain.CategorySuspiciousFunding, classified[0].Category)
	assert.Equal(t, domain.CategorySuspiciousFunding, classified[1].Category)
	assert.Equal(t, domain.CategoryInactive, classified[2].Category)
	assert.Equal(t, domain.CategoryNormal, classified[3].Category)
}

func TestOptions_BatchSizeClamped(t *testing.T) {
	assert.Equal(t, MaxBatchSize, Options{BatchSize: 50}.withDefaults().BatchSize)
	assert.Equal(t, MinBatchSize, Options{BatchSize: 1}.withDefaults().BatchSize)
	assert.Equal(t, DefaultBatchSize, Options{}.withDefaults().BatchSize)
}
