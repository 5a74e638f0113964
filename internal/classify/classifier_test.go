package classify

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-holder-audit/internal/domain"
	"solana-holder-audit/internal/funding"
	"solana-holder-audit/internal/registry"
	"solana-holder-audit/internal/solana"
	"solana-holder-audit/internal/solana/stub"
)

const (
	testWallet = "5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1"
	testMint   = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

func testToken() domain.TokenInfo {
	return domain.TokenInfo{Mint: testMint, Decimals: 6, Supply: decimal.NewFromInt(1_000_000)}
}

func newClassifier(client *stub.Client) *Classifier {
	tracer := funding.New(client, registry.New(nil), funding.Options{})
	return New(client, tracer, Thresholds{}, zerolog.Nop())
}

func holder() domain.Holder {
	return domain.Holder{Address: testWallet, Balance: decimal.NewFromInt(1000)}
}

// sigList produces n signature entries, newest first.
func sigList(n int, blockTime int64) []solana.SignatureInfo {
	sigs := make([]solana.SignatureInfo, n)
	for i := range sigs {
		bt := blockTime - int64(i)
		sigs[i] = solana.SignatureInfo{Signature: fmt.Sprintf("sig%d", i), BlockTime: &bt}
	}
	return sigs
}

// fungibleAssets produces n fungible assets.
func fungibleAssets(n int) []solana.Asset {
	assets := make([]solana.Asset, n)
	for i := range assets {
		assets[i] = solana.Asset{ID: fmt.Sprintf("asset%d", i), Interface: "FungibleToken"}
	}
	return assets
}

// mintOnlyTx builds a transaction whose token balances touch only mint.
func mintOnlyTx(sig, mint string) *solana.Transaction {
	return &solana.Transaction{
		Signature: sig,
		Meta: &solana.TransactionMeta{
			PreTokenBalances:  []solana.TokenBalance{{Mint: mint, Amount: solana.TokenAmount{Amount: "100"}}},
			PostTokenBalances: []solana.TokenBalance{{Mint: mint, Amount: solana.TokenAmount{Amount: "200"}}},
		},
		Message: &solana.TransactionMessage{},
	}
}

func TestClassify_Fresh(t *testing.T) {
	client := stub.NewClient()
	client.AddSignatures(testWallet, sigList(40, 1000))

	wallet, err := newClassifier(client).Classify(context.Background(), holder(), testToken())
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryFresh, wallet.Category)
}

func TestClassify_FewAssets(t *testing.T) {
	client := stub.NewClient()
	client.AddSignatures(testWallet, sigList(150, 1000))
	client.Assets[testWallet] = fungibleAssets(1)
	// No transactions registered: the recent history is not mint-pure.

	wallet, err := newClassifier(client).Classify(context.Background(), holder(), testToken())
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryFewAssets, wallet.Category)
}

func TestClassify_Teambot(t *testing.T) {
	client := stub.NewClient()
	client.AddSignatures(testWallet, sigList(150, 1000))
	client.Assets[testWallet] = fungibleAssets(1)
	for i := 0; i < 20; i++ {
		client.AddTransaction(mintOnlyTx(fmt.Sprintf("sig%d", i), testMint))
	}

	wallet, err := newClassifier(client).Classify(context.Background(), holder(), testToken())
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryTeambot, wallet.Category)
}

func TestClassify_TeambotNeedsPurity(t *testing.T) {
	client := stub.NewClient()
	client.AddSignatures(testWallet, sigList(150, 1000))
	client.Assets[testWallet] = fungibleAssets(1)
	for i := 0; i < 20; i++ {
		client.AddTransaction(mintOnlyTx(fmt.Sprintf("sig%d", i), testMint))
	}
	// One recent transaction touching another mint breaks the pattern.
	client.AddTransaction(mintOnlyTx("sig7", "otherMint111"))

	wallet, err := newClassifier(client).Classify(context.Background(), holder(), testToken())
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryFewAssets, wallet.Category)
}

func TestClassify_NoToken(t *testing.T) {
	client := stub.NewClient()
	client.AddSignatures(testWallet, sigList(150, 1000))
	client.Assets[testWallet] = fungibleAssets(5)
	// The derived ATA has no history at all.

	wallet, err := newClassifier(client).Classify(context.Background(), holder(), testToken())
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryNoToken, wallet.Category)
}

// seedATA registers ATA history so the creation anchor lands on creationSig.
func seedATA(t *testing.T, client *stub.Client, creationSig string, creationTime int64) {
	t.Helper()
	ata, err := solana.DeriveATA(testWallet, testMint)
	require.NoError(t, err)
	client.AddSignatures(ata, []solana.SignatureInfo{
		{Signature: creationSig, BlockTime: &creationTime},
	})
}

func TestClassify_Inactive(t *testing.T) {
	const (
		creationTime = 2_000_000_000
		tenDays      = 10 * 86400
	)

	client := stub.NewClient()
	swapTime := int64(creationTime - tenDays)

	// Wallet history, newest first: plenty of activity, then the ATA
	// creation, then an old swap well before it.
	sigs := sigList(150, creationTime+5000)
	ct := int64(creationTime)
	sigs = append(sigs,
		solana.SignatureInfo{Signature: "ataCreate", BlockTime: &ct},
		solana.SignatureInfo{Signature: "oldSwap", BlockTime: &swapTime},
	)
	client.AddSignatures(testWallet, sigs)
	client.Assets[testWallet] = fungibleAssets(5)
	seedATA(t, client, "ataCreate", creationTime)

	client.AddTransaction(&solana.Transaction{
		Signature: "oldSwap",
		BlockTime: swapTime,
		Meta:      &solana.TransactionMeta{},
		Message: &solana.TransactionMessage{
			AccountKeys: []string{testWallet, registry.RaydiumAMMV4},
		},
	})

	wallet, err := newClassifier(client).Classify(context.Background(), holder(), testToken())
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryInactive, wallet.Category)
	require.NotNil(t, wallet.DaysSinceLastActivity)
	assert.InDelta(t, 10.0, *wallet.DaysSinceLastActivity, 0.01)
}

func TestClassify_NoATATransaction(t *testing.T) {
	const creationTime = 2_000_000_000

	client := stub.NewClient()
	sigs := sigList(150, creationTime+5000)
	ct := int64(creationTime)
	sigs = append(sigs, solana.SignatureInfo{Signature: "ataCreate", BlockTime: &ct})
	client.AddSignatures(testWallet, sigs)
	client.Assets[testWallet] = fungibleAssets(5)
	seedATA(t, client, "ataCreate", creationTime)
	// Nothing before the creation anchor qualifies as a swap.

	wallet, err := newClassifier(client).Classify(context.Background(), holder(), testToken())
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryNoATATransaction, wallet.Category)
}

func TestClassify_Normal(t *testing.T) {
	const creationTime = 2_000_000_000

	client := stub.NewClient()
	swapTime := int64(creationTime - 86400) // one day of dormancy only

	sigs := sigList(150, creationTime+5000)
	ct := int64(creationTime)
	sigs = append(sigs,
		solana.SignatureInfo{Signature: "ataCreate", BlockTime: &ct},
		solana.SignatureInfo{Signature: "recentSwap", BlockTime: &swapTime},
	)
	client.AddSignatures(testWallet, sigs)
	client.Assets[testWallet] = fungibleAssets(5)
	seedATA(t, client, "ataCreate", creationTime)

	client.AddTransaction(&solana.Transaction{
		Signature: "recentSwap",
		BlockTime: swapTime,
		Meta:      &solana.TransactionMeta{},
		Message: &solana.TransactionMessage{
			AccountKeys: []string{testWallet, registry.PumpFun},
		},
	})

	wallet, err := newClassifier(client).Classify(context.Background(), holder(), testToken())
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryNormal, wallet.Category)
	require.NotNil(t, wallet.DaysSinceLastActivity)
	assert.InDelta(t, 1.0, *wallet.DaysSinceLastActivity, 0.01)
}

func TestClassify_StepErrorBecomesErrorCategory(t *testing.T) {
	client := stub.NewClient()
	client.Err = errors.New("rpc down")

	wallet, err := newClassifier(client).Classify(context.Background(), holder(), testToken())
	require.NoError(t, err, "a failed wallet is a result, not a run failure")
	assert.Equal(t, domain.CategoryError, wallet.Category)
	assert.Contains(t, wallet.Err, "rpc down")
}

func TestClassify_CancellationPropagates(t *testing.T) {
	client := stub.NewClient()
	client.Err = errors.New("rpc down")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newClassifier(client).Classify(ctx, holder(), testToken())
	require.ErrorIs(t, err, context.Canceled)
}

func TestClassify_Exclusivity(t *testing.T) {
	// Every scenario above must land in the closed category set.
	client := stub.NewClient()
	client.AddSignatures(testWallet, sigList(40, 1000))

	wallet, err := newClassifier(client).Classify(context.Background(), holder(), testToken())
	require.NoError(t, err)
	assert.True(t, wallet.Category.IsValid(), "category %q outside the closed set", wallet.Category)
}

func TestBotDetector(t *testing.T) {
	d := NewBotDetector()
	d.TxCountThreshold = 100 // keep fixtures small

	balanced := make([]domain.TradeEvent, 0, 102)
	for i := 0; i < 51; i++ {
		balanced = append(balanced,
			domain.TradeEvent{IsBuy: true, SolAmount: decimal.NewFromInt(1)},
			domain.TradeEvent{IsBuy: false, SolAmount: decimal.NewFromInt(1)},
		)
	}
	assert.True(t, d.Detect(balanced), "high volume with balanced buys/sells")

	assert.False(t, d.Detect(balanced[:50]), "below the volume threshold")

	lopsided := make([]domain.TradeEvent, 0, 150)
	for i := 0; i < 150; i++ {
		lopsided = append(lopsided, domain.TradeEvent{IsBuy: true, SolAmount: decimal.NewFromInt(1)})
	}
	assert.False(t, d.Detect(lopsided), "one-sided flow without profit is not a bot")

	profitable := append([]domain.TradeEvent{}, lopsided...)
	for i := 0; i < 60; i++ {
		profitable = append(profitable, domain.TradeEvent{IsBuy: false, SolAmount: decimal.NewFromInt(50_000)})
	}
	assert.True(t, d.Detect(profitable), "outsized profit flags a bot")
}
