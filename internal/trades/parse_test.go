package trades

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-holder-audit/internal/registry"
	"solana-holder-audit/internal/solana"
)

const (
	testMint      = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	poolAuthority = "5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1" // Raydium Authority
	buyerWallet   = "BuYer1111111111111111111111111111111111111"
	sellerWallet  = "SeLLer111111111111111111111111111111111111"
)

func tokenBalance(idx int, owner, mint, amount string, decimals int) solana.TokenBalance {
	return solana.TokenBalance{
		AccountIndex: idx,
		Mint:         mint,
		Owner:        owner,
		Amount:       solana.TokenAmount{Amount: amount, Decimals: decimals},
	}
}

// swapTx builds a transaction where the buyer gains 100 tokens from the
// pool for 1.5 SOL plus a 5000 lamport fee.
func swapTx() *solana.Transaction {
	return &solana.Transaction{
		Slot:      9000,
		Signature: "sig-swap",
		BlockTime: 1_700_000_000,
		Meta: &solana.TransactionMeta{
			Fee:          5000,
			PreBalances:  []uint64{2_000_000_000, 10_000_000_000},
			PostBalances: []uint64{499_995_000, 11_500_000_000},
			PreTokenBalances: []solana.TokenBalance{
				tokenBalance(2, buyerWallet, testMint, "0", 6),
				tokenBalance(3, poolAuthority, testMint, "100000000", 6),
			},
			PostTokenBalances: []solana.TokenBalance{
				tokenBalance(2, buyerWallet, testMint, "100000000", 6),
				tokenBalance(3, poolAuthority, testMint, "0", 6),
			},
		},
		Message: &solana.TransactionMessage{
			AccountKeys: []string{buyerWallet, poolAuthority, "ata-buyer", "ata-pool"},
		},
	}
}

func TestParseTrades_Buy(t *testing.T) {
	events := ParseTrades(swapTx(), testMint, registry.New(nil))

	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, buyerWallet, e.Wallet)
	assert.True(t, e.IsBuy)
	assert.True(t, e.TokenAmount.Equal(decimal.NewFromInt(100)), "got %s", e.TokenAmount)
	// 1.5 SOL spent: the 5000 lamport fee is stripped from the fee payer.
	assert.True(t, e.SolAmount.Equal(decimal.RequireFromString("1.5")), "got %s", e.SolAmount)
	assert.Equal(t, int64(9000), e.Slot)
	assert.Equal(t, "sig-swap", e.Signature)
	assert.Equal(t, testMint, e.Mint)
}

func TestParseTrades_Sell(t *testing.T) {
	tx := swapTx()
	tx.Meta.PreTokenBalances = []solana.TokenBalance{
		tokenBalance(2, sellerWallet, testMint, "50000000", 6),
	}
	tx.Meta.PostTokenBalances = []solana.TokenBalance{
		tokenBalance(2, sellerWallet, testMint, "10000000", 6),
	}
	tx.Message.AccountKeys = []string{sellerWallet, poolAuthority, "ata-seller"}

	events := ParseTrades(tx, testMint, registry.New(nil))

	require.Len(t, events, 1)
	assert.False(t, events[0].IsBuy)
	assert.True(t, events[0].TokenAmount.Equal(decimal.NewFromInt(40)))
}

func TestParseTrades_PoolAuthorityExcluded(t *testing.T) {
	events := ParseTrades(swapTx(), testMint, registry.New(nil))
	for _, e := range events {
		assert.NotEqual(t, poolAuthority, e.Wallet)
	}
}

func TestParseTrades_FailedTransaction(t *testing.T) {
	tx := swapTx()
	tx.Meta.Err = map[string]interface{}{"InstructionError": []interface{}{0}}

	assert.Nil(t, ParseTrades(tx, testMint, registry.New(nil)))
}

func TestParseTrades_OtherMintIgnored(t *testing.T) {
	tx := swapTx()
	events := ParseTrades(tx, "So11111111111111111111111111111111111111112", registry.New(nil))
	assert.Empty(t, events)
}

func TestParseTrades_NilTransaction(t *testing.T) {
	assert.Nil(t, ParseTrades(nil, testMint, registry.New(nil)))
	assert.Nil(t, ParseTrades(&solana.Transaction{}, testMint, registry.New(nil)))
}

func TestParseTrades_NoSystemAccount(t *testing.T) {
	tx := swapTx()
	tx.Message.AccountKeys = []string{"someone-else", poolAuthority}

	events := ParseTrades(tx, testMint, registry.New(nil))

	require.Len(t, events, 1)
	assert.True(t, events[0].SolAmount.IsZero())
}
