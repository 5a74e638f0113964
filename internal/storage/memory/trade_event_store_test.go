package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-holder-audit/internal/domain"
)

func trade(mint, wallet, sig string, ts int64, isBuy bool) *domain.TradeEvent {
	return &domain.TradeEvent{
		Mint:        mint,
		Wallet:      wallet,
		IsBuy:       isBuy,
		TokenAmount: decimal.NewFromInt(10),
		SolAmount:   decimal.NewFromInt(1),
		Timestamp:   ts,
		Signature:   sig,
	}
}

func TestTradeEventStore_InsertAndQuery(t *testing.T) {
	store := NewTradeEventStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.TradeEvent{
		trade("mintA", "w1", "s1", 100, true),
		trade("mintA", "w2", "s2", 200, false),
		trade("mintA", "w3", "s3", 300, true),
		trade("mintB", "w4", "s4", 100, true),
	})
	require.NoError(t, err)

	all, err := store.GetByMint(ctx, "mintA", 0, 250)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "s1", all[0].Signature, "ordered by timestamp")

	buys, err := store.GetBuysByMint(ctx, "mintA", 0, 1000)
	require.NoError(t, err)
	require.Len(t, buys, 2)
	for _, e := range buys {
		assert.True(t, e.IsBuy)
	}
}

func TestTradeEventStore_DuplicatesCollapse(t *testing.T) {
	store := NewTradeEventStore()
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.TradeEvent{
		trade("mintA", "w1", "s1", 100, true),
	}))
	require.NoError(t, store.InsertBulk(ctx, []*domain.TradeEvent{
		trade("mintA", "w1", "s1", 100, true), // same signature and wallet
	}))

	all, err := store.GetByMint(ctx, "mintA", 0, 1000)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
