package postgres_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-holder-audit/internal/domain"
	"solana-holder-audit/internal/storage"
	"solana-holder-audit/internal/storage/postgres"
)

func insertRun(t *testing.T, store *postgres.AuditRunStore) string {
	t.Helper()
	run := sampleRun("mintA", 1000)
	require.NoError(t, store.Insert(context.Background(), run))
	return run.RunID
}

func TestClassifiedWalletStore_InsertBulkAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	runID := insertRun(t, postgres.NewAuditRunStore(pool))
	store := postgres.NewClassifiedWalletStore(pool)
	ctx := context.Background()

	wallets := []*domain.ClassifiedWallet{
		{
			Holder: domain.Holder{
				Address:    "w1",
				RawBalance: decimal.NewFromInt(500_000_000),
				Balance:    decimal.NewFromInt(500),
			},
			Category: domain.CategorySuspiciousFunding,
			Funding: &domain.FundingRecord{
				Funder:         "funderX",
				Lamports:       2_000_000_000,
				BlockTime:      1_700_000_000,
				Signature:      "fundSig",
				SourceName:     "Binance",
				SourceCategory: "exchange",
			},
		},
		{
			Holder: domain.Holder{
				Address:    "w2",
				RawBalance: decimal.NewFromInt(100_000_000),
				Balance:    decimal.NewFromInt(100),
			},
			Category:              domain.CategoryInactive,
			DaysSinceLastActivity: ptr(12.5),
			Bot:                   true,
		},
		{
			Holder:   domain.Holder{Address: "w3", RawBalance: decimal.NewFromInt(1), Balance: decimal.NewFromInt(1)},
			Category: domain.CategoryError,
			Err:      "timeout after 10s",
		},
	}
	require.NoError(t, store.InsertBulk(ctx, runID, wallets))

	all, err := store.GetByRun(ctx, runID)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "w1", all[0].Address, "ordered by balance DESC")

	require.NotNil(t, all[0].Funding)
	assert.Equal(t, "funderX", all[0].Funding.Funder)
	assert.Equal(t, uint64(2_000_000_000), all[0].Funding.Lamports)
	assert.Equal(t, "Binance", all[0].Funding.SourceName)

	require.NotNil(t, all[1].DaysSinceLastActivity)
	assert.InDelta(t, 12.5, *all[1].DaysSinceLastActivity, 0.0001)
	assert.True(t, all[1].Bot)

	assert.Equal(t, "timeout after 10s", all[2].Err)

	inactive, err := store.GetByRunAndCategory(ctx, runID, domain.CategoryInactive)
	require.NoError(t, err)
	require.Len(t, inactive, 1)
	assert.Equal(t, "w2", inactive[0].Address)
}

func TestClassifiedWalletStore_DuplicateRollsBack(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	runID := insertRun(t, postgres.NewAuditRunStore(pool))
	store := postgres.NewClassifiedWalletStore(pool)
	ctx := context.Background()

	first := []*domain.ClassifiedWallet{
		{Holder: domain.Holder{Address: "w1", RawBalance: decimal.NewFromInt(1), Balance: decimal.NewFromInt(1)}, Category: domain.CategoryNormal},
	}
	require.NoError(t, store.InsertBulk(ctx, runID, first))

	second := []*domain.ClassifiedWallet{
		{Holder: domain.Holder{Address: "w2", RawBalance: decimal.NewFromInt(2), Balance: decimal.NewFromInt(2)}, Category: domain.CategoryNormal},
		{Holder: domain.Holder{Address: "w1", RawBalance: decimal.NewFromInt(1), Balance: decimal.NewFromInt(1)}, Category: domain.CategoryNormal},
	}
	err := store.InsertBulk(ctx, runID, second)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	all, err := store.GetByRun(ctx, runID)
	require.NoError(t, err)
	assert.Len(t, all, 1, "failed batch must roll back entirely")
}
