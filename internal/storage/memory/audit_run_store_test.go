package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-holder-audit/internal/domain"
	"solana-holder-audit/internal/storage"
)

func sampleRun(runID, mint string, startedAt int64) *domain.AuditRun {
	return &domain.AuditRun{
		RunID:       runID,
		Mint:        mint,
		Decimals:    6,
		Supply:      decimal.NewFromInt(1_000_000),
		HolderCount: 42,
		StartedAt:   startedAt,
		FinishedAt:  startedAt + 1000,
	}
}

func TestAuditRunStore_InsertAndGet(t *testing.T) {
	store := NewAuditRunStore()
	ctx := context.Background()

	run := sampleRun("run-1", "mintA", 1000)
	require.NoError(t, store.Insert(ctx, run))

	got, err := store.GetByID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run.Mint, got.Mint)
	assert.Equal(t, run.HolderCount, got.HolderCount)

	// Stored copy is insulated from caller mutation.
	run.HolderCount = 999
	got, err = store.GetByID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 42, got.HolderCount)
}

func TestAuditRunStore_Duplicate(t *testing.T) {
	store := NewAuditRunStore()
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, sampleRun("run-1", "mintA", 1000)))
	err := store.Insert(ctx, sampleRun("run-1", "mintA", 2000))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestAuditRunStore_NotFound(t *testing.T) {
	store := NewAuditRunStore()

	_, err := store.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.Latest(context.Background(), "neverAudited")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAuditRunStore_Latest(t *testing.T) {
	store := NewAuditRunStore()
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, sampleRun("run-1", "mintA", 1000)))
	require.NoError(t, store.Insert(ctx, sampleRun("run-2", "mintA", 3000)))
	require.NoError(t, store.Insert(ctx, sampleRun("run-3", "mintB", 9000)))

	latest, err := store.Latest(ctx, "mintA")
	require.NoError(t, err)
	assert.Equal(t, "run-2", latest.RunID)

	runs, err := store.GetByMint(ctx, "mintA")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-1", runs[0].RunID)
}
