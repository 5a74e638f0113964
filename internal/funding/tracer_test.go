package funding

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-holder-audit/internal/domain"
	"solana-holder-audit/internal/registry"
	"solana-holder-audit/internal/solana"
	"solana-holder-audit/internal/solana/stub"
)

const (
	wallet    = "walletUnderAudit"
	funderHot = "hotWallet1"
)

func ptrTime(v int64) *int64 { return &v }

// transferTx builds a successful transaction with a parsed system transfer.
func transferTx(sig string, blockTime int64, source, dest string, lamports uint64) *solana.Transaction {
	return &solana.Transaction{
		Signature: sig,
		BlockTime: blockTime,
		Meta:      &solana.TransactionMeta{},
		Message: &solana.TransactionMessage{
			AccountKeys: []string{source, dest},
			Instructions: []solana.Instruction{{
				Program:   "system",
				ProgramID: solana.SystemProgramID,
				Parsed: &solana.ParsedInstruction{
					Type: "transfer",
					Info: map[string]interface{}{
						"source":      source,
						"destination": dest,
						"lamports":    float64(lamports),
					},
				},
			}},
		},
	}
}

func TestTrace_ParsedTransfer(t *testing.T) {
	client := stub.NewClient()
	client.AddSignatures(wallet, []solana.SignatureInfo{
		{Signature: "sig2", BlockTime: ptrTime(2000)},
		{Signature: "sig1", BlockTime: ptrTime(1000)},
	})
	client.AddTransaction(transferTx("sig1", 1000, funderHot, wallet, 2_000_000_000))
	client.AddTransaction(transferTx("sig2", 2000, "someoneElse", "otherDest", 1))

	tracer := New(client, registry.New(nil), Options{})
	rec, err := tracer.Trace(context.Background(), wallet)
	require.NoError(t, err)

	require.NotNil(t, rec)
	assert.Equal(t, funderHot, rec.Funder)
	assert.Equal(t, uint64(2_000_000_000), rec.Lamports)
	assert.Equal(t, "sig1", rec.Signature)
	assert.Equal(t, int64(1000), rec.BlockTime)
}

func TestTrace_BalanceDeltaFallback(t *testing.T) {
	client := stub.NewClient()
	client.AddSignatures(wallet, []solana.SignatureInfo{
		{Signature: "sig1", BlockTime: ptrTime(1000)},
	})
	client.AddTransaction(&solana.Transaction{
		Signature: "sig1",
		BlockTime: 1000,
		Meta: &solana.TransactionMeta{
			Fee:          5000,
			PreBalances:  []uint64{10_000_000_000, 0},
			PostBalances: []uint64{8_999_995_000, 1_000_000_000},
		},
		Message: &solana.TransactionMessage{
			AccountKeys: []string{funderHot, wallet},
		},
	})

	tracer := New(client, registry.New(nil), Options{})
	rec, err := tracer.Trace(context.Background(), wallet)
	require.NoError(t, err)

	require.NotNil(t, rec)
	assert.Equal(t, funderHot, rec.Funder)
	assert.Equal(t, uint64(1_000_000_000), rec.Lamports)
}

func TestTrace_EarliestTransferWins(t *testing.T) {
	client := stub.NewClient()
	client.AddSignatures(wallet, []solana.SignatureInfo{
		{Signature: "sigNew", BlockTime: ptrTime(5000)},
		{Signature: "sigOld", BlockTime: ptrTime(1000)},
	})
	client.AddTransaction(transferTx("sigOld", 1000, "firstFunder", wallet, 100))
	client.AddTransaction(transferTx("sigNew", 5000, "laterFunder", wallet, 200))

	tracer := New(client, registry.New(nil), Options{})
	rec, err := tracer.Trace(context.Background(), wallet)
	require.NoError(t, err)

	require.NotNil(t, rec)
	assert.Equal(t, "firstFunder", rec.Funder)
}

func TestTrace_SaturatedHistory(t *testing.T) {
	client := stub.NewClient()
	sigs := make([]solana.SignatureInfo, 50)
	for i := range sigs {
		sigs[i] = solana.SignatureInfo{Signature: fmt.Sprintf("sig%d", i)}
	}
	client.AddSignatures(wallet, sigs)

	tracer := New(client, registry.New(nil), Options{MaxSignatures: 50})
	rec, err := tracer.Trace(context.Background(), wallet)
	require.NoError(t, err)
	assert.Nil(t, rec, "a saturated history window must not guess a funder")
	assert.Zero(t, client.Calls["getTransaction"])
}

func TestTrace_Idempotent(t *testing.T) {
	client := stub.NewClient()
	client.AddSignatures(wallet, []solana.SignatureInfo{
		{Signature: "sig1", BlockTime: ptrTime(1000)},
	})
	client.AddTransaction(transferTx("sig1", 1000, funderHot, wallet, 777))

	tracer := New(client, registry.New(nil), Options{})
	first, err := tracer.Trace(context.Background(), wallet)
	require.NoError(t, err)
	second, err := tracer.Trace(context.Background(), wallet)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestTrace_RegistryEnrichment(t *testing.T) {
	binanceHot := "5tzFkiKscXHK5ZXCGbXZxdw7gTjjD1mBwuoFbhUvuAi9"

	client := stub.NewClient()
	client.AddSignatures(wallet, []solana.SignatureInfo{
		{Signature: "sig1", BlockTime: ptrTime(1000)},
	})
	client.AddTransaction(transferTx("sig1", 1000, binanceHot, wallet, 500_000_000))

	tracer := New(client, registry.New(nil), Options{})
	rec, err := tracer.Trace(context.Background(), wallet)
	require.NoError(t, err)

	require.NotNil(t, rec)
	assert.NotEmpty(t, rec.SourceName)
	assert.Equal(t, "exchange", rec.SourceCategory)
}

func TestFreshAt(t *testing.T) {
	client := stub.NewClient()
	client.AddSignatures(wallet, []solana.SignatureInfo{
		{Signature: "anchor"},
		{Signature: "sig2"},
		{Signature: "sig1"},
	})

	tracer := New(client, registry.New(nil), Options{})

	fresh, err := tracer.FreshAt(context.Background(), wallet, "anchor", 5)
	require.NoError(t, err)
	assert.True(t, fresh, "2 pre-anchor signatures under threshold 5")

	fresh, err = tracer.FreshAt(context.Background(), wallet, "anchor", 2)
	require.NoError(t, err)
	assert.False(t, fresh)
}

func TestGroupByFunder_Cluster(t *testing.T) {
	records := map[string]*domain.FundingRecord{
		"w1": {Funder: "clusterFunder"},
		"w2": {Funder: "clusterFunder"},
		"w3": {Funder: "clusterFunder"},
		"w4": {Funder: "clusterFunder"},
		"w5": {Funder: "clusterFunder"},
		"w6": {Funder: "loneFunder"},
		"w7": nil,
	}

	groups := GroupByFunder(records, 3)
	require.Len(t, groups, 1)
	assert.Equal(t, "clusterFunder", groups[0].Funder)
	assert.Equal(t, []string{"w1", "w2", "w3", "w4", "w5"}, groups[0].Members)
}

func TestGroupByFunder_BelowThreshold(t *testing.T) {
	records := map[string]*domain.FundingRecord{
		"w1": {Funder: "f1"},
		"w2": {Funder: "f1"},
	}
	assert.Empty(t, GroupByFunder(records, 3))
}
