package classify

import (
	"context"
	"fmt"

	"solana-holder-audit/internal/domain"
	"solana-holder-audit/internal/registry"
	"solana-holder-audit/internal/solana"
)

// ataWalkPageSize is the page size for the backward walk to the ATA's
// first transaction.
const ataWalkPageSize = 1000

// inactivityCheck measures how long the wallet had been dormant before
// it acquired the audited token. Returns the terminal category when one
// applies ("" to fall through) and the dormancy gap in days when it
// could be computed.
func (c *Classifier) inactivityCheck(ctx context.Context, address, mint string) (domain.Category, *float64, error) {
	ata, err := solana.DeriveATA(address, mint)
	if err != nil {
		return "", nil, fmt.Errorf("derive ata: %w", err)
	}

	creation, err := c.firstTransaction(ctx, ata)
	if err != nil {
		return "", nil, fmt.Errorf("ata history: %w", err)
	}
	if creation == nil {
		// The wallet never had a token account for this mint on-chain;
		// its balance came through some custodial or aggregated path.
		return domain.CategoryNoToken, nil, nil
	}
	if creation.BlockTime == nil {
		return domain.CategoryNoToken, nil, nil
	}

	swapTime, err := c.lastSwapBefore(ctx, address, creation.Signature)
	if err != nil {
		return "", nil, fmt.Errorf("swap scan: %w", err)
	}
	if swapTime == nil {
		return domain.CategoryNoATATransaction, nil, nil
	}

	days := float64(*creation.BlockTime-*swapTime) / 86400
	if days < 0 {
		days = 0
	}
	if days > c.th.InactivityThresholdDays {
		return domain.CategoryInactive, &days, nil
	}
	return "", &days, nil
}

// firstTransaction walks an address's signature history backward to its
// oldest entry. Returns nil when the address has no history.
func (c *Classifier) firstTransaction(ctx context.Context, address string) (*solana.SignatureInfo, error) {
	var oldest *solana.SignatureInfo
	before := ""

	for {
		sigs, err := c.client.GetSignaturesForAddress(ctx, address, &solana.SignaturesOpts{
			Before: before,
			Limit:  ataWalkPageSize,
		})
		if err != nil {
			return nil, err
		}
		if len(sigs) == 0 {
			return oldest, nil
		}

		last := sigs[len(sigs)-1]
		oldest = &last

		if len(sigs) < ataWalkPageSize {
			return oldest, nil
		}
		before = last.Signature
	}
}

// lastSwapBefore scans the wallet's history just before the anchor for
// the most recent transaction recognizable as a swap, and returns its
// block time.
func (c *Classifier) lastSwapBefore(ctx context.Context, address, anchorSig string) (*int64, error) {
	sigs, err := c.client.GetSignaturesForAddress(ctx, address, &solana.SignaturesOpts{
		Before: anchorSig,
		Limit:  c.th.MaxSwapScanTransactions,
	})
	if err != nil {
		return nil, err
	}

	for _, sig := range sigs {
		if sig.Err != nil {
			continue
		}
		tx, err := c.client.GetTransaction(ctx, sig.Signature)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if tx == nil {
			continue
		}
		if isSwap(tx) {
			if sig.BlockTime != nil {
				return sig.BlockTime, nil
			}
			bt := tx.BlockTime
			return &bt, nil
		}
	}
	return nil, nil
}

// isSwap recognizes a swap by a known swap program in the account keys,
// an inner parsed transfer, or a token balance change.
func isSwap(tx *solana.Transaction) bool {
	if tx.Message != nil {
		for _, key := range tx.Message.AccountKeys {
			if registry.IsSwapProgram(key) {
				return true
			}
		}
	}

	if tx.Meta == nil {
		return false
	}
	for _, inner := range tx.Meta.InnerInstructions {
		for _, ins := range inner.Instructions {
			if ins.Parsed != nil && ins.Parsed.Type == "transfer" {
				return true
			}
		}
	}

	return tokenBalancesChanged(tx.Meta)
}

func tokenBalancesChanged(meta *solana.TransactionMeta) bool {
	pre := make(map[int]string, len(meta.PreTokenBalances))
	for _, b := range meta.PreTokenBalances {
		pre[b.AccountIndex] = b.Amount.Amount
	}
	for _, b := range meta.PostTokenBalances {
		if prev, ok := pre[b.AccountIndex]; !ok || prev != b.Amount.Amount {
			return true
		}
	}
	return false
}
