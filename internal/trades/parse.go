package trades

import (
	"sort"

	"github.com/shopspring/decimal"

	"solana-holder-audit/internal/domain"
	"solana-holder-audit/internal/registry"
	"solana-holder-audit/internal/solana"
)

const lamportsPerSOLExp = -9

// ParseTrades derives buy/sell events for one mint from a confirmed swap
// transaction. A wallet that gained tokens bought, one that lost tokens
// sold; the SOL side comes from the wallet's lamport delta. Owners known
// to the registry (pool authorities, program vaults) are not wallets and
// are skipped.
func ParseTrades(tx *solana.Transaction, mint string, reg *registry.Registry) []*domain.TradeEvent {
	if tx == nil || tx.Meta == nil || tx.Meta.Err != nil {
		return nil
	}

	pre := tokenAmountsByOwner(tx.Meta.PreTokenBalances, mint)
	post := tokenAmountsByOwner(tx.Meta.PostTokenBalances, mint)

	owners := make(map[string]struct{}, len(pre)+len(post))
	for owner := range pre {
		owners[owner] = struct{}{}
	}
	for owner := range post {
		owners[owner] = struct{}{}
	}

	var events []*domain.TradeEvent
	for owner := range owners {
		if _, known := reg.Lookup(owner); known {
			continue
		}
		delta := post[owner].Sub(pre[owner])
		if delta.IsZero() {
			continue
		}
		events = append(events, &domain.TradeEvent{
			Mint:        mint,
			Wallet:      owner,
			IsBuy:       delta.IsPositive(),
			TokenAmount: delta.Abs(),
			SolAmount:   lamportDelta(tx, owner),
			Timestamp:   tx.BlockTime,
			Slot:        tx.Slot,
			Signature:   tx.Signature,
		})
	}

	sortEvents(events)
	return events
}

// tokenAmountsByOwner sums a balance list into scaled per-owner amounts
// for the mint.
func tokenAmountsByOwner(balances []solana.TokenBalance, mint string) map[string]decimal.Decimal {
	amounts := make(map[string]decimal.Decimal)
	for _, b := range balances {
		if b.Mint != mint || b.Owner == "" {
			continue
		}
		raw, err := decimal.NewFromString(b.Amount.Amount)
		if err != nil {
			continue
		}
		amounts[b.Owner] = amounts[b.Owner].Add(raw.Shift(int32(-b.Amount.Decimals)))
	}
	return amounts
}

// lamportDelta returns the wallet's absolute SOL movement in the
// transaction. The fee payer's delta is corrected for the fee so a buy
// reflects only the swap leg. Zero when the wallet holds no system
// account in the message.
func lamportDelta(tx *solana.Transaction, owner string) decimal.Decimal {
	if tx.Message == nil {
		return decimal.Zero
	}
	for i, key := range tx.Message.AccountKeys {
		if key != owner {
			continue
		}
		if i >= len(tx.Meta.PreBalances) || i >= len(tx.Meta.PostBalances) {
			return decimal.Zero
		}
		delta := decimal.NewFromUint64(tx.Meta.PreBalances[i]).
			Sub(decimal.NewFromUint64(tx.Meta.PostBalances[i]))
		if i == 0 {
			delta = delta.Sub(decimal.NewFromUint64(tx.Meta.Fee))
		}
		return delta.Abs().Shift(lamportsPerSOLExp)
	}
	return decimal.Zero
}

func sortEvents(events []*domain.TradeEvent) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].Timestamp != events[j].Timestamp {
			return events[i].Timestamp < events[j].Timestamp
		}
		return events[i].Wallet < events[j].Wallet
	})
}
