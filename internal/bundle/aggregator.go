// Package bundle finds sets of wallets buying the audited token together.
package bundle

import (
	"sort"

	"github.com/shopspring/decimal"

	"solana-holder-audit/internal/domain"
	"solana-holder-audit/internal/observability"
)

// DefaultWindowSeconds approximates one block when a trade source has no
// slot granularity.
const DefaultWindowSeconds = 10

// FindBundles groups buy trades by time proximity: the slot when the
// source provides one, otherwise floor(timestamp/windowSeconds). Groups
// with fewer than two unique wallets are dropped. The result is sorted
// by tokens bought, descending.
func FindBundles(trades []domain.TradeEvent, windowSeconds int64) []domain.Bundle {
	if windowSeconds <= 0 {
		windowSeconds = DefaultWindowSeconds
	}

	groups := make(map[int64]*domain.Bundle)
	for _, t := range trades {
		if !t.IsBuy {
			continue
		}

		key := t.Slot
		if key == 0 {
			key = t.Timestamp / windowSeconds
		}

		b, ok := groups[key]
		if !ok {
			b = &domain.Bundle{
				TimeKey:      key,
				Wallets:      make(map[string]struct{}),
				TokensBought: decimal.Zero,
				SolSpent:     decimal.Zero,
			}
			groups[key] = b
		}
		b.Wallets[t.Wallet] = struct{}{}
		b.TokensBought = b.TokensBought.Add(t.TokenAmount)
		b.SolSpent = b.SolSpent.Add(t.SolAmount)
		b.Trades = append(b.Trades, t)
	}

	bundles := make([]domain.Bundle, 0, len(groups))
	for _, b := range groups {
		if b.WalletCount() < 2 {
			continue
		}
		bundles = append(bundles, *b)
	}

	sort.Slice(bundles, func(i, j int) bool {
		if !bundles[i].TokensBought.Equal(bundles[j].TokensBought) {
			return bundles[i].TokensBought.GreaterThan(bundles[j].TokensBought)
		}
		return bundles[i].TimeKey < bundles[j].TimeKey
	})

	observability.RecordBundles(len(bundles))
	return bundles
}

// TeamReport is the coordinated-wallet summary of a run.
type TeamReport struct {
	Wallets       []string // sorted
	SupplyPercent decimal.Decimal
	SolSpent      decimal.Decimal
}

// TeamAnalysis unions wallets recurring in two or more bundles with the
// members of every funder group, then sizes the resulting team against
// the captured supply. holders supplies the balances; wallets outside it
// still count as team members but add no balance.
func TeamAnalysis(bundles []domain.Bundle, groups []domain.FunderGroup, holders []domain.Holder, token domain.TokenInfo) TeamReport {
	seen := make(map[string]int)
	for _, b := range bundles {
		for wallet := range b.Wallets {
			seen[wallet]++
		}
	}

	team := make(map[string]struct{})
	for wallet, count := range seen {
		if count >= 2 {
			team[wallet] = struct{}{}
		}
	}
	for _, g := range groups {
		for _, wallet := range g.Members {
			team[wallet] = struct{}{}
		}
	}

	report := TeamReport{
		SupplyPercent: decimal.Zero,
		SolSpent:      decimal.Zero,
	}

	balances := make(map[string]decimal.Decimal, len(holders))
	for _, h := range holders {
		balances[h.Address] = h.Balance
	}

	teamBalance := decimal.Zero
	for wallet := range team {
		report.Wallets = append(report.Wallets, wallet)
		if b, ok := balances[wallet]; ok {
			teamBalance = teamBalance.Add(b)
		}
	}
	sort.Strings(report.Wallets)

	if !token.Supply.IsZero() {
		report.SupplyPercent = teamBalance.Div(token.Supply).Mul(decimal.NewFromInt(100))
	}

	for _, b := range bundles {
		for _, t := range b.Trades {
			if _, ok := team[t.Wallet]; ok {
				report.SolSpent = report.SolSpent.Add(t.SolAmount)
			}
		}
	}

	return report
}
