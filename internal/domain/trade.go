package domain

import "github.com/shopspring/decimal"

// TradeEvent is one raw buy/sell event for the audited token, sourced from
// the trade-history collaborator. Read-only input to the bundle aggregator.
type TradeEvent struct {
	Mint        string
	Wallet      string
	IsBuy       bool
	TokenAmount decimal.Decimal
	SolAmount   decimal.Decimal
	Timestamp   int64 // Unix timestamp (seconds)
	Slot        int64 // 0 when the source has no slot granularity
	Signature   string
}

// Bundle is a set of two or more distinct wallets buying within the same
// slot or time window.
type Bundle struct {
	TimeKey      int64 // slot, or floor(timestamp/window) when slot is unavailable
	Wallets      map[string]struct{}
	TokensBought decimal.Decimal
	SolSpent     decimal.Decimal
	Trades       []TradeEvent
}

// WalletCount returns the number of unique wallets in the bundle.
func (b *Bundle) WalletCount() int {
	return len(b.Wallets)
}
