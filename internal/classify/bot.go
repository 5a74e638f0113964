package classify

import (
	"github.com/shopspring/decimal"

	"solana-holder-audit/internal/domain"
)

// Bot detector defaults.
const (
	DefaultBotTxCountThreshold = 10_000
	DefaultBotBalanceRatio     = 0.05
)

// DefaultBotProfitThreshold is the quote-currency profit past which a
// wallet looks like a market maker regardless of its buy/sell balance.
var DefaultBotProfitThreshold = decimal.NewFromInt(2_000_000)

// BotDetector flags wallets whose trading volume and symmetry look
// automated. Independent of the category sequence; the flag is
// informational and never excludes a wallet from the audit.
type BotDetector struct {
	TxCountThreshold int
	BalanceRatio     float64
	ProfitThreshold  decimal.Decimal
}

// NewBotDetector returns a detector with the default thresholds.
func NewBotDetector() *BotDetector {
	return &BotDetector{
		TxCountThreshold: DefaultBotTxCountThreshold,
		BalanceRatio:     DefaultBotBalanceRatio,
		ProfitThreshold:  DefaultBotProfitThreshold,
	}
}

// Detect reports whether the wallet's trades look automated: high total
// volume with either near-balanced buys and sells or an outsized profit.
func (d *BotDetector) Detect(trades []domain.TradeEvent) bool {
	var buys, sells int
	var spent, earned decimal.Decimal

	for _, t := range trades {
		if t.IsBuy {
			buys++
			spent = spent.Add(t.SolAmount)
		} else {
			sells++
			earned = earned.Add(t.SolAmount)
		}
	}

	total := buys + sells
	if total <= d.TxCountThreshold {
		return false
	}

	diff := buys - sells
	if diff < 0 {
		diff = -diff
	}
	if float64(diff)/float64(total) < d.BalanceRatio {
		return true
	}

	return earned.Sub(spent).GreaterThan(d.ProfitThreshold)
}
