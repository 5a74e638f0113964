package domain

import "github.com/shopspring/decimal"

// Holder represents one wallet holding a balance of the audited token.
// Produced by the holder enumerator; immutable after creation.
type Holder struct {
	Address    string          // wallet (owner) address
	RawBalance decimal.Decimal // balance in base units
	Balance    decimal.Decimal // RawBalance scaled by token decimals
}

// ClassifiedWallet is a Holder with its terminal audit category attached.
// A new audit run always produces new records; they are never mutated
// after the category is assigned.
type ClassifiedWallet struct {
	Holder

	Category              Category
	DaysSinceLastActivity *float64       // set by the inactivity check
	Funding               *FundingRecord // set when a funding trace matched
	Bot                   bool           // informational flag, independent of Category
	Err                   string         // set only when Category == CategoryError
}

// SupplyPercent returns the holder's share of the given total supply in
// percent. Returns zero when supply is zero.
func (h Holder) SupplyPercent(supply decimal.Decimal) decimal.Decimal {
	if supply.IsZero() {
		return decimal.Zero
	}
	return h.Balance.Div(supply).Mul(decimal.NewFromInt(100))
}
