package domain

import "github.com/shopspring/decimal"

// TokenInfo holds the audited token's basic metadata. Supply is captured
// once at the start of a run and never re-fetched mid-run, so that all
// supply percentages within the run are internally consistent.
type TokenInfo struct {
	Mint     string
	Decimals int
	Supply   decimal.Decimal // total supply, scaled by Decimals
}

// ScaleRaw converts a raw base-unit amount to a decimal-adjusted amount.
func (t TokenInfo) ScaleRaw(raw decimal.Decimal) decimal.Decimal {
	return raw.Shift(int32(-t.Decimals))
}
