// Package trades supplies trade history for a mint. The audit consumes
// trades through the Source interface; the concrete sources are a
// store-backed reader over the analytics archive and a live WebSocket
// recorder that feeds that archive.
package trades

import (
	"context"

	"solana-holder-audit/internal/domain"
)

// Source provides the trade events of a mint within a time window.
type Source interface {
	// Trades returns events within [start, end] (inclusive, Unix
	// seconds), ordered by timestamp ascending.
	Trades(ctx context.Context, mint string, start, end int64) ([]domain.TradeEvent, error)
}
