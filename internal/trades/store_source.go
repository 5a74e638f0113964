package trades

import (
	"context"
	"fmt"

	"solana-holder-audit/internal/domain"
	"solana-holder-audit/internal/storage"
)

// StoreSource reads trade history from the trade event archive.
type StoreSource struct {
	store storage.TradeEventStore
}

// NewStoreSource creates a StoreSource over the given archive.
func NewStoreSource(store storage.TradeEventStore) *StoreSource {
	return &StoreSource{store: store}
}

// Trades returns the mint's events within [start, end], timestamp ascending.
func (s *StoreSource) Trades(ctx context.Context, mint string, start, end int64) ([]domain.TradeEvent, error) {
	rows, err := s.store.GetByMint(ctx, mint, start, end)
	if err != nil {
		return nil, fmt.Errorf("trade history for %s: %w", mint, err)
	}
	events := make([]domain.TradeEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, *row)
	}
	return events, nil
}
