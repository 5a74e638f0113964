package memory

import (
	"context"
	"sort"
	"sync"

	"solana-holder-audit/internal/domain"
	"solana-holder-audit/internal/storage"
)

// TradeEventStore is an in-memory implementation of storage.TradeEventStore.
// Mirrors the ClickHouse semantics: duplicate signatures collapse to the
// latest write.
type TradeEventStore struct {
	mu   sync.RWMutex
	data map[string]map[string]*domain.TradeEvent // mint → dedup key → event
}

// NewTradeEventStore creates a new in-memory trade event store.
func NewTradeEventStore() *TradeEventStore {
	return &TradeEventStore{
		data: make(map[string]map[string]*domain.TradeEvent),
	}
}

// Compile-time interface check.
var _ storage.TradeEventStore = (*TradeEventStore)(nil)

// InsertBulk appends trade events, overwriting duplicates.
func (s *TradeEventStore) InsertBulk(_ context.Context, events []*domain.TradeEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		if e == nil || e.Mint == "" || e.Wallet == "" {
			return storage.ErrInvalidInput
		}
		byKey, exists := s.data[e.Mint]
		if !exists {
			byKey = make(map[string]*domain.TradeEvent)
			s.data[e.Mint] = byKey
		}
		eventCopy := *e
		byKey[e.Signature+"|"+e.Wallet] = &eventCopy
	}
	return nil
}

// GetByMint retrieves events for a mint within [start, end].
func (s *TradeEventStore) GetByMint(_ context.Context, mint string, start, end int64) ([]*domain.TradeEvent, error) {
	return s.filter(mint, start, end, false), nil
}

// GetBuysByMint retrieves only buy events for a mint within [start, end].
func (s *TradeEventStore) GetBuysByMint(_ context.Context, mint string, start, end int64) ([]*domain.TradeEvent, error) {
	return s.filter(mint, start, end, true), nil
}

func (s *TradeEventStore) filter(mint string, start, end int64, buysOnly bool) []*domain.TradeEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeEvent
	for _, e := range s.data[mint] {
		if e.Timestamp < start || e.Timestamp > end {
			continue
		}
		if buysOnly && !e.IsBuy {
			continue
		}
		eventCopy := *e
		result = append(result, &eventCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp < result[j].Timestamp
		}
		return result[i].Signature < result[j].Signature
	})
	return result
}
