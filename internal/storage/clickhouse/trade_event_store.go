package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/shopspring/decimal"

	"solana-holder-audit/internal/domain"
	"solana-holder-audit/internal/observability"
	"solana-holder-audit/internal/storage"
)

// TradeEventStore implements storage.TradeEventStore using ClickHouse.
// The table is a ReplacingMergeTree; duplicate signatures collapse on
// merge, so inserts never fail on duplicates.
type TradeEventStore struct {
	conn *Conn
}

// NewTradeEventStore creates a new TradeEventStore.
func NewTradeEventStore(conn *Conn) *TradeEventStore {
	return &TradeEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeEventStore = (*TradeEventStore)(nil)

// InsertBulk appends trade events.
func (s *TradeEventStore) InsertBulk(ctx context.Context, events []*domain.TradeEvent) (err error) {
	defer timed("trade_events.insert_bulk", &err)()

	if len(events) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trade_events (
			mint, wallet, is_buy, token_amount, sol_amount, timestamp, slot, signature
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		if e == nil || e.Mint == "" || e.Wallet == "" {
			return storage.ErrInvalidInput
		}
		isBuy := uint8(0)
		if e.IsBuy {
			isBuy = 1
		}
		err = batch.Append(
			e.Mint, e.Wallet, isBuy,
			e.TokenAmount, e.SolAmount,
			e.Timestamp, e.Slot, e.Signature,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	observability.RecordTradeEvents(len(events))
	return nil
}

// GetByMint retrieves events for a mint within [start, end].
func (s *TradeEventStore) GetByMint(ctx context.Context, mint string, start, end int64) (events []*domain.TradeEvent, err error) {
	defer timed("trade_events.get_by_mint", &err)()

	query := `
		SELECT mint, wallet, is_buy, token_amount, sol_amount, timestamp, slot, signature
		FROM trade_events FINAL
		WHERE mint = ? AND timestamp BETWEEN ? AND ?
		ORDER BY timestamp ASC, signature ASC
	`

	rows, err := s.conn.Query(ctx, query, mint, start, end)
	if err != nil {
		return nil, fmt.Errorf("get trade events by mint: %w", err)
	}
	defer rows.Close()

	return scanTradeEvents(rows)
}

// GetBuysByMint retrieves only buy events for a mint within [start, end].
func (s *TradeEventStore) GetBuysByMint(ctx context.Context, mint string, start, end int64) (events []*domain.TradeEvent, err error) {
	defer timed("trade_events.get_buys_by_mint", &err)()

	query := `
		SELECT mint, wallet, is_buy, token_amount, sol_amount, timestamp, slot, signature
		FROM trade_events FINAL
		WHERE mint = ? AND is_buy = 1 AND timestamp BETWEEN ? AND ?
		ORDER BY timestamp ASC, signature ASC
	`

	rows, err := s.conn.Query(ctx, query, mint, start, end)
	if err != nil {
		return nil, fmt.Errorf("get buy events by mint: %w", err)
	}
	defer rows.Close()

	return scanTradeEvents(rows)
}

func scanTradeEvents(rows driver.Rows) ([]*domain.TradeEvent, error) {
	var events []*domain.TradeEvent

	for rows.Next() {
		var (
			e          domain.TradeEvent
			isBuy      uint8
			token, sol decimal.Decimal
		)
		err := rows.Scan(
			&e.Mint, &e.Wallet, &isBuy, &token, &sol,
			&e.Timestamp, &e.Slot, &e.Signature,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade event row: %w", err)
		}
		e.IsBuy = isBuy == 1
		e.TokenAmount = token
		e.SolAmount = sol
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade event rows: %w", err)
	}
	return events, nil
}
