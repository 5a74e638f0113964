package storage

import (
	"context"

	"solana-holder-audit/internal/domain"
)

// AuditRunStore provides access to audit_runs storage.
type AuditRunStore interface {
	// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, run *domain.AuditRun) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.AuditRun, error)

	// GetByMint retrieves all runs for a mint, ordered by started_at ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.AuditRun, error)

	// Latest retrieves the most recently started run for a mint.
	// Returns ErrNotFound when the mint has never been audited.
	Latest(ctx context.Context, mint string) (*domain.AuditRun, error)
}

// ClassifiedWalletStore provides access to classified_wallets storage.
type ClassifiedWalletStore interface {
	// InsertBulk adds a run's classified wallets atomically. Fails the
	// entire batch on any duplicate (run_id, wallet) pair.
	InsertBulk(ctx context.Context, runID string, wallets []*domain.ClassifiedWallet) error

	// GetByRun retrieves all wallets of a run, balance DESC.
	GetByRun(ctx context.Context, runID string) ([]*domain.ClassifiedWallet, error)

	// GetByRunAndCategory retrieves a run's wallets in one category, balance DESC.
	GetByRunAndCategory(ctx context.Context, runID string, category domain.Category) ([]*domain.ClassifiedWallet, error)
}

// TradeEventStore provides access to trade_events storage (analytics).
type TradeEventStore interface {
	// InsertBulk appends trade events. Duplicate signatures are
	// tolerated; the analytics engine deduplicates on merge.
	InsertBulk(ctx context.Context, events []*domain.TradeEvent) error

	// GetByMint retrieves events for a mint within [start, end]
	// (inclusive, Unix seconds), ordered by timestamp ASC.
	GetByMint(ctx context.Context, mint string, start, end int64) ([]*domain.TradeEvent, error)

	// GetBuysByMint retrieves only buy events for a mint within
	// [start, end], ordered by timestamp ASC.
	GetBuysByMint(ctx context.Context, mint string, start, end int64) ([]*domain.TradeEvent, error)
}
