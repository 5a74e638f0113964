package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-holder-audit/internal/domain"
	"solana-holder-audit/internal/storage"
)

// ClassifiedWalletStore implements storage.ClassifiedWalletStore using
// PostgreSQL.
type ClassifiedWalletStore struct {
	pool *Pool
}

// NewClassifiedWalletStore creates a new ClassifiedWalletStore.
func NewClassifiedWalletStore(pool *Pool) *ClassifiedWalletStore {
	return &ClassifiedWalletStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ClassifiedWalletStore = (*ClassifiedWalletStore)(nil)

const classifiedWalletColumns = `
	run_id, wallet, category, raw_balance, balance, days_inactive,
	funder, funding_lamports, funding_block_time, funding_signature,
	funding_source_name, funding_source_category, bot, error`

// InsertBulk adds a run's classified wallets atomically.
func (s *ClassifiedWalletStore) InsertBulk(ctx context.Context, runID string, wallets []*domain.ClassifiedWallet) (err error) {
	defer timed("classified_wallets.insert_bulk", &err)()

	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(wallets) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO classified_wallets (` + classifiedWalletColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	for _, w := range wallets {
		if w == nil || w.Address == "" {
			return storage.ErrInvalidInput
		}

		var (
			funder, fundingSig, sourceName, sourceCategory *string
			fundingLamports, fundingBlockTime              *int64
		)
		if w.Funding != nil {
			funder = &w.Funding.Funder
			lamports := int64(w.Funding.Lamports)
			fundingLamports = &lamports
			fundingBlockTime = &w.Funding.BlockTime
			fundingSig = &w.Funding.Signature
			if w.Funding.SourceName != "" {
				sourceName = &w.Funding.SourceName
			}
			if w.Funding.SourceCategory != "" {
				sourceCategory = &w.Funding.SourceCategory
			}
		}

		_, err := tx.Exec(ctx, query,
			runID, w.Address, string(w.Category), w.RawBalance, w.Balance,
			w.DaysSinceLastActivity,
			funder, fundingLamports, fundingBlockTime, fundingSig,
			sourceName, sourceCategory, w.Bot, nullableString(w.Err),
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert classified wallet in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByRun retrieves all wallets of a run, balance DESC.
func (s *ClassifiedWalletStore) GetByRun(ctx context.Context, runID string) (wallets []*domain.ClassifiedWallet, err error) {
	defer timed("classified_wallets.get_by_run", &err)()

	query := `
		SELECT ` + classifiedWalletColumns + `
		FROM classified_wallets
		WHERE run_id = $1
		ORDER BY balance DESC, wallet ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get classified wallets by run: %w", err)
	}
	defer rows.Close()

	return scanClassifiedWallets(rows)
}

// GetByRunAndCategory retrieves a run's wallets in one category, balance DESC.
func (s *ClassifiedWalletStore) GetByRunAndCategory(ctx context.Context, runID string, category domain.Category) (wallets []*domain.ClassifiedWallet, err error) {
	defer timed("classified_wallets.get_by_category", &err)()

	query := `
		SELECT ` + classifiedWalletColumns + `
		FROM classified_wallets
		WHERE run_id = $1 AND category = $2
		ORDER BY balance DESC, wallet ASC
	`

	rows, err := s.pool.Query(ctx, query, runID, string(category))
	if err != nil {
		return nil, fmt.Errorf("get classified wallets by category: %w", err)
	}
	defer rows.Close()

	return scanClassifiedWallets(rows)
}

func scanClassifiedWallets(rows pgx.Rows) ([]*domain.ClassifiedWallet, error) {
	var wallets []*domain.ClassifiedWallet

	for rows.Next() {
		var (
			w                                              domain.ClassifiedWallet
			runID, category                                string
			funder, fundingSig, sourceName, sourceCategory *string
			fundingLamports, fundingBlockTime              *int64
			errMsg                                         *string
		)

		err := rows.Scan(
			&runID, &w.Address, &category, &w.RawBalance, &w.Balance,
			&w.DaysSinceLastActivity,
			&funder, &fundingLamports, &fundingBlockTime, &fundingSig,
			&sourceName, &sourceCategory, &w.Bot, &errMsg,
		)
		if err != nil {
			return nil, fmt.Errorf("scan classified wallet row: %w", err)
		}

		w.Category = domain.Category(category)
		if errMsg != nil {
			w.Err = *errMsg
		}
		if funder != nil {
			w.Funding = &domain.FundingRecord{Funder: *funder}
			if fundingLamports != nil {
				w.Funding.Lamports = uint64(*fundingLamports)
			}
			if fundingBlockTime != nil {
				w.Funding.BlockTime = *fundingBlockTime
			}
			if fundingSig != nil {
				w.Funding.Signature = *fundingSig
			}
			if sourceName != nil {
				w.Funding.SourceName = *sourceName
			}
			if sourceCategory != nil {
				w.Funding.SourceCategory = *sourceCategory
			}
		}

		wallets = append(wallets, &w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate classified wallet rows: %w", err)
	}
	return wallets, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
