package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-holder-audit/internal/domain"
	"solana-holder-audit/internal/storage"
)

// AuditRunStore implements storage.AuditRunStore using PostgreSQL.
type AuditRunStore struct {
	pool *Pool
}

// NewAuditRunStore creates a new AuditRunStore.
func NewAuditRunStore(pool *Pool) *AuditRunStore {
	return &AuditRunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AuditRunStore = (*AuditRunStore)(nil)

const auditRunColumns = `run_id, mint, decimals, supply, holder_count, started_at, finished_at`

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *AuditRunStore) Insert(ctx context.Context, run *domain.AuditRun) (err error) {
	defer timed("audit_runs.insert", &err)()

	if run == nil || run.RunID == "" || run.Mint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO audit_runs (` + auditRunColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = s.pool.Exec(ctx, query,
		run.RunID, run.Mint, run.Decimals, run.Supply,
		run.HolderCount, run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert audit run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *AuditRunStore) GetByID(ctx context.Context, runID string) (run *domain.AuditRun, err error) {
	defer timed("audit_runs.get_by_id", &err)()

	query := `SELECT ` + auditRunColumns + ` FROM audit_runs WHERE run_id = $1`

	row := s.pool.QueryRow(ctx, query, runID)
	run, err = scanAuditRun(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get audit run by id: %w", err)
	}
	return run, nil
}

// GetByMint retrieves all runs for a mint, ordered by started_at ASC.
func (s *AuditRunStore) GetByMint(ctx context.Context, mint string) (runs []*domain.AuditRun, err error) {
	defer timed("audit_runs.get_by_mint", &err)()

	query := `
		SELECT ` + auditRunColumns + `
		FROM audit_runs
		WHERE mint = $1
		ORDER BY started_at ASC, run_id ASC
	`

	rows, err := s.pool.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("get audit runs by mint: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		run, err := scanAuditRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit run rows: %w", err)
	}
	return runs, nil
}

// Latest retrieves the most recently started run for a mint.
func (s *AuditRunStore) Latest(ctx context.Context, mint string) (run *domain.AuditRun, err error) {
	defer timed("audit_runs.latest", &err)()

	query := `
		SELECT ` + auditRunColumns + `
		FROM audit_runs
		WHERE mint = $1
		ORDER BY started_at DESC, run_id DESC
		LIMIT 1
	`

	row := s.pool.QueryRow(ctx, query, mint)
	run, err = scanAuditRun(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest audit run: %w", err)
	}
	return run, nil
}

// scanAuditRun scans a single row into an AuditRun.
func scanAuditRun(row pgx.Row) (*domain.AuditRun, error) {
	var run domain.AuditRun
	err := row.Scan(
		&run.RunID, &run.Mint, &run.Decimals, &run.Supply,
		&run.HolderCount, &run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}
