// Package memory provides in-memory store implementations for tests and
// the --use-memory mode.
package memory

import (
	"context"
	"sort"
	"sync"

	"solana-holder-audit/internal/domain"
	"solana-holder-audit/internal/storage"
)

// AuditRunStore is an in-memory implementation of storage.AuditRunStore.
type AuditRunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.AuditRun // keyed by run_id
}

// NewAuditRunStore creates a new in-memory audit run store.
func NewAuditRunStore() *AuditRunStore {
	return &AuditRunStore{
		data: make(map[string]*domain.AuditRun),
	}
}

// Compile-time interface check.
var _ storage.AuditRunStore = (*AuditRunStore)(nil)

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *AuditRunStore) Insert(_ context.Context, run *domain.AuditRun) error {
	if run == nil || run.RunID == "" || run.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[run.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	runCopy := *run
	s.data[run.RunID] = &runCopy
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *AuditRunStore) GetByID(_ context.Context, runID string) (*domain.AuditRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	runCopy := *run
	return &runCopy, nil
}

// GetByMint retrieves all runs for a mint, ordered by started_at ASC.
func (s *AuditRunStore) GetByMint(_ context.Context, mint string) ([]*domain.AuditRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AuditRun
	for _, run := range s.data {
		if run.Mint == mint {
			runCopy := *run
			result = append(result, &runCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].StartedAt != result[j].StartedAt {
			return result[i].StartedAt < result[j].StartedAt
		}
		return result[i].RunID < result[j].RunID
	})

	return result, nil
}

// Latest retrieves the most recently started run for a mint.
func (s *AuditRunStore) Latest(ctx context.Context, mint string) (*domain.AuditRun, error) {
	runs, err := s.GetByMint(ctx, mint)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, storage.ErrNotFound
	}
	return runs[len(runs)-1], nil
}
