package memory

import (
	"context"
	"sort"
	"sync"

	"solana-holder-audit/internal/domain"
	"solana-holder-audit/internal/storage"
)

// ClassifiedWalletStore is an in-memory implementation of
// storage.ClassifiedWalletStore.
type ClassifiedWalletStore struct {
	mu   sync.RWMutex
	data map[string]map[string]*domain.ClassifiedWallet // run_id → wallet → record
}

// NewClassifiedWalletStore creates a new in-memory classified wallet store.
func NewClassifiedWalletStore() *ClassifiedWalletStore {
	return &ClassifiedWalletStore{
		data: make(map[string]map[string]*domain.ClassifiedWallet),
	}
}

// Compile-time interface check.
var _ storage.ClassifiedWalletStore = (*ClassifiedWalletStore)(nil)

// InsertBulk adds a run's classified wallets atomically.
func (s *ClassifiedWalletStore) InsertBulk(_ context.Context, runID string, wallets []*domain.ClassifiedWallet) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(wallets) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	run, exists := s.data[runID]
	if !exists {
		run = make(map[string]*domain.ClassifiedWallet)
	}

	// Validate the whole batch before touching the map, so a failed
	// batch leaves no partial state behind.
	for _, w := range wallets {
		if w == nil || w.Address == "" {
			return storage.ErrInvalidInput
		}
		if _, dup := run[w.Address]; dup {
			return storage.ErrDuplicateKey
		}
	}
	seen := make(map[string]struct{}, len(wallets))
	for _, w := range wallets {
		if _, dup := seen[w.Address]; dup {
			return storage.ErrDuplicateKey
		}
		seen[w.Address] = struct{}{}
	}

	for _, w := range wallets {
		walletCopy := *w
		run[w.Address] = &walletCopy
	}
	s.data[runID] = run
	return nil
}

// GetByRun retrieves all wallets of a run, balance DESC.
func (s *ClassifiedWalletStore) GetByRun(_ context.Context, runID string) ([]*domain.ClassifiedWallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ClassifiedWallet
	for _, w := range s.data[runID] {
		walletCopy := *w
		result = append(result, &walletCopy)
	}
	sortByBalance(result)
	return result, nil
}

// GetByRunAndCategory retrieves a run's wallets in one category, balance DESC.
func (s *ClassifiedWalletStore) GetByRunAndCategory(_ context.Context, runID string, category domain.Category) ([]*domain.ClassifiedWallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ClassifiedWallet
	for _, w := range s.data[runID] {
		if w.Category == category {
			walletCopy := *w
			result = append(result, &walletCopy)
		}
	}
	sortByBalance(result)
	return result, nil
}

func sortByBalance(wallets []*domain.ClassifiedWallet) {
	sort.Slice(wallets, func(i, j int) bool {
		if !wallets[i].Balance.Equal(wallets[j].Balance) {
			return wallets[i].Balance.GreaterThan(wallets[j].Balance)
		}
		return wallets[i].Address < wallets[j].Address
	})
}
