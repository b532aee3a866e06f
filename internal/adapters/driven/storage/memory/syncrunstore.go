package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/corpus/internal/core/domain"
	"github.com/custodia-labs/corpus/internal/core/ports/driven"
)

// Ensure SyncRunStore implements the interface.
var _ driven.SyncRunStore = (*SyncRunStore)(nil)

// SyncRunStore is an in-memory driven.SyncRunStore for testing.
type SyncRunStore struct {
	mu   sync.Mutex
	runs []domain.SyncRun
	seq  int64
}

// NewSyncRunStore creates an empty run store.
func NewSyncRunStore() *SyncRunStore {
	return &SyncRunStore{}
}

// RecordRun appends run and assigns its id.
func (s *SyncRunStore) RecordRun(_ context.Context, run *domain.SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	run.ID = s.seq
	s.runs = append(s.runs, *run)
	return nil
}

// RecentRuns returns up to limit runs, most recent first.
func (s *SyncRunStore) RecentRuns(_ context.Context, limit int) ([]domain.SyncRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.SyncRun, 0, len(s.runs))
	for i := len(s.runs) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, s.runs[i])
	}
	return out, nil
}

// PruneRuns keeps the most recent keep runs.
func (s *SyncRunStore) PruneRuns(_ context.Context, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if keep >= 0 && len(s.runs) > keep {
		s.runs = append([]domain.SyncRun(nil), s.runs[len(s.runs)-keep:]...)
	}
	return nil
}
