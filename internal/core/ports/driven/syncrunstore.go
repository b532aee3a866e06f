package driven

import (
	"context"

	"github.com/custodia-labs/corpus/internal/core/domain"
)

// SyncRunStore keeps the history of sync runs.
type SyncRunStore interface {
	// RecordRun appends a finished run.
	RecordRun(ctx context.Context, run *domain.SyncRun) error

	// RecentRuns returns up to limit runs, most recent first.
	RecentRuns(ctx context.Context, limit int) ([]domain.SyncRun, error)

	// PruneRuns keeps only the most recent keep runs.
	PruneRuns(ctx context.Context, keep int) error
}
