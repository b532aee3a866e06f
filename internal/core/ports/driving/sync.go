package driving

import (
	"context"

	"github.com/custodia-labs/corpus/internal/core/domain"
)

// SyncOrchestrator processes pending documents into the vector store.
type SyncOrchestrator interface {
	// Sync processes every document currently in status uploaded.
	// A failing document is recorded as failed; the run continues.
	// trigger names what started the run in the run history.
	Sync(ctx context.Context, trigger domain.SyncTrigger) (*domain.SyncReport, error)

	// Stats summarises documents by status.
	Stats(ctx context.Context) (*domain.SyncStats, error)

	// Reset returns failed (and optionally stale processing) documents to uploaded.
	Reset(ctx context.Context, opts domain.ResetOptions) (int, error)

	// RecentRuns returns up to limit past runs, most recent first.
	RecentRuns(ctx context.Context, limit int) ([]domain.SyncRun, error)

	// Running reports whether a run is in progress in this process.
	Running() bool
}
