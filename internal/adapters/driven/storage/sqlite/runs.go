package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/corpus/internal/core/domain"
	"github.com/custodia-labs/corpus/internal/core/ports/driven"
)

// syncRunStore implements driven.SyncRunStore.
type syncRunStore struct {
	store *Store
}

var _ driven.SyncRunStore = (*syncRunStore)(nil)

type syncRunRow struct {
	ID         int64          `db:"id"`
	Origin     string         `db:"origin"`
	StartedAt  string         `db:"started_at"`
	FinishedAt string         `db:"finished_at"`
	Processed  int            `db:"processed"`
	Skipped    int            `db:"skipped"`
	Failed     int            `db:"failed"`
	Error      sql.NullString `db:"error"`
}

// RecordRun appends a finished run and sets its ID.
func (s *syncRunStore) RecordRun(ctx context.Context, run *domain.SyncRun) error {
	if run == nil {
		return domain.ErrInvalidInput
	}

	res, err := s.store.db.ExecContext(ctx, `
		INSERT INTO sync_runs (origin, started_at, finished_at, processed, skipped, failed, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, string(run.Trigger), formatTime(run.StartedAt), formatTime(run.FinishedAt),
		run.Processed, run.Skipped, run.Failed, nullString(run.Error))
	if err != nil {
		return fmt.Errorf("recording sync run: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		run.ID = id
	}
	return nil
}

// RecentRuns returns recent runs, most recent first.
func (s *syncRunStore) RecentRuns(ctx context.Context, limit int) ([]domain.SyncRun, error) {
	var rows []syncRunRow
	err := s.store.db.SelectContext(ctx, &rows, `
		SELECT id, origin, started_at, finished_at, processed, skipped, failed, error
		FROM sync_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sync runs: %w", err)
	}

	runs := make([]domain.SyncRun, 0, len(rows))
	for _, r := range rows {
		started, err := parseTime(r.StartedAt)
		if err != nil {
			return nil, err
		}
		finished, err := parseTime(r.FinishedAt)
		if err != nil {
			return nil, err
		}
		runs = append(runs, domain.SyncRun{
			ID:         r.ID,
			Trigger:    domain.SyncTrigger(r.Origin),
			StartedAt:  started,
			FinishedAt: finished,
			Processed:  r.Processed,
			Skipped:    r.Skipped,
			Failed:     r.Failed,
			Error:      r.Error.String,
		})
	}
	return runs, nil
}

// PruneRuns keeps only the most recent keep runs.
func (s *syncRunStore) PruneRuns(ctx context.Context, keep int) error {
	_, err := s.store.db.ExecContext(ctx, `
		DELETE FROM sync_runs
		WHERE id NOT IN (
			SELECT id FROM sync_runs ORDER BY started_at DESC, id DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("pruning sync runs: %w", err)
	}
	return nil
}
