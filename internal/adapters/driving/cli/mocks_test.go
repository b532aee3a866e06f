package cli

import (
	"context"

	"github.com/custodia-labs/corpus/internal/core/domain"
)

// mockUploadService implements driving.UploadService for testing.
type mockUploadService struct {
	results  map[string]domain.UploadResult
	preview  *domain.PreviewResult
	err      error
	uploaded []domain.UploadRequest
}

func (m *mockUploadService) Upload(_ context.Context, req domain.UploadRequest) (domain.UploadResult, error) {
	if m.err != nil {
		return domain.UploadResult{}, m.err
	}
	m.uploaded = append(m.uploaded, req)
	if r, ok := m.results[req.Filename]; ok {
		return r, nil
	}
	return domain.Accepted("doc-"+req.Filename, "hash", domain.VariantPlainText), nil
}

func (m *mockUploadService) Preview(_ context.Context, req domain.UploadRequest) (*domain.PreviewResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.preview != nil {
		return m.preview, nil
	}
	return &domain.PreviewResult{
		Filename:   req.Filename,
		Variant:    domain.VariantPlainText,
		TextLength: len([]rune(string(req.Content))),
		Preview:    string(req.Content),
	}, nil
}

// mockSyncOrchestrator implements driving.SyncOrchestrator for testing.
type mockSyncOrchestrator struct {
	report    *domain.SyncReport
	stats     *domain.SyncStats
	runs      []domain.SyncRun
	resetN    int
	err       error
	triggers  []domain.SyncTrigger
	resetOpts []domain.ResetOptions
}

func (m *mockSyncOrchestrator) Sync(_ context.Context, trigger domain.SyncTrigger) (*domain.SyncReport, error) {
	m.triggers = append(m.triggers, trigger)
	if m.err != nil {
		return nil, m.err
	}
	if m.report == nil {
		return &domain.SyncReport{Details: []domain.DocumentOutcome{}}, nil
	}
	return m.report, nil
}

func (m *mockSyncOrchestrator) Stats(_ context.Context) (*domain.SyncStats, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.stats == nil {
		return &domain.SyncStats{ByStatus: map[domain.Status]int{}}, nil
	}
	return m.stats, nil
}

func (m *mockSyncOrchestrator) Reset(_ context.Context, opts domain.ResetOptions) (int, error) {
	m.resetOpts = append(m.resetOpts, opts)
	if m.err != nil {
		return 0, m.err
	}
	return m.resetN, nil
}

func (m *mockSyncOrchestrator) RecentRuns(_ context.Context, _ int) ([]domain.SyncRun, error) {
	return m.runs, nil
}

func (m *mockSyncOrchestrator) Running() bool { return false }

// mockRetrievalService implements driving.RetrievalService for testing.
type mockRetrievalService struct {
	resp     *domain.RetrievalResponse
	err      error
	query    string
	lastOpts domain.RetrievalOptions
}

func (m *mockRetrievalService) Retrieve(
	_ context.Context,
	query string,
	opts domain.RetrievalOptions,
) (*domain.RetrievalResponse, error) {
	m.query = query
	m.lastOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	if m.resp == nil {
		return &domain.RetrievalResponse{Query: query, NoContext: true, Reason: domain.NoContextMessage}, nil
	}
	return m.resp, nil
}

// mockCollectionManager implements CollectionManager for testing.
type mockCollectionManager struct {
	recreate []bool
	err      error
}

func (m *mockCollectionManager) EnsureCollection(_ context.Context, recreate bool) error {
	m.recreate = append(m.recreate, recreate)
	return m.err
}
