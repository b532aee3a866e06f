package httpapi

import (
	"context"

	"github.com/custodia-labs/corpus/internal/core/domain"
)

type mockUploadService struct {
	result   domain.UploadResult
	preview  *domain.PreviewResult
	err      error
	requests []domain.UploadRequest
}

func (m *mockUploadService) Upload(_ context.Context, req domain.UploadRequest) (domain.UploadResult, error) {
	m.requests = append(m.requests, req)
	return m.result, m.err
}

func (m *mockUploadService) Preview(_ context.Context, req domain.UploadRequest) (*domain.PreviewResult, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return m.preview, nil
}

type mockSyncOrchestrator struct {
	report   *domain.SyncReport
	stats    *domain.SyncStats
	err      error
	running  bool
	triggers []domain.SyncTrigger
}

func (m *mockSyncOrchestrator) Sync(_ context.Context, trigger domain.SyncTrigger) (*domain.SyncReport, error) {
	m.triggers = append(m.triggers, trigger)
	if m.err != nil {
		return nil, m.err
	}
	return m.report, nil
}

func (m *mockSyncOrchestrator) Stats(_ context.Context) (*domain.SyncStats, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.stats, nil
}

func (m *mockSyncOrchestrator) Reset(_ context.Context, _ domain.ResetOptions) (int, error) {
	return 0, m.err
}

func (m *mockSyncOrchestrator) RecentRuns(_ context.Context, _ int) ([]domain.SyncRun, error) {
	return nil, m.err
}

func (m *mockSyncOrchestrator) Running() bool { return m.running }

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
	return m.resp, nil
}

type limiterCall struct {
	route string
	key   string
}

type mockLimiter struct {
	decision domain.RateDecision
	err      error
	calls    []limiterCall
}

func (m *mockLimiter) Check(_ context.Context, route, key string) (domain.RateDecision, error) {
	m.calls = append(m.calls, limiterCall{route: route, key: key})
	return m.decision, m.err
}

type staticSettings struct {
	settings domain.Settings
}

func (s staticSettings) Snapshot() domain.Settings { return s.settings }
