package mcp

import (
	"context"

	"github.com/custodia-labs/corpus/internal/core/domain"
)

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	resp     *domain.RetrievalResponse
	err      error
	lastOpts domain.RetrievalOptions
}

func (m *mockRetrievalService) Retrieve(
	_ context.Context,
	query string,
	opts domain.RetrievalOptions,
) (*domain.RetrievalResponse, error) {
	m.lastOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	if m.resp == nil {
		return &domain.RetrievalResponse{Query: query, NoContext: true, Reason: domain.NoContextMessage}, nil
	}
	return m.resp, nil
}

// mockSyncOrchestrator is a mock implementation of driving.SyncOrchestrator.
type mockSyncOrchestrator struct {
	stats    *domain.SyncStats
	runs     []domain.SyncRun
	report   *domain.SyncReport
	err      error
	running  bool
	triggers []domain.SyncTrigger
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
	return m.stats, nil
}

func (m *mockSyncOrchestrator) Reset(_ context.Context, _ domain.ResetOptions) (int, error) {
	return 0, m.err
}

func (m *mockSyncOrchestrator) RecentRuns(_ context.Context, limit int) ([]domain.SyncRun, error) {
	if len(m.runs) > limit {
		return m.runs[:limit], nil
	}
	return m.runs, nil
}

func (m *mockSyncOrchestrator) Running() bool { return m.running }
