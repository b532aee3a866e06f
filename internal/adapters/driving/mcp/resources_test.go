package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/corpus/internal/core/domain"
)

func makeReadResourceRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestServer_handleStatsResource(t *testing.T) {
	ctx := context.Background()

	t.Run("returns stats as JSON", func(t *testing.T) {
		sync := &mockSyncOrchestrator{stats: &domain.SyncStats{
			Total:    2,
			ByStatus: map[domain.Status]int{domain.StatusFailed: 2},
		}}
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}, Sync: sync})
		require.NoError(t, err)

		result, err := server.handleStatsResource(ctx, makeReadResourceRequest("corpus://stats"))
		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "application/json", result.Contents[0].MIMEType)

		var got domain.SyncStats
		require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &got))
		assert.Equal(t, 2, got.Total)
		assert.Equal(t, 2, got.ByStatus[domain.StatusFailed])
	})

	t.Run("not found without sync", func(t *testing.T) {
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}})
		require.NoError(t, err)

		_, err = server.handleStatsResource(ctx, makeReadResourceRequest("corpus://stats"))
		assert.Error(t, err)
	})

	t.Run("store error is wrapped", func(t *testing.T) {
		sync := &mockSyncOrchestrator{err: errors.New("database is locked")}
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}, Sync: sync})
		require.NoError(t, err)

		_, err = server.handleStatsResource(ctx, makeReadResourceRequest("corpus://stats"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reading stats")
	})
}

func TestServer_handleRunsResource(t *testing.T) {
	sync := &mockSyncOrchestrator{runs: []domain.SyncRun{
		{ID: 7, Trigger: domain.TriggerSchedule, Processed: 1},
	}}
	server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}, Sync: sync})
	require.NoError(t, err)

	result, err := server.handleRunsResource(context.Background(), makeReadResourceRequest("corpus://runs"))
	require.NoError(t, err)

	var runs []domain.SyncRun
	require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, int64(7), runs[0].ID)
	assert.Equal(t, domain.TriggerSchedule, runs[0].Trigger)
}
