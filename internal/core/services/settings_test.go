package services

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/corpus/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/corpus/internal/core/domain"
	"github.com/custodia-labs/corpus/internal/logger"
)

func TestSettingsService_SnapshotDefaults(t *testing.T) {
	svc := NewSettingsService(memory.NewConfigStore())
	assert.Equal(t, domain.DefaultSettings(), svc.Snapshot())
}

func TestSettingsService_SnapshotNilStore(t *testing.T) {
	var svc *SettingsService
	assert.Equal(t, domain.DefaultSettings(), svc.Snapshot())
}

func TestSettingsService_SnapshotReadsValues(t *testing.T) {
	store := memory.NewConfigStore(map[string]any{
		KeyChunkSize:            int64(800),
		KeyChunkOverlap:         int64(100),
		KeyPreserveStructure:    false,
		KeyRetrievalK:           int64(8),
		KeyScoreThreshold:       0.25,
		KeyContentWeight:        int64(1),
		KeyMetaWeight:           0.5,
		KeyMultiVector:          true,
		KeyCollection:           "library",
		KeyEmbedBatchDelay:      int64(0),
		KeyEnrichStrategy:       "hierarchical",
		KeyEnrichDomain:         "spiritual",
		KeyEnrichPrompt:         "  Summarise.  ",
		KeyMaxFileSizeMB:        int64(10),
		KeyUploadLimit:          int64(3),
		KeyUploadWindow:         "ten_minutes",
		KeyUploadBlockThreshold: int64(5),
		KeyUploadBlockMinutes:   int64(30),
		KeyFlushInterval:        int64(2),
		KeySyncInterval:         int64(15),
	})

	s := NewSettingsService(store).Snapshot()

	assert.Equal(t, 800, s.Chunking.Size)
	assert.Equal(t, 100, s.Chunking.Overlap)
	assert.False(t, s.Chunking.PreserveStructure)
	assert.Equal(t, 8, s.Retrieval.K)
	assert.InDelta(t, 0.25, s.Retrieval.ScoreThreshold, 1e-9)
	assert.InDelta(t, 1.0, s.Retrieval.ContentWeight, 1e-9)
	assert.InDelta(t, 0.5, s.Retrieval.MetaWeight, 1e-9)
	assert.True(t, s.Vector.MultiVector)
	assert.Equal(t, "library", s.Vector.Collection)
	assert.Equal(t, time.Duration(0), s.Embedding.BatchDelay)
	assert.Equal(t, domain.StrategyHierarchical, s.Enrichment.Strategy)
	assert.Equal(t, domain.DomainSpiritual, s.Enrichment.Domain)
	assert.Equal(t, "Summarise.", s.Enrichment.Prompt)
	assert.Equal(t, int64(10*1024*1024), s.Upload.MaxBytes())
	assert.Equal(t, domain.RatePolicy{
		Limit:          3,
		Window:         domain.WindowTenMinutes,
		BlockThreshold: 5,
		BlockDuration:  30 * time.Minute,
	}, s.RateLimits.Upload)
	assert.Equal(t, 2*time.Second, s.RateLimits.FlushInterval)
	assert.Equal(t, 15*time.Minute, s.Sync.Interval)
}

func TestSettingsService_SnapshotFallsBackOnInvalid(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stderr) })

	store := memory.NewConfigStore(map[string]any{
		KeyChunkSize:      int64(100),
		KeyChunkOverlap:   int64(100),
		KeyEnrichStrategy: "everything",
		KeyRetrievalK:     "five",
		KeyUploadWindow:   "fortnight",
	})

	s := NewSettingsService(store).Snapshot()
	d := domain.DefaultSettings()

	assert.Equal(t, d.Chunking.Size, s.Chunking.Size)
	assert.Equal(t, d.Chunking.Overlap, s.Chunking.Overlap)
	assert.Equal(t, d.Enrichment.Strategy, s.Enrichment.Strategy)
	assert.Equal(t, d.Retrieval.K, s.Retrieval.K)
	assert.Equal(t, d.RateLimits.Upload, s.RateLimits.Upload)
	assert.Contains(t, buf.String(), "[WARN]")
	assert.Contains(t, buf.String(), "enrichment.strategy")
}

func TestSettingsService_Set(t *testing.T) {
	store := memory.NewConfigStore()
	svc := NewSettingsService(store)

	require.NoError(t, svc.Set(KeyChunkSize, "1200"))
	require.NoError(t, svc.Set(KeyContentWeight, "0.6"))
	require.NoError(t, svc.Set(KeyMultiVector, "yes"))
	require.NoError(t, svc.Set(KeyCollection, "books"))

	s := svc.Snapshot()
	assert.Equal(t, 1200, s.Chunking.Size)
	assert.InDelta(t, 0.6, s.Retrieval.ContentWeight, 1e-9)
	assert.True(t, s.Vector.MultiVector)
	assert.Equal(t, "books", s.Vector.Collection)
}

func TestSettingsService_SetRejects(t *testing.T) {
	svc := NewSettingsService(memory.NewConfigStore())

	tests := []struct {
		key, raw string
	}{
		{"chunking.unknown", "1"},
		{KeyChunkSize, "12abc"},
		{KeyScoreThreshold, "high"},
		{KeyMultiVector, "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.raw, func(t *testing.T) {
			assert.ErrorIs(t, svc.Set(tt.key, tt.raw), domain.ErrInvalidInput)
		})
	}
}

func TestSettingsService_Keys(t *testing.T) {
	keys := NewSettingsService(memory.NewConfigStore()).Keys()
	assert.Contains(t, keys, KeyChunkSize)
	assert.Contains(t, keys, KeySyncInterval)
	assert.IsNonDecreasing(t, keys)
}

func TestSettingsService_DefaultCollection(t *testing.T) {
	store := memory.NewConfigStore()
	svc := NewSettingsService(store)
	svc.SetDefaultCollection(" from-env ")
	assert.Equal(t, "from-env", svc.Snapshot().Vector.Collection)

	require.NoError(t, store.Set(KeyCollection, "configured"))
	assert.Equal(t, "configured", svc.Snapshot().Vector.Collection, "config wins over the fallback")
}
