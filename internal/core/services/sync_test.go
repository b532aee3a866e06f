package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/corpus/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/corpus/internal/core/domain"
	"github.com/custodia-labs/corpus/internal/core/ports/driven"
	"github.com/custodia-labs/corpus/internal/hashing"
	"github.com/custodia-labs/corpus/internal/normalisers"
	"github.com/custodia-labs/corpus/internal/normalisers/plaintext"
)

// stubExtractor handles one extension with a canned result.
type stubExtractor struct {
	ext  string
	text string
	err  error
}

func (s *stubExtractor) Variant() domain.DocumentVariant { return domain.DocumentVariant("stub" + s.ext) }
func (s *stubExtractor) Extensions() []string            { return []string{s.ext} }
func (s *stubExtractor) MediaTypes() []string            { return nil }
func (s *stubExtractor) Validate(_ []byte) bool          { return true }

func (s *stubExtractor) Extract(_ context.Context, _ []byte) (string, error) {
	if s.err != nil {
		return "", domain.NewExtractionError(s.Variant(), s.err)
	}
	return s.text, nil
}

// claimStealer loses the claim race for the listed documents.
type claimStealer struct {
	*memory.DocumentStore
	mu     sync.Mutex
	stolen map[string]bool
}

func (c *claimStealer) TransitionStatus(ctx context.Context, id string, from, to domain.Status) error {
	c.mu.Lock()
	steal := c.stolen[id]
	c.mu.Unlock()
	if steal && from == domain.StatusUploaded {
		if err := c.DocumentStore.TransitionStatus(ctx, id, from, to); err != nil {
			return err
		}
		return domain.ErrNotClaimed
	}
	return c.DocumentStore.TransitionStatus(ctx, id, from, to)
}

// ctxDocStore refuses status writes once their context is done, like a
// database driver does.
type ctxDocStore struct {
	*memory.DocumentStore
}

func (c *ctxDocStore) MarkEmbedded(ctx context.Context, id string, text *domain.ProcessedText) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.DocumentStore.MarkEmbedded(ctx, id, text)
}

func (c *ctxDocStore) MarkDuplicate(ctx context.Context, id, textHash, canonicalID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.DocumentStore.MarkDuplicate(ctx, id, textHash, canonicalID)
}

func (c *ctxDocStore) MarkFailed(ctx context.Context, id, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.DocumentStore.MarkFailed(ctx, id, message)
}

// cancellingVectors cancels the run context once points are written.
type cancellingVectors struct {
	*memory.VectorStore
	cancel context.CancelFunc
}

func (c *cancellingVectors) Upsert(ctx context.Context, collection string, points []domain.VectorPoint) error {
	err := c.VectorStore.Upsert(ctx, collection, points)
	c.cancel()
	return err
}

// pipelineFixture wires the services over in-memory adapters.
type pipelineFixture struct {
	config    *memory.ConfigStore
	docs      *memory.DocumentStore
	blobs     *memory.BlobStore
	vectors   *memory.VectorStore
	runs      *memory.SyncRunStore
	provider  *mockEmbedder
	llm       *mockLLM
	settings  *SettingsService
	upload    *UploadService
	sync      *SyncOrchestrator
	retrieval *RetrievalService
}

func newPipelineFixture(t *testing.T, config map[string]any) *pipelineFixture {
	t.Helper()
	seed := map[string]any{
		KeyEmbedBatchDelay: int64(0),
		KeyEmbedInterval:   int64(0),
		KeyEnrichEnabled:   false,
		KeyCollection:      "test",
	}
	for k, v := range config {
		seed[k] = v
	}

	f := &pipelineFixture{
		config:   memory.NewConfigStore(seed),
		docs:     memory.NewDocumentStore(),
		blobs:    memory.NewBlobStore(),
		vectors:  memory.NewVectorStore(),
		runs:     memory.NewSyncRunStore(),
		provider: newMockEmbedder(8),
		llm:      &mockLLM{reply: `{"title":"Fibre basics","summary":"Why fibre matters","topics":["fibre","gut"]}`},
	}
	f.settings = NewSettingsService(f.config)

	registry := normalisers.NewRegistry(
		plaintext.New(),
		&stubExtractor{ext: ".broken", err: errors.New("corrupt stream")},
		&stubExtractor{ext: ".blank", text: " \n\t \n"},
	)

	embedder, err := NewEmbeddingClient(f.provider, f.settings.Snapshot().Embedding)
	require.NoError(t, err)
	t.Cleanup(func() { embedder.Close() })

	enricher := NewMetadataEnricher(f.llm, nil)
	f.upload = NewUploadService(f.settings, f.docs, f.blobs, registry)
	f.sync = NewSyncOrchestrator(f.settings, f.docs, f.blobs, registry, enricher, embedder, f.vectors, f.runs)
	f.retrieval = NewRetrievalService(f.settings, embedder, f.vectors)
	return f
}

func (f *pipelineFixture) mustUpload(t *testing.T, filename, content string) string {
	t.Helper()
	res, err := f.upload.Upload(context.Background(), domain.UploadRequest{Filename: filename, Content: []byte(content)})
	require.NoError(t, err)
	require.Equal(t, domain.UploadAccepted, res.Outcome, res.Reason)
	return res.DocumentID
}

func (f *pipelineFixture) status(t *testing.T, id string) *domain.Document {
	t.Helper()
	doc, err := f.docs.GetDocument(context.Background(), id)
	require.NoError(t, err)
	return doc
}

func TestSync_UploadToSearch(t *testing.T) {
	f := newPipelineFixture(t, map[string]any{KeyChunkSize: int64(20), KeyChunkOverlap: int64(4)})
	ctx := context.Background()

	text := strings.Repeat("Dietary fibre feeds the bacteria of the gut. ", 12)
	id := f.mustUpload(t, "fibre.txt", text)

	report, err := f.sync.Sync(ctx, domain.TriggerCLI)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 0, report.Failed)
	require.Len(t, report.Details, 1)

	outcome := report.Details[0]
	assert.Equal(t, domain.StatusEmbedded, outcome.Status)
	assert.Greater(t, outcome.Chunks, 1)
	assert.Equal(t, outcome.Chunks, f.vectors.Count("test"))

	doc := f.status(t, id)
	assert.Equal(t, domain.StatusEmbedded, doc.Status)
	assert.NotNil(t, doc.ProcessedAt)

	normalized := hashing.NormalizeText(text)
	textHash := hashing.HashText(normalized)
	assert.Equal(t, textHash, doc.TextHash)

	processed, err := f.docs.GetProcessedText(ctx, textHash)
	require.NoError(t, err)
	assert.Equal(t, id, processed.DocumentID)
	assert.Equal(t, "en", processed.Language)
	assert.Equal(t, outcome.Chunks, processed.ChunkCount)

	stored, err := f.blobs.Get(ctx, processed.StorageKey)
	require.NoError(t, err)
	assert.Equal(t, normalized, string(stored))

	point, ok := f.vectors.Point("test", PointID(textHash, 0))
	require.True(t, ok)
	assert.Nil(t, point.Meta)
	assert.Equal(t, id, point.Payload[PayloadDocumentID])
	assert.Equal(t, "fibre.txt", point.Payload[PayloadFilename])
	assert.Equal(t, 0, point.Payload[PayloadChunkIndex])

	resp, err := f.retrieval.Retrieve(ctx, "Dietary fibre feeds the bacteria", domain.RetrievalOptions{})
	require.NoError(t, err)
	assert.False(t, resp.NoContext)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "fibre.txt", resp.Results[0].Metadata[PayloadFilename])

	runs, err := f.sync.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, domain.TriggerCLI, runs[0].Trigger)
	assert.Equal(t, 1, runs[0].Processed)
	assert.Empty(t, runs[0].Error)
}

func TestSync_NothingPending(t *testing.T) {
	f := newPipelineFixture(t, nil)

	report, err := f.sync.Sync(context.Background(), domain.TriggerSchedule)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Processed)
	assert.Empty(t, report.Details)
	assert.Equal(t, 0, f.provider.callCount())

	runs, err := f.sync.RecentRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1, "idle runs are recorded")
	assert.Equal(t, domain.TriggerSchedule, runs[0].Trigger)
	assert.Zero(t, runs[0].Processed+runs[0].Skipped+runs[0].Failed)
	assert.Empty(t, runs[0].Error)
}

func TestSync_DuplicateText(t *testing.T) {
	f := newPipelineFixture(t, nil)
	ctx := context.Background()

	first := f.mustUpload(t, "a.txt", "Hello\r\nworld")
	second := f.mustUpload(t, "b.txt", "Hello   \nworld\n\n")

	report, err := f.sync.Sync(ctx, domain.TriggerCLI)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.SkippedDuplicates)

	points := f.vectors.Count("test")
	assert.Equal(t, 1, points)

	dup := f.status(t, second)
	assert.Equal(t, domain.StatusDuplicate, dup.Status)
	assert.Equal(t, first, dup.CanonicalID)
	assert.Equal(t, f.status(t, first).TextHash, dup.TextHash)
	assert.Equal(t, first, report.Details[1].LinkedTo)
}

func TestSync_FailuresDoNotStopTheRun(t *testing.T) {
	f := newPipelineFixture(t, nil)
	ctx := context.Background()

	broken := f.mustUpload(t, "scan.broken", "x")
	blank := f.mustUpload(t, "empty.blank", "y")
	good := f.mustUpload(t, "good.txt", "Oats contain beta-glucan.")

	report, err := f.sync.Sync(ctx, domain.TriggerCLI)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 2, report.Failed)

	doc := f.status(t, broken)
	assert.Equal(t, domain.StatusFailed, doc.Status)
	assert.Contains(t, doc.ErrorMessage, "corrupt stream")

	doc = f.status(t, blank)
	assert.Equal(t, domain.StatusFailed, doc.Status)
	assert.Contains(t, doc.ErrorMessage, "no text could be extracted")

	assert.Equal(t, domain.StatusEmbedded, f.status(t, good).Status)
}

func TestSync_EmbeddingFailureMarksDocument(t *testing.T) {
	f := newPipelineFixture(t, nil)
	ctx := context.Background()
	f.provider.failOn = "poison"

	bad := f.mustUpload(t, "bad.txt", "This text contains poison.")
	good := f.mustUpload(t, "good.txt", "Lentils are rich in protein.")

	report, err := f.sync.Sync(ctx, domain.TriggerCLI)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Processed)

	doc := f.status(t, bad)
	assert.Equal(t, domain.StatusFailed, doc.Status)
	assert.Contains(t, doc.ErrorMessage, "embedding chunks")

	_, err = f.docs.GetProcessedText(ctx, hashing.HashText("This text contains poison."))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, domain.StatusEmbedded, f.status(t, good).Status)
}

func TestSync_SkipsLostClaims(t *testing.T) {
	f := newPipelineFixture(t, nil)
	ctx := context.Background()

	taken := f.mustUpload(t, "taken.txt", "Claimed by another worker.")
	mine := f.mustUpload(t, "mine.txt", "Processed here.")

	stealer := &claimStealer{DocumentStore: f.docs, stolen: map[string]bool{taken: true}}
	embedder, err := NewEmbeddingClient(f.provider, f.settings.Snapshot().Embedding)
	require.NoError(t, err)
	defer embedder.Close()
	registry := normalisers.NewRegistry(plaintext.New())
	orchestrator := NewSyncOrchestrator(f.settings, stealer, f.blobs, registry, nil, embedder, f.vectors, nil)

	report, err := orchestrator.Sync(ctx, domain.TriggerCLI)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	require.Len(t, report.Details, 1)
	assert.Equal(t, mine, report.Details[0].DocumentID)

	assert.Equal(t, domain.StatusProcessing, f.status(t, taken).Status, "left to the claiming run")
}

func TestSync_MultiVector(t *testing.T) {
	f := newPipelineFixture(t, map[string]any{
		KeyMultiVector:   true,
		KeyEnrichEnabled: true,
	})
	ctx := context.Background()

	text := "Soluble fibre slows digestion."
	f.mustUpload(t, "fibre.txt", text)

	report, err := f.sync.Sync(ctx, domain.TriggerAPI)
	require.NoError(t, err)
	require.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, f.llm.callCount())

	textHash := hashing.HashText(text)
	point, ok := f.vectors.Point("test", PointID(textHash, 0))
	require.True(t, ok)
	require.NotNil(t, point.Meta)

	processed, err := f.docs.GetProcessedText(ctx, textHash)
	require.NoError(t, err)
	assert.Equal(t, "Fibre basics", processed.Metadata.String("title"))
	assert.Equal(t, f.provider.vector(MetaText(processed.Metadata)), point.Meta)

	meta, ok := point.Payload[PayloadMetadata].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Fibre basics", meta["title"])

	resp, err := f.retrieval.Retrieve(ctx, text, domain.RetrievalOptions{})
	require.NoError(t, err)
	assert.True(t, resp.MultiVector)
	require.NotEmpty(t, resp.Results)
	assert.Greater(t, resp.Results[0].MetaScore, 0.0)
}

func TestSync_MetaTextFallsBackToFilename(t *testing.T) {
	f := newPipelineFixture(t, map[string]any{KeyMultiVector: true})

	text := "Plain words without enrichment."
	f.mustUpload(t, "plain.txt", text)

	_, err := f.sync.Sync(context.Background(), domain.TriggerCLI)
	require.NoError(t, err)
	assert.Equal(t, 0, f.llm.callCount(), "enrichment disabled")

	point, ok := f.vectors.Point("test", PointID(hashing.HashText(text), 0))
	require.True(t, ok)
	assert.Equal(t, f.provider.vector("plain.txt"), point.Meta)
}

func TestSync_CancelledRunIsRecorded(t *testing.T) {
	f := newPipelineFixture(t, nil)
	id := f.mustUpload(t, "a.txt", "Never reached.")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.sync.Sync(ctx, domain.TriggerCLI)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.StatusUploaded, f.status(t, id).Status)

	runs, err := f.sync.RecentRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Contains(t, runs[0].Error, "context canceled")
}

func TestSync_CancelledMidDocumentReachesTerminalStatus(t *testing.T) {
	f := newPipelineFixture(t, nil)
	id := f.mustUpload(t, "a.txt", "Cancelled while embedding.")

	docs := &ctxDocStore{DocumentStore: f.docs}
	registry := normalisers.NewRegistry(plaintext.New())
	embedder, err := NewEmbeddingClient(f.provider, f.settings.Snapshot().Embedding)
	require.NoError(t, err)
	t.Cleanup(func() { embedder.Close() })
	orch := NewSyncOrchestrator(f.settings, docs, f.blobs, registry, nil, embedder, f.vectors, f.runs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.provider.onEmbed = cancel

	report, _ := orch.Sync(ctx, domain.TriggerCLI)
	require.NotNil(t, report)
	assert.Equal(t, 1, report.Failed)

	doc := f.status(t, id)
	assert.Equal(t, domain.StatusFailed, doc.Status, "the claim is released")
	assert.Contains(t, doc.ErrorMessage, "embedding chunks")
}

func TestSync_CancelledAfterEmbeddingStillMarksEmbedded(t *testing.T) {
	f := newPipelineFixture(t, nil)
	id := f.mustUpload(t, "a.txt", "Cancelled after the upsert.")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	docs := &ctxDocStore{DocumentStore: f.docs}
	vectors := &cancellingVectors{VectorStore: f.vectors, cancel: cancel}
	registry := normalisers.NewRegistry(plaintext.New())
	embedder, err := NewEmbeddingClient(f.provider, f.settings.Snapshot().Embedding)
	require.NoError(t, err)
	t.Cleanup(func() { embedder.Close() })
	orch := NewSyncOrchestrator(f.settings, docs, f.blobs, registry, nil, embedder, vectors, f.runs)

	report, _ := orch.Sync(ctx, domain.TriggerCLI)
	require.NotNil(t, report)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, domain.StatusEmbedded, f.status(t, id).Status)
}

func TestSync_RequiresEmbedderAndVectors(t *testing.T) {
	f := newPipelineFixture(t, nil)
	id := f.mustUpload(t, "a.txt", "Waiting for a provider.")
	registry := normalisers.NewRegistry(plaintext.New())

	noEmbedder := NewSyncOrchestrator(f.settings, f.docs, f.blobs, registry, nil, nil, f.vectors, nil)
	_, err := noEmbedder.Sync(context.Background(), domain.TriggerCLI)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	embedder, err := NewEmbeddingClient(f.provider, f.settings.Snapshot().Embedding)
	require.NoError(t, err)
	defer embedder.Close()
	noVectors := NewSyncOrchestrator(f.settings, f.docs, f.blobs, registry, nil, embedder, nil, nil)
	_, err = noVectors.Sync(context.Background(), domain.TriggerCLI)
	assert.ErrorIs(t, err, domain.ErrVectorStoreUnavailable)

	assert.Equal(t, domain.StatusUploaded, f.status(t, id).Status)
}

func TestSync_Reset(t *testing.T) {
	f := newPipelineFixture(t, nil)
	ctx := context.Background()

	failed := f.mustUpload(t, "scan.broken", "x")
	_, err := f.sync.Sync(ctx, domain.TriggerCLI)
	require.NoError(t, err)
	require.Equal(t, domain.StatusFailed, f.status(t, failed).Status)

	// A crash leaves a claimed document behind.
	stale := f.mustUpload(t, "stale.txt", "Interrupted by a crash.")
	require.NoError(t, f.docs.TransitionStatus(ctx, stale, domain.StatusUploaded, domain.StatusProcessing))

	n, err := f.sync.Reset(ctx, domain.ResetOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, domain.StatusUploaded, f.status(t, failed).Status)
	assert.Empty(t, f.status(t, failed).ErrorMessage)
	assert.Equal(t, domain.StatusProcessing, f.status(t, stale).Status)

	n, err = f.sync.Reset(ctx, domain.ResetOptions{IncludeStale: true})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, domain.StatusUploaded, f.status(t, stale).Status)
}

func TestSync_ResetStaleRefusedWhileRunning(t *testing.T) {
	f := newPipelineFixture(t, nil)
	f.sync.setRunning(1)
	defer f.sync.setRunning(-1)

	assert.True(t, f.sync.Running())
	_, err := f.sync.Reset(context.Background(), domain.ResetOptions{IncludeStale: true})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.sync.Reset(context.Background(), domain.ResetOptions{})
	assert.NoError(t, err)
}

func TestSync_Stats(t *testing.T) {
	f := newPipelineFixture(t, nil)
	f.mustUpload(t, "a.txt", "one")
	f.mustUpload(t, "b.txt", "two")

	stats, err := f.sync.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.Pending())
	assert.True(t, stats.SyncNeeded())
}

func TestEnsureCollection_Recreate(t *testing.T) {
	f := newPipelineFixture(t, nil)
	ctx := context.Background()
	f.mustUpload(t, "a.txt", "Kept until recreate.")
	_, err := f.sync.Sync(ctx, domain.TriggerCLI)
	require.NoError(t, err)
	require.Equal(t, 1, f.vectors.Count("test"))

	require.NoError(t, f.sync.EnsureCollection(ctx, false))
	assert.Equal(t, 1, f.vectors.Count("test"))

	require.NoError(t, f.sync.EnsureCollection(ctx, true))
	assert.Equal(t, 0, f.vectors.Count("test"))
}

func TestPointID(t *testing.T) {
	a := PointID("abc", 0)
	assert.Equal(t, a, PointID("abc", 0))
	assert.NotEqual(t, a, PointID("abc", 1))
	assert.NotEqual(t, a, PointID("abd", 0))
	assert.Len(t, a, 36)
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "en", DetectLanguage("Fibre and protein"))
	assert.Equal(t, "ru", DetectLanguage("Клетчатка и белок"))
	assert.Equal(t, "und", DetectLanguage("1234 !!"))
	assert.Equal(t, "ru", DetectLanguage("абв abc"), "ties go to Cyrillic")

	long := strings.Repeat("a", languageSample) + strings.Repeat("б", languageSample*2)
	assert.Equal(t, "en", DetectLanguage(long), "only the leading sample counts")
}

var _ driven.DocumentStore = (*claimStealer)(nil)
