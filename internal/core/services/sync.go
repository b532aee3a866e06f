package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/custodia-labs/corpus/internal/core/domain"
	"github.com/custodia-labs/corpus/internal/core/ports/driven"
	"github.com/custodia-labs/corpus/internal/core/ports/driving"
	"github.com/custodia-labs/corpus/internal/hashing"
	"github.com/custodia-labs/corpus/internal/logger"
	"github.com/custodia-labs/corpus/internal/postprocessors/chunker"
)

// Ensure SyncOrchestrator implements the interface.
var _ driving.SyncOrchestrator = (*SyncOrchestrator)(nil)

// Vector point payload keys.
const (
	PayloadContent     = "content"
	PayloadDocumentID  = "document_id"
	PayloadFilename    = "filename"
	PayloadMediaType   = "media_type"
	PayloadSize        = "size"
	PayloadRawHash     = "raw_hash"
	PayloadTextHash    = "text_hash"
	PayloadChunkIndex  = "chunk_index"
	PayloadChunkStart  = "chunk_start"
	PayloadChunkEnd    = "chunk_end"
	PayloadTokens      = "tokens"
	PayloadUploadedAt  = "uploaded_at"
	PayloadProcessedAt = "processed_at"
	PayloadMetadata    = "metadata"
)

// runHistory is the number of sync runs kept in the run store.
const runHistory = 100

// languageSample is the number of runes inspected by DetectLanguage.
const languageSample = 5000

// pointNamespace seeds the deterministic point ids.
var pointNamespace = uuid.MustParse("6f1c9a52-3c1e-4b8e-9a41-2f7d0c1b5e83")

var errEmptyText = errors.New("no text could be extracted")

// SyncOrchestrator turns uploaded documents into embedded vector points.
//
// Documents are processed one at a time in upload order. Each is claimed
// by an atomic uploaded -> processing transition, so concurrent runs never
// process the same document. A failing document is marked failed and the
// run moves on.
type SyncOrchestrator struct {
	settings   *SettingsService
	docs       driven.DocumentStore
	blobs      driven.BlobStore
	extractors driven.ExtractorRegistry
	enricher   *MetadataEnricher
	embedder   *EmbeddingClient
	vectors    driven.VectorStore
	runs       driven.SyncRunStore
	now        func() time.Time

	mu      sync.Mutex
	running int
}

// NewSyncOrchestrator creates a sync orchestrator.
// enricher and runs are optional. Without embedder or vectors Sync refuses to run.
func NewSyncOrchestrator(
	settings *SettingsService,
	docs driven.DocumentStore,
	blobs driven.BlobStore,
	extractors driven.ExtractorRegistry,
	enricher *MetadataEnricher,
	embedder *EmbeddingClient,
	vectors driven.VectorStore,
	runs driven.SyncRunStore,
) *SyncOrchestrator {
	return &SyncOrchestrator{
		settings:   settings,
		docs:       docs,
		blobs:      blobs,
		extractors: extractors,
		enricher:   enricher,
		embedder:   embedder,
		vectors:    vectors,
		runs:       runs,
		now:        time.Now,
	}
}

// Sync processes every pending document.
//
//nolint:gocognit // Orchestration function with necessary sequential steps
func (o *SyncOrchestrator) Sync(ctx context.Context, trigger domain.SyncTrigger) (*domain.SyncReport, error) {
	o.setRunning(1)
	defer o.setRunning(-1)

	if o.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if o.vectors == nil {
		return nil, domain.ErrVectorStoreUnavailable
	}

	cfg := o.settings.Snapshot()
	report := &domain.SyncReport{Details: []domain.DocumentOutcome{}}
	run := &domain.SyncRun{Trigger: trigger, StartedAt: o.now().UTC()}

	pending, err := o.docs.ListDocuments(ctx, domain.StatusUploaded)
	if err != nil {
		return nil, fmt.Errorf("list pending documents: %w", err)
	}
	if len(pending) == 0 {
		logger.Debug("sync: nothing to do")
		o.record(ctx, run, report, nil)
		return report, nil
	}
	logger.Section("Sync")
	logger.Info("sync: %d pending documents", len(pending))

	o.embedder.Configure(cfg.Embedding)
	chunks, err := chunker.FromSettings(cfg.Chunking)
	if err != nil {
		return nil, o.abort(ctx, run, report, fmt.Errorf("chunker: %w", err))
	}
	if err := o.ensureCollection(ctx, cfg.Vector, false); err != nil {
		return nil, o.abort(ctx, run, report, err)
	}

	for i := range pending {
		if err := ctx.Err(); err != nil {
			return report, o.abort(ctx, run, report, err)
		}
		doc := &pending[i]

		if err := o.docs.TransitionStatus(ctx, doc.ID, domain.StatusUploaded, domain.StatusProcessing); err != nil {
			if errors.Is(err, domain.ErrNotClaimed) {
				logger.Debug("sync: %s claimed elsewhere, skipping", doc.ID)
				continue
			}
			logger.Warn("sync: claiming %s: %v", doc.ID, err)
			continue
		}

		outcome := o.processDocument(ctx, cfg, chunks, doc)
		report.Add(outcome)
		switch outcome.Status {
		case domain.StatusEmbedded:
			logger.Info("sync: %s embedded (%d chunks, %s)", doc.Filename, outcome.Chunks, outcome.Duration.Round(time.Millisecond))
		case domain.StatusDuplicate:
			logger.Info("sync: %s duplicates %s", doc.Filename, outcome.LinkedTo)
		default:
			logger.Warn("sync: %s failed: %s", doc.Filename, outcome.Error)
		}
	}

	logger.Info("sync: %d processed, %d duplicates, %d failed",
		report.Processed, report.SkippedDuplicates, report.Failed)
	o.record(ctx, run, report, nil)
	return report, nil
}

// processDocument runs one claimed document through the pipeline and
// leaves it in a terminal status.
func (o *SyncOrchestrator) processDocument(
	ctx context.Context,
	cfg domain.Settings,
	chunks *chunker.Chunker,
	doc *domain.Document,
) domain.DocumentOutcome {
	start := o.now()
	out := domain.DocumentOutcome{DocumentID: doc.ID, Filename: doc.Filename}

	// A claimed document always reaches a terminal status, even when the
	// run context is cancelled while it is in flight.
	statusCtx := context.WithoutCancel(ctx)

	fail := func(err error) domain.DocumentOutcome {
		msg := err.Error()
		if markErr := o.docs.MarkFailed(statusCtx, doc.ID, msg); markErr != nil {
			logger.Error("sync: recording failure of %s: %v", doc.ID, markErr)
		}
		out.Status = domain.StatusFailed
		out.Error = msg
		out.Duration = o.now().Sub(start)
		return out
	}

	// 1. Read the original bytes and extract text
	content, err := o.blobs.Get(ctx, doc.StorageKey)
	if err != nil {
		return fail(fmt.Errorf("reading original: %w", err))
	}
	extractor, err := o.extractors.Select(doc.Filename, doc.MediaType)
	if err != nil {
		return fail(err)
	}
	raw, err := extractor.Extract(ctx, content)
	if err != nil {
		return fail(err)
	}
	text := hashing.NormalizeText(raw)
	if text == "" {
		return fail(domain.NewExtractionError(extractor.Variant(), errEmptyText))
	}
	textHash := hashing.HashText(text)
	out.TextHash = hashing.Short(textHash)
	out.TextLength = len([]rune(text))

	// 2. Deduplicate by text hash
	if owner, err := o.docs.GetProcessedText(ctx, textHash); err == nil {
		return o.duplicate(statusCtx, doc, textHash, owner.DocumentID, out, start, fail)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return fail(fmt.Errorf("checking text hash: %w", err))
	}

	// 3. Enrich (best-effort)
	metadata := domain.Metadata{}
	if cfg.Enrichment.Enabled && o.enricher.Available() {
		metadata = o.enricher.Enrich(ctx, text, cfg.Enrichment)
	}

	// 4. Persist the normalized text
	textKey, err := o.blobs.PutText(ctx, textHash, text)
	if err != nil {
		return fail(fmt.Errorf("storing text: %w", err))
	}

	// 5. Chunk and embed
	embedStart := o.now()
	pieces := chunks.Split(text)
	contents := make([]string, len(pieces))
	for i, c := range pieces {
		contents[i] = c.Content
	}
	contentVectors, err := o.embedder.EmbedBatch(ctx, contents)
	if err != nil {
		return fail(fmt.Errorf("embedding chunks: %w", err))
	}

	var metaVector []float32
	if cfg.Vector.MultiVector {
		metaText := MetaText(metadata)
		if metaText == "" {
			metaText = doc.Filename
		}
		metaVector, err = o.embedder.Embed(ctx, metaText)
		if err != nil {
			return fail(fmt.Errorf("embedding metadata: %w", err))
		}
	}

	// 6. Upsert vector points
	processedAt := o.now().UTC()
	points := make([]domain.VectorPoint, len(pieces))
	for i, c := range pieces {
		points[i] = domain.VectorPoint{
			ID:      PointID(textHash, c.Index),
			Content: contentVectors[i],
			Meta:    metaVector,
			Payload: chunkPayload(doc, textHash, c, metadata, processedAt),
		}
	}
	if err := o.vectors.Upsert(ctx, cfg.Vector.Collection, points); err != nil {
		return fail(fmt.Errorf("upserting points: %w", err))
	}

	// 7. Record the processed text
	processed := &domain.ProcessedText{
		TextHash:       textHash,
		DocumentID:     doc.ID,
		StorageKey:     textKey,
		Length:         out.TextLength,
		Language:       DetectLanguage(text),
		Metadata:       metadata,
		ChunkCount:     len(points),
		ProcessingTime: o.now().Sub(embedStart),
		EmbeddedAt:     processedAt,
	}
	if err := o.docs.MarkEmbedded(statusCtx, doc.ID, processed); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// Another document embedded the same text meanwhile; the
			// points converged on the same ids.
			owner, getErr := o.docs.GetProcessedText(statusCtx, textHash)
			if getErr != nil {
				return fail(fmt.Errorf("resolving text owner: %w", getErr))
			}
			return o.duplicate(statusCtx, doc, textHash, owner.DocumentID, out, start, fail)
		}
		return fail(fmt.Errorf("recording processed text: %w", err))
	}

	out.Status = domain.StatusEmbedded
	out.Chunks = len(points)
	out.Duration = o.now().Sub(start)
	return out
}

func (o *SyncOrchestrator) duplicate(
	ctx context.Context,
	doc *domain.Document,
	textHash, canonicalID string,
	out domain.DocumentOutcome,
	start time.Time,
	fail func(error) domain.DocumentOutcome,
) domain.DocumentOutcome {
	if err := o.docs.MarkDuplicate(ctx, doc.ID, textHash, canonicalID); err != nil {
		return fail(fmt.Errorf("marking duplicate: %w", err))
	}
	out.Status = domain.StatusDuplicate
	out.LinkedTo = canonicalID
	out.Duration = o.now().Sub(start)
	return out
}

// EnsureCollection creates the configured collection if needed.
// recreate drops an existing collection first.
func (o *SyncOrchestrator) EnsureCollection(ctx context.Context, recreate bool) error {
	if o.embedder == nil {
		return domain.ErrEmbeddingUnavailable
	}
	if o.vectors == nil {
		return domain.ErrVectorStoreUnavailable
	}
	return o.ensureCollection(ctx, o.settings.Snapshot().Vector, recreate)
}

func (o *SyncOrchestrator) ensureCollection(ctx context.Context, cfg domain.VectorSettings, recreate bool) error {
	spec := domain.CollectionSpec{
		Name:       cfg.Collection,
		Dimensions: o.embedder.Dimensions(),
		Recreate:   recreate,
	}
	if cfg.MultiVector {
		spec.Spaces = []domain.VectorSpace{domain.SpaceContent, domain.SpaceMeta}
	}
	if err := o.vectors.CreateCollection(ctx, spec); err != nil {
		return fmt.Errorf("ensure collection %s: %w", cfg.Collection, err)
	}
	return nil
}

// Stats summarises documents by status.
func (o *SyncOrchestrator) Stats(ctx context.Context) (*domain.SyncStats, error) {
	return o.docs.Stats(ctx)
}

// Reset returns failed documents, and with IncludeStale documents stuck in
// processing, to uploaded.
func (o *SyncOrchestrator) Reset(ctx context.Context, opts domain.ResetOptions) (int, error) {
	statuses := []domain.Status{domain.StatusFailed}
	if opts.IncludeStale {
		if o.Running() {
			return 0, fmt.Errorf("%w: cannot reset processing documents while a sync is running", domain.ErrInvalidInput)
		}
		statuses = append(statuses, domain.StatusProcessing)
	}
	n, err := o.docs.ResetDocuments(ctx, statuses...)
	if err != nil {
		return 0, fmt.Errorf("reset documents: %w", err)
	}
	logger.Info("sync: reset %d documents to uploaded", n)
	return n, nil
}

// RecentRuns returns up to limit past runs, most recent first.
func (o *SyncOrchestrator) RecentRuns(ctx context.Context, limit int) ([]domain.SyncRun, error) {
	if o.runs == nil {
		return nil, nil
	}
	return o.runs.RecentRuns(ctx, limit)
}

// Running reports whether a run is in progress.
func (o *SyncOrchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running > 0
}

func (o *SyncOrchestrator) setRunning(delta int) {
	o.mu.Lock()
	o.running += delta
	o.mu.Unlock()
}

// abort records a run that stopped early and returns err.
func (o *SyncOrchestrator) abort(ctx context.Context, run *domain.SyncRun, report *domain.SyncReport, err error) error {
	logger.Error("sync: run aborted: %v", err)
	o.record(ctx, run, report, err)
	return err
}

func (o *SyncOrchestrator) record(ctx context.Context, run *domain.SyncRun, report *domain.SyncReport, runErr error) {
	if o.runs == nil {
		return
	}
	run.FinishedAt = o.now().UTC()
	run.Processed = report.Processed
	run.Skipped = report.SkippedDuplicates
	run.Failed = report.Failed
	if runErr != nil {
		run.Error = runErr.Error()
	}

	// Recording must survive a cancelled run context.
	recordCtx := context.WithoutCancel(ctx)
	if err := o.runs.RecordRun(recordCtx, run); err != nil {
		logger.Warn("sync: recording run: %v", err)
		return
	}
	if err := o.runs.PruneRuns(recordCtx, runHistory); err != nil {
		logger.Warn("sync: pruning run history: %v", err)
	}
}

// PointID returns the stable vector point id of chunk index of a text.
func PointID(textHash string, index int) string {
	return uuid.NewSHA1(pointNamespace, []byte(fmt.Sprintf("%s:%d", textHash, index))).String()
}

func chunkPayload(doc *domain.Document, textHash string, c domain.Chunk, metadata domain.Metadata, processedAt time.Time) map[string]any {
	payload := map[string]any{
		PayloadContent:     c.Content,
		PayloadDocumentID:  doc.ID,
		PayloadFilename:    doc.Filename,
		PayloadMediaType:   doc.MediaType,
		PayloadSize:        doc.Size,
		PayloadRawHash:     doc.RawHash,
		PayloadTextHash:    textHash,
		PayloadChunkIndex:  c.Index,
		PayloadChunkStart:  c.Start,
		PayloadChunkEnd:    c.End,
		PayloadTokens:      c.Tokens,
		PayloadUploadedAt:  doc.CreatedAt.UTC().Format(time.RFC3339),
		PayloadProcessedAt: processedAt.Format(time.RFC3339),
	}
	if len(metadata) > 0 {
		payload[PayloadMetadata] = map[string]any(metadata)
	}
	return payload
}

// DetectLanguage returns a coarse language tag from the script of the
// first letters of text: "ru" for mostly Cyrillic, "en" for mostly Latin,
// "und" when there are no letters.
func DetectLanguage(text string) string {
	var cyrillic, latin, seen int
	for _, r := range text {
		if seen == languageSample {
			break
		}
		seen++
		switch {
		case unicode.Is(unicode.Cyrillic, r):
			cyrillic++
		case unicode.Is(unicode.Latin, r):
			latin++
		}
	}
	switch {
	case cyrillic == 0 && latin == 0:
		return "und"
	case cyrillic >= latin:
		return "ru"
	default:
		return "en"
	}
}
