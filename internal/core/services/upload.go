package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/corpus/internal/core/domain"
	"github.com/custodia-labs/corpus/internal/core/ports/driven"
	"github.com/custodia-labs/corpus/internal/core/ports/driving"
	"github.com/custodia-labs/corpus/internal/hashing"
	"github.com/custodia-labs/corpus/internal/logger"
)

// previewRunes is the length of the text preview.
const previewRunes = 500

// Ensure UploadService implements the interface.
var _ driving.UploadService = (*UploadService)(nil)

// UploadService stores new documents for a later sync.
type UploadService struct {
	settings   *SettingsService
	docs       driven.DocumentStore
	blobs      driven.BlobStore
	extractors driven.ExtractorRegistry
	now        func() time.Time
}

// NewUploadService creates an upload service.
func NewUploadService(
	settings *SettingsService,
	docs driven.DocumentStore,
	blobs driven.BlobStore,
	extractors driven.ExtractorRegistry,
) *UploadService {
	return &UploadService{
		settings:   settings,
		docs:       docs,
		blobs:      blobs,
		extractors: extractors,
		now:        time.Now,
	}
}

// Upload checks the file, deduplicates it by raw hash and stores it with
// status uploaded. Rejections and duplicates are results, not errors.
func (s *UploadService) Upload(ctx context.Context, req domain.UploadRequest) (domain.UploadResult, error) {
	extractor, reason := s.admit(req)
	if reason != "" {
		logger.Info("upload: rejected %s: %s", req.Filename, reason)
		return domain.Rejected(reason), nil
	}

	rawHash := hashing.HashBytes(req.Content)
	existing, err := s.docs.GetDocumentByRawHash(ctx, rawHash)
	switch {
	case err == nil:
		logger.Info("upload: %s is a duplicate of %s", req.Filename, existing.ID)
		return domain.Duplicate(existing.ID, rawHash), nil
	case !errors.Is(err, domain.ErrNotFound):
		return domain.UploadResult{}, fmt.Errorf("checking raw hash: %w", err)
	}

	key, err := s.blobs.PutOriginal(ctx, req.Filename, rawHash, req.Content)
	if err != nil {
		return domain.UploadResult{}, fmt.Errorf("storing original: %w", err)
	}

	doc := &domain.Document{
		ID:         uuid.NewString(),
		RawHash:    rawHash,
		Filename:   filepath.Base(req.Filename),
		Size:       int64(len(req.Content)),
		MediaType:  req.MediaType,
		StorageKey: key,
		Status:     domain.StatusUploaded,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.docs.CreateDocument(ctx, doc); err != nil {
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return domain.UploadResult{}, fmt.Errorf("creating document: %w", err)
		}
		// A concurrent upload of the same bytes won the insert.
		winner, getErr := s.docs.GetDocumentByRawHash(ctx, rawHash)
		if getErr != nil {
			return domain.UploadResult{}, fmt.Errorf("resolving duplicate upload: %w", getErr)
		}
		return domain.Duplicate(winner.ID, rawHash), nil
	}

	logger.Info("upload: stored %s as %s (%s, %d bytes)", doc.Filename, doc.ID, extractor.Variant(), doc.Size)
	return domain.Accepted(doc.ID, rawHash, extractor.Variant()), nil
}

// Preview extracts text from a file without storing anything.
func (s *UploadService) Preview(ctx context.Context, req domain.UploadRequest) (*domain.PreviewResult, error) {
	extractor, reason := s.admit(req)
	if reason != "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidInput, reason)
	}

	raw, err := extractor.Extract(ctx, req.Content)
	if err != nil {
		return nil, err
	}
	text := hashing.NormalizeText(raw)
	if text == "" {
		return nil, domain.NewExtractionError(extractor.Variant(), errEmptyText)
	}

	runes := []rune(text)
	preview := text
	if len(runes) > previewRunes {
		preview = string(runes[:previewRunes])
	}
	return &domain.PreviewResult{
		Filename:   filepath.Base(req.Filename),
		Variant:    extractor.Variant(),
		RawHash:    hashing.HashBytes(req.Content),
		TextLength: len(runes),
		Preview:    preview,
	}, nil
}

// admit runs the cheap checks shared by Upload and Preview. It returns the
// selected extractor, or a rejection reason.
func (s *UploadService) admit(req domain.UploadRequest) (driven.Extractor, string) {
	if len(req.Content) == 0 {
		return nil, "file is empty"
	}
	limits := s.settings.Snapshot().Upload
	if int64(len(req.Content)) > limits.MaxBytes() {
		return nil, fmt.Sprintf("file is larger than the %d MB limit", limits.MaxFileSizeMB)
	}
	extractor, err := s.extractors.Select(req.Filename, req.MediaType)
	if err != nil {
		return nil, err.Error()
	}
	if !extractor.Validate(req.Content) {
		return nil, fmt.Sprintf("file content is not a valid %s document", extractor.Variant())
	}
	return extractor, ""
}
