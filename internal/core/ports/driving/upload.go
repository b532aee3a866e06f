package driving

import (
	"context"

	"github.com/custodia-labs/corpus/internal/core/domain"
)

// UploadService is the upload boundary.
type UploadService interface {
	// Upload stores a new document or reports why it was not stored.
	// Only infrastructure failures are returned as errors.
	Upload(ctx context.Context, req domain.UploadRequest) (domain.UploadResult, error)

	// Preview extracts text from a file without storing it.
	Preview(ctx context.Context, req domain.UploadRequest) (*domain.PreviewResult, error)
}
