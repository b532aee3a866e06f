package driven

import (
	"context"

	"github.com/custodia-labs/corpus/internal/core/domain"
)

// DocumentStore persists documents and their processed text.
// Backed by SQLite for metadata storage.
type DocumentStore interface {
	// CreateDocument inserts a new document.
	// Returns domain.ErrAlreadyExists if the raw hash is already stored.
	CreateDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetDocumentByRawHash retrieves a document by its raw content hash.
	GetDocumentByRawHash(ctx context.Context, rawHash string) (*domain.Document, error)

	// ListDocuments returns documents with the given status, oldest first.
	// An empty status lists all documents.
	ListDocuments(ctx context.Context, status domain.Status) ([]domain.Document, error)

	// TransitionStatus atomically moves a document from one status to another.
	// Returns domain.ErrNotClaimed when the document is not in the from status.
	TransitionStatus(ctx context.Context, id string, from, to domain.Status) error

	// MarkEmbedded records the processed text and sets status embedded.
	// Returns domain.ErrAlreadyExists if another document owns the text hash.
	MarkEmbedded(ctx context.Context, id string, text *domain.ProcessedText) error

	// MarkDuplicate sets status duplicate and links the canonical document.
	MarkDuplicate(ctx context.Context, id, textHash, canonicalID string) error

	// MarkFailed sets status failed with a human-readable message.
	MarkFailed(ctx context.Context, id, message string) error

	// ResetDocuments moves documents in the given statuses back to uploaded.
	// Returns the number of documents reset.
	ResetDocuments(ctx context.Context, statuses ...domain.Status) (int, error)

	// GetProcessedText retrieves processed text by text hash.
	GetProcessedText(ctx context.Context, textHash string) (*domain.ProcessedText, error)

	// Stats summarises documents by status.
	Stats(ctx context.Context) (*domain.SyncStats, error)
}
