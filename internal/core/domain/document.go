package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// Status is the lifecycle state of an uploaded document.
type Status string

// Document lifecycle states.
//
//	uploaded -> processing -> embedded | duplicate | failed
//
// failed (and a stale processing) return to uploaded only through an explicit reset.
const (
	// StatusUploaded marks a stored document waiting for sync.
	StatusUploaded Status = "uploaded"

	// StatusProcessing marks a document claimed by a running sync.
	StatusProcessing Status = "processing"

	// StatusEmbedded marks a document whose chunks are in the vector store.
	StatusEmbedded Status = "embedded"

	// StatusDuplicate marks a document whose text matched an existing one.
	StatusDuplicate Status = "duplicate"

	// StatusFailed marks a document whose sync failed.
	StatusFailed Status = "failed"
)

// AllStatuses lists every lifecycle state in pipeline order.
func AllStatuses() []Status {
	return []Status{StatusUploaded, StatusProcessing, StatusEmbedded, StatusDuplicate, StatusFailed}
}

// IsValid returns true if the status is recognised.
func (s Status) IsValid() bool {
	switch s {
	case StatusUploaded, StatusProcessing, StatusEmbedded, StatusDuplicate, StatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for states a sync run never revisits.
func (s Status) IsTerminal() bool {
	return s == StatusEmbedded || s == StatusDuplicate || s == StatusFailed
}

// String returns the string representation.
func (s Status) String() string {
	return string(s)
}

// DocumentVariant identifies a supported document format.
type DocumentVariant string

// Supported document formats.
const (
	VariantPDF       DocumentVariant = "pdf"
	VariantDOCX      DocumentVariant = "docx"
	VariantDOC       DocumentVariant = "doc"
	VariantPlainText DocumentVariant = "plaintext"
)

// Document is one uploaded file.
// It is immutable after upload except for status and derived fields.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// RawHash is the SHA-256 of the original bytes (unique).
	RawHash string

	// Filename is the original filename as uploaded.
	Filename string

	// Size is the byte size of the original file.
	Size int64

	// MediaType is the declared media type.
	MediaType string

	// StorageKey locates the original bytes in blob storage.
	StorageKey string

	// Status is the lifecycle state.
	Status Status

	// TextHash is the normalized text hash, set once text is extracted.
	TextHash string

	// CanonicalID links a duplicate to the document owning its text.
	CanonicalID string

	// ErrorMessage holds the failure reason when Status is failed.
	ErrorMessage string

	// CreatedAt is when the document was uploaded.
	CreatedAt time.Time

	// ProcessedAt is when the document last reached a terminal state.
	ProcessedAt *time.Time
}

// Format returns the lowercased extension without the dot, or "unknown".
func (d *Document) Format() string {
	ext := strings.TrimPrefix(filepath.Ext(d.Filename), ".")
	if ext == "" {
		return "unknown"
	}
	return strings.ToLower(ext)
}

// ProcessedText is the text derived from a document, one per unique text hash.
type ProcessedText struct {
	// TextHash is the normalized text hash, the canonical dedup key.
	TextHash string

	// DocumentID is the canonical document that first embedded this text.
	DocumentID string

	// StorageKey locates the normalized text in blob storage.
	StorageKey string

	// Length is the character count of the normalized text.
	Length int

	// Language is a coarse language tag (e.g. "en", "ru").
	Language string

	// Metadata is the best-effort enrichment output. May be empty.
	Metadata Metadata

	// ChunkCount is the number of chunks embedded.
	ChunkCount int

	// ProcessingTime is how long chunking, embedding and upsert took.
	ProcessingTime time.Duration

	// EmbeddedAt is when the vector points were written.
	EmbeddedAt time.Time
}

// Chunk is a bounded, possibly overlapping slice of normalized text.
// Chunks live only in vector payloads and are never persisted on their own.
type Chunk struct {
	// Index is the ordinal position within the document.
	Index int

	// Start is the offset of the first character in the normalized text.
	Start int

	// End is the offset one past the last character.
	End int

	// Tokens is the estimated token count.
	Tokens int

	// Content is the chunk text.
	Content string
}
